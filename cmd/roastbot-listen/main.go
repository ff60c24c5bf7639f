package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "log/slog"

	cli "github.com/spf13/pflag"

	"roastbot/internal/audio"
	"roastbot/internal/config"
	"roastbot/internal/listener"
	"roastbot/internal/logging"
	"roastbot/internal/metrics"
	"roastbot/internal/mode"
	"roastbot/internal/proxy"
	"roastbot/internal/speech"
	"roastbot/internal/tts"
	"roastbot/pkg/protocol"
	"roastbot/pkg/transport"
)

func main() {
	envFile := cli.StringP("env", "e", ".env", "Env file path")
	port := cli.StringP("port", "p", "", "Serial port or ws:// bridge URL (empty: autodetect)")
	logLevel := cli.StringP("log", "l", "", "Log level")
	proxyAddr := cli.String("proxy", "", "SOCKS5 proxy for TTS requests")
	metricsAddr := cli.String("metrics", "", "Serve Prometheus metrics on this address")
	policy := cli.String("policy", "", "Line policy: speak-all or ai-only")
	announce := cli.Bool("announce", false, "Speak \"Switched to <mode> mode\" on mode changes")
	duck := cli.Bool("duck", false, "Lower other audio streams while speaking")
	cli.Parse()

	logging.Setup(*logLevel)
	log.Info("Booting up")

	cfg, err := config.LoadListener(*envFile)
	if err != nil {
		log.Error("Failed to load config", "err", err)
		os.Exit(1)
	}
	if cli.CommandLine.Changed("port") {
		cfg.SerialPort = *port
	}
	if cli.CommandLine.Changed("proxy") {
		cfg.SocksProxy = *proxyAddr
	}
	if cli.CommandLine.Changed("metrics") {
		cfg.MetricsAddr = *metricsAddr
	}
	if cli.CommandLine.Changed("policy") {
		cfg.Policy = *policy
	}
	if cli.CommandLine.Changed("announce") {
		cfg.AnnounceMode = *announce
	}
	if cli.CommandLine.Changed("duck") {
		cfg.PlaybackDuck = *duck
	}
	if err := cfg.Validate(); err != nil {
		log.Error("Invalid config", "err", err)
		os.Exit(1)
	}
	if *logLevel == "" {
		logging.Setup(cfg.LogLevel)
	}

	log.Debug("Loaded config", "policy", cfg.Policy, "engine", cfg.TTSEngine)

	httpClient, err := proxy.HTTPClient(cfg.SocksProxy, cfg.TTSTimeout)
	if err != nil {
		log.Error("Failed to dial socks proxy", "proxy", cfg.SocksProxy, "err", err)
		os.Exit(1)
	}

	engine, err := tts.New(tts.Options{
		Engine:           cfg.TTSEngine,
		ElevenLabsAPIKey: cfg.ElevenLabsAPIKey,
		ElevenLabsModel:  cfg.ElevenLabsModel,
		HTTPClient:       httpClient,
	})
	if err != nil {
		log.Error("Failed to init tts", "err", err)
		os.Exit(1)
	}

	log.Debug("Loaded tts", "engine", engine.Name())

	spk := audio.NewSpeaker(audio.DefaultSampleRate)
	defer spk.Close()

	var player speech.Player = spk
	if cfg.PlaybackDuck {
		player = &audio.Ducking{
			Player: spk,
			Ducker: audio.NewDucker([]string{"roastbot"}, 10, nil),
			Factor: cfg.DuckFactor,
			Fade:   300 * time.Millisecond,
		}
	}

	initial, _ := mode.Parse(cfg.InitialMode)
	state, err := mode.NewState(cfg.Profiles(), initial)
	if err != nil {
		log.Error("Failed to init mode", "err", err)
		os.Exit(1)
	}

	link, err := transport.Open(cfg.SerialPort, transport.Options{
		Baud:        cfg.BaudRate,
		ReadTimeout: cfg.ReadTimeout,
		Settle:      cfg.Settle,
		Reconn:      cfg.Reconnect,
	})
	if err != nil {
		log.Error("Failed to open link", "port", cfg.SerialPort, "err", err)
		os.Exit(1)
	}
	defer link.Close()

	log.Info("Boot up - successful", "link", link.String(), "mode", state.Mode())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metrics.Serve(ctx, cfg.MetricsAddr)

	queue := speech.NewQueue(engine, player, speech.WithSynthTimeout(cfg.TTSTimeout))
	playCtx, abort := context.WithCancel(context.Background())
	defer abort()
	go queue.Run(playCtx)

	classifier := protocol.NewClassifier(cfg.ClassifierPolicy())
	l := listener.New(link, classifier, state, queue, listener.Config{
		Announce:     cfg.AnnounceMode,
		Clips:        cfg.EmoteClips,
		PollInterval: cfg.PollInterval,
	})
	l.CheckClips()

	if classifier.Policy().Name == protocol.PolicySpeakAll {
		l.Greet("Robot audio ready")
	}

	if err := l.Run(ctx); err != nil {
		log.Error("Listener stopped", "err", err)
	}
	stop()

	// A second signal abandons whatever is still queued.
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sig)

	log.Info("Shutting down", "pending", queue.Len())
	queue.Stop()
	select {
	case <-queue.Done():
	case <-sig:
		log.Warn("Forced shutdown")
		abort()
		<-queue.Done()
	}

	log.Info("Bye")
}
