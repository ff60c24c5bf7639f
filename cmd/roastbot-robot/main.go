package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	log "log/slog"

	cli "github.com/spf13/pflag"

	"roastbot/internal/camera"
	"roastbot/internal/config"
	"roastbot/internal/dispatch"
	"roastbot/internal/ipc"
	"roastbot/internal/logging"
	"roastbot/internal/metrics"
	"roastbot/internal/mode"
	"roastbot/internal/proxy"
	"roastbot/internal/vision"
	"roastbot/pkg/protocol"
	"roastbot/pkg/transport"
)

func main() {
	envFile := cli.StringP("env", "e", ".env", "Env file path")
	port := cli.StringP("port", "p", "", "Serial port or ws:// bridge URL")
	logLevel := cli.StringP("log", "l", "", "Log level")
	proxyAddr := cli.String("proxy", "", "SOCKS5 proxy for vision requests")
	metricsAddr := cli.String("metrics", "", "Serve Prometheus metrics on this address")
	socket := cli.String("socket", "", "Control socket path")
	cli.Parse()

	logging.Setup(*logLevel)
	log.Info("Booting up")

	cfg, err := config.LoadRobot(*envFile)
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
	if cli.CommandLine.Changed("socket") {
		cfg.ControlSocket = *socket
	}
	if *logLevel == "" {
		logging.Setup(cfg.LogLevel)
	}

	httpClient, err := proxy.HTTPClient(cfg.SocksProxy, cfg.AITimeout)
	if err != nil {
		log.Error("Failed to dial socks proxy", "proxy", cfg.SocksProxy, "err", err)
		os.Exit(1)
	}

	vis := vision.New(vision.Config{
		APIKey:     cfg.OpenRouterAPIKey,
		BaseURL:    cfg.AIBaseURL,
		Model:      cfg.AIModel,
		MaxTokens:  cfg.AIMaxTokens,
		Timeout:    cfg.AITimeout,
		HTTPClient: httpClient,
	})
	log.Debug("Loaded vision model", "model", cfg.AIModel)

	cam := camera.NewStill(cfg.CameraCommand, cfg.CameraWidth, cfg.CameraHeight)

	initial, _ := mode.Parse(cfg.InitialMode)
	state, err := mode.NewState(mode.DefaultProfiles(), initial)
	if err != nil {
		log.Error("Failed to init mode", "err", err)
		os.Exit(1)
	}

	link, err := transport.Open(cfg.SerialPort, transport.Options{
		Baud:        cfg.BaudRate,
		ReadTimeout: cfg.ReadTimeout,
		Reconn:      cfg.Reconnect,
	})
	if err != nil {
		log.Error("Failed to open serial", "port", cfg.SerialPort, "err", err)
		os.Exit(1)
	}
	defer link.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metrics.Serve(ctx, cfg.MetricsAddr)

	d := dispatch.New(link, cam, vis, state)
	d.PollInterval = cfg.PollInterval

	srv, err := ipc.Listen(cfg.ControlSocket, func(cmd string) error {
		if _, ok := protocol.ParseCommand(cmd); !ok {
			return fmt.Errorf("unknown command %q", cmd)
		}
		d.Handle(ctx, cmd)
		return nil
	})
	if err != nil {
		log.Error("Failed ipc server", "err", err)
		os.Exit(1)
	}
	defer srv.Close()

	log.Info("Boot up - successful", "link", link.String(), "mode", state.Mode())

	if cfg.SyncModeOnStart {
		d.Sync()
	}

	if err := d.Run(ctx); err != nil {
		log.Error("Dispatcher stopped", "err", err)
	}

	log.Info("Bye")
}
