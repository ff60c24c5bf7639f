package metrics

import (
	"context"
	"errors"
	log "log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Listener metrics
	LinesClassified = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "roastbot_lines_classified_total",
		Help: "Serial lines classified, by event kind",
	}, []string{"kind"})

	ModeChanges = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "roastbot_mode_changes_total",
		Help: "Mode change events, by outcome (applied, unchanged, unknown)",
	}, []string{"outcome"})

	LinkErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "roastbot_link_errors_total",
		Help: "Transport read/write failures and reconnects",
	}, []string{"type"})

	// Speech queue metrics
	QueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "roastbot_speech_queue_depth",
		Help: "Utterances waiting to be played",
	})

	Utterances = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "roastbot_utterances_total",
		Help: "Utterances by stage (enqueued, played, failed, dropped)",
	}, []string{"stage"})

	TTSLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "roastbot_tts_latency_seconds",
		Help:    "Speech synthesis latency in seconds",
		Buckets: []float64{0.1, 0.25, 0.5, 1.0, 2.0, 5.0, 10.0},
	})

	// Dispatcher metrics
	Commands = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "roastbot_commands_total",
		Help: "Dispatcher commands handled",
	}, []string{"command"})

	VisionRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "roastbot_vision_requests_total",
		Help: "Vision model requests by status (ok, empty, timeout, error or HTTP code)",
	}, []string{"status"})

	VisionLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "roastbot_vision_latency_seconds",
		Help:    "Vision model round trip in seconds",
		Buckets: []float64{0.5, 1.0, 2.0, 5.0, 10.0, 20.0, 30.0},
	})

	CameraFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "roastbot_camera_failures_total",
		Help: "Failed still captures",
	})
)

// ObserveSince records the seconds elapsed since start on h.
func ObserveSince(h prometheus.Observer, start time.Time) {
	h.Observe(time.Since(start).Seconds())
}

// Serve exposes /metrics on addr until ctx is done. An empty addr
// disables the endpoint.
func Serve(ctx context.Context, addr string) {
	if addr == "" {
		return
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	go func() {
		log.Info("Serving metrics", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Metrics server failed", "addr", addr, "err", err)
		}
	}()
}
