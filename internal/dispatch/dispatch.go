// Package dispatch answers ROAST and TOGGLE commands on the robot side.
package dispatch

import (
	"context"
	"sync"
	"time"

	log "log/slog"

	"github.com/google/uuid"

	"roastbot/internal/metrics"
	"roastbot/internal/mode"
	"roastbot/internal/vision"
	"roastbot/pkg/protocol"
	"roastbot/pkg/transport"
)

const (
	DefaultPollInterval = 10 * time.Millisecond
	DefaultMaxFailures  = 5
)

type Camera interface {
	Capture(ctx context.Context) ([]byte, error)
}

type Vision interface {
	Describe(ctx context.Context, p mode.Persona, jpeg []byte) (string, error)
}

type Dispatcher struct {
	link   transport.Link
	camera Camera
	vision Vision
	state  *mode.State

	// mu serializes commands: the camera and the mode are single-instance.
	mu sync.Mutex

	PollInterval time.Duration
	// MaxFailures is how many read failures in a row trigger a reconnect.
	MaxFailures  int
	// RoastTimeout bounds capture plus inference for one ROAST.
	RoastTimeout time.Duration
}

func New(link transport.Link, camera Camera, vision Vision, state *mode.State) *Dispatcher {
	return &Dispatcher{
		link:         link,
		camera:       camera,
		vision:       vision,
		state:        state,
		PollInterval: DefaultPollInterval,
		MaxFailures:  DefaultMaxFailures,
		RoastTimeout: 45 * time.Second,
	}
}

// Sync transmits the current mode so a freshly started listener follows it.
func (d *Dispatcher) Sync() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.transmit(log.Default(), protocol.ModeLine(d.state.Mode().String()))
}

// Handle runs one command line to completion. Concurrent callers wait
// their turn. Unknown lines are dropped.
func (d *Dispatcher) Handle(ctx context.Context, line string) {
	cmd, ok := protocol.ParseCommand(line)
	if !ok {
		log.Debug("Unknown command", "line", line)
		metrics.Commands.WithLabelValues("unknown").Inc()
		return
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	metrics.Commands.WithLabelValues(string(cmd)).Inc()
	switch cmd {
	case protocol.CmdRoast:
		d.roast(ctx)
	case protocol.CmdToggle:
		d.toggle()
	}
}

func (d *Dispatcher) roast(ctx context.Context) {
	logger := log.With("req", uuid.NewString())
	start := time.Now()

	if d.RoastTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.RoastTimeout)
		defer cancel()
	}

	prof := d.state.Current()
	logger.Info("Roasting", "mode", prof.Mode)

	reply := d.answer(ctx, logger, prof.Persona)
	d.transmit(logger, protocol.OneLine(reply))
	logger.Info("Roast sent", "took", time.Since(start).Round(time.Millisecond))
}

func (d *Dispatcher) answer(ctx context.Context, logger *log.Logger, p mode.Persona) string {
	img, err := d.camera.Capture(ctx)
	if err != nil {
		logger.Error("Failed to capture", "err", err)
		return vision.FallbackBlind
	}
	logger.Debug("Captured", "bytes", len(img))

	text, err := d.vision.Describe(ctx, p, img)
	if err != nil {
		logger.Error("Failed to get reply", "err", err)
		return vision.Fallback(err)
	}
	logger.Info("Model says", "text", text)
	return text
}

func (d *Dispatcher) toggle() {
	p := d.state.Toggle()
	log.Info("Mode switched", "mode", p.Mode)
	d.transmit(log.Default(), protocol.ModeLine(p.Mode.String()))
}

func (d *Dispatcher) transmit(logger *log.Logger, line string) {
	if err := d.link.WriteLine(line); err != nil {
		metrics.LinkErrors.WithLabelValues("write").Inc()
		logger.Error("Failed to transmit", "line", line, "err", err)
	}
}

// Run reads command lines until ctx is done. Each line is handled before
// the next read, so commands are never pipelined. Failed reads are retried
// after a poll interval; a run of them or a closed link reconnects.
func (d *Dispatcher) Run(ctx context.Context) error {
	log.Info("Waiting for commands", "link", d.link.String(), "mode", d.state.Mode())

	failures := 0
	for {
		if ctx.Err() != nil {
			return nil
		}

		in := d.link.Read()
		switch in.Kind {
		case transport.ReadOK:
			failures = 0
			for _, line := range in.Lines {
				d.Handle(ctx, line)
			}
			continue

		case transport.ReadIdle:
			failures = 0

		case transport.ReadFailure:
			failures++
			metrics.LinkErrors.WithLabelValues("read").Inc()
			log.Warn("Serial read failed", "err", in.Err, "failures", failures)
			if failures >= max(d.MaxFailures, 1) {
				failures = 0
				if err := d.reconnect(ctx, in.Err); err != nil {
					return nil
				}
			}

		case transport.ConnClosed:
			failures = 0
			if err := d.reconnect(ctx, in.Err); err != nil {
				return nil
			}
		}

		t := time.NewTimer(d.PollInterval)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil
		case <-t.C:
		}
	}
}

func (d *Dispatcher) reconnect(ctx context.Context, cause error) error {
	metrics.LinkErrors.WithLabelValues("reconnect").Inc()
	log.Warn("Link lost, reconnecting", "link", d.link.String(), "err", cause)

	if err := d.link.Reconnect(ctx); err != nil {
		return err
	}
	log.Info("Link restored", "link", d.link.String())
	return nil
}
