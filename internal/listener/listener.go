// Package listener turns the robot's serial chatter into speech.
package listener

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	log "log/slog"

	"roastbot/internal/metrics"
	"roastbot/internal/mode"
	"roastbot/internal/speech"
	"roastbot/pkg/protocol"
	"roastbot/pkg/transport"
)

const (
	DefaultPollInterval = 10 * time.Millisecond
	DefaultMaxFailures  = 5
)

// Enqueuer accepts utterances without blocking.
type Enqueuer interface {
	Enqueue(u speech.Utterance) error
}

type Config struct {
	// Announce speaks "Switched to <mode> mode" after a mode change.
	Announce bool
	// Clips maps emote ids to audio files.
	Clips        map[string]string
	PollInterval time.Duration
	// MaxFailures is how many read failures in a row trigger a reconnect.
	MaxFailures int
}

type Listener struct {
	link       transport.Link
	classifier *protocol.Classifier
	state      *mode.State
	queue      Enqueuer
	cfg        Config
}

func New(link transport.Link, classifier *protocol.Classifier, state *mode.State, queue Enqueuer, cfg Config) *Listener {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = DefaultMaxFailures
	}
	return &Listener{
		link:       link,
		classifier: classifier,
		state:      state,
		queue:      queue,
		cfg:        cfg,
	}
}

// CheckClips warns about configured clips that are not on disk.
func (l *Listener) CheckClips() {
	for id, path := range l.cfg.Clips {
		if _, err := os.Stat(path); err != nil {
			log.Warn("Emote clip missing", "emote", id, "path", path, "err", err)
		}
	}
}

// Greet queues the startup line in the current voice.
func (l *Listener) Greet(text string) {
	l.say(text)
}

// Run polls the link until ctx is done. Read failures are absorbed; a
// closed link or a run of failures triggers a reconnect.
func (l *Listener) Run(ctx context.Context) error {
	log.Info("Listening", "link", l.link.String(), "policy", l.classifier.Policy().Name)

	failures := 0
	for {
		if ctx.Err() != nil {
			return nil
		}

		in := l.link.Read()
		switch in.Kind {
		case transport.ReadOK:
			failures = 0
			for _, line := range in.Lines {
				l.Handle(line)
			}

		case transport.ReadIdle:
			failures = 0
			if !l.pause(ctx) {
				return nil
			}

		case transport.ReadFailure:
			failures++
			metrics.LinkErrors.WithLabelValues("read").Inc()
			log.Warn("Serial read failed", "err", in.Err, "failures", failures)
			if failures >= l.cfg.MaxFailures {
				failures = 0
				if err := l.reconnect(ctx, in.Err); err != nil {
					return nil
				}
			}
			if !l.pause(ctx) {
				return nil
			}

		case transport.ConnClosed:
			failures = 0
			if err := l.reconnect(ctx, in.Err); err != nil {
				return nil
			}
			if !l.pause(ctx) {
				return nil
			}
		}
	}
}

// pause waits one poll interval; false means ctx is done.
func (l *Listener) pause(ctx context.Context) bool {
	t := time.NewTimer(l.cfg.PollInterval)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func (l *Listener) reconnect(ctx context.Context, cause error) error {
	metrics.LinkErrors.WithLabelValues("reconnect").Inc()
	log.Warn("Link lost, reconnecting", "link", l.link.String(), "err", cause)

	if err := l.link.Reconnect(ctx); err != nil {
		return err
	}
	log.Info("Link restored", "link", l.link.String())
	return nil
}

// Handle classifies one line and routes it. It never blocks on playback.
func (l *Listener) Handle(line string) {
	ev, rule := l.classifier.Explain(line)
	metrics.LinesClassified.WithLabelValues(ev.Kind.String()).Inc()

	switch ev.Kind {
	case protocol.Ignored:
		log.Debug("Ignored line", "line", line, "rule", rule)

	case protocol.ModeChange:
		l.switchMode(ev.Value)

	case protocol.EmoteTrigger:
		l.emote(ev.Value)

	case protocol.StatusDone, protocol.AiResponse:
		log.Info("Robot said", "kind", ev.Kind.String(), "text", ev.Value)
		l.say(ev.Value)
	}
}

func (l *Listener) switchMode(name string) {
	p, changed, ok := l.state.Set(name)
	switch {
	case !ok:
		metrics.ModeChanges.WithLabelValues("unknown").Inc()
		log.Warn("Unknown mode", "mode", name)
		return
	case !changed:
		metrics.ModeChanges.WithLabelValues("unchanged").Inc()
		log.Debug("Mode unchanged", "mode", p.Mode)
		return
	}

	metrics.ModeChanges.WithLabelValues("applied").Inc()
	log.Info("Mode changed", "mode", p.Mode, "voice", p.Voice.Name)

	if l.cfg.Announce {
		l.enqueue(speech.Say(fmt.Sprintf("Switched to %s mode", p.Mode), p.Voice))
	}
}

func (l *Listener) emote(id string) {
	path, ok := l.cfg.Clips[id]
	if !ok {
		log.Debug("No clip for emote", "emote", id)
		return
	}
	log.Info("Emote", "emote", id)
	l.enqueue(speech.PlayClip("emote "+id, path))
}

// say binds the voice at enqueue time so a later mode change does not
// re-voice queued lines.
func (l *Listener) say(text string) {
	l.enqueue(speech.Say(text, l.state.Current().Voice))
}

func (l *Listener) enqueue(u speech.Utterance) {
	if err := l.queue.Enqueue(u); err != nil {
		if errors.Is(err, speech.ErrStopped) {
			log.Debug("Dropped utterance after shutdown", "text", u.Text)
			return
		}
		log.Error("Failed to queue utterance", "err", err)
	}
}
