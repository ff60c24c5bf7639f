package speech

import (
	"context"
	"errors"
	"fmt"
	log "log/slog"
	"sync"
	"time"

	"roastbot/internal/metrics"
)

var ErrStopped = errors.New("speech queue stopped")

type item struct {
	u    Utterance
	stop bool
}

// Queue is an unbounded FIFO of utterances drained by a single consumer.
// Enqueue never blocks; Run plays one item at a time to completion.
type Queue struct {
	synth   Synthesizer
	player  Player
	timeout time.Duration

	mu      sync.Mutex
	items   []item
	stopped bool

	wake chan struct{}
	done chan struct{}
}

type Option func(*Queue)

// WithSynthTimeout bounds each synthesis call.
func WithSynthTimeout(d time.Duration) Option {
	return func(q *Queue) { q.timeout = d }
}

func NewQueue(synth Synthesizer, player Player, opts ...Option) *Queue {
	q := &Queue{
		synth:   synth,
		player:  player,
		timeout: 30 * time.Second,
		wake:    make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
	for _, o := range opts {
		o(q)
	}
	return q
}

func (q *Queue) Enqueue(u Utterance) error {
	if u.Queued.IsZero() {
		u.Queued = time.Now()
	}
	return q.push(item{u: u})
}

// Stop appends the stop sentinel. Items already queued are still played;
// later Enqueue calls fail with ErrStopped.
func (q *Queue) Stop() {
	if err := q.push(item{stop: true}); err != nil {
		log.Debug("Speech queue already stopping")
	}
}

func (q *Queue) push(it item) error {
	q.mu.Lock()
	if q.stopped {
		q.mu.Unlock()
		if !it.stop {
			metrics.Utterances.WithLabelValues("dropped").Inc()
		}
		return ErrStopped
	}
	if it.stop {
		q.stopped = true
	}
	q.items = append(q.items, it)
	depth := len(q.items)
	q.mu.Unlock()

	if !it.stop {
		metrics.Utterances.WithLabelValues("enqueued").Inc()
	}
	metrics.QueueDepth.Set(float64(depth))

	select {
	case q.wake <- struct{}{}:
	default:
	}
	return nil
}

// Len reports items waiting, excluding the one playing.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Done is closed when Run returns.
func (q *Queue) Done() <-chan struct{} {
	return q.done
}

// Run is the consumer loop. It returns after dequeuing the stop sentinel,
// or early when ctx is cancelled (in which case playback is interrupted).
func (q *Queue) Run(ctx context.Context) {
	defer close(q.done)

	for {
		it, ok := q.next(ctx)
		if !ok {
			log.Debug("Speech queue aborted", "pending", q.Len())
			return
		}
		if it.stop {
			log.Debug("Speech queue drained")
			return
		}

		if err := q.play(ctx, it.u); err != nil {
			metrics.Utterances.WithLabelValues("failed").Inc()
			log.Error("Failed to voice out", "text", it.u.Text, "err", err)
			continue
		}
		metrics.Utterances.WithLabelValues("played").Inc()
	}
}

func (q *Queue) next(ctx context.Context) (item, bool) {
	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			it := q.items[0]
			q.items[0] = item{}
			q.items = q.items[1:]
			depth := len(q.items)
			q.mu.Unlock()

			metrics.QueueDepth.Set(float64(depth))
			return it, true
		}
		q.mu.Unlock()

		select {
		case <-ctx.Done():
			return item{}, false
		case <-q.wake:
		}
	}
}

func (q *Queue) play(ctx context.Context, u Utterance) error {
	switch u.Kind {
	case Clip:
		log.Info("Playing clip", "clip", u.Text, "path", u.Clip)
		return q.player.PlayFile(ctx, u.Clip)

	case Speech:
		log.Info("Speaking", "voice", u.Voice.Name, "text", u.Text)

		sctx, cancel := context.WithTimeout(ctx, q.timeout)
		start := time.Now()
		a, err := q.synth.Synthesize(sctx, u.Text, u.Voice)
		cancel()
		metrics.ObserveSince(metrics.TTSLatency, start)
		if err != nil {
			return fmt.Errorf("synthesize: %w", err)
		}
		if len(a.Data) == 0 {
			return errors.New("synthesize: empty audio")
		}

		return q.player.Play(ctx, a)

	default:
		return fmt.Errorf("unknown utterance kind %d", u.Kind)
	}
}
