package speech

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"roastbot/internal/metrics"
	"roastbot/internal/mode"
)

var (
	adam  = mode.VoiceProfile{Name: "Adam", VoiceID: mode.VoiceAdam}
	sarah = mode.VoiceProfile{Name: "Sarah", VoiceID: mode.VoiceSarah}
)

type fakeSynth struct {
	fail map[string]error
}

func (f *fakeSynth) Synthesize(ctx context.Context, text string, voice mode.VoiceProfile) (Audio, error) {
	if err := f.fail[text]; err != nil {
		return Audio{}, err
	}
	return Audio{Data: []byte(voice.VoiceID + "|" + text), Format: "mp3"}, nil
}

type interval struct {
	what       string
	start, end time.Time
}

// recordingPlayer logs playback intervals and flags any overlap.
type recordingPlayer struct {
	delay time.Duration
	gate  chan struct{}

	mu       sync.Mutex
	playing  int
	overlap  bool
	played   []interval
	failPath string
}

func (p *recordingPlayer) run(ctx context.Context, what string) error {
	p.mu.Lock()
	p.playing++
	if p.playing > 1 {
		p.overlap = true
	}
	p.mu.Unlock()

	start := time.Now()
	if p.gate != nil {
		select {
		case <-p.gate:
		case <-ctx.Done():
		}
	}
	time.Sleep(p.delay)

	p.mu.Lock()
	p.playing--
	p.played = append(p.played, interval{what: what, start: start, end: time.Now()})
	p.mu.Unlock()
	return nil
}

func (p *recordingPlayer) Play(ctx context.Context, a Audio) error {
	return p.run(ctx, string(a.Data))
}

func (p *recordingPlayer) PlayFile(ctx context.Context, path string) error {
	if path == p.failPath {
		return errors.New("no such clip")
	}
	return p.run(ctx, "clip:"+path)
}

func (p *recordingPlayer) log() []interval {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]interval(nil), p.played...)
}

func names(iv []interval) []string {
	out := make([]string, 0, len(iv))
	for _, i := range iv {
		out = append(out, i.what)
	}
	return out
}

func waitDone(t *testing.T, q *Queue) {
	t.Helper()
	select {
	case <-q.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("queue consumer did not exit")
	}
}

func TestQueue_SerializedFIFO(t *testing.T) {
	defer goleak.VerifyNone(t)

	player := &recordingPlayer{delay: 5 * time.Millisecond}
	q := NewQueue(&fakeSynth{}, player)
	go q.Run(context.Background())

	want := []string{}
	for _, s := range []string{"one", "two", "three", "four", "five"} {
		require.NoError(t, q.Enqueue(Say(s, adam)))
		want = append(want, mode.VoiceAdam+"|"+s)
	}
	q.Stop()
	waitDone(t, q)

	got := player.log()
	assert.Equal(t, want, names(got))
	assert.False(t, player.overlap)
	for i := 1; i < len(got); i++ {
		assert.False(t, got[i].start.Before(got[i-1].end), "item %d started before %d ended", i, i-1)
	}
}

func TestQueue_EnqueueNeverBlocks(t *testing.T) {
	defer goleak.VerifyNone(t)

	player := &recordingPlayer{gate: make(chan struct{})}
	q := NewQueue(&fakeSynth{}, player)
	go q.Run(context.Background())

	done := make(chan struct{})
	go func() {
		for i := 0; i < 1000; i++ {
			q.Enqueue(Say("line", adam))
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("enqueue blocked behind playback")
	}
	assert.GreaterOrEqual(t, q.Len(), 999)

	close(player.gate)
	q.Stop()
	waitDone(t, q)
	assert.Len(t, player.log(), 1000)
}

func TestQueue_FailureDoesNotHaltPipeline(t *testing.T) {
	defer goleak.VerifyNone(t)

	failedBefore := testutil.ToFloat64(metrics.Utterances.WithLabelValues("failed"))

	player := &recordingPlayer{failPath: "missing.mp3"}
	synth := &fakeSynth{fail: map[string]error{"A": errors.New("tts returned 500")}}
	q := NewQueue(synth, player)
	go q.Run(context.Background())

	q.Enqueue(Say("A", adam))
	q.Enqueue(PlayClip("67", "missing.mp3"))
	q.Enqueue(Say("B", sarah))
	q.Enqueue(PlayClip("67", "67_emote.mp3"))
	q.Stop()
	waitDone(t, q)

	assert.Equal(t, []string{mode.VoiceSarah + "|B", "clip:67_emote.mp3"}, names(player.log()))
	assert.Equal(t, failedBefore+2, testutil.ToFloat64(metrics.Utterances.WithLabelValues("failed")))
}

func TestQueue_StopFinishesInFlightAndRejectsLater(t *testing.T) {
	defer goleak.VerifyNone(t)

	player := &recordingPlayer{gate: make(chan struct{})}
	q := NewQueue(&fakeSynth{}, player)
	go q.Run(context.Background())

	q.Enqueue(Say("in flight", adam))
	q.Enqueue(Say("queued", adam))
	q.Stop()
	assert.ErrorIs(t, q.Enqueue(Say("too late", adam)), ErrStopped)

	select {
	case <-q.Done():
		t.Fatal("consumer exited mid-playback")
	case <-time.After(50 * time.Millisecond):
	}

	close(player.gate)
	waitDone(t, q)
	assert.Equal(t, []string{mode.VoiceAdam + "|in flight", mode.VoiceAdam + "|queued"}, names(player.log()))
}

func TestQueue_VoiceBoundAtEnqueue(t *testing.T) {
	defer goleak.VerifyNone(t)

	state, err := mode.NewState(mode.DefaultProfiles(), mode.Evil)
	require.NoError(t, err)

	player := &recordingPlayer{gate: make(chan struct{})}
	q := NewQueue(&fakeSynth{}, player)
	go q.Run(context.Background())

	q.Enqueue(Say("before", state.Current().Voice))
	state.Set("therapy")
	q.Enqueue(Say("after", state.Current().Voice))

	close(player.gate)
	q.Stop()
	waitDone(t, q)

	assert.Equal(t, []string{mode.VoiceAdam + "|before", mode.VoiceSarah + "|after"}, names(player.log()))
}

func TestQueue_ContextCancelAborts(t *testing.T) {
	defer goleak.VerifyNone(t)

	ctx, cancel := context.WithCancel(context.Background())
	q := NewQueue(&fakeSynth{}, &recordingPlayer{})
	go q.Run(ctx)

	cancel()
	waitDone(t, q)
}
