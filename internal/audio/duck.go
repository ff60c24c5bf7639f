package audio

import (
	"context"
	"fmt"
	"math"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	log "log/slog"

	"roastbot/internal/speech"
)

const maxVolume = 150

var percentRe = regexp.MustCompile(`(\d+)\s*%`)

type sinkInput struct {
	ID      int
	Volume  int
	AppName string
}

type fade struct {
	id   int
	from int
	to   int
}

// Runner executes pactl with the given arguments.
type Runner func(ctx context.Context, args ...string) ([]byte, error)

func pactl(ctx context.Context, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, "pactl", args...).Output()
}

// Ducker lowers every PulseAudio sink input except our own while the robot
// is talking, and restores them afterwards.
type Ducker struct {
	mu        sync.Mutex
	run       Runner
	self      []string
	minVolume int
	saved     map[int]int
	active    bool
}

// NewDucker leaves alone any stream whose application.name contains one of
// self. run may be nil to use the real pactl binary.
func NewDucker(self []string, minVolume int, run Runner) *Ducker {
	if run == nil {
		run = pactl
	}
	return &Ducker{
		run:       run,
		self:      append([]string(nil), self...),
		minVolume: clampVolume(minVolume),
		saved:     make(map[int]int),
	}
}

func (d *Ducker) Duck(ctx context.Context, factor float64, over time.Duration) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.active {
		return nil
	}

	inputs, err := d.list(ctx)
	if err != nil {
		return err
	}

	d.saved = make(map[int]int)
	var fades []fade
	for _, in := range inputs {
		if d.isSelf(in) {
			continue
		}
		to := int(math.Round(float64(in.Volume) * factor))
		if to < d.minVolume {
			to = d.minVolume
		}
		d.saved[in.ID] = in.Volume
		fades = append(fades, fade{id: in.ID, from: in.Volume, to: clampVolume(to)})
	}

	if err := d.fade(ctx, fades, over); err != nil {
		return err
	}
	d.active = true
	return nil
}

// Restore fades ducked streams back. Streams that appeared after Duck are
// not touched.
func (d *Ducker) Restore(ctx context.Context, over time.Duration) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.active {
		return nil
	}

	inputs, err := d.list(ctx)
	if err != nil {
		return err
	}

	var fades []fade
	for _, in := range inputs {
		orig, ok := d.saved[in.ID]
		if !ok || d.isSelf(in) {
			continue
		}
		fades = append(fades, fade{id: in.ID, from: in.Volume, to: orig})
	}

	if err := d.fade(ctx, fades, over); err != nil {
		return err
	}
	d.saved = make(map[int]int)
	d.active = false
	return nil
}

func (d *Ducker) isSelf(in sinkInput) bool {
	for _, name := range d.self {
		if name != "" && strings.Contains(in.AppName, name) {
			return true
		}
	}
	return false
}

func (d *Ducker) list(ctx context.Context) ([]sinkInput, error) {
	out, err := d.run(ctx, "list", "sink-inputs")
	if err != nil {
		return nil, fmt.Errorf("pactl list sink-inputs: %w", err)
	}
	return parseSinkInputs(string(out)), nil
}

func (d *Ducker) set(ctx context.Context, id, percent int) error {
	_, err := d.run(ctx, "set-sink-input-volume", strconv.Itoa(id), fmt.Sprintf("%d%%", clampVolume(percent)))
	if err != nil {
		return fmt.Errorf("set volume id=%d: %w", id, err)
	}
	return nil
}

func (d *Ducker) fade(ctx context.Context, fades []fade, over time.Duration) error {
	if len(fades) == 0 {
		return nil
	}
	if over <= 0 {
		for _, f := range fades {
			if err := d.set(ctx, f.id, f.to); err != nil {
				return err
			}
		}
		return nil
	}

	const minStep = 10 * time.Millisecond
	steps := max(int(over/minStep), 1)
	step := over / time.Duration(steps)

	for i := 0; i <= steps; i++ {
		frac := float64(i) / float64(steps)
		for _, f := range fades {
			v := int(math.Round(float64(f.from) + float64(f.to-f.from)*frac))
			if err := d.set(ctx, f.id, v); err != nil {
				return err
			}
		}
		if i == steps {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(step):
		}
	}
	return nil
}

func clampVolume(v int) int {
	return min(max(v, 0), maxVolume)
}

// parseSinkInputs reads the output of `pactl list sink-inputs`.
func parseSinkInputs(text string) []sinkInput {
	blocks := strings.Split(text, "Sink Input #")
	var res []sinkInput

	for _, block := range blocks[1:] {
		head, body, ok := strings.Cut(block, "\n")
		if !ok {
			continue
		}
		id, err := strconv.Atoi(strings.TrimSpace(head))
		if err != nil {
			continue
		}

		in := sinkInput{ID: id}
		for _, line := range strings.Split(body, "\n") {
			line = strings.TrimSpace(line)
			switch {
			case strings.HasPrefix(line, "Volume:") && in.Volume == 0:
				if m := percentRe.FindStringSubmatch(line); m != nil {
					in.Volume, _ = strconv.Atoi(m[1])
				}
			case strings.HasPrefix(line, "application.name =") && in.AppName == "":
				_, rest, _ := strings.Cut(line, `"`)
				in.AppName, _, _ = strings.Cut(rest, `"`)
			}
		}
		if in.Volume == 0 && in.AppName == "" {
			continue
		}
		res = append(res, in)
	}
	return res
}

// Ducking wraps a player so other streams are lowered while it talks.
type Ducking struct {
	speech.Player
	Ducker *Ducker
	Factor float64
	Fade   time.Duration
}

func (p *Ducking) Play(ctx context.Context, a speech.Audio) error {
	p.duck(ctx)
	defer p.restore()
	return p.Player.Play(ctx, a)
}

func (p *Ducking) PlayFile(ctx context.Context, path string) error {
	p.duck(ctx)
	defer p.restore()
	return p.Player.PlayFile(ctx, path)
}

// Ducking failures never block playback.
func (p *Ducking) duck(ctx context.Context) {
	if err := p.Ducker.Duck(ctx, p.Factor, p.Fade); err != nil {
		log.Warn("Failed to duck other streams", "err", err)
	}
}

func (p *Ducking) restore() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second+p.Fade)
	defer cancel()
	if err := p.Ducker.Restore(ctx, p.Fade); err != nil {
		log.Warn("Failed to restore other streams", "err", err)
	}
}
