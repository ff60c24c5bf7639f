// Package camera grabs single JPEG stills with the Raspberry Pi camera tools.
package camera

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	log "log/slog"

	"roastbot/internal/metrics"
)

const (
	DefaultCommand = "rpicam-still"
	legacyCommand  = "libcamera-still"
)

var ErrNoCamera = errors.New("no camera command available")

type Camera interface {
	Capture(ctx context.Context) ([]byte, error)
}

// Still shells out to rpicam-still (or libcamera-still on older images).
// Captures are serialized; the sensor can only be opened once.
type Still struct {
	mu       sync.Mutex
	commands []string
	width    int
	height   int
	warmup   time.Duration
	dir      string
	lookPath func(string) (string, error)
}

func NewStill(command string, width, height int) *Still {
	cmds := []string{DefaultCommand, legacyCommand}
	if command != "" && command != DefaultCommand {
		cmds = append([]string{command}, cmds...)
	}
	return &Still{
		commands: cmds,
		width:    width,
		height:   height,
		warmup:   time.Second,
		lookPath: exec.LookPath,
	}
}

func (s *Still) binary() (string, error) {
	for _, c := range s.commands {
		if p, err := s.lookPath(c); err == nil {
			return p, nil
		}
	}
	return "", fmt.Errorf("%w: tried %s", ErrNoCamera, strings.Join(s.commands, ", "))
}

func (s *Still) args(out string) []string {
	args := []string{"-o", out, "--nopreview", "--immediate", "-t", strconv.FormatInt(s.warmup.Milliseconds(), 10)}
	if s.width > 0 && s.height > 0 {
		args = append(args, "--width", strconv.Itoa(s.width), "--height", strconv.Itoa(s.height))
	}
	return args
}

func (s *Still) Capture(ctx context.Context) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.capture(ctx)
	if err != nil {
		metrics.CameraFailures.Inc()
		return nil, err
	}
	return data, nil
}

func (s *Still) capture(ctx context.Context) ([]byte, error) {
	bin, err := s.binary()
	if err != nil {
		return nil, err
	}

	f, err := os.CreateTemp(s.dir, "roastbot-*.jpg")
	if err != nil {
		return nil, fmt.Errorf("temp file: %w", err)
	}
	path := f.Name()
	f.Close()
	defer os.Remove(path)

	cmd := exec.CommandContext(ctx, bin, s.args(path)...)
	if out, err := cmd.CombinedOutput(); err != nil {
		return nil, fmt.Errorf("%s: %w (%s)", filepath.Base(bin), err, strings.TrimSpace(string(out)))
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read capture: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%s produced an empty image", filepath.Base(bin))
	}

	log.Debug("Captured still", "bytes", len(data), "cmd", filepath.Base(bin))
	return data, nil
}
