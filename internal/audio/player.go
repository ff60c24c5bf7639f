// Package audio plays synthesized speech and clips on the local speaker.
package audio

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/faiface/beep"
	"github.com/faiface/beep/mp3"
	"github.com/faiface/beep/speaker"
	"github.com/faiface/beep/vorbis"
	"github.com/faiface/beep/wav"

	"roastbot/internal/speech"
)

const DefaultSampleRate = beep.SampleRate(44100)

// Speaker owns the process-wide output device. The device is opened on
// first use at a fixed rate and everything is resampled to it.
type Speaker struct {
	rate    beep.SampleRate
	once    sync.Once
	initErr error
	opened  bool
}

func NewSpeaker(rate beep.SampleRate) *Speaker {
	if rate <= 0 {
		rate = DefaultSampleRate
	}
	return &Speaker{rate: rate}
}

func (s *Speaker) init() error {
	s.once.Do(func() {
		s.initErr = speaker.Init(s.rate, s.rate.N(time.Second/10))
		s.opened = s.initErr == nil
	})
	return s.initErr
}

// Close releases the output device if it was ever opened. Call it after
// the last Play has returned.
func (s *Speaker) Close() {
	s.once.Do(func() {})
	if s.opened {
		speaker.Close()
	}
}

func (s *Speaker) Play(ctx context.Context, a speech.Audio) error {
	stream, format, err := decode(io.NopCloser(bytes.NewReader(a.Data)), a.Format)
	if err != nil {
		return err
	}
	defer stream.Close()
	return s.play(ctx, stream, format)
}

func (s *Speaker) PlayFile(ctx context.Context, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open clip: %w", err)
	}
	stream, format, err := decode(f, formatOf(path))
	if err != nil {
		f.Close()
		return err
	}
	defer stream.Close()
	return s.play(ctx, stream, format)
}

func (s *Speaker) play(ctx context.Context, stream beep.Streamer, format beep.Format) error {
	if err := s.init(); err != nil {
		return fmt.Errorf("init speaker: %w", err)
	}

	if format.SampleRate != s.rate {
		stream = beep.Resample(4, format.SampleRate, s.rate, stream)
	}

	done := make(chan struct{})
	speaker.Play(beep.Seq(stream, beep.Callback(func() {
		close(done)
	})))

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		speaker.Clear()
		return ctx.Err()
	}
}

func formatOf(path string) string {
	return strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
}

func decode(rc io.ReadCloser, format string) (beep.StreamSeekCloser, beep.Format, error) {
	var (
		s   beep.StreamSeekCloser
		f   beep.Format
		err error
	)
	switch format {
	case "mp3", "mpeg":
		s, f, err = mp3.Decode(rc)
	case "wav":
		s, f, err = wav.Decode(rc)
		if err == nil {
			s = closeWith(s, rc)
		}
	case "ogg":
		s, f, err = vorbis.Decode(rc)
	default:
		rc.Close()
		return nil, beep.Format{}, fmt.Errorf("unsupported audio format %q", format)
	}
	if err != nil {
		rc.Close()
		return nil, beep.Format{}, fmt.Errorf("decode %s: %w", format, err)
	}
	return s, f, nil
}

// wav.Decode takes a plain reader and never closes it.
type wavCloser struct {
	beep.StreamSeekCloser
	src io.Closer
}

func closeWith(s beep.StreamSeekCloser, src io.Closer) beep.StreamSeekCloser {
	return wavCloser{StreamSeekCloser: s, src: src}
}

func (w wavCloser) Close() error {
	err := w.StreamSeekCloser.Close()
	if cerr := w.src.Close(); err == nil {
		err = cerr
	}
	return err
}
