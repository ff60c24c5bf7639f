package tts

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"roastbot/internal/mode"
	"roastbot/internal/speech"
)

// Espeak synthesizes locally with the espeak-ng binary, which writes a
// WAV stream to stdout.
type Espeak struct {
	Binary string
	Rate   int
}

func NewEspeak() *Espeak {
	return &Espeak{Binary: "espeak-ng", Rate: 150}
}

func (e *Espeak) Name() string {
	return "espeak"
}

func (e *Espeak) args(text string, voice mode.VoiceProfile) []string {
	args := []string{"--stdout"}
	if voice.Local != "" {
		args = append(args, "-v", voice.Local)
	}
	if e.Rate > 0 {
		args = append(args, "-s", strconv.Itoa(e.Rate))
	}
	// "--" keeps text starting with a dash from being parsed as a flag
	return append(args, "--", text)
}

func (e *Espeak) Synthesize(ctx context.Context, text string, voice mode.VoiceProfile) (speech.Audio, error) {
	if strings.TrimSpace(text) == "" {
		return speech.Audio{}, fmt.Errorf("espeak: empty text")
	}

	cmd := exec.CommandContext(ctx, e.Binary, e.args(text, voice)...)
	var out, stderr bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return speech.Audio{}, fmt.Errorf("%s: %w (%s)", e.Binary, err, strings.TrimSpace(stderr.String()))
	}

	return speech.Audio{Data: out.Bytes(), Format: "wav"}, nil
}
