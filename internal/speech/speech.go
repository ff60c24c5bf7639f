package speech

import (
	"context"
	"time"

	"roastbot/internal/mode"
)

type Kind uint8

const (
	// Speech is text to synthesize in the bound voice.
	Speech Kind = iota
	// Clip is a pre-recorded audio file.
	Clip
)

// Utterance is a unit of playback. Voice is captured when the utterance
// is created, not when it is played.
type Utterance struct {
	Kind   Kind
	Text   string
	Voice  mode.VoiceProfile
	Clip   string
	Queued time.Time
}

func Say(text string, voice mode.VoiceProfile) Utterance {
	return Utterance{Kind: Speech, Text: text, Voice: voice, Queued: time.Now()}
}

// PlayClip plays the file at path; label names it in logs.
func PlayClip(label, path string) Utterance {
	return Utterance{Kind: Clip, Text: label, Clip: path, Queued: time.Now()}
}

// Audio is encoded audio ready for playback. Format is a file extension
// style name: "mp3", "wav" or "ogg".
type Audio struct {
	Data   []byte
	Format string
}

type Synthesizer interface {
	Synthesize(ctx context.Context, text string, voice mode.VoiceProfile) (Audio, error)
}

// Player blocks until the audio has finished playing or ctx is done.
type Player interface {
	Play(ctx context.Context, a Audio) error
	PlayFile(ctx context.Context, path string) error
}
