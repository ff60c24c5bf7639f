package protocol

import (
	"fmt"
	"strings"
)

const doneMarker = "DONE"

const (
	PolicySpeakAll = "speak-all"
	PolicyAIOnly   = "ai-only"
)

// BaseNoise is the diagnostic chatter the gateway interleaves with payload.
var BaseNoise = []string{
	"════",
	"═══",
	"Sent:",
	"Send status:",
	"RESPONSE FROM ROBOT:",
	"FROM GATEWAY:",
	"To Gateway:",
	"Ready!",
	"Press buttons",
	"GPIO",
	"ESP32",
	"MAC:",
	"ESP-NOW",
	"peer",
	"Waiting",
}

// Policy selects which lines are worth speaking.
type Policy struct {
	Name string
	// Noise lists literal substrings; a line containing any of them is
	// dropped before every other rule.
	Noise []string
	// MinLength is the minimum rune count of a free-text line.
	MinLength int
	// SpeakStatus turns DONE lines into StatusDone events instead of
	// dropping them.
	SpeakStatus bool
	// Emotes are the ids recognised in "EMOTE <id> DONE" sentinels.
	Emotes []string
}

func SpeakAll() Policy {
	return Policy{
		Name:        PolicySpeakAll,
		Noise:       append([]string(nil), BaseNoise...),
		MinLength:   16,
		SpeakStatus: true,
	}
}

func AIOnly() Policy {
	noise := append([]string(nil), BaseNoise...)
	noise = append(noise, "CAMERA", "CAM")
	return Policy{
		Name:      PolicyAIOnly,
		Noise:     noise,
		MinLength: 20,
	}
}

func PolicyByName(name string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case PolicySpeakAll, "all":
		return SpeakAll(), nil
	case PolicyAIOnly, "ai":
		return AIOnly(), nil
	default:
		return Policy{}, fmt.Errorf("unknown listener policy %q", name)
	}
}

// WithNoise returns a copy of p with extra noise patterns appended.
func (p Policy) WithNoise(extra ...string) Policy {
	out := p
	out.Noise = append(append([]string(nil), p.Noise...), extra...)
	return out
}

func (p Policy) WithEmotes(ids ...string) Policy {
	out := p
	out.Emotes = append([]string(nil), ids...)
	return out
}

func (p Policy) WithMinLength(n int) Policy {
	if n > 0 {
		p.MinLength = n
	}
	return p
}

func EmoteSentinel(id string) string {
	return "EMOTE " + id + " " + doneMarker
}
