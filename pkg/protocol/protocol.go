package protocol

import (
	"strings"
	"unicode/utf8"
)

type Kind uint8

const (
	Ignored Kind = iota
	ModeChange
	EmoteTrigger
	StatusDone
	AiResponse
)

func (k Kind) String() string {
	switch k {
	case ModeChange:
		return "mode_change"
	case EmoteTrigger:
		return "emote"
	case StatusDone:
		return "status_done"
	case AiResponse:
		return "ai_response"
	default:
		return "ignored"
	}
}

// Event is the classification of one serial line. Value holds the mode
// name for ModeChange, the emote id for EmoteTrigger and the speakable
// text for StatusDone and AiResponse.
type Event struct {
	Kind  Kind
	Value string
}

type rule struct {
	name  string
	match func(c *Classifier, line string) (Event, bool)
}

// Rules are evaluated top to bottom, first match wins.
var rules = []rule{
	{"blank", matchBlank},
	{"noise", matchNoise},
	{"mode", matchMode},
	{"emote", matchEmote},
	{"status", matchStatus},
	{"content", matchContent},
}

// Classifier triages raw serial lines. It holds no mutable state and is
// safe for concurrent use.
type Classifier struct {
	policy  Policy
	emotes  map[string]string
	minimum int
}

func NewClassifier(p Policy) *Classifier {
	c := &Classifier{
		policy:  p,
		emotes:  make(map[string]string, len(p.Emotes)),
		minimum: p.MinLength,
	}
	for _, id := range p.Emotes {
		c.emotes[EmoteSentinel(id)] = id
	}
	return c
}

func (c *Classifier) Policy() Policy {
	return c.policy
}

func (c *Classifier) Classify(line string) Event {
	ev, _ := c.Explain(line)
	return ev
}

// Explain returns the event together with the name of the rule that
// produced it ("" when nothing matched).
func (c *Classifier) Explain(line string) (Event, string) {
	s := strings.TrimSpace(line)
	for _, r := range rules {
		if ev, ok := r.match(c, s); ok {
			return ev, r.name
		}
	}
	return Event{Kind: Ignored}, ""
}

func matchBlank(_ *Classifier, line string) (Event, bool) {
	return Event{Kind: Ignored}, line == ""
}

func matchNoise(c *Classifier, line string) (Event, bool) {
	for _, p := range c.policy.Noise {
		if p != "" && strings.Contains(line, p) {
			return Event{Kind: Ignored}, true
		}
	}
	return Event{}, false
}

const modePrefix = "mode:"

func matchMode(_ *Classifier, line string) (Event, bool) {
	if len(line) < len(modePrefix) || !strings.EqualFold(line[:len(modePrefix)], modePrefix) {
		return Event{}, false
	}
	name := strings.ToLower(strings.TrimSpace(line[len(modePrefix):]))
	return Event{Kind: ModeChange, Value: name}, true
}

func matchEmote(c *Classifier, line string) (Event, bool) {
	id, ok := c.emotes[line]
	if !ok {
		return Event{}, false
	}
	return Event{Kind: EmoteTrigger, Value: id}, true
}

func matchStatus(c *Classifier, line string) (Event, bool) {
	if !strings.Contains(line, doneMarker) {
		return Event{}, false
	}
	if !c.policy.SpeakStatus {
		return Event{Kind: Ignored}, true
	}
	return Event{Kind: StatusDone, Value: strings.ReplaceAll(line, "_", " ")}, true
}

func matchContent(c *Classifier, line string) (Event, bool) {
	if utf8.RuneCountInString(line) < c.minimum {
		return Event{}, false
	}
	return Event{Kind: AiResponse, Value: line}, true
}
