package protocol

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify_NoiseWinsRegardlessOfLength(t *testing.T) {
	for _, p := range []Policy{SpeakAll(), AIOnly()} {
		c := NewClassifier(p.WithEmotes("67"))
		for _, n := range p.Noise {
			long := "Something perfectly speakable " + n + " with a lot of padding text"
			assert.Equal(t, Ignored, c.Classify(long).Kind, "%s: %q", p.Name, long)
		}
		assert.Equal(t, Ignored, c.Classify("MODE: evil (GPIO 4)").Kind, p.Name)
		assert.Equal(t, Ignored, c.Classify("Sent: DONE").Kind, p.Name)
	}
}

func TestClassify_ShortLinesIgnored(t *testing.T) {
	tests := []struct {
		policy Policy
		line   string
	}{
		{SpeakAll(), "hello there"},
		{SpeakAll(), "exactly 15 char"},
		{AIOnly(), "nineteen chars long"},
		{AIOnly(), "ok"},
	}
	for _, tt := range tests {
		ev := NewClassifier(tt.policy).Classify(tt.line)
		assert.Equal(t, Ignored, ev.Kind, "%s: %q", tt.policy.Name, tt.line)
	}

	assert.Equal(t, AiResponse, NewClassifier(SpeakAll()).Classify("exactly 16 chars").Kind)
	assert.Equal(t, AiResponse, NewClassifier(AIOnly()).Classify("twenty chars exactly").Kind)
}

func TestClassify_ModeChange(t *testing.T) {
	c := NewClassifier(AIOnly())

	tests := []struct {
		line string
		want string
	}{
		{"MODE:evil", "evil"},
		{"Mode: THERAPY", "therapy"},
		{"mode:  Therapy  ", "therapy"},
		{"MODE:", ""},
		{"MODE:sleepy:extra", "sleepy:extra"},
	}
	for _, tt := range tests {
		ev := c.Classify(tt.line)
		assert.Equal(t, ModeChange, ev.Kind, tt.line)
		assert.Equal(t, tt.want, ev.Value, tt.line)
	}

	assert.NotEqual(t, ModeChange, c.Classify("The mode: of this conversation is odd").Kind)
}

func TestClassify_Emote(t *testing.T) {
	c := NewClassifier(SpeakAll().WithEmotes("67"))

	assert.Equal(t, Event{Kind: EmoteTrigger, Value: "67"}, c.Classify("EMOTE 67 DONE"))
	assert.Equal(t, Event{Kind: EmoteTrigger, Value: "67"}, c.Classify("  EMOTE 67 DONE\r"))

	// unknown ids fall through to the generic DONE rule
	assert.Equal(t, Event{Kind: StatusDone, Value: "EMOTE 12 DONE"}, c.Classify("EMOTE 12 DONE"))
	assert.Equal(t, StatusDone, c.Classify("EMOTE 67 DONE now").Kind)
}

func TestClassify_StatusDone(t *testing.T) {
	speak := NewClassifier(SpeakAll())
	assert.Equal(t, Event{Kind: StatusDone, Value: "WAVE DONE"}, speak.Classify("WAVE_DONE"))
	assert.Equal(t, Event{Kind: StatusDone, Value: "DONE"}, speak.Classify("DONE"))

	quiet := NewClassifier(AIOnly())
	assert.Equal(t, Ignored, quiet.Classify("WAVE_DONE").Kind)
	assert.Equal(t, Ignored, quiet.Classify("A very long line that still ends in DONE").Kind)
}

func TestClassify_Blank(t *testing.T) {
	c := NewClassifier(SpeakAll())
	for _, s := range []string{"", "   ", "\t\r\n"} {
		ev, rule := c.Explain(s)
		assert.Equal(t, Ignored, ev.Kind)
		assert.Equal(t, "blank", rule)
	}
}

func TestClassify_Scenario(t *testing.T) {
	c := NewClassifier(AIOnly().WithEmotes("67"))

	lines := []string{"GPIO init", "MODE:therapy", "You are doing great today, truly", "EMOTE 67 DONE"}
	want := []Event{
		{Kind: Ignored},
		{Kind: ModeChange, Value: "therapy"},
		{Kind: AiResponse, Value: "You are doing great today, truly"},
		{Kind: EmoteTrigger, Value: "67"},
	}

	got := make([]Event, 0, len(lines))
	for _, l := range lines {
		got = append(got, c.Classify(l))
	}
	assert.Equal(t, want, got)
}

func TestClassify_CountsRunesNotBytes(t *testing.T) {
	c := NewClassifier(SpeakAll())
	// 8 runes, 16+ bytes
	assert.Equal(t, Ignored, c.Classify(strings.Repeat("é", 8)).Kind)
}

func TestPolicyByName(t *testing.T) {
	p, err := PolicyByName("Speak-All")
	assert.NoError(t, err)
	assert.True(t, p.SpeakStatus)

	p, err = PolicyByName("ai-only")
	assert.NoError(t, err)
	assert.Contains(t, p.Noise, "CAM")

	_, err = PolicyByName("loud")
	assert.Error(t, err)
}

func TestPolicyWithNoiseDoesNotAlias(t *testing.T) {
	base := SpeakAll()
	extended := base.WithNoise("BOOT")
	assert.NotContains(t, base.Noise, "BOOT")
	assert.Contains(t, extended.Noise, "BOOT")
	assert.Equal(t, Ignored, NewClassifier(extended).Classify("BOOT sequence finished fine").Kind)
}

func TestParseCommand(t *testing.T) {
	tests := []struct {
		line string
		want Command
		ok   bool
	}{
		{"ROAST", CmdRoast, true},
		{" roast\r\n", CmdRoast, true},
		{"Toggle", CmdToggle, true},
		{"ROAST ME", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, ok := ParseCommand(tt.line)
		assert.Equal(t, tt.ok, ok, tt.line)
		assert.Equal(t, tt.want, got, tt.line)
	}
}

func TestOneLine(t *testing.T) {
	assert.Equal(t, "Nice hat. Bold choice.", OneLine("Nice hat.\nBold   choice.\r\n"))
	assert.Equal(t, "MODE:therapy", ModeLine("therapy"))
}
