package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"roastbot/internal/mode"
	"roastbot/pkg/protocol"
)

func TestLoadListener_Defaults(t *testing.T) {
	t.Setenv("ELEVENLABS_API_KEY", "xi-key")

	cfg, err := LoadListener(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, 115200, cfg.BaudRate)
	assert.Equal(t, protocol.PolicyAIOnly, cfg.Policy)
	assert.Equal(t, 500*time.Millisecond, cfg.ReadTimeout)
	assert.Equal(t, 10*time.Millisecond, cfg.PollInterval)
	assert.Equal(t, map[string]string{"67": "67_emote.mp3"}, cfg.EmoteClips)
	assert.False(t, cfg.AnnounceMode)
	assert.Equal(t, "evil", cfg.InitialMode)
	assert.Equal(t, 30*time.Second, cfg.TTSTimeout)
}

func TestLoadListener_RequiresElevenLabsKey(t *testing.T) {
	t.Setenv("ELEVENLABS_API_KEY", "")
	t.Setenv("TTS_ENGINE", "elevenlabs")

	_, err := LoadListener("")
	assert.ErrorContains(t, err, "ELEVENLABS_API_KEY")

	t.Setenv("TTS_ENGINE", "espeak")
	_, err = LoadListener("")
	assert.NoError(t, err)
}

func TestLoadListener_Overrides(t *testing.T) {
	t.Setenv("TTS_ENGINE", "espeak")
	t.Setenv("LISTENER_POLICY", "speak-all")
	t.Setenv("MIN_CONTENT_LENGTH", "8")
	t.Setenv("NOISE_PATTERNS_EXTRA", "BOOT,heap:")
	t.Setenv("EMOTE_CLIPS", "67:/clips/67.mp3,wave:/clips/wave.ogg")
	t.Setenv("THERAPY_VOICE_ID", "custom")

	cfg, err := LoadListener("")
	require.NoError(t, err)

	p := cfg.ClassifierPolicy()
	assert.Equal(t, protocol.PolicySpeakAll, p.Name)
	assert.Equal(t, 8, p.MinLength)
	assert.Contains(t, p.Noise, "heap:")
	assert.ElementsMatch(t, []string{"67", "wave"}, p.Emotes)

	c := protocol.NewClassifier(p)
	assert.Equal(t, protocol.EmoteTrigger, c.Classify("EMOTE wave DONE").Kind)
	assert.Equal(t, protocol.Ignored, c.Classify("BOOT complete in 12ms").Kind)

	profiles := cfg.Profiles()
	assert.Equal(t, "custom", profiles[mode.Therapy].Voice.VoiceID)
	assert.Equal(t, mode.VoiceAdam, profiles[mode.Evil].Voice.VoiceID)
	assert.Equal(t, "en+f3", profiles[mode.Therapy].Voice.Local)
}

func TestLoadListener_RejectsBadValues(t *testing.T) {
	t.Setenv("TTS_ENGINE", "espeak")

	for key, value := range map[string]string{
		"LISTENER_POLICY": "speak-nothing",
		"INITIAL_MODE":    "party",
		"DUCK_FACTOR":     "2",
	} {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, value)
			_, err := LoadListener("")
			assert.Error(t, err)
		})
	}

	t.Setenv("TTS_ENGINE", "festival")
	_, err := LoadListener("")
	assert.Error(t, err)
}

func TestLoadListener_EnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(path, []byte("TTS_ENGINE=espeak\nROASTBOT_TEST_ONLY=1\n"), 0o600))
	t.Setenv("TTS_ENGINE", "")
	os.Unsetenv("TTS_ENGINE")
	t.Cleanup(func() { os.Unsetenv("ROASTBOT_TEST_ONLY") })

	cfg, err := LoadListener(path)
	require.NoError(t, err)
	assert.Equal(t, "espeak", cfg.TTSEngine)
	assert.Equal(t, "1", os.Getenv("ROASTBOT_TEST_ONLY"))
}

func TestLoadRobot(t *testing.T) {
	t.Setenv("OPENROUTER_API_KEY", "")
	_, err := LoadRobot("")
	assert.ErrorContains(t, err, "OPENROUTER_API_KEY")

	t.Setenv("OPENROUTER_API_KEY", "or-key")
	cfg, err := LoadRobot("")
	require.NoError(t, err)
	assert.Equal(t, "/dev/serial0", cfg.SerialPort)
	assert.Equal(t, 100*time.Millisecond, cfg.ReadTimeout)
	assert.Equal(t, 10*time.Millisecond, cfg.PollInterval)
	assert.Equal(t, int64(150), cfg.AIMaxTokens)
	assert.Equal(t, 640, cfg.CameraWidth)
	assert.Equal(t, 480, cfg.CameraHeight)
	assert.Equal(t, "/tmp/roastbot.sock", cfg.ControlSocket)

	t.Setenv("POLL_INTERVAL", "25ms")
	cfg, err = LoadRobot("")
	require.NoError(t, err)
	assert.Equal(t, 25*time.Millisecond, cfg.PollInterval)

	t.Setenv("POLL_INTERVAL", "0s")
	_, err = LoadRobot("")
	assert.ErrorContains(t, err, "POLL_INTERVAL")

	t.Setenv("POLL_INTERVAL", "10ms")
	t.Setenv("CAMERA_WIDTH", "0")
	_, err = LoadRobot("")
	assert.Error(t, err)
}
