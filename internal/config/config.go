// Package config loads both processes' settings from the environment and
// an optional .env file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"roastbot/internal/mode"
	"roastbot/internal/tts"
	"roastbot/pkg/protocol"
)

// Listener configures roastbot-listen.
type Listener struct {
	SerialPort   string        `envconfig:"SERIAL_PORT"` // empty: autodetect, ws:// or wss://: websocket bridge
	BaudRate     int           `envconfig:"BAUD_RATE" default:"115200"`
	ReadTimeout  time.Duration `envconfig:"READ_TIMEOUT" default:"500ms"`
	Reconnect    time.Duration `envconfig:"RECONNECT_INTERVAL" default:"2s"`
	PollInterval time.Duration `envconfig:"POLL_INTERVAL" default:"10ms"`
	Settle       time.Duration `envconfig:"SERIAL_SETTLE" default:"2s"` // the ESP32 resets when the port opens

	Policy           string   `envconfig:"LISTENER_POLICY" default:"ai-only"` // speak-all, ai-only
	MinContentLength int      `envconfig:"MIN_CONTENT_LENGTH" default:"0"`     // 0: policy default
	NoiseExtra       []string `envconfig:"NOISE_PATTERNS_EXTRA"`
	AnnounceMode     bool     `envconfig:"ANNOUNCE_MODE" default:"false"`
	InitialMode      string   `envconfig:"INITIAL_MODE" default:"evil"`

	// Emote id to clip file, e.g. "67:67_emote.mp3,wave:wave.ogg"
	EmoteClips map[string]string `envconfig:"EMOTE_CLIPS" default:"67:67_emote.mp3"`

	TTSEngine            string        `envconfig:"TTS_ENGINE" default:"elevenlabs"` // elevenlabs, espeak
	ElevenLabsAPIKey     string        `envconfig:"ELEVENLABS_API_KEY"`
	ElevenLabsModel      string        `envconfig:"ELEVENLABS_MODEL" default:"eleven_monolingual_v1"`
	EvilVoiceID          string        `envconfig:"EVIL_VOICE_ID" default:"pNInz6obpgDQGcFmaJgB"`
	TherapyVoiceID       string        `envconfig:"THERAPY_VOICE_ID" default:"EXAVITQu4vr4xnSDxMaL"`
	VoiceStability       float64       `envconfig:"VOICE_STABILITY" default:"0.5"`
	VoiceSimilarityBoost float64       `envconfig:"VOICE_SIMILARITY_BOOST" default:"0.75"`
	EspeakVoiceEvil      string        `envconfig:"ESPEAK_VOICE_EVIL" default:"en+m3"`
	EspeakVoiceTherapy   string        `envconfig:"ESPEAK_VOICE_THERAPY" default:"en+f3"`
	TTSTimeout           time.Duration `envconfig:"TTS_TIMEOUT" default:"30s"`

	PlaybackDuck bool    `envconfig:"PLAYBACK_DUCK" default:"false"`
	DuckFactor   float64 `envconfig:"DUCK_FACTOR" default:"0.3"`

	MetricsAddr string `envconfig:"METRICS_ADDR"`
	SocksProxy  string `envconfig:"SOCKS_PROXY"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`
}

// Robot configures roastbot-robot.
type Robot struct {
	SerialPort   string        `envconfig:"SERIAL_PORT" default:"/dev/serial0"`
	BaudRate     int           `envconfig:"BAUD_RATE" default:"115200"`
	ReadTimeout  time.Duration `envconfig:"READ_TIMEOUT" default:"100ms"`
	Reconnect    time.Duration `envconfig:"RECONNECT_INTERVAL" default:"2s"`
	PollInterval time.Duration `envconfig:"POLL_INTERVAL" default:"10ms"`

	OpenRouterAPIKey string        `envconfig:"OPENROUTER_API_KEY"`
	AIBaseURL        string        `envconfig:"AI_BASE_URL" default:"https://openrouter.ai/api/v1"`
	AIModel          string        `envconfig:"AI_MODEL" default:"anthropic/claude-3.5-sonnet"`
	AIMaxTokens      int64         `envconfig:"AI_MAX_TOKENS" default:"150"`
	AITimeout        time.Duration `envconfig:"AI_TIMEOUT" default:"30s"`

	InitialMode     string `envconfig:"INITIAL_MODE" default:"evil"`
	SyncModeOnStart bool   `envconfig:"SYNC_MODE_ON_START" default:"false"`

	CameraCommand string `envconfig:"CAMERA_COMMAND" default:"rpicam-still"`
	CameraWidth   int    `envconfig:"CAMERA_WIDTH" default:"640"`
	CameraHeight  int    `envconfig:"CAMERA_HEIGHT" default:"480"`

	ControlSocket string `envconfig:"CONTROL_SOCKET" default:"/tmp/roastbot.sock"`
	MetricsAddr   string `envconfig:"METRICS_ADDR"`
	SocksProxy    string `envconfig:"SOCKS_PROXY"`
	LogLevel      string `envconfig:"LOG_LEVEL" default:"info"`
}

// loadEnvFile reads path into the environment. A missing file is fine;
// variables already set win.
func loadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

func LoadListener(envFile string) (*Listener, error) {
	if err := loadEnvFile(envFile); err != nil {
		return nil, err
	}

	var cfg Listener
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Listener) Validate() error {
	if _, err := protocol.PolicyByName(c.Policy); err != nil {
		return err
	}
	if _, ok := mode.Parse(c.InitialMode); !ok {
		return fmt.Errorf("INITIAL_MODE %q is not evil or therapy", c.InitialMode)
	}
	switch c.TTSEngine {
	case tts.EngineElevenLabs:
		if strings.TrimSpace(c.ElevenLabsAPIKey) == "" {
			return fmt.Errorf("ELEVENLABS_API_KEY is required")
		}
	case tts.EngineEspeak:
	default:
		return fmt.Errorf("TTS_ENGINE %q is not elevenlabs or espeak", c.TTSEngine)
	}
	if c.BaudRate <= 0 {
		return fmt.Errorf("BAUD_RATE must be positive")
	}
	if c.DuckFactor < 0 || c.DuckFactor > 1 {
		return fmt.Errorf("DUCK_FACTOR must be within [0, 1]")
	}
	return nil
}

// ClassifierPolicy is the configured policy with overrides and emote ids
// applied.
func (c *Listener) ClassifierPolicy() protocol.Policy {
	p, err := protocol.PolicyByName(c.Policy)
	if err != nil {
		p = protocol.AIOnly()
	}
	ids := make([]string, 0, len(c.EmoteClips))
	for id := range c.EmoteClips {
		ids = append(ids, id)
	}
	return p.WithNoise(c.NoiseExtra...).WithEmotes(ids...).WithMinLength(c.MinContentLength)
}

// Profiles returns the stock personas with the configured voices.
func (c *Listener) Profiles() mode.Profiles {
	profiles := mode.DefaultProfiles()
	voice := func(m mode.Mode, id, local string) {
		p := profiles[m]
		p.Voice.VoiceID = id
		p.Voice.Local = local
		p.Voice.Stability = c.VoiceStability
		p.Voice.SimilarityBoost = c.VoiceSimilarityBoost
		profiles[m] = p
	}
	voice(mode.Evil, c.EvilVoiceID, c.EspeakVoiceEvil)
	voice(mode.Therapy, c.TherapyVoiceID, c.EspeakVoiceTherapy)
	return profiles
}

func LoadRobot(envFile string) (*Robot, error) {
	if err := loadEnvFile(envFile); err != nil {
		return nil, err
	}

	var cfg Robot
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Robot) Validate() error {
	if strings.TrimSpace(c.OpenRouterAPIKey) == "" {
		return fmt.Errorf("OPENROUTER_API_KEY is required")
	}
	if _, ok := mode.Parse(c.InitialMode); !ok {
		return fmt.Errorf("INITIAL_MODE %q is not evil or therapy", c.InitialMode)
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("POLL_INTERVAL must be positive")
	}
	if c.AIMaxTokens <= 0 {
		return fmt.Errorf("AI_MAX_TOKENS must be positive")
	}
	if c.CameraWidth <= 0 || c.CameraHeight <= 0 {
		return fmt.Errorf("camera resolution must be positive, got %dx%d", c.CameraWidth, c.CameraHeight)
	}
	return nil
}
