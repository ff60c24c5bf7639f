package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"roastbot/internal/mode"
	"roastbot/internal/resilience"
	"roastbot/internal/speech"
)

const (
	elevenLabsBaseURL      = "https://api.elevenlabs.io"
	DefaultElevenLabsModel = "eleven_monolingual_v1"
)

type ElevenLabs struct {
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client
	retry      resilience.RetryConfig
}

type elevenLabsRequest struct {
	Text          string        `json:"text"`
	ModelID       string        `json:"model_id"`
	VoiceSettings voiceSettings `json:"voice_settings"`
}

type voiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
}

func NewElevenLabs(apiKey, model string, client *http.Client) *ElevenLabs {
	if client == nil {
		client = &http.Client{}
	}
	if model == "" {
		model = DefaultElevenLabsModel
	}
	return &ElevenLabs{
		apiKey:     strings.TrimSpace(apiKey),
		model:      model,
		baseURL:    elevenLabsBaseURL,
		httpClient: client,
		retry:      resilience.DefaultRetryConfig(),
	}
}

func (e *ElevenLabs) WithBaseURL(base string) *ElevenLabs {
	if base = strings.TrimRight(strings.TrimSpace(base), "/"); base != "" {
		e.baseURL = base
	}
	return e
}

func (e *ElevenLabs) WithRetry(cfg resilience.RetryConfig) *ElevenLabs {
	e.retry = cfg
	return e
}

func (e *ElevenLabs) Name() string {
	return "elevenlabs"
}

// Synthesize returns mp3 audio for text in the given voice. Transient
// failures are retried; auth and validation errors are not.
func (e *ElevenLabs) Synthesize(ctx context.Context, text string, voice mode.VoiceProfile) (speech.Audio, error) {
	if e.apiKey == "" {
		return speech.Audio{}, errors.New("elevenlabs api key is required")
	}
	if strings.TrimSpace(voice.VoiceID) == "" {
		return speech.Audio{}, errors.New("voice id is required")
	}

	body, err := json.Marshal(elevenLabsRequest{
		Text:    text,
		ModelID: e.model,
		VoiceSettings: voiceSettings{
			Stability:       voice.Stability,
			SimilarityBoost: voice.SimilarityBoost,
		},
	})
	if err != nil {
		return speech.Audio{}, fmt.Errorf("marshal request: %w", err)
	}

	endpoint := e.baseURL + "/v1/text-to-speech/" + url.PathEscape(voice.VoiceID)

	var audio []byte
	err = resilience.Retry(ctx, e.retry, resilience.IsRetryableNetworkError, func(ctx context.Context) error {
		audio, err = e.post(ctx, endpoint, body)
		return err
	})
	if err != nil {
		return speech.Audio{}, err
	}

	return speech.Audio{Data: audio, Format: "mp3"}, nil
}

func (e *ElevenLabs) post(ctx context.Context, endpoint string, body []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "audio/mpeg")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("xi-api-key", e.apiKey)

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &resilience.StatusError{
			Service: "elevenlabs",
			Code:    resp.StatusCode,
			Body:    strings.TrimSpace(string(msg)),
		}
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read audio: %w", err)
	}
	if len(audio) == 0 {
		return nil, errors.New("elevenlabs returned empty audio")
	}
	return audio, nil
}
