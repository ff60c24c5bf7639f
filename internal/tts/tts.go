// Package tts holds the speech synthesis backends used by the listener.
package tts

import (
	"fmt"
	"net/http"

	"roastbot/internal/speech"
)

const (
	EngineElevenLabs = "elevenlabs"
	EngineEspeak     = "espeak"
)

type Engine interface {
	speech.Synthesizer
	Name() string
}

type Options struct {
	Engine           string
	ElevenLabsAPIKey string
	ElevenLabsModel  string
	HTTPClient       *http.Client
}

func New(opt Options) (Engine, error) {
	switch opt.Engine {
	case EngineElevenLabs, "":
		if opt.ElevenLabsAPIKey == "" {
			return nil, fmt.Errorf("ELEVENLABS_API_KEY not set")
		}
		return NewElevenLabs(opt.ElevenLabsAPIKey, opt.ElevenLabsModel, opt.HTTPClient), nil
	case EngineEspeak:
		return NewEspeak(), nil
	default:
		return nil, fmt.Errorf("unknown tts engine %q", opt.Engine)
	}
}
