// Package mode holds the robot persona and the voice and prompt bound to it.
package mode

import (
	"fmt"
	"strings"
	"sync/atomic"
)

type Mode string

const (
	Evil    Mode = "evil"
	Therapy Mode = "therapy"
)

func Parse(name string) (Mode, bool) {
	switch Mode(strings.ToLower(strings.TrimSpace(name))) {
	case Evil:
		return Evil, true
	case Therapy:
		return Therapy, true
	}
	return "", false
}

func (m Mode) Opposite() Mode {
	if m == Therapy {
		return Evil
	}
	return Therapy
}

func (m Mode) String() string { return string(m) }

// VoiceProfile is the synthesis configuration for one persona.
type VoiceProfile struct {
	Name            string
	VoiceID         string
	Stability       float64
	SimilarityBoost float64
	// Local is the espeak-ng voice used when no cloud engine is configured.
	Local string
}

// Persona is what the vision model is told for one mode.
type Persona struct {
	SystemPrompt string
	Instruction  string
}

// Profile is everything that changes together when the mode flips.
type Profile struct {
	Mode    Mode
	Voice   VoiceProfile
	Persona Persona
}

// Profiles maps both modes to their profile. It is loaded once and never
// mutated afterwards.
type Profiles map[Mode]Profile

func (p Profiles) Validate() error {
	for _, m := range []Mode{Evil, Therapy} {
		if _, ok := p[m]; !ok {
			return fmt.Errorf("missing profile for mode %q", m)
		}
	}
	return nil
}

// State is the single process-wide mode cell. Readers always see a mode
// together with the voice and persona that belong to it.
type State struct {
	profiles Profiles
	cur      atomic.Pointer[Profile]
}

func NewState(profiles Profiles, initial Mode) (*State, error) {
	if err := profiles.Validate(); err != nil {
		return nil, err
	}

	s := &State{profiles: make(Profiles, len(profiles))}
	for m, p := range profiles {
		p.Mode = m
		s.profiles[m] = p
	}

	p, ok := s.profiles[initial]
	if !ok {
		return nil, fmt.Errorf("unknown initial mode %q", initial)
	}
	s.cur.Store(&p)
	return s, nil
}

// Current returns a snapshot of the active profile.
func (s *State) Current() Profile {
	return *s.cur.Load()
}

func (s *State) Mode() Mode {
	return s.cur.Load().Mode
}

// Set switches to the named mode. Unknown names leave the state untouched
// and report false; changed reports whether the mode actually differed.
func (s *State) Set(name string) (p Profile, changed, ok bool) {
	m, ok := Parse(name)
	if !ok {
		return s.Current(), false, false
	}

	next := s.profiles[m]
	prev := s.cur.Swap(&next)
	return next, prev.Mode != m, true
}

// Toggle flips to the opposite mode and returns the new profile.
func (s *State) Toggle() Profile {
	for {
		prev := s.cur.Load()
		next := s.profiles[prev.Mode.Opposite()]
		if s.cur.CompareAndSwap(prev, &next) {
			return next
		}
	}
}
