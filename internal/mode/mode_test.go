package mode

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newState(t *testing.T, initial Mode) *State {
	t.Helper()
	s, err := NewState(DefaultProfiles(), initial)
	require.NoError(t, err)
	return s
}

func TestParse(t *testing.T) {
	m, ok := Parse(" THERAPY ")
	assert.True(t, ok)
	assert.Equal(t, Therapy, m)

	_, ok = Parse("evi1")
	assert.False(t, ok)
}

func TestState_InitialEvil(t *testing.T) {
	s := newState(t, Evil)
	assert.Equal(t, Evil, s.Mode())
	assert.Equal(t, VoiceAdam, s.Current().Voice.VoiceID)
}

func TestState_Set(t *testing.T) {
	s := newState(t, Evil)

	p, changed, ok := s.Set("therapy")
	assert.True(t, ok)
	assert.True(t, changed)
	assert.Equal(t, Therapy, p.Mode)
	assert.Equal(t, VoiceSarah, s.Current().Voice.VoiceID)

	_, changed, ok = s.Set("Therapy")
	assert.True(t, ok)
	assert.False(t, changed)
}

func TestState_UnknownNameIsNoop(t *testing.T) {
	s := newState(t, Therapy)

	p, changed, ok := s.Set("ev!l")
	assert.False(t, ok)
	assert.False(t, changed)
	assert.Equal(t, Therapy, p.Mode)
	assert.Equal(t, Therapy, s.Mode())
}

func TestState_Toggle(t *testing.T) {
	s := newState(t, Evil)
	assert.Equal(t, Therapy, s.Toggle().Mode)
	assert.Equal(t, Evil, s.Toggle().Mode)
}

func TestState_RequiresBothProfiles(t *testing.T) {
	_, err := NewState(Profiles{Evil: DefaultProfiles()[Evil]}, Evil)
	assert.Error(t, err)

	_, err = NewState(DefaultProfiles(), Mode("sleepy"))
	assert.Error(t, err)
}

// Readers must never see a mode paired with the other mode's voice.
func TestState_PairIsAtomic(t *testing.T) {
	s := newState(t, Evil)
	want := map[Mode]string{Evil: VoiceAdam, Therapy: VoiceSarah}

	var wg sync.WaitGroup
	stop := make(chan struct{})

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 5000; i++ {
			s.Toggle()
		}
		close(stop)
	}()

	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				p := s.Current()
				if want[p.Mode] != p.Voice.VoiceID {
					t.Errorf("mode %s paired with voice %s", p.Mode, p.Voice.VoiceID)
					return
				}
			}
		}()
	}

	wg.Wait()
}
