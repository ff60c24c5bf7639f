package audio

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/faiface/beep"
	"github.com/faiface/beep/wav"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func silentWav(t *testing.T, rate beep.SampleRate) []byte {
	t.Helper()
	path := filepath.Join(t.TempDir(), "silence.wav")
	f, err := os.Create(path)
	require.NoError(t, err)
	format := beep.Format{SampleRate: rate, NumChannels: 1, Precision: 2}
	require.NoError(t, wav.Encode(f, beep.Silence(rate.N(time.Second/10)), format))
	require.NoError(t, f.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return data
}

func TestDecodeWav(t *testing.T) {
	data := silentWav(t, 22050)

	s, f, err := decode(io.NopCloser(bytes.NewReader(data)), "wav")
	require.NoError(t, err)
	defer s.Close()

	assert.Equal(t, beep.SampleRate(22050), f.SampleRate)
	assert.Equal(t, 1, f.NumChannels)
	assert.Positive(t, s.Len())
}

func TestDecodeRejectsUnknownFormat(t *testing.T) {
	_, _, err := decode(io.NopCloser(bytes.NewReader(nil)), "flac")
	assert.ErrorContains(t, err, "unsupported")

	_, _, err = decode(io.NopCloser(bytes.NewReader([]byte("junk"))), "wav")
	assert.Error(t, err)
}

func TestFormatOf(t *testing.T) {
	assert.Equal(t, "mp3", formatOf("/clips/67_emote.MP3"))
	assert.Equal(t, "ogg", formatOf("a.ogg"))
	assert.Equal(t, "", formatOf("noext"))
}
