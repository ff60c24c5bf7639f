package logging

import (
	"bytes"
	"testing"

	log "log/slog"

	"github.com/stretchr/testify/assert"
)

func TestLevel(t *testing.T) {
	assert.Equal(t, log.LevelDebug, Level("debug"))
	assert.Equal(t, log.LevelWarn, Level(" WARN "))
	assert.Equal(t, log.LevelInfo, Level("chatty"))
	assert.Equal(t, log.LevelInfo, Level(""))
}

func TestNewFiltersByLevel(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, "warn")

	l.Info("quiet")
	assert.Empty(t, buf.String())

	l.Warn("loud", "port", "/dev/ttyUSB0")
	assert.Contains(t, buf.String(), "loud")
	assert.Contains(t, buf.String(), "/dev/ttyUSB0")
}
