package logging

import (
	"io"
	"os"
	"strings"
	"time"

	log "log/slog"

	"github.com/lmittmann/tint"
)

var levelMap = map[string]log.Level{
	"debug": log.LevelDebug,
	"info":  log.LevelInfo,
	"warn":  log.LevelWarn,
	"error": log.LevelError,
}

// Level maps a level name to a slog level; unknown names mean info.
func Level(name string) log.Level {
	if l, ok := levelMap[strings.ToLower(strings.TrimSpace(name))]; ok {
		return l
	}
	return log.LevelInfo
}

func New(w io.Writer, level string) *log.Logger {
	return log.New(tint.NewHandler(w, &tint.Options{
		Level:      Level(level),
		TimeFormat: time.TimeOnly,
	}))
}

// Setup installs a tint logger on stdout as the process default.
func Setup(level string) {
	log.SetDefault(New(os.Stdout, level))
}
