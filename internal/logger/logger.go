package logger

import (
	"io"
	"os"
	"time"

	"github.com/Kyz7/vanilla/internal/config"
	"github.com/rs/zerolog"
)

const (
	permission = 0664
)

type Build struct {
	writer  io.Writer
	path    string
	level   zerolog.Level
	console bool
}

func New() *Build {
	return &Build{level: zerolog.InfoLevel}
}

// FromConfig applies LOG_LEVEL, LOG_FORMAT and LOG_FILE.
func FromConfig(cfg *config.Config) *Build {
	build := New().FromPath(cfg.LogFile)
	if lvl, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		build.level = lvl
	}
	build.console = cfg.LogFormat == "console"
	return build
}

func (build *Build) FromPath(path string) *Build {
	build.path = path
	return build
}

func (build *Build) FromBuffer(w io.Writer) *Build {
	build.writer = w
	return build
}

func (build *Build) Level(lvl zerolog.Level) *Build {
	build.level = lvl
	return build
}

func (build *Build) Make() (zerolog.Logger, error) {
	var w io.Writer = os.Stdout
	if build.writer != nil {
		w = build.writer
	}
	if build.path != "" {
		f, err := os.OpenFile(build.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, permission)
		if err != nil {
			return zerolog.Nop(), err
		}
		w = zerolog.SyncWriter(f)
	}
	if build.console {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}
	return zerolog.New(w).Level(build.level).With().Timestamp().Logger(), nil
}
