// Package logging configures the global zerolog logger.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"

	"task-offload/internal/config"
)

// Setup points the global logger at a console writer on stderr and, when
// cfg.File is set, a rotating JSON log file. The returned closer flushes
// and closes the file.
func Setup(cfg config.Log) io.Closer {
	logger, closer := New(cfg, os.Stderr)
	log.Logger = logger
	return closer
}

// New builds a logger writing human-readable lines to console and, when
// cfg.File is set, JSON lines to a rotating file.
func New(cfg config.Log, console io.Writer) (zerolog.Logger, io.Closer) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	zerolog.SetGlobalLevel(ParseLevel(cfg.Level))

	var out io.Writer = zerolog.ConsoleWriter{Out: console}
	var closer io.Closer = nopCloser{}
	if cfg.File != "" {
		file := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    max(cfg.MaxSizeMB, 1),
			MaxBackups: max(cfg.MaxBackups, 0),
			MaxAge:     max(cfg.MaxAgeDays, 0),
		}
		out = zerolog.MultiLevelWriter(out, file)
		closer = file
	}
	return zerolog.New(out).With().Timestamp().Logger(), closer
}

// ParseLevel maps debug, warn and error to their levels; anything else is info.
func ParseLevel(level string) zerolog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zerolog.DebugLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
