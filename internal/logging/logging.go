// Package logging builds the application logger.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Redacted replaces the value of secret attributes.
const Redacted = "[REDACTED]"

// Options configure New.
type Options struct {
	Level string
	// File enables a size-rotated log file next to stderr.
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	// Stderr overrides os.Stderr.
	Stderr io.Writer
}

// New returns a text logger and a closer for the file sink. The closer is
// never nil.
func New(opts Options) (*slog.Logger, io.Closer) {
	var out io.Writer = os.Stderr
	if opts.Stderr != nil {
		out = opts.Stderr
	}

	var closer io.Closer = nopCloser{}
	if opts.File != "" {
		file := &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    orDefault(opts.MaxSizeMB, 50),
			MaxBackups: orDefault(opts.MaxBackups, 5),
			MaxAge:     orDefault(opts.MaxAgeDays, 28),
			Compress:   true,
		}
		out = io.MultiWriter(out, file)
		closer = file
	}

	h := slog.NewTextHandler(out, &slog.HandlerOptions{
		Level:       ParseLevel(opts.Level),
		ReplaceAttr: redact,
	})
	return slog.New(h), closer
}

// ParseLevel maps debug, warn and error to their levels and anything else
// to info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// IsSecretKey reports whether an attribute key names a credential.
func IsSecretKey(key string) bool {
	k := strings.ToLower(key)
	if k == "key" {
		return true
	}
	for _, frag := range []string{"authorization", "api_key", "apikey", "token", "secret", "password"} {
		if strings.Contains(k, frag) {
			return true
		}
	}
	return false
}

func redact(_ []string, a slog.Attr) slog.Attr {
	if a.Value.Kind() != slog.KindGroup && IsSecretKey(a.Key) {
		return slog.String(a.Key, Redacted)
	}
	return a
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
