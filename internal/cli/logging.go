package cli

import (
	"fmt"
	"io"
	"log/slog"

	"gopkg.in/natefinch/lumberjack.v2"
)

// logRotation holds the rotation settings of the log file.
type logRotation struct {
	MaxSize    int // megabytes
	MaxBackups int
	MaxAge     int // days
	Compress   bool
}

var defaultLogRotation = logRotation{
	MaxSize:    10,
	MaxBackups: 10,
	MaxAge:     30,
	Compress:   true,
}

// newLogger returns a text logger writing to logFile, rotated, or to stderr when logFile is empty.
// The returned closer is nil when nothing needs closing.
func newLogger(level, logFile string, stderr io.Writer) (*slog.Logger, io.Closer, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}

	var (
		w      = stderr
		closer io.Closer
	)
	if logFile != "" {
		lj := &lumberjack.Logger{
			Filename:   logFile,
			MaxSize:    defaultLogRotation.MaxSize,
			MaxBackups: defaultLogRotation.MaxBackups,
			MaxAge:     defaultLogRotation.MaxAge,
			Compress:   defaultLogRotation.Compress,
		}
		w, closer = lj, lj
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl})), closer, nil
}
