// Package logging provides structured logging for dolphinwatch built on
// log/slog, with an optional rotating file sink via lumberjack.
package logging

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"sync"

	"github.com/tphakala/dolphinwatch/internal/conf"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	logger   *slog.Logger
	loggerMu sync.RWMutex

	currentLevel = new(slog.LevelVar)
	initOnce     sync.Once
)

const (
	LevelTrace = slog.Level(-8)
	LevelFatal = slog.Level(12)
)

var levelNames = map[slog.Leveler]string{
	LevelTrace: "TRACE",
	LevelFatal: "FATAL",
}

// replaceAttr renders time at second precision, names the custom
// levels, and truncates float64 attributes to 2 decimal places so
// per-hop DSP measurements don't flood log lines with float noise.
func replaceAttr(groups []string, a slog.Attr) slog.Attr {
	if a.Key == slog.TimeKey && a.Value.Kind() == slog.KindTime {
		a.Value = slog.StringValue(a.Value.Time().Format("2006-01-02T15:04:05Z07:00"))
	}
	if a.Key == slog.LevelKey {
		if level, ok := a.Value.Any().(slog.Level); ok {
			if name, exists := levelNames[level]; exists {
				a.Value = slog.StringValue(name)
			}
		}
	}
	if a.Value.Kind() == slog.KindFloat64 {
		truncated := math.Trunc(a.Value.Float64()*100) / 100.0
		a.Value = slog.Float64Value(truncated)
	}
	return a
}

// Init configures the global logger from a LogConfig: a rotating JSON
// file sink when log.Enabled, otherwise plain text to stderr. Debug
// enables LevelDebug instead of LevelInfo.
func Init(log conf.LogConfig, debug bool) (func() error, error) {
	var closeFn func() error
	var err error

	initOnce.Do(func() {
		if debug {
			currentLevel.Set(slog.LevelDebug)
		} else {
			currentLevel.Set(slog.LevelInfo)
		}

		if !log.Enabled {
			handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
				Level:       currentLevel,
				ReplaceAttr: replaceAttr,
			})
			setLogger(slog.New(handler))
			closeFn = func() error { return nil }
			return
		}

		var lj *lumberjack.Logger
		lj, err = newRotatingWriter(log)
		if err != nil {
			return
		}

		handler := slog.NewJSONHandler(lj, &slog.HandlerOptions{
			Level:       currentLevel,
			ReplaceAttr: replaceAttr,
		})
		setLogger(slog.New(handler))
		closeFn = lj.Close
	})

	if closeFn == nil {
		closeFn = func() error { return nil }
	}
	return closeFn, err
}

func newRotatingWriter(log conf.LogConfig) (*lumberjack.Logger, error) {
	dir := filepath.Dir(log.Path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("logging: creating log directory %s: %w", dir, err)
		}
	}

	maxSize := log.MaxSizeMB
	if maxSize <= 0 {
		maxSize = 10
	}
	maxBackups := log.MaxBackups
	if maxBackups <= 0 {
		maxBackups = 3
	}
	maxAge := log.MaxAgeDays
	if maxAge <= 0 {
		maxAge = 28
	}

	return &lumberjack.Logger{
		Filename:   log.Path,
		MaxSize:    maxSize,
		MaxBackups: maxBackups,
		MaxAge:     maxAge,
	}, nil
}

func setLogger(l *slog.Logger) {
	loggerMu.Lock()
	defer loggerMu.Unlock()
	logger = l
	slog.SetDefault(l)
}

// SetLevel changes the active log level at runtime.
func SetLevel(level slog.Level) {
	currentLevel.Set(level)
}

// Default returns the configured logger, or a bare stderr logger if
// Init has not yet run (useful in tests).
func Default() *slog.Logger {
	loggerMu.RLock()
	defer loggerMu.RUnlock()
	if logger == nil {
		return slog.New(slog.NewTextHandler(os.Stderr, nil))
	}
	return logger
}

// ForComponent returns a child logger tagged with the given component
// name, e.g. "ring", "trigger", "tdoa".
func ForComponent(name string) *slog.Logger {
	return Default().With("component", name)
}

func Debug(msg string, args ...any) { Default().Debug(msg, args...) }
func Info(msg string, args ...any)  { Default().Info(msg, args...) }
func Warn(msg string, args ...any)  { Default().Warn(msg, args...) }
func Error(msg string, args ...any) { Default().Error(msg, args...) }

// Trace logs at the custom trace level, below Debug.
func Trace(msg string, args ...any) {
	Default().Log(context.Background(), LevelTrace, msg, args...)
}

// Fatal logs at the custom fatal level and exits the process.
func Fatal(msg string, args ...any) {
	Default().Log(context.Background(), LevelFatal, msg, args...)
	os.Exit(1)
}
