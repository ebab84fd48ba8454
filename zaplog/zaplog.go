// Package zaplog adapts zap to the Logger interface used across the services.
package zaplog

import (
	"strings"

	"go.uber.org/zap"
)

// Logger wraps a zap.SugaredLogger. Calls with printf verbs go through the
// formatted variants; anything else is treated as structured key-value pairs.
type Logger struct {
	sugar *zap.SugaredLogger
}

// New builds a production logger named after the owning component.
func New(component string) (*Logger, error) {
	base, err := zap.NewProduction()
	if err != nil {
		return nil, err
	}
	return &Logger{sugar: base.Sugar().Named(component)}, nil
}

// NewDevelopment builds a human-readable logger for local runs.
func NewDevelopment(component string) (*Logger, error) {
	base, err := zap.NewDevelopment()
	if err != nil {
		return nil, err
	}
	return &Logger{sugar: base.Sugar().Named(component)}, nil
}

// FromZap wraps an existing zap logger.
func FromZap(base *zap.Logger, component string) *Logger {
	return &Logger{sugar: base.Sugar().Named(component)}
}

// Sync flushes buffered entries.
func (l *Logger) Sync() error {
	return l.sugar.Sync()
}

func (l *Logger) Debug(format string, args ...any) {
	if formatted(format) {
		l.sugar.Debugf(format, args...)
		return
	}
	l.sugar.Debugw(format, args...)
}

func (l *Logger) Info(format string, args ...any) {
	if formatted(format) {
		l.sugar.Infof(format, args...)
		return
	}
	l.sugar.Infow(format, args...)
}

func (l *Logger) Warn(format string, args ...any) {
	if formatted(format) {
		l.sugar.Warnf(format, args...)
		return
	}
	l.sugar.Warnw(format, args...)
}

func (l *Logger) Error(format string, args ...any) {
	if formatted(format) {
		l.sugar.Errorf(format, args...)
		return
	}
	l.sugar.Errorw(format, args...)
}

func formatted(format string) bool {
	return strings.ContainsRune(format, '%')
}
