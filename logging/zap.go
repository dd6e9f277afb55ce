// Package logging adapts zap to the account logger interface.
package logging

import (
	"strings"

	account "github.com/goliatone/go-account"
	"go.uber.org/zap"
)

// ZapLogger implements account.Logger on top of a sugared zap logger.
// Messages with printf verbs are formatted, anything else treats the
// arguments as key value pairs.
type ZapLogger struct {
	sugar *zap.SugaredLogger
}

var _ account.Logger = (*ZapLogger)(nil)

// NewZapLogger wraps logger, a nil logger discards everything
func NewZapLogger(logger *zap.Logger) *ZapLogger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ZapLogger{sugar: logger.WithOptions(zap.AddCallerSkip(2)).Sugar()}
}

// New builds a development logger when debug is set, a production one
// otherwise.
func New(debug bool) (*ZapLogger, error) {
	var (
		logger *zap.Logger
		err    error
	)
	if debug {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		return nil, err
	}
	return NewZapLogger(logger), nil
}

// Named returns a child logger
func (l *ZapLogger) Named(name string) *ZapLogger {
	return &ZapLogger{sugar: l.sugar.Named(name)}
}

// Sync flushes buffered entries
func (l *ZapLogger) Sync() error {
	return l.sugar.Sync()
}

func (l *ZapLogger) Debug(format string, args ...any) {
	l.log(l.sugar.Debugf, l.sugar.Debugw, format, args)
}

func (l *ZapLogger) Info(format string, args ...any) {
	l.log(l.sugar.Infof, l.sugar.Infow, format, args)
}

func (l *ZapLogger) Warn(format string, args ...any) {
	l.log(l.sugar.Warnf, l.sugar.Warnw, format, args)
}

func (l *ZapLogger) Error(format string, args ...any) {
	l.log(l.sugar.Errorf, l.sugar.Errorw, format, args)
}

func (l *ZapLogger) log(printf func(string, ...any), kv func(string, ...any), format string, args []any) {
	if len(args) == 0 || strings.Contains(format, "%") {
		printf(format, args...)
		return
	}
	kv(format, args...)
}
