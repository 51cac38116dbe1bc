package core

import (
	"brewcore/pkg/domain"

	"go.uber.org/zap"
)

// ZapLogger adapts a zap logger to the domain Logger interface. Args are
// interpreted as alternating key/value pairs.
type ZapLogger struct {
	sugar *zap.SugaredLogger
}

var _ Logger = (*ZapLogger)(nil)

// NewZapLogger wraps an existing zap logger.
func NewZapLogger(logger *zap.Logger) *ZapLogger {
	return &ZapLogger{sugar: logger.Sugar()}
}

// NewProductionLogger builds a JSON-emitting logger for server deployments.
// The returned flush function should be deferred by the caller.
func NewProductionLogger() (*ZapLogger, func(), error) {
	logger, err := zap.NewProduction()
	if err != nil {
		return nil, nil, err
	}
	return NewZapLogger(logger), func() { _ = logger.Sync() }, nil
}

func (l *ZapLogger) Debug(msg string, args ...any) { l.sugar.Debugw(msg, args...) }
func (l *ZapLogger) Info(msg string, args ...any)  { l.sugar.Infow(msg, args...) }
func (l *ZapLogger) Warn(msg string, args ...any)  { l.sugar.Warnw(msg, args...) }
func (l *ZapLogger) Error(msg string, args ...any) { l.sugar.Errorw(msg, args...) }

// NopLogger returns a logger that discards everything.
func NopLogger() Logger { return domain.NopLogger{} }
