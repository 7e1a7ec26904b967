package core

import (
	"context"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type loggerKey struct{}

var (
	logLevel   = zap.NewAtomicLevelAt(zap.InfoLevel)
	baseLogger = newBaseLogger()
)

func newBaseLogger() *zap.Logger {
	cfg := zap.NewProductionConfig()
	cfg.Level = logLevel
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.Sampling = nil
	lg, err := cfg.Build()
	if err != nil {
		return zap.NewNop()
	}
	return lg
}

// SetLogLevel changes the level of every logger handed out by this package
func SetLogLevel(level string) error {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return ErrInvalidInput.New("log level " + level)
	}
	logLevel.SetLevel(lvl)
	return nil
}

// WithDefaultLogger attaches a logger tagged with the request id to the context
func WithDefaultLogger(parent context.Context, reqId string) context.Context {
	return context.WithValue(parent, loggerKey{}, baseLogger.Sugar().With("req_id", reqId))
}

// Logger returns the logger carried by ctx, or the untagged base logger
func Logger(ctx context.Context) *zap.SugaredLogger {
	if ctx != nil {
		if lg, ok := ctx.Value(loggerKey{}).(*zap.SugaredLogger); ok {
			return lg
		}
	}
	return baseLogger.Sugar()
}

func Infof(ctx context.Context, tpl string, args ...any) {
	Logger(ctx).Infof(tpl, args...)
}

func Warnf(ctx context.Context, tpl string, args ...any) {
	Logger(ctx).Warnf(tpl, args...)
}

func Errorf(ctx context.Context, tpl string, args ...any) {
	Logger(ctx).Errorf(tpl, args...)
}

func Debugf(ctx context.Context, tpl string, args ...any) {
	Logger(ctx).Debugf(tpl, args...)
}

// Sync flushes buffered log entries
func Sync() {
	_ = baseLogger.Sync()
}
