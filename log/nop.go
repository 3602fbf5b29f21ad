package log

import (
	"context"

	"github.com/sagernet/sing/common/observable"
)

var _ ObservableFactory = (*nopFactory)(nil)

type nopFactory struct {
	level Level
}

// NewNOPFactory returns a factory that accepts every call and emits nothing.
// It backs disabled sinks.
func NewNOPFactory() ObservableFactory {
	return &nopFactory{level: LevelTrace}
}

func (f *nopFactory) Start() error {
	return nil
}

func (f *nopFactory) Close() error {
	return nil
}

func (f *nopFactory) Level() Level {
	return f.level
}

func (f *nopFactory) SetLevel(level Level) {
	f.level = level
}

func (f *nopFactory) Logger() ContextLogger {
	return (*nopLogger)(nil)
}

func (f *nopFactory) NewLogger(target string) ContextLogger {
	return (*nopLogger)(nil)
}

func (f *nopFactory) Subscribe() (observable.Subscription[Event], <-chan struct{}, error) {
	return nil, nil, ErrNotInitialized
}

func (f *nopFactory) UnSubscribe(subscription observable.Subscription[Event]) {
}

type nopLogger struct{}

func (l *nopLogger) Trace(message string, fields ...Field) {}
func (l *nopLogger) Debug(message string, fields ...Field) {}
func (l *nopLogger) Info(message string, fields ...Field)  {}
func (l *nopLogger) Warn(message string, fields ...Field)  {}
func (l *nopLogger) Error(message string, fields ...Field) {}

func (l *nopLogger) TraceContext(ctx context.Context, message string, fields ...Field) {}
func (l *nopLogger) DebugContext(ctx context.Context, message string, fields ...Field) {}
func (l *nopLogger) InfoContext(ctx context.Context, message string, fields ...Field)  {}
func (l *nopLogger) WarnContext(ctx context.Context, message string, fields ...Field)  {}
func (l *nopLogger) ErrorContext(ctx context.Context, message string, fields ...Field) {}
