package log

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/spanlog/spanlog/trace"

	E "github.com/sagernet/sing/common/exceptions"
	"github.com/sagernet/sing/common/observable"
)

// ErrNotInitialized is returned by Subscribe when the factory was built
// without the observable stream.
var ErrNotInitialized = E.New("not initialized")

// Logger raises events against the background context.
type Logger interface {
	Trace(message string, fields ...Field)
	Debug(message string, fields ...Field)
	Info(message string, fields ...Field)
	Warn(message string, fields ...Field)
	Error(message string, fields ...Field)
}

// ContextLogger additionally resolves span context and per-flow metadata
// from an explicit context handle.
type ContextLogger interface {
	Logger
	TraceContext(ctx context.Context, message string, fields ...Field)
	DebugContext(ctx context.Context, message string, fields ...Field)
	InfoContext(ctx context.Context, message string, fields ...Field)
	WarnContext(ctx context.Context, message string, fields ...Field)
	ErrorContext(ctx context.Context, message string, fields ...Field)
}

// Factory owns a set of sinks and hands out loggers bound to targets.
type Factory interface {
	Start() error
	Close() error
	Level() Level
	SetLevel(level Level)
	Logger() ContextLogger
	NewLogger(target string) ContextLogger
}

// ObservableFactory exposes the in-process subscription stream. Subscribers
// receive every level-admitted event; the rate limiter never gates this
// path, mirroring how trace export must not be affected by local throttling.
type ObservableFactory interface {
	Factory
	Subscribe() (subscription observable.Subscription[Event], done <-chan struct{}, err error)
	UnSubscribe(subscription observable.Subscription[Event])
}

// sink pairs an output with its own rate limiter. Limits are per sink, so
// one noisy destination configuration never throttles another.
type sink struct {
	output     Output
	limiter    *RateLimiter
	reportOnce sync.Once
}

var _ ObservableFactory = (*pipelineFactory)(nil)

type pipelineFactory struct {
	ctx            context.Context
	sinks          []*sink
	level          atomic.Uint32
	resource       Resource
	errorHandler   func(error)
	needObservable bool
	subscriber     *observable.Subscriber[Event]
	observer       *observable.Observer[Event]
}

func newPipelineFactory(ctx context.Context, sinks []*sink, resource Resource, errorHandler func(error), needObservable bool) ObservableFactory {
	factory := &pipelineFactory{
		ctx:            ctx,
		sinks:          sinks,
		resource:       resource,
		errorHandler:   errorHandler,
		needObservable: needObservable,
		subscriber:     observable.NewSubscriber[Event](128),
	}
	factory.level.Store(uint32(LevelTrace))
	if needObservable {
		factory.observer = observable.NewObserver[Event](factory.subscriber, 64)
	}
	return factory
}

func (f *pipelineFactory) Start() error {
	for _, s := range f.sinks {
		if starter, isStarter := s.output.(Starter); isStarter {
			if err := starter.Start(); err != nil {
				return err
			}
		}
	}
	return nil
}

func (f *pipelineFactory) Close() error {
	var firstError error
	for _, s := range f.sinks {
		if err := s.output.Close(); err != nil && firstError == nil {
			firstError = err
		}
	}
	if err := f.subscriber.Close(); err != nil && firstError == nil {
		firstError = err
	}
	return firstError
}

func (f *pipelineFactory) Level() Level {
	return Level(f.level.Load())
}

func (f *pipelineFactory) SetLevel(level Level) {
	f.level.Store(uint32(level))
}

func (f *pipelineFactory) Logger() ContextLogger {
	return f.NewLogger("")
}

func (f *pipelineFactory) NewLogger(target string) ContextLogger {
	return &pipelineLogger{factory: f, target: target}
}

func (f *pipelineFactory) Subscribe() (subscription observable.Subscription[Event], done <-chan struct{}, err error) {
	if f.observer == nil {
		return nil, nil, ErrNotInitialized
	}
	return f.observer.Subscribe()
}

func (f *pipelineFactory) UnSubscribe(subscription observable.Subscription[Event]) {
	if f.observer != nil {
		f.observer.UnSubscribe(subscription)
	}
}

func (f *pipelineFactory) reportError(err error) {
	if f.errorHandler != nil {
		f.errorHandler(err)
		return
	}
	fmt.Fprintln(os.Stderr, err)
}

type pipelineLogger struct {
	factory *pipelineFactory
	target  string
}

// log drives one event through the pipeline: resolve span context, check the
// per-sink rate limit, format, write. The span snapshot is taken here,
// synchronously, so attributes recorded after this call never appear in the
// event. Write failures are reported once per sink and never returned to the
// raising flow.
func (l *pipelineLogger) log(ctx context.Context, level Level, message string, fields []Field) {
	if ctx == nil {
		ctx = context.Background()
	}
	level = OverrideLevelFromContext(level, ctx)
	if uint32(level) > l.factory.level.Load() {
		return
	}
	var (
		file string
		line int
	)
	if _, callerFile, callerLine, ok := runtime.Caller(2); ok {
		file = filepath.Base(callerFile)
		line = callerLine
	}
	event := &Event{
		CallSite:   callSiteID(file, line, message),
		Level:      level,
		Target:     l.target,
		Message:    message,
		Fields:     coerceFields(fields),
		Timestamp:  time.Now(),
		ThreadID:   goroutineID(),
		ThreadName: ThreadNameFromContext(ctx),
		Filename:   file,
		Line:       line,
		Spans:      coerceSnapshots(trace.SnapshotAll(ctx)),
		Resource:   l.factory.resource,
	}
	if l.factory.needObservable {
		l.factory.subscriber.Emit(*event)
	}
	for _, s := range l.factory.sinks {
		if !s.limiter.Admit(event.CallSite, event.Timestamp) {
			continue
		}
		if err := s.output.Write(event); err != nil {
			s.reportOnce.Do(func() {
				l.factory.reportError(E.Cause(err, "write log output"))
			})
		}
	}
}

func (l *pipelineLogger) Trace(message string, fields ...Field) {
	l.log(context.Background(), LevelTrace, message, fields)
}

func (l *pipelineLogger) Debug(message string, fields ...Field) {
	l.log(context.Background(), LevelDebug, message, fields)
}

func (l *pipelineLogger) Info(message string, fields ...Field) {
	l.log(context.Background(), LevelInfo, message, fields)
}

func (l *pipelineLogger) Warn(message string, fields ...Field) {
	l.log(context.Background(), LevelWarn, message, fields)
}

func (l *pipelineLogger) Error(message string, fields ...Field) {
	l.log(context.Background(), LevelError, message, fields)
}

func (l *pipelineLogger) TraceContext(ctx context.Context, message string, fields ...Field) {
	l.log(ctx, LevelTrace, message, fields)
}

func (l *pipelineLogger) DebugContext(ctx context.Context, message string, fields ...Field) {
	l.log(ctx, LevelDebug, message, fields)
}

func (l *pipelineLogger) InfoContext(ctx context.Context, message string, fields ...Field) {
	l.log(ctx, LevelInfo, message, fields)
}

func (l *pipelineLogger) WarnContext(ctx context.Context, message string, fields ...Field) {
	l.log(ctx, LevelWarn, message, fields)
}

func (l *pipelineLogger) ErrorContext(ctx context.Context, message string, fields ...Field) {
	l.log(ctx, LevelError, message, fields)
}
