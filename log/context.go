package log

import (
	"context"
)

type overrideLevelKey struct{}

// ContextWithOverrideLevel forces every event raised with the returned
// context to use the given level instead of the one the call site declared.
func ContextWithOverrideLevel(ctx context.Context, level Level) context.Context {
	return context.WithValue(ctx, overrideLevelKey{}, level)
}

// OverrideLevelFromContext applies a level override carried by ctx, if any.
func OverrideLevelFromContext(level Level, ctx context.Context) Level {
	if override, loaded := ctx.Value(overrideLevelKey{}).(Level); loaded {
		return override
	}
	return level
}

type threadNameKey struct{}

// ContextWithThreadName names the logical worker owning this flow. Events
// raised with the returned context carry the name when the sink is
// configured to display it.
func ContextWithThreadName(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, threadNameKey{}, name)
}

// ThreadNameFromContext returns the worker name carried by ctx, if any.
func ThreadNameFromContext(ctx context.Context) string {
	name, _ := ctx.Value(threadNameKey{}).(string)
	return name
}
