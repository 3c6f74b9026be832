package logging

import (
	"context"

	"github.com/google/uuid"
)

type debugKeyCtx struct{}

// EnableDebugMode returns a context under which CDebug calls log regardless of the logger's
// level. The key is attached to those lines; an empty key is replaced with a short random one.
func EnableDebugMode(ctx context.Context, key string) context.Context {
	if key == "" {
		key = uuid.NewString()[:8]
	}
	return context.WithValue(ctx, debugKeyCtx{}, key)
}

// DebugKey returns the key ctx was put into debug mode with.
func DebugKey(ctx context.Context) (string, bool) {
	key, ok := ctx.Value(debugKeyCtx{}).(string)
	return key, ok && key != ""
}

// IsDebugMode reports whether ctx was put into debug mode.
func IsDebugMode(ctx context.Context) bool {
	_, ok := DebugKey(ctx)
	return ok
}
