package logging

import (
	"context"

	"go.viam.com/utils"
)

type debugSessionKey struct{}

// EnableDebugMode returns a context under which the C-prefixed debug methods log regardless of
// the logger level. Pipelines use it to debug a single camera. An empty name is replaced by a
// random one.
func EnableDebugMode(ctx context.Context, name string) context.Context {
	if name == "" {
		name = utils.RandomAlphaString(6)
	}
	return context.WithValue(ctx, debugSessionKey{}, name)
}

// IsDebugMode returns whether ctx was returned by EnableDebugMode.
func IsDebugMode(ctx context.Context) bool {
	return DebugSession(ctx) != ""
}

// DebugSession returns the name given to EnableDebugMode, or "".
func DebugSession(ctx context.Context) string {
	name, _ := ctx.Value(debugSessionKey{}).(string)
	return name
}
