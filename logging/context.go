package logging

import (
	"context"

	"go.viam.com/utils"
)

type debugKeyType struct{}

// EnableDebugMode marks ctx so that C-prefixed log calls made with it are written whatever the
// logger's level is. key tags the calls; an empty key is replaced with a random one.
func EnableDebugMode(ctx context.Context, key string) context.Context {
	if key == "" {
		key = utils.RandomAlphaString(6)
	}
	return context.WithValue(ctx, debugKeyType{}, key)
}

// IsDebugMode reports whether ctx was marked by EnableDebugMode.
func IsDebugMode(ctx context.Context) bool {
	return DebugKey(ctx) != ""
}

// DebugKey returns the key ctx was marked with, or "".
func DebugKey(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	key, _ := ctx.Value(debugKeyType{}).(string)
	return key
}
