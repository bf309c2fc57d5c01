package logging

import (
	"context"
)

// Logger is the structured logger handed to every component. The C-prefixed methods take the
// calling context so that a debug-mode context (see EnableDebugMode) is logged regardless of
// the logger's level.
type Logger interface {
	Debug(args ...interface{})
	Debugw(msg string, keysAndValues ...interface{})
	Info(args ...interface{})
	Infof(template string, args ...interface{})
	Infow(msg string, keysAndValues ...interface{})
	Warnw(msg string, keysAndValues ...interface{})
	Errorf(template string, args ...interface{})
	Errorw(msg string, keysAndValues ...interface{})

	CDebugw(ctx context.Context, msg string, keysAndValues ...interface{})
	CInfow(ctx context.Context, msg string, keysAndValues ...interface{})
	CWarnw(ctx context.Context, msg string, keysAndValues ...interface{})
	CErrorw(ctx context.Context, msg string, keysAndValues ...interface{})

	// Sublogger returns a logger named `<parent>.<subname>` sharing the parent's outputs. The
	// child starts at the parent's level and is adjusted independently afterwards.
	Sublogger(subname string) Logger
	SetLevel(level Level)
	GetLevel() Level
	Sync() error
}
