// Package logging contains the structured logger used across the eos node.
package logging

import (
	"sync"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	globalMu     sync.RWMutex
	globalLogger = NewDebugLogger("startup")
)

// ReplaceGlobal replaces the global logger.
func ReplaceGlobal(logger Logger) {
	globalMu.Lock()
	globalLogger = logger
	globalMu.Unlock()
}

// Global returns the global logger.
func Global() Logger {
	globalMu.RLock()
	defer globalMu.RUnlock()
	return globalLogger
}

// NewEncoderConfig returns the console encoder config shared by every stdout logger: no
// stacktraces, ISO8601 times and colored levels.
func NewEncoderConfig() zapcore.EncoderConfig {
	return zapcore.EncoderConfig{
		TimeKey:        "ts",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		FunctionKey:    zapcore.OmitKey,
		MessageKey:     "msg",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.CapitalColorLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}
}

// NewStdoutCore returns a console core writing to stdout. The core itself accepts every level;
// filtering happens in the logger so that a debug-mode context can bypass it.
func NewStdoutCore() zapcore.Core {
	return zapcore.NewCore(
		zapcore.NewConsoleEncoder(NewEncoderConfig()),
		zapcore.Lock(zapcore.AddSync(stdout{})),
		zapcore.DebugLevel,
	)
}

// NewFileCore returns a JSON core appending to the log file at path. The file is rotated at
// 64MB and the last three rotations are kept compressed.
func NewFileCore(path string) zapcore.Core {
	encoderCfg := NewEncoderConfig()
	encoderCfg.EncodeLevel = zapcore.LowercaseLevelEncoder
	return zapcore.NewCore(
		zapcore.NewJSONEncoder(encoderCfg),
		zapcore.AddSync(&lumberjack.Logger{
			Filename:   path,
			MaxSize:    64,
			MaxBackups: 3,
			Compress:   true,
		}),
		zapcore.DebugLevel,
	)
}

// NewLoggerWithCores returns a logger at level writing to every core, with UTC times.
func NewLoggerWithCores(name string, level Level, cores ...zapcore.Core) Logger {
	return newImpl(name, level, true, cores...)
}

// NewLogger returns a new logger that outputs Info+ logs to stdout in UTC.
func NewLogger(name string) Logger {
	return newImpl(name, INFO, true, NewStdoutCore())
}

// NewDebugLogger returns a new logger that outputs Debug+ logs to stdout in UTC.
func NewDebugLogger(name string) Logger {
	return newImpl(name, DEBUG, true, NewStdoutCore())
}

// NewBlankLogger returns a new Debug+ logger without any outputs.
func NewBlankLogger(name string) Logger {
	return newImpl(name, DEBUG, true)
}

// NewTestLogger returns a new logger that outputs Debug+ logs through the test's log.
func NewTestLogger(tb testing.TB) Logger {
	logger, _ := NewObservedTestLogger(tb)
	return logger
}

// NewObservedTestLogger is like NewTestLogger but also saves logs to an in memory observer.
func NewObservedTestLogger(tb testing.TB) (Logger, *observer.ObservedLogs) {
	observerCore, observedLogs := observer.New(zap.LevelEnablerFunc(zapcore.DebugLevel.Enabled))
	testCore := zaptest.NewLogger(tb, zaptest.Level(zapcore.DebugLevel)).Core()
	return newImpl("", DEBUG, false, testCore, observerCore), observedLogs
}
