package logging

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// impl writes entries straight to its zap cores. Level filtering is done here rather than in
// the cores so a debug-mode context can get past it.
type impl struct {
	name  string
	level AtomicLevel
	inUTC bool
	cores []zapcore.Core
}

func newImpl(name string, level Level, inUTC bool, cores ...zapcore.Core) *impl {
	return &impl{name: name, level: NewAtomicLevelAt(level), inUTC: inUTC, cores: cores}
}

func (imp *impl) SetLevel(level Level) { imp.level.Set(level) }

func (imp *impl) GetLevel() Level { return imp.level.Get() }

func (imp *impl) Sublogger(subname string) Logger {
	name := subname
	if imp.name != "" {
		name = imp.name + "." + subname
	}
	return newImpl(name, imp.level.Get(), imp.inUTC, imp.cores...)
}

func (imp *impl) Sync() error {
	var errs error
	for _, core := range imp.cores {
		errs = multierr.Append(errs, core.Sync())
	}
	return errs
}

func (imp *impl) enabled(level Level) bool {
	return level >= imp.level.Get()
}

// write must be called directly by the exported logging method so the caller frame is right.
func (imp *impl) write(level Level, msg string, keysAndValues []interface{}) {
	entry := zapcore.Entry{
		Level:      level.AsZap(),
		Time:       time.Now(),
		LoggerName: imp.name,
		Message:    msg,
	}
	if imp.inUTC {
		entry.Time = entry.Time.UTC()
	}
	// write <- Infow & co <- caller
	if pc, file, line, ok := runtime.Caller(2); ok {
		entry.Caller = zapcore.EntryCaller{Defined: true, PC: pc, File: file, Line: line}
	}

	fields := toFields(keysAndValues)
	for _, core := range imp.cores {
		if err := core.Write(entry, fields); err != nil {
			fmt.Fprintln(os.Stderr, err)
		}
	}
}

var errUnpairedKey = errors.New("unpaired log key")

func toFields(keysAndValues []interface{}) []zapcore.Field {
	if len(keysAndValues) == 0 {
		return nil
	}
	fields := make([]zapcore.Field, 0, (len(keysAndValues)+1)/2)
	for i := 0; i < len(keysAndValues); i += 2 {
		key := fmt.Sprint(keysAndValues[i])
		if i+1 == len(keysAndValues) {
			fields = append(fields, zap.Any(key, errUnpairedKey))
			break
		}
		fields = append(fields, zap.Any(key, keysAndValues[i+1]))
	}
	return fields
}

func (imp *impl) Debug(args ...interface{}) {
	if imp.enabled(DEBUG) {
		imp.write(DEBUG, fmt.Sprint(args...), nil)
	}
}

func (imp *impl) Debugw(msg string, keysAndValues ...interface{}) {
	if imp.enabled(DEBUG) {
		imp.write(DEBUG, msg, keysAndValues)
	}
}

func (imp *impl) CDebugw(ctx context.Context, msg string, keysAndValues ...interface{}) {
	if imp.enabled(DEBUG) || IsDebugMode(ctx) {
		imp.write(DEBUG, msg, keysAndValues)
	}
}

func (imp *impl) Info(args ...interface{}) {
	if imp.enabled(INFO) {
		imp.write(INFO, fmt.Sprint(args...), nil)
	}
}

func (imp *impl) Infof(template string, args ...interface{}) {
	if imp.enabled(INFO) {
		imp.write(INFO, fmt.Sprintf(template, args...), nil)
	}
}

func (imp *impl) Infow(msg string, keysAndValues ...interface{}) {
	if imp.enabled(INFO) {
		imp.write(INFO, msg, keysAndValues)
	}
}

func (imp *impl) CInfow(ctx context.Context, msg string, keysAndValues ...interface{}) {
	if imp.enabled(INFO) || IsDebugMode(ctx) {
		imp.write(INFO, msg, keysAndValues)
	}
}

func (imp *impl) Warnw(msg string, keysAndValues ...interface{}) {
	if imp.enabled(WARN) {
		imp.write(WARN, msg, keysAndValues)
	}
}

func (imp *impl) CWarnw(ctx context.Context, msg string, keysAndValues ...interface{}) {
	if imp.enabled(WARN) || IsDebugMode(ctx) {
		imp.write(WARN, msg, keysAndValues)
	}
}

func (imp *impl) Errorf(template string, args ...interface{}) {
	if imp.enabled(ERROR) {
		imp.write(ERROR, fmt.Sprintf(template, args...), nil)
	}
}

func (imp *impl) Errorw(msg string, keysAndValues ...interface{}) {
	if imp.enabled(ERROR) {
		imp.write(ERROR, msg, keysAndValues)
	}
}

func (imp *impl) CErrorw(ctx context.Context, msg string, keysAndValues ...interface{}) {
	if imp.enabled(ERROR) || IsDebugMode(ctx) {
		imp.write(ERROR, msg, keysAndValues)
	}
}
