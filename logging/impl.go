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

// impl is the Logger behind every constructor of this package. Subloggers share the appenders of
// their parent but have their own level and fixed fields.
type impl struct {
	name   string
	level  AtomicLevel
	inUTC  bool
	fields []zapcore.Field

	appenders []Appender
}

func (imp *impl) AddAppender(appender Appender) {
	imp.appenders = append(imp.appenders, appender)
}

func (imp *impl) SetLevel(level Level) {
	imp.level.Set(level)
}

func (imp *impl) GetLevel() Level {
	return imp.level.Get()
}

func (imp *impl) Sublogger(subname string) Logger {
	newName := subname
	if imp.name != "" {
		newName = fmt.Sprintf("%s.%s", imp.name, subname)
	}
	return &impl{
		name:      newName,
		level:     NewAtomicLevelAt(imp.level.Get()),
		inUTC:     imp.inUTC,
		fields:    imp.fields,
		appenders: imp.appenders,
	}
}

func (imp *impl) WithFields(keysAndValues ...interface{}) Logger {
	fields := make([]zapcore.Field, 0, len(imp.fields)+len(keysAndValues)/2)
	fields = append(fields, imp.fields...)
	return &impl{
		name:      imp.name,
		level:     imp.level,
		inUTC:     imp.inUTC,
		fields:    append(fields, toFields(keysAndValues)...),
		appenders: imp.appenders,
	}
}

func (imp *impl) Sync() error {
	var err error
	for _, appender := range imp.appenders {
		err = multierr.Combine(err, appender.Sync())
	}
	return err
}

// AsZap returns a zap logger that writes through the same appenders, fields and level, for
// libraries that want a zap or standard library logger.
func (imp *impl) AsZap() *zap.SugaredLogger {
	return zap.New(&zapCore{imp: imp}, zap.AddCaller()).Named(imp.name).Sugar()
}

// zapCore adapts an impl to zapcore.Core.
type zapCore struct {
	imp    *impl
	fields []zapcore.Field
}

func (c *zapCore) Enabled(level zapcore.Level) bool {
	return c.imp.level.Get().AsZap().Enabled(level)
}

func (c *zapCore) With(fields []zapcore.Field) zapcore.Core {
	return &zapCore{imp: c.imp, fields: append(append([]zapcore.Field{}, c.fields...), fields...)}
}

func (c *zapCore) Check(entry zapcore.Entry, checked *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(entry.Level) {
		return checked.AddCore(entry, c)
	}
	return checked
}

func (c *zapCore) Write(entry zapcore.Entry, fields []zapcore.Field) error {
	if c.imp.inUTC {
		entry.Time = entry.Time.UTC()
	}
	all := make([]zapcore.Field, 0, len(c.imp.fields)+len(c.fields)+len(fields))
	all = append(append(append(all, c.imp.fields...), c.fields...), fields...)
	var err error
	for _, appender := range c.imp.appenders {
		err = multierr.Combine(err, appender.Write(entry, all))
	}
	return err
}

func (c *zapCore) Sync() error {
	return c.imp.Sync()
}

func (imp *impl) enabled(ctx context.Context, level Level) bool {
	if level >= imp.level.Get() {
		return true
	}
	return level == DEBUG && IsDebugMode(ctx)
}

// write sends one entry to every appender. Appender failures go to stderr since there is no
// better place left to report them.
func (imp *impl) write(level Level, msg string, fields []zapcore.Field) {
	entry := zapcore.Entry{
		Level:      level.AsZap(),
		Time:       time.Now(),
		LoggerName: imp.name,
		Message:    msg,
		Caller:     getCaller(),
	}
	if imp.inUTC {
		entry.Time = entry.Time.UTC()
	}
	if len(imp.fields) > 0 {
		fields = append(append(make([]zapcore.Field, 0, len(imp.fields)+len(fields)), imp.fields...), fields...)
	}
	for _, appender := range imp.appenders {
		if err := appender.Write(entry, fields); err != nil {
			fmt.Fprint(os.Stderr, err)
		}
	}
}

// toFields turns alternating keys and values into zap fields. A trailing key without a value is
// kept with an error value instead of being dropped.
func toFields(keysAndValues []interface{}) []zapcore.Field {
	fields := make([]zapcore.Field, 0, len(keysAndValues)/2)
	for keyIdx := 0; keyIdx < len(keysAndValues); keyIdx += 2 {
		var key string
		if stringer, ok := keysAndValues[keyIdx].(fmt.Stringer); ok {
			key = stringer.String()
		} else {
			key = fmt.Sprintf("%v", keysAndValues[keyIdx])
		}
		if keyIdx+1 < len(keysAndValues) {
			fields = append(fields, zap.Any(key, keysAndValues[keyIdx+1]))
		} else {
			fields = append(fields, zap.Any(key, errors.New("unpaired log key")))
		}
	}
	return fields
}

// bg is used by the methods that take no context.
var bg = context.Background()

// The three helpers below are the only callers of write, which keeps the caller depth fixed.

func (imp *impl) print(ctx context.Context, level Level, args []interface{}) {
	if imp.enabled(ctx, level) {
		imp.write(level, fmt.Sprint(args...), nil)
	}
}

func (imp *impl) printf(ctx context.Context, level Level, template string, args []interface{}) {
	if imp.enabled(ctx, level) {
		imp.write(level, fmt.Sprintf(template, args...), nil)
	}
}

func (imp *impl) printw(ctx context.Context, level Level, msg string, keysAndValues []interface{}) {
	if imp.enabled(ctx, level) {
		imp.write(level, msg, toFields(keysAndValues))
	}
}

func (imp *impl) Debug(args ...interface{}) {
	imp.print(bg, DEBUG, args)
}

func (imp *impl) CDebug(ctx context.Context, args ...interface{}) {
	imp.print(ctx, DEBUG, args)
}

func (imp *impl) Debugf(template string, args ...interface{}) {
	imp.printf(bg, DEBUG, template, args)
}

func (imp *impl) CDebugf(ctx context.Context, template string, args ...interface{}) {
	imp.printf(ctx, DEBUG, template, args)
}

func (imp *impl) Debugw(msg string, keysAndValues ...interface{}) {
	imp.printw(bg, DEBUG, msg, keysAndValues)
}

func (imp *impl) CDebugw(ctx context.Context, msg string, keysAndValues ...interface{}) {
	imp.printw(ctx, DEBUG, msg, keysAndValues)
}

func (imp *impl) Info(args ...interface{}) {
	imp.print(bg, INFO, args)
}

func (imp *impl) Infof(template string, args ...interface{}) {
	imp.printf(bg, INFO, template, args)
}

func (imp *impl) Infow(msg string, keysAndValues ...interface{}) {
	imp.printw(bg, INFO, msg, keysAndValues)
}

func (imp *impl) Warn(args ...interface{}) {
	imp.print(bg, WARN, args)
}

func (imp *impl) Warnf(template string, args ...interface{}) {
	imp.printf(bg, WARN, template, args)
}

func (imp *impl) Warnw(msg string, keysAndValues ...interface{}) {
	imp.printw(bg, WARN, msg, keysAndValues)
}

func (imp *impl) Error(args ...interface{}) {
	imp.print(bg, ERROR, args)
}

func (imp *impl) Errorf(template string, args ...interface{}) {
	imp.printf(bg, ERROR, template, args)
}

func (imp *impl) Errorw(msg string, keysAndValues ...interface{}) {
	imp.printw(bg, ERROR, msg, keysAndValues)
}

// These Fatal* methods log as errors then exit the process.
func (imp *impl) Fatal(args ...interface{}) {
	imp.print(bg, ERROR, args)
	os.Exit(1)
}

func (imp *impl) Fatalf(template string, args ...interface{}) {
	imp.printf(bg, ERROR, template, args)
	os.Exit(1)
}

func (imp *impl) Fatalw(msg string, keysAndValues ...interface{}) {
	imp.printw(bg, ERROR, msg, keysAndValues)
	os.Exit(1)
}

// getCaller returns the caller of the public logging method, e.g. "logging/impl_test.go:36".
func getCaller() zapcore.EntryCaller {
	var ok bool
	var entryCaller zapcore.EntryCaller
	const skipToLogCaller = 4
	entryCaller.PC, entryCaller.File, entryCaller.Line, ok = runtime.Caller(skipToLogCaller)
	if !ok {
		return entryCaller
	}
	entryCaller.Defined = true

	runtimeFunc := runtime.FuncForPC(entryCaller.PC)
	if runtimeFunc != nil {
		entryCaller.Function = runtimeFunc.Name()
	}
	return entryCaller
}
