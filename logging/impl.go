package logging

import (
	"fmt"
	"os"
	"runtime"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// leveledLogger hands every enabled entry to each of its appenders.
type leveledLogger struct {
	name      string
	level     AtomicLevel
	inUTC     bool
	appenders []Appender
}

func newLeveledLogger(name string, level Level, inUTC bool, appenders ...Appender) *leveledLogger {
	return &leveledLogger{name: name, level: NewAtomicLevelAt(level), inUTC: inUTC, appenders: appenders}
}

func (l *leveledLogger) AddAppender(appender Appender) {
	l.appenders = append(l.appenders, appender)
}

func (l *leveledLogger) SetLevel(level Level) {
	l.level.Set(level)
}

func (l *leveledLogger) GetLevel() Level {
	return l.level.Get()
}

// Sublogger writes to the same appenders under "<name>.<subname>". It starts at the parent's
// current level and changing either level afterwards does not affect the other.
func (l *leveledLogger) Sublogger(subname string) Logger {
	name := subname
	if l.name != "" {
		name = l.name + "." + subname
	}
	return newLeveledLogger(name, l.GetLevel(), l.inUTC, l.appenders...)
}

func (l *leveledLogger) Sync() error {
	var err error
	for _, appender := range l.appenders {
		err = multierr.Append(err, appender.Sync())
	}
	return err
}

// AsZap returns a zap logger at the same level and name for libraries that want one. Appenders
// that are zap cores, such as the test observer, also receive its entries.
func (l *leveledLogger) AsZap() *zap.SugaredLogger {
	config := NewZapLoggerConfig()
	config.Level = zap.NewAtomicLevelAt(l.GetLevel().AsZap())
	sugared := zap.Must(config.Build()).Sugar().Named(l.name)
	for _, appender := range l.appenders {
		if core, ok := appender.(zapcore.Core); ok {
			sugared = sugared.WithOptions(zap.WrapCore(func(c zapcore.Core) zapcore.Core {
				return zapcore.NewTee(c, core)
			}))
		}
	}
	return sugared
}

func (l *leveledLogger) enabled(level Level) bool {
	return level >= l.level.Get()
}

// write must be called directly from the exported logging method so the caller is found.
func (l *leveledLogger) write(level Level, msg string, fields []zapcore.Field) {
	entry := zapcore.Entry{
		Level:      level.AsZap(),
		Time:       time.Now(),
		LoggerName: l.name,
		Message:    msg,
		Caller:     caller(),
	}
	if l.inUTC {
		entry.Time = entry.Time.UTC()
	}
	for _, appender := range l.appenders {
		if err := appender.Write(entry, fields); err != nil {
			fmt.Fprintln(os.Stderr, err)
		}
	}
}

// keyValueFields pairs up alternating keys and values. A trailing key without a value is kept
// with an error as its value.
func keyValueFields(keysAndValues []interface{}) []zapcore.Field {
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

var errUnpairedKey = fmt.Errorf("unpaired log key")

func (l *leveledLogger) Debug(args ...interface{}) {
	if l.enabled(DEBUG) {
		l.write(DEBUG, fmt.Sprint(args...), nil)
	}
}

func (l *leveledLogger) Debugw(msg string, keysAndValues ...interface{}) {
	if l.enabled(DEBUG) {
		l.write(DEBUG, msg, keyValueFields(keysAndValues))
	}
}

func (l *leveledLogger) Info(args ...interface{}) {
	if l.enabled(INFO) {
		l.write(INFO, fmt.Sprint(args...), nil)
	}
}

func (l *leveledLogger) Infof(template string, args ...interface{}) {
	if l.enabled(INFO) {
		l.write(INFO, fmt.Sprintf(template, args...), nil)
	}
}

func (l *leveledLogger) Infow(msg string, keysAndValues ...interface{}) {
	if l.enabled(INFO) {
		l.write(INFO, msg, keyValueFields(keysAndValues))
	}
}

func (l *leveledLogger) Warnw(msg string, keysAndValues ...interface{}) {
	if l.enabled(WARN) {
		l.write(WARN, msg, keyValueFields(keysAndValues))
	}
}

func (l *leveledLogger) Errorf(template string, args ...interface{}) {
	if l.enabled(ERROR) {
		l.write(ERROR, fmt.Sprintf(template, args...), nil)
	}
}

func (l *leveledLogger) Errorw(msg string, keysAndValues ...interface{}) {
	if l.enabled(ERROR) {
		l.write(ERROR, msg, keyValueFields(keysAndValues))
	}
}

// caller returns where the exported logging method was called from, three frames up from here:
// caller, write, then the logging method.
func caller() zapcore.EntryCaller {
	const skip = 3
	pc, file, line, ok := runtime.Caller(skip)
	if !ok {
		return zapcore.EntryCaller{}
	}
	c := zapcore.EntryCaller{Defined: true, PC: pc, File: file, Line: line}
	if fn := runtime.FuncForPC(pc); fn != nil {
		c.Function = fn.Name()
	}
	return c
}
