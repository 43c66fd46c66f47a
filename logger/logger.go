package logger

import (
	"fmt"
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Func is alias of logger function.
type Func = func(string, ...interface{})

// Logger is the backend used by the package level functions.
type Logger interface {
	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

// Level is level of logger.
type Level int8

func (s Level) String() string {
	switch s {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

const (
	// LevelDebug is DEBUG level.
	LevelDebug Level = iota
	// LevelInfo is INFO level.
	LevelInfo
	// LevelWarn is WARN level.
	LevelWarn
	// LevelError is ERROR level.
	LevelError
)

var (
	mu         sync.RWMutex
	lvl        = LevelInfo
	prefix     = true
	i, d, w, e Func
)

func init() {
	useLogger(defaultLogger())
}

type zapLogger struct {
	s *zap.SugaredLogger
}

func (z zapLogger) Debugf(format string, args ...interface{}) { z.s.Debugf(format, args...) }
func (z zapLogger) Infof(format string, args ...interface{})  { z.s.Infof(format, args...) }
func (z zapLogger) Warnf(format string, args ...interface{})  { z.s.Warnf(format, args...) }
func (z zapLogger) Errorf(format string, args ...interface{}) { z.s.Errorf(format, args...) }

// NewZapLogger adapts a zap logger to Logger.
// Level filtering is done by this package, so the zap core should accept debug entries.
func NewZapLogger(l *zap.Logger) Logger {
	return zapLogger{s: l.WithOptions(zap.AddCallerSkip(3)).Sugar()}
}

func defaultLogger() Logger {
	cfg := zap.NewDevelopmentEncoderConfig()
	cfg.LevelKey = ""
	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(cfg),
		zapcore.Lock(os.Stderr),
		zapcore.DebugLevel,
	)
	return NewZapLogger(zap.New(core, zap.AddCaller()))
}

func useLogger(l Logger) {
	d, i, w, e = l.Debugf, l.Infof, l.Warnf, l.Errorf
}

// SetLogger replaces the logger backend. A nil logger restores the default one.
func SetLogger(l Logger) {
	if l == nil {
		l = defaultLogger()
	}
	mu.Lock()
	useLogger(l)
	mu.Unlock()
}

// SetLevel set global log level.
// Available levels are `LevelDebug`, `LevelInfo`, `LevelWarn` and `LevelError`.
func SetLevel(level Level) {
	mu.Lock()
	lvl = level
	mu.Unlock()
}

// DisablePrefix disable print level prefix.
func DisablePrefix() {
	mu.Lock()
	prefix = false
	mu.Unlock()
}

// GetLevel returns current logger level.
func GetLevel() Level {
	mu.RLock()
	defer mu.RUnlock()
	return lvl
}

// SetFunc set logger func for custom level.
func SetFunc(level Level, fn Func) {
	if fn == nil {
		return
	}
	mu.Lock()
	defer mu.Unlock()
	switch level {
	case LevelDebug:
		d = fn
	case LevelInfo:
		i = fn
	case LevelWarn:
		w = fn
	case LevelError:
		e = fn
	}
}

// IsDebugEnabled returns true if debug level is open.
func IsDebugEnabled() bool {
	return GetLevel() <= LevelDebug
}

func output(level Level, format string, v []interface{}) {
	mu.RLock()
	if lvl > level {
		mu.RUnlock()
		return
	}
	var fn Func
	switch level {
	case LevelDebug:
		fn = d
	case LevelInfo:
		fn = i
	case LevelWarn:
		fn = w
	default:
		fn = e
	}
	p := prefix
	mu.RUnlock()
	if p {
		format = fmt.Sprintf("[%s] %s", level, format)
	}
	fn(format, v...)
}

// Debugf prints debug level log.
func Debugf(format string, v ...interface{}) {
	output(LevelDebug, format, v)
}

// Infof prints info level log.
func Infof(format string, v ...interface{}) {
	output(LevelInfo, format, v)
}

// Warnf prints warn level log.
func Warnf(format string, v ...interface{}) {
	output(LevelWarn, format, v)
}

// Errorf prints error level log.
func Errorf(format string, v ...interface{}) {
	output(LevelError, format, v)
}
