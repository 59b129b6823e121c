// Package rtlog provides the runtime's structured logging surface.
//
// Every subsystem fetches a named logger the same way the rest of the
// code base fetches loggers: one per component, scoped by an instance
// name (worker id, pool name, reactor id, ...). The zap.Logger backing
// each component is shared so that level and output configuration is
// set once, at Init, and every subsystem picks it up.
package rtlog

import (
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	mu   sync.RWMutex
	base *zap.Logger
)

func init() {
	base, _ = zap.NewProduction()
}

// Init replaces the base logger used by every component logger returned
// from GetLogger. Call once during runtime startup, before any worker
// goroutine is spawned.
func Init(level zapcore.Level, development bool) error {
	cfg := zap.NewProductionConfig()
	if development {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(level)
	l, err := cfg.Build()
	if err != nil {
		return err
	}
	mu.Lock()
	base = l
	mu.Unlock()
	return nil
}

// Logger is the component-scoped logging handle used throughout the
// runtime. It is a thin wrapper over *zap.Logger so call sites read
// `log.Error("message", rtlog.Err(err))` rather than reaching for
// zap's field constructors directly everywhere.
type Logger struct {
	z *zap.Logger
}

// GetLogger returns a logger scoped to component/name, e.g.
// GetLogger("Worker", "0") or GetLogger("BlockingPool", "default").
func GetLogger(component, name string) Logger {
	mu.RLock()
	b := base
	mu.RUnlock()
	return Logger{z: b.With(zap.String("component", component), zap.String("name", name))}
}

func (l Logger) Debug(msg string, fields ...zap.Field) { l.z.Debug(msg, fields...) }
func (l Logger) Info(msg string, fields ...zap.Field)  { l.z.Info(msg, fields...) }
func (l Logger) Warn(msg string, fields ...zap.Field)  { l.z.Warn(msg, fields...) }
func (l Logger) Error(msg string, fields ...zap.Field) { l.z.Error(msg, fields...) }

// Fatal logs at fatal level then terminates the process. Reserved for
// the small set of failures the spec calls fatal-to-the-runtime (a
// poller error other than EINTR).
func (l Logger) Fatal(msg string, fields ...zap.Field) { l.z.Fatal(msg, fields...) }

// Err wraps a Go error as a zap field, matching the call shape used
// throughout the rest of the runtime.
func Err(err error) zap.Field { return zap.Error(err) }

// Stack attaches the current goroutine's stack trace to the log entry;
// used when reporting recovered panics (a blocking job, or dropping a
// task's future).
func Stack() zap.Field { return zap.Stack("stack") }

// String wraps a string as a zap field, matching the call shape used
// throughout the rest of the runtime.
func String(key, value string) zap.Field { return zap.String(key, value) }
