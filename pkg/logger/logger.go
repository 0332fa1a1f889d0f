package logger

import (
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	mu    sync.RWMutex
	base  *zap.Logger
	sugar *zap.SugaredLogger
)

func init() {
	if err := Init("info", "development"); err != nil {
		panic(err)
	}
}

// Init rebuilds the package logger. Production environments get JSON output,
// anything else the human-readable console encoder.
func Init(level, environment string) error {
	var cfg zap.Config
	if environment == "production" {
		cfg = zap.NewProductionConfig()
	} else {
		cfg = zap.NewDevelopmentConfig()
		cfg.DisableStacktrace = true
	}

	lvl, err := zapcore.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil {
		lvl = zapcore.InfoLevel
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)

	l, err := cfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}

	mu.Lock()
	base = l
	sugar = l.Sugar()
	mu.Unlock()
	return nil
}

// Replace swaps in an existing zap logger, mostly for tests using zaptest.
func Replace(l *zap.Logger) {
	mu.Lock()
	base = l.WithOptions(zap.AddCallerSkip(1))
	sugar = base.Sugar()
	mu.Unlock()
}

func current() *zap.SugaredLogger {
	mu.RLock()
	defer mu.RUnlock()
	return sugar
}

func Info(format string, v ...interface{}) {
	current().Infof(format, v...)
}

func Error(format string, v ...interface{}) {
	current().Errorf(format, v...)
}

func Debug(format string, v ...interface{}) {
	current().Debugf(format, v...)
}

func Warn(format string, v ...interface{}) {
	current().Warnf(format, v...)
}

func Sync() {
	mu.RLock()
	defer mu.RUnlock()
	_ = base.Sync()
}
