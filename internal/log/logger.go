package log

import (
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	logger   *zap.SugaredLogger
	initOnce sync.Once
)

// InitLogger replaces the global zap logger. With debug set it builds
// a colored development console encoder; otherwise it installs a nop
// logger so every chat/providers/realtime call site's zap.S() calls
// stay silent by default. Safe to call more than once (e.g. a test
// harness resetting state between cases); the last call wins.
func InitLogger(debug bool) {
	var l *zap.Logger

	if debug {
		config := zap.NewDevelopmentConfig()
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		config.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05.000")
		config.DisableStacktrace = true

		var err error
		l, err = config.Build()
		if err != nil {
			panic(err)
		}
	} else {
		l = zap.NewNop()
	}

	zap.ReplaceGlobals(l)
	zap.RedirectStdLog(l)
	logger = l.Sugar()
}

// GetLogger returns the global sugared logger, lazily defaulting to a
// silent logger on first use if nothing called InitLogger yet.
func GetLogger() *zap.SugaredLogger {
	initOnce.Do(func() {
		if logger == nil {
			InitLogger(false)
		}
	})
	return logger
}
