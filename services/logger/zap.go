package logsvc

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/trezcool/hifdh/core"
)

// NewZap builds the zap logger of the app named name.
// Debug enables the development config. Log.File adds a rotating JSON file sink.
func NewZap(conf *core.Config, name string) (*zap.Logger, error) {
	zconf := zap.NewProductionConfig()
	if conf.Debug {
		zconf = zap.NewDevelopmentConfig()
	}
	zl, err := zconf.Build()
	if err != nil {
		return nil, err
	}

	if conf.Log.File != "" {
		fileWriter := zapcore.AddSync(&lumberjack.Logger{
			Filename:   conf.Log.File,
			MaxSize:    conf.Log.MaxSizeMB, // megabytes
			MaxBackups: conf.Log.MaxBackups,
			MaxAge:     conf.Log.MaxAgeDays, // days
			Compress:   true,
		})
		fileCore := zapcore.NewCore(zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()), fileWriter, zconf.Level)
		zl = zl.WithOptions(zap.WrapCore(func(c zapcore.Core) zapcore.Core {
			return zapcore.NewTee(c, fileCore)
		}))
	}
	return zl.Named(name), nil
}

// NewLogger returns the app logger: zap for local output, Rollbar for reporting.
func NewLogger(conf *core.Config, name string) (*RollbarLogger, error) {
	zl, err := NewZap(conf, name)
	if err != nil {
		return nil, err
	}
	return NewRollbarLogger(zl.Sugar(), conf), nil
}

// NewNopLogger discards everything. Used by tests.
func NewNopLogger() *RollbarLogger {
	return &RollbarLogger{zl: zap.NewNop().Sugar()}
}
