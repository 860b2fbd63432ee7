// Package logging builds the zap logger shared by every command.
package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Options struct {
	// Verbose enables debug output and stack traces.
	Verbose bool
	// Debug mirrors the debug setting: debug output without stack traces.
	Debug bool
	JSON  bool
}

func (o Options) Level() zapcore.Level {
	if o.Verbose || o.Debug {
		return zapcore.DebugLevel
	}
	return zapcore.InfoLevel
}

func Config(opts Options) zap.Config {
	var cfg zap.Config
	if opts.JSON {
		cfg = zap.NewProductionConfig()
		cfg.Encoding = "json"
	} else {
		cfg = zap.NewDevelopmentConfig()
		cfg.Encoding = "console"
		cfg.EncoderConfig.TimeKey = ""
		cfg.EncoderConfig.EncodeCaller = nil
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	cfg.Level = zap.NewAtomicLevelAt(opts.Level())
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}
	cfg.DisableStacktrace = !opts.Verbose
	return cfg
}

func New(opts Options) (*zap.Logger, error) {
	return Config(opts).Build()
}
