package logger

import (
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Options struct {
	JSON  bool
	Debug bool
	// Service and Version are attached to every entry when set.
	Service string
	Version string
}

// New builds the process logger. Console encoding unless JSON is set; stack
// traces are only captured in debug mode.
func New(opts Options) (*zap.Logger, error) {
	cfg := zap.Config{
		Encoding:          "console",
		Level:             zap.NewAtomicLevelAt(zapcore.InfoLevel),
		DisableStacktrace: !opts.Debug,
		OutputPaths:       []string{"stdout"},
		ErrorOutputPaths:  []string{"stderr"},
		EncoderConfig:     encoderConfig(),
		InitialFields:     map[string]any{},
	}

	if opts.JSON {
		cfg.Encoding = "json"
		cfg.Sampling = &zap.SamplingConfig{Initial: 100, Thereafter: 100}
	}

	if opts.Debug {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		cfg.Sampling = nil
	}

	if opts.Service != "" {
		cfg.InitialFields["service"] = opts.Service
	}
	if opts.Version != "" {
		cfg.InitialFields["version"] = opts.Version
	}

	return cfg.Build()
}

func encoderConfig() zapcore.EncoderConfig {
	return zapcore.EncoderConfig{
		MessageKey: "msg",

		LevelKey:    "level",
		EncodeLevel: zapcore.LowercaseLevelEncoder,

		TimeKey:    "time",
		EncodeTime: zapcore.RFC3339TimeEncoder,

		NameKey: "logger",

		CallerKey:    "caller",
		EncodeCaller: zapcore.ShortCallerEncoder,

		StacktraceKey: "stacktrace",

		EncodeDuration: zapcore.StringDurationEncoder,
	}
}

// TruncateForLog shortens s to limit runes, appending an ellipsis when cut.
func TruncateForLog(s string, limit int) string {
	s = strings.TrimSpace(s)
	if limit <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + "..."
}
