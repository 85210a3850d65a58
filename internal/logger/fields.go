package logger

import (
	"strings"

	"go.uber.org/zap"
)

const (
	FieldComponent = "component"
	FieldProvider  = "ai_provider"
	FieldModel     = "ai_model"
)

// ForComponent tags log with the subsystem that emits the entries.
func ForComponent(log *zap.Logger, component string) *zap.Logger {
	return tag(log, FieldComponent, component)
}

// ForModel tags log with the AI provider and model serving a call.
func ForModel(log *zap.Logger, provider, model string) *zap.Logger {
	return tag(log, FieldProvider, provider, FieldModel, model)
}

// tag attaches string fields given as key/value pairs. Pairs with a blank key or
// value are skipped and a nil log becomes a no-op logger.
func tag(log *zap.Logger, pairs ...string) *zap.Logger {
	if log == nil {
		log = zap.NewNop()
	}

	fields := make([]zap.Field, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		key, value := strings.TrimSpace(pairs[i]), strings.TrimSpace(pairs[i+1])
		if key == "" || value == "" {
			continue
		}
		fields = append(fields, zap.String(key, value))
	}

	if len(fields) == 0 {
		return log
	}
	return log.With(fields...)
}
