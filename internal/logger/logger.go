// Package logger builds the application zap logger and carries a
// request-scoped logger through context.
package logger

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger builds a zap logger for the given environment: prod emits
// JSON, local/dev/docker emit colored console output. A non-empty level
// override replaces the environment default (debug, info, warn, error).
func NewLogger(env string, levelOverride ...string) (*zap.Logger, error) {
	cfg, err := baseConfig(env)
	if err != nil {
		return nil, err
	}

	if len(levelOverride) > 0 && levelOverride[0] != "" {
		level, err := zapcore.ParseLevel(levelOverride[0])
		if err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", levelOverride[0], err)
		}
		cfg.Level = zap.NewAtomicLevelAt(level)
	}

	l, err := cfg.Build(zap.AddStacktrace(zapcore.ErrorLevel))
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	return l, nil
}

func baseConfig(env string) (zap.Config, error) {
	switch env {
	case "prod":
		return zap.NewProductionConfig(), nil
	case "local", "dev", "docker":
		return zap.NewDevelopmentConfig(), nil
	default:
		return zap.Config{}, fmt.Errorf("unknown environment %q for logger", env)
	}
}
