package config

import (
	"fmt"

	"go.uber.org/zap"
)

// SetLogger builds the logger for env and installs it as the zap global,
// so the rest of the code can log through zap.S()
func SetLogger(env string) (*zap.Logger, error) {
	logger, err := newLogger(env)
	if err != nil {
		return nil, err
	}
	zap.ReplaceGlobals(logger)
	return logger, nil
}

func newLogger(env string) (*zap.Logger, error) {
	switch env {
	case "production":
		return zap.NewProduction()
	case "development":
		return zap.NewDevelopment()
	case "local", "":
		cfg := zap.NewDevelopmentConfig()
		cfg.DisableStacktrace = true
		return cfg.Build()
	default:
		return nil, fmt.Errorf("unknown APP_ENV %q", env)
	}
}
