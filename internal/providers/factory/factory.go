package factory

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/example/notify-queue-consumer/internal/config"
	"github.com/example/notify-queue-consumer/internal/providers/notify"
)

// Notify constructs the configured Notify provider, supporting HTTP and mock backends.
func Notify(cfg config.NotifyConfig, logger zerolog.Logger) (notify.Provider, error) {
	backend := normalize(cfg.Provider, config.NotifyProviderHTTP)
	switch backend {
	case config.NotifyProviderHTTP:
		provider, err := notify.NewClient(cfg, logger)
		if err != nil {
			return nil, fmt.Errorf("factory: notify http provider init: %w", err)
		}
		logger.Info().
			Str("backend", backend).
			Msg("notify provider initialised")
		return provider, nil
	case config.NotifyProviderMock:
		provider := notify.NewMockProvider(logger)
		logger.Info().
			Str("backend", backend).
			Msg("notify provider initialised")
		return provider, nil
	default:
		return nil, fmt.Errorf("factory: unsupported notify provider backend %q", cfg.Provider)
	}
}

func normalize(value, def string) string {
	value = strings.TrimSpace(strings.ToLower(value))
	if value == "" {
		return def
	}
	return value
}
