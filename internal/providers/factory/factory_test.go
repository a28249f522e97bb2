package factory

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/notify-queue-consumer/internal/config"
	"github.com/example/notify-queue-consumer/internal/providers/notify"
)

const testAPIKey = "test_key-26785a09-ab16-4eb0-8407-a37497a57506-3d844edf-8d35-48ac-975b-e847b4f122b0"

func TestNotifyBackends(t *testing.T) {
	provider, err := Notify(config.NotifyConfig{Provider: "mock"}, zerolog.Nop())
	require.NoError(t, err)
	assert.IsType(t, &notify.MockProvider{}, provider)

	provider, err = Notify(config.NotifyConfig{Provider: " HTTP ", APIKey: testAPIKey}, zerolog.Nop())
	require.NoError(t, err)
	assert.IsType(t, &notify.Client{}, provider)

	provider, err = Notify(config.NotifyConfig{APIKey: testAPIKey}, zerolog.Nop())
	require.NoError(t, err)
	assert.IsType(t, &notify.Client{}, provider)
}

func TestNotifyErrors(t *testing.T) {
	_, err := Notify(config.NotifyConfig{Provider: "http", APIKey: "short"}, zerolog.Nop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "factory: notify http provider init")

	_, err = Notify(config.NotifyConfig{Provider: "carrier-pigeon"}, zerolog.Nop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unsupported notify provider backend "carrier-pigeon"`)
}
