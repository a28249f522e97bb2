package notify

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sequentialIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("id-%d", n)
	}
}

func TestMockProviderRemembersReferences(t *testing.T) {
	ctx := context.Background()
	p := NewMockProvider(zerolog.Nop(), WithIDGenerator(sequentialIDs()))

	existing, err := p.ListNotifications(ctx, "ref")
	require.NoError(t, err)
	assert.Empty(t, existing)

	resp, err := p.SendPrecompiledLetter(ctx, "ref", []byte("%PDF"), PostageEconomy)
	require.NoError(t, err)
	assert.Equal(t, "id-1", resp.ID)

	existing, err = p.ListNotifications(ctx, "ref")
	require.NoError(t, err)
	require.Len(t, existing, 1)
	assert.Equal(t, "id-1", existing[0].ID)

	n, err := p.GetNotification(ctx, "id-1")
	require.NoError(t, err)
	assert.Equal(t, "pending-virus-check", n.Status)

	resp, err = p.SendEmail(ctx, EmailRequest{EmailAddress: "a@b.c", Reference: "other"})
	require.NoError(t, err)
	n, err = p.GetNotification(ctx, resp.ID)
	require.NoError(t, err)
	assert.Equal(t, "created", n.Status)
	assert.Equal(t, "email", n.Type)
}

func TestMockProviderScenarios(t *testing.T) {
	ctx := context.Background()

	resp, err := NewMockProvider(zerolog.Nop(), WithScenario(ScenarioNoID)).
		SendPrecompiledLetter(ctx, "ref", nil, PostageEconomy)
	require.NoError(t, err)
	assert.Empty(t, resp.ID)

	_, err = NewMockProvider(zerolog.Nop(), WithScenario(ScenarioRejected)).
		SendEmail(ctx, EmailRequest{Reference: "ref"})
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)

	p := NewMockProvider(zerolog.Nop(), WithScenario(ScenarioNoStatus))
	resp, err = p.SendPrecompiledLetter(ctx, "ref", nil, PostageEconomy)
	require.NoError(t, err)
	n, err := p.GetNotification(ctx, resp.ID)
	require.NoError(t, err)
	assert.Empty(t, n.Status)
}

func TestMockProviderUnknownNotification(t *testing.T) {
	_, err := NewMockProvider(zerolog.Nop()).GetNotification(context.Background(), "missing")

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
}

func TestMockProviderHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewMockProvider(zerolog.Nop(), WithLatency(time.Second)).ListNotifications(ctx, "ref")
	assert.ErrorIs(t, err, context.Canceled)
}
