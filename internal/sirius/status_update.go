// Package sirius records Notify outcomes against documents in Sirius.
package sirius

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/example/notify-queue-consumer/internal/adapters/common"
	"github.com/example/notify-queue-consumer/internal/mapper"
	"github.com/example/notify-queue-consumer/internal/models"
	"github.com/example/notify-queue-consumer/internal/util"
)

const (
	expectedStatus   = http.StatusNoContent
	defaultTimeout   = 30 * time.Second
	defaultBodyLimit = 16 * 1024
)

// HTTPClient abstracts the http.Client Do method for easier testing.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Option customises the status updater.
type Option func(*StatusUpdater)

// WithHTTPClient overrides the HTTP client used to talk to Sirius.
func WithHTTPClient(client HTTPClient) Option {
	return func(u *StatusUpdater) {
		if client != nil {
			u.httpClient = client
		}
	}
}

// WithTimeout sets the timeout of the default HTTP client.
func WithTimeout(timeout time.Duration) Option {
	return func(u *StatusUpdater) {
		if timeout > 0 {
			u.httpClient = &http.Client{Timeout: timeout}
		}
	}
}

// Payload is the JSON body sent to the update status endpoint.
type Payload struct {
	DocumentID            int            `json:"documentId"`
	NotifySendID          string         `json:"notifySendId"`
	NotifyStatus          mapper.Outcome `json:"notifyStatus"`
	NotifySubStatus       string         `json:"notifySubStatus"`
	SendByMethod          string         `json:"sendByMethod"`
	RecipientEmailAddress *string        `json:"recipientEmailAddress"`
}

// StatusUpdater performs one status update call per Handle. It never retries;
// every returned error is classified as retryable or fatal.
type StatusUpdater struct {
	endpoint   string
	tokens     TokenSource
	httpClient HTTPClient
	logger     zerolog.Logger
}

// NewStatusUpdater constructs a StatusUpdater for endpoint.
func NewStatusUpdater(endpoint string, tokens TokenSource, logger zerolog.Logger, opts ...Option) (*StatusUpdater, error) {
	endpoint, err := util.ValidateHTTPURL(endpoint)
	if err != nil {
		return nil, fmt.Errorf("sirius: update status endpoint: %w", err)
	}
	if tokens == nil {
		return nil, errors.New("sirius: token source is required")
	}
	if reflect.ValueOf(logger).IsZero() {
		logger = zerolog.Nop()
	}

	u := &StatusUpdater{
		endpoint:   endpoint,
		tokens:     tokens,
		httpClient: &http.Client{Timeout: defaultTimeout},
		logger:     logger,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(u)
		}
	}
	return u, nil
}

// Handle maps the Notify status and PUTs it to Sirius.
//
// Unexpected success codes and 4xx responses are retryable. Mapping failures,
// 5xx responses and transport errors are fatal.
func (u *StatusUpdater) Handle(ctx context.Context, result *models.DispatchResult) error {
	if result == nil {
		return common.WrapFatal(errors.New("sirius: dispatch result is required"))
	}

	outcome, err := mapper.ToOutcome(result.NotifyStatus())
	if err != nil {
		return common.WrapFatal(err)
	}

	body, err := json.Marshal(Payload{
		DocumentID:            result.DocumentID(),
		NotifySendID:          result.NotifyID(),
		NotifyStatus:          outcome,
		NotifySubStatus:       result.NotifyStatus(),
		SendByMethod:          result.SendByMethod(),
		RecipientEmailAddress: result.RecipientEmail(),
	})
	if err != nil {
		return common.WrapFatal(fmt.Errorf("sirius: marshal payload: %w", err))
	}

	token, err := u.tokens.Token()
	if err != nil {
		return common.WrapFatal(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, u.endpoint, bytes.NewReader(body))
	if err != nil {
		return common.WrapFatal(fmt.Errorf("sirius: new request: %w", err))
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := u.httpClient.Do(req)
	if err != nil {
		return common.WrapFatal(fmt.Errorf("sirius: http do: %w", err))
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 500:
		return common.WrapFatal(&ServerError{StatusCode: resp.StatusCode, Body: readBody(resp.Body)})
	case resp.StatusCode >= 400:
		clientErr := &ClientError{StatusCode: resp.StatusCode, Body: readBody(resp.Body)}
		u.logger.Info().
			Str("body", clientErr.Body).
			Int("status", resp.StatusCode).
			Msg(clientErr.Error())
		return common.WrapRetryable(clientErr)
	case resp.StatusCode != expectedStatus:
		return common.WrapRetryable(&UnexpectedStatusError{StatusCode: resp.StatusCode})
	}

	u.logger.Debug().
		Int("document_id", result.DocumentID()).
		Str("notify_status", string(outcome)).
		Msg("document status updated")
	return nil
}

func readBody(r io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(r, defaultBodyLimit))
	if err != nil {
		return ""
	}
	return common.TruncateRaw(strings.TrimSpace(string(data)), common.DefaultRawBodyLimit)
}
