package notify

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"reflect"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"

	"github.com/example/notify-queue-consumer/internal/adapters/common"
	"github.com/example/notify-queue-consumer/internal/config"
	"github.com/example/notify-queue-consumer/internal/util"
)

const (
	defaultBaseURL   = "https://api.notifications.service.gov.uk"
	defaultTimeout   = 30 * time.Second
	defaultBodyLimit = 64 * 1024
	userAgent        = "notify-queue-consumer"

	// an API key ends with "-<service id>-<secret>", both UUIDs
	uuidLength = 36
	minKeySize = 2*uuidLength + 1
)

// HTTPClient abstracts the http.Client Do method for easier testing.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Option customises the behaviour of the HTTP client.
type Option func(*Client)

// WithHTTPClient overrides the HTTP client used to talk to Notify.
func WithHTTPClient(client HTTPClient) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithBaseURL sets the base Notify API URL. Useful for tests.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(baseURL, "/")
	}
}

// WithClock overrides the clock used for token issue times.
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		if now != nil {
			c.now = now
		}
	}
}

// Client talks to the Notify v2 REST API.
type Client struct {
	logger       zerolog.Logger
	serviceID    string
	secret       []byte
	httpClient   HTTPClient
	baseURL      string
	now          func() time.Time
	maxBodyBytes int64
}

// NewClient constructs a Notify API client from cfg.
func NewClient(cfg config.NotifyConfig, logger zerolog.Logger, opts ...Option) (*Client, error) {
	serviceID, secret, err := parseAPIKey(cfg.APIKey)
	if err != nil {
		return nil, err
	}
	if reflect.ValueOf(logger).IsZero() {
		logger = zerolog.Nop()
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	client := &Client{
		logger:       logger,
		serviceID:    serviceID,
		secret:       []byte(secret),
		httpClient:   &http.Client{Timeout: timeout},
		baseURL:      baseURL,
		now:          time.Now,
		maxBodyBytes: defaultBodyLimit,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}

	return client, nil
}

func parseAPIKey(key string) (string, string, error) {
	key = strings.TrimSpace(key)
	if len(key) < minKeySize {
		return "", "", errors.New("notify client: api key is malformed")
	}
	secret := key[len(key)-uuidLength:]
	serviceID := key[len(key)-minKeySize : len(key)-uuidLength-1]
	if _, err := util.ParseUUID(serviceID); err != nil {
		return "", "", fmt.Errorf("notify client: api key service id: %w", err)
	}
	if _, err := util.ParseUUID(secret); err != nil {
		return "", "", fmt.Errorf("notify client: api key secret: %w", err)
	}
	return serviceID, secret, nil
}

// ListNotifications returns the notifications sent with the given reference.
func (c *Client) ListNotifications(ctx context.Context, reference string) ([]Notification, error) {
	query := url.Values{}
	query.Set("reference", reference)

	var out struct {
		Notifications []Notification `json:"notifications"`
	}
	if err := c.do(ctx, http.MethodGet, "/v2/notifications?"+query.Encode(), nil, &out); err != nil {
		return nil, err
	}
	return out.Notifications, nil
}

// SendPrecompiledLetter submits a ready to print PDF.
func (c *Client) SendPrecompiledLetter(ctx context.Context, reference string, pdf []byte, postage string) (*SendResponse, error) {
	body := map[string]any{
		"reference": reference,
		"content":   base64.StdEncoding.EncodeToString(pdf),
	}
	if postage != "" {
		body["postage"] = postage
	}

	var out SendResponse
	if err := c.do(ctx, http.MethodPost, "/v2/notifications/letter", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SendEmail submits a templated email.
func (c *Client) SendEmail(ctx context.Context, req EmailRequest) (*SendResponse, error) {
	// An unknown letter type has no template; Notify receives null and rejects
	// or defaults it.
	var templateID any
	if req.TemplateID != "" {
		templateID = req.TemplateID
	}
	body := map[string]any{
		"email_address": req.EmailAddress,
		"template_id":   templateID,
	}
	if len(req.Personalisation) > 0 {
		body["personalisation"] = req.Personalisation
	}
	if req.Reference != "" {
		body["reference"] = req.Reference
	}
	if req.ReplyToID != "" {
		body["email_reply_to_id"] = req.ReplyToID
	}

	var out SendResponse
	if err := c.do(ctx, http.MethodPost, "/v2/notifications/email", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetNotification fetches the current state of a notification.
func (c *Client) GetNotification(ctx context.Context, id string) (*Notification, error) {
	var out Notification
	if err := c.do(ctx, http.MethodGet, "/v2/notifications/"+url.PathEscape(id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// PrepareUpload encodes content for use as a link_to_file personalisation value.
func (c *Client) PrepareUpload(content []byte, opts UploadOptions) (FileReference, error) {
	return prepareUpload(content, opts)
}

func prepareUpload(content []byte, opts UploadOptions) (FileReference, error) {
	if len(content) == 0 {
		return FileReference{}, errors.New("notify: upload content is empty")
	}
	return FileReference{
		File:                       base64.StdEncoding.EncodeToString(content),
		IsCSV:                      false,
		ConfirmEmailBeforeDownload: opts.ConfirmEmailBeforeDownload,
		RetentionPeriod:            opts.RetentionPeriod,
	}, nil
}

func (c *Client) token() (string, error) {
	claims := jwt.MapClaims{
		"iss": c.serviceID,
		"iat": c.now().Unix(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("notify client: sign token: %w", err)
	}
	return signed, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var reader io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("notify client: marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("notify client: new request: %w", err)
	}

	token, err := c.token()
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("notify client: http do: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBodyBytes))
	if err != nil {
		return fmt.Errorf("notify client: read body: %w", err)
	}

	c.logger.Debug().
		Str("method", method).
		Str("path", req.URL.Path).
		Int("status", resp.StatusCode).
		Msg("notify api call")

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{
			StatusCode: resp.StatusCode,
			Body:       common.TruncateRaw(string(body), common.DefaultRawBodyLimit),
		}
		var parsed struct {
			Errors []APIErrorItem `json:"errors"`
		}
		if err := json.Unmarshal(body, &parsed); err == nil {
			apiErr.Errors = parsed.Errors
		}
		return apiErr
	}

	if out == nil || len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("notify client: decode response: %w", err)
	}
	return nil
}
