package notify

import (
	"context"
	"net/http"
	"reflect"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Scenario enumerates the supported mock behaviours.
type Scenario string

const (
	ScenarioSuccess  Scenario = "success"
	ScenarioNoID     Scenario = "no_id"
	ScenarioNoStatus Scenario = "no_status"
	ScenarioRejected Scenario = "rejected"
)

// Initial statuses reported by the mock for newly created notifications.
const (
	mockLetterStatus = "pending-virus-check"
	mockEmailStatus  = "created"
)

// MockOption customises the behaviour of the mock provider at construction time.
type MockOption func(*MockProvider)

// WithScenario configures how the mock answers send requests.
func WithScenario(s Scenario) MockOption {
	return func(p *MockProvider) {
		p.scenario = s
	}
}

// WithLatency delays every call, honouring context cancellation.
func WithLatency(d time.Duration) MockOption {
	return func(p *MockProvider) {
		if d > 0 {
			p.latency = d
		}
	}
}

// WithIDGenerator overrides how notification ids are generated.
func WithIDGenerator(next func() string) MockOption {
	return func(p *MockProvider) {
		if next != nil {
			p.nextID = next
		}
	}
}

// MockProvider is an in-memory Notify used for local runs and tests. Sent
// notifications are remembered so a repeated reference is reported as existing.
type MockProvider struct {
	logger   zerolog.Logger
	scenario Scenario
	latency  time.Duration
	nextID   func() string

	mu            sync.Mutex
	notifications map[string]Notification
	byReference   map[string][]string
}

// NewMockProvider constructs a mock Notify provider.
func NewMockProvider(logger zerolog.Logger, opts ...MockOption) *MockProvider {
	if reflect.ValueOf(logger).IsZero() {
		logger = zerolog.Nop()
	}

	p := &MockProvider{
		logger:        logger,
		scenario:      ScenarioSuccess,
		nextID:        func() string { return uuid.NewString() },
		notifications: make(map[string]Notification),
		byReference:   make(map[string][]string),
	}

	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}

	return p
}

// ListNotifications returns previously sent notifications for reference.
func (p *MockProvider) ListNotifications(ctx context.Context, reference string) ([]Notification, error) {
	if err := p.sleep(ctx); err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	ids := p.byReference[reference]
	out := make([]Notification, 0, len(ids))
	for i := len(ids) - 1; i >= 0; i-- {
		out = append(out, p.notifications[ids[i]])
	}
	return out, nil
}

// SendPrecompiledLetter records a letter.
func (p *MockProvider) SendPrecompiledLetter(ctx context.Context, reference string, _ []byte, _ string) (*SendResponse, error) {
	return p.send(ctx, reference, "letter", mockLetterStatus)
}

// SendEmail records an email.
func (p *MockProvider) SendEmail(ctx context.Context, req EmailRequest) (*SendResponse, error) {
	return p.send(ctx, req.Reference, "email", mockEmailStatus)
}

// GetNotification returns a recorded notification.
func (p *MockProvider) GetNotification(ctx context.Context, id string) (*Notification, error) {
	if err := p.sleep(ctx); err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	n, ok := p.notifications[id]
	if !ok {
		return nil, &APIError{
			StatusCode: http.StatusNotFound,
			Errors:     []APIErrorItem{{Error: "NoResultFound", Message: "No result found"}},
		}
	}
	if p.scenario == ScenarioNoStatus {
		n.Status = ""
	}
	return &n, nil
}

// PrepareUpload encodes content the same way as the HTTP client.
func (p *MockProvider) PrepareUpload(content []byte, opts UploadOptions) (FileReference, error) {
	return prepareUpload(content, opts)
}

func (p *MockProvider) send(ctx context.Context, reference, kind, status string) (*SendResponse, error) {
	if err := p.sleep(ctx); err != nil {
		return nil, err
	}

	p.logger.Debug().
		Str("provider", "mock_notify").
		Str("scenario", string(p.scenario)).
		Str("reference", reference).
		Str("type", kind).
		Msg("mock notify provider invoked")

	switch p.scenario {
	case ScenarioRejected:
		return nil, &APIError{
			StatusCode: http.StatusBadRequest,
			Errors:     []APIErrorItem{{Error: "BadRequestError", Message: "mock: request rejected"}},
		}
	case ScenarioNoID:
		return &SendResponse{Reference: reference}, nil
	}

	id := p.nextID()

	p.mu.Lock()
	p.notifications[id] = Notification{ID: id, Reference: reference, Type: kind, Status: status}
	p.byReference[reference] = append(p.byReference[reference], id)
	p.mu.Unlock()

	return &SendResponse{ID: id, Reference: reference}, nil
}

func (p *MockProvider) sleep(ctx context.Context) error {
	if p.latency <= 0 {
		return nil
	}

	timer := time.NewTimer(p.latency)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
