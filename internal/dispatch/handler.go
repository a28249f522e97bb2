package dispatch

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"time"

	"github.com/rs/zerolog"

	"github.com/example/notify-queue-consumer/internal/models"
	"github.com/example/notify-queue-consumer/internal/providers/notify"
	"github.com/example/notify-queue-consumer/internal/storage"
)

// UploadRetention is how long Notify keeps a document attached to an email.
const UploadRetention = "56 weeks"

var (
	// ErrDuplicateSubmission means Notify already holds a notification with the
	// item reference. Notify does not deduplicate on its own.
	ErrDuplicateSubmission = errors.New("duplicate submission")
	ErrContentUnavailable  = errors.New("Cannot read PDF")
	ErrNoSubmissionID      = errors.New("No Notify id returned")
	ErrNoStatusFound       = errors.New("No Notify status found")
)

// Option customises the handler.
type Option func(*Handler)

// WithClock overrides the clock used for the last_month personalisation.
func WithClock(now func() time.Time) Option {
	return func(h *Handler) {
		if now != nil {
			h.now = now
		}
	}
}

// Handler sends one queue item to Notify.
type Handler struct {
	provider notify.Provider
	files    storage.Reader
	logger   zerolog.Logger
	now      func() time.Time
}

// NewHandler constructs a Handler.
func NewHandler(provider notify.Provider, files storage.Reader, logger zerolog.Logger, opts ...Option) (*Handler, error) {
	if provider == nil {
		return nil, errors.New("dispatch: notify provider is required")
	}
	if files == nil {
		return nil, errors.New("dispatch: file reader is required")
	}
	if reflect.ValueOf(logger).IsZero() {
		logger = zerolog.Nop()
	}

	h := &Handler{
		provider: provider,
		files:    files,
		logger:   logger,
		now:      time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h, nil
}

// Handle submits item unless Notify already has it and returns the id and
// current status of the new notification. Provider errors are returned as is.
func (h *Handler) Handle(ctx context.Context, item *models.QueueItem) (*models.DispatchResult, error) {
	if item == nil {
		return nil, errors.New("dispatch: item is required")
	}

	duplicate, err := h.isDuplicate(ctx, item.Reference())
	if err != nil {
		return nil, err
	}
	if duplicate {
		return nil, ErrDuplicateSubmission
	}

	content, err := h.files.Read(ctx, item.Filename())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrContentUnavailable, err)
	}

	var sent *notify.SendResponse
	switch d := item.Delivery().(type) {
	case models.Email:
		if item.DocumentType() == models.DocumentTypeLetter {
			sent, err = h.sendEmail(ctx, item, d, content)
		} else {
			sent, err = h.sendLetter(ctx, item, content)
		}
	default:
		sent, err = h.sendLetter(ctx, item, content)
	}
	if err != nil {
		return nil, err
	}
	if sent == nil || sent.ID == "" {
		return nil, ErrNoSubmissionID
	}

	notification, err := h.provider.GetNotification(ctx, sent.ID)
	if err != nil {
		return nil, err
	}
	if notification == nil || notification.Status == "" {
		return nil, fmt.Errorf("%w for the ID: %s", ErrNoStatusFound, sent.ID)
	}

	return models.NewDispatchResult(models.DispatchResultInput{
		DocumentID:     item.DocumentID(),
		NotifyID:       sent.ID,
		NotifyStatus:   notification.Status,
		SendByMethod:   item.Delivery().Name(),
		RecipientEmail: item.RecipientEmail(),
	})
}

// isDuplicate only looks at the newest notification; one reference is sent at
// most once.
func (h *Handler) isDuplicate(ctx context.Context, reference string) (bool, error) {
	existing, err := h.provider.ListNotifications(ctx, reference)
	if err != nil {
		return false, err
	}
	return len(existing) > 0 && existing[0].ID != "", nil
}

func (h *Handler) sendLetter(ctx context.Context, item *models.QueueItem, content []byte) (*notify.SendResponse, error) {
	h.logger.Debug().
		Str("uuid", item.Reference()).
		Msg("sending precompiled letter")

	return h.provider.SendPrecompiledLetter(ctx, item.Reference(), content, notify.PostageEconomy)
}

func (h *Handler) sendEmail(ctx context.Context, item *models.QueueItem, to models.Email, content []byte) (*notify.SendResponse, error) {
	templateID, ok := TemplateFor(item.LetterType())
	if !ok {
		h.logger.Warn().
			Str("uuid", item.Reference()).
			Str("letter_type", item.LetterType()).
			Msg("no email template for letter type")
	}
	replyTo, _ := ReplyToFor(item.ReplyToType())

	link, err := h.provider.PrepareUpload(content, notify.UploadOptions{RetentionPeriod: UploadRetention})
	if err != nil {
		return nil, err
	}

	h.logger.Debug().
		Str("uuid", item.Reference()).
		Str("template_id", templateID).
		Msg("sending email")

	return h.provider.SendEmail(ctx, notify.EmailRequest{
		EmailAddress: to.RecipientEmail,
		TemplateID:   templateID,
		Personalisation: map[string]any{
			"recipient_name":             to.RecipientName,
			"pending_or_due_report_type": item.PendingOrDueReportType(),
			"case_number":                item.CaseNumber(),
			"client_first_name":          item.ClientFirstName(),
			"client_surname":             item.ClientSurname(),
			"link_to_file":               link,
			"last_month":                 previousMonth(h.now()),
		},
		Reference: item.Reference(),
		ReplyToID: replyTo,
	})
}

// previousMonth returns the English name of the calendar month before t.
func previousMonth(t time.Time) string {
	first := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
	return first.AddDate(0, -1, 0).Month().String()
}
