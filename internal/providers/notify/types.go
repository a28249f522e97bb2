package notify

import (
	"context"
	"fmt"
	"strings"
)

// Postage classes accepted for precompiled letters.
const (
	PostageFirst   = "first"
	PostageSecond  = "second"
	PostageEconomy = "economy"
)

// Notification is the subset of a Notify notification the consumer reads.
type Notification struct {
	ID        string `json:"id"`
	Reference string `json:"reference"`
	Type      string `json:"type"`
	Status    string `json:"status"`
}

// SendResponse is returned by the send endpoints. ID is empty when Notify did
// not assign one.
type SendResponse struct {
	ID        string `json:"id"`
	Reference string `json:"reference"`
}

// EmailRequest describes one templated email.
type EmailRequest struct {
	EmailAddress    string
	TemplateID      string
	Personalisation map[string]any
	Reference       string
	ReplyToID       string
}

// UploadOptions tune the file attached to an email.
type UploadOptions struct {
	ConfirmEmailBeforeDownload *bool
	RetentionPeriod            string
}

// FileReference is placed in email personalisation to let the recipient
// download the uploaded document.
type FileReference struct {
	File                       string `json:"file"`
	IsCSV                      bool   `json:"is_csv"`
	ConfirmEmailBeforeDownload *bool  `json:"confirm_email_before_download,omitempty"`
	RetentionPeriod            string `json:"retention_period,omitempty"`
}

// Provider is the contract exposed by Notify implementations.
type Provider interface {
	ListNotifications(ctx context.Context, reference string) ([]Notification, error)
	SendPrecompiledLetter(ctx context.Context, reference string, pdf []byte, postage string) (*SendResponse, error)
	SendEmail(ctx context.Context, req EmailRequest) (*SendResponse, error)
	GetNotification(ctx context.Context, id string) (*Notification, error)
	PrepareUpload(content []byte, opts UploadOptions) (FileReference, error)
}

// APIErrorItem is one entry of the Notify error list.
type APIErrorItem struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// APIError is returned for any non-2xx Notify response.
type APIError struct {
	StatusCode int
	Errors     []APIErrorItem
	Body       string
}

func (e *APIError) Error() string {
	if len(e.Errors) == 0 {
		return fmt.Sprintf("notify: http %d: %s", e.StatusCode, e.Body)
	}
	parts := make([]string, 0, len(e.Errors))
	for _, item := range e.Errors {
		parts = append(parts, item.Error+": "+item.Message)
	}
	return fmt.Sprintf("notify: http %d: %s", e.StatusCode, strings.Join(parts, "; "))
}
