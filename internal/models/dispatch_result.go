package models

// DispatchResultInput is the unvalidated form of a DispatchResult.
type DispatchResultInput struct {
	DocumentID     int     `json:"documentId" validate:"gt=0"`
	NotifyID       string  `json:"notifyId" validate:"required"`
	NotifyStatus   string  `json:"notifyStatus" validate:"required"`
	SendByMethod   string  `json:"sendByMethod" validate:"required,oneof=post email"`
	RecipientEmail *string `json:"recipientEmailAddress"`
}

var dispatchResultMessages = map[string]string{
	"documentId":   "Data doesn't contain a numeric documentId",
	"notifyId":     "Data doesn't contain a notifyId",
	"notifyStatus": "Data doesn't contain a notifyStatus",
	"sendByMethod": "Data doesn't contain a known sendByMethod",
}

// DispatchResult is what the dispatch step hands to the status update step.
type DispatchResult struct {
	documentID     int
	notifyID       string
	notifyStatus   string
	sendByMethod   string
	recipientEmail *string
}

// NewDispatchResult validates in; all violations are reported together.
func NewDispatchResult(in DispatchResultInput) (*DispatchResult, error) {
	if err := validateStruct(in, dispatchResultMessages); err != nil {
		return nil, err
	}

	var email *string
	if in.RecipientEmail != nil {
		addr := *in.RecipientEmail
		email = &addr
	}

	return &DispatchResult{
		documentID:     in.DocumentID,
		notifyID:       in.NotifyID,
		notifyStatus:   in.NotifyStatus,
		sendByMethod:   in.SendByMethod,
		recipientEmail: email,
	}, nil
}

// DocumentID identifies the document in Sirius.
func (d *DispatchResult) DocumentID() int { return d.documentID }

// NotifyID is the Notify notification id.
func (d *DispatchResult) NotifyID() string { return d.notifyID }

// NotifyStatus is the raw Notify status.
func (d *DispatchResult) NotifyStatus() string { return d.notifyStatus }

// SendByMethod is the delivery method used.
func (d *DispatchResult) SendByMethod() string { return d.sendByMethod }

// RecipientEmail is nil for post.
func (d *DispatchResult) RecipientEmail() *string { return d.recipientEmail }
