package models

import "time"

// ReconciliationRecord describes a document that Notify accepted but whose
// status could not be written to Sirius after the queue item was deleted.
type ReconciliationRecord struct {
	DocumentID     int       `json:"document_id"`
	Reference      string    `json:"reference"`
	NotifyID       string    `json:"notify_id"`
	NotifyStatus   string    `json:"notify_status"`
	SendByMethod   string    `json:"send_by_method"`
	RecipientEmail *string   `json:"recipient_email,omitempty"`
	Error          string    `json:"error"`
	FailedAt       time.Time `json:"failed_at"`
	CycleID        string    `json:"cycle_id,omitempty"`
}
