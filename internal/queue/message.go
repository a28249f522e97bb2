package queue

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/example/notify-queue-consumer/internal/models"
)

var (
	ErrEmptyBody             = errors.New("Empty body")
	ErrEmptyMessage          = errors.New("Empty message")
	ErrMissingDocumentType   = errors.New(`Missing "sendBy.documentType"`)
	ErrUnknownDeliveryMethod = errors.New("Unknown sendBy method")
	ErrInvalidDocumentID     = errors.New(`Invalid "documentId"`)
)

const fieldDocumentType = "sendBy.documentType"

// InvalidMessageError reports every problem found in one queue message: the
// required fields that are absent and the values that could not be accepted.
type InvalidMessageError struct {
	Missing  []string
	Problems []error
}

func (e *InvalidMessageError) Error() string {
	parts := make([]string, 0, len(e.Problems)+1)
	if len(e.Missing) > 0 {
		quoted := make([]string, 0, len(e.Missing))
		for _, f := range e.Missing {
			quoted = append(quoted, strconv.Quote(f))
		}
		parts = append(parts, "Missing "+strings.Join(quoted, ", "))
	}
	for _, p := range e.Problems {
		parts = append(parts, p.Error())
	}
	return strings.Join(parts, "; ")
}

// Unwrap exposes the problems to errors.Is and errors.As.
func (e *InvalidMessageError) Unwrap() []error { return e.Problems }

// Is reports a missing sendBy.documentType as ErrMissingDocumentType.
func (e *InvalidMessageError) Is(target error) bool {
	return target == ErrMissingDocumentType && slices.Contains(e.Missing, fieldDocumentType)
}

type envelope struct {
	Message json.RawMessage `json:"message"`
}

type sendBy struct {
	Method       string `json:"method"`
	DocumentType string `json:"documentType"`
}

type message struct {
	UUID                   string     `json:"uuid"`
	Filename               string     `json:"filename"`
	DocumentID             documentID `json:"documentId"`
	SendBy                 *sendBy    `json:"sendBy"`
	RecipientEmail         string     `json:"recipientEmail"`
	RecipientName          string     `json:"recipientName"`
	ClientFirstName        string     `json:"clientFirstName"`
	ClientSurname          string     `json:"clientSurname"`
	LetterType             string     `json:"letterType"`
	PendingOrDueReportType string     `json:"pendingOrDueReportType"`
	CaseNumber             string     `json:"caseNumber"`
	ReplyToType            string     `json:"replyToType"`
}

// documentID accepts a JSON number or a numeric string. A value that is not
// numeric is kept as present so it can be reported as invalid.
type documentID struct {
	raw   string
	value int
}

func (d *documentID) UnmarshalJSON(b []byte) error {
	raw := strings.TrimSpace(string(b))
	if raw == "null" {
		return nil
	}
	if unquoted, err := strconv.Unquote(raw); err == nil {
		raw = strings.TrimSpace(unquoted)
	}
	d.raw = raw
	if n, err := strconv.Atoi(raw); err == nil {
		d.value = n
	}
	return nil
}

func (d documentID) missing() bool {
	return d.raw == "" || d.raw == "0"
}

func (d documentID) valid() bool {
	n, err := strconv.Atoi(d.raw)
	return err == nil && n > 0
}

// ParseMessage turns a raw queue body into a QueueItem. handle is the opaque
// value later used to acknowledge the message.
func ParseMessage(handle string, body []byte) (*models.QueueItem, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 || string(body) == "null" {
		return nil, ErrEmptyBody
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("queue: decode body: %w", err)
	}
	if isEmptyJSON(env.Message) {
		return nil, ErrEmptyMessage
	}

	var msg message
	if err := json.Unmarshal(env.Message, &msg); err != nil {
		return nil, fmt.Errorf("queue: decode message: %w", err)
	}

	invalid := &InvalidMessageError{}
	method := models.MethodPost
	var documentType string
	if msg.SendBy != nil {
		documentType = strings.TrimSpace(msg.SendBy.DocumentType)
		switch msg.SendBy.Method {
		case "", models.MethodPost:
		case models.MethodEmail:
			method = models.MethodEmail
		default:
			invalid.Problems = append(invalid.Problems, fmt.Errorf("%w %q", ErrUnknownDeliveryMethod, msg.SendBy.Method))
		}
	}

	invalid.Missing = msg.missingFields(handle, method)
	if msg.SendBy != nil && documentType == "" {
		invalid.Missing = append(invalid.Missing, fieldDocumentType)
	}
	if !msg.DocumentID.missing() && !msg.DocumentID.valid() {
		invalid.Problems = append(invalid.Problems, fmt.Errorf("%w %q", ErrInvalidDocumentID, msg.DocumentID.raw))
	}
	if len(invalid.Missing) > 0 || len(invalid.Problems) > 0 {
		return nil, invalid
	}

	item, err := models.NewQueueItem(models.QueueItemInput{
		Handle:                 handle,
		Reference:              msg.UUID,
		Filename:               msg.Filename,
		DocumentID:             msg.DocumentID.value,
		Method:                 method,
		DocumentType:           documentType,
		RecipientEmail:         msg.RecipientEmail,
		RecipientName:          msg.RecipientName,
		ClientFirstName:        msg.ClientFirstName,
		ClientSurname:          msg.ClientSurname,
		LetterType:             msg.LetterType,
		ReplyToType:            msg.ReplyToType,
		PendingOrDueReportType: msg.PendingOrDueReportType,
		CaseNumber:             msg.CaseNumber,
	})
	if err != nil {
		return nil, &InvalidMessageError{Problems: []error{err}}
	}
	return item, nil
}

func (m message) missingFields(handle, method string) []string {
	var missing []string
	check := func(name, value string) {
		if strings.TrimSpace(value) == "" {
			missing = append(missing, name)
		}
	}

	check("id", handle)
	check("uuid", m.UUID)
	check("filename", m.Filename)
	if m.DocumentID.missing() {
		missing = append(missing, "documentId")
	}
	if method == models.MethodEmail {
		check("recipientEmail", m.RecipientEmail)
		check("recipientName", m.RecipientName)
		check("letterType", m.LetterType)
	}
	return missing
}

func isEmptyJSON(raw json.RawMessage) bool {
	switch strings.TrimSpace(string(raw)) {
	case "", "null", "{}", "[]", `""`, "false", "0":
		return true
	}
	return false
}
