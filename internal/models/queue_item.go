package models

// Method names accepted in the sendBy.method field of a queue message.
const (
	MethodPost  = "post"
	MethodEmail = "email"
)

// DocumentTypeLetter is the only document type that may be delivered by email.
const DocumentTypeLetter = "letter"

// DeliveryMethod is a closed set: Post or Email. Only types in this package
// implement it.
type DeliveryMethod interface {
	Name() string
	isDeliveryMethod()
}

// Post delivers the document as a precompiled letter.
type Post struct{}

// Name returns "post".
func (Post) Name() string { return MethodPost }

func (Post) isDeliveryMethod() {}

// Email delivers a download link to the recipient.
type Email struct {
	RecipientEmail string
	RecipientName  string
}

// Name returns "email".
func (Email) Name() string { return MethodEmail }

func (Email) isDeliveryMethod() {}

// QueueItemInput is the unvalidated form of a queue message.
type QueueItemInput struct {
	Handle                 string `json:"id" validate:"required"`
	Reference              string `json:"uuid" validate:"required"`
	Filename               string `json:"filename" validate:"required"`
	DocumentID             int    `json:"documentId" validate:"gt=0"`
	Method                 string `json:"method" validate:"omitempty,oneof=post email"`
	DocumentType           string `json:"documentType"`
	RecipientEmail         string `json:"recipientEmail" validate:"required_if=Method email"`
	RecipientName          string `json:"recipientName" validate:"required_if=Method email"`
	ClientFirstName        string `json:"clientFirstName"`
	ClientSurname          string `json:"clientSurname"`
	LetterType             string `json:"letterType"`
	ReplyToType            string `json:"replyToType"`
	PendingOrDueReportType string `json:"pendingOrDueReportType"`
	CaseNumber             string `json:"caseNumber"`
}

var queueItemMessages = map[string]string{
	"id":             "Data doesn't contain an id",
	"uuid":           "Data doesn't contain a uuid",
	"filename":       "Data doesn't contain a filename",
	"documentId":     "Data doesn't contain a numeric documentId",
	"method":         "Data doesn't contain a known sendBy method",
	"recipientEmail": "Data doesn't contain a recipientEmail",
	"recipientName":  "Data doesn't contain a recipientName",
}

// QueueItem is one unit of outbound correspondence taken from the queue. It is
// immutable once constructed.
type QueueItem struct {
	handle                 string
	reference              string
	filename               string
	documentID             int
	delivery               DeliveryMethod
	documentType           string
	clientFirstName        string
	clientSurname          string
	letterType             string
	replyToType            string
	pendingOrDueReportType string
	caseNumber             string
}

// NewQueueItem validates in and returns a QueueItem. All violations are
// reported together in a *ValidationError.
func NewQueueItem(in QueueItemInput) (*QueueItem, error) {
	if err := validateStruct(in, queueItemMessages); err != nil {
		return nil, err
	}

	var delivery DeliveryMethod = Post{}
	if in.Method == MethodEmail {
		delivery = Email{RecipientEmail: in.RecipientEmail, RecipientName: in.RecipientName}
	}

	return &QueueItem{
		handle:                 in.Handle,
		reference:              in.Reference,
		filename:               in.Filename,
		documentID:             in.DocumentID,
		delivery:               delivery,
		documentType:           in.DocumentType,
		clientFirstName:        in.ClientFirstName,
		clientSurname:          in.ClientSurname,
		letterType:             in.LetterType,
		replyToType:            in.ReplyToType,
		pendingOrDueReportType: in.PendingOrDueReportType,
		caseNumber:             in.CaseNumber,
	}, nil
}

// Handle is the opaque queue handle used to acknowledge the message.
func (q *QueueItem) Handle() string { return q.handle }

// Reference is the idempotency reference sent to Notify.
func (q *QueueItem) Reference() string { return q.reference }

// Filename locates the document content in the file store.
func (q *QueueItem) Filename() string { return q.filename }

// DocumentID identifies the document in Sirius.
func (q *QueueItem) DocumentID() int { return q.documentID }

// Delivery is either Post or Email.
func (q *QueueItem) Delivery() DeliveryMethod { return q.delivery }

// DocumentType is the sendBy.documentType tag.
func (q *QueueItem) DocumentType() string { return q.documentType }

// ClientFirstName is used for email personalisation.
func (q *QueueItem) ClientFirstName() string { return q.clientFirstName }

// ClientSurname is used for email personalisation.
func (q *QueueItem) ClientSurname() string { return q.clientSurname }

// LetterType selects the email template.
func (q *QueueItem) LetterType() string { return q.letterType }

// ReplyToType selects the reply-to address of an email.
func (q *QueueItem) ReplyToType() string { return q.replyToType }

// PendingOrDueReportType is used for email personalisation.
func (q *QueueItem) PendingOrDueReportType() string { return q.pendingOrDueReportType }

// CaseNumber is used for email personalisation.
func (q *QueueItem) CaseNumber() string { return q.caseNumber }

// RecipientEmail returns the email recipient, or nil for post.
func (q *QueueItem) RecipientEmail() *string {
	if email, ok := q.delivery.(Email); ok {
		addr := email.RecipientEmail
		return &addr
	}
	return nil
}
