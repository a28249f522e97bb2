package models

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validPostInput() QueueItemInput {
	return QueueItemInput{
		Handle:       "123",
		Reference:    "asd-456",
		Filename:     "document.pdf",
		DocumentID:   1234,
		Method:       MethodPost,
		DocumentType: DocumentTypeLetter,
	}
}

func TestNewQueueItemPost(t *testing.T) {
	item, err := NewQueueItem(validPostInput())
	require.NoError(t, err)

	assert.Equal(t, "123", item.Handle())
	assert.Equal(t, "asd-456", item.Reference())
	assert.Equal(t, "document.pdf", item.Filename())
	assert.Equal(t, 1234, item.DocumentID())
	assert.Equal(t, Post{}, item.Delivery())
	assert.Nil(t, item.RecipientEmail())
}

func TestNewQueueItemDefaultsToPost(t *testing.T) {
	in := validPostInput()
	in.Method = ""

	item, err := NewQueueItem(in)
	require.NoError(t, err)
	assert.Equal(t, MethodPost, item.Delivery().Name())
}

func TestNewQueueItemEmail(t *testing.T) {
	in := validPostInput()
	in.Method = MethodEmail
	in.RecipientEmail = "test@test.com"
	in.RecipientName = "Test name"
	in.LetterType = "a6"

	item, err := NewQueueItem(in)
	require.NoError(t, err)

	email, ok := item.Delivery().(Email)
	require.True(t, ok)
	assert.Equal(t, "test@test.com", email.RecipientEmail)
	assert.Equal(t, "Test name", email.RecipientName)
	require.NotNil(t, item.RecipientEmail())
	assert.Equal(t, "test@test.com", *item.RecipientEmail())
	assert.Equal(t, "a6", item.LetterType())
}

func TestNewQueueItemValidation(t *testing.T) {
	cases := map[string]struct {
		mutate func(*QueueItemInput)
		want   string
	}{
		"missing id":             {func(in *QueueItemInput) { in.Handle = "" }, "Data doesn't contain an id"},
		"missing uuid":           {func(in *QueueItemInput) { in.Reference = "" }, "Data doesn't contain a uuid"},
		"missing filename":       {func(in *QueueItemInput) { in.Filename = "" }, "Data doesn't contain a filename"},
		"missing documentId":     {func(in *QueueItemInput) { in.DocumentID = 0 }, "Data doesn't contain a numeric documentId"},
		"negative documentId":    {func(in *QueueItemInput) { in.DocumentID = -3 }, "Data doesn't contain a numeric documentId"},
		"unknown method":         {func(in *QueueItemInput) { in.Method = "fax" }, "Data doesn't contain a known sendBy method"},
		"email without contacts": {func(in *QueueItemInput) { in.Method = MethodEmail }, "Data doesn't contain a recipientEmail, Data doesn't contain a recipientName"},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			in := validPostInput()
			tc.mutate(&in)

			item, err := NewQueueItem(in)
			require.Nil(t, item)

			var vErr *ValidationError
			require.True(t, errors.As(err, &vErr))
			assert.Equal(t, tc.want, err.Error())
		})
	}
}

func TestNewQueueItemAggregatesAllViolations(t *testing.T) {
	_, err := NewQueueItem(QueueItemInput{})

	var vErr *ValidationError
	require.True(t, errors.As(err, &vErr))
	assert.Equal(t, []string{
		"Data doesn't contain an id",
		"Data doesn't contain a uuid",
		"Data doesn't contain a filename",
		"Data doesn't contain a numeric documentId",
	}, vErr.Violations)
	assert.Equal(t,
		"Data doesn't contain an id, Data doesn't contain a uuid, Data doesn't contain a filename, Data doesn't contain a numeric documentId",
		err.Error())
}

func TestValidationDoesNotLeakBetweenCalls(t *testing.T) {
	_, err := NewQueueItem(QueueItemInput{})
	require.Error(t, err)

	_, err = NewDispatchResult(DispatchResultInput{DocumentID: 1, NotifyStatus: "sending", SendByMethod: MethodPost})
	var vErr *ValidationError
	require.True(t, errors.As(err, &vErr))
	assert.Equal(t, []string{"Data doesn't contain a notifyId"}, vErr.Violations)

	item, err := NewQueueItem(validPostInput())
	require.NoError(t, err)
	require.NotNil(t, item)
}

func TestNewDispatchResult(t *testing.T) {
	email := "test@test.com"
	in := DispatchResultInput{
		DocumentID:     1234,
		NotifyID:       "3b53e050-2664-4796-8972-7293cdbf5658",
		NotifyStatus:   "pending-virus-check",
		SendByMethod:   MethodEmail,
		RecipientEmail: &email,
	}

	result, err := NewDispatchResult(in)
	require.NoError(t, err)

	email = "changed@test.com"

	assert.Equal(t, 1234, result.DocumentID())
	assert.Equal(t, "3b53e050-2664-4796-8972-7293cdbf5658", result.NotifyID())
	assert.Equal(t, "pending-virus-check", result.NotifyStatus())
	assert.Equal(t, MethodEmail, result.SendByMethod())
	require.NotNil(t, result.RecipientEmail())
	assert.Equal(t, "test@test.com", *result.RecipientEmail())
}

func TestNewDispatchResultAggregatesAllViolations(t *testing.T) {
	_, err := NewDispatchResult(DispatchResultInput{SendByMethod: MethodPost})

	var vErr *ValidationError
	require.True(t, errors.As(err, &vErr))
	assert.Equal(t, []string{
		"Data doesn't contain a numeric documentId",
		"Data doesn't contain a notifyId",
		"Data doesn't contain a notifyStatus",
	}, vErr.Violations)
}
