package consumer

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/notify-queue-consumer/internal/adapters/common"
	"github.com/example/notify-queue-consumer/internal/dispatch"
	"github.com/example/notify-queue-consumer/internal/models"
)

type recorder struct {
	calls []string
}

func (r *recorder) add(call string) { r.calls = append(r.calls, call) }

type fakeQueue struct {
	rec       *recorder
	item      *models.QueueItem
	nextErr   error
	deleteErr error
	deleted   int
	ctxErrs   []error
}

func (q *fakeQueue) Next(ctx context.Context) (*models.QueueItem, error) {
	q.rec.add("next")
	q.ctxErrs = append(q.ctxErrs, ctx.Err())
	return q.item, q.nextErr
}

func (q *fakeQueue) Delete(ctx context.Context, item *models.QueueItem) error {
	q.rec.add("delete")
	q.ctxErrs = append(q.ctxErrs, ctx.Err())
	if q.deleteErr != nil {
		return q.deleteErr
	}
	q.deleted++
	return nil
}

type fakeDispatcher struct {
	rec    *recorder
	result *models.DispatchResult
	err    error
}

func (d *fakeDispatcher) Handle(context.Context, *models.QueueItem) (*models.DispatchResult, error) {
	d.rec.add("dispatch")
	return d.result, d.err
}

type fakeUpdater struct {
	rec  *recorder
	errs []error
	n    int
}

func (u *fakeUpdater) Handle(context.Context, *models.DispatchResult) error {
	u.rec.add("update")
	var err error
	if u.n < len(u.errs) {
		err = u.errs[u.n]
	}
	u.n++
	return err
}

type fakeReconciler struct {
	records []models.ReconciliationRecord
	err     error
}

func (r *fakeReconciler) PublishReconciliation(_ context.Context, record models.ReconciliationRecord) error {
	r.records = append(r.records, record)
	return r.err
}

type logLine map[string]any

func parseLogs(t *testing.T, buf *bytes.Buffer) []logLine {
	t.Helper()
	var lines []logLine
	scanner := bufio.NewScanner(buf)
	for scanner.Scan() {
		var line logLine
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &line))
		lines = append(lines, line)
	}
	return lines
}

func messages(lines []logLine) []string {
	out := make([]string, 0, len(lines))
	for _, l := range lines {
		out = append(out, l["msg"].(string))
	}
	return out
}

func criticals(lines []logLine) []logLine {
	var out []logLine
	for _, l := range lines {
		if l["severity"] == "critical" {
			out = append(out, l)
		}
	}
	return out
}

func testItem(t *testing.T) *models.QueueItem {
	t.Helper()
	item, err := models.NewQueueItem(models.QueueItemInput{
		Handle:       "receipt-1",
		Reference:    "asd-456",
		Filename:     "document.pdf",
		DocumentID:   4545,
		Method:       models.MethodPost,
		DocumentType: models.DocumentTypeLetter,
	})
	require.NoError(t, err)
	return item
}

func testResult(t *testing.T) *models.DispatchResult {
	t.Helper()
	result, err := models.NewDispatchResult(models.DispatchResultInput{
		DocumentID:   4545,
		NotifyID:     "notify-1",
		NotifyStatus: "pending-virus-check",
		SendByMethod: models.MethodPost,
	})
	require.NoError(t, err)
	return result
}

type harness struct {
	rec        *recorder
	queue      *fakeQueue
	dispatcher *fakeDispatcher
	updater    *fakeUpdater
	reconciler *fakeReconciler
	sleeps     []time.Duration
	logs       bytes.Buffer
	registry   *prometheus.Registry
	consumer   *Consumer
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{rec: &recorder{}, reconciler: &fakeReconciler{}, registry: prometheus.NewRegistry()}
	h.queue = &fakeQueue{rec: h.rec, item: testItem(t)}
	h.dispatcher = &fakeDispatcher{rec: h.rec, result: testResult(t)}
	h.updater = &fakeUpdater{rec: h.rec}

	c, err := New(h.queue, h.dispatcher, h.updater, zerolog.New(&h.logs),
		WithRetryDelay(3*time.Second),
		WithSleeper(func(d time.Duration) {
			h.rec.add("sleep")
			h.sleeps = append(h.sleeps, d)
		}),
		WithReconciler(h.reconciler),
		WithMetrics(NewMetrics(h.registry)),
	)
	require.NoError(t, err)
	h.consumer = c
	return h
}

func (h *harness) cycles(outcome Outcome) float64 {
	return testutil.ToFloat64(h.consumer.metrics.cycles.WithLabelValues(string(outcome)))
}

func TestNewValidation(t *testing.T) {
	rec := &recorder{}
	_, err := New(nil, &fakeDispatcher{rec: rec}, &fakeUpdater{rec: rec}, zerolog.Nop())
	assert.Error(t, err)
	_, err = New(&fakeQueue{rec: rec}, nil, &fakeUpdater{rec: rec}, zerolog.Nop())
	assert.Error(t, err)
	_, err = New(&fakeQueue{rec: rec}, &fakeDispatcher{rec: rec}, nil, zerolog.Nop())
	assert.Error(t, err)
}

func TestRunNoMessage(t *testing.T) {
	h := newHarness(t)
	h.queue.item = nil

	assert.Equal(t, OutcomeNoMessage, h.consumer.Run(context.Background()))
	assert.Equal(t, []string{"next"}, h.rec.calls)

	lines := parseLogs(t, &h.logs)
	assert.Equal(t, []string{"Asking for next message", "No message"}, messages(lines))
	assert.Equal(t, "notify_consumer", lines[0]["context"])
	assert.False(t, h.consumer.LastPoll().IsZero())
	assert.Equal(t, 1.0, h.cycles(OutcomeNoMessage))
}

func TestRunSuccess(t *testing.T) {
	h := newHarness(t)

	assert.Equal(t, OutcomeSuccess, h.consumer.Run(context.Background()))
	assert.Equal(t, []string{"next", "dispatch", "delete", "update"}, h.rec.calls)
	assert.Equal(t, 1, h.queue.deleted)

	lines := parseLogs(t, &h.logs)
	assert.Equal(t, []string{
		"Asking for next message",
		"Sending to Notify",
		"Deleting processed message",
		"Updating document status",
		"Success",
	}, messages(lines))
	assert.Equal(t, "receipt-1", lines[1]["id"])
	assert.Equal(t, "asd-456", lines[1]["uuid"])
	assert.Equal(t, lines[0]["cycle_id"], lines[4]["cycle_id"])
	assert.Empty(t, criticals(lines))
	assert.Empty(t, h.reconciler.records)
	assert.Equal(t, 1.0, h.cycles(OutcomeSuccess))
}

func TestRunDuplicateIsDeletedWithoutStatusUpdate(t *testing.T) {
	h := newHarness(t)
	h.dispatcher.result = nil
	h.dispatcher.err = dispatch.ErrDuplicateSubmission

	assert.Equal(t, OutcomeDuplicate, h.consumer.Run(context.Background()))
	assert.Equal(t, []string{"next", "dispatch", "delete"}, h.rec.calls)
	assert.Equal(t, 1, h.queue.deleted)
	assert.Equal(t, 0, h.updater.n)

	lines := parseLogs(t, &h.logs)
	assert.Equal(t, []string{"Asking for next message", "Sending to Notify", "Deleting duplicate message"}, messages(lines))
	assert.Empty(t, criticals(lines))
}

func TestRunDispatchFailureKeepsItem(t *testing.T) {
	h := newHarness(t)
	h.dispatcher.result = nil
	h.dispatcher.err = dispatch.ErrNoSubmissionID

	assert.Equal(t, OutcomeFailed, h.consumer.Run(context.Background()))
	assert.Equal(t, []string{"next", "dispatch"}, h.rec.calls)
	assert.Equal(t, 0, h.queue.deleted)

	lines := parseLogs(t, &h.logs)
	crit := criticals(lines)
	require.Len(t, crit, 1)
	assert.Equal(t, "Error processing message", crit[0]["msg"])
	assert.Equal(t, "error", crit[0]["level"])
	assert.Equal(t, "No Notify id returned", crit[0]["error"])
	assert.Equal(t, "notify_consumer", crit[0]["context"])
	assert.Equal(t, "asd-456", crit[0]["uuid"])
	assert.NotEmpty(t, crit[0]["trace"])
	assert.Empty(t, h.reconciler.records)
}

func TestRunQueueFailure(t *testing.T) {
	h := newHarness(t)
	h.queue.item = nil
	h.queue.nextErr = errors.New("queue: sqs receive: throttled")

	assert.Equal(t, OutcomeFailed, h.consumer.Run(context.Background()))
	assert.Equal(t, []string{"next"}, h.rec.calls)
	assert.Len(t, criticals(parseLogs(t, &h.logs)), 1)
}

func TestRunDeleteFailureSkipsStatusUpdate(t *testing.T) {
	h := newHarness(t)
	h.queue.deleteErr = errors.New("queue: sqs delete: receipt handle expired")

	assert.Equal(t, OutcomeFailed, h.consumer.Run(context.Background()))
	assert.Equal(t, []string{"next", "dispatch", "delete"}, h.rec.calls)
	assert.Len(t, criticals(parseLogs(t, &h.logs)), 1)
}

func TestRunRetriesRetryableUpdateOnce(t *testing.T) {
	h := newHarness(t)
	h.updater.errs = []error{common.WrapRetryable(errors.New(`Expected status "204" but received "200"`))}

	assert.Equal(t, OutcomeSuccess, h.consumer.Run(context.Background()))
	assert.Equal(t, []string{"next", "dispatch", "delete", "update", "sleep", "update"}, h.rec.calls)
	assert.Equal(t, []time.Duration{3 * time.Second}, h.sleeps)
	assert.Equal(t, 1, h.queue.deleted)

	lines := parseLogs(t, &h.logs)
	assert.Equal(t, []string{
		"Asking for next message",
		"Sending to Notify",
		"Deleting processed message",
		"Updating document status",
		`Expected status "204" but received "200"`,
		"Updating document status again",
		"Success",
	}, messages(lines))
	assert.Empty(t, criticals(lines))
	assert.Equal(t, 1.0, testutil.ToFloat64(h.consumer.metrics.updateRetries))
}

func TestRunRetryExhaustion(t *testing.T) {
	h := newHarness(t)
	h.updater.errs = []error{
		common.WrapRetryable(errors.New("first")),
		common.WrapRetryable(errors.New("second")),
	}

	assert.Equal(t, OutcomeFailed, h.consumer.Run(context.Background()))
	assert.Equal(t, []string{"next", "dispatch", "delete", "update", "sleep", "update"}, h.rec.calls)
	assert.Equal(t, 1, h.queue.deleted, "the item stays deleted")

	crit := criticals(parseLogs(t, &h.logs))
	require.Len(t, crit, 1)
	assert.Equal(t, "second", crit[0]["error"])

	require.Len(t, h.reconciler.records, 1)
	record := h.reconciler.records[0]
	assert.Equal(t, 4545, record.DocumentID)
	assert.Equal(t, "asd-456", record.Reference)
	assert.Equal(t, "notify-1", record.NotifyID)
	assert.Equal(t, "pending-virus-check", record.NotifyStatus)
	assert.Equal(t, "second", record.Error)
	assert.NotEmpty(t, record.CycleID)
	assert.Equal(t, 1.0, h.cycles(OutcomeFailed))
}

func TestRunFatalUpdateIsNotRetried(t *testing.T) {
	h := newHarness(t)
	h.updater.errs = []error{common.WrapFatal(errors.New("sirius: server error: http 500"))}

	assert.Equal(t, OutcomeFailed, h.consumer.Run(context.Background()))
	assert.Equal(t, []string{"next", "dispatch", "delete", "update"}, h.rec.calls)
	assert.Empty(t, h.sleeps)
	assert.Len(t, criticals(parseLogs(t, &h.logs)), 1)
	assert.Len(t, h.reconciler.records, 1)
}

func TestRunUnclassifiedUpdateErrorIsFatal(t *testing.T) {
	h := newHarness(t)
	h.updater.errs = []error{errors.New("plain")}

	assert.Equal(t, OutcomeFailed, h.consumer.Run(context.Background()))
	assert.Equal(t, 1, h.updater.n)
}

func TestRunReconcilerFailureIsOnlyLogged(t *testing.T) {
	h := newHarness(t)
	h.updater.errs = []error{common.WrapFatal(errors.New("boom"))}
	h.reconciler.err = errors.New("kafka down")

	assert.Equal(t, OutcomeFailed, h.consumer.Run(context.Background()))

	lines := parseLogs(t, &h.logs)
	assert.Len(t, criticals(lines), 1)
	assert.Contains(t, messages(lines), "Reconciliation event not published")
}

func TestRunIgnoresCancellation(t *testing.T) {
	h := newHarness(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.Equal(t, OutcomeSuccess, h.consumer.Run(ctx))
	for _, err := range h.queue.ctxErrs {
		assert.NoError(t, err)
	}
}

func TestErrorTrace(t *testing.T) {
	inner := errors.New("connection reset")
	wrapped := common.WrapFatal(errors.Join(errors.New("sirius: http do"), inner))

	assert.Equal(t, []string{
		"sirius: http do\nconnection reset",
		"fatal error",
		"sirius: http do",
		"connection reset",
	}, errorTrace(wrapped))
}

func TestErrorTraceListsEachLayerOnce(t *testing.T) {
	cause := errors.New("unable to read file")
	err := common.WrapRetryable(fmt.Errorf("Cannot read PDF: %w", cause))

	assert.Equal(t, []string{
		"Cannot read PDF: unable to read file",
		"retryable error",
		"unable to read file",
	}, errorTrace(err))
}
