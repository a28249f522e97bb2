// Package consumer moves one queue item at a time through Notify and records
// the outcome in Sirius.
package consumer

import (
	"context"
	"errors"
	"reflect"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/example/notify-queue-consumer/internal/adapters/common"
	"github.com/example/notify-queue-consumer/internal/dispatch"
	"github.com/example/notify-queue-consumer/internal/logger"
	"github.com/example/notify-queue-consumer/internal/models"
	"github.com/example/notify-queue-consumer/internal/queue"
)

// Outcome is the result of one poll cycle.
type Outcome string

const (
	OutcomeNoMessage Outcome = "no_message"
	OutcomeSuccess   Outcome = "success"
	OutcomeDuplicate Outcome = "duplicate"
	OutcomeFailed    Outcome = "failed"
)

// Dispatcher sends a queue item to Notify.
type Dispatcher interface {
	Handle(ctx context.Context, item *models.QueueItem) (*models.DispatchResult, error)
}

// StatusUpdater records a dispatch result in Sirius. Returned errors carry a
// common.Class.
type StatusUpdater interface {
	Handle(ctx context.Context, result *models.DispatchResult) error
}

// Reconciler is told about documents that were delivered but whose status
// could not be recorded.
type Reconciler interface {
	PublishReconciliation(ctx context.Context, record models.ReconciliationRecord) error
}

// Option customises the consumer.
type Option func(*Consumer)

// WithRetryDelay sets the pause before the second status update attempt.
func WithRetryDelay(d time.Duration) Option {
	return func(c *Consumer) {
		if d >= 0 {
			c.retryDelay = d
		}
	}
}

// WithSleeper overrides how the retry delay is waited out.
func WithSleeper(sleep func(time.Duration)) Option {
	return func(c *Consumer) {
		if sleep != nil {
			c.sleep = sleep
		}
	}
}

// WithReconciler enables reconciliation events.
func WithReconciler(r Reconciler) Option {
	return func(c *Consumer) {
		c.reconciler = r
	}
}

// WithMetrics records cycle metrics.
func WithMetrics(m *Metrics) Option {
	return func(c *Consumer) {
		c.metrics = m
	}
}

// WithClock overrides the clock used for timings and timestamps.
func WithClock(now func() time.Time) Option {
	return func(c *Consumer) {
		if now != nil {
			c.now = now
		}
	}
}

// Consumer runs poll cycles. It is not safe for concurrent Run calls; run more
// processes to scale.
type Consumer struct {
	queue      queue.Queue
	dispatcher Dispatcher
	updater    StatusUpdater
	reconciler Reconciler
	metrics    *Metrics
	logger     zerolog.Logger
	retryDelay time.Duration
	sleep      func(time.Duration)
	now        func() time.Time

	lastPoll atomic.Int64
}

// New constructs a Consumer.
func New(q queue.Queue, d Dispatcher, u StatusUpdater, logger zerolog.Logger, opts ...Option) (*Consumer, error) {
	if q == nil {
		return nil, errors.New("consumer: queue is required")
	}
	if d == nil {
		return nil, errors.New("consumer: dispatcher is required")
	}
	if u == nil {
		return nil, errors.New("consumer: status updater is required")
	}
	if reflect.ValueOf(logger).IsZero() {
		logger = zerolog.Nop()
	}

	c := &Consumer{
		queue:      q,
		dispatcher: d,
		updater:    u,
		logger:     logger,
		retryDelay: time.Second,
		sleep:      time.Sleep,
		now:        time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c, nil
}

// LastPoll reports when the queue was last asked for a message.
func (c *Consumer) LastPoll() time.Time {
	ns := c.lastPoll.Load()
	if ns == 0 {
		return time.Time{}
	}
	return time.Unix(0, ns)
}

// Run executes exactly one cycle. Cancelling ctx does not interrupt the cycle:
// the collaborators get a context without cancellation.
func (c *Consumer) Run(ctx context.Context) Outcome {
	ctx = context.WithoutCancel(ctx)
	start := c.now()
	cycleID := uuid.NewString()

	log := c.logger.With().
		Str(logger.FieldContext, logger.ContextNotifyConsumer).
		Str("cycle_id", cycleID).
		Logger()

	outcome := c.cycle(ctx, &log, cycleID)
	c.metrics.observeCycle(outcome, c.now().Sub(start))
	return outcome
}

func (c *Consumer) cycle(ctx context.Context, log *zerolog.Logger, cycleID string) Outcome {
	log.Info().Msg("Asking for next message")

	item, err := c.queue.Next(ctx)
	c.lastPoll.Store(c.now().UnixNano())
	if err != nil {
		c.critical(log, err)
		return OutcomeFailed
	}
	if item == nil {
		log.Info().Msg("No message")
		return OutcomeNoMessage
	}

	itemLog := log.With().
		Str("id", item.Handle()).
		Str("uuid", item.Reference()).
		Logger()

	itemLog.Info().Msg("Sending to Notify")
	result, err := c.dispatcher.Handle(ctx, item)
	if errors.Is(err, dispatch.ErrDuplicateSubmission) {
		itemLog.Info().Msg("Deleting duplicate message")
		if err := c.queue.Delete(ctx, item); err != nil {
			c.critical(&itemLog, err)
			return OutcomeFailed
		}
		return OutcomeDuplicate
	}
	if err != nil {
		c.critical(&itemLog, err)
		return OutcomeFailed
	}

	// Deleting first means a crash below leaves a delivered document without
	// a recorded status, never a second delivery.
	itemLog.Info().Msg("Deleting processed message")
	if err := c.queue.Delete(ctx, item); err != nil {
		c.critical(&itemLog, err)
		return OutcomeFailed
	}

	itemLog.Info().Msg("Updating document status")
	if err := c.updateStatus(ctx, &itemLog, result); err != nil {
		c.critical(&itemLog, err)
		c.reconcile(ctx, &itemLog, cycleID, item, result, err)
		return OutcomeFailed
	}

	itemLog.Info().Msg("Success")
	return OutcomeSuccess
}

func (c *Consumer) updateStatus(ctx context.Context, log *zerolog.Logger, result *models.DispatchResult) error {
	err := c.updater.Handle(ctx, result)
	if err == nil || common.ClassOf(err) != common.Retryable {
		return err
	}

	log.Info().Msg(err.Error())
	c.sleep(c.retryDelay)
	c.metrics.observeRetry()

	log.Info().Msg("Updating document status again")
	return c.updater.Handle(ctx, result)
}

func (c *Consumer) critical(log *zerolog.Logger, err error) {
	logger.Critical(log).
		Str("error", err.Error()).
		Strs("trace", errorTrace(err)).
		Msg("Error processing message")
}

func (c *Consumer) reconcile(ctx context.Context, log *zerolog.Logger, cycleID string, item *models.QueueItem, result *models.DispatchResult, cause error) {
	if c.reconciler == nil {
		return
	}

	err := c.reconciler.PublishReconciliation(ctx, models.ReconciliationRecord{
		DocumentID:     result.DocumentID(),
		Reference:      item.Reference(),
		NotifyID:       result.NotifyID(),
		NotifyStatus:   result.NotifyStatus(),
		SendByMethod:   result.SendByMethod(),
		RecipientEmail: result.RecipientEmail(),
		Error:          cause.Error(),
		FailedAt:       c.now().UTC(),
		CycleID:        cycleID,
	})
	c.metrics.observeReconciliation(err)
	if err != nil {
		log.Error().Err(err).Msg("Reconciliation event not published")
		return
	}
	log.Info().Msg("Reconciliation event published")
}

// errorTrace lists every error in the chain of err, outermost first. Wrappers
// that only annotate an error without changing its text appear once.
func errorTrace(err error) []string {
	var trace []string
	var walk func(e error, parent string)
	walk = func(e error, parent string) {
		if e == nil {
			return
		}
		msg := e.Error()
		if msg != parent {
			trace = append(trace, msg)
		}
		switch u := e.(type) {
		case interface{ Unwrap() error }:
			walk(u.Unwrap(), msg)
		case interface{ Unwrap() []error }:
			for _, inner := range u.Unwrap() {
				walk(inner, msg)
			}
		}
	}
	walk(err, "")
	return trace
}
