package queue

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog"

	"github.com/example/notify-queue-consumer/internal/config"
	"github.com/example/notify-queue-consumer/internal/models"
)

const (
	defaultFetchWait  = 20 * time.Second
	defaultMaxDeliver = 5
)

// Fetcher is the subset of a JetStream pull consumer used by JetStreamQueue.
type Fetcher interface {
	Fetch(batch int, opts ...jetstream.FetchOpt) (jetstream.MessageBatch, error)
}

// JetStreamQueue pulls one message per call from a durable consumer with
// explicit acks. Messages that are never deleted are redelivered once the
// consumer AckWait expires.
type JetStreamQueue struct {
	consumer Fetcher
	maxWait  time.Duration
	logger   zerolog.Logger

	mu      sync.Mutex
	pending map[string]jetstream.Msg
}

// NewJetStreamQueue constructs a JetStreamQueue.
func NewJetStreamQueue(consumer Fetcher, maxWait time.Duration, logger zerolog.Logger) (*JetStreamQueue, error) {
	if consumer == nil {
		return nil, errors.New("queue: jetstream consumer is required")
	}
	if maxWait <= 0 {
		maxWait = defaultFetchWait
	}
	if reflect.ValueOf(logger).IsZero() {
		logger = zerolog.Nop()
	}
	return &JetStreamQueue{
		consumer: consumer,
		maxWait:  maxWait,
		logger:   logger,
		pending:  make(map[string]jetstream.Msg),
	}, nil
}

// NewJetStreamConsumer ensures the work queue stream and the durable pull
// consumer exist.
func NewJetStreamConsumer(ctx context.Context, nc *nats.Conn, cfg config.NATSConfig) (jetstream.Consumer, error) {
	js, err := jetstream.New(nc)
	if err != nil {
		return nil, fmt.Errorf("queue: jetstream context: %w", err)
	}

	_, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:      cfg.Stream,
		Subjects:  []string{cfg.Subject},
		Storage:   jetstream.FileStorage,
		Retention: jetstream.WorkQueuePolicy,
	})
	if err != nil {
		return nil, fmt.Errorf("queue: ensure stream %s: %w", cfg.Stream, err)
	}

	consumer, err := js.CreateOrUpdateConsumer(ctx, cfg.Stream, consumerConfig(cfg))
	if err != nil {
		return nil, fmt.Errorf("queue: ensure consumer %s: %w", cfg.Consumer, err)
	}
	return consumer, nil
}

// consumerConfig builds the durable consumer settings. Only one message is in
// flight at a time, and a message that keeps failing is dropped by the server
// after MaxDeliver attempts so it cannot hold up the stream forever.
func consumerConfig(cfg config.NATSConfig) jetstream.ConsumerConfig {
	maxDeliver := cfg.MaxDeliver
	if maxDeliver <= 0 {
		maxDeliver = defaultMaxDeliver
	}
	return jetstream.ConsumerConfig{
		Durable:       cfg.Consumer,
		AckPolicy:     jetstream.AckExplicitPolicy,
		AckWait:       cfg.AckWait,
		FilterSubject: cfg.Subject,
		MaxAckPending: 1,
		MaxDeliver:    maxDeliver,
	}
}

// Next fetches at most one message, waiting up to the configured max wait.
func (q *JetStreamQueue) Next(ctx context.Context) (*models.QueueItem, error) {
	batch, err := q.consumer.Fetch(1, jetstream.FetchMaxWait(q.maxWait))
	if err != nil {
		return nil, fmt.Errorf("queue: jetstream fetch: %w", err)
	}

	var msg jetstream.Msg
	for m := range batch.Messages() {
		if msg == nil {
			msg = m
		}
	}
	if err := batch.Error(); err != nil && !errors.Is(err, nats.ErrTimeout) {
		return nil, fmt.Errorf("queue: jetstream fetch: %w", err)
	}
	if msg == nil {
		return nil, nil
	}

	handle := strings.TrimSpace(msg.Reply())
	if handle == "" {
		handle = uuid.NewString()
	}

	item, err := ParseMessage(handle, msg.Data())
	if err != nil {
		return nil, err
	}

	// A message left from an earlier cycle is redelivered by the server, so
	// only the current one is tracked.
	q.mu.Lock()
	q.pending = map[string]jetstream.Msg{handle: msg}
	q.mu.Unlock()

	q.logger.Debug().
		Str("subject", msg.Subject()).
		Msg("jetstream message received")

	return item, nil
}

// Delete acknowledges the message behind item.
func (q *JetStreamQueue) Delete(ctx context.Context, item *models.QueueItem) error {
	if item == nil {
		return errors.New("queue: item is required")
	}

	q.mu.Lock()
	msg, ok := q.pending[item.Handle()]
	q.mu.Unlock()
	if !ok {
		return fmt.Errorf("queue: no pending jetstream message for handle %q", item.Handle())
	}

	if err := msg.DoubleAck(ctx); err != nil {
		return fmt.Errorf("queue: jetstream ack: %w", err)
	}

	q.mu.Lock()
	delete(q.pending, item.Handle())
	q.mu.Unlock()
	return nil
}
