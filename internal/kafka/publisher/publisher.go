// Package publisher writes reconciliation records to Kafka.
package publisher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/example/notify-queue-consumer/internal/models"
)

var errProducerNotInitialised = errors.New("kafka publisher: producer not initialised")

// SyncProducer captures the subset of producer behaviour the publisher needs.
type SyncProducer interface {
	PublishSync(topic string, key []byte, headers map[string][]byte, payload []byte) error
}

// ErrProducerNotInitialised exposes the sentinel error for callers and tests.
func ErrProducerNotInitialised() error {
	return errProducerNotInitialised
}

// ReconciliationPublisher emits records for documents that reached Notify but
// whose Sirius status was never written.
type ReconciliationPublisher struct {
	producer SyncProducer
	topic    string
	logger   zerolog.Logger
}

// NewReconciliationPublisher constructs a ReconciliationPublisher. It returns
// nil when prod is nil.
func NewReconciliationPublisher(prod SyncProducer, topic string, logger zerolog.Logger) *ReconciliationPublisher {
	if prod == nil {
		return nil
	}
	if reflect.ValueOf(logger).IsZero() {
		logger = zerolog.Nop()
	}
	return &ReconciliationPublisher{
		producer: prod,
		topic:    topic,
		logger:   logger,
	}
}

// PublishReconciliation writes record synchronously, keyed by the Notify
// reference so records for one document land on one partition.
func (p *ReconciliationPublisher) PublishReconciliation(_ context.Context, record models.ReconciliationRecord) error {
	if p == nil || p.producer == nil {
		return errProducerNotInitialised
	}

	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("kafka publisher: marshal reconciliation record: %w", err)
	}

	key := record.Reference
	if key == "" {
		key = strconv.Itoa(record.DocumentID)
	}
	headers := map[string][]byte{
		"content-type": []byte("application/json"),
	}

	if err := p.producer.PublishSync(p.topic, []byte(key), headers, payload); err != nil {
		return fmt.Errorf("kafka publisher: publish reconciliation record: %w", err)
	}

	p.logger.Debug().
		Str("topic", p.topic).
		Int("document_id", record.DocumentID).
		Msg("reconciliation record published")
	return nil
}
