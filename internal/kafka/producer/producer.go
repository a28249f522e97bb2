// Package producer sends reconciliation records to Kafka and remembers whether
// the last attempt reached the brokers.
package producer

import (
	"errors"
	"fmt"
	"reflect"
	"sync"
	"sync/atomic"
	"time"

	"github.com/IBM/sarama"
	"github.com/rs/zerolog"
)

// Option customises the producer during construction.
type Option func(*sarama.Config)

// WithClientID sets the Kafka client id, normally the service name.
func WithClientID(id string) Option {
	return func(cfg *sarama.Config) {
		if id != "" {
			cfg.ClientID = id
		}
	}
}

// WithVersion overrides the protocol version negotiated with the brokers.
func WithVersion(v sarama.KafkaVersion) Option {
	return func(cfg *sarama.Config) {
		cfg.Version = v
	}
}

// metadataClient is the part of sarama.Client the producer needs.
type metadataClient interface {
	RefreshMetadata(topics ...string) error
	Close() error
}

// Producer publishes one record at a time and waits for every in-sync replica.
// Reconciliation records are rare, so readiness comes from the connection
// check at start-up and from each send rather than from a background poll.
type Producer struct {
	logger zerolog.Logger

	client metadataClient
	sender sarama.SyncProducer

	ready     atomic.Bool
	closeOnce sync.Once
}

// New connects to brokers.
func New(brokers []string, logger zerolog.Logger, opts ...Option) (*Producer, error) {
	if len(brokers) == 0 {
		return nil, errors.New("kafka producer: at least one broker is required")
	}

	cfg := newSaramaConfig()
	for _, opt := range opts {
		if opt != nil {
			opt(cfg)
		}
	}

	client, err := sarama.NewClient(brokers, cfg)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: create client: %w", err)
	}

	sender, err := sarama.NewSyncProducerFromClient(client)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("kafka producer: create sync producer: %w", err)
	}

	return newProducer(client, sender, logger), nil
}

func newProducer(client metadataClient, sender sarama.SyncProducer, logger zerolog.Logger) *Producer {
	if reflect.ValueOf(logger).IsZero() {
		logger = zerolog.Nop()
	}

	p := &Producer{logger: logger, client: client, sender: sender}
	if err := client.RefreshMetadata(); err != nil {
		logger.Warn().Err(err).Msg("kafka brokers unreachable at start-up")
		return p
	}
	p.ready.Store(true)
	return p
}

// PublishSync sends payload to topic and returns once the brokers have stored
// it.
func (p *Producer) PublishSync(topic string, key []byte, headers map[string][]byte, payload []byte) error {
	if topic == "" {
		return errors.New("kafka producer: topic is required")
	}

	msg := &sarama.ProducerMessage{
		Topic: topic,
		Value: sarama.ByteEncoder(payload),
	}
	if len(key) > 0 {
		msg.Key = sarama.ByteEncoder(key)
	}
	for k, v := range headers {
		msg.Headers = append(msg.Headers, sarama.RecordHeader{Key: []byte(k), Value: v})
	}

	partition, offset, err := p.sender.SendMessage(msg)
	p.ready.Store(err == nil)
	if err != nil {
		return fmt.Errorf("kafka producer: send sync: %w", err)
	}

	p.logger.Debug().
		Str("topic", topic).
		Int32("partition", partition).
		Int64("offset", offset).
		Msg("kafka record stored")
	return nil
}

// IsReady reports whether the start-up check or the latest send succeeded.
func (p *Producer) IsReady() bool {
	return p.ready.Load()
}

// Close releases the producer and its client. Later calls do nothing.
func (p *Producer) Close() error {
	var errs []error
	p.closeOnce.Do(func() {
		p.ready.Store(false)
		if err := p.sender.Close(); err != nil {
			errs = append(errs, err)
		}
		if err := p.client.Close(); err != nil {
			errs = append(errs, err)
		}
	})
	return errors.Join(errs...)
}

// newSaramaConfig favours durability: each record is acknowledged by all
// in-sync replicas and retried briefly before the send fails.
func newSaramaConfig() *sarama.Config {
	cfg := sarama.NewConfig()
	cfg.Version = sarama.V2_5_0_0
	cfg.Net.MaxOpenRequests = 1
	cfg.Metadata.Full = false
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Idempotent = true
	cfg.Producer.Return.Successes = true
	cfg.Producer.Retry.Max = 3
	cfg.Producer.Retry.Backoff = 500 * time.Millisecond
	cfg.Producer.Timeout = 10 * time.Second
	return cfg
}
