package queue

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/rs/zerolog"

	"github.com/example/notify-queue-consumer/internal/config"
	"github.com/example/notify-queue-consumer/internal/models"
)

// SQSAPI is the subset of the SQS client used by SQSQueue.
type SQSAPI interface {
	ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
}

// SQSQueue reads one message per call with long polling. The receipt handle
// becomes the item handle.
type SQSQueue struct {
	client   SQSAPI
	queueURL string
	waitTime int32
	logger   zerolog.Logger
}

// NewSQSQueue constructs an SQSQueue.
func NewSQSQueue(client SQSAPI, queueURL string, waitTime int32, logger zerolog.Logger) (*SQSQueue, error) {
	if client == nil {
		return nil, errors.New("queue: sqs client is required")
	}
	if strings.TrimSpace(queueURL) == "" {
		return nil, errors.New("queue: sqs queue url is required")
	}
	if waitTime < 0 || waitTime > 20 {
		return nil, fmt.Errorf("queue: sqs wait time %d out of range 0-20", waitTime)
	}
	if reflect.ValueOf(logger).IsZero() {
		logger = zerolog.Nop()
	}
	return &SQSQueue{
		client:   client,
		queueURL: queueURL,
		waitTime: waitTime,
		logger:   logger,
	}, nil
}

// NewSQSClient builds an SQS client from the AWS settings.
func NewSQSClient(ctx context.Context, cfg config.AWSConfig) (*sqs.Client, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("queue: load aws config: %w", err)
	}
	return sqs.NewFromConfig(awsCfg, func(o *sqs.Options) {
		if cfg.SQS.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.SQS.Endpoint)
		}
	}), nil
}

// Next receives at most one message.
func (q *SQSQueue) Next(ctx context.Context) (*models.QueueItem, error) {
	out, err := q.client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
		QueueUrl:              aws.String(q.queueURL),
		MaxNumberOfMessages:   1,
		WaitTimeSeconds:       q.waitTime,
		MessageAttributeNames: []string{"All"},
	})
	if err != nil {
		return nil, fmt.Errorf("queue: sqs receive: %w", err)
	}
	if len(out.Messages) == 0 {
		return nil, nil
	}

	raw := out.Messages[0]
	q.logger.Debug().
		Str("message_id", aws.ToString(raw.MessageId)).
		Msg("sqs message received")

	return ParseMessage(aws.ToString(raw.ReceiptHandle), []byte(aws.ToString(raw.Body)))
}

// Delete removes the message by its receipt handle.
func (q *SQSQueue) Delete(ctx context.Context, item *models.QueueItem) error {
	if item == nil {
		return errors.New("queue: item is required")
	}
	_, err := q.client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(q.queueURL),
		ReceiptHandle: aws.String(item.Handle()),
	})
	if err != nil {
		return fmt.Errorf("queue: sqs delete: %w", err)
	}
	return nil
}
