package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"reflect"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog"

	"github.com/example/notify-queue-consumer/internal/config"
)

// ErrUnreadable is wrapped by every Read failure. The underlying cause stays in
// the chain.
var ErrUnreadable = errors.New("unable to read file")

// Reader fetches document content by locator.
type Reader interface {
	Read(ctx context.Context, locator string) ([]byte, error)
}

// GetObjectAPI is the subset of the S3 client used by S3Reader.
type GetObjectAPI interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Reader reads documents from one bucket, optionally below a key prefix.
type S3Reader struct {
	client GetObjectAPI
	bucket string
	prefix string
	logger zerolog.Logger
}

// NewS3Reader constructs an S3Reader.
func NewS3Reader(client GetObjectAPI, bucket, prefix string, logger zerolog.Logger) (*S3Reader, error) {
	if client == nil {
		return nil, errors.New("storage: s3 client is required")
	}
	if strings.TrimSpace(bucket) == "" {
		return nil, errors.New("storage: bucket is required")
	}
	if reflect.ValueOf(logger).IsZero() {
		logger = zerolog.Nop()
	}
	return &S3Reader{
		client: client,
		bucket: bucket,
		prefix: strings.Trim(prefix, "/"),
		logger: logger,
	}, nil
}

// NewS3Client builds an S3 client from the AWS settings. A custom endpoint and
// path style addressing are used against local stacks.
func NewS3Client(ctx context.Context, cfg config.AWSConfig) (*s3.Client, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("storage: load aws config: %w", err)
	}
	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.S3.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.S3.Endpoint)
		}
		o.UsePathStyle = cfg.S3.UsePathStyleEndpoint
	}), nil
}

// Read returns the full content stored under locator.
func (r *S3Reader) Read(ctx context.Context, locator string) ([]byte, error) {
	if strings.TrimSpace(locator) == "" {
		return nil, fmt.Errorf("%w: locator is empty", ErrUnreadable)
	}

	if escapesPrefix(locator) {
		return nil, fmt.Errorf("%w: locator %q leaves the document prefix", ErrUnreadable, locator)
	}

	key := locator
	if r.prefix != "" {
		key = path.Join(r.prefix, locator)
	}

	out, err := r.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(r.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrUnreadable, key, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrUnreadable, key, err)
	}

	r.logger.Debug().
		Str("bucket", r.bucket).
		Str("key", key).
		Int("bytes", len(data)).
		Msg("document read")

	return data, nil
}

func escapesPrefix(locator string) bool {
	for _, segment := range strings.Split(locator, "/") {
		if segment == ".." {
			return true
		}
	}
	return false
}
