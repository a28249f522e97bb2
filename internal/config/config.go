package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/example/notify-queue-consumer/internal/util"
)

// Queue backends.
const (
	QueueBackendSQS       = "sqs"
	QueueBackendJetStream = "jetstream"
)

// Notify provider backends.
const (
	NotifyProviderHTTP = "http"
	NotifyProviderMock = "mock"
)

// Config captures all runtime configuration for the notify queue consumer.
type Config struct {
	App      AppConfig
	Consumer ConsumerConfig
	AWS      AWSConfig
	NATS     NATSConfig
	Notify   NotifyConfig
	Sirius   SiriusConfig
	Kafka    KafkaConfig
}

// AppConfig contains generic application level settings.
type AppConfig struct {
	Env         string
	LogLevel    string
	ServiceName string
	OpsAddr     string
}

// ConsumerConfig controls the poll loop.
type ConsumerConfig struct {
	QueueBackend     string
	SleepTime        time.Duration
	UpdateRetryTime  time.Duration
	ReadinessTimeout time.Duration
}

// AWSConfig holds SQS and S3 settings.
type AWSConfig struct {
	Region string
	SQS    SQSConfig
	S3     S3Config
}

// SQSConfig configures the SQS queue backend.
type SQSConfig struct {
	Endpoint string
	QueueURL string
	WaitTime int32
}

// S3Config configures the document store.
type S3Config struct {
	Endpoint             string
	UsePathStyleEndpoint bool
	Bucket               string
	Prefix               string
}

// NATSConfig configures the JetStream queue backend.
type NATSConfig struct {
	URL        string
	Stream     string
	Subject    string
	Consumer   string
	AckWait    time.Duration
	MaxWait    time.Duration
	MaxDeliver int
}

// NotifyConfig stores credentials for the Notify API.
type NotifyConfig struct {
	Provider string
	APIKey   string
	BaseURL  string
	Timeout  time.Duration
}

// SiriusConfig stores settings for the document status update call.
type SiriusConfig struct {
	JWTSecret            string
	APIUserEmail         string
	UpdateStatusEndpoint string
	Timeout              time.Duration
}

// KafkaConfig enables reconciliation events when both fields are set.
type KafkaConfig struct {
	Brokers             []string
	ReconciliationTopic string
}

// ReconciliationEnabled reports whether undelivered status updates should be
// published to Kafka.
func (k KafkaConfig) ReconciliationEnabled() bool {
	return len(k.Brokers) > 0 && k.ReconciliationTopic != ""
}

// Load reads environment variables, applies defaults, validates required
// values and returns a populated Config instance.
func Load() (*Config, error) {
	_ = godotenv.Load()

	ldr := &envLoader{}

	cfg := &Config{}
	cfg.App.Env = ldr.getString("APP_ENV", "development", false)
	cfg.App.LogLevel = ldr.getString("LOG_LEVEL", "info", false)
	cfg.App.ServiceName = ldr.getString("SERVICE_NAME", "notify-queue-consumer", false)
	cfg.App.OpsAddr = ldr.getString("OPS_ADDR", ":8080", false)

	cfg.Consumer.QueueBackend = strings.ToLower(ldr.getString("QUEUE_BACKEND", QueueBackendSQS, false))
	cfg.Consumer.SleepTime = ldr.getSeconds("OPG_NOTIFY_QUEUE_CONSUMER_SLEEP_TIME", 1)
	cfg.Consumer.UpdateRetryTime = ldr.getSeconds("OPG_NOTIFY_QUEUE_CONSUMER_UPDATE_RETRY_TIME", 1)
	cfg.Consumer.ReadinessTimeout = ldr.getSeconds("OPG_NOTIFY_QUEUE_CONSUMER_READINESS_TIMEOUT", 300)

	cfg.AWS.Region = ldr.getString("AWS_REGION", "eu-west-1", false)
	cfg.AWS.S3.Endpoint = ldr.getString("AWS_S3_ENDPOINT_URL", "", false)
	cfg.AWS.S3.UsePathStyleEndpoint = ldr.getBool("AWS_S3_USE_PATH_STYLE_ENDPOINT", false, false)
	cfg.AWS.S3.Bucket = ldr.getString("AWS_S3_BUCKET", "", true)
	cfg.AWS.S3.Prefix = ldr.getString("AWS_S3_PREFIX", "", false)

	switch cfg.Consumer.QueueBackend {
	case QueueBackendSQS:
		cfg.AWS.SQS.Endpoint = ldr.getString("AWS_SQS_ENDPOINT_URL", "", false)
		cfg.AWS.SQS.QueueURL = ldr.getString("AWS_SQS_QUEUE_URL", "", true)
		cfg.AWS.SQS.WaitTime = int32(ldr.getInt("AWS_SQS_WAIT_TIME", 0, false))
		if cfg.AWS.SQS.WaitTime < 0 || cfg.AWS.SQS.WaitTime > 20 {
			ldr.addError("AWS_SQS_WAIT_TIME must be between 0 and 20")
		}
	case QueueBackendJetStream:
		cfg.NATS.URL = ldr.getString("NATS_URL", "nats://localhost:4222", false)
		cfg.NATS.Stream = ldr.getString("NATS_STREAM", "", true)
		cfg.NATS.Subject = ldr.getString("NATS_SUBJECT", "", true)
		cfg.NATS.Consumer = ldr.getString("NATS_CONSUMER", "notify-queue-consumer", false)
		cfg.NATS.AckWait = ldr.getSeconds("NATS_ACK_WAIT_SECONDS", 300)
		cfg.NATS.MaxWait = ldr.getSeconds("NATS_FETCH_WAIT_SECONDS", 20)
		cfg.NATS.MaxDeliver = ldr.getInt("NATS_MAX_DELIVER", 5, false)
		if cfg.NATS.MaxDeliver < 1 {
			ldr.addError("NATS_MAX_DELIVER must be at least 1")
		}
	default:
		ldr.addError(fmt.Sprintf("QUEUE_BACKEND %q is not supported", cfg.Consumer.QueueBackend))
	}

	cfg.Notify.Provider = strings.ToLower(ldr.getString("NOTIFY_PROVIDER", NotifyProviderHTTP, false))
	cfg.Notify.APIKey = ldr.getString("OPG_NOTIFY_API_KEY", "", cfg.Notify.Provider == NotifyProviderHTTP)
	cfg.Notify.BaseURL = ldr.getURL("OPG_NOTIFY_BASE_URL", "https://api.notifications.service.gov.uk", false)
	cfg.Notify.Timeout = ldr.getSeconds("NOTIFY_TIMEOUT_SECONDS", 30)

	cfg.Sirius.JWTSecret = ldr.getString("OPG_CORE_BACK_JWT_SECRET", "", true)
	cfg.Sirius.APIUserEmail = ldr.getString("OPG_CORE_BACK_API_USER_EMAIL", "", false)
	cfg.Sirius.UpdateStatusEndpoint = ldr.getURL("OPG_CORE_BACK_UPDATE_STATUS_ENDPOINT", "", true)
	cfg.Sirius.Timeout = ldr.getSeconds("OPG_CORE_BACK_TIMEOUT_SECONDS", 30)

	cfg.Kafka.Brokers = ldr.getStringSlice("KAFKA_BROKERS", false)
	cfg.Kafka.ReconciliationTopic = ldr.getString("KAFKA_RECONCILIATION_TOPIC", "", false)

	if err := ldr.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

type envLoader struct {
	errs []string
}

func (l *envLoader) validate() error {
	if len(l.errs) == 0 {
		return nil
	}
	return fmt.Errorf("config validation failed: %s", strings.Join(l.errs, "; "))
}

func (l *envLoader) getString(key, def string, required bool) string {
	if val, ok := os.LookupEnv(key); ok {
		val = strings.TrimSpace(val)
		if val == "" {
			if required {
				l.addError(fmt.Sprintf("%s is required", key))
			}
			return def
		}
		return val
	}
	if required {
		l.addError(fmt.Sprintf("%s is required", key))
	}
	return def
}

func (l *envLoader) getInt(key string, def int, required bool) int {
	if val, ok := os.LookupEnv(key); ok {
		val = strings.TrimSpace(val)
		if val == "" {
			if required {
				l.addError(fmt.Sprintf("%s is required", key))
			}
			return def
		}
		i, err := strconv.Atoi(val)
		if err != nil {
			l.addError(fmt.Sprintf("%s must be a valid integer", key))
			return def
		}
		return i
	}
	if required {
		l.addError(fmt.Sprintf("%s is required", key))
	}
	return def
}

// getSeconds reads a non-negative whole number of seconds.
func (l *envLoader) getSeconds(key string, def int) time.Duration {
	secs := l.getInt(key, def, false)
	if secs < 0 {
		l.addError(fmt.Sprintf("%s must not be negative", key))
		secs = def
	}
	return time.Duration(secs) * time.Second
}

func (l *envLoader) getBool(key string, def bool, required bool) bool {
	if val, ok := os.LookupEnv(key); ok {
		val = strings.TrimSpace(val)
		if val == "" {
			if required {
				l.addError(fmt.Sprintf("%s is required", key))
			}
			return def
		}
		parsed, err := strconv.ParseBool(val)
		if err != nil {
			l.addError(fmt.Sprintf("%s must be a valid boolean", key))
			return def
		}
		return parsed
	}
	if required {
		l.addError(fmt.Sprintf("%s is required", key))
	}
	return def
}

func (l *envLoader) getURL(key, def string, required bool) string {
	raw := l.getString(key, def, required)
	if raw == "" {
		return raw
	}
	valid, err := util.ValidateHTTPURL(raw)
	if err != nil {
		l.addError(fmt.Sprintf("%s: %v", key, err))
		return raw
	}
	return valid
}

func (l *envLoader) getStringSlice(key string, required bool) []string {
	raw := l.getString(key, "", required)
	if raw == "" {
		if required {
			return nil
		}
		return []string{}
	}
	parts := strings.Split(raw, ",")
	var out []string
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	if required && len(out) == 0 {
		l.addError(fmt.Sprintf("%s must contain at least one entry", key))
	}
	return out
}

func (l *envLoader) addError(err string) {
	l.errs = append(l.errs, err)
}
