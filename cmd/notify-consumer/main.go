package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/example/notify-queue-consumer/internal/config"
	"github.com/example/notify-queue-consumer/internal/consumer"
	"github.com/example/notify-queue-consumer/internal/dispatch"
	"github.com/example/notify-queue-consumer/internal/kafka/producer"
	kafkapublisher "github.com/example/notify-queue-consumer/internal/kafka/publisher"
	"github.com/example/notify-queue-consumer/internal/logger"
	"github.com/example/notify-queue-consumer/internal/ops"
	"github.com/example/notify-queue-consumer/internal/providers/factory"
	"github.com/example/notify-queue-consumer/internal/queue"
	"github.com/example/notify-queue-consumer/internal/sirius"
	"github.com/example/notify-queue-consumer/internal/storage"
)

const shutdownTimeout = 10 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		fail("config load", err)
	}

	baseLogger, err := logger.New(cfg.App.Env, cfg.App.LogLevel, cfg.App.ServiceName)
	if err != nil {
		fail("logger init", err)
	}
	log := *baseLogger

	s3Client, err := storage.NewS3Client(ctx, cfg.AWS)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create s3 client")
	}
	files, err := storage.NewS3Reader(s3Client, cfg.AWS.S3.Bucket, cfg.AWS.S3.Prefix, component(log, "s3-reader"))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create s3 reader")
	}

	q, closeQueue, err := buildQueue(ctx, cfg, component(log, "queue"))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create queue")
	}
	defer closeQueue()

	provider, err := factory.Notify(cfg.Notify, component(log, "notify-provider"))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialise notify provider")
	}

	dispatcher, err := dispatch.NewHandler(provider, files, component(log, "dispatch"))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialise dispatch handler")
	}

	auth, err := sirius.NewAuthenticator(cfg.Sirius.JWTSecret, cfg.Sirius.APIUserEmail)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialise sirius authenticator")
	}
	updater, err := sirius.NewStatusUpdater(cfg.Sirius.UpdateStatusEndpoint, auth, component(log, "status-updater"),
		sirius.WithTimeout(cfg.Sirius.Timeout))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialise status updater")
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	opts := []consumer.Option{
		consumer.WithRetryDelay(cfg.Consumer.UpdateRetryTime),
		consumer.WithMetrics(consumer.NewMetrics(registry)),
	}
	var opsOpts []ops.Option

	if cfg.Kafka.ReconciliationEnabled() {
		prod, err := producer.New(cfg.Kafka.Brokers, component(log, "kafka"), producer.WithClientID(cfg.App.ServiceName))
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create kafka producer")
		}
		defer func() {
			if err := prod.Close(); err != nil {
				log.Error().Err(err).Msg("failed to close kafka producer")
			}
		}()

		reconciler := kafkapublisher.NewReconciliationPublisher(prod, cfg.Kafka.ReconciliationTopic, component(log, "reconciliation-publisher"))
		opts = append(opts, consumer.WithReconciler(reconciler))
		opsOpts = append(opsOpts, ops.WithDependency("kafka", prod))
	}

	cons, err := consumer.New(q, dispatcher, updater, log, opts...)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialise consumer")
	}
	loop := consumer.NewLoop(cons, cfg.Consumer.SleepTime, log)

	opsServer := ops.NewHandler(cons, cfg.Consumer.ReadinessTimeout, registry, component(log, "ops"), opsOpts...).
		NewServer(cfg.App.OpsAddr)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return loop.Run(gctx)
	})

	g.Go(func() error {
		log.Info().Str("addr", opsServer.Addr).Msg("ops server starting")
		if err := opsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("ops server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := opsServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("ops server shutdown: %w", err)
		}
		return nil
	})

	log.Info().Str("queue_backend", cfg.Consumer.QueueBackend).Msg("notify queue consumer started")

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("consumer terminated with error")
	}
	log.Info().Str(logger.FieldContext, logger.ContextNotifyConsumer).Msg("Finished")
}

func buildQueue(ctx context.Context, cfg *config.Config, log zerolog.Logger) (queue.Queue, func(), error) {
	switch cfg.Consumer.QueueBackend {
	case config.QueueBackendJetStream:
		nc, err := nats.Connect(cfg.NATS.URL, nats.Name(cfg.App.ServiceName))
		if err != nil {
			return nil, nil, fmt.Errorf("connect nats: %w", err)
		}
		cons, err := queue.NewJetStreamConsumer(ctx, nc, cfg.NATS)
		if err != nil {
			nc.Close()
			return nil, nil, err
		}
		q, err := queue.NewJetStreamQueue(cons, cfg.NATS.MaxWait, log)
		if err != nil {
			nc.Close()
			return nil, nil, err
		}
		return q, func() {
			if err := nc.Drain(); err != nil {
				log.Error().Err(err).Msg("failed to drain nats connection")
			}
		}, nil
	default:
		client, err := queue.NewSQSClient(ctx, cfg.AWS)
		if err != nil {
			return nil, nil, err
		}
		q, err := queue.NewSQSQueue(client, cfg.AWS.SQS.QueueURL, cfg.AWS.SQS.WaitTime, log)
		if err != nil {
			return nil, nil, err
		}
		return q, func() {}, nil
	}
}

func component(log zerolog.Logger, name string) zerolog.Logger {
	return log.With().Str("component", name).Logger()
}

func fail(stage string, err error) {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	logger.Fatal().Err(err).Str("stage", stage).Msg("notify queue consumer init failed")
}
