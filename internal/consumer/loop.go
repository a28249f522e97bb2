package consumer

import (
	"context"
	"reflect"
	"time"

	"github.com/rs/zerolog"

	"github.com/example/notify-queue-consumer/internal/logger"
)

// Cycle is one poll of the queue.
type Cycle interface {
	Run(ctx context.Context) Outcome
}

// Loop runs cycles until its context is cancelled, pausing between them.
type Loop struct {
	cycle     Cycle
	sleepTime time.Duration
	logger    zerolog.Logger
}

// NewLoop constructs a Loop.
func NewLoop(cycle Cycle, sleepTime time.Duration, logger zerolog.Logger) *Loop {
	if reflect.ValueOf(logger).IsZero() {
		logger = zerolog.Nop()
	}
	if sleepTime < 0 {
		sleepTime = 0
	}
	return &Loop{cycle: cycle, sleepTime: sleepTime, logger: logger}
}

// Run blocks until ctx is cancelled. A cycle that has started always
// completes; cancellation only prevents the next one.
func (l *Loop) Run(ctx context.Context) error {
	log := l.logger.With().Str(logger.FieldContext, logger.ContextNotifyConsumer).Logger()

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("Stopping")
			return nil
		case <-timer.C:
		}

		// Prefer stopping over starting a cycle when both are ready.
		if ctx.Err() != nil {
			continue
		}

		l.cycle.Run(ctx)
		timer.Reset(l.sleepTime)
	}
}
