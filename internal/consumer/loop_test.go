package consumer

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingCycle struct {
	runs     int
	stopAt   int
	cancel   context.CancelFunc
	ctxAlive []bool
}

func (c *countingCycle) Run(ctx context.Context) Outcome {
	c.runs++
	c.ctxAlive = append(c.ctxAlive, ctx.Err() == nil)
	if c.runs == c.stopAt {
		c.cancel()
	}
	return OutcomeNoMessage
}

func TestLoopRunsUntilCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cycle := &countingCycle{stopAt: 3, cancel: cancel}
	var buf bytes.Buffer
	loop := NewLoop(cycle, time.Millisecond, zerolog.New(&buf))

	done := make(chan error, 1)
	go func() { done <- loop.Run(ctx) }()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("loop did not stop")
	}

	assert.Equal(t, 3, cycle.runs)
	assert.Equal(t, []bool{true, true, true}, cycle.ctxAlive)
	assert.Contains(t, buf.String(), `"msg":"Stopping"`)
	assert.Contains(t, buf.String(), `"context":"notify_consumer"`)
}

func TestLoopDoesNotStartWhenAlreadyCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	cycle := &countingCycle{cancel: cancel}
	loop := NewLoop(cycle, 0, zerolog.Nop())

	require.NoError(t, loop.Run(ctx))
	assert.Zero(t, cycle.runs)
}

func TestNewLoopClampsNegativeSleep(t *testing.T) {
	loop := NewLoop(&countingCycle{}, -time.Second, zerolog.Logger{})
	assert.Zero(t, loop.sleepTime)
}
