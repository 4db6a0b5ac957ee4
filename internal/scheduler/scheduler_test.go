package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"portal_sync/internal/domain"
)

type countingDrainer struct {
	calls     atomic.Int64
	batchSize atomic.Int64
	err       error
}

func (d *countingDrainer) Drain(_ context.Context, batchSize int) (*domain.DispatchStats, error) {
	d.calls.Add(1)
	d.batchSize.Store(int64(batchSize))
	return &domain.DispatchStats{}, d.err
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestScheduler_DrainsImmediatelyAndOnTicks(t *testing.T) {
	drainer := &countingDrainer{}
	s := NewScheduler(drainer, 10*time.Millisecond, 20, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Start(ctx) }()

	assert.Eventually(t, func() bool {
		return drainer.calls.Load() >= 3
	}, time.Second, 5*time.Millisecond, "one immediate drain plus ticks")

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
	assert.Equal(t, int64(20), drainer.batchSize.Load())
}

func TestScheduler_KeepsRunningAfterDrainErrors(t *testing.T) {
	drainer := &countingDrainer{err: errors.New("db down")}
	s := NewScheduler(drainer, 10*time.Millisecond, 20, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Start(ctx) }()

	assert.Eventually(t, func() bool {
		return drainer.calls.Load() >= 2
	}, time.Second, 5*time.Millisecond, "a failed drain never stops the loop")

	cancel()
	<-done
}
