package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

type countingRefresher struct {
	calls atomic.Int32
	err   error
}

func (r *countingRefresher) RefreshOverdue(context.Context, time.Time) (int, error) {
	r.calls.Add(1)
	return 1, r.err
}

func TestOverdueSweeper_RunsUntilCancelled(t *testing.T) {
	refresher := &countingRefresher{}
	sweeper := NewOverdueSweeper(refresher, 5*time.Millisecond, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		sweeper.Run(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool { return refresher.calls.Load() >= 3 }, time.Second, time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop")
	}
}

func TestOverdueSweeper_KeepsRunningOnError(t *testing.T) {
	refresher := &countingRefresher{err: errors.New("db down")}
	sweeper := NewOverdueSweeper(refresher, 5*time.Millisecond, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go sweeper.Run(ctx)

	assert.Eventually(t, func() bool { return refresher.calls.Load() >= 2 }, time.Second, time.Millisecond)
}

func TestOverdueSweeper_Disabled(t *testing.T) {
	refresher := &countingRefresher{}
	NewOverdueSweeper(refresher, 0, zerolog.Nop()).Run(context.Background())
	assert.Zero(t, refresher.calls.Load())
}
