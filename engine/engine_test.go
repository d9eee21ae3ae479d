package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeSyncAggregator struct {
	mu    sync.Mutex
	ticks int
}

func (a *fakeSyncAggregator) TickSynchronous(ctx context.Context) error {
	a.mu.Lock()
	a.ticks++
	a.mu.Unlock()
	return nil
}

func (a *fakeSyncAggregator) count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.ticks
}

func TestSynchronousEngineTicksUntilStopped(t *testing.T) {
	fake := &fakeSyncAggregator{}
	e := NewSynchronousEngine(fake, 5*time.Millisecond)

	done := make(chan error, 1)
	go func() { done <- e.Run(context.Background()) }()

	time.Sleep(30 * time.Millisecond)
	e.Stop()
	require.NoError(t, <-done)
	require.Greater(t, fake.count(), 0)
}

type fakeAsyncAggregator struct {
	mu        sync.Mutex
	computed  int
	readyOnce sync.Once
}

func (a *fakeAsyncAggregator) TickAsynchronous() (string, bool) {
	ready := false
	a.readyOnce.Do(func() { ready = true })
	return "k", ready
}

func (a *fakeAsyncAggregator) TickAsynchronousCompute(ctx context.Context, cpuID int, key string) error {
	a.mu.Lock()
	a.computed++
	a.mu.Unlock()
	return nil
}

func TestAsynchronousEngineFansOutAcrossCPUs(t *testing.T) {
	fake := &fakeAsyncAggregator{}
	e := NewAsynchronousEngine(fake, 4, 5*time.Millisecond)

	done := make(chan error, 1)
	go func() { done <- e.Run(context.Background()) }()

	time.Sleep(20 * time.Millisecond)
	e.Stop()
	require.NoError(t, <-done)

	fake.mu.Lock()
	defer fake.mu.Unlock()
	require.Equal(t, 4, fake.computed)
}

func TestSystemClockReportsIncreasingTime(t *testing.T) {
	c := SystemClock{}
	first := c.ApproxTimeSeconds()
	time.Sleep(time.Millisecond)
	second := c.ApproxTimeSeconds()
	require.Greater(t, second, first)
}
