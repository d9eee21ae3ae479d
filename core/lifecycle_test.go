package core

import (
	"context"
	"testing"

	uuid "github.com/gofrs/uuid"
	"github.com/stretchr/testify/require"

	agg "github.com/go-aggregator/aggregator"
	"github.com/go-aggregator/aggregator/accumulators"
	aggerrors "github.com/go-aggregator/aggregator/errors"
	"github.com/go-aggregator/aggregator/graph"
)

func newSingleProcessAggregator(t *testing.T) (*Aggregator, *manualClock) {
	hub := newFakeHub(1)
	g := graph.NewMemory()
	g.AddVertex(0, 1.0)
	g.AddVertex(0, 2.0)
	clock := &manualClock{}
	a := NewAggregator(hub.transport(0), g, clock, AggregatorOptions{NumCPUs: 1})
	err := RegisterVertex[accumulators.Sum](a, "total", func(ctx agg.Context, v agg.LocalVertex) (accumulators.Sum, error) {
		mv := v.(*graph.Vertex)
		return accumulators.Sum(mv.Data.(float64)), nil
	}, func(ctx agg.Context, v accumulators.Sum) error { return nil })
	require.NoError(t, err)
	return a, clock
}

func TestAggregatePeriodicRejectsUnknownKey(t *testing.T) {
	a, _ := newSingleProcessAggregator(t)
	err := a.AggregatePeriodic("nope", 10)
	require.Equal(t, aggerrors.UnknownAggregatorError{Key: "nope"}, err)
}

func TestAggregatePeriodicRejectsNegativePeriod(t *testing.T) {
	a, _ := newSingleProcessAggregator(t)
	err := a.AggregatePeriodic("total", -1)
	require.Equal(t, aggerrors.NegativePeriodError{Seconds: -1}, err)
}

func TestAggregateAllPeriodicArmsEveryKey(t *testing.T) {
	a, _ := newSingleProcessAggregator(t)
	require.NoError(t, a.AggregateAllPeriodic(15))
	require.ElementsMatch(t, []string{"total"}, a.ListPeriodicKeys())
	seconds, ok := a.periods.get("total")
	require.True(t, ok)
	require.Equal(t, 15.0, seconds)
}

func TestStartArmsScheduleFromPeriodTable(t *testing.T) {
	a, clock := newSingleProcessAggregator(t)
	clock.seconds = 100
	require.NoError(t, a.AggregatePeriodic("total", 10))
	require.NoError(t, a.Start(context.Background()))

	entry, ok := a.sched.popReady(1e9)
	require.True(t, ok)
	require.Equal(t, "total", entry.key)
	require.InDelta(t, 110.0, entry.fireAt, 0.001)

	_, ok = a.asyncState("total")
	require.True(t, ok, "Start must arm asynchronous state for every periodic key")
}

func TestStartMintsAFreshRunIDEachCall(t *testing.T) {
	a, _ := newSingleProcessAggregator(t)
	require.NoError(t, a.Start(context.Background()))
	first := a.runID
	require.NotEqual(t, uuid.UUID{}, first)

	require.NoError(t, a.Start(context.Background()))
	require.NotEqual(t, first, a.runID, "each Start must mint a new run id")
}

func TestStopClearsScheduleAndAccumulators(t *testing.T) {
	a, _ := newSingleProcessAggregator(t)
	require.NoError(t, a.AggregatePeriodic("total", 10))
	require.NoError(t, a.Start(context.Background()))

	spec := a.registry.mustGet("total").(*mapReduceSpec[accumulators.Sum])
	spec.value = 42
	spec.valid = true

	require.NoError(t, a.Stop(context.Background()))

	_, ok := a.sched.popReady(1e9)
	require.False(t, ok, "Stop must clear the schedule")
	require.False(t, spec.valid, "Stop must clear every accumulator")
	_, ok = a.asyncState("total")
	require.False(t, ok, "Stop must clear armed asynchronous state")
}
