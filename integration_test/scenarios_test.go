// Package integration_test exercises a real two-process cluster end to
// end, Node-to-Node over gRPC on localhost, mirroring the teacher's
// internal/test/integration scenario tests (shuffle_error_test.go) but
// scoped to the five end-to-end scenarios this aggregator's spec lays
// out: vertex sum, edge count, an asynchronous round, the periodic lower
// bound, and a zero-second period firing every tick.
package integration_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	agg "github.com/go-aggregator/aggregator"
	"github.com/go-aggregator/aggregator/accumulators"
	"github.com/go-aggregator/aggregator/aggtest"
	"github.com/go-aggregator/aggregator/cluster"
	"github.com/go-aggregator/aggregator/core"
	"github.com/go-aggregator/aggregator/graph"
)

func TestVertexSumAcrossCluster(t *testing.T) {
	g0 := graph.NewMemory()
	g0.AddVertex(0, 1.0)
	g0.AddVertex(0, 2.0)
	g0.AddVertex(0, 3.0)
	g1 := graph.NewMemory()
	g1.AddVertex(1, 4.0)
	g1.AddVertex(1, 5.0)

	var mu sync.Mutex
	observed := make([]accumulators.Sum, 2)

	setup := func(i int, a *core.Aggregator) {
		err := core.RegisterVertex[accumulators.Sum](a, "vsum", func(ctx agg.Context, v agg.LocalVertex) (accumulators.Sum, error) {
			mv := v.(*graph.Vertex)
			return accumulators.Sum(mv.Data.(float64)), nil
		}, func(ctx agg.Context, value accumulators.Sum) error {
			mu.Lock()
			observed[i] = value
			mu.Unlock()
			return nil
		})
		require.NoError(t, err)
	}

	ctx := context.Background()
	c, err := aggtest.RunCluster(ctx, 2, []agg.Graph{g0, g1}, core.AggregatorOptions{NumCPUs: 1}, setup)
	require.NoError(t, err)
	defer c.Close(ctx)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, node := range c.Nodes {
		wg.Add(1)
		go func(i int, node *cluster.Node) {
			defer wg.Done()
			errs[i] = node.Aggregator.AggregateNow(ctx, "vsum")
		}(i, node)
	}
	wg.Wait()
	for _, err := range errs {
		require.NoError(t, err)
	}

	require.Equal(t, accumulators.Sum(15), observed[0])
	require.Equal(t, accumulators.Sum(15), observed[1])
}

func TestEdgeCountAcrossCluster(t *testing.T) {
	g0 := graph.NewMemory()
	v0 := g0.AddVertex(0, nil)
	for i := 0; i < 4; i++ {
		g0.AddEdge(v0, 0, nil)
	}
	g1 := graph.NewMemory()
	v1 := g1.AddVertex(1, nil)
	for i := 0; i < 3; i++ {
		g1.AddEdge(v1, 1, nil)
	}

	var mu sync.Mutex
	observed := make([]accumulators.Count, 2)

	setup := func(i int, a *core.Aggregator) {
		err := core.RegisterEdge[accumulators.Count](a, "ecount", func(ctx agg.Context, e agg.LocalEdge) (accumulators.Count, error) {
			return accumulators.Count(1), nil
		}, func(ctx agg.Context, value accumulators.Count) error {
			mu.Lock()
			observed[i] = value
			mu.Unlock()
			return nil
		})
		require.NoError(t, err)
	}

	ctx := context.Background()
	c, err := aggtest.RunCluster(ctx, 2, []agg.Graph{g0, g1}, core.AggregatorOptions{NumCPUs: 1}, setup)
	require.NoError(t, err)
	defer c.Close(ctx)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, node := range c.Nodes {
		wg.Add(1)
		go func(i int, node *cluster.Node) {
			defer wg.Done()
			errs[i] = node.Aggregator.AggregateNow(ctx, "ecount")
		}(i, node)
	}
	wg.Wait()
	for _, err := range errs {
		require.NoError(t, err)
	}

	require.Equal(t, accumulators.Count(7), observed[0])
	require.Equal(t, accumulators.Count(7), observed[1])
}

func TestAsyncRoundAcrossCluster(t *testing.T) {
	g0 := graph.NewMemory()
	v0 := g0.AddVertex(0, nil)
	for i := 0; i < 4; i++ {
		g0.AddEdge(v0, 0, nil)
	}
	g1 := graph.NewMemory()
	v1 := g1.AddVertex(1, nil)
	for i := 0; i < 3; i++ {
		g1.AddEdge(v1, 1, nil)
	}

	var mu sync.Mutex
	var finalizeCounts [2]int
	var finalizedValues [2]accumulators.Count

	setup := func(i int, a *core.Aggregator) {
		err := core.RegisterEdge[accumulators.Count](a, "ecount", func(ctx agg.Context, e agg.LocalEdge) (accumulators.Count, error) {
			return accumulators.Count(1), nil
		}, func(ctx agg.Context, value accumulators.Count) error {
			mu.Lock()
			finalizeCounts[i]++
			finalizedValues[i] = value
			mu.Unlock()
			return nil
		})
		require.NoError(t, err)
		require.NoError(t, a.AggregatePeriodic("ecount", 5))
	}

	ctx := context.Background()
	c, err := aggtest.RunCluster(ctx, 2, []agg.Graph{g0, g1}, core.AggregatorOptions{NumCPUs: 2}, setup)
	require.NoError(t, err)
	defer c.Close(ctx)

	// The key first fires 5s after Start, so every clock is moved there.
	// Each process then polls once and hands the returned key to every
	// cpu, as TickAsynchronous requires of its caller.
	for _, clock := range c.Clocks {
		clock.Advance(5)
	}
	const ncpus = 2
	var wg sync.WaitGroup
	for _, node := range c.Nodes {
		key, ready := node.Aggregator.TickAsynchronous()
		require.True(t, ready)
		require.Equal(t, "ecount", key)
		for cpu := 0; cpu < ncpus; cpu++ {
			wg.Add(1)
			go func(node *cluster.Node, cpu int) {
				defer wg.Done()
				require.NoError(t, node.Aggregator.TickAsynchronousCompute(ctx, cpu, key))
			}(node, cpu)
		}
	}
	wg.Wait()

	// The merge and finalize phases finish on the transport's handler
	// goroutines, after the compute calls above have returned.
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return finalizeCounts[0] >= 1 && finalizeCounts[1] >= 1
	}, 5*time.Second, 10*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, 1, finalizeCounts[0])
	require.Equal(t, 1, finalizeCounts[1])
	require.Equal(t, accumulators.Count(7), finalizedValues[0])
	require.Equal(t, accumulators.Count(7), finalizedValues[1])
}

func TestPeriodLowerBoundOverFiveSeconds(t *testing.T) {
	g0 := graph.NewMemory()
	g0.AddVertex(0, nil)
	g1 := graph.NewMemory()
	g1.AddVertex(1, nil)

	var mu sync.Mutex
	var fireTimes []time.Time

	setup := func(i int, a *core.Aggregator) {
		err := core.RegisterVertex[accumulators.Count](a, "c", func(ctx agg.Context, v agg.LocalVertex) (accumulators.Count, error) {
			return accumulators.Count(1), nil
		}, func(ctx agg.Context, value accumulators.Count) error {
			if i == 0 {
				mu.Lock()
				fireTimes = append(fireTimes, time.Now())
				mu.Unlock()
			}
			return nil
		})
		require.NoError(t, err)
		require.NoError(t, a.AggregatePeriodic("c", 1.0))
	}

	ctx := context.Background()
	c, err := aggtest.RunCluster(ctx, 2, []agg.Graph{g0, g1}, core.AggregatorOptions{NumCPUs: 1}, setup)
	require.NoError(t, err)
	defer c.Close(ctx)

	// The cluster's clocks are aggtest.ManualClocks, so wall-clock sleeping
	// alone would never advance them; each tick's real 100ms sleep is
	// mirrored onto every process's clock to simulate 5 seconds of
	// elapsed time across 50 ticks.
	const tickInterval = 100 * time.Millisecond
	const ticks = 50
	for tick := 0; tick < ticks; tick++ {
		for _, clock := range c.Clocks {
			clock.Advance(tickInterval.Seconds())
		}
		var wg sync.WaitGroup
		for _, node := range c.Nodes {
			wg.Add(1)
			go func(node *cluster.Node) {
				defer wg.Done()
				require.NoError(t, node.Aggregator.TickSynchronous(ctx))
			}(node)
		}
		wg.Wait()
		time.Sleep(tickInterval)
	}

	mu.Lock()
	defer mu.Unlock()
	require.GreaterOrEqual(t, len(fireTimes), 4)
	require.LessOrEqual(t, len(fireTimes), 5)
	for i := 1; i < len(fireTimes); i++ {
		require.GreaterOrEqual(t, fireTimes[i].Sub(fireTimes[i-1]), 900*time.Millisecond)
	}
}

func TestPeriodZeroFiresEveryTick(t *testing.T) {
	g0 := graph.NewMemory()
	g0.AddVertex(0, nil)
	g1 := graph.NewMemory()
	g1.AddVertex(1, nil)

	var mu sync.Mutex
	var fireCount int

	setup := func(i int, a *core.Aggregator) {
		err := core.RegisterVertex[accumulators.Count](a, "c", func(ctx agg.Context, v agg.LocalVertex) (accumulators.Count, error) {
			return accumulators.Count(1), nil
		}, func(ctx agg.Context, value accumulators.Count) error {
			if i == 0 {
				mu.Lock()
				fireCount++
				mu.Unlock()
			}
			return nil
		})
		require.NoError(t, err)
		require.NoError(t, a.AggregatePeriodic("c", 0.0))
	}

	ctx := context.Background()
	c, err := aggtest.RunCluster(ctx, 2, []agg.Graph{g0, g1}, core.AggregatorOptions{NumCPUs: 1}, setup)
	require.NoError(t, err)
	defer c.Close(ctx)

	for tick := 0; tick < 3; tick++ {
		var wg sync.WaitGroup
		for _, node := range c.Nodes {
			wg.Add(1)
			go func(node *cluster.Node) {
				defer wg.Done()
				require.NoError(t, node.Aggregator.TickSynchronous(ctx))
			}(node)
		}
		wg.Wait()

		mu.Lock()
		require.Equal(t, tick+1, fireCount)
		mu.Unlock()
	}
}
