// Package aggtest provides a localhost test harness for running a small
// cluster of Nodes within a single test binary, plus a deterministic
// clock for scenarios that need explicit control over scheduling. It is
// grounded on the teacher's testing.LocalRunFrame (testing/test_runner.go):
// the same panic-recovery-as-error and goroutine-per-node startup shape,
// adapted from a coordinator/worker dataframe job to a set of symmetric
// aggregator peers.
package aggtest

import (
	"context"
	"fmt"
	"time"

	agg "github.com/go-aggregator/aggregator"
	"github.com/go-aggregator/aggregator/cluster"
	"github.com/go-aggregator/aggregator/core"
)

// basePort is the first localhost port RunCluster dials its peers on.
const basePort = 17600

// ManualClock is an aggregator.Clock whose reading is advanced explicitly
// by the test, so scenarios can control scheduling deterministically
// instead of depending on wall-clock timing.
type ManualClock struct {
	seconds float64
}

// NewManualClock returns a ManualClock starting at seconds.
func NewManualClock(seconds float64) *ManualClock {
	return &ManualClock{seconds: seconds}
}

// ApproxTimeSeconds implements aggregator.Clock.
func (c *ManualClock) ApproxTimeSeconds() float64 { return c.seconds }

// Advance moves this clock forward by delta seconds.
func (c *ManualClock) Advance(delta float64) { c.seconds += delta }

// Cluster is a localhost-only set of Nodes, one ManualClock per process.
type Cluster struct {
	Nodes  []*cluster.Node
	Clocks []*ManualClock
}

// RunCluster constructs numProcesses Nodes dialed to each other over
// localhost, one bound to graphs[i] and a private ManualClock. setup is
// called against every Node's Aggregator, before any Node starts, to
// register accumulators and arm periodic keys identically across the
// cluster. Every Node is started concurrently, since Start's Barrier call
// is a collective that every process must enter before any of them
// return.
func RunCluster(ctx context.Context, numProcesses int, graphs []agg.Graph, aggOpts core.AggregatorOptions, setup func(i int, a *core.Aggregator)) (c *Cluster, err error) {
	defer func() {
		if r := recover(); r != nil {
			if anErr, ok := r.(error); ok {
				err = anErr
			} else {
				err = fmt.Errorf("panic starting test cluster: %v", r)
			}
		}
	}()

	peers := make([]cluster.PeerAddr, numProcesses)
	for i := range peers {
		peers[i] = cluster.PeerAddr{Host: "127.0.0.1", Port: basePort + i}
	}

	c = &Cluster{Nodes: make([]*cluster.Node, numProcesses), Clocks: make([]*ManualClock, numProcesses)}
	for i := 0; i < numProcesses; i++ {
		clock := NewManualClock(0)
		node, err := cluster.NewNode(cluster.TransportOptions{ProcessID: i, Peers: peers, RPCTimeout: 5 * time.Second}, graphs[i], clock, aggOpts)
		if err != nil {
			return nil, err
		}
		setup(i, node.Aggregator)
		c.Nodes[i] = node
		c.Clocks[i] = clock
	}

	errCh := make(chan error, numProcesses)
	for _, node := range c.Nodes {
		go func(node *cluster.Node) {
			errCh <- node.Start(ctx)
		}(node)
	}
	for range c.Nodes {
		if startErr := <-errCh; startErr != nil {
			return nil, startErr
		}
	}
	return c, nil
}

// Close stops and tears down every Node in the cluster.
func (c *Cluster) Close(ctx context.Context) {
	for _, node := range c.Nodes {
		_ = node.Stop(ctx)
		node.Close()
	}
}
