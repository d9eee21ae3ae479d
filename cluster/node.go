package cluster

import (
	"context"

	agg "github.com/go-aggregator/aggregator"
	"github.com/go-aggregator/aggregator/core"
)

// Node bundles a gRPC Transport with the Aggregator bound to it, giving an
// embedding engine a single object to start and stop per process. It is
// grounded on the teacher's Node interface (core/node.go), trimmed to the
// aggregator's own Start/Stop lifecycle rather than a dataframe job's
// Start(DataFrame)/Run.
type Node struct {
	Transport  *Transport
	Aggregator *core.Aggregator
}

// NewNode constructs a Transport from opts and an Aggregator bound to it.
// Every RegisterVertex/RegisterEdge and AggregatePeriodic/
// AggregateAllPeriodic call against the returned Aggregator must happen
// before Start, and must be identical across every process in the
// cluster.
func NewNode(opts TransportOptions, graph agg.Graph, clock agg.Clock, aggOpts core.AggregatorOptions) (*Node, error) {
	t, err := NewTransport(opts)
	if err != nil {
		return nil, err
	}
	a := core.NewAggregator(t, graph, clock, aggOpts)
	return &Node{Transport: t, Aggregator: a}, nil
}

// Start arms this process's share of the Aggregator's periodic schedule.
func (n *Node) Start(ctx context.Context) error {
	return n.Aggregator.Start(ctx)
}

// Stop clears this process's schedule and accumulator state.
func (n *Node) Stop(ctx context.Context) error {
	return n.Aggregator.Stop(ctx)
}

// Close tears down the underlying Transport. It is separate from Stop
// since an embedding engine may Stop and Start an Aggregator repeatedly
// within the lifetime of one Transport.
func (n *Node) Close() {
	n.Transport.Close()
}
