package core

import (
	"context"
	"fmt"
	"runtime"
	"sync"

	uuid "github.com/gofrs/uuid"

	agg "github.com/go-aggregator/aggregator"
	aggerrors "github.com/go-aggregator/aggregator/errors"
	"github.com/go-aggregator/aggregator/logging"
)

// leaderProcess is the distinguished process that drives gather/broadcast
// rounds and owns the distributed completion counters. It is always
// process 0, matching GraphLab's hardcoded root throughout
// distributed_aggregator.hpp.
const leaderProcess = 0

// AggregatorOptions configures an Aggregator's use of local resources. It
// has no file, CLI flag or environment variable backing: per spec.md's
// Non-goals, configuration is solely the embedding engine's responsibility,
// delivered as plain struct fields the way the teacher's NodeOptions and
// CoordinatorOptions are.
type AggregatorOptions struct {
	// NumCPUs bounds the concurrency of a single process's local reduction
	// and is the stride length used by the asynchronous executor. Zero
	// means use runtime.NumCPU().
	NumCPUs int
}

func (o AggregatorOptions) effectiveCPUs() int {
	if o.NumCPUs > 0 {
		return o.NumCPUs
	}
	return runtime.NumCPU()
}

// Aggregator is the distributed periodic aggregator. One instance runs per
// process in the cluster; every process's Aggregator must be constructed
// with the same set of RegisterVertex/RegisterEdge calls in order for key
// lookups to resolve identically cluster-wide.
type Aggregator struct {
	transport agg.Transport
	graph     agg.Graph
	clock     agg.Clock
	opts      AggregatorOptions

	registry *registry
	periods  *periodTable
	sched    *schedule

	startTime float64
	runID     uuid.UUID

	asyncMu     sync.Mutex
	asyncStates map[string]*asyncKeyState
}

// NewAggregator constructs an Aggregator bound to the given transport and
// graph collaborators and registers its asynchronous RPC handlers on the
// transport. RegisterVertex/RegisterEdge calls may follow; Start arms the
// periodic schedule from whatever has been registered by the time it is
// called.
func NewAggregator(transport agg.Transport, graph agg.Graph, clock agg.Clock, opts AggregatorOptions) *Aggregator {
	a := &Aggregator{
		transport:   transport,
		graph:       graph,
		clock:       clock,
		opts:        opts,
		registry:    newRegistry(),
		periods:     newPeriodTable(),
		sched:       newSchedule(),
		asyncStates: make(map[string]*asyncKeyState),
	}
	a.registerRPCHandlers()
	return a
}

// execContext is the concrete agg.Context the Aggregator manufactures
// whenever it must call a user finalize function without an
// engine-supplied context, e.g. from an RPC handler.
type execContext struct {
	context.Context
	processID int
}

func (c execContext) ProcessID() int { return c.processID }

func (a *Aggregator) newContext(parent context.Context) agg.Context {
	if parent == nil {
		parent = context.Background()
	}
	return execContext{Context: parent, processID: a.transport.ProcessID()}
}

// AggregatePeriodic arms key to fire every seconds wall-clock time once
// Start is called. It is a user-input error to name an unregistered key or
// a negative period; per spec.md, no exact period is guaranteed.
func (a *Aggregator) AggregatePeriodic(key string, seconds float64) error {
	if seconds < 0 {
		return aggerrors.NegativePeriodError{Seconds: seconds}
	}
	if _, ok := a.registry.get(key); !ok {
		return aggerrors.UnknownAggregatorError{Key: key}
	}
	a.periods.set(key, seconds)
	return nil
}

// AggregateAllPeriodic arms every currently registered key to fire every
// seconds wall-clock time.
func (a *Aggregator) AggregateAllPeriodic(seconds float64) error {
	if seconds < 0 {
		return aggerrors.NegativePeriodError{Seconds: seconds}
	}
	for _, key := range a.registry.keys() {
		a.periods.set(key, seconds)
	}
	return nil
}

// ListPeriodicKeys returns a snapshot of the set of keys currently armed
// for periodic aggregation. The returned slice is not kept in sync with
// subsequent AggregatePeriodic calls.
func (a *Aggregator) ListPeriodicKeys() []string {
	return a.periods.keys()
}

// Start barriers the cluster, clears and re-arms the schedule from the
// current period table, and arms per-key asynchronous completion state.
// It must be called with an identical period table on every process.
func (a *Aggregator) Start(ctx context.Context) error {
	if err := a.transport.Barrier(ctx); err != nil {
		return err
	}
	a.sched.reset()
	a.startTime = a.clock.ApproxTimeSeconds()

	// A fresh run id is minted on every Start, rather than once at
	// construction, so log lines from successive Stop/Start cycles of the
	// same Aggregator (which per spec.md share no state) can still be told
	// apart. Grounded on the teacher's per-partition uuid.NewV4() (core/
	// partition.go), repurposed here to identify a run instead of a
	// partition.
	runID, err := uuid.NewV4()
	if err != nil {
		return fmt.Errorf("generating run id: %w", err)
	}
	a.runID = runID

	a.asyncMu.Lock()
	a.asyncStates = make(map[string]*asyncKeyState)
	a.asyncMu.Unlock()

	for _, key := range a.periods.keys() {
		seconds, _ := a.periods.get(key)
		a.sched.push(key, a.startTime+seconds)
		a.armAsyncState(key)
	}
	_ = a.transport.Log(ctx, logging.InfoLevel, a.procLabel(), fmt.Sprintf("aggregator started, run %s", a.runID))
	return a.transport.Barrier(ctx)
}

// Stop clears the schedule, every accumulator and every armed asynchronous
// completion state. Per spec.md's Non-goals, no state survives a
// Stop/Start cycle: a subsequent Start begins every periodic key's clock
// over from the new start time.
func (a *Aggregator) Stop(ctx context.Context) error {
	a.sched.reset()
	for _, key := range a.registry.keys() {
		if spec, ok := a.registry.get(key); ok {
			spec.clear()
		}
	}
	a.asyncMu.Lock()
	a.asyncStates = make(map[string]*asyncKeyState)
	a.asyncMu.Unlock()
	_ = a.transport.Log(ctx, logging.InfoLevel, a.procLabel(), fmt.Sprintf("aggregator stopped, run %s", a.runID))
	return a.transport.Barrier(ctx)
}

func (a *Aggregator) procLabel() string {
	return fmt.Sprintf("process[%d]", a.transport.ProcessID())
}
