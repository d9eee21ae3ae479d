package core

import (
	"context"
	"sync"
	"sync/atomic"

	agg "github.com/go-aggregator/aggregator"
	aggerrors "github.com/go-aggregator/aggregator/errors"
)

// asyncKeyState is the per-key bookkeeping the asynchronous executor arms
// at Start and retires at Stop. distributedCountdown is deliberately
// reused across the merge phase and the finalize-ack phase (reset between
// them) rather than carrying two separate counter fields, mirroring
// GraphLab's reuse of a single distributed_count_down per key.
type asyncKeyState struct {
	mu sync.Mutex

	perThread []accumulatorOps
	root      accumulatorOps

	localCountdown       int64
	distributedCountdown int64

	period float64
}

// armAsyncState (re)arms key's asynchronous completion state: one
// accumulator per logical CPU plus a root accumulator that receives every
// thread's, then every process's, contribution in turn.
func (a *Aggregator) armAsyncState(key string) {
	spec := a.registry.mustGet(key)
	ncpus := a.opts.effectiveCPUs()
	perThread := make([]accumulatorOps, ncpus)
	for i := range perThread {
		perThread[i] = spec.cloneEmpty()
	}
	period, _ := a.periods.get(key)
	st := &asyncKeyState{
		perThread:            perThread,
		root:                 spec.cloneEmpty(),
		localCountdown:       int64(ncpus),
		distributedCountdown: int64(a.transport.NumProcesses()),
		period:               period,
	}
	a.asyncMu.Lock()
	a.asyncStates[key] = st
	a.asyncMu.Unlock()
}

func (a *Aggregator) asyncState(key string) (*asyncKeyState, bool) {
	a.asyncMu.Lock()
	defer a.asyncMu.Unlock()
	st, ok := a.asyncStates[key]
	return st, ok
}

// TickAsynchronous polls the local schedule for a key whose fire time has
// passed, without blocking: if the schedule is busy (another call is
// already popping it) or nothing is ready, it reports nothing ready rather
// than wait, matching GraphLab's try_lock-and-skip tick_asynchronous. The
// caller (the embedding engine) is expected to dispatch the returned key to
// every local worker via TickAsynchronousCompute.
func (a *Aggregator) TickAsynchronous() (key string, ready bool) {
	curtime := a.clock.ApproxTimeSeconds()
	entry, ok := a.sched.tryPopReady(curtime)
	if !ok {
		return "", false
	}
	return entry.key, true
}

// TickAsynchronousCompute performs cpuID's strided share of key's local
// reduction (vertices i = cpuID, cpuID+ncpus, cpuID+2*ncpus, ...), merges
// the result into the key's shared root accumulator, and on the last
// thread to finish, kicks off the distributed merge phase: the leader
// folds its root directly into the cluster-wide completion count, every
// other process ships a snapshot of its root to the leader via RemoteCall
// and clears it locally.
func (a *Aggregator) TickAsynchronousCompute(ctx context.Context, cpuID int, key string) error {
	ncpus := a.opts.effectiveCPUs()
	if cpuID < 0 || cpuID >= ncpus {
		panic(aggerrors.CPUOutOfRangeError{CPUID: cpuID, NCPUs: ncpus})
	}
	st, ok := a.asyncState(key)
	if !ok {
		panic(aggerrors.AsyncStateMissingError{Key: key})
	}
	spec := a.registry.mustGet(key)
	execCtx := a.newContext(ctx)

	thread := st.perThread[cpuID]
	n := a.graph.NumLocalVertices()
	for i := cpuID; i < n; i += ncpus {
		v := a.graph.LocalVertex(i)
		switch spec.domain() {
		case agg.VertexDomain:
			if v.Owner() != execCtx.ProcessID() {
				continue
			}
			if err := thread.absorbVertex(execCtx, v); err != nil {
				return err
			}
		case agg.EdgeDomain:
			for _, e := range v.InEdges() {
				if err := thread.absorbEdge(execCtx, e); err != nil {
					return err
				}
			}
		}
	}

	st.mu.Lock()
	mergeErr := st.root.mergeFrom(thread)
	st.mu.Unlock()
	if mergeErr != nil {
		return mergeErr
	}

	remaining := atomic.AddInt64(&st.localCountdown, -1)
	if remaining < 0 {
		panic(aggerrors.CountdownUnderflowError{Key: key})
	}
	if remaining != 0 {
		return nil
	}

	st.mu.Lock()
	for _, t := range st.perThread {
		t.clear()
	}
	st.mu.Unlock()
	atomic.StoreInt64(&st.localCountdown, int64(ncpus))

	if a.transport.ProcessID() == leaderProcess {
		return a.decrementDistributedCounter(ctx, key, st)
	}

	st.mu.Lock()
	blob, err := st.root.snapshot()
	st.root.clear()
	st.mu.Unlock()
	if err != nil {
		return err
	}
	return a.transport.RemoteCall(ctx, leaderProcess, methodKeyMerge, encodeMsg(keyMergeMsg{Key: key, Blob: blob}))
}

// handleKeyMerge is the leader-side handler for methodKeyMerge: it folds a
// non-leader process's reported local root into the leader's root and
// advances the merge-phase completion count.
func (a *Aggregator) handleKeyMerge(ctx context.Context, from int, payload []byte) {
	var msg keyMergeMsg
	if err := decodeMsg(payload, &msg); err != nil {
		panic(err)
	}
	st, ok := a.asyncState(msg.Key)
	if !ok {
		panic(aggerrors.AsyncStateMissingError{Key: msg.Key})
	}
	spec := a.registry.mustGet(msg.Key)
	peer := spec.cloneEmpty()
	if err := peer.load(msg.Blob); err != nil {
		panic(aggerrors.TypeMismatchError{Key: msg.Key, Err: err})
	}
	st.mu.Lock()
	mergeErr := st.root.mergeFrom(peer)
	st.mu.Unlock()
	if mergeErr != nil {
		panic(mergeErr)
	}
	if err := a.decrementDistributedCounter(ctx, msg.Key, st); err != nil {
		panic(err)
	}
}

// decrementDistributedCounter is leader-only: it advances the merge-phase
// completion count and, on reaching zero, snapshots the fully-merged root,
// resets the SAME counter field to serve the finalize-ack phase, ships the
// snapshot to every non-leader process via methodPerformFinalize, and
// finalizes+clears its own copy locally.
func (a *Aggregator) decrementDistributedCounter(ctx context.Context, key string, st *asyncKeyState) error {
	remaining := atomic.AddInt64(&st.distributedCountdown, -1)
	if remaining < 0 {
		panic(aggerrors.CountdownUnderflowError{Key: key})
	}
	if remaining != 0 {
		return nil
	}

	st.mu.Lock()
	blob, err := st.root.snapshot()
	st.mu.Unlock()
	if err != nil {
		return err
	}
	atomic.StoreInt64(&st.distributedCountdown, int64(a.transport.NumProcesses()))

	for proc := 0; proc < a.transport.NumProcesses(); proc++ {
		if proc == leaderProcess {
			continue
		}
		if err := a.transport.RemoteCall(ctx, proc, methodPerformFinalize, encodeMsg(performFinalizeMsg{Key: key, Blob: blob})); err != nil {
			return err
		}
	}

	spec := a.registry.mustGet(key)
	final := spec.cloneEmpty()
	if err := final.load(blob); err != nil {
		return err
	}
	if err := final.finalize(a.newContext(ctx)); err != nil {
		return err
	}
	st.mu.Lock()
	st.root.clear()
	st.mu.Unlock()
	return a.decrementFinalizeCounter(ctx, key, st)
}

// handlePerformFinalize is the non-leader handler for methodPerformFinalize:
// it finalizes the leader's reported cluster-wide value locally and
// acknowledges back via methodDecrementFinalize.
func (a *Aggregator) handlePerformFinalize(ctx context.Context, from int, payload []byte) {
	var msg performFinalizeMsg
	if err := decodeMsg(payload, &msg); err != nil {
		panic(err)
	}
	spec := a.registry.mustGet(msg.Key)
	final := spec.cloneEmpty()
	if err := final.load(msg.Blob); err != nil {
		panic(aggerrors.TypeMismatchError{Key: msg.Key, Err: err})
	}
	if err := final.finalize(a.newContext(ctx)); err != nil {
		panic(err)
	}
	if err := a.transport.RemoteCall(ctx, leaderProcess, methodDecrementFinalize, encodeMsg(decrementFinalizeMsg{Key: msg.Key})); err != nil {
		panic(err)
	}
}

// handleDecrementFinalize is the leader-side handler for
// methodDecrementFinalize, advancing the finalize-ack phase.
func (a *Aggregator) handleDecrementFinalize(ctx context.Context, from int, payload []byte) {
	var msg decrementFinalizeMsg
	if err := decodeMsg(payload, &msg); err != nil {
		panic(err)
	}
	st, ok := a.asyncState(msg.Key)
	if !ok {
		panic(aggerrors.AsyncStateMissingError{Key: msg.Key})
	}
	if err := a.decrementFinalizeCounter(ctx, msg.Key, st); err != nil {
		panic(err)
	}
}

// decrementFinalizeCounter is leader-only and reuses distributedCountdown
// a second time: on reaching zero, every process has finalized this
// round, so the leader computes the next fire time, schedules it locally,
// and pushes it to every non-leader process via methodScheduleKey.
func (a *Aggregator) decrementFinalizeCounter(ctx context.Context, key string, st *asyncKeyState) error {
	remaining := atomic.AddInt64(&st.distributedCountdown, -1)
	if remaining < 0 {
		panic(aggerrors.CountdownUnderflowError{Key: key})
	}
	if remaining != 0 {
		return nil
	}
	atomic.StoreInt64(&st.distributedCountdown, int64(a.transport.NumProcesses()))

	nextTime := a.clock.ApproxTimeSeconds() + st.period
	a.sched.push(key, nextTime)
	for proc := 0; proc < a.transport.NumProcesses(); proc++ {
		if proc == leaderProcess {
			continue
		}
		if err := a.transport.RemoteCall(ctx, proc, methodScheduleKey, encodeMsg(scheduleKeyMsg{Key: key, FireAt: nextTime})); err != nil {
			return err
		}
	}
	return nil
}

// handleScheduleKey is the non-leader handler for methodScheduleKey: it
// arms the next fire time the leader computed, keeping every process's
// schedule in agreement.
func (a *Aggregator) handleScheduleKey(ctx context.Context, from int, payload []byte) {
	var msg scheduleKeyMsg
	if err := decodeMsg(payload, &msg); err != nil {
		panic(err)
	}
	a.sched.push(msg.Key, msg.FireAt)
}

// registerRPCHandlers installs the asynchronous executor's four
// completion-protocol handlers on the transport. Called once from
// NewAggregator.
func (a *Aggregator) registerRPCHandlers() {
	a.transport.RegisterHandler(methodKeyMerge, a.handleKeyMerge)
	a.transport.RegisterHandler(methodPerformFinalize, a.handlePerformFinalize)
	a.transport.RegisterHandler(methodDecrementFinalize, a.handleDecrementFinalize)
	a.transport.RegisterHandler(methodScheduleKey, a.handleScheduleKey)
}
