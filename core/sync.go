package core

import (
	"context"
	"fmt"
	"sync"

	multierror "github.com/hashicorp/go-multierror"
	"golang.org/x/sync/semaphore"

	agg "github.com/go-aggregator/aggregator"
	"github.com/go-aggregator/aggregator/internal/util"
	"github.com/go-aggregator/aggregator/logging"
)

// localReductionBlockSize is the chunk of local vertices each bounded
// goroutine reduces before merging into the per-process root. Grounded on
// the teacher's shuffle-bucket-style batching in core/coordinator.go's
// computeShuffleBuckets, here sizing intra-process parallel work instead
// of partition assignment.
const localReductionBlockSize = 256

// aggregateLocal performs the per-process half of a reduction round: it
// divides this process's local vertices into fixed-size blocks, reduces
// each block on its own goroutine bounded by a weighted semaphore sized to
// opts.effectiveCPUs, and merges every block into a single per-process
// accumulator. Grounded on GraphLab's aggregate_now OpenMP parallel-for,
// trading its per-thread-then-critical-section merge for one mergeFrom
// call per completed block.
func (a *Aggregator) aggregateLocal(ctx agg.Context, spec accumulatorOps) (accumulatorOps, error) {
	n := a.graph.NumLocalVertices()
	root := spec.cloneEmpty()
	if n == 0 {
		return root, nil
	}

	sem := semaphore.NewWeighted(int64(a.opts.effectiveCPUs()))
	var mu sync.Mutex
	var merr *multierror.Error
	var wg sync.WaitGroup

	for start := 0; start < n; start += localReductionBlockSize {
		end := start + localReductionBlockSize
		if end > n {
			end = n
		}
		if err := sem.Acquire(ctx, 1); err != nil {
			mu.Lock()
			merr = multierror.Append(merr, err)
			mu.Unlock()
			break
		}
		wg.Add(1)
		go func(start, end int) {
			defer wg.Done()
			defer sem.Release(1)
			block := spec.cloneEmpty()
			if err := a.absorbRange(ctx, block, start, end); err != nil {
				mu.Lock()
				merr = multierror.Append(merr, err)
				mu.Unlock()
				return
			}
			mu.Lock()
			if err := root.mergeFrom(block); err != nil {
				merr = multierror.Append(merr, err)
			}
			mu.Unlock()
		}(start, end)
	}
	wg.Wait()

	if err := merr.ErrorOrNil(); err != nil {
		_ = a.transport.Log(ctx, logging.ErrorLevel, fmt.Sprintf("process[%d]", ctx.ProcessID()),
			fmt.Sprintf("local reduction failed across %d block(s):\n%s", len(merr.Errors), util.FormatMultiError(merr.Errors)))
		return nil, err
	}
	return root, nil
}

// absorbRange feeds local vertices [start, end) (or their in-edges, for an
// edge-domain accumulator) into block.
func (a *Aggregator) absorbRange(ctx agg.Context, block accumulatorOps, start, end int) error {
	for i := start; i < end; i++ {
		v := a.graph.LocalVertex(i)
		switch block.domain() {
		case agg.VertexDomain:
			if v.Owner() != ctx.ProcessID() {
				continue
			}
			if err := block.absorbVertex(ctx, v); err != nil {
				return err
			}
		case agg.EdgeDomain:
			for _, e := range v.InEdges() {
				if err := block.absorbEdge(ctx, e); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// AggregateNow runs key's reduction to completion, synchronously, across
// the whole cluster: every process reduces its local share, the leader
// gathers and merges every process's partial result, finalize is called
// identically on every process against the broadcast result, and the
// accumulator is cleared for the next round. Every process must call
// AggregateNow for the same key at the same logical point, since Gather
// and Broadcast are collective operations.
func (a *Aggregator) AggregateNow(ctx context.Context, key string) error {
	spec := a.registry.mustGet(key)
	spec.clear()
	execCtx := a.newContext(ctx)

	local, err := a.aggregateLocal(execCtx, spec)
	if err != nil {
		return err
	}
	localBlob, err := local.snapshot()
	if err != nil {
		return err
	}

	gathered, err := a.transport.Gather(ctx, localBlob, leaderProcess)
	if err != nil {
		return err
	}

	isLeader := a.transport.ProcessID() == leaderProcess
	var finalBlob []byte
	if isLeader {
		root := spec.cloneEmpty()
		if err := root.mergeFrom(local); err != nil {
			return err
		}
		for i, blob := range gathered {
			if i == leaderProcess {
				continue
			}
			peer := spec.cloneEmpty()
			if err := peer.load(blob); err != nil {
				return err
			}
			if err := root.mergeFrom(peer); err != nil {
				return err
			}
		}
		finalBlob, err = root.snapshot()
		if err != nil {
			return err
		}
	}

	broadcastBlob, err := a.transport.Broadcast(ctx, finalBlob, isLeader)
	if err != nil {
		return err
	}

	final := spec.cloneEmpty()
	if err := final.load(broadcastBlob); err != nil {
		return err
	}
	if err := final.finalize(execCtx); err != nil {
		return err
	}
	spec.clear()
	return nil
}

// TickSynchronous advances the cluster's lock-step schedule by one logical
// tick: the leader's wall-clock reading is broadcast once at the start of
// the tick, then every key whose fire time has passed is aggregated via
// AggregateNow, in schedule order, popping each and re-pushing it with a
// freshly read next fire time. The next fire time is read from the clock
// and broadcast from the leader on every reschedule (not just once per
// tick), so that floating-point clock drift between processes can never
// desynchronize the schedule, resolving the consistency question left
// open about broadcasting curtime only once.
//
// A key popped during this tick is held in firedThisTick rather than
// pushed straight back onto the live schedule: curtime does not advance
// for the duration of one TickSynchronous call, so a period of zero would
// otherwise requeue with a fire time still <= curtime and be popped again
// by this same loop, firing a single tick an unbounded number of times.
// Rescheduled entries are only pushed back once this tick's popReady loop
// is done, so the earliest a requeued key can fire again is the next
// TickSynchronous call.
func (a *Aggregator) TickSynchronous(ctx context.Context) error {
	isLeader := a.transport.ProcessID() == leaderProcess
	curtimeBlob, err := a.transport.Broadcast(ctx, encodeFloat64(a.clock.ApproxTimeSeconds()), isLeader)
	if err != nil {
		return err
	}
	curtime := decodeFloat64(curtimeBlob)

	var firedThisTick []scheduleEntry
	for {
		entry, ok := a.sched.popReady(curtime)
		if !ok {
			break
		}
		if err := a.AggregateNow(ctx, entry.key); err != nil {
			return err
		}
		period, _ := a.periods.get(entry.key)
		nextBlob, err := a.transport.Broadcast(ctx, encodeFloat64(a.clock.ApproxTimeSeconds()+period), isLeader)
		if err != nil {
			return err
		}
		firedThisTick = append(firedThisTick, scheduleEntry{key: entry.key, fireAt: decodeFloat64(nextBlob)})
	}
	for _, entry := range firedThisTick {
		a.sched.push(entry.key, entry.fireAt)
	}
	return nil
}
