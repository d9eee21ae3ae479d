package core

import (
	"container/heap"
	"sync"
)

// scheduleEntry is a single pending fire: key should next run at fireAt,
// an ApproxTimeSeconds()-scaled timestamp.
type scheduleEntry struct {
	key    string
	fireAt float64
}

// entryHeap is a container/heap min-heap ordered on fireAt. Unlike
// GraphLab's mutable_queue (which orders on negated priority to turn a
// max-heap into a min-heap), Go's container/heap takes an arbitrary Less,
// so the negation is unnecessary here; it is a mechanical consequence of
// the standard library's heap shape, not a design choice.
type entryHeap []scheduleEntry

func (h entryHeap) Len() int            { return len(h) }
func (h entryHeap) Less(i, j int) bool   { return h[i].fireAt < h[j].fireAt }
func (h entryHeap) Swap(i, j int)        { h[i], h[j] = h[j], h[i] }
func (h *entryHeap) Push(x interface{})  { *h = append(*h, x.(scheduleEntry)) }
func (h *entryHeap) Pop() interface{} {
	old := *h
	n := len(old)
	entry := old[n-1]
	*h = old[:n-1]
	return entry
}

// schedule is the cluster-local min-priority queue of pending periodic
// fires. Every process maintains an identical schedule, advanced in
// lock-step by TickSynchronous or independently polled by
// TickAsynchronous; nothing here is itself replicated over the wire.
type schedule struct {
	mu sync.Mutex
	h  entryHeap
}

func newSchedule() *schedule {
	s := &schedule{}
	heap.Init(&s.h)
	return s
}

func (s *schedule) push(key string, fireAt float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	heap.Push(&s.h, scheduleEntry{key: key, fireAt: fireAt})
}

// reset clears every pending entry, used by Stop and by Start before
// re-arming the periodic set.
func (s *schedule) reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.h = entryHeap{}
}

// popReady blocks for the schedule's lock and, if the earliest entry's
// fireAt is at or before curtime, pops and returns it. The comparison is
// inclusive of curtime itself, matching the fire-time <= curtime rule a
// period of zero relies on to fire every tick. Used by TickSynchronous,
// which already holds exclusive lock-step control of the cluster and so
// never contends for this lock.
func (s *schedule) popReady(curtime float64) (scheduleEntry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.h) == 0 || s.h[0].fireAt > curtime {
		return scheduleEntry{}, false
	}
	return heap.Pop(&s.h).(scheduleEntry), true
}

// tryPopReady is popReady's non-blocking counterpart, used by
// TickAsynchronous so that a busy schedule lock (another thread mid-tick)
// causes this poll to report nothing ready rather than block, matching
// GraphLab's tick_asynchronous try_lock-then-skip behavior.
func (s *schedule) tryPopReady(curtime float64) (scheduleEntry, bool) {
	if !s.mu.TryLock() {
		return scheduleEntry{}, false
	}
	defer s.mu.Unlock()
	if len(s.h) == 0 || s.h[0].fireAt > curtime {
		return scheduleEntry{}, false
	}
	return heap.Pop(&s.h).(scheduleEntry), true
}
