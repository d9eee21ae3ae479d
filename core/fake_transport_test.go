package core

import (
	"context"
	"sync"

	agg "github.com/go-aggregator/aggregator"
	"github.com/go-aggregator/aggregator/logging"
)

// fakeHub coordinates a set of in-process fakeTransports simulating a
// cluster within a single test binary, with no network I/O. Its
// round-synchronization shape mirrors cluster.Transport's (one round of
// state at a time, released by closing a channel once every process has
// arrived), just scoped to a test-only in-memory hub instead of gRPC.
type fakeHub struct {
	mu   sync.Mutex
	n    int
	fail map[int]bool // processes whose RemoteCall silently drops, simulating a lost message

	barrier   *fakeBarrierRound
	gather    *fakeGatherRound
	broadcast *fakeBroadcastRound

	handlers []map[string]agg.RemoteHandler
}

type fakeBarrierRound struct {
	count int
	ch    chan struct{}
}

type fakeGatherRound struct {
	vals   [][]byte
	count  int
	ch     chan struct{}
	result [][]byte
}

type fakeBroadcastRound struct {
	count int
	ch    chan struct{}
	value []byte
}

func newFakeHub(n int) *fakeHub {
	h := &fakeHub{n: n, handlers: make([]map[string]agg.RemoteHandler, n)}
	for i := range h.handlers {
		h.handlers[i] = make(map[string]agg.RemoteHandler)
	}
	return h
}

func (h *fakeHub) transport(id int) *fakeTransport {
	return &fakeTransport{hub: h, id: id}
}

type fakeTransport struct {
	hub *fakeHub
	id  int
}

var _ agg.Transport = (*fakeTransport)(nil)

func (t *fakeTransport) ProcessID() int    { return t.id }
func (t *fakeTransport) NumProcesses() int { return t.hub.n }

func (t *fakeTransport) RegisterHandler(method string, handler agg.RemoteHandler) {
	t.hub.mu.Lock()
	t.hub.handlers[t.id][method] = handler
	t.hub.mu.Unlock()
}

// Log prints directly rather than shipping to a leader: the fake hub is a
// single test binary with no wire to ship a log message over.
func (t *fakeTransport) Log(ctx context.Context, level int, source, message string) error {
	logging.Log(level, source, message)
	return nil
}

func (t *fakeTransport) RemoteCall(ctx context.Context, target int, method string, payload []byte) error {
	t.hub.mu.Lock()
	if t.hub.fail[target] {
		t.hub.mu.Unlock()
		return nil
	}
	h, ok := t.hub.handlers[target][method]
	t.hub.mu.Unlock()
	if !ok {
		return nil
	}
	h(ctx, t.id, payload)
	return nil
}

func (t *fakeTransport) Barrier(ctx context.Context) error {
	h := t.hub
	h.mu.Lock()
	if h.barrier == nil {
		h.barrier = &fakeBarrierRound{ch: make(chan struct{})}
	}
	st := h.barrier
	st.count++
	if st.count == h.n {
		h.barrier = nil
		close(st.ch)
		h.mu.Unlock()
		return nil
	}
	h.mu.Unlock()
	<-st.ch
	return nil
}

func (t *fakeTransport) Gather(ctx context.Context, value []byte, root int) ([][]byte, error) {
	h := t.hub
	h.mu.Lock()
	if h.gather == nil {
		h.gather = &fakeGatherRound{vals: make([][]byte, h.n), ch: make(chan struct{})}
	}
	st := h.gather
	st.vals[t.id] = value
	st.count++
	if st.count == h.n {
		st.result = st.vals
		h.gather = nil
		close(st.ch)
		h.mu.Unlock()
		return st.result, nil
	}
	h.mu.Unlock()
	<-st.ch
	return st.result, nil
}

func (t *fakeTransport) Broadcast(ctx context.Context, value []byte, isSender bool) ([]byte, error) {
	h := t.hub
	h.mu.Lock()
	if h.broadcast == nil {
		h.broadcast = &fakeBroadcastRound{ch: make(chan struct{})}
	}
	st := h.broadcast
	if isSender {
		st.value = value
	}
	st.count++
	if st.count == h.n {
		result := st.value
		h.broadcast = nil
		close(st.ch)
		h.mu.Unlock()
		return result, nil
	}
	h.mu.Unlock()
	<-st.ch
	return st.value, nil
}
