package cluster

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"google.golang.org/grpc"

	agg "github.com/go-aggregator/aggregator"
	"github.com/go-aggregator/aggregator/internal/rpc"
	"github.com/go-aggregator/aggregator/internal/util"
	"github.com/go-aggregator/aggregator/logging"
)

// Transport is a gRPC-backed aggregator.Transport spanning a fixed set of
// peer processes dialed up front. It is grounded on the teacher's
// dial/serve split (core/util.go's dialWorker/dialWorkers, core/worker.go's
// mconnect/Start), generalized from a strict coordinator/worker topology to
// N symmetric peers, one of which (process 0) additionally acts as the
// aggregator's gather/broadcast root.
//
// Barrier, Gather and Broadcast are collective operations; this
// implementation assumes at most one such collective is outstanding across
// the cluster at a time, which holds for every caller in package core (the
// synchronous executor never overlaps collectives; the asynchronous
// executor never calls them at all).
type Transport struct {
	processID    int
	numProcesses int
	rpcTimeout   time.Duration

	server    *grpc.Server
	conns     []*grpc.ClientConn    // conns[processID] is nil; never dialed
	clients   []*rpc.TransportClient
	logClient *rpc.LogServiceClient // nil on the leader process, which owns the sink directly

	handlersMu sync.RWMutex
	handlers   map[string]agg.RemoteHandler

	mu             sync.Mutex
	barrierState   *barrierRound
	gatherState    *gatherRound
	broadcastState *broadcastRound
}

type barrierRound struct {
	count int
	ch    chan struct{}
}

type gatherRound struct {
	vals   [][]byte
	count  int
	ch     chan struct{}
	result [][]byte
}

type broadcastRound struct {
	count int
	ch    chan struct{}
	value []byte
}

// NewTransport starts a gRPC listener on this process's own peer address,
// dials every other peer, and returns an aggregator.Transport ready to be
// handed to core.NewAggregator. Dialing happens eagerly so that the first
// Barrier call does not pay connection setup latency mid-round.
func NewTransport(opts TransportOptions) (*Transport, error) {
	ensureDefaultTransportOptionsValues(&opts)
	if err := opts.validate(); err != nil {
		return nil, err
	}

	t := &Transport{
		processID:    opts.ProcessID,
		numProcesses: len(opts.Peers),
		rpcTimeout:   opts.RPCTimeout,
		conns:        make([]*grpc.ClientConn, len(opts.Peers)),
		clients:      make([]*rpc.TransportClient, len(opts.Peers)),
		handlers:     make(map[string]agg.RemoteHandler),
	}

	self := opts.Peers[opts.ProcessID]
	lis, err := net.Listen("tcp", self.connectionString())
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", self.connectionString(), err)
	}
	t.server = grpc.NewServer()
	rpc.RegisterTransportServer(t.server, &grpcServer{t: t})
	rpc.RegisterLogServiceServer(t.server, &logServer{})
	go func() {
		if err := t.server.Serve(lis); err != nil {
			t.Log(context.Background(), logging.ErrorLevel, fmt.Sprintf("process[%d]", t.processID), fmt.Sprintf("transport server stopped: %s", err))
		}
	}()

	for i, peer := range opts.Peers {
		if i == t.processID {
			continue
		}
		conn, err := grpc.Dial(peer.connectionString(), grpc.WithInsecure(), grpc.WithBlock(), grpc.WithTimeout(t.rpcTimeout))
		if err != nil {
			return nil, fmt.Errorf("failed to dial peer %d at %s: %w", i, peer.connectionString(), err)
		}
		t.conns[i] = conn
		t.clients[i] = rpc.NewTransportClient(conn)
		if i == leaderProcess {
			t.logClient = rpc.NewLogServiceClient(conn)
		}
	}

	return t, nil
}

// Close tears down every peer connection and stops the local server.
// Aggregator itself never calls Close: it belongs to the embedding
// engine's own shutdown sequence, mirroring the teacher's
// closeGRPCConnections being called by the coordinator's own Stop, not by
// anything inside core.
func (t *Transport) Close() {
	t.server.GracefulStop()
	for _, conn := range t.conns {
		if conn != nil {
			conn.Close()
		}
	}
}

func (t *Transport) ProcessID() int    { return t.processID }
func (t *Transport) NumProcesses() int { return t.numProcesses }

// Log ships a leveled log message to the leader process's LogService over
// a single-message client stream, mirroring the teacher's worker
// logClient.Log(ctx) / Send / CloseAndRecv sequence. The leader process
// owns the log sink directly (its logServer serves every other peer) and
// so prints its own lines locally rather than dialing itself.
func (t *Transport) Log(ctx context.Context, level int, source, message string) error {
	if t.processID == leaderProcess || t.logClient == nil {
		logging.Log(level, source, message)
		return nil
	}
	stream, err := t.logClient.Log(ctx)
	if err != nil {
		return err
	}
	if err := stream.Send(&rpc.LogMessage{Level: int32(level), Source: source, Message: message}); err != nil {
		return err
	}
	_, err = stream.CloseAndRecv()
	return err
}

func (t *Transport) RegisterHandler(method string, handler agg.RemoteHandler) {
	t.handlersMu.Lock()
	defer t.handlersMu.Unlock()
	t.handlers[method] = handler
}

// dispatch runs the handler registered for method on its own goroutine,
// since RemoteCall is fire-and-forget. Handlers raise programmer and
// cluster-policy errors via panic (see package errors); such a panic is
// recovered here only long enough to ship it, with a stack trace, to the
// log sink, and is then re-raised, ending the process.
func (t *Transport) dispatch(ctx context.Context, from int, method string, payload []byte) {
	t.handlersMu.RLock()
	h, ok := t.handlers[method]
	t.handlersMu.RUnlock()
	if !ok {
		return
	}
	go func() {
		defer func() {
			if r := recover(); r != nil {
				t.Log(ctx, logging.ErrorLevel, fmt.Sprintf("process[%d]", t.processID),
					fmt.Sprintf("handler %q panicked: %v\n%s", method, r, util.GetTrace()))
				panic(r)
			}
		}()
		h(ctx, from, payload)
	}()
}

// RemoteCall is fire-and-forget: it does not wait for the target's
// handler to run, only for delivery of the request itself.
func (t *Transport) RemoteCall(ctx context.Context, target int, method string, payload []byte) error {
	if target == t.processID {
		t.dispatch(ctx, t.processID, method, payload)
		return nil
	}
	_, err := t.clients[target].RemoteCall(ctx, &rpc.RemoteCallRequest{FromProcess: t.processID, Method: method, Payload: payload})
	return err
}

// Barrier funnels every process's call, local or remote, through
// leaderAwaitBarrier on process 0.
func (t *Transport) Barrier(ctx context.Context) error {
	if t.processID == leaderProcess {
		return t.leaderAwaitBarrier(t.processID)
	}
	_, err := t.clients[leaderProcess].Barrier(ctx, &rpc.BarrierRequest{FromProcess: t.processID})
	return err
}

func (t *Transport) leaderAwaitBarrier(from int) error {
	t.mu.Lock()
	if t.barrierState == nil {
		t.barrierState = &barrierRound{ch: make(chan struct{})}
	}
	st := t.barrierState
	st.count++
	if st.count == t.numProcesses {
		t.barrierState = nil
		close(st.ch)
		t.mu.Unlock()
		return nil
	}
	t.mu.Unlock()
	<-st.ch
	return nil
}

// Gather funnels every process's value through leaderAwaitGather on
// root, returning the full vector to every caller.
func (t *Transport) Gather(ctx context.Context, value []byte, root int) ([][]byte, error) {
	if root == t.processID {
		return t.leaderAwaitGather(t.processID, value)
	}
	resp, err := t.clients[root].Gather(ctx, &rpc.GatherRequest{FromProcess: t.processID, Value: value})
	if err != nil {
		return nil, err
	}
	return resp.Values, nil
}

func (t *Transport) leaderAwaitGather(from int, value []byte) ([][]byte, error) {
	t.mu.Lock()
	if t.gatherState == nil {
		t.gatherState = &gatherRound{vals: make([][]byte, t.numProcesses), ch: make(chan struct{})}
	}
	st := t.gatherState
	st.vals[from] = value
	st.count++
	if st.count == t.numProcesses {
		st.result = st.vals
		t.gatherState = nil
		close(st.ch)
		t.mu.Unlock()
		return st.result, nil
	}
	t.mu.Unlock()
	<-st.ch
	return st.result, nil
}

// Broadcast funnels every process's call through leaderAwaitBroadcast on
// process 0; the value supplied by the one process calling with isSender
// true is returned to every caller.
func (t *Transport) Broadcast(ctx context.Context, value []byte, isSender bool) ([]byte, error) {
	if t.processID == leaderProcess {
		return t.leaderAwaitBroadcast(t.processID, value, isSender)
	}
	resp, err := t.clients[leaderProcess].Broadcast(ctx, &rpc.BroadcastRequest{FromProcess: t.processID, Value: value, IsSender: isSender})
	if err != nil {
		return nil, err
	}
	return resp.Value, nil
}

func (t *Transport) leaderAwaitBroadcast(from int, value []byte, isSender bool) ([]byte, error) {
	t.mu.Lock()
	if t.broadcastState == nil {
		t.broadcastState = &broadcastRound{ch: make(chan struct{})}
	}
	st := t.broadcastState
	if isSender {
		st.value = value
	}
	st.count++
	if st.count == t.numProcesses {
		result := st.value
		t.broadcastState = nil
		close(st.ch)
		t.mu.Unlock()
		return result, nil
	}
	t.mu.Unlock()
	<-st.ch
	return st.value, nil
}

// grpcServer implements rpc.TransportServer by delegating to the leader
// bookkeeping methods above; it exists as a separate type because Go does
// not allow a type to carry both aggregator.Transport's Barrier/Gather/
// Broadcast methods and rpc.TransportServer's differently-shaped methods
// of the same names.
type grpcServer struct {
	t *Transport
}

func (s *grpcServer) Barrier(ctx context.Context, req *rpc.BarrierRequest) (*rpc.BarrierResponse, error) {
	if err := s.t.leaderAwaitBarrier(req.FromProcess); err != nil {
		return nil, err
	}
	return &rpc.BarrierResponse{}, nil
}

func (s *grpcServer) Gather(ctx context.Context, req *rpc.GatherRequest) (*rpc.GatherResponse, error) {
	vals, err := s.t.leaderAwaitGather(req.FromProcess, req.Value)
	if err != nil {
		return nil, err
	}
	return &rpc.GatherResponse{Values: vals}, nil
}

func (s *grpcServer) Broadcast(ctx context.Context, req *rpc.BroadcastRequest) (*rpc.BroadcastResponse, error) {
	val, err := s.t.leaderAwaitBroadcast(req.FromProcess, req.Value, req.IsSender)
	if err != nil {
		return nil, err
	}
	return &rpc.BroadcastResponse{Value: val}, nil
}

func (s *grpcServer) RemoteCall(ctx context.Context, req *rpc.RemoteCallRequest) (*rpc.RemoteCallResponse, error) {
	// ctx is cancelled as soon as this RPC returns, which is before the
	// dispatched handler has run (or made its own RemoteCalls), so the
	// handler is given a context of its own.
	s.t.dispatch(context.Background(), req.FromProcess, req.Method, req.Payload)
	return &rpc.RemoteCallResponse{}, nil
}

// leaderProcess mirrors core.leaderProcess (process 0 is always the
// gather/broadcast root); duplicated here, rather than exported from core,
// since cluster must not depend on core's internals to construct a
// Transport before any Aggregator exists.
const leaderProcess = 0
