package aggregator

import "context"

// RemoteHandler handles a fire-and-forget message delivered via
// Transport.RemoteCall. from is the sending process id; payload is an
// opaque blob the handler is responsible for decoding.
type RemoteHandler func(ctx context.Context, from int, payload []byte)

// Transport is the point-to-point/collective RPC collaborator. The
// aggregator core never dials a socket itself: it is handed a Transport
// and drives it through this interface, so a single-process fake and a
// gRPC-backed cluster implementation are interchangeable.
//
// Barrier, Gather and Broadcast are blocking collectives. RemoteCall is
// fire-and-forget and carries its own key: it is modeled as a typed message
// dispatched by method name to a registered handler, rather than a generic
// RPC stub per method, matching the async executor's four narrow completion
// messages (key-merge, perform-finalize, decrement-finalize, schedule-key).
type Transport interface {
	// ProcessID returns this process's rank, 0 <= ProcessID() < NumProcesses().
	ProcessID() int
	// NumProcesses returns the fixed size of the cluster.
	NumProcesses() int

	// Barrier blocks every caller until all processes have called Barrier.
	Barrier(ctx context.Context) error

	// Gather blocks until every process has supplied its value, then
	// returns a NumProcesses()-length vector whose i-th slot is process i's
	// value. Every process must call Gather; every process receives the
	// same full vector.
	Gather(ctx context.Context, value []byte, root int) ([][]byte, error)

	// Broadcast blocks until the sender (isSender true on exactly one
	// process per round) has supplied value, then returns it to every
	// caller, sender included.
	Broadcast(ctx context.Context, value []byte, isSender bool) ([]byte, error)

	// RemoteCall delivers payload to the named handler registered on
	// target. It does not block on the handler's completion.
	RemoteCall(ctx context.Context, target int, method string, payload []byte) error

	// RegisterHandler installs the handler invoked when this process
	// receives a RemoteCall addressed to method. Registration is expected
	// to happen before Start; it is not safe to register concurrently with
	// traffic.
	RegisterHandler(method string, handler RemoteHandler)

	// Log ships a leveled log message toward this transport's log sink.
	// A real cluster transport ships it over the wire to the leader
	// process; an in-process fake may log directly since it has no wire
	// to ship over. Errors are ordinarily non-fatal to the caller, which
	// is trying to report a different condition and should not itself
	// fail because logging it could not be delivered.
	Log(ctx context.Context, level int, source, message string) error
}
