package rpc

// BarrierRequest/BarrierResponse implement Transport.Barrier: every
// non-leader process calls Barrier on the leader (process 0), which
// replies to all of them once it has counted NumProcesses() arrivals,
// its own included. Round is not set by the cluster transport; rounds are
// told apart by arrival count alone.
type BarrierRequest struct {
	FromProcess int
	Round       uint64
}

// BarrierResponse carries nothing beyond a gob-encodable empty struct; its
// arrival is the signal.
type BarrierResponse struct{}

// GatherRequest delivers one process's contribution to a Gather collective,
// addressed to the root process.
type GatherRequest struct {
	FromProcess int
	Round       uint64
	Value       []byte
}

// GatherResponse carries the full NumProcesses()-length vector back to the
// calling process once the root has observed every contribution for the
// current round.
type GatherResponse struct {
	Values [][]byte
}

// BroadcastRequest delivers the sender's value for a Broadcast collective.
// Exactly one process per round calls with IsSender true; every process,
// sender included, calls Broadcast and blocks for BroadcastResponse.
type BroadcastRequest struct {
	FromProcess int
	Round       uint64
	IsSender    bool
	Value       []byte
}

// BroadcastResponse carries the sender's value back to every caller.
type BroadcastResponse struct {
	Value []byte
}

// RemoteCallRequest carries a fire-and-forget message addressed to a
// method name registered on the target process via
// aggregator.Transport.RegisterHandler.
type RemoteCallRequest struct {
	FromProcess int
	Method      string
	Payload     []byte
}

// RemoteCallResponse carries nothing; RemoteCall does not wait on handler
// completion.
type RemoteCallResponse struct{}
