package core

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"math"
)

// encodeFloat64/decodeFloat64 carry a wall-clock reading across
// Transport.Broadcast, which only knows about byte slices.
func encodeFloat64(v float64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, math.Float64bits(v))
	return buf
}

func decodeFloat64(b []byte) float64 {
	return math.Float64frombits(binary.BigEndian.Uint64(b))
}

// RPC method names dispatched through Transport.RemoteCall by the
// asynchronous executor's two-phase completion protocol. Each is a
// narrow, purpose-built message rather than a generic call, matching the
// "RPC as messages" shape Transport.RemoteCall is designed around.
const (
	methodKeyMerge          = "aggregator.keyMerge"
	methodPerformFinalize   = "aggregator.performFinalize"
	methodDecrementFinalize = "aggregator.decrementFinalize"
	methodScheduleKey       = "aggregator.scheduleKey"
)

// keyMergeMsg carries a non-leader process's locally-reduced accumulator
// snapshot to the leader during the merge phase.
type keyMergeMsg struct {
	Key  string
	Blob []byte
}

// performFinalizeMsg carries the leader's fully-merged accumulator
// snapshot out to every non-leader process once the merge phase
// completes, so each can call finalize with an identical value.
type performFinalizeMsg struct {
	Key  string
	Blob []byte
}

// decrementFinalizeMsg is a non-leader process's acknowledgement that it
// has finished calling finalize for Key, sent back to the leader during
// the finalize-ack phase.
type decrementFinalizeMsg struct {
	Key string
}

// scheduleKeyMsg carries the next fire time for Key from the leader to
// every non-leader process once a round's finalize-ack phase completes,
// keeping every process's schedule in agreement.
type scheduleKeyMsg struct {
	Key    string
	FireAt float64
}

func encodeMsg(v interface{}) []byte {
	buf := new(bytes.Buffer)
	if err := gob.NewEncoder(buf).Encode(v); err != nil {
		panic(err)
	}
	return buf.Bytes()
}

func decodeMsg(data []byte, v interface{}) error {
	return gob.NewDecoder(bytes.NewReader(data)).Decode(v)
}
