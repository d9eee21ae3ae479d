package cluster

import (
	"fmt"
	"time"
)

// PeerAddr is the dial address of one process in the cluster.
type PeerAddr struct {
	Host string
	Port int
}

func (p PeerAddr) connectionString() string {
	return fmt.Sprintf("%s:%d", p.Host, p.Port)
}

// TransportOptions configures a gRPC-backed aggregator.Transport. Peers
// must list every process in the cluster, including this one, indexed by
// process id: Peers[ProcessID] is this process's own listen address.
//
// There is no file, flag or environment variable source for these values,
// matching NodeOptions in the teacher: the embedding engine supplies them
// directly.
type TransportOptions struct {
	ProcessID  int
	Peers      []PeerAddr
	RPCTimeout time.Duration
}

func ensureDefaultTransportOptionsValues(opts *TransportOptions) {
	if opts.RPCTimeout == 0 {
		opts.RPCTimeout = 5 * time.Second
	}
}

func (o *TransportOptions) validate() error {
	if o.ProcessID < 0 || o.ProcessID >= len(o.Peers) {
		return fmt.Errorf("process id %d is out of range for a %d-process cluster", o.ProcessID, len(o.Peers))
	}
	if len(o.Peers) == 0 {
		return fmt.Errorf("at least one peer is required")
	}
	return nil
}
