// Package rpc implements the wire-level transport the cluster package
// drives aggregator.Transport through: a gRPC service, Transport, carrying
// Barrier/Gather/Broadcast/RemoteCall, and a second service, LogService,
// a client-streaming RPC that ships leveled log lines to whichever
// process owns the log sink and acks with a received count.
//
// The teacher generates its service stubs from .proto sources via protoc
// (see the go:generate directives this file used to carry). That path is
// unavailable here, so this package hand-writes its grpc.ServiceDesc and
// client stub directly against google.golang.org/grpc's low-level API, and
// registers a gob-based codec (see codec.go) so every message is a plain
// Go struct instead of protobuf-generated code. This is a deliberate
// adaptation documented in DESIGN.md, not a simplification of the
// protocol itself: every RPC the cluster package needs is still present,
// typed, and gRPC-transported.
package rpc
