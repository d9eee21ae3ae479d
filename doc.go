// Package aggregator defines the core interfaces of the distributed periodic
// aggregator: named map-reduce computations run over a partitioned graph
// across a fixed cluster of peer processes, either on demand or on a
// periodic schedule. This root package defines the types an embedding
// engine implements or consumes; see package core for the coordination
// and scheduling machinery itself.
package aggregator
