// Package core implements the distributed periodic aggregator: the
// type-erased registry of map-reduce specifications, the schedule of
// periodic triggers, and the two execution disciplines (synchronous and
// asynchronous) that drive aggregation rounds across a fixed cluster of
// processes. The package is transport- and graph-agnostic; see package
// cluster for a gRPC-backed deployment and package graph for an in-memory
// Graph usable in tests.
package core
