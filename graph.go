package aggregator

// LocalVertex is a vertex owned or ghosted on the local process. Only the
// subset of the vertex interface the aggregator needs to drive a map
// reduction is exposed here; the embedding engine's real vertex type is
// expected to satisfy it alongside its own, richer interface.
type LocalVertex interface {
	// Owner returns the id of the process that owns this vertex. Vertex-domain
	// aggregators only contribute a vertex whose Owner() equals the local
	// process id, to avoid double-counting ghosts.
	Owner() int
	// InEdges returns every edge directed into this vertex. Edge-domain
	// aggregators contribute every in-edge of every local vertex, once,
	// relying on the graph's partitioner assigning each edge to its target's
	// process.
	InEdges() []LocalEdge
}

// LocalEdge is a directed edge incident to a local vertex.
type LocalEdge interface{}

// Graph is the distributed graph collaborator. The aggregator never mutates
// or partitions the graph itself; it only iterates the process's local
// share of vertices.
type Graph interface {
	// NumLocalVertices returns the count of vertices resident on this process
	// (owned or ghosted).
	NumLocalVertices() int
	// LocalVertex returns the i-th local vertex, 0 <= i < NumLocalVertices().
	LocalVertex(i int) LocalVertex
}
