// Package graph provides an in-memory aggregator.Graph, useful for tests
// and for single-process embeddings. It stands in for the teacher's
// in-memory DataFrame partition sources, generalized from rows to vertices
// and edges.
package graph

import agg "github.com/go-aggregator/aggregator"

// Vertex is an in-memory agg.LocalVertex carrying an arbitrary payload.
type Vertex struct {
	id      int
	owner   int
	Data    interface{}
	inEdges []agg.LocalEdge
}

// ID returns this vertex's index within its owning Memory graph.
func (v *Vertex) ID() int { return v.id }

// Owner implements agg.LocalVertex.
func (v *Vertex) Owner() int { return v.owner }

// InEdges implements agg.LocalVertex.
func (v *Vertex) InEdges() []agg.LocalEdge { return v.inEdges }

// Edge is an in-memory agg.LocalEdge carrying an arbitrary payload.
type Edge struct {
	Source int
	Target int
	Data   interface{}
}

// Memory is an in-memory aggregator.Graph: every vertex added to it is
// treated as local, with Owner() set at construction time to simulate a
// partitioned graph within a single process.
type Memory struct {
	vertices []*Vertex
}

// NewMemory returns an empty in-memory graph.
func NewMemory() *Memory {
	return &Memory{}
}

// AddVertex appends a new vertex owned by process owner and returns it so
// callers can attach in-edges with AddEdge.
func (m *Memory) AddVertex(owner int, data interface{}) *Vertex {
	v := &Vertex{id: len(m.vertices), owner: owner, Data: data}
	m.vertices = append(m.vertices, v)
	return v
}

// AddEdge attaches a new in-edge, directed from source into target, to
// target's in-edge list.
func (m *Memory) AddEdge(target *Vertex, source int, data interface{}) {
	target.inEdges = append(target.inEdges, &Edge{Source: source, Target: target.id, Data: data})
}

// NumLocalVertices implements agg.Graph.
func (m *Memory) NumLocalVertices() int { return len(m.vertices) }

// LocalVertex implements agg.Graph.
func (m *Memory) LocalVertex(i int) agg.LocalVertex { return m.vertices[i] }
