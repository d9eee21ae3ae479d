package graph

import (
	"testing"

	agg "github.com/go-aggregator/aggregator"
	"github.com/stretchr/testify/require"
)

func TestMemoryAddVertexAssignsSequentialIDs(t *testing.T) {
	m := NewMemory()
	v0 := m.AddVertex(0, "a")
	v1 := m.AddVertex(1, "b")

	require.Equal(t, 0, v0.ID())
	require.Equal(t, 1, v1.ID())
	require.Equal(t, 2, m.NumLocalVertices())
}

func TestMemoryAddEdgeAttachesInEdge(t *testing.T) {
	m := NewMemory()
	source := m.AddVertex(0, nil)
	target := m.AddVertex(0, nil)
	m.AddEdge(target, source.Owner(), "payload")

	require.Empty(t, source.InEdges())
	require.Len(t, target.InEdges(), 1)

	e := target.InEdges()[0].(*Edge)
	require.Equal(t, target.ID(), e.Target)
	require.Equal(t, "payload", e.Data)
}

func TestMemoryLocalVertexSatisfiesGraphInterface(t *testing.T) {
	m := NewMemory()
	m.AddVertex(3, nil)

	var g agg.Graph = m
	require.Equal(t, 1, g.NumLocalVertices())
	require.Equal(t, 3, g.LocalVertex(0).Owner())
}
