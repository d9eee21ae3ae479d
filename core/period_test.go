package core

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPeriodTableSetGet(t *testing.T) {
	p := newPeriodTable()
	_, ok := p.get("total")
	require.False(t, ok)

	p.set("total", 30)
	seconds, ok := p.get("total")
	require.True(t, ok)
	require.Equal(t, 30.0, seconds)
}

func TestPeriodTableClear(t *testing.T) {
	p := newPeriodTable()
	p.set("total", 30)
	p.clear()
	_, ok := p.get("total")
	require.False(t, ok)
}

func TestPeriodTableKeys(t *testing.T) {
	p := newPeriodTable()
	p.set("a", 1)
	p.set("b", 2)
	require.ElementsMatch(t, []string{"a", "b"}, p.keys())
}
