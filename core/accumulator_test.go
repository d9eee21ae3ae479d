package core

import (
	"testing"

	agg "github.com/go-aggregator/aggregator"
	"github.com/go-aggregator/aggregator/accumulators"
	"github.com/stretchr/testify/require"
)

func newSumSpec() *mapReduceSpec[accumulators.Sum] {
	return &mapReduceSpec[accumulators.Sum]{
		domainTag: agg.VertexDomain,
		mapVertex: func(ctx agg.Context, v agg.LocalVertex) (accumulators.Sum, error) { return 1, nil },
		finalizeFn: func(ctx agg.Context, v accumulators.Sum) error {
			return nil
		},
	}
}

func TestConditionalMergeEmptyYieldsOther(t *testing.T) {
	a := newSumSpec()
	b := newSumSpec()
	b.value = 5
	b.valid = true

	require.NoError(t, a.mergeFrom(b))
	require.True(t, a.valid)
	require.Equal(t, accumulators.Sum(5.0), a.value)
}

func TestConditionalMergeAddsWhenBothValid(t *testing.T) {
	a := newSumSpec()
	a.value = 3
	a.valid = true
	b := newSumSpec()
	b.value = 5
	b.valid = true

	require.NoError(t, a.mergeFrom(b))
	require.Equal(t, accumulators.Sum(8.0), a.value)
}

func TestMergeFromRejectsIncompatibleType(t *testing.T) {
	a := newSumSpec()
	other := &mapReduceSpec[accumulators.Count]{domainTag: agg.VertexDomain}
	err := a.mergeFrom(other)
	require.Error(t, err)
}

func TestSnapshotRoundTrip(t *testing.T) {
	a := newSumSpec()
	a.value = 42
	a.valid = true

	blob, err := a.snapshot()
	require.NoError(t, err)

	b := newSumSpec()
	require.NoError(t, b.load(blob))
	require.True(t, b.valid)
	require.Equal(t, accumulators.Sum(42.0), b.value)
}

func TestClearResetsToEmpty(t *testing.T) {
	a := newSumSpec()
	a.value = 7
	a.valid = true
	a.clear()
	require.False(t, a.valid)
	require.Equal(t, accumulators.Sum(0.0), a.value)
}

func TestFinalizeCalledEvenWhenNeverTouched(t *testing.T) {
	called := false
	spec := &mapReduceSpec[accumulators.Sum]{
		domainTag: agg.VertexDomain,
		finalizeFn: func(ctx agg.Context, v accumulators.Sum) error {
			called = true
			require.Equal(t, accumulators.Sum(0.0), v)
			return nil
		},
	}
	require.NoError(t, spec.finalize(nil))
	require.True(t, called, "finalize must run unconditionally, even over an untouched accumulator")
}

func TestCloneEmptyCopiesBehaviorNotState(t *testing.T) {
	a := newSumSpec()
	a.value = 99
	a.valid = true

	clone := a.cloneEmpty().(*mapReduceSpec[accumulators.Sum])
	require.False(t, clone.valid)
	require.Equal(t, agg.VertexDomain, clone.domain())
}
