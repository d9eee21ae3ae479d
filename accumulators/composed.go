package accumulators

import (
	agg "github.com/go-aggregator/aggregator"
)

// Composed2 combines two independent reductions computed over the same
// map pass, e.g. a Sum alongside a Count so a finalize function can derive
// an average. Grounded on the teacher's Composed accumulator
// (accumulators/composed.go), which merges a fixed slice of
// sub-accumulators gob-encoded as a group; Composed2 gives the same shape
// a fixed-arity, gob-encodable generic struct instead of a slice of
// type-erased sif.Accumulator, since R must satisfy aggregator.Reducible
// directly.
type Composed2[A agg.Reducible[A], B agg.Reducible[B]] struct {
	A A
	B B
}

// Add implements aggregator.Reducible[Composed2[A, B]] by adding each
// component independently.
func (c Composed2[A, B]) Add(other Composed2[A, B]) Composed2[A, B] {
	return Composed2[A, B]{A: c.A.Add(other.A), B: c.B.Add(other.B)}
}
