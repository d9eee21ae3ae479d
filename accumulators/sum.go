package accumulators

// Sum is a Reducible float64 total, grounded on the teacher's Sum
// Accumulator (accumulators/sum.go): same reduction, carried here as a
// plain value type instead of a stateful struct with its own ToBytes,
// since mapReduceSpec now owns serialization for every reduction type
// uniformly via gob.
type Sum float64

// Add implements aggregator.Reducible[Sum].
func (s Sum) Add(other Sum) Sum { return s + other }
