package accumulators

// Count is a Reducible uint64 tally, grounded on the teacher's Count
// Accumulator (accumulators/count.go).
type Count uint64

// Add implements aggregator.Reducible[Count].
func (c Count) Add(other Count) Count { return c + other }
