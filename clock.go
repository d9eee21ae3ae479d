package aggregator

// Clock supplies wall-clock readings sufficient for scheduling. It is not
// required to be high precision, only monotonic for the lifetime of a run.
type Clock interface {
	ApproxTimeSeconds() float64
}
