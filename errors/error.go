package errors

import "fmt"

// EmptyKeyError occurs when register_vertex/register_edge is called with an
// empty key.
type EmptyKeyError struct{}

// Error returns a textual representation of this EmptyKeyError
func (e EmptyKeyError) Error() string {
	return "aggregator key must not be empty"
}

// DuplicateKeyError occurs when register_vertex/register_edge is called
// with a key that is already present in the registry.
type DuplicateKeyError struct{ Key string }

// Error returns a textual representation of this DuplicateKeyError
func (e DuplicateKeyError) Error() string {
	return fmt.Sprintf("aggregator %q is already registered", e.Key)
}

// NegativePeriodError occurs when aggregate_periodic is called with a
// negative period.
type NegativePeriodError struct{ Seconds float64 }

// Error returns a textual representation of this NegativePeriodError
func (e NegativePeriodError) Error() string {
	return fmt.Sprintf("period %f is negative", e.Seconds)
}

// UnknownAggregatorError occurs when a key used to schedule or aggregate
// does not exist in the registry. Raised as a user-input error from
// aggregate_periodic, and as a programmer error (fatal) from aggregate_now
// and every async RPC entry point.
type UnknownAggregatorError struct{ Key string }

// Error returns a textual representation of this UnknownAggregatorError
func (e UnknownAggregatorError) Error() string {
	return fmt.Sprintf("no aggregator registered under key %q", e.Key)
}

// AsyncStateMissingError occurs when an async RPC entry point or compute
// call references a key with no armed async state. This indicates the
// cluster's schedules have diverged and is a programmer error.
type AsyncStateMissingError struct{ Key string }

// Error returns a textual representation of this AsyncStateMissingError
func (e AsyncStateMissingError) Error() string {
	return fmt.Sprintf("no asynchronous state armed for key %q", e.Key)
}

// CPUOutOfRangeError occurs when tick_asynchronous_compute is called with
// a cpu_id outside [0, ncpus).
type CPUOutOfRangeError struct {
	CPUID, NCPUs int
}

// Error returns a textual representation of this CPUOutOfRangeError
func (e CPUOutOfRangeError) Error() string {
	return fmt.Sprintf("cpu_id %d is out of range [0, %d)", e.CPUID, e.NCPUs)
}

// CountdownUnderflowError occurs when an atomic completion countdown is
// decremented past zero, indicating a diverged accounting protocol between
// processes.
type CountdownUnderflowError struct{ Key string }

// Error returns a textual representation of this CountdownUnderflowError
func (e CountdownUnderflowError) Error() string {
	return fmt.Sprintf("completion countdown for %q underflowed", e.Key)
}

// TypeMismatchError surfaces as a cluster policy error when a process
// attempts to Load an accumulator snapshot that was produced by a
// differently-typed registration of the same key on another process.
type TypeMismatchError struct {
	Key string
	Err error
}

// Error returns a textual representation of this TypeMismatchError
func (e TypeMismatchError) Error() string {
	return fmt.Sprintf("accumulator %q: mismatched registration across cluster: %s", e.Key, e.Err)
}

// Unwrap exposes the underlying deserialization error.
func (e TypeMismatchError) Unwrap() error { return e.Err }
