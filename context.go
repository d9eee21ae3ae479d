package aggregator

import "context"

// Context is the execution context passed to user map and finalize
// callbacks. It is borrowed from the embedding engine for the duration
// of a single call and is not retained by the aggregator.
type Context interface {
	context.Context
	// ProcessID returns the id of the process this context is running on.
	ProcessID() int
}
