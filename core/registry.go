package core

import (
	"sync"

	agg "github.com/go-aggregator/aggregator"
	aggerrors "github.com/go-aggregator/aggregator/errors"
)

// registry holds every accumulator spec registered on this process, keyed
// by the name the caller supplied to RegisterVertex/RegisterEdge. It is
// grounded on the teacher's pattern of a single mutex-guarded map for
// cluster-wide name resolution (core/s_cluster.go's worker registry), here
// holding accumulatorOps instead of worker connections.
type registry struct {
	mu    sync.RWMutex
	specs map[string]accumulatorOps
}

func newRegistry() *registry {
	return &registry{specs: make(map[string]accumulatorOps)}
}

func (r *registry) register(key string, spec accumulatorOps) error {
	if key == "" {
		return aggerrors.EmptyKeyError{}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.specs[key]; exists {
		return aggerrors.DuplicateKeyError{Key: key}
	}
	r.specs[key] = spec
	return nil
}

func (r *registry) get(key string) (accumulatorOps, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	spec, ok := r.specs[key]
	return spec, ok
}

// mustGet returns the spec for key or panics with an UnknownAggregatorError,
// the programmer-error path used by entry points that assume the caller
// already validated the key (the async RPC handlers, aggregate_now).
func (r *registry) mustGet(key string) accumulatorOps {
	spec, ok := r.get(key)
	if !ok {
		panic(aggerrors.UnknownAggregatorError{Key: key})
	}
	return spec
}

func (r *registry) keys() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.specs))
	for k := range r.specs {
		out = append(out, k)
	}
	return out
}

// RegisterVertex registers a vertex-domain map-reduce aggregator under key.
// mapFn is applied to every local vertex the process owns; finalizeFn is
// invoked once per completed round with the fully reduced value.
//
// Go does not support generic methods, so registration is a package-level
// generic function rather than a method on *Aggregator: the function
// closes over R to build a concrete mapReduceSpec[R] and then hands the
// type-erased result to the Aggregator's registry.
func RegisterVertex[R agg.Reducible[R]](a *Aggregator, key string, mapFn func(agg.Context, agg.LocalVertex) (R, error), finalizeFn func(agg.Context, R) error) error {
	spec := &mapReduceSpec[R]{
		domainTag:  agg.VertexDomain,
		mapVertex:  mapFn,
		finalizeFn: finalizeFn,
	}
	return a.registry.register(key, spec)
}

// RegisterEdge registers an edge-domain map-reduce aggregator under key.
// mapFn is applied to every in-edge of every local vertex; finalizeFn is
// invoked once per completed round with the fully reduced value.
func RegisterEdge[R agg.Reducible[R]](a *Aggregator, key string, mapFn func(agg.Context, agg.LocalEdge) (R, error), finalizeFn func(agg.Context, R) error) error {
	spec := &mapReduceSpec[R]{
		domainTag:  agg.EdgeDomain,
		mapEdge:    mapFn,
		finalizeFn: finalizeFn,
	}
	return a.registry.register(key, spec)
}
