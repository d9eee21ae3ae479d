package core

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"sync"

	agg "github.com/go-aggregator/aggregator"
)

// accumulatorOps is the type-erased interface the registry, schedule and
// both executors operate against. mapReduceSpec is its sole implementation,
// generic over the reduction type R; see the design notes in DESIGN.md
// for why this shape (an interface plus one generic implementation) rather
// than per-key code generation.
type accumulatorOps interface {
	cloneEmpty() accumulatorOps
	domain() agg.Domain
	absorbVertex(ctx agg.Context, v agg.LocalVertex) error
	absorbEdge(ctx agg.Context, e agg.LocalEdge) error
	mergeFrom(other accumulatorOps) error
	snapshot() ([]byte, error)
	load(data []byte) error
	clear()
	finalize(ctx agg.Context) error
}

// mapReduceSpec is the conditional monoid described in spec.md §3: an
// accumulator is either empty or holds a value; merging empty with x yields
// x, merging x with y calls R.Add. It is grounded directly on GraphLab's
// map_reduce_type<ReductionType> / conditional_addition_wrapper<R>.
type mapReduceSpec[R agg.Reducible[R]] struct {
	mu    sync.Mutex
	valid bool
	value R

	domainTag  agg.Domain
	mapVertex  func(agg.Context, agg.LocalVertex) (R, error)
	mapEdge    func(agg.Context, agg.LocalEdge) (R, error)
	finalizeFn func(agg.Context, R) error
}

func (m *mapReduceSpec[R]) cloneEmpty() accumulatorOps {
	return &mapReduceSpec[R]{
		domainTag:  m.domainTag,
		mapVertex:  m.mapVertex,
		mapEdge:    m.mapEdge,
		finalizeFn: m.finalizeFn,
	}
}

func (m *mapReduceSpec[R]) domain() agg.Domain { return m.domainTag }

func (m *mapReduceSpec[R]) absorbVertex(ctx agg.Context, v agg.LocalVertex) error {
	val, err := m.mapVertex(ctx, v)
	if err != nil {
		return err
	}
	m.mergeValue(val)
	return nil
}

func (m *mapReduceSpec[R]) absorbEdge(ctx agg.Context, e agg.LocalEdge) error {
	val, err := m.mapEdge(ctx, e)
	if err != nil {
		return err
	}
	m.mergeValue(val)
	return nil
}

func (m *mapReduceSpec[R]) mergeValue(v R) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.valid {
		m.value = v
		m.valid = true
		return
	}
	m.value = m.value.Add(v)
}

// mergeFrom is the thread-safe monoid combine used to fold a per-thread or
// per-process accumulator into this one.
func (m *mapReduceSpec[R]) mergeFrom(other accumulatorOps) error {
	o, ok := other.(*mapReduceSpec[R])
	if !ok {
		return fmt.Errorf("incoming accumulator has an incompatible reduction type")
	}
	o.mu.Lock()
	valid, val := o.valid, o.value
	o.mu.Unlock()
	if !valid {
		return nil
	}
	m.mergeValue(val)
	return nil
}

// snapshotEnvelope is the opaque blob shipped across the wire by
// Transport.Gather/Broadcast/RemoteCall.
type snapshotEnvelope[R any] struct {
	Valid bool
	Value R
}

func (m *mapReduceSpec[R]) snapshot() ([]byte, error) {
	m.mu.Lock()
	env := snapshotEnvelope[R]{Valid: m.valid, Value: m.value}
	m.mu.Unlock()
	buf := new(bytes.Buffer)
	if err := gob.NewEncoder(buf).Encode(env); err != nil {
		return nil, err
	}
	return encodeWireBlob(buf.Bytes())
}

// load thread-safely replaces this accumulator's state with a snapshot
// produced by an identically-registered accumulator elsewhere in the
// cluster. A decode failure here is the surfaced form of a cluster policy
// error: mismatched registration of the same key across processes.
func (m *mapReduceSpec[R]) load(data []byte) error {
	plain, err := decodeWireBlob(data)
	if err != nil {
		return err
	}
	var env snapshotEnvelope[R]
	if err := gob.NewDecoder(bytes.NewReader(plain)).Decode(&env); err != nil {
		return err
	}
	m.mu.Lock()
	m.valid = env.Valid
	m.value = env.Value
	m.mu.Unlock()
	return nil
}

func (m *mapReduceSpec[R]) clear() {
	var zero R
	m.mu.Lock()
	m.value = zero
	m.valid = false
	m.mu.Unlock()
}

// finalize always calls the user's finalize function with whatever value is
// held, valid or not (an untouched accumulator finalizes with R's zero
// value), matching GraphLab's map_reduce_type::finalize.
func (m *mapReduceSpec[R]) finalize(ctx agg.Context) error {
	m.mu.Lock()
	val := m.value
	m.mu.Unlock()
	return m.finalizeFn(ctx, val)
}
