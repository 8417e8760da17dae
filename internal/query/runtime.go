package query

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/singleflight"
)

// Runtime owns query storage: input values, memoized results and the
// revision clock. Only the owner of a Runtime may write inputs; readers
// work through Snapshots obtained from Fork.
//
// Invalidation is deliberately coarse. Every write bumps the revision and
// drops every memoized result, and every computation that started on an
// older revision observes ErrCanceled at its next check.
type Runtime struct {
	clock Clock

	mu     sync.RWMutex
	inputs map[slot]any
	memo   map[slot]memo

	flight  singleflight.Group
	metrics *Metrics
	logger  *slog.Logger
}

// slot identifies one value: an input or query name plus its key.
type slot struct {
	name string
	key  any
}

type memo struct {
	rev   Revision
	value any
}

// Option configures a Runtime.
type Option func(*Runtime)

// WithLogger sets the logger used for debug output.
func WithLogger(l *slog.Logger) Option {
	return func(r *Runtime) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithMetrics records hits, misses, cancellations and writes into m.
func WithMetrics(m *Metrics) Option {
	return func(r *Runtime) {
		r.metrics = m
	}
}

// NewRuntime creates an empty Runtime at revision zero.
func NewRuntime(opts ...Option) *Runtime {
	r := &Runtime{
		inputs: make(map[slot]any),
		memo:   make(map[slot]memo),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Revision returns the current revision.
func (r *Runtime) Revision() Revision {
	return r.clock.Current()
}

// Fork returns a read-only Snapshot pinned to the current revision. Forks
// are cheap and may be used from any goroutine.
func (r *Runtime) Fork() *Snapshot {
	return &Snapshot{rt: r, rev: r.clock.Current()}
}

// Batch applies all writes made through b as a single revision.
func (r *Runtime) Batch(fn func(b *Batch)) Revision {
	r.mu.Lock()
	// The clock moves before any input changes. It is advanced under the
	// lock so that a snapshot forked at the new revision cannot read
	// inputs until the whole batch is visible.
	rev := r.clock.NoteWrite()
	fn(&Batch{rt: r})
	clear(r.memo)
	r.mu.Unlock()

	r.metrics.write(rev)
	r.logger.Debug("input write", "revision", int64(rev))
	return rev
}

func (r *Runtime) lookup(s slot, rev Revision) (any, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.memo[s]
	if !ok || m.rev != rev {
		return nil, false
	}
	return m.value, true
}

// store memoizes v unless a write has superseded rev in the meantime.
func (r *Runtime) store(s slot, rev Revision, v any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.clock.Current() != rev {
		return
	}
	r.memo[s] = memo{rev: rev, value: v}
}

func (r *Runtime) read(s slot) (any, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.inputs[s]
	return v, ok
}

// Batch is the write handle passed to Runtime.Batch.
type Batch struct {
	rt *Runtime
}

// Snapshot is a read-only view of a Runtime pinned to one revision.
type Snapshot struct {
	rt  *Runtime
	rev Revision
}

// Revision returns the revision the snapshot was forked at.
func (s *Snapshot) Revision() Revision {
	return s.rev
}

// IsCanceled reports whether a write happened since the snapshot was forked.
func (s *Snapshot) IsCanceled() bool {
	return s.rt.clock.IsCanceled(s.rev)
}

// CheckCanceled returns ErrCanceled if a write happened since the snapshot
// was forked.
func (s *Snapshot) CheckCanceled() error {
	return s.rt.clock.CheckCanceled(s.rev)
}

// Input is a named family of externally supplied values.
type Input[K comparable, V any] struct {
	name string
}

// NewInput declares an input. Names must be unique within a Runtime.
func NewInput[K comparable, V any](name string) *Input[K, V] {
	return &Input[K, V]{name: name}
}

// Name returns the input's name.
func (in *Input[K, V]) Name() string { return in.name }

// Set stores value under key as its own revision.
func (in *Input[K, V]) Set(r *Runtime, key K, value V) {
	r.Batch(func(b *Batch) { in.Put(b, key, value) })
}

// Remove deletes key as its own revision.
func (in *Input[K, V]) Remove(r *Runtime, key K) {
	r.Batch(func(b *Batch) { in.Delete(b, key) })
}

// Put stores value under key within a batch.
func (in *Input[K, V]) Put(b *Batch, key K, value V) {
	b.rt.inputs[slot{name: in.name, key: key}] = value
}

// Delete removes key within a batch.
func (in *Input[K, V]) Delete(b *Batch, key K) {
	delete(b.rt.inputs, slot{name: in.name, key: key})
}

// Get reads the value for key. Reads never check cancellation; a snapshot
// that raced a write sees the newer value, and the query reading it reports
// ErrCanceled once it returns.
func (in *Input[K, V]) Get(s *Snapshot, key K) (V, bool) {
	v, ok := s.rt.read(slot{name: in.name, key: key})
	if !ok {
		var zero V
		return zero, false
	}
	out, ok := v.(V)
	return out, ok
}

// ComputeFunc derives a value from a snapshot. It must be a pure function
// of the key and the inputs visible through s.
type ComputeFunc[K comparable, V any] func(s *Snapshot, key K) (V, error)

// Query is a named, memoized derived computation.
type Query[K comparable, V any] struct {
	name    string
	compute ComputeFunc[K, V]
}

// NewQuery declares a derived query. Queries must not depend on
// themselves, directly or transitively, for the same key.
func NewQuery[K comparable, V any](name string, compute ComputeFunc[K, V]) *Query[K, V] {
	return &Query[K, V]{name: name, compute: compute}
}

// Name returns the query's name.
func (q *Query[K, V]) Name() string { return q.name }

// Get returns the memoized value for key if it was computed at the
// snapshot's revision, and computes it otherwise. Concurrent callers at the
// same revision share one computation. The only error produced by the
// engine itself is ErrCanceled; others come from the compute function.
func (q *Query[K, V]) Get(s *Snapshot, key K) (V, error) {
	var zero V
	rt := s.rt
	if err := s.CheckCanceled(); err != nil {
		rt.metrics.cancel(q.name)
		return zero, err
	}

	sl := slot{name: q.name, key: key}
	if v, ok := rt.lookup(sl, s.rev); ok {
		rt.metrics.hit(q.name)
		out, _ := v.(V)
		return out, nil
	}
	rt.metrics.miss(q.name)

	flightKey := fmt.Sprintf("%s@%d:%v", q.name, s.rev, key)
	v, err, _ := rt.flight.Do(flightKey, func() (any, error) {
		if v, ok := rt.lookup(sl, s.rev); ok {
			return v, nil
		}
		v, err := q.compute(s, key)
		if err != nil {
			return nil, err
		}
		if err := s.CheckCanceled(); err != nil {
			return nil, err
		}
		rt.store(sl, s.rev, v)
		return v, nil
	})
	if err != nil {
		if errors.Is(err, ErrCanceled) {
			rt.metrics.cancel(q.name)
			rt.logger.Debug("query canceled", "query", q.name, "revision", int64(s.rev))
		}
		return zero, err
	}
	out, _ := v.(V)
	return out, nil
}
