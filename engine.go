package grove

import (
	"context"
	"log/slog"
	"runtime"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	slogctx "github.com/veqryn/slog-context"

	"github.com/jward/grove/internal/input"
	"github.com/jward/grove/internal/module"
	"github.com/jward/grove/internal/query"
)

// Engine owns grove's inputs and the query runtime computing from them.
// It is the only handle that can write; all reads go through Snapshots.
// Writes may be issued from any goroutine but are serialized.
type Engine struct {
	rt      *query.Runtime
	q       *queries
	logger  *slog.Logger
	conv    module.Conventions
	ignore  []string
	workers int
	reg     prometheus.Registerer

	// Loader state, see engine_load.go.
	mu       sync.Mutex
	fileIDs  map[string]input.FileID // absolute slash path
	nextFile input.FileID
	roots    []*rootState
}

// Option configures an Engine.
type Option func(*Engine)

// WithConventions sets the path conventions used to resolve declarations.
func WithConventions(c Conventions) Option {
	return func(e *Engine) {
		e.conv = c
	}
}

// WithLogger sets the logger used by the engine and its query runtime.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithRegisterer registers query metrics (hits, misses, cancellations and
// the current revision) with reg.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(e *Engine) {
		e.reg = reg
	}
}

// WithWorkers bounds the goroutines used for loading files and building
// trees in parallel. Values below one mean runtime.NumCPU().
func WithWorkers(n int) Option {
	return func(e *Engine) {
		e.workers = n
	}
}

// WithIgnore adds gitignore-style patterns excluded when loading
// directories.
func WithIgnore(patterns ...string) Option {
	return func(e *Engine) {
		e.ignore = append(e.ignore, patterns...)
	}
}

// New creates an Engine with no inputs.
func New(opts ...Option) *Engine {
	e := &Engine{
		logger:   slog.Default(),
		conv:     module.DefaultConventions(),
		fileIDs:  make(map[string]input.FileID),
		nextFile: 1,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.workers < 1 {
		e.workers = runtime.NumCPU()
	}

	rtOpts := []query.Option{query.WithLogger(e.logger)}
	if e.reg != nil {
		rtOpts = append(rtOpts, query.WithMetrics(query.NewMetrics(e.reg)))
	}
	e.rt = query.NewRuntime(rtOpts...)
	e.q = newQueries()
	conventionsInput.Set(e.rt, struct{}{}, e.conv)
	return e
}

// logContext returns ctx carrying the engine logger with args attached.
func (e *Engine) logContext(ctx context.Context, args ...any) context.Context {
	return slogctx.With(slogctx.NewCtx(ctx, e.logger), args...)
}

// Revision returns the current revision.
func (e *Engine) Revision() Revision {
	return e.rt.Revision()
}

// Snapshot returns a read-only view pinned to the current revision.
func (e *Engine) Snapshot() *Snapshot {
	return &Snapshot{qs: e.rt.Fork(), q: e.q}
}

// Writer applies input changes inside Engine.Write. It must not be used
// after the function passed to Write returns.
type Writer struct {
	b *query.Batch
}

// SetFileText sets the text of a file.
func (w *Writer) SetFileText(file FileID, text string) {
	fileTextInput.Put(w.b, file, text)
}

// RemoveFileText forgets the text of a file.
func (w *Writer) RemoveFileText(file FileID) {
	fileTextInput.Delete(w.b, file)
}

// SetFileSourceRoot records the source root a file belongs to.
func (w *Writer) SetFileSourceRoot(file FileID, root SourceRootID) {
	fileSourceRootInput.Put(w.b, file, root)
}

// RemoveFileSourceRoot forgets the source root of a file.
func (w *Writer) RemoveFileSourceRoot(file FileID) {
	fileSourceRootInput.Delete(w.b, file)
}

// SetSourceRoot sets the members and resolver of a source root and records
// id as the source root of every member.
func (w *Writer) SetSourceRoot(id SourceRootID, root *SourceRoot) {
	sourceRootInput.Put(w.b, id, root)
	for _, f := range root.Files {
		fileSourceRootInput.Put(w.b, f, id)
	}
}

// SetLibraries sets the source roots holding library crates.
func (w *Writer) SetLibraries(ids []SourceRootID) {
	librariesInput.Put(w.b, struct{}{}, ids)
}

// SetCrateGraph sets the crate graph.
func (w *Writer) SetCrateGraph(g *CrateGraph) {
	crateGraphInput.Put(w.b, struct{}{}, g)
}

// Write applies every change made through w as one revision and returns
// it. Computations running on older snapshots are canceled. fn must not
// read from snapshots of this engine.
func (e *Engine) Write(fn func(w *Writer)) Revision {
	return e.rt.Batch(func(b *query.Batch) {
		fn(&Writer{b: b})
	})
}

// SetFileText sets the text of one file as its own revision.
func (e *Engine) SetFileText(file FileID, text string) Revision {
	return e.Write(func(w *Writer) { w.SetFileText(file, text) })
}

// SetSourceRoot sets one source root as its own revision.
func (e *Engine) SetSourceRoot(id SourceRootID, root *SourceRoot) Revision {
	return e.Write(func(w *Writer) { w.SetSourceRoot(id, root) })
}
