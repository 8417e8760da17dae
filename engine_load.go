package grove

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	slogctx "github.com/veqryn/slog-context"

	"github.com/jward/grove/internal/discover"
	"github.com/jward/grove/internal/input"
	"github.com/jward/grove/internal/syntax"
)

// ErrNotInRoot is returned by UpdateFile and RemoveFile for paths outside
// every loaded directory.
var ErrNotInRoot = errors.New("grove: path is not inside a loaded source root")

// rootState is the loader's view of one directory-backed source root.
type rootState struct {
	id      SourceRootID
	dir     string            // absolute, slash-separated
	files   map[string]FileID // relative slash path
	library bool
}

func (rs *rootState) sourceRoot() *SourceRoot {
	paths := make(map[FileID]string, len(rs.files))
	ids := make([]FileID, 0, len(rs.files))
	for rel, id := range rs.files {
		paths[id] = rel
		ids = append(ids, id)
	}
	return input.NewSourceRoot(input.NewPathResolver(paths), ids...)
}

func (rs *rootState) relPaths() []string {
	rels := make([]string, 0, len(rs.files))
	for rel := range rs.files {
		rels = append(rels, rel)
	}
	sort.Strings(rels)
	return rels
}

// LoadDirectory loads every source file under dir as one source root and
// returns its id. Loading the same directory again replaces the root's
// contents, keeping the ids of files that are still present. Files that
// cannot be read are skipped; their errors are returned together after the
// rest of the directory has been applied.
func (e *Engine) LoadDirectory(ctx context.Context, dir string) (SourceRootID, error) {
	return e.load(ctx, dir, false)
}

// LoadLibrary is LoadDirectory for a library crate: the root is also
// listed in the libraries input.
func (e *Engine) LoadLibrary(ctx context.Context, dir string) (SourceRootID, error) {
	return e.load(ctx, dir, true)
}

func (e *Engine) load(ctx context.Context, dir string, library bool) (SourceRootID, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return 0, fmt.Errorf("grove: load %s: %w", dir, err)
	}
	ctx = e.logContext(ctx, "dir", filepath.ToSlash(abs))
	rels, err := discover.Files(ctx, abs, e.discoverOptions())
	if err != nil {
		return 0, fmt.Errorf("grove: discover %s: %w", dir, err)
	}
	slogctx.Debug(ctx, "discovered source files", "files", len(rels))
	texts, readErr := e.readFiles(ctx, abs, rels)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return 0, ctxErr
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	rs := e.rootForDir(filepath.ToSlash(abs))
	rs.library = rs.library || library
	ctx = slogctx.With(ctx, "root", uint32(rs.id))
	old := rs.files
	rs.files = make(map[string]FileID, len(texts))
	for _, rel := range rels {
		if _, ok := texts[rel]; ok {
			rs.files[rel] = e.intern(rs.dir + "/" + rel)
		}
	}

	rev := e.Write(func(w *Writer) {
		for rel, id := range old {
			if _, ok := rs.files[rel]; !ok {
				w.RemoveFileText(id)
				w.RemoveFileSourceRoot(id)
			}
		}
		for rel, text := range texts {
			w.SetFileText(rs.files[rel], text)
		}
		w.SetSourceRoot(rs.id, rs.sourceRoot())
		w.SetCrateGraph(e.crateGraph())
		w.SetLibraries(e.libraries())
	})
	slogctx.Info(ctx, "loaded source root", "files", len(rs.files), "revision", int64(rev))

	return rs.id, readErr
}

// UpdateFile re-reads one file below a loaded directory. New files join
// their root; a file that no longer exists is removed. Paths LoadDirectory
// would skip (ignored, hidden, symlinked or below a skipped directory)
// are not loaded, and are dropped if they were.
func (e *Engine) UpdateFile(ctx context.Context, path string) (FileID, error) {
	if !syntax.IsSourceFile(path, e.conv.Extension) {
		return 0, nil
	}
	e.mu.Lock()
	rs, rel, err := e.rootForPath(path)
	e.mu.Unlock()
	if err != nil {
		return 0, err
	}
	ctx = e.logContext(ctx, "root", uint32(rs.id), "dir", rs.dir)

	if !discover.NewMatcher(filepath.FromSlash(rs.dir), e.discoverOptions()).Match(ctx, rel) {
		slogctx.Debug(ctx, "skipped excluded file", "path", rel)
		return 0, e.RemoveFile(path)
	}
	text, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return 0, e.RemoveFile(path)
	}
	if err != nil {
		return 0, fmt.Errorf("grove: read %s: %w", path, err)
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	id, known := rs.files[rel]
	if !known {
		id = e.intern(rs.dir + "/" + rel)
		rs.files[rel] = id
	}
	rev := e.Write(func(w *Writer) {
		w.SetFileText(id, string(text))
		if !known {
			w.SetSourceRoot(rs.id, rs.sourceRoot())
			w.SetCrateGraph(e.crateGraph())
		}
	})
	slogctx.Debug(ctx, "updated file",
		"path", rel, "file", uint32(id), "new", !known, "revision", int64(rev))
	return id, nil
}

// RemoveFile drops a file from its source root.
func (e *Engine) RemoveFile(path string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	rs, rel, err := e.rootForPath(path)
	if err != nil {
		return err
	}
	id, ok := rs.files[rel]
	if !ok {
		return nil
	}
	delete(rs.files, rel)
	e.Write(func(w *Writer) {
		w.RemoveFileText(id)
		w.RemoveFileSourceRoot(id)
		w.SetSourceRoot(rs.id, rs.sourceRoot())
		w.SetCrateGraph(e.crateGraph())
	})
	e.logger.Debug("removed file", "path", path, "file", uint32(id))
	return nil
}

// FileID returns the id of a loaded file by path.
func (e *Engine) FileID(path string) (FileID, bool) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return 0, false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	id, ok := e.fileIDs[filepath.ToSlash(abs)]
	if !ok {
		return 0, false
	}
	// Interned ids outlive removals; only report current members.
	for _, rs := range e.roots {
		for _, fid := range rs.files {
			if fid == id {
				return id, true
			}
		}
	}
	return 0, false
}

// SourceRoots returns the ids of every loaded directory, in load order.
func (e *Engine) SourceRoots() []SourceRootID {
	e.mu.Lock()
	defer e.mu.Unlock()
	ids := make([]SourceRootID, len(e.roots))
	for i, rs := range e.roots {
		ids[i] = rs.id
	}
	return ids
}

// SourceRootDir returns the directory a source root was loaded from.
func (e *Engine) SourceRootDir(id SourceRootID) (string, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, rs := range e.roots {
		if rs.id == id {
			return filepath.FromSlash(rs.dir), true
		}
	}
	return "", false
}

func (e *Engine) discoverOptions() discover.Options {
	return discover.Options{Extension: e.conv.Extension, Ignore: e.ignore}
}

// intern returns the stable id of an absolute slash path. Callers hold mu.
func (e *Engine) intern(path string) FileID {
	if id, ok := e.fileIDs[path]; ok {
		return id
	}
	id := e.nextFile
	e.nextFile++
	e.fileIDs[path] = id
	return id
}

// rootForDir returns the root loaded from dir, creating it. Callers hold mu.
func (e *Engine) rootForDir(dir string) *rootState {
	for _, rs := range e.roots {
		if rs.dir == dir {
			return rs
		}
	}
	rs := &rootState{
		id:    SourceRootID(len(e.roots)),
		dir:   dir,
		files: make(map[string]FileID),
	}
	e.roots = append(e.roots, rs)
	return rs
}

// rootForPath finds the innermost loaded root containing path. Callers
// hold mu.
func (e *Engine) rootForPath(path string) (*rootState, string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, "", fmt.Errorf("grove: %s: %w", path, err)
	}
	abs = filepath.ToSlash(abs)

	var best *rootState
	for _, rs := range e.roots {
		if strings.HasPrefix(abs, rs.dir+"/") && (best == nil || len(rs.dir) > len(best.dir)) {
			best = rs
		}
	}
	if best == nil {
		return nil, "", fmt.Errorf("%w: %s", ErrNotInRoot, path)
	}
	return best, strings.TrimPrefix(abs, best.dir+"/"), nil
}

// crateGraph rebuilds the crate graph from every root's entry points.
// Callers hold mu.
func (e *Engine) crateGraph() *CrateGraph {
	g := input.NewCrateGraph()
	for _, rs := range e.roots {
		for _, rel := range discover.CrateRoots(rs.relPaths(), e.conv.Extension) {
			g.AddCrate(rs.files[rel])
		}
	}
	return g
}

// libraries lists the library roots. Callers hold mu.
func (e *Engine) libraries() []SourceRootID {
	var ids []SourceRootID
	for _, rs := range e.roots {
		if rs.library {
			ids = append(ids, rs.id)
		}
	}
	return ids
}
