package grove

import (
	"context"
	"fmt"

	"github.com/jward/grove/internal/input"
	"github.com/jward/grove/internal/module"
	"github.com/jward/grove/internal/query"
	"github.com/jward/grove/internal/syntax"
)

// Inputs. Values are only written by the Engine.
var (
	fileTextInput       = query.NewInput[input.FileID, string]("file_text")
	fileSourceRootInput = query.NewInput[input.FileID, input.SourceRootID]("file_source_root")
	sourceRootInput     = query.NewInput[input.SourceRootID, *input.SourceRoot]("source_root")
	librariesInput      = query.NewInput[struct{}, []input.SourceRootID]("libraries")
	crateGraphInput     = query.NewInput[struct{}, *input.CrateGraph]("crate_graph")
	conventionsInput    = query.NewInput[struct{}, module.Conventions]("conventions")
)

type scopeKey struct {
	root input.SourceRootID
	mod  module.ModuleID
}

// queries holds the derived queries of one Engine. They are built per
// engine because their compute functions close over the set itself.
type queries struct {
	fileSyntax  *query.Query[input.FileID, *syntax.File]
	fileLines   *query.Query[input.FileID, *syntax.LineIndex]
	submodules  *query.Query[module.Source, []module.Submodule]
	moduleTree  *query.Query[input.SourceRootID, *module.Tree]
	moduleScope *query.Query[scopeKey, *module.Scope]
}

func newQueries() *queries {
	q := &queries{}
	wrap := func(qs *query.Snapshot) *Snapshot { return &Snapshot{qs: qs, q: q} }

	q.fileSyntax = query.NewQuery("file_syntax", func(qs *query.Snapshot, file input.FileID) (*syntax.File, error) {
		text, _ := fileTextInput.Get(qs, file)
		f, err := syntax.Parse(context.Background(), []byte(text))
		if err != nil {
			return nil, fmt.Errorf("grove: parse file %d: %w", file, err)
		}
		return f, nil
	})
	q.fileLines = query.NewQuery("file_lines", func(qs *query.Snapshot, file input.FileID) (*syntax.LineIndex, error) {
		text, _ := fileTextInput.Get(qs, file)
		return syntax.NewLineIndex(text), nil
	})
	q.submodules = query.NewQuery("submodules", func(qs *query.Snapshot, src module.Source) ([]module.Submodule, error) {
		return module.Submodules(wrap(qs), src)
	})
	q.moduleTree = query.NewQuery("module_tree", func(qs *query.Snapshot, id input.SourceRootID) (*module.Tree, error) {
		return module.BuildTree(wrap(qs), id)
	})
	q.moduleScope = query.NewQuery("module_scope", func(qs *query.Snapshot, k scopeKey) (*module.Scope, error) {
		return module.ScopeOf(wrap(qs), k.root, k.mod)
	})
	return q
}

// Snapshot is a read-only view of an Engine pinned to the revision it was
// taken at. Snapshots are safe for concurrent use. Every method that
// computes something returns ErrCanceled once the Engine has been written
// to since the snapshot was taken; the caller should retry on a new
// snapshot.
type Snapshot struct {
	qs *query.Snapshot
	q  *queries
}

var _ module.Database = (*Snapshot)(nil)

// Revision returns the revision the snapshot is pinned to.
func (s *Snapshot) Revision() Revision { return s.qs.Revision() }

// IsCanceled reports whether the Engine was written to after the snapshot
// was taken.
func (s *Snapshot) IsCanceled() bool { return s.qs.IsCanceled() }

// CheckCanceled returns ErrCanceled if the snapshot is stale.
func (s *Snapshot) CheckCanceled() error { return s.qs.CheckCanceled() }

// Conventions returns the path conventions in effect.
func (s *Snapshot) Conventions() module.Conventions {
	if c, ok := conventionsInput.Get(s.qs, struct{}{}); ok {
		return c
	}
	return module.DefaultConventions()
}

// FileText returns the text of a file.
func (s *Snapshot) FileText(file FileID) (string, bool) {
	return fileTextInput.Get(s.qs, file)
}

// FileSourceRoot returns the source root a file belongs to.
func (s *Snapshot) FileSourceRoot(file FileID) (SourceRootID, bool) {
	return fileSourceRootInput.Get(s.qs, file)
}

// SourceRoot returns a source root.
func (s *Snapshot) SourceRoot(id SourceRootID) (*input.SourceRoot, bool) {
	return sourceRootInput.Get(s.qs, id)
}

// Libraries returns the source roots of library crates.
func (s *Snapshot) Libraries() []SourceRootID {
	libs, _ := librariesInput.Get(s.qs, struct{}{})
	return libs
}

// CrateGraph returns the crate graph; nil if none was set.
func (s *Snapshot) CrateGraph() *input.CrateGraph {
	g, _ := crateGraphInput.Get(s.qs, struct{}{})
	return g
}

// FilePath returns the path of a file when its source root resolves files
// by path.
func (s *Snapshot) FilePath(file FileID) (string, bool) {
	root, ok := s.FileSourceRoot(file)
	if !ok {
		return "", false
	}
	sr, ok := s.SourceRoot(root)
	if !ok {
		return "", false
	}
	p, ok := sr.Resolver.(interface {
		Path(input.FileID) (string, bool)
	})
	if !ok {
		return "", false
	}
	return p.Path(file)
}

// FileSyntax returns the parsed syntax tree of a file.
func (s *Snapshot) FileSyntax(file FileID) (*syntax.File, error) {
	return s.q.fileSyntax.Get(s.qs, file)
}

// FileLines returns the line index of a file.
func (s *Snapshot) FileLines(file FileID) (*syntax.LineIndex, error) {
	return s.q.fileLines.Get(s.qs, file)
}

// Submodules returns the submodules declared directly in src.
func (s *Snapshot) Submodules(src module.Source) ([]module.Submodule, error) {
	return s.q.submodules.Get(s.qs, src)
}

// ModuleTree returns the module forest of a source root. The tree is
// shared; callers must not modify it.
func (s *Snapshot) ModuleTree(id SourceRootID) (*module.Tree, error) {
	return s.q.moduleTree.Get(s.qs, id)
}

// ModuleScope returns the items declared directly in a module.
func (s *Snapshot) ModuleScope(root SourceRootID, id module.ModuleID) (*module.Scope, error) {
	return s.q.moduleScope.Get(s.qs, scopeKey{root: root, mod: id})
}
