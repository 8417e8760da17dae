package grove

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	slogctx "github.com/veqryn/slog-context"

	"github.com/jward/grove/internal/store"
)

// ExportGraph converts the module tree of a source root into store rows.
// dir labels the root in the store.
func (s *Snapshot) ExportGraph(root SourceRootID, dir string) (*store.Graph, error) {
	tree, err := s.ModuleTree(root)
	if err != nil {
		return nil, err
	}
	sr, ok := s.SourceRoot(root)
	if !ok {
		return nil, fmt.Errorf("grove: export: unknown source root %d", root)
	}

	g := &store.Graph{Root: store.SourceRoot{Dir: filepath.ToSlash(dir), Revision: int64(s.Revision())}}
	for _, f := range sr.Files {
		lines, err := s.FileLines(f)
		if err != nil {
			return nil, err
		}
		p, _ := s.FilePath(f)
		g.Files = append(g.Files, store.File{FileID: int64(f), Path: p, LineCount: lines.Lines()})
	}

	isRoot := make(map[ModuleID]bool, len(tree.Roots()))
	for _, id := range tree.Roots() {
		isRoot[id] = true
	}
	for _, id := range tree.Modules() {
		data := tree.Module(id)
		m := store.Module{
			ModuleID: int64(id),
			FileID:   int64(data.Source.File),
			Path:     strings.Join(tree.Path(id), "::"),
			IsRoot:   isRoot[id],
		}
		if data.Source.IsInline() {
			start, end := int64(data.Source.Inline.Start), int64(data.Source.Inline.End)
			m.InlineStart, m.InlineEnd = &start, &end
		}
		if data.Parent != NoLink {
			parent := int64(data.Parent)
			m.ParentLink = &parent
		}
		g.Modules = append(g.Modules, m)
	}

	for _, lid := range tree.Links() {
		link := tree.Link(lid)
		lines, err := s.FileLines(tree.Module(link.Owner).Source.File)
		if err != nil {
			return nil, err
		}
		pos := lines.Position(link.Decl.Start)
		l := store.Link{
			LinkID:      int64(lid),
			OwnerModule: int64(link.Owner),
			Name:        link.Name,
			Line:        pos.Line + 1,
			Col:         pos.Col + 1,
		}
		if link.Problem != nil {
			l.Problem = link.Problem.Kind.String()
			l.Candidate = link.Problem.Candidate
			l.MoveTo = link.Problem.MoveTo
		}
		g.Links = append(g.Links, l)
		for i, target := range link.PointsTo {
			g.Targets = append(g.Targets, store.LinkTarget{LinkID: int64(lid), Ordinal: i, ModuleID: int64(target)})
		}
	}
	return g, nil
}

// Index exports every loaded source root into st, retrying on fresh
// snapshots when a write lands mid-export. It returns the number of roots
// whose stored graph changed.
func (e *Engine) Index(ctx context.Context, st *store.Store) (int, error) {
	changed := 0
	for _, root := range e.SourceRoots() {
		dir, _ := e.SourceRootDir(root)
		ctx := e.logContext(ctx, "root", uint32(root), "dir", filepath.ToSlash(dir))
		g, err := Retry(ctx, e.Snapshot, func(s *Snapshot) (*store.Graph, error) {
			return s.ExportGraph(root, dir)
		})
		if err != nil {
			return changed, fmt.Errorf("grove: index %s: %w", dir, err)
		}
		ok, err := st.ReplaceSourceRoot(g)
		if err != nil {
			return changed, fmt.Errorf("grove: index %s: %w", dir, err)
		}
		if ok {
			changed++
		}
		slogctx.Debug(ctx, "indexed source root", "modules", len(g.Modules), "changed", ok)
	}
	return changed, nil
}
