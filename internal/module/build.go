package module

import (
	"errors"
	"fmt"

	"github.com/jward/grove/internal/input"
)

// ErrNoSourceRoot is returned for a source root id that was never set.
var ErrNoSourceRoot = errors.New("module: unknown source root")

type builder struct {
	db       Database
	conv     Conventions
	resolver input.FileResolver
	tree     *Tree
	visited  map[Source]struct{}
	roots    map[input.FileID]ModuleID
}

// BuildTree assembles the module forest of a source root. Member files are
// visited in FileID order; every file not reached through a declaration
// becomes a root. The only error besides ErrNoSourceRoot is the database's
// cancellation error.
func BuildTree(db Database, id input.SourceRootID) (*Tree, error) {
	if err := db.CheckCanceled(); err != nil {
		return nil, err
	}
	sr, ok := db.SourceRoot(id)
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrNoSourceRoot, id)
	}
	b := &builder{
		db:       db,
		conv:     db.Conventions(),
		resolver: sr.Resolver,
		tree:     &Tree{},
		visited:  make(map[Source]struct{}),
		roots:    make(map[input.FileID]ModuleID),
	}
	for _, file := range sr.Files {
		if _, seen := b.visited[FileSource(file)]; seen {
			continue
		}
		mid, err := b.expand(NoLink, FileSource(file))
		if err != nil {
			return nil, err
		}
		b.roots[file] = mid
	}
	b.tree.finish(b.roots)
	return b.tree, nil
}

func (b *builder) expand(parent LinkID, src Source) (ModuleID, error) {
	if err := b.db.CheckCanceled(); err != nil {
		return 0, err
	}
	b.visited[src] = struct{}{}
	id := b.tree.pushModule(src, parent)

	subs, err := b.db.Submodules(src)
	if err != nil {
		return 0, err
	}
	for _, sub := range subs {
		link := b.tree.pushLink(sub.Name, id, sub.Decl)
		var (
			points  []ModuleID
			problem *Problem
		)
		switch sub.Kind {
		case Declaration:
			points, problem, err = b.declare(link, src, sub.Name)
		case Definition:
			points, problem, err = b.define(link, sub.Source)
		}
		if err != nil {
			return 0, err
		}
		b.tree.links[link].PointsTo = points
		b.tree.links[link].Problem = problem
	}
	return id, nil
}

func (b *builder) declare(link LinkID, src Source, name string) ([]ModuleID, *Problem, error) {
	if b.resolver == nil {
		return nil, &Problem{Kind: UnresolvedModule, Candidate: "../" + name + b.conv.Extension}, nil
	}
	dir, err := b.inlineDir(src)
	if err != nil {
		return nil, nil, err
	}
	cands, problem := resolveCandidates(b.conv, b.resolver, src.File, dir, name)

	var points []ModuleID
	for _, c := range cands {
		if mid, ok := b.roots[c.file]; ok {
			b.tree.mods[mid].Parent = link
			delete(b.roots, c.file)
			points = append(points, mid)
			continue
		}
		next := FileSource(c.file)
		if _, seen := b.visited[next]; seen {
			if problem == nil {
				problem = &Problem{Kind: AlreadyClaimed, Candidate: c.path}
			}
			continue
		}
		mid, err := b.expand(link, next)
		if err != nil {
			return nil, nil, err
		}
		points = append(points, mid)
	}
	return points, problem, nil
}

func (b *builder) define(link LinkID, src Source) ([]ModuleID, *Problem, error) {
	if _, seen := b.visited[src]; seen {
		return nil, &Problem{Kind: AlreadyClaimed, Candidate: src.String()}, nil
	}
	mid, err := b.expand(link, src)
	if err != nil {
		return nil, nil, err
	}
	return []ModuleID{mid}, nil, nil
}

// inlineDir returns the inline module names enclosing declarations in src.
func (b *builder) inlineDir(src Source) ([]string, error) {
	if !src.IsInline() {
		return nil, nil
	}
	mod, err := resolveSource(b.db, src)
	if err != nil {
		return nil, err
	}
	return mod.Path, nil
}
