package grove

import (
	"context"
	"errors"
	"fmt"
	"path"
	"sort"

	"github.com/jward/grove/internal/module"
)

// ModuleRef names a module across source roots.
type ModuleRef struct {
	Root   SourceRootID
	Module ModuleID
}

// fileModule returns the tree holding file and the module whose content is
// the whole file.
func (s *Snapshot) fileModule(file FileID) (*Tree, SourceRootID, ModuleID, bool, error) {
	root, ok := s.FileSourceRoot(file)
	if !ok {
		return nil, 0, 0, false, nil
	}
	tree, err := s.ModuleTree(root)
	if err != nil {
		return nil, 0, 0, false, err
	}
	id, ok := tree.ModuleForSource(module.FileSource(file))
	return tree, root, id, ok, nil
}

// ParentModules returns the modules declaring file as a submodule. A file
// that is a crate root or not referenced by any declaration has none.
func (s *Snapshot) ParentModules(file FileID) ([]ModuleRef, error) {
	tree, root, id, ok, err := s.fileModule(file)
	if err != nil || !ok {
		return nil, err
	}
	parent, ok := tree.Parent(id)
	if !ok {
		return nil, nil
	}
	return []ModuleRef{{Root: root, Module: parent}}, nil
}

// CrateForFile returns the crates whose root module contains file.
func (s *Snapshot) CrateForFile(file FileID) ([]CrateID, error) {
	tree, _, id, ok, err := s.fileModule(file)
	if err != nil || !ok {
		return nil, err
	}
	top := tree.Module(tree.CrateRoot(id)).Source.File
	return s.CrateGraph().CratesByRoot(top), nil
}

// Diagnostic is a module problem rendered for users.
type Diagnostic struct {
	File    FileID      `json:"file"`
	Path    string      `json:"path,omitempty"`
	Line    int         `json:"line"` // 1-based
	Col     int         `json:"col"`  // 1-based, in bytes
	Module  string      `json:"module"`
	Kind    ProblemKind `json:"-"`
	Code    string      `json:"code"`
	Message string      `json:"message"`
	// Fix is a suggested action; empty when there is none.
	Fix string `json:"fix,omitempty"`
}

// Diagnostics returns the problems of the `mod` items written in file, in
// source order.
func (s *Snapshot) Diagnostics(file FileID) ([]Diagnostic, error) {
	root, ok := s.FileSourceRoot(file)
	if !ok {
		return nil, nil
	}
	tree, err := s.ModuleTree(root)
	if err != nil {
		return nil, err
	}
	lines, err := s.FileLines(file)
	if err != nil {
		return nil, err
	}
	filePath, hasPath := s.FilePath(file)

	var diags []Diagnostic
	for _, mid := range tree.ModulesForFile(file) {
		for _, lid := range tree.Module(mid).Children {
			link := tree.Link(lid)
			if link.Problem == nil {
				continue
			}
			pos := lines.Position(link.Decl.Start)
			d := Diagnostic{
				File:    file,
				Path:    filePath,
				Line:    pos.Line + 1,
				Col:     pos.Col + 1,
				Module:  link.Name,
				Kind:    link.Problem.Kind,
				Code:    link.Problem.Kind.String(),
				Message: link.Problem.Message(),
			}
			switch link.Problem.Kind {
			case module.NotDirOwner:
				if hasPath {
					d.Fix = fmt.Sprintf("move %s to %s", filePath, path.Join(filePath, link.Problem.MoveTo))
				}
			case module.UnresolvedModule:
				if hasPath {
					d.Fix = fmt.Sprintf("create %s", path.Join(filePath, link.Problem.Candidate))
				}
			}
			diags = append(diags, d)
		}
	}
	sort.SliceStable(diags, func(i, j int) bool {
		if diags[i].Line != diags[j].Line {
			return diags[i].Line < diags[j].Line
		}
		return diags[i].Col < diags[j].Col
	})
	return diags, nil
}

// Retry runs fn on fresh snapshots from fork until it finishes without
// ErrCanceled or ctx is done.
func Retry[T any](ctx context.Context, fork func() *Snapshot, fn func(*Snapshot) (T, error)) (T, error) {
	for {
		if err := ctx.Err(); err != nil {
			var zero T
			return zero, err
		}
		v, err := fn(fork())
		if errors.Is(err, ErrCanceled) {
			continue
		}
		return v, err
	}
}
