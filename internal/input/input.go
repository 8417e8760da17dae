// Package input defines the externally supplied facts the analysis is
// computed from: file identities, source roots, the file-resolution
// capability, and the crate graph.
package input

import (
	"slices"
)

// FileID is an opaque, stable identifier for a source file.
type FileID uint32

// SourceRootID identifies a SourceRoot.
type SourceRootID uint32

// CrateID identifies a crate in the CrateGraph.
type CrateID uint32

// FileResolver is the pluggable file-resolution capability of a source
// root. Implementations must be pure functions of the file set they were
// built from; a path that does not exist resolves to false, never an error.
type FileResolver interface {
	// FileStem returns the file name without directory or extension.
	FileStem(file FileID) string
	// Resolve interprets rel relative to file and returns the file it names.
	Resolve(file FileID, rel string) (FileID, bool)
}

// SourceRoot is a group of files sharing one resolution namespace.
type SourceRoot struct {
	// Files holds the member files sorted by ID without duplicates.
	Files    []FileID
	Resolver FileResolver
}

// NewSourceRoot builds a SourceRoot, sorting and deduplicating files.
func NewSourceRoot(resolver FileResolver, files ...FileID) *SourceRoot {
	sorted := slices.Clone(files)
	slices.Sort(sorted)
	return &SourceRoot{
		Files:    slices.Compact(sorted),
		Resolver: resolver,
	}
}

// Contains reports whether file is a member of the root.
func (r *SourceRoot) Contains(file FileID) bool {
	_, ok := slices.BinarySearch(r.Files, file)
	return ok
}

// CrateGraph maps crates to their root files.
type CrateGraph struct {
	roots map[CrateID]FileID
}

// NewCrateGraph creates an empty graph.
func NewCrateGraph() *CrateGraph {
	return &CrateGraph{roots: make(map[CrateID]FileID)}
}

// AddCrate registers a crate rooted at file and returns its ID.
func (g *CrateGraph) AddCrate(file FileID) CrateID {
	id := CrateID(len(g.roots))
	g.roots[id] = file
	return id
}

// CrateRoot returns the root file of a crate.
func (g *CrateGraph) CrateRoot(id CrateID) (FileID, bool) {
	if g == nil {
		return 0, false
	}
	f, ok := g.roots[id]
	return f, ok
}

// CratesByRoot returns the crates rooted at file, in ID order.
func (g *CrateGraph) CratesByRoot(file FileID) []CrateID {
	if g == nil {
		return nil
	}
	var ids []CrateID
	for id, root := range g.roots {
		if root == file {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	return ids
}

// Len returns the number of crates.
func (g *CrateGraph) Len() int {
	if g == nil {
		return 0
	}
	return len(g.roots)
}
