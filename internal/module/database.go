// Package module reconstructs the module hierarchy of a source root from
// `mod` items and a file-resolution capability.
//
// The tree is built recursively: every member file is a root candidate,
// each module's submodules are resolved to files or inline bodies, and a
// file claimed by a declaration is re-parented under the declaring link.
// Every entry point accepts a Database so results can be memoized and
// canceled by the caller's query engine.
package module

import (
	"github.com/jward/grove/internal/input"
	"github.com/jward/grove/internal/syntax"
)

// Database is what the module analysis reads. Implementations memoize
// Submodules and ModuleTree; CheckCanceled returns query.ErrCanceled once
// the snapshot the database reads from has been superseded.
type Database interface {
	CheckCanceled() error
	Conventions() Conventions
	SourceRoot(id input.SourceRootID) (*input.SourceRoot, bool)
	FileSyntax(file input.FileID) (*syntax.File, error)
	Submodules(src Source) ([]Submodule, error)
	ModuleTree(id input.SourceRootID) (*Tree, error)
}

// Conventions are the path rules used to resolve `mod name;` declarations.
type Conventions struct {
	// Extension of source files, including the dot.
	Extension string
	// DirOwnerStems are the file stems allowed to own a directory of
	// submodules.
	DirOwnerStems []string
	// DirModuleStem is the stem of a directory's module file ("mod" for
	// foo/mod.rs).
	DirModuleStem string
}

// DefaultConventions returns the standard Rust layout rules.
func DefaultConventions() Conventions {
	return Conventions{
		Extension:     syntax.Extension,
		DirOwnerStems: []string{"mod", "lib", "main"},
		DirModuleStem: "mod",
	}
}

func (c Conventions) isDirOwner(stem string) bool {
	for _, s := range c.DirOwnerStems {
		if s == stem {
			return true
		}
	}
	return false
}
