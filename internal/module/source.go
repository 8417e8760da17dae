package module

import (
	"fmt"

	"github.com/jward/grove/internal/input"
	"github.com/jward/grove/internal/syntax"
)

// Source says where a module's content lives: a whole file, or an inline
// `mod name { ... }` node inside a file. Sources are comparable and used as
// map keys.
type Source struct {
	File input.FileID
	// Inline is the mod_item of an inline module; zero for a whole file.
	Inline syntax.NodeRef
}

// FileSource returns the Source for a whole file.
func FileSource(file input.FileID) Source {
	return Source{File: file}
}

// InlineSource returns the Source for an inline module node.
func InlineSource(file input.FileID, ref syntax.NodeRef) Source {
	return Source{File: file, Inline: ref}
}

// IsInline reports whether the source is an inline module.
func (s Source) IsInline() bool {
	return !s.Inline.IsZero()
}

func (s Source) String() string {
	if s.IsInline() {
		return fmt.Sprintf("file#%d@%s", s.File, s.Inline)
	}
	return fmt.Sprintf("file#%d", s.File)
}

// resolveSource returns the item list holding the module's items. An inline
// source that no longer names a mod item resolves to an empty list.
func resolveSource(db Database, src Source) (*syntax.Module, error) {
	f, err := db.FileSyntax(src.File)
	if err != nil {
		return nil, err
	}
	if !src.IsInline() {
		return f.Root(), nil
	}
	if mod := f.ModuleAt(src.Inline); mod != nil {
		return mod, nil
	}
	return &syntax.Module{}, nil
}
