package module

import (
	"fmt"
	"slices"

	"github.com/jward/grove/internal/input"
	"github.com/jward/grove/internal/syntax"
)

// Scope holds the items declared directly in a module.
type Scope struct {
	Items []syntax.Item
	// Imports are the arguments of the module's use declarations.
	Imports []string
}

// Lookup returns the first item named name.
func (s *Scope) Lookup(name string) (syntax.Item, bool) {
	for _, it := range s.Items {
		if it.Name == name {
			return it, true
		}
	}
	return syntax.Item{}, false
}

// ScopeOf derives the direct-item scope of module id in the tree of the
// source root. Nested modules appear as items but are not entered.
func ScopeOf(db Database, root input.SourceRootID, id ModuleID) (*Scope, error) {
	tree, err := db.ModuleTree(root)
	if err != nil {
		return nil, err
	}
	if !tree.Has(id) {
		return nil, fmt.Errorf("module: scope: no module %d in source root %d", id, root)
	}
	mod, err := resolveSource(db, tree.Module(id).Source)
	if err != nil {
		return nil, err
	}
	return &Scope{
		Items:   slices.Clone(mod.Items),
		Imports: slices.Clone(mod.Uses),
	}, nil
}
