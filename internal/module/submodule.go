package module

import (
	"fmt"

	"github.com/jward/grove/internal/syntax"
)

// SubmoduleKind distinguishes `mod name;` from `mod name { ... }`.
type SubmoduleKind int

const (
	// Declaration needs file resolution.
	Declaration SubmoduleKind = iota + 1
	// Definition has its body inline.
	Definition
)

func (k SubmoduleKind) String() string {
	switch k {
	case Declaration:
		return "declaration"
	case Definition:
		return "definition"
	default:
		return fmt.Sprintf("submodule(%d)", int(k))
	}
}

// Submodule is a module item found directly in a module source.
type Submodule struct {
	Name string
	Kind SubmoduleKind
	// Source is the inline source of a Definition; zero for declarations.
	Source Source
	// Decl is the mod_item in the declaring file.
	Decl syntax.NodeRef
}

// Submodules lists the module items declared directly in src, in source
// order. An inline source without a body has no submodules.
func Submodules(db Database, src Source) ([]Submodule, error) {
	mod, err := resolveSource(db, src)
	if err != nil {
		return nil, err
	}
	var subs []Submodule
	for _, m := range mod.Modules {
		sub := Submodule{Name: m.Name, Kind: Declaration, Decl: m.Ref}
		if m.HasBody {
			sub.Kind = Definition
			sub.Source = InlineSource(src.File, m.Ref)
		}
		subs = append(subs, sub)
	}
	return subs, nil
}
