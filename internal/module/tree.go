package module

import (
	"slices"
	"sort"

	"github.com/jward/grove/internal/input"
	"github.com/jward/grove/internal/syntax"
)

// ModuleID indexes a module in the Tree that produced it.
type ModuleID int

// LinkID indexes a link in the Tree that produced it.
type LinkID int

// NoLink is the parent of a root module.
const NoLink LinkID = -1

// ModuleData is one module of a tree.
type ModuleData struct {
	Source   Source
	Parent   LinkID
	Children []LinkID
}

// LinkData is one `mod` item. PointsTo is empty when unresolved and has
// more than one entry when several candidates exist.
type LinkData struct {
	Name     string
	Owner    ModuleID
	PointsTo []ModuleID
	Problem  *Problem
	// Decl is the mod_item in the owner's file.
	Decl syntax.NodeRef
}

// Tree is the module forest of one source root. A Tree is never modified
// after BuildTree returns and may be shared between goroutines.
type Tree struct {
	mods     []ModuleData
	links    []LinkData
	roots    []ModuleID
	bySource map[Source]ModuleID
}

func (t *Tree) pushModule(src Source, parent LinkID) ModuleID {
	id := ModuleID(len(t.mods))
	t.mods = append(t.mods, ModuleData{Source: src, Parent: parent})
	return id
}

func (t *Tree) pushLink(name string, owner ModuleID, decl syntax.NodeRef) LinkID {
	id := LinkID(len(t.links))
	t.links = append(t.links, LinkData{Name: name, Owner: owner, Decl: decl})
	t.mods[owner].Children = append(t.mods[owner].Children, id)
	return id
}

func (t *Tree) finish(roots map[input.FileID]ModuleID) {
	for _, id := range roots {
		t.roots = append(t.roots, id)
	}
	sort.Slice(t.roots, func(i, j int) bool { return t.roots[i] < t.roots[j] })
	t.bySource = make(map[Source]ModuleID, len(t.mods))
	for i, m := range t.mods {
		t.bySource[m.Source] = ModuleID(i)
	}
}

// Len returns the number of modules.
func (t *Tree) Len() int { return len(t.mods) }

// Roots returns the modules no declaration points to, in module order.
func (t *Tree) Roots() []ModuleID { return slices.Clone(t.roots) }

// Modules returns every module id in allocation order.
func (t *Tree) Modules() []ModuleID {
	ids := make([]ModuleID, len(t.mods))
	for i := range ids {
		ids[i] = ModuleID(i)
	}
	return ids
}

// Module returns a copy of the data of id. It panics if id is not from
// this tree.
func (t *Tree) Module(id ModuleID) ModuleData {
	m := t.mods[id]
	m.Children = slices.Clone(m.Children)
	return m
}

// Link returns a copy of the data of id. It panics if id is not from this
// tree.
func (t *Tree) Link(id LinkID) LinkData {
	l := t.links[id]
	l.PointsTo = slices.Clone(l.PointsTo)
	if l.Problem != nil {
		p := *l.Problem
		l.Problem = &p
	}
	return l
}

// Links returns every link id in allocation order.
func (t *Tree) Links() []LinkID {
	ids := make([]LinkID, len(t.links))
	for i := range ids {
		ids[i] = LinkID(i)
	}
	return ids
}

// Has reports whether id belongs to the tree.
func (t *Tree) Has(id ModuleID) bool {
	return id >= 0 && int(id) < len(t.mods)
}

// ParentLink returns the link that declares id, or NoLink for roots.
func (t *Tree) ParentLink(id ModuleID) LinkID { return t.mods[id].Parent }

// Parent returns the module owning the link that declares id.
func (t *Tree) Parent(id ModuleID) (ModuleID, bool) {
	l := t.mods[id].Parent
	if l == NoLink {
		return 0, false
	}
	return t.links[l].Owner, true
}

// Children returns the modules the links of id point to, in link order.
func (t *Tree) Children(id ModuleID) []ModuleID {
	var out []ModuleID
	for _, l := range t.mods[id].Children {
		out = append(out, t.links[l].PointsTo...)
	}
	return out
}

// Child returns the first target of the link of id named name.
func (t *Tree) Child(id ModuleID, name string) (ModuleID, bool) {
	for _, l := range t.mods[id].Children {
		link := t.links[l]
		if link.Name == name && len(link.PointsTo) > 0 {
			return link.PointsTo[0], true
		}
	}
	return 0, false
}

// Name returns the declared name of id; roots have no name.
func (t *Tree) Name(id ModuleID) string {
	l := t.mods[id].Parent
	if l == NoLink {
		return ""
	}
	return t.links[l].Name
}

// Path returns the names from the crate root down to id. A root's path is
// empty.
func (t *Tree) Path(id ModuleID) []string {
	var names []string
	for {
		l := t.mods[id].Parent
		if l == NoLink {
			break
		}
		names = append(names, t.links[l].Name)
		id = t.links[l].Owner
	}
	for i, j := 0, len(names)-1; i < j; i, j = i+1, j-1 {
		names[i], names[j] = names[j], names[i]
	}
	return names
}

// CrateRoot returns the root module above id.
func (t *Tree) CrateRoot(id ModuleID) ModuleID {
	for {
		p, ok := t.Parent(id)
		if !ok {
			return id
		}
		id = p
	}
}

// ModuleForSource returns the module whose content is src.
func (t *Tree) ModuleForSource(src Source) (ModuleID, bool) {
	id, ok := t.bySource[src]
	return id, ok
}

// ModulesForFile returns the modules whose content lives in file: the file
// module first, then its inline modules in allocation order.
func (t *Tree) ModulesForFile(file input.FileID) []ModuleID {
	var ids []ModuleID
	if id, ok := t.bySource[FileSource(file)]; ok {
		ids = append(ids, id)
	}
	for i, m := range t.mods {
		if m.Source.File == file && m.Source.IsInline() {
			ids = append(ids, ModuleID(i))
		}
	}
	return ids
}

// Problems returns the links carrying a problem, in link order.
func (t *Tree) Problems() []LinkID {
	var ids []LinkID
	for i, l := range t.links {
		if l.Problem != nil {
			ids = append(ids, LinkID(i))
		}
	}
	return ids
}
