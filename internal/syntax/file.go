// Package syntax parses Rust source with tree-sitter and extracts the
// module structure the analysis needs: module items, named items and use
// declarations, keyed by stable node references.
package syntax

import (
	"context"
	"fmt"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
)

// Node kinds used by the analysis.
const (
	KindSourceFile = "source_file"
	KindModItem    = "mod_item"
	KindDeclList   = "declaration_list"
	KindUse        = "use_declaration"
)

// itemKinds maps named item node types to the kind reported in scopes.
var itemKinds = map[string]string{
	"function_item":            "function",
	"function_signature_item":  "function",
	"struct_item":              "struct",
	"enum_item":                "enum",
	"union_item":               "union",
	"type_item":                "type",
	"trait_item":               "trait",
	"const_item":               "const",
	"static_item":              "static",
	"mod_item":                 "module",
	"macro_definition":         "macro",
	"extern_crate_declaration": "extern_crate",
}

// File is the module structure of one parsed source file. The syntax tree
// is released once Parse has walked it, so a File holds only plain values
// and may be shared between goroutines.
type File struct {
	root     *Module
	byRef    map[NodeRef]*Module
	hasError bool
}

// Module is one item list: the whole file, or the body of a `mod` item.
type Module struct {
	// Name is the module name with any r# prefix removed; empty for the
	// file root.
	Name string
	// Ref is the mod_item; zero for the file root.
	Ref NodeRef
	// Path holds the names of the enclosing inline modules and this one,
	// outermost first. Nil for the file root.
	Path []string
	// HasBody is false for `mod name;`.
	HasBody bool
	// Modules are the mod items directly in this list, in source order.
	Modules []*Module
	Items   []Item
	// Uses holds the argument text of each use declaration, e.g. "std::fmt".
	Uses []string
}

// Item is a named item declared directly in an item list.
type Item struct {
	Name string
	Kind string
	Ref  NodeRef
}

// Parse parses Rust source. Malformed input still produces a File; the
// only failure is ctx cancellation.
func Parse(ctx context.Context, src []byte) (*File, error) {
	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(Language())

	tree, err := parser.ParseCtx(ctx, nil, src)
	if err != nil {
		return nil, fmt.Errorf("syntax: parse: %w", err)
	}
	defer tree.Close()

	root := tree.RootNode()
	x := extractor{src: src, byRef: make(map[NodeRef]*Module)}
	f := &File{root: &Module{HasBody: true}, byRef: x.byRef, hasError: root.HasError()}
	x.fill(f.root, root)
	return f, nil
}

// Root returns the file-level item list. The model is shared; callers
// must not modify it.
func (f *File) Root() *Module {
	return f.root
}

// HasErrors reports whether the source had error or missing nodes.
func (f *File) HasErrors() bool {
	return f.hasError
}

// ModuleAt returns the module whose mod_item spans exactly ref, or nil.
func (f *File) ModuleAt(ref NodeRef) *Module {
	if ref.IsZero() {
		return nil
	}
	return f.byRef[ref]
}

// NodeRef identifies a node by its byte range. It stays valid for as long
// as the file text it was taken from is unchanged. The zero NodeRef refers
// to no node.
type NodeRef struct {
	Start uint32
	End   uint32
}

func refOf(n *sitter.Node) NodeRef {
	return NodeRef{Start: n.StartByte(), End: n.EndByte()}
}

// IsZero reports whether r is the zero reference.
func (r NodeRef) IsZero() bool {
	return r.Start == 0 && r.End == 0
}

func (r NodeRef) String() string {
	return fmt.Sprintf("%d..%d", r.Start, r.End)
}

// Ident returns name without the raw identifier prefix, so `r#type`
// becomes `type`.
func Ident(name string) string {
	return strings.TrimPrefix(name, "r#")
}

type extractor struct {
	src   []byte
	byRef map[NodeRef]*Module
}

// fill records the items of list into m, descending into inline module
// bodies. Items without a name (possible in broken input) are skipped.
func (x *extractor) fill(m *Module, list *sitter.Node) {
	for i := 0; i < int(list.NamedChildCount()); i++ {
		c := list.NamedChild(i)
		switch c.Type() {
		case KindUse:
			if arg := c.ChildByFieldName("argument"); arg != nil {
				m.Uses = append(m.Uses, arg.Content(x.src))
			}
			continue
		case KindModItem:
			x.module(m, c)
		}

		kind, ok := itemKinds[c.Type()]
		if !ok {
			continue
		}
		name := c.ChildByFieldName("name")
		if alias := c.ChildByFieldName("alias"); alias != nil {
			name = alias
		}
		if name == nil {
			continue
		}
		m.Items = append(m.Items, Item{Name: Ident(name.Content(x.src)), Kind: kind, Ref: refOf(c)})
	}
}

func (x *extractor) module(parent *Module, n *sitter.Node) {
	name := n.ChildByFieldName("name")
	if name == nil {
		return
	}
	ident := Ident(name.Content(x.src))
	path := make([]string, len(parent.Path), len(parent.Path)+1)
	copy(path, parent.Path)
	child := &Module{
		Name: ident,
		Ref:  refOf(n),
		Path: append(path, ident),
	}
	if body := n.ChildByFieldName("body"); body != nil {
		child.HasBody = true
		x.fill(child, body)
	}
	parent.Modules = append(parent.Modules, child)
	x.byRef[child.Ref] = child
}
