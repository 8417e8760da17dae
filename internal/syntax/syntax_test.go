package syntax

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const rustTestSource = `use std::fmt;

mod a;

pub mod b {
    fn f() {}
    struct S;
    mod c;
}

fn g() {}
extern crate serde as sd;
`

func parseTest(t *testing.T, src string) *File {
	t.Helper()
	f, err := Parse(context.Background(), []byte(src))
	require.NoError(t, err)
	return f
}

func TestIsSourceFile(t *testing.T) {
	t.Parallel()
	assert.True(t, IsSourceFile("src/lib.rs", ""))
	assert.True(t, IsSourceFile("src/LIB.RS", ".rs"))
	assert.False(t, IsSourceFile("Cargo.toml", ""))
	assert.True(t, IsSourceFile("x.rsx", ".rsx"))
}

func TestModules(t *testing.T) {
	t.Parallel()
	f := parseTest(t, rustTestSource)
	assert.False(t, f.HasErrors())

	root := f.Root()
	assert.Empty(t, root.Name)
	assert.True(t, root.Ref.IsZero())
	assert.Nil(t, root.Path)

	mods := root.Modules
	require.Len(t, mods, 2)
	assert.Equal(t, "a", mods[0].Name)
	assert.False(t, mods[0].HasBody)
	assert.Equal(t, []string{"a"}, mods[0].Path)
	assert.Equal(t, "b", mods[1].Name)
	assert.True(t, mods[1].HasBody)

	nested := mods[1].Modules
	require.Len(t, nested, 1)
	assert.Equal(t, "c", nested[0].Name)
	assert.False(t, nested[0].HasBody)
	assert.Equal(t, []string{"b", "c"}, nested[0].Path)
	assert.Empty(t, nested[0].Modules)
}

func TestItems(t *testing.T) {
	t.Parallel()
	f := parseTest(t, rustTestSource)

	var got []string
	for _, it := range f.Root().Items {
		got = append(got, it.Kind+":"+it.Name)
	}
	assert.Equal(t, []string{"module:a", "module:b", "function:g", "extern_crate:sd"}, got)

	b := f.Root().Modules[1]
	got = nil
	for _, it := range b.Items {
		got = append(got, it.Kind+":"+it.Name)
	}
	assert.Equal(t, []string{"function:f", "struct:S", "module:c"}, got)

	assert.Equal(t, []string{"std::fmt"}, f.Root().Uses)
	assert.Empty(t, b.Uses)
}

func TestModuleAt(t *testing.T) {
	t.Parallel()
	f := parseTest(t, rustTestSource)
	b := f.Root().Modules[1]
	c := b.Modules[0]

	assert.False(t, c.Ref.IsZero())
	assert.Same(t, c, f.ModuleAt(c.Ref))
	assert.Same(t, b, f.ModuleAt(b.Ref))
	assert.Equal(t, "mod c;", rustTestSource[c.Ref.Start:c.Ref.End])

	assert.Nil(t, f.ModuleAt(NodeRef{}))
	assert.Nil(t, f.ModuleAt(NodeRef{Start: 1, End: 2}))
}

func TestRawIdentifiers(t *testing.T) {
	t.Parallel()
	f := parseTest(t, "mod r#type;\nmod r#match {\n    fn r#fn() {}\n}\n")
	mods := f.Root().Modules
	require.Len(t, mods, 2)
	assert.Equal(t, "type", mods[0].Name)
	assert.Equal(t, "match", mods[1].Name)
	assert.Equal(t, []string{"match"}, mods[1].Path)
	require.Len(t, mods[1].Items, 1)
	assert.Equal(t, "fn", mods[1].Items[0].Name)

	assert.Equal(t, "type", Ident("r#type"))
	assert.Equal(t, "plain", Ident("plain"))
}

func TestParse_MalformedInput(t *testing.T) {
	t.Parallel()
	f := parseTest(t, "mod broken {\n  fn (\n")
	assert.True(t, f.HasErrors())
	assert.NotPanics(t, func() {
		var walk func(m *Module)
		walk = func(m *Module) {
			for _, c := range m.Modules {
				walk(c)
			}
		}
		walk(f.Root())
	})
}

func TestFile_ConcurrentReads(t *testing.T) {
	t.Parallel()
	f := parseTest(t, rustTestSource)

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			b := f.ModuleAt(f.Root().Modules[1].Ref)
			assert.Len(t, b.Items, 3)
			assert.Equal(t, []string{"b", "c"}, b.Modules[0].Path)
		}()
	}
	wg.Wait()
}

func TestLineIndex(t *testing.T) {
	t.Parallel()
	li := NewLineIndex("ab\ncd\n\nx")
	assert.Equal(t, 4, li.Lines())
	assert.Equal(t, Position{Line: 0, Col: 0}, li.Position(0))
	assert.Equal(t, Position{Line: 0, Col: 2}, li.Position(2))
	assert.Equal(t, Position{Line: 1, Col: 0}, li.Position(3))
	assert.Equal(t, Position{Line: 1, Col: 1}, li.Position(4))
	assert.Equal(t, Position{Line: 2, Col: 0}, li.Position(6))
	assert.Equal(t, Position{Line: 3, Col: 0}, li.Position(7))
}
