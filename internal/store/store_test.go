package store

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := NewStore(dbPath)
	require.NoError(t, err)
	require.NoError(t, s.Migrate())
	t.Cleanup(func() { s.Close() })
	return s
}

func ptr[T any](v T) *T { return &v }

// testGraph is lib.rs declaring `mod a;` (resolved) and `mod gone;`
// (unresolved), plus an inline module b.
func testGraph(dir string) *Graph {
	return &Graph{
		Root: SourceRoot{Dir: dir, Revision: 3},
		Files: []File{
			{FileID: 1, Path: "src/a.rs", LineCount: 1},
			{FileID: 2, Path: "src/lib.rs", LineCount: 3},
		},
		Modules: []Module{
			{ModuleID: 0, FileID: 2, Path: "", IsRoot: true},
			{ModuleID: 1, FileID: 1, ParentLink: ptr(int64(0)), Path: "a"},
			{ModuleID: 2, FileID: 2, InlineStart: ptr(int64(20)), InlineEnd: ptr(int64(30)), ParentLink: ptr(int64(2)), Path: "b"},
		},
		Links: []Link{
			{LinkID: 0, OwnerModule: 0, Name: "a", Line: 1, Col: 1},
			{LinkID: 1, OwnerModule: 0, Name: "gone", Line: 2, Col: 1, Problem: "unresolved_module", Candidate: "../gone.rs"},
			{LinkID: 2, OwnerModule: 0, Name: "b", Line: 3, Col: 1},
		},
		Targets: []LinkTarget{
			{LinkID: 0, Ordinal: 0, ModuleID: 1},
			{LinkID: 2, Ordinal: 0, ModuleID: 2},
		},
	}
}

func TestMigrate_AllTablesExist(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	for _, table := range []string{"source_roots", "files", "modules", "links", "link_targets", "metadata"} {
		var name string
		err := s.db.QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?", table,
		).Scan(&name)
		require.NoError(t, err, "table %s should exist", table)
		assert.Equal(t, table, name)
	}
}

func TestMigrate_Idempotent(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	require.NoError(t, s.Migrate())
}

func TestMetadata(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	v, err := s.GetMetadata("missing")
	require.NoError(t, err)
	assert.Empty(t, v)

	require.NoError(t, s.SetMetadata("k", "one"))
	require.NoError(t, s.SetMetadata("k", "two"))
	v, err = s.GetMetadata("k")
	require.NoError(t, err)
	assert.Equal(t, "two", v)
}

func TestReplaceSourceRoot_RoundTrip(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	g := testGraph("/repo")
	changed, err := s.ReplaceSourceRoot(g)
	require.NoError(t, err)
	assert.True(t, changed)
	require.Positive(t, g.Root.ID)

	roots, err := s.SourceRoots()
	require.NoError(t, err)
	require.Len(t, roots, 1)
	assert.Equal(t, "/repo", roots[0].Dir)
	assert.Equal(t, int64(3), roots[0].Revision)
	assert.Equal(t, ComputeGraphHash(g), roots[0].GraphHash)

	mods, err := s.Modules(g.Root.ID)
	require.NoError(t, err)
	require.Len(t, mods, 3)
	assert.True(t, mods[0].IsRoot)
	assert.Nil(t, mods[0].ParentLink)
	assert.Equal(t, "src/lib.rs", mods[0].FilePath)
	assert.Equal(t, "src/a.rs", mods[1].FilePath)
	require.NotNil(t, mods[2].InlineStart)
	assert.Equal(t, int64(20), *mods[2].InlineStart)

	links, err := s.Links(g.Root.ID)
	require.NoError(t, err)
	require.Len(t, links, 3)
	assert.Equal(t, []int64{1}, links[0].Targets)
	assert.Empty(t, links[1].Targets)
	assert.Equal(t, "unresolved_module", links[1].Problem)
	assert.Equal(t, "", links[0].Problem)

	byPath, err := s.ModulesByPath("a")
	require.NoError(t, err)
	require.Len(t, byPath, 1)
	assert.Equal(t, int64(1), byPath[0].FileID)
}

func TestReplaceSourceRoot_UnchangedAndReplaced(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	require.NoError(t, ignoreChanged(s.ReplaceSourceRoot(testGraph("/repo"))))

	again := testGraph("/repo")
	again.Root.Revision = 9
	changed, err := s.ReplaceSourceRoot(again)
	require.NoError(t, err)
	assert.False(t, changed)
	roots, err := s.SourceRoots()
	require.NoError(t, err)
	assert.Equal(t, int64(9), roots[0].Revision)

	fixed := testGraph("/repo")
	fixed.Links[1].Problem = ""
	fixed.Links[1].Candidate = ""
	changed, err = s.ReplaceSourceRoot(fixed)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, again.Root.ID, fixed.Root.ID)

	problems, err := s.Problems("")
	require.NoError(t, err)
	assert.Empty(t, problems)

	mods, err := s.Modules(fixed.Root.ID)
	require.NoError(t, err)
	assert.Len(t, mods, 3)
}

func ignoreChanged(_ bool, err error) error { return err }

func TestProblems(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	require.NoError(t, ignoreChanged(s.ReplaceSourceRoot(testGraph("/b"))))
	other := testGraph("/a")
	other.Links[0].Problem = "not_dir_owner"
	other.Links[0].Candidate = "../a.rs"
	other.Links[0].MoveTo = "../lib/mod.rs"
	require.NoError(t, ignoreChanged(s.ReplaceSourceRoot(other)))

	all, err := s.Problems("")
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "/a", all[0].Dir)
	assert.Equal(t, "src/lib.rs", all[0].Path)
	assert.Equal(t, "a", all[0].Module)
	assert.Equal(t, "../lib/mod.rs", all[0].MoveTo)
	assert.Equal(t, "/b", all[2].Dir)

	owners, err := s.Problems("not_dir_owner")
	require.NoError(t, err)
	require.Len(t, owners, 1)
	assert.Equal(t, "a", owners[0].Module)
}

func TestDeleteSourceRoot(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	g := testGraph("/repo")
	require.NoError(t, ignoreChanged(s.ReplaceSourceRoot(g)))

	require.NoError(t, s.DeleteSourceRoot("/repo"))
	mods, err := s.Modules(g.Root.ID)
	require.NoError(t, err)
	assert.Empty(t, mods)
	roots, err := s.SourceRoots()
	require.NoError(t, err)
	assert.Empty(t, roots)
}

func TestComputeGraphHash(t *testing.T) {
	t.Parallel()
	a := testGraph("/repo")
	b := testGraph("/repo")
	b.Root.Revision = 42
	b.Files[0], b.Files[1] = b.Files[1], b.Files[0]
	assert.Equal(t, ComputeGraphHash(a), ComputeGraphHash(b))

	b.Links[0].Name = "renamed"
	assert.NotEqual(t, ComputeGraphHash(a), ComputeGraphHash(b))
}
