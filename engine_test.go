package grove

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/grove/internal/input"
	"github.com/jward/grove/internal/module"
)

const memRoot SourceRootID = 7

// newMemEngine loads files into a fresh engine as one source root. FileIDs
// follow sorted path order starting at 1.
func newMemEngine(t *testing.T, files map[string]string) (*Engine, map[string]FileID) {
	t.Helper()
	e := New(WithRegisterer(prometheus.NewRegistry()))

	paths := make([]string, 0, len(files))
	for p := range files {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	ids := make(map[string]FileID, len(paths))
	byID := make(map[FileID]string, len(paths))
	var members []FileID
	for i, p := range paths {
		id := FileID(i + 1)
		ids[p] = id
		byID[id] = p
		members = append(members, id)
	}

	e.Write(func(w *Writer) {
		for p, id := range ids {
			w.SetFileText(id, files[p])
		}
		w.SetSourceRoot(memRoot, input.NewSourceRoot(input.NewPathResolver(byID), members...))
		g := input.NewCrateGraph()
		if id, ok := ids["src/lib.rs"]; ok {
			g.AddCrate(id)
		}
		w.SetCrateGraph(g)
	})
	return e, ids
}

func TestEngine_ModuleTree(t *testing.T) {
	t.Parallel()
	e, ids := newMemEngine(t, map[string]string{
		"src/lib.rs":   "mod a;\nmod inline {\n    fn f() {}\n}\n",
		"src/a/mod.rs": "mod b;\n",
		"src/a/b.rs":   "pub struct B;\n",
	})

	s := e.Snapshot()
	tree, err := s.ModuleTree(memRoot)
	require.NoError(t, err)
	assert.Equal(t, 4, tree.Len())
	require.Len(t, tree.Roots(), 1)

	root := tree.Roots()[0]
	assert.Equal(t, ids["src/lib.rs"], tree.Module(root).Source.File)

	b, ok := tree.ModuleForSource(module.FileSource(ids["src/a/b.rs"]))
	require.True(t, ok)
	assert.Equal(t, []string{"a", "b"}, tree.Path(b))
	assert.Empty(t, tree.Problems())

	subs, err := s.Submodules(module.FileSource(ids["src/lib.rs"]))
	require.NoError(t, err)
	require.Len(t, subs, 2)
	assert.Equal(t, module.Declaration, subs[0].Kind)
	assert.Equal(t, module.Definition, subs[1].Kind)

	inline, ok := tree.Child(root, "inline")
	require.True(t, ok)
	scope, err := s.ModuleScope(memRoot, inline)
	require.NoError(t, err)
	require.Len(t, scope.Items, 1)
	assert.Equal(t, "f", scope.Items[0].Name)

	p, ok := s.FilePath(ids["src/a/b.rs"])
	require.True(t, ok)
	assert.Equal(t, "src/a/b.rs", p)
}

func TestEngine_MemoizedWithinRevision(t *testing.T) {
	t.Parallel()
	e, _ := newMemEngine(t, map[string]string{"src/lib.rs": "mod a;\n", "src/a.rs": ""})

	first, err := e.Snapshot().ModuleTree(memRoot)
	require.NoError(t, err)
	second, err := e.Snapshot().ModuleTree(memRoot)
	require.NoError(t, err)
	assert.Same(t, first, second)
}

func TestEngine_WriteCancelsOldSnapshot(t *testing.T) {
	t.Parallel()
	e, ids := newMemEngine(t, map[string]string{"src/lib.rs": "mod a;\n", "src/a.rs": ""})

	old := e.Snapshot()
	before, err := old.ModuleTree(memRoot)
	require.NoError(t, err)

	e.SetFileText(ids["src/lib.rs"], "mod a;\nmod missing;\n")

	assert.True(t, old.IsCanceled())
	_, err = old.ModuleTree(memRoot)
	assert.ErrorIs(t, err, ErrCanceled)

	after, err := e.Snapshot().ModuleTree(memRoot)
	require.NoError(t, err)
	assert.NotSame(t, before, after)
	assert.Empty(t, before.Problems())
	require.Len(t, after.Problems(), 1)
	assert.Equal(t, "missing", after.Link(after.Problems()[0]).Name)
}

// blockingResolver parks the first Resolve call until released.
type blockingResolver struct {
	*input.PathResolver
	once    sync.Once
	entered chan struct{}
	release chan struct{}
}

func (r *blockingResolver) Resolve(file input.FileID, rel string) (input.FileID, bool) {
	r.once.Do(func() {
		close(r.entered)
		<-r.release
	})
	return r.PathResolver.Resolve(file, rel)
}

func TestEngine_CancellationUnderWrite(t *testing.T) {
	t.Parallel()
	e := New()
	paths := map[FileID]string{1: "src/lib.rs", 2: "src/a.rs"}
	r := &blockingResolver{
		PathResolver: input.NewPathResolver(paths),
		entered:      make(chan struct{}),
		release:      make(chan struct{}),
	}
	e.Write(func(w *Writer) {
		w.SetFileText(1, "mod a;\n")
		w.SetFileText(2, "fn a() {}\n")
		w.SetSourceRoot(memRoot, input.NewSourceRoot(r, 1, 2))
	})

	done := make(chan error, 1)
	go func() {
		_, err := e.Snapshot().ModuleTree(memRoot)
		done <- err
	}()

	<-r.entered
	e.SetFileText(2, "fn a() {}\nmod b;\n")
	close(r.release)
	require.ErrorIs(t, <-done, ErrCanceled)

	tree, err := Retry(context.Background(), e.Snapshot, func(s *Snapshot) (*Tree, error) {
		return s.ModuleTree(memRoot)
	})
	require.NoError(t, err)
	a, ok := tree.ModuleForSource(module.FileSource(2))
	require.True(t, ok)
	require.Len(t, tree.Module(a).Children, 1)
	link := tree.Link(tree.Module(a).Children[0])
	assert.Equal(t, "b", link.Name)
	require.NotNil(t, link.Problem)
	assert.Equal(t, NotDirOwner, link.Problem.Kind)
}

func TestRetry(t *testing.T) {
	t.Parallel()
	e, ids := newMemEngine(t, map[string]string{"src/lib.rs": ""})

	calls := 0
	got, err := Retry(context.Background(), e.Snapshot, func(s *Snapshot) (int, error) {
		calls++
		if calls == 1 {
			e.SetFileText(ids["src/lib.rs"], "fn x() {}")
			return 0, s.CheckCanceled()
		}
		return calls, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, got)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = Retry(ctx, e.Snapshot, func(*Snapshot) (int, error) { return 1, nil })
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSnapshot_Diagnostics(t *testing.T) {
	t.Parallel()
	e, ids := newMemEngine(t, map[string]string{
		"src/lib.rs":  "mod util;\n\nmod gone;\n",
		"src/util.rs": "fn helper() {}\n  mod nested;\n",
	})
	s := e.Snapshot()

	diags, err := s.Diagnostics(ids["src/lib.rs"])
	require.NoError(t, err)
	require.Len(t, diags, 1)
	assert.Equal(t, 3, diags[0].Line)
	assert.Equal(t, 1, diags[0].Col)
	assert.Equal(t, "gone", diags[0].Module)
	assert.Equal(t, "unresolved_module", diags[0].Code)
	assert.Equal(t, "create src/gone.rs", diags[0].Fix)

	diags, err = s.Diagnostics(ids["src/util.rs"])
	require.NoError(t, err)
	require.Len(t, diags, 1)
	assert.Equal(t, 2, diags[0].Line)
	assert.Equal(t, 3, diags[0].Col)
	assert.Equal(t, NotDirOwner, diags[0].Kind)
	assert.Equal(t, "move src/util.rs to src/util/mod.rs", diags[0].Fix)

	diags, err = s.Diagnostics(FileID(99))
	require.NoError(t, err)
	assert.Empty(t, diags)
}

func TestSnapshot_ConcurrentModuleScope(t *testing.T) {
	t.Parallel()
	const mods, fns = 16, 500
	var src strings.Builder
	for m := range mods {
		fmt.Fprintf(&src, "mod m%d {\n", m)
		for f := range fns {
			fmt.Fprintf(&src, "    fn f%d() {}\n", f)
		}
		src.WriteString("}\n")
	}
	e, ids := newMemEngine(t, map[string]string{"src/lib.rs": src.String()})
	s := e.Snapshot()

	tree, err := s.ModuleTree(memRoot)
	require.NoError(t, err)
	require.Equal(t, mods+1, tree.Len())

	var wg sync.WaitGroup
	for _, id := range tree.Modules() {
		wg.Add(2)
		go func() {
			defer wg.Done()
			scope, err := s.ModuleScope(memRoot, id)
			if assert.NoError(t, err) && tree.Module(id).Source.IsInline() {
				assert.Len(t, scope.Items, fns)
			}
		}()
		go func() {
			defer wg.Done()
			_, err := s.Diagnostics(ids["src/lib.rs"])
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
}

func TestSnapshot_ParentModulesAndCrate(t *testing.T) {
	t.Parallel()
	e, ids := newMemEngine(t, map[string]string{
		"src/lib.rs":   "mod a;\n",
		"src/a.rs":     "",
		"src/stray.rs": "",
	})
	s := e.Snapshot()
	tree, err := s.ModuleTree(memRoot)
	require.NoError(t, err)
	lib, _ := tree.ModuleForSource(module.FileSource(ids["src/lib.rs"]))

	parents, err := s.ParentModules(ids["src/a.rs"])
	require.NoError(t, err)
	assert.Equal(t, []ModuleRef{{Root: memRoot, Module: lib}}, parents)

	parents, err = s.ParentModules(ids["src/lib.rs"])
	require.NoError(t, err)
	assert.Empty(t, parents)

	crates, err := s.CrateForFile(ids["src/a.rs"])
	require.NoError(t, err)
	assert.Equal(t, []CrateID{0}, crates)

	crates, err = s.CrateForFile(ids["src/stray.rs"])
	require.NoError(t, err)
	assert.Empty(t, crates)
}

func writeTree(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		path := filepath.Join(dir, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
}

func TestEngine_LoadDirectory(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	writeTree(t, dir, map[string]string{
		"src/main.rs":   "mod cli;\nmod later;\n",
		"src/cli.rs":    "pub fn run() {}\n",
		"src/bin/x.rs":  "",
		"target/gen.rs": "mod junk;",
	})

	e := New(WithWorkers(2))
	root, err := e.LoadDirectory(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, []SourceRootID{root}, e.SourceRoots())
	got, ok := e.SourceRootDir(root)
	require.True(t, ok)
	abs, err := filepath.Abs(dir)
	require.NoError(t, err)
	assert.Equal(t, abs, got)

	s := e.Snapshot()
	tree, err := s.ModuleTree(root)
	require.NoError(t, err)
	assert.Equal(t, 3, tree.Len())
	assert.Len(t, tree.Roots(), 2)
	require.Len(t, tree.Problems(), 1)
	assert.Equal(t, 2, s.CrateGraph().Len())

	cli, ok := e.FileID(filepath.Join(dir, "src", "cli.rs"))
	require.True(t, ok)
	crates, err := s.CrateForFile(cli)
	require.NoError(t, err)
	assert.Len(t, crates, 1)

	// A new file resolves the missing module.
	laterPath := filepath.Join(dir, "src", "later.rs")
	require.NoError(t, os.WriteFile(laterPath, []byte("fn l() {}\n"), 0o644))
	later, err := e.UpdateFile(context.Background(), laterPath)
	require.NoError(t, err)
	assert.True(t, s.IsCanceled())

	tree, err = e.Snapshot().ModuleTree(root)
	require.NoError(t, err)
	assert.Equal(t, 4, tree.Len())
	assert.Empty(t, tree.Problems())

	// Removing it brings the problem back and keeps ids stable.
	require.NoError(t, os.Remove(laterPath))
	_, err = e.UpdateFile(context.Background(), laterPath)
	require.NoError(t, err)
	_, ok = e.FileID(laterPath)
	assert.False(t, ok)

	tree, err = e.Snapshot().ModuleTree(root)
	require.NoError(t, err)
	assert.Len(t, tree.Problems(), 1)

	require.NoError(t, os.WriteFile(laterPath, []byte(""), 0o644))
	again, err := e.UpdateFile(context.Background(), laterPath)
	require.NoError(t, err)
	assert.Equal(t, later, again)

	_, err = e.UpdateFile(context.Background(), filepath.Join(t.TempDir(), "elsewhere.rs"))
	assert.ErrorIs(t, err, ErrNotInRoot)

	id, err := e.UpdateFile(context.Background(), filepath.Join(dir, "README.md"))
	require.NoError(t, err)
	assert.Zero(t, id)
}

func TestEngine_ReloadDropsDeletedFiles(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	writeTree(t, dir, map[string]string{"lib.rs": "mod a;\n", "a.rs": ""})

	e := New()
	root, err := e.LoadDirectory(context.Background(), dir)
	require.NoError(t, err)
	a, ok := e.FileID(filepath.Join(dir, "a.rs"))
	require.True(t, ok)

	require.NoError(t, os.Remove(filepath.Join(dir, "a.rs")))
	again, err := e.LoadDirectory(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, root, again)

	s := e.Snapshot()
	_, ok = s.FileText(a)
	assert.False(t, ok)
	sr, ok := s.SourceRoot(root)
	require.True(t, ok)
	assert.False(t, sr.Contains(a))
}

func TestEngine_UpdateFileSkipsExcludedPaths(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	dir := t.TempDir()
	writeTree(t, dir, map[string]string{
		".gitignore": "generated/\n",
		"src/lib.rs": "mod gen;\nmod old;\n",
		"src/old.rs": "",
	})

	e := New(WithIgnore("src/scratch_*.rs"))
	root, err := e.LoadDirectory(ctx, dir)
	require.NoError(t, err)
	rev := e.Revision()

	for _, rel := range []string{"generated/gen.rs", "src/scratch_a.rs", "src/.gen.rs", "target/debug/gen.rs"} {
		writeTree(t, dir, map[string]string{rel: "fn x() {}\n"})
		path := filepath.Join(dir, filepath.FromSlash(rel))
		id, err := e.UpdateFile(ctx, path)
		require.NoError(t, err, rel)
		assert.Zero(t, id, rel)
		_, ok := e.FileID(path)
		assert.False(t, ok, rel)
	}

	link := filepath.Join(dir, "src", "gen.rs")
	require.NoError(t, os.Symlink(filepath.Join(dir, "src", "old.rs"), link))
	id, err := e.UpdateFile(ctx, link)
	require.NoError(t, err)
	assert.Zero(t, id)
	assert.Equal(t, rev, e.Revision(), "excluded paths must not write")

	tree, err := e.Snapshot().ModuleTree(root)
	require.NoError(t, err)
	require.Len(t, tree.Problems(), 1)

	// A loaded file that becomes ignored is dropped.
	oldPath := filepath.Join(dir, "src", "old.rs")
	_, ok := e.FileID(oldPath)
	require.True(t, ok)
	writeTree(t, dir, map[string]string{".gitignore": "generated/\nsrc/old.rs\n"})
	id, err = e.UpdateFile(ctx, oldPath)
	require.NoError(t, err)
	assert.Zero(t, id)
	_, ok = e.FileID(oldPath)
	assert.False(t, ok)
}

func TestEngine_LogsRootAttributes(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	dir := t.TempDir()
	writeTree(t, dir, map[string]string{"src/lib.rs": "mod a;\n"})
	abs, err := filepath.Abs(dir)
	require.NoError(t, err)

	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	e := New(WithLogger(logger))
	root, err := e.LoadDirectory(ctx, dir)
	require.NoError(t, err)

	writeTree(t, dir, map[string]string{"src/a.rs": ""})
	_, err = e.UpdateFile(ctx, filepath.Join(dir, "src", "a.rs"))
	require.NoError(t, err)

	var loaded, updated string
	for _, line := range strings.Split(buf.String(), "\n") {
		switch {
		case strings.Contains(line, `msg="loaded source root"`):
			loaded = line
		case strings.Contains(line, `msg="updated file"`):
			updated = line
		}
	}
	for _, line := range []string{loaded, updated} {
		require.NotEmpty(t, line)
		assert.Contains(t, line, fmt.Sprintf("root=%d", root))
		assert.Contains(t, line, "dir="+filepath.ToSlash(abs))
	}
	assert.Contains(t, updated, "path=src/a.rs")
}

func TestSnapshot_ModuleTrees(t *testing.T) {
	t.Parallel()
	dirA, dirB := t.TempDir(), t.TempDir()
	writeTree(t, dirA, map[string]string{"src/lib.rs": "mod x;\n", "src/x.rs": ""})
	writeTree(t, dirB, map[string]string{"src/lib.rs": ""})

	e := New()
	a, err := e.LoadDirectory(context.Background(), dirA)
	require.NoError(t, err)
	b, err := e.LoadLibrary(context.Background(), dirB)
	require.NoError(t, err)

	s := e.Snapshot()
	assert.Equal(t, []SourceRootID{b}, s.Libraries())

	trees, err := s.ModuleTrees(context.Background(), e.SourceRoots(), 2)
	require.NoError(t, err)
	require.Len(t, trees, 2)
	assert.Equal(t, 2, trees[a].Len())
	assert.Equal(t, 1, trees[b].Len())
}
