package discover

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, rel, content string) {
	t.Helper()
	path := filepath.Join(dir, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestFiles(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	writeFile(t, dir, "src/lib.rs", "mod a;")
	writeFile(t, dir, "src/a/mod.rs", "")
	writeFile(t, dir, "Cargo.toml", "[package]")
	writeFile(t, dir, ".hidden.rs", "")
	writeFile(t, dir, "target/debug/build.rs", "")
	writeFile(t, dir, ".cache/x.rs", "")

	files, err := Files(context.Background(), dir, Options{})
	require.NoError(t, err)
	assert.Equal(t, []string{"src/a/mod.rs", "src/lib.rs"}, files)
}

func TestFiles_Gitignore(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	writeFile(t, dir, ".gitignore", "generated/\n")
	writeFile(t, dir, "src/lib.rs", "")
	writeFile(t, dir, "generated/out.rs", "")
	writeFile(t, dir, "benches/b.rs", "")

	files, err := Files(context.Background(), dir, Options{Ignore: []string{"benches/"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"src/lib.rs"}, files)
}

func TestMatcher(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	writeFile(t, dir, ".gitignore", "generated/\n")
	writeFile(t, dir, "src/lib.rs", "")
	writeFile(t, dir, "src/real.rs", "")
	require.NoError(t, os.Symlink(filepath.Join(dir, "src", "real.rs"), filepath.Join(dir, "src", "link.rs")))

	m := NewMatcher(dir, Options{Ignore: []string{"benches/"}})
	ctx := context.Background()
	assert.True(t, m.Match(ctx, "src/lib.rs"))
	assert.True(t, m.Match(ctx, "src/not_yet_written.rs"))
	assert.False(t, m.Match(ctx, "src/link.rs"))
	assert.False(t, m.Match(ctx, "generated/out.rs"))
	assert.False(t, m.Match(ctx, "benches/b.rs"))
	assert.False(t, m.Match(ctx, ".cache/x.rs"))
	assert.False(t, m.Match(ctx, "src/.hidden.rs"))
	assert.False(t, m.Match(ctx, "target/debug/build.rs"))
	assert.False(t, m.Match(ctx, "Cargo.toml"))
	assert.False(t, m.Match(ctx, "../outside.rs"))
}

func TestMatcher_GitWorkTree(t *testing.T) {
	t.Parallel()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}
	dir := t.TempDir()
	cmd := exec.Command("git", "init", "-q")
	cmd.Dir = dir
	require.NoError(t, cmd.Run())

	writeFile(t, dir, ".gitignore", "out/\n")
	writeFile(t, dir, "src/lib.rs", "")
	writeFile(t, dir, "out/gen.rs", "")

	m := NewMatcher(dir, Options{})
	ctx := context.Background()
	assert.True(t, m.Match(ctx, "src/lib.rs"))
	assert.True(t, m.Match(ctx, "src/untracked.rs"))
	assert.False(t, m.Match(ctx, "out/gen.rs"))

	files, err := Files(ctx, dir, Options{})
	require.NoError(t, err)
	assert.Equal(t, []string{"src/lib.rs"}, files)
}

func TestDirs(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	writeFile(t, dir, "src/a/mod.rs", "")
	writeFile(t, dir, "target/debug/build.rs", "")
	writeFile(t, dir, ".git/HEAD", "")

	dirs, err := Dirs(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, []string{dir, filepath.Join(dir, "src"), filepath.Join(dir, "src", "a")}, dirs)
}

func TestFiles_Canceled(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	writeFile(t, dir, "src/lib.rs", "")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Files(ctx, dir, Options{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCrateRoots(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name  string
		files []string
		want  []string
	}{
		{
			name:  "cargo layout",
			files: []string{"src/a.rs", "src/bin/tool.rs", "src/bin/tool/helper.rs", "src/lib.rs", "src/main.rs"},
			want:  []string{"src/lib.rs", "src/main.rs", "src/bin/tool.rs"},
		},
		{
			name:  "flat layout",
			files: []string{"lib.rs", "util.rs"},
			want:  []string{"lib.rs"},
		},
		{
			name:  "no entry point",
			files: []string{"src/a.rs"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CrateRoots(tt.files, ""))
		})
	}
}
