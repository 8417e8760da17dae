// Package discover finds the source files of a crate directory.
package discover

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"time"

	ignore "github.com/sabhiram/go-gitignore"

	"github.com/jward/grove/internal/syntax"
)

// Options controls which files Files returns.
type Options struct {
	// Extension of source files; empty means syntax.Extension.
	Extension string
	// Ignore holds extra gitignore-style patterns, matched against paths
	// relative to the root.
	Ignore []string
}

var skipDirs = map[string]struct{}{
	"target":       {},
	"node_modules": {},
	".git":         {},
	".hg":          {},
	".svn":         {},
}

func skipDir(name string) bool {
	_, skip := skipDirs[name]
	return skip || strings.HasPrefix(name, ".")
}

// Dirs returns root and every directory below it that Files would descend
// into, as absolute paths.
func Dirs(ctx context.Context, root string) ([]string, error) {
	var dirs []string
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && skipDir(d.Name()) {
			return filepath.SkipDir
		}
		dirs = append(dirs, path)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return dirs, nil
}

// Matcher decides whether a path below a crate directory is one of its
// source files, applying the same filters as Files.
type Matcher struct {
	root  string
	ext   string
	git   bool
	gi    *ignore.GitIgnore
	extra *ignore.GitIgnore
}

// NewMatcher builds a Matcher for root. Inside a git work tree git decides
// what is ignored; elsewhere the root's .gitignore does.
func NewMatcher(root string, opts Options) *Matcher {
	m := &Matcher{root: root, ext: opts.Extension, gi: loadGitignore(root)}
	if info, err := os.Stat(filepath.Join(root, ".git")); err == nil && info.IsDir() {
		m.git = true
	}
	if len(opts.Ignore) > 0 {
		m.extra = ignore.CompileIgnoreLines(opts.Ignore...)
	}
	return m
}

// Match reports whether rel, a slash-separated path relative to the root,
// is a source file Files would return. The file need not exist.
func (m *Matcher) Match(ctx context.Context, rel string) bool {
	if !m.admits(rel) {
		return false
	}
	info, err := os.Lstat(filepath.Join(m.root, filepath.FromSlash(rel)))
	if err == nil && info.Mode()&os.ModeSymlink != 0 {
		return false
	}
	if m.git {
		ignored, err := gitCheckIgnore(ctx, m.root, rel)
		if err == nil {
			return !ignored
		}
	}
	return m.gi == nil || !m.gi.MatchesPath(rel)
}

// admits applies the filters that need neither git nor the file system.
// The root .gitignore is left to the caller.
func (m *Matcher) admits(rel string) bool {
	parts := strings.Split(rel, "/")
	for i, p := range parts {
		if p == "" || p == "." || p == ".." || strings.HasPrefix(p, ".") {
			return false
		}
		if i < len(parts)-1 && skipDir(p) {
			return false
		}
	}
	if !syntax.IsSourceFile(rel, m.ext) {
		return false
	}
	return m.extra == nil || !m.extra.MatchesPath(rel)
}

// Files returns the source files under root as slash-separated paths
// relative to root, sorted. Inside a git work tree only files git knows
// about (tracked or untracked but not ignored) are returned; elsewhere the
// root's .gitignore is honoured.
func Files(ctx context.Context, root string, opts Options) ([]string, error) {
	m := NewMatcher(root, opts)
	var gitFiles map[string]struct{}
	if m.git {
		gitFiles = gitLsFiles(ctx, root)
	}

	var results []string
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil // skip unreadable entries
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		if d.IsDir() {
			if path != root && skipDir(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Type()&os.ModeSymlink != 0 {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)
		if !m.admits(rel) {
			return nil
		}

		if gitFiles != nil {
			if _, ok := gitFiles[rel]; !ok {
				return nil
			}
		} else if m.gi != nil && m.gi.MatchesPath(rel) {
			return nil
		}

		results = append(results, rel)
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Strings(results)
	return results, nil
}

func gitLsFiles(ctx context.Context, root string) map[string]struct{} {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	cmd := exec.CommandContext(ctx, "git", "ls-files", "--cached", "--others", "--exclude-standard")
	cmd.Dir = root
	out, err := cmd.Output()
	if err != nil {
		return nil
	}

	files := make(map[string]struct{})
	for _, line := range strings.Split(strings.TrimRight(string(out), "\n"), "\n") {
		if line != "" {
			files[line] = struct{}{}
		}
	}
	return files
}

// gitCheckIgnore asks git whether rel is excluded. Tracked files are never
// reported as ignored.
func gitCheckIgnore(ctx context.Context, root, rel string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	cmd := exec.CommandContext(ctx, "git", "check-ignore", "-q", "--", rel)
	cmd.Dir = root
	err := cmd.Run()
	if err == nil {
		return true, nil
	}
	var exit *exec.ExitError
	if errors.As(err, &exit) && exit.ExitCode() == 1 {
		return false, nil
	}
	return false, err
}

func loadGitignore(root string) *ignore.GitIgnore {
	gi, err := ignore.CompileIgnoreFile(filepath.Join(root, ".gitignore"))
	if err != nil {
		return nil
	}
	return gi
}

// CrateRoots returns the crate entry points among files (paths relative to
// the crate directory): src/lib.rs, src/main.rs and src/bin/*.rs, or a
// top-level lib.rs/main.rs when there is no src directory layout.
func CrateRoots(files []string, ext string) []string {
	if ext == "" {
		ext = syntax.Extension
	}
	set := make(map[string]struct{}, len(files))
	for _, f := range files {
		set[f] = struct{}{}
	}

	var roots []string
	for _, p := range []string{"src/lib" + ext, "src/main" + ext} {
		if _, ok := set[p]; ok {
			roots = append(roots, p)
		}
	}
	for _, f := range files {
		dir, base := filepath.Split(filepath.FromSlash(f))
		if filepath.ToSlash(dir) == "src/bin/" && strings.HasSuffix(base, ext) {
			roots = append(roots, f)
		}
	}
	if len(roots) > 0 {
		return roots
	}
	for _, p := range []string{"lib" + ext, "main" + ext} {
		if _, ok := set[p]; ok {
			roots = append(roots, p)
		}
	}
	return roots
}
