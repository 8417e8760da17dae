package grove

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/hashicorp/go-multierror"
	"golang.org/x/sync/errgroup"
)

// readFiles reads rels (relative to dir) with up to e.workers goroutines.
// Unreadable files are left out of the result and reported in the
// returned multierror; the only other failure is ctx cancellation, which
// the caller checks.
func (e *Engine) readFiles(ctx context.Context, dir string, rels []string) (map[string]string, error) {
	var (
		mu    sync.Mutex
		texts = make(map[string]string, len(rels))
		errs  *multierror.Error
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)
	for _, rel := range rels {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			data, err := os.ReadFile(filepath.Join(dir, filepath.FromSlash(rel)))
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = multierror.Append(errs, fmt.Errorf("read %s: %w", rel, err))
				return nil
			}
			texts[rel] = string(data)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return texts, errs.ErrorOrNil()
}

// ModuleTrees builds the trees of several source roots concurrently. It
// fails with the first error, which is ErrCanceled when the snapshot goes
// stale during the build.
func (s *Snapshot) ModuleTrees(ctx context.Context, ids []SourceRootID, workers int) (map[SourceRootID]*Tree, error) {
	var (
		mu    sync.Mutex
		trees = make(map[SourceRootID]*Tree, len(ids))
	)

	g, gctx := errgroup.WithContext(ctx)
	if workers > 0 {
		g.SetLimit(workers)
	}
	for _, id := range ids {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			tree, err := s.ModuleTree(id)
			if err != nil {
				return fmt.Errorf("source root %d: %w", id, err)
			}
			mu.Lock()
			trees[id] = tree
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return trees, nil
}
