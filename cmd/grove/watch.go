package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	slogctx "github.com/veqryn/slog-context"

	"github.com/jward/grove"
	"github.com/jward/grove/internal/discover"
	"github.com/jward/grove/internal/store"
)

var (
	flagMetricsAddr string
	flagWatchIndex  bool
	flagDebounce    time.Duration
)

var watchCmd = &cobra.Command{
	Use:   "watch [path]",
	Short: "Keep the module tree current while files change",
	Long:  "Loads the crate directory, then applies file changes as they happen and reports the module problems after each batch. With --index the database is updated too.",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runWatch,
}

func init() {
	watchCmd.Flags().StringVar(&flagMetricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address (e.g. :9090)")
	watchCmd.Flags().BoolVar(&flagWatchIndex, "index", false, "re-export changed trees to the database after each batch")
	watchCmd.Flags().DurationVar(&flagDebounce, "debounce", 100*time.Millisecond, "quiet period before a batch of changes is applied")
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	e, root, dir, err := loadEngine(ctx, args, reg)
	if err != nil {
		return err
	}
	ctx = slogctx.With(ctx, "dir", dir)

	if flagMetricsAddr != "" {
		srv := &http.Server{Addr: flagMetricsAddr, Handler: promhttp.HandlerFor(reg, promhttp.HandlerOpts{})}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slogctx.Error(ctx, "metrics server", "err", err)
			}
		}()
		defer srv.Close()
		slogctx.Info(ctx, "serving metrics", "addr", flagMetricsAddr)
	}

	var st *store.Store
	if flagWatchIndex {
		if st, err = openStoreForWrite(ctx, resolveDBPath(findRepoRoot(dir))); err != nil {
			return err
		}
		defer st.Close()
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()
	dirs, err := discover.Dirs(ctx, dir)
	if err != nil {
		return err
	}
	for _, d := range dirs {
		if err := w.Add(d); err != nil {
			slogctx.Warn(ctx, "cannot watch directory", "path", d, "err", err)
		}
	}

	report(ctx, e, root, st)
	slogctx.Info(ctx, "watching", "dirs", len(dirs))

	pending := make(map[string]struct{})
	timer := time.NewTimer(flagDebounce)
	timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			slogctx.Warn(ctx, "watch error", "err", err)
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if ev.Has(fsnotify.Create) {
				if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
					addTree(ctx, w, ev.Name, pending)
					timer.Reset(flagDebounce)
					continue
				}
			}
			if ev.Has(fsnotify.Chmod) && !ev.Has(fsnotify.Write) {
				continue
			}
			pending[ev.Name] = struct{}{}
			timer.Reset(flagDebounce)
		case <-timer.C:
			apply(ctx, e, pending)
			clear(pending)
			report(ctx, e, root, st)
		}
	}
}

// addTree starts watching a newly created directory and queues the files
// already in it, which were written before the watch was in place.
func addTree(ctx context.Context, w *fsnotify.Watcher, dir string, pending map[string]struct{}) {
	dirs, err := discover.Dirs(ctx, dir)
	if err != nil {
		return
	}
	for _, d := range dirs {
		if err := w.Add(d); err != nil {
			slogctx.Warn(ctx, "cannot watch directory", "path", d, "err", err)
		}
		entries, err := os.ReadDir(d)
		if err != nil {
			continue
		}
		for _, ent := range entries {
			if !ent.IsDir() {
				pending[filepath.Join(d, ent.Name())] = struct{}{}
			}
		}
	}
}

// apply feeds changed paths to the engine. Removed and renamed-away files
// are read as missing and dropped.
func apply(ctx context.Context, e *grove.Engine, paths map[string]struct{}) {
	for p := range paths {
		id, err := e.UpdateFile(ctx, p)
		if err != nil {
			slogctx.Warn(ctx, "update failed", "path", p, "err", err)
			continue
		}
		if id != 0 {
			slogctx.Debug(ctx, "file changed", "path", p, "file", uint32(id))
		}
	}
}

// report logs the current problems and, when st is set, re-exports.
func report(ctx context.Context, e *grove.Engine, root grove.SourceRootID, st *store.Store) {
	diags, err := grove.Retry(ctx, e.Snapshot, func(s *grove.Snapshot) ([]CLIDiagnostic, error) {
		return checkResult(s, root)
	})
	if err != nil {
		slogctx.Error(ctx, "check failed", "err", err)
		return
	}
	for _, d := range diags {
		slogctx.Warn(ctx, d.Message, "file", d.File, "line", d.Line, "col", d.Col, "code", d.Code)
	}
	slogctx.Info(ctx, "module tree updated", "revision", int64(e.Revision()), "problems", len(diags))

	if st != nil {
		if _, err := e.Index(ctx, st); err != nil {
			slogctx.Error(ctx, "index failed", "err", err)
		}
	}
}
