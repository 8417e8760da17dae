package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	slogctx "github.com/veqryn/slog-context"

	"github.com/jward/grove/internal/store"
)

var (
	flagForce     bool
	flagLibraries []string
)

var indexCmd = &cobra.Command{
	Use:   "index [path]",
	Short: "Export module trees to the SQLite database",
	Long:  "Loads the crate directory (and any --library directories), builds their module trees and writes them to the database. Unchanged trees are left in place.",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runIndex,
}

func init() {
	indexCmd.Flags().BoolVar(&flagForce, "force", false, "delete the database and reindex from scratch")
	indexCmd.Flags().StringSliceVar(&flagLibraries, "library", nil, "library crate directory to index alongside (repeatable)")
}

func runIndex(cmd *cobra.Command, args []string) error {
	start := time.Now()
	ctx := cmd.Context()

	e, _, dir, err := loadEngine(ctx, args, nil)
	if err != nil {
		return outputError("index", err)
	}
	for _, lib := range flagLibraries {
		if _, err := e.LoadLibrary(ctx, lib); err != nil {
			if ctx.Err() != nil {
				return outputError("index", err)
			}
			slogctx.Warn(ctx, "some library files could not be read", "dir", lib, "err", err)
		}
	}

	dbPath := resolveDBPath(findRepoRoot(dir))
	st, err := openStoreForWrite(ctx, dbPath)
	if err != nil {
		return outputError("index", err)
	}
	defer st.Close()

	changed, err := e.Index(ctx, st)
	if err != nil {
		return outputError("index", err)
	}
	slogctx.Info(ctx, "indexed", "dir", dir, "changed", changed, "elapsed", time.Since(start).Round(time.Millisecond))

	return outputResult(CLIResult{Command: "index", Results: CLIIndex{
		Dir:      dir,
		Database: dbPath,
		Roots:    len(e.SourceRoots()),
		Changed:  changed,
		Revision: int64(e.Revision()),
	}})
}

// openStoreForWrite opens (creating if needed) and migrates the database.
func openStoreForWrite(ctx context.Context, dbPath string) (*store.Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("creating %s: %w", filepath.Dir(dbPath), err)
	}
	if flagForce {
		if err := os.Remove(dbPath); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("removing database for --force: %w", err)
		}
		slogctx.Info(ctx, "cleared database", "path", dbPath)
	}
	st, err := store.NewStore(dbPath)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(); err != nil {
		st.Close()
		return nil, err
	}
	return st, nil
}
