package main

import (
	"os"
	"path/filepath"

	"github.com/risor-io/risor/object"
	"github.com/spf13/cobra"
	slogctx "github.com/veqryn/slog-context"

	"github.com/jward/grove/internal/logging"
	"github.com/jward/grove/internal/runtime"
	"github.com/jward/grove/internal/store"
)

var flagScriptsDir string

var scriptCmd = &cobra.Command{
	Use:   "script <file.risor> [args...]",
	Short: "Run a Risor script against the module index",
	Long:  "Runs a Risor script with the index queries (source_roots, modules, links, problems, db_query) when a database exists, plus mod_items, line_count and log. Extra arguments are passed as the list `args`.",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		cwd, err := os.Getwd()
		if err != nil {
			return err
		}

		var st *store.Store
		dbPath := resolveDBPath(findRepoRoot(cwd))
		if _, err := os.Stat(dbPath); err == nil {
			if st, err = store.NewStore(dbPath); err != nil {
				return err
			}
			defer st.Close()
		} else {
			slogctx.Debug(ctx, "no database, index queries unavailable", "path", dbPath)
		}

		dir := flagScriptsDir
		if dir == "" {
			dir = filepath.Dir(args[0])
		}
		rt := runtime.NewRuntime(st, dir, runtime.WithRuntimeLogger(logging.FromContext(ctx)))

		scriptArgs := make([]object.Object, 0, len(args)-1)
		for _, a := range args[1:] {
			scriptArgs = append(scriptArgs, object.NewString(a))
		}
		path, err := filepath.Abs(args[0])
		if err != nil {
			return err
		}
		return rt.RunScript(ctx, path, map[string]any{"args": object.NewList(scriptArgs)})
	},
}

func init() {
	scriptCmd.Flags().StringVar(&flagScriptsDir, "scripts-dir", "", "directory imports are resolved from (default: the script's directory)")
}
