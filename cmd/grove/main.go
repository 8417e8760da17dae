package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	slogctx "github.com/veqryn/slog-context"

	"github.com/jward/grove"
	"github.com/jward/grove/internal/config"
	"github.com/jward/grove/internal/logging"
	"github.com/jward/grove/internal/module"
)

var (
	flagDB       string
	flagFormat   string
	flagConfig   string
	flagLogLevel string
)

// cfg is set by the root command's PersistentPreRunE.
var cfg config.Config

// errorHandled is set by outputError so main() doesn't double-print.
var errorHandled bool

// errProblems makes check exit non-zero without printing an error.
var errProblems = errors.New("module problems found")

func main() {
	if err := rootCmd.Execute(); err != nil {
		if !errorHandled && !errors.Is(err, errProblems) {
			fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		}
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:           "grove",
	Short:         "Incremental module-tree analysis for Rust crates",
	Long:          "Grove builds the module tree of Rust crates from their `mod` declarations, reports unresolved and misplaced modules, and exports the result to SQLite.",
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := validateFormat(flagFormat); err != nil {
			return err
		}
		return setup(cmd)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagDB, "db", "", "database path (default: .grove/index.db relative to repo root)")
	rootCmd.PersistentFlags().StringVar(&flagFormat, "format", "json", "output format: json|text")
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "config file (default: "+config.FileName+" in the repo root)")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "log level: debug|info|warn|error")

	rootCmd.AddCommand(treeCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(scopeCmd)
	rootCmd.AddCommand(indexCmd)
	rootCmd.AddCommand(queryCmd)
	rootCmd.AddCommand(scriptCmd)
	rootCmd.AddCommand(watchCmd)
}

// setup loads the config and installs the logger in the command context.
func setup(cmd *cobra.Command) error {
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("getting cwd: %w", err)
	}
	path := flagConfig
	if path == "" {
		path = filepath.Join(findRepoRoot(cwd), config.FileName)
	}
	if cfg, err = config.Load(path); err != nil {
		return err
	}
	if flagLogLevel != "" {
		cfg.LogLevel = flagLogLevel
	}
	level, err := config.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}

	ctx, _ := logging.Setup(cmd.Context(), os.Stderr, level, isTerminal(os.Stderr))
	cmd.SetContext(ctx)
	return nil
}

func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	return err == nil && info.Mode()&os.ModeCharDevice != 0
}

// newEngine builds an Engine from the loaded config, logging to the logger
// in ctx. reg may be nil.
func newEngine(ctx context.Context, reg prometheus.Registerer) *grove.Engine {
	conv := module.DefaultConventions()
	conv.Extension = cfg.Extension
	conv.DirOwnerStems = cfg.DirOwnerStems

	opts := []grove.Option{
		grove.WithConventions(conv),
		grove.WithLogger(logging.FromContext(ctx)),
		grove.WithWorkers(cfg.Workers),
		grove.WithIgnore(cfg.Ignore...),
	}
	if reg != nil {
		opts = append(opts, grove.WithRegisterer(reg))
	}
	return grove.New(opts...)
}

// loadEngine loads the directory named by args (default ".") into a new
// engine. Unreadable files are logged, not fatal.
func loadEngine(ctx context.Context, args []string, reg prometheus.Registerer) (*grove.Engine, grove.SourceRootID, string, error) {
	dir, err := resolveTargetDir(args)
	if err != nil {
		return nil, 0, "", err
	}
	e := newEngine(ctx, reg)
	root, err := e.LoadDirectory(ctx, dir)
	if err != nil {
		if ctx.Err() != nil {
			return nil, 0, "", err
		}
		slogctx.Warn(ctx, "some files could not be read", "dir", dir, "err", err)
	}
	return e, root, dir, nil
}

// resolveTargetDir returns the absolute path of the directory to analyze.
func resolveTargetDir(args []string) (string, error) {
	dir := "."
	if len(args) > 0 {
		dir = args[0]
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolving path %q: %w", dir, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", fmt.Errorf("directory not found: %s", abs)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("not a directory: %s", abs)
	}
	return abs, nil
}

// findRepoRoot walks up from startDir looking for a .git directory.
// Returns the directory containing .git, or startDir if not found.
func findRepoRoot(startDir string) string {
	dir := startDir
	for {
		if info, err := os.Stat(filepath.Join(dir, ".git")); err == nil && info.IsDir() {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return startDir
		}
		dir = parent
	}
}

// resolveDBPath returns the database path from the --db flag, or the
// configured path relative to repoRoot.
func resolveDBPath(repoRoot string) string {
	p := flagDB
	if p == "" {
		p = cfg.DB
	}
	if p == "" {
		p = config.Default().DB
	}
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(repoRoot, p)
}
