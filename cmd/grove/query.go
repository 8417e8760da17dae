package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jward/grove/internal/module"
	"github.com/jward/grove/internal/store"
)

var (
	flagLimit int
	flagKind  string
	flagPath  string
)

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Query the exported module index",
	Long:  "Run queries against the database written by 'grove index'. Line and column numbers are 1-based.",
}

func init() {
	queryCmd.PersistentFlags().IntVar(&flagLimit, "limit", 50, "maximum results (0 for all)")

	problemsCmd.Flags().StringVar(&flagKind, "kind", "", "problem kind: unresolved_module|not_dir_owner|already_claimed")
	modulesCmd.Flags().StringVar(&flagPath, "path", "", "only modules with this ::-joined path")

	queryCmd.AddCommand(problemsCmd)
	queryCmd.AddCommand(modulesCmd)
}

// openStore opens the database from the --db flag path (or default).
func openStore() (*store.Store, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("getting cwd: %w", err)
	}
	dbPath := resolveDBPath(findRepoRoot(cwd))
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("database not found: %s (run 'grove index' first)", dbPath)
	}
	return store.NewStore(dbPath)
}

var problemsCmd = &cobra.Command{
	Use:   "problems",
	Short: "List module problems across indexed source roots",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			return outputError("problems", err)
		}
		defer st.Close()

		problems, err := st.Problems(flagKind)
		if err != nil {
			return outputError("problems", err)
		}
		diags := make([]CLIDiagnostic, 0, len(problems))
		for _, p := range problems {
			diags = append(diags, storedDiagnostic(p))
		}
		total := len(diags)
		return outputResult(CLIResult{Command: "problems", Results: limit(diags), TotalCount: &total})
	},
}

var modulesCmd = &cobra.Command{
	Use:   "modules",
	Short: "List indexed modules",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			return outputError("modules", err)
		}
		defer st.Close()

		roots, err := st.SourceRoots()
		if err != nil {
			return outputError("modules", err)
		}
		dirs := make(map[int64]string, len(roots))
		for _, r := range roots {
			dirs[r.ID] = r.Dir
		}

		var mods []store.Module
		if flagPath != "" {
			if mods, err = st.ModulesByPath(flagPath); err != nil {
				return outputError("modules", err)
			}
		} else {
			for _, r := range roots {
				ms, err := st.Modules(r.ID)
				if err != nil {
					return outputError("modules", err)
				}
				mods = append(mods, ms...)
			}
		}

		out := make([]CLIStoredModule, 0, len(mods))
		for _, m := range mods {
			out = append(out, CLIStoredModule{
				Root:   dirs[m.RootID],
				ID:     m.ModuleID,
				Path:   m.Path,
				File:   m.FilePath,
				Inline: m.InlineStart != nil,
				IsRoot: m.IsRoot,
			})
		}
		total := len(out)
		return outputResult(CLIResult{Command: "modules", Results: limit(out), TotalCount: &total})
	},
}

// storedDiagnostic renders a stored problem like a live diagnostic.
func storedDiagnostic(p store.Problem) CLIDiagnostic {
	d := CLIDiagnostic{
		File:   p.Path,
		Line:   p.Line,
		Col:    p.Col,
		Module: p.Module,
		Code:   p.Kind,
	}
	if kind, ok := module.ParseProblemKind(p.Kind); ok {
		d.Message = module.Problem{Kind: kind, Candidate: p.Candidate, MoveTo: p.MoveTo}.Message()
	} else {
		d.Message = p.Kind
	}
	return d
}

func limit[T any](rows []T) []T {
	if flagLimit > 0 && len(rows) > flagLimit {
		return rows[:flagLimit]
	}
	return rows
}
