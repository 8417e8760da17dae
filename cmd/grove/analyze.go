package main

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jward/grove"
	"github.com/jward/grove/internal/module"
)

var treeCmd = &cobra.Command{
	Use:   "tree [path]",
	Short: "Print the module tree of a crate directory",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, root, _, err := loadEngine(cmd.Context(), args, nil)
		if err != nil {
			return outputError("tree", err)
		}
		mods, err := grove.Retry(cmd.Context(), e.Snapshot, func(s *grove.Snapshot) ([]CLIModule, error) {
			return treeResult(s, root)
		})
		if err != nil {
			return outputError("tree", err)
		}
		return outputResult(CLIResult{Command: "tree", Results: mods})
	},
}

var checkCmd = &cobra.Command{
	Use:   "check [path]",
	Short: "Report unresolved, misplaced and doubly-included modules",
	Long:  "Report module problems with 1-based positions. Exits non-zero when any are found.",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, root, _, err := loadEngine(cmd.Context(), args, nil)
		if err != nil {
			return outputError("check", err)
		}
		diags, err := grove.Retry(cmd.Context(), e.Snapshot, func(s *grove.Snapshot) ([]CLIDiagnostic, error) {
			return checkResult(s, root)
		})
		if err != nil {
			return outputError("check", err)
		}
		total := len(diags)
		if err := outputResult(CLIResult{Command: "check", Results: diags, TotalCount: &total}); err != nil {
			return err
		}
		if total > 0 {
			return errProblems
		}
		return nil
	},
}

var scopeCmd = &cobra.Command{
	Use:   "scope <file> [module::path]",
	Short: "List the items a module declares directly",
	Long:  "List the items of the module a file defines, or of an inline or child module below it named by a ::-separated path.",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		file, err := filepath.Abs(args[0])
		if err != nil {
			return outputError("scope", err)
		}
		e, _, _, err := loadEngine(cmd.Context(), []string{flagScopeDir}, nil)
		if err != nil {
			return outputError("scope", err)
		}
		id, ok := e.FileID(file)
		if !ok {
			return outputError("scope", fmt.Errorf("not a loaded source file: %s", args[0]))
		}
		var sub []string
		if len(args) == 2 && args[1] != "" {
			sub = strings.Split(args[1], "::")
		}
		res, err := grove.Retry(cmd.Context(), e.Snapshot, func(s *grove.Snapshot) (CLIScope, error) {
			return scopeResult(s, id, sub)
		})
		if err != nil {
			return outputError("scope", err)
		}
		return outputResult(CLIResult{Command: "scope", Results: res})
	},
}

var flagScopeDir string

func init() {
	scopeCmd.Flags().StringVar(&flagScopeDir, "dir", ".", "crate directory the file belongs to")
}

// treeResult converts the module tree of root into nested CLIModules.
func treeResult(s *grove.Snapshot, root grove.SourceRootID) ([]CLIModule, error) {
	tree, err := s.ModuleTree(root)
	if err != nil {
		return nil, err
	}
	var convert func(id grove.ModuleID) CLIModule
	convert = func(id grove.ModuleID) CLIModule {
		src := tree.Module(id).Source
		path, _ := s.FilePath(src.File)
		m := CLIModule{
			ID:     int64(id),
			Name:   tree.Name(id),
			Path:   strings.Join(tree.Path(id), "::"),
			File:   path,
			Inline: src.IsInline(),
		}
		for _, c := range tree.Children(id) {
			m.Children = append(m.Children, convert(c))
		}
		return m
	}
	mods := make([]CLIModule, 0, len(tree.Roots()))
	for _, id := range tree.Roots() {
		mods = append(mods, convert(id))
	}
	return mods, nil
}

// checkResult collects the diagnostics of every file in root.
func checkResult(s *grove.Snapshot, root grove.SourceRootID) ([]CLIDiagnostic, error) {
	sr, ok := s.SourceRoot(root)
	if !ok {
		return nil, fmt.Errorf("%w: %d", module.ErrNoSourceRoot, root)
	}
	diags := []CLIDiagnostic{}
	for _, f := range sr.Files {
		ds, err := s.Diagnostics(f)
		if err != nil {
			return nil, err
		}
		for _, d := range ds {
			diags = append(diags, CLIDiagnostic{
				File:    d.Path,
				Line:    d.Line,
				Col:     d.Col,
				Module:  d.Module,
				Code:    d.Code,
				Message: d.Message,
				Fix:     d.Fix,
			})
		}
	}
	return diags, nil
}

// errNoModule is returned by scopeResult when a file or path names no module.
var errNoModule = errors.New("no such module")

// scopeResult returns the scope of the module file defines, or of the
// module reached from it through the child names in sub.
func scopeResult(s *grove.Snapshot, file grove.FileID, sub []string) (CLIScope, error) {
	root, ok := s.FileSourceRoot(file)
	if !ok {
		return CLIScope{}, fmt.Errorf("%w: file %d has no source root", errNoModule, file)
	}
	tree, err := s.ModuleTree(root)
	if err != nil {
		return CLIScope{}, err
	}
	id, ok := tree.ModuleForSource(module.FileSource(file))
	if !ok {
		return CLIScope{}, fmt.Errorf("%w: file %d is not part of the module tree", errNoModule, file)
	}
	for _, name := range sub {
		if id, ok = tree.Child(id, name); !ok {
			return CLIScope{}, fmt.Errorf("%w: %s", errNoModule, strings.Join(sub, "::"))
		}
	}

	scope, err := s.ModuleScope(root, id)
	if err != nil {
		return CLIScope{}, err
	}
	path, _ := s.FilePath(tree.Module(id).Source.File)
	res := CLIScope{
		Module:  strings.Join(tree.Path(id), "::"),
		File:    path,
		Items:   []CLIItem{},
		Imports: scope.Imports,
	}
	for _, it := range scope.Items {
		res.Items = append(res.Items, CLIItem{Name: it.Name, Kind: it.Kind})
	}
	if res.Imports == nil {
		res.Imports = []string{}
	}
	return res, nil
}
