package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
)

// formatTreeText prints modules as an indented outline.
func formatTreeText(w io.Writer, mods []CLIModule) {
	var walk func(m CLIModule, depth int)
	walk = func(m CLIModule, depth int) {
		name := m.Name
		if name == "" {
			name = "crate"
		}
		loc := m.File
		if m.Inline {
			loc += " (inline)"
		}
		fmt.Fprintf(w, "%s%s  %s\n", strings.Repeat("  ", depth), name, loc)
		for _, c := range m.Children {
			walk(c, depth+1)
		}
	}
	for _, m := range mods {
		walk(m, 0)
	}
}

// formatDiagnosticsText prints diagnostics as "file:line:col: message".
func formatDiagnosticsText(w io.Writer, diags []CLIDiagnostic) {
	for _, d := range diags {
		fmt.Fprintf(w, "%s:%d:%d: %s [%s]\n", d.File, d.Line, d.Col, d.Message, d.Code)
		if d.Fix != "" {
			fmt.Fprintf(w, "  fix: %s\n", d.Fix)
		}
	}
}

func formatScopeText(w io.Writer, s CLIScope) {
	name := s.Module
	if name == "" {
		name = "crate"
	}
	fmt.Fprintf(w, "Module: %s\n", name)
	fmt.Fprintf(w, "File: %s\n", s.File)
	if len(s.Items) > 0 {
		fmt.Fprintln(w)
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "NAME\tKIND")
		for _, it := range s.Items {
			fmt.Fprintf(tw, "%s\t%s\n", it.Name, it.Kind)
		}
		tw.Flush()
	}
	if len(s.Imports) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Imports:")
		for _, imp := range s.Imports {
			fmt.Fprintf(w, "  %s\n", imp)
		}
	}
}

func formatIndexText(w io.Writer, r CLIIndex) {
	fmt.Fprintf(w, "Indexed %s: %d source roots, %d changed (revision %d)\n", r.Dir, r.Roots, r.Changed, r.Revision)
	fmt.Fprintf(w, "Database: %s\n", r.Database)
}

func formatStoredModulesText(w io.Writer, mods []CLIStoredModule) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ROOT\tID\tPATH\tFILE")
	for _, m := range mods {
		path := m.Path
		if m.IsRoot {
			path = "crate"
		}
		file := m.File
		if m.Inline {
			file += " (inline)"
		}
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\n", m.Root, m.ID, path, file)
	}
	tw.Flush()
}

// writeResultText dispatches to the text formatter for the result type.
func writeResultText(w io.Writer, result CLIResult) error {
	switch v := result.Results.(type) {
	case []CLIModule:
		formatTreeText(w, v)
	case []CLIDiagnostic:
		formatDiagnosticsText(w, v)
	case CLIScope:
		formatScopeText(w, v)
	case CLIIndex:
		formatIndexText(w, v)
	case []CLIStoredModule:
		formatStoredModulesText(w, v)
	case nil:
	default:
		return fmt.Errorf("unsupported result type for text format: %T", v)
	}
	if result.TotalCount != nil && *result.TotalCount > resultLen(result.Results) {
		fmt.Fprintf(w, "\nShowing %d of %d results\n", resultLen(result.Results), *result.TotalCount)
	}
	return nil
}

// resultLen returns the length of a result slice, or 1 for a single value.
func resultLen(v any) int {
	switch r := v.(type) {
	case []CLIModule:
		return len(r)
	case []CLIDiagnostic:
		return len(r)
	case []CLIStoredModule:
		return len(r)
	case nil:
		return 0
	default:
		return 1
	}
}

// outputResult writes result to stdout in the selected format.
func outputResult(result CLIResult) error {
	if flagFormat == "text" {
		return writeResultText(os.Stdout, result)
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

// outputError writes an error in the selected format and returns it so RunE
// can propagate it to Cobra. In JSON mode the error is written to stdout as a
// CLIResult envelope. In text mode it goes to stderr.
func outputError(command string, err error) error {
	errorHandled = true
	if flagFormat == "text" {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		return err
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(CLIResult{Command: command, Error: err.Error()})
	return err
}

var validFormats = []string{"json", "text"}

func validateFormat(format string) error {
	for _, f := range validFormats {
		if format == f {
			return nil
		}
	}
	return fmt.Errorf("invalid format %q: must be %s", format, strings.Join(validFormats, " or "))
}
