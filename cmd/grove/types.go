package main

// CLIResult is the top-level JSON envelope for all commands.
type CLIResult struct {
	Command    string `json:"command"`
	Results    any    `json:"results"`
	TotalCount *int   `json:"total_count,omitempty"`
	Error      string `json:"error,omitempty"`
}

// CLIModule is one node of a printed module tree.
type CLIModule struct {
	ID       int64       `json:"id"`
	Name     string      `json:"name"`
	Path     string      `json:"path"`
	File     string      `json:"file"`
	Inline   bool        `json:"inline,omitempty"`
	Children []CLIModule `json:"children,omitempty"`
}

// CLIDiagnostic is a module problem with a 1-based position.
type CLIDiagnostic struct {
	File    string `json:"file"`
	Line    int    `json:"line"`
	Col     int    `json:"col"`
	Module  string `json:"module"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Fix     string `json:"fix,omitempty"`
}

// CLIItem is a named item in a module scope.
type CLIItem struct {
	Name string `json:"name"`
	Kind string `json:"kind"`
}

// CLIScope lists what a module declares directly.
type CLIScope struct {
	Module  string    `json:"module"`
	File    string    `json:"file"`
	Items   []CLIItem `json:"items"`
	Imports []string  `json:"imports"`
}

// CLIIndex summarizes an index run.
type CLIIndex struct {
	Dir      string `json:"dir"`
	Database string `json:"database"`
	Roots    int    `json:"roots"`
	Changed  int    `json:"changed"`
	Revision int64  `json:"revision"`
}

// CLIStoredModule is a module row read back from the database.
type CLIStoredModule struct {
	Root   string `json:"root"`
	ID     int64  `json:"id"`
	Path   string `json:"path"`
	File   string `json:"file"`
	Inline bool   `json:"inline,omitempty"`
	IsRoot bool   `json:"is_root,omitempty"`
}
