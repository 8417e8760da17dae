package store

import "time"

// SourceRoot is an exported source root.
type SourceRoot struct {
	ID        int64
	Dir       string
	Revision  int64
	GraphHash string
	IndexedAt time.Time
}

type File struct {
	RootID    int64
	FileID    int64
	Path      string
	LineCount int
}

// Module is one module of an exported tree. Path is the `::`-joined module
// path below its crate root; roots have an empty path.
type Module struct {
	RootID      int64
	ModuleID    int64
	FileID      int64
	InlineStart *int64
	InlineEnd   *int64
	ParentLink  *int64
	Path        string
	IsRoot      bool

	// FilePath is filled by queries joining files.
	FilePath string
}

// Link is one `mod` item. Problem is empty when the link resolved cleanly.
type Link struct {
	RootID      int64
	LinkID      int64
	OwnerModule int64
	Name        string
	Line        int
	Col         int
	Problem     string
	Candidate   string
	MoveTo      string

	// Targets is filled by queries from link_targets, in ordinal order.
	Targets []int64
}

type LinkTarget struct {
	RootID   int64
	LinkID   int64
	Ordinal  int
	ModuleID int64
}

// Graph is everything exported for one source root.
type Graph struct {
	Root    SourceRoot
	Files   []File
	Modules []Module
	Links   []Link
	Targets []LinkTarget
}

// Problem is a link with a problem, joined with its declaring file.
type Problem struct {
	RootID    int64
	Dir       string
	Path      string
	Line      int
	Col       int
	Module    string
	Kind      string
	Candidate string
	MoveTo    string
}
