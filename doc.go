// Package grove computes the module hierarchy of Rust source trees on top
// of a memoized, cancellable query engine.
//
// # Model
//
// An [Engine] owns the inputs: file texts, source roots (a set of files
// plus a [FileResolver]), the crate graph and library roots. Every write
// bumps the engine's [Revision]. Readers take a [Snapshot], a read-only
// view pinned to the revision at which it was taken, and ask it for
// derived values:
//
//   - [Snapshot.FileSyntax]: tree-sitter parse of a file.
//   - [Snapshot.Submodules]: the `mod` items declared directly in a module.
//   - [Snapshot.ModuleTree]: the module forest of a source root.
//   - [Snapshot.ModuleScope]: the items declared directly in one module.
//
// Derived values are memoized per revision and shared between snapshots
// of the same revision. A write discards them all and cancels every
// computation started earlier: such computations return [ErrCanceled] at
// their next check, and the caller retries on a fresh snapshot, usually
// with [Retry].
//
// # Usage
//
//	e := grove.New()
//	root, err := e.LoadDirectory(ctx, "path/to/crate")
//	if err != nil { ... }
//
//	tree, err := grove.Retry(ctx, e.Snapshot, func(s *grove.Snapshot) (*grove.Tree, error) {
//		return s.ModuleTree(root)
//	})
//
// # Module trees
//
// Every member file of a source root is a candidate root. A `mod name;`
// declared in a directory-owning file (stem mod, lib or main) resolves to
// ../name.rs and ../name/mod.rs; every hit becomes a child of the declaring
// link, and a file claimed this way stops being a root. Links that cannot
// be resolved keep a [Problem] and an empty target list, so the rest of the
// tree stays navigable. [Snapshot.Diagnostics] renders those problems with
// positions and fix suggestions.
package grove
