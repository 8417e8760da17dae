package grove

import (
	"github.com/jward/grove/internal/input"
	"github.com/jward/grove/internal/module"
	"github.com/jward/grove/internal/query"
)

// Public aliases for the internal types used in the Engine and Snapshot
// APIs. External consumers use these names; no conversion is needed.

type FileID = input.FileID
type SourceRootID = input.SourceRootID
type CrateID = input.CrateID
type SourceRoot = input.SourceRoot
type FileResolver = input.FileResolver
type PathResolver = input.PathResolver
type CrateGraph = input.CrateGraph
type Revision = query.Revision

type Tree = module.Tree
type ModuleID = module.ModuleID
type LinkID = module.LinkID
type ModuleData = module.ModuleData
type LinkData = module.LinkData
type Source = module.Source
type Submodule = module.Submodule
type Problem = module.Problem
type ProblemKind = module.ProblemKind
type Scope = module.Scope
type Conventions = module.Conventions

// ErrCanceled is returned by Snapshot methods once the Engine has been
// written to after the snapshot was taken. It is a signal to retry, not a
// failure.
var ErrCanceled = query.ErrCanceled

// NoLink is the parent link of a root module.
const NoLink = module.NoLink

const (
	UnresolvedModule = module.UnresolvedModule
	NotDirOwner      = module.NotDirOwner
	AlreadyClaimed   = module.AlreadyClaimed
)
