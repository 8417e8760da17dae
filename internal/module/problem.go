package module

import "fmt"

// ProblemKind classifies a structural diagnostic on a link.
type ProblemKind int

const (
	// UnresolvedModule: neither candidate path exists.
	UnresolvedModule ProblemKind = iota + 1
	// NotDirOwner: the declaring file may not own a directory of
	// submodules. Resolution is not attempted.
	NotDirOwner
	// AlreadyClaimed: a candidate resolved to a file whose module is
	// already part of the tree under another declaration, or is an
	// ancestor of the declaring module.
	AlreadyClaimed
)

func (k ProblemKind) String() string {
	switch k {
	case UnresolvedModule:
		return "unresolved_module"
	case NotDirOwner:
		return "not_dir_owner"
	case AlreadyClaimed:
		return "already_claimed"
	default:
		return fmt.Sprintf("problem(%d)", int(k))
	}
}

// ParseProblemKind is the inverse of ProblemKind.String.
func ParseProblemKind(s string) (ProblemKind, bool) {
	for k := UnresolvedModule; k <= AlreadyClaimed; k++ {
		if k.String() == s {
			return k, true
		}
	}
	return 0, false
}

// Problem is a recoverable diagnostic attached to a link. Paths are
// relative to the declaring file.
type Problem struct {
	Kind      ProblemKind
	Candidate string
	// MoveTo is the suggested new location of the declaring file; set for
	// NotDirOwner only.
	MoveTo string
}

// Message renders the problem for users.
func (p Problem) Message() string {
	switch p.Kind {
	case UnresolvedModule:
		return fmt.Sprintf("unresolved module, can't find module file: %s", p.Candidate)
	case NotDirOwner:
		return fmt.Sprintf("file can't own submodules, move it to %s to declare %s", p.MoveTo, p.Candidate)
	case AlreadyClaimed:
		return fmt.Sprintf("module file %s is already included elsewhere", p.Candidate)
	default:
		return p.Kind.String()
	}
}
