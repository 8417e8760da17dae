package module

import (
	"strings"

	"github.com/jward/grove/internal/input"
)

// candidate is one resolved path of a declaration.
type candidate struct {
	path string
	file input.FileID
}

// Resolve maps the declaration `mod name;` in file to candidate files.
// dir holds the names of the inline modules enclosing the declaration,
// outermost first.
//
// A file whose stem is a directory-owner stem resolves both the sibling
// file and the sibling directory module, in that order, and keeps every
// hit; no hit yields UnresolvedModule naming the file candidate. Any other
// file never resolves and always yields NotDirOwner.
func Resolve(conv Conventions, r input.FileResolver, file input.FileID, dir []string, name string) ([]input.FileID, *Problem) {
	cands, problem := resolveCandidates(conv, r, file, dir, name)
	var ids []input.FileID
	for _, c := range cands {
		ids = append(ids, c.file)
	}
	return ids, problem
}

func resolveCandidates(conv Conventions, r input.FileResolver, file input.FileID, dir []string, name string) ([]candidate, *Problem) {
	prefix := "../"
	if len(dir) > 0 {
		prefix += strings.Join(dir, "/") + "/"
	}
	fileCandidate := prefix + name + conv.Extension
	dirCandidate := prefix + name + "/" + conv.DirModuleStem + conv.Extension

	stem := r.FileStem(file)
	if !conv.isDirOwner(stem) {
		return nil, &Problem{
			Kind:      NotDirOwner,
			Candidate: fileCandidate,
			MoveTo:    "../" + stem + "/" + conv.DirModuleStem + conv.Extension,
		}
	}

	var found []candidate
	for _, rel := range []string{fileCandidate, dirCandidate} {
		if id, ok := r.Resolve(file, rel); ok {
			found = append(found, candidate{path: rel, file: id})
		}
	}
	if len(found) == 0 {
		return nil, &Problem{Kind: UnresolvedModule, Candidate: fileCandidate}
	}
	return found, nil
}
