package input

import (
	"path"
	"strings"
)

// PathResolver resolves files by slash-separated path. It is immutable:
// a change to the file set means building a new resolver (and therefore a
// new SourceRoot input).
type PathResolver struct {
	paths map[FileID]string
	ids   map[string]FileID
}

// NewPathResolver builds a resolver from a FileID → path table. Paths are
// cleaned and converted to forward slashes.
func NewPathResolver(paths map[FileID]string) *PathResolver {
	r := &PathResolver{
		paths: make(map[FileID]string, len(paths)),
		ids:   make(map[string]FileID, len(paths)),
	}
	for id, p := range paths {
		p = cleanPath(p)
		r.paths[id] = p
		r.ids[p] = id
	}
	return r
}

// Path returns the path of a file.
func (r *PathResolver) Path(file FileID) (string, bool) {
	p, ok := r.paths[file]
	return p, ok
}

// Lookup returns the file at path p.
func (r *PathResolver) Lookup(p string) (FileID, bool) {
	id, ok := r.ids[cleanPath(p)]
	return id, ok
}

// FileStem implements FileResolver.
func (r *PathResolver) FileStem(file FileID) string {
	base := path.Base(r.paths[file])
	return strings.TrimSuffix(base, path.Ext(base))
}

// Resolve implements FileResolver. rel is interpreted with the declaring
// file itself as the first path component, so "../m.rs" from "src/lib.rs"
// names "src/m.rs".
func (r *PathResolver) Resolve(file FileID, rel string) (FileID, bool) {
	from, ok := r.paths[file]
	if !ok {
		return 0, false
	}
	id, ok := r.ids[path.Join(from, rel)]
	return id, ok
}

func cleanPath(p string) string {
	return path.Clean(strings.ReplaceAll(p, "\\", "/"))
}
