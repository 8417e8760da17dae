package store

import (
	"crypto/sha256"
	"fmt"
	"sort"
)

// ComputeGraphHash computes a deterministic hash of a graph's content.
// The revision and timestamp do not affect the hash, so re-exporting an
// unchanged tree computed at a later revision is detected as a no-op.
func ComputeGraphHash(g *Graph) string {
	h := sha256.New()
	fmt.Fprintf(h, "dir:%s\n", g.Root.Dir)

	files := make([]File, len(g.Files))
	copy(files, g.Files)
	sort.Slice(files, func(i, j int) bool { return files[i].FileID < files[j].FileID })
	for _, f := range files {
		fmt.Fprintf(h, "file:%d:%s:%d\n", f.FileID, f.Path, f.LineCount)
	}
	for _, m := range g.Modules {
		fmt.Fprintf(h, "module:%d:%d:%s:%s:%s:%s:%t\n",
			m.ModuleID, m.FileID, fmtPtr(m.InlineStart), fmtPtr(m.InlineEnd), fmtPtr(m.ParentLink), m.Path, m.IsRoot)
	}
	for _, l := range g.Links {
		fmt.Fprintf(h, "link:%d:%d:%s:%d:%d:%s:%s:%s\n",
			l.LinkID, l.OwnerModule, l.Name, l.Line, l.Col, l.Problem, l.Candidate, l.MoveTo)
	}
	for _, t := range g.Targets {
		fmt.Fprintf(h, "target:%d:%d:%d\n", t.LinkID, t.Ordinal, t.ModuleID)
	}
	return fmt.Sprintf("%x", h.Sum(nil))
}

func fmtPtr(p *int64) string {
	if p == nil {
		return "-"
	}
	return fmt.Sprint(*p)
}
