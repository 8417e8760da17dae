package store

import (
	"database/sql"
	"fmt"
)

// SourceRoots returns every exported source root ordered by directory.
func (s *Store) SourceRoots() ([]SourceRoot, error) {
	rows, err := s.db.Query("SELECT id, dir, revision, graph_hash, indexed_at FROM source_roots ORDER BY dir")
	if err != nil {
		return nil, fmt.Errorf("source roots: %w", err)
	}
	defer rows.Close()
	var roots []SourceRoot
	for rows.Next() {
		var r SourceRoot
		if err := rows.Scan(&r.ID, &r.Dir, &r.Revision, &r.GraphHash, &r.IndexedAt); err != nil {
			return nil, fmt.Errorf("scan source root: %w", err)
		}
		roots = append(roots, r)
	}
	return roots, rows.Err()
}

const moduleColumns = `m.root_id, m.module_id, m.file_id, m.inline_start, m.inline_end, m.parent_link, m.path, m.is_root, COALESCE(f.path, '')`

const moduleFrom = ` FROM modules m LEFT JOIN files f ON f.root_id = m.root_id AND f.file_id = m.file_id`

// Modules returns the modules of one source root in module order.
func (s *Store) Modules(rootID int64) ([]Module, error) {
	return s.queryModules("SELECT "+moduleColumns+moduleFrom+" WHERE m.root_id = ? ORDER BY m.module_id", rootID)
}

// ModulesByPath returns the modules whose `::`-joined path equals path,
// across all source roots.
func (s *Store) ModulesByPath(path string) ([]Module, error) {
	return s.queryModules("SELECT "+moduleColumns+moduleFrom+" WHERE m.path = ? ORDER BY m.root_id, m.module_id", path)
}

func (s *Store) queryModules(q string, args ...any) ([]Module, error) {
	rows, err := s.db.Query(q, args...)
	if err != nil {
		return nil, fmt.Errorf("modules: %w", err)
	}
	defer rows.Close()
	var mods []Module
	for rows.Next() {
		var (
			m                      Module
			start, end, parentLink sql.NullInt64
		)
		if err := rows.Scan(&m.RootID, &m.ModuleID, &m.FileID, &start, &end, &parentLink, &m.Path, &m.IsRoot, &m.FilePath); err != nil {
			return nil, fmt.Errorf("scan module: %w", err)
		}
		m.InlineStart = int64Ptr(start)
		m.InlineEnd = int64Ptr(end)
		m.ParentLink = int64Ptr(parentLink)
		mods = append(mods, m)
	}
	return mods, rows.Err()
}

// Links returns the links of one source root in link order, with targets.
func (s *Store) Links(rootID int64) ([]Link, error) {
	rows, err := s.db.Query(
		`SELECT root_id, link_id, owner_module, name, line, col,
		        COALESCE(problem, ''), COALESCE(candidate, ''), COALESCE(move_to, '')
		 FROM links WHERE root_id = ? ORDER BY link_id`, rootID)
	if err != nil {
		return nil, fmt.Errorf("links: %w", err)
	}
	var links []Link
	index := make(map[int64]int)
	for rows.Next() {
		var l Link
		if err := rows.Scan(&l.RootID, &l.LinkID, &l.OwnerModule, &l.Name, &l.Line, &l.Col, &l.Problem, &l.Candidate, &l.MoveTo); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan link: %w", err)
		}
		index[l.LinkID] = len(links)
		links = append(links, l)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("links: %w", err)
	}

	rows, err = s.db.Query("SELECT link_id, module_id FROM link_targets WHERE root_id = ? ORDER BY link_id, ordinal", rootID)
	if err != nil {
		return nil, fmt.Errorf("link targets: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var linkID, moduleID int64
		if err := rows.Scan(&linkID, &moduleID); err != nil {
			return nil, fmt.Errorf("scan link target: %w", err)
		}
		if i, ok := index[linkID]; ok {
			links[i].Targets = append(links[i].Targets, moduleID)
		}
	}
	return links, rows.Err()
}

// Problems returns the links carrying a problem across all source roots,
// ordered by directory, file and position. A non-empty kind filters by
// problem kind.
func (s *Store) Problems(kind string) ([]Problem, error) {
	q := `SELECT r.id, r.dir, COALESCE(f.path, ''), l.line, l.col, l.name, l.problem,
	             COALESCE(l.candidate, ''), COALESCE(l.move_to, '')
	      FROM links l
	      JOIN source_roots r ON r.id = l.root_id
	      JOIN modules m ON m.root_id = l.root_id AND m.module_id = l.owner_module
	      LEFT JOIN files f ON f.root_id = m.root_id AND f.file_id = m.file_id
	      WHERE l.problem IS NOT NULL`
	var args []any
	if kind != "" {
		q += " AND l.problem = ?"
		args = append(args, kind)
	}
	q += " ORDER BY r.dir, f.path, l.line, l.col"

	rows, err := s.db.Query(q, args...)
	if err != nil {
		return nil, fmt.Errorf("problems: %w", err)
	}
	defer rows.Close()
	var problems []Problem
	for rows.Next() {
		var p Problem
		if err := rows.Scan(&p.RootID, &p.Dir, &p.Path, &p.Line, &p.Col, &p.Module, &p.Kind, &p.Candidate, &p.MoveTo); err != nil {
			return nil, fmt.Errorf("scan problem: %w", err)
		}
		problems = append(problems, p)
	}
	return problems, rows.Err()
}

func int64Ptr(n sql.NullInt64) *int64 {
	if !n.Valid {
		return nil
	}
	v := n.Int64
	return &v
}
