package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ReplaceSourceRoot writes g in a single transaction, replacing whatever
// was exported before for the same directory. The root row id is assigned
// by the store and written back into g.Root.ID. When the stored graph hash
// equals g's, nothing but the revision is updated and changed is false.
func (s *Store) ReplaceSourceRoot(g *Graph) (changed bool, err error) {
	hash := ComputeGraphHash(g)

	tx, err := s.db.Begin()
	if err != nil {
		return false, fmt.Errorf("replace source root: begin: %w", err)
	}
	defer tx.Rollback()

	var (
		rootID  int64
		oldHash string
	)
	err = tx.QueryRow("SELECT id, graph_hash FROM source_roots WHERE dir = ?", g.Root.Dir).Scan(&rootID, &oldHash)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		res, err := tx.Exec(
			"INSERT INTO source_roots (dir, revision, graph_hash, indexed_at) VALUES (?, ?, ?, ?)",
			g.Root.Dir, g.Root.Revision, hash, time.Now().UTC(),
		)
		if err != nil {
			return false, fmt.Errorf("replace source root: insert root: %w", err)
		}
		if rootID, err = res.LastInsertId(); err != nil {
			return false, fmt.Errorf("replace source root: last insert id: %w", err)
		}
	case err != nil:
		return false, fmt.Errorf("replace source root: lookup %s: %w", g.Root.Dir, err)
	default:
		if oldHash == hash {
			if _, err := tx.Exec("UPDATE source_roots SET revision = ? WHERE id = ?", g.Root.Revision, rootID); err != nil {
				return false, fmt.Errorf("replace source root: update revision: %w", err)
			}
			g.Root.ID = rootID
			return false, tx.Commit()
		}
		if _, err := tx.Exec(
			"UPDATE source_roots SET revision = ?, graph_hash = ?, indexed_at = ? WHERE id = ?",
			g.Root.Revision, hash, time.Now().UTC(), rootID,
		); err != nil {
			return false, fmt.Errorf("replace source root: update root: %w", err)
		}
		for _, q := range []string{
			"DELETE FROM link_targets WHERE root_id = ?",
			"DELETE FROM links WHERE root_id = ?",
			"DELETE FROM modules WHERE root_id = ?",
			"DELETE FROM files WHERE root_id = ?",
		} {
			if _, err := tx.Exec(q, rootID); err != nil {
				return false, fmt.Errorf("replace source root: clear: %w", err)
			}
		}
	}

	for _, f := range g.Files {
		if _, err := tx.Exec(
			"INSERT INTO files (root_id, file_id, path, line_count) VALUES (?, ?, ?, ?)",
			rootID, f.FileID, f.Path, f.LineCount,
		); err != nil {
			return false, fmt.Errorf("replace source root: file %q: %w", f.Path, err)
		}
	}
	for _, m := range g.Modules {
		if _, err := tx.Exec(
			"INSERT INTO modules (root_id, module_id, file_id, inline_start, inline_end, parent_link, path, is_root) VALUES (?, ?, ?, ?, ?, ?, ?, ?)",
			rootID, m.ModuleID, m.FileID, m.InlineStart, m.InlineEnd, m.ParentLink, m.Path, m.IsRoot,
		); err != nil {
			return false, fmt.Errorf("replace source root: module %d: %w", m.ModuleID, err)
		}
	}
	for _, l := range g.Links {
		if _, err := tx.Exec(
			"INSERT INTO links (root_id, link_id, owner_module, name, line, col, problem, candidate, move_to) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)",
			rootID, l.LinkID, l.OwnerModule, l.Name, l.Line, l.Col,
			nullString(l.Problem), nullString(l.Candidate), nullString(l.MoveTo),
		); err != nil {
			return false, fmt.Errorf("replace source root: link %q: %w", l.Name, err)
		}
	}
	for _, t := range g.Targets {
		if _, err := tx.Exec(
			"INSERT INTO link_targets (root_id, link_id, ordinal, module_id) VALUES (?, ?, ?, ?)",
			rootID, t.LinkID, t.Ordinal, t.ModuleID,
		); err != nil {
			return false, fmt.Errorf("replace source root: link target %d: %w", t.LinkID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("replace source root: commit: %w", err)
	}
	g.Root.ID = rootID
	return true, nil
}

// DeleteSourceRoot removes everything exported for dir.
func (s *Store) DeleteSourceRoot(dir string) error {
	if _, err := s.db.Exec("DELETE FROM source_roots WHERE dir = ?", dir); err != nil {
		return fmt.Errorf("delete source root %s: %w", dir, err)
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
