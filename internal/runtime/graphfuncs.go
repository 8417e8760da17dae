package runtime

import (
	"context"
	"fmt"
	"strings"

	"github.com/risor-io/risor/object"

	"github.com/jward/grove/internal/store"
)

// Graph query host functions. Rows come back as lists of Risor maps with
// snake_case keys; optional columns are omitted when absent.

func makeSourceRootsFn(s *store.Store) *object.Builtin {
	return object.NewBuiltin("source_roots", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 0 {
			return object.NewArgsError("source_roots", 0, len(args))
		}
		roots, err := s.SourceRoots()
		if err != nil {
			return object.Errorf("source_roots: %v", err)
		}
		results := make([]object.Object, 0, len(roots))
		for _, r := range roots {
			results = append(results, object.NewMap(map[string]object.Object{
				"id":         object.NewInt(r.ID),
				"dir":        object.NewString(r.Dir),
				"revision":   object.NewInt(r.Revision),
				"graph_hash": object.NewString(r.GraphHash),
			}))
		}
		return object.NewList(results)
	})
}

// modules(root_id) → []map
func makeModulesFn(s *store.Store) *object.Builtin {
	return object.NewBuiltin("modules", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError("modules", 1, len(args))
		}
		rootID, err := toInt64(args[0])
		if err != nil {
			return object.Errorf("modules: %v", err)
		}
		mods, err := s.Modules(rootID)
		if err != nil {
			return object.Errorf("modules: %v", err)
		}
		return modulesToList(mods)
	})
}

// modules_by_path(path) → []map, across every source root.
func makeModulesByPathFn(s *store.Store) *object.Builtin {
	return object.NewBuiltin("modules_by_path", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError("modules_by_path", 1, len(args))
		}
		path, err := toString(args[0])
		if err != nil {
			return object.Errorf("modules_by_path: %v", err)
		}
		mods, err := s.ModulesByPath(path)
		if err != nil {
			return object.Errorf("modules_by_path: %v", err)
		}
		return modulesToList(mods)
	})
}

// links(root_id) → []map; targets is a list of module ids.
func makeLinksFn(s *store.Store) *object.Builtin {
	return object.NewBuiltin("links", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError("links", 1, len(args))
		}
		rootID, err := toInt64(args[0])
		if err != nil {
			return object.Errorf("links: %v", err)
		}
		links, err := s.Links(rootID)
		if err != nil {
			return object.Errorf("links: %v", err)
		}
		results := make([]object.Object, 0, len(links))
		for _, l := range links {
			targets := make([]object.Object, len(l.Targets))
			for i, t := range l.Targets {
				targets[i] = object.NewInt(t)
			}
			m := map[string]object.Object{
				"root_id":      object.NewInt(l.RootID),
				"id":           object.NewInt(l.LinkID),
				"owner_module": object.NewInt(l.OwnerModule),
				"name":         object.NewString(l.Name),
				"line":         object.NewInt(int64(l.Line)),
				"col":          object.NewInt(int64(l.Col)),
				"targets":      object.NewList(targets),
			}
			if l.Problem != "" {
				m["problem"] = object.NewString(l.Problem)
				m["candidate"] = object.NewString(l.Candidate)
				m["move_to"] = object.NewString(l.MoveTo)
			}
			results = append(results, object.NewMap(m))
		}
		return object.NewList(results)
	})
}

// problems([kind]) → []map
func makeProblemsFn(s *store.Store) *object.Builtin {
	return object.NewBuiltin("problems", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) > 1 {
			return object.Errorf("problems: expected at most 1 argument, got %d", len(args))
		}
		var kind string
		if len(args) == 1 {
			k, err := toString(args[0])
			if err != nil {
				return object.Errorf("problems: %v", err)
			}
			kind = k
		}
		problems, err := s.Problems(kind)
		if err != nil {
			return object.Errorf("problems: %v", err)
		}
		results := make([]object.Object, 0, len(problems))
		for _, p := range problems {
			results = append(results, object.NewMap(map[string]object.Object{
				"root_id":   object.NewInt(p.RootID),
				"dir":       object.NewString(p.Dir),
				"path":      object.NewString(p.Path),
				"line":      object.NewInt(int64(p.Line)),
				"col":       object.NewInt(int64(p.Col)),
				"module":    object.NewString(p.Module),
				"kind":      object.NewString(p.Kind),
				"candidate": object.NewString(p.Candidate),
				"move_to":   object.NewString(p.MoveTo),
			}))
		}
		return object.NewList(results)
	})
}

// db_query(sql, args...) → []map. Only SELECT statements are allowed.
func makeDBQueryFn(s *store.Store) *object.Builtin {
	return object.NewBuiltin("db_query", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) < 1 {
			return object.Errorf("db_query: expected at least 1 argument (sql), got %d", len(args))
		}
		sqlStr, err := toString(args[0])
		if err != nil {
			return object.Errorf("db_query: %v", err)
		}
		if !strings.HasPrefix(strings.ToUpper(strings.TrimSpace(sqlStr)), "SELECT") {
			return object.Errorf("db_query: only SELECT queries are allowed")
		}

		var queryArgs []any
		for _, arg := range args[1:] {
			switch v := arg.(type) {
			case *object.Int:
				queryArgs = append(queryArgs, v.Value())
			case *object.Float:
				queryArgs = append(queryArgs, v.Value())
			case *object.String:
				queryArgs = append(queryArgs, v.Value())
			case *object.Bool:
				queryArgs = append(queryArgs, v.Value())
			case *object.NilType:
				queryArgs = append(queryArgs, nil)
			default:
				queryArgs = append(queryArgs, fmt.Sprintf("%v", arg))
			}
		}

		rows, err := s.DB().QueryContext(ctx, sqlStr, queryArgs...)
		if err != nil {
			return object.Errorf("db_query: %v", err)
		}
		defer rows.Close()

		cols, err := rows.Columns()
		if err != nil {
			return object.Errorf("db_query: columns: %v", err)
		}
		results := []object.Object{}
		for rows.Next() {
			values := make([]any, len(cols))
			ptrs := make([]any, len(cols))
			for i := range values {
				ptrs[i] = &values[i]
			}
			if err := rows.Scan(ptrs...); err != nil {
				return object.Errorf("db_query: scan: %v", err)
			}
			row := make(map[string]object.Object, len(cols))
			for i, col := range cols {
				row[col] = sqlValueToObject(values[i])
			}
			results = append(results, object.NewMap(row))
		}
		if err := rows.Err(); err != nil {
			return object.Errorf("db_query: rows: %v", err)
		}
		return object.NewList(results)
	})
}

func sqlValueToObject(v any) object.Object {
	switch val := v.(type) {
	case nil:
		return object.Nil
	case int64:
		return object.NewInt(val)
	case float64:
		return object.NewFloat(val)
	case string:
		return object.NewString(val)
	case bool:
		return object.NewBool(val)
	case []byte:
		return object.NewString(string(val))
	default:
		return object.NewString(fmt.Sprintf("%v", val))
	}
}

func modulesToList(mods []store.Module) object.Object {
	results := make([]object.Object, 0, len(mods))
	for _, m := range mods {
		row := map[string]object.Object{
			"root_id": object.NewInt(m.RootID),
			"id":      object.NewInt(m.ModuleID),
			"file_id": object.NewInt(m.FileID),
			"file":    object.NewString(m.FilePath),
			"path":    object.NewString(m.Path),
			"is_root": object.NewBool(m.IsRoot),
		}
		if m.InlineStart != nil && m.InlineEnd != nil {
			row["inline_start"] = object.NewInt(*m.InlineStart)
			row["inline_end"] = object.NewInt(*m.InlineEnd)
		}
		if m.ParentLink != nil {
			row["parent_link"] = object.NewInt(*m.ParentLink)
		}
		results = append(results, object.NewMap(row))
	}
	return object.NewList(results)
}
