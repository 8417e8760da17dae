package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/risor-io/risor/object"

	"github.com/jward/grove/internal/syntax"
)

// makeModItemsFn creates the "mod_items" host function.
//
// mod_items(src) → []map
//
// Every `mod` item in src, nested ones included, in source order. Each map
// holds name, path (enclosing inline modules and the item itself), inline,
// line and col (both 1-based).
func makeModItemsFn() *object.Builtin {
	return object.NewBuiltin("mod_items", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError("mod_items", 1, len(args))
		}
		src, err := toString(args[0])
		if err != nil {
			return object.Errorf("mod_items: %v", err)
		}

		f, err := syntax.Parse(ctx, []byte(src))
		if err != nil {
			return object.Errorf("mod_items: %v", err)
		}
		lines := syntax.NewLineIndex(src)

		var results []object.Object
		var walk func(container *syntax.Module)
		walk = func(container *syntax.Module) {
			for _, m := range container.Modules {
				pos := lines.Position(m.Ref.Start)
				parts := make([]object.Object, len(m.Path))
				for i, p := range m.Path {
					parts[i] = object.NewString(p)
				}
				results = append(results, object.NewMap(map[string]object.Object{
					"name":   object.NewString(m.Name),
					"path":   object.NewString(strings.Join(m.Path, "::")),
					"parts":  object.NewList(parts),
					"inline": object.NewBool(m.HasBody),
					"line":   object.NewInt(int64(pos.Line + 1)),
					"col":    object.NewInt(int64(pos.Col + 1)),
				}))
				walk(m)
			}
		}
		walk(f.Root())

		if results == nil {
			results = []object.Object{}
		}
		return object.NewList(results)
	})
}

// makeLineCountFn creates "line_count".
//
// line_count(src) → int
func makeLineCountFn() *object.Builtin {
	return object.NewBuiltin("line_count", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError("line_count", 1, len(args))
		}
		src, err := toString(args[0])
		if err != nil {
			return object.Errorf("line_count: %v", err)
		}
		return object.NewInt(int64(syntax.NewLineIndex(src).Lines()))
	})
}

// logObject provides log.Info/Warn/Error methods for scripts.
type logObject struct {
	logger *slog.Logger
}

func (l *logObject) Info(msg string) {
	l.logger.Info(msg)
}

func (l *logObject) Warn(msg string) {
	l.logger.Warn(msg)
}

func (l *logObject) Error(msg string) {
	l.logger.Error(msg)
}

func toInt64(obj object.Object) (int64, error) {
	if i, ok := obj.(*object.Int); ok {
		return i.Value(), nil
	}
	if f, ok := obj.(*object.Float); ok {
		return int64(f.Value()), nil
	}
	return 0, fmt.Errorf("expected int, got %s", obj.Type())
}

func toString(obj object.Object) (string, error) {
	if s, ok := obj.(*object.String); ok {
		return s.Value(), nil
	}
	return "", fmt.Errorf("expected string, got %s", obj.Type())
}
