package logging

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	slogctx "github.com/veqryn/slog-context"
)

func TestSetup(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	var buf bytes.Buffer
	ctx, logger := Setup(context.Background(), &buf, slog.LevelInfo, false)

	ctx = slogctx.With(ctx, "root", "crate")
	FromContext(ctx).InfoContext(ctx, "tree built", "modules", 3)
	logger.Debug("hidden")

	out := buf.String()
	assert.Contains(t, out, "tree built")
	assert.Contains(t, out, "modules=3")
	assert.Contains(t, out, "root=crate")
	assert.NotContains(t, out, "hidden")
}
