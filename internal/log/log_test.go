package log

import (
	"bytes"
	"context"
	"github.com/stretchr/testify/assert"
	"log/slog"
	"testing"
)

func TestSectionFiltering(t *testing.T) {
	previous := Level()
	t.Cleanup(func() { SetLevel(previous) })
	SetLevel(slog.LevelDebug)

	var buf bytes.Buffer
	logger := slog.New(&filteringHandler{underlying: slog.NewTextHandler(&buf, LoggerOpts)})

	logger.With("section", "narrow").Debug("kept")
	logger.With("section", "parser").Debug("dropped")
	logger.Debug("dropped too")
	logger.Debug("kept as attribute", "section", "exhaust")
	logger.With("section", "parser").Warn("warnings always pass")

	out := buf.String()
	assert.Contains(t, out, "msg=kept ")
	assert.Contains(t, out, `msg="kept as attribute"`)
	assert.Contains(t, out, `msg="warnings always pass"`)
	assert.NotContains(t, out, "dropped")
}

func TestSetLevel(t *testing.T) {
	previous := Level()
	t.Cleanup(func() { SetLevel(previous) })

	SetLevel(slog.LevelError)
	assert.Equal(t, slog.LevelError, Level())
	assert.False(t, DefaultLogger.Enabled(context.Background(), slog.LevelWarn))
}
