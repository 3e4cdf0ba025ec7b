package logging

import (
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tphakala/dolphinwatch/internal/conf"
)

func TestInitDisabledLogsToStderr(t *testing.T) {
	cfg := conf.LogConfig{Enabled: false}
	closeFn, err := Init(cfg, false)
	require.NoError(t, err)
	require.NotNil(t, Default())
	assert.NoError(t, closeFn())
}

func TestNewRotatingWriterCreatesDirectory(t *testing.T) {
	dir := t.TempDir()
	cfg := conf.LogConfig{
		Enabled:    true,
		Path:       filepath.Join(dir, "nested", "app.log"),
		MaxSizeMB:  5,
		MaxBackups: 2,
		MaxAgeDays: 7,
	}
	lj, err := newRotatingWriter(cfg)
	require.NoError(t, err)
	assert.DirExists(t, filepath.Join(dir, "nested"))
	assert.Equal(t, 5, lj.MaxSize)
	assert.Equal(t, 2, lj.MaxBackups)
	assert.Equal(t, 7, lj.MaxAge)
}

func TestReplaceAttrTruncatesFloats(t *testing.T) {
	a := replaceAttr(nil, slog.Float64("prominence_db", 12.34567))
	assert.InDelta(t, 12.34, a.Value.Float64(), 1e-9)
}
