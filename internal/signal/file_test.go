package signal

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFeed(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "confidence.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestFileProviderLoadsFeed(t *testing.T) {
	path := writeFeed(t, `{
		"signals": [
			{"symbol": "eurusd", "timestamp": 1700000000000, "confidence": 0.73},
			{"symbol": "USDJPY", "timestamp": 1700000000000, "confidence": 0.41}
		]
	}`)
	p, err := NewFileProvider(path, false)
	require.NoError(t, err)
	assert.Equal(t, 2, p.Count())

	// symbol 大小写归一
	v, ok := p.Confidence("EURUSD", 1700000000000)
	require.True(t, ok)
	assert.InDelta(t, 0.73, v, 1e-9)

	_, ok = p.Confidence("GBPUSD", 1700000000000)
	assert.False(t, ok)
}

func TestFileProviderRejectsSchemaViolations(t *testing.T) {
	cases := []string{
		`{}`,
		`{"signals": [{"symbol": "", "timestamp": 1, "confidence": 0.5}]}`,
		`{"signals": [{"symbol": "EURUSD", "confidence": 0.5}]}`,
		`not json`,
	}
	for _, c := range cases {
		path := writeFeed(t, c)
		_, err := NewFileProvider(path, false)
		assert.Error(t, err, "feed=%s", c)
	}
}

func TestFileProviderMissingFile(t *testing.T) {
	_, err := NewFileProvider(filepath.Join(t.TempDir(), "missing.json"), false)
	assert.Error(t, err)
}

func TestStaticProvider(t *testing.T) {
	p := NewStaticProvider()
	p.Set("EURUSD", 1, 0.6)
	v, ok := p.Confidence("EURUSD", 1)
	require.True(t, ok)
	assert.Equal(t, 0.6, v)
	_, ok = p.Confidence("EURUSD", 2)
	assert.False(t, ok)
}
