package file

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReplaceExt(t *testing.T) {
	tests := []struct {
		path, ext, expected string
	}{
		{"/docs/ch1.txt", ".md", "/docs/ch1.md"},
		{"/docs/ch1.txt", "json", "/docs/ch1.json"},
		{"/docs/ch1", "txt", "/docs/ch1.txt"},
		{"/docs/.hidden", "txt", "/docs/.hidden.txt"},
		{"", "txt", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, ReplaceExt(tt.path, tt.ext), tt.path)
	}
}

func TestWithSuffix(t *testing.T) {
	assert.Equal(t, "/out/ch1.fr.txt", WithSuffix("/out/ch1.txt", "fr"))
	assert.Equal(t, "/out/ch1.fr", WithSuffix("/out/ch1", "fr"))
	assert.Equal(t, "/out/ch1.txt", WithSuffix("/out/ch1.txt", ""))
}

func TestWriteAtomic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "out.json")

	require.NoError(t, WriteAtomic(path, []byte("one"), 0o644))
	require.NoError(t, WriteAtomic(path, []byte("two"), 0o644))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "two", string(data))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files must not be left behind")
}
