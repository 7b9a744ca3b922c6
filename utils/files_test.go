package utils

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExists(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "a.txt")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0644))

	isDir, exists, err := Exists(dir)
	require.NoError(t, err)
	assert.True(t, exists)
	assert.True(t, isDir)

	isDir, exists, err = Exists(file)
	require.NoError(t, err)
	assert.True(t, exists)
	assert.False(t, isDir)

	_, exists, err = Exists(filepath.Join(dir, "missing"))
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestCopyFileKeepsModTime(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.png")
	require.NoError(t, os.WriteFile(src, []byte("pixels"), 0644))
	mtime := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, os.Chtimes(src, mtime, mtime))

	dst := filepath.Join(dir, "backup", "nested", "src.png")
	n, err := CopyFile(src, dst)
	require.NoError(t, err)
	assert.EqualValues(t, 6, n)

	info, err := os.Stat(dst)
	require.NoError(t, err)
	assert.True(t, info.ModTime().Equal(mtime))
}

func TestWriteFileAtomic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog", "products.json")

	require.NoError(t, WriteFileAtomic(path, []byte("[]"), 0644))
	require.NoError(t, WriteFileAtomic(path, []byte("[1]"), 0644))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "[1]", string(data))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}
