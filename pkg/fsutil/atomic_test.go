package fsutil_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/Heavybullets8/TT-Migration/pkg/fsutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAtomicWrite_CreatesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".variables.log")
	data := []byte(`[]`)

	err := fsutil.AtomicWrite(path, data, 0644)
	require.NoError(t, err)

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, data, content)
}

func TestAtomicWrite_OverwritesExisting(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".variables.log")
	require.NoError(t, os.WriteFile(path, []byte("old"), 0644))

	err := fsutil.AtomicWrite(path, []byte("new"), 0644)
	require.NoError(t, err)

	content, _ := os.ReadFile(path)
	assert.Equal(t, "new", string(content))
}

func TestAtomicWrite_NoTmpLeftOnSuccess(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".variables.log")
	require.NoError(t, fsutil.AtomicWrite(path, []byte("data"), 0644))

	entries, _ := os.ReadDir(dir)
	assert.Len(t, entries, 1, "only the target file should exist")
}

func TestAtomicWrite_MissingDir(t *testing.T) {
	err := fsutil.AtomicWrite(filepath.Join(t.TempDir(), "missing", "f"), []byte("x"), 0644)
	assert.Error(t, err)
}

func TestWriteExclusive_CreatesOnce(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".marker_deadbeef")

	require.NoError(t, fsutil.WriteExclusive(path, []byte("body"), 0644))
	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "body", string(content))

	err = fsutil.WriteExclusive(path, []byte("other"), 0644)
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrExist)

	content, _ = os.ReadFile(path)
	assert.Equal(t, "body", string(content), "existing file must not be modified")
}

func TestRenameAndSync(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src")
	dst := filepath.Join(dir, "dst")
	require.NoError(t, os.WriteFile(src, []byte("data"), 0644))

	err := fsutil.RenameAndSync(src, dst)
	require.NoError(t, err)

	assert.NoFileExists(t, src)
	content, _ := os.ReadFile(dst)
	assert.Equal(t, "data", string(content))
}

func TestFsyncDir(t *testing.T) {
	dir := t.TempDir()
	err := fsutil.FsyncDir(dir)
	assert.NoError(t, err)
}

func TestIsWritableDir(t *testing.T) {
	dir := t.TempDir()
	assert.NoError(t, fsutil.IsWritableDir(dir))

	entries, _ := os.ReadDir(dir)
	assert.Empty(t, entries, "probe file must be removed")

	assert.Error(t, fsutil.IsWritableDir(filepath.Join(dir, "missing")))

	file := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(file, nil, 0644))
	assert.Error(t, fsutil.IsWritableDir(file))
}
