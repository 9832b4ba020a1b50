package integrity_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Heavybullets8/TT-Migration/internal/integrity"
	"github.com/Heavybullets8/TT-Migration/pkg/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashBytes_KnownVector(t *testing.T) {
	assert.Equal(t,
		model.HashValue("e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"),
		integrity.HashBytes(nil))
}

func TestHashFile_MatchesHashBytes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "values.yaml")
	require.NoError(t, os.WriteFile(path, []byte("v1"), 0644))

	hash, err := integrity.HashFile(path)
	require.NoError(t, err)
	assert.Equal(t, integrity.HashBytes([]byte("v1")), hash)
	assert.Len(t, hash, 64)
}

func TestHashFile_MissingIsUnreadable(t *testing.T) {
	hash, err := integrity.HashFile(filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
	assert.Equal(t, model.HashUnreadable, hash)
}

func TestHashFile_DirectoryIsUnreadable(t *testing.T) {
	hash, err := integrity.HashFile(t.TempDir())
	assert.Error(t, err)
	assert.Equal(t, model.HashUnreadable, hash)
}

func TestComputeCommitment_TokenChangesDigest(t *testing.T) {
	payload := []byte(`{"actor":"alice"}`)
	a := integrity.ComputeCommitment(payload, "token-a")
	b := integrity.ComputeCommitment(payload, "token-b")
	assert.NotEqual(t, a, b)
	assert.Equal(t, a, integrity.ComputeCommitment(payload, "token-a"))
}

func TestComputeCommitment_UsesSeparator(t *testing.T) {
	payload := []byte(`{"actor":"alice"}`)
	want := integrity.HashBytes([]byte(`{"actor":"alice"}` + model.MarkerSeparator + "tok"))
	assert.Equal(t, want, integrity.ComputeCommitment(payload, "tok"))
}

func sampleEntry() *model.LogEntry {
	return &model.LogEntry{
		ID:          "8a3c9f4e-2b1d-4c6e-9f0a-1b2c3d4e5f60",
		Timestamp:   time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		WatchedPath: "/mnt/tank/backups/db.sql",
		ContentHash: integrity.HashBytes([]byte("v1")),
		Metadata:    map[string]string{"variable_name": "backup_hash", "value": "abc"},
		Status:      model.StatusNotTampered,
	}
}

func TestComputeEntryHash_ExcludesStatus(t *testing.T) {
	e1 := sampleEntry()
	e2 := sampleEntry()
	e2.Status = model.StatusTampered

	h1, err := integrity.ComputeEntryHash(e1)
	require.NoError(t, err)
	h2, err := integrity.ComputeEntryHash(e2)
	require.NoError(t, err)
	assert.Equal(t, h1, h2, "status flip must not break the chain")
}

func TestComputeEntryHash_ExcludesEntryHash(t *testing.T) {
	e1 := sampleEntry()
	e2 := sampleEntry()
	e2.EntryHash = "something"

	h1, _ := integrity.ComputeEntryHash(e1)
	h2, _ := integrity.ComputeEntryHash(e2)
	assert.Equal(t, h1, h2)
}

func TestComputeEntryHash_CoversContent(t *testing.T) {
	base, _ := integrity.ComputeEntryHash(sampleEntry())

	mutations := map[string]func(e *model.LogEntry){
		"content_hash": func(e *model.LogEntry) { e.ContentHash = integrity.HashBytes([]byte("v2")) },
		"watched_path": func(e *model.LogEntry) { e.WatchedPath = "/other" },
		"metadata":     func(e *model.LogEntry) { e.Metadata["value"] = "def" },
		"prev_hash":    func(e *model.LogEntry) { e.PrevHash = "00" },
		"timestamp":    func(e *model.LogEntry) { e.Timestamp = e.Timestamp.Add(time.Second) },
	}
	for name, mutate := range mutations {
		e := sampleEntry()
		mutate(e)
		h, err := integrity.ComputeEntryHash(e)
		require.NoError(t, err)
		assert.NotEqual(t, base, h, "changing %s must change the entry hash", name)
	}
}
