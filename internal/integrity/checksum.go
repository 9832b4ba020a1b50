// Package integrity provides the hashes that bind markers and log entries.
package integrity

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"

	"github.com/Heavybullets8/TT-Migration/pkg/jsonutil"
	"github.com/Heavybullets8/TT-Migration/pkg/model"
)

// HashBytes returns the hex SHA-256 of data.
func HashBytes(data []byte) model.HashValue {
	sum := sha256.Sum256(data)
	return model.HashValue(hex.EncodeToString(sum[:]))
}

// HashFile hashes the current bytes of path. When the file cannot be opened
// or read it returns model.HashUnreadable together with the cause; callers
// record the sentinel rather than failing.
func HashFile(path string) (model.HashValue, error) {
	f, err := os.Open(path)
	if err != nil {
		return model.HashUnreadable, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return model.HashUnreadable, err
	}
	if info.IsDir() {
		return model.HashUnreadable, fmt.Errorf("%s is a directory", path)
	}

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return model.HashUnreadable, err
	}
	return model.HashValue(hex.EncodeToString(h.Sum(nil))), nil
}

// ComputeCommitment digests payload and token joined by the marker separator.
func ComputeCommitment(payload []byte, token string) model.HashValue {
	h := sha256.New()
	h.Write(payload)
	h.Write([]byte(model.MarkerSeparator))
	h.Write([]byte(token))
	return model.HashValue(hex.EncodeToString(h.Sum(nil)))
}

// ComputeEntryHash computes the chain hash of a log entry.
// Excludes: status (the one mutable field) and entry_hash itself.
func ComputeEntryHash(e *model.LogEntry) (model.HashValue, error) {
	hashEntry := &model.LogEntry{
		ID:          e.ID,
		Timestamp:   e.Timestamp,
		WatchedPath: e.WatchedPath,
		ContentHash: e.ContentHash,
		Metadata:    e.Metadata,
		PrevHash:    e.PrevHash,
		// Status: excluded
		// EntryHash: excluded
	}

	data, err := jsonutil.CanonicalMarshal(hashEntry)
	if err != nil {
		return "", fmt.Errorf("canonical marshal entry: %w", err)
	}
	return HashBytes(data), nil
}
