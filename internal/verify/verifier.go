// Package verify checks marker files and the hash chain of integrity logs.
package verify

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/Heavybullets8/TT-Migration/internal/integrity"
	"github.com/Heavybullets8/TT-Migration/internal/marker"
	"github.com/Heavybullets8/TT-Migration/pkg/errclass"
	"github.com/Heavybullets8/TT-Migration/pkg/model"
)

// MarkerResult contains verification results for a single marker file.
type MarkerResult struct {
	Path            string              `json:"path"`
	Commitment      model.HashValue     `json:"commitment,omitempty"`
	CommitmentValid bool                `json:"commitment_valid"`
	NameValid       bool                `json:"name_valid"`
	TamperDetected  bool                `json:"tamper_detected"`
	Record          *model.MarkerRecord `json:"record,omitempty"`
	Error           string              `json:"error,omitempty"`
}

// Marker verifies the marker file at path: the commitment must match the
// payload and token, and the file name must match the body digest.
// A malformed body is reported as tampering; only I/O failures are errors.
func Marker(path string) (*MarkerResult, error) {
	result := &MarkerResult{Path: path}

	body, err := os.ReadFile(path)
	if err != nil {
		return nil, errclass.ErrIO.Wrap(err, "read marker")
	}

	name := filepath.Base(path)
	result.NameValid = marker.NameFor(body) == name

	sec, err := marker.Split(body)
	if err != nil {
		result.TamperDetected = true
		result.Error = err.Error()
		return result, nil
	}
	result.Commitment = sec.Commitment
	result.CommitmentValid = integrity.ComputeCommitment(sec.Payload, sec.Token) == sec.Commitment

	rec, err := marker.Parse(name, body)
	if err != nil {
		result.TamperDetected = true
		result.Error = err.Error()
		return result, nil
	}
	result.Record = rec

	switch {
	case !result.CommitmentValid:
		result.TamperDetected = true
		result.Error = "commitment mismatch"
	case !result.NameValid:
		result.TamperDetected = true
		result.Error = "file name does not match body digest"
	}
	return result, nil
}

// ChainError reports the first entry whose links do not verify.
type ChainError struct {
	Index  int
	Reason string
}

func (e *ChainError) Error() string {
	return fmt.Sprintf("%s: entry %d: %s", errclass.ErrAuditChainBroken.Code, e.Index, e.Reason)
}

// Is lets errors.Is match errclass.ErrAuditChainBroken.
func (e *ChainError) Is(target error) bool {
	return errors.Is(errclass.ErrAuditChainBroken, target)
}

// CheckChain recomputes every entry_hash and prev_hash link in order.
// An empty sequence is a valid chain.
func CheckChain(entries []model.LogEntry) error {
	var prev model.HashValue
	for i := range entries {
		e := &entries[i]
		if e.PrevHash != prev {
			return &ChainError{Index: i, Reason: "prev_hash does not match previous entry"}
		}
		hash, err := integrity.ComputeEntryHash(e)
		if err != nil {
			return err
		}
		if hash != e.EntryHash {
			return &ChainError{Index: i, Reason: "entry_hash mismatch"}
		}
		prev = e.EntryHash
	}
	return nil
}
