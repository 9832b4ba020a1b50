// Package audit implements the integrity log: an append-only, hash-linked
// JSON array of content-hash observations of watched files, stored as
// .variables.log in a log directory.
package audit

import (
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/Heavybullets8/TT-Migration/internal/integrity"
	"github.com/Heavybullets8/TT-Migration/pkg/errclass"
	"github.com/Heavybullets8/TT-Migration/pkg/logging"
	"github.com/Heavybullets8/TT-Migration/pkg/metrics"
	"github.com/Heavybullets8/TT-Migration/pkg/model"
	"github.com/Heavybullets8/TT-Migration/pkg/pathutil"
	"github.com/Heavybullets8/TT-Migration/pkg/uuidutil"
)

// DefaultFileName is the log file name inside a log directory.
const DefaultFileName = ".variables.log"

// Log is the integrity log of one log directory.
type Log struct {
	dir           string
	path          string
	requireRecord bool
	clock         func() time.Time
	newID         func() string
	logger        *logging.Logger
	metrics       *metrics.Registry
}

// Option configures a Log.
type Option func(*Log)

// WithFileName overrides DefaultFileName.
func WithFileName(name string) Option {
	return func(l *Log) { l.path = filepath.Join(l.dir, name) }
}

// WithRequireRecord makes Verify return errclass.ErrNotFound for a watched
// path that has never been recorded, instead of false.
func WithRequireRecord(require bool) Option {
	return func(l *Log) { l.requireRecord = require }
}

// WithClock replaces time.Now for entry timestamps.
func WithClock(clock func() time.Time) Option {
	return func(l *Log) { l.clock = clock }
}

// WithIDGenerator replaces the UUID generator for entry IDs.
func WithIDGenerator(fn func() string) Option {
	return func(l *Log) { l.newID = fn }
}

// WithLogger sets the logger.
func WithLogger(lg *logging.Logger) Option {
	return func(l *Log) { l.logger = lg }
}

// WithMetrics sets the metrics registry.
func WithMetrics(m *metrics.Registry) Option {
	return func(l *Log) { l.metrics = m }
}

// NewLog returns the log stored in dir. Nothing is touched on disk until
// the first Record.
func NewLog(dir string, opts ...Option) *Log {
	if abs, err := pathutil.AbsClean(dir); err == nil {
		dir = abs
	}
	l := &Log{
		dir:     dir,
		path:    filepath.Join(dir, DefaultFileName),
		clock:   time.Now,
		newID:   uuidutil.NewV4,
		logger:  logging.Global(),
		metrics: metrics.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	l.logger = l.logger.WithFields(map[string]any{"log": l.path})
	return l
}

// Path returns the log file path.
func (l *Log) Path() string {
	return l.path
}

// Record hashes watchedPath, compares the hash with the previous entry for
// the same path and appends a new entry. A file that cannot be read is
// recorded with model.HashUnreadable. Tampering is reported through the
// returned entry's Status, never as an error.
func (l *Log) Record(watchedPath string, metadata map[string]string) (*model.LogEntry, error) {
	start := time.Now()

	abs, err := pathutil.AbsClean(watchedPath)
	if err != nil {
		return nil, err
	}
	meta, err := normalizeMetadata(metadata)
	if err != nil {
		return nil, err
	}

	hash, herr := integrity.HashFile(abs)
	if herr != nil {
		l.logger.Warn("watched file unreadable", map[string]any{"watched_path": abs, "error": herr.Error()})
	}

	var entry model.LogEntry
	err = l.withLock(func() error {
		entries, err := l.load(true)
		if err != nil {
			return err
		}

		status := model.StatusNotTampered
		if prev := model.LastFor(entries, abs); prev >= 0 && entries[prev].ContentHash != hash {
			status = model.StatusTampered
		}

		entry = model.LogEntry{
			ID:          l.newID(),
			Timestamp:   l.clock().UTC(),
			WatchedPath: abs,
			ContentHash: hash,
			Metadata:    meta,
			Status:      status,
		}
		if n := len(entries); n > 0 {
			entry.PrevHash = entries[n-1].EntryHash
		}
		if entry.EntryHash, err = integrity.ComputeEntryHash(&entry); err != nil {
			return err
		}

		return l.save(append(entries, entry))
	})
	if err != nil {
		l.logger.ErrorErr("record failed", err, map[string]any{"watched_path": abs})
		return nil, err
	}

	l.metrics.RecordLogEntry(string(entry.Status), time.Since(start))
	fields := map[string]any{
		"watched_path": abs,
		"content_hash": string(entry.ContentHash),
		"status":       string(entry.Status),
	}
	if entry.Status.Tampered() {
		l.logger.Warn("content changed since last record", fields)
	} else {
		l.logger.Debug("recorded", fields)
	}
	return &entry, nil
}

// Verify re-hashes watchedPath and compares it with the last entry recorded
// for it. On divergence the entry's status is flipped to tampered in place;
// Verify never appends. Repeated calls without changes are idempotent.
//
// With no entry for watchedPath, Verify returns false, or errclass.ErrNotFound
// when the log was built WithRequireRecord.
func (l *Log) Verify(watchedPath string) (bool, error) {
	start := time.Now()

	abs, err := pathutil.AbsClean(watchedPath)
	if err != nil {
		return false, err
	}

	if _, err := os.Stat(l.path); errors.Is(err, os.ErrNotExist) {
		return l.notRecorded(abs, start)
	}

	var (
		found    bool
		tampered bool
	)
	err = l.withLock(func() error {
		entries, err := l.load(false)
		if err != nil {
			return err
		}
		idx := model.LastFor(entries, abs)
		if idx < 0 {
			return nil
		}
		found = true

		last := &entries[idx]
		if last.Status.Tampered() {
			tampered = true
			return nil
		}

		hash, herr := integrity.HashFile(abs)
		if herr != nil {
			l.logger.Warn("watched file unreadable", map[string]any{"watched_path": abs, "error": herr.Error()})
		}
		if hash == last.ContentHash {
			return nil
		}

		last.Status = model.StatusTampered
		tampered = true
		l.logger.Warn("tamper detected", map[string]any{
			"watched_path":  abs,
			"recorded_hash": string(last.ContentHash),
			"current_hash":  string(hash),
			"entry_id":      last.ID,
		})
		return l.save(entries)
	})
	if err != nil {
		l.logger.ErrorErr("verify failed", err, map[string]any{"watched_path": abs})
		return false, err
	}
	if !found {
		return l.notRecorded(abs, start)
	}

	result := metrics.ResultClean
	if tampered {
		result = metrics.ResultTampered
	}
	l.metrics.RecordVerify(result, time.Since(start))
	return tampered, nil
}

func (l *Log) notRecorded(abs string, start time.Time) (bool, error) {
	if l.requireRecord {
		return false, errclass.ErrNotFound.WithMessagef("no entry recorded for %s in %s", abs, l.path)
	}
	l.metrics.RecordVerify(metrics.ResultEmpty, time.Since(start))
	return false, nil
}

// Entries returns the stored sequence in append order.
func (l *Log) Entries() ([]model.LogEntry, error) {
	return l.load(false)
}

// State reports the tracking state of watchedPath.
func (l *Log) State(watchedPath string) (model.TrackState, error) {
	abs, err := pathutil.AbsClean(watchedPath)
	if err != nil {
		return "", err
	}
	entries, err := l.Entries()
	if err != nil {
		return "", err
	}
	idx := model.LastFor(entries, abs)
	switch {
	case idx < 0:
		return model.TrackUninitialized, nil
	case entries[idx].Status.Tampered():
		return model.TrackFlagged, nil
	default:
		return model.TrackTracked, nil
	}
}

func normalizeMetadata(in map[string]string) (map[string]string, error) {
	if len(in) == 0 {
		return nil, nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		nk, err := pathutil.NormalizeText(k)
		if err != nil {
			return nil, err
		}
		nv, err := pathutil.NormalizeText(v)
		if err != nil {
			return nil, err
		}
		out[nk] = nv
	}
	return out, nil
}
