package audit

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/Heavybullets8/TT-Migration/pkg/errclass"
	"github.com/Heavybullets8/TT-Migration/pkg/fsutil"
	"github.com/Heavybullets8/TT-Migration/pkg/model"
)

// load reads the full entry sequence. A missing file is an empty sequence.
// Malformed content is reported as errclass.ErrCorruptLog in the log output,
// optionally moved aside, and also treated as empty.
func (l *Log) load(preserveCorrupt bool) ([]model.LogEntry, error) {
	data, err := os.ReadFile(l.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, errclass.ErrIO.Wrap(err, "read log")
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}

	entries, err := decodeEntries(data)
	if err != nil {
		l.recoverCorrupt(err, preserveCorrupt)
		return nil, nil
	}
	return entries, nil
}

func decodeEntries(data []byte) ([]model.LogEntry, error) {
	var entries []model.LogEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, err
	}
	for i := range entries {
		if err := validateEntry(&entries[i]); err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}
	}
	return entries, nil
}

func validateEntry(e *model.LogEntry) error {
	if e.WatchedPath == "" {
		return errors.New("missing watched_path")
	}
	if e.ContentHash == "" {
		return errors.New("missing content_hash")
	}
	if e.Status != model.StatusNotTampered && e.Status != model.StatusTampered {
		return fmt.Errorf("unknown status %q", e.Status)
	}
	return nil
}

func (l *Log) recoverCorrupt(cause error, preserve bool) {
	corrupt := errclass.ErrCorruptLog.Wrap(cause, "parse log")
	fields := map[string]any{"path": l.path}
	l.metrics.RecordCorruptLog()

	if preserve {
		aside := fmt.Sprintf("%s.corrupt-%d", l.path, l.clock().UnixNano())
		if err := fsutil.RenameAndSync(l.path, aside); err != nil {
			l.logger.WarnErr("could not preserve corrupt log", err, fields)
		} else {
			fields["preserved_as"] = aside
		}
	}
	l.logger.WarnErr("log is corrupt, continuing with an empty history", corrupt, fields)
}

// save persists the whole sequence with temp-file-then-rename.
func (l *Log) save(entries []model.LogEntry) error {
	data, err := json.MarshalIndent(entries, "", "    ")
	if err != nil {
		return errclass.ErrEncoding.Wrap(err, "marshal log")
	}
	data = append(data, '\n')
	if err := fsutil.AtomicWrite(l.path, data, 0644); err != nil {
		return errclass.ErrIO.Wrap(err, "write log")
	}
	return nil
}

// ReadStrict returns the stored entries without recovery: malformed content
// is returned as errclass.ErrCorruptLog and the file is left untouched.
func (l *Log) ReadStrict() ([]model.LogEntry, error) {
	data, err := os.ReadFile(l.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, errclass.ErrIO.Wrap(err, "read log")
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}
	entries, err := decodeEntries(data)
	if err != nil {
		return nil, errclass.ErrCorruptLog.Wrap(err, "parse log")
	}
	return entries, nil
}
