package model

import "time"

// LogEntry is a single element of the JSON array stored in a log directory's
// .variables.log file.
type LogEntry struct {
	ID          string            `json:"id"`
	Timestamp   time.Time         `json:"timestamp"`
	WatchedPath string            `json:"watched_path"`
	ContentHash HashValue         `json:"content_hash"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	Status      Status            `json:"status"`
	PrevHash    HashValue         `json:"prev_hash"`
	EntryHash   HashValue         `json:"entry_hash"`
}

// LastFor returns the index of the most recent entry for watchedPath, or -1.
func LastFor(entries []LogEntry, watchedPath string) int {
	for i := len(entries) - 1; i >= 0; i-- {
		if entries[i].WatchedPath == watchedPath {
			return i
		}
	}
	return -1
}
