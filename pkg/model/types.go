package model

// HashValue is a SHA-256 hash stored as hex string.
type HashValue string

// HashUnreadable is recorded in place of a content hash when the watched
// file cannot be opened or read.
const HashUnreadable HashValue = "unreadable"

// Short returns the first 8 characters for display.
func (h HashValue) Short() string {
	s := string(h)
	if len(s) >= 8 {
		return s[:8]
	}
	return s
}

// Status is the tamper status of a log entry.
type Status string

const (
	StatusNotTampered Status = "not_tampered"
	StatusTampered    Status = "tampered"
)

// Tampered reports whether the status marks a divergence.
func (s Status) Tampered() bool {
	return s == StatusTampered
}

// TrackState is the per-watched-path state of an integrity log.
type TrackState string

const (
	TrackUninitialized TrackState = "uninitialized"
	TrackTracked       TrackState = "tracked"
	TrackFlagged       TrackState = "flagged"
)
