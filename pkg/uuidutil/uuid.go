package uuidutil

import "github.com/google/uuid"

// NewV4 generates a random UUID v4 string.
// Panics if the random source fails; there is no recovery from that.
func NewV4() string {
	return uuid.Must(uuid.NewRandom()).String()
}

// Valid reports whether s parses as a UUID.
func Valid(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}
