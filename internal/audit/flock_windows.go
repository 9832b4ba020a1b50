//go:build windows

package audit

import "os"

// lockFile is a no-op on Windows; only the per-path mutex in lock.go
// serialises writers there.
func lockFile(_ *os.File) error   { return nil }
func unlockFile(_ *os.File) error { return nil }
