// Package color provides terminal color output for ttm.
// It respects the NO_COLOR environment variable (https://no-color.org/).
package color

import (
	"io"
	"os"
	"sync"

	"golang.org/x/term"

	"github.com/Heavybullets8/TT-Migration/pkg/model"
)

var (
	state struct {
		mu       sync.RWMutex
		once     sync.Once
		enabled  bool
		disabled bool
	}
)

// Init initializes the color system based on environment and flags.
func Init(noColorFlag bool) {
	state.once.Do(func() {
		state.mu.Lock()
		defer state.mu.Unlock()
		if _, exists := os.LookupEnv("NO_COLOR"); exists {
			state.disabled = true
		}
		if os.Getenv("TERM") == "dumb" {
			state.disabled = true
		}
		if noColorFlag || !IsTerminal(os.Stdout) {
			state.disabled = true
		}
		state.enabled = !state.disabled
	})
}

// IsTerminal reports whether w is a terminal. Buffers and pipes are not.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// Enabled returns true if color output is enabled.
func Enabled() bool {
	Init(false)
	state.mu.RLock()
	defer state.mu.RUnlock()
	return state.enabled
}

// Disable turns off color output.
func Disable() {
	Init(false)
	state.mu.Lock()
	defer state.mu.Unlock()
	state.disabled = true
	state.enabled = false
}

// Enable turns on color output.
func Enable() {
	Init(false)
	state.mu.Lock()
	defer state.mu.Unlock()
	state.disabled = false
	state.enabled = true
}

// ANSI color codes
const (
	Reset   = "\033[0m"
	Bold    = "\033[1m"
	DimCode = "\033[2m"
	Red     = "\033[31m"
	Green   = "\033[32m"
	Yellow  = "\033[33m"
	Cyan    = "\033[36m"
)

func wrap(code, s string) string {
	if !Enabled() {
		return s
	}
	return code + s + Reset
}

// Success formats a success message in green.
func Success(s string) string { return wrap(Green, s) }

// Error formats an error message in red.
func Error(s string) string { return wrap(Red, s) }

// Warning formats a warning message in yellow.
func Warning(s string) string { return wrap(Yellow, s) }

// Digest formats a hash or marker name in cyan.
func Digest(s string) string { return wrap(Cyan, s) }

// Header formats a header in bold.
func Header(s string) string { return wrap(Bold, s) }

// Dim formats secondary information.
func Dim(s string) string { return wrap(DimCode, s) }

// Status renders a log entry status: TAMPERED in bold red, OK in green.
func Status(s model.Status) string {
	if s.Tampered() {
		return wrap(Bold+Red, "TAMPERED")
	}
	return Success("OK")
}
