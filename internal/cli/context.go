package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/Heavybullets8/TT-Migration/pkg/color"
)

// fmtErr prints an error line to w. The prefix is colored only when w is
// a terminal.
func fmtErr(w io.Writer, format string, args ...any) {
	prefix := "ttm: "
	if color.Enabled() && color.IsTerminal(w) {
		prefix = color.Error("ttm:") + " "
	}
	fmt.Fprintf(w, prefix+format+"\n", args...)
}

// noColorRequested scans raw arguments for --no-color. Cobra rejects an
// unknown command before persistent flags are parsed, so the error path
// cannot rely on the parsed flag.
func noColorRequested(args []string) bool {
	for _, arg := range args {
		switch arg {
		case "--":
			return false
		case "--no-color", "--no-color=true":
			return true
		}
	}
	return false
}

// parseKeyValues turns repeated name=value flags into a map.
func parseKeyValues(flag string, pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	out := make(map[string]string, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("--%s expects name=value, got %q", flag, p)
		}
		out[k] = v
	}
	return out, nil
}
