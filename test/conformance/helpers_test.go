//go:build conformance

package conformance

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Heavybullets8/TT-Migration/pkg/logging"
	"github.com/Heavybullets8/TT-Migration/pkg/metrics"
	"github.com/Heavybullets8/TT-Migration/pkg/ttm"
)

// fixedReader yields the same bytes forever.
type fixedReader struct{ b []byte }

func (r fixedReader) Read(p []byte) (int, error) {
	for i := range p {
		p[i] = r.b[i%len(r.b)]
	}
	return len(p), nil
}

func sequentialEntropy(n int) fixedReader {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(i)
	}
	return fixedReader{b: b}
}

// newClient returns a client with a silent logger, private metrics and the
// given clock and entropy (nil for the defaults).
func newClient(t *testing.T, clock func() time.Time, entropy fixedReader) *ttm.Client {
	t.Helper()
	lg := logging.NewLogger(logging.LevelError)
	lg.SetOutput(&bytes.Buffer{})
	opts := ttm.Options{Logger: lg, Metrics: metrics.NewRegistry(), Clock: clock}
	if entropy.b != nil {
		opts.Entropy = entropy
	}
	client, err := ttm.New(opts)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return client
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func readFile(t *testing.T, dir, name string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(dir, name))
	if err != nil {
		t.Fatalf("read %s: %v", name, err)
	}
	return string(data)
}

var bg = context.Background()
