//go:build conformance

package conformance

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/Heavybullets8/TT-Migration/internal/integrity"
	"github.com/Heavybullets8/TT-Migration/pkg/model"
)

var aliceTime = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

func aliceContext() model.MarkerContext {
	return model.MarkerContext{Path: "/backups/x", Flags: model.MarkerFlags{Force: true}}
}

// Scenario: marker for alice; recomputing the commitment over the stored
// payload and token yields the leading field.
func TestMarker_AliceCommitmentRecomputes(t *testing.T) {
	client := newClient(t, func() time.Time { return aliceTime }, sequentialEntropy(32))
	dir := t.TempDir()

	path, rec, err := client.CreateMarker(bg, "alice", aliceContext(), dir)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if !strings.HasPrefix(filepath.Base(path), model.MarkerPrefix) || len(filepath.Base(path)) != len(model.MarkerPrefix)+8 {
		t.Errorf("unexpected marker name %q", filepath.Base(path))
	}

	body := readFile(t, dir, rec.Name)
	parts := strings.Split(strings.TrimSuffix(body, "\n"), model.MarkerSeparator)
	if len(parts) != 3 {
		t.Fatalf("expected 3 sections, got %d", len(parts))
	}
	got := integrity.ComputeCommitment([]byte(parts[1]), parts[2])
	if string(got) != parts[0] {
		t.Errorf("commitment %s does not match leading field %s", got, parts[0])
	}
	if want := "25e63d55bcc0a05e4c62da8b5a9fe63c5df06ecedd07d003948a7782b2cfadff"; parts[0] != want {
		t.Errorf("commitment = %s, want %s", parts[0], want)
	}
	if !strings.Contains(parts[1], `"label":"EMPTY"`) {
		t.Errorf("blank label not defaulted: %s", parts[1])
	}
}

// Scenario: identical inputs with different entropy give different markers.
func TestMarker_EntropySeparatesIdenticalInputs(t *testing.T) {
	clock := func() time.Time { return aliceTime }
	dir := t.TempDir()

	a := newClient(t, clock, fixedReader{b: []byte{1}})
	b := newClient(t, clock, fixedReader{b: []byte{2}})

	_, ra, err := a.CreateMarker(bg, "alice", aliceContext(), dir)
	if err != nil {
		t.Fatal(err)
	}
	_, rb, err := b.CreateMarker(bg, "alice", aliceContext(), dir)
	if err != nil {
		t.Fatal(err)
	}
	if ra.Name == rb.Name || ra.Commitment == rb.Commitment {
		t.Errorf("markers collide: %s / %s", ra.Name, rb.Name)
	}
}

// Scenario: fixed entropy and clock reproduce the same body, and a second
// write into the same directory is refused rather than overwriting.
func TestMarker_DeterministicAndWriteOnce(t *testing.T) {
	clock := func() time.Time { return aliceTime }
	dirA, dirB := t.TempDir(), t.TempDir()

	_, ra, err := newClient(t, clock, sequentialEntropy(32)).CreateMarker(bg, "alice", aliceContext(), dirA)
	if err != nil {
		t.Fatal(err)
	}
	_, rb, err := newClient(t, clock, sequentialEntropy(32)).CreateMarker(bg, "alice", aliceContext(), dirB)
	if err != nil {
		t.Fatal(err)
	}
	if readFile(t, dirA, ra.Name) != readFile(t, dirB, rb.Name) {
		t.Error("bodies differ for identical inputs")
	}

	_, _, err = newClient(t, clock, sequentialEntropy(32)).CreateMarker(bg, "alice", aliceContext(), dirA)
	if err == nil {
		t.Fatal("expected exclusive create to fail")
	}
}

// Scenario: an edited marker is reported as tampered.
func TestMarker_EditDetected(t *testing.T) {
	client := newClient(t, nil, fixedReader{})
	path, _, err := client.CreateMarker(bg, "alice", aliceContext(), t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	data, _ := os.ReadFile(path)
	forged := strings.Replace(string(data), `"force":true`, `"force":false`, 1)
	writeFile(t, path, forged)

	result, err := client.VerifyMarker(bg, path)
	if err != nil {
		t.Fatal(err)
	}
	if !result.TamperDetected {
		t.Error("edit not detected")
	}
}
