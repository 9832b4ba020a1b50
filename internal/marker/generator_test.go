package marker_test

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/Heavybullets8/TT-Migration/internal/integrity"
	"github.com/Heavybullets8/TT-Migration/internal/marker"
	"github.com/Heavybullets8/TT-Migration/pkg/errclass"
	"github.com/Heavybullets8/TT-Migration/pkg/logging"
	"github.com/Heavybullets8/TT-Migration/pkg/metrics"
	"github.com/Heavybullets8/TT-Migration/pkg/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedTime = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

func fixedEntropy() []byte {
	b := make([]byte, 32)
	for i := range b {
		b[i] = byte(i)
	}
	return b
}

func quietLogger() *logging.Logger {
	l := logging.NewLogger(logging.LevelError)
	l.SetOutput(&bytes.Buffer{})
	return l
}

func newGenerator(entropy []byte, opts ...marker.Option) *marker.Generator {
	base := []marker.Option{
		marker.WithClock(func() time.Time { return fixedTime }),
		marker.WithEntropy(bytes.NewReader(entropy)),
		marker.WithLogger(quietLogger()),
		marker.WithMetrics(metrics.NewRegistry()),
	}
	return marker.NewGenerator(append(base, opts...)...)
}

func aliceContext() model.MarkerContext {
	return model.MarkerContext{
		Path:  "/backups/x",
		Flags: model.MarkerFlags{Force: true},
	}
}

func TestCreate_Golden(t *testing.T) {
	dir := t.TempDir()
	gen := newGenerator(fixedEntropy())

	path, rec, err := gen.Create("alice", aliceContext(), dir)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, ".marker_0cdbb1d2"), path)
	assert.Equal(t, model.HashValue("25e63d55bcc0a05e4c62da8b5a9fe63c5df06ecedd07d003948a7782b2cfadff"), rec.Commitment)
	assert.Equal(t, "AAECAwQFBgcICQoLDA0ODxAREhMUFRYXGBkaGxwdHh8", rec.Entropy)
	assert.Equal(t, "EMPTY", rec.Context.Label)

	body, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, rec.Body, body)
	assert.True(t, strings.HasPrefix(string(body), string(rec.Commitment)+model.MarkerSeparator))
}

func TestCreate_CommitmentRecomputesFromBody(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	require.NoError(t, os.Mkdir(dir, 0755))
	gen := marker.NewGenerator(marker.WithLogger(quietLogger()), marker.WithMetrics(metrics.NewRegistry()))

	path, _, err := gen.Create("alice", aliceContext(), dir)
	require.NoError(t, err)
	assert.Regexp(t, `^\.marker_[0-9a-f]{8}$`, filepath.Base(path))

	body, err := os.ReadFile(path)
	require.NoError(t, err)
	sec, err := marker.Split(body)
	require.NoError(t, err)

	assert.Equal(t, sec.Commitment, integrity.ComputeCommitment(sec.Payload, sec.Token))
	assert.Equal(t, filepath.Base(path), marker.NameFor(body))
}

func TestCreate_DifferentEntropyDifferentMarker(t *testing.T) {
	other := fixedEntropy()
	other[0] ^= 0xff

	_, a, err := newGenerator(fixedEntropy()).Create("alice", aliceContext(), t.TempDir())
	require.NoError(t, err)
	_, b, err := newGenerator(other).Create("alice", aliceContext(), t.TempDir())
	require.NoError(t, err)

	assert.NotEqual(t, a.Commitment, b.Commitment)
	assert.NotEqual(t, a.Name, b.Name)
}

func TestCreate_DeterministicForFixedInputs(t *testing.T) {
	_, a, err := newGenerator(fixedEntropy()).Create("alice", aliceContext(), t.TempDir())
	require.NoError(t, err)
	_, b, err := newGenerator(fixedEntropy()).Create("alice", aliceContext(), t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, a.Body, b.Body)
	assert.Equal(t, a.Name, b.Name)
}

func TestCreate_SameDirTwiceWithSameInputsFails(t *testing.T) {
	dir := t.TempDir()
	entropy := append(fixedEntropy(), fixedEntropy()...)
	gen := newGenerator(entropy)

	_, _, err := gen.Create("alice", aliceContext(), dir)
	require.NoError(t, err)

	gen = newGenerator(fixedEntropy())
	_, _, err = gen.Create("alice", aliceContext(), dir)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errclass.ErrIO))
}

func TestCreate_MissingDirectory(t *testing.T) {
	_, _, err := newGenerator(fixedEntropy()).Create("alice", aliceContext(), filepath.Join(t.TempDir(), "nope"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, errclass.ErrIO))
}

func TestCreate_TargetIsFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(file, nil, 0644))

	_, _, err := newGenerator(fixedEntropy()).Create("alice", aliceContext(), file)
	assert.True(t, errors.Is(err, errclass.ErrIO))
}

func TestCreate_ShortEntropy(t *testing.T) {
	_, _, err := newGenerator([]byte{1, 2, 3}).Create("alice", aliceContext(), t.TempDir())
	require.Error(t, err)
	assert.True(t, errors.Is(err, errclass.ErrEntropy))
}

func TestCreate_TokenBytesFloor(t *testing.T) {
	gen := newGenerator(fixedEntropy(), marker.WithTokenBytes(4))
	_, rec, err := gen.Create("alice", aliceContext(), t.TempDir())
	require.NoError(t, err)
	assert.Len(t, rec.Entropy, 22, "16 bytes base64url without padding")
}

func TestCreate_ConfiguredDefaultLabel(t *testing.T) {
	gen := newGenerator(fixedEntropy(), marker.WithDefaultLabel("nextcloud"))
	_, rec, err := gen.Create("alice", aliceContext(), t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, "nextcloud", rec.Context.Label)
}

func TestCreate_EmptyActor(t *testing.T) {
	_, _, err := newGenerator(fixedEntropy()).Create("", aliceContext(), t.TempDir())
	assert.True(t, errors.Is(err, errclass.ErrNameInvalid))
}

func TestCreate_UnserializableExtraFlags(t *testing.T) {
	ctx := aliceContext()
	ctx.Flags.Extra = map[string]string{"chart": "bad\xff"}
	_, _, err := newGenerator(fixedEntropy()).Create("alice", ctx, t.TempDir())
	assert.True(t, errors.Is(err, errclass.ErrEncoding))

	ctx.Flags.Extra = map[string]string{"": "v"}
	_, _, err = newGenerator(fixedEntropy()).Create("alice", ctx, t.TempDir())
	assert.True(t, errors.Is(err, errclass.ErrEncoding))
}

func TestBuild_EachFieldChangesCommitment(t *testing.T) {
	token := "AAECAwQFBgcICQoLDA0ODw"
	base, err := marker.Build("alice", aliceContext(), fixedTime, token)
	require.NoError(t, err)

	variants := map[string]func() (*model.MarkerRecord, error){
		"actor": func() (*model.MarkerRecord, error) {
			return marker.Build("bob", aliceContext(), fixedTime, token)
		},
		"timestamp": func() (*model.MarkerRecord, error) {
			return marker.Build("alice", aliceContext(), fixedTime.Add(time.Nanosecond), token)
		},
		"path": func() (*model.MarkerRecord, error) {
			c := aliceContext()
			c.Path = "/backups/y"
			return marker.Build("alice", c, fixedTime, token)
		},
		"flag": func() (*model.MarkerRecord, error) {
			c := aliceContext()
			c.Flags.MigratePVs = true
			return marker.Build("alice", c, fixedTime, token)
		},
		"extra": func() (*model.MarkerRecord, error) {
			c := aliceContext()
			c.Flags.Extra = map[string]string{"chart": "immich"}
			return marker.Build("alice", c, fixedTime, token)
		},
	}
	for name, build := range variants {
		rec, err := build()
		require.NoError(t, err, name)
		assert.NotEqual(t, base.Commitment, rec.Commitment, "changing %s must change the commitment", name)
	}
}

func TestBuild_SeparatorInFieldIsHarmless(t *testing.T) {
	c := aliceContext()
	c.Path = "/a" + model.MarkerSeparator + "b"
	rec, err := marker.Build("alice", c, fixedTime, "tok")
	require.NoError(t, err)

	sec, err := marker.Split(rec.Body)
	require.NoError(t, err)
	assert.Equal(t, rec.Commitment, sec.Commitment)

	parsed, err := marker.Parse(rec.Name, rec.Body)
	require.NoError(t, err)
	assert.Equal(t, c.Path, parsed.Context.Path)
}

func TestBuild_EmptyToken(t *testing.T) {
	_, err := marker.Build("alice", aliceContext(), fixedTime, "")
	assert.True(t, errors.Is(err, errclass.ErrEntropy))
}
