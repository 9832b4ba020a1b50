// Package marker generates tamper-evident marker files that commit to the
// metadata of a backup or deploy operation.
//
// Body layout (sections joined by model.MarkerSeparator, trailing newline):
//
//	<commitment hex>
//	::
//	<canonical JSON payload: {"actor","context":{"flags","label","path"},"timestamp"}>
//	::
//	<base64url entropy token>
//
// commitment = SHA-256(payload || separator || token)
// file name  = ".marker_" + first 8 hex chars of SHA-256(body)
package marker

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/Heavybullets8/TT-Migration/internal/integrity"
	"github.com/Heavybullets8/TT-Migration/pkg/errclass"
	"github.com/Heavybullets8/TT-Migration/pkg/fsutil"
	"github.com/Heavybullets8/TT-Migration/pkg/jsonutil"
	"github.com/Heavybullets8/TT-Migration/pkg/logging"
	"github.com/Heavybullets8/TT-Migration/pkg/metrics"
	"github.com/Heavybullets8/TT-Migration/pkg/model"
	"github.com/Heavybullets8/TT-Migration/pkg/pathutil"
)

// TimestampLayout is fixed width so marker timestamps sort lexically.
const TimestampLayout = "2006-01-02T15:04:05.000000000Z"

const (
	// MinTokenBytes is the least entropy a marker may carry.
	MinTokenBytes = 16
	// DefaultTokenBytes is used when no size is configured.
	DefaultTokenBytes = 32

	nameDigestLen = 8
)

// Generator writes marker files.
type Generator struct {
	clock        func() time.Time
	entropy      io.Reader
	tokenBytes   int
	defaultLabel string
	logger       *logging.Logger
	metrics      *metrics.Registry
}

// Option configures a Generator.
type Option func(*Generator)

// WithClock replaces time.Now.
func WithClock(clock func() time.Time) Option {
	return func(g *Generator) { g.clock = clock }
}

// WithEntropy replaces crypto/rand.Reader as the token source.
func WithEntropy(r io.Reader) Option {
	return func(g *Generator) { g.entropy = r }
}

// WithTokenBytes sets the number of random bytes per token. Values below
// MinTokenBytes are raised to it.
func WithTokenBytes(n int) Option {
	return func(g *Generator) {
		if n < MinTokenBytes {
			n = MinTokenBytes
		}
		g.tokenBytes = n
	}
}

// WithDefaultLabel sets the label used when a context has none.
func WithDefaultLabel(label string) Option {
	return func(g *Generator) { g.defaultLabel = label }
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(g *Generator) { g.logger = l }
}

// WithMetrics sets the metrics registry.
func WithMetrics(m *metrics.Registry) Option {
	return func(g *Generator) { g.metrics = m }
}

// NewGenerator creates a Generator using the wall clock and crypto/rand
// unless overridden.
func NewGenerator(opts ...Option) *Generator {
	g := &Generator{
		clock:        time.Now,
		entropy:      rand.Reader,
		tokenBytes:   DefaultTokenBytes,
		defaultLabel: model.DefaultLabel,
		logger:       logging.Global(),
		metrics:      metrics.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Create writes a new marker for the operation described by actor and mctx
// into dir and returns its full path. The file is created exclusively and
// never rewritten.
func (g *Generator) Create(actor string, mctx model.MarkerContext, dir string) (string, *model.MarkerRecord, error) {
	start := time.Now()
	path, rec, err := g.create(actor, mctx, dir)
	g.metrics.RecordMarker(err == nil, time.Since(start))
	if err != nil {
		g.logger.ErrorErr("create marker", err, map[string]any{"dir": dir, "actor": actor})
		return "", nil, err
	}
	g.logger.Info("marker created", map[string]any{
		"path":       path,
		"actor":      rec.Actor,
		"commitment": string(rec.Commitment),
	})
	return path, rec, nil
}

func (g *Generator) create(actor string, mctx model.MarkerContext, dir string) (string, *model.MarkerRecord, error) {
	if err := fsutil.IsWritableDir(dir); err != nil {
		return "", nil, errclass.ErrIO.Wrap(err, "marker directory")
	}

	token, err := g.newToken()
	if err != nil {
		return "", nil, err
	}

	rec, err := Build(actor, mctx.WithDefaults(g.defaultLabel), g.clock(), token)
	if err != nil {
		return "", nil, err
	}

	path := filepath.Join(dir, rec.Name)
	if err := fsutil.WriteExclusive(path, rec.Body, 0644); err != nil {
		if errors.Is(err, os.ErrExist) {
			return "", nil, errclass.ErrIO.Wrap(err, "marker already exists")
		}
		return "", nil, errclass.ErrIO.Wrap(err, "write marker")
	}
	return path, rec, nil
}

func (g *Generator) newToken() (string, error) {
	buf := make([]byte, g.tokenBytes)
	if _, err := io.ReadFull(g.entropy, buf); err != nil {
		return "", errclass.ErrEntropy.Wrap(err, "read entropy")
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// Build assembles the marker for fixed inputs. It is a pure function: equal
// inputs give an identical body and name. An empty label becomes
// model.DefaultLabel.
func Build(actor string, mctx model.MarkerContext, ts time.Time, token string) (*model.MarkerRecord, error) {
	if token == "" {
		return nil, errclass.ErrEntropy.WithMessage("empty entropy token")
	}
	actor, err := pathutil.NormalizeActor(actor)
	if err != nil {
		return nil, err
	}
	mctx, err = normalizeContext(mctx.WithDefaults(model.DefaultLabel))
	if err != nil {
		return nil, err
	}

	ts = ts.UTC()
	payload, err := jsonutil.CanonicalMarshal(model.MarkerPayload{
		Timestamp: ts.Format(TimestampLayout),
		Actor:     actor,
		Context:   mctx,
	})
	if err != nil {
		return nil, fmt.Errorf("marker payload: %w", err)
	}

	commitment := integrity.ComputeCommitment(payload, token)
	body := assembleBody(commitment, payload, token)

	return &model.MarkerRecord{
		Name:       NameFor(body),
		Commitment: commitment,
		Timestamp:  ts,
		Actor:      actor,
		Context:    mctx,
		Entropy:    token,
		Body:       body,
	}, nil
}

// NameFor derives the marker file name from its body.
func NameFor(body []byte) string {
	return model.MarkerPrefix + string(integrity.HashBytes(body))[:nameDigestLen]
}

func assembleBody(commitment model.HashValue, payload []byte, token string) []byte {
	body := make([]byte, 0, len(commitment)+len(payload)+len(token)+2*len(model.MarkerSeparator)+1)
	body = append(body, commitment...)
	body = append(body, model.MarkerSeparator...)
	body = append(body, payload...)
	body = append(body, model.MarkerSeparator...)
	body = append(body, token...)
	return append(body, '\n')
}

func normalizeContext(mctx model.MarkerContext) (model.MarkerContext, error) {
	var err error
	if mctx.Path, err = pathutil.NormalizeText(mctx.Path); err != nil {
		return mctx, err
	}
	if mctx.Label, err = pathutil.NormalizeText(mctx.Label); err != nil {
		return mctx, err
	}
	if mctx.Flags.Extra, err = pathutil.NormalizeFlags(mctx.Flags.Extra); err != nil {
		return mctx, err
	}
	return mctx, nil
}
