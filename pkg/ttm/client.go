package ttm

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/Heavybullets8/TT-Migration/internal/audit"
	"github.com/Heavybullets8/TT-Migration/internal/marker"
	"github.com/Heavybullets8/TT-Migration/internal/verify"
	"github.com/Heavybullets8/TT-Migration/pkg/config"
	"github.com/Heavybullets8/TT-Migration/pkg/logging"
	"github.com/Heavybullets8/TT-Migration/pkg/metrics"
	"github.com/Heavybullets8/TT-Migration/pkg/model"
	"github.com/Heavybullets8/TT-Migration/pkg/webhook"
)

// Client provides marker and integrity log operations configured from a
// single Config.
type Client struct {
	cfg       *config.Config
	logger    *logging.Logger
	metrics   *metrics.Registry
	webhooks  *webhook.Client
	generator *marker.Generator
	clock     func() time.Time
}

// Options configures a Client. Zero values fall back to defaults.
type Options struct {
	Config  *config.Config    // Defaults to config.Default()
	Logger  *logging.Logger   // Defaults to one built from Config.Logging
	Metrics *metrics.Registry // Defaults to metrics.Default()
	Clock   func() time.Time  // Defaults to time.Now
	Entropy io.Reader         // Defaults to crypto/rand
}

// New builds a Client. The config is validated; webhooks start delivering
// immediately when enabled.
func New(opts Options) (*Client, error) {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("ttm: %w", err)
	}

	c := &Client{
		cfg:     cfg,
		logger:  opts.Logger,
		metrics: opts.Metrics,
		clock:   opts.Clock,
	}
	if c.logger == nil {
		c.logger = cfg.NewLogger()
	}
	if c.metrics == nil {
		c.metrics = metrics.Default()
	}
	if c.clock == nil {
		c.clock = time.Now
	}
	c.webhooks = webhook.NewClient(&cfg.Webhooks)

	genOpts := []marker.Option{
		marker.WithClock(c.clock),
		marker.WithTokenBytes(cfg.Marker.EntropyBytes),
		marker.WithDefaultLabel(cfg.Marker.DefaultLabel),
		marker.WithLogger(c.logger),
		marker.WithMetrics(c.metrics),
	}
	if opts.Entropy != nil {
		genOpts = append(genOpts, marker.WithEntropy(opts.Entropy))
	}
	c.generator = marker.NewGenerator(genOpts...)
	return c, nil
}

// Config returns the effective configuration.
func (c *Client) Config() *config.Config {
	return c.cfg
}

// Metrics returns the registry operations are counted in.
func (c *Client) Metrics() *metrics.Registry {
	return c.metrics
}

// Now returns the time from the client's clock, the same one that stamps
// markers and log entries.
func (c *Client) Now() time.Time {
	return c.clock()
}

func (c *Client) log(logDir string) *audit.Log {
	return audit.NewLog(logDir,
		audit.WithFileName(c.cfg.Log.FileName),
		audit.WithRequireRecord(c.cfg.Log.RequireRecord),
		audit.WithClock(c.clock),
		audit.WithLogger(c.logger),
		audit.WithMetrics(c.metrics),
	)
}

func (c *Client) notify(ev webhook.Event) {
	if !c.webhooks.Enabled() {
		return
	}
	ev.Timestamp = c.clock().UTC().Format(time.RFC3339)
	if err := c.webhooks.Send(ev, true); err != nil {
		c.logger.WarnErr("webhook send", err, map[string]any{"event": string(ev.Event)})
	}
}

// CreateMarker writes a new marker file into dir and returns its path and
// parsed content.
func (c *Client) CreateMarker(_ context.Context, actor string, mctx model.MarkerContext, dir string) (string, *model.MarkerRecord, error) {
	path, rec, err := c.generator.Create(actor, mctx, dir)
	if err != nil {
		return "", nil, fmt.Errorf("create marker: %w", err)
	}
	c.notify(webhook.Event{
		Event:      webhook.EventMarkerCreated,
		Actor:      rec.Actor,
		Marker:     path,
		Commitment: string(rec.Commitment),
	})
	return path, rec, nil
}

// VerifyMarker checks the marker file at path. Tampering is reported in the
// result, not as an error.
func (c *Client) VerifyMarker(_ context.Context, path string) (*verify.MarkerResult, error) {
	result, err := verify.Marker(path)
	if err != nil {
		return nil, fmt.Errorf("verify marker: %w", err)
	}
	if result.TamperDetected {
		c.logger.Warn("marker tampered", map[string]any{"path": path, "reason": result.Error})
		ev := webhook.Event{
			Event:      webhook.EventMarkerTampered,
			Marker:     path,
			Commitment: string(result.Commitment),
			Error:      result.Error,
		}
		if result.Record != nil {
			ev.Actor = result.Record.Actor
		}
		c.notify(ev)
	}
	return result, nil
}

// Record appends an observation of watchedPath to the log in logDir.
func (c *Client) Record(_ context.Context, watchedPath, logDir string, metadata map[string]string) (*model.LogEntry, error) {
	l := c.log(logDir)
	entry, err := l.Record(watchedPath, metadata)
	if err != nil {
		return nil, fmt.Errorf("record: %w", err)
	}
	ev := webhook.Event{
		Event:       webhook.EventLogRecorded,
		WatchedPath: entry.WatchedPath,
		LogDir:      logDir,
		ContentHash: string(entry.ContentHash),
		Metadata:    entry.Metadata,
	}
	c.notify(ev)
	if entry.Status.Tampered() {
		ev.Event = webhook.EventLogTampered
		c.notify(ev)
	}
	return entry, nil
}

// Verify reports whether watchedPath has been tampered with since it was
// last recorded in logDir.
func (c *Client) Verify(_ context.Context, watchedPath, logDir string) (bool, error) {
	tampered, err := c.log(logDir).Verify(watchedPath)
	if err != nil {
		return false, fmt.Errorf("verify: %w", err)
	}
	if tampered {
		c.notify(webhook.Event{
			Event:       webhook.EventLogTampered,
			WatchedPath: watchedPath,
			LogDir:      logDir,
		})
	}
	return tampered, nil
}

// Entries returns the log in logDir in append order.
func (c *Client) Entries(_ context.Context, logDir string) ([]model.LogEntry, error) {
	entries, err := c.log(logDir).Entries()
	if err != nil {
		return nil, fmt.Errorf("entries: %w", err)
	}
	return entries, nil
}

// State reports whether watchedPath is untracked, tracked or flagged.
func (c *Client) State(_ context.Context, watchedPath, logDir string) (model.TrackState, error) {
	state, err := c.log(logDir).State(watchedPath)
	if err != nil {
		return "", fmt.Errorf("state: %w", err)
	}
	return state, nil
}

// CheckChain verifies the hash links of the log in logDir.
func (c *Client) CheckChain(ctx context.Context, logDir string) error {
	entries, err := c.Entries(ctx, logDir)
	if err != nil {
		return err
	}
	if err := verify.CheckChain(entries); err != nil {
		c.logger.WarnErr("log chain broken", err, map[string]any{"log_dir": logDir})
		c.notify(webhook.Event{
			Event:  webhook.EventChainBroken,
			LogDir: logDir,
			Error:  err.Error(),
		})
		return err
	}
	return nil
}

// Close flushes pending webhook deliveries.
func (c *Client) Close() error {
	return c.webhooks.Close()
}
