// Package webhook delivers HMAC-signed HTTP notifications for marker and
// integrity log events.
package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/Heavybullets8/TT-Migration/pkg/logging"
)

// EventType represents the type of event that can trigger webhooks.
type EventType string

const (
	EventMarkerCreated  EventType = "marker.created"
	EventMarkerTampered EventType = "marker.tampered"
	EventLogRecorded    EventType = "log.recorded"
	EventLogTampered    EventType = "log.tampered"
	EventChainBroken    EventType = "log.chain_broken"
	EventAll            EventType = "*"
)

// Event is the JSON payload posted to webhooks.
type Event struct {
	Event       EventType         `json:"event"`
	Timestamp   string            `json:"timestamp"`
	Actor       string            `json:"actor,omitempty"`
	Marker      string            `json:"marker,omitempty"`
	Commitment  string            `json:"commitment,omitempty"`
	WatchedPath string            `json:"watched_path,omitempty"`
	LogDir      string            `json:"log_dir,omitempty"`
	ContentHash string            `json:"content_hash,omitempty"`
	Error       string            `json:"error,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// HookConfig represents a single webhook configuration.
type HookConfig struct {
	URL     string        `yaml:"url" json:"url"`
	Secret  string        `yaml:"secret,omitempty" json:"secret,omitempty"`
	Events  []EventType   `yaml:"events" json:"events"`
	Timeout time.Duration `yaml:"timeout" json:"timeout"`
	Enabled bool          `yaml:"enabled" json:"enabled"`
}

// Config represents the webhook configuration.
type Config struct {
	Hooks          []HookConfig  `yaml:"hooks" json:"hooks"`
	Enabled        bool          `yaml:"enabled" json:"enabled"`
	MaxRetries     int           `yaml:"max_retries" json:"max_retries"`
	RetryDelay     time.Duration `yaml:"retry_delay" json:"retry_delay"`
	AsyncQueueSize int           `yaml:"async_queue_size" json:"async_queue_size"`
}

// DefaultConfig returns the default webhook configuration. Webhooks are opt-in.
func DefaultConfig() *Config {
	return &Config{
		Enabled:        false,
		MaxRetries:     3,
		RetryDelay:     5 * time.Second,
		AsyncQueueSize: 100,
	}
}

const defaultHookTimeout = 30 * time.Second

// Client handles sending webhook notifications.
type Client struct {
	config *Config
	http   *http.Client
	logger *logging.Logger
	queue  chan *job
	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
	once   sync.Once
	mu     sync.RWMutex
	closed bool
}

type job struct {
	event Event
	hook  HookConfig
}

// NewClient creates a new webhook client. A nil config disables delivery.
func NewClient(cfg *Config) *Client {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	size := cfg.AsyncQueueSize
	if size <= 0 {
		size = 1
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &Client{
		config: cfg,
		http:   &http.Client{},
		logger: logging.WithFields(map[string]any{"component": "webhook"}),
		queue:  make(chan *job, size),
		ctx:    ctx,
		cancel: cancel,
	}

	if cfg.Enabled {
		c.start()
	}
	return c
}

// Enabled reports whether any delivery can happen.
func (c *Client) Enabled() bool {
	return c != nil && c.config.Enabled && len(c.config.Hooks) > 0
}

func (c *Client) start() {
	c.once.Do(func() {
		c.wg.Add(1)
		go c.worker()
	})
}

// worker delivers queued jobs until Close closes the queue.
func (c *Client) worker() {
	defer c.wg.Done()
	for j := range c.queue {
		c.send(j)
	}
}

// Send delivers event to every enabled hook subscribed to its type.
// With async the event is queued and Send never blocks; a full queue drops
// the event with a warning.
func (c *Client) Send(event Event, async bool) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if !c.config.Enabled || c.closed {
		return nil
	}

	var hooks []HookConfig
	for _, hook := range c.config.Hooks {
		if hook.Enabled && matchesEvent(hook, event.Event) {
			hooks = append(hooks, hook)
		}
	}
	if len(hooks) == 0 {
		return nil
	}

	if event.Timestamp == "" {
		event.Timestamp = time.Now().UTC().Format(time.RFC3339)
	}

	if async {
		for _, hook := range hooks {
			select {
			case c.queue <- &job{event: event, hook: hook}:
			default:
				c.logger.Warn("webhook queue full, dropping event", map[string]any{"event": string(event.Event)})
			}
		}
		return nil
	}

	var lastErr error
	for _, hook := range hooks {
		if err := c.sendSync(&job{event: event, hook: hook}); err != nil {
			lastErr = err
		}
	}
	return lastErr
}

func (c *Client) send(j *job) {
	if err := c.sendSync(j); err != nil {
		c.logger.ErrorErr("webhook delivery failed", err, map[string]any{"url": j.hook.URL, "event": string(j.event.Event)})
	}
}

// sendSync posts one job, retrying up to MaxRetries times.
func (c *Client) sendSync(j *job) error {
	payload, err := json.Marshal(j.event)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-c.ctx.Done():
				return c.ctx.Err()
			case <-time.After(c.config.RetryDelay):
			}
		}

		lastErr = c.post(j.hook, payload)
		if lastErr == nil {
			return nil
		}
	}
	return lastErr
}

func (c *Client) post(hook HookConfig, payload []byte) error {
	timeout := hook.Timeout
	if timeout <= 0 {
		timeout = defaultHookTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, hook.URL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "ttm-webhook/1.0")
	if hook.Secret != "" {
		req.Header.Set("X-TTM-Signature", Sign(payload, hook.Secret))
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	return fmt.Errorf("http %d: %s", resp.StatusCode, string(body))
}

// Sign creates the HMAC-SHA256 signature header value for payload.
func Sign(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

func matchesEvent(hook HookConfig, event EventType) bool {
	for _, e := range hook.Events {
		if e == event || e == EventAll {
			return true
		}
	}
	return false
}

// Close delivers every queued event, retries included, then stops the
// worker. Shutdown can take up to MaxRetries*RetryDelay per failing job.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	close(c.queue)
	c.mu.Unlock()

	c.wg.Wait()
	c.cancel()
	return nil
}
