package deviceapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gregjones/httpcache"
	"golang.org/x/time/rate"
)

const (
	// DefaultTimeout bounds each remote call when Config.Timeout is zero.
	DefaultTimeout = 10 * time.Second

	defaultRateLimit = 5
	defaultRateBurst = 10

	maxResponseBody = 1 << 20
)

// Config configures a Client.
type Config struct {
	BaseURL   string
	Timeout   time.Duration
	RateLimit float64 // requests per second per token
	RateBurst int

	// Transport overrides the underlying round tripper (tests).
	Transport http.RoundTripper
}

// Client talks to the device-control API. It is safe for concurrent use.
type Client struct {
	base    string
	timeout time.Duration
	http    *http.Client

	limit rate.Limit
	burst int

	mu        sync.Mutex
	limiters  map[string]*rate.Limiter
	inventory map[string]*http.Client
	transport http.RoundTripper
}

// NewClient creates a Client for cfg.BaseURL.
func NewClient(cfg Config) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("deviceapi: invalid base URL %q", cfg.BaseURL)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	limit := cfg.RateLimit
	if limit <= 0 {
		limit = defaultRateLimit
	}
	burst := cfg.RateBurst
	if burst <= 0 {
		burst = defaultRateBurst
	}
	transport := cfg.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}

	return &Client{
		base:      u.String(),
		timeout:   timeout,
		http:      &http.Client{Timeout: timeout, Transport: transport},
		limit:     rate.Limit(limit),
		burst:     burst,
		limiters:  make(map[string]*rate.Limiter),
		inventory: make(map[string]*http.Client),
		transport: transport,
	}, nil
}

// SendCommand issues one command against deviceID. An empty Component
// defaults to "main" and nil Arguments are sent as [].
//
// Returns:
//   - CommandResult: raw response body on 2xx
//   - error: *RemoteCommandError on non-2xx, or a transport/timeout error
func (c *Client) SendCommand(ctx context.Context, token, deviceID string, cmd Command) (CommandResult, error) {
	if cmd.Component == "" {
		cmd.Component = DefaultComponent
	}
	if cmd.Arguments == nil {
		cmd.Arguments = []any{}
	}

	body, err := json.Marshal(commandRequest{Commands: []Command{cmd}})
	if err != nil {
		return nil, fmt.Errorf("deviceapi: encoding command: %w", err)
	}

	raw, err := c.do(ctx, c.http, token, http.MethodPost, devicePath(deviceID, "commands"), body)
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		raw = []byte("{}")
	}
	return CommandResult(raw), nil
}

// Status returns the device attribute map.
func (c *Client) Status(ctx context.Context, token, deviceID string) (map[string]any, error) {
	raw, err := c.do(ctx, c.http, token, http.MethodGet, devicePath(deviceID, "status"), nil)
	if err != nil {
		return nil, err
	}
	var status map[string]any
	if err := json.Unmarshal(raw, &status); err != nil {
		return nil, fmt.Errorf("deviceapi: decoding status: %w", err)
	}
	return status, nil
}

// Health returns the reported health state, e.g. "ONLINE" or "OFFLINE".
func (c *Client) Health(ctx context.Context, token, deviceID string) (string, error) {
	raw, err := c.do(ctx, c.http, token, http.MethodGet, devicePath(deviceID, "health"), nil)
	if err != nil {
		return "", err
	}
	var h healthResponse
	if err := json.Unmarshal(raw, &h); err != nil {
		return "", fmt.Errorf("deviceapi: decoding health: %w", err)
	}
	return h.State, nil
}

// DeviceState combines Status and Health into on/off and online/offline.
func (c *Client) DeviceState(ctx context.Context, token, deviceID string) (State, error) {
	status, err := c.Status(ctx, token, deviceID)
	if err != nil {
		return State{}, err
	}
	health, err := c.Health(ctx, token, deviceID)
	if err != nil {
		return State{}, err
	}
	return State{
		On:     SwitchOn(status),
		Online: strings.EqualFold(health, "ONLINE"),
		Health: health,
	}, nil
}

// ListDevices returns the inventory visible to token. Responses are cached
// per token and revalidated with the server's ETag.
func (c *Client) ListDevices(ctx context.Context, token string) ([]Device, error) {
	raw, err := c.do(ctx, c.inventoryClient(token), token, http.MethodGet, "/devices", nil)
	if err != nil {
		return nil, err
	}

	var resp inventoryResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("deviceapi: decoding inventory: %w", err)
	}

	devices := make([]Device, 0, len(resp.Items))
	for _, d := range resp.Items {
		dev := Device{ID: d.DeviceID, Name: d.Name, Label: d.Label, Capabilities: []string{}}
		seen := make(map[string]bool)
		for _, comp := range d.Components {
			for _, capability := range comp.Capabilities {
				if !seen[capability.ID] {
					seen[capability.ID] = true
					dev.Capabilities = append(dev.Capabilities, capability.ID)
				}
			}
		}
		devices = append(devices, dev)
	}
	return devices, nil
}

// SwitchOn reads components.main.switch.switch.value == "on" from a status map.
func SwitchOn(status map[string]any) bool {
	var node any = status
	for _, key := range []string{"components", DefaultComponent, "switch", "switch", "value"} {
		m, ok := node.(map[string]any)
		if !ok {
			return false
		}
		node = m[key]
	}
	v, _ := node.(string)
	return v == "on"
}

func (c *Client) do(ctx context.Context, hc *http.Client, token, method, path string, body []byte) ([]byte, error) {
	if token == "" {
		return nil, ErrMissingToken
	}
	if err := c.limiterFor(token).Wait(ctx); err != nil {
		return nil, fmt.Errorf("deviceapi: rate limiter: %w", err)
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, reader)
	if err != nil {
		return nil, fmt.Errorf("deviceapi: building request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("deviceapi: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody)) //nolint:errcheck // best effort
		return nil, &RemoteCommandError{
			Method:     method,
			Path:       path,
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(snippet)),
		}
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return nil, fmt.Errorf("deviceapi: reading response: %w", err)
	}
	return raw, nil
}

func (c *Client) limiterFor(token string) *rate.Limiter {
	c.mu.Lock()
	defer c.mu.Unlock()
	l, ok := c.limiters[token]
	if !ok {
		l = rate.NewLimiter(c.limit, c.burst)
		c.limiters[token] = l
	}
	return l
}

// inventoryClient returns a caching client private to token, since the
// cache is keyed by URL alone.
func (c *Client) inventoryClient(token string) *http.Client {
	c.mu.Lock()
	defer c.mu.Unlock()
	hc, ok := c.inventory[token]
	if !ok {
		cache := httpcache.NewMemoryCacheTransport()
		cache.Transport = c.transport
		hc = &http.Client{Timeout: c.timeout, Transport: cache}
		c.inventory[token] = hc
	}
	return hc
}

func devicePath(deviceID, leaf string) string {
	return "/devices/" + url.PathEscape(deviceID) + "/" + leaf
}
