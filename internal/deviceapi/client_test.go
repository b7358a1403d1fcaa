package deviceapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeAPI is a minimal device-control API.
type fakeAPI struct {
	mu        sync.Mutex
	commands  []commandRequest
	switchOn  bool
	health    string
	failCmd   int
	notModify atomic.Int32
	auth      []string
}

func (f *fakeAPI) handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /devices/{id}/commands", func(w http.ResponseWriter, r *http.Request) {
		f.record(r)
		if f.failCmd != 0 {
			http.Error(w, `{"error":"device busy"}`, f.failCmd)
			return
		}
		var req commandRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		f.mu.Lock()
		f.commands = append(f.commands, req)
		if len(req.Commands) == 1 && req.Commands[0].Capability == "switch" {
			f.switchOn = req.Commands[0].Command == "on"
		}
		f.mu.Unlock()
		_, _ = w.Write([]byte(`{"results":[{"status":"ACCEPTED"}]}`))
	})

	mux.HandleFunc("GET /devices/{id}/status", func(w http.ResponseWriter, r *http.Request) {
		f.record(r)
		f.mu.Lock()
		value := "off"
		if f.switchOn {
			value = "on"
		}
		f.mu.Unlock()
		_, _ = w.Write([]byte(`{"components":{"main":{"switch":{"switch":{"value":"` + value + `"}}}}}`))
	})

	mux.HandleFunc("GET /devices/{id}/health", func(w http.ResponseWriter, r *http.Request) {
		f.record(r)
		f.mu.Lock()
		health := f.health
		f.mu.Unlock()
		_, _ = w.Write([]byte(`{"state":"` + health + `"}`))
	})

	mux.HandleFunc("GET /devices", func(w http.ResponseWriter, r *http.Request) {
		f.record(r)
		const etag = `"inv-1"`
		if r.Header.Get("If-None-Match") == etag {
			f.notModify.Add(1)
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", etag)
		_, _ = w.Write([]byte(`{"items":[{"deviceId":"lamp-1","name":"c2c-switch","label":"Desk lamp",
			"components":[{"id":"main","capabilities":[{"id":"switch"},{"id":"healthCheck"}]},
			{"id":"aux","capabilities":[{"id":"switch"}]}]}]}`))
	})

	return mux
}

func (f *fakeAPI) snapshot() ([]commandRequest, []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]commandRequest(nil), f.commands...), append([]string(nil), f.auth...)
}

func (f *fakeAPI) record(r *http.Request) {
	f.mu.Lock()
	f.auth = append(f.auth, r.Header.Get("Authorization"))
	f.mu.Unlock()
}

func newTestClient(t *testing.T, f *fakeAPI) *Client {
	t.Helper()
	srv := httptest.NewServer(f.handler())
	t.Cleanup(srv.Close)

	c, err := NewClient(Config{BaseURL: srv.URL + "/", RateLimit: 1000, RateBurst: 1000})
	require.NoError(t, err)
	return c
}

func TestNewClient_InvalidBaseURL(t *testing.T) {
	_, err := NewClient(Config{BaseURL: "not a url"})
	assert.Error(t, err)
}

func TestSendCommand(t *testing.T) {
	f := &fakeAPI{health: "ONLINE"}
	c := newTestClient(t, f)

	result, err := c.SendCommand(context.Background(), "tok", "lamp-1", Command{Capability: "switch", Command: "on"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"results":[{"status":"ACCEPTED"}]}`, string(result))

	commands, auth := f.snapshot()
	require.Len(t, commands, 1)
	cmd := commands[0].Commands[0]
	assert.Equal(t, "main", cmd.Component)
	assert.Equal(t, "switch", cmd.Capability)
	assert.Equal(t, "on", cmd.Command)
	assert.NotNil(t, cmd.Arguments)
	assert.Equal(t, []string{"Bearer tok"}, auth)
}

func TestSendCommand_RemoteError(t *testing.T) {
	f := &fakeAPI{failCmd: http.StatusConflict}
	c := newTestClient(t, f)

	_, err := c.SendCommand(context.Background(), "tok", "lamp-1", Command{Capability: "switch", Command: "off"})
	require.Error(t, err)

	var remote *RemoteCommandError
	require.True(t, errors.As(err, &remote))
	assert.Equal(t, http.StatusConflict, remote.StatusCode)
	assert.Contains(t, remote.Body, "device busy")
	assert.Equal(t, "/devices/lamp-1/commands", remote.Path)
}

func TestSendCommand_ErrorBodyTruncated(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(strings.Repeat("x", maxErrorBody*2)))
	}))
	defer srv.Close()

	c, err := NewClient(Config{BaseURL: srv.URL})
	require.NoError(t, err)

	_, err = c.SendCommand(context.Background(), "tok", "d", Command{Capability: "switch", Command: "on"})
	var remote *RemoteCommandError
	require.ErrorAs(t, err, &remote)
	assert.Len(t, remote.Body, maxErrorBody)
}

func TestMissingToken(t *testing.T) {
	c := newTestClient(t, &fakeAPI{})

	_, err := c.Status(context.Background(), "", "lamp-1")
	assert.ErrorIs(t, err, ErrMissingToken)
}

func TestDeviceState(t *testing.T) {
	f := &fakeAPI{health: "ONLINE"}
	c := newTestClient(t, f)
	ctx := context.Background()

	state, err := c.DeviceState(ctx, "tok", "lamp-1")
	require.NoError(t, err)
	assert.Equal(t, State{On: false, Online: true, Health: "ONLINE"}, state)

	_, err = c.SendCommand(ctx, "tok", "lamp-1", Command{Capability: "switch", Command: "on"})
	require.NoError(t, err)

	f.mu.Lock()
	f.health = "OFFLINE"
	f.mu.Unlock()
	state, err = c.DeviceState(ctx, "tok", "lamp-1")
	require.NoError(t, err)
	assert.True(t, state.On)
	assert.False(t, state.Online)
}

func TestTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	c, err := NewClient(Config{BaseURL: srv.URL, Timeout: 50 * time.Millisecond})
	require.NoError(t, err)

	start := time.Now()
	_, err = c.Health(context.Background(), "tok", "slow")
	assert.Error(t, err)
	assert.Less(t, time.Since(start), time.Second)
}

func TestListDevices_CachedWithETag(t *testing.T) {
	f := &fakeAPI{}
	c := newTestClient(t, f)
	ctx := context.Background()

	devices, err := c.ListDevices(ctx, "tok")
	require.NoError(t, err)
	require.Len(t, devices, 1)
	assert.Equal(t, "lamp-1", devices[0].ID)
	assert.Equal(t, "Desk lamp", devices[0].Label)
	assert.Equal(t, []string{"switch", "healthCheck"}, devices[0].Capabilities)

	again, err := c.ListDevices(ctx, "tok")
	require.NoError(t, err)
	assert.Equal(t, devices, again)
	assert.Equal(t, int32(1), f.notModify.Load(), "second read should revalidate with If-None-Match")

	// A different token gets its own cache.
	_, err = c.ListDevices(ctx, "other")
	require.NoError(t, err)
	assert.Equal(t, int32(1), f.notModify.Load())
}

func TestRateLimiterPerToken(t *testing.T) {
	c, err := NewClient(Config{BaseURL: "http://devices.invalid", RateLimit: 1, RateBurst: 1})
	require.NoError(t, err)

	assert.Same(t, c.limiterFor("a"), c.limiterFor("a"))
	assert.NotSame(t, c.limiterFor("a"), c.limiterFor("b"))

	// Burst of one is spent; a cancelled context cannot wait for the next token.
	require.True(t, c.limiterFor("a").Allow())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = c.Status(ctx, "a", "lamp-1")
	assert.Error(t, err)
}

func TestSwitchOn(t *testing.T) {
	tests := []struct {
		name   string
		status map[string]any
		want   bool
	}{
		{"on", map[string]any{"components": map[string]any{"main": map[string]any{"switch": map[string]any{"switch": map[string]any{"value": "on"}}}}}, true},
		{"off", map[string]any{"components": map[string]any{"main": map[string]any{"switch": map[string]any{"switch": map[string]any{"value": "off"}}}}}, false},
		{"no switch", map[string]any{"components": map[string]any{"main": map[string]any{}}}, false},
		{"nil", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SwitchOn(tt.status))
		})
	}
}
