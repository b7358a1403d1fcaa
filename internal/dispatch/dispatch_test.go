package dispatch

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/nerrad567/gray-logic-routines/internal/deviceapi"
	"github.com/nerrad567/gray-logic-routines/internal/source"
)

type mockSources struct {
	all     []source.Source
	listErr error
}

func (m *mockSources) ListEnabled(_ context.Context) ([]source.Source, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	var out []source.Source
	for _, s := range m.all {
		if s.Enabled {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *mockSources) Get(_ context.Context, id string) (source.Source, error) {
	for _, s := range m.all {
		if s.ID == id {
			return s, nil
		}
	}
	return source.Source{}, fmt.Errorf("%w: %s", source.ErrSourceNotFound, id)
}

type sentCommand struct {
	token    string
	deviceID string
	cmd      deviceapi.Command
}

type mockRemote struct {
	sent     []sentCommand
	sendErr  error
	stateErr error
	state    deviceapi.State
	devices  []deviceapi.Device
	listedBy string
}

func (m *mockRemote) SendCommand(_ context.Context, token, deviceID string, cmd deviceapi.Command) (deviceapi.CommandResult, error) {
	m.sent = append(m.sent, sentCommand{token: token, deviceID: deviceID, cmd: cmd})
	if m.sendErr != nil {
		return nil, m.sendErr
	}
	return deviceapi.CommandResult(`{"ok":true}`), nil
}

func (m *mockRemote) DeviceState(_ context.Context, _, _ string) (deviceapi.State, error) {
	return m.state, m.stateErr
}

func (m *mockRemote) ListDevices(_ context.Context, token string) ([]deviceapi.Device, error) {
	m.listedBy = token
	return m.devices, nil
}

func twoSources() *mockSources {
	return &mockSources{all: []source.Source{
		{ID: "a", Token: "token-a", Enabled: false},
		{ID: "b", Token: "token-b", Enabled: true},
	}}
}

func TestResolve(t *testing.T) {
	errDisk := errors.New("disk")

	tests := []struct {
		name     string
		sources  *mockSources
		fallback string
		sourceID string
		wantID   string
		wantErr  error
	}{
		{name: "first enabled when none requested", sources: twoSources(), wantID: "b"},
		{name: "explicit id ignores enabled flag", sources: twoSources(), sourceID: "a", wantID: "a"},
		{name: "explicit unknown id", sources: twoSources(), sourceID: "zzz", wantErr: source.ErrSourceNotFound},
		{name: "fallback when nothing enabled", sources: &mockSources{}, fallback: "env-token", wantID: FallbackSourceID},
		{name: "explicit env id", sources: twoSources(), fallback: "env-token", sourceID: FallbackSourceID, wantID: FallbackSourceID},
		{name: "no credential", sources: &mockSources{all: []source.Source{{ID: "a"}}}, wantErr: ErrNoCredentialAvailable},
		{name: "store failure", sources: &mockSources{listErr: errDisk}, fallback: "env-token", wantErr: errDisk},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := New(tt.sources, &mockRemote{}, tt.fallback)
			got, err := d.Resolve(context.Background(), tt.sourceID)

			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("Resolve() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Resolve() error = %v", err)
			}
			if got.ID != tt.wantID {
				t.Errorf("Resolve() id = %q, want %q", got.ID, tt.wantID)
			}
		})
	}
}

func TestToggle(t *testing.T) {
	remote := &mockRemote{state: deviceapi.State{On: true, Online: true, Health: "ONLINE"}}
	d := New(twoSources(), remote, "")

	out, err := d.Toggle(context.Background(), "lamp-1", true, "")
	if err != nil {
		t.Fatalf("Toggle() error = %v", err)
	}
	if out.SourceID != "b" {
		t.Errorf("SourceID = %q, want b", out.SourceID)
	}
	if out.State == nil || !out.State.On {
		t.Errorf("State = %+v, want on", out.State)
	}

	if len(remote.sent) != 1 {
		t.Fatalf("sent %d commands, want 1", len(remote.sent))
	}
	sent := remote.sent[0]
	if sent.token != "token-b" || sent.deviceID != "lamp-1" {
		t.Errorf("sent = %+v", sent)
	}
	if sent.cmd.Capability != CapabilitySwitch || sent.cmd.Command != CommandOn || sent.cmd.Component != "main" {
		t.Errorf("cmd = %+v", sent.cmd)
	}

	if _, err := d.Toggle(context.Background(), "lamp-1", false, "a"); err != nil {
		t.Fatalf("Toggle(off) error = %v", err)
	}
	if got := remote.sent[1]; got.cmd.Command != CommandOff || got.token != "token-a" {
		t.Errorf("second command = %+v", got)
	}
}

func TestDispatch_RemoteError(t *testing.T) {
	remoteErr := &deviceapi.RemoteCommandError{StatusCode: 422, Body: "bad"}
	d := New(twoSources(), &mockRemote{sendErr: remoteErr}, "")

	_, err := d.Command(context.Background(), "lamp-1", "", "switchLevel", "setLevel", []any{50})
	var got *deviceapi.RemoteCommandError
	if !errors.As(err, &got) || got.StatusCode != 422 {
		t.Errorf("Command() error = %v, want RemoteCommandError 422", err)
	}
}

func TestDispatch_StateReadFailureIsNotFatal(t *testing.T) {
	d := New(twoSources(), &mockRemote{stateErr: errors.New("timeout")}, "")

	out, err := d.Toggle(context.Background(), "lamp-1", true, "")
	if err != nil {
		t.Fatalf("Toggle() error = %v", err)
	}
	if out.State != nil {
		t.Errorf("State = %+v, want nil", out.State)
	}
	if string(out.Result) != `{"ok":true}` {
		t.Errorf("Result = %s", out.Result)
	}
}

func TestDispatch_InvalidRequest(t *testing.T) {
	d := New(twoSources(), &mockRemote{}, "")

	_, err := d.Command(context.Background(), "", "", "switch", "on", nil)
	if !errors.Is(err, ErrInvalidRequest) {
		t.Errorf("error = %v, want ErrInvalidRequest", err)
	}
}

func TestDevices(t *testing.T) {
	remote := &mockRemote{devices: []deviceapi.Device{{ID: "lamp-1"}}}
	d := New(twoSources(), remote, "")

	devices, err := d.Devices(context.Background(), "a")
	if err != nil {
		t.Fatalf("Devices() error = %v", err)
	}
	if len(devices) != 1 || remote.listedBy != "token-a" {
		t.Errorf("Devices() = %v listed by %q", devices, remote.listedBy)
	}
}
