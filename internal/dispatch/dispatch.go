// Package dispatch resolves which credential to use and sends device
// commands through the device-control API.
//
// Resolution order for a dispatch:
//  1. An explicit source id is used as-is, enabled or not. Filtering
//     disabled sources is the caller's job.
//  2. Otherwise the first enabled source on file.
//  3. Otherwise the fallback token from configuration, reported as source "env".
//  4. Otherwise ErrNoCredentialAvailable.
package dispatch

import (
	"context"
	"errors"
	"fmt"

	"github.com/nerrad567/gray-logic-routines/internal/deviceapi"
	"github.com/nerrad567/gray-logic-routines/internal/source"
)

// FallbackSourceID identifies the configuration-level fallback credential.
const FallbackSourceID = "env"

// Switch capability and commands used by Toggle.
const (
	CapabilitySwitch = "switch"
	CommandOn        = "on"
	CommandOff       = "off"
)

var (
	// ErrNoCredentialAvailable is returned when no source can be resolved.
	ErrNoCredentialAvailable = errors.New("dispatch: no credential available")

	// ErrInvalidRequest is returned for a dispatch missing a device, capability or command.
	ErrInvalidRequest = errors.New("dispatch: invalid request")
)

// Sources is the credential store surface the dispatcher needs.
type Sources interface {
	ListEnabled(ctx context.Context) ([]source.Source, error)
	Get(ctx context.Context, id string) (source.Source, error)
}

// Remote is the device-control API surface the dispatcher needs.
type Remote interface {
	SendCommand(ctx context.Context, token, deviceID string, cmd deviceapi.Command) (deviceapi.CommandResult, error)
	DeviceState(ctx context.Context, token, deviceID string) (deviceapi.State, error)
	ListDevices(ctx context.Context, token string) ([]deviceapi.Device, error)
}

// Logger defines the logging interface used by the Dispatcher.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}

// Outcome is a successful dispatch. State is nil when the follow-up
// state read failed; that does not fail the dispatch.
type Outcome struct {
	SourceID string                  `json:"sourceId"`
	Result   deviceapi.CommandResult `json:"result"`
	State    *deviceapi.State        `json:"state,omitempty"`
}

// Dispatcher sends commands on behalf of routines and the API.
type Dispatcher struct {
	sources       Sources
	remote        Remote
	fallbackToken string
	logger        Logger
}

// New creates a Dispatcher. fallbackToken may be empty.
func New(sources Sources, remote Remote, fallbackToken string) *Dispatcher {
	return &Dispatcher{
		sources:       sources,
		remote:        remote,
		fallbackToken: fallbackToken,
		logger:        noopLogger{},
	}
}

// SetLogger sets the logger for the dispatcher.
func (d *Dispatcher) SetLogger(logger Logger) {
	if logger == nil {
		logger = noopLogger{}
	}
	d.logger = logger
}

// Resolve picks the credential for a dispatch. See the package doc for the order.
func (d *Dispatcher) Resolve(ctx context.Context, sourceID string) (source.Source, error) {
	if sourceID == FallbackSourceID && d.fallbackToken != "" {
		return d.fallback(), nil
	}

	if sourceID != "" {
		src, err := d.sources.Get(ctx, sourceID)
		if err != nil {
			return source.Source{}, fmt.Errorf("resolving source %s: %w", sourceID, err)
		}
		return src, nil
	}

	enabled, err := d.sources.ListEnabled(ctx)
	if err != nil {
		return source.Source{}, fmt.Errorf("listing sources: %w", err)
	}
	if len(enabled) > 0 {
		return enabled[0], nil
	}

	if d.fallbackToken != "" {
		return d.fallback(), nil
	}
	return source.Source{}, ErrNoCredentialAvailable
}

func (d *Dispatcher) fallback() source.Source {
	return source.Source{ID: FallbackSourceID, Label: "Environment", Token: d.fallbackToken, Enabled: true}
}

// Dispatch sends one command with src and then reads the device state.
//
// Returns:
//   - Outcome: command result plus state when the read succeeded
//   - error: *deviceapi.RemoteCommandError or a transport error from the command call
func (d *Dispatcher) Dispatch(ctx context.Context, deviceID string, src source.Source, capability, command string, args []any) (Outcome, error) {
	if deviceID == "" || capability == "" || command == "" {
		return Outcome{}, fmt.Errorf("%w: device, capability and command are required", ErrInvalidRequest)
	}

	result, err := d.remote.SendCommand(ctx, src.Token, deviceID, deviceapi.Command{
		Component:  deviceapi.DefaultComponent,
		Capability: capability,
		Command:    command,
		Arguments:  args,
	})
	if err != nil {
		return Outcome{}, err
	}

	out := Outcome{SourceID: src.ID, Result: result}

	state, err := d.remote.DeviceState(ctx, src.Token, deviceID)
	if err != nil {
		d.logger.Warn("state read after command failed", "device_id", deviceID, "source_id", src.ID, "error", err)
		return out, nil
	}
	out.State = &state

	d.logger.Debug("command dispatched", "device_id", deviceID, "source_id", src.ID,
		"capability", capability, "command", command)
	return out, nil
}

// Toggle resolves a source and switches deviceID on or off.
func (d *Dispatcher) Toggle(ctx context.Context, deviceID string, on bool, sourceID string) (Outcome, error) {
	command := CommandOff
	if on {
		command = CommandOn
	}
	return d.Command(ctx, deviceID, sourceID, CapabilitySwitch, command, nil)
}

// Command resolves a source and sends an arbitrary capability command.
func (d *Dispatcher) Command(ctx context.Context, deviceID, sourceID, capability, command string, args []any) (Outcome, error) {
	src, err := d.Resolve(ctx, sourceID)
	if err != nil {
		return Outcome{}, err
	}
	return d.Dispatch(ctx, deviceID, src, capability, command, args)
}

// Devices lists the inventory reachable with the resolved source.
func (d *Dispatcher) Devices(ctx context.Context, sourceID string) ([]deviceapi.Device, error) {
	src, err := d.Resolve(ctx, sourceID)
	if err != nil {
		return nil, err
	}
	return d.remote.ListDevices(ctx, src.Token)
}
