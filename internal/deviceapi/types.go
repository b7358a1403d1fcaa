package deviceapi

import "encoding/json"

// DefaultComponent is the component commands target unless told otherwise.
const DefaultComponent = "main"

// Command is one capability/command invocation.
type Command struct {
	Component  string `json:"component"`
	Capability string `json:"capability"`
	Command    string `json:"command"`
	Arguments  []any  `json:"arguments"`
}

type commandRequest struct {
	Commands []Command `json:"commands"`
}

// State is the device state read after a command.
type State struct {
	On     bool   `json:"on"`
	Online bool   `json:"online"`
	Health string `json:"health"`
}

// Device is one inventory entry.
type Device struct {
	ID           string   `json:"deviceId"`
	Name         string   `json:"name"`
	Label        string   `json:"label"`
	Capabilities []string `json:"capabilities"`
}

// rawDevice mirrors the inventory wire format.
type rawDevice struct {
	DeviceID   string `json:"deviceId"`
	Name       string `json:"name"`
	Label      string `json:"label"`
	Components []struct {
		ID           string `json:"id"`
		Capabilities []struct {
			ID string `json:"id"`
		} `json:"capabilities"`
	} `json:"components"`
}

type inventoryResponse struct {
	Items []rawDevice `json:"items"`
}

type healthResponse struct {
	State string `json:"state"`
}

// CommandResult is the raw body returned by a successful command call.
type CommandResult = json.RawMessage
