package routine

import "time"

// TriggerType selects the trigger variant.
type TriggerType string

// Trigger variants.
const (
	TriggerTime     TriggerType = "time"
	TriggerInterval TriggerType = "interval"
)

// ActionType selects the action variant.
type ActionType string

// Action variants.
const (
	ActionToggle  ActionType = "toggle"
	ActionCommand ActionType = "command"
)

// Limits.
const (
	MaxNameLength   = 120
	MaxActions      = 20
	MinEveryMinutes = 1
	MaxEveryMinutes = 1440
)

// Trigger is a time-of-day or interval trigger. Only the fields for Type are set.
type Trigger struct {
	Type         TriggerType `json:"type"`
	Time         string      `json:"time,omitempty"`
	Weekdays     []int       `json:"weekdays,omitempty"`
	EveryMinutes int         `json:"everyMinutes,omitempty"`
}

// IntervalMinutes returns EveryMinutes clamped into [1, 1440].
func (t Trigger) IntervalMinutes() int {
	return clampMinutes(t.EveryMinutes)
}

// Action is one device operation.
type Action struct {
	ID         string     `json:"id"`
	Type       ActionType `json:"type"`
	DeviceID   string     `json:"deviceId"`
	DeviceName string     `json:"deviceName,omitempty"`
	SourceID   string     `json:"sourceId,omitempty"`

	// On is the desired state for a toggle.
	On *bool `json:"on,omitempty"`

	Capability string `json:"capability,omitempty"`
	Command    string `json:"command,omitempty"`
	Arguments  []any  `json:"arguments,omitempty"`
}

// Descriptor is the short activity text: "on"/"off" for toggles and
// "capability:command" for commands.
func (a Action) Descriptor() string {
	if a.Type == ActionToggle {
		if a.On != nil && *a.On {
			return "on"
		}
		return "off"
	}
	return a.Capability + ":" + a.Command
}

// Label names the action in the activity log, falling back from the device
// name to the routine name to the device id.
func (a Action) Label(routineName string) string {
	switch {
	case a.DeviceName != "":
		return a.DeviceName
	case routineName != "":
		return routineName
	default:
		return a.DeviceID
	}
}

// Routine is a stored automation.
type Routine struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Enabled   bool      `json:"enabled"`
	Trigger   Trigger   `json:"trigger"`
	Actions   []Action  `json:"actions"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	// LastRunAt is stamped each time the routine fires.
	LastRunAt *time.Time `json:"lastRunAt,omitempty"`

	// LastSlot is the date+HH:MM key of the last time-trigger fire.
	LastSlot string `json:"lastSlot,omitempty"`
}

// DeepCopy returns a copy sharing no slices or pointers with r.
func (r *Routine) DeepCopy() *Routine {
	if r == nil {
		return nil
	}
	cp := *r
	if r.Trigger.Weekdays != nil {
		cp.Trigger.Weekdays = append([]int(nil), r.Trigger.Weekdays...)
	}
	if r.LastRunAt != nil {
		t := *r.LastRunAt
		cp.LastRunAt = &t
	}
	if r.Actions != nil {
		cp.Actions = make([]Action, len(r.Actions))
		for i, a := range r.Actions {
			if a.On != nil {
				on := *a.On
				a.On = &on
			}
			if a.Arguments != nil {
				a.Arguments = append([]any(nil), a.Arguments...)
			}
			cp.Actions[i] = a
		}
	}
	return &cp
}

// Payload is a create or update request. Nil fields are absent.
type Payload struct {
	Name    *string          `json:"name,omitempty"`
	Enabled *bool            `json:"enabled,omitempty"`
	Trigger *TriggerPayload  `json:"trigger,omitempty"`
	Actions *[]ActionPayload `json:"actions,omitempty"`
}

// TriggerPayload is the unvalidated trigger. Type may be omitted and is
// then inferred from which of Time or EveryMinutes is present.
type TriggerPayload struct {
	Type         string    `json:"type,omitempty"`
	Time         *string   `json:"time,omitempty"`
	Weekdays     []float64 `json:"weekdays,omitempty"`
	EveryMinutes *float64  `json:"everyMinutes,omitempty"`
}

// ActionPayload is the unvalidated action. Type may be omitted and is then
// inferred: capability/command means a command, On means a toggle.
type ActionPayload struct {
	ID         string `json:"id,omitempty"`
	Type       string `json:"type,omitempty"`
	DeviceID   string `json:"deviceId"`
	DeviceName string `json:"deviceName,omitempty"`
	SourceID   string `json:"sourceId,omitempty"`
	On         *bool  `json:"on,omitempty"`
	Capability string `json:"capability,omitempty"`
	Command    string `json:"command,omitempty"`
	Arguments  []any  `json:"arguments,omitempty"`
}

// Run records a fire for MarkRun.
type Run struct {
	ID   string
	At   time.Time
	Slot string // empty leaves LastSlot unchanged
}
