package routine

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"strings"
	"testing"
)

func strPtr(s string) *string                    { return &s }
func boolPtr(b bool) *bool                       { return &b }
func floatPtr(f float64) *float64                { return &f }
func actions(a ...ActionPayload) *[]ActionPayload { return &a }

func TestValidateTime(t *testing.T) {
	tests := []struct {
		in    string
		valid bool
	}{
		{"00:00", true},
		{"07:30", true},
		{"23:59", true},
		{"24:00", false},
		{"7:30", false},
		{"07:3", false},
		{"07:60", false},
		{"07-30", false},
		{" 07:30", false},
		{"07:30:00", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			err := ValidateTime(tt.in)
			if (err == nil) != tt.valid {
				t.Errorf("ValidateTime(%q) error = %v, valid %v", tt.in, err, tt.valid)
			}
			if err != nil && !errors.Is(err, ErrInvalidRoutine) {
				t.Errorf("error %v does not wrap ErrInvalidRoutine", err)
			}
		})
	}
}

func TestValidateTime_FullClock(t *testing.T) {
	for h := range 24 {
		for m := range 60 {
			hhmm := fmt.Sprintf("%02d:%02d", h, m)
			if err := ValidateTime(hhmm); err != nil {
				t.Errorf("ValidateTime(%q) error = %v, want nil", hhmm, err)
			}
		}
	}

	for m := range 60 {
		hhmm := fmt.Sprintf("24:%02d", m)
		if err := ValidateTime(hhmm); !errors.Is(err, ErrInvalidTrigger) {
			t.Errorf("ValidateTime(%q) error = %v, want ErrInvalidTrigger", hhmm, err)
		}
	}
	for h := range 24 {
		hhmm := fmt.Sprintf("%02d:60", h)
		if err := ValidateTime(hhmm); !errors.Is(err, ErrInvalidTrigger) {
			t.Errorf("ValidateTime(%q) error = %v, want ErrInvalidTrigger", hhmm, err)
		}
	}
}

func TestValidateName(t *testing.T) {
	got, err := ValidateName("  Morning lights ")
	if err != nil {
		t.Fatalf("ValidateName() error = %v", err)
	}
	if got != "Morning lights" {
		t.Errorf("ValidateName() = %q, want trimmed", got)
	}

	if _, err := ValidateName("   "); !errors.Is(err, ErrInvalidName) {
		t.Errorf("blank name error = %v, want ErrInvalidName", err)
	}
	if _, err := ValidateName(strings.Repeat("é", MaxNameLength)); err != nil {
		t.Errorf("%d runes should be accepted: %v", MaxNameLength, err)
	}
	if _, err := ValidateName(strings.Repeat("a", MaxNameLength+1)); !errors.Is(err, ErrInvalidName) {
		t.Errorf("long name error = %v, want ErrInvalidName", err)
	}
}

func TestNormaliseWeekdays(t *testing.T) {
	tests := []struct {
		name    string
		in      []float64
		want    []int
		wantErr bool
	}{
		{"empty means every day", nil, nil, false},
		{"sorted and deduped", []float64{5, 1, 5, 0}, []int{0, 1, 5}, false},
		{"out of range", []float64{1, 7}, nil, true},
		{"negative", []float64{-1}, nil, true},
		{"fractional", []float64{2.5}, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormaliseWeekdays(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NormaliseWeekdays() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("NormaliseWeekdays() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNormaliseEveryMinutes(t *testing.T) {
	tests := []struct {
		name    string
		in      float64
		want    int
		wantErr bool
	}{
		{"zero rejected", 0, 0, true},
		{"nan rejected", math.NaN(), 0, true},
		{"in range", 15, 15, false},
		{"rounded", 14.6, 15, false},
		{"clamped low", 0.2, 1, false},
		{"clamped negative", -30, 1, false},
		{"clamped high", 5000, 1440, false},
		{"infinity", math.Inf(1), 1440, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormaliseEveryMinutes(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NormaliseEveryMinutes(%v) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("NormaliseEveryMinutes(%v) = %d, want %d", tt.in, got, tt.want)
			}
		})
	}
}

func TestNormaliseTrigger(t *testing.T) {
	tests := []struct {
		name    string
		in      *TriggerPayload
		want    Trigger
		wantErr bool
	}{
		{
			name: "explicit time",
			in:   &TriggerPayload{Type: "time", Time: strPtr("06:45"), Weekdays: []float64{1, 2}},
			want: Trigger{Type: TriggerTime, Time: "06:45", Weekdays: []int{1, 2}},
		},
		{
			name: "inferred time",
			in:   &TriggerPayload{Time: strPtr("22:00")},
			want: Trigger{Type: TriggerTime, Time: "22:00"},
		},
		{
			name: "inferred interval",
			in:   &TriggerPayload{EveryMinutes: floatPtr(30)},
			want: Trigger{Type: TriggerInterval, EveryMinutes: 30},
		},
		{
			name:    "missing",
			in:      nil,
			wantErr: true,
		},
		{
			name:    "nothing to infer from",
			in:      &TriggerPayload{},
			wantErr: true,
		},
		{
			name:    "unknown type",
			in:      &TriggerPayload{Type: "sunset"},
			wantErr: true,
		},
		{
			name:    "time type without time",
			in:      &TriggerPayload{Type: "time", EveryMinutes: floatPtr(5)},
			wantErr: true,
		},
		{
			name:    "bad time",
			in:      &TriggerPayload{Time: strPtr("25:00")},
			wantErr: true,
		},
		{
			name:    "bad weekday rejects request",
			in:      &TriggerPayload{Time: strPtr("08:00"), Weekdays: []float64{9}},
			wantErr: true,
		},
		{
			name:    "zero minutes",
			in:      &TriggerPayload{Type: "interval", EveryMinutes: floatPtr(0)},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormaliseTrigger(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NormaliseTrigger() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				if !errors.Is(err, ErrInvalidTrigger) {
					t.Errorf("error %v does not wrap ErrInvalidTrigger", err)
				}
				return
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("NormaliseTrigger() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestNormaliseActions_DropsInvalid(t *testing.T) {
	got, err := NormaliseActions([]ActionPayload{
		{DeviceID: "lamp", On: boolPtr(true)},
		{DeviceID: "", On: boolPtr(true)},
		{DeviceID: "fan"},
		{Type: "toggle", DeviceID: "heater"},
		{DeviceID: "dimmer", Capability: "switchLevel", Command: "setLevel", Arguments: []any{40.0}},
		{DeviceID: "blind", Capability: "windowShade"},
		{Type: "macro", DeviceID: "tv", On: boolPtr(false)},
	})
	if err != nil {
		t.Fatalf("NormaliseActions() error = %v", err)
	}

	if len(got) != 2 {
		t.Fatalf("NormaliseActions() kept %d actions, want 2: %+v", len(got), got)
	}
	if got[0].Type != ActionToggle || got[0].DeviceID != "lamp" || !*got[0].On {
		t.Errorf("action[0] = %+v, want toggle lamp on", got[0])
	}
	if got[1].Type != ActionCommand || got[1].Capability != "switchLevel" || got[1].Command != "setLevel" {
		t.Errorf("action[1] = %+v, want switchLevel:setLevel", got[1])
	}
	for _, a := range got {
		if a.ID == "" {
			t.Errorf("action %s has no id", a.DeviceID)
		}
	}
}

func TestNormaliseActions_KeepsID(t *testing.T) {
	got, err := NormaliseActions([]ActionPayload{{ID: "a-1", DeviceID: "lamp", On: boolPtr(false)}})
	if err != nil {
		t.Fatalf("NormaliseActions() error = %v", err)
	}
	if got[0].ID != "a-1" {
		t.Errorf("ID = %q, want a-1", got[0].ID)
	}
}

func TestNormaliseActions_Truncates(t *testing.T) {
	in := make([]ActionPayload, MaxActions+5)
	for i := range in {
		in[i] = ActionPayload{DeviceID: "lamp", On: boolPtr(true)}
	}

	got, err := NormaliseActions(in)
	if err != nil {
		t.Fatalf("NormaliseActions() error = %v", err)
	}
	if len(got) != MaxActions {
		t.Errorf("len = %d, want %d", len(got), MaxActions)
	}
}

func TestNormaliseActions_NoneSurvive(t *testing.T) {
	_, err := NormaliseActions([]ActionPayload{{DeviceID: "lamp"}})
	if !errors.Is(err, ErrNoActions) {
		t.Errorf("error = %v, want ErrNoActions", err)
	}
	if !errors.Is(err, ErrInvalidRoutine) {
		t.Errorf("error = %v, want wrapping ErrInvalidRoutine", err)
	}
}

func TestAction_DescriptorAndLabel(t *testing.T) {
	on := Action{Type: ActionToggle, DeviceID: "d1", On: boolPtr(true)}
	off := Action{Type: ActionToggle, DeviceID: "d1", On: boolPtr(false)}
	cmd := Action{Type: ActionCommand, DeviceID: "d2", DeviceName: "Blind", Capability: "windowShade", Command: "open"}

	if on.Descriptor() != "on" || off.Descriptor() != "off" {
		t.Errorf("toggle descriptors = %q/%q", on.Descriptor(), off.Descriptor())
	}
	if cmd.Descriptor() != "windowShade:open" {
		t.Errorf("command descriptor = %q", cmd.Descriptor())
	}

	if cmd.Label("Evening") != "Blind" {
		t.Errorf("Label with device name = %q", cmd.Label("Evening"))
	}
	if on.Label("Evening") != "Evening" {
		t.Errorf("Label falls back to routine name, got %q", on.Label("Evening"))
	}
	if on.Label("") != "d1" {
		t.Errorf("Label falls back to device id, got %q", on.Label(""))
	}
}

func TestTrigger_IntervalMinutesClamps(t *testing.T) {
	if got := (Trigger{EveryMinutes: 0}).IntervalMinutes(); got != 1 {
		t.Errorf("IntervalMinutes(0) = %d, want 1", got)
	}
	if got := (Trigger{EveryMinutes: 9999}).IntervalMinutes(); got != 1440 {
		t.Errorf("IntervalMinutes(9999) = %d, want 1440", got)
	}
}
