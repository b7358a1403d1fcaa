package routine

import (
	"fmt"
	"math"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
)

// timeRegex accepts 00:00 through 23:59 with leading zeros.
var timeRegex = regexp.MustCompile(`^([01][0-9]|2[0-3]):[0-5][0-9]$`)

// ValidateName trims name and checks its length.
func ValidateName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", fmt.Errorf("%w: required", ErrInvalidName)
	}
	if utf8.RuneCountInString(name) > MaxNameLength {
		return "", fmt.Errorf("%w: exceeds %d characters", ErrInvalidName, MaxNameLength)
	}
	return name, nil
}

// ValidateTime checks a strict 24-hour HH:MM string.
func ValidateTime(s string) error {
	if !timeRegex.MatchString(s) {
		return fmt.Errorf("%w: time %q is not HH:MM", ErrInvalidTrigger, s)
	}
	return nil
}

// NormaliseWeekdays dedupes and sorts weekday numbers. Any value that is
// not an integer in 0..6 rejects the whole list.
func NormaliseWeekdays(days []float64) ([]int, error) {
	if len(days) == 0 {
		return nil, nil
	}
	var seen [7]bool
	for _, d := range days {
		if d != math.Trunc(d) || d < 0 || d > 6 {
			return nil, fmt.Errorf("%w: weekday %v out of range 0-6", ErrInvalidTrigger, d)
		}
		seen[int(d)] = true
	}
	out := make([]int, 0, len(seen))
	for i, ok := range seen {
		if ok {
			out = append(out, i)
		}
	}
	return out, nil
}

// NormaliseEveryMinutes rounds n and clamps it into [1, 1440]. Zero and NaN
// are rejected.
func NormaliseEveryMinutes(n float64) (int, error) {
	if n == 0 || math.IsNaN(n) {
		return 0, fmt.Errorf("%w: everyMinutes must be a non-zero number", ErrInvalidTrigger)
	}
	if math.IsInf(n, 1) {
		return MaxEveryMinutes, nil
	}
	if math.IsInf(n, -1) {
		return MinEveryMinutes, nil
	}
	return clampMinutes(int(math.Round(n))), nil
}

func clampMinutes(n int) int {
	switch {
	case n < MinEveryMinutes:
		return MinEveryMinutes
	case n > MaxEveryMinutes:
		return MaxEveryMinutes
	default:
		return n
	}
}

// NormaliseTrigger validates p. When Type is empty it is inferred from
// whichever of Time or EveryMinutes is present.
func NormaliseTrigger(p *TriggerPayload) (Trigger, error) {
	if p == nil {
		return Trigger{}, fmt.Errorf("%w: required", ErrInvalidTrigger)
	}

	kind := TriggerType(p.Type)
	if kind == "" {
		switch {
		case p.Time != nil:
			kind = TriggerTime
		case p.EveryMinutes != nil:
			kind = TriggerInterval
		}
	}

	switch kind {
	case TriggerTime:
		if p.Time == nil {
			return Trigger{}, fmt.Errorf("%w: time required", ErrInvalidTrigger)
		}
		if err := ValidateTime(*p.Time); err != nil {
			return Trigger{}, err
		}
		days, err := NormaliseWeekdays(p.Weekdays)
		if err != nil {
			return Trigger{}, err
		}
		return Trigger{Type: TriggerTime, Time: *p.Time, Weekdays: days}, nil

	case TriggerInterval:
		if p.EveryMinutes == nil {
			return Trigger{}, fmt.Errorf("%w: everyMinutes required", ErrInvalidTrigger)
		}
		n, err := NormaliseEveryMinutes(*p.EveryMinutes)
		if err != nil {
			return Trigger{}, err
		}
		return Trigger{Type: TriggerInterval, EveryMinutes: n}, nil

	default:
		return Trigger{}, fmt.Errorf("%w: unknown type %q", ErrInvalidTrigger, p.Type)
	}
}

// NormaliseAction converts one payload entry. ok is false when the entry
// is invalid and should be dropped.
func NormaliseAction(p ActionPayload) (Action, bool) {
	deviceID := strings.TrimSpace(p.DeviceID)
	if deviceID == "" {
		return Action{}, false
	}

	kind := ActionType(p.Type)
	if kind == "" {
		switch {
		case p.Capability != "" || p.Command != "":
			kind = ActionCommand
		case p.On != nil:
			kind = ActionToggle
		}
	}

	a := Action{
		ID:         strings.TrimSpace(p.ID),
		Type:       kind,
		DeviceID:   deviceID,
		DeviceName: strings.TrimSpace(p.DeviceName),
		SourceID:   strings.TrimSpace(p.SourceID),
	}
	if a.ID == "" {
		a.ID = uuid.NewString()
	}

	switch kind {
	case ActionToggle:
		if p.On == nil {
			return Action{}, false
		}
		on := *p.On
		a.On = &on
	case ActionCommand:
		a.Capability = strings.TrimSpace(p.Capability)
		a.Command = strings.TrimSpace(p.Command)
		if a.Capability == "" || a.Command == "" {
			return Action{}, false
		}
		if len(p.Arguments) > 0 {
			a.Arguments = append([]any(nil), p.Arguments...)
		}
	default:
		return Action{}, false
	}
	return a, true
}

// NormaliseActions drops invalid entries and keeps at most MaxActions.
// An empty result is an error.
func NormaliseActions(ps []ActionPayload) ([]Action, error) {
	out := make([]Action, 0, min(len(ps), MaxActions))
	for _, p := range ps {
		if len(out) == MaxActions {
			break
		}
		if a, ok := NormaliseAction(p); ok {
			out = append(out, a)
		}
	}
	if len(out) == 0 {
		return nil, ErrNoActions
	}
	return out, nil
}
