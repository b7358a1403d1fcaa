package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names.
const (
	measurementRoutineRun   = "routine_run"
	measurementActionResult = "routine_action"
)

// RunSample summarises one routine execution.
type RunSample struct {
	RoutineID string
	Trigger   string // "time", "interval" or "manual"
	StartedAt time.Time
	Duration  time.Duration
	Actions   int
	Failures  int
}

// ActionSample is the outcome of one action inside a run.
type ActionSample struct {
	RoutineID string
	DeviceID  string
	Kind      string // "toggle" or "command"
	OK        bool
	At        time.Time
}

// WriteRoutineRun records a run. Tags stay low-cardinality: routine id and
// trigger type.
//
// Example:
//
//	client.WriteRoutineRun(influxdb.RunSample{
//	    RoutineID: "morning", Trigger: "time",
//	    StartedAt: start, Duration: time.Since(start), Actions: 3,
//	})
func (c *Client) WriteRoutineRun(s RunSample) {
	if !c.IsConnected() {
		return
	}

	c.writeAPI.WritePoint(write.NewPoint(
		measurementRoutineRun,
		map[string]string{
			"routine_id": s.RoutineID,
			"trigger":    s.Trigger,
		},
		map[string]any{
			"duration_ms": s.Duration.Milliseconds(),
			"actions":     s.Actions,
			"failures":    s.Failures,
			"ok":          s.Failures == 0,
		},
		s.StartedAt,
	))
}

// WriteActionResult records a single action outcome.
func (c *Client) WriteActionResult(s ActionSample) {
	if !c.IsConnected() {
		return
	}

	ok := 0
	if s.OK {
		ok = 1
	}
	c.writeAPI.WritePoint(write.NewPoint(
		measurementActionResult,
		map[string]string{
			"routine_id": s.RoutineID,
			"device_id":  s.DeviceID,
			"kind":       s.Kind,
		},
		map[string]any{"ok": ok},
		s.At,
	))
}
