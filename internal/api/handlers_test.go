package api

import (
	"context"
	"net/http"
	"testing"

	"github.com/nerrad567/gray-logic-routines/internal/deviceapi"
	"github.com/nerrad567/gray-logic-routines/internal/dispatch"
	"github.com/nerrad567/gray-logic-routines/internal/routine"
	"github.com/nerrad567/gray-logic-routines/internal/scheduler"
	"github.com/nerrad567/gray-logic-routines/internal/source"
)

func validRoutineBody() map[string]any {
	return map[string]any{
		"name":    "Porch light",
		"trigger": map[string]any{"type": "time", "time": "18:30", "weekdays": []int{1, 2, 3}},
		"actions": []map[string]any{
			{"type": "toggle", "deviceId": "dev-1", "on": true},
		},
	}
}

// ─── Routine Tests ─────────────────────────────────────────────────

func TestListRoutines_Empty(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodGet, "/api/v1/routines", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	resp := decode[struct {
		Routines []routine.Routine `json:"routines"`
		Count    int               `json:"count"`
	}](t, w)
	if resp.Count != 0 || resp.Routines == nil {
		t.Errorf("resp = %+v, want empty non-nil list", resp)
	}
}

func TestCreateAndGetRoutine(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/api/v1/routines", validRoutineBody())
	if w.Code != http.StatusCreated {
		t.Fatalf("create status = %d, want %d (body %s)", w.Code, http.StatusCreated, w.Body.String())
	}
	created := decode[routine.Routine](t, w)
	if created.ID == "" {
		t.Fatal("created routine has no id")
	}
	if !created.Enabled {
		t.Error("enabled should default to true")
	}
	if created.Trigger.Type != routine.TriggerTime || created.Trigger.Time != "18:30" {
		t.Errorf("trigger = %+v", created.Trigger)
	}

	w = env.do(t, http.MethodGet, "/api/v1/routines/"+created.ID, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get status = %d, want %d", w.Code, http.StatusOK)
	}
	got := decode[routine.Routine](t, w)
	if got.Name != "Porch light" || len(got.Actions) != 1 {
		t.Errorf("got = %+v", got)
	}
}

func TestCreateRoutine_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body any
		want int
	}{
		{"invalid json", "{nope", http.StatusBadRequest},
		{"no name", map[string]any{
			"trigger": map[string]any{"time": "08:00"},
			"actions": []map[string]any{{"deviceId": "d", "on": true}},
		}, http.StatusBadRequest},
		{"bad time", map[string]any{
			"name":    "x",
			"trigger": map[string]any{"time": "25:00"},
			"actions": []map[string]any{{"deviceId": "d", "on": true}},
		}, http.StatusBadRequest},
		{"no usable actions", map[string]any{
			"name":    "x",
			"trigger": map[string]any{"everyMinutes": 5},
			"actions": []map[string]any{{"deviceId": ""}},
		}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			w := env.do(t, http.MethodPost, "/api/v1/routines", tt.body)
			if w.Code != tt.want {
				t.Errorf("status = %d, want %d (body %s)", w.Code, tt.want, w.Body.String())
			}
		})
	}
}

func TestGetRoutine_NotFound(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodGet, "/api/v1/routines/missing", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

func TestUpdateRoutine_Partial(t *testing.T) {
	env := newTestEnv(t)
	created := decode[routine.Routine](t, env.do(t, http.MethodPost, "/api/v1/routines", validRoutineBody()))

	w := env.do(t, http.MethodPatch, "/api/v1/routines/"+created.ID, map[string]any{"enabled": false})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d (body %s)", w.Code, http.StatusOK, w.Body.String())
	}
	updated := decode[routine.Routine](t, w)
	if updated.Enabled {
		t.Error("enabled = true, want false")
	}
	if updated.Name != created.Name || updated.Trigger.Time != created.Trigger.Time {
		t.Errorf("untouched fields changed: %+v", updated)
	}

	w = env.do(t, http.MethodPatch, "/api/v1/routines/missing", map[string]any{"enabled": false})
	if w.Code != http.StatusNotFound {
		t.Errorf("missing status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

func TestDeleteRoutine(t *testing.T) {
	env := newTestEnv(t)
	created := decode[routine.Routine](t, env.do(t, http.MethodPost, "/api/v1/routines", validRoutineBody()))

	w := env.do(t, http.MethodDelete, "/api/v1/routines/"+created.ID, nil)
	if w.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusNoContent)
	}
	if n := len(env.routines.List(context.Background())); n != 0 {
		t.Errorf("routines after delete = %d, want 0", n)
	}

	w = env.do(t, http.MethodDelete, "/api/v1/routines/"+created.ID, nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("second delete status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

func TestRunRoutine(t *testing.T) {
	env := newTestEnv(t)
	env.runner.results["r1"] = []scheduler.Result{
		{OK: true, ActionID: "a1", State: &deviceapi.State{On: true, Online: true}},
		{OK: false, ActionID: "a2", Error: "device offline"},
	}

	w := env.do(t, http.MethodPost, "/api/v1/routines/r1/run", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	resp := decode[struct {
		Results []scheduler.Result `json:"results"`
	}](t, w)
	if len(resp.Results) != 2 {
		t.Fatalf("results = %d, want 2", len(resp.Results))
	}
	if !resp.Results[0].OK || resp.Results[1].OK || resp.Results[1].Error != "device offline" {
		t.Errorf("results = %+v", resp.Results)
	}

	w = env.do(t, http.MethodPost, "/api/v1/routines/missing/run", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("missing status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

// ─── Source Tests ──────────────────────────────────────────────────

func TestListSources(t *testing.T) {
	env := newTestEnv(t)
	env.sources.views = []source.View{{ID: "s1", Label: "Hub", Enabled: true, TokenHint: "••••1234"}}

	w := env.do(t, http.MethodGet, "/api/v1/sources", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	resp := decode[map[string]any](t, w)
	if resp["count"] != float64(1) {
		t.Errorf("count = %v, want 1", resp["count"])
	}
}

func TestCreateSource_IgnoresBodyID(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/api/v1/sources", map[string]any{"id": "chosen", "token": "abcdef"})
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusCreated)
	}
	if env.sources.last.ID != "" {
		t.Errorf("upsert id = %q, want empty", env.sources.last.ID)
	}
	if env.sources.last.Token == nil || *env.sources.last.Token != "abcdef" {
		t.Error("token not passed through")
	}
}

func TestUpdateSource_UsesPathID(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPut, "/api/v1/sources/s1", map[string]any{"enabled": false})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if env.sources.last.ID != "s1" {
		t.Errorf("upsert id = %q, want s1", env.sources.last.ID)
	}

	env.sources.err = source.ErrInvalidSource
	w = env.do(t, http.MethodPut, "/api/v1/sources/s2", map[string]any{})
	if w.Code != http.StatusBadRequest {
		t.Errorf("invalid status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

// ─── Device Tests ──────────────────────────────────────────────────

func TestListDevices(t *testing.T) {
	env := newTestEnv(t)
	env.devices.devices = []deviceapi.Device{{ID: "d1", Name: "Lamp"}}

	w := env.do(t, http.MethodGet, "/api/v1/devices?source_id=s1", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if env.devices.sourceID != "s1" {
		t.Errorf("sourceID = %q, want s1", env.devices.sourceID)
	}

	env.devices.err = dispatch.ErrNoCredentialAvailable
	w = env.do(t, http.MethodGet, "/api/v1/devices", nil)
	if w.Code != http.StatusConflict {
		t.Errorf("no credential status = %d, want %d", w.Code, http.StatusConflict)
	}
}

// ─── Settings Tests ────────────────────────────────────────────────

func TestInterval(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodGet, "/api/v1/settings/interval", nil)
	if got := decode[map[string]int](t, w)["routineCheckIntervalMs"]; got != 30000 {
		t.Errorf("interval = %d, want 30000", got)
	}

	tests := []struct {
		name string
		ms   int
		want int
	}{
		{"in range", 10000, 10000},
		{"below min", 10, 5000},
		{"above max", 900000, 300000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(t, http.MethodPut, "/api/v1/settings/interval", map[string]int{"routineCheckIntervalMs": tt.ms})
			if w.Code != http.StatusOK {
				t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
			}
			if got := decode[map[string]int](t, w)["routineCheckIntervalMs"]; got != tt.want {
				t.Errorf("applied = %d, want %d", got, tt.want)
			}
		})
	}

	w = env.do(t, http.MethodPut, "/api/v1/settings/interval", map[string]any{})
	if w.Code != http.StatusBadRequest {
		t.Errorf("missing field status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

// ─── Activity Tests ────────────────────────────────────────────────

func TestListActivity(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodGet, "/api/v1/activity?routine_id=r1&device_id=d1&limit=10&offset=20", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	f := env.activity.filter
	if f.RoutineID != "r1" || f.DeviceID != "d1" || f.Limit != 10 || f.Offset != 20 {
		t.Errorf("filter = %+v", f)
	}

	w = env.do(t, http.MethodGet, "/api/v1/activity?limit=abc", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("bad limit status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}
