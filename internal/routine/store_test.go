package routine

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func newTestRegistry(t *testing.T) (*Registry, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "routines.json")
	r := NewRegistry(path)
	clock := time.Date(2026, 3, 2, 7, 0, 0, 0, time.UTC)
	r.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}
	if err := r.Load(context.Background()); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	return r, path
}

func morningPayload() Payload {
	return Payload{
		Name:    strPtr("Morning"),
		Trigger: &TriggerPayload{Time: strPtr("07:00"), Weekdays: []float64{1, 2, 3, 4, 5}},
		Actions: actions(ActionPayload{DeviceID: "lamp", On: boolPtr(true)}),
	}
}

func TestRegistry_CreateAndGet(t *testing.T) {
	r, path := newTestRegistry(t)
	ctx := context.Background()

	created, err := r.Create(ctx, morningPayload())
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if created.ID == "" {
		t.Fatal("Create() did not assign an id")
	}
	if !created.Enabled {
		t.Error("new routine should default to enabled")
	}
	if !created.CreatedAt.Equal(created.UpdatedAt) {
		t.Errorf("CreatedAt %v != UpdatedAt %v", created.CreatedAt, created.UpdatedAt)
	}

	got, err := r.Get(ctx, created.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Name != "Morning" || got.Trigger.Time != "07:00" {
		t.Errorf("Get() = %+v", got)
	}

	// Persisted.
	reloaded := NewRegistry(path)
	if err := reloaded.Load(ctx); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(reloaded.List(ctx)) != 1 {
		t.Errorf("reloaded List() len = %d, want 1", len(reloaded.List(ctx)))
	}
}

func TestRegistry_CreateRequiresFields(t *testing.T) {
	r, _ := newTestRegistry(t)
	ctx := context.Background()

	tests := []struct {
		name   string
		mutate func(p *Payload)
	}{
		{"no name", func(p *Payload) { p.Name = nil }},
		{"no trigger", func(p *Payload) { p.Trigger = nil }},
		{"no actions", func(p *Payload) { p.Actions = nil }},
		{"only invalid actions", func(p *Payload) { p.Actions = actions(ActionPayload{DeviceID: "x"}) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := morningPayload()
			tt.mutate(&p)
			if _, err := r.Create(ctx, p); !errors.Is(err, ErrInvalidRoutine) {
				t.Errorf("Create() error = %v, want ErrInvalidRoutine", err)
			}
		})
	}
	if n := len(r.List(ctx)); n != 0 {
		t.Errorf("List() len = %d after rejected creates, want 0", n)
	}
}

func TestRegistry_UpdatePartialMerge(t *testing.T) {
	r, _ := newTestRegistry(t)
	ctx := context.Background()

	created, err := r.Create(ctx, morningPayload())
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	updated, err := r.Update(ctx, created.ID, Payload{Enabled: boolPtr(false)})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if updated.Enabled {
		t.Error("Enabled should be false")
	}
	if updated.Name != "Morning" || updated.Trigger.Time != "07:00" || len(updated.Actions) != 1 {
		t.Errorf("absent fields changed: %+v", updated)
	}
	if !updated.UpdatedAt.After(created.UpdatedAt) {
		t.Errorf("UpdatedAt %v not after %v", updated.UpdatedAt, created.UpdatedAt)
	}
	if !updated.CreatedAt.Equal(created.CreatedAt) {
		t.Error("CreatedAt changed on update")
	}

	updated, err = r.Update(ctx, created.ID, Payload{Trigger: &TriggerPayload{EveryMinutes: floatPtr(15)}})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if updated.Trigger.Type != TriggerInterval || updated.Trigger.Time != "" || updated.Trigger.EveryMinutes != 15 {
		t.Errorf("trigger = %+v, want interval every 15", updated.Trigger)
	}
}

func TestRegistry_UpdateInvalidLeavesRoutine(t *testing.T) {
	r, _ := newTestRegistry(t)
	ctx := context.Background()

	created, _ := r.Create(ctx, morningPayload())
	_, err := r.Update(ctx, created.ID, Payload{Trigger: &TriggerPayload{Time: strPtr("7am")}})
	if !errors.Is(err, ErrInvalidTrigger) {
		t.Fatalf("Update() error = %v, want ErrInvalidTrigger", err)
	}

	got, _ := r.Get(ctx, created.ID)
	if got.Trigger.Time != "07:00" {
		t.Errorf("trigger changed after rejected update: %+v", got.Trigger)
	}
}

func TestRegistry_NotFound(t *testing.T) {
	r, _ := newTestRegistry(t)
	ctx := context.Background()

	if _, err := r.Get(ctx, "missing"); !errors.Is(err, ErrRoutineNotFound) {
		t.Errorf("Get() error = %v", err)
	}
	if _, err := r.Update(ctx, "missing", Payload{Enabled: boolPtr(true)}); !errors.Is(err, ErrRoutineNotFound) {
		t.Errorf("Update() error = %v", err)
	}
	if err := r.Delete(ctx, "missing"); !errors.Is(err, ErrRoutineNotFound) {
		t.Errorf("Delete() error = %v", err)
	}
}

func TestRegistry_DeleteKeepsOrder(t *testing.T) {
	r, _ := newTestRegistry(t)
	ctx := context.Background()

	var ids []string
	for _, name := range []string{"a", "b", "c"} {
		p := morningPayload()
		p.Name = strPtr(name)
		rt, err := r.Create(ctx, p)
		if err != nil {
			t.Fatalf("Create(%s) error = %v", name, err)
		}
		ids = append(ids, rt.ID)
	}

	if err := r.Delete(ctx, ids[1]); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}

	list := r.List(ctx)
	if len(list) != 2 || list[0].Name != "a" || list[1].Name != "c" {
		t.Errorf("List() after delete = %+v", list)
	}
	if _, err := r.Get(ctx, ids[2]); err != nil {
		t.Errorf("Get(c) after delete error = %v", err)
	}
}

func TestRegistry_MarkRun(t *testing.T) {
	r, path := newTestRegistry(t)
	ctx := context.Background()

	a, _ := r.Create(ctx, morningPayload())
	b, _ := r.Create(ctx, morningPayload())
	at := time.Date(2026, 3, 2, 7, 0, 5, 0, time.UTC)

	err := r.MarkRun(ctx,
		Run{ID: a.ID, At: at, Slot: "2026-03-02T07:00"},
		Run{ID: b.ID, At: at},
		Run{ID: "deleted", At: at},
	)
	if err != nil {
		t.Fatalf("MarkRun() error = %v", err)
	}

	gotA, _ := r.Get(ctx, a.ID)
	if gotA.LastRunAt == nil || !gotA.LastRunAt.Equal(at) || gotA.LastSlot != "2026-03-02T07:00" {
		t.Errorf("a = lastRunAt %v lastSlot %q", gotA.LastRunAt, gotA.LastSlot)
	}
	gotB, _ := r.Get(ctx, b.ID)
	if gotB.LastRunAt == nil || gotB.LastSlot != "" {
		t.Errorf("b = lastRunAt %v lastSlot %q", gotB.LastRunAt, gotB.LastSlot)
	}
	if !gotA.UpdatedAt.Equal(a.UpdatedAt) {
		t.Error("MarkRun should not touch UpdatedAt")
	}

	var doc struct {
		Routines []Routine `json:"routines"`
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if doc.Routines[0].LastSlot != "2026-03-02T07:00" {
		t.Errorf("persisted lastSlot = %q", doc.Routines[0].LastSlot)
	}
}

func TestRegistry_FailedWriteLeavesMemory(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "blocker")
	if err := os.WriteFile(blocker, []byte("x"), 0600); err != nil {
		t.Fatal(err)
	}

	// Parent "directory" is a regular file, so every save fails.
	r := NewRegistry(filepath.Join(blocker, "routines.json"))
	if _, err := r.Create(context.Background(), morningPayload()); err == nil {
		t.Fatal("Create() expected write error")
	}
	if n := len(r.List(context.Background())); n != 0 {
		t.Errorf("List() len = %d after failed write, want 0", n)
	}
}

func TestRegistry_ReturnsCopies(t *testing.T) {
	r, _ := newTestRegistry(t)
	ctx := context.Background()

	created, _ := r.Create(ctx, morningPayload())
	created.Actions[0].DeviceID = "mutated"
	created.Trigger.Weekdays[0] = 6

	got, _ := r.Get(ctx, created.ID)
	if got.Actions[0].DeviceID != "lamp" || got.Trigger.Weekdays[0] != 1 {
		t.Errorf("caller mutation leaked into registry: %+v", got)
	}
}

func TestRegistry_LoadCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "routines.json")
	if err := os.WriteFile(path, []byte("{not json"), 0600); err != nil {
		t.Fatal(err)
	}
	if err := NewRegistry(path).Load(context.Background()); err == nil {
		t.Error("Load() expected error for corrupt file")
	}
}

func TestRegistry_SetLoggerNil(t *testing.T) {
	r, _ := newTestRegistry(t)
	r.SetLogger(nil)

	// Create logs on success; a nil logger must fall back to the no-op one.
	if _, err := r.Create(context.Background(), morningPayload()); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
}
