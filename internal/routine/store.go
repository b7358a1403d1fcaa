package routine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/gray-logic-routines/internal/infrastructure/jsonfile"
)

// Logger defines the logging interface used by the Registry.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// document is the on-disk shape of the routines file.
type document struct {
	Routines []*Routine `json:"routines"`
}

// Registry is the routine store: an in-memory collection kept in sync with
// a JSON file.
//
// All public methods are thread-safe. Returned routines are deep copies.
type Registry struct {
	path string

	mu       sync.RWMutex
	routines []*Routine // file order
	index    map[string]int

	now    func() time.Time
	logger Logger
}

// NewRegistry creates a registry persisted at path. Call Load before use.
func NewRegistry(path string) *Registry {
	return &Registry{
		path:   path,
		index:  make(map[string]int),
		now:    time.Now,
		logger: noopLogger{},
	}
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger Logger) {
	if logger == nil {
		logger = noopLogger{}
	}
	r.logger = logger
}

// Load reads the routines file into memory. A missing file is an empty
// collection.
func (r *Registry) Load(_ context.Context) error {
	var doc document
	if _, err := jsonfile.Load(r.path, &doc); err != nil {
		return fmt.Errorf("loading routines: %w", err)
	}

	routines := make([]*Routine, 0, len(doc.Routines))
	for _, rt := range doc.Routines {
		if rt == nil || rt.ID == "" {
			continue
		}
		routines = append(routines, rt)
	}

	r.mu.Lock()
	r.swap(routines)
	r.mu.Unlock()

	r.logger.Info("routines loaded", "count", len(routines), "path", r.path)
	return nil
}

// List returns every routine in stored order.
func (r *Registry) List(_ context.Context) []Routine {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Routine, 0, len(r.routines))
	for _, rt := range r.routines {
		out = append(out, *rt.DeepCopy())
	}
	return out
}

// Get returns the routine with id.
func (r *Registry) Get(_ context.Context, id string) (*Routine, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	i, ok := r.index[id]
	if !ok {
		return nil, ErrRoutineNotFound
	}
	return r.routines[i].DeepCopy(), nil
}

// Create validates p and appends a new routine. Name, trigger and actions
// are required; enabled defaults to true.
func (r *Registry) Create(_ context.Context, p Payload) (*Routine, error) {
	if p.Name == nil {
		return nil, fmt.Errorf("%w: required", ErrInvalidName)
	}
	name, err := ValidateName(*p.Name)
	if err != nil {
		return nil, err
	}
	trigger, err := NormaliseTrigger(p.Trigger)
	if err != nil {
		return nil, err
	}
	if p.Actions == nil {
		return nil, ErrNoActions
	}
	actions, err := NormaliseActions(*p.Actions)
	if err != nil {
		return nil, err
	}

	enabled := true
	if p.Enabled != nil {
		enabled = *p.Enabled
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now().UTC()
	rt := &Routine{
		ID:        uuid.NewString(),
		Name:      name,
		Enabled:   enabled,
		Trigger:   trigger,
		Actions:   actions,
		CreatedAt: now,
		UpdatedAt: now,
	}

	next := append(append(make([]*Routine, 0, len(r.routines)+1), r.routines...), rt)
	if err := r.commit(next); err != nil {
		return nil, err
	}

	r.logger.Info("routine created", "routine_id", rt.ID, "name", rt.Name, "trigger", rt.Trigger.Type)
	return rt.DeepCopy(), nil
}

// Update merges the fields present in p into the routine with id.
func (r *Registry) Update(_ context.Context, id string, p Payload) (*Routine, error) {
	var (
		name    string
		trigger Trigger
		actions []Action
		err     error
	)
	if p.Name != nil {
		if name, err = ValidateName(*p.Name); err != nil {
			return nil, err
		}
	}
	if p.Trigger != nil {
		if trigger, err = NormaliseTrigger(p.Trigger); err != nil {
			return nil, err
		}
	}
	if p.Actions != nil {
		if actions, err = NormaliseActions(*p.Actions); err != nil {
			return nil, err
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	i, ok := r.index[id]
	if !ok {
		return nil, ErrRoutineNotFound
	}

	rt := r.routines[i].DeepCopy()
	if p.Name != nil {
		rt.Name = name
	}
	if p.Enabled != nil {
		rt.Enabled = *p.Enabled
	}
	if p.Trigger != nil {
		rt.Trigger = trigger
	}
	if p.Actions != nil {
		rt.Actions = actions
	}
	rt.UpdatedAt = r.now().UTC()

	next := append(make([]*Routine, 0, len(r.routines)), r.routines...)
	next[i] = rt
	if err := r.commit(next); err != nil {
		return nil, err
	}

	r.logger.Info("routine updated", "routine_id", id)
	return rt.DeepCopy(), nil
}

// Delete removes the routine with id.
func (r *Registry) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	i, ok := r.index[id]
	if !ok {
		return ErrRoutineNotFound
	}

	next := make([]*Routine, 0, len(r.routines)-1)
	next = append(next, r.routines[:i]...)
	next = append(next, r.routines[i+1:]...)
	if err := r.commit(next); err != nil {
		return err
	}

	r.logger.Info("routine deleted", "routine_id", id)
	return nil
}

// MarkRun stamps LastRunAt (and LastSlot when set) on each listed routine
// in a single write. Routines deleted since they fired are skipped.
func (r *Registry) MarkRun(_ context.Context, runs ...Run) error {
	if len(runs) == 0 {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	next := append(make([]*Routine, 0, len(r.routines)), r.routines...)
	changed := false
	for _, run := range runs {
		i, ok := r.index[run.ID]
		if !ok {
			r.logger.Debug("routine gone before run was recorded", "routine_id", run.ID)
			continue
		}
		rt := next[i].DeepCopy()
		at := run.At.UTC()
		rt.LastRunAt = &at
		if run.Slot != "" {
			rt.LastSlot = run.Slot
		}
		next[i] = rt
		changed = true
	}
	if !changed {
		return nil
	}
	return r.commit(next)
}

// commit persists next and, only on success, makes it current. Callers
// hold r.mu.
func (r *Registry) commit(next []*Routine) error {
	if err := jsonfile.Save(r.path, document{Routines: next}); err != nil {
		return fmt.Errorf("saving routines: %w", err)
	}
	r.swap(next)
	return nil
}

func (r *Registry) swap(routines []*Routine) {
	r.routines = routines
	r.index = make(map[string]int, len(routines))
	for i, rt := range routines {
		r.index[rt.ID] = i
	}
}
