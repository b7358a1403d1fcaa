package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/nerrad567/gray-logic-routines/internal/activity"
	"github.com/nerrad567/gray-logic-routines/internal/deviceapi"
	"github.com/nerrad567/gray-logic-routines/internal/dispatch"
	"github.com/nerrad567/gray-logic-routines/internal/routine"
)

// TriggerManual marks runs started through RunNow.
const TriggerManual = "manual"

// Result is the outcome of one action.
type Result struct {
	OK       bool               `json:"ok"`
	ActionID string             `json:"actionId"`
	DeviceID string             `json:"deviceId,omitempty"`
	Kind     routine.ActionType `json:"-"`
	State    *deviceapi.State   `json:"state,omitempty"`
	Error    string             `json:"error,omitempty"`
}

// RunReport describes a finished run.
type RunReport struct {
	RoutineID  string        `json:"routineId"`
	Name       string        `json:"name"`
	Trigger    string        `json:"trigger"`
	StartedAt  time.Time     `json:"startedAt"`
	Duration   time.Duration `json:"-"`
	DurationMS int64         `json:"durationMs"`
	Results    []Result      `json:"results"`
}

// Failures counts the results with OK false.
func (r RunReport) Failures() int {
	n := 0
	for _, res := range r.Results {
		if !res.OK {
			n++
		}
	}
	return n
}

// Observer is notified after every run.
type Observer interface {
	RoutineRan(ctx context.Context, report RunReport)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(ctx context.Context, report RunReport)

// RoutineRan calls f.
func (f ObserverFunc) RoutineRan(ctx context.Context, report RunReport) { f(ctx, report) }

// AddObserver registers o for run reports.
func (s *Scheduler) AddObserver(o Observer) {
	s.observersMu.Lock()
	s.observers = append(s.observers, o)
	s.observersMu.Unlock()
}

// execute runs rt's actions in order and notifies observers.
func (s *Scheduler) execute(ctx context.Context, rt routine.Routine, trigger string) RunReport {
	started := s.now()
	report := RunReport{
		RoutineID: rt.ID,
		Name:      rt.Name,
		Trigger:   trigger,
		StartedAt: started,
		Results:   make([]Result, 0, len(rt.Actions)),
	}

	for _, a := range rt.Actions {
		outcome, err := s.runAction(ctx, a)
		if err != nil {
			s.logger.Warn("routine action failed",
				"routine_id", rt.ID,
				"action_id", a.ID,
				"device_id", a.DeviceID,
				"error", err,
			)
			report.Results = append(report.Results, Result{
				ActionID: a.ID,
				DeviceID: a.DeviceID,
				Kind:     a.Type,
				Error:    err.Error(),
			})
			continue
		}

		report.Results = append(report.Results, Result{
			OK:       true,
			ActionID: a.ID,
			DeviceID: a.DeviceID,
			Kind:     a.Type,
			State:    outcome.State,
		})
		s.record(ctx, rt, a, outcome.SourceID, trigger)
	}

	report.Duration = s.now().Sub(started)
	report.DurationMS = report.Duration.Milliseconds()
	s.logger.Info("routine run complete",
		"routine_id", rt.ID,
		"name", rt.Name,
		"trigger", trigger,
		"actions", len(report.Results),
		"failed", report.Failures(),
		"duration_ms", report.DurationMS,
	)

	s.notify(ctx, report)
	return report
}

func (s *Scheduler) runAction(ctx context.Context, a routine.Action) (dispatch.Outcome, error) {
	ctx, cancel := context.WithTimeout(ctx, s.actionTimeout)
	defer cancel()

	switch a.Type {
	case routine.ActionToggle:
		on := a.On != nil && *a.On
		return s.dispatcher.Toggle(ctx, a.DeviceID, on, a.SourceID)
	case routine.ActionCommand:
		return s.dispatcher.Command(ctx, a.DeviceID, a.SourceID, a.Capability, a.Command, a.Arguments)
	default:
		return dispatch.Outcome{}, fmt.Errorf("%w: action type %q", routine.ErrInvalidRoutine, a.Type)
	}
}

func (s *Scheduler) record(ctx context.Context, rt routine.Routine, a routine.Action, sourceID, trigger string) {
	if s.activity == nil {
		return
	}
	err := s.activity.Append(ctx, activity.Entry{
		OccurredAt: s.now(),
		RoutineID:  rt.ID,
		ActionID:   a.ID,
		DeviceID:   a.DeviceID,
		SourceID:   sourceID,
		Label:      a.Label(rt.Name),
		Action:     a.Descriptor(),
		Trigger:    trigger,
	})
	if err != nil {
		s.logger.Warn("failed to record activity", "routine_id", rt.ID, "action_id", a.ID, "error", err)
	}
}

func (s *Scheduler) notify(ctx context.Context, report RunReport) {
	s.observersMu.RLock()
	observers := append([]Observer(nil), s.observers...)
	s.observersMu.RUnlock()

	for _, o := range observers {
		o.RoutineRan(ctx, report)
	}
}
