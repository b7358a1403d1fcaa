package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/nerrad567/gray-logic-routines/internal/activity"
	"github.com/nerrad567/gray-logic-routines/internal/dispatch"
	"github.com/nerrad567/gray-logic-routines/internal/routine"
)

// Defaults applied by New for zero Options fields.
const (
	DefaultMaxConcurrentRuns = 8
	DefaultActionTimeout     = 15 * time.Second
)

// ErrAlreadyRunning is returned by Start when the scheduler is running.
var ErrAlreadyRunning = errors.New("scheduler: already running")

// Routines is what the scheduler needs from the routine store.
type Routines interface {
	List(ctx context.Context) []routine.Routine
	Get(ctx context.Context, id string) (*routine.Routine, error)
	MarkRun(ctx context.Context, runs ...routine.Run) error
}

// Dispatcher issues device commands.
type Dispatcher interface {
	Toggle(ctx context.Context, deviceID string, on bool, sourceID string) (dispatch.Outcome, error)
	Command(ctx context.Context, deviceID, sourceID, capability, command string, args []any) (dispatch.Outcome, error)
}

// Settings holds the check interval.
type Settings interface {
	Interval() time.Duration
	SetInterval(ms int) (int, error)
}

// Logger defines the logging interface used by the Scheduler.
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

// Options tunes a Scheduler. Zero values take defaults.
type Options struct {
	// Location is the wall clock for time triggers. Default time.Local.
	Location *time.Location

	MaxConcurrentRuns int
	ActionTimeout     time.Duration

	// Now replaces time.Now in tests.
	Now func() time.Time
}

// Scheduler runs routines on their triggers.
//
// Thread Safety: all exported methods are safe for concurrent use.
type Scheduler struct {
	routines   Routines
	dispatcher Dispatcher
	activity   activity.Sink
	settings   Settings

	loc           *time.Location
	now           func() time.Time
	actionTimeout time.Duration
	pool          *semaphore.Weighted
	tracker       *tracker

	observersMu sync.RWMutex
	observers   []Observer

	logger Logger

	mu      sync.Mutex
	runCtx  context.Context //nolint:containedctx // parent for launched runs
	stop    context.CancelFunc
	reset   chan struct{}
	done    chan struct{}
	running bool

	runs sync.WaitGroup
}

// New creates a Scheduler. sink may be nil to skip activity recording.
func New(routines Routines, dispatcher Dispatcher, sink activity.Sink, settings Settings, opts Options) *Scheduler {
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.MaxConcurrentRuns <= 0 {
		opts.MaxConcurrentRuns = DefaultMaxConcurrentRuns
	}
	if opts.ActionTimeout <= 0 {
		opts.ActionTimeout = DefaultActionTimeout
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &Scheduler{
		routines:      routines,
		dispatcher:    dispatcher,
		activity:      sink,
		settings:      settings,
		loc:           opts.Location,
		now:           opts.Now,
		actionTimeout: opts.ActionTimeout,
		pool:          semaphore.NewWeighted(int64(opts.MaxConcurrentRuns)),
		tracker:       newTracker(),
		logger:        noopLogger{},
		runCtx:        context.Background(),
	}
}

// SetLogger sets the logger for the scheduler.
func (s *Scheduler) SetLogger(logger Logger) {
	if logger == nil {
		logger = noopLogger{}
	}
	s.logger = logger
}

// Start seeds the slot tracker from stored routines, runs one pass and
// begins ticking. Launched runs inherit ctx.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return ErrAlreadyRunning
	}

	for _, rt := range s.routines.List(ctx) {
		s.tracker.seed(rt.ID, rt.LastSlot)
	}

	loopCtx, stop := context.WithCancel(ctx)
	s.runCtx = ctx
	s.stop = stop
	s.reset = make(chan struct{}, 1)
	s.done = make(chan struct{})
	s.running = true

	go s.loop(loopCtx, s.reset, s.done)

	s.logger.Info("scheduler started", "interval", s.settings.Interval(), "timezone", s.loc.String())
	return nil
}

// Stop halts ticking. Runs already launched continue; use Wait to drain them.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.stop()
	done := s.done
	s.mu.Unlock()

	<-done
	s.logger.Info("scheduler stopped")
}

// Wait blocks until every launched run has finished.
func (s *Scheduler) Wait() {
	s.runs.Wait()
}

// Interval returns the current check interval.
func (s *Scheduler) Interval() time.Duration {
	return s.settings.Interval()
}

// SetInterval clamps and persists ms, restarts the ticker and runs a pass
// immediately. It returns the interval applied in milliseconds.
func (s *Scheduler) SetInterval(ms int) (int, error) {
	applied, err := s.settings.SetInterval(ms)
	if err != nil {
		return applied, err
	}
	s.ApplyInterval(applied)
	return applied, nil
}

// ApplyInterval restarts the ticker at the settings' current interval and
// runs a pass. It is used when the interval changed outside SetInterval.
func (s *Scheduler) ApplyInterval(ms int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}
	select {
	case s.reset <- struct{}{}:
	default:
	}
	s.logger.Info("scheduler interval changed", "interval_ms", ms)
}

func (s *Scheduler) loop(ctx context.Context, reset <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(s.settings.Interval())
	defer ticker.Stop()

	s.Evaluate(s.now())
	for {
		select {
		case <-ctx.Done():
			return
		case <-reset:
			ticker.Reset(s.settings.Interval())
			s.Evaluate(s.now())
		case <-ticker.C:
			s.Evaluate(s.now())
		}
	}
}

// Evaluate runs one pass at now: it decides which enabled routines fire,
// records the fires and launches them. It returns the fired routine IDs.
func (s *Scheduler) Evaluate(now time.Time) []string {
	ctx := s.parentCtx()
	now = now.In(s.loc)

	var (
		fired []routine.Routine
		runs  []routine.Run
	)
	for _, rt := range s.routines.List(ctx) {
		if !rt.Enabled {
			continue
		}

		switch rt.Trigger.Type {
		case routine.TriggerTime:
			if !timeMatches(rt.Trigger, now) {
				continue
			}
			key := SlotKey(now)
			if !s.tracker.claimSlot(rt.ID, key, rt.LastSlot) {
				continue
			}
			runs = append(runs, routine.Run{ID: rt.ID, At: now, Slot: key})

		case routine.TriggerInterval:
			if !intervalDue(rt.Trigger, s.tracker.lastRun(rt.ID, rt.LastRunAt), now) {
				continue
			}
			runs = append(runs, routine.Run{ID: rt.ID, At: now})

		default:
			s.logger.Warn("routine has unknown trigger type", "routine_id", rt.ID, "trigger", rt.Trigger.Type)
			continue
		}

		s.tracker.markFired(rt.ID, now)
		fired = append(fired, rt)
	}

	if len(fired) == 0 {
		return nil
	}

	if err := s.routines.MarkRun(ctx, runs...); err != nil {
		s.logger.Error("failed to record routine runs", "error", err, "count", len(runs))
	}

	ids := make([]string, 0, len(fired))
	for _, rt := range fired {
		ids = append(ids, rt.ID)
		s.launch(ctx, rt)
	}
	s.logger.Debug("scheduler pass fired routines", "count", len(ids), "at", now.Format(slotLayout))
	return ids
}

func (s *Scheduler) launch(ctx context.Context, rt routine.Routine) {
	s.runs.Add(1)
	go func() {
		defer s.runs.Done()

		if err := s.pool.Acquire(ctx, 1); err != nil {
			s.logger.Warn("routine run abandoned", "routine_id", rt.ID, "error", err)
			return
		}
		defer s.pool.Release(1)

		s.execute(ctx, rt, string(rt.Trigger.Type))
	}()
}

// RunNow executes the routine with id synchronously and returns one result
// per action. Action failures are reported in the results, not as an error.
func (s *Scheduler) RunNow(ctx context.Context, id string) ([]Result, error) {
	rt, err := s.routines.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	report := s.execute(ctx, *rt, TriggerManual)

	s.tracker.markFired(rt.ID, report.StartedAt)
	if err := s.routines.MarkRun(ctx, routine.Run{ID: rt.ID, At: report.StartedAt}); err != nil {
		s.logger.Error("failed to record manual run", "routine_id", rt.ID, "error", err)
	}
	return report.Results, nil
}

func (s *Scheduler) parentCtx() context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runCtx
}
