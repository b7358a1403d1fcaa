// Package scheduler evaluates routine triggers on a periodic tick and runs
// the routines that fire.
//
// # Tick
//
// One ticker drives evaluation at the configured check interval
// (5s to 5min, default 30s). Changing the interval resets the ticker and
// runs a pass immediately. Each pass only decides and launches:
//
//  1. List the routines and pick the enabled ones whose trigger is due.
//  2. Stamp lastRunAt (and the slot key for time triggers) in one write.
//  3. Launch each fired routine in its own goroutine.
//
// Launched runs acquire a slot in a bounded pool inside the goroutine, so a
// slow device API never blocks the tick. Passes may therefore overlap with
// runs from earlier passes.
//
// # Triggers
//
// A time trigger fires when the wall clock in the site timezone reads its
// HH:MM on a listed weekday (any day when the list is empty) and the
// routine has not already fired for that date and minute. The slot key is
// persisted with the routine so a restart within the same minute does not
// fire it again. A tick interval longer than a minute can step over HH:MM
// entirely; that fire is missed.
//
// An interval trigger fires when at least everyMinutes have passed since
// lastRunAt. A routine that has never run fires on the first pass.
//
// # Runs
//
// Actions run sequentially in list order, each bounded by the action
// timeout. A failed action becomes a result entry with ok=false and the
// remaining actions still run. Every successful action appends one
// activity entry. RunNow executes a routine synchronously for the caller
// regardless of its trigger or enabled flag.
//
// Observers receive a RunReport after every run.
package scheduler
