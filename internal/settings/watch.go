package settings

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

const (
	reloadDebounce     = 250 * time.Millisecond
	restartBackoffBase = 250 * time.Millisecond
	restartBackoffMax  = 5 * time.Second
)

// Watch follows the settings file and calls onChange with the new interval
// whenever an outside edit changes it. Writes made through SetInterval do
// not trigger onChange. Watch blocks until ctx is cancelled and recreates
// the watcher with backoff if it breaks.
func (s *Store) Watch(ctx context.Context, onChange func(ms int)) error {
	dir := filepath.Dir(s.path)
	file := filepath.Base(s.path)

	var (
		timerMu sync.Mutex
		timer   *time.Timer
	)
	debounce := func() {
		timerMu.Lock()
		defer timerMu.Unlock()
		if timer != nil {
			timer.Stop()
		}
		timer = time.AfterFunc(reloadDebounce, func() {
			if ctx.Err() != nil {
				return
			}
			s.reload(onChange)
		})
	}
	defer func() {
		timerMu.Lock()
		if timer != nil {
			timer.Stop()
		}
		timerMu.Unlock()
	}()

	backoff := restartBackoffBase
	for {
		if ctx.Err() != nil {
			return nil
		}

		w, err := fsnotify.NewWatcher()
		if err == nil {
			if err = w.Add(dir); err != nil {
				_ = w.Close()
			}
		}
		if err != nil {
			s.logger.Warn("settings watch failed", "error", err, "dir", dir, "retry_in", backoff)
			if !sleep(ctx, backoff) {
				return nil
			}
			backoff = min(backoff*2, restartBackoffMax)
			continue
		}

		backoff = restartBackoffBase
		s.logger.Debug("settings watcher started", "dir", dir, "file", file)

		broken := false
		for !broken {
			select {
			case <-ctx.Done():
				_ = w.Close()
				return nil
			case ev, ok := <-w.Events:
				if !ok {
					broken = true
					break
				}
				if filepath.Base(ev.Name) == file &&
					ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
					debounce()
				}
			case err, ok := <-w.Errors:
				if !ok {
					broken = true
					break
				}
				s.logger.Warn("settings watch error", "error", err)
				if errors.Is(err, fsnotify.ErrEventOverflow) {
					debounce()
				}
			}
		}

		_ = w.Close()
		s.logger.Warn("settings watcher stopped; restarting", "retry_in", backoff)
		if !sleep(ctx, backoff) {
			return nil
		}
	}
}

func (s *Store) reload(onChange func(ms int)) {
	ms, err := s.read()
	if err != nil {
		s.logger.Warn("settings reload failed", "path", s.path, "error", err)
		return
	}

	s.mu.Lock()
	changed := ms != s.intervalMS
	s.intervalMS = ms
	s.mu.Unlock()

	if !changed {
		return
	}
	s.logger.Info("routine check interval changed on disk", "interval_ms", ms)
	if onChange != nil {
		onChange(ms)
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
