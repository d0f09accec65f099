package finder

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watch scans once, then rescans whenever the watched directories change,
// until ctx is done. onScan, if non-nil, is called after every pass.
func (f *Finder) Watch(ctx context.Context, onScan func(Stats, error)) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating fsnotify watcher: %w", err)
	}
	defer fsw.Close()

	for _, dir := range f.dirs() {
		if err := fsw.Add(dir); err != nil {
			// Directories created later are picked up by the interval scan.
			f.logger.Debug("not watching directory", "dir", dir, "error", err)
		}
	}

	scan := func() {
		st, err := f.Scan(ctx)
		if err != nil && ctx.Err() == nil {
			f.logger.Error("scan failed", "root", f.repo.Root(), "error", err)
		}
		if onScan != nil {
			onScan(st, err)
		}
	}
	scan()

	var (
		timer   *time.Timer
		pending bool
		tick    <-chan time.Time
	)
	if f.cfg.Interval > 0 {
		ticker := time.NewTicker(f.cfg.Interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if !isRelevantEvent(event) {
				continue
			}

			// Reset or start debounce timer
			if timer == nil {
				timer = time.NewTimer(f.cfg.Debounce)
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(f.cfg.Debounce)
			}
			pending = true

		case <-func() <-chan time.Time {
			if timer != nil {
				return timer.C
			}
			return nil
		}():
			if pending {
				pending = false
				scan()
			}

		case <-tick:
			scan()

		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			f.logger.Warn("filesystem watcher error", "error", err)

		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil
		}
	}
}

// dirs returns the distinct base directories of the kinds the repository
// owns.
func (f *Finder) dirs() []string {
	set := make(map[string]bool)
	for _, kind := range f.repo.Kinds() {
		if !f.repo.Owns(kind) {
			continue
		}
		if dir := f.repo.BasePath(kind); dir != "" {
			set[dir] = true
		}
	}
	out := make([]string, 0, len(set))
	for dir := range set {
		out = append(out, dir)
	}
	sort.Strings(out)
	return out
}

// isRelevantEvent checks if the event should trigger a rescan.
func isRelevantEvent(event fsnotify.Event) bool {
	if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
		return false
	}
	return !hidden(filepath.Base(event.Name))
}
