package npc

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"
)

// reloadDebounce collapses bursts of writes from editors into one reload.
const reloadDebounce = 150 * time.Millisecond

// Watch reloads the roster in dir whenever a file in it changes and passes
// the result to fn. It blocks until ctx is done.
func Watch(ctx context.Context, dir string, fn func(*Roster, error)) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("unable to create watcher: %w", err)
	}
	defer w.Close() //nolint:errcheck

	if err := addTree(w, dir); err != nil {
		return err
	}

	var (
		timer  *time.Timer
		reload <-chan time.Time
	)
	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			log.Debug("roster changed", "file", ev.Name, "op", ev.Op.String())
			if ev.Has(fsnotify.Create) {
				if st, err := os.Stat(ev.Name); err == nil && st.IsDir() {
					_ = w.Add(ev.Name)
				}
			}
			if timer == nil {
				timer = time.NewTimer(reloadDebounce)
			} else {
				timer.Reset(reloadDebounce)
			}
			reload = timer.C

		case <-reload:
			reload = nil
			fn(LoadDir(dir))

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			log.Warn("roster watcher error", "error", err)
		}
	}
}

// addTree watches dir and its immediate subdirectories; fsnotify is not
// recursive.
func addTree(w *fsnotify.Watcher, dir string) error {
	if err := w.Add(dir); err != nil {
		return fmt.Errorf("unable to watch %s: %w", dir, err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("unable to read %s: %w", dir, err)
	}
	for _, e := range entries {
		if e.IsDir() {
			if err := w.Add(filepath.Join(dir, e.Name())); err != nil {
				return fmt.Errorf("unable to watch %s: %w", e.Name(), err)
			}
		}
	}
	return nil
}
