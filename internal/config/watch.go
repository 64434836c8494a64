package config

import (
	"fmt"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/relaymux/gateway/internal/logging"
)

// debounceWindow absorbs the burst of events most editors fire for a
// single logical save (write, chmod, and sometimes a rename-into-place).
const debounceWindow = 200 * time.Millisecond

// Watch reloads the config at path whenever it changes on disk and calls
// onChange with the new value. It runs until stop is closed or the
// watcher's process exits; reload errors are logged and skipped rather
// than propagated, so a syntax error mid-edit doesn't kill the server.
func Watch(path string, onChange func(*Config), stop <-chan struct{}) error {
	resolved, err := ResolvePath(path)
	if err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("config: create watcher: %w", err)
	}
	if err := watcher.Add(resolved); err != nil {
		watcher.Close()
		return fmt.Errorf("config: watch %s: %w", resolved, err)
	}

	go func() {
		defer watcher.Close()
		var timer *time.Timer
		var pending <-chan time.Time

		for {
			select {
			case <-stop:
				return
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				if timer != nil {
					timer.Stop()
				}
				timer = time.NewTimer(debounceWindow)
				pending = timer.C
			case <-pending:
				pending = nil
				reload(resolved, onChange)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logging.Warnf("config: watcher error: %v", err)
			}
		}
	}()

	return nil
}

func reload(resolved string, onChange func(*Config)) {
	cfg, err := Load(resolved)
	if err != nil {
		logging.Warnf("config: reload %s failed, keeping previous config: %v", resolved, err)
		return
	}
	logging.Infof("config: reloaded %s (%d providers)", resolved, len(cfg.Providers))
	onChange(cfg)
}
