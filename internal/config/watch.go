package config

import (
	"log/slog"

	"github.com/fsnotify/fsnotify"
)

// Watcher reloads Config from disk whenever path changes, pushing each
// successfully-parsed Config onto C. Malformed edits are logged and
// ignored — the previous valid Config stays in effect until a
// subsequent edit parses cleanly.
type Watcher struct {
	C      <-chan Config
	watcher *fsnotify.Watcher
	log    *slog.Logger
}

// Watch starts watching path for changes and returns a Watcher. Callers
// should range over Watcher.C and call Close when done.
func Watch(path string, log *slog.Logger) (*Watcher, error) {
	if log == nil {
		log = slog.Default()
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsw.Add(path); err != nil {
		fsw.Close()
		return nil, err
	}

	out := make(chan Config, 1)
	go func() {
		defer close(out)
		for {
			select {
			case ev, ok := <-fsw.Events:
				if !ok {
					return
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				cfg, err := Load(path)
				if err != nil {
					log.Warn("config reload failed", "path", path, "error", err)
					continue
				}
				log.Info("config reloaded", "path", path)
				select {
				case out <- cfg:
				default:
					// drop the stale pending reload, keep the freshest
					select {
					case <-out:
					default:
					}
					out <- cfg
				}
			case err, ok := <-fsw.Errors:
				if !ok {
					return
				}
				log.Warn("config watch error", "error", err)
			}
		}
	}()

	return &Watcher{C: out, watcher: fsw, log: log}, nil
}

// Close stops the underlying filesystem watch.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}
