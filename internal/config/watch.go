package config

import (
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/lms-scan/lms-scan/internal/logging"
)

// Watcher reloads the config file on write/rename/create events and hands
// the reloaded Config to onReload. Directory-level watching (rather than
// watching the file handle directly) is required because editors commonly
// replace a config file via rename-over rather than an in-place write,
// which drops a direct file watch.
type Watcher struct {
	path     string
	onReload func(*Config)
	log      *logging.Logger
	fsw      *fsnotify.Watcher
	done     chan struct{}
}

// NewWatcher builds a config file watcher. path is the config file's full
// path, as returned by ConfigPath or passed explicitly to Load.
func NewWatcher(path string, onReload func(*Config), log *logging.Logger) (*Watcher, error) {
	if log == nil {
		log = logging.Nop()
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsw.Add(filepath.Dir(path)); err != nil {
		fsw.Close()
		return nil, err
	}
	return &Watcher{path: path, onReload: onReload, log: log, fsw: fsw, done: make(chan struct{})}, nil
}

// Run blocks, dispatching reloads until Close is called.
func (w *Watcher) Run() {
	defer close(w.done)
	for {
		select {
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != filepath.Clean(w.path) {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			cfg, err := Load(w.path)
			if err != nil {
				w.log.Warn("config", "reload failed, keeping previous config", logging.F("error", err.Error()))
				continue
			}
			w.log.Info("config", "reloaded config file", logging.F("path", w.path))
			w.onReload(cfg)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.log.Warn("config", "watch error", logging.F("error", err.Error()))
		}
	}
}

// Close stops watching and waits for Run to return.
func (w *Watcher) Close() error {
	err := w.fsw.Close()
	<-w.done
	return err
}
