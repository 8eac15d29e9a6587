package scenario

import (
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

const debounceInterval = 500 * time.Millisecond

// ReloadCallback receives the freshly loaded scenario set after the
// watched directory changes.
type ReloadCallback func(scenarios []*Scenario)

// Watcher monitors a scenario directory and reloads it on change,
// debouncing editor save bursts.
type Watcher struct {
	dir      string
	fsW      *fsnotify.Watcher
	callback ReloadCallback
	log      *slog.Logger

	mu     sync.Mutex
	timer  *time.Timer
	closed chan struct{}
}

// Watch starts watching dir and invokes cb after each settled change.
func Watch(dir string, cb ReloadCallback, logger *slog.Logger) (*Watcher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	fsW, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsW.Add(dir); err != nil {
		fsW.Close()
		return nil, err
	}
	w := &Watcher{
		dir:      dir,
		fsW:      fsW,
		callback: cb,
		log:      logger.With("component", "scenario-watcher"),
		closed:   make(chan struct{}),
	}
	go w.loop()
	return w, nil
}

func (w *Watcher) loop() {
	for {
		select {
		case ev, ok := <-w.fsW.Events:
			if !ok {
				return
			}
			ext := filepath.Ext(ev.Name)
			if ext != ".yaml" && ext != ".yml" {
				continue
			}
			w.scheduleReload()
		case err, ok := <-w.fsW.Errors:
			if !ok {
				return
			}
			w.log.Warn("watch error", "error", err)
		case <-w.closed:
			return
		}
	}
}

func (w *Watcher) scheduleReload() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(debounceInterval, func() {
		scenarios, err := LoadDir(w.dir)
		if err != nil {
			w.log.Warn("reload failed", "dir", w.dir, "error", err)
			return
		}
		w.log.Info("scenarios reloaded", "dir", w.dir, "count", len(scenarios))
		if w.callback != nil {
			w.callback(scenarios)
		}
	})
}

// Close stops watching.
func (w *Watcher) Close() error {
	close(w.closed)
	w.mu.Lock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.mu.Unlock()
	return w.fsW.Close()
}
