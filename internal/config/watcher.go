package config

import (
	"log/slog"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/micro-nova/gl846-go/internal/models"
)

// Watcher reloads the config file when it is edited outside the daemon.
type Watcher struct {
	store    *JSONStore
	onChange func(models.Config)
	watcher  *fsnotify.Watcher
	done     chan struct{}
}

// NewWatcher watches the directory of store's file and calls onChange with
// the reloaded config after every write or create of that file. Writes made
// by store itself are skipped.
func NewWatcher(store *JSONStore, onChange func(models.Config)) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fw.Add(filepath.Dir(store.Path())); err != nil {
		fw.Close()
		return nil, err
	}
	w := &Watcher{store: store, onChange: onChange, watcher: fw, done: make(chan struct{})}
	go w.loop()
	return w, nil
}

// Close stops watching and waits for the loop to exit.
func (w *Watcher) Close() error {
	err := w.watcher.Close()
	<-w.done
	return err
}

func (w *Watcher) loop() {
	defer close(w.done)
	path := w.store.Path()
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Name != path || !(event.Has(fsnotify.Write) || event.Has(fsnotify.Create)) {
				continue
			}
			if data, err := os.ReadFile(path); err == nil && w.store.ownWrite(data) {
				continue
			}
			cfg, err := w.store.Load()
			if err != nil {
				slog.Warn("config: reload failed", "path", path, "err", err)
				continue
			}
			slog.Info("config: reloaded", "path", path)
			w.onChange(*cfg)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			slog.Warn("config: watcher error", "err", err)
		}
	}
}
