// Package auth guards the control API with access keys read from
// keys.json in the config directory.
package auth

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
)

const keysFileName = "keys.json"

// Key is one access key entry in keys.json.
type Key struct {
	AccessKey string `json:"access_key"`
	Created   string `json:"created,omitempty"`
	ReadOnly  bool   `json:"read_only,omitempty"`
}

// Service checks access keys. With no keys configured the API is open.
type Service struct {
	mu        sync.RWMutex
	configDir string
	keys      map[string]Key
	watcher   *fsnotify.Watcher
}

// NewService loads keys.json from configDir and reloads it on change.
func NewService(configDir string) (*Service, error) {
	s := &Service{
		configDir: configDir,
		keys:      make(map[string]Key),
	}

	if err := s.Reload(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		slog.Warn("auth: could not create fsnotify watcher", "err", err)
		return s, nil
	}
	s.watcher = watcher

	keysPath := s.keysPath()
	if err := watcher.Add(filepath.Dir(keysPath)); err != nil {
		slog.Warn("auth: could not watch config dir", "err", err)
	}

	go s.watchLoop(keysPath)
	return s, nil
}

func (s *Service) keysPath() string {
	return filepath.Join(s.configDir, keysFileName)
}

// Reload re-reads keys.json. A missing file opens the API.
func (s *Service) Reload() error {
	data, err := os.ReadFile(s.keysPath())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			s.mu.Lock()
			s.keys = make(map[string]Key)
			s.mu.Unlock()
			return nil
		}
		return err
	}

	var keys map[string]Key
	if err := json.Unmarshal(data, &keys); err != nil {
		return err
	}

	s.mu.Lock()
	s.keys = keys
	s.mu.Unlock()
	slog.Debug("auth: reloaded keys", "count", len(keys))
	return nil
}

// IsOpenMode reports whether no key is configured.
func (s *Service) IsOpenMode() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, k := range s.keys {
		if k.AccessKey != "" {
			return false
		}
	}
	return true
}

// Check looks key up in constant time per entry. ok is false for unknown
// or empty keys.
func (s *Service) Check(key string) (k Key, ok bool) {
	if key == "" {
		return Key{}, false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, e := range s.keys {
		if subtle.ConstantTimeCompare([]byte(key), []byte(e.AccessKey)) == 1 {
			k, ok = e, true
		}
	}
	return k, ok
}

// VerifyKey reports whether key matches any configured key.
func (s *Service) VerifyKey(key string) bool {
	_, ok := s.Check(key)
	return ok
}

// Close stops the file watcher.
func (s *Service) Close() {
	if s.watcher != nil {
		s.watcher.Close()
	}
}

func (s *Service) watchLoop(keysPath string) {
	if s.watcher == nil {
		return
	}
	for {
		select {
		case event, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			if event.Name == keysPath && (event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Remove)) {
				if err := s.Reload(); err != nil {
					slog.Warn("auth: failed to reload keys", "err", err)
				}
			}
		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			slog.Warn("auth: watcher error", "err", err)
		}
	}
}
