package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/micro-nova/gl846-go/internal/models"
)

const (
	configFileName = "gl846d.json"
	debounceDelay  = 500 * time.Millisecond
)

// JSONStore is an atomic JSON file store with debounced writes.
type JSONStore struct {
	mu      sync.Mutex
	path    string
	timer   *time.Timer
	pending *models.Config
	written []byte // content of the last write, to tell own writes from edits
}

// NewJSONStore creates a store for gl846d.json in configDir.
func NewJSONStore(configDir string) *JSONStore {
	return &JSONStore{
		path: filepath.Join(configDir, configFileName),
	}
}

// Path returns the file path used by this store.
func (s *JSONStore) Path() string { return s.path }

// Load reads the config from disk. A missing or corrupt file yields the
// defaults; older documents are migrated.
func (s *JSONStore) Load() (*models.Config, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			def := models.DefaultConfig()
			return &def, nil
		}
		return nil, err
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		slog.Warn("config: corrupt JSON config, using defaults", "path", s.path, "err", err)
		def := models.DefaultConfig()
		return &def, nil
	}

	cfg := doc.Config
	migrateConfig(&cfg, doc.legacy)
	return &cfg, nil
}

// Save schedules a write of cfg after 500ms without further Save calls.
func (s *JSONStore) Save(cfg *models.Config) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *cfg
	s.pending = &cp

	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = time.AfterFunc(debounceDelay, func() {
		s.mu.Lock()
		c := s.pending
		s.mu.Unlock()
		if c != nil {
			if err := s.writeAtomic(c); err != nil {
				slog.Error("config: failed to write config", "path", s.path, "err", err)
			}
		}
	})
	return nil
}

// Flush forces an immediate write of any pending config.
func (s *JSONStore) Flush() error {
	s.mu.Lock()
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	c := s.pending
	s.pending = nil
	s.mu.Unlock()
	if c == nil {
		return nil
	}
	return s.writeAtomic(c)
}

func (s *JSONStore) writeAtomic(cfg *models.Config) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return err
	}

	s.mu.Lock()
	s.written = data
	s.mu.Unlock()

	// rename is atomic on Linux
	tmpPath := s.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return err
	}
	return os.Rename(tmpPath, s.path)
}

// ownWrite reports whether data is what this store last wrote.
func (s *JSONStore) ownWrite(data []byte) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.written != nil && bytes.Equal(data, s.written)
}
