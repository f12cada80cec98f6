// Package config loads and saves the gl846d daemon configuration.
package config

import "github.com/micro-nova/gl846-go/internal/models"

// Store persists the daemon configuration.
type Store interface {
	// Load returns the current config, or DefaultConfig if none exists.
	Load() (*models.Config, error)

	// Save persists cfg. Implementations may debounce rapid saves.
	Save(cfg *models.Config) error

	// Path returns the file path used by this store.
	Path() string

	// Flush forces an immediate write of any pending config.
	Flush() error
}
