// Package identity reports the host name and software version the daemon
// advertises.
package identity

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
)

// DefaultVersion is used when metadata.json is missing or unreadable.
const DefaultVersion = "0.1.0"

// Info holds the identity of this daemon instance.
type Info struct {
	Hostname string `json:"hostname"`
	Version  string `json:"version"`
}

// Detect collects the identity, reading the version from configDir.
func Detect(configDir string) Info {
	return Info{
		Hostname: GetHostname(),
		Version:  GetVersionFromDir(configDir),
	}
}

// GetHostname returns the short system hostname.
func GetHostname() string {
	h, err := os.Hostname()
	if err != nil || h == "" {
		return "gl846d"
	}
	if i := strings.IndexByte(h, '.'); i > 0 {
		h = h[:i]
	}
	return h
}

// GetVersionFromDir reads "version" from dir/metadata.json.
func GetVersionFromDir(dir string) string {
	data, err := os.ReadFile(filepath.Join(dir, "metadata.json"))
	if err != nil {
		return DefaultVersion
	}

	var meta map[string]interface{}
	if err := json.Unmarshal(data, &meta); err != nil {
		return DefaultVersion
	}
	if v, ok := meta["version"].(string); ok && v != "" {
		return v
	}
	return DefaultVersion
}

// TXT returns the DNS-SD TXT records describing this instance.
func (i Info) TXT(model, asic string) []string {
	return []string{
		"version=" + i.Version,
		"model=" + model,
		"asic=" + asic,
		"path=/api",
	}
}
