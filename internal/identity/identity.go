// Package identity reports who the harness is: host, build version and kernel.
package identity

import (
	"encoding/json"
	"os"
	"path/filepath"
)

// DefaultVersion is reported when no metadata.json is present.
const DefaultVersion = "0.3.0"

// Version is set at build time with -ldflags "-X .../identity.Version=...".
// It takes precedence over metadata.json.
var Version = ""

// Info holds harness identity.
type Info struct {
	Hostname string
	Version  string
	Kernel   string
}

// Get collects identity information. configDir is searched for metadata.json.
func Get(configDir string) Info {
	return Info{
		Hostname: GetHostname(),
		Version:  GetVersionFromDir(configDir),
		Kernel:   Kernel(),
	}
}

// GetHostname returns the system hostname.
func GetHostname() string {
	h, err := os.Hostname()
	if err != nil {
		return "powertest"
	}
	return h
}

// GetVersionFromDir returns the build version, or the version field of
// dir/metadata.json, or DefaultVersion.
func GetVersionFromDir(dir string) string {
	if Version != "" {
		return Version
	}
	if dir == "" {
		return DefaultVersion
	}

	data, err := os.ReadFile(filepath.Join(dir, "metadata.json"))
	if err != nil {
		return DefaultVersion
	}

	var meta struct {
		Version string `json:"version"`
	}
	if err := json.Unmarshal(data, &meta); err != nil || meta.Version == "" {
		return DefaultVersion
	}
	return meta.Version
}
