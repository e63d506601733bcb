// Package loader reads configuration sources into nested maps.
//
// A TOML file supplies the base values and REQHUB_* environment variables
// overlay them. Keys are dotted paths through the nested maps.
package loader

import (
	"os"
)

// Loader is implemented by every configuration source.
type Loader interface {
	// Load returns nil, nil when the source does not exist.
	Load() (map[string]any, error)
}

// FileSystem reads whole files.
type FileSystem interface {
	ReadFile(path string) ([]byte, error)
}

// OSFS reads from the real file system.
type OSFS struct{}

// ReadFile reads the entire file at path.
func (OSFS) ReadFile(path string) ([]byte, error) {
	return os.ReadFile(path)
}

// Load reads each source in order and merges later sources over earlier
// ones.
func Load(sources ...Loader) (map[string]any, error) {
	merged := make(map[string]any)
	for _, src := range sources {
		values, err := src.Load()
		if err != nil {
			return nil, err
		}
		merged = DeepMerge(merged, values)
	}
	return merged, nil
}
