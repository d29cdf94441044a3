//go:build !darwin

package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// xdgDir returns $<env>/llmcore, falling back to fallback under the home
// directory.
func xdgDir(env string, fallback ...string) string {
	dir := os.Getenv(env)
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "llmcore-data"
		}
		dir = filepath.Join(append([]string{home}, fallback...)...)
	}
	return filepath.Join(dir, "llmcore")
}

func defaultDataDir() string {
	return xdgDir("XDG_DATA_HOME", ".local", "share")
}

// readJSONFile decodes path into v. A missing file leaves v untouched.
func readJSONFile(path string, v any) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}
	return nil
}

// writeJSONFile writes v as indented JSON readable only by the owner.
func writeJSONFile(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("creating %s: %w", filepath.Dir(path), err)
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

// fileBackend keeps settings as a flat JSON object in
// $XDG_CONFIG_HOME/llmcore/config.json. The file is re-read on every call so
// that concurrent `config set` runs see each other's writes.
type fileBackend struct {
	path string
}

func newPlatformBackend() ConfigBackend {
	return fileBackend{path: filepath.Join(xdgDir("XDG_CONFIG_HOME", ".config"), "config.json")}
}

func (b fileBackend) load() (map[string]any, error) {
	values := make(map[string]any)
	if err := readJSONFile(b.path, &values); err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	return values, nil
}

func (b fileBackend) Lookup(key string) (any, bool, error) {
	values, err := b.load()
	if err != nil {
		return nil, false, err
	}
	v, ok := values[key]
	return v, ok, nil
}

func (b fileBackend) Store(key string, val any) error {
	values, err := b.load()
	if err != nil {
		return err
	}
	values[key] = val
	return writeJSONFile(b.path, values)
}

func (b fileBackend) Remove(key string) error {
	values, err := b.load()
	if err != nil {
		return err
	}
	if _, ok := values[key]; !ok {
		return nil
	}
	delete(values, key)
	return writeJSONFile(b.path, values)
}
