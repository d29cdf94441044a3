//go:build darwin

package config

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
)

const defaultsDomain = "com.llmcore.app"

func defaultDataDir() string {
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, "Library", "Application Support", "llmcore")
	}
	return "llmcore-data"
}

// defaultsBackend reads and writes the llmcore UserDefaults domain through
// the defaults(1) tool. Every value reads back as a string.
type defaultsBackend struct {
	domain string
}

func newPlatformBackend() ConfigBackend {
	return defaultsBackend{domain: defaultsDomain}
}

func (b defaultsBackend) run(args ...string) (string, error) {
	out, err := exec.Command("defaults", args...).CombinedOutput()
	return strings.TrimSpace(string(out)), err
}

func (b defaultsBackend) Lookup(key string) (any, bool, error) {
	out, err := b.run("read", b.domain, key)
	if err != nil {
		// Exit status 1 means the domain or key does not exist.
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && exitErr.ExitCode() == 1 {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("defaults read %s: %w: %s", key, err, out)
	}
	return out, true, nil
}

func (b defaultsBackend) Store(key string, val any) error {
	var typ, s string
	switch v := val.(type) {
	case int:
		typ, s = "-int", strconv.Itoa(v)
	case float64:
		typ, s = "-float", strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		typ, s = "-bool", strconv.FormatBool(v)
	default:
		typ, s = "-string", fmt.Sprint(v)
	}
	if out, err := b.run("write", b.domain, key, typ, s); err != nil {
		return fmt.Errorf("defaults write %s: %w: %s", key, err, out)
	}
	return nil
}

func (b defaultsBackend) Remove(key string) error {
	if _, ok, err := b.Lookup(key); err != nil || !ok {
		return err
	}
	if out, err := b.run("delete", b.domain, key); err != nil {
		return fmt.Errorf("defaults delete %s: %w: %s", key, err, out)
	}
	return nil
}
