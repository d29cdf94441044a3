//go:build !darwin

package config

import (
	"fmt"
	"path/filepath"
)

// Without a system keychain, secrets live in a JSON document of
// service → account → value next to the data directory, mode 0600.
type secretFile map[string]map[string]string

func secretsPath() string {
	return filepath.Join(defaultDataDir(), "secrets.json")
}

func keychainLookup(service, account string) ([]byte, error) {
	var secrets secretFile
	if err := readJSONFile(secretsPath(), &secrets); err != nil {
		return nil, fmt.Errorf("reading secrets: %w", err)
	}
	val, ok := secrets[service][account]
	if !ok {
		return nil, fmt.Errorf("no secret %s/%s", service, account)
	}
	return []byte(val), nil
}

func keychainStore(service, account, value string) error {
	path := secretsPath()
	secrets := secretFile{}
	if err := readJSONFile(path, &secrets); err != nil {
		return fmt.Errorf("reading secrets: %w", err)
	}
	if secrets[service] == nil {
		secrets[service] = make(map[string]string)
	}
	secrets[service][account] = value
	return writeJSONFile(path, secrets)
}
