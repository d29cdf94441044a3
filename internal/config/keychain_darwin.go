//go:build darwin

package config

import (
	"fmt"
	"os/exec"
)

func keychainLookup(service, account string) ([]byte, error) {
	return exec.Command(
		"security", "find-generic-password",
		"-s", service,
		"-a", account,
		"-w",
	).Output()
}

// keychainStore adds or updates a generic password item.
func keychainStore(service, account, value string) error {
	out, err := exec.Command(
		"security", "add-generic-password",
		"-U",
		"-s", service,
		"-a", account,
		"-w", value,
	).CombinedOutput()
	if err != nil {
		return fmt.Errorf("storing keychain item %s/%s: %w: %s", service, account, err, out)
	}
	return nil
}
