//go:build !darwin

package internal

import (
	"errors"
	"os"
)

var errNoKeychain = errors.New("keychain integration is only supported on macOS")

// GetSecret resolves the credential file secret from the flag value or
// the environment.
func GetSecret(explicitSecret string) (string, error) {
	if explicitSecret != "" {
		return explicitSecret, nil
	}
	if s := os.Getenv(SecretEnvVar); s != "" {
		return s, nil
	}
	return "", errors.New("no secret given and " + SecretEnvVar + " is not set")
}

func KeychainSecret() (string, error) {
	return "", errNoKeychain
}

func SetupKeychain() (string, error) {
	return "", errNoKeychain
}

func StoreKeychainSecret(string) error {
	return errNoKeychain
}

func KeychainSupported() bool {
	return false
}
