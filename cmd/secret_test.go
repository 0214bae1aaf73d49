package cmd

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/chukul/capsulectl/internal"
)

func TestShowKeychainSecretIgnoresEnvironment(t *testing.T) {
	tests := []struct {
		name        string
		env         string
		keychain    string
		keychainErr error
		want        []string
		notWant     []string
	}{
		{
			name:     "keychain only",
			keychain: "from-keychain",
			want:     []string{"(from Keychain)", "from-keychain"},
			notWant:  []string{internal.SecretEnvVar},
		},
		{
			name:     "environment overrides keychain",
			env:      "from-env",
			keychain: "from-keychain",
			want:     []string{"from-keychain", internal.SecretEnvVar + " is set"},
			notWant:  []string{"from-env"},
		},
		{
			name:        "environment but empty keychain",
			env:         "from-env",
			keychainErr: errors.New("secret not found in keychain"),
			want:        []string{"No secret found in Keychain", internal.SecretEnvVar + " is set"},
			notWant:     []string{"from-env", "Encryption Secret"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(internal.SecretEnvVar, tt.env)
			var buf bytes.Buffer
			showKeychainSecret(&buf, func() (string, error) { return tt.keychain, tt.keychainErr })

			out := buf.String()
			for _, w := range tt.want {
				assert.Contains(t, out, w)
			}
			for _, w := range tt.notWant {
				assert.NotContains(t, out, w)
			}
		})
	}
}
