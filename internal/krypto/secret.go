package krypto

import "fmt"

// SecretMarker is a string we can look for in logs to see if the app
// is accidentally exposing secrets.
const SecretMarker = "<!SECRET_REDACTED!>"

// Secret is arbitrary sensitive data that needs to be passed
// around but not exposed. Things like store passwords or API keys.
type Secret struct {
	value []byte
}

// NewSecret creates a new secret.
func NewSecret(raw string) Secret {
	return Secret{
		value: []byte(raw),
	}
}

func (k Secret) Format(f fmt.State, verb rune) {
	f.Write([]byte(SecretMarker))
}

func (k Secret) MarshalText() ([]byte, error) {
	return []byte(SecretMarker), nil
}

// IsZero reports whether the secret is empty.
func (k Secret) IsZero() bool {
	return len(k.value) == 0
}

// SecretValue returns the secret as a string. This is provided
// as an escape hatch for cases where the secret needs to be provided
// to third party packages or libraries.
func (k Secret) SecretValue() string {
	return string(k.value)
}
