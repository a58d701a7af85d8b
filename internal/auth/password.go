package auth

import (
	"errors"
	"fmt"

	"github.com/willemschots/docauth/internal/krypto"
)

// We put a generous upper cap on password length, so people can use
// passphrases but we don't allow MBs of data as a password.
const maxPasswordBytes = 4096

// SecretMarker replaces the password wherever it would be exposed.
const SecretMarker = krypto.SecretMarker

var ErrInvalidPassword = errors.New("invalid password")

// Password is a plaintext password.
//
// It should never be persisted, logged or exposed in any other way. To
// protect ourselves from accidentally doing so, the type implements
// several common interfaces that would allow it to be used inappropriately.
//
// The only things to do with a Password are setting it on a Credential and
// verifying it against one.
type Password struct {
	plain []byte
}

// ParsePassword creates a new Password from a plaintext string.
// It errors if the password is too long. Empty passwords are accepted,
// password policies are left to the caller.
func ParsePassword(pwd string) (Password, error) {
	if len(pwd) > maxPasswordBytes {
		return Password{}, fmt.Errorf("%w: longer than %d bytes", ErrInvalidPassword, maxPasswordBytes)
	}

	return Password{
		plain: []byte(pwd),
	}, nil
}

func (p Password) Format(f fmt.State, verb rune) {
	f.Write([]byte(SecretMarker))
}

func (p Password) MarshalText() ([]byte, error) {
	return []byte(SecretMarker), nil
}
