package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/willemschots/docauth/internal/hashers"
)

// MaxPasswordHashLen is the maximum length of a stored password hash.
const MaxPasswordHashLen = hashers.MaxEncodedLen

var ErrPasswordHashTooLong = errors.New("password hash too long")

// Oracle hashes passwords and compares them to stored hashes. Stored
// hashes are opaque to the Credential, only the oracle understands them.
// *hashers.Registry implements it.
type Oracle interface {
	// Hash hashes raw using the current default scheme.
	Hash(raw []byte) (string, error)
	// Matches reports whether raw matches stored. It must return false for
	// malformed hashes.
	Matches(raw []byte, stored string) bool
	// NeedsUpgrade reports whether stored should be replaced by a hash
	// of the current default scheme.
	NeedsUpgrade(stored string) bool
	// Unusable returns a value no password will ever match.
	Unusable() (string, error)
	// IsUsable reports whether stored is a real hash.
	IsUsable(stored string) bool
}

// SaveFunc persists a new password hash. It must only write the password
// field of the owning record.
type SaveFunc func(hash string) error

// UpgradeError is returned by Credential.Verify when the password matched,
// but the rehashed password could not be stored.
type UpgradeError struct {
	Err error
}

func (e *UpgradeError) Error() string {
	return fmt.Sprintf("password matched, but upgrading its hash failed: %v", e.Err)
}

func (e *UpgradeError) Unwrap() error {
	return e.Err
}

// CredentialState is the state of a Credential.
type CredentialState int

const (
	CredentialUnset CredentialState = iota
	CredentialUsable
	CredentialUnusable
)

func (s CredentialState) String() string {
	switch s {
	case CredentialUnset:
		return "unset"
	case CredentialUsable:
		return "usable"
	case CredentialUnusable:
		return "unusable"
	default:
		return fmt.Sprintf("CredentialState(%d)", int(s))
	}
}

// Credential is the stored password of a user together with the time of
// the last login.
//
// The zero value is an unset credential. The hash can only be changed with
// Set, SetUnusable and Verify.
type Credential struct {
	hash      string
	lastLogin time.Time
}

// NewCredential returns an unset credential with its last login set to now.
func NewCredential(now time.Time) Credential {
	return Credential{lastLogin: now}
}

// RestoreCredential recreates a credential from stored values. It is meant
// for stores loading records.
func RestoreCredential(hash string, lastLogin time.Time) Credential {
	return Credential{
		hash:      hash,
		lastLogin: lastLogin,
	}
}

// PasswordHash returns the stored hash.
func (c *Credential) PasswordHash() string {
	return c.hash
}

func (c *Credential) LastLogin() time.Time {
	return c.lastLogin
}

// SetLastLogin updates the last login in memory. Persisting it is up to the caller.
func (c *Credential) SetLastLogin(t time.Time) {
	c.lastLogin = t
}

// State reports the state of the credential.
func (c *Credential) State(o Oracle) CredentialState {
	switch {
	case c.hash == "":
		return CredentialUnset
	case o.IsUsable(c.hash):
		return CredentialUsable
	default:
		return CredentialUnusable
	}
}

// Set hashes p with the default scheme of the oracle and stores the hash.
// Oracle errors are returned unchanged and leave the credential as it was.
func (c *Credential) Set(o Oracle, p Password) error {
	hash, err := hashWithOracle(o, p)
	if err != nil {
		return err
	}

	c.hash = hash
	return nil
}

// SetUnusable stores a value that no password will match.
func (c *Credential) SetUnusable(o Oracle) error {
	hash, err := o.Unusable()
	if err != nil {
		return err
	}

	c.hash = hash
	return nil
}

// HasUsablePassword reports whether a password could ever match the credential.
func (c *Credential) HasUsablePassword(o Oracle) bool {
	return o.IsUsable(c.hash)
}

// Verify reports whether p matches the credential.
//
// Unset and unusable credentials never match and the oracle is not asked.
// Malformed hashes never match. When p matches a hash that needs an upgrade,
// p is rehashed with the default scheme and save is called with the new hash
// before Verify returns. A nil save only updates the credential in memory.
//
// If the rehash can not be computed or saved, Verify returns true with an
// *UpgradeError and keeps the old hash, so memory and storage agree.
func (c *Credential) Verify(o Oracle, p Password, save SaveFunc) (bool, error) {
	if c.hash == "" || strings.HasPrefix(c.hash, hashers.UnusablePrefix) {
		return false, nil
	}

	if !o.Matches(p.plain, c.hash) {
		return false, nil
	}

	if !o.NeedsUpgrade(c.hash) {
		return true, nil
	}

	hash, err := hashWithOracle(o, p)
	if err != nil {
		return true, &UpgradeError{Err: err}
	}

	if save != nil {
		err = save(hash)
		if err != nil {
			return true, &UpgradeError{Err: err}
		}
	}

	c.hash = hash
	return true, nil
}

func hashWithOracle(o Oracle, p Password) (string, error) {
	hash, err := o.Hash(p.plain)
	if err != nil {
		return "", err
	}

	if len(hash) > MaxPasswordHashLen {
		return "", fmt.Errorf("%w: %d characters", ErrPasswordHashTooLong, len(hash))
	}

	return hash, nil
}
