// Package hashers implements self-describing password hashes.
//
// Every encoded hash carries its algorithm and parameters, so a stored hash
// can always be verified even after the preferred algorithm changed. The
// Registry ties the supported algorithms together and is the only piece
// the rest of the module talks to.
package hashers

import (
	"errors"
)

var (
	// ErrInvalidHash indicates an encoded hash could not be parsed.
	ErrInvalidHash = errors.New("invalid password hash")
	// ErrUnknownAlgorithm indicates no hasher exists for an algorithm.
	ErrUnknownAlgorithm = errors.New("unknown hashing algorithm")
	// ErrInvalidInput indicates a hasher refused the provided plaintext.
	ErrInvalidInput = errors.New("invalid input")
	// ErrHashTooLong indicates an encoded hash does not fit the storage limit.
	ErrHashTooLong = errors.New("encoded hash too long")
)

// MaxEncodedLen is the maximum length of an encoded hash. Stores reserve
// this many characters for the password field.
const MaxEncodedLen = 128

// Hasher implements a single password hashing algorithm.
type Hasher interface {
	// Algorithm returns the name of the algorithm, used in configuration.
	Algorithm() string
	// Identify reports whether encoded was produced by this algorithm.
	Identify(encoded string) bool
	// Validate returns an error wrapping ErrInvalidHash when encoded can
	// not be parsed.
	Validate(encoded string) error
	// Hash hashes raw with a fresh salt and the configured parameters.
	Hash(raw []byte) (string, error)
	// Verify reports whether raw matches encoded. It returns an error
	// wrapping ErrInvalidHash when encoded can not be parsed.
	Verify(raw []byte, encoded string) (bool, error)
	// MustUpdate reports whether encoded uses other parameters than the
	// configured ones.
	MustUpdate(encoded string) bool
	// HardenRuntime does the work that is missing when encoded was created
	// with cheaper parameters, so failed checks against old hashes take as
	// long as checks against current ones.
	HardenRuntime(raw []byte, encoded string)
}
