package hashers

import (
	"fmt"
	"strings"

	"github.com/willemschots/docauth/internal/krypto"
)

const (
	// UnusablePrefix starts every unusable password. No hasher produces it.
	UnusablePrefix = "!"
	// UnusableSuffixLen is the number of random characters after the prefix.
	UnusableSuffixLen = 40
)

// Registry selects the hasher for a stored hash and hashes new passwords
// with the configured default algorithm.
type Registry struct {
	def     Hasher
	hashers []Hasher
}

// New creates a registry with all supported hashers, configured by cfg.
func New(cfg Config) (*Registry, error) {
	err := cfg.Validate()
	if err != nil {
		return nil, err
	}

	r := &Registry{
		hashers: []Hasher{
			NewArgon2Hasher(cfg.Argon2),
			NewBcryptHasher(cfg.BcryptCost),
			NewPBKDF2Hasher(cfg.PBKDF2Iterations),
		},
	}

	for _, h := range r.hashers {
		if h.Algorithm() == cfg.Default {
			r.def = h
		}
	}

	return r, nil
}

// Default returns the hasher new passwords are hashed with.
func (r *Registry) Default() Hasher {
	return r.def
}

// Identify returns the hasher that produced encoded.
func (r *Registry) Identify(encoded string) (Hasher, error) {
	if encoded == "" || strings.HasPrefix(encoded, UnusablePrefix) {
		return nil, fmt.Errorf("%w: no usable hash", ErrInvalidHash)
	}

	for _, h := range r.hashers {
		if h.Identify(encoded) {
			return h, nil
		}
	}

	return nil, ErrUnknownAlgorithm
}

// parse returns the hasher of stored after checking that it can read it.
func (r *Registry) parse(stored string) (Hasher, error) {
	h, err := r.Identify(stored)
	if err != nil {
		return nil, err
	}

	err = h.Validate(stored)
	if err != nil {
		return nil, err
	}

	return h, nil
}

// Hash hashes raw with the default algorithm.
func (r *Registry) Hash(raw []byte) (string, error) {
	encoded, err := r.def.Hash(raw)
	if err != nil {
		return "", err
	}

	if len(encoded) > MaxEncodedLen {
		return "", fmt.Errorf("%w: %d characters", ErrHashTooLong, len(encoded))
	}

	return encoded, nil
}

// Check compares raw against stored and reports whether stored should be
// replaced by a hash of the default algorithm. Malformed or unusable hashes
// never match.
func (r *Registry) Check(raw []byte, stored string) (ok bool, mustUpdate bool) {
	h, err := r.Identify(stored)
	if err != nil {
		return false, false
	}

	changed := h != r.def
	mustUpdate = changed || r.def.MustUpdate(stored)

	ok, err = h.Verify(raw, stored)
	if err != nil {
		return false, false
	}

	if !ok && !changed && mustUpdate {
		h.HardenRuntime(raw, stored)
	}

	return ok, mustUpdate
}

// Matches reports whether raw matches stored.
func (r *Registry) Matches(raw []byte, stored string) bool {
	ok, _ := r.Check(raw, stored)
	return ok
}

// NeedsUpgrade reports whether stored was created with another algorithm or
// other parameters than the default. Unusable and malformed hashes never
// need an upgrade.
func (r *Registry) NeedsUpgrade(stored string) bool {
	h, err := r.parse(stored)
	if err != nil {
		return false
	}

	return h != r.def || r.def.MustUpdate(stored)
}

// Unusable returns a new unusable password: the prefix followed by random
// characters, so unusable passwords of different users differ.
func (r *Registry) Unusable() (string, error) {
	suffix, err := krypto.RandomString(UnusableSuffixLen)
	if err != nil {
		return "", err
	}

	return UnusablePrefix + suffix, nil
}

// IsUsable reports whether stored is a well formed hash one of the hashers
// can verify.
func (r *Registry) IsUsable(stored string) bool {
	_, err := r.parse(stored)
	return err == nil
}
