package hashers

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// AlgorithmBcrypt is the name of the bcrypt hasher.
const AlgorithmBcrypt = "bcrypt"

const bcryptPrefix = AlgorithmBcrypt + "$"

// BcryptHasher hashes passwords with bcrypt. Encoded hashes are the bcrypt
// output prefixed with "bcrypt$". Bare modular crypt hashes ($2a$, $2b$,
// $2y$) are accepted on verification.
type BcryptHasher struct {
	cost int
}

// NewBcryptHasher creates a bcrypt hasher with the provided cost.
func NewBcryptHasher(cost int) *BcryptHasher {
	return &BcryptHasher{cost: cost}
}

func (b *BcryptHasher) Algorithm() string {
	return AlgorithmBcrypt
}

func (b *BcryptHasher) Identify(encoded string) bool {
	return isModularBcrypt(strings.TrimPrefix(encoded, bcryptPrefix))
}

func isModularBcrypt(s string) bool {
	for _, p := range []string{"$2a$", "$2b$", "$2y$"} {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}

func (b *BcryptHasher) Validate(encoded string) error {
	stored, err := bcryptData(encoded)
	if err != nil {
		return err
	}

	_, err = bcrypt.Cost(stored)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidHash, err)
	}

	return nil
}

func (b *BcryptHasher) Hash(raw []byte) (string, error) {
	out, err := bcrypt.GenerateFromPassword(raw, b.cost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return "", fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
		return "", fmt.Errorf("bcrypt: %w", err)
	}

	return bcryptPrefix + string(out), nil
}

func (b *BcryptHasher) Verify(raw []byte, encoded string) (bool, error) {
	stored, err := bcryptData(encoded)
	if err != nil {
		return false, err
	}

	err = bcrypt.CompareHashAndPassword(stored, raw)
	if err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return false, nil
		}
		return false, fmt.Errorf("%w: %v", ErrInvalidHash, err)
	}

	return true, nil
}

func (b *BcryptHasher) MustUpdate(encoded string) bool {
	stored, err := bcryptData(encoded)
	if err != nil {
		return false
	}

	cost, err := bcrypt.Cost(stored)
	if err != nil {
		return false
	}

	return cost != b.cost
}

// HardenRuntime repeats the comparison at the stored cost until the total
// work equals one comparison at the configured cost.
func (b *BcryptHasher) HardenRuntime(raw []byte, encoded string) {
	stored, err := bcryptData(encoded)
	if err != nil {
		return
	}

	cost, err := bcrypt.Cost(stored)
	if err != nil || cost >= b.cost {
		return
	}

	extra := (1 << (b.cost - cost)) - 1
	for range extra {
		_ = bcrypt.CompareHashAndPassword(stored, raw)
	}
}

func bcryptData(encoded string) ([]byte, error) {
	s := strings.TrimPrefix(encoded, bcryptPrefix)
	if !isModularBcrypt(s) {
		return nil, fmt.Errorf("%w: not a bcrypt hash", ErrInvalidHash)
	}

	return []byte(s), nil
}
