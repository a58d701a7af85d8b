package hashers

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// Config configures a Registry. It replaces process wide hasher settings:
// every registry carries its own.
type Config struct {
	// Default is the algorithm new hashes are created with.
	Default          string
	Argon2           Argon2Params
	BcryptCost       int
	PBKDF2Iterations int
}

// DefaultConfig returns the recommended configuration.
func DefaultConfig() Config {
	return Config{
		Default: AlgorithmArgon2,
		Argon2: Argon2Params{
			MemoryKiB:   47104,
			Iterations:  1,
			Parallelism: 1,
			SaltLen:     16,
			KeyLen:      32,
		},
		BcryptCost:       12,
		PBKDF2Iterations: 600000,
	}
}

// Validate checks the configuration for values the hashers can not work with.
func (c Config) Validate() error {
	switch c.Default {
	case AlgorithmArgon2, AlgorithmBcrypt, AlgorithmPBKDF2:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownAlgorithm, c.Default)
	}

	a := c.Argon2
	if a.MemoryKiB < 8*uint32(a.Parallelism) || a.Iterations < 1 || a.Parallelism < 1 {
		return fmt.Errorf("%w: argon2 parameters m=%d,t=%d,p=%d", ErrInvalidInput, a.MemoryKiB, a.Iterations, a.Parallelism)
	}

	if a.SaltLen < 8 || a.KeyLen < 16 {
		return fmt.Errorf("%w: argon2 salt length %d, key length %d", ErrInvalidInput, a.SaltLen, a.KeyLen)
	}

	if c.BcryptCost < bcrypt.MinCost || c.BcryptCost > bcrypt.MaxCost {
		return fmt.Errorf("%w: bcrypt cost %d", ErrInvalidInput, c.BcryptCost)
	}

	if c.PBKDF2Iterations < 1 {
		return fmt.Errorf("%w: pbkdf2 iterations %d", ErrInvalidInput, c.PBKDF2Iterations)
	}

	return nil
}
