package hashers_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/willemschots/docauth/internal/hashers"
	"golang.org/x/crypto/bcrypt"
)

func Test_BcryptHasher(t *testing.T) {
	h := hashers.NewBcryptHasher(bcrypt.MinCost)

	t.Run("ok, hash and verify", func(t *testing.T) {
		encoded, err := h.Hash([]byte("correct-horse"))
		if err != nil {
			t.Fatalf("failed to hash: %v", err)
		}

		if !strings.HasPrefix(encoded, "bcrypt$$2a$04$") {
			t.Errorf("unexpected encoding %s", encoded)
		}

		if !h.Identify(encoded) {
			t.Errorf("hasher does not identify own hash %s", encoded)
		}

		ok, err := h.Verify([]byte("correct-horse"), encoded)
		if err != nil || !ok {
			t.Errorf("got (%v, %v), want (true, nil)", ok, err)
		}

		ok, err = h.Verify([]byte("wrong"), encoded)
		if err != nil || ok {
			t.Errorf("got (%v, %v), want (false, nil)", ok, err)
		}
	})

	t.Run("ok, bare modular crypt hash", func(t *testing.T) {
		raw, err := bcrypt.GenerateFromPassword([]byte("correct-horse"), bcrypt.MinCost)
		if err != nil {
			t.Fatalf("failed to generate: %v", err)
		}

		if !h.Identify(string(raw)) {
			t.Fatalf("hasher does not identify %s", raw)
		}

		ok, err := h.Verify([]byte("correct-horse"), string(raw))
		if err != nil || !ok {
			t.Errorf("got (%v, %v), want (true, nil)", ok, err)
		}
	})

	t.Run("ok, cost change must be updated", func(t *testing.T) {
		encoded, err := h.Hash([]byte("correct-horse"))
		if err != nil {
			t.Fatalf("failed to hash: %v", err)
		}

		if h.MustUpdate(encoded) {
			t.Errorf("own hash must not be updated")
		}

		stronger := hashers.NewBcryptHasher(bcrypt.MinCost + 1)
		if !stronger.MustUpdate(encoded) {
			t.Errorf("hash with lower cost must be updated")
		}

		// Only checks it does not panic, the runtime is not asserted.
		stronger.HardenRuntime([]byte("wrong"), encoded)
	})

	t.Run("fail, malformed hash", func(t *testing.T) {
		_, err := h.Verify([]byte("correct-horse"), "bcrypt$$2b$04$tooshort")
		if !errors.Is(err, hashers.ErrInvalidHash) {
			t.Errorf("expected error to match (using errors.Is)\n%v\ngot\n%v\n", hashers.ErrInvalidHash, err)
		}
	})

	t.Run("fail, password too long", func(t *testing.T) {
		_, err := h.Hash([]byte(strings.Repeat("a", 73)))
		if !errors.Is(err, hashers.ErrInvalidInput) {
			t.Errorf("expected error to match (using errors.Is)\n%v\ngot\n%v\n", hashers.ErrInvalidInput, err)
		}
	})
}
