package hashers

import (
	"crypto/subtle"
	"database/sql/driver"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/willemschots/docauth/internal/krypto"
	"golang.org/x/crypto/argon2"
)

const (
	// AlgorithmArgon2 is the name of the argon2id hasher.
	AlgorithmArgon2 = "argon2id"

	argon2Variant = "argon2id"
	// Hashes created by Django carry an extra "argon2" prefix before the PHC string.
	djangoArgon2Prefix = "argon2"
)

// Argon2Params are the cost parameters of argon2id.
type Argon2Params struct {
	MemoryKiB   uint32
	Iterations  uint32
	Parallelism uint8
	SaltLen     uint32
	KeyLen      uint32
}

// Argon2Hash is a parsed argon2id hash in PHC string format:
//
//	$argon2id$v=19$m=47104,t=1,p=1$<salt>$<hash>
type Argon2Hash struct {
	Variant     string
	Version     int
	MemoryKiB   uint32
	Iterations  uint32
	Parallelism uint8
	Salt        []byte
	Hash        []byte
}

// ParseArgon2Hash parses an argon2id hash in PHC string format.
func ParseArgon2Hash(s string) (Argon2Hash, error) {
	if strings.HasPrefix(s, djangoArgon2Prefix+"$"+argon2Variant+"$") {
		s = s[len(djangoArgon2Prefix):]
	}

	parts := strings.Split(s, "$")
	if len(parts) != 6 || parts[0] != "" {
		return Argon2Hash{}, fmt.Errorf("%w: expected 6 segments", ErrInvalidHash)
	}

	h := Argon2Hash{
		Variant: parts[1],
	}

	if h.Variant != argon2Variant {
		return Argon2Hash{}, fmt.Errorf("%w: unsupported variant %q", ErrInvalidHash, h.Variant)
	}

	_, err := fmt.Sscanf(parts[2], "v=%d", &h.Version)
	if err != nil {
		return Argon2Hash{}, fmt.Errorf("%w: version: %v", ErrInvalidHash, err)
	}

	if h.Version != argon2.Version {
		return Argon2Hash{}, fmt.Errorf("%w: unsupported version %d", ErrInvalidHash, h.Version)
	}

	_, err = fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &h.MemoryKiB, &h.Iterations, &h.Parallelism)
	if err != nil {
		return Argon2Hash{}, fmt.Errorf("%w: parameters: %v", ErrInvalidHash, err)
	}

	h.Salt, err = base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return Argon2Hash{}, fmt.Errorf("%w: salt: %v", ErrInvalidHash, err)
	}

	h.Hash, err = base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return Argon2Hash{}, fmt.Errorf("%w: hash: %v", ErrInvalidHash, err)
	}

	if len(h.Hash) == 0 || h.Iterations == 0 || h.Parallelism == 0 {
		return Argon2Hash{}, fmt.Errorf("%w: empty hash or zero cost", ErrInvalidHash)
	}

	return h, nil
}

// String returns the PHC string format of the hash.
func (h Argon2Hash) String() string {
	return fmt.Sprintf("$%s$v=%d$m=%d,t=%d,p=%d$%s$%s",
		h.Variant,
		h.Version,
		h.MemoryKiB,
		h.Iterations,
		h.Parallelism,
		base64.RawStdEncoding.EncodeToString(h.Salt),
		base64.RawStdEncoding.EncodeToString(h.Hash),
	)
}

func (h Argon2Hash) MarshalText() ([]byte, error) {
	return []byte(h.String()), nil
}

func (h *Argon2Hash) UnmarshalText(text []byte) error {
	parsed, err := ParseArgon2Hash(string(text))
	if err != nil {
		return err
	}

	*h = parsed
	return nil
}

// Scan implements sql.Scanner.
func (h *Argon2Hash) Scan(src any) error {
	s, ok := src.(string)
	if !ok {
		return errors.New("argon2 hash: source is not a string")
	}

	return h.UnmarshalText([]byte(s))
}

// Value implements driver.Valuer.
func (h Argon2Hash) Value() (driver.Value, error) {
	return h.String(), nil
}

// Match checks if raw matches the hash using the parameters embedded in it.
func (h Argon2Hash) Match(raw []byte) bool {
	other := argon2.IDKey(raw, h.Salt, h.Iterations, h.MemoryKiB, h.Parallelism, uint32(len(h.Hash)))
	return subtle.ConstantTimeCompare(h.Hash, other) == 1
}

// Argon2Hasher hashes passwords with argon2id.
type Argon2Hasher struct {
	params Argon2Params
}

// NewArgon2Hasher creates an argon2id hasher with the provided parameters.
func NewArgon2Hasher(p Argon2Params) *Argon2Hasher {
	return &Argon2Hasher{params: p}
}

func (a *Argon2Hasher) Algorithm() string {
	return AlgorithmArgon2
}

func (a *Argon2Hasher) Identify(encoded string) bool {
	return strings.HasPrefix(encoded, "$"+argon2Variant+"$") ||
		strings.HasPrefix(encoded, djangoArgon2Prefix+"$"+argon2Variant+"$")
}

func (a *Argon2Hasher) Validate(encoded string) error {
	_, err := ParseArgon2Hash(encoded)
	return err
}

func (a *Argon2Hasher) Hash(raw []byte) (string, error) {
	salt, err := krypto.RandomBytes(int(a.params.SaltLen))
	if err != nil {
		return "", err
	}

	h := Argon2Hash{
		Variant:     argon2Variant,
		Version:     argon2.Version,
		MemoryKiB:   a.params.MemoryKiB,
		Iterations:  a.params.Iterations,
		Parallelism: a.params.Parallelism,
		Salt:        salt,
		Hash:        argon2.IDKey(raw, salt, a.params.Iterations, a.params.MemoryKiB, a.params.Parallelism, a.params.KeyLen),
	}

	return h.String(), nil
}

func (a *Argon2Hasher) Verify(raw []byte, encoded string) (bool, error) {
	h, err := ParseArgon2Hash(encoded)
	if err != nil {
		return false, err
	}

	return h.Match(raw), nil
}

func (a *Argon2Hasher) MustUpdate(encoded string) bool {
	h, err := ParseArgon2Hash(encoded)
	if err != nil {
		return false
	}

	return h.MemoryKiB != a.params.MemoryKiB ||
		h.Iterations != a.params.Iterations ||
		h.Parallelism != a.params.Parallelism ||
		uint32(len(h.Hash)) != a.params.KeyLen
}

// HardenRuntime is a no-op: argon2 cost is dominated by memory, which can not
// be topped up after the fact.
func (a *Argon2Hasher) HardenRuntime(_ []byte, _ string) {}
