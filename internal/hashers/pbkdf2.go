package hashers

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"

	"github.com/willemschots/docauth/internal/krypto"
	"golang.org/x/crypto/pbkdf2"
)

// AlgorithmPBKDF2 is the name of the PBKDF2-HMAC-SHA256 hasher.
const AlgorithmPBKDF2 = "pbkdf2_sha256"

const (
	pbkdf2SaltLen = 22
	pbkdf2KeyLen  = sha256.Size
)

// PBKDF2Hasher hashes passwords with PBKDF2-HMAC-SHA256 in the format
//
//	pbkdf2_sha256$<iterations>$<salt>$<base64 hash>
type PBKDF2Hasher struct {
	iterations int
}

// NewPBKDF2Hasher creates a PBKDF2 hasher with the provided iteration count.
func NewPBKDF2Hasher(iterations int) *PBKDF2Hasher {
	return &PBKDF2Hasher{iterations: iterations}
}

type pbkdf2Hash struct {
	iterations int
	salt       string
	hash       []byte
}

func parsePBKDF2(encoded string) (pbkdf2Hash, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 4 || parts[0] != AlgorithmPBKDF2 {
		return pbkdf2Hash{}, fmt.Errorf("%w: not a %s hash", ErrInvalidHash, AlgorithmPBKDF2)
	}

	iterations, err := strconv.Atoi(parts[1])
	if err != nil || iterations < 1 {
		return pbkdf2Hash{}, fmt.Errorf("%w: iterations %q", ErrInvalidHash, parts[1])
	}

	if parts[2] == "" || strings.Contains(parts[2], "$") {
		return pbkdf2Hash{}, fmt.Errorf("%w: empty salt", ErrInvalidHash)
	}

	hash, err := base64.StdEncoding.DecodeString(parts[3])
	if err != nil || len(hash) == 0 {
		return pbkdf2Hash{}, fmt.Errorf("%w: hash: %v", ErrInvalidHash, err)
	}

	return pbkdf2Hash{
		iterations: iterations,
		salt:       parts[2],
		hash:       hash,
	}, nil
}

func (p *PBKDF2Hasher) Algorithm() string {
	return AlgorithmPBKDF2
}

func (p *PBKDF2Hasher) Identify(encoded string) bool {
	return strings.HasPrefix(encoded, AlgorithmPBKDF2+"$")
}

func (p *PBKDF2Hasher) Validate(encoded string) error {
	_, err := parsePBKDF2(encoded)
	return err
}

func (p *PBKDF2Hasher) Hash(raw []byte) (string, error) {
	salt, err := krypto.RandomString(pbkdf2SaltLen)
	if err != nil {
		return "", err
	}

	return encodePBKDF2(raw, salt, p.iterations), nil
}

func encodePBKDF2(raw []byte, salt string, iterations int) string {
	key := pbkdf2.Key(raw, []byte(salt), iterations, pbkdf2KeyLen, sha256.New)
	return fmt.Sprintf("%s$%d$%s$%s", AlgorithmPBKDF2, iterations, salt, base64.StdEncoding.EncodeToString(key))
}

func (p *PBKDF2Hasher) Verify(raw []byte, encoded string) (bool, error) {
	h, err := parsePBKDF2(encoded)
	if err != nil {
		return false, err
	}

	key := pbkdf2.Key(raw, []byte(h.salt), h.iterations, len(h.hash), sha256.New)
	return subtle.ConstantTimeCompare(key, h.hash) == 1, nil
}

func (p *PBKDF2Hasher) MustUpdate(encoded string) bool {
	h, err := parsePBKDF2(encoded)
	if err != nil {
		return false
	}

	return h.iterations != p.iterations
}

// HardenRuntime runs the iterations the stored hash is missing.
func (p *PBKDF2Hasher) HardenRuntime(raw []byte, encoded string) {
	h, err := parsePBKDF2(encoded)
	if err != nil {
		return
	}

	extra := p.iterations - h.iterations
	if extra > 0 {
		_ = pbkdf2.Key(raw, []byte(h.salt), extra, pbkdf2KeyLen, sha256.New)
	}
}
