package hashers_test

import (
	"encoding/base64"
	"encoding/hex"
	"errors"
	"reflect"
	"testing"

	"github.com/willemschots/docauth/internal/hashers"
)

type argon2TestCase struct {
	raw     string
	hash    hashers.Argon2Hash
	hashStr string
}

func argon2Tests(t *testing.T) map[string]argon2TestCase {
	return map[string]argon2TestCase{
		"ok, default parameters": {
			raw: "12345678",
			hash: hashers.Argon2Hash{
				Variant:     "argon2id",
				Version:     19,
				MemoryKiB:   47104,
				Iterations:  1,
				Parallelism: 1,
				Salt:        mustBase64(t, "vP9U4C5jsOzFQLj0gvUkYw"),
				Hash:        mustBase64(t, "YLrSb2dGfcVohlm8syynqHs6/NHxXS9rt/t6TjL7pi0"),
			},
			hashStr: "$argon2id$v=19$m=47104,t=1,p=1$vP9U4C5jsOzFQLj0gvUkYw$YLrSb2dGfcVohlm8syynqHs6/NHxXS9rt/t6TjL7pi0",
		},
		"ok, reference vector": {
			// Taken from the tests in the argon2 package.
			raw: "password",
			hash: hashers.Argon2Hash{
				Variant:     "argon2id",
				Version:     19,
				MemoryKiB:   64,
				Iterations:  1,
				Parallelism: 1,
				Salt:        []byte("somesalt"),
				Hash:        mustHexDecodeString(t, "655ad15eac652dc59f7170a7332bf49b8469be1fdb9c28bb"),
			},
			hashStr: "$argon2id$v=19$m=64,t=1,p=1$c29tZXNhbHQ$ZVrRXqxlLcWfcXCnMyv0m4Rpvh/bnCi7",
		},
	}
}

func failTextToArgon2Hash() map[string]string {
	return map[string]string{
		"fail, wrong variant":           "$argon2i$v=19$m=47104,t=1,p=1$fYJT8cAysfuYCBjxTEmCkaCz0RfRtlLQOw2Fj8gM5Uw$DVpK1dNdPRmhL8oTSo+RlA",
		"fail, non-numeric version":     "$argon2id$v=abc$m=47104,t=1,p=1$fYJT8cAysfuYCBjxTEmCkaCz0RfRtlLQOw2Fj8gM5Uw$DVpK1dNdPRmhL8oTSo+RlA",
		"fail, non-matching version":    "$argon2id$v=18$m=47104,t=1,p=1$fYJT8cAysfuYCBjxTEmCkaCz0RfRtlLQOw2Fj8gM5Uw$DVpK1dNdPRmhL8oTSo+RlA",
		"fail, non-numeric memory":      "$argon2id$v=19$m=abc,t=1,p=1$fYJT8cAysfuYCBjxTEmCkaCz0RfRtlLQOw2Fj8gM5Uw$DVpK1dNdPRmhL8oTSo+RlA",
		"fail, non-numeric iterations":  "$argon2id$v=19$m=47104,t=abc,p=1$fYJT8cAysfuYCBjxTEmCkaCz0RfRtlLQOw2Fj8gM5Uw$DVpK1dNdPRmhL8oTSo+RlA",
		"fail, non-numeric parallelism": "$argon2id$v=19$m=47104,t=1,p=abc$fYJT8cAysfuYCBjxTEmCkaCz0RfRtlLQOw2Fj8gM5Uw$DVpK1dNdPRmhL8oTSo+RlA",
		"fail, non-base64 salt":         "$argon2id$v=19$m=47104,t=1,p=1$???????????????????????????????????????????$DVpK1dNdPRmhL8oTSo+RlA",
		"fail, non-base64 hash":         "$argon2id$v=19$m=47104,t=1,p=1$fYJT8cAysfuYCBjxTEmCkaCz0RfRtlLQOw2Fj8gM5Uw$??????????????????????",
		"fail, missing segment":         "$argon2id$v=19$m=47104,t=1,p=1$DVpK1dNdPRmhL8oTSo+RlA",
		"fail, empty":                   "",
	}
}

func Test_Argon2Hash_String(t *testing.T) {
	for name, tc := range argon2Tests(t) {
		t.Run(name, func(t *testing.T) {
			got := tc.hash.String()
			if got != tc.hashStr {
				t.Errorf("got\n%s\nwant\n%s\n", got, tc.hashStr)
			}
		})
	}
}

func Test_ParseArgon2Hash(t *testing.T) {
	for name, tc := range argon2Tests(t) {
		t.Run(name, func(t *testing.T) {
			got, err := hashers.ParseArgon2Hash(tc.hashStr)
			if err != nil {
				t.Fatalf("failed to parse argon2 hash: %v", err)
			}

			if !reflect.DeepEqual(got, tc.hash) {
				t.Errorf("got\n%#v\nwant\n%#v\n", got, tc.hash)
			}
		})
	}

	t.Run("ok, django prefix", func(t *testing.T) {
		tc := argon2Tests(t)["ok, reference vector"]
		got, err := hashers.ParseArgon2Hash("argon2" + tc.hashStr)
		if err != nil {
			t.Fatalf("failed to parse argon2 hash: %v", err)
		}

		if !reflect.DeepEqual(got, tc.hash) {
			t.Errorf("got\n%#v\nwant\n%#v\n", got, tc.hash)
		}
	})

	for name, txt := range failTextToArgon2Hash() {
		t.Run(name, func(t *testing.T) {
			_, err := hashers.ParseArgon2Hash(txt)
			if !errors.Is(err, hashers.ErrInvalidHash) {
				t.Errorf("expected error to match (using errors.Is)\n%v\ngot\n%v\n", hashers.ErrInvalidHash, err)
			}
		})
	}
}

func Test_Argon2Hash_TextAndScan(t *testing.T) {
	for name, tc := range argon2Tests(t) {
		t.Run(name, func(t *testing.T) {
			b, err := tc.hash.MarshalText()
			if err != nil {
				t.Fatalf("failed to marshal text: %v", err)
			}

			if string(b) != tc.hashStr {
				t.Errorf("got\n%s\nwant\n%s\n", b, tc.hashStr)
			}

			var unmarshaled hashers.Argon2Hash
			err = unmarshaled.UnmarshalText([]byte(tc.hashStr))
			if err != nil {
				t.Fatalf("failed to unmarshal text: %v", err)
			}

			var scanned hashers.Argon2Hash
			err = scanned.Scan(tc.hashStr)
			if err != nil {
				t.Fatalf("failed to scan: %v", err)
			}

			if !reflect.DeepEqual(unmarshaled, tc.hash) || !reflect.DeepEqual(scanned, tc.hash) {
				t.Errorf("got\n%#v\nand\n%#v\nwant\n%#v\n", unmarshaled, scanned, tc.hash)
			}
		})
	}

	for name, txt := range failTextToArgon2Hash() {
		t.Run(name, func(t *testing.T) {
			var got hashers.Argon2Hash
			err := got.Scan(txt)
			if !errors.Is(err, hashers.ErrInvalidHash) {
				t.Errorf("expected errors to match (using errors.Is)\n%v\ngot\n%v\n", hashers.ErrInvalidHash, err)
			}
		})
	}

	t.Run("fail, not a string", func(t *testing.T) {
		var got hashers.Argon2Hash
		err := got.Scan(42)
		if err == nil {
			t.Fatalf("expected error to be non-nil")
		}
	})
}

func Test_Argon2Hasher(t *testing.T) {
	params := hashers.Argon2Params{MemoryKiB: 64, Iterations: 1, Parallelism: 1, SaltLen: 16, KeyLen: 32}
	h := hashers.NewArgon2Hasher(params)

	for name, tc := range argon2Tests(t) {
		t.Run(name, func(t *testing.T) {
			ok, err := h.Verify([]byte(tc.raw), tc.hashStr)
			if err != nil {
				t.Fatalf("failed to verify: %v", err)
			}

			if !ok {
				t.Errorf("password %q does not match\n%s", tc.raw, tc.hashStr)
			}

			ok, err = h.Verify([]byte(tc.raw+"x"), tc.hashStr)
			if err != nil {
				t.Fatalf("failed to verify: %v", err)
			}

			if ok {
				t.Errorf("password %q matches\n%s", tc.raw+"x", tc.hashStr)
			}
		})
	}

	t.Run("ok, hash with own parameters", func(t *testing.T) {
		encoded, err := h.Hash([]byte("correct-horse"))
		if err != nil {
			t.Fatalf("failed to hash: %v", err)
		}

		if !h.Identify(encoded) {
			t.Errorf("hasher does not identify own hash %s", encoded)
		}

		if h.MustUpdate(encoded) {
			t.Errorf("own hash %s must not be updated", encoded)
		}

		parsed, err := hashers.ParseArgon2Hash(encoded)
		if err != nil {
			t.Fatalf("failed to parse own hash: %v", err)
		}

		if len(parsed.Salt) != 16 || len(parsed.Hash) != 32 {
			t.Errorf("got salt length %d and key length %d", len(parsed.Salt), len(parsed.Hash))
		}
	})

	t.Run("ok, other parameters must be updated", func(t *testing.T) {
		tc := argon2Tests(t)["ok, default parameters"]
		if !h.MustUpdate(tc.hashStr) {
			t.Errorf("hash %s should be updated", tc.hashStr)
		}
	})
}

func mustHexDecodeString(t *testing.T, str string) []byte {
	t.Helper()

	b, err := hex.DecodeString(str)
	if err != nil {
		t.Fatalf("failed to decode hex string: %v", err)
	}

	return b
}

func mustBase64(t *testing.T, str string) []byte {
	t.Helper()

	b, err := base64.RawStdEncoding.DecodeString(str)
	if err != nil {
		t.Fatalf("failed to decode base64 string: %v", err)
	}

	return b
}
