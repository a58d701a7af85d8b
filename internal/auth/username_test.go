package auth_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/willemschots/docauth/internal/auth"
)

func Test_ParseUsername(t *testing.T) {
	okParsing := []string{
		"alice",
		"Alice",
		"alice@example.com",
		"alice.smith+test",
		"alice-smith_1",
		"1234",
		"élodie",
		strings.Repeat("a", 30),
		strings.Repeat("é", 30),
	}

	for _, raw := range okParsing {
		t.Run("ok, "+raw, func(t *testing.T) {
			got, err := auth.ParseUsername(raw)
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			if got.String() != raw {
				t.Errorf("expected %q, got %q", raw, got)
			}
		})
	}

	failParsing := map[string]string{
		"fail, empty":         "",
		"fail, too long":      strings.Repeat("a", 31),
		"fail, space":         "alice smith",
		"fail, slash":         "alice/smith",
		"fail, exclamation":   "alice!",
		"fail, newline":       "alice\n",
		"fail, unusable mark": "!alice",
	}

	for name, raw := range failParsing {
		t.Run(name, func(t *testing.T) {
			_, err := auth.ParseUsername(raw)
			if !errors.Is(err, auth.ErrInvalidUsername) {
				t.Errorf("expected error %v, got %v", auth.ErrInvalidUsername, err)
			}
		})
	}
}

func Test_Username_UnmarshalText(t *testing.T) {
	t.Run("ok, valid", func(t *testing.T) {
		var u auth.Username
		err := u.UnmarshalText([]byte("alice"))
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		if u != "alice" {
			t.Errorf("expected %q, got %q", "alice", u)
		}
	})

	t.Run("fail, invalid", func(t *testing.T) {
		u := auth.Username("bob")
		err := u.UnmarshalText([]byte("alice smith"))
		if !errors.Is(err, auth.ErrInvalidUsername) {
			t.Fatalf("expected error %v, got %v", auth.ErrInvalidUsername, err)
		}

		if u != "bob" {
			t.Errorf("expected username to be unchanged, got %q", u)
		}
	})
}
