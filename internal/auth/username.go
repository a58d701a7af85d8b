package auth

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

const maxUsernameLen = 30

var ErrInvalidUsername = errors.New("invalid username")

// Username identifies a user. It is required, at most 30 characters and
// consists of letters, digits and @ . + - _ only.
type Username string

// ParseUsername parses and validates a username.
func ParseUsername(raw string) (Username, error) {
	if raw == "" {
		return "", fmt.Errorf("%w: required", ErrInvalidUsername)
	}

	if utf8.RuneCountInString(raw) > maxUsernameLen {
		return "", fmt.Errorf("%w: more than %d characters", ErrInvalidUsername, maxUsernameLen)
	}

	for _, r := range raw {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || strings.ContainsRune("@.+-_", r) {
			continue
		}
		return "", fmt.Errorf("%w: character %q not allowed", ErrInvalidUsername, r)
	}

	return Username(raw), nil
}

func (u Username) String() string {
	return string(u)
}

func (u *Username) UnmarshalText(text []byte) error {
	parsed, err := ParseUsername(string(text))
	if err != nil {
		return err
	}

	*u = parsed
	return nil
}
