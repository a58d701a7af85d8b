package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/willemschots/docauth/internal/email"
	"github.com/willemschots/docauth/internal/errorz"
)

const maxNameLen = 30

var (
	// ErrProfileUnavailable is returned by User.Profile. Site profiles are
	// not supported by document stores.
	ErrProfileUnavailable = errors.New("site profile not available")
	ErrNameTooLong        = errors.New("name too long")
)

// User is an account that can authenticate with a password.
//
// The password is held by the embedded Credential, superuser status by the
// embedded Permissions. Their methods are available on the user directly.
type User struct {
	ID         uuid.UUID
	Username   Username
	FirstName  string
	LastName   string
	Email      email.Address
	IsStaff    bool
	IsActive   bool
	DateJoined time.Time

	Credential
	Permissions
}

// NewUser creates an active user with an unset password, joined at now.
func NewUser(id uuid.UUID, username Username, now time.Time) User {
	return User{
		ID:         id,
		Username:   username,
		IsActive:   true,
		DateJoined: now,
		Credential: NewCredential(now),
	}
}

// GetUsername returns the value that identifies the user.
func (u *User) GetUsername() Username {
	return u.Username
}

func (u *User) String() string {
	return string(u.Username)
}

// NaturalKey returns the values that identify the user across stores.
func (u *User) NaturalKey() []string {
	return []string{string(u.Username)}
}

// IsAnonymous is always false, it allows comparing with anonymous users.
func (u *User) IsAnonymous() bool {
	return false
}

// IsAuthenticated is always true, a User is only ever loaded for an
// authenticated request.
func (u *User) IsAuthenticated() bool {
	return true
}

// FullName returns the first name and last name separated by a space.
func (u *User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

func (u *User) ShortName() string {
	return u.FirstName
}

// AbsoluteURL returns the path of the user's page. Everything except
// unreserved characters and slashes is percent-encoded, including the
// @ and + that usernames may contain.
func (u *User) AbsoluteURL() string {
	return "/users/" + quotePath(string(u.Username)) + "/"
}

func quotePath(s string) string {
	const hex = "0123456789ABCDEF"

	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z', '0' <= c && c <= '9':
			b.WriteByte(c)
		case c == '-', c == '.', c == '_', c == '~', c == '/':
			b.WriteByte(c)
		default:
			b.WriteByte('%')
			b.WriteByte(hex[c>>4])
			b.WriteByte(hex[c&0x0f])
		}
	}

	return b.String()
}

// Profile always fails with ErrProfileUnavailable.
func (u *User) Profile() (any, error) {
	return nil, ErrProfileUnavailable
}

// Validate checks the user fields. It returns an errorz.InvalidInput with
// an errorz.Keyed error per invalid field.
func (u *User) Validate() error {
	var invalid errorz.InvalidInput

	_, err := ParseUsername(string(u.Username))
	if err != nil {
		invalid = append(invalid, errorz.Keyed{Key: FieldUsername, Err: err})
	}

	names := []struct {
		key   string
		value string
	}{
		{FieldFirstName, u.FirstName},
		{FieldLastName, u.LastName},
	}
	for _, n := range names {
		if utf8.RuneCountInString(n.value) > maxNameLen {
			invalid = append(invalid, errorz.Keyed{
				Key: n.key,
				Err: fmt.Errorf("%w: more than %d characters", ErrNameTooLong, maxNameLen),
			})
		}
	}

	if u.Email != "" {
		_, err := email.ParseAddress(string(u.Email))
		if err != nil {
			invalid = append(invalid, errorz.Keyed{Key: FieldEmail, Err: err})
		}
	}

	if len(u.PasswordHash()) > MaxPasswordHashLen {
		invalid = append(invalid, errorz.Keyed{Key: FieldPassword, Err: ErrPasswordHashTooLong})
	}

	if len(invalid) > 0 {
		return invalid
	}

	return nil
}

// HasPerm reports whether the user has perm according to a.
func (u *User) HasPerm(ctx context.Context, a *Authorizer, perm string, obj any) (bool, error) {
	return a.HasPerm(ctx, u, perm, obj)
}

// HasPerms reports whether the user has all perms according to a.
func (u *User) HasPerms(ctx context.Context, a *Authorizer, perms []string, obj any) (bool, error) {
	return a.HasPerms(ctx, u, perms, obj)
}

// HasModulePerms reports whether the user has any permission for appLabel according to a.
func (u *User) HasModulePerms(ctx context.Context, a *Authorizer, appLabel string) (bool, error) {
	return a.HasModulePerms(ctx, u, appLabel)
}
