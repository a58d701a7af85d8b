package auth_test

import (
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/willemschots/docauth/internal/auth"
	"github.com/willemschots/docauth/internal/errorz"
)

func storeNow(i int) time.Time {
	return time.Date(2024, 3, 20, 14, 56, i, 0, time.UTC)
}

func Test_NewUser(t *testing.T) {
	id := uuid.New()
	u := auth.NewUser(id, "alice", storeNow(1))

	if u.ID != id || u.Username != "alice" {
		t.Errorf("unexpected identity %s %s", u.ID, u.Username)
	}

	if !u.IsActive || u.IsStaff || u.IsSuperuser {
		t.Errorf("expected active, non staff, non superuser, got %+v", u)
	}

	if !u.DateJoined.Equal(storeNow(1)) || !u.LastLogin().Equal(storeNow(1)) {
		t.Errorf("expected join and login time %s, got %s and %s", storeNow(1), u.DateJoined, u.LastLogin())
	}

	if u.PasswordHash() != "" {
		t.Errorf("expected unset password, got %q", u.PasswordHash())
	}
}

func Test_User_Identity(t *testing.T) {
	u := auth.NewUser(uuid.New(), "alice+test@example.com", storeNow(0))
	u.FirstName = "Alice"
	u.LastName = "Smith"

	if got := u.GetUsername(); got != "alice+test@example.com" {
		t.Errorf("GetUsername: got %q", got)
	}

	if got := u.String(); got != "alice+test@example.com" {
		t.Errorf("String: got %q", got)
	}

	if got := u.NaturalKey(); !reflect.DeepEqual(got, []string{"alice+test@example.com"}) {
		t.Errorf("NaturalKey: got %v", got)
	}

	if u.IsAnonymous() {
		t.Errorf("IsAnonymous: expected false")
	}

	if !u.IsAuthenticated() {
		t.Errorf("IsAuthenticated: expected true")
	}

	if got := u.AbsoluteURL(); got != "/users/alice%2Btest%40example.com/" {
		t.Errorf("AbsoluteURL: got %q", got)
	}

	if _, err := u.Profile(); !errors.Is(err, auth.ErrProfileUnavailable) {
		t.Errorf("Profile: expected error %v, got %v", auth.ErrProfileUnavailable, err)
	}
}

func Test_User_Names(t *testing.T) {
	tests := map[string]struct {
		first string
		last  string
		full  string
		short string
	}{
		"ok, both names": {
			first: "Alice",
			last:  "Smith",
			full:  "Alice Smith",
			short: "Alice",
		},
		"ok, first name only": {
			first: "Alice",
			full:  "Alice",
			short: "Alice",
		},
		"ok, last name only": {
			last: "Smith",
			full: "Smith",
		},
		"ok, no names": {},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			u := auth.NewUser(uuid.New(), "alice", storeNow(0))
			u.FirstName = tc.first
			u.LastName = tc.last

			if got := u.FullName(); got != tc.full {
				t.Errorf("FullName: expected %q, got %q", tc.full, got)
			}

			if got := u.ShortName(); got != tc.short {
				t.Errorf("ShortName: expected %q, got %q", tc.short, got)
			}
		})
	}
}

func Test_User_AbsoluteURL_Escapes(t *testing.T) {
	tests := map[string]string{
		"a+b@c":    "/users/a%2Bb%40c/",
		"a.b-c_d":  "/users/a.b-c_d/",
		"a/b c":    "/users/a/b%20c/",
		"jürgen":   "/users/j%C3%BCrgen/",
		"100%done": "/users/100%25done/",
	}

	for username, want := range tests {
		t.Run("ok, "+username, func(t *testing.T) {
			u := auth.NewUser(uuid.New(), auth.Username(username), storeNow(0))

			if got := u.AbsoluteURL(); got != want {
				t.Errorf("got %q, want %q", got, want)
			}
		})
	}
}

func Test_User_Validate(t *testing.T) {
	t.Run("ok, valid user", func(t *testing.T) {
		u := auth.NewUser(uuid.New(), "alice", storeNow(0))
		u.FirstName = strings.Repeat("a", 30)
		u.Email = "alice@example.com"

		if err := u.Validate(); err != nil {
			t.Errorf("expected no error, got %v", err)
		}
	})

	t.Run("ok, email is optional", func(t *testing.T) {
		u := auth.NewUser(uuid.New(), "alice", storeNow(0))

		if err := u.Validate(); err != nil {
			t.Errorf("expected no error, got %v", err)
		}
	})

	t.Run("fail, every field invalid", func(t *testing.T) {
		u := auth.NewUser(uuid.New(), "alice smith", storeNow(0))
		u.FirstName = strings.Repeat("a", 31)
		u.LastName = strings.Repeat("b", 31)
		u.Email = "not an email"
		u.Credential = auth.RestoreCredential(strings.Repeat("x", auth.MaxPasswordHashLen+1), storeNow(0))

		err := u.Validate()

		var invalid errorz.InvalidInput
		if !errors.As(err, &invalid) {
			t.Fatalf("expected errorz.InvalidInput, got %v", err)
		}

		keys := make([]string, 0, len(invalid))
		for _, e := range invalid {
			var keyed errorz.Keyed
			if !errors.As(e, &keyed) {
				t.Fatalf("expected errorz.Keyed, got %v", e)
			}
			keys = append(keys, keyed.Key)
		}

		want := []string{
			auth.FieldUsername,
			auth.FieldFirstName,
			auth.FieldLastName,
			auth.FieldEmail,
			auth.FieldPassword,
		}
		if !reflect.DeepEqual(keys, want) {
			t.Errorf("expected keys\n%v\ngot\n%v", want, keys)
		}
	})
}
