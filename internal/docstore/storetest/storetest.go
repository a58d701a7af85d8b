// Package storetest checks that an auth.Store implementation behaves as
// the auth package expects. Every store runs the same tests.
package storetest

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/willemschots/docauth/internal/auth"
	"github.com/willemschots/docauth/internal/errorz"
	"golang.org/x/sync/errgroup"
)

// NewStoreFunc returns an empty store for a single test.
type NewStoreFunc func(t *testing.T) auth.Store

// Now returns a fixed time, offset by i seconds.
func Now(i int) time.Time {
	return time.Date(2024, 3, 20, 14, 56, i, 0, time.UTC)
}

// User returns a valid user, modified by mod if it is not nil.
func User(t *testing.T, mod func(u *auth.User)) auth.User {
	t.Helper()

	u := auth.NewUser(uuid.New(), "alice", Now(0))
	u.FirstName = "Alice"
	u.LastName = "Smith"
	u.Email = "alice@example.com"
	u.Credential = auth.RestoreCredential("pbkdf2_sha256$1$salt$Eg+2z/z4syxD5yJSVsT4N6hlSMkszDVICAWYfLcL4Xs=", Now(0))

	if mod != nil {
		mod(&u)
	}

	return u
}

// Run runs all store tests.
func Run(t *testing.T, newStore NewStoreFunc) {
	t.Run("CreateUser", func(t *testing.T) { testCreateUser(t, newStore) })
	t.Run("FindUsers", func(t *testing.T) { testFindUsers(t, newStore) })
	t.Run("SaveFields", func(t *testing.T) { testSaveFields(t, newStore) })
}

func testCreateUser(t *testing.T, newStore NewStoreFunc) {
	t.Run("ok, create and find", func(t *testing.T) {
		s := newStore(t)
		u := User(t, nil)

		create(t, s, &u)
		assertFindUser(t, s, u)
	})

	t.Run("fail, duplicate username", func(t *testing.T) {
		s := newStore(t)
		u := User(t, nil)
		create(t, s, &u)

		other := User(t, nil)
		err := s.CreateUser(context.Background(), &other)
		if !errors.Is(err, errorz.ErrConstraintViolated) {
			t.Fatalf("expected error to match (using errors.Is)\n%v\ngot\n%v\n", errorz.ErrConstraintViolated, err)
		}
	})

	t.Run("fail, duplicate id", func(t *testing.T) {
		s := newStore(t)
		u := User(t, nil)
		create(t, s, &u)

		other := User(t, func(o *auth.User) {
			o.ID = u.ID
			o.Username = "bob"
		})
		err := s.CreateUser(context.Background(), &other)
		if !errors.Is(err, errorz.ErrConstraintViolated) {
			t.Fatalf("expected error to match (using errors.Is)\n%v\ngot\n%v\n", errorz.ErrConstraintViolated, err)
		}
	})

	t.Run("fail, zero id", func(t *testing.T) {
		s := newStore(t)
		u := User(t, func(u *auth.User) {
			u.ID = uuid.Nil
		})

		err := s.CreateUser(context.Background(), &u)
		if !errors.Is(err, errorz.ErrConstraintViolated) {
			t.Fatalf("expected error to match (using errors.Is)\n%v\ngot\n%v\n", errorz.ErrConstraintViolated, err)
		}
	})
}

func testFindUsers(t *testing.T, newStore NewStoreFunc) {
	s := newStore(t)

	alice := User(t, nil)
	bob := User(t, func(u *auth.User) {
		u.Username = "bob"
		u.IsActive = false
	})
	carol := User(t, func(u *auth.User) {
		u.Username = "carol"
		u.IsSuperuser = true
	})

	for _, u := range []*auth.User{&carol, &alice, &bob} {
		create(t, s, u)
	}

	tests := map[string]struct {
		filter *auth.UserFilter
		want   []auth.User
	}{
		"ok, no filter": {
			filter: &auth.UserFilter{},
			want:   []auth.User{alice, bob, carol},
		},
		"ok, by id": {
			filter: &auth.UserFilter{IDs: []uuid.UUID{bob.ID, carol.ID}},
			want:   []auth.User{bob, carol},
		},
		"ok, by username": {
			filter: &auth.UserFilter{Usernames: []auth.Username{"carol"}},
			want:   []auth.User{carol},
		},
		"ok, active": {
			filter: &auth.UserFilter{IsActive: ptr(true)},
			want:   []auth.User{alice, carol},
		},
		"ok, inactive": {
			filter: &auth.UserFilter{IsActive: ptr(false)},
			want:   []auth.User{bob},
		},
		"ok, all fields": {
			filter: &auth.UserFilter{
				IDs:       []uuid.UUID{alice.ID, bob.ID},
				Usernames: []auth.Username{"bob"},
				IsActive:  ptr(true),
			},
			want: []auth.User{},
		},
		"ok, unknown username": {
			filter: &auth.UserFilter{Usernames: []auth.Username{"dave"}},
			want:   []auth.User{},
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			got, err := s.FindUsers(context.Background(), tc.filter)
			if err != nil {
				t.Fatalf("failed to find users: %v", err)
			}

			if !reflect.DeepEqual(got, tc.want) {
				t.Errorf("got\n%#v\nwant\n%#v\n", got, tc.want)
			}
		})
	}
}

func testSaveFields(t *testing.T, newStore NewStoreFunc) {
	t.Run("ok, only named fields change", func(t *testing.T) {
		s := newStore(t)
		u := User(t, nil)
		create(t, s, &u)

		// Two writers holding the same stale copy of the user.
		err := s.SaveFields(context.Background(), u.ID, auth.PasswordField("!unusable"))
		if err != nil {
			t.Fatalf("failed to save fields: %v", err)
		}

		err = s.SaveFields(context.Background(), u.ID,
			auth.FirstNameField("Ally"),
			auth.IsStaffField(true),
			auth.LastLoginField(Now(7)),
		)
		if err != nil {
			t.Fatalf("failed to save fields: %v", err)
		}

		want := u
		want.Credential = auth.RestoreCredential("!unusable", Now(7))
		want.FirstName = "Ally"
		want.IsStaff = true

		assertFindUser(t, s, want)
	})

	t.Run("ok, every field", func(t *testing.T) {
		s := newStore(t)
		u := User(t, nil)
		create(t, s, &u)

		err := s.SaveFields(context.Background(), u.ID,
			auth.PasswordField("!other"),
			auth.LastLoginField(Now(9)),
			auth.FirstNameField("A"),
			auth.LastNameField("B"),
			auth.EmailField("a@example.org"),
			auth.IsStaffField(true),
			auth.IsActiveField(false),
			auth.IsSuperuserField(true),
		)
		if err != nil {
			t.Fatalf("failed to save fields: %v", err)
		}

		want := u
		want.Credential = auth.RestoreCredential("!other", Now(9))
		want.FirstName = "A"
		want.LastName = "B"
		want.Email = "a@example.org"
		want.IsStaff = true
		want.IsActive = false
		want.IsSuperuser = true

		assertFindUser(t, s, want)
	})

	t.Run("ok, concurrent writes to different fields", func(t *testing.T) {
		s := newStore(t)
		u := User(t, nil)
		create(t, s, &u)

		const writes = 20

		var g errgroup.Group
		g.Go(func() error {
			for i := range writes {
				err := s.SaveFields(context.Background(), u.ID, auth.PasswordField(fmt.Sprintf("!hash-%d", i)))
				if err != nil {
					return err
				}
			}
			return nil
		})
		g.Go(func() error {
			for i := range writes {
				err := s.SaveFields(context.Background(), u.ID, auth.FirstNameField(fmt.Sprintf("name-%d", i)))
				if err != nil {
					return err
				}
			}
			return nil
		})

		err := g.Wait()
		if err != nil {
			t.Fatalf("failed to save fields: %v", err)
		}

		got := findUser(t, s, u.ID)
		wantHash := fmt.Sprintf("!hash-%d", writes-1)
		wantName := fmt.Sprintf("name-%d", writes-1)
		if got.PasswordHash() != wantHash || got.FirstName != wantName {
			t.Errorf("got (%s, %s), want (%s, %s)", got.PasswordHash(), got.FirstName, wantHash, wantName)
		}
	})

	t.Run("ok, no fields", func(t *testing.T) {
		s := newStore(t)

		err := s.SaveFields(context.Background(), uuid.New())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})

	t.Run("fail, unknown user", func(t *testing.T) {
		s := newStore(t)

		err := s.SaveFields(context.Background(), uuid.New(), auth.FirstNameField("Ally"))
		if !errors.Is(err, errorz.ErrNotFound) {
			t.Fatalf("expected error to match (using errors.Is)\n%v\ngot\n%v\n", errorz.ErrNotFound, err)
		}
	})

	t.Run("fail, unknown field", func(t *testing.T) {
		s := newStore(t)
		u := User(t, nil)
		create(t, s, &u)

		err := s.SaveFields(context.Background(), u.ID, auth.FieldValue{Field: "doc", Value: "x"})
		if err == nil {
			t.Fatalf("expected error, got nil")
		}

		assertFindUser(t, s, u)
	})
}

func create(t *testing.T, s auth.Store, u *auth.User) {
	t.Helper()

	err := s.CreateUser(context.Background(), u)
	if err != nil {
		t.Fatalf("failed to create user: %v", err)
	}
}

func findUser(t *testing.T, s auth.Store, id uuid.UUID) auth.User {
	t.Helper()

	users, err := s.FindUsers(context.Background(), &auth.UserFilter{IDs: []uuid.UUID{id}})
	if err != nil {
		t.Fatalf("failed to find users: %v", err)
	}

	if len(users) != 1 {
		t.Fatalf("expected 1 user, got %d", len(users))
	}

	return users[0]
}

func assertFindUser(t *testing.T, s auth.Store, want auth.User) {
	t.Helper()

	got := findUser(t, s, want.ID)
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got\n%#v\nwant\n%#v\n", got, want)
	}
}

func ptr[T any](v T) *T {
	return &v
}
