package auth

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/willemschots/docauth/internal/email"
)

// Names of the stored user fields. Stores use them as document keys.
const (
	FieldID          = "id"
	FieldUsername    = "username"
	FieldPassword    = "password"
	FieldLastLogin   = "last_login"
	FieldFirstName   = "first_name"
	FieldLastName    = "last_name"
	FieldEmail       = "email"
	FieldIsStaff     = "is_staff"
	FieldIsActive    = "is_active"
	FieldIsSuperuser = "is_superuser"
	FieldDateJoined  = "date_joined"
)

// FieldValue is a new value for a single user field.
type FieldValue struct {
	Field string
	Value any
}

// Constructors for the fields that can be saved individually.

func PasswordField(hash string) FieldValue { return FieldValue{FieldPassword, hash} }
func LastLoginField(t time.Time) FieldValue { return FieldValue{FieldLastLogin, t} }
func FirstNameField(s string) FieldValue { return FieldValue{FieldFirstName, s} }
func LastNameField(s string) FieldValue { return FieldValue{FieldLastName, s} }
func EmailField(a email.Address) FieldValue { return FieldValue{FieldEmail, a} }
func IsStaffField(b bool) FieldValue { return FieldValue{FieldIsStaff, b} }
func IsActiveField(b bool) FieldValue { return FieldValue{FieldIsActive, b} }
func IsSuperuserField(b bool) FieldValue { return FieldValue{FieldIsSuperuser, b} }

// UserFilter is used filter users.
// Returned users must match all the provided fields.
// If a field is empty or nil, it's ignored.
type UserFilter struct {
	IDs       []uuid.UUID
	Usernames []Username
	IsActive  *bool
}

// Store persists users as documents.
type Store interface {
	// CreateUser stores a new user. It returns errorz.ErrConstraintViolated
	// if the ID or username is taken.
	CreateUser(ctx context.Context, u *User) error
	// FindUsers returns the users matching filter, ordered by username.
	FindUsers(ctx context.Context, filter *UserFilter) ([]User, error)
	// SaveFields atomically writes the given fields of the user with id and
	// leaves all other fields untouched. It returns errorz.ErrNotFound if
	// no such user exists.
	SaveFields(ctx context.Context, id uuid.UUID, fields ...FieldValue) error
}
