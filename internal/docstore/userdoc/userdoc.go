// Package userdoc maps users to the documents the stores persist.
package userdoc

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/willemschots/docauth/internal/auth"
	"github.com/willemschots/docauth/internal/email"
)

var (
	ErrUnknownField = errors.New("unknown field")
	ErrInvalidValue = errors.New("invalid field value")
)

// Document is the stored form of an auth.User.
type Document struct {
	ID          string    `json:"id"`
	Username    string    `json:"username"`
	Password    string    `json:"password"`
	LastLogin   time.Time `json:"last_login"`
	FirstName   string    `json:"first_name"`
	LastName    string    `json:"last_name"`
	Email       string    `json:"email"`
	IsStaff     bool      `json:"is_staff"`
	IsActive    bool      `json:"is_active"`
	IsSuperuser bool      `json:"is_superuser"`
	DateJoined  time.Time `json:"date_joined"`
}

// FromUser creates the document of u.
func FromUser(u *auth.User) Document {
	return Document{
		ID:          u.ID.String(),
		Username:    string(u.Username),
		Password:    u.PasswordHash(),
		LastLogin:   u.LastLogin().UTC(),
		FirstName:   u.FirstName,
		LastName:    u.LastName,
		Email:       string(u.Email),
		IsStaff:     u.IsStaff,
		IsActive:    u.IsActive,
		IsSuperuser: u.IsSuperuser,
		DateJoined:  u.DateJoined.UTC(),
	}
}

// User converts the document back to a user.
func (d Document) User() (auth.User, error) {
	id, err := uuid.Parse(d.ID)
	if err != nil {
		return auth.User{}, fmt.Errorf("%w: id %q: %v", ErrInvalidValue, d.ID, err)
	}

	return auth.User{
		ID:          id,
		Username:    auth.Username(d.Username),
		FirstName:   d.FirstName,
		LastName:    d.LastName,
		Email:       email.Address(d.Email),
		IsStaff:     d.IsStaff,
		IsActive:    d.IsActive,
		DateJoined:  d.DateJoined.UTC(),
		Credential:  auth.RestoreCredential(d.Password, d.LastLogin.UTC()),
		Permissions: auth.Permissions{IsSuperuser: d.IsSuperuser},
	}, nil
}

// Value is the field value in its stored form: a string, a bool or a
// time.Time in UTC.
func Value(fv auth.FieldValue) (any, error) {
	switch fv.Field {
	case auth.FieldPassword, auth.FieldFirstName, auth.FieldLastName:
		s, ok := fv.Value.(string)
		if !ok {
			return nil, invalidValue(fv)
		}
		return s, nil
	case auth.FieldEmail:
		switch v := fv.Value.(type) {
		case email.Address:
			return string(v), nil
		case string:
			return v, nil
		}
		return nil, invalidValue(fv)
	case auth.FieldIsStaff, auth.FieldIsActive, auth.FieldIsSuperuser:
		b, ok := fv.Value.(bool)
		if !ok {
			return nil, invalidValue(fv)
		}
		return b, nil
	case auth.FieldLastLogin:
		t, ok := fv.Value.(time.Time)
		if !ok {
			return nil, invalidValue(fv)
		}
		return t.UTC(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownField, fv.Field)
	}
}

func invalidValue(fv auth.FieldValue) error {
	return fmt.Errorf("%w: %T for %s", ErrInvalidValue, fv.Value, fv.Field)
}

// JSONValue returns the JSON encoding of the field value.
func JSONValue(fv auth.FieldValue) ([]byte, error) {
	v, err := Value(fv)
	if err != nil {
		return nil, err
	}

	return json.Marshal(v)
}

// HashValue returns the field value as a string for use in a Redis hash.
func HashValue(fv auth.FieldValue) (string, error) {
	v, err := Value(fv)
	if err != nil {
		return "", err
	}

	switch v := v.(type) {
	case string:
		return v, nil
	case bool:
		return formatBool(v), nil
	case time.Time:
		return v.Format(time.RFC3339Nano), nil
	default:
		return "", fmt.Errorf("%w: %T", ErrInvalidValue, v)
	}
}

// Hash returns the document as the field-value pairs of a Redis hash.
func (d Document) Hash() map[string]string {
	return map[string]string{
		auth.FieldID:          d.ID,
		auth.FieldUsername:    d.Username,
		auth.FieldPassword:    d.Password,
		auth.FieldLastLogin:   d.LastLogin.Format(time.RFC3339Nano),
		auth.FieldFirstName:   d.FirstName,
		auth.FieldLastName:    d.LastName,
		auth.FieldEmail:       d.Email,
		auth.FieldIsStaff:     formatBool(d.IsStaff),
		auth.FieldIsActive:    formatBool(d.IsActive),
		auth.FieldIsSuperuser: formatBool(d.IsSuperuser),
		auth.FieldDateJoined:  d.DateJoined.Format(time.RFC3339Nano),
	}
}

// FromHash parses a document from the field-value pairs of a Redis hash.
func FromHash(h map[string]string) (Document, error) {
	d := Document{
		ID:        h[auth.FieldID],
		Username:  h[auth.FieldUsername],
		Password:  h[auth.FieldPassword],
		FirstName: h[auth.FieldFirstName],
		LastName:  h[auth.FieldLastName],
		Email:     h[auth.FieldEmail],
	}

	var err error
	bools := []struct {
		field string
		dst   *bool
	}{
		{auth.FieldIsStaff, &d.IsStaff},
		{auth.FieldIsActive, &d.IsActive},
		{auth.FieldIsSuperuser, &d.IsSuperuser},
	}
	for _, b := range bools {
		*b.dst, err = parseBool(h[b.field])
		if err != nil {
			return Document{}, fmt.Errorf("%w: %s: %v", ErrInvalidValue, b.field, err)
		}
	}

	times := []struct {
		field string
		dst   *time.Time
	}{
		{auth.FieldLastLogin, &d.LastLogin},
		{auth.FieldDateJoined, &d.DateJoined},
	}
	for _, t := range times {
		*t.dst, err = time.Parse(time.RFC3339Nano, h[t.field])
		if err != nil {
			return Document{}, fmt.Errorf("%w: %s: %v", ErrInvalidValue, t.field, err)
		}
	}

	return d, nil
}

func formatBool(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

func parseBool(s string) (bool, error) {
	if s == "" {
		return false, nil
	}
	return strconv.ParseBool(s)
}
