package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/willemschots/docauth/internal/email"
	"github.com/willemschots/docauth/internal/errorz"
	"github.com/willemschots/docauth/internal/krypto"
)

var (
	ErrDuplicateUser      = errors.New("duplicate user")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrNoEmail            = errors.New("user has no email address")
)

// ErrFunc is a function that handles errors.
type ErrFunc func(error)

// ServiceConfig is the configuration for the Service.
type ServiceConfig struct {
	// DefaultFrom is the sender of emails when none is provided.
	DefaultFrom email.Address
}

// UserParams are the values a new user is created with.
type UserParams struct {
	Username  Username
	FirstName string
	LastName  string
	Email     email.Address
	// Password is optional for regular users. Users without one get an
	// unusable password.
	Password *Password
}

// Service is the type that provides the main rules for
// authentication.
type Service struct {
	store      Store
	oracle     Oracle
	sender     email.Sender
	errHandler ErrFunc
	cfg        ServiceConfig

	// comparisonHash is used to compare passwords when no user was found.
	comparisonHash string

	// NowFunc is used to get the current time.
	// Exposed for testing purposes.
	NowFunc func() time.Time
}

func NewService(s Store, o Oracle, sender email.Sender, errHandler ErrFunc, cfg ServiceConfig) (*Service, error) {
	raw, err := krypto.RandomBytes(32)
	if err != nil {
		return nil, err
	}

	hash, err := o.Hash(raw)
	if err != nil {
		return nil, err
	}

	svc := &Service{
		store:          s,
		oracle:         o,
		sender:         sender,
		errHandler:     errHandler,
		cfg:            cfg,
		comparisonHash: hash,
		NowFunc:        time.Now,
	}

	return svc, nil
}

// CreateUser creates an active user that is neither staff nor superuser.
func (s *Service) CreateUser(ctx context.Context, p UserParams) (User, error) {
	return s.createUser(ctx, p, false)
}

// CreateSuperuser creates an active staff user with superuser status.
// A password and email address are required.
func (s *Service) CreateSuperuser(ctx context.Context, p UserParams) (User, error) {
	var invalid errorz.InvalidInput
	if p.Password == nil {
		invalid = append(invalid, errorz.Keyed{Key: FieldPassword, Err: ErrInvalidPassword})
	}

	if p.Email == "" {
		invalid = append(invalid, errorz.Keyed{Key: FieldEmail, Err: email.ErrInvalidEmail})
	}

	if len(invalid) > 0 {
		return User{}, invalid
	}

	return s.createUser(ctx, p, true)
}

func (s *Service) createUser(ctx context.Context, p UserParams, superuser bool) (User, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return User{}, err
	}

	u := NewUser(id, p.Username, s.NowFunc())
	u.FirstName = p.FirstName
	u.LastName = p.LastName
	u.Email = p.Email
	u.IsStaff = superuser
	u.IsSuperuser = superuser

	if p.Password != nil {
		err = u.Set(s.oracle, *p.Password)
	} else {
		err = u.SetUnusable(s.oracle)
	}
	if err != nil {
		return User{}, err
	}

	err = u.Validate()
	if err != nil {
		return User{}, err
	}

	err = s.store.CreateUser(ctx, &u)
	if err != nil {
		if errors.Is(err, errorz.ErrConstraintViolated) {
			return User{}, fmt.Errorf("%w: %s", ErrDuplicateUser, u.Username)
		}
		return User{}, err
	}

	return u, nil
}

// SetPassword sets and stores a new password for u. Only the password
// field is written.
func (s *Service) SetPassword(ctx context.Context, u *User, p Password) error {
	c := u.Credential
	err := c.Set(s.oracle, p)
	if err != nil {
		return err
	}

	return s.saveCredential(ctx, u, c)
}

// SetUnusablePassword makes password authentication impossible for u.
func (s *Service) SetUnusablePassword(ctx context.Context, u *User) error {
	c := u.Credential
	err := c.SetUnusable(s.oracle)
	if err != nil {
		return err
	}

	return s.saveCredential(ctx, u, c)
}

func (s *Service) saveCredential(ctx context.Context, u *User, c Credential) error {
	err := s.store.SaveFields(ctx, u.ID, PasswordField(c.PasswordHash()))
	if err != nil {
		return err
	}

	u.Credential = c
	return nil
}

// CheckPassword reports whether p is the password of u. Outdated hashes
// are upgraded on a match, writing only the password field. A failed
// upgrade is reported to the error handler and does not change the result.
func (s *Service) CheckPassword(ctx context.Context, u *User, p Password) bool {
	ok, err := u.Verify(s.oracle, p, func(hash string) error {
		return s.store.SaveFields(ctx, u.ID, PasswordField(hash))
	})
	if err != nil {
		s.errHandler(fmt.Errorf("user %s: %w", u.ID, err))
	}

	return ok
}

// Authenticate returns the active user with the provided username and
// password and records the login. It returns ErrInvalidCredentials if
// there is no such user or the password does not match.
func (s *Service) Authenticate(ctx context.Context, username Username, p Password) (User, error) {
	users, err := s.store.FindUsers(ctx, &UserFilter{
		Usernames: []Username{username},
		IsActive:  ptr(true),
	})
	if err != nil {
		return User{}, err
	}

	if len(users) != 1 || !users[0].HasUsablePassword(s.oracle) {
		// Even if no user is found we compare to a hash to prevent timing differences
		// that could result in user enumeration attacks.
		_ = s.oracle.Matches(p.plain, s.comparisonHash)
		return User{}, ErrInvalidCredentials
	}

	u := users[0]
	if !s.CheckPassword(ctx, &u, p) {
		return User{}, ErrInvalidCredentials
	}

	now := s.NowFunc()
	err = s.store.SaveFields(ctx, u.ID, LastLoginField(now))
	if err != nil {
		return User{}, err
	}

	u.SetLastLogin(now)
	return u, nil
}

// EmailUser sends an email to u. An empty from falls back to the
// configured default sender.
func (s *Service) EmailUser(ctx context.Context, u *User, subject, message string, from email.Address) error {
	if u.Email == "" {
		return ErrNoEmail
	}

	if from == "" {
		from = s.cfg.DefaultFrom
	}

	return s.sender.Send(ctx, from, u.Email, subject, message)
}

// UpdateProfile stores new names and a new email address for u.
func (s *Service) UpdateProfile(ctx context.Context, u *User, firstName, lastName string, addr email.Address) error {
	updated := *u
	updated.FirstName = firstName
	updated.LastName = lastName
	updated.Email = addr

	err := updated.Validate()
	if err != nil {
		return err
	}

	err = s.store.SaveFields(ctx, u.ID,
		FirstNameField(firstName),
		LastNameField(lastName),
		EmailField(addr),
	)
	if err != nil {
		return err
	}

	*u = updated
	return nil
}

// SetActive activates or deactivates u. Inactive users can not
// authenticate and have no permissions.
func (s *Service) SetActive(ctx context.Context, u *User, active bool) error {
	err := s.store.SaveFields(ctx, u.ID, IsActiveField(active))
	if err != nil {
		return err
	}

	u.IsActive = active
	return nil
}

// FindByUsername returns the user with the provided username.
func (s *Service) FindByUsername(ctx context.Context, username Username) (User, error) {
	return s.findOne(ctx, &UserFilter{Usernames: []Username{username}})
}

// FindByID returns the user with the provided ID.
func (s *Service) FindByID(ctx context.Context, id uuid.UUID) (User, error) {
	return s.findOne(ctx, &UserFilter{IDs: []uuid.UUID{id}})
}

func (s *Service) findOne(ctx context.Context, filter *UserFilter) (User, error) {
	users, err := s.store.FindUsers(ctx, filter)
	if err != nil {
		return User{}, err
	}

	if len(users) != 1 {
		return User{}, errorz.ErrNotFound
	}

	return users[0], nil
}

// ListUsers returns the users matching filter.
func (s *Service) ListUsers(ctx context.Context, filter *UserFilter) ([]User, error) {
	return s.store.FindUsers(ctx, filter)
}

// AuditEntry describes the password state of a user.
type AuditEntry struct {
	Username     Username
	State        CredentialState
	NeedsUpgrade bool
}

// Audit returns the users whose password is not usable or whose hash
// will be upgraded on their next login.
func (s *Service) Audit(ctx context.Context) ([]AuditEntry, error) {
	users, err := s.store.FindUsers(ctx, &UserFilter{})
	if err != nil {
		return nil, err
	}

	entries := make([]AuditEntry, 0)
	for _, u := range users {
		entry := AuditEntry{
			Username:     u.Username,
			State:        u.State(s.oracle),
			NeedsUpgrade: s.oracle.NeedsUpgrade(u.PasswordHash()),
		}

		if entry.State != CredentialUsable || entry.NeedsUpgrade {
			entries = append(entries, entry)
		}
	}

	return entries, nil
}

func ptr[T any](v T) *T {
	return &v
}
