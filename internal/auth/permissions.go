package auth

import (
	"context"
	"errors"
	"maps"
	"slices"
	"strings"

	"github.com/google/uuid"
)

// ErrPermissionDenied can be returned by a PermissionSource to deny a
// permission outright. The remaining sources are not consulted.
var ErrPermissionDenied = errors.New("permission denied")

// Permissions is the permission data stored on a user. Group and per-user
// permissions are resolved by permission sources, not stored on the user.
type Permissions struct {
	// IsSuperuser designates that the user has all permissions without
	// explicitly assigning them.
	IsSuperuser bool
}

// PermissionSource resolves permissions for users. Permissions are strings
// of the form "<app label>.<codename>". A nil obj asks for model level
// permissions, a non-nil obj for permissions on that object.
type PermissionSource interface {
	GroupPermissions(ctx context.Context, u *User, obj any) ([]string, error)
	AllPermissions(ctx context.Context, u *User, obj any) ([]string, error)
	HasPerm(ctx context.Context, u *User, perm string, obj any) (bool, error)
	HasModulePerms(ctx context.Context, u *User, appLabel string) (bool, error)
}

// Authorizer answers permission questions by asking an ordered list of
// permission sources.
type Authorizer struct {
	sources []PermissionSource
}

// NewAuthorizer creates an authorizer that consults sources in order.
func NewAuthorizer(sources ...PermissionSource) *Authorizer {
	return &Authorizer{
		sources: sources,
	}
}

// GroupPermissions returns the union of the permissions the user has
// through its groups, according to all sources.
func (a *Authorizer) GroupPermissions(ctx context.Context, u *User, obj any) ([]string, error) {
	return a.union(ctx, func(s PermissionSource) ([]string, error) {
		return s.GroupPermissions(ctx, u, obj)
	})
}

// AllPermissions returns the union of all permissions of the user. Inactive
// users have no permissions.
func (a *Authorizer) AllPermissions(ctx context.Context, u *User, obj any) ([]string, error) {
	if !u.IsActive {
		return []string{}, nil
	}

	return a.union(ctx, func(s PermissionSource) ([]string, error) {
		return s.AllPermissions(ctx, u, obj)
	})
}

// HasPerm reports whether the user has perm. Active superusers have all
// permissions, inactive users none. Otherwise the first source granting
// the permission decides.
func (a *Authorizer) HasPerm(ctx context.Context, u *User, perm string, obj any) (bool, error) {
	if !u.IsActive {
		return false, nil
	}

	if u.IsSuperuser {
		return true, nil
	}

	return a.first(ctx, func(s PermissionSource) (bool, error) {
		return s.HasPerm(ctx, u, perm, obj)
	})
}

// HasPerms reports whether the user has every one of perms.
func (a *Authorizer) HasPerms(ctx context.Context, u *User, perms []string, obj any) (bool, error) {
	for _, perm := range perms {
		ok, err := a.HasPerm(ctx, u, perm, obj)
		if err != nil || !ok {
			return false, err
		}
	}

	return true, nil
}

// HasModulePerms reports whether the user has any permission for appLabel.
func (a *Authorizer) HasModulePerms(ctx context.Context, u *User, appLabel string) (bool, error) {
	if !u.IsActive {
		return false, nil
	}

	if u.IsSuperuser {
		return true, nil
	}

	return a.first(ctx, func(s PermissionSource) (bool, error) {
		return s.HasModulePerms(ctx, u, appLabel)
	})
}

func (a *Authorizer) union(ctx context.Context, f func(s PermissionSource) ([]string, error)) ([]string, error) {
	set := make(map[string]struct{})
	for _, s := range a.sources {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		perms, err := f(s)
		if err != nil {
			return nil, err
		}

		for _, p := range perms {
			set[p] = struct{}{}
		}
	}

	return slices.Sorted(maps.Keys(set)), nil
}

func (a *Authorizer) first(ctx context.Context, f func(s PermissionSource) (bool, error)) (bool, error) {
	for _, s := range a.sources {
		if err := ctx.Err(); err != nil {
			return false, err
		}

		ok, err := f(s)
		if errors.Is(err, ErrPermissionDenied) {
			return false, nil
		}

		if err != nil {
			return false, err
		}

		if ok {
			return true, nil
		}
	}

	return false, nil
}

// StaticPermissions is a PermissionSource backed by fixed maps. It only
// knows model level permissions: object permissions are never granted.
type StaticPermissions struct {
	// UserPerms are permissions granted to individual users.
	UserPerms map[uuid.UUID][]string
	// Groups maps group names to the permissions they grant.
	Groups map[string][]string
	// Membership maps users to the names of their groups.
	Membership map[uuid.UUID][]string
}

func (s *StaticPermissions) GroupPermissions(_ context.Context, u *User, obj any) ([]string, error) {
	if !u.IsActive || obj != nil {
		return []string{}, nil
	}

	var out []string
	for _, group := range s.Membership[u.ID] {
		out = append(out, s.Groups[group]...)
	}

	return dedupe(out), nil
}

func (s *StaticPermissions) AllPermissions(ctx context.Context, u *User, obj any) ([]string, error) {
	if !u.IsActive || obj != nil {
		return []string{}, nil
	}

	group, err := s.GroupPermissions(ctx, u, obj)
	if err != nil {
		return nil, err
	}

	return dedupe(append(group, s.UserPerms[u.ID]...)), nil
}

func (s *StaticPermissions) HasPerm(ctx context.Context, u *User, perm string, obj any) (bool, error) {
	perms, err := s.AllPermissions(ctx, u, obj)
	if err != nil {
		return false, err
	}

	return slices.Contains(perms, perm), nil
}

func (s *StaticPermissions) HasModulePerms(ctx context.Context, u *User, appLabel string) (bool, error) {
	perms, err := s.AllPermissions(ctx, u, nil)
	if err != nil {
		return false, err
	}

	return slices.ContainsFunc(perms, func(p string) bool {
		return strings.HasPrefix(p, appLabel+".")
	}), nil
}

func dedupe(perms []string) []string {
	out := slices.Clone(perms)
	slices.Sort(out)
	return slices.Compact(out)
}
