// Package redis stores users as Redis hashes.
//
// Every user is a hash at <prefix>user:<id>. The username index maps
// <prefix>username:<username> to the user ID, and <prefix>users is the set
// of all user IDs. All writes run as Lua scripts, so each write is atomic.
package redis

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/willemschots/docauth/internal/auth"
	"github.com/willemschots/docauth/internal/docstore/userdoc"
	"github.com/willemschots/docauth/internal/errorz"
)

// DefaultPrefix is prepended to every key when no prefix is configured.
const DefaultPrefix = "docauth:"

// KEYS: user hash, username index, id set. ARGV: id, field-value pairs.
var createScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 1 then
	return redis.error_reply('` + errorz.RedisConstraintPrefix + ` user id exists')
end
if redis.call('SETNX', KEYS[2], ARGV[1]) == 0 then
	return redis.error_reply('` + errorz.RedisConstraintPrefix + ` username exists')
end
redis.call('HSET', KEYS[1], unpack(ARGV, 2))
redis.call('SADD', KEYS[3], ARGV[1])
return 1
`)

// KEYS: user hash. ARGV: field-value pairs.
var saveFieldsScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
	return redis.error_reply('` + errorz.RedisNotFoundPrefix + ` user')
end
redis.call('HSET', KEYS[1], unpack(ARGV))
return 1
`)

// Store is an auth.Store backed by Redis.
type Store struct {
	client redis.UniversalClient
	prefix string
}

// New creates a new Store. An empty prefix means DefaultPrefix.
func New(client redis.UniversalClient, prefix string) *Store {
	if prefix == "" {
		prefix = DefaultPrefix
	}

	return &Store{
		client: client,
		prefix: prefix,
	}
}

func (s *Store) userKey(id string) string {
	return s.prefix + "user:" + id
}

func (s *Store) usernameKey(username auth.Username) string {
	return s.prefix + "username:" + string(username)
}

func (s *Store) idsKey() string {
	return s.prefix + "users"
}

func (s *Store) CreateUser(ctx context.Context, u *auth.User) error {
	if u.ID == uuid.Nil {
		return fmt.Errorf("zero uuid provided: %w", errorz.ErrConstraintViolated)
	}

	id := u.ID.String()
	keys := []string{s.userKey(id), s.usernameKey(u.Username), s.idsKey()}
	args := append([]any{id}, hashArgs(userdoc.FromUser(u))...)

	err := createScript.Run(ctx, s.client, keys, args...).Err()
	return errorz.MapRedisErr(err)
}

// SaveFields writes only the named hash fields, so fields changed by
// concurrent writers are preserved.
func (s *Store) SaveFields(ctx context.Context, id uuid.UUID, fields ...auth.FieldValue) error {
	if len(fields) == 0 {
		return nil
	}

	args := make([]any, 0, len(fields)*2)
	for _, f := range fields {
		v, err := userdoc.HashValue(f)
		if err != nil {
			return err
		}
		args = append(args, f.Field, v)
	}

	err := saveFieldsScript.Run(ctx, s.client, []string{s.userKey(id.String())}, args...).Err()
	return errorz.MapRedisErr(err)
}

func (s *Store) FindUsers(ctx context.Context, f *auth.UserFilter) ([]auth.User, error) {
	ids, err := s.candidateIDs(ctx, f)
	if err != nil {
		return nil, err
	}

	cmds := make([]*redis.MapStringStringCmd, 0, len(ids))
	_, err = s.client.Pipelined(ctx, func(p redis.Pipeliner) error {
		for _, id := range ids {
			cmds = append(cmds, p.HGetAll(ctx, s.userKey(id)))
		}
		return nil
	})
	if err != nil {
		return nil, errorz.MapRedisErr(err)
	}

	out := make([]auth.User, 0, len(cmds))
	for _, cmd := range cmds {
		h := cmd.Val()
		if len(h) == 0 {
			// Removed after the ids were read.
			continue
		}

		doc, err := userdoc.FromHash(h)
		if err != nil {
			return nil, err
		}

		u, err := doc.User()
		if err != nil {
			return nil, err
		}

		if matches(f, &u) {
			out = append(out, u)
		}
	}

	slices.SortFunc(out, func(a, b auth.User) int {
		if c := strings.Compare(string(a.Username), string(b.Username)); c != 0 {
			return c
		}
		return strings.Compare(a.ID.String(), b.ID.String())
	})

	return out, nil
}

// candidateIDs narrows the users to load using the ID list or the
// username index. Without either, all users are candidates.
func (s *Store) candidateIDs(ctx context.Context, f *auth.UserFilter) ([]string, error) {
	switch {
	case len(f.IDs) > 0:
		ids := make([]string, 0, len(f.IDs))
		for _, id := range f.IDs {
			ids = append(ids, id.String())
		}
		return ids, nil
	case len(f.Usernames) > 0:
		keys := make([]string, 0, len(f.Usernames))
		for _, u := range f.Usernames {
			keys = append(keys, s.usernameKey(u))
		}

		vals, err := s.client.MGet(ctx, keys...).Result()
		if err != nil {
			return nil, errorz.MapRedisErr(err)
		}

		ids := make([]string, 0, len(vals))
		for _, v := range vals {
			if id, ok := v.(string); ok {
				ids = append(ids, id)
			}
		}
		return ids, nil
	default:
		ids, err := s.client.SMembers(ctx, s.idsKey()).Result()
		if err != nil {
			return nil, errorz.MapRedisErr(err)
		}
		return ids, nil
	}
}

func matches(f *auth.UserFilter, u *auth.User) bool {
	if len(f.IDs) > 0 && !slices.Contains(f.IDs, u.ID) {
		return false
	}

	if len(f.Usernames) > 0 && !slices.Contains(f.Usernames, u.Username) {
		return false
	}

	if f.IsActive != nil && *f.IsActive != u.IsActive {
		return false
	}

	return true
}

func hashArgs(d userdoc.Document) []any {
	h := d.Hash()

	fields := make([]string, 0, len(h))
	for k := range h {
		fields = append(fields, k)
	}
	slices.Sort(fields)

	args := make([]any, 0, len(h)*2)
	for _, k := range fields {
		args = append(args, k, h[k])
	}
	return args
}
