package errorz

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/mattn/go-sqlite3"
	"github.com/redis/go-redis/v9"
)

var (
	ErrNotFound           = errors.New("not found")
	ErrConstraintViolated = errors.New("constraint violated")
)

// MapDBErr maps database errors to appropriate errorz errors.
// If err is nil, MapDBErr returns nil.
func MapDBErr(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}

	sErr := sqlite3.Error{}
	if errors.As(err, &sErr) {
		if sErr.Code == sqlite3.ErrConstraint {
			return ErrConstraintViolated
		}
	}

	return err
}

// Lua scripts signal these conditions by replying with an error that
// starts with one of these prefixes.
const (
	RedisNotFoundPrefix   = "NOTFOUND"
	RedisConstraintPrefix = "CONSTRAINT"
)

// MapRedisErr maps redis errors to appropriate errorz errors.
// If err is nil, MapRedisErr returns nil.
func MapRedisErr(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, redis.Nil) {
		return ErrNotFound
	}

	var rErr redis.Error
	if errors.As(err, &rErr) {
		msg := rErr.Error()
		switch {
		case strings.HasPrefix(msg, RedisNotFoundPrefix):
			return fmt.Errorf("%s: %w", msg, ErrNotFound)
		case strings.HasPrefix(msg, RedisConstraintPrefix):
			return fmt.Errorf("%s: %w", msg, ErrConstraintViolated)
		}
	}

	return err
}
