// Package sqlite stores users as JSON documents in SQLite.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/willemschots/docauth/internal/auth"
	"github.com/willemschots/docauth/internal/db"
	"github.com/willemschots/docauth/internal/docstore/userdoc"
	"github.com/willemschots/docauth/internal/errorz"
)

// Store is an auth.Store backed by the users table.
type Store struct {
	writeDB *sql.DB
	readDB  *sql.DB
}

// New creates a new Store. Writes go to writeDB, reads to readDB. Both may
// be the same pool.
func New(writeDB, readDB *sql.DB) *Store {
	return &Store{
		writeDB: writeDB,
		readDB:  readDB,
	}
}

func (s *Store) CreateUser(ctx context.Context, u *auth.User) error {
	if u.ID == uuid.Nil {
		return fmt.Errorf("zero uuid provided: %w", errorz.ErrConstraintViolated)
	}

	doc, err := json.Marshal(userdoc.FromUser(u))
	if err != nil {
		return err
	}

	var q db.Query
	q.Unsafe(`INSERT INTO users (id, doc) VALUES (`)
	q.Params(u.ID.String(), string(doc))
	q.Unsafe(`)`)

	query, params := q.Get()
	_, err = s.writeDB.ExecContext(ctx, query, params...)
	if err != nil {
		return errorz.MapDBErr(err)
	}

	return nil
}

// SaveFields writes fields with a single json_set, so fields changed
// by concurrent writers are preserved.
func (s *Store) SaveFields(ctx context.Context, id uuid.UUID, fields ...auth.FieldValue) error {
	if len(fields) == 0 {
		return nil
	}

	var q db.Query
	q.Unsafe(`UPDATE users SET doc = json_set(doc`)
	for _, f := range fields {
		v, err := userdoc.JSONValue(f)
		if err != nil {
			return err
		}

		// f.Field is one of the known field names, JSONValue checked it.
		q.Unsafe(`, '$.` + f.Field + `', `)
		q.JSONParam(v)
	}
	q.Unsafe(`) WHERE id = `)
	q.Param(id.String())

	return s.execOne(ctx, q)
}

func (s *Store) execOne(ctx context.Context, q db.Query) error {
	query, params := q.Get()
	result, err := s.writeDB.ExecContext(ctx, query, params...)
	if err != nil {
		return errorz.MapDBErr(err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return errorz.MapDBErr(err)
	}

	if rows == 0 {
		return fmt.Errorf("user not found: %w", errorz.ErrNotFound)
	}

	return nil
}

func (s *Store) FindUsers(ctx context.Context, f *auth.UserFilter) ([]auth.User, error) {
	var q db.Query
	q.Unsafe(`SELECT doc FROM users WHERE 1=1 `)

	if len(f.IDs) > 0 {
		ids := make([]any, 0, len(f.IDs))
		for _, id := range f.IDs {
			ids = append(ids, id.String())
		}

		q.Unsafe(`AND id IN (`)
		q.Params(ids...)
		q.Unsafe(`) `)
	}

	if len(f.Usernames) > 0 {
		q.Unsafe(`AND username IN (`)
		q.Params(db.AnySlice(f.Usernames)...)
		q.Unsafe(`) `)
	}

	if f.IsActive != nil {
		q.Unsafe(`AND json_extract(doc, '$.is_active') = `)
		q.Param(*f.IsActive)
		q.Unsafe(` `)
	}

	q.Unsafe(`ORDER BY username ASC, id ASC`)

	query, params := q.Get()
	rows, err := s.readDB.QueryContext(ctx, query, params...)
	if err != nil {
		return nil, errorz.MapDBErr(err)
	}
	defer rows.Close()

	out := make([]auth.User, 0)
	for rows.Next() {
		var raw string
		err := rows.Scan(&raw)
		if err != nil {
			return nil, errorz.MapDBErr(err)
		}

		var doc userdoc.Document
		err = json.Unmarshal([]byte(raw), &doc)
		if err != nil {
			return nil, err
		}

		u, err := doc.User()
		if err != nil {
			return nil, err
		}

		out = append(out, u)
	}

	if err := rows.Err(); err != nil {
		return nil, errorz.MapDBErr(err)
	}

	return out, nil
}
