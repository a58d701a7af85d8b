// Package migrations embeds the SQL migrations of the SQLite document store.
package migrations

import "embed"

// FS contains the migration files. They run in lexical order.
//
//go:embed *.sql
var FS embed.FS
