package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/willemschots/docauth/internal"
	"github.com/willemschots/docauth/internal/db"
	"github.com/willemschots/docauth/internal/db/migrate"
	"github.com/willemschots/docauth/migrations"
)

const helpText = `Usage: dbmigrate [-status] <sqlite_file>

Runs the embedded migrations against the database file. With -status the
pending migrations are listed instead.`

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	status := false
	if len(args) == 2 && args[0] == "-status" {
		status = true
		args = args[1:]
	}

	if len(args) != 1 {
		fmt.Fprintln(stderr, helpText)
		return 1
	}

	sqlDB, err := db.OpenSQLite(args[0], true)
	if err != nil {
		fmt.Fprintf(stderr, "failed to open database: %v\n", err)
		return 1
	}
	defer sqlDB.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*60)
	defer cancel()

	if status {
		pending, err := migrate.Pending(ctx, sqlDB, migrations.FS)
		if err != nil {
			fmt.Fprintf(stderr, "failed to list pending migrations: %v\n", err)
			return 1
		}

		for _, name := range pending {
			fmt.Fprintf(stdout, "pending: %s\n", name)
		}
		return 0
	}

	meta := migrate.Metadata{
		AppVersion: internal.BuildRevision,
		Timestamp:  internal.BuildRevisionTime,
	}

	ran, err := migrate.RunFS(ctx, sqlDB, migrations.FS, meta)
	if err != nil {
		fmt.Fprintf(stderr, "failed to run migrations: %v\n", err)
		return 1
	}

	for _, migration := range ran {
		fmt.Fprintf(stdout, "%d: %s\n", migration.Sequence, migration.Filename)
	}

	return 0
}
