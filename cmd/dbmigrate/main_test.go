package main

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"
)

func Test_Run(t *testing.T) {
	t.Run("ok, status, migrate, status", func(t *testing.T) {
		dbFile := filepath.Join(t.TempDir(), "dbmigrate-test.db")

		var out, errOut bytes.Buffer
		code := run([]string{"-status", dbFile}, &out, &errOut)
		if code != 0 {
			t.Fatalf("got exit code %d, want 0. stderr:\n%s", code, errOut.String())
		}

		if !strings.Contains(out.String(), "pending: 0001_create_users.sql") {
			t.Errorf("expected pending migration, got:\n%s", out.String())
		}

		out.Reset()
		code = run([]string{dbFile}, &out, &errOut)
		if code != 0 {
			t.Fatalf("got exit code %d, want 0. stderr:\n%s", code, errOut.String())
		}

		if !strings.Contains(out.String(), "0001_create_users.sql") {
			t.Errorf("expected migration to run, got:\n%s", out.String())
		}

		out.Reset()
		code = run([]string{"-status", dbFile}, &out, &errOut)
		if code != 0 {
			t.Fatalf("got exit code %d, want 0. stderr:\n%s", code, errOut.String())
		}

		if out.Len() != 0 {
			t.Errorf("expected no pending migrations, got:\n%s", out.String())
		}
	})

	t.Run("fail, no arguments", func(t *testing.T) {
		var out, errOut bytes.Buffer
		code := run(nil, &out, &errOut)
		if code != 1 {
			t.Fatalf("got exit code %d, want 1", code)
		}

		if !strings.Contains(errOut.String(), "Usage: dbmigrate") {
			t.Errorf("expected usage, got:\n%s", errOut.String())
		}
	})
}
