package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"github.com/willemschots/docauth/internal"
	"github.com/willemschots/docauth/internal/auth"
	"github.com/willemschots/docauth/internal/db"
	"github.com/willemschots/docauth/internal/db/migrate"
	redisstore "github.com/willemschots/docauth/internal/docstore/redis"
	"github.com/willemschots/docauth/internal/docstore/sqlite"
	"github.com/willemschots/docauth/internal/email"
	"github.com/willemschots/docauth/internal/email/mailgun"
	"github.com/willemschots/docauth/internal/email/postmark"
	"github.com/willemschots/docauth/internal/hashers"
	"github.com/willemschots/docauth/migrations"
)

const helpText = `Usage: userctl <command> [flags] [arguments]

Commands:
  createuser [-email addr] [-first name] [-last name] [-nopassword] <username>
  createsuperuser -email addr [-first name] [-last name] <username>
  changepassword <username>
  setunusable <username>
  checkpassword <username>
  show <username>...
  list [-active | -inactive]
  audit
  email -subject subject [-from addr] <username>   (body is read from stdin)
  activate <username>
  deactivate <username>

Passwords are prompted for when stdin is a terminal and read line by line
from stdin otherwise. Configuration is read from the environment.
`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	os.Exit(run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	cfg, cfgErr := configFromEnv()

	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{
		Level: cfg.logLevel,
	}))

	if cfgErr != nil {
		logger.Error("failed to get config from environment", "error", cfgErr)
		return 1
	}

	if len(args) == 0 {
		fmt.Fprint(stderr, helpText)
		return 2
	}

	cmd, ok := commands[args[0]]
	if !ok {
		fmt.Fprintf(stderr, "unknown command %q\n\n%s", args[0], helpText)
		return 2
	}

	logger.Debug("starting userctl",
		"command", args[0],
		"buildRevision", internal.BuildRevision,
		"buildRevisionTime", internal.BuildRevisionTime,
		"buildLocalModified", internal.BuildLocalModified,
	)

	openCtx, cancel := context.WithTimeout(ctx, cfg.opTimeout)
	store, closeStore, err := openStore(openCtx, logger, cfg)
	cancel()
	if err != nil {
		logger.Error("failed to open store", "backend", cfg.db.backend, "error", err)
		return 1
	}

	defer func() {
		if err := closeStore(); err != nil {
			logger.Error("failed to close store", "error", err)
		}
	}()

	oracle, err := hashers.New(cfg.hashers)
	if err != nil {
		logger.Error("failed to create hashers", "error", err)
		return 1
	}

	svc, err := auth.NewService(store, oracle, newSender(logger, cfg.email), func(err error) {
		logger.Error("error in auth service", "error", err)
	}, auth.ServiceConfig{
		DefaultFrom: cfg.email.from,
	})
	if err != nil {
		logger.Error("failed to create auth service", "error", err)
		return 1
	}

	a := &app{
		svc:       svc,
		oracle:    oracle,
		logger:    logger,
		prompt:    newPrompter(stdin, stderr),
		opTimeout: cfg.opTimeout,
		out:       stdout,
		errOut:    stderr,
	}

	err = cmd(ctx, a, args[1:])
	switch {
	case err == nil:
		return 0
	case errors.Is(err, flag.ErrHelp):
		return 2
	case errors.Is(err, errUsage):
		fmt.Fprintf(stderr, "%v\n\n%s", err, helpText)
		return 2
	default:
		logger.Error("command failed", "command", args[0], "error", err)
		return 1
	}
}

// openStore opens the configured store. The returned function closes it.
func openStore(ctx context.Context, logger *slog.Logger, cfg config) (auth.Store, func() error, error) {
	switch cfg.db.backend {
	case backendRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.redis.addr,
			Password: cfg.redis.password.SecretValue(),
			DB:       cfg.redis.db,
		})

		err := client.Ping(ctx).Err()
		if err != nil {
			return nil, nil, errors.Join(fmt.Errorf("failed to ping redis at %s: %w", cfg.redis.addr, err), client.Close())
		}

		return redisstore.New(client, cfg.redis.prefix), client.Close, nil
	default:
		writeDB, err := db.OpenSQLite(cfg.db.file, true)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open write database: %w", err)
		}

		if cfg.db.migrate {
			err = migrateDB(ctx, logger, writeDB)
			if err != nil {
				return nil, nil, errors.Join(err, writeDB.Close())
			}
		}

		readDB, err := db.OpenSQLite(cfg.db.file, false)
		if err != nil {
			return nil, nil, errors.Join(fmt.Errorf("failed to open read database: %w", err), writeDB.Close())
		}

		closeFunc := func() error {
			return errors.Join(readDB.Close(), writeDB.Close())
		}

		return sqlite.New(writeDB, readDB), closeFunc, nil
	}
}

func migrateDB(ctx context.Context, logger *slog.Logger, sqlDB *sql.DB) error {
	logger.Debug("attempting to migrate database")

	ran, err := migrate.RunFS(ctx, sqlDB, migrations.FS, migrate.Metadata{
		AppVersion: internal.BuildRevision,
		Timestamp:  internal.BuildRevisionTime,
	})
	if err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	for _, m := range ran {
		logger.Info("migration ran", "sequence", m.Sequence, "filename", m.Filename)
	}

	return nil
}

func newSender(logger *slog.Logger, cfg emailConfig) email.Sender {
	client := &http.Client{
		Timeout: cfg.timeout,
	}

	switch cfg.driver {
	case emailDriverPostmark:
		return postmark.NewSender(client, cfg.postmark)
	case emailDriverMailgun:
		return mailgun.NewSender(client, cfg.mailgun)
	default:
		return email.NewLogSender(logger)
	}
}
