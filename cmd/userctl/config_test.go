package main

import (
	"errors"
	"log/slog"
	"os"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/willemschots/docauth/internal/hashers"
	"github.com/willemschots/docauth/internal/krypto"
)

func newConfig(mf func(*config)) config {
	c := defaultConfig()
	if mf != nil {
		mf(&c)
	}
	return c
}

func TestConfigFromEnv(t *testing.T) {
	t.Run("ok, uses defaults without env variables", func(t *testing.T) {
		want := newConfig(nil)
		got, err := configFromEnv()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if !reflect.DeepEqual(got, want) {
			t.Errorf("got\n%+v\nwant\n%+v", got, want)
		}
	})

	valid := map[string]struct {
		key string
		val string
		mf  func(*config) // modify default config to create wanted config.
	}{
		"ok, non-default LOG_LEVEL": {
			key: "LOG_LEVEL", val: "debug", mf: func(c *config) { c.logLevel = slog.LevelDebug },
		},
		"ok, non-default OP_TIMEOUT": {
			key: "OP_TIMEOUT", val: "5s", mf: func(c *config) { c.opTimeout = 5 * time.Second },
		},
		"ok, non-default DB_BACKEND": {
			key: "DB_BACKEND", val: "redis", mf: func(c *config) { c.db.backend = backendRedis },
		},
		"ok, non-default DB_FILE": {
			key: "DB_FILE", val: "test.db", mf: func(c *config) { c.db.file = "test.db" },
		},
		"ok, non-default DB_MIGRATE": {
			key: "DB_MIGRATE", val: "false", mf: func(c *config) { c.db.migrate = false },
		},
		"ok, non-default REDIS_ADDR": {
			key: "REDIS_ADDR", val: "redis:6380", mf: func(c *config) { c.redis.addr = "redis:6380" },
		},
		"ok, other REDIS_PASSWORD": {
			key: "REDIS_PASSWORD", val: "hunter2", mf: func(c *config) { c.redis.password = krypto.NewSecret("hunter2") },
		},
		"ok, non-default REDIS_DB": {
			key: "REDIS_DB", val: "3", mf: func(c *config) { c.redis.db = 3 },
		},
		"ok, non-default REDIS_PREFIX": {
			key: "REDIS_PREFIX", val: "app:", mf: func(c *config) { c.redis.prefix = "app:" },
		},
		"ok, non-default HASHER_DEFAULT": {
			key: "HASHER_DEFAULT", val: "bcrypt", mf: func(c *config) { c.hashers.Default = hashers.AlgorithmBcrypt },
		},
		"ok, non-default ARGON2_MEMORY_KIB": {
			key: "ARGON2_MEMORY_KIB", val: "65536", mf: func(c *config) { c.hashers.Argon2.MemoryKiB = 65536 },
		},
		"ok, non-default ARGON2_ITERATIONS": {
			key: "ARGON2_ITERATIONS", val: "3", mf: func(c *config) { c.hashers.Argon2.Iterations = 3 },
		},
		"ok, non-default ARGON2_PARALLELISM": {
			key: "ARGON2_PARALLELISM", val: "4", mf: func(c *config) { c.hashers.Argon2.Parallelism = 4 },
		},
		"ok, non-default BCRYPT_COST": {
			key: "BCRYPT_COST", val: "10", mf: func(c *config) { c.hashers.BcryptCost = 10 },
		},
		"ok, non-default PBKDF2_ITERATIONS": {
			key: "PBKDF2_ITERATIONS", val: "1000000", mf: func(c *config) { c.hashers.PBKDF2Iterations = 1000000 },
		},
		"ok, non-default EMAIL_DRIVER": {
			key: "EMAIL_DRIVER", val: "postmark", mf: func(c *config) { c.email.driver = emailDriverPostmark },
		},
		"ok, other EMAIL_FROM": {
			key: "EMAIL_FROM", val: "admin@example.com", mf: func(c *config) { c.email.from = "admin@example.com" },
		},
		"ok, non-default EMAIL_TIMEOUT": {
			key: "EMAIL_TIMEOUT", val: "1m", mf: func(c *config) { c.email.timeout = time.Minute },
		},
		"ok, non-default POSTMARK_API_URL": {
			key: "POSTMARK_API_URL",
			val: "https://example.com",
			mf: func(c *config) {
				c.email.postmark.APIURL = mustURL("https://example.com")
			},
		},
		"ok, other POSTMARK_SERVER_TOKEN": {
			key: "POSTMARK_SERVER_TOKEN",
			val: "testToken",
			mf: func(c *config) {
				c.email.postmark.ServerToken = krypto.NewSecret("testToken")
			},
		},
		"ok, other POSTMARK_MESSAGE_STREAM": {
			key: "POSTMARK_MESSAGE_STREAM", val: "other_stream", mf: func(c *config) { c.email.postmark.MessageStream = "other_stream" },
		},
		"ok, non-default MAILGUN_BASE_URL": {
			key: "MAILGUN_BASE_URL", val: "https://api.eu.mailgun.net", mf: func(c *config) { c.email.mailgun.BaseURL = "https://api.eu.mailgun.net" },
		},
		"ok, other MAILGUN_DOMAIN": {
			key: "MAILGUN_DOMAIN", val: "mg.example.com", mf: func(c *config) { c.email.mailgun.Domain = "mg.example.com" },
		},
		"ok, other MAILGUN_API_KEY": {
			key: "MAILGUN_API_KEY", val: "key-123", mf: func(c *config) { c.email.mailgun.APIKey = krypto.NewSecret("key-123") },
		},
	}

	for name, tc := range valid {
		t.Run(name, func(t *testing.T) {
			envForTest(t, tc.key, tc.val)

			want := newConfig(tc.mf)
			got, err := configFromEnv()
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if !reflect.DeepEqual(got, want) {
				t.Errorf("got\n%+v\nwant\n%+v", got, want)
			}
		})
	}

	invalid := map[string]struct {
		key string
		val string
	}{
		"fail, invalid LOG_LEVEL":         {"LOG_LEVEL", "loud"},
		"fail, negative OP_TIMEOUT":       {"OP_TIMEOUT", "-1ms"},
		"fail, unknown DB_BACKEND":        {"DB_BACKEND", "mongodb"},
		"fail, empty DB_FILE":             {"DB_FILE", ""},
		"fail, invalid DB_MIGRATE":        {"DB_MIGRATE", "no!"},
		"fail, empty REDIS_ADDR":          {"REDIS_ADDR", ""},
		"fail, out of range REDIS_DB":     {"REDIS_DB", "16"},
		"fail, unknown HASHER_DEFAULT":    {"HASHER_DEFAULT", "md5"},
		"fail, too little ARGON2_MEMORY":  {"ARGON2_MEMORY_KIB", "7"},
		"fail, zero ARGON2_ITERATIONS":    {"ARGON2_ITERATIONS", "0"},
		"fail, too high ARGON2_PARALLEL":  {"ARGON2_PARALLELISM", "256"},
		"fail, too low BCRYPT_COST":       {"BCRYPT_COST", "3"},
		"fail, invalid PBKDF2_ITERATIONS": {"PBKDF2_ITERATIONS", "many"},
		"fail, unknown EMAIL_DRIVER":      {"EMAIL_DRIVER", "pigeon"},
		"fail, invalid EMAIL_FROM":        {"EMAIL_FROM", "@@"},
		"fail, negative EMAIL_TIMEOUT":    {"EMAIL_TIMEOUT", "-1s"},
		"fail, invalid POSTMARK_API_URL":  {"POSTMARK_API_URL", "not-a-url"},
		"fail, empty POSTMARK_STREAM":     {"POSTMARK_MESSAGE_STREAM", ""},
		"fail, relative MAILGUN_BASE_URL": {"MAILGUN_BASE_URL", "/v3"},
		"fail, empty MAILGUN_DOMAIN":      {"MAILGUN_DOMAIN", ""},
	}

	for name, tc := range invalid {
		t.Run(name, func(t *testing.T) {
			envForTest(t, tc.key, tc.val)

			_, err := configFromEnv()
			if err == nil {
				t.Fatal("expected error, got <nil>")
			}

			// Check that the error message contains the invalid env variable.
			msg := err.Error()
			if !strings.Contains(msg, tc.key) {
				t.Errorf("expected error message to mention %s, got %s", tc.key, msg)
			}
		})
	}

	t.Run("fail, hasher parameters invalid together", func(t *testing.T) {
		// Each value is valid, but argon2 needs 8 KiB of memory per lane.
		envForTest(t, "ARGON2_MEMORY_KIB", "16")
		envForTest(t, "ARGON2_PARALLELISM", "4")

		_, err := configFromEnv()
		if !errors.Is(err, hashers.ErrInvalidInput) {
			t.Fatalf("expected error %v, got %v", hashers.ErrInvalidInput, err)
		}
	})

	t.Run("fail, multiple invalid env variables", func(t *testing.T) {
		envForTest(t, "OP_TIMEOUT", "-1ms")
		envForTest(t, "REDIS_DB", "-1")

		_, err := configFromEnv()
		if err == nil {
			t.Fatal("expected error, got <nil>")
		}

		// These errors are immediately logged, so comparing on a string level is fine.
		msg := err.Error()
		for _, key := range []string{"OP_TIMEOUT", "REDIS_DB"} {
			if !strings.Contains(msg, key) {
				t.Errorf("expected error message to mention %s, got %s", key, msg)
			}
		}
	})
}

// envForTest sets an environment variable for a test and unsets it when the test is done.
func envForTest(t *testing.T, key, val string) {
	t.Helper()

	t.Cleanup(func() {
		if err := os.Unsetenv(key); err != nil {
			t.Fatalf("failed to unset env var %s: %v", key, err)
		}
	})

	if err := os.Setenv(key, val); err != nil {
		t.Fatalf("failed to set env var %s: %v", key, err)
	}
}
