package main

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/willemschots/docauth/internal/email"
	"github.com/willemschots/docauth/internal/email/mailgun"
	"github.com/willemschots/docauth/internal/email/postmark"
	"github.com/willemschots/docauth/internal/hashers"
	"github.com/willemschots/docauth/internal/krypto"
)

const (
	backendSQLite = "sqlite"
	backendRedis  = "redis"

	emailDriverLog      = "log"
	emailDriverPostmark = "postmark"
	emailDriverMailgun  = "mailgun"
)

type dbConfig struct {
	backend string
	file    string
	migrate bool
}

type redisConfig struct {
	addr     string
	password krypto.Secret
	db       int
	prefix   string
}

type emailConfig struct {
	driver   string
	from     email.Address
	timeout  time.Duration
	postmark postmark.Settings
	mailgun  mailgun.Settings
}

// config is the configuration for the userctl command.
type config struct {
	logLevel  slog.Level
	opTimeout time.Duration
	db        dbConfig
	redis     redisConfig
	hashers   hashers.Config
	email     emailConfig
}

// defaultConfig returns a config with sane default values.
func defaultConfig() config {
	return config{
		logLevel:  slog.LevelInfo,
		opTimeout: 30 * time.Second,
		db: dbConfig{
			backend: backendSQLite,
			file:    "docauth.db",
			migrate: true,
		},
		redis: redisConfig{
			addr:   "localhost:6379",
			prefix: "docauth:",
		},
		hashers: hashers.DefaultConfig(),
		email: emailConfig{
			driver:  emailDriverLog,
			timeout: 10 * time.Second,
			postmark: postmark.Settings{
				APIURL:        mustURL("https://api.postmarkapp.com/email"),
				MessageStream: "outbound",
			},
			mailgun: mailgun.Settings{
				BaseURL: "https://api.mailgun.net",
			},
		},
	}
}

// envMap maps environment variable names to fields in the config struct.
var envMap = map[string]func(v string, c *config) error{
	"LOG_LEVEL": func(v string, c *config) error {
		return c.logLevel.UnmarshalText([]byte(v))
	},
	"OP_TIMEOUT": func(v string, c *config) error {
		return confDuration(v, &c.opTimeout, time.Millisecond, math.MaxInt64)
	},
	"DB_BACKEND": func(v string, c *config) error {
		return confOneOf(v, &c.db.backend, backendSQLite, backendRedis)
	},
	"DB_FILE": func(v string, c *config) error {
		return confNonEmpty(v, &c.db.file)
	},
	"DB_MIGRATE": func(v string, c *config) error {
		return confBool(v, &c.db.migrate)
	},
	"REDIS_ADDR": func(v string, c *config) error {
		return confNonEmpty(v, &c.redis.addr)
	},
	"REDIS_PASSWORD": func(v string, c *config) error {
		c.redis.password = krypto.NewSecret(v)
		return nil
	},
	"REDIS_DB": func(v string, c *config) error {
		return confInt(v, &c.redis.db, 0, 15)
	},
	"REDIS_PREFIX": func(v string, c *config) error {
		return confNonEmpty(v, &c.redis.prefix)
	},
	"HASHER_DEFAULT": func(v string, c *config) error {
		return confOneOf(v, &c.hashers.Default, hashers.AlgorithmArgon2, hashers.AlgorithmBcrypt, hashers.AlgorithmPBKDF2)
	},
	"ARGON2_MEMORY_KIB": func(v string, c *config) error {
		return confUint32(v, &c.hashers.Argon2.MemoryKiB, 8, math.MaxUint32)
	},
	"ARGON2_ITERATIONS": func(v string, c *config) error {
		return confUint32(v, &c.hashers.Argon2.Iterations, 1, math.MaxUint32)
	},
	"ARGON2_PARALLELISM": func(v string, c *config) error {
		var p uint32
		err := confUint32(v, &p, 1, math.MaxUint8)
		if err != nil {
			return err
		}
		c.hashers.Argon2.Parallelism = uint8(p)
		return nil
	},
	"BCRYPT_COST": func(v string, c *config) error {
		return confInt(v, &c.hashers.BcryptCost, 4, 31)
	},
	"PBKDF2_ITERATIONS": func(v string, c *config) error {
		return confInt(v, &c.hashers.PBKDF2Iterations, 1, math.MaxInt32)
	},
	"EMAIL_DRIVER": func(v string, c *config) error {
		return confOneOf(v, &c.email.driver, emailDriverLog, emailDriverPostmark, emailDriverMailgun)
	},
	"EMAIL_FROM": func(v string, c *config) error {
		addr, err := email.ParseAddress(v)
		if err != nil {
			return err
		}
		c.email.from = addr
		return nil
	},
	"EMAIL_TIMEOUT": func(v string, c *config) error {
		return confDuration(v, &c.email.timeout, 0, math.MaxInt64)
	},
	"POSTMARK_API_URL": func(v string, c *config) error {
		return confURL(v, &c.email.postmark.APIURL)
	},
	"POSTMARK_SERVER_TOKEN": func(v string, c *config) error {
		c.email.postmark.ServerToken = krypto.NewSecret(v)
		return nil
	},
	"POSTMARK_MESSAGE_STREAM": func(v string, c *config) error {
		return confNonEmpty(v, &c.email.postmark.MessageStream)
	},
	"MAILGUN_BASE_URL": func(v string, c *config) error {
		var u *url.URL
		err := confURL(v, &u)
		if err != nil {
			return err
		}
		c.email.mailgun.BaseURL = u.String()
		return nil
	},
	"MAILGUN_DOMAIN": func(v string, c *config) error {
		return confNonEmpty(v, &c.email.mailgun.Domain)
	},
	"MAILGUN_API_KEY": func(v string, c *config) error {
		c.email.mailgun.APIKey = krypto.NewSecret(v)
		return nil
	},
}

// configFromEnv returns a config with values from the environment. It falls
// back to default values for any missing environment variables.
//
// All invalid variables are reported at once. The hasher parameters are
// validated as a whole after all variables are read.
func configFromEnv() (config, error) {
	c := defaultConfig()

	var errs []error
	for key, mf := range envMap {
		if val, ok := os.LookupEnv(key); ok {
			if err := mf(val, &c); err != nil {
				errs = append(errs, fmt.Errorf("invalid env variable %s: %w", key, err))
			}
		}
	}

	if len(errs) > 0 {
		return c, errors.Join(errs...)
	}

	if err := c.hashers.Validate(); err != nil {
		return c, fmt.Errorf("invalid hasher configuration: %w", err)
	}

	return c, nil
}

// confDuration attempts to parse v into tgt and checks if the result is in
// the provided range (inclusive).
func confDuration(v string, tgt *time.Duration, min, max time.Duration) error {
	dur, err := time.ParseDuration(v)
	if err != nil {
		return err
	}

	if dur < min || dur > max {
		return fmt.Errorf("duration %s not in range [%s, %s] (inclusive)", dur, min, max)
	}

	*tgt = dur

	return nil
}

func confInt(v string, tgt *int, min, max int) error {
	i, err := strconv.Atoi(v)
	if err != nil {
		return err
	}

	if i < min || i > max {
		return fmt.Errorf("%d not in range [%d, %d] (inclusive)", i, min, max)
	}

	*tgt = i

	return nil
}

func confUint32(v string, tgt *uint32, min, max uint32) error {
	i, err := strconv.ParseUint(v, 10, 32)
	if err != nil {
		return err
	}

	if uint32(i) < min || uint32(i) > max {
		return fmt.Errorf("%d not in range [%d, %d] (inclusive)", i, min, max)
	}

	*tgt = uint32(i)

	return nil
}

func confBool(v string, tgt *bool) error {
	b, err := strconv.ParseBool(v)
	if err != nil {
		return err
	}

	*tgt = b

	return nil
}

func confNonEmpty(v string, tgt *string) error {
	if v == "" {
		return errors.New("empty value")
	}

	*tgt = v

	return nil
}

func confOneOf(v string, tgt *string, options ...string) error {
	for _, o := range options {
		if v == o {
			*tgt = v
			return nil
		}
	}

	return fmt.Errorf("%q is not one of %v", v, options)
}

// confURL parses an absolute URL.
func confURL(v string, tgt **url.URL) error {
	u, err := url.Parse(v)
	if err != nil {
		return err
	}

	if u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%q is not an absolute url", v)
	}

	*tgt = u

	return nil
}

func mustURL(raw string) *url.URL {
	u, err := url.Parse(raw)
	if err != nil {
		panic(err)
	}
	return u
}
