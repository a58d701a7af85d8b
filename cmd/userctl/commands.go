package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"text/tabwriter"
	"time"

	"github.com/willemschots/docauth/internal/auth"
	"github.com/willemschots/docauth/internal/email"
	"github.com/willemschots/docauth/internal/hashers"
	"golang.org/x/sync/errgroup"
)

var (
	errUsage            = errors.New("usage error")
	errPasswordMismatch = errors.New("password does not match")
)

type commandFunc func(ctx context.Context, a *app, args []string) error

var commands = map[string]commandFunc{
	"createuser":      cmdCreateUser,
	"createsuperuser": cmdCreateSuperuser,
	"changepassword":  cmdChangePassword,
	"setunusable":     cmdSetUnusable,
	"checkpassword":   cmdCheckPassword,
	"show":            cmdShow,
	"list":            cmdList,
	"audit":           cmdAudit,
	"email":           cmdEmail,
	"activate":        cmdSetActive(true),
	"deactivate":      cmdSetActive(false),
}

// app holds the dependencies of the commands.
type app struct {
	svc       *auth.Service
	oracle    *hashers.Registry
	logger    *slog.Logger
	prompt    *prompter
	opTimeout time.Duration
	out       io.Writer
	errOut    io.Writer
}

// opContext limits the store and mail operations of a command. Commands
// create it after reading input, time spent typing is not counted.
func (a *app) opContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, a.opTimeout)
}

func (a *app) findUser(ctx context.Context, username auth.Username) (auth.User, error) {
	ctx, cancel := a.opContext(ctx)
	defer cancel()

	u, err := a.svc.FindByUsername(ctx, username)
	if err != nil {
		return auth.User{}, fmt.Errorf("user %s: %w", username, err)
	}

	return u, nil
}

func (a *app) flagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(a.errOut)
	return fs
}

// parseUsernames parses the flags and returns the positional arguments as
// usernames. It fails unless there are between min and max of them.
func parseUsernames(fs *flag.FlagSet, args []string, min, max int) ([]auth.Username, error) {
	err := fs.Parse(args)
	if err != nil {
		return nil, err
	}

	if fs.NArg() < min || fs.NArg() > max {
		return nil, fmt.Errorf("%w: %s expects %d to %d usernames, got %d", errUsage, fs.Name(), min, max, fs.NArg())
	}

	usernames := make([]auth.Username, 0, fs.NArg())
	for _, raw := range fs.Args() {
		username, err := auth.ParseUsername(raw)
		if err != nil {
			return nil, err
		}
		usernames = append(usernames, username)
	}

	return usernames, nil
}

func parseUsername(fs *flag.FlagSet, args []string) (auth.Username, error) {
	usernames, err := parseUsernames(fs, args, 1, 1)
	if err != nil {
		return "", err
	}

	return usernames[0], nil
}

// profileFlags registers the flags shared by the create commands.
func profileFlags(fs *flag.FlagSet) (addr, first, last *string) {
	addr = fs.String("email", "", "email address")
	first = fs.String("first", "", "first name")
	last = fs.String("last", "", "last name")
	return addr, first, last
}

func cmdCreateUser(ctx context.Context, a *app, args []string) error {
	fs := a.flagSet("createuser")
	addr, first, last := profileFlags(fs)
	noPassword := fs.Bool("nopassword", false, "create the user with an unusable password")

	username, err := parseUsername(fs, args)
	if err != nil {
		return err
	}

	params := auth.UserParams{
		Username:  username,
		FirstName: *first,
		LastName:  *last,
	}

	if *addr != "" {
		params.Email, err = email.ParseAddress(*addr)
		if err != nil {
			return err
		}
	}

	if !*noPassword {
		p, err := a.prompt.newPassword()
		if err != nil {
			return err
		}
		params.Password = &p
	}

	ctx, cancel := a.opContext(ctx)
	defer cancel()

	u, err := a.svc.CreateUser(ctx, params)
	if err != nil {
		return err
	}

	a.logger.Info("user created", "username", u.Username, "id", u.ID)
	fmt.Fprintf(a.out, "created user %s (%s)\n", u.Username, u.ID)
	return nil
}

func cmdCreateSuperuser(ctx context.Context, a *app, args []string) error {
	fs := a.flagSet("createsuperuser")
	addr, first, last := profileFlags(fs)

	username, err := parseUsername(fs, args)
	if err != nil {
		return err
	}

	if *addr == "" {
		return fmt.Errorf("%w: createsuperuser requires -email", errUsage)
	}

	parsed, err := email.ParseAddress(*addr)
	if err != nil {
		return err
	}

	p, err := a.prompt.newPassword()
	if err != nil {
		return err
	}

	ctx, cancel := a.opContext(ctx)
	defer cancel()

	u, err := a.svc.CreateSuperuser(ctx, auth.UserParams{
		Username:  username,
		FirstName: *first,
		LastName:  *last,
		Email:     parsed,
		Password:  &p,
	})
	if err != nil {
		return err
	}

	a.logger.Info("superuser created", "username", u.Username, "id", u.ID)
	fmt.Fprintf(a.out, "created superuser %s (%s)\n", u.Username, u.ID)
	return nil
}

func cmdChangePassword(ctx context.Context, a *app, args []string) error {
	username, err := parseUsername(a.flagSet("changepassword"), args)
	if err != nil {
		return err
	}

	u, err := a.findUser(ctx, username)
	if err != nil {
		return err
	}

	p, err := a.prompt.newPassword()
	if err != nil {
		return err
	}

	ctx, cancel := a.opContext(ctx)
	defer cancel()

	err = a.svc.SetPassword(ctx, &u, p)
	if err != nil {
		return err
	}

	fmt.Fprintf(a.out, "changed password of %s\n", u.Username)
	return nil
}

func cmdSetUnusable(ctx context.Context, a *app, args []string) error {
	username, err := parseUsername(a.flagSet("setunusable"), args)
	if err != nil {
		return err
	}

	u, err := a.findUser(ctx, username)
	if err != nil {
		return err
	}

	ctx, cancel := a.opContext(ctx)
	defer cancel()

	err = a.svc.SetUnusablePassword(ctx, &u)
	if err != nil {
		return err
	}

	fmt.Fprintf(a.out, "%s can no longer log in with a password\n", u.Username)
	return nil
}

// cmdCheckPassword verifies a password. Outdated hashes are upgraded when
// the password matches.
func cmdCheckPassword(ctx context.Context, a *app, args []string) error {
	username, err := parseUsername(a.flagSet("checkpassword"), args)
	if err != nil {
		return err
	}

	u, err := a.findUser(ctx, username)
	if err != nil {
		return err
	}

	p, err := a.prompt.password("Password: ")
	if err != nil {
		return err
	}

	ctx, cancel := a.opContext(ctx)
	defer cancel()

	if !a.svc.CheckPassword(ctx, &u, p) {
		return errPasswordMismatch
	}

	fmt.Fprintf(a.out, "password of %s matches\n", u.Username)
	return nil
}

func cmdShow(ctx context.Context, a *app, args []string) error {
	usernames, err := parseUsernames(a.flagSet("show"), args, 1, 100)
	if err != nil {
		return err
	}

	users := make([]auth.User, len(usernames))

	ctx, cancel := a.opContext(ctx)
	defer cancel()

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for i, username := range usernames {
		g.Go(func() error {
			u, err := a.svc.FindByUsername(gCtx, username)
			if err != nil {
				return fmt.Errorf("user %s: %w", username, err)
			}
			users[i] = u
			return nil
		})
	}

	err = g.Wait()
	if err != nil {
		return err
	}

	for i, u := range users {
		if i > 0 {
			fmt.Fprintln(a.out)
		}
		a.printUser(&u)
	}

	return nil
}

func (a *app) printUser(u *auth.User) {
	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "id:\t%s\n", u.ID)
	fmt.Fprintf(tw, "username:\t%s\n", u.Username)
	fmt.Fprintf(tw, "name:\t%s\n", u.FullName())
	fmt.Fprintf(tw, "email:\t%s\n", u.Email)
	fmt.Fprintf(tw, "active:\t%t\n", u.IsActive)
	fmt.Fprintf(tw, "staff:\t%t\n", u.IsStaff)
	fmt.Fprintf(tw, "superuser:\t%t\n", u.IsSuperuser)
	fmt.Fprintf(tw, "date joined:\t%s\n", u.DateJoined.Format(time.RFC3339))
	fmt.Fprintf(tw, "last login:\t%s\n", u.LastLogin().Format(time.RFC3339))
	fmt.Fprintf(tw, "password:\t%s\n", u.State(a.oracle))
	fmt.Fprintf(tw, "needs upgrade:\t%t\n", a.oracle.NeedsUpgrade(u.PasswordHash()))
	tw.Flush()
}

func cmdList(ctx context.Context, a *app, args []string) error {
	fs := a.flagSet("list")
	active := fs.Bool("active", false, "only list active users")
	inactive := fs.Bool("inactive", false, "only list inactive users")

	_, err := parseUsernames(fs, args, 0, 0)
	if err != nil {
		return err
	}

	filter := &auth.UserFilter{}
	switch {
	case *active && *inactive:
		return fmt.Errorf("%w: -active and -inactive are mutually exclusive", errUsage)
	case *active:
		filter.IsActive = ptr(true)
	case *inactive:
		filter.IsActive = ptr(false)
	}

	ctx, cancel := a.opContext(ctx)
	defer cancel()

	users, err := a.svc.ListUsers(ctx, filter)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "USERNAME\tNAME\tEMAIL\tACTIVE\tSTAFF\tSUPERUSER")
	for _, u := range users {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%t\t%t\t%t\n", u.Username, u.FullName(), u.Email, u.IsActive, u.IsStaff, u.IsSuperuser)
	}
	return tw.Flush()
}

// cmdAudit lists the users that can not log in with a password or whose
// hash will be upgraded on their next login.
func cmdAudit(ctx context.Context, a *app, args []string) error {
	_, err := parseUsernames(a.flagSet("audit"), args, 0, 0)
	if err != nil {
		return err
	}

	ctx, cancel := a.opContext(ctx)
	defer cancel()

	entries, err := a.svc.Audit(ctx)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "USERNAME\tPASSWORD\tNEEDS UPGRADE")
	for _, e := range entries {
		fmt.Fprintf(tw, "%s\t%s\t%t\n", e.Username, e.State, e.NeedsUpgrade)
	}
	return tw.Flush()
}

func cmdEmail(ctx context.Context, a *app, args []string) error {
	fs := a.flagSet("email")
	subject := fs.String("subject", "", "subject of the email")
	from := fs.String("from", "", "sender address, defaults to EMAIL_FROM")

	username, err := parseUsername(fs, args)
	if err != nil {
		return err
	}

	if *subject == "" {
		return fmt.Errorf("%w: email requires -subject", errUsage)
	}

	var fromAddr email.Address
	if *from != "" {
		fromAddr, err = email.ParseAddress(*from)
		if err != nil {
			return err
		}
	}

	u, err := a.findUser(ctx, username)
	if err != nil {
		return err
	}

	body, err := a.prompt.rest()
	if err != nil {
		return err
	}

	ctx, cancel := a.opContext(ctx)
	defer cancel()

	err = a.svc.EmailUser(ctx, &u, *subject, body, fromAddr)
	if err != nil {
		return err
	}

	fmt.Fprintf(a.out, "sent email to %s\n", u.Email)
	return nil
}

func cmdSetActive(active bool) commandFunc {
	name, done := "deactivate", "deactivated"
	if active {
		name, done = "activate", "activated"
	}

	return func(ctx context.Context, a *app, args []string) error {
		username, err := parseUsername(a.flagSet(name), args)
		if err != nil {
			return err
		}

		u, err := a.findUser(ctx, username)
		if err != nil {
			return err
		}

		ctx, cancel := a.opContext(ctx)
		defer cancel()

		err = a.svc.SetActive(ctx, &u, active)
		if err != nil {
			return err
		}

		fmt.Fprintf(a.out, "%s %s\n", u.Username, done)
		return nil
	}
}

func ptr[T any](v T) *T {
	return &v
}
