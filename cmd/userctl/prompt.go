package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/willemschots/docauth/internal/auth"
	"golang.org/x/term"
)

var (
	errPasswordsDiffer = errors.New("passwords do not match")
	errBlankPassword   = errors.New("blank passwords are not allowed")
)

// prompter reads passwords from a terminal without echoing them. When the
// input is not a terminal, every line is a password.
type prompter struct {
	reader *bufio.Reader
	out    io.Writer
	fd     int
	isTerm bool
}

func newPrompter(in io.Reader, out io.Writer) *prompter {
	p := &prompter{
		reader: bufio.NewReader(in),
		out:    out,
	}

	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		p.fd = int(f.Fd())
		p.isTerm = true
	}

	return p
}

func (p *prompter) readRaw(prompt string) (string, error) {
	if p.isTerm {
		fmt.Fprint(p.out, prompt)
		b, err := term.ReadPassword(p.fd)
		fmt.Fprintln(p.out)
		if err != nil {
			return "", fmt.Errorf("failed to read password: %w", err)
		}
		return string(b), nil
	}

	line, err := p.reader.ReadString('\n')
	if err != nil && (!errors.Is(err, io.EOF) || line == "") {
		return "", fmt.Errorf("failed to read password: %w", err)
	}

	return strings.TrimRight(line, "\r\n"), nil
}

// password reads a single password.
func (p *prompter) password(prompt string) (auth.Password, error) {
	raw, err := p.readRaw(prompt)
	if err != nil {
		return auth.Password{}, err
	}

	return auth.ParsePassword(raw)
}

// newPassword reads a password that is about to be set. On a terminal it is
// asked for twice.
func (p *prompter) newPassword() (auth.Password, error) {
	raw, err := p.readRaw("Password: ")
	if err != nil {
		return auth.Password{}, err
	}

	if raw == "" {
		return auth.Password{}, errBlankPassword
	}

	if p.isTerm {
		again, err := p.readRaw("Password (again): ")
		if err != nil {
			return auth.Password{}, err
		}

		if again != raw {
			return auth.Password{}, errPasswordsDiffer
		}
	}

	return auth.ParsePassword(raw)
}

// rest reads all remaining input.
func (p *prompter) rest() (string, error) {
	b, err := io.ReadAll(p.reader)
	if err != nil {
		return "", fmt.Errorf("failed to read input: %w", err)
	}

	return string(b), nil
}
