package email

import (
	"context"
)

// Sender is responsible for actually sending an email.
type Sender interface {
	Send(ctx context.Context, from, recipient Address, subject, body string) error
}
