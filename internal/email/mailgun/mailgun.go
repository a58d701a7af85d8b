package mailgun

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/willemschots/docauth/internal/email"
	"github.com/willemschots/docauth/internal/krypto"
)

// Settings contains the settings for the Mailgun API.
type Settings struct {
	// BaseURL defaults to https://api.mailgun.net when empty.
	BaseURL string
	Domain  string
	APIKey  krypto.Secret
}

// Sender is an email sender that sends emails using the Mailgun API.
type Sender struct {
	client   *http.Client
	settings Settings
}

// NewSender creates a new sender.
func NewSender(client *http.Client, s Settings) *Sender {
	if s.BaseURL == "" {
		s.BaseURL = "https://api.mailgun.net"
	}

	return &Sender{
		client:   client,
		settings: s,
	}
}

// Send sends an email using the Mailgun API.
func (s *Sender) Send(ctx context.Context, from, recipient email.Address, subject, body string) error {
	// The Mailgun Go package brings in a lot of dependencies we don't need,
	// so a plain multipart POST it is.
	fields := []struct {
		name  string
		value string
	}{
		{"from", string(from)},
		{"to", string(recipient)},
		{"subject", subject},
		{"text", body},
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for _, f := range fields {
		ff, err := w.CreateFormField(f.name)
		if err != nil {
			return err
		}
		_, err = io.Copy(ff, strings.NewReader(f.value))
		if err != nil {
			return err
		}
	}

	err := w.Close()
	if err != nil {
		return err
	}

	reqURL := fmt.Sprintf("%s/v3/%s/messages", strings.TrimSuffix(s.settings.BaseURL, "/"), s.settings.Domain)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, &buf)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", w.FormDataContentType())
	req.SetBasicAuth("api", s.settings.APIKey.SecretValue())

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	resBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("request did not succeed %d: %v", resp.StatusCode, string(resBody))
	}

	return nil
}
