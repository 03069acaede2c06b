package dispatch

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"

	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/edgard/herald/internal/store"
)

// subjectPrefix marks a leading subject line in an email body.
const subjectPrefix = "Subject: "

// WithSubject prepends a subject line that EmailSender lifts into the
// message subject. An empty subject leaves body unchanged.
func WithSubject(subject, body string) string {
	subject = strings.TrimSpace(subject)
	if subject == "" {
		return body
	}
	return subjectPrefix + subject + "\n\n" + body
}

func splitSubject(body string) (subject, rest string) {
	first, rest, ok := strings.Cut(body, "\n")
	if !ok || !strings.HasPrefix(first, subjectPrefix) {
		return "", body
	}
	return strings.TrimSpace(strings.TrimPrefix(first, subjectPrefix)), strings.TrimLeft(rest, "\n")
}

// MailClient is the subset of *sendgrid.Client used to deliver mail.
type MailClient interface {
	SendWithContext(ctx context.Context, email *mail.SGMailV3) (*rest.Response, error)
}

// EmailSender delivers messages as single-recipient SendGrid emails.
type EmailSender struct {
	client    MailClient
	fromEmail string
	fromName  string
	subject   string
}

// NewEmailSender creates a sender backed by the SendGrid API.
func NewEmailSender(apiKey, fromEmail, fromName, subject string) *EmailSender {
	return NewEmailSenderWithClient(sendgrid.NewSendClient(apiKey), fromEmail, fromName, subject)
}

// NewEmailSenderWithClient creates a sender around an existing mail client.
func NewEmailSenderWithClient(client MailClient, fromEmail, fromName, subject string) *EmailSender {
	if subject == "" {
		subject = "Message from " + fromName
	}
	return &EmailSender{
		client:    client,
		fromEmail: fromEmail,
		fromName:  fromName,
		subject:   subject,
	}
}

// Send implements Sender.
func (s *EmailSender) Send(ctx context.Context, recipient store.Recipient, body string) (string, error) {
	if s.fromEmail == "" {
		return "", errors.New("sender address is not configured")
	}
	if !strings.Contains(recipient.Email, "@") {
		return "", fmt.Errorf("invalid email address %q", recipient.Email)
	}

	subject, body := splitSubject(body)
	if subject == "" {
		subject = s.subject
	}

	from := mail.NewEmail(s.fromName, s.fromEmail)
	to := mail.NewEmail(recipient.Name, recipient.Email)
	htmlContent := "<p>" + strings.ReplaceAll(html.EscapeString(body), "\n", "<br>") + "</p>"
	message := mail.NewSingleEmail(from, subject, to, body, htmlContent)

	resp, err := s.client.SendWithContext(ctx, message)
	if err != nil {
		return "", err
	}
	if resp != nil && resp.StatusCode >= 300 {
		return "", fmt.Errorf("sendgrid returned %d: %s", resp.StatusCode, resp.Body)
	}
	return "Email sent.", nil
}
