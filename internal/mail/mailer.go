// Package mail renders and delivers account and notification emails.
package mail

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"net/url"

	"go.uber.org/zap"

	"github.com/blogsphere/blogapi/pkg/config"
	"github.com/blogsphere/blogapi/pkg/logging"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:generate mockgen -source=mailer.go -destination=../mocks/mailer_mock.go -package=mocks

// Mailer sends the emails of the account and comment flows
type Mailer interface {
	SendVerification(ctx context.Context, to, token string) error
	SendPasswordReset(ctx context.Context, to, token string) error
	SendWelcome(ctx context.Context, to, firstName string) error
	SendCommentNotification(ctx context.Context, to, postTitle, commenter, postSlug string) error
}

// Message is a rendered email
type Message struct {
	From    string
	To      string
	Subject string
	HTML    string
}

// Transport delivers rendered messages
type Transport interface {
	Send(ctx context.Context, msg Message) error
}

// TemplateMailer renders the embedded templates and hands them to a Transport
type TemplateMailer struct {
	transport Transport
	from      string
	clientURL string
	templates *template.Template
}

// New builds a mailer for cfg. Without an SMTP host, messages are logged.
func New(cfg *config.MailConfig, clientURL string) (*TemplateMailer, error) {
	var transport Transport
	if cfg.Host == "" {
		logging.GetLogger().Info("SMTP not configured, emails will be logged")
		transport = &LogTransport{logger: logging.WithComponent("mail")}
	} else {
		transport = NewSMTPTransport(cfg)
	}
	from := cfg.From
	if from == "" {
		from = cfg.Username
	}
	return NewTemplateMailer(transport, from, clientURL)
}

// NewTemplateMailer creates a mailer over an explicit transport
func NewTemplateMailer(transport Transport, from, clientURL string) (*TemplateMailer, error) {
	tmpl, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse mail templates: %w", err)
	}
	return &TemplateMailer{transport: transport, from: from, clientURL: clientURL, templates: tmpl}, nil
}

func (m *TemplateMailer) link(path string, query url.Values) string {
	u := m.clientURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u
}

func (m *TemplateMailer) send(ctx context.Context, to, subject, name string, data interface{}) error {
	var body bytes.Buffer
	if err := m.templates.ExecuteTemplate(&body, name, data); err != nil {
		return fmt.Errorf("render %s: %w", name, err)
	}
	return m.transport.Send(ctx, Message{From: m.from, To: to, Subject: subject, HTML: body.String()})
}

// SendVerification mails the email verification link
func (m *TemplateMailer) SendVerification(ctx context.Context, to, token string) error {
	return m.send(ctx, to, "Verify Your Email Address", "verify.html", map[string]string{
		"URL": m.link("/verify-email", url.Values{"token": {token}}),
	})
}

// SendPasswordReset mails the password reset link
func (m *TemplateMailer) SendPasswordReset(ctx context.Context, to, token string) error {
	return m.send(ctx, to, "Password Reset Request", "reset.html", map[string]string{
		"URL": m.link("/reset-password", url.Values{"token": {token}}),
	})
}

// SendWelcome greets a user whose email was verified
func (m *TemplateMailer) SendWelcome(ctx context.Context, to, firstName string) error {
	return m.send(ctx, to, "Welcome to Our Blog Community!", "welcome.html", map[string]string{
		"FirstName": firstName,
		"URL":       m.link("/dashboard", nil),
	})
}

// SendCommentNotification tells a post author about a new comment
func (m *TemplateMailer) SendCommentNotification(ctx context.Context, to, postTitle, commenter, postSlug string) error {
	return m.send(ctx, to, fmt.Sprintf("New Comment on %q", postTitle), "comment.html", map[string]string{
		"PostTitle": postTitle,
		"Commenter": commenter,
		"URL":       m.link("/posts/"+url.PathEscape(postSlug), nil),
	})
}

// LogTransport writes messages to the log instead of sending them
type LogTransport struct {
	logger *zap.Logger
}

// NewLogTransport creates a transport that logs with logger
func NewLogTransport(logger *zap.Logger) *LogTransport {
	return &LogTransport{logger: logger}
}

// Send logs the envelope of msg
func (t *LogTransport) Send(ctx context.Context, msg Message) error {
	t.logger.Info("Email not sent, SMTP disabled",
		zap.String("to", msg.To),
		zap.String("subject", msg.Subject),
		zap.Int("bytes", len(msg.HTML)),
	)
	return nil
}
