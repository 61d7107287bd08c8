// Package notify renders and dispatches order notifications. Dispatch is
// best-effort by contract: every failure is returned as an error for the
// caller to observe, and nothing here panics past the package boundary.
package notify

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"

	"github.com/go-faster/errors"
	mail "github.com/wneessen/go-mail"

	"github.com/niranji/storefront-api/internal/domain/checkout"
	"github.com/niranji/storefront-api/internal/domain/order"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

// Config holds the SMTP transport settings and the fixed recipient
// addresses. Credentials are configuration; they are never logged.
type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	// From is the sender address shown on outgoing mail.
	From string
	// OperatorEmail receives the operator copy of every order.
	OperatorEmail string
	// SupportEmail is rendered into customer mail as the contact address.
	SupportEmail string
}

var _ checkout.Notifier = (*Mailer)(nil)

// Mailer sends role-specific order emails over SMTP.
type Mailer struct {
	client *mail.Client
	cfg    Config
	tmpl   *template.Template
}

// NewMailer parses the embedded templates and prepares the SMTP client.
// No connection is made until the first Notify call.
func NewMailer(cfg Config) (*Mailer, error) {
	tmpl, err := template.New("notify").
		Funcs(template.FuncMap{
			"add": func(a, b int) int { return a + b },
		}).
		ParseFS(templateFS, "templates/*.tmpl")
	if err != nil {
		return nil, errors.Wrap(err, "parse templates")
	}

	opts := []mail.Option{
		mail.WithPort(cfg.Port),
		mail.WithTLSPolicy(mail.TLSOpportunistic),
	}
	// Credential-less transport is a local mail sink; skip auth entirely.
	if cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.Username),
			mail.WithPassword(cfg.Password),
		)
	}

	client, err := mail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, errors.Wrap(err, "create smtp client")
	}

	return &Mailer{client: client, cfg: cfg, tmpl: tmpl}, nil
}

// Notify renders the role-specific document from the order snapshot and
// dispatches it. The context deadline bounds the SMTP exchange.
func (m *Mailer) Notify(ctx context.Context, role checkout.Role, o *order.Order) (err error) {
	// Rendering works off a snapshot with possibly-blank fields; a template
	// bug must surface as a NotificationFailure, not a crash.
	defer func() {
		if rec := recover(); rec != nil {
			err = errors.Errorf("notify %s: panic: %v", role, rec)
		}
	}()

	recipient, subject, body, err := m.render(role, o)
	if err != nil {
		return err
	}

	msg := mail.NewMsg()
	if err := msg.FromFormat("Niranji", m.cfg.From); err != nil {
		return errors.Wrap(err, "set from")
	}
	if err := msg.To(recipient); err != nil {
		return errors.Wrap(err, "set recipient")
	}
	msg.Subject(subject)
	msg.SetBodyString(mail.TypeTextHTML, body)

	if err := m.client.DialAndSendWithContext(ctx, msg); err != nil {
		return errors.Wrapf(err, "send %s notification", role)
	}
	return nil
}

// render produces the recipient, subject, and HTML body for a role.
func (m *Mailer) render(role checkout.Role, o *order.Order) (recipient, subject, body string, err error) {
	var tmplName string
	switch role {
	case checkout.RoleCustomer:
		recipient = o.Email
		subject = fmt.Sprintf("Order Confirmation - %s", o.OrderID)
		tmplName = "customer.html.tmpl"
	case checkout.RoleOperator:
		recipient = m.cfg.OperatorEmail
		subject = fmt.Sprintf("New Order Received: %s", o.OrderID)
		tmplName = "operator.html.tmpl"
	default:
		return "", "", "", errors.Errorf("unknown notification role %q", role)
	}
	if recipient == "" {
		return "", "", "", errors.Errorf("notify %s: no recipient address", role)
	}

	var buf bytes.Buffer
	data := struct {
		Order        *order.Order
		SupportEmail string
	}{Order: o, SupportEmail: m.cfg.SupportEmail}
	if err := m.tmpl.ExecuteTemplate(&buf, tmplName, data); err != nil {
		return "", "", "", errors.Wrapf(err, "render %s notification", role)
	}
	return recipient, subject, buf.String(), nil
}
