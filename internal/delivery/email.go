package delivery

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net/smtp"
	"net/textproto"
	"text/template"

	"github.com/solewatch/releasecore/internal/config"
	"github.com/solewatch/releasecore/internal/schema"
)

// subjectTemplate renders spec.md §6's fixed subject line:
// "<status_to>: <name> (<brand>)".
var subjectTemplate = template.Must(template.New("subject").Parse(`{{.StatusTo}}: {{.Name}} ({{.Brand}})`))

var bodyTemplate = template.Must(template.New("body").Parse(
	`{{.Name}} ({{.Brand}}) is now {{.StatusTo}}.
{{if .PriceTo}}Price: {{.PriceTo}} {{end}}
{{if .URL}}{{.URL}}{{end}}
`))

// Mailer is the narrow hand-off port to an external mailer (spec.md
// §4.10: "Email: hand off to an external mailer"). SMTPMailer implements
// it against a real SMTP relay; LoggingMailer is the no-op fallback used
// when no SMTP credentials are configured.
type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}

// SMTPMailer sends mail over net/smtp. No third-party mail library
// appears anywhere in the retrieved corpus, so this is the one
// deliberately stdlib-backed transport in the module; see DESIGN.md.
type SMTPMailer struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// NewSMTPMailer builds a mailer from channel credentials (spec.md §6:
// "Channel webhook addresses and API credentials are read from the
// environment and never logged").
func NewSMTPMailer(creds config.ChannelCredentials) *SMTPMailer {
	return &SMTPMailer{
		Host:     creds.SMTPHost,
		Port:     creds.SMTPPort,
		Username: creds.SMTPUsername,
		Password: creds.SMTPPassword,
		From:     creds.SMTPFrom,
	}
}

func (m *SMTPMailer) Send(_ context.Context, to, subject, body string) error {
	addr := fmt.Sprintf("%s:%d", m.Host, m.Port)
	auth := smtp.PlainAuth("", m.Username, m.Password, m.Host)
	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\nContent-Type: text/plain; charset=UTF-8\r\n\r\n%s",
		m.From, to, subject, body)

	if m.Port == 465 {
		return m.sendTLS(addr, auth, to, msg)
	}
	return smtp.SendMail(addr, auth, m.From, []string{to}, []byte(msg))
}

func (m *SMTPMailer) sendTLS(addr string, auth smtp.Auth, to, msg string) error {
	conn, err := tls.Dial("tcp", addr, &tls.Config{ServerName: m.Host, MinVersion: tls.VersionTLS12})
	if err != nil {
		return fmt.Errorf("smtp tls dial: %w", err)
	}
	defer conn.Close()

	client, err := smtp.NewClient(conn, m.Host)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}
	defer client.Close()

	if auth != nil {
		if err := client.Auth(auth); err != nil {
			return fmt.Errorf("smtp auth: %w", err)
		}
	}
	if err := client.Mail(m.From); err != nil {
		return err
	}
	if err := client.Rcpt(to); err != nil {
		return err
	}
	w, err := client.Data()
	if err != nil {
		return err
	}
	defer w.Close()
	_, err = w.Write([]byte(msg))
	return err
}

// LoggingMailer records the rendered email instead of sending it, used
// when no SMTP credentials are configured.
type LoggingMailer struct {
	Sent []struct {
		To, Subject, Body string
	}
}

func (m *LoggingMailer) Send(_ context.Context, to, subject, body string) error {
	m.Sent = append(m.Sent, struct{ To, Subject, Body string }{to, subject, body})
	return nil
}

// EmailTransport adapts a Mailer to the Transport interface, rendering
// the subject/body from a DeliveryTask's payload.
type EmailTransport struct {
	Mailer Mailer
}

func (t *EmailTransport) Send(ctx context.Context, task schema.DeliveryTask) Result {
	subject, body, err := render(task)
	if err != nil {
		return Result{Outcome: OutcomePermanent, Reason: "render_error"}
	}
	if err := t.Mailer.Send(ctx, task.Channel.Address, subject, body); err != nil {
		var protoErr *textproto.Error
		if errors.As(err, &protoErr) && protoErr.Code >= 500 && protoErr.Code < 600 {
			return Result{Outcome: OutcomeRetryable} // 5xx: network/relay error, per spec.md §4.10
		}
		if errors.As(err, &protoErr) && protoErr.Code >= 400 && protoErr.Code < 500 {
			return Result{Outcome: OutcomePermanent, Reason: "smtp_rejected"}
		}
		return Result{Outcome: OutcomeRetryable}
	}
	return Result{Outcome: OutcomeSent}
}

func render(task schema.DeliveryTask) (subject, body string, err error) {
	var subjBuf, bodyBuf bytes.Buffer
	if err := subjectTemplate.Execute(&subjBuf, task.Payload); err != nil {
		return "", "", err
	}
	if err := bodyTemplate.Execute(&bodyBuf, task.Payload); err != nil {
		return "", "", err
	}
	return subjBuf.String(), bodyBuf.String(), nil
}
