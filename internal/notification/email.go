// Package notification contains the outbound alert sinks: SMTP email and
// MQTT pub/sub. Both are best-effort; failures are logged by the caller
// and never retried.
package notification

import (
	"bytes"
	"fmt"
	"net/smtp"
	"text/template"

	"go.uber.org/zap"

	"github.com/mikeyg42/sentinel/internal/alert"
	"github.com/mikeyg42/sentinel/internal/appstate"
	"github.com/mikeyg42/sentinel/internal/config"
)

const defaultEmailTemplate = `Security Alert Details:
-----------------------
Timestamp:  {{.Timestamp}}
Camera:     {{.CameraID}}
Type:       {{.Type}}
Class:      {{.Class}}
Confidence: {{printf "%.2f" .Confidence}}
{{if .Snapshot}}Snapshot:   {{.Snapshot}}
{{end}}
Check the dashboard for more details.`

// EmailNotifier delivers alert records over SMTP. The recipient is read
// from shared state at send time, so whoever the control surface last set
// receives the mail. No recipient or disabled mail is a silent no-op.
type EmailNotifier struct {
	cfg      config.MailConfig
	state    *appstate.State
	tmpl     *template.Template
	logger   *zap.Logger
	sendMail func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func NewEmailNotifier(cfg config.MailConfig, state *appstate.State, logger *zap.Logger) (*EmailNotifier, error) {
	tmpl, err := template.New("email").Parse(defaultEmailTemplate)
	if err != nil {
		return nil, fmt.Errorf("parse email template: %w", err)
	}
	return &EmailNotifier{
		cfg:      cfg,
		state:    state,
		tmpl:     tmpl,
		logger:   logger.Named("email"),
		sendMail: smtp.SendMail,
	}, nil
}

// Notify implements alert.Notifier.
func (n *EmailNotifier) Notify(record alert.Record) error {
	recipient := n.state.Recipient()
	if !n.cfg.Enabled || recipient == "" {
		return nil
	}
	if n.cfg.Username == "" || n.cfg.Password == "" {
		return fmt.Errorf("mail enabled but username or password not configured")
	}

	var body bytes.Buffer
	if err := n.tmpl.Execute(&body, record); err != nil {
		return fmt.Errorf("execute email template: %w", err)
	}

	subject := fmt.Sprintf("Security Alert: %s - %s detected", record.Type, record.Class)
	msg := []byte("To: " + recipient + "\r\n" +
		"From: " + n.cfg.Sender + "\r\n" +
		"Subject: " + subject + "\r\n" +
		"\r\n" +
		body.String() + "\r\n")

	addr := fmt.Sprintf("%s:%d", n.cfg.Server, n.cfg.Port)
	auth := smtp.PlainAuth("", n.cfg.Username, n.cfg.Password, n.cfg.Server)
	if err := n.sendMail(addr, auth, n.cfg.Sender, []string{recipient}, msg); err != nil {
		return fmt.Errorf("send alert email: %w", err)
	}

	n.logger.Info("alert email sent",
		zap.String("to", recipient),
		zap.String("alert_id", record.ID))
	return nil
}
