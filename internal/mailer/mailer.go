// Package mailer sends the alarm alert email over SMTP.
package mailer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/wneessen/go-mail"

	"boxguard/internal/config"
	"boxguard/internal/model"
)

type Mailer struct {
	cfg    config.EmailConfig
	logger *slog.Logger
}

func New(cfg config.EmailConfig, logger *slog.Logger) *Mailer {
	m := &Mailer{cfg: cfg, logger: logger}
	if !m.Enabled() && logger != nil {
		logger.Warn("email alerts disabled (missing configuration)")
	}
	return m
}

func (m *Mailer) Enabled() bool {
	return m.cfg.Enabled && m.cfg.Host != "" && m.cfg.From != "" && m.cfg.To != ""
}

func (m *Mailer) SendAlert(ctx context.Context, mode model.Mode, stealth bool) error {
	if !m.Enabled() {
		return nil
	}
	msg := mail.NewMsg()
	if err := msg.From(m.cfg.From); err != nil {
		return err
	}
	if err := msg.To(m.cfg.To); err != nil {
		return err
	}
	msg.Subject("boxguard: ALARM TRIGGERED")
	msg.SetBodyString(mail.TypeTextPlain, alertBody(mode, stealth))

	opts := []mail.Option{mail.WithPort(m.cfg.Port), mail.WithTLSPolicy(mail.TLSOpportunistic)}
	if m.cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(m.cfg.Username),
			mail.WithPassword(m.cfg.Password),
		)
	}
	client, err := mail.NewClient(m.cfg.Host, opts...)
	if err != nil {
		return err
	}
	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return err
	}
	if m.logger != nil {
		m.logger.Info("alarm email sent", "to", m.cfg.To)
	}
	return nil
}

func alertBody(mode model.Mode, stealth bool) string {
	stealthState := "disabled"
	if stealth {
		stealthState = "enabled"
	}
	return fmt.Sprintf(`SECURITY ALERT - ALARM TRIGGERED

Time: %s
Mode: %s
Stealth mode: %s

An intruder has been detected by the enclosure security controller.
Photos are being captured and saved.

Please check the dashboard immediately.
`, time.Now().UTC().Format("2006-01-02 15:04:05 UTC"), mode, stealthState)
}
