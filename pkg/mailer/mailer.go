package mailer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	htmltemplate "html/template"
	"strings"

	"github.com/google/uuid"
	"github.com/wneessen/go-mail"
)

var ErrNotConfigured = errors.New("smtp credentials are not configured")

type Config struct {
	Host     string `split_words:"true" default:"smtp.gmail.com"`
	Port     int    `split_words:"true" default:"587"`
	Secure   bool   `split_words:"true" default:"false"`
	User     string `split_words:"true"`
	Pass     string `split_words:"true"`
	FromName string `split_words:"true" default:"Layerpath"`
}

func (c Config) Configured() bool {
	return strings.TrimSpace(c.User) != "" && strings.TrimSpace(c.Pass) != ""
}

// Invitation is the pre-meeting chat invite sent right after a booking.
type Invitation struct {
	To          string
	Name        string
	EventName   string
	MeetingTime string
	Link        string
}

func (inv Invitation) Subject() string {
	return "Quick Pre-Meeting Chat Before Your " + inv.EventName
}

type Mailer struct {
	cfg Config
}

func New(cfg Config) *Mailer {
	return &Mailer{cfg: cfg}
}

// SendInvitation delivers the invite and returns its Message-ID.
func (m *Mailer) SendInvitation(ctx context.Context, inv Invitation) (string, error) {
	if !m.cfg.Configured() {
		return "", ErrNotConfigured
	}

	msg, id, err := m.buildMessage(inv)
	if err != nil {
		return "", err
	}

	client, err := mail.NewClient(m.cfg.Host, m.clientOptions()...)
	if err != nil {
		return "", fmt.Errorf("smtp client: %w", err)
	}
	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return "", fmt.Errorf("smtp send: %w", err)
	}
	return id, nil
}

func (m *Mailer) clientOptions() []mail.Option {
	opts := []mail.Option{
		mail.WithPort(m.cfg.Port),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(strings.TrimSpace(m.cfg.User)),
		mail.WithPassword(m.cfg.Pass),
	}
	if m.cfg.Secure {
		opts = append(opts, mail.WithSSL())
	} else {
		opts = append(opts, mail.WithTLSPolicy(mail.TLSMandatory))
	}
	return opts
}

func (m *Mailer) buildMessage(inv Invitation) (*mail.Msg, string, error) {
	msg := mail.NewMsg()
	if err := msg.FromFormat(m.cfg.FromName, strings.TrimSpace(m.cfg.User)); err != nil {
		return nil, "", fmt.Errorf("invalid sender: %w", err)
	}
	if err := msg.To(inv.To); err != nil {
		return nil, "", fmt.Errorf("invalid recipient %q: %w", inv.To, err)
	}
	msg.Subject(inv.Subject())

	html, err := RenderHTML(inv)
	if err != nil {
		return nil, "", err
	}
	msg.SetBodyString(mail.TypeTextPlain, RenderText(inv))
	msg.AddAlternativeString(mail.TypeTextHTML, html)

	id := uuid.NewString() + "@" + m.cfg.Host
	msg.SetMessageIDWithValue(id)
	return msg, "<" + id + ">", nil
}

func RenderText(inv Invitation) string {
	return fmt.Sprintf(`Hi %s!

Thanks for booking a meeting with us at Layerpath!

Your Meeting:
%s
with Vinay (CEO)

To make the most of your time together, I'd love to learn more about your demo challenges before the meeting.

Could you spare 2-3 minutes for a quick chat?

Start Pre-Meeting Chat: %s

This will help Vinay come fully prepared to address your specific needs.

Looking forward to chatting with you!

Path AI
Layerpath`, inv.Name, inv.MeetingTime, inv.Link)
}

var htmlBody = htmltemplate.Must(htmltemplate.New("invite").Parse(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"></head>
<body style="font-family: Arial, sans-serif; line-height: 1.6; color: #333; max-width: 600px; margin: 0 auto; padding: 20px;">
  <h1 style="text-align: center;">Hi {{.Name}}!</h1>
  <div style="background: #f9f9f9; padding: 30px; border-radius: 8px;">
    <p>Thanks for booking a meeting with us at Layerpath!</p>
    <div style="background: white; padding: 20px; border-left: 4px solid #41E1C4;">
      <strong>Your Meeting:</strong><br>{{.MeetingTime}}<br>with Vinay (CEO)
    </div>
    <p>To make the most of your time together, I'd love to learn more about your demo challenges before the meeting.</p>
    <p><strong>Could you spare 2-3 minutes for a quick chat?</strong></p>
    <p>This will help Vinay come fully prepared to address your specific needs.</p>
    <div style="text-align: center;">
      <a href="{{.Link}}" style="display: inline-block; background: #41E1C4; color: white; padding: 14px 28px; text-decoration: none; border-radius: 6px; font-weight: 600;">Start Pre-Meeting Chat</a>
    </div>
  </div>
  <p style="text-align: center; color: #666;">Looking forward to chatting with you!<br><strong>Path AI</strong><br>Layerpath</p>
</body>
</html>`))

func RenderHTML(inv Invitation) (string, error) {
	var buf bytes.Buffer
	if err := htmlBody.Execute(&buf, inv); err != nil {
		return "", fmt.Errorf("render invitation html: %w", err)
	}
	return buf.String(), nil
}
