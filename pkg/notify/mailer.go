package notify

import (
	"bytes"
	"context"
	"fmt"
	"mime"
	"mime/multipart"
	"net/smtp"
	"net/textproto"
	"strconv"
	"time"
)

type MailConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string
	// AdminAddress receives admin-audience notifications.
	AdminAddress string
}

// Enabled reports whether enough is configured to send mail.
func (c MailConfig) Enabled() bool { return c.Host != "" && c.From != "" }

type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// Mailer sends notifications as multipart HTML/text email over SMTP.
type Mailer struct {
	cfg      MailConfig
	renderer *Renderer
	send     sendFunc
}

func NewMailer(cfg MailConfig, r *Renderer) *Mailer {
	if cfg.Port == 0 {
		cfg.Port = 587
	}
	return &Mailer{cfg: cfg, renderer: r, send: smtp.SendMail}
}

func (m *Mailer) recipient(n Notification) string {
	if n.Audience == AudienceAdmin {
		return m.cfg.AdminAddress
	}
	return n.To
}

func (m *Mailer) Notify(ctx context.Context, n Notification) error {
	to := m.recipient(n)
	if to == "" {
		return nil
	}
	subject, html, text, err := m.renderer.Render(n)
	if err != nil {
		return err
	}
	msg, err := buildMessage(m.cfg.From, to, subject, html, text, time.Now())
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	var auth smtp.Auth
	if m.cfg.User != "" {
		auth = smtp.PlainAuth("", m.cfg.User, m.cfg.Password, m.cfg.Host)
	}
	addr := m.cfg.Host + ":" + strconv.Itoa(m.cfg.Port)
	if err := m.send(addr, auth, m.cfg.From, []string{to}, msg); err != nil {
		return fmt.Errorf("send mail to %s: %w", to, err)
	}
	return nil
}

func buildMessage(from, to, subject, html, text string, now time.Time) ([]byte, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for _, part := range []struct{ ctype, content string }{
		{"text/plain; charset=UTF-8", text},
		{"text/html; charset=UTF-8", html},
	} {
		w, err := mw.CreatePart(textproto.MIMEHeader{"Content-Type": {part.ctype}})
		if err != nil {
			return nil, err
		}
		if _, err := w.Write([]byte(part.content)); err != nil {
			return nil, err
		}
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	var msg bytes.Buffer
	fmt.Fprintf(&msg, "From: %s\r\n", from)
	fmt.Fprintf(&msg, "To: %s\r\n", to)
	fmt.Fprintf(&msg, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", subject))
	fmt.Fprintf(&msg, "Date: %s\r\n", now.Format(time.RFC1123Z))
	msg.WriteString("MIME-Version: 1.0\r\n")
	fmt.Fprintf(&msg, "Content-Type: multipart/alternative; boundary=%s\r\n\r\n", mw.Boundary())
	msg.Write(body.Bytes())
	return msg.Bytes(), nil
}
