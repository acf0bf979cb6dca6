package alerts

import (
	"context"
	"fmt"
	"net"
	"net/smtp"
	"strings"
	"time"

	"github.com/rewired-gh/seismoalert/internal/models"
)

type sendMailFunc func(addr string, auth smtp.Auth, from string, to []string, msg []byte) error

// EmailNotifier mails alerts through an SMTP relay.
type EmailNotifier struct {
	addr     string
	from     string
	to       []string
	auth     smtp.Auth
	sendMail sendMailFunc
}

// NewEmailNotifier creates an email notifier. Authentication is only used
// when username is set.
func NewEmailNotifier(addr, from string, to []string, username, password string) *EmailNotifier {
	var auth smtp.Auth
	if username != "" {
		host, _, err := net.SplitHostPort(addr)
		if err != nil {
			host = addr
		}
		auth = smtp.PlainAuth("", username, password, host)
	}
	return &EmailNotifier{
		addr:     addr,
		from:     from,
		to:       to,
		auth:     auth,
		sendMail: smtp.SendMail,
	}
}

// Name implements Notifier.
func (e *EmailNotifier) Name() string { return "email" }

// Notify sends one message covering all alerts.
func (e *EmailNotifier) Notify(ctx context.Context, alerts []models.Alert) error {
	if len(alerts) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := e.sendMail(e.addr, e.auth, e.from, e.to, e.message(alerts)); err != nil {
		return fmt.Errorf("failed to send email via %s: %w", e.addr, err)
	}
	return nil
}

func (e *EmailNotifier) message(alerts []models.Alert) []byte {
	subject := "[SeismoAlert] " + alerts[0].RuleName
	if len(alerts) > 1 {
		subject = fmt.Sprintf("[SeismoAlert] %d alerts triggered", len(alerts))
	}

	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", e.from)
	fmt.Fprintf(&b, "To: %s\r\n", strings.Join(e.to, ", "))
	fmt.Fprintf(&b, "Subject: %s\r\n", subject)
	fmt.Fprintf(&b, "Date: %s\r\n", time.Now().UTC().Format(time.RFC1123Z))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n\r\n")
	for _, a := range alerts {
		fmt.Fprintf(&b, "[%s] %s\r\n", strings.ToUpper(a.Severity), a.RuleName)
		fmt.Fprintf(&b, "%s\r\n", a.Message)
		fmt.Fprintf(&b, "Events: %d, max M%.1f, triggered %s\r\n\r\n",
			a.EventCount, a.MaxMag, a.TriggeredAt.UTC().Format("2006-01-02 15:04:05 UTC"))
	}
	return []byte(b.String())
}
