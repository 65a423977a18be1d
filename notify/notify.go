// Package notify delivers the one-time new-account notification. It
// implements the auth.Notifier port with a Postmark-backed sender for
// production, a filesystem sender for development, and a no-op.
package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrymomot/loginkit/auth"
)

// Config holds notification settings. The Postmark tokens are optional so
// development environments can run the dev or noop sender instead.
type Config struct {
	PostmarkServerToken  string `env:"POSTMARK_SERVER_TOKEN"`
	PostmarkAccountToken string `env:"POSTMARK_ACCOUNT_TOKEN"`
	SenderEmail          string `env:"NOTIFY_SENDER_EMAIL"`
	SiteName             string `env:"NOTIFY_SITE_NAME" envDefault:"our site"`
	LoginURL             string `env:"NOTIFY_LOGIN_URL"`
}

var (
	ErrInvalidConfig = errors.New("notify: invalid config")
	ErrDeliveryFail  = errors.New("notify: failed to deliver notification")
)

// Noop discards every notification.
type Noop struct{}

func (Noop) AccountCreated(context.Context, *auth.Account) error { return nil }

// welcomeEmail renders the new-account message body.
func welcomeEmail(cfg Config, account *auth.Account) (subject, html string) {
	subject = fmt.Sprintf("Welcome to %s", cfg.SiteName)
	html = fmt.Sprintf(
		`<p>Hi %s,</p>
<p>Your account on %s is ready. Your username is <strong>%s</strong>.</p>
<p><a href="%s">Log in</a> to get started.</p>`,
		account.DisplayName, cfg.SiteName, account.Username, cfg.LoginURL,
	)
	return subject, html
}
