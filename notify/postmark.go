package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/mrz1836/postmark"

	"github.com/dmitrymomot/loginkit/auth"
)

// PostmarkNotifier sends the new-account notification through Postmark's
// transactional API.
type PostmarkNotifier struct {
	client *postmark.Client
	cfg    Config
}

// NewPostmarkNotifier creates a Postmark-backed notifier. Both tokens and a
// sender address are required so misconfiguration fails at startup instead
// of silently dropping mail.
func NewPostmarkNotifier(cfg Config) (*PostmarkNotifier, error) {
	if cfg.PostmarkServerToken == "" {
		return nil, fmt.Errorf("%w: PostmarkServerToken is required", ErrInvalidConfig)
	}
	if cfg.PostmarkAccountToken == "" {
		return nil, fmt.Errorf("%w: PostmarkAccountToken is required", ErrInvalidConfig)
	}
	if cfg.SenderEmail == "" {
		return nil, fmt.Errorf("%w: SenderEmail is required", ErrInvalidConfig)
	}

	return &PostmarkNotifier{
		client: postmark.NewClient(cfg.PostmarkServerToken, cfg.PostmarkAccountToken),
		cfg:    cfg,
	}, nil
}

// AccountCreated implements auth.Notifier.
func (n *PostmarkNotifier) AccountCreated(ctx context.Context, account *auth.Account) error {
	subject, html := welcomeEmail(n.cfg, account)

	resp, err := n.client.SendEmail(ctx, postmark.Email{
		From:       n.cfg.SenderEmail,
		To:         account.Email,
		Subject:    subject,
		Tag:        "account-created",
		HTMLBody:   html,
		TrackOpens: true,
	})
	if err != nil {
		return errors.Join(ErrDeliveryFail, err)
	}
	if resp.ErrorCode > 0 {
		return errors.Join(ErrDeliveryFail, fmt.Errorf("postmark error: %d - %s", resp.ErrorCode, resp.Message))
	}
	return nil
}
