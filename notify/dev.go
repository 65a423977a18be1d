package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dmitrymomot/loginkit/auth"
)

// DevNotifier writes notifications to disk instead of sending them, for
// local development.
type DevNotifier struct {
	dir string
	cfg Config
}

// NewDevNotifier creates a filesystem-backed notifier. The directory is
// created on first delivery.
func NewDevNotifier(dir string, cfg Config) *DevNotifier {
	return &DevNotifier{dir: dir, cfg: cfg}
}

type devMetadata struct {
	Timestamp string `json:"timestamp"`
	SendTo    string `json:"send_to"`
	Subject   string `json:"subject"`
}

// AccountCreated implements auth.Notifier by saving the rendered message as
// HTML plus a JSON metadata file.
func (d *DevNotifier) AccountCreated(_ context.Context, account *auth.Account) error {
	if err := os.MkdirAll(d.dir, 0o755); err != nil {
		return fmt.Errorf("%w: create directory: %v", ErrDeliveryFail, err)
	}

	subject, html := welcomeEmail(d.cfg, account)
	now := time.Now()
	base := fmt.Sprintf("%s_account_created_%s", now.Format("2006_01_02_150405"), account.Username)

	if err := os.WriteFile(filepath.Join(d.dir, base+".html"), []byte(html), 0o644); err != nil {
		return fmt.Errorf("%w: write HTML file: %v", ErrDeliveryFail, err)
	}

	meta, err := json.MarshalIndent(devMetadata{
		Timestamp: now.Format(time.RFC3339),
		SendTo:    account.Email,
		Subject:   subject,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: marshal metadata: %v", ErrDeliveryFail, err)
	}
	if err := os.WriteFile(filepath.Join(d.dir, base+".json"), meta, 0o644); err != nil {
		return fmt.Errorf("%w: write JSON file: %v", ErrDeliveryFail, err)
	}
	return nil
}
