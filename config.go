package loginkit

import (
	"github.com/dmitrymomot/loginkit/auth"
	"github.com/dmitrymomot/loginkit/handler"
	"github.com/dmitrymomot/loginkit/pkg/captcha"
	"github.com/dmitrymomot/loginkit/pkg/config"
	"github.com/dmitrymomot/loginkit/pkg/formtoken"
	"github.com/dmitrymomot/loginkit/pkg/googleid"
	"github.com/dmitrymomot/loginkit/pkg/lockout"
	"github.com/dmitrymomot/loginkit/pkg/passcheck"
	"github.com/dmitrymomot/loginkit/pkg/ratelimit"
	"github.com/dmitrymomot/loginkit/pkg/redirect"
	"github.com/dmitrymomot/loginkit/pkg/securitylog"
)

// Config aggregates the settings of every component. Each section is
// loadable from the environment on its own; LoadConfig fills the whole
// tree at once.
type Config struct {
	// TrustProxy enables client address extraction from forwarding
	// headers. Enable only behind a proxy that strips inbound values.
	TrustProxy bool `env:"TRUST_PROXY" envDefault:"false"`

	Lockout      lockout.Config
	SecurityLog  securitylog.Config
	Google       googleid.Config
	Captcha      captcha.Config
	Passwords    passcheck.Config
	Redirects    redirect.Config
	FormToken    formtoken.Config
	Reconciler   auth.ReconcilerConfig
	Orchestrator auth.OrchestratorConfig
	Handler      handler.Config
	ViewLimit    ratelimit.Config
}

// LoadConfig reads the full configuration from the environment.
func LoadConfig() (Config, error) {
	var cfg Config
	if err := config.Load(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
