// Package loginkit assembles the login, registration, and federated
// sign-in flows into one unit: brute-force lockout, security event
// auditing, Google identity verification with account reconciliation,
// password strength checks, and the HTTP surface that ties them together.
//
// The host application supplies its own persistence and session primitives
// through HostPrimitives; everything else is constructed here from Config.
package loginkit

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dmitrymomot/loginkit/auth"
	"github.com/dmitrymomot/loginkit/handler"
	"github.com/dmitrymomot/loginkit/pkg/captcha"
	"github.com/dmitrymomot/loginkit/pkg/clientip"
	"github.com/dmitrymomot/loginkit/pkg/formtoken"
	"github.com/dmitrymomot/loginkit/pkg/googleid"
	"github.com/dmitrymomot/loginkit/pkg/lockout"
	"github.com/dmitrymomot/loginkit/pkg/logger"
	"github.com/dmitrymomot/loginkit/pkg/passcheck"
	"github.com/dmitrymomot/loginkit/pkg/ratelimit"
	"github.com/dmitrymomot/loginkit/pkg/redirect"
	"github.com/dmitrymomot/loginkit/pkg/securitylog"
)

// HostPrimitives are the host-side implementations the flows depend on.
// The postgres package provides ready-made Store and Credentials; the
// notify package provides Notifier implementations.
type HostPrimitives struct {
	Store       auth.AccountStore
	Credentials auth.CredentialVerifier
	Sessions    auth.SessionManager
	ResetInit   auth.ResetInitiator
	ResetFin    auth.ResetFinalizer
	Notifier    auth.Notifier
}

// Kit is the assembled module.
type Kit struct {
	Orchestrator *auth.Orchestrator
	Audit        *securitylog.Recorder
	Handler      *handler.Handler

	pruner       *securitylog.Pruner
	ownedLockout *lockout.MemoryStore
}

type options struct {
	log          *slog.Logger
	lockoutStore lockout.Store
	eventStorage securitylog.Storage
	viewStore    ratelimit.Store
	renderer     handler.Renderer
	authorizer   handler.Authorizer
}

// Option customizes the assembly.
type Option func(*options)

// WithLogger sets the operational logger for every component.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.log = l }
}

// WithLockoutStore replaces the default in-memory lockout store, e.g. with
// lockout.NewRedisStore for multi-instance deployments.
func WithLockoutStore(s lockout.Store) Option {
	return func(o *options) { o.lockoutStore = s }
}

// WithEventStorage replaces the default in-memory security event storage,
// e.g. with securitylog.NewPostgresStorage.
func WithEventStorage(s securitylog.Storage) Option {
	return func(o *options) { o.eventStorage = s }
}

// WithViewLimitStore replaces the default in-memory view rate limit store.
func WithViewLimitStore(s ratelimit.Store) Option {
	return func(o *options) { o.viewStore = s }
}

// WithRenderer sets the markup renderer for the views endpoint.
func WithRenderer(r handler.Renderer) Option {
	return func(o *options) { o.renderer = r }
}

// WithClearAuthorizer guards the security-log clear endpoint.
func WithClearAuthorizer(fn handler.Authorizer) Option {
	return func(o *options) { o.authorizer = fn }
}

// New assembles a Kit from cfg and the host primitives. The returned Kit
// owns a background retention pruner; call Close on shutdown.
func New(cfg Config, host HostPrimitives, opts ...Option) (*Kit, error) {
	o := &options{log: logger.Noop()}
	for _, opt := range opts {
		opt(o)
	}

	kit := &Kit{}
	if o.lockoutStore == nil {
		kit.ownedLockout = lockout.NewMemoryStore()
		o.lockoutStore = kit.ownedLockout
	}
	if o.eventStorage == nil {
		o.eventStorage = securitylog.NewMemoryStorage(securitylog.DefaultMemoryCapacity)
	}
	if o.viewStore == nil {
		o.viewStore = ratelimit.NewMemoryStore()
	}

	audit := securitylog.NewRecorder(o.eventStorage, cfg.SecurityLog,
		securitylog.WithLogger(o.log))
	kit.Audit = audit
	kit.pruner = securitylog.NewPruner(audit, cfg.SecurityLog.RetentionDays,
		securitylog.WithPrunerLogger(o.log))
	kit.pruner.Start()

	tracker, err := lockout.NewTracker(o.lockoutStore, cfg.Lockout, lockout.WithLogger(o.log))
	if err != nil {
		return nil, kit.closeOnError(err)
	}
	tokens, err := formtoken.NewIssuer(cfg.FormToken)
	if err != nil {
		return nil, kit.closeOnError(err)
	}
	captchaVerifier, err := captcha.NewVerifier(cfg.Captcha, captcha.WithLogger(o.log))
	if err != nil {
		return nil, kit.closeOnError(err)
	}
	googleVerifier, err := googleid.NewVerifier(cfg.Google, googleid.WithLogger(o.log))
	if err != nil {
		return nil, kit.closeOnError(err)
	}
	passwords, err := passcheck.NewEvaluator(cfg.Passwords)
	if err != nil {
		return nil, kit.closeOnError(err)
	}
	redirects, err := redirect.NewResolver(cfg.Redirects)
	if err != nil {
		return nil, kit.closeOnError(err)
	}
	viewLimiter, err := ratelimit.NewLimiter(o.viewStore, cfg.ViewLimit)
	if err != nil {
		return nil, kit.closeOnError(err)
	}

	reconciler := auth.NewReconciler(host.Store, audit, cfg.Reconciler,
		auth.WithReconcilerLogger(o.log))

	kit.Orchestrator, err = auth.NewOrchestrator(cfg.Orchestrator, auth.Dependencies{
		Lockout:     tracker,
		Audit:       audit,
		Tokens:      tokens,
		Captcha:     captchaVerifier,
		Google:      googleVerifier,
		Reconciler:  reconciler,
		Passwords:   passwords,
		Redirects:   redirects,
		Store:       host.Store,
		Credentials: host.Credentials,
		Sessions:    host.Sessions,
		ResetInit:   host.ResetInit,
		ResetFin:    host.ResetFin,
		Notifier:    host.Notifier,
	}, auth.WithOrchestratorLogger(o.log))
	if err != nil {
		return nil, kit.closeOnError(err)
	}

	handlerOpts := []handler.Option{handler.WithLogger(o.log)}
	if o.renderer != nil {
		handlerOpts = append(handlerOpts, handler.WithRenderer(o.renderer))
	}
	if o.authorizer != nil {
		handlerOpts = append(handlerOpts, handler.WithAuthorizer(o.authorizer))
	}
	if cfg.Captcha.Enabled {
		handlerOpts = append(handlerOpts, handler.WithCaptchaSiteKey(cfg.Captcha.SiteKey))
	}

	kit.Handler = handler.New(
		kit.Orchestrator, audit, viewLimiter,
		clientip.Resolver{TrustProxy: cfg.TrustProxy},
		cfg.Handler, handlerOpts...,
	)
	return kit, nil
}

// Routes returns the HTTP routes for mounting into the host's router.
func (k *Kit) Routes() chi.Router {
	return k.Handler.Routes()
}

// ServeHTTP lets the Kit be mounted directly as an http.Handler.
func (k *Kit) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	k.Handler.Routes().ServeHTTP(w, r)
}

// Close stops background work.
func (k *Kit) Close() error {
	if k.pruner != nil {
		k.pruner.Close()
	}
	if k.ownedLockout != nil {
		k.ownedLockout.Close()
	}
	return nil
}

func (k *Kit) closeOnError(err error) error {
	return errors.Join(err, k.Close())
}
