package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/loginkit/pkg/captcha"
	"github.com/dmitrymomot/loginkit/pkg/clientip"
	"github.com/dmitrymomot/loginkit/pkg/formtoken"
	"github.com/dmitrymomot/loginkit/pkg/googleid"
	"github.com/dmitrymomot/loginkit/pkg/lockout"
	"github.com/dmitrymomot/loginkit/pkg/logger"
	"github.com/dmitrymomot/loginkit/pkg/passcheck"
	"github.com/dmitrymomot/loginkit/pkg/redirect"
	"github.com/dmitrymomot/loginkit/pkg/sanitizer"
	"github.com/dmitrymomot/loginkit/pkg/securitylog"
	"github.com/dmitrymomot/loginkit/pkg/validator"
)

// User-facing notice messages. Failure notices stay deliberately vague so
// the form cannot be used as an account oracle.
const (
	msgSessionExpired      = "Your session has expired. Please try again."
	msgSecurityCheck       = "Security check failed. Please try again."
	msgCaptchaFailed       = "Captcha verification failed. Please try again."
	msgInvalidCredentials  = "Invalid username or password."
	msgGenericError        = "Something went wrong. Please try again."
	msgRegistrationOff     = "Registration is currently disabled."
	msgInvalidEmail        = "Please enter a valid email address."
	msgEmailTaken          = "An account with this email address already exists."
	msgPasswordMismatch    = "Passwords do not match."
	msgResetLinkSent       = "If an account exists for that address, a password reset link has been sent."
	msgResetKeyInvalid     = "This password reset link is invalid or has expired."
	msgPasswordResetDone   = "Your password has been reset. Please log in."
	msgGoogleVerifyFailed  = "Google sign-in could not be verified."
	msgGoogleConflict      = "This email address is linked to a different Google account."
	msgGoogleUnverified    = "Your Google account email address is not verified."
	lockoutNoticeTemplate  = "Too many failed attempts. Please try again in %d minutes."
)

// OrchestratorConfig controls flow policy.
type OrchestratorConfig struct {
	RegistrationEnabled bool   `env:"REGISTRATION_ENABLED" envDefault:"true"`
	GenericErrors       bool   `env:"GENERIC_LOGIN_ERRORS" envDefault:"false"`
	LogoutRedirectPath  string `env:"LOGOUT_REDIRECT_PATH" envDefault:"/"`
}

// Dependencies lists everything the orchestrator consumes. The first block
// is owned by this module; the second is provided by the host application.
type Dependencies struct {
	Lockout    *lockout.Tracker
	Audit      *securitylog.Recorder
	Tokens     *formtoken.Issuer
	Captcha    *captcha.Verifier
	Google     *googleid.Verifier
	Reconciler *Reconciler
	Passwords  *passcheck.Evaluator
	Redirects  *redirect.Resolver

	Store       AccountStore
	Credentials CredentialVerifier
	Sessions    SessionManager
	ResetInit   ResetInitiator
	ResetFin    ResetFinalizer
	Notifier    Notifier
}

func (d Dependencies) validate() error {
	switch {
	case d.Lockout == nil, d.Audit == nil, d.Tokens == nil, d.Captcha == nil,
		d.Google == nil, d.Reconciler == nil, d.Passwords == nil, d.Redirects == nil:
		return errors.New("auth: orchestrator requires all module components")
	case d.Store == nil, d.Credentials == nil, d.Sessions == nil,
		d.ResetInit == nil, d.ResetFin == nil, d.Notifier == nil:
		return errors.New("auth: orchestrator requires all host primitives")
	}
	return nil
}

// Orchestrator drives one submission through defenses, rate limiting,
// credential or federated verification, and auditing, ending in a single
// notice and, on success, a redirect.
type Orchestrator struct {
	cfg  OrchestratorConfig
	deps Dependencies
	log  *slog.Logger
	now  func() time.Time
}

// OrchestratorOption configures an Orchestrator.
type OrchestratorOption func(*Orchestrator)

// WithOrchestratorLogger sets the logger. Defaults to a discard logger.
func WithOrchestratorLogger(l *slog.Logger) OrchestratorOption {
	return func(o *Orchestrator) { o.log = l }
}

// NewOrchestrator builds an Orchestrator.
func NewOrchestrator(cfg OrchestratorConfig, deps Dependencies, opts ...OrchestratorOption) (*Orchestrator, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}

	o := &Orchestrator{
		cfg:  cfg,
		deps: deps,
		log:  logger.Noop(),
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

// Process dispatches a submission by form action.
func (o *Orchestrator) Process(ctx context.Context, action string, sub Submission) Result {
	switch action {
	case ActionLogin:
		return o.Login(ctx, sub)
	case ActionRegister:
		return o.Register(ctx, sub)
	case ActionLostPassword:
		return o.LostPassword(ctx, sub)
	case ActionResetPass:
		return o.ResetPass(ctx, sub)
	case ActionGoogle:
		return o.Google(ctx, sub)
	default:
		return errorResult(ActionLogin, msgGenericError)
	}
}

// FormToken mints the anti-forgery token embedded in the named form.
func (o *Orchestrator) FormToken(action string) (string, error) {
	return o.deps.Tokens.Generate(action)
}

// CheckFormToken verifies a minted token against its action scope.
func (o *Orchestrator) CheckFormToken(token, action string) error {
	return o.deps.Tokens.Verify(token, action)
}

// LogoutRedirect returns the post-logout destination.
func (o *Orchestrator) LogoutRedirect() string {
	return o.deps.Redirects.Resolve("logout", o.cfg.LogoutRedirectPath)
}

// defend runs the shared submission defenses: anti-forgery token, bot trap,
// and challenge verification. All of them must pass before any credential
// logic runs.
func (o *Orchestrator) defend(ctx context.Context, action string, sub Submission) (Result, bool) {
	if err := o.deps.Tokens.Verify(sub.FormToken, action); err != nil {
		return errorResult(action, msgSessionExpired), false
	}
	if sub.Honeypot != "" {
		o.deps.Audit.Record(ctx, securitylog.EventSuspiciousActivity, "bot trap field filled", map[string]any{
			"action": action,
		})
		return errorResult(action, msgSecurityCheck), false
	}
	if err := o.deps.Captcha.Verify(ctx, sub.CaptchaResponse, clientip.GetIPFromContext(ctx)); err != nil {
		return errorResult(action, msgCaptchaFailed), false
	}
	return Result{}, true
}

// Login processes a native-credential login. The lockout check runs before
// the credential check so a locked address learns nothing about accounts.
func (o *Orchestrator) Login(ctx context.Context, sub Submission) Result {
	if res, ok := o.defend(ctx, ActionLogin, sub); !ok {
		return res
	}

	addr := o.clientAddr(ctx)
	status, err := o.deps.Lockout.CheckLock(ctx, addr)
	if err != nil {
		o.log.ErrorContext(ctx, "lockout check failed",
			logger.Component("auth"), logger.Action(ActionLogin), logger.Error(err))
	}
	if status.Locked {
		o.deps.Audit.Record(ctx, securitylog.EventLoginBlocked, "login blocked by lockout", map[string]any{
			"remaining_minutes": status.RemainingMinutes(),
		})
		return errorResult(ActionLogin, fmt.Sprintf(lockoutNoticeTemplate, status.RemainingMinutes()))
	}

	account, err := o.deps.Credentials.Verify(ctx, sub.Login, sub.Password)
	if err != nil {
		st, rerr := o.deps.Lockout.RecordFailure(ctx, addr)
		if rerr != nil {
			o.log.ErrorContext(ctx, "failed to record login failure",
				logger.Component("auth"), logger.Error(rerr))
		}
		o.deps.Audit.Record(ctx, securitylog.EventLoginFailed, "invalid credentials", map[string]any{
			"login": sub.Login,
		})
		if st.Locked {
			o.deps.Audit.Record(ctx, securitylog.EventAccountLocked, "lockout engaged", map[string]any{
				"duration_minutes": st.RemainingMinutes(),
			})
		}
		return errorResult(ActionLogin, o.credentialFailureMessage())
	}

	if err := o.deps.Lockout.Clear(ctx, addr); err != nil {
		o.log.ErrorContext(ctx, "failed to clear lockout counter",
			logger.Component("auth"), logger.Error(err))
	}
	o.deps.Audit.Record(ctx, securitylog.EventLoginSuccess, "login", map[string]any{
		"account_id": account.ID.String(),
	})
	o.touchLastLogin(ctx, account, MethodPassword)

	if err := o.deps.Sessions.Establish(ctx, account.ID); err != nil {
		o.log.ErrorContext(ctx, "failed to establish session",
			logger.Component("auth"), logger.AccountID(account.ID.String()), logger.Error(err))
		return errorResult(ActionLogin, msgGenericError)
	}
	return Result{Success: true, Redirect: o.deps.Redirects.Resolve(ActionLogin, sub.RedirectTo)}
}

// Register processes a native account registration.
func (o *Orchestrator) Register(ctx context.Context, sub Submission) Result {
	if res, ok := o.defend(ctx, ActionRegister, sub); !ok {
		return res
	}
	if !o.cfg.RegistrationEnabled {
		return errorResult(ActionRegister, msgRegistrationOff)
	}

	email := sanitizer.NormalizeEmail(sub.Email)
	if err := validator.Apply(
		validator.Required("email", email),
		validator.ValidEmail("email", email),
	); err != nil {
		return errorResult(ActionRegister, msgInvalidEmail)
	}

	switch _, err := o.deps.Store.FindByEmail(ctx, email); {
	case err == nil:
		if o.cfg.GenericErrors {
			return errorResult(ActionRegister, msgGenericError)
		}
		return errorResult(ActionRegister, msgEmailTaken)
	case !errors.Is(err, ErrAccountNotFound):
		o.log.ErrorContext(ctx, "account lookup failed",
			logger.Component("auth"), logger.Action(ActionRegister), logger.Error(err))
		return errorResult(ActionRegister, msgGenericError)
	}

	if assessment := o.deps.Passwords.Assess(sub.Password); !assessment.Valid {
		return errorResult(ActionRegister, assessment.Message)
	}

	username, err := uniqueUsername(ctx, o.deps.Store, email)
	if err != nil {
		o.log.ErrorContext(ctx, "username provisioning failed",
			logger.Component("auth"), logger.Error(err))
		return errorResult(ActionRegister, msgGenericError)
	}

	account := &Account{
		ID:              uuid.New(),
		Email:           email,
		Username:        username,
		DisplayName:     username,
		LastLoginMethod: MethodPassword,
		LastLoginAt:     o.now(),
		CreatedAt:       o.now(),
		NewAccount:      true,
	}
	if err := o.deps.Store.Create(ctx, account, sub.Password); err != nil {
		o.log.ErrorContext(ctx, "account creation failed",
			logger.Component("auth"), logger.Error(err))
		return errorResult(ActionRegister, msgGenericError)
	}

	o.notifyCreated(ctx, account)
	o.deps.Audit.Record(ctx, securitylog.EventUserRegistered, "account registered", map[string]any{
		"account_id": account.ID.String(),
	})

	if err := o.deps.Sessions.Establish(ctx, account.ID); err != nil {
		o.log.ErrorContext(ctx, "failed to establish session",
			logger.Component("auth"), logger.AccountID(account.ID.String()), logger.Error(err))
		return errorResult(ActionLogin, msgGenericError)
	}
	return Result{Success: true, Redirect: o.deps.Redirects.Resolve(ActionRegister, sub.RedirectTo)}
}

// LostPassword delegates to the host's reset initiation. The notice is
// uniform regardless of whether the login exists, so the form cannot be
// used to enumerate accounts.
func (o *Orchestrator) LostPassword(ctx context.Context, sub Submission) Result {
	if res, ok := o.defend(ctx, ActionLostPassword, sub); !ok {
		return res
	}

	if err := o.deps.ResetInit.InitiateReset(ctx, sub.Login); err != nil {
		o.log.DebugContext(ctx, "reset initiation failed",
			logger.Component("auth"), logger.Error(err))
	}
	o.deps.Audit.Record(ctx, securitylog.EventPasswordResetRequested, "password reset requested", nil)

	return Result{
		Success: true,
		View:    ActionLostPassword,
		Notice:  Notice{Kind: NoticeSuccess, Message: msgResetLinkSent},
	}
}

// ResetPass applies a new password against a host-validated reset key and
// hands the view back to the login form.
func (o *Orchestrator) ResetPass(ctx context.Context, sub Submission) Result {
	if res, ok := o.defend(ctx, ActionResetPass, sub); !ok {
		return res
	}

	if sub.Password != sub.PasswordConfirm {
		return errorResult(ActionResetPass, msgPasswordMismatch)
	}
	if assessment := o.deps.Passwords.Assess(sub.Password); !assessment.Valid {
		return errorResult(ActionResetPass, assessment.Message)
	}

	if err := o.deps.ResetFin.FinalizeReset(ctx, sub.Login, sub.ResetKey, sub.Password); err != nil {
		if errors.Is(err, ErrInvalidResetKey) {
			return errorResult(ActionResetPass, msgResetKeyInvalid)
		}
		o.log.ErrorContext(ctx, "reset finalization failed",
			logger.Component("auth"), logger.Error(err))
		return errorResult(ActionResetPass, msgGenericError)
	}

	o.deps.Audit.Record(ctx, securitylog.EventPasswordResetCompleted, "password reset completed", nil)
	return Result{
		Success: true,
		View:    ActionLogin,
		Notice:  Notice{Kind: NoticeSuccess, Message: msgPasswordResetDone},
	}
}

// Google processes a federated sign-in: verify the assertion, reconcile it
// to a local account, establish the session.
func (o *Orchestrator) Google(ctx context.Context, sub Submission) Result {
	if err := o.deps.Tokens.Verify(sub.FormToken, ActionGoogle); err != nil {
		return errorResult(ActionLogin, msgSessionExpired)
	}

	assertion, err := o.deps.Google.Verify(ctx, sub.IDToken)
	if err != nil {
		o.deps.Audit.Record(ctx, securitylog.EventGoogleLoginFailed, "token verification failed", map[string]any{
			"token": googleid.Truncate(sub.IDToken),
		})
		return errorResult(ActionLogin, msgGoogleVerifyFailed)
	}

	account, err := o.deps.Reconciler.Reconcile(ctx, assertion)
	if err != nil {
		switch {
		case errors.Is(err, ErrRegistrationDisabled):
			return errorResult(ActionLogin, msgRegistrationOff)
		case errors.Is(err, ErrIdentityConflict):
			return errorResult(ActionLogin, msgGoogleConflict)
		case errors.Is(err, ErrEmailUnverified):
			return errorResult(ActionLogin, msgGoogleUnverified)
		default:
			o.log.ErrorContext(ctx, "reconciliation failed",
				logger.Component("auth"), logger.Error(err))
			return errorResult(ActionLogin, msgGenericError)
		}
	}

	if account.NewAccount {
		o.notifyCreated(ctx, account)
	}
	if err := o.deps.Sessions.Establish(ctx, account.ID); err != nil {
		o.log.ErrorContext(ctx, "failed to establish session",
			logger.Component("auth"), logger.AccountID(account.ID.String()), logger.Error(err))
		return errorResult(ActionLogin, msgGenericError)
	}
	return Result{Success: true, Redirect: o.deps.Redirects.Resolve(ActionLogin, sub.RedirectTo)}
}

func (o *Orchestrator) credentialFailureMessage() string {
	if o.cfg.GenericErrors {
		return msgGenericError
	}
	return msgInvalidCredentials
}

func (o *Orchestrator) clientAddr(ctx context.Context) string {
	if addr := clientip.GetIPFromContext(ctx); addr != "" {
		return addr
	}
	return clientip.Unknown
}

// touchLastLogin updates login metadata best-effort; a failed update must
// not fail the login.
func (o *Orchestrator) touchLastLogin(ctx context.Context, account *Account, method string) {
	account.LastLoginMethod = method
	account.LastLoginAt = o.now()
	if err := o.deps.Store.Update(ctx, account); err != nil {
		o.log.WarnContext(ctx, "failed to update login metadata",
			logger.Component("auth"), logger.AccountID(account.ID.String()), logger.Error(err))
	}
}

// notifyCreated sends the one-time new-account notification best-effort.
func (o *Orchestrator) notifyCreated(ctx context.Context, account *Account) {
	if err := o.deps.Notifier.AccountCreated(ctx, account); err != nil {
		o.log.WarnContext(ctx, "new-account notification failed",
			logger.Component("auth"), logger.AccountID(account.ID.String()), logger.Error(err))
	}
}
