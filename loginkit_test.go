package loginkit_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/loginkit"
	"github.com/dmitrymomot/loginkit/auth"
	"github.com/dmitrymomot/loginkit/handler"
	"github.com/dmitrymomot/loginkit/pkg/captcha"
	"github.com/dmitrymomot/loginkit/pkg/formtoken"
	"github.com/dmitrymomot/loginkit/pkg/googleid"
	"github.com/dmitrymomot/loginkit/pkg/lockout"
	"github.com/dmitrymomot/loginkit/pkg/passcheck"
	"github.com/dmitrymomot/loginkit/pkg/ratelimit"
	"github.com/dmitrymomot/loginkit/pkg/redirect"
	"github.com/dmitrymomot/loginkit/pkg/securitylog"
)

type stubStore struct{}

func (stubStore) FindByID(context.Context, uuid.UUID) (*auth.Account, error) {
	return nil, auth.ErrAccountNotFound
}

func (stubStore) FindByEmail(context.Context, string) (*auth.Account, error) {
	return nil, auth.ErrAccountNotFound
}

func (stubStore) FindByUsername(context.Context, string) (*auth.Account, error) {
	return nil, auth.ErrAccountNotFound
}

func (stubStore) Create(context.Context, *auth.Account, string) error { return nil }
func (stubStore) Update(context.Context, *auth.Account) error        { return nil }

type stubCreds struct{}

func (stubCreds) Verify(context.Context, string, string) (*auth.Account, error) {
	return nil, auth.ErrInvalidCredentials
}

type stubSessions struct{}

func (stubSessions) Establish(context.Context, uuid.UUID) error { return nil }

type stubReset struct{}

func (stubReset) InitiateReset(context.Context, string) error { return nil }

func (stubReset) FinalizeReset(context.Context, string, string, string) error { return nil }

type stubNotifier struct{}

func (stubNotifier) AccountCreated(context.Context, *auth.Account) error { return nil }

func testConfig() loginkit.Config {
	return loginkit.Config{
		Lockout:     lockout.Config{Enabled: true, MaxAttempts: 5, Window: 15 * time.Minute},
		SecurityLog: securitylog.Config{Enabled: true, HashSecret: "hash-secret", RetentionDays: 90},
		Google:      googleid.Config{ClientID: "client.apps.googleusercontent.com"},
		Captcha:     captcha.Config{},
		Passwords:   passcheck.Config{Enabled: true, MinLength: 8, MinScore: 2},
		Redirects:   redirect.Config{SiteURL: "https://example.com", DashboardPath: "/account"},
		FormToken:   formtoken.Config{Secret: "form-secret", TTL: time.Hour},
		Reconciler:  auth.ReconcilerConfig{RegistrationEnabled: true},
		Orchestrator: auth.OrchestratorConfig{
			RegistrationEnabled: true,
			LogoutRedirectPath:  "/",
		},
		Handler:   handler.Config{LoginPath: "/login"},
		ViewLimit: ratelimit.Config{Limit: 20, Window: time.Minute},
	}
}

func testHost() loginkit.HostPrimitives {
	return loginkit.HostPrimitives{
		Store:       stubStore{},
		Credentials: stubCreds{},
		Sessions:    stubSessions{},
		ResetInit:   stubReset{},
		ResetFin:    stubReset{},
		Notifier:    stubNotifier{},
	}
}

func TestNewAssemblesAndServes(t *testing.T) {
	t.Parallel()

	kit, err := loginkit.New(testConfig(), testHost())
	require.NoError(t, err)
	t.Cleanup(func() { _ = kit.Close() })

	srv := httptest.NewServer(kit)
	defer srv.Close()

	viewsToken, err := kit.Orchestrator.FormToken(auth.ActionViews)
	require.NoError(t, err)

	resp, err := http.Get(srv.URL + "/views/login?form_token=" + url.QueryEscape(viewsToken))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	bare, err := http.Get(srv.URL + "/views/login")
	require.NoError(t, err)
	defer bare.Body.Close()
	assert.Equal(t, http.StatusForbidden, bare.StatusCode)
}

func TestNewRejectsBadConfig(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.FormToken.Secret = ""

	_, err := loginkit.New(cfg, testHost())
	require.Error(t, err)
}

func TestCloseIsIdempotent(t *testing.T) {
	t.Parallel()

	kit, err := loginkit.New(testConfig(), testHost())
	require.NoError(t, err)

	require.NoError(t, kit.Close())
	require.NoError(t, kit.Close())
}
