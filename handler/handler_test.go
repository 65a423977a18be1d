package handler_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/loginkit/auth"
	"github.com/dmitrymomot/loginkit/handler"
	"github.com/dmitrymomot/loginkit/pkg/captcha"
	"github.com/dmitrymomot/loginkit/pkg/clientip"
	"github.com/dmitrymomot/loginkit/pkg/formtoken"
	"github.com/dmitrymomot/loginkit/pkg/googleid"
	"github.com/dmitrymomot/loginkit/pkg/lockout"
	"github.com/dmitrymomot/loginkit/pkg/passcheck"
	"github.com/dmitrymomot/loginkit/pkg/ratelimit"
	"github.com/dmitrymomot/loginkit/pkg/redirect"
	"github.com/dmitrymomot/loginkit/pkg/securitylog"
)

const googleClientID = "client-123.apps.googleusercontent.com"

// stubStore keeps a single account per lookup key.
type stubStore struct {
	byEmail    map[string]*auth.Account
	byUsername map[string]*auth.Account
}

func newStubStore() *stubStore {
	return &stubStore{
		byEmail:    make(map[string]*auth.Account),
		byUsername: make(map[string]*auth.Account),
	}
}

func (s *stubStore) FindByID(context.Context, uuid.UUID) (*auth.Account, error) {
	return nil, auth.ErrAccountNotFound
}

func (s *stubStore) FindByEmail(_ context.Context, email string) (*auth.Account, error) {
	if a, ok := s.byEmail[email]; ok {
		return a, nil
	}
	return nil, auth.ErrAccountNotFound
}

func (s *stubStore) FindByUsername(_ context.Context, username string) (*auth.Account, error) {
	if a, ok := s.byUsername[username]; ok {
		return a, nil
	}
	return nil, auth.ErrAccountNotFound
}

func (s *stubStore) Create(_ context.Context, account *auth.Account, _ string) error {
	s.byEmail[account.Email] = account
	s.byUsername[account.Username] = account
	return nil
}

func (s *stubStore) Update(context.Context, *auth.Account) error { return nil }

type stubCreds struct{ account *auth.Account }

func (c *stubCreds) Verify(_ context.Context, login, password string) (*auth.Account, error) {
	if login == c.account.Username && password == "s3cret-Pass1!" {
		return c.account, nil
	}
	return nil, auth.ErrInvalidCredentials
}

type stubSessions struct{}

func (stubSessions) Establish(context.Context, uuid.UUID) error { return nil }

type stubReset struct{}

func (stubReset) InitiateReset(context.Context, string) error { return nil }
func (stubReset) FinalizeReset(context.Context, string, string, string) error {
	return auth.ErrInvalidResetKey
}

type stubNotifier struct{}

func (stubNotifier) AccountCreated(context.Context, *auth.Account) error { return nil }

type testServer struct {
	srv     *httptest.Server
	tokens  *formtoken.Issuer
	storage *securitylog.MemoryStorage
}

func newTestServer(t *testing.T, tokenInfoURL string) *testServer {
	t.Helper()

	store := newStubStore()
	account := &auth.Account{ID: uuid.New(), Email: "ada@example.com", Username: "ada"}
	store.byEmail[account.Email] = account
	store.byUsername[account.Username] = account

	storage := securitylog.NewMemoryStorage(100)
	audit := securitylog.NewRecorder(storage, securitylog.Config{Enabled: true, HashSecret: "secret"})

	tracker, err := lockout.NewTracker(lockout.NewMemoryStore(lockout.WithCleanupInterval(0)), lockout.Config{
		Enabled:     true,
		MaxAttempts: 5,
		Window:      15 * time.Minute,
	})
	require.NoError(t, err)

	tokens, err := formtoken.NewIssuer(formtoken.Config{Secret: "form-secret", TTL: time.Hour})
	require.NoError(t, err)

	captchaVerifier, err := captcha.NewVerifier(captcha.Config{Enabled: false})
	require.NoError(t, err)

	if tokenInfoURL == "" {
		tokenInfoURL = "http://127.0.0.1:1"
	}
	googleVerifier, err := googleid.NewVerifier(googleid.Config{
		ClientID:          googleClientID,
		TokenInfoURL:      tokenInfoURL,
		HTTPTimeout:       time.Second,
		LocalVerification: false,
	})
	require.NoError(t, err)

	resolver, err := redirect.NewResolver(redirect.Config{
		SiteURL:       "https://example.com",
		DashboardPath: "/account",
	})
	require.NoError(t, err)

	passwords, err := passcheck.NewEvaluator(passcheck.Config{Enabled: true, MinLength: 8, MinScore: 2})
	require.NoError(t, err)

	orch, err := auth.NewOrchestrator(auth.OrchestratorConfig{RegistrationEnabled: true}, auth.Dependencies{
		Lockout:     tracker,
		Audit:       audit,
		Tokens:      tokens,
		Captcha:     captchaVerifier,
		Google:      googleVerifier,
		Reconciler:  auth.NewReconciler(store, audit, auth.ReconcilerConfig{RegistrationEnabled: true}),
		Passwords:   passwords,
		Redirects:   resolver,
		Store:       store,
		Credentials: &stubCreds{account: account},
		Sessions:    stubSessions{},
		ResetInit:   stubReset{},
		ResetFin:    stubReset{},
		Notifier:    stubNotifier{},
	})
	require.NoError(t, err)

	views, err := ratelimit.NewLimiter(ratelimit.NewMemoryStore(), ratelimit.Config{
		Limit:  20,
		Window: time.Minute,
	})
	require.NoError(t, err)

	h := handler.New(orch, audit, views, clientip.Resolver{}, handler.Config{LoginPath: "/login"},
		handler.WithAuthorizer(func(r *http.Request) bool {
			return r.Header.Get("X-Admin-Token") == "letmein"
		}),
	)

	srv := httptest.NewServer(h.Routes())
	t.Cleanup(srv.Close)
	return &testServer{srv: srv, tokens: tokens, storage: storage}
}

func (ts *testServer) token(t *testing.T, action string) string {
	t.Helper()

	token, err := ts.tokens.Generate(action)
	require.NoError(t, err)
	return token
}

// postForm submits without following redirects so the Location header can
// be asserted.
func (ts *testServer) postForm(t *testing.T, path string, form url.Values) *http.Response {
	t.Helper()

	client := &http.Client{
		CheckRedirect: func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse },
	}
	resp, err := client.Post(ts.srv.URL+path, "application/x-www-form-urlencoded", strings.NewReader(form.Encode()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func TestLoginFormRedirectsToDashboard(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, "")
	resp := ts.postForm(t, "/auth/login", url.Values{
		"login":      {"ada"},
		"password":   {"s3cret-Pass1!"},
		"form_token": {ts.token(t, auth.ActionLogin)},
	})

	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "https://example.com/account", resp.Header.Get("Location"))
}

func TestFailedLoginRedirectsBackWithNotice(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, "")
	resp := ts.postForm(t, "/auth/login", url.Values{
		"login":      {"ada"},
		"password":   {"wrong"},
		"form_token": {ts.token(t, auth.ActionLogin)},
	})

	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	loc, err := url.Parse(resp.Header.Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, "/login", loc.Path)
	assert.Equal(t, "error", loc.Query().Get("kind"))
	assert.NotEmpty(t, loc.Query().Get("notice"))
}

func TestUnknownActionIs404(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, "")
	resp := ts.postForm(t, "/auth/impersonate", url.Values{})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestGoogleEndpointReturnsJSON(t *testing.T) {
	t.Parallel()

	tokenInfo := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := map[string]string{
			"aud":            googleClientID,
			"iss":            "https://accounts.google.com",
			"exp":            fmt.Sprintf("%d", time.Now().Add(time.Hour).Unix()),
			"sub":            "google-subject-1",
			"email":          "grace@example.com",
			"email_verified": "true",
			"name":           "Grace Hopper",
		}
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
	t.Cleanup(tokenInfo.Close)

	ts := newTestServer(t, tokenInfo.URL)
	body, err := json.Marshal(map[string]string{
		"id_token":   "opaque-token",
		"form_token": ts.token(t, auth.ActionGoogle),
	})
	require.NoError(t, err)

	resp, err := http.Post(ts.srv.URL+"/auth/google", "application/json", strings.NewReader(string(body)))
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })

	require.Equal(t, http.StatusOK, resp.StatusCode)
	var out struct {
		Success  bool   `json:"success"`
		Redirect string `json:"redirect"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.True(t, out.Success)
	assert.Equal(t, "https://example.com/account", out.Redirect)
}

func TestGoogleEndpointRejectsBadToken(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, "") // tokeninfo unreachable
	body, err := json.Marshal(map[string]string{
		"id_token":   "opaque-token",
		"form_token": ts.token(t, auth.ActionGoogle),
	})
	require.NoError(t, err)

	resp, err := http.Post(ts.srv.URL+"/auth/google", "application/json", strings.NewReader(string(body)))
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })

	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	var out struct {
		Success bool   `json:"success"`
		Message string `json:"message"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.False(t, out.Success)
	assert.NotEmpty(t, out.Message)
}

// viewURL builds a views-endpoint URL carrying a views-scoped token.
func (ts *testServer) viewURL(t *testing.T, name string) string {
	t.Helper()
	return ts.srv.URL + "/views/" + name + "?form_token=" + url.QueryEscape(ts.token(t, auth.ActionViews))
}

func TestViewEndpointIssuesFormToken(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, "")
	resp, err := http.Get(ts.viewURL(t, "register"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })

	require.Equal(t, http.StatusOK, resp.StatusCode)
	var data struct {
		Name        string `json:"name"`
		FormToken   string `json:"form_token"`
		GoogleToken string `json:"google_token"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&data))
	assert.Equal(t, "register", data.Name)
	assert.Empty(t, data.GoogleToken)
	require.NoError(t, ts.tokens.Verify(data.FormToken, auth.ActionRegister))
}

func TestViewEndpointRequiresViewsToken(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, "")

	for name, target := range map[string]string{
		"no token":      ts.srv.URL + "/views/login",
		"garbage token": ts.srv.URL + "/views/login?form_token=bogus",
		"wrong scope":   ts.srv.URL + "/views/login?form_token=" + url.QueryEscape(ts.token(t, auth.ActionLogin)),
	} {
		resp, err := http.Get(target)
		require.NoError(t, err, name)
		_ = resp.Body.Close()
		assert.Equal(t, http.StatusForbidden, resp.StatusCode, name)
	}

	resp, err := http.Get(ts.viewURL(t, "login"))
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestLoginViewCarriesGoogleToken(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, "")
	resp, err := http.Get(ts.viewURL(t, "login"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })

	require.Equal(t, http.StatusOK, resp.StatusCode)
	var data struct {
		GoogleToken string `json:"google_token"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&data))
	require.NotEmpty(t, data.GoogleToken)
	require.NoError(t, ts.tokens.Verify(data.GoogleToken, auth.ActionGoogle))
}

func TestViewEndpointIsRateLimited(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, "")
	var last int
	for range 21 {
		resp, err := http.Get(ts.viewURL(t, "login"))
		require.NoError(t, err)
		_ = resp.Body.Close()
		last = resp.StatusCode
	}
	assert.Equal(t, http.StatusTooManyRequests, last)
}

func TestUnknownViewIs404(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, "")
	resp, err := http.Get(ts.viewURL(t, "admin"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestSecurityEventsListAndClear(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, "")

	// Produce one event via a failed login.
	ts.postForm(t, "/auth/login", url.Values{
		"login":      {"ada"},
		"password":   {"wrong"},
		"form_token": {ts.token(t, auth.ActionLogin)},
	})

	resp, err := http.Get(ts.srv.URL + "/security/events?limit=10")
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var events []securitylog.Event
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&events))
	require.NotEmpty(t, events)
	assert.Equal(t, securitylog.EventLoginFailed, events[0].Type)

	// Clear refuses without the admin header.
	req, err := http.NewRequest(http.MethodPost, ts.srv.URL+"/security/events/clear", nil)
	require.NoError(t, err)
	denied, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	_ = denied.Body.Close()
	assert.Equal(t, http.StatusForbidden, denied.StatusCode)

	req.Header.Set("X-Admin-Token", "letmein")
	allowed, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	_ = allowed.Body.Close()
	require.Equal(t, http.StatusNoContent, allowed.StatusCode)

	remaining, err := ts.storage.List(t.Context(), 10)
	require.NoError(t, err)
	assert.Empty(t, remaining)
}

func TestInvalidLimitRejected(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, "")
	resp, err := http.Get(ts.srv.URL + "/security/events?limit=zero")
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
