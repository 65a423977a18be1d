// Package handler exposes the login flows over HTTP: form submissions, the
// federated sign-in endpoint, rate-limited view rendering, and the security
// event listing.
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/dmitrymomot/loginkit/auth"
	"github.com/dmitrymomot/loginkit/pkg/clientip"
	"github.com/dmitrymomot/loginkit/pkg/logger"
	"github.com/dmitrymomot/loginkit/pkg/ratelimit"
	"github.com/dmitrymomot/loginkit/pkg/securitylog"
)

// Form field names shared with the rendered views. The honeypot field is
// named like a real input so bots fill it.
const (
	fieldLogin           = "login"
	fieldEmail           = "email"
	fieldPassword        = "password"
	fieldPasswordConfirm = "password_confirm"
	fieldResetKey        = "reset_key"
	fieldRedirectTo      = "redirect_to"
	fieldFormToken       = "form_token"
	fieldHoneypot        = "website"
	fieldCaptcha         = "g-recaptcha-response"
)

// Config holds HTTP surface settings.
type Config struct {
	// LoginPath is the page hosting the login views; failed submissions
	// redirect back to it with the notice in the query string.
	LoginPath string `env:"LOGIN_PATH" envDefault:"/login"`
}

// ViewData is what a named view needs to render its form. The login view
// additionally carries the token scoping the federated sign-in endpoint.
type ViewData struct {
	Name           string `json:"name"`
	FormToken      string `json:"form_token"`
	GoogleToken    string `json:"google_token,omitempty"`
	CaptchaSiteKey string `json:"captcha_site_key,omitempty"`
}

// Renderer produces the markup for a named view. When nil, views are
// served as JSON and rendering stays on the host side.
type Renderer interface {
	RenderView(ctx context.Context, data ViewData) ([]byte, error)
}

// Authorizer gates privileged endpoints such as clearing the security log.
type Authorizer func(*http.Request) bool

// Handler wires the orchestrator and audit sink to chi routes.
type Handler struct {
	orch      *auth.Orchestrator
	audit     *securitylog.Recorder
	views     *ratelimit.Limiter
	ip        clientip.Resolver
	cfg       Config
	renderer  Renderer
	authorize Authorizer
	siteKey   string
	log       *slog.Logger
}

// Option configures a Handler.
type Option func(*Handler)

// WithRenderer sets a markup renderer for the views endpoint.
func WithRenderer(r Renderer) Option {
	return func(h *Handler) { h.renderer = r }
}

// WithAuthorizer guards the security-log clear endpoint. Without one the
// endpoint always refuses.
func WithAuthorizer(fn Authorizer) Option {
	return func(h *Handler) { h.authorize = fn }
}

// WithCaptchaSiteKey exposes the challenge widget key to rendered views.
func WithCaptchaSiteKey(key string) Option {
	return func(h *Handler) { h.siteKey = key }
}

// WithLogger sets the logger. Defaults to a discard logger.
func WithLogger(l *slog.Logger) Option {
	return func(h *Handler) { h.log = l }
}

// New builds a Handler.
func New(orch *auth.Orchestrator, audit *securitylog.Recorder, views *ratelimit.Limiter, ip clientip.Resolver, cfg Config, opts ...Option) *Handler {
	h := &Handler{
		orch:  orch,
		audit: audit,
		views: views,
		ip:    ip,
		cfg:   cfg,
		log:   logger.Noop(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Routes returns the router for mounting into the host application.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(h.ip.Middleware)

	r.Route("/auth", func(r chi.Router) {
		r.Post("/google", h.handleGoogle)
		r.Post("/{action}", h.handleSubmission)
	})
	r.Route("/views", func(r chi.Router) {
		r.Use(ratelimit.Middleware(h.views))
		r.Get("/{name}", h.handleView)
	})
	r.Route("/security", func(r chi.Router) {
		r.Get("/events", h.handleEventsList)
		r.Post("/events/clear", h.handleEventsClear)
	})
	return r
}

var formActions = map[string]bool{
	auth.ActionLogin:        true,
	auth.ActionRegister:     true,
	auth.ActionLostPassword: true,
	auth.ActionResetPass:    true,
}

func (h *Handler) handleSubmission(w http.ResponseWriter, r *http.Request) {
	action := chi.URLParam(r, "action")
	if !formActions[action] {
		http.NotFound(w, r)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	sub := auth.Submission{
		Login:           r.PostFormValue(fieldLogin),
		Email:           r.PostFormValue(fieldEmail),
		Password:        r.PostFormValue(fieldPassword),
		PasswordConfirm: r.PostFormValue(fieldPasswordConfirm),
		ResetKey:        r.PostFormValue(fieldResetKey),
		RedirectTo:      r.PostFormValue(fieldRedirectTo),
		FormToken:       r.PostFormValue(fieldFormToken),
		Honeypot:        r.PostFormValue(fieldHoneypot),
		CaptchaResponse: r.PostFormValue(fieldCaptcha),
	}

	res := h.orch.Process(r.Context(), action, sub)
	if res.Success && res.Redirect != "" {
		http.Redirect(w, r, res.Redirect, http.StatusSeeOther)
		return
	}
	http.Redirect(w, r, h.viewURL(res), http.StatusSeeOther)
}

// viewURL builds the back-to-form redirect carrying the notice.
func (h *Handler) viewURL(res auth.Result) string {
	q := url.Values{}
	if res.View != "" && res.View != auth.ActionLogin {
		q.Set("view", res.View)
	}
	q.Set("notice", res.Notice.Message)
	q.Set("kind", string(res.Notice.Kind))
	return h.cfg.LoginPath + "?" + q.Encode()
}

type googleRequest struct {
	IDToken    string `json:"id_token"`
	RedirectTo string `json:"redirect_to"`
	FormToken  string `json:"form_token"`
}

type googleResponse struct {
	Success  bool   `json:"success"`
	Redirect string `json:"redirect,omitempty"`
	Message  string `json:"message,omitempty"`
}

func (h *Handler) handleGoogle(w http.ResponseWriter, r *http.Request) {
	var req googleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeJSON(w, http.StatusBadRequest, googleResponse{Success: false, Message: "invalid request body"})
		return
	}

	res := h.orch.Google(r.Context(), auth.Submission{
		IDToken:    req.IDToken,
		RedirectTo: req.RedirectTo,
		FormToken:  req.FormToken,
	})
	if res.Success {
		h.writeJSON(w, http.StatusOK, googleResponse{Success: true, Redirect: res.Redirect})
		return
	}
	h.writeJSON(w, http.StatusUnauthorized, googleResponse{Success: false, Message: res.Notice.Message})
}

func (h *Handler) handleView(w http.ResponseWriter, r *http.Request) {
	// Views may only be fetched by a page that carries a views-scoped
	// token, minted via Orchestrator.FormToken(auth.ActionViews).
	if err := h.orch.CheckFormToken(r.URL.Query().Get(fieldFormToken), auth.ActionViews); err != nil {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	name := chi.URLParam(r, "name")
	if !formActions[name] {
		http.NotFound(w, r)
		return
	}

	token, err := h.orch.FormToken(name)
	if err != nil {
		h.log.ErrorContext(r.Context(), "failed to mint form token",
			logger.Component("handler"), logger.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	data := ViewData{
		Name:           name,
		FormToken:      token,
		CaptchaSiteKey: h.siteKey,
	}
	if name == auth.ActionLogin {
		if data.GoogleToken, err = h.orch.FormToken(auth.ActionGoogle); err != nil {
			h.log.ErrorContext(r.Context(), "failed to mint form token",
				logger.Component("handler"), logger.Error(err))
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
	}

	if h.renderer != nil {
		markup, err := h.renderer.RenderView(r.Context(), data)
		if err != nil {
			h.log.ErrorContext(r.Context(), "view rendering failed",
				logger.Component("handler"), logger.Error(err))
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write(markup)
		return
	}
	h.writeJSON(w, http.StatusOK, data)
}

func (h *Handler) handleEventsList(w http.ResponseWriter, r *http.Request) {
	limit := 100
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = n
	}

	events, err := h.audit.List(r.Context(), limit)
	if err != nil {
		h.log.ErrorContext(r.Context(), "failed to list security events",
			logger.Component("handler"), logger.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if events == nil {
		events = []securitylog.Event{}
	}
	h.writeJSON(w, http.StatusOK, events)
}

func (h *Handler) handleEventsClear(w http.ResponseWriter, r *http.Request) {
	if h.authorize == nil || !h.authorize(r) {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}
	if err := h.audit.Clear(r.Context()); err != nil {
		h.log.ErrorContext(r.Context(), "failed to clear security events",
			logger.Component("handler"), logger.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.log.Error("failed to encode response", logger.Component("handler"), logger.Error(err))
	}
}
