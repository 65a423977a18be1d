// Package redirect resolves post-authentication destinations. Caller-supplied
// targets are honored only when they stay on the configured site, which keeps
// the login flow from becoming an open redirector.
package redirect

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Config holds the resolver settings.
type Config struct {
	SiteURL       string `env:"SITE_URL,required"`
	DashboardPath string `env:"DASHBOARD_PATH" envDefault:"/account"`
}

// ErrInvalidConfig is returned by NewResolver for unusable settings.
var ErrInvalidConfig = errors.New("redirect: invalid config")

// Resolver picks the destination for a finished flow. Candidates are tried
// in priority order: the caller's requested target, the per-action default,
// the account dashboard, and finally the site root.
type Resolver struct {
	site           *url.URL
	dashboardPath  string
	actionDefaults map[string]string
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithActionDefault registers a fallback destination for one form action,
// used when the caller did not request a target of its own.
func WithActionDefault(action, target string) Option {
	return func(r *Resolver) { r.actionDefaults[action] = target }
}

// NewResolver builds a Resolver from cfg.
func NewResolver(cfg Config, opts ...Option) (*Resolver, error) {
	site, err := url.Parse(cfg.SiteURL)
	if err != nil || site.Scheme == "" || site.Host == "" {
		return nil, fmt.Errorf("%w: site URL must be absolute", ErrInvalidConfig)
	}

	r := &Resolver{
		site:           site,
		dashboardPath:  cfg.DashboardPath,
		actionDefaults: make(map[string]string),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Resolve returns the destination for action given the caller's requested
// target, which may be empty.
func (r *Resolver) Resolve(action, requested string) string {
	if dest, ok := r.sanitize(requested); ok {
		return dest
	}
	if dest, ok := r.sanitize(r.actionDefaults[action]); ok {
		return dest
	}
	if dest, ok := r.sanitize(r.dashboardPath); ok {
		return dest
	}
	return r.site.String()
}

// IsSameSite reports whether raw points at the configured site. Relative
// paths qualify; absolute URLs must match the site's scheme and host.
func (r *Resolver) IsSameSite(raw string) bool {
	_, ok := r.sanitize(raw)
	return ok
}

// sanitize validates a candidate and normalizes it to an absolute URL on
// the configured site.
func (r *Resolver) sanitize(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false
	}
	// Scheme-relative URLs ("//evil.com") would inherit the request scheme
	// and escape the site.
	if strings.HasPrefix(raw, "//") {
		return "", false
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", false
	}
	if u.Scheme == "" && u.Host == "" {
		if !strings.HasPrefix(u.Path, "/") {
			return "", false
		}
		resolved := *r.site
		resolved.Path = u.Path
		resolved.RawQuery = u.RawQuery
		resolved.Fragment = u.Fragment
		return resolved.String(), true
	}
	if u.Scheme != r.site.Scheme || !strings.EqualFold(u.Host, r.site.Host) {
		return "", false
	}
	return u.String(), true
}
