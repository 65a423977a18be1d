package googleid

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// tokenInfoResponse mirrors Google's tokeninfo payload. Numeric and boolean
// claims arrive as strings on this endpoint.
type tokenInfoResponse struct {
	Audience      string `json:"aud"`
	Issuer        string `json:"iss"`
	Expiry        string `json:"exp"`
	Subject       string `json:"sub"`
	Email         string `json:"email"`
	EmailVerified string `json:"email_verified"`
	Name          string `json:"name"`
	GivenName     string `json:"given_name"`
	FamilyName    string `json:"family_name"`
	Picture       string `json:"picture"`
}

// introspect asks Google's tokeninfo endpoint to validate the token. Any
// transport or decoding failure counts as a rejection.
func (v *Verifier) introspect(ctx context.Context, rawToken string) (*Assertion, string, string, time.Time, error) {
	endpoint := v.cfg.TokenInfoURL + "?id_token=" + url.QueryEscape(rawToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, "", "", time.Time{}, fmt.Errorf("%w: %v", ErrIntrospection, err)
	}

	resp, err := v.client.Do(req)
	if err != nil {
		return nil, "", "", time.Time{}, fmt.Errorf("%w: %v", ErrIntrospection, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, "", "", time.Time{}, fmt.Errorf("%w: status %d", ErrIntrospection, resp.StatusCode)
	}

	var info tokenInfoResponse
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, "", "", time.Time{}, fmt.Errorf("%w: %v", ErrIntrospection, err)
	}

	var exp time.Time
	if secs, err := strconv.ParseInt(info.Expiry, 10, 64); err == nil {
		exp = time.Unix(secs, 0)
	}

	return &Assertion{
		Subject:       info.Subject,
		Email:         info.Email,
		EmailVerified: info.EmailVerified == "true",
		Name:          info.Name,
		GivenName:     info.GivenName,
		FamilyName:    info.FamilyName,
		PictureURL:    info.Picture,
	}, info.Audience, info.Issuer, exp, nil
}
