package account

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"

	"github.com/ventwave/ventboard/config"
)

const googleUserInfoURL = "https://www.googleapis.com/oauth2/v2/userinfo"

var ErrGoogleDisabled = errors.New("Google sign-in is not configured")

// Google performs the authorization code flow against Google.
type Google struct {
	cfg         *oauth2.Config
	userInfoURL string
}

// NewGoogle builds a Google client, or returns nil when o is incomplete.
func NewGoogle(o config.OAuthConfig) *Google {
	if !o.Enabled() {
		return nil
	}
	return &Google{
		cfg: &oauth2.Config{
			ClientID:     o.GoogleClientID,
			ClientSecret: o.GoogleClientSecret,
			RedirectURL:  o.GoogleCallbackURL,
			Endpoint:     endpoints.Google,
			Scopes:       []string{"profile", "email"},
		},
		userInfoURL: googleUserInfoURL,
	}
}

// WithEndpoints points the client at other token and userinfo URLs.
func (g *Google) WithEndpoints(ep oauth2.Endpoint, userInfoURL string) *Google {
	cp := *g.cfg
	cp.Endpoint = ep
	return &Google{cfg: &cp, userInfoURL: userInfoURL}
}

// AuthCodeURL is the consent page URL carrying state.
func (g *Google) AuthCodeURL(state string) string {
	return g.cfg.AuthCodeURL(state)
}

type userInfo struct {
	ID            string `json:"id"`
	Email         string `json:"email"`
	VerifiedEmail bool   `json:"verified_email"`
	Name          string `json:"name"`
}

// Exchange trades an authorization code for the user's profile.
func (g *Google) Exchange(ctx context.Context, code string) (GoogleProfile, error) {
	if g == nil {
		return GoogleProfile{}, ErrGoogleDisabled
	}
	tok, err := g.cfg.Exchange(ctx, code)
	if err != nil {
		return GoogleProfile{}, fmt.Errorf("google: exchange: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.userInfoURL, nil)
	if err != nil {
		return GoogleProfile{}, err
	}
	resp, err := g.cfg.Client(ctx, tok).Do(req)
	if err != nil {
		return GoogleProfile{}, fmt.Errorf("google: userinfo: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return GoogleProfile{}, fmt.Errorf("google: userinfo: %s: %s", resp.Status, body)
	}
	var info userInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return GoogleProfile{}, fmt.Errorf("google: decode userinfo: %w", err)
	}
	p := GoogleProfile{ID: info.ID, Name: info.Name}
	// Unverified addresses must not link to an existing account.
	if info.VerifiedEmail {
		p.Email = info.Email
	}
	return p, nil
}
