package auth

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"golang.org/x/oauth2"
)

const (
	// SpotifyAuthURL is the Spotify authorization endpoint.
	SpotifyAuthURL = "https://accounts.spotify.com/authorize"

	// SpotifyTokenURL is the Spotify token endpoint.
	SpotifyTokenURL = "https://accounts.spotify.com/api/token"

	// DefaultRedirectURI is the default callback URI for the local server.
	DefaultRedirectURI = "http://127.0.0.1:8888/callback"
)

// DefaultScopes are the Spotify scopes the web player and the playback
// control endpoints need.
var DefaultScopes = []string{
	"streaming",
	"user-read-email",
	"user-read-private",
	"user-read-playback-state",
	"user-modify-playback-state",
	"user-read-currently-playing",
}

// Endpoint is Spotify's OAuth2 endpoint. PKCE clients have no secret, so
// the client id travels in the form body.
var Endpoint = oauth2.Endpoint{
	AuthURL:   SpotifyAuthURL,
	TokenURL:  SpotifyTokenURL,
	AuthStyle: oauth2.AuthStyleInParams,
}

// Config holds the OAuth configuration.
type Config struct {
	ClientID    string
	RedirectURI string
	Scopes      []string
	Endpoint    oauth2.Endpoint
}

// NewConfig creates a new OAuth configuration with defaults.
func NewConfig(clientID, redirectURI string) *Config {
	if redirectURI == "" {
		redirectURI = DefaultRedirectURI
	}
	return &Config{
		ClientID:    clientID,
		RedirectURI: redirectURI,
		Scopes:      DefaultScopes,
		Endpoint:    Endpoint,
	}
}

// OAuth2 returns the equivalent [oauth2.Config].
func (c *Config) OAuth2() *oauth2.Config {
	return &oauth2.Config{
		ClientID:    c.ClientID,
		RedirectURL: c.RedirectURI,
		Scopes:      c.Scopes,
		Endpoint:    c.Endpoint,
	}
}

// AuthURL builds the authorization URL for a PKCE login.
func (c *Config) AuthURL(p *PKCE) string {
	return c.OAuth2().AuthCodeURL(p.State, oauth2.S256ChallengeOption(p.Verifier))
}

// Exchange trades an authorization code for a token.
func (c *Config) Exchange(ctx context.Context, code string, p *PKCE) (*oauth2.Token, error) {
	tok, err := c.OAuth2().Exchange(ctx, code, oauth2.VerifierOption(p.Verifier))
	if err != nil {
		return nil, fmt.Errorf("token exchange failed: %w", err)
	}
	return tok, nil
}

// CallbackAddr returns the host:port and path the callback server must
// serve, derived from the redirect URI.
func (c *Config) CallbackAddr() (addr, path string, err error) {
	u, err := url.Parse(c.RedirectURI)
	if err != nil {
		return "", "", fmt.Errorf("invalid redirect uri: %w", err)
	}
	port, err := strconv.Atoi(u.Port())
	if err != nil {
		return "", "", fmt.Errorf("redirect uri %q has no port", c.RedirectURI)
	}
	path = u.Path
	if path == "" {
		path = "/"
	}
	return fmt.Sprintf("%s:%d", u.Hostname(), port), path, nil
}
