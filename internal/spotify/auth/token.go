package auth

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/oauth2"

	apperrors "github.com/tessro/spindle/internal/errors"
)

// expiryBuffer treats a token as expired this long before it really is,
// so a request never leaves with a token that dies in flight.
const expiryBuffer = 60 * time.Second

// Provider hands out a valid access token, refreshing and persisting it
// as needed.
type Provider struct {
	config     *Config
	storage    *TokenStorage
	httpClient *http.Client
	logger     *log.Logger

	mu    sync.Mutex
	token *oauth2.Token
}

// ProviderOption configures a Provider.
type ProviderOption func(*Provider)

// WithHTTPClient sets the client used for refresh requests.
func WithHTTPClient(c *http.Client) ProviderOption {
	return func(p *Provider) { p.httpClient = c }
}

// WithLogger sets the logger.
func WithLogger(l *log.Logger) ProviderOption {
	return func(p *Provider) { p.logger = l }
}

// NewProvider creates a provider backed by storage.
func NewProvider(cfg *Config, storage *TokenStorage, opts ...ProviderOption) *Provider {
	p := &Provider{
		config:  cfg,
		storage: storage,
		logger:  log.New(io.Discard),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// AccessToken returns a currently valid bearer token. It fails with
// ErrNoCredential when nobody has logged in, and with ErrAuthentication
// when the stored credential can no longer be refreshed.
func (p *Provider) AccessToken(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.token == nil {
		tok, err := p.storage.Load()
		if err != nil {
			return "", err
		}
		if tok == nil || tok.AccessToken == "" {
			return "", apperrors.ErrNoCredential
		}
		p.token = tok
	}

	if !expired(p.token) {
		return p.token.AccessToken, nil
	}

	if p.token.RefreshToken == "" {
		return "", fmt.Errorf("%w: token expired and cannot be refreshed", apperrors.ErrAuthentication)
	}

	tok, err := p.refresh(ctx)
	if err != nil {
		return "", err
	}
	p.token = tok

	if err := p.storage.Save(tok); err != nil {
		p.logger.Warn("failed to persist refreshed token", "err", err)
	}
	return tok.AccessToken, nil
}

// Invalidate forces the next AccessToken call to refresh.
func (p *Provider) Invalidate() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.token != nil {
		p.token.Expiry = time.Unix(1, 0)
	}
}

func (p *Provider) refresh(ctx context.Context) (*oauth2.Token, error) {
	if p.httpClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, p.httpClient)
	}

	// Only the refresh token is handed over so the source always refreshes,
	// whatever its own notion of expiry is.
	seed := &oauth2.Token{RefreshToken: p.token.RefreshToken}
	tok, err := p.config.OAuth2().TokenSource(ctx, seed).Token()
	if err != nil {
		var re *oauth2.RetrieveError
		if errors.As(err, &re) {
			return nil, fmt.Errorf("%w: refresh rejected: %s", apperrors.ErrAuthentication, re.ErrorCode)
		}
		return nil, fmt.Errorf("token refresh failed: %w", err)
	}

	p.logger.Debug("refreshed access token", "expiry", tok.Expiry)
	return tok, nil
}

func expired(t *oauth2.Token) bool {
	if t.Expiry.IsZero() {
		return false
	}
	return time.Now().Add(expiryBuffer).After(t.Expiry)
}
