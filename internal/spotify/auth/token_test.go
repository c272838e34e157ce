package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"golang.org/x/oauth2"

	apperrors "github.com/tessro/spindle/internal/errors"
)

func newTestProvider(t *testing.T, tokenURL string, stored *oauth2.Token) (*Provider, *TokenStorage) {
	t.Helper()
	storage, err := NewTokenStorage(filepath.Join(t.TempDir(), "token.json"))
	if err != nil {
		t.Fatal(err)
	}
	if stored != nil {
		if err := storage.Save(stored); err != nil {
			t.Fatal(err)
		}
	}
	cfg := NewConfig("client", "")
	cfg.Endpoint.TokenURL = tokenURL
	return NewProvider(cfg, storage), storage
}

func TestProviderNoCredential(t *testing.T) {
	p, _ := newTestProvider(t, "http://127.0.0.1:1/unused", nil)

	_, err := p.AccessToken(context.Background())
	if !errors.Is(err, apperrors.ErrNoCredential) {
		t.Errorf("AccessToken() error = %v, want ErrNoCredential", err)
	}
}

func TestProviderValidToken(t *testing.T) {
	p, _ := newTestProvider(t, "http://127.0.0.1:1/unused", &oauth2.Token{
		AccessToken:  "still_good",
		RefreshToken: "r",
		Expiry:       time.Now().Add(time.Hour),
	})

	tok, err := p.AccessToken(context.Background())
	if err != nil {
		t.Fatalf("AccessToken() error = %v", err)
	}
	if tok != "still_good" {
		t.Errorf("AccessToken() = %q, want still_good", tok)
	}
}

func TestProviderRefreshes(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_ = r.ParseForm()
		if r.PostForm.Get("grant_type") != "refresh_token" || r.PostForm.Get("refresh_token") != "old_refresh" {
			t.Errorf("unexpected refresh form: %v", r.PostForm)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token": "fresh",
			"token_type":   "Bearer",
			"expires_in":   3600,
		})
	}))
	defer srv.Close()

	// Expires inside the buffer, so it must be refreshed.
	p, storage := newTestProvider(t, srv.URL, &oauth2.Token{
		AccessToken:  "stale",
		RefreshToken: "old_refresh",
		Expiry:       time.Now().Add(30 * time.Second),
	})

	for i := 0; i < 2; i++ {
		tok, err := p.AccessToken(context.Background())
		if err != nil {
			t.Fatalf("AccessToken() error = %v", err)
		}
		if tok != "fresh" {
			t.Errorf("AccessToken() = %q, want fresh", tok)
		}
	}
	if n := calls.Load(); n != 1 {
		t.Errorf("token endpoint called %d times, want 1", n)
	}

	saved, err := storage.Load()
	if err != nil {
		t.Fatal(err)
	}
	if saved.AccessToken != "fresh" {
		t.Errorf("persisted AccessToken = %q, want fresh", saved.AccessToken)
	}
	if saved.RefreshToken != "old_refresh" {
		t.Errorf("persisted RefreshToken = %q, want the old one kept", saved.RefreshToken)
	}
}

func TestProviderRefreshRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"invalid_grant","error_description":"Refresh token revoked"}`))
	}))
	defer srv.Close()

	p, _ := newTestProvider(t, srv.URL, &oauth2.Token{
		AccessToken:  "stale",
		RefreshToken: "revoked",
		Expiry:       time.Now().Add(-time.Hour),
	})

	_, err := p.AccessToken(context.Background())
	if !errors.Is(err, apperrors.ErrAuthentication) {
		t.Errorf("AccessToken() error = %v, want ErrAuthentication", err)
	}
}

func TestProviderInvalidate(t *testing.T) {
	p, _ := newTestProvider(t, "http://127.0.0.1:1/unused", &oauth2.Token{
		AccessToken: "no_refresh",
		Expiry:      time.Now().Add(time.Hour),
	})
	if _, err := p.AccessToken(context.Background()); err != nil {
		t.Fatal(err)
	}

	p.Invalidate()
	_, err := p.AccessToken(context.Background())
	if !errors.Is(err, apperrors.ErrAuthentication) {
		t.Errorf("AccessToken() after Invalidate error = %v, want ErrAuthentication", err)
	}
}
