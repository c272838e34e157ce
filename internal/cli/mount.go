package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"

	"github.com/tessro/spindle/internal/browser"
	"github.com/tessro/spindle/internal/engine/bridge"
	apperrors "github.com/tessro/spindle/internal/errors"
	"github.com/tessro/spindle/internal/session"
	"github.com/tessro/spindle/internal/spotify/auth"
	"github.com/tessro/spindle/internal/spotify/client"
	"github.com/tessro/spindle/internal/spotify/player"
)

const shutdownTimeout = 5 * time.Second

// credentials are the pieces every Spotify-facing command shares.
type credentials struct {
	oauth    *auth.Config
	storage  *auth.TokenStorage
	provider *auth.Provider
}

func newCredentials(logger *log.Logger) (*credentials, error) {
	if cfg.Spotify.ClientID == "" {
		return nil, apperrors.ErrNotConfigured
	}
	storage, err := auth.NewTokenStorage("")
	if err != nil {
		return nil, err
	}
	oauth := auth.NewConfig(cfg.Spotify.ClientID, cfg.Spotify.RedirectURI)
	return &credentials{
		oauth:    oauth,
		storage:  storage,
		provider: auth.NewProvider(oauth, storage, auth.WithLogger(logger.WithPrefix("auth"))),
	}, nil
}

func (c *credentials) api(logger *log.Logger) *client.Client {
	return client.New(c.provider, client.WithLogger(logger.WithPrefix("api")))
}

// mount is a playback session wired to the browser bridge and the Web API.
type mount struct {
	session *session.Session
	remote  *player.Remote
	bridge  *bridge.Server
	url     string
	logger  *log.Logger
}

// mountSession builds the session stack and starts the bridge server. The
// session is not initialized yet; the player page has to connect first.
func mountSession(logger *log.Logger) (*mount, error) {
	creds, err := newCredentials(logger)
	if err != nil {
		return nil, err
	}

	remote := player.New(creds.api(logger))
	srv := bridge.New(bridge.WithLogger(logger.WithPrefix("bridge")))
	url, err := srv.Start(cfg.Player.BridgeAddr)
	if err != nil {
		return nil, err
	}

	sess := session.New(srv, remote, creds.provider, session.Options{
		Name:   cfg.Player.Name,
		Volume: cfg.Player.Volume,
		Timing: session.TimingFrom(cfg),
		Logger: logger.WithPrefix("session"),
	})

	return &mount{
		session: sess,
		remote:  remote,
		bridge:  srv,
		url:     url,
		logger:  logger,
	}, nil
}

// openPage points the user's browser at the player page, or tells them
// where it is.
func (m *mount) openPage(notify func(string)) {
	if cfg.Player.OpenBrowser {
		if err := browser.Open(m.url); err == nil {
			notify(fmt.Sprintf("Opened the player page at %s", m.url))
			return
		}
	}
	notify(fmt.Sprintf("Open %s in your browser to start the player", m.url))
}

// initialize binds the engine in the background, logging the outcome.
func (m *mount) initialize(ctx context.Context) {
	go func() {
		if err := m.session.Initialize(ctx); err != nil {
			m.logger.Error("player initialization failed", "err", err)
		}
	}()
}

func (m *mount) Close() {
	m.session.Close()
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := m.bridge.Shutdown(ctx); err != nil {
		m.logger.Warn("bridge shutdown", "err", err)
	}
}
