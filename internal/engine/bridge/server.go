// Package bridge runs the Spotify Web Playback SDK in a browser tab and
// exposes it as an engine.SDK over a local websocket.
package bridge

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"html/template"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/justinas/alice"

	"github.com/tessro/spindle/internal/engine"
)

//go:embed page.html
var pageHTML string

var pageTemplate = template.Must(template.New("page").Parse(pageHTML))

const tokenTimeout = 10 * time.Second

// ErrPageBusy is returned to a second tab while one is connected.
var ErrPageBusy = errors.New("another player page is already connected")

// Server serves the player page and implements engine.SDK on top of it.
type Server struct {
	key      string
	logger   *log.Logger
	handler  http.Handler
	upgrader websocket.Upgrader

	mu      sync.Mutex
	page    *pageConn
	active  *Player
	pageUp  chan struct{} // closed when a page connects, replaced when it leaves
	loaded  chan struct{} // closed on the first sdk_ready or sdk_error
	loadErr error
	once    sync.Once

	httpSrv *http.Server
	url     string
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// New creates a bridge server.
func New(opts ...Option) *Server {
	s := &Server{
		key:    uuid.NewString(),
		logger: log.New(io.Discard),
		pageUp: make(chan struct{}),
		loaded: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     sameOrigin,
	}

	router := mux.NewRouter()
	router.HandleFunc("/", s.servePage).Methods(http.MethodGet)
	router.HandleFunc("/ws", s.serveWS).Methods(http.MethodGet)
	s.handler = alice.New(s.recoverPanic, s.logRequest).Then(router)
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// Key is the secret the page presents when opening the websocket.
func (s *Server) Key() string {
	return s.key
}

// Start listens on addr and serves in the background. It returns the
// page URL to open in a browser.
func (s *Server) Start(addr string) (string, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return "", fmt.Errorf("bridge listen on %s: %w", addr, err)
	}
	s.httpSrv = &http.Server{
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.url = "http://" + ln.Addr().String() + "/"
	go func() {
		if err := s.httpSrv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("bridge server stopped", "err", err)
		}
	}()
	s.logger.Info("player page available", "url", s.url)
	return s.url, nil
}

// URL returns the page URL once Start has run.
func (s *Server) URL() string {
	return s.url
}

// Shutdown stops the HTTP server and drops the page connection.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	page := s.page
	s.mu.Unlock()
	if page != nil {
		page.close()
	}
	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}

// Load waits for a page to report that the SDK script is ready. The first
// outcome is kept; later calls return it immediately.
func (s *Server) Load(ctx context.Context) error {
	select {
	case <-s.loaded:
		return s.loadErr
	case <-ctx.Done():
		return fmt.Errorf("waiting for player page: %w", ctx.Err())
	}
}

func (s *Server) finishLoad(err error) {
	s.once.Do(func() {
		s.loadErr = err
		close(s.loaded)
	})
}

// NewPlayer creates a player bound to whichever page is connected.
func (s *Server) NewPlayer(opts engine.Options) (engine.Player, error) {
	if opts.Token == nil {
		return nil, errors.New("bridge: token function required")
	}
	return &Player{server: s, opts: opts}, nil
}

// WaitForPage blocks until a page is connected or ctx is done.
func (s *Server) WaitForPage(ctx context.Context) error {
	s.mu.Lock()
	up := s.pageUp
	s.mu.Unlock()
	select {
	case <-up:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Server) currentPage() *pageConn {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.page
}

func (s *Server) setActive(p *Player) {
	s.mu.Lock()
	s.active = p
	s.mu.Unlock()
}

func (s *Server) clearActive(p *Player) {
	s.mu.Lock()
	if s.active == p {
		s.active = nil
	}
	s.mu.Unlock()
}

func (s *Server) activePlayer() *Player {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

func (s *Server) servePage(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	if err := pageTemplate.Execute(w, struct{ Key string }{s.key}); err != nil {
		s.logger.Error("render player page", "err", err)
	}
}

func (s *Server) serveWS(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("key") != s.key {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	s.mu.Lock()
	if s.page != nil {
		s.mu.Unlock()
		http.Error(w, ErrPageBusy.Error(), http.StatusConflict)
		return
	}
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.mu.Unlock()
		s.logger.Warn("websocket upgrade failed", "err", err)
		return
	}
	page := newPageConn(ws, s.logger)
	s.page = page
	close(s.pageUp)
	s.mu.Unlock()

	s.logger.Info("player page connected", "remote", r.RemoteAddr)

	go page.writePump()
	go s.dispatch(page)
	page.readPump(func(m message) { s.handleFrame(page, m) })
}

// handleFrame processes frames that are neither results nor events.
func (s *Server) handleFrame(page *pageConn, m message) {
	switch m.Type {
	case msgHello:
		s.logger.Debug("player page says hello")
	case msgSDKReady:
		s.finishLoad(nil)
	case msgSDKError:
		s.finishLoad(fmt.Errorf("%w: %s", engine.ErrScriptLoad, m.Error))
	case msgTokenRequest:
		go s.answerToken(page, m.ID)
	default:
		s.logger.Warn("unknown frame from player page", "type", m.Type)
	}
}

func (s *Server) answerToken(page *pageConn, id uint64) {
	reply := message{Type: msgToken, ID: id}

	p := s.activePlayer()
	if p == nil {
		reply.Error = "no player"
	} else {
		ctx, cancel := context.WithTimeout(context.Background(), tokenTimeout)
		tok, err := p.opts.Token(ctx)
		cancel()
		if err != nil {
			reply.Error = err.Error()
		} else {
			reply.Data, _ = jsonString(tok)
		}
	}
	if err := page.write(reply); err != nil {
		s.logger.Debug("token reply dropped", "err", err)
	}
}

// dispatch delivers a page's events to the active player, one at a time
// and in order. When the page goes away it emits not_ready for the last
// device it announced.
func (s *Server) dispatch(page *pageConn) {
	var deviceID string
	for m := range page.events {
		ev, err := decodeEvent(m)
		if err != nil {
			s.logger.Warn("bad event from player page", "event", m.Event, "err", err)
			continue
		}
		if ev.Name == engine.EventReady {
			deviceID = ev.DeviceID
		}
		if p := s.activePlayer(); p != nil {
			p.listeners.Emit(ev)
		}
	}

	s.mu.Lock()
	if s.page == page {
		s.page = nil
		s.pageUp = make(chan struct{})
	}
	s.mu.Unlock()
	s.logger.Warn("player page disconnected")

	if deviceID == "" {
		return
	}
	if p := s.activePlayer(); p != nil {
		p.listeners.Emit(engine.Event{Name: engine.EventNotReady, DeviceID: deviceID})
	}
}

func (s *Server) recoverPanic(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				w.Header().Set("Connection", "close")
				s.logger.Error("panic serving request", "path", r.URL.Path, "err", err)
				http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func (s *Server) logRequest(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.logger.Debug("request", "method", r.Method, "path", r.URL.Path, "remote", r.RemoteAddr)
		next.ServeHTTP(w, r)
	})
}

// sameOrigin accepts upgrades only from the page this server served.
func sameOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	return origin == "http://"+r.Host
}
