// Package session mounts one playback session: it owns the engine
// instance, the session state, the local queue and history, and the
// transport commands user interfaces issue against them.
package session

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/mitchellh/hashstructure/v2"

	"github.com/tessro/spindle/internal/config"
	"github.com/tessro/spindle/internal/core"
	"github.com/tessro/spindle/internal/engine"
)

// Remote is the device-targeted transport the session drives over HTTP.
type Remote interface {
	// CheckCredential is the pre-flight identity check run before an
	// engine instance is built.
	CheckCredential(ctx context.Context) error
	TransferPlayback(ctx context.Context, deviceID string) error
	PlayTrack(ctx context.Context, deviceID, trackID string) error
	Next(ctx context.Context, deviceID string) error
	Previous(ctx context.Context, deviceID string) error
	Enqueue(ctx context.Context, deviceID, uri string) error
	Queue(ctx context.Context) ([]core.Track, error)
	Track(ctx context.Context, id string) (*core.Track, error)
	// CurrentlyPlaying returns the account's current track and its
	// progress in milliseconds, or nil.
	CurrentlyPlaying(ctx context.Context) (*core.Track, int, error)
}

// TokenProvider supplies a currently valid bearer token.
type TokenProvider interface {
	AccessToken(ctx context.Context) (string, error)
}

// Timing holds every delay and bound the session works with.
type Timing struct {
	DeviceReadyAttempts int
	DeviceReadyInterval time.Duration
	ReconnectAttempts   int
	ReconnectInterval   time.Duration
	PlayWait            time.Duration
	PositionInterval    time.Duration
	LoadTimeout         time.Duration

	SyncDebounce time.Duration
	SyncThrottle time.Duration
	SyncInterval time.Duration
}

// DefaultTiming returns the production timings.
func DefaultTiming() Timing {
	return TimingFrom(config.Default())
}

// TimingFrom reads timings from a loaded config.
func TimingFrom(cfg *config.Config) Timing {
	return Timing{
		DeviceReadyAttempts: cfg.Session.DeviceReadyAttempts,
		DeviceReadyInterval: cfg.Session.DeviceReadyInterval(),
		ReconnectAttempts:   cfg.Session.ReconnectAttempts,
		ReconnectInterval:   cfg.Session.ReconnectInterval(),
		PlayWait:            cfg.Session.PlayWait(),
		PositionInterval:    cfg.Session.PositionInterval(),
		LoadTimeout:         cfg.Session.LoadTimeout(),
		SyncDebounce:        cfg.Queue.SyncDebounce(),
		SyncThrottle:        cfg.Queue.SyncThrottle(),
		SyncInterval:        cfg.Queue.SyncInterval(),
	}
}

// Options configure a Session.
type Options struct {
	Name   string // device name shown in Spotify Connect
	Volume int    // initial volume, 0-100
	Timing Timing
	Logger *log.Logger
}

// remoteTimeout bounds detached remote calls.
const remoteTimeout = 15 * time.Second

// Session is a mounted playback session. All state is guarded by mu;
// engine events, command results and background tasks all funnel
// through it.
type Session struct {
	sdk    engine.SDK
	remote Remote
	tokens TokenProvider
	name   string
	timing Timing
	logger *log.Logger
	now    func() time.Time

	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	spawnMu sync.Mutex // orders spawn against Close's cancel

	throttle *Throttle
	debounce *Debouncer

	mu           sync.Mutex
	closed       bool
	phase        core.Phase
	player       engine.Player
	instance     uint64 // bumped whenever the live instance changes
	initializing bool
	reconnecting bool
	engineErr    error

	track    *core.Track
	playing  bool
	position float64
	volume   int
	deviceID string
	lastErr  string
	expired  bool

	queue    core.Queue
	history  core.History
	pending  map[string]struct{} // enqueued locally, remote mirror in flight
	lastSync time.Time
	synced   bool

	skipTarget string // track a skip is waiting to see
	skipUntil  time.Time

	pollGen  uint64
	pollStop context.CancelFunc
	syncStop context.CancelFunc

	subMu    sync.Mutex
	subs     map[int]chan core.PlaybackState
	nextSub  int
	lastHash uint64
}

var _ core.Controller = (*Session)(nil)

// New creates an idle session. Nothing touches the engine until
// Initialize.
func New(sdk engine.SDK, remote Remote, tokens TokenProvider, opts Options) *Session {
	if opts.Logger == nil {
		opts.Logger = log.New(io.Discard)
	}
	if opts.Timing == (Timing{}) {
		opts.Timing = DefaultTiming()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Session{
		sdk:      sdk,
		remote:   remote,
		tokens:   tokens,
		name:     opts.Name,
		timing:   opts.Timing,
		logger:   opts.Logger,
		now:      time.Now,
		ctx:      ctx,
		cancel:   cancel,
		throttle: NewThrottle(opts.Timing.SyncThrottle),
		debounce: NewDebouncer(opts.Timing.SyncDebounce),
		volume:   clampVolume(opts.Volume),
		pending:  make(map[string]struct{}),
		subs:     make(map[int]chan core.PlaybackState),
	}
}

// Snapshot returns a copy of the current session state.
func (s *Session) Snapshot() core.PlaybackState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Session) snapshotLocked() core.PlaybackState {
	st := core.PlaybackState{
		Phase:          s.phase,
		IsPlaying:      s.playing,
		Position:       s.position,
		Volume:         s.volume,
		DeviceID:       s.deviceID,
		Queue:          s.queue.Tracks(),
		History:        s.history.Tracks(),
		LastSync:       s.lastSync,
		SessionExpired: s.expired,
		Err:            s.lastErr,
	}
	if s.track != nil {
		t := *s.track
		st.Track = &t
	}
	return st
}

// Subscribe returns a channel that always holds the latest state. Slow
// readers skip intermediate states. The returned func unsubscribes.
func (s *Session) Subscribe() (<-chan core.PlaybackState, func()) {
	ch := make(chan core.PlaybackState, 1)

	s.subMu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = ch
	ch <- s.Snapshot()
	s.subMu.Unlock()

	return ch, func() {
		s.subMu.Lock()
		defer s.subMu.Unlock()
		if c, ok := s.subs[id]; ok {
			delete(s.subs, id)
			close(c)
		}
	}
}

// stateKey is the part of a snapshot that decides whether subscribers
// hear about it.
type stateKey struct {
	Phase    int
	TrackID  string
	Playing  bool
	Position float64
	Volume   int
	DeviceID string
	Queue    []string
	History  []string
	LastSync int64
	Expired  bool
	Err      string
}

func keyOf(st core.PlaybackState) stateKey {
	k := stateKey{
		Phase:    int(st.Phase),
		Playing:  st.IsPlaying,
		Position: st.Position,
		Volume:   st.Volume,
		DeviceID: st.DeviceID,
		LastSync: st.LastSync.UnixNano(),
		Expired:  st.SessionExpired,
		Err:      st.Err,
	}
	if st.Track != nil {
		k.TrackID = st.Track.ID
	}
	for _, t := range st.Queue {
		k.Queue = append(k.Queue, t.ID)
	}
	for _, t := range st.History {
		k.History = append(k.History, t.ID)
	}
	return k
}

// publish hands the current snapshot to subscribers unless nothing they
// can see has changed. Never call it with mu held.
func (s *Session) publish() {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	st := s.Snapshot()
	hash, err := hashstructure.Hash(keyOf(st), hashstructure.FormatV2, nil)
	if err == nil {
		if hash == s.lastHash {
			return
		}
		s.lastHash = hash
	}

	for _, ch := range s.subs {
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- st:
		default:
		}
	}
}

// Close tears the engine down, stops every background task and closes
// subscriber channels. It is safe to call more than once.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	s.debounce.Stop()
	s.teardown(0)
	s.spawnMu.Lock()
	s.cancel()
	s.spawnMu.Unlock()
	s.wg.Wait()

	s.subMu.Lock()
	for id, ch := range s.subs {
		delete(s.subs, id)
		close(ch)
	}
	s.subMu.Unlock()
}

// spawn runs fn on a goroutine Close waits for. Nothing starts once
// Close has begun waiting.
func (s *Session) spawn(fn func()) {
	s.spawnMu.Lock()
	defer s.spawnMu.Unlock()
	if s.ctx.Err() != nil {
		return
	}
	s.wg.Go(fn)
}

func clampVolume(v int) int {
	return min(max(v, 0), 100)
}
