package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/tessro/spindle/internal/core"
	"github.com/tessro/spindle/internal/engine"
	apperrors "github.com/tessro/spindle/internal/errors"
)

type fakeTokens struct {
	err error
}

func (f *fakeTokens) AccessToken(context.Context) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return "token", nil
}

type fakePlayer struct {
	engine.Listeners

	mu         sync.Mutex
	device     string
	autoReady  bool
	connectOK  bool
	connects   int
	disconnect int
	paused     int
	resumed    int
	seeks      []int
	volumes    []float64
	nativeNext int
	nativePrev int
	state      *engine.State
	failPause  bool
}

func (p *fakePlayer) Connect(context.Context) (bool, error) {
	p.mu.Lock()
	p.connects++
	ok, ready, dev := p.connectOK, p.autoReady, p.device
	p.mu.Unlock()
	if ok && ready {
		p.Emit(engine.Event{Name: engine.EventReady, DeviceID: dev})
	}
	return ok, nil
}

func (p *fakePlayer) Disconnect() {
	p.mu.Lock()
	p.disconnect++
	p.mu.Unlock()
}

func (p *fakePlayer) AddListener(name engine.EventName, h engine.Handler) { p.Add(name, h) }
func (p *fakePlayer) RemoveListener(name engine.EventName)                { p.Remove(name) }

func (p *fakePlayer) Pause(context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failPause {
		return errors.New("pause refused")
	}
	p.paused++
	return nil
}

func (p *fakePlayer) Resume(context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.resumed++
	return nil
}

func (p *fakePlayer) Seek(_ context.Context, ms int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.seeks = append(p.seeks, ms)
	return nil
}

func (p *fakePlayer) SetVolume(_ context.Context, v float64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.volumes = append(p.volumes, v)
	return nil
}

func (p *fakePlayer) NextTrack(context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.nativeNext++
	return nil
}

func (p *fakePlayer) PreviousTrack(context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.nativePrev++
	return nil
}

func (p *fakePlayer) GetCurrentState(context.Context) (*engine.State, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state == nil {
		return nil, nil
	}
	st := *p.state
	return &st, nil
}

func (p *fakePlayer) setState(st *engine.State) {
	p.mu.Lock()
	p.state = st
	p.mu.Unlock()
}

func (p *fakePlayer) count(field *int) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return *field
}

type fakeSDK struct {
	mu        sync.Mutex
	loadErr   error
	loadBlock bool
	loads     int
	autoReady bool
	connectOK bool
	players   []*fakePlayer
	opts      []engine.Options
}

func (f *fakeSDK) Load(ctx context.Context) error {
	f.mu.Lock()
	f.loads++
	block, err := f.loadBlock, f.loadErr
	f.mu.Unlock()
	if block {
		<-ctx.Done()
		return ctx.Err()
	}
	return err
}

func (f *fakeSDK) NewPlayer(opts engine.Options) (engine.Player, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p := &fakePlayer{
		device:    fmt.Sprintf("dev-%d", len(f.players)+1),
		autoReady: f.autoReady,
		connectOK: f.connectOK,
	}
	f.players = append(f.players, p)
	f.opts = append(f.opts, opts)
	return p, nil
}

func (f *fakeSDK) player(i int) *fakePlayer {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.players[i]
}

func (f *fakeSDK) playerCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.players)
}

type fakeRemote struct {
	mu sync.Mutex

	checkErr   error
	nextErr    error
	prevErr    error
	playErr    error
	enqueueErr error
	queueErr   error

	remoteQueue []core.Track
	tracks      map[string]core.Track
	current     *core.Track
	progressMs  int
	trackGate   chan struct{}

	checks    int
	transfers []string
	plays     []string // "device/track"
	nexts     int
	prevs     int
	enqueued  []string
	fetches   int
	queueGate chan struct{}
}

func (f *fakeRemote) CheckCredential(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.checks++
	return f.checkErr
}

func (f *fakeRemote) TransferPlayback(_ context.Context, dev string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.transfers = append(f.transfers, dev)
	return nil
}

func (f *fakeRemote) PlayTrack(_ context.Context, dev, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.plays = append(f.plays, dev+"/"+id)
	return f.playErr
}

func (f *fakeRemote) Next(context.Context, string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nexts++
	return f.nextErr
}

func (f *fakeRemote) Previous(context.Context, string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prevs++
	return f.prevErr
}

func (f *fakeRemote) Enqueue(_ context.Context, _ string, uri string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.enqueued = append(f.enqueued, uri)
	return f.enqueueErr
}

func (f *fakeRemote) Queue(context.Context) ([]core.Track, error) {
	f.mu.Lock()
	f.fetches++
	gate := f.queueGate
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.queueErr != nil {
		return nil, f.queueErr
	}
	return append([]core.Track(nil), f.remoteQueue...), nil
}

func (f *fakeRemote) Track(_ context.Context, id string) (*core.Track, error) {
	f.mu.Lock()
	gate := f.trackGate
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.tracks[id]
	if !ok {
		return nil, apperrors.Remote("GET /tracks/"+id, 404, errors.New("not found"))
	}
	return &t, nil
}

func (f *fakeRemote) CurrentlyPlaying(context.Context) (*core.Track, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.current == nil {
		return nil, 0, nil
	}
	t := *f.current
	return &t, f.progressMs, nil
}

// remoteCalls is a copy of what a fakeRemote has been asked to do.
type remoteCalls struct {
	checks    int
	transfers []string
	plays     []string
	nexts     int
	prevs     int
	enqueued  []string
	fetches   int
}

func (f *fakeRemote) calls() remoteCalls {
	f.mu.Lock()
	defer f.mu.Unlock()
	return remoteCalls{
		checks:    f.checks,
		transfers: append([]string(nil), f.transfers...),
		plays:     append([]string(nil), f.plays...),
		nexts:     f.nexts,
		prevs:     f.prevs,
		enqueued:  append([]string(nil), f.enqueued...),
		fetches:   f.fetches,
	}
}

func fastTiming() Timing {
	return Timing{
		DeviceReadyAttempts: 3,
		DeviceReadyInterval: 5 * time.Millisecond,
		ReconnectAttempts:   3,
		ReconnectInterval:   10 * time.Millisecond,
		PlayWait:            50 * time.Millisecond,
		PositionInterval:    5 * time.Millisecond,
		LoadTimeout:         100 * time.Millisecond,
		SyncDebounce:        time.Millisecond,
		SyncThrottle:        time.Hour,
		SyncInterval:        time.Hour,
	}
}

type harness struct {
	s      *Session
	sdk    *fakeSDK
	remote *fakeRemote
	tokens *fakeTokens
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		sdk:    &fakeSDK{autoReady: true, connectOK: true},
		remote: &fakeRemote{tracks: map[string]core.Track{}},
		tokens: &fakeTokens{},
	}
	h.s = New(h.sdk, h.remote, h.tokens, Options{
		Name:   "Spindle Web Player",
		Volume: 50,
		Timing: fastTiming(),
	})
	t.Cleanup(h.s.Close)
	return h
}

// ready initializes the session and returns the bound player.
func (h *harness) ready(t *testing.T) *fakePlayer {
	t.Helper()
	if err := h.s.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}
	// Let the first-device sync land so it cannot race the test.
	eventually(t, "first queue sync", func() bool { return !h.s.Snapshot().LastSync.IsZero() })
	return h.sdk.player(h.sdk.playerCount() - 1)
}

// emit delivers an event to the player as the engine would.
func emit(p *fakePlayer, ev engine.Event) {
	p.Emit(ev)
}

func track(id string, durMs int) core.Track {
	return core.Track{
		ID:       id,
		URI:      "spotify:track:" + id,
		Title:    "Track " + id,
		Artists:  []string{"Artist"},
		Duration: time.Duration(durMs) * time.Millisecond,
	}
}

func playing(t core.Track, posMs int) *engine.State {
	return &engine.State{Paused: false, Position: posMs, Duration: int(t.Duration.Milliseconds()), Track: t}
}

func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(2 * time.Millisecond)
	}
}

func ids(tracks []core.Track) []string {
	out := make([]string, len(tracks))
	for i, t := range tracks {
		out[i] = t.ID
	}
	return out
}
