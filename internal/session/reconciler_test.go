package session

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/tessro/spindle/internal/core"
	"github.com/tessro/spindle/internal/engine"
	apperrors "github.com/tessro/spindle/internal/errors"
)

// setupSkip readies a session playing current with the given queue and
// history.
func setupSkip(t *testing.T, current string, queue, history []string) (*harness, *fakePlayer) {
	t.Helper()
	h := newHarness(t)
	p := h.ready(t)

	emit(p, engine.Event{Name: engine.EventStateChanged, State: playing(track(current, 1000), 0)})
	h.s.mu.Lock()
	for _, id := range queue {
		h.s.queue.Enqueue(track(id, 1000))
	}
	for _, id := range history {
		h.s.history.Push(track(id, 1000))
	}
	h.s.mu.Unlock()
	return h, p
}

func TestEnqueueDuplicate(t *testing.T) {
	h := newHarness(t)
	a := track("a", 1000)

	for range 2 {
		if err := h.s.Enqueue(context.Background(), a); err != nil {
			t.Fatalf("Enqueue() error = %v", err)
		}
	}
	if got := ids(h.s.Snapshot().Queue); !reflect.DeepEqual(got, []string{"a"}) {
		t.Errorf("Queue = %v, want [a]", got)
	}
	if got := h.remote.calls().enqueued; len(got) != 0 {
		t.Errorf("mirrored %v without a device, want nothing", got)
	}
}

func TestEnqueueMirrorsToDevice(t *testing.T) {
	h := newHarness(t)
	h.ready(t)

	_ = h.s.Enqueue(context.Background(), track("a", 1000))
	_ = h.s.Enqueue(context.Background(), track("a", 1000))

	eventually(t, "mirror", func() bool { return len(h.remote.calls().enqueued) == 1 })
	if got := h.remote.calls().enqueued[0]; got != "spotify:track:a" {
		t.Errorf("mirrored %q, want spotify:track:a", got)
	}
}

func TestEnqueueMirrorFailureKeepsLocal(t *testing.T) {
	h := newHarness(t)
	h.ready(t)
	h.remote.mu.Lock()
	h.remote.enqueueErr = apperrors.Remote("POST /me/player/queue", 500, errors.New("down"))
	h.remote.mu.Unlock()

	if err := h.s.Enqueue(context.Background(), track("a", 1000)); err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}
	eventually(t, "mirror attempt", func() bool { return len(h.remote.calls().enqueued) == 1 })
	time.Sleep(5 * time.Millisecond)

	if got := ids(h.s.Snapshot().Queue); !reflect.DeepEqual(got, []string{"a"}) {
		t.Errorf("Queue = %v, want [a]", got)
	}
}

func TestDequeueAndClear(t *testing.T) {
	h := newHarness(t)
	for _, id := range []string{"a", "b", "c"} {
		_ = h.s.Enqueue(context.Background(), track(id, 1000))
	}

	if !h.s.Dequeue("b") {
		t.Error("Dequeue(b) = false, want true")
	}
	if h.s.Dequeue("zzz") {
		t.Error("Dequeue(zzz) = true, want false")
	}
	if got := ids(h.s.Snapshot().Queue); !reflect.DeepEqual(got, []string{"a", "c"}) {
		t.Errorf("Queue = %v, want [a c]", got)
	}

	h.s.ClearQueue()
	if got := h.s.Snapshot().Queue; len(got) != 0 {
		t.Errorf("Queue = %v after ClearQueue, want empty", ids(got))
	}
}

func TestSkipToNext(t *testing.T) {
	h, _ := setupSkip(t, "c", []string{"a", "b"}, nil)

	if err := h.s.SkipToNext(context.Background()); err != nil {
		t.Fatalf("SkipToNext() error = %v", err)
	}

	st := h.s.Snapshot()
	if got := ids(st.Queue); !reflect.DeepEqual(got, []string{"b"}) {
		t.Errorf("Queue = %v, want [b]", got)
	}
	if got := ids(st.History); !reflect.DeepEqual(got, []string{"c"}) {
		t.Errorf("History = %v, want [c]", got)
	}
	if st.Track == nil || st.Track.ID != "a" {
		t.Errorf("Track = %+v, want a", st.Track)
	}
	c := h.remote.calls()
	if c.nexts != 1 || len(c.plays) != 0 {
		t.Errorf("remote next = %d, plays = %v; want 1 next and no direct play", c.nexts, c.plays)
	}
}

func TestSkipToNextFallsBackToDirectPlay(t *testing.T) {
	h, _ := setupSkip(t, "c", []string{"a", "b"}, nil)
	h.remote.nextErr = apperrors.Remote("POST /me/player/next", 502, errors.New("bad gateway"))

	if err := h.s.SkipToNext(context.Background()); err != nil {
		t.Fatalf("SkipToNext() error = %v", err)
	}
	if got := h.remote.calls().plays; !reflect.DeepEqual(got, []string{"dev-1/a"}) {
		t.Errorf("direct plays = %v, want [dev-1/a]", got)
	}
	if got := ids(h.s.Snapshot().Queue); !reflect.DeepEqual(got, []string{"b"}) {
		t.Errorf("Queue = %v, want [b]", got)
	}
}

func TestSkipToNextSessionExpired(t *testing.T) {
	h, _ := setupSkip(t, "c", []string{"a"}, nil)
	h.remote.nextErr = apperrors.Remote("POST /me/player/next", 401, errors.New("token expired"))

	err := h.s.SkipToNext(context.Background())
	if !errors.Is(err, apperrors.ErrSessionExpired) {
		t.Fatalf("SkipToNext() error = %v, want ErrSessionExpired", err)
	}
	if got := h.remote.calls().plays; len(got) != 0 {
		t.Errorf("direct plays = %v, want none", got)
	}
	if !h.s.Snapshot().SessionExpired {
		t.Error("SessionExpired = false, want true")
	}
}

func TestSkipToNextEmptyQueueUsesEngine(t *testing.T) {
	h, p := setupSkip(t, "c", nil, nil)

	if err := h.s.SkipToNext(context.Background()); err != nil {
		t.Fatalf("SkipToNext() error = %v", err)
	}
	if got := p.count(&p.nativeNext); got != 1 {
		t.Errorf("engine next = %d, want 1", got)
	}
	if got := h.remote.calls().nexts; got != 0 {
		t.Errorf("remote next = %d, want 0", got)
	}
	if got := h.s.Snapshot().History; len(got) != 0 {
		t.Errorf("History = %v, want empty", ids(got))
	}
}

func TestSkipWithoutEngine(t *testing.T) {
	h := newHarness(t)
	if err := h.s.SkipToNext(context.Background()); !errors.Is(err, apperrors.ErrNoEngine) {
		t.Errorf("SkipToNext() error = %v, want ErrNoEngine", err)
	}
	if err := h.s.SkipToPrevious(context.Background()); !errors.Is(err, apperrors.ErrNoEngine) {
		t.Errorf("SkipToPrevious() error = %v, want ErrNoEngine", err)
	}
}

func TestSkipToPrevious(t *testing.T) {
	h, _ := setupSkip(t, "a", []string{"b"}, []string{"c"})

	if err := h.s.SkipToPrevious(context.Background()); err != nil {
		t.Fatalf("SkipToPrevious() error = %v", err)
	}

	st := h.s.Snapshot()
	if got := ids(st.Queue); !reflect.DeepEqual(got, []string{"a", "b"}) {
		t.Errorf("Queue = %v, want [a b]", got)
	}
	if len(st.History) != 0 {
		t.Errorf("History = %v, want empty", ids(st.History))
	}
	if st.Track == nil || st.Track.ID != "c" {
		t.Errorf("Track = %+v, want c", st.Track)
	}
	if got := h.remote.calls().prevs; got != 1 {
		t.Errorf("remote previous = %d, want 1", got)
	}
}

func TestSkipToPreviousFallsBack(t *testing.T) {
	h, _ := setupSkip(t, "a", nil, []string{"c"})
	h.remote.prevErr = errors.New("connection reset")

	if err := h.s.SkipToPrevious(context.Background()); err != nil {
		t.Fatalf("SkipToPrevious() error = %v", err)
	}
	if got := h.remote.calls().plays; !reflect.DeepEqual(got, []string{"dev-1/c"}) {
		t.Errorf("direct plays = %v, want [dev-1/c]", got)
	}
}

func TestSkipToPreviousEmptyHistoryUsesEngine(t *testing.T) {
	h, p := setupSkip(t, "a", []string{"b"}, nil)

	if err := h.s.SkipToPrevious(context.Background()); err != nil {
		t.Fatalf("SkipToPrevious() error = %v", err)
	}
	if got := p.count(&p.nativePrev); got != 1 {
		t.Errorf("engine previous = %d, want 1", got)
	}
	if got := ids(h.s.Snapshot().Queue); !reflect.DeepEqual(got, []string{"b"}) {
		t.Errorf("Queue = %v, want [b]", got)
	}
}

func TestSkipSettlesBeforeObservingAdvance(t *testing.T) {
	h, p := setupSkip(t, "a", []string{"b"}, []string{"c"})

	if err := h.s.SkipToPrevious(context.Background()); err != nil {
		t.Fatal(err)
	}
	// A late event for the old track must not be read as the engine
	// advancing into the queue.
	emit(p, engine.Event{Name: engine.EventStateChanged, State: playing(track("a", 1000), 0)})
	emit(p, engine.Event{Name: engine.EventStateChanged, State: playing(track("c", 1000), 0)})

	if got := ids(h.s.Snapshot().Queue); !reflect.DeepEqual(got, []string{"a", "b"}) {
		t.Errorf("Queue = %v, want [a b]", got)
	}
}

func TestSkipToTrack(t *testing.T) {
	h, _ := setupSkip(t, "c", []string{"a", "b", "d"}, nil)

	if err := h.s.SkipToTrack(context.Background(), "b"); err != nil {
		t.Fatalf("SkipToTrack() error = %v", err)
	}
	st := h.s.Snapshot()
	if st.Track == nil || st.Track.ID != "b" {
		t.Errorf("Track = %+v, want b", st.Track)
	}
	if got := ids(st.Queue); !reflect.DeepEqual(got, []string{"d"}) {
		t.Errorf("Queue = %v, want [d]", got)
	}
	if got := ids(st.History); !reflect.DeepEqual(got, []string{"c", "a"}) {
		t.Errorf("History = %v, want [c a]", got)
	}
}

func TestSkipToTrackNotQueued(t *testing.T) {
	h, _ := setupSkip(t, "c", []string{"a"}, nil)

	err := h.s.SkipToTrack(context.Background(), "zzz")
	if !errors.Is(err, apperrors.ErrTrackNotQueued) {
		t.Errorf("SkipToTrack() error = %v, want ErrTrackNotQueued", err)
	}
	if got := h.remote.calls().nexts; got != 0 {
		t.Errorf("remote next = %d, want 0", got)
	}
}

func TestSyncQueueReplacesLocal(t *testing.T) {
	h := newHarness(t)
	h.ready(t)

	h.remote.mu.Lock()
	h.remote.remoteQueue = []core.Track{track("x", 1), track("y", 1), track("x", 1)}
	h.remote.mu.Unlock()
	h.s.mu.Lock()
	h.s.queue.Enqueue(track("local", 1))
	h.s.mu.Unlock()

	h.s.throttle = NewThrottle(0)
	ran, err := h.s.syncNow()
	if !ran || err != nil {
		t.Fatalf("syncNow() = %v, %v, want true, nil", ran, err)
	}
	if got := ids(h.s.Snapshot().Queue); !reflect.DeepEqual(got, []string{"x", "y"}) {
		t.Errorf("Queue = %v, want [x y]", got)
	}
}

func TestSyncQueueKeepsPendingMirrors(t *testing.T) {
	h := newHarness(t)
	h.ready(t)

	h.remote.mu.Lock()
	h.remote.remoteQueue = []core.Track{track("x", 1)}
	h.remote.mu.Unlock()
	h.s.mu.Lock()
	h.s.queue.Enqueue(track("mine", 1))
	h.s.pending["mine"] = struct{}{}
	h.s.mu.Unlock()

	h.s.throttle = NewThrottle(0)
	if _, err := h.s.syncNow(); err != nil {
		t.Fatal(err)
	}
	if got := ids(h.s.Snapshot().Queue); !reflect.DeepEqual(got, []string{"x", "mine"}) {
		t.Errorf("Queue = %v, want [x mine]", got)
	}
}

func TestSyncQueueThrottled(t *testing.T) {
	h := newHarness(t)
	h.ready(t) // the first-device sync has already run

	before := h.remote.calls().fetches
	for range 2 {
		if ran, _ := h.s.syncNow(); ran {
			t.Error("syncNow() ran inside the throttle window")
		}
	}
	if got := h.remote.calls().fetches; got != before {
		t.Errorf("fetches = %d, want %d", got, before)
	}
}

func TestSyncQueueDebounced(t *testing.T) {
	h := newHarness(t)
	h.ready(t)
	h.s.throttle = NewThrottle(time.Hour)

	before := h.remote.calls().fetches
	for range 5 {
		h.s.SyncQueue()
	}
	eventually(t, "debounced sync", func() bool { return h.remote.calls().fetches == before+1 })
	time.Sleep(10 * fastTiming().SyncDebounce)
	if got := h.remote.calls().fetches; got != before+1 {
		t.Errorf("fetches = %d, want %d", got, before+1)
	}
}

func TestSyncQueueFailureDoesNotStamp(t *testing.T) {
	h := newHarness(t)
	h.ready(t)
	stamped := h.s.Snapshot().LastSync

	h.remote.mu.Lock()
	h.remote.queueErr = apperrors.Remote("GET /me/player/queue", 401, errors.New("expired"))
	h.remote.mu.Unlock()
	h.s.throttle = NewThrottle(time.Hour)

	if _, err := h.s.syncNow(); err == nil {
		t.Fatal("syncNow() error = nil, want failure")
	}
	st := h.s.Snapshot()
	if !st.LastSync.Equal(stamped) {
		t.Errorf("LastSync moved on failure: %v -> %v", stamped, st.LastSync)
	}
	if !st.SessionExpired {
		t.Error("SessionExpired = false after a 401, want true")
	}
}
