package session

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/tessro/spindle/internal/core"
	"github.com/tessro/spindle/internal/engine"
	apperrors "github.com/tessro/spindle/internal/errors"
)

func TestPlayTrack(t *testing.T) {
	h := newHarness(t)
	h.ready(t)
	h.remote.mu.Lock()
	h.remote.tracks["a"] = track("a", 200000)
	h.remote.mu.Unlock()

	if err := h.s.PlayTrack(context.Background(), "a"); err != nil {
		t.Fatalf("PlayTrack() error = %v", err)
	}
	if got := h.remote.calls().plays; !reflect.DeepEqual(got, []string{"dev-1/a"}) {
		t.Errorf("plays = %v, want [dev-1/a]", got)
	}

	eventually(t, "track metadata", func() bool {
		st := h.s.Snapshot()
		return st.HasTrack() && st.Track.ID == "a"
	})
	if st := h.s.Snapshot(); st.Track.Title != "Track a" || !st.IsPlaying {
		t.Errorf("state = %+v", st)
	}
}

func TestPlayTrackFreshHistory(t *testing.T) {
	tests := []struct {
		name        string
		id          string
		wantHistory []string
	}{
		{"outside queue and history", "z", nil},
		{"from history", "old", []string{"old"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			h.ready(t)
			h.remote.mu.Lock()
			h.remote.tracks[tt.id] = track(tt.id, 1000)
			h.remote.mu.Unlock()
			h.s.mu.Lock()
			h.s.history.Push(track("old", 1000))
			h.s.mu.Unlock()

			if err := h.s.PlayTrack(context.Background(), tt.id); err != nil {
				t.Fatal(err)
			}
			eventually(t, "track metadata", func() bool {
				st := h.s.Snapshot()
				return st.HasTrack() && st.Track.ID == tt.id
			})
			got := ids(h.s.Snapshot().History)
			if len(got) == 0 {
				got = nil
			}
			if !reflect.DeepEqual(got, tt.wantHistory) {
				t.Errorf("History = %v, want %v", got, tt.wantHistory)
			}
		})
	}
}

func TestPlayTrackFromQueueKeepsHistoryWhenEngineReportsFirst(t *testing.T) {
	h, p := setupSkip(t, "c", []string{"a", "b"}, []string{"h"})
	gate := make(chan struct{})
	h.remote.mu.Lock()
	loaded := track("a", 1000)
	loaded.Title = "Loaded a"
	h.remote.tracks["a"] = loaded
	h.remote.trackGate = gate
	h.remote.mu.Unlock()

	if err := h.s.PlayTrack(context.Background(), "a"); err != nil {
		t.Fatalf("PlayTrack() error = %v", err)
	}
	emit(p, engine.Event{Name: engine.EventStateChanged, State: playing(track("a", 1000), 0)})
	close(gate)

	eventually(t, "track metadata", func() bool {
		st := h.s.Snapshot()
		return st.HasTrack() && st.Track.Title == "Loaded a"
	})
	st := h.s.Snapshot()
	if got := ids(st.Queue); !reflect.DeepEqual(got, []string{"b"}) {
		t.Errorf("Queue = %v, want [b]", got)
	}
	if got := ids(st.History); !reflect.DeepEqual(got, []string{"h", "c"}) {
		t.Errorf("History = %v, want [h c]", got)
	}
}

func TestPlayTrackInitializesEngine(t *testing.T) {
	h := newHarness(t)

	if err := h.s.PlayTrack(context.Background(), "a"); err != nil {
		t.Fatalf("PlayTrack() error = %v", err)
	}
	if got := h.remote.calls().plays; !reflect.DeepEqual(got, []string{"dev-1/a"}) {
		t.Errorf("plays = %v, want [dev-1/a]", got)
	}
}

func TestPlayTrackDeviceNotReady(t *testing.T) {
	h := newHarness(t)
	h.sdk.loadBlock = true

	err := h.s.PlayTrack(context.Background(), "a")
	if !errors.Is(err, apperrors.ErrDeviceNotReady) {
		t.Fatalf("PlayTrack() error = %v, want ErrDeviceNotReady", err)
	}
	if got := h.remote.calls().plays; len(got) != 0 {
		t.Errorf("plays = %v, want none", got)
	}
}

func TestPlayTrackNoCredential(t *testing.T) {
	h := newHarness(t)
	h.tokens.err = errors.New("no token file")

	err := h.s.PlayTrack(context.Background(), "a")
	if !errors.Is(err, apperrors.ErrNoCredential) {
		t.Errorf("PlayTrack() error = %v, want ErrNoCredential", err)
	}
	if h.sdk.playerCount() != 0 {
		t.Error("PlayTrack() built an engine without a credential")
	}
}

func TestPlayTrackRemoteErrors(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		wantExpired bool
	}{
		{"unauthorized", 401, true},
		{"forbidden", 403, false},
		{"server", 500, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			h.ready(t)
			h.remote.mu.Lock()
			h.remote.playErr = apperrors.Remote("PUT /me/player/play", tt.status, errors.New("nope"))
			h.remote.mu.Unlock()

			err := h.s.PlayTrack(context.Background(), "a")
			if !errors.Is(err, apperrors.ErrRemoteCall) {
				t.Errorf("PlayTrack() error = %v, want ErrRemoteCall", err)
			}
			if got := apperrors.StatusOf(err); got != tt.status {
				t.Errorf("StatusOf() = %d, want %d", got, tt.status)
			}
			if got := errors.Is(err, apperrors.ErrSessionExpired); got != tt.wantExpired {
				t.Errorf("errors.Is(err, ErrSessionExpired) = %v, want %v", got, tt.wantExpired)
			}
			if got := h.s.Snapshot().SessionExpired; got != tt.wantExpired {
				t.Errorf("SessionExpired = %v, want %v", got, tt.wantExpired)
			}
		})
	}
}

func TestPauseResume(t *testing.T) {
	h := newHarness(t)
	p := h.ready(t)
	emit(p, engine.Event{Name: engine.EventStateChanged, State: playing(track("a", 1000), 0)})

	if err := h.s.PauseTrack(context.Background()); err != nil {
		t.Fatalf("PauseTrack() error = %v", err)
	}
	if h.s.Snapshot().IsPlaying {
		t.Error("IsPlaying = true after pause")
	}

	if err := h.s.ResumeTrack(context.Background()); err != nil {
		t.Fatalf("ResumeTrack() error = %v", err)
	}
	if !h.s.Snapshot().IsPlaying {
		t.Error("IsPlaying = false after resume")
	}
	if p.count(&p.paused) != 1 || p.count(&p.resumed) != 1 {
		t.Errorf("engine pause/resume = %d/%d, want 1/1", p.count(&p.paused), p.count(&p.resumed))
	}
}

func TestPauseNotConfirmed(t *testing.T) {
	h := newHarness(t)
	p := h.ready(t)
	emit(p, engine.Event{Name: engine.EventStateChanged, State: playing(track("a", 1000), 0)})
	p.mu.Lock()
	p.failPause = true
	p.mu.Unlock()

	if err := h.s.PauseTrack(context.Background()); err == nil {
		t.Fatal("PauseTrack() error = nil, want failure")
	}
	if !h.s.Snapshot().IsPlaying {
		t.Error("IsPlaying = false although the engine did not pause")
	}
}

func TestCommandsWithoutEngine(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	if err := h.s.PauseTrack(ctx); err != nil {
		t.Errorf("PauseTrack() error = %v", err)
	}
	if err := h.s.ResumeTrack(ctx); err != nil {
		t.Errorf("ResumeTrack() error = %v", err)
	}
	if err := h.s.SeekPosition(ctx, 1000); err != nil {
		t.Errorf("SeekPosition() error = %v", err)
	}
	if st := h.s.Snapshot(); st.IsPlaying || st.Position != 0 {
		t.Errorf("state changed without an engine: %+v", st)
	}
}

func TestSeekPosition(t *testing.T) {
	h := newHarness(t)
	p := h.ready(t)

	// No track: nothing happens.
	if err := h.s.SeekPosition(context.Background(), 50000); err != nil {
		t.Fatal(err)
	}
	if len(p.seeks) != 0 {
		t.Errorf("seeked %v without a track", p.seeks)
	}

	emit(p, engine.Event{Name: engine.EventStateChanged, State: &engine.State{Paused: true, Duration: 200000, Track: track("a", 200000)}})
	if err := h.s.SeekPosition(context.Background(), 50000); err != nil {
		t.Fatalf("SeekPosition() error = %v", err)
	}
	if got := h.s.Snapshot().Position; got != 25 {
		t.Errorf("Position = %v, want 25", got)
	}
	p.mu.Lock()
	seeks := append([]int(nil), p.seeks...)
	p.mu.Unlock()
	if !reflect.DeepEqual(seeks, []int{50000}) {
		t.Errorf("engine seeks = %v, want [50000]", seeks)
	}
}

func TestSetVolume(t *testing.T) {
	tests := []struct {
		in   int
		want int
	}{
		{30, 30},
		{-5, 0},
		{150, 100},
	}

	for _, tt := range tests {
		h := newHarness(t)
		if err := h.s.SetVolume(context.Background(), tt.in); err != nil {
			t.Fatal(err)
		}
		if got := h.s.Snapshot().Volume; got != tt.want {
			t.Errorf("SetVolume(%d): Volume = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestSetVolumeBeforeAndAfterBinding(t *testing.T) {
	h := newHarness(t)
	_ = h.s.SetVolume(context.Background(), 80)

	p := h.ready(t)
	h.sdk.mu.Lock()
	initial := h.sdk.opts[0].Volume
	h.sdk.mu.Unlock()
	if initial != 0.8 {
		t.Errorf("instance built with volume %v, want 0.8", initial)
	}

	_ = h.s.SetVolume(context.Background(), 20)
	p.mu.Lock()
	volumes := append([]float64(nil), p.volumes...)
	p.mu.Unlock()
	if !reflect.DeepEqual(volumes, []float64{0.2}) {
		t.Errorf("engine volumes = %v, want [0.2]", volumes)
	}
}

func TestSessionIsController(t *testing.T) {
	var c core.Controller = newHarness(t).s
	if c.Snapshot().Phase != core.PhaseIdle {
		t.Errorf("Phase = %v, want idle", c.Snapshot().Phase)
	}
}
