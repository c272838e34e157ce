package session

import (
	"context"
	"fmt"
	"time"

	"github.com/tessro/spindle/internal/core"
	"github.com/tessro/spindle/internal/engine"
	apperrors "github.com/tessro/spindle/internal/errors"
)

// handleEvent applies one engine event from instance gen. Events from an
// instance that is no longer live are dropped.
func (s *Session) handleEvent(gen uint64, ev engine.Event) {
	s.mu.Lock()
	if s.closed || gen != s.instance {
		s.mu.Unlock()
		return
	}

	switch ev.Name {
	case engine.EventReady:
		s.onReadyLocked(ev.DeviceID)
	case engine.EventNotReady:
		s.logger.Warn("device went offline", "device", ev.DeviceID)
		s.deviceID = ""
		s.stopPollingLocked()
		s.startReconnectLocked()
	case engine.EventStateChanged:
		s.onStateChangedLocked(ev.State)
	case engine.EventPlaybackError:
		s.logger.Warn("playback error", "msg", ev.Message)
		s.lastErr = ev.Message
	case engine.EventInitializationError, engine.EventAuthenticationError, engine.EventAccountError:
		s.onFatalLocked(gen, ev)
	}
	s.mu.Unlock()
	s.publish()
}

func (s *Session) onReadyLocked(deviceID string) {
	s.logger.Info("device ready", "device", deviceID)
	s.deviceID = deviceID
	if s.phase != core.PhaseLoading {
		s.lastErr = ""
	}

	s.spawn(func() {
		ctx, cancel := context.WithTimeout(s.ctx, remoteTimeout)
		defer cancel()
		if err := s.remote.TransferPlayback(ctx, deviceID); err != nil {
			s.logger.Warn("transfer playback failed", "device", deviceID, "err", err)
			s.noteRemoteError(err)
			return
		}
		s.seedTrack(ctx)
	})

	if !s.synced {
		s.synced = true
		s.SyncQueue()
	}
}

// seedTrack shows what the account had loaded when the device came up,
// paused, unless the engine has reported a track of its own by then.
func (s *Session) seedTrack(ctx context.Context) {
	s.mu.Lock()
	known := s.track != nil
	s.mu.Unlock()
	if known {
		return
	}

	t, progressMs, err := s.remote.CurrentlyPlaying(ctx)
	if err != nil {
		s.logger.Debug("currently playing fetch failed", "err", err)
		s.noteRemoteError(err)
		return
	}
	if t == nil {
		return
	}

	s.mu.Lock()
	if s.track != nil {
		s.mu.Unlock()
		return
	}
	s.track = t
	s.position = t.PercentAt(progressMs)
	s.mu.Unlock()
	s.publish()
}

func (s *Session) onFatalLocked(gen uint64, ev engine.Event) {
	var err error
	switch ev.Name {
	case engine.EventAuthenticationError:
		err = fmt.Errorf("%w: %s", apperrors.ErrAuthentication, ev.Message)
		s.expired = true
	case engine.EventAccountError:
		err = fmt.Errorf("%w: %s", apperrors.ErrPremiumRequired, ev.Message)
	default:
		err = fmt.Errorf("%w: %s", apperrors.ErrEngineInit, ev.Message)
	}
	s.logger.Error("engine error", "event", ev.Name, "err", err)

	s.engineErr = err
	s.phase = core.PhaseError
	s.lastErr = err.Error()
	s.stopPollingLocked()
	s.stopSyncLoopLocked()
	s.spawn(func() { s.teardown(gen) })
}

// onStateChangedLocked applies a player_state_changed payload. A nil
// state means the engine has nothing loaded: playback is paused and the
// track is kept.
func (s *Session) onStateChangedLocked(st *engine.State) {
	if st == nil {
		s.playing = false
		s.stopPollingLocked()
		s.updateSyncLoopLocked()
		return
	}

	next := st.Track
	changed := s.track == nil || s.track.ID != next.ID
	if changed {
		s.observeAdvanceLocked(next)
	}

	s.track = &next
	s.position = core.Percent(st.Position, st.Duration)
	s.playing = !st.Paused

	if changed || !s.playing {
		s.stopPollingLocked()
	}
	if s.playing && s.pollStop == nil {
		s.startPollingLocked()
	}
	s.updateSyncLoopLocked()
}

// observeAdvanceLocked shifts the queue when the engine moved on to the
// track at its head by itself. Track changes that follow one of our own
// skips are left alone until the skip target shows up.
func (s *Session) observeAdvanceLocked(next core.Track) {
	if s.skipTarget != "" && s.now().Before(s.skipUntil) {
		if next.ID == s.skipTarget {
			s.skipTarget = ""
		}
		return
	}
	s.skipTarget = ""

	front, ok := s.queue.Front()
	if !ok || front.ID != next.ID {
		return
	}
	s.queue.PopFront()
	if s.track != nil {
		s.history.Push(*s.track)
	}
}

// startPollingLocked starts the position poller for the live instance.
func (s *Session) startPollingLocked() {
	p := s.player
	if p == nil || s.timing.PositionInterval <= 0 {
		return
	}
	s.pollGen++
	gen := s.pollGen
	ctx, cancel := context.WithCancel(s.ctx)
	s.pollStop = cancel
	s.spawn(func() { s.pollPosition(ctx, gen, p) })
}

func (s *Session) stopPollingLocked() {
	if s.pollStop != nil {
		s.pollStop()
		s.pollStop = nil
	}
	s.pollGen++
}

// pollPosition refreshes the position from the engine until cancelled.
// Results that arrive after the poller was replaced are discarded.
func (s *Session) pollPosition(ctx context.Context, gen uint64, p engine.Player) {
	ticker := time.NewTicker(s.timing.PositionInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		st, err := p.GetCurrentState(ctx)
		if err != nil {
			s.logger.Debug("position poll failed", "err", err)
			continue
		}

		s.mu.Lock()
		if gen != s.pollGen {
			s.mu.Unlock()
			return
		}
		if st != nil && s.track != nil && st.Track.ID == s.track.ID {
			s.position = core.Percent(st.Position, st.Duration)
		}
		s.mu.Unlock()
		s.publish()
	}
}

// updateSyncLoopLocked runs the periodic queue sync while playing and
// stops it otherwise.
func (s *Session) updateSyncLoopLocked() {
	switch {
	case s.playing && s.syncStop == nil && s.timing.SyncInterval > 0:
		ctx, cancel := context.WithCancel(s.ctx)
		s.syncStop = cancel
		s.spawn(func() { s.syncLoop(ctx) })
	case !s.playing:
		s.stopSyncLoopLocked()
	}
}

func (s *Session) stopSyncLoopLocked() {
	if s.syncStop != nil {
		s.syncStop()
		s.syncStop = nil
	}
}

func (s *Session) syncLoop(ctx context.Context) {
	ticker := time.NewTicker(s.timing.SyncInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.SyncQueue()
		}
	}
}
