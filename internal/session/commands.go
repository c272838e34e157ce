package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tessro/spindle/internal/engine"
	apperrors "github.com/tessro/spindle/internal/errors"
)

// devicePoll is how often PlayTrack looks for a device while waiting.
const devicePoll = 100 * time.Millisecond

// PlayTrack plays a track on this session's device. Without a device it
// starts initialization and waits up to the play wait for one.
func (s *Session) PlayTrack(ctx context.Context, trackID string) error {
	if _, err := s.tokens.AccessToken(ctx); err != nil {
		if errors.Is(err, apperrors.ErrNoCredential) {
			return err
		}
		return fmt.Errorf("%w: %w", apperrors.ErrNoCredential, err)
	}

	dev, err := s.waitForDevice(ctx)
	if err != nil {
		return err
	}

	// Judged before the engine can shift the track off the queue.
	s.mu.Lock()
	fresh := !s.queue.Contains(trackID) && !s.history.Contains(trackID)
	s.mu.Unlock()

	if err := s.remote.PlayTrack(ctx, dev, trackID); err != nil {
		s.noteRemoteError(err)
		return fmt.Errorf("play %s: %w", trackID, err)
	}

	if fresh {
		s.mu.Lock()
		s.history.Clear()
		s.mu.Unlock()
		s.publish()
	}
	s.spawn(func() { s.loadTrack(trackID) })
	return nil
}

func (s *Session) waitForDevice(ctx context.Context) (string, error) {
	device := func() string {
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.deviceID
	}
	if dev := device(); dev != "" {
		return dev, nil
	}

	s.spawn(func() { _ = s.Initialize(s.ctx) })

	deadline := time.NewTimer(s.timing.PlayWait)
	defer deadline.Stop()
	tick := time.NewTicker(min(devicePoll, max(s.timing.PlayWait/4, time.Millisecond)))
	defer tick.Stop()

	for {
		select {
		case <-tick.C:
			if dev := device(); dev != "" {
				return dev, nil
			}
		case <-deadline.C:
			if dev := device(); dev != "" {
				return dev, nil
			}
			return "", apperrors.ErrDeviceNotReady
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
}

// loadTrack fetches metadata for a track that was just started.
func (s *Session) loadTrack(trackID string) {
	ctx, cancel := context.WithTimeout(s.ctx, remoteTimeout)
	defer cancel()

	t, err := s.remote.Track(ctx, trackID)
	if err != nil {
		s.logger.Warn("track metadata fetch failed", "track", trackID, "err", err)
		s.noteRemoteError(err)
		return
	}

	s.mu.Lock()
	if s.track == nil || s.track.ID != t.ID {
		s.position = 0
	}
	s.track = t
	s.playing = true
	if s.pollStop == nil {
		s.startPollingLocked()
	}
	s.updateSyncLoopLocked()
	s.mu.Unlock()
	s.publish()
}

// PauseTrack pauses the engine. The flag changes only once the engine
// has paused.
func (s *Session) PauseTrack(ctx context.Context) error {
	p := s.currentPlayer()
	if p == nil {
		return nil
	}
	if err := p.Pause(ctx); err != nil {
		return fmt.Errorf("pause: %w", err)
	}

	s.mu.Lock()
	s.playing = false
	s.stopPollingLocked()
	s.updateSyncLoopLocked()
	s.mu.Unlock()
	s.publish()
	return nil
}

// ResumeTrack resumes the engine. The flag changes only once the engine
// has resumed.
func (s *Session) ResumeTrack(ctx context.Context) error {
	p := s.currentPlayer()
	if p == nil {
		return nil
	}
	if err := p.Resume(ctx); err != nil {
		return fmt.Errorf("resume: %w", err)
	}

	s.mu.Lock()
	s.playing = true
	if s.track != nil && s.pollStop == nil {
		s.startPollingLocked()
	}
	s.updateSyncLoopLocked()
	s.mu.Unlock()
	s.publish()
	return nil
}

// SeekPosition seeks within the current track and sets the position
// before the engine confirms it.
func (s *Session) SeekPosition(ctx context.Context, positionMs int) error {
	s.mu.Lock()
	p, track := s.player, s.track
	s.mu.Unlock()
	if p == nil || track == nil {
		return nil
	}

	if err := p.Seek(ctx, positionMs); err != nil {
		return fmt.Errorf("seek: %w", err)
	}

	s.mu.Lock()
	if s.track != nil && s.track.ID == track.ID {
		s.position = track.PercentAt(positionMs)
	}
	s.mu.Unlock()
	s.publish()
	return nil
}

// SetVolume sets the volume, 0-100. It takes effect in the session at
// once and on the engine when one is bound; otherwise the next instance
// starts at it.
func (s *Session) SetVolume(ctx context.Context, volume int) error {
	volume = clampVolume(volume)

	s.mu.Lock()
	s.volume = volume
	p := s.player
	s.mu.Unlock()
	s.publish()

	if p == nil {
		return nil
	}
	if err := p.SetVolume(ctx, float64(volume)/100); err != nil {
		return fmt.Errorf("set volume: %w", err)
	}
	return nil
}

// Next is SkipToNext.
func (s *Session) Next(ctx context.Context) error {
	return s.SkipToNext(ctx)
}

// Previous is SkipToPrevious.
func (s *Session) Previous(ctx context.Context) error {
	return s.SkipToPrevious(ctx)
}

func (s *Session) currentPlayer() engine.Player {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.player
}
