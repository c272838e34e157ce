package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tessro/spindle/internal/core"
	apperrors "github.com/tessro/spindle/internal/errors"
)

// skipSettle is how long a skip waits for the engine to report its
// target before natural track changes shift the queue again.
const skipSettle = 5 * time.Second

// SyncQueue schedules a reconciliation with the remote queue. Bursts are
// debounced; the fetch itself is throttled.
func (s *Session) SyncQueue() {
	s.debounce.Trigger(func() {
		if _, err := s.syncNow(); err != nil && s.ctx.Err() == nil {
			s.logger.Warn("queue sync failed", "err", err)
		}
	})
}

// syncNow fetches the remote queue and replaces the local one with it,
// unless the throttle drops the request. Tracks whose enqueue is still
// being mirrored are kept at the end.
func (s *Session) syncNow() (bool, error) {
	ran, err := s.throttle.TryRun(func() error {
		ctx, cancel := context.WithTimeout(s.ctx, remoteTimeout)
		defer cancel()

		remote, err := s.remote.Queue(ctx)
		if err != nil {
			return err
		}

		s.mu.Lock()
		tracks := remote
		for _, t := range s.queue.Tracks() {
			if _, ok := s.pending[t.ID]; ok {
				tracks = append(tracks, t)
			}
		}
		s.queue.Replace(tracks)
		s.lastSync = s.now()
		s.mu.Unlock()
		s.publish()

		s.logger.Debug("queue synced", "tracks", len(tracks))
		return nil
	})
	if err != nil {
		s.noteRemoteError(err)
	}
	return ran, err
}

// Enqueue appends t to the local queue. When a device is bound the append
// is mirrored to the remote queue in the background; a failed mirror is
// logged and the local append stands.
func (s *Session) Enqueue(ctx context.Context, t core.Track) error {
	s.mu.Lock()
	if !s.queue.Enqueue(t) {
		s.mu.Unlock()
		return nil
	}
	dev := s.deviceID
	if dev != "" && t.URI != "" {
		s.pending[t.ID] = struct{}{}
		s.spawn(func() { s.mirrorEnqueue(dev, t) })
	}
	s.mu.Unlock()
	s.publish()
	return nil
}

func (s *Session) mirrorEnqueue(deviceID string, t core.Track) {
	defer func() {
		s.mu.Lock()
		delete(s.pending, t.ID)
		s.mu.Unlock()
	}()

	ctx, cancel := context.WithTimeout(s.ctx, remoteTimeout)
	defer cancel()
	if err := s.remote.Enqueue(ctx, deviceID, t.URI); err != nil {
		s.logger.Warn("remote enqueue failed", "track", t.ID, "err", err)
		s.noteRemoteError(err)
	}
}

// Dequeue removes a track from the local queue.
func (s *Session) Dequeue(id string) bool {
	s.mu.Lock()
	removed := s.queue.Remove(id)
	delete(s.pending, id)
	s.mu.Unlock()
	if removed {
		s.publish()
	}
	return removed
}

// ClearQueue empties the local queue.
func (s *Session) ClearQueue() {
	s.mu.Lock()
	s.queue.Clear()
	clear(s.pending)
	s.mu.Unlock()
	s.publish()
}

// SkipToNext advances to the head of the queue, moving the current track
// to history. With an empty queue the engine skips on its own.
func (s *Session) SkipToNext(ctx context.Context) error {
	s.mu.Lock()
	p := s.player
	if p == nil {
		s.mu.Unlock()
		return apperrors.ErrNoEngine
	}
	next, ok := s.queue.PopFront()
	if !ok {
		s.mu.Unlock()
		if err := p.NextTrack(ctx); err != nil {
			return fmt.Errorf("next track: %w", err)
		}
		return nil
	}
	if s.track != nil {
		s.history.Push(*s.track)
	}
	s.moveToLocked(next)
	dev := s.deviceID
	s.mu.Unlock()
	s.publish()

	return s.advance(ctx, "next", dev, next, s.remote.Next)
}

// SkipToPrevious returns to the last track in history, putting the
// current track back at the head of the queue. With an empty history the
// engine goes back on its own.
func (s *Session) SkipToPrevious(ctx context.Context) error {
	s.mu.Lock()
	p := s.player
	if p == nil {
		s.mu.Unlock()
		return apperrors.ErrNoEngine
	}
	prev, ok := s.history.Pop()
	if !ok {
		s.mu.Unlock()
		if err := p.PreviousTrack(ctx); err != nil {
			return fmt.Errorf("previous track: %w", err)
		}
		return nil
	}
	if s.track != nil {
		s.queue.PushFront(*s.track)
	}
	s.moveToLocked(prev)
	dev := s.deviceID
	s.mu.Unlock()
	s.publish()

	return s.advance(ctx, "previous", dev, prev, s.remote.Previous)
}

// moveToLocked makes t current ahead of the engine's confirmation.
func (s *Session) moveToLocked(t core.Track) {
	s.track = &t
	s.position = 0
	s.skipTarget = t.ID
	s.skipUntil = s.now().Add(skipSettle)
	s.stopPollingLocked()
}

// advance issues the remote skip. If that fails for any reason other than
// an expired session, the target is played directly; local state has
// already moved, so this repairs rather than skips twice.
func (s *Session) advance(ctx context.Context, op, deviceID string, target core.Track, call func(context.Context, string) error) error {
	err := call(ctx, deviceID)
	if err == nil {
		return nil
	}
	if errors.Is(err, apperrors.ErrSessionExpired) {
		s.noteRemoteError(err)
		return err
	}

	s.logger.Warn("remote skip failed, playing target directly", "op", op, "track", target.ID, "err", err)
	if err := s.remote.PlayTrack(ctx, deviceID, target.ID); err != nil {
		s.noteRemoteError(err)
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// SkipToTrack skips forward until id is playing. It gives up after as
// many skips as the queue held when called.
func (s *Session) SkipToTrack(ctx context.Context, id string) error {
	s.mu.Lock()
	queued := s.queue.Contains(id)
	limit := s.queue.Len()
	s.mu.Unlock()
	if !queued {
		return fmt.Errorf("%w: %s", apperrors.ErrTrackNotQueued, id)
	}

	for range limit {
		if err := s.SkipToNext(ctx); err != nil {
			return err
		}
		s.mu.Lock()
		reached := s.track != nil && s.track.ID == id
		s.mu.Unlock()
		if reached {
			return nil
		}
	}
	return fmt.Errorf("%w: %s was not reached", apperrors.ErrTrackNotQueued, id)
}

// noteRemoteError flags the session as expired when err is a 401.
func (s *Session) noteRemoteError(err error) {
	if !errors.Is(err, apperrors.ErrSessionExpired) {
		return
	}
	s.mu.Lock()
	s.expired = true
	s.mu.Unlock()
	s.publish()
}
