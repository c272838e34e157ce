package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tessro/spindle/internal/core"
	"github.com/tessro/spindle/internal/engine"
	apperrors "github.com/tessro/spindle/internal/errors"
)

// ErrClosed is returned by Initialize after Close.
var ErrClosed = errors.New("session closed")

// Initialize binds an engine instance: it checks the credential, loads
// the engine, builds and connects an instance and waits for it to report
// a device. Success moves the session to ready; any failure moves it to
// error and releases the instance. A call while an instance is live or
// another initialization is running does nothing.
func (s *Session) Initialize(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if s.initializing || s.reconnecting || s.player != nil {
		s.mu.Unlock()
		return nil
	}
	s.initializing = true
	s.phase = core.PhaseLoading
	s.lastErr = ""
	s.engineErr = nil
	s.mu.Unlock()
	s.publish()

	err := s.bootstrap(ctx)

	s.mu.Lock()
	s.initializing = false
	if err != nil {
		s.phase = core.PhaseError
		s.lastErr = err.Error()
		if errors.Is(err, apperrors.ErrSessionExpired) || errors.Is(err, apperrors.ErrAuthentication) {
			s.expired = true
		}
	} else if s.phase != core.PhaseError {
		s.phase = core.PhaseReady
	}
	s.mu.Unlock()
	s.publish()

	if err != nil {
		s.logger.Error("engine initialization failed", "err", err)
		return err
	}
	s.logger.Info("engine ready", "device", s.Snapshot().DeviceID)
	return nil
}

// bootstrap does the work of Initialize without touching the phase. On
// failure no instance is left bound.
func (s *Session) bootstrap(ctx context.Context) error {
	if _, err := s.tokens.AccessToken(ctx); err != nil {
		if errors.Is(err, apperrors.ErrNoCredential) {
			return err
		}
		return fmt.Errorf("%w: %w", apperrors.ErrNoCredential, err)
	}

	if err := s.remote.CheckCredential(ctx); err != nil {
		return fmt.Errorf("credential check: %w", err)
	}

	loadCtx, cancel := context.WithTimeout(ctx, s.timing.LoadTimeout)
	err := s.sdk.Load(loadCtx)
	cancel()
	if err != nil {
		return fmt.Errorf("%w: %w", apperrors.ErrEngineInit, err)
	}

	s.mu.Lock()
	volume := s.volume
	s.mu.Unlock()

	p, err := s.sdk.NewPlayer(engine.Options{
		Name:   s.name,
		Volume: float64(volume) / 100,
		Token:  s.tokens.AccessToken,
	})
	if err != nil {
		return fmt.Errorf("%w: %w", apperrors.ErrEngineInit, err)
	}

	s.mu.Lock()
	s.instance++
	gen := s.instance
	s.player = p
	s.engineErr = nil
	s.mu.Unlock()

	for _, name := range engine.Events {
		p.AddListener(name, func(ev engine.Event) { s.handleEvent(gen, ev) })
	}

	ok, err := p.Connect(ctx)
	if err != nil || !ok {
		s.teardown(gen)
		if err == nil {
			err = errors.New("engine refused to connect")
		}
		return fmt.Errorf("%w: %w", apperrors.ErrEngineInit, err)
	}

	if err := s.awaitDevice(ctx, gen); err != nil {
		s.teardown(gen)
		return err
	}
	return nil
}

// awaitDevice polls for the device id of instance gen.
func (s *Session) awaitDevice(ctx context.Context, gen uint64) error {
	check := func() (bool, error) {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.engineErr != nil {
			return false, s.engineErr
		}
		if s.instance != gen {
			return false, fmt.Errorf("%w: instance replaced", apperrors.ErrEngineInit)
		}
		return s.deviceID != "", nil
	}

	for range s.timing.DeviceReadyAttempts {
		if ok, err := check(); ok || err != nil {
			return err
		}
		select {
		case <-time.After(s.timing.DeviceReadyInterval):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if ok, err := check(); ok || err != nil {
		return err
	}
	return fmt.Errorf("%w: no device after %d attempts", apperrors.ErrDeviceNotReady, s.timing.DeviceReadyAttempts)
}

// teardown releases the live instance and everything keyed to it. A
// non-zero gen limits it to that instance.
func (s *Session) teardown(gen uint64) {
	s.mu.Lock()
	if gen != 0 && gen != s.instance {
		s.mu.Unlock()
		return
	}
	p := s.player
	s.player = nil
	s.instance++
	s.deviceID = ""
	s.stopPollingLocked()
	s.stopSyncLoopLocked()
	s.mu.Unlock()

	if p == nil {
		return
	}
	for _, name := range engine.Events {
		p.RemoveListener(name)
	}
	p.Disconnect()
	s.logger.Debug("engine instance released")
}

// startReconnectLocked starts the reconnect loop unless one is running
// or nothing is bound to reconnect.
func (s *Session) startReconnectLocked() {
	if s.reconnecting || s.initializing || s.closed || s.player == nil || s.phase == core.PhaseError {
		return
	}
	s.reconnecting = true
	s.spawn(s.reconnect)
}

// reconnect tries to get a device back, at most ReconnectAttempts times.
// Each attempt first reconnects the existing instance and falls back to a
// fresh one. When every attempt fails the session moves to error.
func (s *Session) reconnect() {
	defer func() {
		s.mu.Lock()
		s.reconnecting = false
		s.mu.Unlock()
	}()

	for attempt := 1; attempt <= s.timing.ReconnectAttempts; attempt++ {
		if attempt > 1 {
			select {
			case <-time.After(s.timing.ReconnectInterval):
			case <-s.ctx.Done():
				return
			}
		}

		s.mu.Lock()
		done := s.deviceID != "" || s.phase == core.PhaseError || s.closed
		s.mu.Unlock()
		if done {
			return
		}

		err := s.reconnectOnce(s.ctx)
		if err == nil {
			s.logger.Info("engine reconnected", "attempt", attempt)
			s.publish()
			return
		}
		if s.ctx.Err() != nil {
			return
		}
		s.logger.Warn("reconnect attempt failed", "attempt", attempt, "err", err)
	}

	s.teardown(0)
	s.mu.Lock()
	s.phase = core.PhaseError
	s.lastErr = apperrors.ErrReconnectExhausted.Error()
	s.mu.Unlock()
	s.publish()
	s.logger.Error("giving up on the engine", "attempts", s.timing.ReconnectAttempts)
}

func (s *Session) reconnectOnce(ctx context.Context) error {
	s.mu.Lock()
	p, gen := s.player, s.instance
	s.mu.Unlock()

	if p != nil {
		ok, err := p.Connect(ctx)
		if err == nil && ok {
			if err := s.awaitDevice(ctx, gen); err == nil {
				return nil
			}
		}
	}

	s.teardown(gen)
	return s.bootstrap(ctx)
}
