package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
)

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	if err := c.Spotify.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("spotify: %w", err))
	}
	if err := c.Player.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("player: %w", err))
	}
	if err := c.Session.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("session: %w", err))
	}
	if err := c.Queue.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("queue: %w", err))
	}
	if err := c.TUI.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("tui: %w", err))
	}
	if err := c.Log.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("log: %w", err))
	}

	return errors.Join(errs...)
}

// Validate checks SpotifyConfig for errors.
func (c *SpotifyConfig) Validate() error {
	if c.RedirectURI != "" {
		u, err := url.Parse(c.RedirectURI)
		if err != nil {
			return fmt.Errorf("invalid redirect_uri: %w", err)
		}
		if u.Scheme != "http" || u.Port() == "" {
			return fmt.Errorf("redirect_uri must be a loopback http URL with a port: %s", c.RedirectURI)
		}
	}
	return nil
}

// Validate checks PlayerConfig for errors.
func (c *PlayerConfig) Validate() error {
	if c.Volume < 0 || c.Volume > 100 {
		return errors.New("volume must be between 0 and 100")
	}
	if c.BridgeAddr != "" {
		if _, _, err := net.SplitHostPort(c.BridgeAddr); err != nil {
			return fmt.Errorf("invalid bridge_addr: %w", err)
		}
	}
	return nil
}

// Validate checks SessionConfig for errors.
func (c *SessionConfig) Validate() error {
	var errs []error
	if c.DeviceReadyAttempts < 0 || c.ReconnectAttempts < 0 {
		errs = append(errs, errors.New("attempt counts must be non-negative"))
	}
	if c.DeviceReadyIntervalMs < 0 || c.ReconnectIntervalMs < 0 || c.PlayWaitMs < 0 || c.PositionIntervalMs < 0 || c.LoadTimeoutMs < 0 {
		errs = append(errs, errors.New("intervals must be non-negative"))
	}
	return errors.Join(errs...)
}

// Validate checks QueueConfig for errors.
func (c *QueueConfig) Validate() error {
	if c.SyncIntervalSec < 0 || c.SyncThrottleSec < 0 || c.SyncDebounceMs < 0 {
		return errors.New("sync timings must be non-negative")
	}
	return nil
}

// Validate checks TUIConfig for errors.
func (c *TUIConfig) Validate() error {
	switch c.Theme {
	case "", "auto", "dark", "light":
		// valid
	default:
		return fmt.Errorf("invalid theme: %s (must be auto, dark, or light)", c.Theme)
	}
	return nil
}

// Validate checks LogConfig for errors.
func (c *LogConfig) Validate() error {
	switch c.Level {
	case "", "debug", "info", "warn", "error":
		// valid
	default:
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Level)
	}
	return nil
}
