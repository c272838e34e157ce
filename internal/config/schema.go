package config

import "time"

// Config is the root configuration structure.
type Config struct {
	Spotify SpotifyConfig `toml:"spotify"`
	Player  PlayerConfig  `toml:"player"`
	Session SessionConfig `toml:"session"`
	Queue   QueueConfig   `toml:"queue"`
	TUI     TUIConfig     `toml:"tui"`
	Log     LogConfig     `toml:"log"`
}

// SpotifyConfig holds Spotify API settings.
type SpotifyConfig struct {
	ClientID    string `toml:"client_id"`
	RedirectURI string `toml:"redirect_uri"`
}

// PlayerConfig holds settings for the embedded web player.
type PlayerConfig struct {
	Name        string `toml:"name"`
	Volume      int    `toml:"volume"`
	BridgeAddr  string `toml:"bridge_addr"`
	OpenBrowser bool   `toml:"open_browser"`
}

// SessionConfig holds engine binding timings. Intervals are milliseconds.
type SessionConfig struct {
	DeviceReadyAttempts   int `toml:"device_ready_attempts"`
	DeviceReadyIntervalMs int `toml:"device_ready_interval_ms"`
	ReconnectAttempts     int `toml:"reconnect_attempts"`
	ReconnectIntervalMs   int `toml:"reconnect_interval_ms"`
	PlayWaitMs            int `toml:"play_wait_ms"`
	PositionIntervalMs    int `toml:"position_interval_ms"`
	LoadTimeoutMs         int `toml:"load_timeout_ms"`
}

// QueueConfig holds queue reconciliation timings.
type QueueConfig struct {
	SyncIntervalSec int `toml:"sync_interval_sec"`
	SyncThrottleSec int `toml:"sync_throttle_sec"`
	SyncDebounceMs  int `toml:"sync_debounce_ms"`
}

// TUIConfig holds terminal UI settings.
type TUIConfig struct {
	Theme string `toml:"theme"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `toml:"level"`
	File  string `toml:"file"`
}

func ms(n int) time.Duration { return time.Duration(n) * time.Millisecond }

func (c SessionConfig) DeviceReadyInterval() time.Duration { return ms(c.DeviceReadyIntervalMs) }
func (c SessionConfig) ReconnectInterval() time.Duration   { return ms(c.ReconnectIntervalMs) }
func (c SessionConfig) PlayWait() time.Duration            { return ms(c.PlayWaitMs) }
func (c SessionConfig) PositionInterval() time.Duration    { return ms(c.PositionIntervalMs) }
func (c SessionConfig) LoadTimeout() time.Duration         { return ms(c.LoadTimeoutMs) }

func (c QueueConfig) SyncInterval() time.Duration {
	return time.Duration(c.SyncIntervalSec) * time.Second
}

func (c QueueConfig) SyncThrottle() time.Duration {
	return time.Duration(c.SyncThrottleSec) * time.Second
}

func (c QueueConfig) SyncDebounce() time.Duration {
	return ms(c.SyncDebounceMs)
}
