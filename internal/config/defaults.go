package config

// Default returns a Config populated with sensible defaults.
func Default() *Config {
	return &Config{
		Spotify: SpotifyConfig{
			RedirectURI: "http://127.0.0.1:8888/callback",
		},
		Player: PlayerConfig{
			Name:        "Spindle Web Player",
			Volume:      50,
			BridgeAddr:  "127.0.0.1:8899",
			OpenBrowser: true,
		},
		Session: SessionConfig{
			DeviceReadyAttempts:   3,
			DeviceReadyIntervalMs: 1000,
			ReconnectAttempts:     3,
			ReconnectIntervalMs:   5000,
			PlayWaitMs:            2000,
			PositionIntervalMs:    1000,
			LoadTimeoutMs:         60000,
		},
		Queue: QueueConfig{
			SyncIntervalSec: 120,
			SyncThrottleSec: 30,
			SyncDebounceMs:  500,
		},
		TUI: TUIConfig{
			Theme: "auto",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// ApplyDefaults fills in zero values with sensible defaults. Volume is
// left alone: zero is a valid volume.
func (c *Config) ApplyDefaults() {
	d := Default()

	// Spotify
	if c.Spotify.RedirectURI == "" {
		c.Spotify.RedirectURI = d.Spotify.RedirectURI
	}

	// Player
	if c.Player.Name == "" {
		c.Player.Name = d.Player.Name
	}
	if c.Player.BridgeAddr == "" {
		c.Player.BridgeAddr = d.Player.BridgeAddr
	}

	// Session
	s, ds := &c.Session, d.Session
	orDefault(&s.DeviceReadyAttempts, ds.DeviceReadyAttempts)
	orDefault(&s.DeviceReadyIntervalMs, ds.DeviceReadyIntervalMs)
	orDefault(&s.ReconnectAttempts, ds.ReconnectAttempts)
	orDefault(&s.ReconnectIntervalMs, ds.ReconnectIntervalMs)
	orDefault(&s.PlayWaitMs, ds.PlayWaitMs)
	orDefault(&s.PositionIntervalMs, ds.PositionIntervalMs)
	orDefault(&s.LoadTimeoutMs, ds.LoadTimeoutMs)

	// Queue
	orDefault(&c.Queue.SyncIntervalSec, d.Queue.SyncIntervalSec)
	orDefault(&c.Queue.SyncThrottleSec, d.Queue.SyncThrottleSec)
	orDefault(&c.Queue.SyncDebounceMs, d.Queue.SyncDebounceMs)

	// TUI
	if c.TUI.Theme == "" {
		c.TUI.Theme = d.TUI.Theme
	}

	// Log
	if c.Log.Level == "" {
		c.Log.Level = d.Log.Level
	}
}

func orDefault(v *int, def int) {
	if *v == 0 {
		*v = def
	}
}
