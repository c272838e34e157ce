package core

import "time"

// Phase is the initialization phase of a playback session.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseLoading
	PhaseReady
	PhaseError
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseLoading:
		return "loading"
	case PhaseReady:
		return "ready"
	case PhaseError:
		return "error"
	default:
		return "unknown"
	}
}

// PlaybackState is a read-only snapshot of a playback session.
type PlaybackState struct {
	Phase     Phase   `json:"phase"`
	Track     *Track  `json:"track"`
	IsPlaying bool    `json:"is_playing"`
	Position  float64 `json:"position"` // percent, 0-100
	Volume    int     `json:"volume"`
	DeviceID  string  `json:"device_id,omitempty"`

	Queue   []Track `json:"queue"`
	History []Track `json:"history"`

	LastSync time.Time `json:"last_sync,omitempty"`

	// SessionExpired is set once the provider rejected the credential; the
	// user has to log in again.
	SessionExpired bool   `json:"session_expired,omitempty"`
	Err            string `json:"error,omitempty"`
}

// HasTrack returns true if there is an active track.
func (s *PlaybackState) HasTrack() bool {
	return s != nil && s.Track != nil
}

// Ready reports whether transport controls can be used.
func (s *PlaybackState) Ready() bool {
	return s != nil && s.Phase == PhaseReady && s.DeviceID != ""
}

// Progress returns the elapsed time implied by Position.
func (s *PlaybackState) Progress() time.Duration {
	if !s.HasTrack() {
		return 0
	}
	return time.Duration(float64(s.Track.Duration) * s.Position / 100)
}
