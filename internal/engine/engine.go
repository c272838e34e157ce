// Package engine describes the browser playback engine a session binds
// to: the Spotify Web Playback SDK's player object, its events and its
// one-time script load.
package engine

import (
	"context"
	"errors"

	"github.com/tessro/spindle/internal/core"
)

// EventName identifies an engine event.
type EventName string

const (
	EventInitializationError EventName = "initialization_error"
	EventAuthenticationError EventName = "authentication_error"
	EventAccountError        EventName = "account_error"
	EventPlaybackError       EventName = "playback_error"
	EventReady               EventName = "ready"
	EventNotReady            EventName = "not_ready"
	EventStateChanged        EventName = "player_state_changed"
)

// Events lists every event a player can emit.
var Events = []EventName{
	EventInitializationError,
	EventAuthenticationError,
	EventAccountError,
	EventPlaybackError,
	EventReady,
	EventNotReady,
	EventStateChanged,
}

// IsError reports whether n is one of the error events.
func (n EventName) IsError() bool {
	switch n {
	case EventInitializationError, EventAuthenticationError, EventAccountError, EventPlaybackError:
		return true
	}
	return false
}

// Event is one notification from the engine. Which fields are set
// depends on Name: DeviceID for ready/not_ready, Message for the error
// events, State for player_state_changed (nil when the engine has no
// active playback context).
type Event struct {
	Name     EventName
	DeviceID string
	Message  string
	State    *State
}

// Handler receives events. Handlers for one player are called one at a
// time, in emission order.
type Handler func(Event)

// State is the engine's report of what it is playing.
type State struct {
	Paused   bool
	Position int // ms
	Duration int // ms
	Track    core.Track
}

// TokenFunc supplies the engine with a bearer token whenever it asks.
type TokenFunc func(ctx context.Context) (string, error)

// Options configure a player instance.
type Options struct {
	Name   string
	Volume float64 // 0..1
	Token  TokenFunc
}

// SDK loads the engine and constructs players.
type SDK interface {
	// Load makes the engine available. It does the work once per process;
	// later calls return the first result.
	Load(ctx context.Context) error
	NewPlayer(opts Options) (Player, error)
}

// Player is one engine instance.
type Player interface {
	// Connect registers the instance as a playback device. It reports
	// false when the engine refused.
	Connect(ctx context.Context) (bool, error)
	Disconnect()

	AddListener(name EventName, h Handler)
	RemoveListener(name EventName)

	Pause(ctx context.Context) error
	Resume(ctx context.Context) error
	Seek(ctx context.Context, positionMs int) error
	SetVolume(ctx context.Context, volume float64) error
	NextTrack(ctx context.Context) error
	PreviousTrack(ctx context.Context) error

	// GetCurrentState returns nil when nothing is loaded.
	GetCurrentState(ctx context.Context) (*State, error)
}

// ErrScriptLoad reports that the engine script could not be loaded.
var ErrScriptLoad = errors.New("playback engine script failed to load")
