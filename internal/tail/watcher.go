// Package tail turns the snapshot stream of a playback session into
// discrete playback events and formats them for a terminal.
package tail

import (
	"context"
	"time"

	"github.com/tessro/spindle/internal/core"
)

// EventType represents the type of playback event.
type EventType int

const (
	EventTrackChange EventType = iota
	EventTrackComplete
	EventTrackSkip
	EventPause
	EventResume
	EventVolumeChange
	EventDeviceReady
	EventDeviceLost
	EventPhaseChange
	EventQueueChange
	EventQueueSync
	EventSessionExpired
	EventError
)

// Event represents a playback state change.
type Event struct {
	Type      EventType           `json:"type"`
	Timestamp time.Time           `json:"timestamp"`
	Previous  *core.PlaybackState `json:"-"`
	Current   *core.PlaybackState `json:"state"`
}

// Watcher follows a session's state stream and emits events.
type Watcher struct {
	states <-chan core.PlaybackState
	events chan Event
	now    func() time.Time
}

// NewWatcher creates a watcher over a subscription channel.
func NewWatcher(states <-chan core.PlaybackState) *Watcher {
	return &Watcher{
		states: states,
		events: make(chan Event, 64),
		now:    time.Now,
	}
}

// Events returns the channel of playback events. It is closed when Run
// returns.
func (w *Watcher) Events() <-chan Event {
	return w.events
}

// Run diffs consecutive states until the stream closes or ctx is done.
func (w *Watcher) Run(ctx context.Context) error {
	defer close(w.events)

	var prev *core.PlaybackState
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case st, ok := <-w.states:
			if !ok {
				return nil
			}
			curr := st
			for _, e := range diffStates(prev, &curr, w.now()) {
				select {
				case w.events <- e:
				default:
					// Drop event if channel is full
				}
			}
			prev = &curr
		}
	}
}

// diffStates compares two states and returns detected events.
func diffStates(prev, curr *core.PlaybackState, now time.Time) []Event {
	if curr == nil {
		return nil
	}

	var events []Event
	add := func(t EventType) {
		events = append(events, Event{Type: t, Timestamp: now, Previous: prev, Current: curr})
	}

	// First state - no previous state
	if prev == nil {
		if curr.Phase != core.PhaseIdle {
			add(EventPhaseChange)
		}
		if curr.HasTrack() {
			add(EventTrackChange)
		}
		return events
	}

	if prev.Phase != curr.Phase {
		add(EventPhaseChange)
	}

	// Device changes
	switch {
	case prev.DeviceID == "" && curr.DeviceID != "":
		add(EventDeviceReady)
	case prev.DeviceID != "" && curr.DeviceID == "":
		add(EventDeviceLost)
	case prev.DeviceID != curr.DeviceID:
		add(EventDeviceReady)
	}

	// Track change detection
	if trackChanged(prev, curr) {
		eventType := EventTrackChange

		// Check if it was a completion vs skip
		if prev.HasTrack() && wasCompleted(prev) {
			eventType = EventTrackComplete
		} else if prev.HasTrack() {
			eventType = EventTrackSkip
		}
		add(eventType)
	}

	// Pause/Resume detection
	if prev.IsPlaying && !curr.IsPlaying {
		add(EventPause)
	} else if !prev.IsPlaying && curr.IsPlaying {
		add(EventResume)
	}

	if prev.Volume != curr.Volume {
		add(EventVolumeChange)
	}

	if !curr.LastSync.Equal(prev.LastSync) {
		add(EventQueueSync)
	} else if !sameTracks(prev.Queue, curr.Queue) {
		add(EventQueueChange)
	}

	if !prev.SessionExpired && curr.SessionExpired {
		add(EventSessionExpired)
	}

	if curr.Err != "" && curr.Err != prev.Err && curr.Phase != core.PhaseError {
		add(EventError)
	}

	return events
}

// trackChanged returns true if the track changed.
func trackChanged(prev, curr *core.PlaybackState) bool {
	if prev.Track == nil && curr.Track == nil {
		return false
	}
	if prev.Track == nil || curr.Track == nil {
		return true
	}
	return prev.Track.ID != curr.Track.ID
}

// wasCompleted returns true if the track likely completed naturally.
func wasCompleted(state *core.PlaybackState) bool {
	if !state.HasTrack() || state.Track.Duration == 0 {
		return false
	}
	return state.Position >= 95
}

func sameTracks(a, b []core.Track) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].ID != b[i].ID {
			return false
		}
	}
	return true
}
