package bridge

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/tessro/spindle/internal/core"
	"github.com/tessro/spindle/internal/engine"
)

// Message types exchanged with the player page.
const (
	msgHello        = "hello"
	msgSDKReady     = "sdk_ready"
	msgSDKError     = "sdk_error"
	msgCall         = "call"
	msgResult       = "result"
	msgEvent        = "event"
	msgTokenRequest = "token_request"
	msgToken        = "token"
)

// Methods the page implements.
const (
	methodConnect    = "connect"
	methodDisconnect = "disconnect"
	methodPause      = "pause"
	methodResume     = "resume"
	methodSeek       = "seek"
	methodSetVolume  = "set_volume"
	methodNext       = "next"
	methodPrevious   = "previous"
	methodGetState   = "get_state"
)

// message is the envelope for every websocket frame in both directions.
type message struct {
	Type   string          `json:"type"`
	ID     uint64          `json:"id,omitempty"`
	Method string          `json:"method,omitempty"`
	Event  string          `json:"event,omitempty"`
	Args   json.RawMessage `json:"args,omitempty"`
	Data   json.RawMessage `json:"data,omitempty"`
	Error  string          `json:"error,omitempty"`
}

type connectArgs struct {
	Name   string  `json:"name"`
	Volume float64 `json:"volume"`
}

type seekArgs struct {
	PositionMS int `json:"position_ms"`
}

type volumeArgs struct {
	Volume float64 `json:"volume"`
}

// sdkState mirrors the SDK's WebPlaybackState, trimmed to what we read.
type sdkState struct {
	Paused      bool `json:"paused"`
	Position    int  `json:"position"`
	Duration    int  `json:"duration"`
	TrackWindow struct {
		CurrentTrack *sdkTrack `json:"current_track"`
	} `json:"track_window"`
}

type sdkTrack struct {
	ID         string `json:"id"`
	URI        string `json:"uri"`
	Name       string `json:"name"`
	DurationMS int    `json:"duration_ms"`
	Album      struct {
		URI    string `json:"uri"`
		Name   string `json:"name"`
		Images []struct {
			URL string `json:"url"`
		} `json:"images"`
	} `json:"album"`
	Artists []struct {
		URI  string `json:"uri"`
		Name string `json:"name"`
	} `json:"artists"`
}

// decodeState turns an SDK state payload into an engine state. JSON null
// or a state without a current track decodes to nil.
func decodeState(raw json.RawMessage) (*engine.State, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var s sdkState
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, err
	}
	if s.TrackWindow.CurrentTrack == nil {
		return nil, nil
	}
	return &engine.State{
		Paused:   s.Paused,
		Position: s.Position,
		Duration: s.Duration,
		Track:    s.TrackWindow.CurrentTrack.toCore(),
	}, nil
}

func (t *sdkTrack) toCore() core.Track {
	artists := make([]string, len(t.Artists))
	for i, a := range t.Artists {
		artists[i] = a.Name
	}
	images := make([]string, len(t.Album.Images))
	for i, img := range t.Album.Images {
		images[i] = img.URL
	}
	return core.Track{
		ID:      t.ID,
		URI:     t.URI,
		Title:   t.Name,
		Artists: artists,
		Album: core.Album{
			ID:     idFromURI(t.Album.URI),
			Name:   t.Album.Name,
			Images: images,
		},
		Duration: time.Duration(t.DurationMS) * time.Millisecond,
	}
}

// idFromURI returns the last segment of a "spotify:album:<id>" URI.
func idFromURI(uri string) string {
	if i := strings.LastIndexByte(uri, ':'); i >= 0 {
		return uri[i+1:]
	}
	return uri
}

// decodeEvent builds an engine event from an event frame.
func decodeEvent(m message) (engine.Event, error) {
	ev := engine.Event{Name: engine.EventName(m.Event)}
	switch {
	case ev.Name == engine.EventStateChanged:
		st, err := decodeState(m.Data)
		if err != nil {
			return ev, err
		}
		ev.State = st
	case ev.Name == engine.EventReady, ev.Name == engine.EventNotReady:
		var p struct {
			DeviceID string `json:"device_id"`
		}
		if err := json.Unmarshal(m.Data, &p); err != nil {
			return ev, err
		}
		ev.DeviceID = p.DeviceID
	case ev.Name.IsError():
		var p struct {
			Message string `json:"message"`
		}
		if err := json.Unmarshal(m.Data, &p); err != nil {
			return ev, err
		}
		ev.Message = p.Message
	}
	return ev, nil
}
