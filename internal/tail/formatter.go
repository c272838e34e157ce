package tail

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/tessro/spindle/internal/core"
)

// Formatter formats events for output.
type Formatter struct {
	showEmoji     bool
	showTimestamp bool
	template      *template.Template
}

// FormatterOption configures a Formatter.
type FormatterOption func(*Formatter)

// WithEmoji enables emoji output.
func WithEmoji(enabled bool) FormatterOption {
	return func(f *Formatter) {
		f.showEmoji = enabled
	}
}

// WithTimestamp enables timestamp output.
func WithTimestamp(enabled bool) FormatterOption {
	return func(f *Formatter) {
		f.showTimestamp = enabled
	}
}

// WithTemplate sets a custom format template.
func WithTemplate(tmpl string) FormatterOption {
	return func(f *Formatter) {
		if tmpl != "" {
			t, err := template.New("format").Parse(tmpl)
			if err == nil {
				f.template = t
			}
		}
	}
}

// NewFormatter creates a new formatter with the given options.
func NewFormatter(opts ...FormatterOption) *Formatter {
	f := &Formatter{
		showEmoji: true,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Format formats an event as a string.
func (f *Formatter) Format(e Event) string {
	if f.template != nil {
		return f.formatTemplate(e)
	}
	return f.formatLine(e)
}

func (f *Formatter) formatLine(e Event) string {
	var parts []string

	if f.showTimestamp {
		parts = append(parts, e.Timestamp.Format("15:04:05"))
	}
	if f.showEmoji {
		parts = append(parts, eventEmoji(e.Type))
	}
	parts = append(parts, f.eventDescription(e))

	return strings.Join(parts, " ")
}

func (f *Formatter) formatTemplate(e Event) string {
	data := templateData{
		Type:      eventTypeName(e.Type),
		Emoji:     eventEmoji(e.Type),
		Timestamp: e.Timestamp,
		Time:      e.Timestamp.Format("15:04:05"),
	}

	if e.Current != nil {
		data.Phase = e.Current.Phase.String()
		data.Device = e.Current.DeviceID
		data.Volume = e.Current.Volume
		data.Queued = len(e.Current.Queue)
		if t := e.Current.Track; t != nil {
			data.ID = t.ID
			data.Title = t.Title
			data.Artist = t.Artist()
			data.Album = t.Album.Name
		}
	}

	var buf bytes.Buffer
	if err := f.template.Execute(&buf, data); err != nil {
		return f.formatLine(e)
	}
	return buf.String()
}

type templateData struct {
	Type      string
	Emoji     string
	Timestamp time.Time
	Time      string
	Phase     string
	ID        string
	Title     string
	Artist    string
	Album     string
	Device    string
	Volume    int
	Queued    int
}

func (f *Formatter) eventDescription(e Event) string {
	cur, prev := e.Current, e.Previous

	switch e.Type {
	case EventTrackChange:
		if cur.HasTrack() {
			return fmt.Sprintf("Now playing: %s - %s", cur.Track.Artist(), cur.Track.Title)
		}
		return "Track changed"

	case EventTrackComplete:
		if prev.HasTrack() {
			return fmt.Sprintf("Finished: %s - %s", prev.Track.Artist(), prev.Track.Title)
		}
		return "Track completed"

	case EventTrackSkip:
		if prev.HasTrack() {
			return fmt.Sprintf("Skipped: %s - %s", prev.Track.Artist(), prev.Track.Title)
		}
		return "Track skipped"

	case EventPause:
		return "Paused"

	case EventResume:
		return "Resumed"

	case EventVolumeChange:
		return fmt.Sprintf("Volume: %d%%", cur.Volume)

	case EventDeviceReady:
		return fmt.Sprintf("Device ready: %s", cur.DeviceID)

	case EventDeviceLost:
		return "Device offline, reconnecting"

	case EventPhaseChange:
		if cur.Err != "" && cur.Phase == core.PhaseError {
			return fmt.Sprintf("Session %s: %s", cur.Phase, cur.Err)
		}
		return fmt.Sprintf("Session %s", cur.Phase)

	case EventQueueChange:
		return fmt.Sprintf("Queue: %s tracks", humanize.Comma(int64(len(cur.Queue))))

	case EventQueueSync:
		msg := fmt.Sprintf("Queue synced: %d tracks", len(cur.Queue))
		if prev != nil && !prev.LastSync.IsZero() {
			msg += fmt.Sprintf(" (previous sync %s)", humanize.RelTime(prev.LastSync, cur.LastSync, "earlier", "later"))
		}
		return msg

	case EventSessionExpired:
		return "Session expired: run 'spindle auth login'"

	case EventError:
		return fmt.Sprintf("Error: %s", cur.Err)

	default:
		return "Unknown event"
	}
}

func eventEmoji(t EventType) string {
	switch t {
	case EventTrackChange:
		return "🎵"
	case EventTrackComplete:
		return "✅"
	case EventTrackSkip:
		return "⏭️"
	case EventPause:
		return "⏸️"
	case EventResume:
		return "▶️"
	case EventVolumeChange:
		return "🔊"
	case EventDeviceReady:
		return "📱"
	case EventDeviceLost:
		return "📴"
	case EventPhaseChange:
		return "🔌"
	case EventQueueChange, EventQueueSync:
		return "📋"
	case EventSessionExpired:
		return "🔑"
	case EventError:
		return "⚠️"
	default:
		return "❓"
	}
}

func eventTypeName(t EventType) string {
	switch t {
	case EventTrackChange:
		return "track_change"
	case EventTrackComplete:
		return "track_complete"
	case EventTrackSkip:
		return "track_skip"
	case EventPause:
		return "pause"
	case EventResume:
		return "resume"
	case EventVolumeChange:
		return "volume_change"
	case EventDeviceReady:
		return "device_ready"
	case EventDeviceLost:
		return "device_lost"
	case EventPhaseChange:
		return "phase_change"
	case EventQueueChange:
		return "queue_change"
	case EventQueueSync:
		return "queue_sync"
	case EventSessionExpired:
		return "session_expired"
	case EventError:
		return "error"
	default:
		return "unknown"
	}
}

func (t EventType) String() string {
	return eventTypeName(t)
}

// MarshalText encodes the type by name.
func (t EventType) MarshalText() ([]byte, error) {
	return []byte(eventTypeName(t)), nil
}
