package core

import (
	"strings"
	"time"
)

// Album is the album a track belongs to.
type Album struct {
	ID     string   `json:"id"`
	Name   string   `json:"name"`
	Images []string `json:"images,omitempty"`
}

// Track represents a playable audio track. Tracks are values: a new Track
// replaces the current one rather than being patched field by field.
type Track struct {
	ID       string        `json:"id"`
	URI      string        `json:"uri"`
	Title    string        `json:"title"`
	Artists  []string      `json:"artists"`
	Album    Album         `json:"album"`
	Duration time.Duration `json:"duration"`
}

// Artist returns the contributing artists joined for display.
func (t Track) Artist() string {
	return strings.Join(t.Artists, ", ")
}

// Artwork returns the first album image, or "" when there is none.
func (t Track) Artwork() string {
	if len(t.Album.Images) == 0 {
		return ""
	}
	return t.Album.Images[0]
}

// PercentAt converts a position in milliseconds to a 0-100 percentage of
// the track's duration.
func (t Track) PercentAt(positionMs int) float64 {
	return Percent(positionMs, int(t.Duration.Milliseconds()))
}

// Percent returns position/duration as a 0-100 percentage. A non-positive
// duration yields 0.
func Percent(positionMs, durationMs int) float64 {
	if durationMs <= 0 {
		return 0
	}
	p := float64(positionMs) / float64(durationMs) * 100
	switch {
	case p < 0:
		return 0
	case p > 100:
		return 100
	}
	return p
}
