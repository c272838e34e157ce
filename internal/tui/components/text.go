package components

import (
	"fmt"
	"time"

	"github.com/charmbracelet/x/ansi"
)

// fitTrack shortens title and artist so that both fit in available cells.
// The artist keeps at least a third of the space (and never less than
// floor cells) unless it is shorter than that.
func fitTrack(title, artist string, available, floor int) (string, string) {
	titleLen := ansi.StringWidth(title)
	artistLen := ansi.StringWidth(artist)
	if titleLen+artistLen <= available {
		return title, artist
	}

	artistSpace := max(available/3, floor)
	artistSpace = min(artistSpace, available-floor, artistLen)
	titleSpace := available - artistSpace

	return truncate(title, titleSpace), truncate(artist, artistSpace)
}

func truncate(s string, width int) string {
	if width <= 0 {
		return ""
	}
	if width <= 3 {
		return ansi.Truncate(s, width, "")
	}
	return ansi.Truncate(s, width, "...")
}

func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	m := d / time.Minute
	s := (d % time.Minute) / time.Second
	return fmt.Sprintf("%d:%02d", m, s)
}
