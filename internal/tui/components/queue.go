package components

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"

	"github.com/tessro/spindle/internal/core"
	"github.com/tessro/spindle/internal/tui/styles"
)

// Queue displays the upcoming tracks with a selection cursor.
type Queue struct {
	offset   int
	selected int
}

// NewQueue creates a new Queue component
func NewQueue() *Queue {
	return &Queue{}
}

// SelectNext moves the cursor down, stopping at the last of n tracks.
func (q *Queue) SelectNext(n int) {
	if q.selected < n-1 {
		q.selected++
	}
}

// SelectPrev moves the cursor up.
func (q *Queue) SelectPrev() {
	if q.selected > 0 {
		q.selected--
	}
}

// Selected returns the selected index
func (q *Queue) Selected() int {
	return q.selected
}

// SelectedTrack returns the track under the cursor.
func (q *Queue) SelectedTrack(tracks []core.Track) (core.Track, bool) {
	if q.selected < 0 || q.selected >= len(tracks) {
		return core.Track{}, false
	}
	return tracks[q.selected], true
}

// Render renders the queue panel
func (q *Queue) Render(tracks []core.Track, width, height int, focused bool) string {
	title := styles.PanelTitle(fmt.Sprintf("Queue (%d)", len(tracks)), focused)

	var content string
	if len(tracks) == 0 {
		content = styles.Muted.Render("Queue is empty")
	} else {
		content = q.renderQueue(tracks, width-4, height-4, focused)
	}

	panel := styles.Panel(focused).
		Width(width).
		Height(height)

	return panel.Render(lipgloss.JoinVertical(lipgloss.Left,
		title,
		"",
		content,
	))
}

func (q *Queue) renderQueue(tracks []core.Track, width, maxLines int, focused bool) string {
	q.selected = min(max(q.selected, 0), len(tracks)-1)

	visible := max(maxLines-1, 1) // room for the "more" line

	// Keep the cursor on screen.
	if q.selected < q.offset {
		q.offset = q.selected
	}
	if q.selected >= q.offset+visible {
		q.offset = q.selected - visible + 1
	}
	q.offset = min(q.offset, max(len(tracks)-visible, 0))

	start := q.offset
	end := min(start+visible, len(tracks))

	lines := make([]string, 0, end-start+1)

	// "XX. " (4) + cursor (2) + " — " (3)
	const overhead = 9

	for i := start; i < end; i++ {
		track := tracks[i]
		title, artist := fitTrack(track.Title, track.Artist(), width-overhead, 10)
		num := fmt.Sprintf("%2d.", i+1)

		var line string
		if focused && i == q.selected {
			line = styles.Highlight.Render(fmt.Sprintf("%s ▸ %s — %s", num, title, artist))
		} else {
			line = fmt.Sprintf("%s   %s — %s",
				styles.Dim.Render(num),
				title,
				styles.Muted.Render(artist))
		}
		lines = append(lines, line)
	}

	if end < len(tracks) {
		lines = append(lines, styles.Dim.Render(fmt.Sprintf("    ... and %d more", len(tracks)-end)))
	}

	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}
