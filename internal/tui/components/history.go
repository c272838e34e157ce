package components

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"

	"github.com/tessro/spindle/internal/core"
	"github.com/tessro/spindle/internal/tui/styles"
)

// History displays recently played tracks, most recent first.
type History struct{}

// NewHistory creates a new History component
func NewHistory() *History {
	return &History{}
}

// Render renders the history panel. tracks is oldest first, as the
// session keeps it.
func (h *History) Render(tracks []core.Track, width, height int, focused bool) string {
	title := styles.PanelTitle("History", focused)

	var content string
	if len(tracks) == 0 {
		content = styles.Muted.Render("No history yet")
	} else {
		content = h.renderHistory(tracks, width-4, height-4)
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

func (h *History) renderHistory(tracks []core.Track, width, maxLines int) string {
	lines := make([]string, 0, maxLines)

	// icon (2) + " — " (3) + duration column (6)
	const overhead = 11

	for i := len(tracks) - 1; i >= 0 && len(lines) < maxLines; i-- {
		track := tracks[i]
		dur := formatDuration(track.Duration)
		title, artist := fitTrack(track.Title, track.Artist(), width-overhead, 8)

		info := fmt.Sprintf("%s — %s", title, artist)
		padding := max(width-2-lipgloss.Width(info)-len(dur), 1)

		lines = append(lines, fmt.Sprintf("%s %s%*s%s",
			styles.Dim.Render("✓"),
			info,
			padding, "",
			styles.Dim.Render(dur)))
	}

	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}
