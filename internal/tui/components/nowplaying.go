package components

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"

	"github.com/tessro/spindle/internal/core"
	"github.com/tessro/spindle/internal/tui/styles"
)

// NowPlaying displays the currently playing track
type NowPlaying struct{}

// NewNowPlaying creates a new NowPlaying component
func NewNowPlaying() *NowPlaying {
	return &NowPlaying{}
}

// Render renders the now playing panel
func (n *NowPlaying) Render(state core.PlaybackState, width, height int, focused bool) string {
	title := styles.PanelTitle("Now Playing", focused)

	var content string
	switch {
	case state.HasTrack():
		content = n.renderTrack(state, width-4)
	case state.Phase == core.PhaseLoading:
		content = styles.Muted.Render("Starting player...")
	default:
		content = styles.Muted.Render("No track playing")
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

func (n *NowPlaying) renderTrack(state core.PlaybackState, width int) string {
	track := state.Track

	icon := styles.StatusIcon(state.IsPlaying)
	name := styles.Title.Width(max(width-4, 1)).Render(truncate(track.Title, width-4))
	artist := styles.Subtitle.Render(truncate(track.Artist(), width-2))
	album := styles.Dim.Render(truncate(track.Album.Name, width-2))

	barWidth := max(width-14, 10)
	progress := fmt.Sprintf("%s %s %s",
		formatDuration(state.Progress()),
		styles.ProgressBar(state.Position, barWidth),
		formatDuration(track.Duration))

	volume := styles.Muted.Render(fmt.Sprintf("🔊 %d%%", state.Volume))

	return lipgloss.JoinVertical(lipgloss.Left,
		icon+" "+name,
		"  "+artist,
		"  "+album,
		"",
		progress,
		"",
		volume,
	)
}
