package components

import (
	"fmt"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/tessro/spindle/internal/core"
	"github.com/tessro/spindle/internal/tui/styles"
)

// Status displays the session's binding state: phase, device and the
// last queue reconciliation.
type Status struct {
	now func() time.Time
}

// NewStatus creates a new Status component
func NewStatus() *Status {
	return &Status{now: time.Now}
}

// Render renders the session panel
func (s *Status) Render(state core.PlaybackState, width, height int, focused bool) string {
	title := styles.PanelTitle("Session", focused)

	panel := styles.Panel(focused).
		Width(width).
		Height(height)

	return panel.Render(lipgloss.JoinVertical(lipgloss.Left,
		title,
		"",
		s.renderStatus(state, width-4),
	))
}

func (s *Status) renderStatus(state core.PlaybackState, width int) string {
	phase := state.Phase.String()

	device := styles.Muted.Render("none")
	if state.DeviceID != "" {
		device = truncate(state.DeviceID, max(width-10, 4))
	}

	sync := styles.Muted.Render("never")
	if !state.LastSync.IsZero() {
		sync = humanize.RelTime(state.LastSync, s.now(), "ago", "from now")
	}

	lines := []string{
		field("Phase", styles.PhaseStyle(phase).Render(phase)),
		field("Device", device),
		field("Synced", sync),
	}

	if state.SessionExpired {
		lines = append(lines, "", styles.Failure.Render("Session expired."),
			styles.Muted.Render("Run 'spindle auth login'"))
	} else if state.Err != "" {
		lines = append(lines, "", styles.Failure.Render(truncate(state.Err, width)))
		if state.Phase == core.PhaseError {
			lines = append(lines, styles.Muted.Render("Press r to retry"))
		}
	}

	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func field(label, value string) string {
	return fmt.Sprintf("%s %s", styles.Label.Render(fmt.Sprintf("%-7s", label)), value)
}
