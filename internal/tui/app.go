// Package tui is the terminal interface over a mounted playback session.
package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/tessro/spindle/internal/core"
	apperrors "github.com/tessro/spindle/internal/errors"
	"github.com/tessro/spindle/internal/tui/components"
	"github.com/tessro/spindle/internal/tui/styles"
)

// Panel represents which panel is focused
type Panel int

const (
	PanelNowPlaying Panel = iota
	PanelQueue
	PanelStatus
	PanelHistory
	panelCount
)

const (
	searchDebounce = 300 * time.Millisecond
	searchLimit    = 10
	commandTimeout = 15 * time.Second
	noticeTTL      = 5 * time.Second
	volumeStep     = 5
	seekStep       = 5 * time.Second
)

// Searcher finds tracks in the provider's catalog.
type Searcher interface {
	Search(ctx context.Context, query string, limit int) ([]core.Track, error)
}

// Options configures the UI.
type Options struct {
	// Searcher backs the search overlay; nil disables it.
	Searcher Searcher
	// Reinit re-runs session initialization ("r").
	Reinit func(ctx context.Context) error
	// Themes delivers theme changes while the UI runs.
	Themes <-chan string
}

// Model is the main TUI model
type Model struct {
	ctx     context.Context
	ctrl    core.Controller
	opts    Options
	states  <-chan core.PlaybackState
	clip    func(string) error
	now     func() time.Time
	width   int
	height  int
	focused Panel

	state core.PlaybackState

	nowPlaying  *components.NowPlaying
	queueView   *components.Queue
	statusView  *components.Status
	historyView *components.History

	showHelp bool

	showSearch    bool
	searchInput   textinput.Model
	searchResults []core.Track
	searchCursor  int
	searching     bool
	lastQuery     string
	searchErr     error

	notice       string
	noticeErr    bool
	noticeExpiry time.Time

	quitting bool
}

// NewModel creates a model driving ctrl. states is the controller's
// subscription; the caller owns its cancellation.
func NewModel(ctx context.Context, ctrl core.Controller, states <-chan core.PlaybackState, opts Options) Model {
	ti := textinput.New()
	ti.Placeholder = "Search tracks..."
	ti.CharLimit = 100
	ti.Width = 50

	return Model{
		ctx:         ctx,
		ctrl:        ctrl,
		opts:        opts,
		states:      states,
		clip:        clipboard.WriteAll,
		now:         time.Now,
		focused:     PanelNowPlaying,
		state:       ctrl.Snapshot(),
		nowPlaying:  components.NewNowPlaying(),
		queueView:   components.NewQueue(),
		statusView:  components.NewStatus(),
		historyView: components.NewHistory(),
		searchInput: ti,
	}
}

// Messages
type tickMsg time.Time
type stateMsg core.PlaybackState
type sessionClosedMsg struct{}

// ThemeMsg switches the color theme.
type ThemeMsg string

type actionMsg struct {
	done string
	err  error
}

type searchDebounceMsg struct{ query string }
type searchResultsMsg struct {
	query   string
	results []core.Track
	err     error
}

func tick() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func waitForState(states <-chan core.PlaybackState) tea.Cmd {
	return func() tea.Msg {
		st, ok := <-states
		if !ok {
			return sessionClosedMsg{}
		}
		return stateMsg(st)
	}
}

func waitForTheme(themes <-chan string) tea.Cmd {
	if themes == nil {
		return nil
	}
	return func() tea.Msg {
		theme, ok := <-themes
		if !ok {
			return nil
		}
		return ThemeMsg(theme)
	}
}

// run executes fn against the controller off the UI goroutine. done is
// shown on success.
func (m Model) run(done string, fn func(ctx context.Context) error) tea.Cmd {
	parent := m.ctx
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(parent, commandTimeout)
		defer cancel()
		return actionMsg{done: done, err: fn(ctx)}
	}
}

func (m Model) doSearch(query string) tea.Cmd {
	searcher := m.opts.Searcher
	parent := m.ctx
	return func() tea.Msg {
		if query == "" {
			return searchResultsMsg{query: query}
		}
		ctx, cancel := context.WithTimeout(parent, commandTimeout)
		defer cancel()

		results, err := searcher.Search(ctx, query, searchLimit)
		return searchResultsMsg{query: query, results: results, err: err}
	}
}

// Init initializes the model
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		tick(),
		waitForState(m.states),
		waitForTheme(m.opts.Themes),
	)
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyPress(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tickMsg:
		if m.notice != "" && m.now().After(m.noticeExpiry) {
			m.notice = ""
		}
		return m, tick()

	case stateMsg:
		m.state = core.PlaybackState(msg)
		return m, waitForState(m.states)

	case sessionClosedMsg:
		m.quitting = true
		return m, tea.Quit

	case ThemeMsg:
		styles.Apply(string(msg))
		return m, waitForTheme(m.opts.Themes)

	case actionMsg:
		if msg.err != nil {
			m.setNotice(describe(msg.err), true)
		} else if msg.done != "" {
			m.setNotice(msg.done, false)
		}
		return m, nil

	case searchDebounceMsg:
		if msg.query == m.searchInput.Value() && msg.query != m.lastQuery {
			m.lastQuery = msg.query
			m.searching = true
			return m, m.doSearch(msg.query)
		}
		return m, nil

	case searchResultsMsg:
		if msg.query != m.lastQuery {
			return m, nil
		}
		m.searching = false
		m.searchResults = msg.results
		m.searchErr = msg.err
		m.searchCursor = 0
		return m, nil
	}

	if m.showSearch {
		var inputCmd tea.Cmd
		m.searchInput, inputCmd = m.searchInput.Update(msg)
		return m, inputCmd
	}

	return m, nil
}

func (m *Model) setNotice(text string, isErr bool) {
	m.notice = text
	m.noticeErr = isErr
	m.noticeExpiry = m.now().Add(noticeTTL)
}

func describe(err error) string {
	msg := err.Error()
	if s := apperrors.GetSuggestion(err); s != "" {
		msg += ". " + s
	}
	return msg
}

func (m Model) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		m.quitting = true
		return m, tea.Quit
	}

	if m.showHelp {
		switch msg.String() {
		case "?", "esc":
			m.showHelp = false
		}
		return m, nil
	}

	if m.showSearch {
		return m.handleSearchKeyPress(msg)
	}

	switch msg.String() {
	case "q":
		m.quitting = true
		return m, tea.Quit
	case "?":
		m.showHelp = true
		return m, nil
	case "/":
		if m.opts.Searcher == nil {
			return m, nil
		}
		m.showSearch = true
		m.searchInput.SetValue("")
		m.searchInput.Focus()
		m.searchResults = nil
		m.searchCursor = 0
		m.lastQuery = ""
		m.searchErr = nil
		return m, textinput.Blink
	case "tab":
		m.focused = (m.focused + 1) % panelCount
		return m, nil
	case "shift+tab":
		m.focused = (m.focused + panelCount - 1) % panelCount
		return m, nil
	}

	// Playback controls
	switch msg.String() {
	case " ":
		return m, m.togglePlayPause()
	case "n":
		return m, m.run("", m.ctrl.Next)
	case "p":
		return m, m.run("", m.ctrl.Previous)
	case "+", "=":
		return m, m.setVolume(m.state.Volume + volumeStep)
	case "-":
		return m, m.setVolume(m.state.Volume - volumeStep)
	case "right", "l":
		if m.focused != PanelQueue {
			return m, m.seek(seekStep)
		}
	case "left", "h":
		if m.focused != PanelQueue {
			return m, m.seek(-seekStep)
		}
	case "r":
		if m.opts.Reinit != nil {
			return m, m.run("Player ready", m.opts.Reinit)
		}
		return m, nil
	case "s":
		m.ctrl.SyncQueue()
		return m, nil
	case "y":
		return m, m.copyLink()
	}

	if m.focused == PanelQueue {
		return m.handleQueueKeyPress(msg)
	}
	return m, nil
}

func (m Model) handleQueueKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	queue := m.state.Queue
	switch msg.String() {
	case "j", "down":
		m.queueView.SelectNext(len(queue))
	case "k", "up":
		m.queueView.SelectPrev()
	case "enter":
		if t, ok := m.queueView.SelectedTrack(queue); ok {
			return m, m.run("", func(ctx context.Context) error {
				return m.ctrl.SkipToTrack(ctx, t.ID)
			})
		}
	case "d", "x":
		if t, ok := m.queueView.SelectedTrack(queue); ok {
			m.ctrl.Dequeue(t.ID)
		}
	case "c":
		m.ctrl.ClearQueue()
	}
	return m, nil
}

func (m Model) handleSearchKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.showSearch = false
		m.searchInput.Blur()
		return m, nil
	case "enter":
		if t, ok := m.selectedResult(); ok {
			m.showSearch = false
			m.searchInput.Blur()
			return m, m.run("Playing "+t.Title, func(ctx context.Context) error {
				return m.ctrl.PlayTrack(ctx, t.ID)
			})
		}
		return m, nil
	case "ctrl+q":
		if t, ok := m.selectedResult(); ok {
			m.showSearch = false
			m.searchInput.Blur()
			return m, m.run("Queued "+t.Title, func(ctx context.Context) error {
				return m.ctrl.Enqueue(ctx, t)
			})
		}
		return m, nil
	case "up", "ctrl+p":
		if m.searchCursor > 0 {
			m.searchCursor--
		}
		return m, nil
	case "down", "ctrl+n":
		if m.searchCursor < len(m.searchResults)-1 {
			m.searchCursor++
		}
		return m, nil
	}

	var cmds []tea.Cmd
	var inputCmd tea.Cmd
	m.searchInput, inputCmd = m.searchInput.Update(msg)
	cmds = append(cmds, inputCmd)

	if query := m.searchInput.Value(); query != m.lastQuery {
		cmds = append(cmds, tea.Tick(searchDebounce, func(time.Time) tea.Msg {
			return searchDebounceMsg{query: query}
		}))
	}

	return m, tea.Batch(cmds...)
}

func (m Model) selectedResult() (core.Track, bool) {
	if m.searchCursor < 0 || m.searchCursor >= len(m.searchResults) {
		return core.Track{}, false
	}
	return m.searchResults[m.searchCursor], true
}

func (m Model) togglePlayPause() tea.Cmd {
	if !m.state.HasTrack() {
		return nil
	}
	if m.state.IsPlaying {
		return m.run("", m.ctrl.PauseTrack)
	}
	return m.run("", m.ctrl.ResumeTrack)
}

func (m Model) setVolume(volume int) tea.Cmd {
	return m.run("", func(ctx context.Context) error {
		return m.ctrl.SetVolume(ctx, volume)
	})
}

func (m Model) seek(delta time.Duration) tea.Cmd {
	if !m.state.HasTrack() {
		return nil
	}
	target := max(m.state.Progress()+delta, 0)
	target = min(target, m.state.Track.Duration)
	return m.run("", func(ctx context.Context) error {
		return m.ctrl.SeekPosition(ctx, int(target.Milliseconds()))
	})
}

func (m Model) copyLink() tea.Cmd {
	if !m.state.HasTrack() {
		return nil
	}
	link := TrackLink(*m.state.Track)
	copyText := m.clip
	return func() tea.Msg {
		if err := copyText(link); err != nil {
			return actionMsg{err: fmt.Errorf("copy link: %w", err)}
		}
		return actionMsg{done: "Copied " + link}
	}
}

// TrackLink returns the shareable web link for t.
func TrackLink(t core.Track) string {
	return "https://open.spotify.com/track/" + t.ID
}

// View renders the UI
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	if m.width == 0 {
		return "Loading..."
	}

	if m.showHelp {
		return m.renderHelp()
	}
	if m.showSearch {
		return m.renderSearch()
	}

	// Left: now playing over queue. Right: session over history.
	leftWidth := m.width * 60 / 100
	rightWidth := m.width - leftWidth - 2
	topHeight := m.height * 40 / 100
	bottomHeight := m.height - topHeight - 2

	nowPlaying := m.nowPlaying.Render(m.state, leftWidth-2, topHeight-2, m.focused == PanelNowPlaying)
	queueView := m.queueView.Render(m.state.Queue, leftWidth-2, bottomHeight-2, m.focused == PanelQueue)
	statusView := m.statusView.Render(m.state, rightWidth-2, topHeight-2, m.focused == PanelStatus)
	historyView := m.historyView.Render(m.state.History, rightWidth-2, bottomHeight-2, m.focused == PanelHistory)

	leftCol := lipgloss.JoinVertical(lipgloss.Left, nowPlaying, queueView)
	rightCol := lipgloss.JoinVertical(lipgloss.Left, statusView, historyView)
	main := lipgloss.JoinHorizontal(lipgloss.Top, leftCol, rightCol)

	return lipgloss.JoinVertical(lipgloss.Left, main, m.renderStatusBar())
}

func (m Model) renderStatusBar() string {
	status := styles.Dim.Render("q:quit  ?:help  /:search  space:play/pause  n:next  p:prev  +/-:volume  tab:panel")
	if m.notice != "" {
		if m.noticeErr {
			status = styles.Failure.Render("Error: " + m.notice)
		} else {
			status = styles.Playing.Render(m.notice)
		}
	}

	return lipgloss.NewStyle().
		Width(m.width).
		Padding(0, 1).
		Render(status)
}

func (m Model) renderHelp() string {
	title := "Spindle - Keyboard Shortcuts"
	divider := strings.Repeat("═", len(title))

	help := `
  ` + title + `
  ` + divider + `

  Global
  ──────
  q, Ctrl+C    Quit
  ?            Toggle help
  /            Search
  Tab          Next panel
  Shift+Tab    Previous panel
  r            Restart player
  s            Sync queue
  y            Copy track link

  Playback
  ────────
  Space        Play/Pause
  n            Next track
  p            Previous track
  ←/→          Seek 5s
  +/=          Volume up
  -            Volume down

  Queue Panel
  ───────────
  j/↓  k/↑     Move selection
  Enter        Skip to selected
  d            Remove selected
  c            Clear queue

  Press ? or Esc to close
`

	return lipgloss.NewStyle().
		Width(m.width).
		Height(m.height).
		Align(lipgloss.Center, lipgloss.Center).
		Render(styles.BorderStyle.Render(help))
}

func (m Model) renderSearch() string {
	var b strings.Builder

	b.WriteString(styles.Highlight.Render("Search"))
	b.WriteString("\n\n")
	b.WriteString(m.searchInput.View())
	b.WriteString("\n\n")

	selected := lipgloss.NewStyle().Foreground(styles.Primary).Bold(true)

	switch {
	case m.searchErr != nil:
		b.WriteString(styles.Failure.Render("Error: " + m.searchErr.Error()))
	case m.searching:
		b.WriteString(styles.Muted.Render("Searching..."))
	case len(m.searchResults) == 0 && m.lastQuery != "":
		b.WriteString(styles.Muted.Render("No results found"))
	default:
		for i, t := range m.searchResults {
			line := t.Title + " " + styles.Muted.Render(t.Artist())
			if i == m.searchCursor {
				b.WriteString(selected.Render("> ") + line)
			} else {
				b.WriteString("  " + line)
			}
			b.WriteString("\n")
		}
	}

	b.WriteString("\n")
	b.WriteString(styles.Muted.Render("↑/↓:nav  Enter:play  Ctrl+q:queue  Esc:close"))

	content := lipgloss.NewStyle().
		Width(60).
		Padding(1, 2).
		Render(b.String())

	return lipgloss.NewStyle().
		Width(m.width).
		Height(m.height).
		Align(lipgloss.Center, lipgloss.Center).
		Render(styles.FocusedBorder.Render(content))
}

// Run subscribes to ctrl and runs the UI until the user quits, ctx is
// done or the session closes.
func Run(ctx context.Context, ctrl core.Controller, opts Options) error {
	states, cancel := ctrl.Subscribe()
	defer cancel()

	model := NewModel(ctx, ctrl, states, opts)
	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}
