package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/arx-os/vecindex/pkg/vector"
)

// StatsMsg carries a refreshed vector.Stats snapshot into Update.
type StatsMsg struct {
	Stats vector.Stats
	Err   error
}

// tickMsg drives the periodic refresh, per the teacher's UpdateTimerMsg.
type tickMsg time.Time

// Model is the single-pane index-health dashboard.
type Model struct {
	ix            *vector.Index
	refreshEvery  time.Duration
	styles        *Styles
	width, height int

	stats   vector.Stats
	err     error
	loading bool
	updated time.Time
}

// New builds a Model over ix. refreshEvery controls how often stats are
// re-fetched; theme selects DarkTheme/LightTheme.
func New(ix *vector.Index, refreshEvery time.Duration, theme string) Model {
	if refreshEvery <= 0 {
		refreshEvery = 2 * time.Second
	}
	return Model{
		ix:           ix,
		refreshEvery: refreshEvery,
		styles:       ThemeStyles(theme),
		loading:      true,
	}
}

// Init starts the refresh loop, per the teacher's
// tea.Batch(m.loadBuildingData(), m.startUpdateTimer()).
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.fetchStats(), m.startTicker())
}

func (m Model) fetchStats() tea.Cmd {
	return func() tea.Msg {
		stats, err := m.ix.Stats(context.Background())
		return StatsMsg{Stats: stats, Err: err}
	}
}

func (m Model) startTicker() tea.Cmd {
	return tea.Tick(m.refreshEvery, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Update handles bubbletea messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q", "esc":
			return m, tea.Quit
		case "r":
			return m, m.fetchStats()
		}
		return m, nil

	case StatsMsg:
		m.loading = false
		m.stats = msg.Stats
		m.err = msg.Err
		m.updated = time.Now()
		return m, nil

	case tickMsg:
		return m, tea.Batch(m.fetchStats(), m.startTicker())
	}
	return m, nil
}

// View renders the dashboard.
func (m Model) View() string {
	if m.loading {
		return m.styles.Muted.Render("loading index stats...")
	}

	var body strings.Builder
	body.WriteString(m.styles.Header.Render("vidxtop"))
	body.WriteString("\n\n")

	if m.err != nil {
		body.WriteString(m.styles.Error.Render(fmt.Sprintf("error: %v", m.err)))
	} else {
		body.WriteString(m.row("dims", fmt.Sprintf("%d", m.stats.Dims)))
		body.WriteString(m.row("metric", m.stats.Metric))
		body.WriteString(m.row("height of root", fmt.Sprintf("%d", m.stats.HeightOfRoot)))
		body.WriteString(m.row("residual", fmt.Sprintf("%t", m.stats.IsResidual)))
		body.WriteString(m.row("pages", fmt.Sprintf("%d", m.stats.NumPages)))
		body.WriteString(m.row("updated", m.updated.Format(time.RFC3339)))
	}

	panel := m.styles.Panel.Render(body.String())
	footer := m.styles.Muted.Render("q: quit   r: refresh now")
	return panel + "\n" + footer
}

func (m Model) row(label, value string) string {
	return fmt.Sprintf("%s %s\n", m.styles.Label.Width(16).Render(label+":"), m.styles.Value.Render(value))
}
