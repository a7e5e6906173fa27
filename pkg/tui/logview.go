// Package tui provides the terminal execution-log view using bubbletea
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/xinguang/stock-console/pkg/agentlog"
	"github.com/xinguang/stock-console/pkg/notify"
)

// Styles
var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("15"))

	tagStyle = lipgloss.NewStyle().Padding(0, 1).Foreground(lipgloss.Color("0"))

	totalTag      = tagStyle.Background(lipgloss.Color("39"))
	completedTag  = tagStyle.Background(lipgloss.Color("42"))
	processingTag = tagStyle.Background(lipgloss.Color("214"))

	statusStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")).
			Background(lipgloss.Color("236")).
			Padding(0, 1)

	errorText = lipgloss.NewStyle().Foreground(lipgloss.Color("203"))
	okText    = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))

	spinnerChars = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}
)

const (
	headerHeight = 2
	statusHeight = 1
)

// tickMsg drives the spinner and snapshot refresh
type tickMsg time.Time

// LogView renders a Viewer: a header with progress tags, the scrolling log
// and a status bar. It polls the viewer's snapshot on every tick.
type LogView struct {
	viewer   *agentlog.Viewer
	notes    *notify.Recorder
	viewport viewport.Model
	snap     agentlog.Snapshot
	shown    int // lines already in the viewport

	spinnerIdx int
	startTime  time.Time
	width      int
	height     int
	ready      bool
}

// NewLogView creates the view. notes may be nil; when set, its last
// notification is shown in the status bar.
func NewLogView(v *agentlog.Viewer, notes *notify.Recorder) *LogView {
	return &LogView{
		viewer:    v,
		notes:     notes,
		snap:      v.Snapshot(),
		startTime: time.Now(),
	}
}

// Init implements tea.Model
func (m *LogView) Init() tea.Cmd {
	return m.tickCmd()
}

func (m *LogView) tickCmd() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Update implements tea.Model
func (m *LogView) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			// the backend keeps running the execution
			m.viewer.Close()
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		vpHeight := m.height - headerHeight - statusHeight
		if vpHeight < 1 {
			vpHeight = 1
		}

		if !m.ready {
			m.viewport = viewport.New(m.width, vpHeight)
			m.ready = true
			m.shown = 0
		} else {
			m.viewport.Width = m.width
			m.viewport.Height = vpHeight
		}
		m.refresh()
		return m, nil

	case tickMsg:
		if !m.snap.State.Terminal() {
			m.spinnerIdx = (m.spinnerIdx + 1) % len(spinnerChars)
		}
		m.refresh()
		return m, m.tickCmd()
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

// refresh pulls a new snapshot and appends unseen lines
func (m *LogView) refresh() {
	m.snap = m.viewer.Snapshot()
	if !m.ready || len(m.snap.Lines) == m.shown {
		return
	}
	atBottom := m.viewport.AtBottom() || m.shown == 0
	m.viewport.SetContent(strings.Join(m.snap.Lines, "\n"))
	m.shown = len(m.snap.Lines)
	if atBottom {
		m.viewport.GotoBottom()
	}
}

// View implements tea.Model
func (m *LogView) View() string {
	if !m.ready {
		return "Initializing..."
	}

	var b strings.Builder
	b.WriteString(m.header())
	b.WriteString("\n\n")
	if len(m.snap.Lines) == 0 && !m.snap.State.Terminal() {
		b.WriteString("Waiting for logs...")
		b.WriteString(strings.Repeat("\n", max(m.viewport.Height-1, 0)))
	} else {
		b.WriteString(m.viewport.View())
	}
	b.WriteString("\n")
	b.WriteString(m.statusBar())
	return b.String()
}

func (m *LogView) header() string {
	t := m.snap.Target
	title := fmt.Sprintf("Rule %d - Execution Log", t.RuleID)
	if t.SingleStock() {
		title = fmt.Sprintf("%s - Execution Log", t.StockCode)
	}

	parts := []string{titleStyle.Render(title)}
	if m.snap.ShowProgress {
		parts = append(parts,
			totalTag.Render(fmt.Sprintf("Total: %d", m.snap.Total)),
			completedTag.Render(fmt.Sprintf("Completed: %d", len(m.snap.Completed))),
		)
		if m.snap.CurrentStock != "" {
			parts = append(parts, processingTag.Render("Processing: "+m.snap.CurrentStock))
		}
	}
	return strings.Join(parts, " ")
}

func (m *LogView) statusBar() string {
	var parts []string

	switch m.snap.State {
	case agentlog.StateCompleted:
		parts = append(parts, okText.Render("✓ completed"))
	case agentlog.StateErrored:
		parts = append(parts, errorText.Render("✗ "+m.snap.Err))
	default:
		parts = append(parts, fmt.Sprintf("%s %s", spinnerChars[m.spinnerIdx], m.snap.State))
		if elapsed := time.Since(m.startTime); elapsed >= time.Second {
			parts = append(parts, fmt.Sprintf("%.0fs", elapsed.Seconds()))
		}
	}

	if m.notes != nil {
		if n, ok := m.notes.Last(); ok && n.Message != m.snap.Err {
			parts = append(parts, n.Message)
		}
	}
	parts = append(parts, "q to close")

	return statusStyle.Width(m.width).Render(strings.Join(parts, " · "))
}

// RunLogView follows the viewer's execution inside a full-screen program
// until the user closes it. It returns the execution's error when the run
// ended before the user closed the view.
func RunLogView(ctx context.Context, v *agentlog.Viewer, notes *notify.Recorder, opts ...tea.ProgramOption) error {
	followErr := make(chan error, 1)
	go func() { followErr <- v.Follow(ctx) }()

	opts = append([]tea.ProgramOption{tea.WithAltScreen(), tea.WithContext(ctx)}, opts...)
	p := tea.NewProgram(NewLogView(v, notes), opts...)
	_, err := p.Run()
	v.Close()
	if err != nil {
		return err
	}

	select {
	case err := <-followErr:
		return err
	default:
		return nil
	}
}
