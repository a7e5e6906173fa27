package tui

import (
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xinguang/stock-console/pkg/agentlog"
	"github.com/xinguang/stock-console/pkg/notify"
)

func fixedClock() time.Time {
	return time.Date(2024, 3, 1, 9, 30, 5, 0, time.Local)
}

func newView(t *testing.T, target agentlog.Target) (*LogView, *agentlog.Viewer, *notify.Recorder) {
	t.Helper()
	notes := &notify.Recorder{}
	v := agentlog.NewViewer(nil, target, agentlog.Options{Notifier: notes, Clock: fixedClock})
	m := NewLogView(v, notes)
	m.Update(tea.WindowSizeMsg{Width: 100, Height: 20})
	return m, v, notes
}

func TestLogViewBeforeSize(t *testing.T) {
	v := agentlog.NewViewer(nil, agentlog.Target{RuleID: 1}, agentlog.Options{})
	assert.Equal(t, "Initializing...", NewLogView(v, nil).View())
}

func TestLogViewWholeRule(t *testing.T) {
	m, v, _ := newView(t, agentlog.Target{RuleID: 7})

	out := m.View()
	assert.Contains(t, out, "Rule 7 - Execution Log")
	assert.Contains(t, out, "Waiting for logs...")

	v.Apply(agentlog.Event{Type: agentlog.EventInfo, Message: "2 stocks", Stocks: []string{"A", "B"}})
	v.Apply(agentlog.Event{Type: agentlog.EventStockStart, Message: "A started", StockCode: "A"})
	m.Update(tickMsg(time.Now()))

	out = m.View()
	assert.Contains(t, out, "Total: 2")
	assert.Contains(t, out, "Completed: 0")
	assert.Contains(t, out, "Processing: A")
	assert.Contains(t, out, "[09:30:05] A started")
	assert.NotContains(t, out, "Waiting for logs...")

	v.Apply(agentlog.Event{Type: agentlog.EventStockComplete, Message: "A done", StockCode: "A"})
	v.Apply(agentlog.Event{Type: agentlog.EventComplete, Message: "finished"})
	m.Update(tickMsg(time.Now()))

	out = m.View()
	assert.Contains(t, out, "Completed: 1")
	assert.NotContains(t, out, "Processing:")
	assert.Contains(t, out, "completed")
	assert.Contains(t, out, "All stocks processed!")
}

func TestLogViewSingleStock(t *testing.T) {
	m, v, _ := newView(t, agentlog.Target{RuleID: 7, StockCode: "600036"})

	v.Apply(agentlog.Event{Type: agentlog.EventInfo, Message: "hello", Stocks: []string{"600036"}})
	m.Update(tickMsg(time.Now()))

	out := m.View()
	assert.Contains(t, out, "600036 - Execution Log")
	assert.NotContains(t, out, "Total:")
	assert.NotContains(t, out, "Completed:")
}

func TestLogViewShowsError(t *testing.T) {
	m, v, _ := newView(t, agentlog.Target{RuleID: 3})

	v.Apply(agentlog.Event{Type: agentlog.EventError, Message: "model quota exceeded"})
	m.Update(tickMsg(time.Now()))

	assert.Contains(t, m.View(), "model quota exceeded")
}

func TestLogViewQuitClosesViewer(t *testing.T) {
	for _, key := range []tea.KeyMsg{
		{Type: tea.KeyRunes, Runes: []rune("q")},
		{Type: tea.KeyCtrlC},
	} {
		m, v, _ := newView(t, agentlog.Target{RuleID: 1})

		_, cmd := m.Update(key)

		require.NotNil(t, cmd)
		_, ok := cmd().(tea.QuitMsg)
		assert.True(t, ok, key.String())
		assert.True(t, v.Snapshot().Closed)
	}
}

func TestLogViewTickStopsSpinnerWhenDone(t *testing.T) {
	m, v, _ := newView(t, agentlog.Target{RuleID: 1})

	m.Update(tickMsg(time.Now()))
	assert.Equal(t, 1, m.spinnerIdx)

	v.Apply(agentlog.Event{Type: agentlog.EventComplete, Message: "done"})
	m.Update(tickMsg(time.Now()))
	m.Update(tickMsg(time.Now()))
	assert.Equal(t, 2, m.spinnerIdx)
}

func TestRenderMarkdown(t *testing.T) {
	assert.Empty(t, RenderMarkdown("  ", 80))
	assert.Contains(t, RenderMarkdown("buy when **RSI** < 30", 80), "RSI")
}
