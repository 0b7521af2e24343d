package tui

import (
	"context"
	"time"

	"github.com/atotto/clipboard"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/canlink/ecubridge/internal/analyzer"
	"github.com/canlink/ecubridge/internal/client"
)

// DataSource is the slice of the telemetry client the dashboard needs.
// *client.Client satisfies it; tests substitute a fake.
type DataSource interface {
	RequestAll() error
	RequestDTCs() error
	ClearDTCs() error
	Snapshot() client.LiveTelemetry
	Err() error
}

// Explainer resolves a fault code to a human explanation.
// *analyzer.Client satisfies it.
type Explainer interface {
	Analyze(ctx context.Context, code string) (analyzer.Analysis, bool)
}

// pollMsg fires on the poll ticker; each one triggers a fresh request sweep.
type pollMsg time.Time

// snapshotMsg carries the state read after a request sweep completed.
type snapshotMsg struct {
	state client.LiveTelemetry
	err   error
}

// analysisMsg carries a resolved fault explanation.
type analysisMsg struct {
	code        string
	analysis    analyzer.Analysis
	fromService bool
}

// clipboardMsg reports the result of a copy.
type clipboardMsg struct {
	content string
	err     error
}

// clearedMsg reports the result of a clear-faults request.
type clearedMsg struct{ err error }

// Model is the live dashboard: a sensor panel, a fault panel with a
// cursor, and a status line. It polls the data source on a fixed
// interval and repaints from the latest snapshot.
type Model struct {
	source    DataSource
	explainer Explainer
	styles    Styles
	interval  time.Duration

	state   client.LiveTelemetry
	cursor  int
	width   int
	height  int
	status  string
	lastErr error

	// Detail view for the selected fault; nil when the panel is closed.
	detail     *analysisMsg
	explaining bool

	confirmClear bool
	quitting     bool
}

// NewModel builds the dashboard model. explainer may be nil, which
// disables the explain action.
func NewModel(source DataSource, explainer Explainer, interval time.Duration) *Model {
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}
	return &Model{
		source:    source,
		explainer: explainer,
		styles:    DefaultStyles,
		interval:  interval,
	}
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.pollCmd(), tickCmd(m.interval))
}

func tickCmd(interval time.Duration) tea.Cmd {
	return tea.Tick(interval, func(t time.Time) tea.Msg {
		return pollMsg(t)
	})
}

// pollCmd runs one request sweep off the Update goroutine and reports
// the resulting snapshot.
func (m *Model) pollCmd() tea.Cmd {
	source := m.source
	return func() tea.Msg {
		if err := source.RequestAll(); err != nil {
			return snapshotMsg{state: source.Snapshot(), err: err}
		}
		if err := source.RequestDTCs(); err != nil {
			return snapshotMsg{state: source.Snapshot(), err: err}
		}
		// Responses arrive asynchronously; a short settle keeps the
		// painted values at most one sweep stale.
		time.Sleep(50 * time.Millisecond)
		return snapshotMsg{state: source.Snapshot(), err: source.Err()}
	}
}

func (m *Model) explainCmd(code string) tea.Cmd {
	explainer := m.explainer
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		analysis, fromService := explainer.Analyze(ctx, code)
		return analysisMsg{code: code, analysis: analysis, fromService: fromService}
	}
}

func copyCmd(text string) tea.Cmd {
	return func() tea.Msg {
		return clipboardMsg{content: text, err: clipboard.WriteAll(text)}
	}
}

func (m *Model) clearCmd() tea.Cmd {
	source := m.source
	return func() tea.Msg {
		return clearedMsg{err: source.ClearDTCs()}
	}
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case pollMsg:
		if m.quitting {
			return m, nil
		}
		return m, tea.Batch(m.pollCmd(), tickCmd(m.interval))

	case snapshotMsg:
		m.state = msg.state
		m.lastErr = msg.err
		if m.cursor >= len(m.state.DTCs) {
			m.cursor = 0
		}
		return m, nil

	case analysisMsg:
		m.explaining = false
		m.detail = &msg
		return m, nil

	case clipboardMsg:
		if msg.err != nil {
			m.status = "Clipboard copy failed: " + msg.err.Error()
		} else {
			m.status = "Copied " + msg.content + " to clipboard"
		}
		return m, nil

	case clearedMsg:
		if msg.err != nil {
			m.status = "Clear faults failed: " + msg.err.Error()
		} else {
			m.status = "Clear request sent"
		}
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	// The clear confirmation swallows every key.
	if m.confirmClear {
		m.confirmClear = false
		if msg.String() == "y" {
			return m, m.clearCmd()
		}
		m.status = "Clear cancelled"
		return m, nil
	}

	if m.detail != nil {
		switch msg.String() {
		case "esc", "enter", "e", "q":
			m.detail = nil
		}
		return m, nil
	}

	switch msg.String() {
	case "q", "ctrl+c":
		m.quitting = true
		return m, tea.Quit

	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}

	case "down", "j":
		if m.cursor < len(m.state.DTCs)-1 {
			m.cursor++
		}

	case "r":
		m.status = "Refreshing..."
		return m, m.pollCmd()

	case "c":
		if len(m.state.DTCs) == 0 {
			m.status = "No faults to clear"
			return m, nil
		}
		m.confirmClear = true

	case "y":
		if code, ok := m.selectedCode(); ok {
			return m, copyCmd(code)
		}

	case "e", "enter":
		if m.explainer == nil || m.explaining {
			return m, nil
		}
		if code, ok := m.selectedCode(); ok {
			m.explaining = true
			m.status = "Looking up " + code + "..."
			return m, m.explainCmd(code)
		}
	}
	return m, nil
}

// selectedCode returns the fault code under the cursor.
func (m *Model) selectedCode() (string, bool) {
	if m.cursor < 0 || m.cursor >= len(m.state.DTCs) {
		return "", false
	}
	return m.state.DTCs[m.cursor].String(), true
}
