package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/canlink/ecubridge/internal/client"
	"github.com/canlink/ecubridge/internal/dtc"
)

// View implements tea.Model.
func (m *Model) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	b.WriteString(m.styles.Title.Render("ecubridge monitor"))
	b.WriteString("  ")
	b.WriteString(m.connectionBadge())
	b.WriteString("\n\n")

	panels := lipgloss.JoinHorizontal(lipgloss.Top,
		m.sensorPanel(),
		" ",
		m.faultPanel(),
	)
	b.WriteString(panels)
	b.WriteString("\n")

	if m.detail != nil {
		b.WriteString(m.detailPanel())
		b.WriteString("\n")
	}

	if m.confirmClear {
		b.WriteString(m.styles.Warning.Render("Clear all fault codes? (y/n)"))
		b.WriteString("\n")
	} else if m.status != "" {
		b.WriteString(m.styles.Dim.Render(m.status))
		b.WriteString("\n")
	}

	b.WriteString(m.helpLine())
	return b.String()
}

func (m *Model) connectionBadge() string {
	if m.lastErr != nil {
		return m.styles.Error.Render("● disconnected")
	}
	return m.styles.Success.Render("● connected")
}

func (m *Model) sensorPanel() string {
	rows := []struct {
		label string
		r     client.Reading
		unit  string
	}{
		{"RPM", m.state.RPM, "rpm"},
		{"Speed", m.state.Speed, "km/h"},
		{"Coolant", m.state.Coolant, "°C"},
		{"Throttle", m.state.Throttle, "%"},
		{"Load", m.state.Load, "%"},
		{"Intake", m.state.Intake, "°C"},
	}

	var b strings.Builder
	b.WriteString(m.styles.PanelTitle.Render("Sensors"))
	b.WriteString("\n")
	for _, row := range rows {
		label := m.styles.Dim.Render(fmt.Sprintf("%-9s", row.label))
		value := m.styles.Dim.Render("---")
		if row.r.Valid {
			value = m.styles.Bold.Render(fmt.Sprintf("%8.1f %s", row.r.Value, row.unit))
		}
		b.WriteString(fmt.Sprintf("%s %s\n", label, value))
	}
	return m.styles.Panel.Render(strings.TrimRight(b.String(), "\n"))
}

func (m *Model) faultPanel() string {
	var b strings.Builder
	b.WriteString(m.styles.PanelTitle.Render(fmt.Sprintf("Faults (%d)", len(m.state.DTCs))))
	b.WriteString("\n")

	if len(m.state.DTCs) == 0 {
		b.WriteString(m.styles.Success.Render("No stored fault codes"))
	}
	for i, code := range m.state.DTCs {
		rendered := code.String()
		line := fmt.Sprintf("%s  %s", rendered, dtc.Descriptions[rendered])
		if i == m.cursor {
			b.WriteString(m.styles.Selected.Render("> " + line))
		} else {
			b.WriteString(m.styles.Base.Render("  " + line))
		}
		b.WriteString("\n")
	}

	style := m.styles.Panel
	if len(m.state.DTCs) > 0 {
		style = m.styles.PanelFocused
	}
	return style.Render(strings.TrimRight(b.String(), "\n"))
}

func (m *Model) detailPanel() string {
	d := m.detail
	var b strings.Builder
	source := "offline catalog"
	if d.fromService {
		source = "analyzer"
	}
	b.WriteString(m.styles.PanelTitle.Render(fmt.Sprintf("%s — %s (%s)", d.code, d.analysis.Title, source)))
	b.WriteString("\n")
	if d.analysis.Severity != "" {
		b.WriteString(m.styles.Warning.Render("Severity: "+d.analysis.Severity) + "\n")
	}
	if d.analysis.Description != "" {
		b.WriteString(m.styles.Base.Render(d.analysis.Description) + "\n")
	}
	if len(d.analysis.Causes) > 0 {
		b.WriteString(m.styles.Dim.Render("Likely causes:") + "\n")
		for _, c := range d.analysis.Causes {
			b.WriteString(m.styles.Base.Render("  - "+c) + "\n")
		}
	}
	if len(d.analysis.Fixes) > 0 {
		b.WriteString(m.styles.Dim.Render("Suggested fixes:") + "\n")
		for _, f := range d.analysis.Fixes {
			b.WriteString(m.styles.Base.Render("  - "+f) + "\n")
		}
	}
	return m.styles.Panel.Render(strings.TrimRight(b.String(), "\n"))
}

func (m *Model) helpLine() string {
	keys := []struct{ key, hint string }{
		{"↑/↓", "select fault"},
		{"e", "explain"},
		{"y", "copy code"},
		{"c", "clear faults"},
		{"r", "refresh"},
		{"q", "quit"},
	}
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, m.styles.KeyBinding.Render(k.key)+" "+m.styles.KeyHint.Render(k.hint))
	}
	return strings.Join(parts, m.styles.Dim.Render("  ·  "))
}
