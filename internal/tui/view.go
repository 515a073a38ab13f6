package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/mattn/go-runewidth"

	"github.com/schlubbi/copilot-sessions/internal/session"
)

// Column widths for the session table.
const (
	colID     = 12
	colTopic  = 37
	colBranch = 20
	colTurns  = 5
	colAge    = 8
	colTerm   = 14
)

// View implements tea.Model.
func (m Model) View() string {
	var b strings.Builder

	title := headerStyle.Render("copilot sessions")
	if m.loading {
		title += " " + m.spin.View()
	}
	b.WriteString(title)
	b.WriteString("\n\n")

	b.WriteString(dimStyle.Render(fmt.Sprintf("  %-*s %-*s %-*s %*s %*s  %-*s",
		colID, "ID", colTopic, "TOPIC", colBranch, "BRANCH",
		colTurns, "TURNS", colAge, "AGE", colTerm, "TERMINAL")))
	b.WriteString("\n")

	visible := m.visibleSessions()
	if len(visible) == 0 {
		if m.lastRefresh.IsZero() {
			b.WriteString(dimStyle.Render("  loading…"))
		} else {
			b.WriteString(dimStyle.Render("  no sessions"))
		}
		b.WriteString("\n")
	}
	for _, s := range visible {
		b.WriteString(renderRow(s))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(m.footer())
	return b.String()
}

func renderRow(s session.Session) string {
	glyph := statusGlyph(s.Status)

	// Pad before styling; ANSI escapes would otherwise count toward the
	// column width.
	topic := s.Topic
	if topic == "" {
		topic = "(untitled)"
	}
	topicCell := fmt.Sprintf("%-*s", colTopic, runewidth.Truncate(topic, colTopic, "…"))
	if s.Topic == "" {
		topicCell = dimStyle.Render(topicCell)
	}

	branchCell := branchStyle.Render(
		fmt.Sprintf("%-*s", colBranch, runewidth.Truncate(s.Branch, colBranch, "…")))

	age := "-"
	if s.LastActivity != nil {
		age = formatAge(time.Since(*s.LastActivity))
	}

	terminal := string(s.Terminal)
	if s.TTY != "" {
		terminal += " " + s.TTY
	}

	return fmt.Sprintf("%s %-*s %s %s %*d %*s  %-*s",
		glyph,
		colID, s.ShortID,
		topicCell,
		branchCell,
		colTurns, s.Turns,
		colAge, age,
		colTerm, terminal)
}

func statusGlyph(status session.Status) string {
	switch status {
	case session.StatusWorking:
		return workingStyle.Render("●")
	case session.StatusWaiting:
		return waitingStyle.Render("◐")
	default:
		return doneStyle.Render("○")
	}
}

// formatAge renders a duration compactly: 42s, 7m, 3h, 2d.
func formatAge(d time.Duration) string {
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd", int(d.Hours()/24))
	}
}

func (m Model) footer() string {
	var parts []string

	if m.filtering || m.filter.Value() != "" {
		parts = append(parts, "/ "+m.filter.View())
	} else {
		parts = append(parts, dimStyle.Render("r refresh · / filter · q quit"))
	}

	if !m.lastRefresh.IsZero() {
		parts = append(parts, dimStyle.Render("updated "+formatAge(time.Since(m.lastRefresh))+" ago"))
	}
	if m.warning != "" {
		parts = append(parts, warningStyle.Render("⚠ "+m.warning))
	}

	return strings.Join(parts, "\n")
}
