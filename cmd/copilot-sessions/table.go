package main

import (
	"fmt"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/schlubbi/copilot-sessions/internal/session"
)

// Table column widths for list command output.
const (
	tableColID     = 12
	tableColTopic  = 37
	tableColBranch = 20
)

var (
	tableDim     = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	tableWorking = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	tableWaiting = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
)

func printTable(sessions []session.Session) {
	if len(sessions) == 0 {
		fmt.Println("No sessions found.")
		return
	}

	fmt.Println(tableDim.Render(fmt.Sprintf("%-8s %-*s %-*s %-*s %5s %8s  %s",
		"STATUS", tableColID, "ID", tableColTopic, "TOPIC",
		tableColBranch, "BRANCH", "TURNS", "AGE", "TERMINAL")))

	for _, s := range sessions {
		// Pad before styling so ANSI escapes don't count toward the width.
		status := fmt.Sprintf("%-8s", s.Status)
		switch s.Status {
		case session.StatusWorking:
			status = tableWorking.Render(status)
		case session.StatusWaiting:
			status = tableWaiting.Render(status)
		default:
			status = tableDim.Render(status)
		}

		topic := s.Topic
		if topic == "" {
			topic = "(untitled)"
		}

		age := "-"
		if s.LastActivity != nil {
			age = formatDuration(time.Since(*s.LastActivity))
		}

		fmt.Printf("%s %-*s %-*s %-*s %5d %8s  %s\n",
			status,
			tableColID, s.ShortID,
			tableColTopic, runewidth.Truncate(topic, tableColTopic, "…"),
			tableColBranch, runewidth.Truncate(s.Branch, tableColBranch, "…"),
			s.Turns,
			age,
			s.Terminal)
	}
}

func formatDuration(d time.Duration) string {
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
