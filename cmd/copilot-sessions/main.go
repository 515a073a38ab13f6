package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"golang.org/x/term"

	"github.com/schlubbi/copilot-sessions/internal/config"
	"github.com/schlubbi/copilot-sessions/internal/logging"
	"github.com/schlubbi/copilot-sessions/internal/platform"
	"github.com/schlubbi/copilot-sessions/internal/session"
	"github.com/schlubbi/copilot-sessions/internal/tui"
)

const Version = "0.3.0"

// init pins the color profile so list output looks the same under terminals
// that misreport their capabilities.
func init() {
	if term.IsTerminal(int(os.Stdout.Fd())) {
		lipgloss.SetColorProfile(termenv.ColorProfile())
	} else {
		lipgloss.SetColorProfile(termenv.Ascii)
	}
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "copilot-sessions: %v\n", err)
		os.Exit(1)
	}

	logDir := cfg.Logs.Dir
	debug := os.Getenv("COPILOT_SESSIONS_DEBUG") != ""
	if debug && logDir == "" {
		if dir, err := config.Dir(); err == nil {
			logDir = dir
		}
	}
	logging.Init(logging.Config{
		LogDir: logDir,
		Level:  cfg.Logs.Level,
		Format: cfg.Logs.Format,
		Debug:  debug,
	})
	defer logging.Shutdown()

	cmd := "list"
	args := os.Args[1:]
	if len(args) > 0 {
		cmd = args[0]
		args = args[1:]
	}

	switch cmd {
	case "version", "--version", "-v":
		fmt.Printf("copilot-sessions v%s (%s)\n", Version, platform.Detect())
	case "help", "--help", "-h":
		printUsage()
	case "list", "ls":
		runList(cfg, args)
	case "watch":
		runWatch(cfg)
	default:
		fmt.Fprintf(os.Stderr, "copilot-sessions: unknown command %q\n", cmd)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Print(`copilot-sessions - monitor Copilot CLI sessions on this host

Usage:
  copilot-sessions [command]

Commands:
  list [--json] [--filter <query>]   one-shot session listing (default)
  watch                              live session view
  version                            print version
  help                               show this help

Configuration is read from ~/.config/copilot-sessions/config.toml.
`)
}

func runList(cfg *config.UserConfig, args []string) {
	asJSON := false
	filter := ""
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--json":
			asJSON = true
		case "--filter", "-f":
			if i+1 < len(args) {
				i++
				filter = args[i]
			}
		default:
			fmt.Fprintf(os.Stderr, "copilot-sessions: unknown flag %q\n", args[i])
			os.Exit(1)
		}
	}

	source := session.NewDataSource(cfg)
	sessions := source.LoadSessions(context.Background())
	if filter != "" {
		sessions = session.Filter(sessions, filter)
	}

	if asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(sessions); err != nil {
			fmt.Fprintf(os.Stderr, "copilot-sessions: %v\n", err)
			os.Exit(1)
		}
		return
	}

	printTable(sessions)
}

func runWatch(cfg *config.UserConfig) {
	source := session.NewDataSource(cfg)
	program := tea.NewProgram(tui.NewModel(cfg, source), tea.WithAltScreen())
	if _, err := program.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "copilot-sessions: %v\n", err)
		os.Exit(1)
	}
}
