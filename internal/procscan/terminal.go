package procscan

import "strings"

// TerminalKind identifies the terminal emulator that owns a session's
// process tree. The engine only detects the kind; launching or focusing a
// terminal is the presentation layer's business.
type TerminalKind string

const (
	TerminalUnknown       TerminalKind = "unknown"
	TerminalAppleTerminal TerminalKind = "terminal"
	TerminalITerm2        TerminalKind = "iterm2"
	TerminalGhostty       TerminalKind = "ghostty"
	TerminalWarp          TerminalKind = "warp"
	TerminalAlacritty     TerminalKind = "alacritty"
	TerminalKitty         TerminalKind = "kitty"
	TerminalWezTerm       TerminalKind = "wezterm"
	TerminalVSCode        TerminalKind = "vscode"
	TerminalTmux          TerminalKind = "tmux"
	TerminalGnome         TerminalKind = "gnome-terminal"
	TerminalKonsole       TerminalKind = "konsole"
)

// maxAncestorHops bounds the ancestor walk in DetectTerminal.
const maxAncestorHops = 15

// terminalFragment pairs a lowercased executable-path fragment with the
// terminal kind reported for it.
type terminalFragment struct {
	fragment string
	kind     TerminalKind
}

// terminalPathFragments is the built-in detection table, checked in order.
// More specific fragments come first so e.g. iTerm.app wins before a generic
// match could. User overrides from the config are consulted before this
// table.
var terminalPathFragments = []terminalFragment{
	{"iterm.app", TerminalITerm2},
	{"terminal.app", TerminalAppleTerminal},
	{"ghostty", TerminalGhostty},
	{"warp.app", TerminalWarp},
	{"alacritty", TerminalAlacritty},
	{"kitty", TerminalKitty},
	{"wezterm", TerminalWezTerm},
	{"visual studio code", TerminalVSCode},
	{"code helper", TerminalVSCode},
	{"tmux", TerminalTmux},
	{"gnome-terminal", TerminalGnome},
	{"konsole", TerminalKonsole},
}

// DetectTerminal walks pid's ancestor chain, comparing each ancestor's
// executable path against the known terminal table. The walk stops at
// maxAncestorHops, at pid 0, on a self-loop, or when an ancestor can no
// longer be resolved; any of those yields TerminalUnknown. Ancestry is read
// from the system-wide process table, so sessions launched under another
// user's terminal still resolve.
func (i *Inspector) DetectTerminal(pid int) TerminalKind {
	current := pid
	for hop := 0; hop < maxAncestorHops; hop++ {
		parent, ok := i.table.parentPid(current)
		if !ok || parent == 0 || parent == current {
			return TerminalUnknown
		}

		if path, ok := i.table.executablePath(parent); ok {
			if kind := i.matchTerminal(path); kind != TerminalUnknown {
				return kind
			}
		} else if name, ok := i.table.name(parent); ok {
			// Path can be unreadable across users; the base name is still
			// enough for non-bundle terminals like tmux or kitty.
			if kind := i.matchTerminal(name); kind != TerminalUnknown {
				return kind
			}
		}

		current = parent
	}
	return TerminalUnknown
}

// matchTerminal checks the configured overrides first, then the built-in
// table.
func (i *Inspector) matchTerminal(path string) TerminalKind {
	lower := strings.ToLower(path)
	for _, entry := range i.extraTerminals {
		if strings.Contains(lower, entry.fragment) {
			return entry.kind
		}
	}
	return matchTerminalPath(path)
}

// matchTerminalPath returns the terminal kind for an executable path, or
// TerminalUnknown when no fragment matches.
func matchTerminalPath(path string) TerminalKind {
	lower := strings.ToLower(path)
	for _, entry := range terminalPathFragments {
		if strings.Contains(lower, entry.fragment) {
			return entry.kind
		}
	}
	return TerminalUnknown
}
