package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// UserConfigFileName is the TOML config file for user preferences.
const UserConfigFileName = "config.toml"

// UserConfig represents user-facing configuration in TOML format.
// All fields are optional; the zero value plus Defaults() is a working setup.
type UserConfig struct {
	// SessionRoot overrides the Copilot CLI session storage directory.
	// Default: ~/.copilot/history-session-state
	SessionRoot string `toml:"session_root"`

	// Agent defines how the monitored CLI shows up in the process table.
	Agent AgentSettings `toml:"agent"`

	// Status defines the activity-classification knobs.
	Status StatusSettings `toml:"status"`

	// Terminal extends the terminal-detection table.
	Terminal TerminalSettings `toml:"terminal"`

	// Watch defines refresh behavior for the watch TUI.
	Watch WatchSettings `toml:"watch"`

	// Logs defines debug log output.
	Logs LogSettings `toml:"logs"`
}

// AgentSettings describes the monitored agent's process-table footprint.
type AgentSettings struct {
	// ProcessName is the executable name to look for (default: "copilot").
	ProcessName string `toml:"process_name"`

	// BackgroundHelpers are executable names of the agent's long-lived helper
	// children. A live child outside this set means the session is running a
	// tool. The set is a hand-maintained heuristic; extend it here when the
	// agent grows a new helper, the decision rule itself does not change.
	BackgroundHelpers []string `toml:"background_helpers"`
}

// StatusSettings tunes the working/waiting heuristic.
type StatusSettings struct {
	// CPUBusyThreshold is the percent-of-one-core above which an otherwise
	// quiet process counts as working (default: 2.0).
	CPUBusyThreshold float64 `toml:"cpu_busy_threshold"`

	// CPUSampleWindowMS is the CPU sampling window in milliseconds
	// (default: 50). The sampler blocks for this long per fallback check.
	CPUSampleWindowMS int `toml:"cpu_sample_window_ms"`
}

// TerminalSettings tunes terminal detection.
type TerminalSettings struct {
	// PathFragments maps extra executable-path fragments (matched
	// case-insensitively against ancestor processes) to the terminal name
	// reported for them. Entries here win over the built-in table, so a
	// fragment can also rename a known terminal.
	//
	//   [terminal.path_fragments]
	//   "contour" = "contour"
	PathFragments map[string]string `toml:"path_fragments"`
}

// WatchSettings controls the watch TUI refresh cadence.
type WatchSettings struct {
	// PollIntervalSecs is the background refresh interval (default: 10,
	// clamped to 5..30).
	PollIntervalSecs int `toml:"poll_interval_secs"`
}

// LogSettings controls the rotating debug log.
type LogSettings struct {
	// Dir is the log directory. Empty means logs are discarded unless Debug.
	Dir string `toml:"dir"`

	// Level is "debug", "info", "warn" or "error" (default: "info").
	Level string `toml:"level"`

	// Format is "json" (default) or "text".
	Format string `toml:"format"`
}

// DefaultBackgroundHelpers are the agent's known long-lived helper processes.
// Children with these names do not indicate tool activity.
var DefaultBackgroundHelpers = []string{
	"copilot-language-server",
	"github-mcp-server",
	"node",
}

// Dir returns the copilot-sessions config directory
// (~/.config/copilot-sessions, honoring XDG_CONFIG_HOME).
func Dir() (string, error) {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "copilot-sessions"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".config", "copilot-sessions"), nil
}

// Load reads the user config, falling back to defaults when the file is
// missing. A malformed file is an error; a missing one is not.
func Load() (*UserConfig, error) {
	dir, err := Dir()
	if err != nil {
		return Defaults(), nil
	}
	return LoadFrom(filepath.Join(dir, UserConfigFileName))
}

// LoadFrom reads the config from an explicit path.
func LoadFrom(path string) (*UserConfig, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	cfg.applyDefaults()
	return cfg, nil
}

// Defaults returns a fully populated default configuration.
func Defaults() *UserConfig {
	cfg := &UserConfig{}
	cfg.applyDefaults()
	return cfg
}

// applyDefaults fills empty fields so callers never see zero values.
func (c *UserConfig) applyDefaults() {
	if c.SessionRoot == "" {
		home, _ := os.UserHomeDir()
		c.SessionRoot = filepath.Join(home, ".copilot", "history-session-state")
	} else {
		c.SessionRoot = ExpandTilde(c.SessionRoot)
	}
	if c.Agent.ProcessName == "" {
		c.Agent.ProcessName = "copilot"
	}
	if len(c.Agent.BackgroundHelpers) == 0 {
		c.Agent.BackgroundHelpers = append([]string(nil), DefaultBackgroundHelpers...)
	}
	if c.Status.CPUBusyThreshold <= 0 {
		c.Status.CPUBusyThreshold = 2.0
	}
	if c.Status.CPUSampleWindowMS <= 0 {
		c.Status.CPUSampleWindowMS = 50
	}
	if c.Watch.PollIntervalSecs == 0 {
		c.Watch.PollIntervalSecs = 10
	}
	if c.Watch.PollIntervalSecs < 5 {
		c.Watch.PollIntervalSecs = 5
	}
	if c.Watch.PollIntervalSecs > 30 {
		c.Watch.PollIntervalSecs = 30
	}
	if c.Logs.Level == "" {
		c.Logs.Level = "info"
	}
	if c.Logs.Format == "" {
		c.Logs.Format = "json"
	}
	if c.Logs.Dir != "" {
		c.Logs.Dir = ExpandTilde(c.Logs.Dir)
	}
}

// CPUSampleWindow returns the sampling window as a duration.
func (c *UserConfig) CPUSampleWindow() time.Duration {
	return time.Duration(c.Status.CPUSampleWindowMS) * time.Millisecond
}

// PollInterval returns the watch refresh interval as a duration.
func (c *UserConfig) PollInterval() time.Duration {
	return time.Duration(c.Watch.PollIntervalSecs) * time.Second
}

// ExpandTilde expands a leading ~ to the user's home directory.
func ExpandTilde(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, strings.TrimPrefix(path, "~"))
	}
	return path
}
