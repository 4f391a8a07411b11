// SPDX-License-Identifier: MPL-2.0

package config

import (
	"errors"
	"fmt"
	"time"
)

const (
	// ColorSchemeAuto detects the terminal background.
	ColorSchemeAuto ColorScheme = "auto"
	// ColorSchemeDark forces dark styles.
	ColorSchemeDark ColorScheme = "dark"
	// ColorSchemeLight forces light styles.
	ColorSchemeLight ColorScheme = "light"
)

// ErrInvalidConfig is wrapped by every validation failure.
var ErrInvalidConfig = errors.New("invalid config")

type (
	// ColorScheme selects the CLI color palette.
	ColorScheme string

	// Config is the full shell configuration.
	Config struct {
		Shell      ShellConfig       `json:"shell" mapstructure:"shell"`
		Scripting  ScriptingConfig   `json:"scripting" mapstructure:"scripting"`
		UI         UIConfig          `json:"ui" mapstructure:"ui"`
		Plugins    PluginsConfig     `json:"plugins" mapstructure:"plugins"`
		Properties map[string]string `json:"properties" mapstructure:"properties"`
		SSH        SSHConfig         `json:"ssh" mapstructure:"ssh"`
		Metrics    MetricsConfig     `json:"metrics" mapstructure:"metrics"`
	}

	// ShellConfig controls line handling for the REPL and command files.
	ShellConfig struct {
		Prompt        string `json:"prompt" mapstructure:"prompt"`
		CommentPrefix string `json:"comment_prefix" mapstructure:"comment_prefix"`
		// EchoCommands prints each line of a command file before running it.
		EchoCommands bool `json:"echo_commands" mapstructure:"echo_commands"`
	}

	// ScriptingConfig controls the script runner.
	ScriptingConfig struct {
		DefaultRetain  bool  `json:"default_retain" mapstructure:"default_retain"`
		MaxScriptBytes int64 `json:"max_script_bytes" mapstructure:"max_script_bytes"`
	}

	// UIConfig controls output styling.
	UIConfig struct {
		Verbose     bool        `json:"verbose" mapstructure:"verbose"`
		ColorScheme ColorScheme `json:"color_scheme" mapstructure:"color_scheme"`
		// MarkdownStyle is the glamour style used by help and issue output.
		MarkdownStyle string `json:"markdown_style" mapstructure:"markdown_style"`
	}

	// PluginsConfig selects the registered plugins.
	PluginsConfig struct {
		Disabled []string `json:"disabled" mapstructure:"disabled"`
	}

	// SSHConfig configures `clishell serve`.
	SSHConfig struct {
		Host            string        `json:"host" mapstructure:"host"`
		Port            int           `json:"port" mapstructure:"port"`
		TokenTTL        time.Duration `json:"token_ttl" mapstructure:"token_ttl"`
		ShutdownTimeout time.Duration `json:"shutdown_timeout" mapstructure:"shutdown_timeout"`
	}

	// MetricsConfig configures the Prometheus endpoint. An empty address
	// disables it.
	MetricsConfig struct {
		Address string `json:"address" mapstructure:"address"`
	}

	// InvalidConfigError lists every problem found by Validate.
	InvalidConfigError struct {
		Problems []string
	}
)

// DefaultConfig returns the built-in configuration.
func DefaultConfig() *Config {
	return &Config{
		Shell: ShellConfig{
			Prompt:        "clishell> ",
			CommentPrefix: "#",
		},
		Scripting: ScriptingConfig{
			MaxScriptBytes: 1 << 20,
		},
		UI: UIConfig{
			ColorScheme:   ColorSchemeAuto,
			MarkdownStyle: "notty",
		},
		Properties: map[string]string{},
		SSH: SSHConfig{
			Host:            "127.0.0.1",
			Port:            2222,
			TokenTTL:        time.Hour,
			ShutdownTimeout: 10 * time.Second,
		},
	}
}

// IsValid reports whether c is a known scheme.
func (c ColorScheme) IsValid() bool {
	switch c {
	case ColorSchemeAuto, ColorSchemeDark, ColorSchemeLight:
		return true
	default:
		return false
	}
}

// Validate checks the constraints the CUE schema cannot see after defaults
// and environment overrides were applied.
func (c *Config) Validate() error {
	var problems []string
	if !c.UI.ColorScheme.IsValid() {
		problems = append(problems, fmt.Sprintf("ui.color_scheme: unknown scheme %q", c.UI.ColorScheme))
	}
	if c.UI.MarkdownStyle == "" {
		problems = append(problems, "ui.markdown_style: must not be empty")
	}
	if c.Scripting.MaxScriptBytes <= 0 {
		problems = append(problems, "scripting.max_script_bytes: must be positive")
	}
	if c.SSH.Port < 0 || c.SSH.Port > 65535 {
		problems = append(problems, fmt.Sprintf("ssh.port: %d out of range", c.SSH.Port))
	}
	if c.SSH.TokenTTL <= 0 {
		problems = append(problems, "ssh.token_ttl: must be positive")
	}
	if c.SSH.ShutdownTimeout < 0 {
		problems = append(problems, "ssh.shutdown_timeout: must not be negative")
	}
	if len(problems) > 0 {
		return &InvalidConfigError{Problems: problems}
	}
	return nil
}

// PluginEnabled reports whether name is absent from plugins.disabled.
func (c *Config) PluginEnabled(name string) bool {
	for _, d := range c.Plugins.Disabled {
		if d == name {
			return false
		}
	}
	return true
}

// Error implements the error interface.
func (e *InvalidConfigError) Error() string {
	if len(e.Problems) == 1 {
		return "invalid config: " + e.Problems[0]
	}
	return fmt.Sprintf("invalid config: %d problems: %v", len(e.Problems), e.Problems)
}

// Unwrap returns ErrInvalidConfig.
func (e *InvalidConfigError) Unwrap() error { return ErrInvalidConfig }
