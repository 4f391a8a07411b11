// SPDX-License-Identifier: MPL-2.0

package config

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	"github.com/spf13/viper"

	"github.com/clishell/clishell/internal/cueutil"
	"github.com/clishell/clishell/internal/issue"
)

const (
	// AppName names the config directory.
	AppName = "clishell"
	// FileName is the config file name without extension.
	FileName = "config"
	// FileExt is the config file extension.
	FileExt = "cue"
	// EnvPrefix prefixes environment overrides (CLISHELL_SHELL_PROMPT).
	EnvPrefix = "CLISHELL"
)

//go:embed schema.cue
var schema string

// ErrConfigExists is returned by Init when the file is present and force
// is not set.
var ErrConfigExists = errors.New("config file already exists")

type (
	// LoadOptions selects the configuration source.
	LoadOptions struct {
		// FilePath loads exactly this file when set.
		FilePath string
		// DirPath replaces the platform config directory when set.
		DirPath string
	}

	// Provider loads configuration.
	Provider interface {
		Load(ctx context.Context, opts LoadOptions) (*Config, string, error)
	}

	fileProvider struct{}
)

// NewProvider returns the file-backed Provider.
func NewProvider() Provider { return fileProvider{} }

// Load implements Provider.
func (fileProvider) Load(ctx context.Context, opts LoadOptions) (*Config, string, error) {
	return Load(ctx, opts)
}

// Dir returns the platform config directory for clishell.
func Dir() (string, error) {
	var base string
	switch runtime.GOOS {
	case "windows":
		base = os.Getenv("APPDATA")
		if base == "" {
			base = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		base = filepath.Join(home, "Library", "Application Support")
	default:
		base = os.Getenv("XDG_CONFIG_HOME")
		if base == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", fmt.Errorf("failed to get home directory: %w", err)
			}
			base = filepath.Join(home, ".config")
		}
	}
	return filepath.Join(base, AppName), nil
}

// Load builds the effective configuration: defaults, then the first config
// file found, then CLISHELL_* environment variables. It returns the path of
// the file used, or "" when only defaults applied.
func Load(ctx context.Context, opts LoadOptions) (*Config, string, error) {
	if err := ctx.Err(); err != nil {
		return nil, "", fmt.Errorf("load config canceled: %w", err)
	}

	v := viper.New()
	setDefaults(v, DefaultConfig())
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	path, err := resolvePath(opts)
	if err != nil {
		return nil, "", err
	}
	if path != "" {
		if err := mergeCUE(v, path); err != nil {
			return nil, "", issue.NewErrorContext().
				WithOperation("load configuration").
				WithResource(path).
				WithSuggestion("Check that the file contains valid CUE matching the schema").
				WithSuggestion("Run 'clishell config show' to see the defaults").
				Wrap(err).
				BuildError()
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, "", fmt.Errorf("failed to decode config: %w", err)
	}
	if cfg.Properties == nil {
		cfg.Properties = map[string]string{}
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", issue.WrapWithContext(err, "validate configuration", path)
	}
	return cfg, path, nil
}

func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("shell.prompt", d.Shell.Prompt)
	v.SetDefault("shell.comment_prefix", d.Shell.CommentPrefix)
	v.SetDefault("shell.echo_commands", d.Shell.EchoCommands)
	v.SetDefault("scripting.default_retain", d.Scripting.DefaultRetain)
	v.SetDefault("scripting.max_script_bytes", d.Scripting.MaxScriptBytes)
	v.SetDefault("ui.verbose", d.UI.Verbose)
	v.SetDefault("ui.color_scheme", string(d.UI.ColorScheme))
	v.SetDefault("ui.markdown_style", d.UI.MarkdownStyle)
	v.SetDefault("plugins.disabled", d.Plugins.Disabled)
	v.SetDefault("ssh.host", d.SSH.Host)
	v.SetDefault("ssh.port", d.SSH.Port)
	v.SetDefault("ssh.token_ttl", d.SSH.TokenTTL.String())
	v.SetDefault("ssh.shutdown_timeout", d.SSH.ShutdownTimeout.String())
	v.SetDefault("metrics.address", d.Metrics.Address)
}

func resolvePath(opts LoadOptions) (string, error) {
	if opts.FilePath != "" {
		if !fileExists(opts.FilePath) {
			return "", issue.NewErrorContext().
				WithOperation("load configuration").
				WithResource(opts.FilePath).
				WithSuggestion("Verify the path given to --config").
				Wrap(fs.ErrNotExist).
				BuildError()
		}
		return opts.FilePath, nil
	}

	dir := opts.DirPath
	if dir == "" {
		var err error
		if dir, err = Dir(); err != nil {
			return "", err
		}
	}
	for _, candidate := range []string{
		filepath.Join(dir, FileName+"."+FileExt),
		FileName + "." + FileExt,
	} {
		if fileExists(candidate) {
			return candidate, nil
		}
	}
	return "", nil
}

// mergeCUE validates the file against #Config and merges it into v.
func mergeCUE(v *viper.Viper, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	var values map[string]any
	if err := cueutil.Decode(schema, "#Config", data, &values,
		cueutil.WithFilename(path), cueutil.WithConcrete(false)); err != nil {
		return err
	}
	return v.MergeConfigMap(values)
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// Init writes the default configuration into dir (the platform directory
// when empty) and returns the file path.
func Init(dir string, force bool) (string, error) {
	if dir == "" {
		var err error
		if dir, err = Dir(); err != nil {
			return "", err
		}
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}
	path := filepath.Join(dir, FileName+"."+FileExt)
	if !force && fileExists(path) {
		return path, fmt.Errorf("%s: %w", path, ErrConfigExists)
	}
	if err := os.WriteFile(path, []byte(GenerateCUE(DefaultConfig())), 0o644); err != nil {
		return "", fmt.Errorf("failed to write config file: %w", err)
	}
	return path, nil
}

// GenerateCUE renders cfg as a config file accepted by Load.
func GenerateCUE(cfg *Config) string {
	var sb strings.Builder
	sb.WriteString("// clishell configuration\n\n")

	fmt.Fprintf(&sb, "shell: {\n\tprompt: %q\n\tcomment_prefix: %q\n\techo_commands: %v\n}\n\n",
		cfg.Shell.Prompt, cfg.Shell.CommentPrefix, cfg.Shell.EchoCommands)
	fmt.Fprintf(&sb, "scripting: {\n\tdefault_retain: %v\n\tmax_script_bytes: %d\n}\n\n",
		cfg.Scripting.DefaultRetain, cfg.Scripting.MaxScriptBytes)
	fmt.Fprintf(&sb, "ui: {\n\tverbose: %v\n\tcolor_scheme: %q\n\tmarkdown_style: %q\n}\n\n",
		cfg.UI.Verbose, cfg.UI.ColorScheme, cfg.UI.MarkdownStyle)

	sb.WriteString("plugins: {\n\tdisabled: [")
	for i, name := range cfg.Plugins.Disabled {
		if i > 0 {
			sb.WriteString(", ")
		}
		fmt.Fprintf(&sb, "%q", name)
	}
	sb.WriteString("]\n}\n\n")

	sb.WriteString("properties: {")
	if len(cfg.Properties) > 0 {
		keys := make([]string, 0, len(cfg.Properties))
		for k := range cfg.Properties {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		sb.WriteString("\n")
		for _, k := range keys {
			fmt.Fprintf(&sb, "\t%q: %q\n", k, cfg.Properties[k])
		}
	}
	sb.WriteString("}\n\n")

	fmt.Fprintf(&sb, "ssh: {\n\thost: %q\n\tport: %d\n\ttoken_ttl: %q\n\tshutdown_timeout: %q\n}\n\n",
		cfg.SSH.Host, cfg.SSH.Port, cfg.SSH.TokenTTL.String(), cfg.SSH.ShutdownTimeout.String())
	fmt.Fprintf(&sb, "metrics: {\n\taddress: %q\n}\n", cfg.Metrics.Address)
	return sb.String()
}
