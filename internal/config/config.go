package config

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"github.com/spf13/viper"

	"github.com/roach88/dhall/internal/imports"
)

const (
	// AppName is the application name.
	AppName = "dhall"
	// ConfigFileName is the name of the config file (without extension).
	ConfigFileName = "config"
	// ConfigFileExt is the config file extension.
	ConfigFileExt = "cue"
	// EnvPrefix prefixes environment overrides (DHALL_IMPORTS_TIMEOUT).
	EnvPrefix = "DHALL"
)

//go:embed config_schema.cue
var configSchema string

// Config is the CLI configuration.
type Config struct {
	Cache   CacheConfig   `mapstructure:"cache"`
	Imports ImportsConfig `mapstructure:"imports"`
	Log     LogConfig     `mapstructure:"log"`
	Output  OutputConfig  `mapstructure:"output"`
}

// CacheConfig controls the persistent semantic cache.
type CacheConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// ImportsConfig controls import resolution.
type ImportsConfig struct {
	Timeout       time.Duration `mapstructure:"timeout"`
	AllowRemote   bool          `mapstructure:"allow_remote"`
	AllowEnv      bool          `mapstructure:"allow_env"`
	AllowAbsolute bool          `mapstructure:"allow_absolute"`
	AllowedHosts  []string      `mapstructure:"allowed_hosts"`
}

// LogConfig controls diagnostic logging.
type LogConfig struct {
	Level string `mapstructure:"level"`
}

// OutputConfig controls how command results are printed.
type OutputConfig struct {
	Format string `mapstructure:"format"`
}

// DefaultConfig returns the configuration used when no file or environment
// override is present.
func DefaultConfig() *Config {
	return &Config{
		Cache: CacheConfig{Enabled: true},
		Imports: ImportsConfig{
			Timeout:       imports.DefaultFetchTimeout,
			AllowRemote:   true,
			AllowEnv:      true,
			AllowAbsolute: true,
			AllowedHosts:  []string{},
		},
		Log:    LogConfig{Level: "warn"},
		Output: OutputConfig{Format: "text"},
	}
}

// Policy returns the import sandbox described by the configuration.
func (c ImportsConfig) Policy() imports.Policy {
	return imports.Policy{
		AllowRemote:   c.AllowRemote,
		AllowEnv:      c.AllowEnv,
		AllowAbsolute: c.AllowAbsolute,
		AllowedHosts:  c.AllowedHosts,
	}
}

// ConfigDir returns the dhall configuration directory under the user
// config directory ($XDG_CONFIG_HOME or ~/.config on Linux).
//
//nolint:revive // ConfigDir is more descriptive than Dir for external callers
func ConfigDir() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to locate config directory: %w", err)
	}
	return filepath.Join(dir, AppName), nil
}

// Load reads configuration from the requested source and returns it with
// the path of the file that was used ("" when only defaults and the
// environment apply).
func Load(ctx context.Context, opts LoadOptions) (*Config, string, error) {
	select {
	case <-ctx.Done():
		return nil, "", fmt.Errorf("load config canceled: %w", ctx.Err())
	default:
	}

	v := viper.New()

	defaults := DefaultConfig()
	v.SetDefault("cache.enabled", defaults.Cache.Enabled)
	v.SetDefault("cache.path", defaults.Cache.Path)
	v.SetDefault("imports.timeout", defaults.Imports.Timeout.String())
	v.SetDefault("imports.allow_remote", defaults.Imports.AllowRemote)
	v.SetDefault("imports.allow_env", defaults.Imports.AllowEnv)
	v.SetDefault("imports.allow_absolute", defaults.Imports.AllowAbsolute)
	v.SetDefault("imports.allowed_hosts", defaults.Imports.AllowedHosts)
	v.SetDefault("log.level", defaults.Log.Level)
	v.SetDefault("output.format", defaults.Output.Format)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	resolvedPath := ""
	if opts.ConfigFilePath != "" {
		if !fileExists(opts.ConfigFilePath) {
			return nil, "", fmt.Errorf("config file not found: %s", opts.ConfigFilePath)
		}
		resolvedPath = opts.ConfigFilePath
	} else {
		cfgDir := opts.ConfigDirPath
		if cfgDir == "" {
			var err error
			if cfgDir, err = ConfigDir(); err != nil {
				return nil, "", err
			}
		}
		if cuePath := filepath.Join(cfgDir, ConfigFileName+"."+ConfigFileExt); fileExists(cuePath) {
			resolvedPath = cuePath
		}
		// No config file: defaults and environment only.
	}

	if resolvedPath != "" {
		if err := loadCUEIntoViper(v, resolvedPath); err != nil {
			return nil, "", fmt.Errorf("load configuration %s: %w", resolvedPath, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, "", fmt.Errorf("failed to parse config: %w", err)
	}
	if cfg.Imports.Timeout <= 0 {
		return nil, "", fmt.Errorf("imports.timeout must be positive, got %s", cfg.Imports.Timeout)
	}

	return &cfg, resolvedPath, nil
}

// loadCUEIntoViper parses a CUE file, validates it against the #Config
// schema, and merges its contents into Viper.
//
// The file decodes to map[string]any rather than Config so that Viper keeps
// the defaults for absent keys and the environment can still override.
func loadCUEIntoViper(v *viper.Viper, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	ctx := cuecontext.New()

	schemaValue := ctx.CompileString(configSchema)
	if schemaValue.Err() != nil {
		return fmt.Errorf("internal error: failed to compile config schema: %w", schemaValue.Err())
	}

	userValue := ctx.CompileBytes(data, cue.Filename(path))
	if userValue.Err() != nil {
		return formatCUEError(userValue.Err())
	}

	schema := schemaValue.LookupPath(cue.ParsePath("#Config"))
	unified := schema.Unify(userValue)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return formatCUEError(err)
	}

	var configMap map[string]any
	if err := unified.Decode(&configMap); err != nil {
		return formatCUEError(err)
	}

	if err := v.MergeConfigMap(configMap); err != nil {
		return fmt.Errorf("failed to merge config: %w", err)
	}
	return nil
}

// formatCUEError flattens a CUE error list into one line per problem,
// each prefixed with the offending field path.
func formatCUEError(err error) error {
	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return err
	}
	lines := make([]string, 0, len(errs))
	for _, e := range errs {
		msg := e.Error()
		if path := strings.Join(cueerrors.Path(e), "."); path != "" && !strings.HasPrefix(msg, path) {
			msg = path + ": " + msg
		}
		lines = append(lines, msg)
	}
	return fmt.Errorf("invalid configuration:\n  %s", strings.Join(lines, "\n  "))
}

// fileExists checks if a file exists and is not a directory.
func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// GenerateCUE renders cfg as a config.cue file.
func GenerateCUE(cfg *Config) string {
	var sb strings.Builder

	sb.WriteString("// dhall configuration file\n\n")

	sb.WriteString("cache: {\n")
	fmt.Fprintf(&sb, "\tenabled: %v\n", cfg.Cache.Enabled)
	if cfg.Cache.Path != "" {
		fmt.Fprintf(&sb, "\tpath: %q\n", cfg.Cache.Path)
	}
	sb.WriteString("}\n")

	sb.WriteString("\nimports: {\n")
	fmt.Fprintf(&sb, "\ttimeout: %q\n", cfg.Imports.Timeout.String())
	fmt.Fprintf(&sb, "\tallow_remote: %v\n", cfg.Imports.AllowRemote)
	fmt.Fprintf(&sb, "\tallow_env: %v\n", cfg.Imports.AllowEnv)
	fmt.Fprintf(&sb, "\tallow_absolute: %v\n", cfg.Imports.AllowAbsolute)
	if len(cfg.Imports.AllowedHosts) > 0 {
		sb.WriteString("\tallowed_hosts: [")
		for i, h := range cfg.Imports.AllowedHosts {
			if i > 0 {
				sb.WriteString(", ")
			}
			fmt.Fprintf(&sb, "%q", h)
		}
		sb.WriteString("]\n")
	}
	sb.WriteString("}\n")

	sb.WriteString("\nlog: {\n")
	fmt.Fprintf(&sb, "\tlevel: %q\n", cfg.Log.Level)
	sb.WriteString("}\n")

	sb.WriteString("\noutput: {\n")
	fmt.Fprintf(&sb, "\tformat: %q\n", cfg.Output.Format)
	sb.WriteString("}\n")

	return sb.String()
}
