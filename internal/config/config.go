package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/spf13/viper"

	"tfdoc/internal/errors"
	"tfdoc/internal/paths"
)

// CurrentVersion is the only supported config schema version.
const CurrentVersion = 1

// Config represents the complete tfdoc configuration
type Config struct {
	Version int `json:"version" mapstructure:"version"`

	// RepoRoot is the absolute directory relative source paths are resolved against.
	RepoRoot string `json:"-" mapstructure:"-"`

	// TerraformSources defines the root modules. Decoded separately since it
	// is either a path string or a name to path mapping.
	TerraformSources RootModuleConfig `json:"terraformSources" mapstructure:"-"`

	TerraformCommentMarkup string `json:"terraformCommentMarkup,omitempty" mapstructure:"terraformCommentMarkup"`
	DocumentMarkup         string `json:"documentMarkup" mapstructure:"documentMarkup"`

	Modules ModulesConfig `json:"modules" mapstructure:"modules"`
	Scan    ScanConfig    `json:"scan" mapstructure:"scan"`
	Logging LoggingConfig `json:"logging" mapstructure:"logging"`

	// ConfigFile is the file the values were read from, empty for defaults.
	ConfigFile string `json:"-" mapstructure:"-"`
}

// ModulesConfig contains module discovery configuration
type ModulesConfig struct {
	DiscoverNested bool     `json:"discoverNested" mapstructure:"discoverNested"`
	Ignore         []string `json:"ignore" mapstructure:"ignore"`
}

// ScanConfig contains block scanning configuration
type ScanConfig struct {
	Workers int `json:"workers" mapstructure:"workers"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Format string `json:"format" mapstructure:"format"`
	Level  string `json:"level" mapstructure:"level"`
	File   bool   `json:"file" mapstructure:"file"`
}

// envBindings maps config keys to the environment variables overriding them.
var envBindings = map[string]string{
	"terraformSources":       "TFDOC_TERRAFORM_SOURCES",
	"terraformCommentMarkup": "TFDOC_TERRAFORM_COMMENT_MARKUP",
	"documentMarkup":         "TFDOC_DOCUMENT_MARKUP",
	"modules.discoverNested": "TFDOC_MODULES_DISCOVER_NESTED",
	"scan.workers":           "TFDOC_SCAN_WORKERS",
	"logging.level":          "TFDOC_LOG_LEVEL",
	"logging.format":         "TFDOC_LOG_FORMAT",
	"logging.file":           "TFDOC_LOG_FILE",
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Version:          CurrentVersion,
		RepoRoot:         ".",
		TerraformSources: SingleFromPath("."),
		DocumentMarkup:   "restructuredtext",
		Modules: ModulesConfig{
			DiscoverNested: true,
			Ignore:         []string{".terraform", ".git"},
		},
		Scan: ScanConfig{
			Workers: runtime.NumCPU(),
		},
		Logging: LoggingConfig{
			Format: "human",
			Level:  "warn",
		},
	}
}

// LoadConfig loads configuration from <repoRoot>/.tfdoc/config.{json,yaml,toml}.
// A missing config file yields the defaults plus any tfdoc.toml declarations.
func LoadConfig(repoRoot string) (*Config, error) {
	return LoadConfigFromPath(repoRoot, "")
}

// LoadConfigFromPath loads configuration from an explicit file, or from the
// standard location when configPath is empty.
func LoadConfigFromPath(repoRoot, configPath string) (*Config, error) {
	root, err := filepath.Abs(repoRoot)
	if err != nil {
		return nil, errors.New(errors.ConfigInvalid, "cannot resolve repository root", err)
	}

	v := newViper()
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(paths.GetDataDir(root))
	}

	if err := v.ReadInConfig(); err != nil {
		// Only the standard location is optional
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || configPath != "" {
			return nil, errors.New(errors.ConfigInvalid, "failed to read config", err)
		}
	}

	// Defaults come from viper, so decode into a zero value
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errors.New(errors.ConfigInvalid, "failed to decode config", err)
	}
	cfg.RepoRoot = root
	cfg.ConfigFile = v.ConfigFileUsed()

	sources, err := ParseRootModuleConfig(v.Get("terraformSources"))
	if err != nil {
		return nil, errors.New(errors.ConfigInvalid, "invalid terraformSources", err)
	}
	cfg.TerraformSources = sources

	if cfg.TerraformSources.IsZero() {
		if err := cfg.applyDeclarations(); err != nil {
			return nil, err
		}
	}
	if cfg.TerraformSources.IsZero() {
		cfg.TerraformSources = SingleFromPath(".")
	}

	if err := cfg.Validate(); err != nil {
		return nil, errors.New(errors.ConfigInvalid, "invalid configuration", err)
	}
	return cfg, nil
}

func newViper() *viper.Viper {
	v := viper.New()
	def := DefaultConfig()

	v.SetDefault("version", def.Version)
	v.SetDefault("documentMarkup", def.DocumentMarkup)
	v.SetDefault("terraformCommentMarkup", "")
	v.SetDefault("modules.discoverNested", def.Modules.DiscoverNested)
	v.SetDefault("modules.ignore", def.Modules.Ignore)
	v.SetDefault("scan.workers", def.Scan.Workers)
	v.SetDefault("logging.format", def.Logging.Format)
	v.SetDefault("logging.level", def.Logging.Level)
	v.SetDefault("logging.file", false)

	for key, env := range envBindings {
		_ = v.BindEnv(key, env)
	}
	return v
}

// applyDeclarations fills sources (and the comment markup if unset) from
// a tfdoc.toml declarations file next to the repository root.
func (c *Config) applyDeclarations() error {
	declPath := filepath.Join(c.RepoRoot, paths.DeclarationFileName)
	if _, err := os.Stat(declPath); err != nil {
		return nil
	}

	decl, err := ParseDeclarationFile(declPath)
	if err != nil {
		return errors.New(errors.ConfigInvalid, "invalid "+paths.DeclarationFileName, err)
	}
	c.TerraformSources = decl.RootModuleConfig()
	if c.TerraformCommentMarkup == "" {
		c.TerraformCommentMarkup = decl.Markup
	}
	return nil
}

// Sources returns the configured root modules with absolute paths.
func (c *Config) Sources() []RootSource {
	sources := c.TerraformSources.Sources()
	for i := range sources {
		sources[i].Path = paths.ResolveAgainst(c.RepoRoot, sources[i].Path)
		if sources[i].Name == "" {
			sources[i].Name = filepath.Base(sources[i].Path)
		}
	}
	return sources
}

// Save writes the configuration to .tfdoc/config.json
func (c *Config) Save(repoRoot string) error {
	dir := paths.GetDataDir(repoRoot)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, "config.json"), data, 0644)
}

var validLogLevels = map[string]bool{
	"": true, "debug": true, "info": true, "warn": true, "warning": true,
	"error": true, "silent": true, "off": true,
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Version != CurrentVersion {
		return &ConfigError{Field: "version", Message: fmt.Sprintf("unsupported config version %d", c.Version)}
	}

	sources := c.Sources()
	if len(sources) == 0 {
		return &ConfigError{Field: "terraformSources", Message: "no root module configured"}
	}
	seen := make(map[string]bool, len(sources))
	for _, src := range sources {
		switch {
		case src.Name == "" || src.Name == ".":
			return &ConfigError{Field: "terraformSources", Message: fmt.Sprintf("cannot derive a root module name from %q", src.Path)}
		case strings.Contains(src.Name, "/"):
			return &ConfigError{Field: "terraformSources", Message: fmt.Sprintf("root module name %q must not contain '/'", src.Name)}
		case seen[src.Name]:
			return &ConfigError{Field: "terraformSources", Message: fmt.Sprintf("duplicate root module name %q", src.Name)}
		}
		seen[src.Name] = true
	}

	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		return &ConfigError{Field: "logging.level", Message: fmt.Sprintf("unknown level %q", c.Logging.Level)}
	}
	if c.Scan.Workers < 0 {
		return &ConfigError{Field: "scan.workers", Message: "must not be negative"}
	}
	return nil
}

// SupportedEnvVars returns the environment variables honored by LoadConfig.
func SupportedEnvVars() map[string]string {
	out := make(map[string]string, len(envBindings))
	for key, env := range envBindings {
		out[env] = key
	}
	return out
}

// ConfigError represents a configuration error
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return "config error in field '" + e.Field + "': " + e.Message
}
