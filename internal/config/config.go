package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

// Mode selects how the renderer treats unchanged sheets
type Mode string

const (
	ModeIncremental Mode = "incremental"
	ModeFull        Mode = "full"
)

// DefaultPassphraseEnv names the variable holding the token store passphrase
const DefaultPassphraseEnv = "CHECKSHEET_PASSPHRASE"

// Config represents the complete checksheet configuration
type Config struct {
	Source      SourceConfig `yaml:"source"`
	Output      OutputConfig `yaml:"output"`
	Images      ImagesConfig `yaml:"images"`
	Script      ScriptConfig `yaml:"script"`
	Tokens      TokensConfig `yaml:"tokens"`
	Concurrency int          `yaml:"concurrency"`
}

// SourceConfig configures where the checklist document comes from.
// Exactly one of File or GitLab is used.
type SourceConfig struct {
	File   string       `yaml:"file"`
	GitLab GitLabConfig `yaml:"gitlab"`
}

// GitLabConfig locates the document in a GitLab repository
type GitLabConfig struct {
	BaseURL   string `yaml:"base_url"`
	ProjectID string `yaml:"project_id"`
	Path      string `yaml:"path"`
	Ref       string `yaml:"ref"`
}

// OutputConfig configures the generated workbook
type OutputConfig struct {
	Workbook   string `yaml:"workbook"`
	IndexSheet string `yaml:"index_sheet"`
	Filler     string `yaml:"filler"`
	Prune      *bool  `yaml:"prune"`
	Mode       Mode   `yaml:"mode"`
}

// ImagesConfig configures node pictures
type ImagesConfig struct {
	Dir   string  `yaml:"dir"`
	Scale float64 `yaml:"scale"`
}

// ScriptConfig configures the formatting script
type ScriptConfig struct {
	Path    string        `yaml:"path"`
	Timeout time.Duration `yaml:"timeout"`
}

// TokensConfig configures the encrypted token store
type TokensConfig struct {
	StorePath     string `yaml:"store_path"`
	PassphraseEnv string `yaml:"passphrase_env"`
}

// Load reads and parses the configuration file
func Load(path string) (*Config, error) {
	path = os.ExpandEnv(path)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.expandEnv()
	cfg.resolvePaths(filepath.Dir(path))
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// Default returns a configuration with only defaults set, for runs driven
// entirely by flags.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// expandEnv expands environment variables in all string fields
func (c *Config) expandEnv() {
	c.Source.File = os.ExpandEnv(c.Source.File)
	c.Source.GitLab.BaseURL = os.ExpandEnv(c.Source.GitLab.BaseURL)
	c.Source.GitLab.ProjectID = os.ExpandEnv(c.Source.GitLab.ProjectID)
	c.Source.GitLab.Path = os.ExpandEnv(c.Source.GitLab.Path)
	c.Source.GitLab.Ref = os.ExpandEnv(c.Source.GitLab.Ref)
	c.Output.Workbook = os.ExpandEnv(c.Output.Workbook)
	c.Images.Dir = os.ExpandEnv(c.Images.Dir)
	c.Script.Path = os.ExpandEnv(c.Script.Path)
	c.Tokens.StorePath = os.ExpandEnv(c.Tokens.StorePath)
}

// resolvePaths makes relative file paths relative to the config file
func (c *Config) resolvePaths(dir string) {
	for _, p := range []*string{&c.Source.File, &c.Output.Workbook, &c.Images.Dir, &c.Script.Path, &c.Tokens.StorePath} {
		if *p != "" && !filepath.IsAbs(*p) {
			*p = filepath.Join(dir, *p)
		}
	}
}

// applyDefaults fills in zero-value fields with sensible defaults.
func (c *Config) applyDefaults() {
	if c.Source.GitLab.Ref == "" {
		c.Source.GitLab.Ref = "main"
	}
	c.Source.GitLab.BaseURL = strings.TrimRight(c.Source.GitLab.BaseURL, "/")
	if c.Output.IndexSheet == "" {
		c.Output.IndexSheet = "Index"
	}
	if c.Output.Prune == nil {
		prune := true
		c.Output.Prune = &prune
	}
	if c.Output.Mode == "" {
		c.Output.Mode = ModeIncremental
	}
	if c.Images.Scale == 0 {
		c.Images.Scale = 1
	}
	if c.Script.Timeout == 0 {
		c.Script.Timeout = 5 * time.Second
	}
	if c.Tokens.PassphraseEnv == "" {
		c.Tokens.PassphraseEnv = DefaultPassphraseEnv
	}
	if c.Tokens.StorePath == "" {
		if dir, err := os.UserConfigDir(); err == nil {
			c.Tokens.StorePath = filepath.Join(dir, "checksheet", "tokens")
		}
	}
}

// Validate checks the configuration for errors
func (c *Config) Validate() error {
	if c.Source.File != "" && c.UsesGitLab() {
		return fmt.Errorf("source: only one of file or gitlab may be set")
	}
	if c.UsesGitLab() {
		if c.Source.GitLab.BaseURL == "" {
			return fmt.Errorf("source.gitlab.base_url is required")
		}
		if !strings.HasPrefix(c.Source.GitLab.BaseURL, "http://") && !strings.HasPrefix(c.Source.GitLab.BaseURL, "https://") {
			return fmt.Errorf("source.gitlab.base_url must be an http(s) URL: %s", c.Source.GitLab.BaseURL)
		}
		if c.Source.GitLab.ProjectID == "" {
			return fmt.Errorf("source.gitlab.project_id is required")
		}
		if c.Source.GitLab.Path == "" {
			return fmt.Errorf("source.gitlab.path is required")
		}
	}

	switch c.Output.Mode {
	case ModeIncremental, ModeFull:
		// valid
	default:
		return fmt.Errorf("invalid output.mode: %s (must be incremental or full)", c.Output.Mode)
	}

	if c.Images.Scale < 0 {
		return fmt.Errorf("images.scale must not be negative: %v", c.Images.Scale)
	}
	if c.Concurrency < 0 {
		return fmt.Errorf("concurrency must not be negative: %d", c.Concurrency)
	}
	if c.Script.Timeout < 0 {
		return fmt.Errorf("script.timeout must not be negative: %s", c.Script.Timeout)
	}

	return nil
}

// UsesGitLab reports whether the document is fetched from GitLab
func (c *Config) UsesGitLab() bool {
	g := c.Source.GitLab
	return g.BaseURL != "" || g.ProjectID != "" || g.Path != ""
}

// Prune reports whether sheets of removed nodes are deleted
func (c *Config) Prune() bool {
	return c.Output.Prune == nil || *c.Output.Prune
}

// Passphrase returns the token store passphrase from the environment
func (c *Config) Passphrase() string {
	return os.Getenv(c.Tokens.PassphraseEnv)
}

// Flag names understood by ApplyFlags.
const (
	FlagInput       = "input"
	FlagOutput      = "output"
	FlagIndexSheet  = "index-sheet"
	FlagFiller      = "filler"
	FlagNoPrune     = "no-prune"
	FlagFull        = "full"
	FlagImageDir    = "image-dir"
	FlagImageScale  = "image-scale"
	FlagScript      = "script"
	FlagConcurrency = "concurrency"
	FlagTokenStore  = "token-store"
	FlagGitLabURL   = "gitlab-url"
	FlagProject     = "project"
	FlagPath        = "path"
	FlagRef         = "ref"
)

// ApplyFlags overrides configuration values with the flags set explicitly
// on fs. Flags that are not defined on fs are ignored.
func (c *Config) ApplyFlags(fs *pflag.FlagSet) error {
	var err error
	str := func(name string, dst *string) {
		if err != nil || !fs.Changed(name) {
			return
		}
		*dst, err = fs.GetString(name)
	}

	str(FlagInput, &c.Source.File)
	str(FlagOutput, &c.Output.Workbook)
	str(FlagIndexSheet, &c.Output.IndexSheet)
	str(FlagFiller, &c.Output.Filler)
	str(FlagImageDir, &c.Images.Dir)
	str(FlagScript, &c.Script.Path)
	str(FlagTokenStore, &c.Tokens.StorePath)
	str(FlagGitLabURL, &c.Source.GitLab.BaseURL)
	str(FlagProject, &c.Source.GitLab.ProjectID)
	str(FlagPath, &c.Source.GitLab.Path)
	str(FlagRef, &c.Source.GitLab.Ref)
	if err != nil {
		return err
	}

	if fs.Changed(FlagNoPrune) {
		noPrune, err := fs.GetBool(FlagNoPrune)
		if err != nil {
			return err
		}
		prune := !noPrune
		c.Output.Prune = &prune
	}
	if fs.Changed(FlagFull) {
		full, err := fs.GetBool(FlagFull)
		if err != nil {
			return err
		}
		if full {
			c.Output.Mode = ModeFull
		}
	}
	if fs.Changed(FlagImageScale) {
		if c.Images.Scale, err = fs.GetFloat64(FlagImageScale); err != nil {
			return err
		}
	}
	if fs.Changed(FlagConcurrency) {
		if c.Concurrency, err = fs.GetInt(FlagConcurrency); err != nil {
			return err
		}
	}

	c.Source.GitLab.BaseURL = strings.TrimRight(c.Source.GitLab.BaseURL, "/")
	return c.Validate()
}
