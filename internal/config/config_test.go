package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "checksheet.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad(t *testing.T) {
	t.Setenv("CS_PROJECT", "42")

	path := writeConfig(t, `
source:
  gitlab:
    base_url: "https://gitlab.example.com/"
    project_id: "${CS_PROJECT}"
    path: "specs/release.json"

output:
  workbook: "out/release.xlsx"
  filler: "-"
  prune: false

images:
  dir: "images"
  scale: 0.5

script:
  timeout: 2s

concurrency: 4
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	dir := filepath.Dir(path)
	if cfg.Source.GitLab.BaseURL != "https://gitlab.example.com" {
		t.Errorf("expected trailing slash trimmed, got %s", cfg.Source.GitLab.BaseURL)
	}
	if cfg.Source.GitLab.ProjectID != "42" {
		t.Errorf("expected project id 42, got %s", cfg.Source.GitLab.ProjectID)
	}
	if cfg.Source.GitLab.Ref != "main" {
		t.Errorf("expected default ref main, got %s", cfg.Source.GitLab.Ref)
	}
	if cfg.Output.Workbook != filepath.Join(dir, "out/release.xlsx") {
		t.Errorf("expected workbook relative to config, got %s", cfg.Output.Workbook)
	}
	if cfg.Images.Dir != filepath.Join(dir, "images") {
		t.Errorf("expected image dir relative to config, got %s", cfg.Images.Dir)
	}
	if cfg.Prune() {
		t.Errorf("expected prune disabled")
	}
	if cfg.Output.IndexSheet != "Index" {
		t.Errorf("expected default index sheet, got %s", cfg.Output.IndexSheet)
	}
	if cfg.Output.Mode != ModeIncremental {
		t.Errorf("expected incremental mode, got %s", cfg.Output.Mode)
	}
	if cfg.Script.Timeout != 2*time.Second {
		t.Errorf("expected 2s timeout, got %s", cfg.Script.Timeout)
	}
	if cfg.Concurrency != 4 {
		t.Errorf("expected concurrency 4, got %d", cfg.Concurrency)
	}
	if !cfg.UsesGitLab() {
		t.Errorf("expected gitlab source")
	}
}

func TestLoadErrors(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Errorf("expected error for missing file")
	}
	if _, err := Load(writeConfig(t, "source: [")); err == nil {
		t.Errorf("expected error for malformed YAML")
	}
	if _, err := Load(writeConfig(t, "output:\n  mode: partial\n")); err == nil {
		t.Errorf("expected error for invalid mode")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{
			name: "file source",
			cfg:  Config{Source: SourceConfig{File: "/doc.json"}, Output: OutputConfig{Mode: ModeFull}},
		},
		{
			name: "gitlab source",
			cfg: Config{
				Source: SourceConfig{GitLab: GitLabConfig{BaseURL: "https://gitlab.com", ProjectID: "1", Path: "a.json"}},
				Output: OutputConfig{Mode: ModeIncremental},
			},
		},
		{
			name: "both sources",
			cfg: Config{
				Source: SourceConfig{File: "/doc.json", GitLab: GitLabConfig{BaseURL: "https://gitlab.com", ProjectID: "1", Path: "a.json"}},
				Output: OutputConfig{Mode: ModeIncremental},
			},
			wantErr: true,
		},
		{
			name: "gitlab without path",
			cfg: Config{
				Source: SourceConfig{GitLab: GitLabConfig{BaseURL: "https://gitlab.com", ProjectID: "1"}},
				Output: OutputConfig{Mode: ModeIncremental},
			},
			wantErr: true,
		},
		{
			name: "gitlab with bad scheme",
			cfg: Config{
				Source: SourceConfig{GitLab: GitLabConfig{BaseURL: "gitlab.com", ProjectID: "1", Path: "a.json"}},
				Output: OutputConfig{Mode: ModeIncremental},
			},
			wantErr: true,
		},
		{
			name:    "negative concurrency",
			cfg:     Config{Output: OutputConfig{Mode: ModeIncremental}, Concurrency: -1},
			wantErr: true,
		},
		{
			name:    "negative scale",
			cfg:     Config{Output: OutputConfig{Mode: ModeIncremental}, Images: ImagesConfig{Scale: -1}},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestApplyFlags(t *testing.T) {
	fs := pflag.NewFlagSet("render", pflag.ContinueOnError)
	fs.String(FlagInput, "", "")
	fs.String(FlagOutput, "", "")
	fs.String(FlagFiller, "", "")
	fs.Bool(FlagNoPrune, false, "")
	fs.Bool(FlagFull, false, "")
	fs.Int(FlagConcurrency, 0, "")
	fs.Float64(FlagImageScale, 0, "")

	if err := fs.Parse([]string{"--input", "doc.yaml", "--output", "x.xlsx", "--no-prune", "--full", "--concurrency", "2", "--image-scale", "0.25"}); err != nil {
		t.Fatal(err)
	}

	cfg := Default()
	cfg.Output.Filler = "keep"
	if err := cfg.ApplyFlags(fs); err != nil {
		t.Fatalf("ApplyFlags failed: %v", err)
	}

	if cfg.Source.File != "doc.yaml" || cfg.Output.Workbook != "x.xlsx" {
		t.Errorf("expected file flags applied, got %+v", cfg)
	}
	if cfg.Output.Filler != "keep" {
		t.Errorf("unset flag overrode config: %q", cfg.Output.Filler)
	}
	if cfg.Prune() {
		t.Errorf("expected prune disabled")
	}
	if cfg.Output.Mode != ModeFull {
		t.Errorf("expected full mode, got %s", cfg.Output.Mode)
	}
	if cfg.Concurrency != 2 || cfg.Images.Scale != 0.25 {
		t.Errorf("expected numeric flags applied, got %d %v", cfg.Concurrency, cfg.Images.Scale)
	}
}

func TestPassphrase(t *testing.T) {
	cfg := Default()
	t.Setenv(DefaultPassphraseEnv, "secret")
	if cfg.Passphrase() != "secret" {
		t.Errorf("expected passphrase from %s", DefaultPassphraseEnv)
	}
}
