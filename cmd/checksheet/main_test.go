package main

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ukaji3/checksheet-go/internal/config"
	"github.com/ukaji3/checksheet-go/pkg/checksheet"
	"github.com/xuri/excelize/v2"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func execute(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(append([]string{"--log-level", "error"}, args...))
	t.Cleanup(func() {
		rootCmd.SetArgs(nil)
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
	})
	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("%v failed: %v\n%s", args, err, out.String())
	}
	return out.String()
}

func TestSetupLogger(t *testing.T) {
	origLevel := logLevel
	origFormat := logFormat
	t.Cleanup(func() {
		logLevel = origLevel
		logFormat = origFormat
	})

	for _, tc := range []struct {
		name      string
		logLevel  string
		logFormat string
	}{
		{name: "debug/text", logLevel: "debug", logFormat: "text"},
		{name: "info/json", logLevel: "info", logFormat: "json"},
		{name: "unknown/text", logLevel: "unknown", logFormat: "text"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			logLevel = tc.logLevel
			logFormat = tc.logFormat

			if setupLogger() == nil {
				t.Fatal("setupLogger returned nil")
			}
		})
	}
}

func TestLoadConfig_WithExplicitPath(t *testing.T) {
	origCfgFile := cfgFile
	t.Cleanup(func() { cfgFile = origCfgFile })

	tmpDir := t.TempDir()
	cfgPath := filepath.Join(tmpDir, "checksheet.yaml")
	content := []byte(`source:
  file: "release.json"
output:
  workbook: "release.xlsx"
  filler: "~"
`)
	if err := os.WriteFile(cfgPath, content, 0o600); err != nil {
		t.Fatalf("failed to write temp config: %v", err)
	}

	cfgFile = cfgPath
	cfg, err := loadConfig(fetchCmd, quietLogger())
	if err != nil {
		t.Fatalf("loadConfig returned error: %v", err)
	}
	if cfg.Source.File != filepath.Join(tmpDir, "release.json") {
		t.Errorf("unexpected source file %s", cfg.Source.File)
	}
	if cfg.Output.Filler != "~" {
		t.Errorf("unexpected filler %q", cfg.Output.Filler)
	}
}

func TestLoadConfig_MissingFile(t *testing.T) {
	origCfgFile := cfgFile
	t.Cleanup(func() { cfgFile = origCfgFile })

	cfgFile = filepath.Join(t.TempDir(), "absent.yaml")
	if _, err := loadConfig(fetchCmd, quietLogger()); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestRenderOptions(t *testing.T) {
	cfg := config.Default()
	cfg.Source.File = filepath.Join("specs", "release.json")
	cfg.Output.Mode = config.ModeFull
	cfg.Output.Filler = "-"
	cfg.Concurrency = 3

	opts, err := renderOptions(cfg, quietLogger())
	if err != nil {
		t.Fatalf("renderOptions failed: %v", err)
	}
	if opts.Mode != checksheet.ModeFull || opts.Filler != "-" || opts.Concurrency != 3 {
		t.Errorf("unexpected options %+v", opts)
	}
	if opts.ImageDir != "specs" {
		t.Errorf("expected image dir to default to the document directory, got %q", opts.ImageDir)
	}
	if !opts.ShouldPrune() {
		t.Errorf("expected prune by default")
	}

	cfg.Script.Path = filepath.Join(t.TempDir(), "absent.js")
	if _, err := renderOptions(cfg, quietLogger()); err == nil {
		t.Errorf("expected error for a missing script")
	}
}

func TestReadToken(t *testing.T) {
	token, err := readToken(strings.NewReader("\n  glpat-x  \nignored\n"))
	if err != nil || token != "glpat-x" {
		t.Errorf("readToken = %q, %v", token, err)
	}
	if _, err := readToken(strings.NewReader("\n\n")); err == nil {
		t.Errorf("expected error for empty input")
	}
}

func TestPrintReport(t *testing.T) {
	var buf bytes.Buffer
	printReport(&buf, "out.xlsx", &checksheet.Report{
		Generated:     []string{"A"},
		Skipped:       []string{"B", "C"},
		Renamed:       map[string]string{"Old": "New"},
		MergedRows:    4,
		MissingImages: []string{"/img/a.png"},
		FailedImages:  []string{"/img/b.bmp"},
	})

	out := buf.String()
	for _, want := range []string{"1 generated, 2 unchanged, 0 removed, 4 rows merged", `renamed "Old" -> "New"`, "Missing images:", "/img/a.png", "could not be embedded", "/img/b.bmp"} {
		if !strings.Contains(out, want) {
			t.Errorf("report output missing %q:\n%s", want, out)
		}
	}
}

func TestRenderCommand(t *testing.T) {
	dir := t.TempDir()
	docPath := filepath.Join(dir, "release.yaml")
	doc := `title: Release
columns: [Status]
sheets:
  - id: s1
    text: Build
    children:
      - id: a
        text: Compile
      - id: b
        text: Package
`
	if err := os.WriteFile(docPath, []byte(doc), 0o600); err != nil {
		t.Fatal(err)
	}
	outPath := filepath.Join(dir, "release.xlsx")

	out := execute(t, "render", docPath, "--output", outPath)
	if !strings.Contains(out, "1 generated") {
		t.Errorf("unexpected output: %s", out)
	}

	f, err := excelize.OpenFile(outPath)
	if err != nil {
		t.Fatalf("failed to open workbook: %v", err)
	}
	defer f.Close()
	if v, _ := f.GetCellValue("Build", "B3"); v != "Package" {
		t.Errorf("expected Package in Build!B3, got %q", v)
	}
}

func TestTokenCommands(t *testing.T) {
	t.Setenv(config.DefaultPassphraseEnv, "passphrase")
	store := filepath.Join(t.TempDir(), "tokens")

	execute(t, "token", "set", "https://gitlab.example.com", "42", "--token", "glpat-secret", "--token-store", store)

	if out := execute(t, "token", "get", "https://gitlab.example.com", "42", "--token-store", store); strings.TrimSpace(out) != "glpat-secret" {
		t.Errorf("unexpected token %q", out)
	}
	if out := execute(t, "token", "list", "--token-store", store); !strings.Contains(out, "https://gitlab.example.com\t42") {
		t.Errorf("unexpected list %q", out)
	}

	execute(t, "token", "delete", "https://gitlab.example.com", "42", "--token-store", store)
	if out := execute(t, "token", "list", "--token-store", store); strings.TrimSpace(out) != "" {
		t.Errorf("expected empty list, got %q", out)
	}
}

func TestSetupSignalHandler(t *testing.T) {
	ctx, cancel := setupSignalHandler()
	if ctx.Err() != nil {
		t.Fatalf("context canceled before any signal: %v", ctx.Err())
	}
	cancel()
	<-ctx.Done()
	if !errors.Is(ctx.Err(), context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", ctx.Err())
	}
}

func TestVersionCommand(t *testing.T) {
	if out := execute(t, "version"); !strings.Contains(out, "checksheet dev") {
		t.Errorf("unexpected version output %q", out)
	}
}
