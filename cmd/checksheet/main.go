// Package main provides the CLI entry point for checksheet.
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/ukaji3/checksheet-go/internal/config"
	"github.com/ukaji3/checksheet-go/internal/gitlab"
	"github.com/ukaji3/checksheet-go/internal/tokenstore"
	"github.com/ukaji3/checksheet-go/pkg/checksheet"
	"github.com/ukaji3/checksheet-go/pkg/checksheet/models"
	"github.com/ukaji3/checksheet-go/pkg/checksheet/script"
)

var (
	// Set at build time
	version = "dev"
	commit  = "none"

	// Global flags
	cfgFile   string
	logLevel  string
	logFormat string

	// Token flags
	tokenValue string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "checksheet",
	Short: "Render hierarchical checklists into Excel workbooks",
	Long: `checksheet renders a hierarchical JSON or YAML checklist into an xlsx workbook,
one sheet per top-level node plus an index sheet.

Re-rendering keeps the values users entered: rows are matched by node id, and
sheets whose content did not change are left untouched.`,
	SilenceUsage: true,
}

var renderCmd = &cobra.Command{
	Use:   "render [document]",
	Short: "Render a checklist document into a workbook",
	Long: `Render reads the checklist from a file or from GitLab and synchronizes the
output workbook with it.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runRender,
}

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Download the checklist document from GitLab",
	RunE:  runFetch,
}

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Manage stored GitLab access tokens",
	Long: `Token manages the encrypted token store. The passphrase is read from the
environment variable named by tokens.passphrase_env (default CHECKSHEET_PASSPHRASE).`,
}

var tokenSetCmd = &cobra.Command{
	Use:   "set <base-url> <project-id>",
	Short: "Store a token (read from --token or stdin)",
	Args:  cobra.ExactArgs(2),
	RunE:  runTokenSet,
}

var tokenGetCmd = &cobra.Command{
	Use:   "get <base-url> <project-id>",
	Short: "Print a stored token",
	Args:  cobra.ExactArgs(2),
	RunE:  runTokenGet,
}

var tokenDeleteCmd = &cobra.Command{
	Use:   "delete <base-url> <project-id>",
	Short: "Remove a stored token",
	Args:  cobra.ExactArgs(2),
	RunE:  runTokenDelete,
}

var tokenListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored tokens",
	Args:  cobra.NoArgs,
	RunE:  runTokenList,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "checksheet %s\n", version)
		fmt.Fprintf(cmd.OutOrStdout(), "  commit: %s\n", commit)
	},
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (YAML)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "log format (text, json)")
	rootCmd.PersistentFlags().String(config.FlagTokenStore, "", "token store file")

	addSourceFlags(renderCmd)
	renderCmd.Flags().StringP(config.FlagInput, "i", "", "source document (JSON or YAML)")
	renderCmd.Flags().StringP(config.FlagOutput, "o", "", "output workbook (.xlsx)")
	renderCmd.Flags().String(config.FlagIndexSheet, "", "index sheet name (default Index)")
	renderCmd.Flags().String(config.FlagFiller, "", "marker written in place of repeated ancestor labels")
	renderCmd.Flags().Bool(config.FlagNoPrune, false, "keep sheets of nodes removed from the document")
	renderCmd.Flags().Bool(config.FlagFull, false, "regenerate every sheet, changed or not")
	renderCmd.Flags().String(config.FlagImageDir, "", "directory of node images (default: document directory)")
	renderCmd.Flags().Float64(config.FlagImageScale, 1, "image scale factor")
	renderCmd.Flags().String(config.FlagScript, "", "formatting script (JavaScript)")
	renderCmd.Flags().Int(config.FlagConcurrency, 0, "parallel hash workers (default: CPU count)")

	addSourceFlags(fetchCmd)
	fetchCmd.Flags().StringP(config.FlagOutput, "o", "", "write the document to a file instead of stdout")

	tokenSetCmd.Flags().StringVar(&tokenValue, "token", "", "token value (default: read from stdin)")

	tokenCmd.AddCommand(tokenSetCmd)
	tokenCmd.AddCommand(tokenGetCmd)
	tokenCmd.AddCommand(tokenDeleteCmd)
	tokenCmd.AddCommand(tokenListCmd)

	rootCmd.AddCommand(renderCmd)
	rootCmd.AddCommand(fetchCmd)
	rootCmd.AddCommand(tokenCmd)
	rootCmd.AddCommand(versionCmd)
}

func addSourceFlags(cmd *cobra.Command) {
	cmd.Flags().String(config.FlagGitLabURL, "", "GitLab base URL")
	cmd.Flags().String(config.FlagProject, "", "GitLab project id or path")
	cmd.Flags().String(config.FlagPath, "", "document path in the repository")
	cmd.Flags().String(config.FlagRef, "", "branch, tag or commit (default main)")
}

func runRender(cmd *cobra.Command, args []string) error {
	ctx, cancel := setupSignalHandler()
	defer cancel()

	logger := setupLogger()

	cfg, err := loadConfig(cmd, logger)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if len(args) == 1 {
		cfg.Source.File = args[0]
		if err := cfg.Validate(); err != nil {
			return err
		}
	}
	if cfg.Output.Workbook == "" {
		return fmt.Errorf("no output workbook given (use --output or output.workbook)")
	}

	doc, err := loadDocument(ctx, cfg, logger)
	if err != nil {
		return err
	}

	opts, err := renderOptions(cfg, logger)
	if err != nil {
		return err
	}

	report, err := checksheet.Render(ctx, cfg.Output.Workbook, doc, opts)
	if err != nil {
		logger.Error("render failed", "error", err)
		return err
	}

	printReport(cmd.OutOrStdout(), cfg.Output.Workbook, report)
	return nil
}

func renderOptions(cfg *config.Config, logger *slog.Logger) (checksheet.Options, error) {
	opts := checksheet.DefaultOptions()
	opts.Logger = logger
	opts.Mode = checksheet.Mode(cfg.Output.Mode)
	opts.IndexSheet = cfg.Output.IndexSheet
	opts.Filler = cfg.Output.Filler
	opts.ImageScale = cfg.Images.Scale
	prune := cfg.Prune()
	opts.Prune = &prune
	if cfg.Concurrency > 0 {
		opts.Concurrency = cfg.Concurrency
	}

	opts.ImageDir = cfg.Images.Dir
	if opts.ImageDir == "" && cfg.Source.File != "" {
		opts.ImageDir = filepath.Dir(cfg.Source.File)
	}

	if cfg.Script.Path != "" {
		host, err := script.Load(cfg.Script.Path, logger, script.WithTimeout(cfg.Script.Timeout))
		if err != nil {
			return opts, err
		}
		opts.Formatter = host
	}
	return opts, nil
}

func loadDocument(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*models.Document, error) {
	if !cfg.UsesGitLab() {
		if cfg.Source.File == "" {
			return nil, fmt.Errorf("no source document given (use a file argument, --input or source.gitlab)")
		}
		logger.Info("loading document", "path", cfg.Source.File)
		return checksheet.LoadDocument(cfg.Source.File)
	}

	data, err := fetchDocument(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	return checksheet.ParseDocument(cfg.Source.GitLab.Path, data)
}

func fetchDocument(ctx context.Context, cfg *config.Config, logger *slog.Logger) ([]byte, error) {
	g := cfg.Source.GitLab
	if !cfg.UsesGitLab() {
		return nil, fmt.Errorf("no GitLab source configured (use --gitlab-url, --project and --path)")
	}

	token, err := lookupToken(cfg, logger)
	if err != nil {
		return nil, err
	}

	client := gitlab.NewClient(g.BaseURL, g.ProjectID, token)
	client.Logger = logger
	data, err := client.FetchFile(ctx, g.Path, g.Ref)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", g.Path, err)
	}
	return data, nil
}

// lookupToken returns the stored token of the configured project, or an
// empty token when no passphrase is set or nothing is stored.
func lookupToken(cfg *config.Config, logger *slog.Logger) (string, error) {
	if cfg.Passphrase() == "" {
		logger.Debug("no token store passphrase set, fetching anonymously", "env", cfg.Tokens.PassphraseEnv)
		return "", nil
	}
	store, err := openStore(cfg, logger)
	if err != nil {
		return "", err
	}
	token, err := store.Get(cfg.Source.GitLab.BaseURL, cfg.Source.GitLab.ProjectID)
	if errors.Is(err, tokenstore.ErrNotFound) {
		logger.Debug("no stored token, fetching anonymously", "base_url", cfg.Source.GitLab.BaseURL, "project", cfg.Source.GitLab.ProjectID)
		return "", nil
	}
	return token, err
}

func runFetch(cmd *cobra.Command, args []string) error {
	ctx, cancel := setupSignalHandler()
	defer cancel()

	logger := setupLogger()

	cfg, err := loadConfig(cmd, logger)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	data, err := fetchDocument(ctx, cfg, logger)
	if err != nil {
		return err
	}
	if _, err := checksheet.ParseDocument(cfg.Source.GitLab.Path, data); err != nil {
		logger.Warn("fetched document does not parse", "error", err)
	}

	out, _ := cmd.Flags().GetString(config.FlagOutput)
	if out == "" {
		_, err := cmd.OutOrStdout().Write(data)
		return err
	}
	if err := os.WriteFile(out, data, 0644); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	logger.Info("document written", "path", out, "bytes", len(data))
	return nil
}

func runTokenSet(cmd *cobra.Command, args []string) error {
	logger := setupLogger()
	store, err := tokenStore(cmd, logger)
	if err != nil {
		return err
	}

	token := tokenValue
	if token == "" {
		token, err = readToken(cmd.InOrStdin())
		if err != nil {
			return err
		}
	}
	if err := store.Set(args[0], args[1], token); err != nil {
		return err
	}
	logger.Info("token stored", "key", tokenstore.Key(args[0], args[1]))
	return nil
}

func runTokenGet(cmd *cobra.Command, args []string) error {
	store, err := tokenStore(cmd, setupLogger())
	if err != nil {
		return err
	}
	token, err := store.Get(args[0], args[1])
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), token)
	return nil
}

func runTokenDelete(cmd *cobra.Command, args []string) error {
	store, err := tokenStore(cmd, setupLogger())
	if err != nil {
		return err
	}
	return store.Delete(args[0], args[1])
}

func runTokenList(cmd *cobra.Command, args []string) error {
	store, err := tokenStore(cmd, setupLogger())
	if err != nil {
		return err
	}
	for _, e := range store.List() {
		fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", e.BaseURL, e.ProjectID)
	}
	return nil
}

func tokenStore(cmd *cobra.Command, logger *slog.Logger) (*tokenstore.Store, error) {
	cfg, err := loadConfig(cmd, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return openStore(cfg, logger)
}

func openStore(cfg *config.Config, logger *slog.Logger) (*tokenstore.Store, error) {
	if cfg.Tokens.StorePath == "" {
		return nil, fmt.Errorf("no token store path (use --token-store or tokens.store_path)")
	}
	store, err := tokenstore.Open(cfg.Tokens.StorePath, cfg.Passphrase(), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open token store %s: %w", cfg.Tokens.StorePath, err)
	}
	return store, nil
}

// readToken reads the first non-empty line of r.
func readToken(r io.Reader) (string, error) {
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		if line := strings.TrimSpace(sc.Text()); line != "" {
			return line, nil
		}
	}
	if err := sc.Err(); err != nil {
		return "", fmt.Errorf("failed to read token: %w", err)
	}
	return "", fmt.Errorf("no token given")
}

func printReport(w io.Writer, path string, report *checksheet.Report) {
	fmt.Fprintf(w, "%s: %d generated, %d unchanged, %d removed, %d rows merged\n",
		path, len(report.Generated), len(report.Skipped), len(report.Removed), report.MergedRows)

	renamed := make([]string, 0, len(report.Renamed))
	for from := range report.Renamed {
		renamed = append(renamed, from)
	}
	sort.Strings(renamed)
	for _, from := range renamed {
		fmt.Fprintf(w, "  renamed %q -> %q\n", from, report.Renamed[from])
	}

	if len(report.MissingImages) > 0 {
		fmt.Fprintln(w, "Missing images:")
		for _, p := range report.MissingImages {
			fmt.Fprintf(w, "  %s\n", p)
		}
	}
	if len(report.FailedImages) > 0 {
		fmt.Fprintln(w, "Images that could not be embedded:")
		for _, p := range report.FailedImages {
			fmt.Fprintf(w, "  %s\n", p)
		}
	}
}

func setupLogger() *slog.Logger {
	var level slog.Level
	switch logLevel {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	// Logs go to stderr; stdout carries command output.
	var handler slog.Handler
	opts := &slog.HandlerOptions{Level: level}

	if logFormat == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}

	return slog.New(handler)
}

// loadConfig reads the config file when one is given and applies the flags
// set on cmd.
func loadConfig(cmd *cobra.Command, logger *slog.Logger) (*config.Config, error) {
	cfg := config.Default()
	if cfgFile != "" {
		logger.Info("loading configuration", "path", cfgFile)
		loaded, err := config.Load(cfgFile)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if err := cfg.ApplyFlags(cmd.Flags()); err != nil {
		return nil, err
	}

	logger.Debug("configuration loaded",
		"source", cfg.Source.File,
		"gitlab", cfg.Source.GitLab.BaseURL,
		"workbook", cfg.Output.Workbook,
		"mode", cfg.Output.Mode)

	return cfg, nil
}

// setupSignalHandler returns a context canceled on SIGINT or SIGTERM. The
// cancel func stops the signal relay.
func setupSignalHandler() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
