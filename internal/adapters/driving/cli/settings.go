package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/custodia-labs/ragops/internal/adapters/driven/ai"
	"github.com/custodia-labs/ragops/internal/core/domain"
)

// validateEmbedding pings the configured provider. Tests replace it.
var validateEmbedding = ai.ValidateEmbeddingConfig

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Manage application settings",
	Long: `View and configure chunking, embedding, index and source settings.

Values come from ~/.ragops/config.toml, overridden by environment variables
(VOYAGE_API_KEY, OPENAI_API_KEY, CF_WORKER_URL, CF_API_KEY, SOURCE_BUCKET_NAME,
SOURCE_PREFIX, GCP_PROJECT_ID, AWS_REGION).`,
	RunE: runSettingsShow,
}

var settingsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current settings",
	RunE:  runSettingsShow,
}

var settingsSetCmd = &cobra.Command{
	Use:   "set [key] [value]",
	Short: "Set a single setting",
	Long: `Set a single setting by dot-notation key.

Examples:
  ragops settings set chunking.size 800
  ragops settings set source.extensions .md,.txt`,
	Args: cobra.ExactArgs(2),
	RunE: runSettingsSet,
}

var settingsKeysCmd = &cobra.Command{
	Use:   "keys",
	Short: "List settable keys",
	Args:  cobra.NoArgs,
	RunE:  runSettingsKeys,
}

var settingsEmbeddingCmd = &cobra.Command{
	Use:   "embedding",
	Short: "Configure embedding provider",
	Long:  `Configure the embedding provider used to embed chunks and queries.`,
	RunE:  runSettingsEmbedding,
}

var settingsIndexCmd = &cobra.Command{
	Use:   "index",
	Short: "Configure vector index backend",
	Long:  `Configure where vectors are stored: a remote worker, a local SQLite file or memory.`,
	RunE:  runSettingsIndex,
}

func init() {
	settingsCmd.AddCommand(settingsShowCmd)
	settingsCmd.AddCommand(settingsSetCmd)
	settingsCmd.AddCommand(settingsKeysCmd)
	settingsCmd.AddCommand(settingsEmbeddingCmd)
	settingsCmd.AddCommand(settingsIndexCmd)
	rootCmd.AddCommand(settingsCmd)
}

func runSettingsShow(cmd *cobra.Command, _ []string) error {
	if err := ensureSettings(); err != nil {
		return err
	}

	settings, err := settingsService.Get()
	if err != nil {
		return fmt.Errorf("failed to get settings: %w", err)
	}

	cmd.Println("Current Settings")
	cmd.Println("================")
	cmd.Println()

	cmd.Println("[Chunking]")
	cmd.Printf("  Size: %d\n", settings.Chunking.Size)
	cmd.Printf("  Overlap: %d\n", settings.Chunking.Overlap)
	cmd.Printf("  ID Strategy: %s\n", settings.Chunking.IDStrategy)
	cmd.Println()

	cmd.Println("[Embedding]")
	cmd.Printf("  Provider: %s\n", settings.Embedding.Provider.Description())
	cmd.Printf("  Model: %s\n", settings.Embedding.Model)
	if settings.Embedding.BaseURL != "" {
		cmd.Printf("  Base URL: %s\n", settings.Embedding.BaseURL)
	}
	if settings.Embedding.Provider.RequiresAPIKey() {
		if settings.Embedding.APIKey != "" {
			cmd.Printf("  API Key: %s\n", maskAPIKey(settings.Embedding.APIKey))
		} else {
			cmd.Printf("  API Key: (not set)\n")
		}
	}
	cmd.Printf("  Batch Size: %d\n", settings.Embedding.BatchSize)
	status := "configured"
	if !settings.Embedding.IsConfigured() {
		status = "not configured"
	}
	cmd.Printf("  Status: %s\n", status)
	cmd.Println()

	cmd.Println("[Vector Index]")
	cmd.Printf("  Backend: %s\n", settings.Index.Backend.Description())
	switch settings.Index.Backend {
	case domain.IndexBackendWorker:
		cmd.Printf("  URL: %s\n", valueOrUnset(settings.Index.URL))
		if settings.Index.Token != "" {
			cmd.Printf("  Token: %s\n", maskAPIKey(settings.Index.Token))
		} else {
			cmd.Printf("  Token: (not set)\n")
		}
	case domain.IndexBackendSQLite:
		cmd.Printf("  Path: %s\n", valueOr(settings.Index.Path, "~/.ragops/index.db"))
	}
	if settings.Index.Dimensions > 0 {
		cmd.Printf("  Dimensions: %d\n", settings.Index.Dimensions)
	} else {
		cmd.Printf("  Dimensions: (from model)\n")
	}
	cmd.Printf("  Metric: %s\n", settings.Index.Metric)
	cmd.Printf("  Batch Size: %d\n", settings.Index.BatchSize)
	cmd.Println()

	cmd.Println("[Source]")
	cmd.Printf("  URI: %s\n", valueOrUnset(settings.Source.URI))
	cmd.Printf("  Extensions: %s\n", strings.Join(settings.Source.Extensions, ", "))
	if settings.Source.ProjectID != "" {
		cmd.Printf("  GCP Project: %s\n", settings.Source.ProjectID)
	}
	if settings.Source.Region != "" {
		cmd.Printf("  AWS Region: %s\n", settings.Source.Region)
	}
	if settings.Source.Endpoint != "" {
		cmd.Printf("  Endpoint: %s\n", settings.Source.Endpoint)
	}
	cmd.Println()

	if err := settingsService.Validate(); err != nil {
		cmd.Printf("Warning: %v\n", err)
		cmd.Println("Run 'ragops settings embedding' or 'ragops settings index' to fix configuration issues.")
	} else {
		cmd.Println("Configuration is valid.")
	}

	return nil
}

func runSettingsSet(cmd *cobra.Command, args []string) error {
	if err := ensureSettings(); err != nil {
		return err
	}
	if err := settingsService.Set(args[0], args[1]); err != nil {
		return fmt.Errorf("failed to set %s: %w", args[0], err)
	}
	cmd.Printf("Set %s\n", args[0])
	return nil
}

func runSettingsKeys(cmd *cobra.Command, _ []string) error {
	if err := ensureSettings(); err != nil {
		return err
	}
	for _, k := range settingsService.Keys() {
		cmd.Println(k)
	}
	return nil
}

func runSettingsEmbedding(cmd *cobra.Command, _ []string) error {
	if err := ensureSettings(); err != nil {
		return err
	}
	reader := bufio.NewReader(cmd.InOrStdin())
	return configureEmbeddingProvider(cmd, reader)
}

func runSettingsIndex(cmd *cobra.Command, _ []string) error {
	if err := ensureSettings(); err != nil {
		return err
	}
	reader := bufio.NewReader(cmd.InOrStdin())
	return configureIndexBackend(cmd, reader)
}

func configureEmbeddingProvider(cmd *cobra.Command, reader *bufio.Reader) error {
	cmd.Println("Select Embedding Provider")
	providers := domain.AllEmbeddingProviders()
	for i, p := range providers {
		cmd.Printf("  %d. %s\n", i+1, p.Description())
	}
	cmd.Print("\nEnter choice [1]: ")
	input := readLine(reader)
	idx := parseChoice(input, len(providers), 1)
	selectedProvider := providers[idx-1]

	// Get model
	defaults := domain.DefaultEmbeddingModels()
	defaultModel := defaults[selectedProvider]
	cmd.Printf("Enter model name [%s]: ", defaultModel)
	model := readLine(reader)
	if model == "" {
		model = defaultModel
	}

	// An empty key falls back to the provider's environment variable.
	var apiKey string
	if selectedProvider.RequiresAPIKey() {
		cmd.Print("Enter API key (blank to use the environment): ")
		apiKey = readPassword(cmd.InOrStdin(), reader)
		cmd.Println()
	}

	if err := settingsService.SetEmbeddingProvider(selectedProvider, model, apiKey); err != nil {
		return fmt.Errorf("failed to configure embedding provider: %w", err)
	}

	settings, err := settingsService.Get()
	if err != nil {
		return fmt.Errorf("failed to get settings: %w", err)
	}

	// Validate the configuration by pinging the service
	cmd.Print("Validating configuration... ")
	if err := validateEmbedding(cmdContext(cmd), &settings.Embedding); err != nil {
		cmd.Printf("FAILED: %v\n", err)
		return fmt.Errorf("embedding configuration validation failed: %w", err)
	}
	cmd.Println("OK")

	cmd.Printf("Embedding provider configured: %s (%s)\n\n", selectedProvider.Description(), model)
	return nil
}

func configureIndexBackend(cmd *cobra.Command, reader *bufio.Reader) error {
	cmd.Println("Select Vector Index Backend")
	backends := domain.AllIndexBackends()
	for i, b := range backends {
		cmd.Printf("  %d. %s\n", i+1, b.Description())
	}
	cmd.Print("\nEnter choice [2]: ")
	input := readLine(reader)
	idx := parseChoice(input, len(backends), 2)
	selected := backends[idx-1]

	var target, token string
	switch selected {
	case domain.IndexBackendWorker:
		cmd.Print("Enter worker URL (blank to use CF_WORKER_URL): ")
		target = readLine(reader)
		cmd.Print("Enter worker token (blank to use CF_API_KEY): ")
		token = readPassword(cmd.InOrStdin(), reader)
		cmd.Println()
	case domain.IndexBackendSQLite:
		cmd.Print("Enter database path [~/.ragops/index.db]: ")
		target = readLine(reader)
	}

	if err := settingsService.SetIndexBackend(selected, target, token); err != nil {
		return fmt.Errorf("failed to configure index backend: %w", err)
	}

	cmd.Printf("Index backend configured: %s\n", selected.Description())
	return nil
}

// Helper functions.

func cmdContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

//nolint:errcheck // CLI helper, error ignored for UX
func readLine(reader *bufio.Reader) string {
	input, _ := reader.ReadString('\n')
	return strings.TrimSpace(input)
}

func parseChoice(input string, maxVal, defaultVal int) int {
	if input == "" {
		return defaultVal
	}
	val, err := strconv.Atoi(input)
	if err != nil || val < 1 || val > maxVal {
		return defaultVal
	}
	return val
}

// readPassword reads a secret without echo when in is a terminal.
func readPassword(in io.Reader, reader *bufio.Reader) string {
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		password, err := term.ReadPassword(int(f.Fd()))
		if err == nil {
			return strings.TrimSpace(string(password))
		}
	}
	// Fallback to regular input
	return readLine(reader)
}

func maskAPIKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "..." + key[len(key)-4:]
}

func valueOr(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

func valueOrUnset(v string) string {
	return valueOr(v, "(not set)")
}
