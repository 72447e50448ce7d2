// Package cli provides the ragops command line interface.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/ragops/internal/adapters/driven/ai"
	"github.com/custodia-labs/ragops/internal/adapters/driven/config/file"
	"github.com/custodia-labs/ragops/internal/adapters/driven/config/memory"
	"github.com/custodia-labs/ragops/internal/connectors"
	"github.com/custodia-labs/ragops/internal/core/domain"
	"github.com/custodia-labs/ragops/internal/core/ports/driving"
	"github.com/custodia-labs/ragops/internal/core/services"
	"github.com/custodia-labs/ragops/internal/logger"
	"github.com/custodia-labs/ragops/internal/normalisers"
	"github.com/custodia-labs/ragops/internal/postprocessors"
)

// version is set at build time via -ldflags.
var version = "dev"

var (
	verboseFlag   bool
	ephemeralFlag bool
	configDirFlag string
)

// Services used by commands. Tests inject mocks here; otherwise they are
// built on first use from the stored settings.
var (
	settingsService driving.SettingsService
	pipelineService driving.PipelineService
	indexService    driving.IndexService
)

// closers release adapters built by ensureServices.
var closers []io.Closer

var rootCmd = &cobra.Command{
	Use:   "ragops",
	Short: "Document ingestion and retrieval for vector indexes",
	Long: `ragops loads documents from local folders, GCS or S3, splits them into
overlapping chunks, embeds them and stores the vectors in an index.
Stored chunks can then be retrieved by semantic similarity.`,
	SilenceUsage: true,
	PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
		logger.SetVerbose(verboseFlag)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&ephemeralFlag, "ephemeral", false,
		"ignore the config file and keep the index in memory")
	rootCmd.PersistentFlags().StringVar(&configDirFlag, "config-dir", "", "configuration directory (default ~/.ragops)")
}

// Execute runs the root command with ctx, releasing adapters afterwards.
func Execute(ctx context.Context) error {
	defer func() {
		if err := Close(); err != nil {
			logger.Warn("closing adapters: %v", err)
		}
		logger.Sync()
	}()
	// cmd.Print* writes to stderr unless an output is set.
	if rootCmd.OutOrStderr() == os.Stderr {
		rootCmd.SetOut(os.Stdout)
	}
	return rootCmd.ExecuteContext(ctx)
}

// Close releases every adapter opened by the CLI.
func Close() error {
	var errs []error
	for i := len(closers) - 1; i >= 0; i-- {
		errs = append(errs, closers[i].Close())
	}
	closers = nil
	return errors.Join(errs...)
}

// ensureSettings builds the settings service unless one is injected.
func ensureSettings() error {
	if settingsService != nil {
		return nil
	}
	if ephemeralFlag {
		settingsService = services.NewSettingsService(memory.NewConfigStore(nil))
		return nil
	}
	store, err := file.NewConfigStore(configDirFlag)
	if err != nil {
		return fmt.Errorf("opening config: %w", err)
	}
	settingsService = services.NewSettingsService(store)
	return nil
}

// loadSettings returns validated settings.
func loadSettings() (*domain.AppSettings, error) {
	if err := ensureSettings(); err != nil {
		return nil, err
	}
	settings, err := settingsService.Get()
	if err != nil {
		return nil, fmt.Errorf("loading settings: %w", err)
	}
	if ephemeralFlag {
		settings.Index.Backend = domain.IndexBackendMemory
	}
	if err := settings.Validate(); err != nil {
		return nil, fmt.Errorf("%w. Run 'ragops settings' to fix", err)
	}
	return settings, nil
}

// ensureIndex builds an index client without an embedder. It serves
// commands that never embed text (get, peek, count, delete).
func ensureIndex() error {
	if indexService != nil {
		return nil
	}
	settings, err := loadSettings()
	if err != nil {
		return err
	}
	index, err := ai.CreateVectorIndex(&settings.Index)
	if err != nil {
		return fmt.Errorf("opening index: %w", err)
	}
	closers = append(closers, index)
	indexService = services.NewIndexClient(index, nil, settings.Index.Dimensions)
	return nil
}

// ensureServices builds the full pipeline: embedder, index, chunker,
// document sources and normalisers.
func ensureServices() error {
	if pipelineService != nil && indexService != nil {
		return nil
	}
	settings, err := loadSettings()
	if err != nil {
		return err
	}

	res, err := ai.Init(settings, "")
	if err != nil {
		return err
	}
	closers = append(closers, res)

	chunker, err := postprocessors.NewPipelineFromConfig(
		newProcessorRegistry(), settings.Chunking.PipelineConfig())
	if err != nil {
		return fmt.Errorf("building chunker: %w", err)
	}

	factory := connectors.NewFactory(connectors.ConfigFromSettings(settings.Source))
	closers = append(closers, factory)

	index := services.NewIndexClient(res.Index, res.Embedder, res.Dimensions)
	if indexService == nil {
		indexService = index
	}
	if pipelineService == nil {
		pipelineService = services.NewPipelineService(chunker, res.Embedder, index, factory, normalisers.Default(),
			services.PipelineOptions{
				EmbedBatchSize:  settings.Embedding.BatchSize,
				UpsertBatchSize: settings.Index.BatchSize,
			})
	}
	logger.Debug("pipeline ready: %s, %s index, %d dims",
		res.Embedder.ModelName(), settings.Index.Backend, res.Dimensions)
	return nil
}

func newProcessorRegistry() *postprocessors.Registry {
	r := postprocessors.NewRegistry()
	postprocessors.RegisterDefaults(r)
	return r
}
