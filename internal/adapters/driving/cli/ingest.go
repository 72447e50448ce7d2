package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/ragops/internal/core/domain"
	"github.com/custodia-labs/ragops/internal/core/ports/driving"
)

var (
	ingestExtensions []string
	ingestReplace    bool
	ingestWatch      bool
	ingestJSON       bool
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [uri]",
	Short: "Load, chunk, embed and store documents",
	Long: `Loads documents from a source, splits them into chunks, embeds the chunks
and stores them in the vector index.

The source is a local path, file:///path, gs://bucket/prefix or
s3://bucket/prefix. Without an argument the configured source.uri is used.

Examples:
  ragops ingest ./docs
  ragops ingest gs://my-bucket/contracts --ext .md,.txt
  ragops ingest ./docs --watch`,
	Args: cobra.MaximumNArgs(1),
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().StringSliceVar(&ingestExtensions, "ext", nil,
		"file extensions to load (default from source.extensions)")
	ingestCmd.Flags().BoolVar(&ingestReplace, "replace", false,
		"delete previously stored chunks of each document before writing")
	ingestCmd.Flags().BoolVarP(&ingestWatch, "watch", "w", false,
		"keep running and re-ingest changed files (local sources only)")
	ingestCmd.Flags().BoolVar(&ingestJSON, "json", false, "output the report as JSON")
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	loc, err := ingestLocation(args)
	if err != nil {
		return err
	}

	if err := ensureServices(); err != nil {
		return err
	}
	if pipelineService == nil {
		return errors.New("pipeline service not configured")
	}

	opts := driving.IngestOptions{ReplaceSources: ingestReplace}
	ctx := cmd.Context()

	report, err := pipelineService.IngestSource(ctx, loc, opts)
	if err != nil {
		return fmt.Errorf("ingest failed: %w", err)
	}
	if ingestJSON {
		if err := outputReportJSON(cmd, report); err != nil {
			return err
		}
	} else {
		outputReport(cmd, loc, report)
	}

	if !ingestWatch {
		return nil
	}

	st := stylesFor(cmd.OutOrStdout())
	cmd.Println(st.Muted.Render(fmt.Sprintf("Watching %s (Ctrl+C to stop)", loc)))

	// Watch always replaces so edited files leave no stale chunks.
	opts.ReplaceSources = true
	err = pipelineService.Watch(ctx, loc, opts, func(source string, r *domain.IngestReport, err error) {
		if err != nil {
			cmd.PrintErrln(st.Warning.Render(fmt.Sprintf("%s: %v", source, err)))
			return
		}
		cmd.Printf("%s %s: %d chunks\n", st.Success.Render("updated"), source, r.Stored)
	})
	if err != nil {
		return fmt.Errorf("watch failed: %w", err)
	}
	return nil
}

// ingestLocation resolves the source from args or settings.
func ingestLocation(args []string) (domain.SourceLocation, error) {
	if err := ensureSettings(); err != nil {
		return domain.SourceLocation{}, err
	}
	settings, err := settingsService.Get()
	if err != nil {
		return domain.SourceLocation{}, fmt.Errorf("loading settings: %w", err)
	}

	uri := settings.Source.URI
	if len(args) > 0 {
		uri = args[0]
	}
	if uri == "" {
		return domain.SourceLocation{}, errors.New("no source given: pass a uri or set source.uri")
	}

	extensions := settings.Source.Extensions
	if len(ingestExtensions) > 0 {
		extensions = ingestExtensions
	}
	return domain.ParseSourceURI(uri, extensions)
}

func outputReport(cmd *cobra.Command, loc domain.SourceLocation, report *domain.IngestReport) {
	st := stylesFor(cmd.OutOrStdout())
	if report.Documents == 0 {
		cmd.Println(st.Warning.Render(fmt.Sprintf("No matching documents found in %s", loc)))
		return
	}
	cmd.Println(st.Title.Render(fmt.Sprintf("Ingested %s", loc)))
	cmd.Printf("  Documents: %d\n", report.Documents)
	cmd.Printf("  Chunks:    %d\n", report.Chunks)
	cmd.Printf("  Stored:    %d\n", report.Stored)
	cmd.Printf("  Duration:  %s\n", report.Duration.Round(time.Millisecond))
}

func outputReportJSON(cmd *cobra.Command, report *domain.IngestReport) error {
	out := struct {
		Documents  int      `json:"documents"`
		Chunks     int      `json:"chunks"`
		Stored     int      `json:"stored"`
		Sources    []string `json:"sources"`
		DurationMS int64    `json:"duration_ms"`
	}{
		Documents:  report.Documents,
		Chunks:     report.Chunks,
		Stored:     report.Stored,
		Sources:    report.Sources,
		DurationMS: report.Duration.Milliseconds(),
	}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}
	cmd.Println(string(data))
	return nil
}
