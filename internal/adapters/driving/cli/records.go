package cli

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/ragops/internal/core/domain"
)

var (
	getWhere   []string
	getLimit   int
	getOffset  int
	getInclude []string
	getJSON    bool

	peekN    int
	peekJSON bool

	updateDocument string
	updateMeta     []string

	deleteIDs   []string
	deleteWhere []string
)

var getCmd = &cobra.Command{
	Use:   "get [id...]",
	Short: "Fetch stored chunks by id or metadata",
	Long: `Fetches stored chunks by id, by metadata filter, or page by page.
Without ids or a filter the first 10 records are returned.`,
	RunE: runGet,
}

var peekCmd = &cobra.Command{
	Use:   "peek",
	Short: "Show the first stored chunks",
	Args:  cobra.NoArgs,
	RunE:  runPeek,
}

var countCmd = &cobra.Command{
	Use:   "count",
	Short: "Count stored chunks",
	Args:  cobra.NoArgs,
	RunE:  runCount,
}

var updateCmd = &cobra.Command{
	Use:   "update [id]",
	Short: "Change the text or metadata of a stored chunk",
	Long: `Changes the text or metadata of a stored chunk. New text is re-embedded.

Examples:
  ragops update a1b2c3 --document "corrected text"
  ragops update a1b2c3 --set reviewed=yes`,
	Args: cobra.ExactArgs(1),
	RunE: runUpdate,
}

var deleteCmd = &cobra.Command{
	Use:   "delete",
	Short: "Delete stored chunks by id or metadata",
	Long: `Deletes stored chunks. At least one --id or --where is required.

Examples:
  ragops delete --id a1b2c3 --id d4e5f6
  ragops delete --where source=file:///docs/old.md`,
	Args: cobra.NoArgs,
	RunE: runDelete,
}

func init() {
	getCmd.Flags().StringArrayVar(&getWhere, "where", nil, "metadata filter as key=value (repeatable)")
	getCmd.Flags().IntVar(&getLimit, "limit", 0, "maximum number of records (default 10 without ids or filter)")
	getCmd.Flags().IntVar(&getOffset, "offset", 0, "number of records to skip")
	getCmd.Flags().StringSliceVar(&getInclude, "include", []string{"documents", "metadatas"},
		"fields to return: embeddings, documents, metadatas")
	getCmd.Flags().BoolVar(&getJSON, "json", false, "output records as JSON")

	peekCmd.Flags().IntVarP(&peekN, "number", "n", 10, "number of records")
	peekCmd.Flags().BoolVar(&peekJSON, "json", false, "output records as JSON")

	updateCmd.Flags().StringVar(&updateDocument, "document", "", "replacement text")
	updateCmd.Flags().StringArrayVar(&updateMeta, "set", nil, "metadata key=value to set (repeatable)")

	deleteCmd.Flags().StringSliceVar(&deleteIDs, "id", nil, "record id to delete (repeatable)")
	deleteCmd.Flags().StringArrayVar(&deleteWhere, "where", nil, "metadata filter as key=value (repeatable)")

	rootCmd.AddCommand(getCmd, peekCmd, countCmd, updateCmd, deleteCmd)
}

func runGet(cmd *cobra.Command, args []string) error {
	filter, err := parseWhere(getWhere)
	if err != nil {
		return err
	}
	include, err := parseInclude(getInclude)
	if err != nil {
		return err
	}
	if err := requireIndex(); err != nil {
		return err
	}

	records, err := indexService.Get(cmd.Context(), domain.GetRequest{
		IDs:     args,
		Filter:  filter,
		Limit:   getLimit,
		Offset:  getOffset,
		Include: include,
	})
	if err != nil {
		return fmt.Errorf("get failed: %w", err)
	}
	return outputRecords(cmd, records, getJSON)
}

func runPeek(cmd *cobra.Command, _ []string) error {
	if err := requireIndex(); err != nil {
		return err
	}
	records, err := indexService.Peek(cmd.Context(), peekN)
	if err != nil {
		return fmt.Errorf("peek failed: %w", err)
	}
	return outputRecords(cmd, records, peekJSON)
}

func runCount(cmd *cobra.Command, _ []string) error {
	if err := requireIndex(); err != nil {
		return err
	}
	n, err := indexService.Count(cmd.Context())
	if err != nil {
		return fmt.Errorf("count failed: %w", err)
	}
	cmd.Println(n)
	return nil
}

func runUpdate(cmd *cobra.Command, args []string) error {
	docChanged := cmd.Flags().Changed("document")
	if !docChanged && len(updateMeta) == 0 {
		return errors.New("nothing to update: pass --document or --set")
	}
	meta, err := parseWhere(updateMeta)
	if err != nil {
		return err
	}

	// Only new text needs the embedder.
	if docChanged {
		err = ensureServices()
	} else {
		err = ensureIndex()
	}
	if err != nil {
		return err
	}
	if indexService == nil {
		return errors.New("index service not configured")
	}

	ctx := cmd.Context()
	id := args[0]
	var patch domain.RecordPatch
	if docChanged {
		patch.Document = &updateDocument
	}
	if len(meta) > 0 {
		existing, err := indexService.Get(ctx, domain.GetRequest{
			IDs:     []string{id},
			Include: domain.Include{domain.IncludeMetadatas},
		})
		if err != nil {
			return fmt.Errorf("update failed: %w", err)
		}
		if len(existing) == 0 {
			return fmt.Errorf("update failed: %w: %s", domain.ErrNotFound, id)
		}
		merged := make(map[string]string, len(existing[0].Metadata)+len(meta))
		for k, v := range existing[0].Metadata {
			merged[k] = v
		}
		for k, v := range meta {
			merged[k] = v
		}
		patch.Metadata = merged
	}

	if err := indexService.Update(ctx, []string{id}, []domain.RecordPatch{patch}); err != nil {
		return fmt.Errorf("update failed: %w", err)
	}
	cmd.Printf("Updated %s\n", id)
	return nil
}

func runDelete(cmd *cobra.Command, _ []string) error {
	filter, err := parseWhere(deleteWhere)
	if err != nil {
		return err
	}
	req := domain.DeleteRequest{IDs: deleteIDs, Filter: filter}
	if req.IsEmpty() {
		return fmt.Errorf("%w: pass --id or --where", domain.ErrInvalidInput)
	}
	if err := requireIndex(); err != nil {
		return err
	}

	n, err := indexService.Delete(cmd.Context(), req)
	if err != nil {
		return fmt.Errorf("delete failed: %w", err)
	}
	cmd.Printf("Deleted %d records\n", n)
	return nil
}

func requireIndex() error {
	if err := ensureIndex(); err != nil {
		return err
	}
	if indexService == nil {
		return errors.New("index service not configured")
	}
	return nil
}

func parseInclude(fields []string) (domain.Include, error) {
	include := make(domain.Include, 0, len(fields))
	for _, f := range fields {
		switch field := domain.IncludeField(f); field {
		case domain.IncludeEmbeddings, domain.IncludeDocuments, domain.IncludeMetadatas:
			include = append(include, field)
		default:
			return nil, fmt.Errorf("%w: unknown include field %q", domain.ErrInvalidInput, f)
		}
	}
	return include, nil
}

type recordJSON struct {
	ID        string            `json:"id"`
	Document  string            `json:"document,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	Embedding []float32         `json:"embedding,omitempty"`
}

func outputRecords(cmd *cobra.Command, records []domain.VectorRecord, asJSON bool) error {
	if asJSON {
		out := make([]recordJSON, len(records))
		for i, r := range records {
			out[i] = recordJSON{ID: r.ID, Document: r.Document, Metadata: r.Metadata, Embedding: r.Embedding}
		}
		data, err := json.MarshalIndent(out, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal records: %w", err)
		}
		cmd.Println(string(data))
		return nil
	}

	if len(records) == 0 {
		cmd.Println("No records found.")
		return nil
	}
	st := stylesFor(cmd.OutOrStdout())
	for i := range records {
		r := &records[i]
		cmd.Println(st.Title.Render(r.ID))
		if source := r.Metadata[domain.MetaSource]; source != "" {
			cmd.Printf("      %s\n", st.Subtitle.Render(source))
		}
		if len(r.Embedding) > 0 {
			cmd.Printf("      %s\n", st.Muted.Render(fmt.Sprintf("%d dims", len(r.Embedding))))
		}
		if r.Document != "" {
			cmd.Println(st.Snippet.Render(snippet(r.Document, 200)))
		}
		cmd.Println()
	}
	return nil
}
