package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/ragops/internal/core/domain"
)

var (
	retrieveK     int
	retrieveWhere []string
	retrieveJSON  bool
)

var retrieveCmd = &cobra.Command{
	Use:   "retrieve [query]",
	Short: "Find the chunks most similar to a query",
	Long: `Embeds the query and returns the nearest stored chunks, closest first.

Examples:
  ragops retrieve "termination clause" -k 3
  ragops retrieve "payment terms" --where source=gs://contracts/a.md`,
	Args: cobra.ExactArgs(1),
	RunE: runRetrieve,
}

func init() {
	retrieveCmd.Flags().IntVarP(&retrieveK, "top-k", "k", 5, "number of matches")
	retrieveCmd.Flags().StringArrayVar(&retrieveWhere, "where", nil, "metadata filter as key=value (repeatable)")
	retrieveCmd.Flags().BoolVar(&retrieveJSON, "json", false, "output matches as JSON")
	rootCmd.AddCommand(retrieveCmd)
}

func runRetrieve(cmd *cobra.Command, args []string) error {
	filter, err := parseWhere(retrieveWhere)
	if err != nil {
		return err
	}
	if err := ensureServices(); err != nil {
		return err
	}
	if pipelineService == nil {
		return errors.New("pipeline service not configured")
	}

	matches, err := pipelineService.Retrieve(cmd.Context(), domain.RetrieveRequest{
		Text:   args[0],
		K:      retrieveK,
		Filter: filter,
	})
	if err != nil {
		return fmt.Errorf("retrieve failed: %w", err)
	}

	if retrieveJSON {
		return outputMatchesJSON(cmd, matches)
	}
	outputMatches(cmd, matches)
	return nil
}

func outputMatches(cmd *cobra.Command, matches []domain.QueryMatch) {
	if len(matches) == 0 {
		cmd.Println("No matches found.")
		return
	}

	st := stylesFor(cmd.OutOrStdout())
	for i := range matches {
		m := &matches[i]
		title := m.Metadata[domain.MetaTitle]
		if title == "" {
			title = m.ID
		}
		// Format: [N] Title (distance)
		cmd.Printf("  %s %s %s\n",
			st.Muted.Render(fmt.Sprintf("[%d]", i+1)),
			st.Title.Render(title),
			st.Muted.Render(fmt.Sprintf("(%.4f)", m.Distance)))
		if source := m.Metadata[domain.MetaSource]; source != "" {
			cmd.Printf("      %s\n", st.Subtitle.Render(source))
		}
		if m.Document != "" {
			cmd.Println(st.Snippet.Render(snippet(m.Document, 200)))
		}
		cmd.Println()
	}
}

type matchJSON struct {
	ID       string            `json:"id"`
	Distance float64           `json:"distance"`
	Document string            `json:"document"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

func outputMatchesJSON(cmd *cobra.Command, matches []domain.QueryMatch) error {
	out := make([]matchJSON, len(matches))
	for i, m := range matches {
		out[i] = matchJSON{ID: m.ID, Distance: m.Distance, Document: m.Document, Metadata: m.Metadata}
	}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal matches: %w", err)
	}
	cmd.Println(string(data))
	return nil
}

// parseWhere turns key=value pairs into a metadata filter.
func parseWhere(pairs []string) (domain.Filter, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	filter := make(domain.Filter, len(pairs))
	for _, p := range pairs {
		key, value, ok := strings.Cut(p, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("%w: --where expects key=value, got %q", domain.ErrInvalidInput, p)
		}
		filter[key] = value
	}
	return filter, nil
}
