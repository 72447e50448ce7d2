package postprocessors

import (
	"fmt"
	"strconv"

	"github.com/google/uuid"

	"github.com/custodia-labs/ragops/internal/core/domain"
)

// chunkNamespace scopes the name-based UUIDs derived for chunk ids.
var chunkNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://github.com/custodia-labs/ragops/chunk"))

// ChunkID derives the stable id of the chunk at index within source.
func ChunkID(source string, index int) string {
	return uuid.NewSHA1(chunkNamespace, []byte(source+"#"+strconv.Itoa(index))).String()
}

// ContentChunkID derives an id from the chunk's source and text, so any
// edit to the text yields a new id.
func ContentChunkID(source, content string) string {
	return uuid.NewSHA1(chunkNamespace, []byte(source+"\x00"+content)).String()
}

// AssignIDs sets the ID of every chunk in one ingestion run.
// Positional ids (doc_<i>) count across the whole run.
func AssignIDs(chunks []domain.Chunk, strategy domain.IDStrategy) error {
	for i := range chunks {
		c := &chunks[i]
		switch strategy {
		case domain.IDStrategySource, "":
			c.ID = ChunkID(c.Source, c.Index)
		case domain.IDStrategyContent:
			c.ID = ContentChunkID(c.Source, c.Content)
		case domain.IDStrategyPositional:
			c.ID = "doc_" + strconv.Itoa(i)
		default:
			return fmt.Errorf("%w: unknown id strategy %q", domain.ErrInvalidConfiguration, strategy)
		}
	}
	return nil
}
