package postprocessors

import (
	"fmt"

	"github.com/custodia-labs/ragops/internal/core/domain"
	"github.com/custodia-labs/ragops/internal/core/ports/driven"
	"github.com/custodia-labs/ragops/internal/postprocessors/chunker"
)

// RegisterDefaults registers all built-in processors with the registry.
// Call this during application initialisation to enable standard processors.
func RegisterDefaults(r *Registry) {
	r.Register("chunker", buildChunker)
}

// buildChunker creates a chunker processor from generic config.
// Supported config keys:
//   - chunk_size (int): Characters per chunk (default: 500)
//   - overlap (int): Maximum overlapping characters between chunks (default: 50)
//   - separators ([]string): Separator hierarchy, coarsest first
//   - format (string): "markdown" (default) or "text" separator preset
//
// Out-of-range values are rejected rather than clamped.
func buildChunker(cfg map[string]any) (driven.PostProcessor, error) {
	var opts []chunker.Option

	if cfg != nil {
		if size, ok := getIntFromConfig(cfg, "chunk_size"); ok {
			opts = append(opts, chunker.WithChunkSize(size))
		}
		if overlap, ok := getIntFromConfig(cfg, "overlap"); ok {
			opts = append(opts, chunker.WithOverlap(overlap))
		}
		if format, ok := cfg["format"].(string); ok && format == "text" {
			opts = append(opts, chunker.WithSeparators(chunker.TextSeparators))
		}
		if seps := getStringsFromConfig(cfg, "separators"); len(seps) > 0 {
			opts = append(opts, chunker.WithSeparators(seps))
		}
	}

	p, err := chunker.New(opts...)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// getIntFromConfig safely extracts an int from generic config map.
// Handles int, int64, and float64 types that may come from TOML/JSON parsing.
func getIntFromConfig(cfg map[string]any, key string) (int, bool) {
	val, ok := cfg[key]
	if !ok {
		return 0, false
	}

	switch v := val.(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	default:
		return 0, false
	}
}

// getStringsFromConfig extracts a string slice, accepting []any from TOML.
func getStringsFromConfig(cfg map[string]any, key string) []string {
	switch v := cfg[key].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

// NewPipelineFromConfig builds a pipeline from the configured processor
// names in order.
func NewPipelineFromConfig(r *Registry, cfg domain.PipelineConfig) (*Pipeline, error) {
	p := NewPipeline()
	p.SetIDStrategy(cfg.IDStrategy)
	for _, name := range cfg.Processors {
		proc, err := r.Build(name, cfg.GetProcessorConfig(name))
		if err != nil {
			return nil, fmt.Errorf("build processor %s: %w", name, err)
		}
		p.Add(proc)
	}
	return p, nil
}
