package connectors

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/custodia-labs/ragops/internal/connectors/filesystem"
	"github.com/custodia-labs/ragops/internal/connectors/gcs"
	"github.com/custodia-labs/ragops/internal/connectors/s3"
	"github.com/custodia-labs/ragops/internal/core/domain"
	"github.com/custodia-labs/ragops/internal/core/ports/driven"
)

// Verify interface compliance.
var _ driven.SourceFactory = (*Factory)(nil)

// Config holds per-scheme source configuration.
type Config struct {
	GCS        gcs.Config
	S3         s3.Config
	Filesystem []filesystem.Option
}

// ConfigFromSettings maps source settings onto per-scheme configuration.
// The endpoint override applies to whichever cloud scheme is used.
func ConfigFromSettings(settings domain.SourceSettings) Config {
	return Config{
		GCS: gcs.Config{
			ProjectID: settings.ProjectID,
			Endpoint:  settings.Endpoint,
		},
		S3: s3.Config{
			Region:   settings.Region,
			Endpoint: settings.Endpoint,
		},
	}
}

// Factory creates and caches one DocumentSource per scheme.
type Factory struct {
	cfg Config

	mu      sync.Mutex
	sources map[string]driven.DocumentSource
}

// NewFactory creates a source factory.
func NewFactory(cfg Config) *Factory {
	return &Factory{cfg: cfg, sources: make(map[string]driven.DocumentSource)}
}

// Register installs a prebuilt source for its scheme, replacing any
// cached one.
func (f *Factory) Register(src driven.DocumentSource) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sources[src.Scheme()] = src
}

// Source returns the source for scheme, creating it on first use.
func (f *Factory) Source(ctx context.Context, scheme string) (driven.DocumentSource, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if src, ok := f.sources[scheme]; ok {
		return src, nil
	}

	var (
		src driven.DocumentSource
		err error
	)
	switch scheme {
	case domain.SchemeFile:
		src = filesystem.New(f.cfg.Filesystem...)
	case domain.SchemeGCS:
		src, err = gcs.New(ctx, f.cfg.GCS)
	case domain.SchemeS3:
		src, err = s3.New(ctx, f.cfg.S3)
	default:
		return nil, fmt.Errorf("%w: %q", domain.ErrUnsupportedSource, scheme)
	}
	if err != nil {
		return nil, fmt.Errorf("create %s source: %w", scheme, err)
	}

	f.sources[scheme] = src
	return src, nil
}

// Close closes every source created so far.
func (f *Factory) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	var errs []error
	for scheme, src := range f.sources {
		if err := src.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s source: %w", scheme, err))
		}
	}
	clear(f.sources)
	return errors.Join(errs...)
}
