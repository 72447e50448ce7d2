// Package gcs provides a document source over Google Cloud Storage buckets.
//
// Credentials come from Application Default Credentials unless a token
// source or HTTP client is supplied. An endpoint override points the
// source at an emulator such as fake-gcs-server.
package gcs

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	storage "google.golang.org/api/storage/v1"

	"github.com/custodia-labs/ragops/internal/connectors/ratelimit"
	"github.com/custodia-labs/ragops/internal/core/domain"
	"github.com/custodia-labs/ragops/internal/core/ports/driven"
	"github.com/custodia-labs/ragops/internal/logger"
)

// Verify interface compliance.
var _ driven.DocumentSource = (*Source)(nil)

// listFields limits list responses to what the source reads.
const listFields = "nextPageToken,items(name,contentType,size,updated,generation,md5Hash)"

// Config configures the GCS source.
type Config struct {
	// ProjectID is recorded in document metadata. Listing a bucket does
	// not require it.
	ProjectID string

	// Endpoint overrides the JSON API base path, e.g.
	// http://localhost:4443/storage/v1/. Authentication is disabled for
	// endpoint overrides unless TokenSource is set.
	Endpoint string

	// TokenSource supplies OAuth2 tokens. Defaults to ADC.
	TokenSource oauth2.TokenSource

	// HTTPClient replaces the transport entirely (tests).
	HTTPClient *http.Client

	// Limiter throttles API calls. Defaults to ratelimit.New(ServiceGCS).
	Limiter *ratelimit.Limiter
}

// Source lists and downloads objects through the storage JSON API.
type Source struct {
	svc       *storage.Service
	projectID string
	limiter   *ratelimit.Limiter
}

// New creates a GCS source.
func New(ctx context.Context, cfg Config) (*Source, error) {
	opts, err := clientOptions(ctx, cfg)
	if err != nil {
		return nil, err
	}

	svc, err := storage.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: create storage client: %v", domain.ErrInvalidConfiguration, err)
	}

	limiter := cfg.Limiter
	if limiter == nil {
		limiter = ratelimit.New(ratelimit.ServiceGCS)
	}

	return &Source{svc: svc, projectID: cfg.ProjectID, limiter: limiter}, nil
}

func clientOptions(ctx context.Context, cfg Config) ([]option.ClientOption, error) {
	var opts []option.ClientOption
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(cfg.Endpoint))
	}

	switch {
	case cfg.HTTPClient != nil:
		opts = append(opts, option.WithHTTPClient(cfg.HTTPClient))
	case cfg.TokenSource != nil:
		opts = append(opts, option.WithTokenSource(cfg.TokenSource))
	case cfg.Endpoint != "":
		opts = append(opts, option.WithoutAuthentication())
	default:
		ts, err := google.DefaultTokenSource(ctx, storage.DevstorageReadOnlyScope)
		if err != nil {
			return nil, fmt.Errorf("%w: google application default credentials: %v", domain.ErrInvalidConfiguration, err)
		}
		opts = append(opts, option.WithTokenSource(ts))
	}
	return opts, nil
}

// Scheme returns "gs".
func (s *Source) Scheme() string {
	return domain.SchemeGCS
}

// List returns every object under loc.Prefix whose name matches the
// extension filter, content included. Folder placeholders are skipped.
func (s *Source) List(ctx context.Context, loc domain.SourceLocation) ([]domain.RawDocument, error) {
	objects, err := s.listObjects(ctx, loc)
	if err != nil {
		return nil, err
	}
	logger.Debug("gcs: %d matching objects in gs://%s/%s", len(objects), loc.Bucket, loc.Prefix)

	docs := make([]domain.RawDocument, 0, len(objects))
	for _, obj := range objects {
		content, err := s.download(ctx, loc.Bucket, obj.Name)
		if err != nil {
			return nil, err
		}
		docs = append(docs, s.toRawDocument(loc, obj, content))
	}
	return docs, nil
}

func (s *Source) listObjects(ctx context.Context, loc domain.SourceLocation) ([]*storage.Object, error) {
	call := s.svc.Objects.List(loc.Bucket).Fields(listFields)
	if loc.Prefix != "" {
		call = call.Prefix(loc.Prefix)
	}

	var out []*storage.Object
	for {
		if err := s.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		page, err := call.Context(ctx).Do()
		if err != nil {
			s.noteThrottle(err)
			return nil, wrapError("gcs list gs://"+loc.Bucket, err)
		}
		for _, obj := range page.Items {
			if strings.HasSuffix(obj.Name, "/") || !loc.MatchesExtension(obj.Name) {
				continue
			}
			out = append(out, obj)
		}
		if page.NextPageToken == "" {
			return out, nil
		}
		call = call.PageToken(page.NextPageToken)
	}
}

func (s *Source) download(ctx context.Context, bucket, name string) ([]byte, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	op := "gcs download gs://" + bucket + "/" + name
	resp, err := s.svc.Objects.Get(bucket, name).Context(ctx).Download()
	if err != nil {
		s.noteThrottle(err)
		return nil, wrapError(op, err)
	}
	defer resp.Body.Close()

	content, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, wrapError(op, err)
	}
	return content, nil
}

func (s *Source) noteThrottle(err error) {
	if IsRateLimited(err) {
		s.limiter.Backoff(retryAfter(err))
	}
}

func (s *Source) toRawDocument(loc domain.SourceLocation, obj *storage.Object, content []byte) domain.RawDocument {
	meta := map[string]string{
		"bucket":     loc.Bucket,
		"generation": strconv.FormatInt(obj.Generation, 10),
		"size":       strconv.FormatUint(obj.Size, 10),
	}
	if obj.Md5Hash != "" {
		meta["md5"] = obj.Md5Hash
	}
	if s.projectID != "" {
		meta["project_id"] = s.projectID
	}

	var modified time.Time
	if obj.Updated != "" {
		if t, err := time.Parse(time.RFC3339, obj.Updated); err == nil {
			modified = t
		}
	}

	return domain.RawDocument{
		URI:        loc.ObjectURI(obj.Name),
		Name:       obj.Name,
		MIMEType:   obj.ContentType,
		Content:    content,
		Metadata:   meta,
		ModifiedAt: modified,
	}
}

// Close releases resources. The storage client holds none.
func (s *Source) Close() error {
	return nil
}
