// Package s3 provides a document source over Amazon S3 and S3-compatible
// object stores (MinIO, LocalStack).
package s3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"

	"github.com/custodia-labs/ragops/internal/connectors/ratelimit"
	"github.com/custodia-labs/ragops/internal/core/domain"
	"github.com/custodia-labs/ragops/internal/core/ports/driven"
	"github.com/custodia-labs/ragops/internal/logger"
)

// Verify interface compliance.
var _ driven.DocumentSource = (*Source)(nil)

// DefaultRegion is used when neither config nor environment name one.
const DefaultRegion = "us-east-1"

// API is the subset of the S3 client the source calls.
type API interface {
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// Config configures the S3 source.
type Config struct {
	// Region is the bucket region. Falls back to the SDK's default chain,
	// then DefaultRegion.
	Region string

	// Endpoint overrides the service endpoint and enables path-style
	// addressing.
	Endpoint string

	// AccessKeyID and SecretAccessKey select static credentials. Empty
	// means the SDK's default credential chain.
	AccessKeyID     string
	SecretAccessKey string

	// Client replaces the SDK client (tests).
	Client API

	// Limiter throttles API calls. Defaults to ratelimit.New(ServiceS3).
	Limiter *ratelimit.Limiter
}

// Source lists and downloads objects from S3.
type Source struct {
	client  API
	limiter *ratelimit.Limiter
}

// New creates an S3 source.
func New(ctx context.Context, cfg Config) (*Source, error) {
	client := cfg.Client
	if client == nil {
		c, err := newClient(ctx, cfg)
		if err != nil {
			return nil, err
		}
		client = c
	}

	limiter := cfg.Limiter
	if limiter == nil {
		limiter = ratelimit.New(ratelimit.ServiceS3)
	}

	return &Source{client: client, limiter: limiter}, nil
}

func newClient(ctx context.Context, cfg Config) (*s3.Client, error) {
	var loadOpts []func(*config.LoadOptions) error
	if cfg.Region != "" {
		loadOpts = append(loadOpts, config.WithRegion(cfg.Region))
	}
	if cfg.AccessKeyID != "" || cfg.SecretAccessKey != "" {
		if cfg.AccessKeyID == "" || cfg.SecretAccessKey == "" {
			return nil, fmt.Errorf("%w: both access key id and secret are required", domain.ErrInvalidConfiguration)
		}
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("%w: load aws config: %v", domain.ErrInvalidConfiguration, err)
	}
	if awsCfg.Region == "" {
		awsCfg.Region = DefaultRegion
	}

	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	}), nil
}

// Scheme returns "s3".
func (s *Source) Scheme() string {
	return domain.SchemeS3
}

// List returns every object under loc.Prefix whose key matches the
// extension filter, content included. Folder markers are skipped.
func (s *Source) List(ctx context.Context, loc domain.SourceLocation) ([]domain.RawDocument, error) {
	input := &s3.ListObjectsV2Input{Bucket: aws.String(loc.Bucket)}
	if loc.Prefix != "" {
		input.Prefix = aws.String(loc.Prefix)
	}

	var docs []domain.RawDocument
	paginator := s3.NewListObjectsV2Paginator(s.client, input)
	for paginator.HasMorePages() {
		if err := s.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		page, err := paginator.NextPage(ctx)
		if err != nil {
			s.noteThrottle(err)
			return nil, wrapError("s3 list s3://"+loc.Bucket, err)
		}

		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			if key == "" || strings.HasSuffix(key, "/") || !loc.MatchesExtension(key) {
				continue
			}
			doc, err := s.fetch(ctx, loc, key)
			if err != nil {
				return nil, err
			}
			if obj.Size != nil {
				doc.Metadata["size"] = fmt.Sprintf("%d", *obj.Size)
			}
			docs = append(docs, *doc)
		}
	}

	logger.Debug("s3: %d matching objects in s3://%s/%s", len(docs), loc.Bucket, loc.Prefix)
	return docs, nil
}

func (s *Source) fetch(ctx context.Context, loc domain.SourceLocation, key string) (*domain.RawDocument, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	op := "s3 get s3://" + loc.Bucket + "/" + key
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(loc.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		s.noteThrottle(err)
		return nil, wrapError(op, err)
	}
	defer out.Body.Close()

	content, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, wrapError(op, err)
	}

	doc := &domain.RawDocument{
		URI:      loc.ObjectURI(key),
		Name:     key,
		MIMEType: aws.ToString(out.ContentType),
		Content:  content,
		Metadata: map[string]string{"bucket": loc.Bucket},
	}
	if out.ETag != nil {
		doc.Metadata["etag"] = strings.Trim(*out.ETag, `"`)
	}
	if out.LastModified != nil {
		doc.ModifiedAt = *out.LastModified
	}
	return doc, nil
}

func (s *Source) noteThrottle(err error) {
	if isThrottled(err) {
		s.limiter.Backoff(0)
	}
}

// Close releases resources. The SDK client holds none.
func (s *Source) Close() error {
	return nil
}

// notFoundCodes are S3 error codes reported as ErrNotFound.
var notFoundCodes = map[string]bool{
	"NoSuchBucket": true,
	"NoSuchKey":    true,
	"NotFound":     true,
}

func isThrottled(err error) bool {
	var ae smithy.APIError
	if errors.As(err, &ae) {
		switch ae.ErrorCode() {
		case "SlowDown", "Throttling", "ThrottlingException", "RequestLimitExceeded":
			return true
		}
	}
	return statusCode(err) == http.StatusTooManyRequests || statusCode(err) == http.StatusServiceUnavailable
}

func statusCode(err error) int {
	var re *awshttp.ResponseError
	if errors.As(err, &re) {
		return re.HTTPStatusCode()
	}
	return 0
}

// wrapError converts an SDK failure into a domain.TransportError. API
// errors keep their code and message as the body; a not-found code is
// reported as status 404 even when the response carried none.
func wrapError(op string, err error) error {
	if err == nil {
		return nil
	}

	var ae smithy.APIError
	if !errors.As(err, &ae) {
		return &domain.TransportError{Op: op, Err: err}
	}

	code := statusCode(err)
	if notFoundCodes[ae.ErrorCode()] {
		code = http.StatusNotFound
	}
	body := ae.ErrorCode()
	if msg := ae.ErrorMessage(); msg != "" {
		body += ": " + msg
	}
	if code == 0 {
		return &domain.TransportError{Op: op, Err: err}
	}
	return &domain.TransportError{Op: op, StatusCode: code, Body: body}
}
