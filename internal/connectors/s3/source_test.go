package s3

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/ragops/internal/connectors/ratelimit"
	"github.com/custodia-labs/ragops/internal/core/domain"
)

// mockAPI serves listings in pages of pageSize and object bodies by key.
type mockAPI struct {
	keys     []string
	objects  map[string]string
	pageSize int
	listErr  error
	getErr   error

	listCalls []string
}

func (m *mockAPI) ListObjectsV2(_ context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	m.listCalls = append(m.listCalls, aws.ToString(in.Prefix))
	if m.listErr != nil {
		return nil, m.listErr
	}

	start := 0
	if in.ContinuationToken != nil {
		for i, k := range m.keys {
			if k == *in.ContinuationToken {
				start = i
			}
		}
	}
	end := len(m.keys)
	if m.pageSize > 0 && start+m.pageSize < end {
		end = start + m.pageSize
	}

	out := &s3.ListObjectsV2Output{IsTruncated: aws.Bool(end < len(m.keys))}
	for _, k := range m.keys[start:end] {
		if in.Prefix != nil && !strings.HasPrefix(k, *in.Prefix) {
			continue
		}
		out.Contents = append(out.Contents, types.Object{Key: aws.String(k), Size: aws.Int64(int64(len(m.objects[k])))})
	}
	if end < len(m.keys) {
		out.NextContinuationToken = aws.String(m.keys[end])
	}
	return out, nil
}

func (m *mockAPI) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	body, ok := m.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &smithy.GenericAPIError{Code: "NoSuchKey", Message: "The specified key does not exist."}
	}
	modified := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	return &s3.GetObjectOutput{
		Body:         io.NopCloser(strings.NewReader(body)),
		ContentType:  aws.String("text/markdown"),
		ETag:         aws.String(`"abc123"`),
		LastModified: &modified,
	}, nil
}

func newTestSource(t *testing.T, api API) *Source {
	t.Helper()
	s, err := New(context.Background(), Config{
		Client:  api,
		Limiter: ratelimit.NewWithConfig(ratelimit.Config{}),
	})
	require.NoError(t, err)
	return s
}

func TestNew_WithEndpointAndStaticCredentials(t *testing.T) {
	s, err := New(context.Background(), Config{
		Region:          "eu-west-1",
		Endpoint:        "http://localhost:9000",
		AccessKeyID:     "minio",
		SecretAccessKey: "minio123",
	})
	require.NoError(t, err)
	assert.Equal(t, "s3", s.Scheme())
	assert.NoError(t, s.Close())
}

func TestNew_PartialCredentials(t *testing.T) {
	_, err := New(context.Background(), Config{Region: "eu-west-1", AccessKeyID: "only-id"})
	assert.ErrorIs(t, err, domain.ErrInvalidConfiguration)
}

func TestSource_List(t *testing.T) {
	api := &mockAPI{
		keys: []string{"docs/", "docs/a.md", "docs/b.txt", "docs/c.Md", "other/d.md"},
		objects: map[string]string{
			"docs/a.md":  "# A",
			"docs/b.txt": "b",
			"docs/c.Md":  "# C",
			"other/d.md": "# D",
		},
		pageSize: 2,
	}
	s := newTestSource(t, api)

	loc := domain.SourceLocation{Scheme: "s3", Bucket: "bkt", Prefix: "docs/", Extensions: []string{".md"}}
	docs, err := s.List(context.Background(), loc)
	require.NoError(t, err)
	require.Len(t, docs, 2)

	assert.Equal(t, "s3://bkt/docs/a.md", docs[0].URI)
	assert.Equal(t, "docs/a.md", docs[0].Name)
	assert.Equal(t, "# A", string(docs[0].Content))
	assert.Equal(t, "text/markdown", docs[0].MIMEType)
	assert.Equal(t, "abc123", docs[0].Metadata["etag"])
	assert.Equal(t, "3", docs[0].Metadata["size"])
	assert.Equal(t, 2024, docs[0].ModifiedAt.Year())
	assert.Equal(t, "s3://bkt/docs/c.Md", docs[1].URI)

	assert.Greater(t, len(api.listCalls), 1, "listing should paginate")
}

func TestSource_List_Empty(t *testing.T) {
	s := newTestSource(t, &mockAPI{})
	docs, err := s.List(context.Background(), domain.SourceLocation{Scheme: "s3", Bucket: "bkt"})
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func TestSource_List_NoSuchBucket(t *testing.T) {
	s := newTestSource(t, &mockAPI{listErr: &smithy.GenericAPIError{Code: "NoSuchBucket", Message: "gone"}})

	_, err := s.List(context.Background(), domain.SourceLocation{Scheme: "s3", Bucket: "bkt"})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrTransport)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.Contains(t, err.Error(), "NoSuchBucket: gone")
}

func TestSource_List_GetFails(t *testing.T) {
	cause := errors.New("connection reset")
	s := newTestSource(t, &mockAPI{
		keys:    []string{"a.md"},
		objects: map[string]string{"a.md": "a"},
		getErr:  cause,
	})

	_, err := s.List(context.Background(), domain.SourceLocation{Scheme: "s3", Bucket: "bkt"})
	assert.ErrorIs(t, err, domain.ErrTransport)
	assert.ErrorIs(t, err, cause)
}

func TestSource_List_SlowDownBacksOff(t *testing.T) {
	limiter := ratelimit.NewWithConfig(ratelimit.Config{})
	s, err := New(context.Background(), Config{
		Client:  &mockAPI{listErr: &smithy.GenericAPIError{Code: "SlowDown"}},
		Limiter: limiter,
	})
	require.NoError(t, err)

	_, err = s.List(context.Background(), domain.SourceLocation{Scheme: "s3", Bucket: "bkt"})
	require.Error(t, err)
	assert.False(t, limiter.Allow())
}

func TestWrapError(t *testing.T) {
	assert.NoError(t, wrapError("op", nil))

	err := wrapError("op", &smithy.GenericAPIError{Code: "NoSuchKey"})
	var te *domain.TransportError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, http.StatusNotFound, te.StatusCode)
	assert.Equal(t, "NoSuchKey", te.Body)

	err = wrapError("op", &smithy.GenericAPIError{Code: "AccessDenied"})
	assert.ErrorIs(t, err, domain.ErrTransport)
	assert.NotErrorIs(t, err, domain.ErrNotFound)
}
