package connectors

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/ragops/internal/connectors/filesystem"
	"github.com/custodia-labs/ragops/internal/core/domain"
)

type stubSource struct {
	scheme   string
	closeErr error
	closed   int
}

func (s *stubSource) Scheme() string { return s.scheme }

func (s *stubSource) List(context.Context, domain.SourceLocation) ([]domain.RawDocument, error) {
	return nil, nil
}

func (s *stubSource) Close() error {
	s.closed++
	return s.closeErr
}

func TestFactory_Source_File(t *testing.T) {
	f := NewFactory(Config{})

	src, err := f.Source(context.Background(), domain.SchemeFile)
	require.NoError(t, err)
	assert.IsType(t, &filesystem.Source{}, src)

	again, err := f.Source(context.Background(), domain.SchemeFile)
	require.NoError(t, err)
	assert.Same(t, src, again)
}

func TestFactory_Source_Unsupported(t *testing.T) {
	f := NewFactory(Config{})

	_, err := f.Source(context.Background(), "ftp")
	assert.ErrorIs(t, err, domain.ErrUnsupportedSource)
}

func TestFactory_Register(t *testing.T) {
	f := NewFactory(Config{})
	stub := &stubSource{scheme: domain.SchemeGCS}
	f.Register(stub)

	src, err := f.Source(context.Background(), domain.SchemeGCS)
	require.NoError(t, err)
	assert.Same(t, stub, src)
}

func TestFactory_Close(t *testing.T) {
	f := NewFactory(Config{})
	ok := &stubSource{scheme: "gs"}
	bad := &stubSource{scheme: "s3", closeErr: errors.New("boom")}
	f.Register(ok)
	f.Register(bad)

	err := f.Close()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "close s3 source: boom")
	assert.Equal(t, 1, ok.closed)
	assert.Equal(t, 1, bad.closed)

	// The cache is emptied so a second close is a no-op.
	assert.NoError(t, f.Close())
}

func TestConfigFromSettings(t *testing.T) {
	cfg := ConfigFromSettings(domain.SourceSettings{
		ProjectID: "proj",
		Region:    "eu-west-1",
		Endpoint:  "http://localhost:9000",
	})
	assert.Equal(t, "proj", cfg.GCS.ProjectID)
	assert.Equal(t, "http://localhost:9000", cfg.GCS.Endpoint)
	assert.Equal(t, "eu-west-1", cfg.S3.Region)
	assert.Equal(t, "http://localhost:9000", cfg.S3.Endpoint)
}
