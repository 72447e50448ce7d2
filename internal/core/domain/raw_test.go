package domain

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestRawDocument_Fields tests RawDocument structure fields
func TestRawDocument_Fields(t *testing.T) {
	raw := RawDocument{
		URI:      "gs://bucket/docs/a.md",
		Name:     "docs/a.md",
		MIMEType: "text/markdown",
		Content:  []byte("# Title"),
		Metadata: map[string]string{"generation": "1"},
	}

	assert.Equal(t, "gs://bucket/docs/a.md", raw.URI)
	assert.Equal(t, "docs/a.md", raw.Name)
	assert.Equal(t, []byte("# Title"), raw.Content)
	assert.Equal(t, "1", raw.Metadata["generation"])
}

func TestParseSourceURI(t *testing.T) {
	t.Run("gcs bucket and prefix", func(t *testing.T) {
		loc, err := ParseSourceURI("gs://my-bucket/legal/2024", []string{".md"})

		require.NoError(t, err)
		assert.Equal(t, SchemeGCS, loc.Scheme)
		assert.Equal(t, "my-bucket", loc.Bucket)
		assert.Equal(t, "legal/2024", loc.Prefix)
		assert.Equal(t, []string{".md"}, loc.Extensions)
	})

	t.Run("s3 without prefix", func(t *testing.T) {
		loc, err := ParseSourceURI("s3://docs", nil)

		require.NoError(t, err)
		assert.Equal(t, SchemeS3, loc.Scheme)
		assert.Equal(t, "docs", loc.Bucket)
		assert.Empty(t, loc.Prefix)
	})

	t.Run("bare path becomes file source", func(t *testing.T) {
		dir := t.TempDir()

		loc, err := ParseSourceURI(dir, nil)

		require.NoError(t, err)
		assert.Equal(t, SchemeFile, loc.Scheme)
		assert.Equal(t, dir, loc.Bucket)
	})

	t.Run("file uri", func(t *testing.T) {
		loc, err := ParseSourceURI("file:///var/docs", nil)

		require.NoError(t, err)
		assert.Equal(t, SchemeFile, loc.Scheme)
		assert.Equal(t, "/var/docs", loc.Bucket)
	})

	t.Run("unknown scheme", func(t *testing.T) {
		_, err := ParseSourceURI("ftp://host/x", nil)
		assert.True(t, errors.Is(err, ErrUnsupportedSource))
	})

	t.Run("missing bucket", func(t *testing.T) {
		_, err := ParseSourceURI("gs:///x", nil)
		assert.True(t, errors.Is(err, ErrInvalidInput))
	})

	t.Run("empty", func(t *testing.T) {
		_, err := ParseSourceURI("", nil)
		assert.True(t, errors.Is(err, ErrInvalidInput))
	})
}

func TestSourceLocation_ObjectURI(t *testing.T) {
	gcs := SourceLocation{Scheme: SchemeGCS, Bucket: "b"}
	assert.Equal(t, "gs://b/docs/a.md", gcs.ObjectURI("docs/a.md"))

	fs := SourceLocation{Scheme: SchemeFile, Bucket: "/root"}
	assert.Equal(t, "file://"+filepath.Join("/root", "a.md"), fs.ObjectURI("a.md"))
}

func TestSourceLocation_MatchesExtension(t *testing.T) {
	loc := SourceLocation{Extensions: []string{".md", ".TXT"}}

	assert.True(t, loc.MatchesExtension("notes/README.MD"))
	assert.True(t, loc.MatchesExtension("a.txt"))
	assert.False(t, loc.MatchesExtension("a.pdf"))
	assert.False(t, loc.MatchesExtension("md"))

	assert.True(t, SourceLocation{}.MatchesExtension("anything.bin"))
}
