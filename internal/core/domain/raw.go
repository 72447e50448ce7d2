package domain

import (
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
	"time"
)

// Source URI schemes.
const (
	SchemeGCS  = "gs"
	SchemeS3   = "s3"
	SchemeFile = "file"
)

// RawDocument represents opaque bytes fetched by a document source.
// It is the source's output before normalisation.
type RawDocument struct {
	// URI is the provenance string (gs://bucket/name, s3://bucket/key, file:///path).
	URI string

	// Name is the object name within its bucket or root.
	Name string

	// MIMEType is the content type when the source reports one.
	MIMEType string

	// Content is the raw bytes.
	Content []byte

	// Metadata contains source-specific key-value pairs.
	Metadata map[string]string

	// ModifiedAt is the last modification time reported by the source.
	ModifiedAt time.Time
}

// ChangeType represents the type of document change.
type ChangeType int

const (
	// ChangeUpserted indicates a created or modified document.
	ChangeUpserted ChangeType = iota

	// ChangeDeleted indicates a removed document.
	ChangeDeleted
)

// RawDocumentChange represents a change event from a watching source.
type RawDocumentChange struct {
	// Type is the kind of change.
	Type ChangeType

	// Document is the affected document. Content is empty for deletions.
	Document RawDocument
}

// SourceLocation addresses a set of objects in a document source.
type SourceLocation struct {
	// Scheme selects the source implementation (gs, s3, file).
	Scheme string

	// Bucket is the bucket name, or the root directory for file sources.
	Bucket string

	// Prefix restricts listing to names starting with it.
	Prefix string

	// Extensions filters names by suffix, case-insensitively.
	// Empty means every object.
	Extensions []string
}

// ParseSourceURI parses gs://bucket/prefix, s3://bucket/prefix or a
// file path (with or without file://) into a SourceLocation.
func ParseSourceURI(raw string, extensions []string) (SourceLocation, error) {
	if raw == "" {
		return SourceLocation{}, fmt.Errorf("%w: empty source uri", ErrInvalidInput)
	}
	if !strings.Contains(raw, "://") {
		abs, err := filepath.Abs(raw)
		if err != nil {
			return SourceLocation{}, fmt.Errorf("resolve path: %w", err)
		}
		return SourceLocation{Scheme: SchemeFile, Bucket: abs, Extensions: extensions}, nil
	}

	u, err := url.Parse(raw)
	if err != nil {
		return SourceLocation{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	switch u.Scheme {
	case SchemeGCS, SchemeS3:
		if u.Host == "" {
			return SourceLocation{}, fmt.Errorf("%w: missing bucket in %s", ErrInvalidInput, raw)
		}
		return SourceLocation{
			Scheme:     u.Scheme,
			Bucket:     u.Host,
			Prefix:     strings.TrimPrefix(u.Path, "/"),
			Extensions: extensions,
		}, nil
	case SchemeFile:
		return SourceLocation{Scheme: SchemeFile, Bucket: u.Path, Extensions: extensions}, nil
	default:
		return SourceLocation{}, fmt.Errorf("%w: %s", ErrUnsupportedSource, u.Scheme)
	}
}

// String renders the location back to URI form.
func (l SourceLocation) String() string {
	if l.Scheme == SchemeFile {
		return "file://" + l.Bucket
	}
	return l.Scheme + "://" + l.Bucket + "/" + l.Prefix
}

// ObjectURI returns the provenance URI of a named object in this location.
func (l SourceLocation) ObjectURI(name string) string {
	if l.Scheme == SchemeFile {
		return "file://" + filepath.Join(l.Bucket, name)
	}
	return l.Scheme + "://" + l.Bucket + "/" + name
}

// MatchesExtension reports whether name ends with one of the configured
// extensions, ignoring case.
func (l SourceLocation) MatchesExtension(name string) bool {
	if len(l.Extensions) == 0 {
		return true
	}
	lower := strings.ToLower(name)
	for _, ext := range l.Extensions {
		if ext != "" && strings.HasSuffix(lower, strings.ToLower(ext)) {
			return true
		}
	}
	return false
}
