// Package connectors provides the document sources the pipeline loads
// from, one per URI scheme:
//
//   - gs://bucket/prefix via package gcs
//   - s3://bucket/prefix via package s3
//   - local paths and file:// URIs via package filesystem
//
// Factory implements driven.SourceFactory and builds each source lazily,
// so cloud credentials are only resolved when a run touches that scheme.
package connectors
