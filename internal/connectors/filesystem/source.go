// Package filesystem provides a document source over a local directory tree.
package filesystem

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"mime"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/custodia-labs/ragops/internal/core/domain"
	"github.com/custodia-labs/ragops/internal/core/ports/driven"
	"github.com/custodia-labs/ragops/internal/logger"
)

// Verify interface compliance.
var (
	_ driven.DocumentSource = (*Source)(nil)
	_ driven.Watcher        = (*Source)(nil)
)

// DefaultDebounce is how long Watch waits for a burst of events on the
// same files to settle before reporting them.
const DefaultDebounce = 200 * time.Millisecond

// Source reads documents from a local directory. The location's Bucket is
// the root directory; object names are slash-separated paths relative to it.
type Source struct {
	debounce time.Duration

	mu       sync.Mutex
	closed   bool
	watchers []*fsnotify.Watcher
}

// Option configures a Source.
type Option func(*Source)

// WithDebounce sets the watch debounce interval.
func WithDebounce(d time.Duration) Option {
	return func(s *Source) {
		if d > 0 {
			s.debounce = d
		}
	}
}

// New creates a filesystem source.
func New(opts ...Option) *Source {
	s := &Source{debounce: DefaultDebounce}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Scheme returns "file".
func (s *Source) Scheme() string {
	return domain.SchemeFile
}

// List walks the root directory and returns every visible file that
// matches the location's prefix and extensions. A root that is a single
// file yields that file alone.
func (s *Source) List(ctx context.Context, loc domain.SourceLocation) ([]domain.RawDocument, error) {
	if s.isClosed() {
		return nil, errors.New("filesystem source is closed")
	}

	root := loc.Bucket
	info, err := os.Stat(root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: root path does not exist: %s", domain.ErrNotFound, root)
		}
		return nil, fmt.Errorf("root path error: %w", err)
	}

	if !info.IsDir() {
		if !loc.MatchesExtension(root) {
			return nil, nil
		}
		doc, err := readDocument(root, filepath.Base(root), "file://"+root)
		if err != nil {
			return nil, err
		}
		return []domain.RawDocument{*doc}, nil
	}

	var docs []domain.RawDocument
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if path == root {
			return nil
		}
		if isHidden(d.Name()) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}

		name, ok := s.relevantName(loc, path)
		if !ok {
			return nil
		}
		doc, err := readDocument(path, name, loc.ObjectURI(name))
		if err != nil {
			return err
		}
		docs = append(docs, *doc)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", root, err)
	}

	return docs, nil
}

// Watch reports created, modified and removed files under the root until
// ctx is cancelled. Events are debounced and re-read from disk, so a file
// that no longer exists is always reported as deleted.
func (s *Source) Watch(ctx context.Context, loc domain.SourceLocation) (<-chan domain.RawDocumentChange, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, errors.New("filesystem source is closed")
	}

	info, err := os.Stat(loc.Bucket)
	if err != nil {
		return nil, fmt.Errorf("root path error: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("root path error: %s is not a directory", loc.Bucket)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := addTree(watcher, loc.Bucket); err != nil {
		watcher.Close()
		return nil, err
	}
	s.watchers = append(s.watchers, watcher)

	out := make(chan domain.RawDocumentChange)
	go s.watchLoop(ctx, loc, watcher, out)
	return out, nil
}

func (s *Source) watchLoop(ctx context.Context, loc domain.SourceLocation, watcher *fsnotify.Watcher, out chan<- domain.RawDocumentChange) {
	defer close(out)
	defer watcher.Close()

	pending := make(map[string]struct{})
	timer := time.NewTimer(s.debounce)
	timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if event.Has(fsnotify.Create) && isVisibleDir(loc.Bucket, event.Name) {
				if err := addTree(watcher, event.Name); err != nil {
					logger.Warn("watch %s: %v", event.Name, err)
				}
				continue
			}
			if _, ok := s.relevantEvent(loc, event); ok {
				pending[event.Name] = struct{}{}
				timer.Reset(s.debounce)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			logger.Warn("filesystem watch error: %v", err)

		case <-timer.C:
			paths := make([]string, 0, len(pending))
			for p := range pending {
				paths = append(paths, p)
			}
			sort.Strings(paths)
			clear(pending)

			for _, p := range paths {
				change := s.changeFor(loc, p)
				if change == nil {
					continue
				}
				select {
				case out <- *change:
				case <-ctx.Done():
					return
				}
			}
		}
	}
}

// handleFsEvent converts a single fsnotify event into a change, or nil
// when the event is irrelevant (chmod only, directories, hidden files,
// names outside the filter).
func (s *Source) handleFsEvent(loc domain.SourceLocation, event fsnotify.Event) *domain.RawDocumentChange {
	if _, ok := s.relevantEvent(loc, event); !ok {
		return nil
	}
	return s.changeFor(loc, event.Name)
}

func (s *Source) relevantEvent(loc domain.SourceLocation, event fsnotify.Event) (string, bool) {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) &&
		!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
		return "", false
	}
	return s.relevantName(loc, event.Name)
}

// relevantName maps an absolute path to its object name when the path is
// visible and passes the location's filters.
func (s *Source) relevantName(loc domain.SourceLocation, path string) (string, bool) {
	rel, err := filepath.Rel(loc.Bucket, path)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return "", false
	}
	if isHidden(rel) {
		return "", false
	}
	name := filepath.ToSlash(rel)
	if loc.Prefix != "" && !strings.HasPrefix(name, loc.Prefix) {
		return "", false
	}
	if !loc.MatchesExtension(name) {
		return "", false
	}
	return name, true
}

// changeFor reads the current state of path. Missing files become
// deletions; directories are ignored.
func (s *Source) changeFor(loc domain.SourceLocation, path string) *domain.RawDocumentChange {
	name, ok := s.relevantName(loc, path)
	if !ok {
		return nil
	}
	uri := loc.ObjectURI(name)

	info, err := os.Stat(path)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Warn("stat %s: %v", path, err)
			return nil
		}
		return &domain.RawDocumentChange{
			Type:     domain.ChangeDeleted,
			Document: domain.RawDocument{URI: uri, Name: name},
		}
	}
	if info.IsDir() {
		return nil
	}

	doc, err := readDocument(path, name, uri)
	if err != nil {
		logger.Warn("read %s: %v", path, err)
		return nil
	}
	return &domain.RawDocumentChange{Type: domain.ChangeUpserted, Document: *doc}
}

// Close stops every active watch. It is safe to call more than once.
func (s *Source) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	var errs []error
	for _, w := range s.watchers {
		errs = append(errs, w.Close())
	}
	s.watchers = nil
	return errors.Join(errs...)
}

func (s *Source) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func readDocument(path, name, uri string) (*domain.RawDocument, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return &domain.RawDocument{
		URI:        uri,
		Name:       name,
		MIMEType:   detectMIMEType(path),
		Content:    content,
		ModifiedAt: info.ModTime(),
		Metadata: map[string]string{
			"path": path,
			"size": fmt.Sprintf("%d", info.Size()),
		},
	}, nil
}

// addTree watches dir and every visible directory below it.
func addTree(watcher *fsnotify.Watcher, dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != dir && isHidden(d.Name()) {
			return filepath.SkipDir
		}
		if err := watcher.Add(path); err != nil {
			return fmt.Errorf("watch %s: %w", path, err)
		}
		return nil
	})
}

func isVisibleDir(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil || isHidden(rel) {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// isHidden reports whether any element of path starts with a dot.
// "." and ".." are not hidden.
func isHidden(path string) bool {
	for _, part := range strings.Split(filepath.ToSlash(path), "/") {
		if part == "" || part == "." || part == ".." {
			continue
		}
		if strings.HasPrefix(part, ".") {
			return true
		}
	}
	return false
}

// mimeFallbacks covers extensions the system MIME table often lacks.
var mimeFallbacks = map[string]string{
	".md":       "text/markdown",
	".markdown": "text/markdown",
	".mdx":      "text/markdown",
	".txt":      "text/plain",
	".rst":      "text/x-rst",
	".go":       "text/x-go",
	".py":       "text/x-python",
	".rs":       "text/x-rust",
	".ts":       "text/typescript",
	".yaml":     "text/yaml",
	".yml":      "text/yaml",
	".toml":     "text/toml",
	".sh":       "text/x-shellscript",
	".sql":      "text/x-sql",
}

// detectMIMEType guesses the content type from the file extension.
// Charset parameters are stripped.
func detectMIMEType(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	if ext == "" {
		return "text/plain"
	}
	if t, ok := mimeFallbacks[ext]; ok {
		return t
	}
	if t := mime.TypeByExtension(ext); t != "" {
		if i := strings.Index(t, ";"); i >= 0 {
			t = strings.TrimSpace(t[:i])
		}
		return t
	}
	return "application/octet-stream"
}
