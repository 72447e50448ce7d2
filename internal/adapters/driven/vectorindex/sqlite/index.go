package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/custodia-labs/ragops/internal/adapters/driven/vectorindex/sqlite/migrations"
	"github.com/custodia-labs/ragops/internal/core/domain"
	"github.com/custodia-labs/ragops/internal/core/ports/driven"
)

// Ensure Index implements the interfaces.
var (
	_ driven.VectorIndex       = (*Index)(nil)
	_ driven.Counter           = (*Index)(nil)
	_ driven.DimensionReporter = (*Index)(nil)
)

const metaDimensions = "dimensions"

// rowQueryer is satisfied by *sql.DB and *sql.Tx.
type rowQueryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Index is a SQLite-backed vector index.
type Index struct {
	db     *sql.DB
	path   string
	metric domain.DistanceMetric
}

// DefaultPath returns ~/.ragops/index.db.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}
	return filepath.Join(home, ".ragops", "index.db"), nil
}

// NewIndex opens or creates the index database at path.
// If path is empty, defaults to ~/.ragops/index.db.
func NewIndex(path string, metric domain.DistanceMetric) (*Index, error) {
	if path == "" {
		var err error
		if path, err = DefaultPath(); err != nil {
			return nil, err
		}
	}
	if !metric.IsValid() {
		metric = domain.MetricCosine
	}

	// Ensure directory exists
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	// Open database with WAL mode for better concurrency
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	x := &Index{
		db:     db,
		path:   path,
		metric: metric,
	}

	if err := x.migrate(migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return x, nil
}

// Close closes the database connection.
func (x *Index) Close() error {
	return x.db.Close()
}

// Path returns the database file path.
func (x *Index) Path() string {
	return x.path
}

// migrate runs all pending migrations.
func (x *Index) migrate(fsys embed.FS) error {
	_, err := x.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	var currentVersion int
	row := x.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	var upFiles []string
	for _, entry := range entries {
		if strings.HasSuffix(entry.Name(), ".up.sql") {
			upFiles = append(upFiles, entry.Name())
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
		// "001_records.up.sql" -> 1
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue
		}
		if version <= currentVersion {
			continue
		}

		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}
		if _, err := x.db.Exec(string(content)); err != nil {
			return fmt.Errorf("executing migration %s: %w", name, err)
		}
	}

	return nil
}

// Upsert inserts records, overwriting any with an existing id in place.
// Every record must match the stored dimensionality; the first batch
// into an empty index fixes it. A mismatch rejects the whole batch.
func (x *Index) Upsert(ctx context.Context, records []domain.VectorRecord) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := x.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	stored, err := dimensions(ctx, tx)
	if err != nil {
		return err
	}
	dims := stored
	for _, r := range records {
		if dims == 0 {
			dims = len(r.Embedding)
		}
		if len(r.Embedding) == 0 || len(r.Embedding) != dims {
			return &domain.DimensionMismatchError{Expected: dims, Got: len(r.Embedding), ID: r.ID}
		}
	}
	if stored == 0 {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO index_meta (key, value) VALUES (?, ?)", metaDimensions, dims); err != nil {
			return fmt.Errorf("saving dimensions: %w", err)
		}
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO records (id, document, embedding, metadata)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			document = excluded.document,
			embedding = excluded.embedding,
			metadata = excluded.metadata
	`)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer stmt.Close()

	for _, r := range records {
		metadataJSON, err := marshalMetadata(r.Metadata)
		if err != nil {
			return err
		}
		if _, err := stmt.ExecContext(ctx, r.ID, r.Document,
			float32SliceToBytes(r.Embedding), metadataJSON); err != nil {
			return fmt.Errorf("saving record %s: %w", r.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// Get returns records by ids (request order), filter, or page.
func (x *Index) Get(ctx context.Context, req domain.GetRequest) ([]domain.VectorRecord, error) {
	where, args := whereClause(req.IDs, req.Filter)

	query := "SELECT id, document, embedding, metadata FROM records" + where + " ORDER BY seq"
	if len(req.IDs) == 0 && (req.Limit > 0 || req.Offset > 0) {
		limit := req.Limit
		if limit <= 0 {
			limit = -1
		}
		query += " LIMIT ? OFFSET ?"
		args = append(args, limit, req.Offset)
	}

	records, err := x.queryRecords(ctx, query, args...)
	if err != nil {
		return nil, err
	}

	if len(req.IDs) > 0 {
		records = inRequestOrder(records, req.IDs)
		records = page(records, req.Offset, req.Limit)
	}

	for i := range records {
		records[i] = req.Include.Apply(records[i])
	}
	return records, nil
}

// Query scores every record passing the filter and returns the nearest K.
func (x *Index) Query(ctx context.Context, req domain.QueryRequest) ([]domain.QueryMatch, error) {
	dims, err := x.Dimensions(ctx)
	if err != nil {
		return nil, err
	}
	if dims > 0 && len(req.Embedding) != dims {
		return nil, &domain.DimensionMismatchError{Expected: dims, Got: len(req.Embedding)}
	}

	where, args := whereClause(nil, req.Filter)

	records, err := x.queryRecords(ctx,
		"SELECT id, document, embedding, metadata FROM records"+where+" ORDER BY seq", args...)
	if err != nil {
		return nil, err
	}

	matches := make([]domain.QueryMatch, 0, len(records))
	for _, r := range records {
		distance := x.metric.Distance(req.Embedding, r.Embedding)
		r = req.Include.Apply(r)
		matches = append(matches, domain.QueryMatch{
			ID:        r.ID,
			Document:  r.Document,
			Metadata:  r.Metadata,
			Distance:  distance,
			Embedding: r.Embedding,
		})
	}

	domain.SortMatches(matches)
	if req.K > 0 && len(matches) > req.K {
		matches = matches[:req.K]
	}
	return matches, nil
}

// Delete removes records selected by ids and filter together.
func (x *Index) Delete(ctx context.Context, req domain.DeleteRequest) (int, error) {
	if req.IsEmpty() {
		return 0, nil
	}

	where, args := whereClause(req.IDs, req.Filter)
	res, err := x.db.ExecContext(ctx, "DELETE FROM records"+where, args...)
	if err != nil {
		return 0, fmt.Errorf("deleting records: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("counting deleted records: %w", err)
	}
	return int(n), nil
}

// Count returns the number of stored records.
func (x *Index) Count(ctx context.Context) (int, error) {
	var n int
	if err := x.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM records").Scan(&n); err != nil {
		return 0, fmt.Errorf("counting records: %w", err)
	}
	return n, nil
}

// Dimensions returns the stored dimensionality, or 0 before the first
// record was written.
func (x *Index) Dimensions(ctx context.Context) (int, error) {
	return dimensions(ctx, x.db)
}

func dimensions(ctx context.Context, q rowQueryer) (int, error) {
	var dims int
	err := q.QueryRowContext(ctx, "SELECT value FROM index_meta WHERE key = ?", metaDimensions).Scan(&dims)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("reading dimensions: %w", err)
	}
	return dims, nil
}

func (x *Index) queryRecords(ctx context.Context, query string, args ...any) ([]domain.VectorRecord, error) {
	rows, err := x.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying records: %w", err)
	}
	defer rows.Close()

	var records []domain.VectorRecord //nolint:prealloc // size unknown from query
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating records: %w", err)
	}
	return records, nil
}

// whereClause builds a WHERE clause ANDing an id list with metadata
// equality filters. Filter keys are passed as JSON paths, never inlined.
func whereClause(ids []string, filter domain.Filter) (string, []any) {
	var conds []string
	var args []any

	if len(ids) > 0 {
		conds = append(conds, "id IN ("+strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")+")")
		for _, id := range ids {
			args = append(args, id)
		}
	}

	keys := make([]string, 0, len(filter))
	for k := range filter {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		conds = append(conds, "json_extract(metadata, ?) = ?")
		args = append(args, jsonPath(k), filter[k])
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// jsonPath quotes a metadata key as a JSON path member.
func jsonPath(key string) string {
	return `$."` + strings.ReplaceAll(key, `"`, `\"`) + `"`
}

func inRequestOrder(records []domain.VectorRecord, ids []string) []domain.VectorRecord {
	byID := make(map[string]domain.VectorRecord, len(records))
	for _, r := range records {
		byID[r.ID] = r
	}
	out := make([]domain.VectorRecord, 0, len(records))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if r, ok := byID[id]; ok && !seen[id] {
			out = append(out, r)
			seen[id] = true
		}
	}
	return out
}

func page(records []domain.VectorRecord, offset, limit int) []domain.VectorRecord {
	if offset > 0 {
		if offset >= len(records) {
			return nil
		}
		records = records[offset:]
	}
	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}
	return records
}

func marshalMetadata(meta map[string]string) (string, error) {
	if len(meta) == 0 {
		return "{}", nil
	}
	b, err := json.Marshal(meta)
	if err != nil {
		return "", fmt.Errorf("marshalling metadata: %w", err)
	}
	return string(b), nil
}

// float32SliceToBytes converts a []float32 to a byte slice for storage.
func float32SliceToBytes(floats []float32) []byte {
	if len(floats) == 0 {
		return nil
	}
	buf := make([]byte, len(floats)*4)
	for i, f := range floats {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// bytesToFloat32Slice converts a byte slice back to []float32.
func bytesToFloat32Slice(data []byte) []float32 {
	if len(data) == 0 {
		return nil
	}
	floats := make([]float32, len(data)/4)
	for i := range floats {
		floats[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return floats
}

// scanRecord scans a record from *sql.Rows.
func scanRecord(rows *sql.Rows) (*domain.VectorRecord, error) {
	var r domain.VectorRecord
	var embeddingBlob []byte
	var metadataJSON string

	if err := rows.Scan(&r.ID, &r.Document, &embeddingBlob, &metadataJSON); err != nil {
		return nil, fmt.Errorf("scanning record: %w", err)
	}

	r.Embedding = bytesToFloat32Slice(embeddingBlob)

	if metadataJSON != "" && metadataJSON != "{}" {
		if err := json.Unmarshal([]byte(metadataJSON), &r.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshaling metadata: %w", err)
		}
	}

	return &r, nil
}
