// Package sqlitevec provides a SQLite-backed vector driver using sqlite-vec.
package sqlitevec

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"strings"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"

	"github.com/davidhonghikim/griot-sub000/pkg/vector"
)

// Driver implements vector.VectorDriver using SQLite with sqlite-vec.
type Driver struct {
	db         *sql.DB
	dimensions uint
	logger     *slog.Logger
}

// Config holds configuration for the SQLite vec driver.
type Config struct {
	// DBPath is the path to the SQLite database file.
	// Use ":memory:" for an in-memory database.
	DBPath string

	// Dimensions is the number of dimensions for the embedding vectors.
	Dimensions uint
}

// NewDriver opens (and if needed creates) a sqlite-vec backed store.
func NewDriver(c Config, logger *slog.Logger) (*Driver, error) {
	// enable connection to have sqlite-vec extension
	sqlite_vec.Auto()

	if c.DBPath == "" {
		return nil, fmt.Errorf("database path is required")
	}
	if c.Dimensions == 0 {
		return nil, fmt.Errorf("sqlite-vec embedding dimensions cannot be 0, must be configured")
	}

	db, err := sql.Open("sqlite3", c.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// In-memory databases are per connection.
	db.SetMaxOpenConns(1)

	var vecVersion string
	if err := db.QueryRow("SELECT vec_version()").Scan(&vecVersion); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite-vec not available: %w", err)
	}

	// vec0 tables key rows by integer rowid, so documents keep the mapping
	// from string id to rowid alongside content and metadata.
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS vec_documents (
			rowid INTEGER PRIMARY KEY AUTOINCREMENT,
			doc_id TEXT NOT NULL UNIQUE,
			content TEXT NOT NULL DEFAULT '',
			metadata TEXT NOT NULL DEFAULT '{}'
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating documents table: %w", err)
	}

	createVec := fmt.Sprintf(
		`CREATE VIRTUAL TABLE IF NOT EXISTS vec_embeddings USING vec0(embedding float[%d])`,
		c.Dimensions,
	)
	if _, err := db.Exec(createVec); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating vec0 table: %w", err)
	}

	logger.Info("sqlite-vec vector driver initialized",
		"db_path", c.DBPath,
		"dimensions", c.Dimensions,
		"vec_version", vecVersion,
	)

	return &Driver{
		db:         db,
		dimensions: c.Dimensions,
		logger:     logger,
	}, nil
}

func serializeFloat32(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func deserializeFloat32(b []byte) ([]float32, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("invalid embedding blob length %d: must be divisible by 4", len(b))
	}
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v, nil
}

func (d *Driver) checkDimensions(embedding []float32) error {
	if uint(len(embedding)) != d.dimensions {
		return fmt.Errorf("%w: got %d, want %d", vector.ErrDimensionMismatch, len(embedding), d.dimensions)
	}
	return nil
}

// Add stores documents with their embeddings, replacing any with the same ID.
func (d *Driver) Add(ctx context.Context, docs []vector.Document) error {
	if len(docs) == 0 {
		return nil
	}

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	for _, doc := range docs {
		if err := d.checkDimensions(doc.Embedding); err != nil {
			return fmt.Errorf("doc %s: %w", doc.ID, err)
		}

		meta, err := json.Marshal(orEmpty(doc.Metadata))
		if err != nil {
			return fmt.Errorf("encoding metadata for doc %s: %w", doc.ID, err)
		}

		var rowID int64
		err = tx.QueryRowContext(ctx,
			`SELECT rowid FROM vec_documents WHERE doc_id = ?`, doc.ID,
		).Scan(&rowID)

		switch err {
		case nil:
			if _, err := tx.ExecContext(ctx,
				`UPDATE vec_documents SET content = ?, metadata = ? WHERE rowid = ?`,
				doc.Content, string(meta), rowID,
			); err != nil {
				return fmt.Errorf("updating document %s: %w", doc.ID, err)
			}

			// vec0 does not support UPDATE
			if _, err := tx.ExecContext(ctx,
				`DELETE FROM vec_embeddings WHERE rowid = ?`, rowID,
			); err != nil {
				return fmt.Errorf("deleting old embedding for doc %s: %w", doc.ID, err)
			}
		case sql.ErrNoRows:
			result, err := tx.ExecContext(ctx,
				`INSERT INTO vec_documents(doc_id, content, metadata) VALUES (?, ?, ?)`,
				doc.ID, doc.Content, string(meta),
			)
			if err != nil {
				return fmt.Errorf("inserting document %s: %w", doc.ID, err)
			}
			rowID, err = result.LastInsertId()
			if err != nil {
				return fmt.Errorf("getting rowid for doc %s: %w", doc.ID, err)
			}
		default:
			return fmt.Errorf("checking for existing document %s: %w", doc.ID, err)
		}

		if _, err := tx.ExecContext(ctx,
			`INSERT INTO vec_embeddings(rowid, embedding) VALUES (?, ?)`,
			rowID, serializeFloat32(doc.Embedding),
		); err != nil {
			return fmt.Errorf("inserting embedding for doc %s: %w", doc.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	d.logger.Debug("added documents to sqlite-vec", "count", len(docs))
	return nil
}

// Query scores every document that passes the filter by cosine distance.
// Metadata filters are pushed into SQL with json_extract and json_each.
func (d *Driver) Query(ctx context.Context, embedding []float32, opts vector.QueryOptions) ([]vector.QueryResult, error) {
	if err := d.checkDimensions(embedding); err != nil {
		return nil, err
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = 10
	}

	where, args := buildWhere(opts.Filter)
	query := `
		SELECT d.doc_id, d.content, d.metadata, e.embedding,
			vec_distance_cosine(e.embedding, ?) AS distance
		FROM vec_documents d
		INNER JOIN vec_embeddings e ON e.rowid = d.rowid` + where + `
		ORDER BY distance, d.rowid
		LIMIT ?`

	queryArgs := append([]any{serializeFloat32(embedding)}, args...)
	queryArgs = append(queryArgs, limit)

	rows, err := d.db.QueryContext(ctx, query, queryArgs...)
	if err != nil {
		return nil, fmt.Errorf("querying vectors: %w", err)
	}
	defer rows.Close()

	var results []vector.QueryResult
	for rows.Next() {
		var (
			doc      vector.Document
			meta     string
			blob     []byte
			distance float64
		)
		if err := rows.Scan(&doc.ID, &doc.Content, &meta, &blob, &distance); err != nil {
			return nil, fmt.Errorf("scanning query result: %w", err)
		}
		if err := decodeRow(&doc, meta, blob); err != nil {
			return nil, err
		}

		results = append(results, vector.QueryResult{
			Document: doc,
			Score:    float32(1 - distance),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating query results: %w", err)
	}

	d.logger.Debug("queried sqlite-vec", "results", len(results))
	return results, nil
}

func buildWhere(f vector.Filter) (string, []any) {
	var (
		clauses []string
		args    []any
	)

	for _, k := range f.MatchKeys() {
		clauses = append(clauses, `CAST(json_extract(d.metadata, ?) AS TEXT) = ?`)
		args = append(args, jsonPath(k), f.Match[k])
	}

	for _, k := range f.AnyOfKeys() {
		vals := f.AnyOf[k]
		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(vals)), ",")
		clauses = append(clauses, fmt.Sprintf(
			`EXISTS (SELECT 1 FROM json_each(d.metadata, ?) WHERE json_each.value IN (%s))`,
			placeholders,
		))
		args = append(args, jsonPath(k))
		for _, v := range vals {
			args = append(args, v)
		}
	}

	if len(clauses) == 0 {
		return "", nil
	}
	return "\n\t\tWHERE " + strings.Join(clauses, " AND "), args
}

func jsonPath(key string) string {
	return `$."` + strings.ReplaceAll(key, `"`, `\"`) + `"`
}

// Get retrieves documents by their IDs.
func (d *Driver) Get(ctx context.Context, ids []string) ([]vector.Document, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	placeholders, args := inClause(ids)
	rows, err := d.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT d.doc_id, d.content, d.metadata, e.embedding
		FROM vec_documents d
		LEFT JOIN vec_embeddings e ON e.rowid = d.rowid
		WHERE d.doc_id IN (%s)
		ORDER BY d.rowid
	`, placeholders), args...)
	if err != nil {
		return nil, fmt.Errorf("querying documents: %w", err)
	}
	defer rows.Close()

	var docs []vector.Document
	for rows.Next() {
		var (
			doc  vector.Document
			meta string
			blob []byte
		)
		if err := rows.Scan(&doc.ID, &doc.Content, &meta, &blob); err != nil {
			return nil, fmt.Errorf("scanning document: %w", err)
		}
		if err := decodeRow(&doc, meta, blob); err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating documents: %w", err)
	}

	return docs, nil
}

// Delete removes documents by their IDs.
func (d *Driver) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	placeholders, args := inClause(ids)

	if _, err := tx.ExecContext(ctx, fmt.Sprintf(
		`DELETE FROM vec_embeddings WHERE rowid IN (SELECT rowid FROM vec_documents WHERE doc_id IN (%s))`,
		placeholders,
	), args...); err != nil {
		return fmt.Errorf("deleting embeddings: %w", err)
	}

	if _, err := tx.ExecContext(ctx, fmt.Sprintf(
		`DELETE FROM vec_documents WHERE doc_id IN (%s)`, placeholders,
	), args...); err != nil {
		return fmt.Errorf("deleting documents: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	d.logger.Debug("deleted documents from sqlite-vec", "count", len(ids))
	return nil
}

// Count returns the number of stored documents.
func (d *Driver) Count(ctx context.Context) (int, error) {
	var n int
	if err := d.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM vec_documents`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting documents: %w", err)
	}
	return n, nil
}

// Close releases resources held by the driver.
func (d *Driver) Close() error {
	return d.db.Close()
}

func inClause(ids []string) (string, []any) {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return strings.TrimSuffix(strings.Repeat("?,", len(ids)), ","), args
}

func decodeRow(doc *vector.Document, meta string, blob []byte) error {
	if meta != "" {
		if err := json.Unmarshal([]byte(meta), &doc.Metadata); err != nil {
			return fmt.Errorf("decoding metadata for doc %s: %w", doc.ID, err)
		}
	}
	if len(blob) > 0 {
		emb, err := deserializeFloat32(blob)
		if err != nil {
			return fmt.Errorf("decoding embedding for doc %s: %w", doc.ID, err)
		}
		doc.Embedding = emb
	}
	return nil
}

func orEmpty(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}

var _ vector.VectorDriver = (*Driver)(nil)
