// Package pgvector provides a PostgreSQL vector driver using the pgvector
// extension over a pgx connection pool.
package pgvector

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	pgv "github.com/pgvector/pgvector-go"

	"github.com/davidhonghikim/griot-sub000/pkg/vector"
)

const DefaultTable = "griot_vectors"

// Config holds configuration for the pgvector driver.
type Config struct {
	// DSN is a PostgreSQL connection string.
	DSN string

	// Table defaults to DefaultTable.
	Table string

	// Dimensions sizes the embedding column.
	Dimensions uint
}

// Driver implements vector.VectorDriver on a single pgvector table.
type Driver struct {
	pool   *pgxpool.Pool
	table  string
	logger *slog.Logger
}

// NewDriver connects, enables the extension and creates the table when
// missing.
func NewDriver(ctx context.Context, c Config, logger *slog.Logger) (*Driver, error) {
	if c.DSN == "" {
		return nil, fmt.Errorf("postgres DSN is required")
	}
	if c.Dimensions == 0 {
		return nil, fmt.Errorf("pgvector embedding dimensions cannot be 0, must be configured")
	}
	if c.Table == "" {
		c.Table = DefaultTable
	}
	if !validIdent(c.Table) {
		return nil, fmt.Errorf("invalid table name %q", c.Table)
	}

	pool, err := pgxpool.New(ctx, c.DSN)
	if err != nil {
		return nil, fmt.Errorf("%w: creating pool: %v", vector.ErrConnection, err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("%w: pinging postgres: %v", vector.ErrConnection, err)
	}

	stmts := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			content TEXT NOT NULL DEFAULT '',
			metadata JSONB NOT NULL DEFAULT '{}'::jsonb,
			embedding vector(%d) NOT NULL
		)`, c.Table, c.Dimensions),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s_metadata_idx ON %s USING GIN (metadata)`, c.Table, c.Table),
	}
	for _, stmt := range stmts {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			pool.Close()
			return nil, fmt.Errorf("preparing schema: %w", err)
		}
	}

	logger.Info("pgvector vector driver initialized",
		"table", c.Table,
		"dimensions", c.Dimensions,
	)

	return &Driver{pool: pool, table: c.Table, logger: logger}, nil
}

// Add upserts documents.
func (d *Driver) Add(ctx context.Context, docs []vector.Document) error {
	if len(docs) == 0 {
		return nil
	}

	tx, err := d.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	stmt := fmt.Sprintf(`
		INSERT INTO %s (id, content, metadata, embedding)
		VALUES ($1, $2, $3::jsonb, $4::vector)
		ON CONFLICT (id) DO UPDATE
		SET content = EXCLUDED.content, metadata = EXCLUDED.metadata, embedding = EXCLUDED.embedding`,
		d.table)

	for _, doc := range docs {
		meta, err := json.Marshal(orEmpty(doc.Metadata))
		if err != nil {
			return fmt.Errorf("encoding metadata for doc %s: %w", doc.ID, err)
		}
		if _, err := tx.Exec(ctx, stmt, doc.ID, doc.Content, string(meta), pgv.NewVector(doc.Embedding)); err != nil {
			return fmt.Errorf("upserting doc %s: %w", doc.ID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	d.logger.Debug("added documents to pgvector", "count", len(docs))
	return nil
}

// Query orders by cosine distance; score is 1 - distance.
func (d *Driver) Query(ctx context.Context, embedding []float32, opts vector.QueryOptions) ([]vector.QueryResult, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 10
	}

	where, args, err := buildWhere(opts.Filter, 2)
	if err != nil {
		return nil, err
	}
	args = append([]any{pgv.NewVector(embedding)}, args...)
	args = append(args, limit)

	query := fmt.Sprintf(`
		SELECT id, content, metadata::text, embedding::text, 1 - (embedding <=> $1::vector) AS score
		FROM %s%s
		ORDER BY embedding <=> $1::vector, id
		LIMIT $%d`, d.table, where, len(args))

	rows, err := d.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying vectors: %w", err)
	}
	defer rows.Close()

	var results []vector.QueryResult
	for rows.Next() {
		var (
			r          vector.QueryResult
			meta, emb  string
			similarity float64
		)
		if err := rows.Scan(&r.ID, &r.Content, &meta, &emb, &similarity); err != nil {
			return nil, fmt.Errorf("scanning query result: %w", err)
		}
		if err := decodeRow(&r.Document, meta, emb); err != nil {
			return nil, err
		}
		r.Score = float32(similarity)
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating query results: %w", err)
	}

	d.logger.Debug("queried pgvector", "results", len(results))
	return results, nil
}

// buildWhere renders the filter starting at placeholder $start.
func buildWhere(f vector.Filter, start int) (string, []any, error) {
	var (
		clauses []string
		args    []any
		n       = start
	)

	if len(f.Match) > 0 {
		contains, err := json.Marshal(f.Match)
		if err != nil {
			return "", nil, fmt.Errorf("encoding filter: %w", err)
		}
		clauses = append(clauses, fmt.Sprintf("metadata @> $%d::jsonb", n))
		args = append(args, string(contains))
		n++
	}

	for _, k := range f.AnyOfKeys() {
		clauses = append(clauses, fmt.Sprintf("metadata->$%d ?| $%d::text[]", n, n+1))
		args = append(args, k, f.AnyOf[k])
		n += 2
	}

	if len(clauses) == 0 {
		return "", nil, nil
	}
	return "\n\t\tWHERE " + strings.Join(clauses, " AND "), args, nil
}

// Get retrieves documents by their IDs.
func (d *Driver) Get(ctx context.Context, ids []string) ([]vector.Document, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	rows, err := d.pool.Query(ctx, fmt.Sprintf(
		`SELECT id, content, metadata::text, embedding::text FROM %s WHERE id = ANY($1) ORDER BY id`, d.table,
	), ids)
	if err != nil {
		return nil, fmt.Errorf("querying documents: %w", err)
	}
	defer rows.Close()

	var docs []vector.Document
	for rows.Next() {
		var (
			doc       vector.Document
			meta, emb string
		)
		if err := rows.Scan(&doc.ID, &doc.Content, &meta, &emb); err != nil {
			return nil, fmt.Errorf("scanning document: %w", err)
		}
		if err := decodeRow(&doc, meta, emb); err != nil {
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
	if _, err := d.pool.Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE id = ANY($1)`, d.table), ids); err != nil {
		return fmt.Errorf("deleting documents: %w", err)
	}

	d.logger.Debug("deleted documents from pgvector", "count", len(ids))
	return nil
}

// Count returns the number of stored documents.
func (d *Driver) Count(ctx context.Context) (int, error) {
	var n int
	if err := d.pool.QueryRow(ctx, fmt.Sprintf(`SELECT COUNT(*) FROM %s`, d.table)).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting documents: %w", err)
	}
	return n, nil
}

// Close closes the pool.
func (d *Driver) Close() error {
	d.pool.Close()
	return nil
}

func decodeRow(doc *vector.Document, meta, emb string) error {
	if meta != "" {
		if err := json.Unmarshal([]byte(meta), &doc.Metadata); err != nil {
			return fmt.Errorf("decoding metadata for doc %s: %w", doc.ID, err)
		}
	}
	if emb != "" {
		var v pgv.Vector
		if err := v.Scan(emb); err != nil {
			return fmt.Errorf("decoding embedding for doc %s: %w", doc.ID, err)
		}
		doc.Embedding = v.Slice()
	}
	return nil
}

func validIdent(s string) bool {
	for i, r := range s {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9' && i > 0:
		default:
			return false
		}
	}
	return s != ""
}

func orEmpty(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}

var _ vector.VectorDriver = (*Driver)(nil)
