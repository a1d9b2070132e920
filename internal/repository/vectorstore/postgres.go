package vectorstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/lib/pq"

	"github.com/kailas-cloud/ragdex/internal/domain"
	"github.com/kailas-cloud/ragdex/internal/domain/record"
)

// Postgres stores records in a pgvector table. seq is a bigserial that
// survives upserts and breaks distance ties in insertion order.
type Postgres struct {
	db    *sql.DB
	table string // quoted identifier
	dim   int
}

// OpenPostgres connects, creates the pgvector extension and table, and
// returns the store. dim must match the embedding model.
func OpenPostgres(ctx context.Context, dsn, table string, dim int) (*Postgres, error) {
	if dim <= 0 {
		return nil, fmt.Errorf("postgres vector store needs a positive dimension, got %d", dim)
	}
	conn, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	p := newPostgres(conn, table, dim)
	if err := p.ensureSchema(ctx); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return p, nil
}

func newPostgres(conn *sql.DB, table string, dim int) *Postgres {
	return &Postgres{db: conn, table: pq.QuoteIdentifier(table), dim: dim}
}

func (p *Postgres) ensureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			seq       BIGSERIAL,
			id        TEXT PRIMARY KEY,
			text      TEXT NOT NULL,
			metadata  JSONB NOT NULL DEFAULT '{}',
			embedding vector(%d) NOT NULL
		)`, p.table, p.dim),
	}
	for _, s := range stmts {
		if _, err := p.db.ExecContext(ctx, s); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}

	// CREATE TABLE IF NOT EXISTS keeps a table built for another model.
	var have int
	err := p.db.QueryRowContext(ctx,
		`SELECT atttypmod FROM pg_attribute WHERE attrelid = $1::regclass AND attname = 'embedding'`,
		p.table,
	).Scan(&have)
	if err != nil {
		return fmt.Errorf("read embedding column: %w", err)
	}
	return checkColumnDim(p.table, have, p.dim)
}

// checkColumnDim compares pgvector's typmod (the declared dimension, -1 when
// undeclared) with the configured one.
func checkColumnDim(table string, have, want int) error {
	if have > 0 && have != want {
		return fmt.Errorf("%w: table %s has %d, store has %d", domain.ErrVectorDimMismatch, table, have, want)
	}
	return nil
}

// Add upserts records one statement at a time; each statement commits on its own.
func (p *Postgres) Add(ctx context.Context, recs []record.Record) error {
	for i, rec := range recs {
		if err := p.put(ctx, rec); err != nil {
			return &domain.PartialWriteError{Written: i, FailedID: rec.ID(), Err: err}
		}
	}
	return nil
}

func (p *Postgres) put(ctx context.Context, rec record.Record) error {
	if rec.Dim() != p.dim {
		return fmt.Errorf("%w: record %q has %d, store has %d", domain.ErrVectorDimMismatch, rec.ID(), rec.Dim(), p.dim)
	}
	meta, err := json.Marshal(rec.Metadata())
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}

	q := fmt.Sprintf(`
		INSERT INTO %s (id, text, metadata, embedding)
		VALUES ($1, $2, $3, $4::vector)
		ON CONFLICT (id) DO UPDATE
		SET text = EXCLUDED.text, metadata = EXCLUDED.metadata, embedding = EXCLUDED.embedding
	`, p.table)
	if _, err := p.db.ExecContext(ctx, q, rec.ID(), rec.Text(), string(meta), vectorLiteral(rec.Vector())); err != nil {
		return fmt.Errorf("upsert %s: %w", rec.ID(), err)
	}
	return nil
}

// Query returns the k nearest records by cosine distance.
func (p *Postgres) Query(ctx context.Context, vec []float32, k int) ([]record.Hit, error) {
	if k <= 0 {
		return nil, fmt.Errorf("k must be positive, got %d", k)
	}
	if len(vec) != p.dim {
		return nil, fmt.Errorf("%w: query has %d, store has %d", domain.ErrVectorDimMismatch, len(vec), p.dim)
	}

	q := fmt.Sprintf(`
		SELECT id, text, 1 - (embedding <=> $1::vector) AS score
		FROM %s
		ORDER BY embedding <=> $1::vector, seq
		LIMIT $2
	`, p.table)
	rows, err := p.db.QueryContext(ctx, q, vectorLiteral(vec), k)
	if err != nil {
		return nil, fmt.Errorf("knn query: %w", err)
	}
	defer rows.Close()

	hits := []record.Hit{}
	for rows.Next() {
		var h record.Hit
		if err := rows.Scan(&h.ID, &h.Text, &h.Score); err != nil {
			return nil, fmt.Errorf("scan hit: %w", err)
		}
		h.Score = max(0, h.Score)
		hits = append(hits, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate hits: %w", err)
	}
	return hits, nil
}

// Delete removes records by id in one statement.
func (p *Postgres) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	q := fmt.Sprintf(`DELETE FROM %s WHERE id = ANY($1)`, p.table)
	if _, err := p.db.ExecContext(ctx, q, pq.Array(ids)); err != nil {
		return fmt.Errorf("delete: %w", err)
	}
	return nil
}

// Count returns the number of stored records.
func (p *Postgres) Count(ctx context.Context) (int, error) {
	var n int
	if err := p.db.QueryRowContext(ctx, fmt.Sprintf(`SELECT count(*) FROM %s`, p.table)).Scan(&n); err != nil {
		return 0, fmt.Errorf("count: %w", err)
	}
	return n, nil
}

// Ping checks connectivity.
func (p *Postgres) Ping(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

// Close releases the connection pool.
func (p *Postgres) Close() {
	_ = p.db.Close()
}

// vectorLiteral renders v in pgvector's text input format, e.g. [0.1,0.2].
func vectorLiteral(v []float32) string {
	var sb strings.Builder
	sb.WriteByte('[')
	for i, f := range v {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(strconv.FormatFloat(float64(f), 'g', -1, 32))
	}
	sb.WriteByte(']')
	return sb.String()
}
