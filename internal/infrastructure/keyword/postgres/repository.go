package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/kirillkom/hybrid-retriever/internal/core/domain"
)

// Repository is the KEYWORD source: Postgres full-text search over the
// corpus table. ts_rank_cd scores are unbounded positive on a small
// scale (typical top hits around 0.1); the normalizer saturates them
// against the configured constant, whose default is sized for exactly
// this backend.
type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

func (r *Repository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across concurrent api startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026082501)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS corpus_documents (
	id TEXT PRIMARY KEY,
	title TEXT NOT NULL,
	content TEXT NOT NULL,
	search_tsv tsvector GENERATED ALWAYS AS (
		to_tsvector('english', coalesce(title, '') || ' ' || coalesce(content, ''))
	) STORED,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_corpus_documents_tsv ON corpus_documents USING GIN (search_tsv);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

func (r *Repository) Source() domain.Source {
	return domain.SourceKeyword
}

func (r *Repository) Search(ctx context.Context, query string, limit int) ([]domain.RetrievalResult, error) {
	const searchSQL = `
SELECT d.id, d.title, left(d.content, 1200), ts_rank_cd(d.search_tsv, q) AS score
FROM corpus_documents d, websearch_to_tsquery('english', $1) q
WHERE d.search_tsv @@ q
ORDER BY score DESC, d.id
LIMIT $2`

	rows, err := r.db.QueryContext(ctx, searchSQL, query, limit)
	if err != nil {
		return nil, fmt.Errorf("keyword search query: %w", err)
	}
	defer rows.Close()

	out := make([]domain.RetrievalResult, 0, limit)
	for rows.Next() {
		var result domain.RetrievalResult
		if err := rows.Scan(&result.CanonicalID, &result.Title, &result.Content, &result.RawScore); err != nil {
			return nil, fmt.Errorf("scan keyword row: %w", err)
		}
		result.Source = domain.SourceKeyword
		out = append(out, result)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate keyword rows: %w", err)
	}
	return out, nil
}
