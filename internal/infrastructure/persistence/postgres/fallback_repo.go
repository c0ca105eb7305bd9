package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/exportstafft-ui/intern-attendance/internal/domain/attendance"
)

// ══════════════════════════════════════════════════════════════════════════════
// QUERIES
// ══════════════════════════════════════════════════════════════════════════════

const (
	queryUpsertDocument = `
		INSERT INTO fallback_documents (key, content, updated_at)
		VALUES ($1, $2::jsonb, NOW())
		ON CONFLICT (key) DO UPDATE
		SET content = EXCLUDED.content, updated_at = EXCLUDED.updated_at`

	queryAppendHistory = `
		INSERT INTO fallback_document_history (key, content)
		VALUES ($1, $2::jsonb)`

	querySelectDocument = `
		SELECT content::text FROM fallback_documents WHERE key = $1`
)

// database is the part of *Connection the repository uses.
type database interface {
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	InTx(ctx context.Context, fn func(Querier) error) error
	Ping(ctx context.Context) error
}

// FallbackRepository implements attendance.FallbackStore on PostgreSQL.
type FallbackRepository struct {
	conn database
}

var _ attendance.FallbackStore = (*FallbackRepository)(nil)

// NewFallbackRepository creates a new repository. Run the Migrator first.
func NewFallbackRepository(conn *Connection) *FallbackRepository {
	return &FallbackRepository{conn: conn}
}

// Save upserts the document and appends it to the history log in one transaction.
func (r *FallbackRepository) Save(ctx context.Context, key string, data []byte) error {
	err := r.conn.InTx(ctx, func(q Querier) error {
		return saveDocument(ctx, q, key, data)
	})
	if IsInvalidJSON(err) {
		return fmt.Errorf("fallback postgres save %s: document is not valid JSON: %w", key, err)
	}
	if err != nil {
		return fmt.Errorf("fallback postgres save %s: %w", key, err)
	}
	return nil
}

func saveDocument(ctx context.Context, q Querier, key string, data []byte) error {
	if _, err := q.Exec(ctx, queryUpsertDocument, key, string(data)); err != nil {
		return fmt.Errorf("upsert document: %w", err)
	}
	if _, err := q.Exec(ctx, queryAppendHistory, key, string(data)); err != nil {
		return fmt.Errorf("append history: %w", err)
	}
	return nil
}

// Load returns the stored copy or attendance.ErrFallbackMiss.
// JSONB normalizes whitespace and key order, so the bytes differ from what
// was saved while the decoded document is equal.
func (r *FallbackRepository) Load(ctx context.Context, key string) ([]byte, error) {
	var content string
	err := r.conn.QueryRow(ctx, querySelectDocument, key).Scan(&content)
	if err != nil {
		if IsNoRows(err) {
			return nil, attendance.ErrFallbackMiss
		}
		return nil, fmt.Errorf("fallback postgres load %s: %w", key, err)
	}
	return []byte(content), nil
}

// Ping checks if the database connection is alive.
func (r *FallbackRepository) Ping(ctx context.Context) error {
	return r.conn.Ping(ctx)
}
