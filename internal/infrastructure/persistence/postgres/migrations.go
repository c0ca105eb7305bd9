package postgres

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 001: FALLBACK DOCUMENTS
// ══════════════════════════════════════════════════════════════════════════════

const migration001Up = `
-- One row per document path. Last write wins, no revisioning.
CREATE TABLE IF NOT EXISTS fallback_documents (
    key TEXT PRIMARY KEY,
    content JSONB NOT NULL,
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT fallback_key_not_empty CHECK (key <> '')
);
`

const migration001Down = `
DROP TABLE IF EXISTS fallback_documents;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 002: FALLBACK HISTORY
// ══════════════════════════════════════════════════════════════════════════════

const migration002Up = `
-- Append-only log of every fallback save, kept so an operator can replay
-- degraded-mode writes into the remote store after an outage.
CREATE TABLE IF NOT EXISTS fallback_document_history (
    id BIGSERIAL PRIMARY KEY,
    key TEXT NOT NULL,
    content JSONB NOT NULL,
    saved_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_fallback_history_key_saved
    ON fallback_document_history(key, saved_at DESC);
`

const migration002Down = `
DROP TABLE IF EXISTS fallback_document_history;
`
