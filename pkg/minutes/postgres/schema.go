// Package postgres provides a PostgreSQL-backed implementation of the minutes
// persistence layer (document sink, utterance archive, semantic index).
//
// All three concerns share a single [pgxpool.Pool] connection pool. The
// pgvector extension must be available in the target database; [Migrate]
// installs it automatically via CREATE EXTENSION IF NOT EXISTS.
//
// Usage:
//
//	store, err := postgres.NewStore(ctx, dsn, 1536)
//	if err != nil { … }
//
//	// documents
//	_ = store.Upload(ctx, doc)
//
//	// archive
//	_ = store.Archive().Append(ctx, roomID, entry)
//
//	// semantic index
//	_ = store.Index().IndexChunk(ctx, chunk)
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ─────────────────────────────────────────────────────────────────────────────
// DDL — documents
// ─────────────────────────────────────────────────────────────────────────────

const ddlDocuments = `
CREATE TABLE IF NOT EXISTS documents (
    room_id     TEXT         NOT NULL,
    filename    TEXT         NOT NULL,
    title       TEXT         NOT NULL DEFAULT '',
    markdown    TEXT         NOT NULL,
    created_at  TIMESTAMPTZ  NOT NULL DEFAULT now(),
    updated_at  TIMESTAMPTZ  NOT NULL DEFAULT now(),
    PRIMARY KEY (room_id, filename)
);
`

// ─────────────────────────────────────────────────────────────────────────────
// DDL — utterance archive
// ─────────────────────────────────────────────────────────────────────────────

const ddlUtterances = `
CREATE TABLE IF NOT EXISTS utterances (
    id           BIGSERIAL    PRIMARY KEY,
    room_id      TEXT         NOT NULL,
    speaker_id   TEXT         NOT NULL DEFAULT '',
    speaker_name TEXT         NOT NULL DEFAULT '',
    text         TEXT         NOT NULL,
    raw_text     TEXT         NOT NULL DEFAULT '',
    is_agent     BOOLEAN      NOT NULL DEFAULT FALSE,
    timestamp    TIMESTAMPTZ  NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_utterances_room_id
    ON utterances (room_id);

CREATE INDEX IF NOT EXISTS idx_utterances_room_timestamp
    ON utterances (room_id, timestamp);

CREATE INDEX IF NOT EXISTS idx_utterances_fts
    ON utterances USING GIN (to_tsvector('english', text));
`

// ddlItemChunks returns the semantic index DDL with the embedding dimension
// substituted. The vector dimension is baked into the column type at schema
// creation time.
func ddlItemChunks(embeddingDimensions int) string {
	return fmt.Sprintf(`
CREATE EXTENSION IF NOT EXISTS vector;

CREATE TABLE IF NOT EXISTS item_chunks (
    id          TEXT         PRIMARY KEY,
    room_id     TEXT         NOT NULL,
    item_id     INT          NOT NULL DEFAULT 0,
    topic       TEXT         NOT NULL DEFAULT '',
    content     TEXT         NOT NULL,
    embedding   vector(%d),
    timestamp   TIMESTAMPTZ  NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_item_chunks_room_id
    ON item_chunks (room_id);

CREATE INDEX IF NOT EXISTS idx_item_chunks_embedding
    ON item_chunks USING hnsw (embedding vector_cosine_ops);
`, embeddingDimensions)
}

// Migrate creates or ensures all required database tables and extensions exist.
// It is idempotent (CREATE TABLE IF NOT EXISTS / CREATE INDEX IF NOT EXISTS)
// and safe to call on every application start.
//
// embeddingDimensions must match the vector model configured for your
// deployment (e.g., 1536 for OpenAI text-embedding-3-small, 768 for
// nomic-embed-text). Changing this value after the first migration requires a
// manual schema update.
func Migrate(ctx context.Context, pool *pgxpool.Pool, embeddingDimensions int) error {
	statements := []string{
		ddlDocuments,
		ddlUtterances,
		ddlItemChunks(embeddingDimensions),
	}

	for _, stmt := range statements {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("minutes migrate: %w", err)
		}
	}
	return nil
}
