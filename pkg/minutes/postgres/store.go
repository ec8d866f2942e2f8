package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgxvec "github.com/pgvector/pgvector-go/pgx"

	"github.com/OccupiedPorcupine/beat-your-meet-sub000/pkg/minutes"
)

// Compile-time interface checks.
//
// Archive and SemanticIndex both define a method named Search but with
// different signatures. Go does not allow a single struct to implement both
// simultaneously, so they are exposed as sub-types via [Store.Archive] and
// [Store.Index].
//
// DocumentSink has no conflicting method names and is implemented directly
// on *Store.
var (
	_ minutes.DocumentSink  = (*Store)(nil)
	_ minutes.Archive       = (*ArchiveImpl)(nil)
	_ minutes.SemanticIndex = (*SemanticIndexImpl)(nil)
)

// Store is the central PostgreSQL-backed minutes store. It holds a single
// [pgxpool.Pool] and exposes the three persistence concerns:
//
//   - Store itself implements [minutes.DocumentSink]
//   - [Store.Archive] returns an [ArchiveImpl] implementing [minutes.Archive]
//   - [Store.Index] returns a [SemanticIndexImpl] implementing [minutes.SemanticIndex]
//
// All operations are safe for concurrent use.
type Store struct {
	pool     *pgxpool.Pool
	archive  *ArchiveImpl
	semantic *SemanticIndexImpl
}

// NewStore creates a new Store, establishes a connection pool to the
// PostgreSQL database at dsn, registers pgvector types on every connection,
// and runs [Migrate] to ensure all required tables and extensions exist.
//
// embeddingDimensions must match the output dimension of the embedding model
// used to produce [minutes.ItemChunk.Embedding] values (e.g., 1536 for OpenAI
// text-embedding-3-small). Changing this value after the first migration
// requires a manual schema change.
func NewStore(ctx context.Context, dsn string, embeddingDimensions int) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("minutes store: parse dsn: %w", err)
	}

	// Register pgvector types on every new connection so that vector columns
	// can be scanned into and inserted from pgvector.Vector values.
	cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvec.RegisterTypes(ctx, conn)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("minutes store: create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("minutes store: ping: %w", err)
	}

	if err := Migrate(ctx, pool, embeddingDimensions); err != nil {
		pool.Close()
		return nil, fmt.Errorf("minutes store: migrate: %w", err)
	}

	return &Store{
		pool:     pool,
		archive:  &ArchiveImpl{pool: pool},
		semantic: &SemanticIndexImpl{pool: pool},
	}, nil
}

// Archive returns the utterance archive implementation which satisfies [minutes.Archive].
func (s *Store) Archive() *ArchiveImpl { return s.archive }

// Index returns the semantic index implementation which satisfies [minutes.SemanticIndex].
func (s *Store) Index() *SemanticIndexImpl { return s.semantic }

// Ping verifies that the database is reachable. Intended for readiness
// checks.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases all connections held by the underlying connection pool.
// It should be called when the Store is no longer needed, typically via defer.
func (s *Store) Close() {
	s.pool.Close()
}
