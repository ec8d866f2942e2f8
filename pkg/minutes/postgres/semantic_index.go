package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"

	"github.com/OccupiedPorcupine/beat-your-meet-sub000/pkg/minutes"
)

// SemanticIndexImpl is the meeting-memory vector index backed by a PostgreSQL
// item_chunks table with a pgvector HNSW index for fast approximate
// nearest-neighbour search.
//
// Obtain one via [Store.Index] rather than constructing directly.
// All methods are safe for concurrent use.
type SemanticIndexImpl struct {
	pool *pgxpool.Pool
}

// IndexChunk implements [minutes.SemanticIndex]. It upserts a pre-embedded
// [minutes.ItemChunk] into the item_chunks table. If a chunk with the same ID
// already exists it is completely replaced.
func (s *SemanticIndexImpl) IndexChunk(ctx context.Context, chunk minutes.ItemChunk) error {
	const q = `
		INSERT INTO item_chunks
		    (id, room_id, item_id, topic, content, embedding, timestamp)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
		    room_id   = EXCLUDED.room_id,
		    item_id   = EXCLUDED.item_id,
		    topic     = EXCLUDED.topic,
		    content   = EXCLUDED.content,
		    embedding = EXCLUDED.embedding,
		    timestamp = EXCLUDED.timestamp`

	vec := pgvector.NewVector(chunk.Embedding)
	_, err := s.pool.Exec(ctx, q,
		chunk.ID,
		chunk.RoomID,
		chunk.ItemID,
		chunk.Topic,
		chunk.Content,
		vec,
		chunk.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("semantic index: index chunk: %w", err)
	}
	return nil
}

// Search implements [minutes.SemanticIndex]. It finds the topK chunks whose
// embeddings are closest (cosine distance) to the supplied query embedding,
// optionally filtered by filter.
//
// Results are ordered by ascending cosine distance (most similar first).
func (s *SemanticIndexImpl) Search(ctx context.Context, embedding []float32, topK int, filter minutes.ChunkFilter) ([]minutes.ChunkResult, error) {
	queryVec := pgvector.NewVector(embedding)

	args := []any{queryVec} // $1 = query vector
	next := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	var conditions []string
	if filter.RoomID != "" {
		conditions = append(conditions, "room_id = "+next(filter.RoomID))
	}
	if filter.Topic != "" {
		conditions = append(conditions, "topic = "+next(filter.Topic))
	}
	if !filter.After.IsZero() {
		conditions = append(conditions, "timestamp > "+next(filter.After))
	}
	if !filter.Before.IsZero() {
		conditions = append(conditions, "timestamp < "+next(filter.Before))
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = "WHERE " + strings.Join(conditions, "\n  AND ")
	}

	args = append(args, topK)
	limitArg := fmt.Sprintf("$%d", len(args))

	q := fmt.Sprintf(`
		SELECT id, room_id, item_id, topic, content, embedding, timestamp,
		       embedding <=> $1 AS distance
		FROM   item_chunks
		%s
		ORDER  BY distance
		LIMIT  %s`, whereClause, limitArg)

	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("semantic index: search: %w", err)
	}

	results, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (minutes.ChunkResult, error) {
		var (
			cr  minutes.ChunkResult
			vec pgvector.Vector
		)
		if err := row.Scan(
			&cr.Chunk.ID,
			&cr.Chunk.RoomID,
			&cr.Chunk.ItemID,
			&cr.Chunk.Topic,
			&cr.Chunk.Content,
			&vec,
			&cr.Chunk.Timestamp,
			&cr.Distance,
		); err != nil {
			return minutes.ChunkResult{}, err
		}
		cr.Chunk.Embedding = vec.Slice()
		return cr, nil
	})
	if err != nil {
		return nil, fmt.Errorf("semantic index: scan rows: %w", err)
	}
	if results == nil {
		results = []minutes.ChunkResult{}
	}
	return results, nil
}
