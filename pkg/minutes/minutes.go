// Package minutes defines the persistence layer for meeting records.
//
// Three concerns are covered, each behind its own interface:
//
//   - Document sink ([DocumentSink]): the final meeting documents built by
//     the assembler (transcript, summary, attendance, action items, custom).
//     Uploads are idempotent per (room, filename) so delivery can be retried.
//   - Utterance archive ([Archive]): append-only, time-ordered log of
//     everything said in a room, with recency-window retrieval and
//     full-text search.
//   - Semantic index ([SemanticIndex]): vector store for embedding-based
//     similarity search over per-item meeting chunks ("what did we decide
//     about the budget?").
//
// All interfaces are public so that external packages can supply alternative
// storage backends (Postgres/pgvector, in-memory, …) without depending on
// engine internals.
//
// The engine only ever writes during a live meeting and reads for prompt
// context and document assembly; nothing here is used to resurrect meeting
// state after a restart.
//
// Every implementation must be safe for concurrent use.
package minutes

import (
	"context"
	"time"

	"github.com/OccupiedPorcupine/beat-your-meet-sub000/pkg/types"
)

// ─────────────────────────────────────────────────────────────────────────────
// Document sink supporting types
// ─────────────────────────────────────────────────────────────────────────────

// Document is a rendered meeting document ready for delivery.
type Document struct {
	// RoomID is the room the document belongs to.
	RoomID string

	// Filename is the slugged file name (lowercase, hyphenated, ".md" suffix).
	// Together with RoomID it forms the document's identity: uploading the
	// same (RoomID, Filename) twice replaces the earlier upload.
	Filename string

	// Title is the human-readable document title.
	Title string

	// Markdown is the full document body.
	Markdown string

	// CreatedAt is when the document was first uploaded.
	// Populated by the store on read; ignored on upload.
	CreatedAt time.Time

	// UpdatedAt is when the document was last replaced.
	// Populated by the store on read; ignored on upload.
	UpdatedAt time.Time
}

// ─────────────────────────────────────────────────────────────────────────────
// Archive supporting types
// ─────────────────────────────────────────────────────────────────────────────

// SearchOpts configures a keyword / full-text search over archived utterances.
// All non-zero fields are applied as AND conditions.
type SearchOpts struct {
	// RoomID restricts the search to a single room.
	// An empty string searches across all rooms.
	RoomID string

	// After filters entries recorded after this instant (exclusive).
	// A zero Time disables the lower bound.
	After time.Time

	// Before filters entries recorded before this instant (exclusive).
	// A zero Time disables the upper bound.
	Before time.Time

	// SpeakerID restricts results to a specific speaker.
	// An empty string matches all speakers.
	SpeakerID string

	// Limit caps the number of results returned.
	// A value of 0 means the implementation may apply its own default.
	Limit int
}

// ─────────────────────────────────────────────────────────────────────────────
// Semantic index supporting types
// ─────────────────────────────────────────────────────────────────────────────

// ItemChunk is a processed segment of meeting content prepared for semantic
// indexing, typically the summary of a completed agenda item. A chunk carries
// its pre-computed embedding so the index does not need to re-embed on
// insertion.
type ItemChunk struct {
	// ID is the unique identifier for this chunk (e.g., "room-1/item-3").
	ID string

	// RoomID is the room this chunk belongs to.
	RoomID string

	// ItemID is the agenda item the chunk was produced from.
	ItemID int

	// Topic is the agenda item's topic label.
	Topic string

	// Content is the text of the chunk.
	Content string

	// Embedding is the vector representation of Content.
	// Dimension must match the index configuration (e.g., 1536 for OpenAI
	// text-embedding-3-small).
	Embedding []float32

	// Timestamp is when this chunk was recorded.
	Timestamp time.Time
}

// ChunkFilter narrows a semantic search to a subset of indexed chunks.
// All non-zero fields are applied as AND conditions.
type ChunkFilter struct {
	// RoomID restricts results to a single room.
	RoomID string

	// Topic restricts results to chunks produced from an agenda item with
	// this exact topic label.
	Topic string

	// After filters chunks recorded after this instant (exclusive).
	After time.Time

	// Before filters chunks recorded before this instant (exclusive).
	Before time.Time
}

// ChunkResult pairs a retrieved chunk with its vector-space distance from the
// query embedding. Lower Distance values indicate higher semantic similarity.
type ChunkResult struct {
	// Chunk is the retrieved segment.
	Chunk ItemChunk

	// Distance is the vector-space distance to the query embedding
	// (cosine distance for the Postgres backend).
	Distance float64
}

// ─────────────────────────────────────────────────────────────────────────────
// Document sink interface
// ─────────────────────────────────────────────────────────────────────────────

// DocumentSink receives the final meeting documents produced by the document
// assembler.
//
// Upload must be idempotent per (RoomID, Filename): delivering the same
// document twice, or a revised body under the same name, results in exactly
// one stored document. Implementations must be safe for concurrent use.
type DocumentSink interface {
	// Upload stores doc, replacing any earlier document with the same
	// (RoomID, Filename).
	Upload(ctx context.Context, doc Document) error

	// Documents returns all documents stored for roomID, ordered by filename.
	// Returns an empty (non-nil) slice when the room has none.
	Documents(ctx context.Context, roomID string) ([]Document, error)
}

// ─────────────────────────────────────────────────────────────────────────────
// Archive interface
// ─────────────────────────────────────────────────────────────────────────────

// Archive is the utterance archive: a time-ordered, append-only log of
// [types.TranscriptEntry] records for one or more rooms.
//
// Entries must be returned in chronological order unless otherwise specified.
// Implementations must be safe for concurrent use.
type Archive interface {
	// Append records entry in the archive for the given room.
	// roomID must be non-empty.
	// Returns an error only on persistent storage failure.
	Append(ctx context.Context, roomID string, entry types.TranscriptEntry) error

	// Recent returns all entries for the given room whose Timestamp is no
	// earlier than time.Now()-window.
	// Returns an empty (non-nil) slice when no matching entries exist.
	Recent(ctx context.Context, roomID string, window time.Duration) ([]types.TranscriptEntry, error)

	// Search performs keyword / full-text search over archived entries.
	// The query string is matched against the Text field.
	// opts refines the result set by time range, speaker, or room scope.
	// Returns an empty (non-nil) slice when no entries match.
	Search(ctx context.Context, query string, opts SearchOpts) ([]types.TranscriptEntry, error)
}

// ─────────────────────────────────────────────────────────────────────────────
// Semantic index interface
// ─────────────────────────────────────────────────────────────────────────────

// SemanticIndex is a vector store for embedding-based similarity search over
// per-item meeting chunks.
//
// Callers are responsible for producing embeddings before calling IndexChunk
// or Search. Implementations must be safe for concurrent use.
type SemanticIndex interface {
	// IndexChunk stores a pre-embedded [ItemChunk] in the vector index.
	// If a chunk with the same ID already exists it must be replaced (upsert).
	IndexChunk(ctx context.Context, chunk ItemChunk) error

	// Search finds the topK chunks whose embeddings are closest to the query
	// embedding, filtered by filter.
	// Results are ordered by ascending Distance (most similar first).
	// Returns an empty (non-nil) slice when no chunks match.
	Search(ctx context.Context, embedding []float32, topK int, filter ChunkFilter) ([]ChunkResult, error)
}
