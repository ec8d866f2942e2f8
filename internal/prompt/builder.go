// Package prompt produces everything the facilitator says or sends to a
// language model.
//
// Two halves:
//
//  1. [Builder.Assemble] fetches the meeting memory for a freeform reply:
//     the recent utterance archive and, when semantic memory is configured,
//     the chunks from earlier agenda items most similar to the participant's
//     question. The two fetches run concurrently.
//  2. [FormatSystemPrompt] renders an [agenda.Snapshot] plus a [Memory] into
//     the system prompt string for the large-model call.
//
// The fixed spoken lines (intro, time warning, time query reply, transition,
// wrap-up, acknowledgements) live in phrases.go and never involve a model.
package prompt

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/OccupiedPorcupine/beat-your-meet-sub000/pkg/minutes"
	"github.com/OccupiedPorcupine/beat-your-meet-sub000/pkg/provider/embeddings"
	"github.com/OccupiedPorcupine/beat-your-meet-sub000/pkg/types"
)

// ─────────────────────────────────────────────────────────────────────────────
// Public types
// ─────────────────────────────────────────────────────────────────────────────

// Memory is the retrieved context injected into a freeform-reply prompt.
// All fields are optional — callers should check for nil/empty before using.
type Memory struct {
	// Recent is the last few minutes of archived conversation, capped at the
	// builder's maxEntries setting.
	Recent []types.TranscriptEntry

	// Related holds the indexed agenda-item chunks most similar to the query,
	// ordered most similar first. Empty when semantic memory is not
	// configured or the query was blank.
	Related []minutes.ChunkResult

	// AssemblyDuration records how long [Builder.Assemble] took.
	AssemblyDuration time.Duration
}

// ─────────────────────────────────────────────────────────────────────────────
// Builder
// ─────────────────────────────────────────────────────────────────────────────

// Builder concurrently fetches the memory components and combines them into a
// [Memory].
type Builder struct {
	archive      minutes.Archive
	index        minutes.SemanticIndex
	embedder     embeddings.Provider
	recentWindow time.Duration
	maxEntries   int
	topK         int
}

// Option is a functional option for [NewBuilder].
type Option func(*Builder)

// WithRecentWindow sets how far back in time [Builder.Assemble] looks when
// fetching the recent conversation. Defaults to 2 minutes.
func WithRecentWindow(d time.Duration) Option {
	return func(b *Builder) { b.recentWindow = d }
}

// WithMaxEntries caps the number of transcript entries included in
// [Memory.Recent]. When the archive returns more than n entries the
// most-recent n are kept. Defaults to 50.
func WithMaxEntries(n int) Option {
	return func(b *Builder) { b.maxEntries = n }
}

// WithTopK sets how many semantic-search results are requested for
// [Memory.Related]. Defaults to 3.
func WithTopK(k int) Option {
	return func(b *Builder) { b.topK = k }
}

// NewBuilder creates a [Builder] with sensible defaults. Apply [Option]
// values to override them.
//
// archive must be non-nil. index and embedder may be nil when semantic
// memory is not configured; Assemble then returns only the recent
// conversation.
func NewBuilder(archive minutes.Archive, index minutes.SemanticIndex, embedder embeddings.Provider, opts ...Option) *Builder {
	b := &Builder{
		archive:      archive,
		index:        index,
		embedder:     embedder,
		recentWindow: 2 * time.Minute,
		maxEntries:   50,
		topK:         3,
	}
	for _, o := range opts {
		o(b)
	}
	return b
}

// Assemble fetches the memory components for one freeform reply and returns
// a fully populated [Memory].
//
// The recent-conversation fetch and the embed-then-search fetch run in
// parallel via errgroup. If any fetch returns an error, assembly is aborted
// and that error is returned — wrapped with a "prompt: " prefix. Callers on
// the voice path should log the error and fall back to a nil [Memory] rather
// than dropping the reply.
//
// Assemble respects context cancellation on all underlying I/O calls.
func (b *Builder) Assemble(ctx context.Context, roomID, query string) (*Memory, error) {
	start := time.Now()

	var (
		recent  []types.TranscriptEntry
		related []minutes.ChunkResult
	)

	eg, egCtx := errgroup.WithContext(ctx)

	// ── goroutine 1: recent conversation from the archive ────────────────────
	eg.Go(func() error {
		entries, err := b.archive.Recent(egCtx, roomID, b.recentWindow)
		if err != nil {
			return fmt.Errorf("prompt: recent transcript for room %q: %w", roomID, err)
		}
		// Truncate to the most-recent maxEntries entries.
		if len(entries) > b.maxEntries {
			entries = entries[len(entries)-b.maxEntries:]
		}
		recent = entries
		return nil
	})

	// ── goroutine 2: semantically similar earlier discussion ─────────────────
	if b.index != nil && b.embedder != nil && strings.TrimSpace(query) != "" {
		eg.Go(func() error {
			vec, err := b.embedder.Embed(egCtx, query)
			if err != nil {
				return fmt.Errorf("prompt: embed query: %w", err)
			}
			results, err := b.index.Search(egCtx, vec, b.topK, minutes.ChunkFilter{RoomID: roomID})
			if err != nil {
				return fmt.Errorf("prompt: semantic search for room %q: %w", roomID, err)
			}
			related = results
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		return nil, err
	}

	return &Memory{
		Recent:           recent,
		Related:          related,
		AssemblyDuration: time.Since(start),
	}, nil
}
