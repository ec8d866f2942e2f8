// Package mock provides in-memory test doubles for the minutes interfaces.
//
// Each mock records every method call for assertion in tests and exposes
// exported fields that control what the mock returns. All mocks are safe for
// concurrent use via an internal [sync.Mutex].
//
// Typical usage:
//
//	sink := &mock.DocumentSink{}
//
//	// inject sink into the system under test …
//
//	if got := sink.CallCount("Upload"); got != 4 {
//	    t.Errorf("expected 4 Upload calls, got %d", got)
//	}
package mock

import (
	"context"
	"sync"
	"time"

	"github.com/OccupiedPorcupine/beat-your-meet-sub000/pkg/minutes"
	"github.com/OccupiedPorcupine/beat-your-meet-sub000/pkg/types"
)

// Call records the name and arguments of a single method invocation.
type Call struct {
	// Method is the name of the interface method that was called.
	Method string

	// Args holds the non-context arguments passed to the method, in order.
	Args []any
}

// ─────────────────────────────────────────────────────────────────────────────
// DocumentSink mock
// ─────────────────────────────────────────────────────────────────────────────

// DocumentSink is a configurable test double for [minutes.DocumentSink].
// All exported *Err fields default to nil (success); all exported *Result
// fields default to nil (empty slice returned).
type DocumentSink struct {
	mu sync.Mutex

	// calls records every method invocation in order.
	calls []Call

	// UploadErr is returned by [DocumentSink.Upload] when non-nil.
	UploadErr error

	// DocumentsResult is returned by [DocumentSink.Documents].
	// When nil, Documents returns an empty non-nil slice.
	DocumentsResult []minutes.Document

	// DocumentsErr is returned by [DocumentSink.Documents] when non-nil.
	DocumentsErr error
}

// Calls returns a copy of all recorded method invocations.
func (m *DocumentSink) Calls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Call, len(m.calls))
	copy(out, m.calls)
	return out
}

// CallCount returns how many times the named method was invoked.
func (m *DocumentSink) CallCount(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.calls {
		if c.Method == method {
			n++
		}
	}
	return n
}

// Uploaded returns the documents passed to Upload, in call order.
func (m *DocumentSink) Uploaded() []minutes.Document {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []minutes.Document
	for _, c := range m.calls {
		if c.Method == "Upload" {
			out = append(out, c.Args[0].(minutes.Document))
		}
	}
	return out
}

// Reset clears all recorded calls without altering response configuration.
func (m *DocumentSink) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = nil
}

// Upload implements [minutes.DocumentSink].
func (m *DocumentSink) Upload(_ context.Context, doc minutes.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, Call{Method: "Upload", Args: []any{doc}})
	return m.UploadErr
}

// Documents implements [minutes.DocumentSink].
func (m *DocumentSink) Documents(_ context.Context, roomID string) ([]minutes.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, Call{Method: "Documents", Args: []any{roomID}})
	if m.DocumentsResult == nil {
		return []minutes.Document{}, m.DocumentsErr
	}
	out := make([]minutes.Document, len(m.DocumentsResult))
	copy(out, m.DocumentsResult)
	return out, m.DocumentsErr
}

// Ensure DocumentSink satisfies the interface at compile time.
var _ minutes.DocumentSink = (*DocumentSink)(nil)

// ─────────────────────────────────────────────────────────────────────────────
// Archive mock
// ─────────────────────────────────────────────────────────────────────────────

// Archive is a configurable test double for [minutes.Archive].
type Archive struct {
	mu sync.Mutex

	calls []Call

	// AppendErr is returned by [Archive.Append] when non-nil.
	AppendErr error

	// RecentResult is returned by [Archive.Recent].
	// When nil, Recent returns an empty non-nil slice.
	RecentResult []types.TranscriptEntry

	// RecentErr is returned by [Archive.Recent] when non-nil.
	RecentErr error

	// SearchResult is returned by [Archive.Search].
	// When nil, Search returns an empty non-nil slice.
	SearchResult []types.TranscriptEntry

	// SearchErr is returned by [Archive.Search] when non-nil.
	SearchErr error
}

// Calls returns a copy of all recorded method invocations.
func (m *Archive) Calls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Call, len(m.calls))
	copy(out, m.calls)
	return out
}

// CallCount returns how many times the named method was invoked.
func (m *Archive) CallCount(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.calls {
		if c.Method == method {
			n++
		}
	}
	return n
}

// Appended returns the entries passed to Append, in call order.
func (m *Archive) Appended() []types.TranscriptEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []types.TranscriptEntry
	for _, c := range m.calls {
		if c.Method == "Append" {
			out = append(out, c.Args[1].(types.TranscriptEntry))
		}
	}
	return out
}

// Reset clears all recorded calls without altering response configuration.
func (m *Archive) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = nil
}

// Append implements [minutes.Archive].
func (m *Archive) Append(_ context.Context, roomID string, entry types.TranscriptEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, Call{Method: "Append", Args: []any{roomID, entry}})
	return m.AppendErr
}

// Recent implements [minutes.Archive].
func (m *Archive) Recent(_ context.Context, roomID string, window time.Duration) ([]types.TranscriptEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, Call{Method: "Recent", Args: []any{roomID, window}})
	if m.RecentResult == nil {
		return []types.TranscriptEntry{}, m.RecentErr
	}
	out := make([]types.TranscriptEntry, len(m.RecentResult))
	copy(out, m.RecentResult)
	return out, m.RecentErr
}

// Search implements [minutes.Archive].
func (m *Archive) Search(_ context.Context, query string, opts minutes.SearchOpts) ([]types.TranscriptEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, Call{Method: "Search", Args: []any{query, opts}})
	if m.SearchResult == nil {
		return []types.TranscriptEntry{}, m.SearchErr
	}
	out := make([]types.TranscriptEntry, len(m.SearchResult))
	copy(out, m.SearchResult)
	return out, m.SearchErr
}

// Ensure Archive satisfies the interface at compile time.
var _ minutes.Archive = (*Archive)(nil)

// ─────────────────────────────────────────────────────────────────────────────
// SemanticIndex mock
// ─────────────────────────────────────────────────────────────────────────────

// SemanticIndex is a configurable test double for [minutes.SemanticIndex].
type SemanticIndex struct {
	mu sync.Mutex

	calls []Call

	// IndexChunkErr is returned by [SemanticIndex.IndexChunk] when non-nil.
	IndexChunkErr error

	// SearchResult is returned by [SemanticIndex.Search].
	// When nil, Search returns an empty non-nil slice.
	SearchResult []minutes.ChunkResult

	// SearchErr is returned by [SemanticIndex.Search] when non-nil.
	SearchErr error
}

// Calls returns a copy of all recorded method invocations.
func (m *SemanticIndex) Calls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Call, len(m.calls))
	copy(out, m.calls)
	return out
}

// CallCount returns how many times the named method was invoked.
func (m *SemanticIndex) CallCount(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.calls {
		if c.Method == method {
			n++
		}
	}
	return n
}

// Indexed returns the chunks passed to IndexChunk, in call order.
func (m *SemanticIndex) Indexed() []minutes.ItemChunk {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []minutes.ItemChunk
	for _, c := range m.calls {
		if c.Method == "IndexChunk" {
			out = append(out, c.Args[0].(minutes.ItemChunk))
		}
	}
	return out
}

// Reset clears all recorded calls without altering response configuration.
func (m *SemanticIndex) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = nil
}

// IndexChunk implements [minutes.SemanticIndex].
func (m *SemanticIndex) IndexChunk(_ context.Context, chunk minutes.ItemChunk) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, Call{Method: "IndexChunk", Args: []any{chunk}})
	return m.IndexChunkErr
}

// Search implements [minutes.SemanticIndex].
func (m *SemanticIndex) Search(_ context.Context, embedding []float32, topK int, filter minutes.ChunkFilter) ([]minutes.ChunkResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, Call{Method: "Search", Args: []any{embedding, topK, filter}})
	if m.SearchResult == nil {
		return []minutes.ChunkResult{}, m.SearchErr
	}
	out := make([]minutes.ChunkResult, len(m.SearchResult))
	copy(out, m.SearchResult)
	return out, m.SearchErr
}

// Ensure SemanticIndex satisfies the interface at compile time.
var _ minutes.SemanticIndex = (*SemanticIndex)(nil)
