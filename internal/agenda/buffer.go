package agenda

import (
	"time"

	"github.com/OccupiedPorcupine/beat-your-meet-sub000/pkg/types"
)

// TranscriptBuffer holds the meeting's utterance history in two shapes: a
// rolling window of recent entries (bounded by age, evicted on every Add) and
// unbounded per-item stores keyed by agenda item ordinal. The rolling window
// feeds the speech gate and the tangent assessor; the per-item stores feed
// the item summariser and the transcript document.
//
// TranscriptBuffer is not safe for concurrent use. It is owned by the
// session's control task, like the rest of the meeting state.
type TranscriptBuffer struct {
	window  time.Duration
	clock   Clock
	rolling []types.TranscriptEntry
	byItem  map[int][]types.TranscriptEntry
}

// NewTranscriptBuffer creates a buffer whose rolling window retains entries
// for at most the given duration.
func NewTranscriptBuffer(window time.Duration, clock Clock) *TranscriptBuffer {
	return &TranscriptBuffer{
		window: window,
		clock:  clock,
		byItem: make(map[int][]types.TranscriptEntry),
	}
}

// Add appends entry to the rolling window and, when itemID >= 0, to that
// item's store. Rolling entries older than the window are evicted on every
// call; per-item stores are never evicted.
func (b *TranscriptBuffer) Add(itemID int, entry types.TranscriptEntry) {
	b.rolling = append(b.rolling, entry)
	b.evict()

	if itemID >= 0 {
		b.byItem[itemID] = append(b.byItem[itemID], entry)
	}
}

// Recent returns the rolling entries newer than the given window, in
// chronological order. A window larger than the buffer's own retention
// window returns everything retained.
func (b *TranscriptBuffer) Recent(window time.Duration) []types.TranscriptEntry {
	cutoff := b.clock.Now().Add(-window)

	start := len(b.rolling)
	for start > 0 && !b.rolling[start-1].Timestamp.Before(cutoff) {
		start--
	}

	out := make([]types.TranscriptEntry, len(b.rolling)-start)
	copy(out, b.rolling[start:])
	return out
}

// Item returns a copy of the transcript store for the given item ordinal,
// in chronological order. Unknown ordinals return an empty slice.
func (b *TranscriptBuffer) Item(itemID int) []types.TranscriptEntry {
	entries := b.byItem[itemID]
	out := make([]types.TranscriptEntry, len(entries))
	copy(out, entries)
	return out
}

// Len returns the number of entries currently retained in the rolling window.
func (b *TranscriptBuffer) Len() int {
	return len(b.rolling)
}

// evict removes rolling entries older than the retention window. Surviving
// entries are copied to a fresh backing array so evicted entries do not pin
// memory for the lifetime of the meeting.
func (b *TranscriptBuffer) evict() {
	cutoff := b.clock.Now().Add(-b.window)

	start := 0
	for start < len(b.rolling) && b.rolling[start].Timestamp.Before(cutoff) {
		start++
	}
	if start == 0 {
		return
	}

	fresh := make([]types.TranscriptEntry, len(b.rolling)-start)
	copy(fresh, b.rolling[start:])
	b.rolling = fresh
}
