package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/OccupiedPorcupine/beat-your-meet-sub000/pkg/minutes"
	"github.com/OccupiedPorcupine/beat-your-meet-sub000/pkg/types"
)

// ArchiveImpl is the utterance archive backed by a PostgreSQL utterances
// table with a GIN full-text search index.
//
// Obtain one via [Store.Archive] rather than constructing directly.
// All methods are safe for concurrent use.
type ArchiveImpl struct {
	pool *pgxpool.Pool
}

// Append implements [minutes.Archive]. It appends entry to the utterances
// table under roomID.
func (a *ArchiveImpl) Append(ctx context.Context, roomID string, entry types.TranscriptEntry) error {
	const q = `
		INSERT INTO utterances
		    (room_id, speaker_id, speaker_name, text, raw_text, is_agent, timestamp)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := a.pool.Exec(ctx, q,
		roomID,
		entry.SpeakerID,
		entry.SpeakerName,
		entry.Text,
		entry.RawText,
		entry.IsAgent,
		entry.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("archive: append: %w", err)
	}
	return nil
}

// Recent implements [minutes.Archive]. It returns all entries for roomID
// whose timestamp is no earlier than time.Now()-window, ordered
// chronologically (oldest first).
func (a *ArchiveImpl) Recent(ctx context.Context, roomID string, window time.Duration) ([]types.TranscriptEntry, error) {
	const q = `
		SELECT speaker_id, speaker_name, text, raw_text, is_agent, timestamp
		FROM   utterances
		WHERE  room_id   = $1
		  AND  timestamp >= now() - ($2::bigint * interval '1 microsecond')
		ORDER  BY timestamp`

	rows, err := a.pool.Query(ctx, q, roomID, window.Microseconds())
	if err != nil {
		return nil, fmt.Errorf("archive: recent: %w", err)
	}
	return collectUtterances(rows)
}

// Search implements [minutes.Archive]. It performs a PostgreSQL full-text
// search over the text column and applies optional filters from opts.
//
// The query is passed to plainto_tsquery so no special operator syntax is required.
func (a *ArchiveImpl) Search(ctx context.Context, query string, opts minutes.SearchOpts) ([]types.TranscriptEntry, error) {
	args := []any{query} // $1 = FTS query string
	next := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	conditions := []string{
		"to_tsvector('english', text) @@ plainto_tsquery('english', $1)",
	}
	if opts.RoomID != "" {
		conditions = append(conditions, "room_id = "+next(opts.RoomID))
	}
	if !opts.After.IsZero() {
		conditions = append(conditions, "timestamp > "+next(opts.After))
	}
	if !opts.Before.IsZero() {
		conditions = append(conditions, "timestamp < "+next(opts.Before))
	}
	if opts.SpeakerID != "" {
		conditions = append(conditions, "speaker_id = "+next(opts.SpeakerID))
	}

	q := "SELECT speaker_id, speaker_name, text, raw_text, is_agent, timestamp\n" +
		"FROM   utterances\n" +
		"WHERE  " + strings.Join(conditions, "\n  AND  ") + "\n" +
		"ORDER  BY timestamp"

	if opts.Limit > 0 {
		args = append(args, opts.Limit)
		q += fmt.Sprintf("\nLIMIT $%d", len(args))
	}

	rows, err := a.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("archive: search: %w", err)
	}
	return collectUtterances(rows)
}

// collectUtterances scans pgx rows into a slice of TranscriptEntry values.
func collectUtterances(rows pgx.Rows) ([]types.TranscriptEntry, error) {
	entries, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (types.TranscriptEntry, error) {
		var e types.TranscriptEntry
		if err := row.Scan(
			&e.SpeakerID,
			&e.SpeakerName,
			&e.Text,
			&e.RawText,
			&e.IsAgent,
			&e.Timestamp,
		); err != nil {
			return types.TranscriptEntry{}, err
		}
		return e, nil
	})
	if err != nil {
		return nil, fmt.Errorf("archive: scan rows: %w", err)
	}
	if entries == nil {
		entries = []types.TranscriptEntry{}
	}
	return entries, nil
}
