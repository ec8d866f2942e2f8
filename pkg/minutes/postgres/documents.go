package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/OccupiedPorcupine/beat-your-meet-sub000/pkg/minutes"
)

// Upload implements [minutes.DocumentSink]. It upserts doc into the documents
// table keyed on (room_id, filename): a repeat upload replaces the stored
// title and body and refreshes updated_at, which is what makes a retried or
// duplicate delivery from the assembler harmless.
func (s *Store) Upload(ctx context.Context, doc minutes.Document) error {
	const q = `
		INSERT INTO documents (room_id, filename, title, markdown)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (room_id, filename) DO UPDATE SET
		    title      = EXCLUDED.title,
		    markdown   = EXCLUDED.markdown,
		    updated_at = now()`

	_, err := s.pool.Exec(ctx, q, doc.RoomID, doc.Filename, doc.Title, doc.Markdown)
	if err != nil {
		return fmt.Errorf("document sink: upload: %w", err)
	}
	return nil
}

// Documents implements [minutes.DocumentSink]. It returns all documents
// stored for roomID, ordered by filename.
func (s *Store) Documents(ctx context.Context, roomID string) ([]minutes.Document, error) {
	const q = `
		SELECT room_id, filename, title, markdown, created_at, updated_at
		FROM   documents
		WHERE  room_id = $1
		ORDER  BY filename`

	rows, err := s.pool.Query(ctx, q, roomID)
	if err != nil {
		return nil, fmt.Errorf("document sink: list: %w", err)
	}

	docs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (minutes.Document, error) {
		var d minutes.Document
		err := row.Scan(&d.RoomID, &d.Filename, &d.Title, &d.Markdown, &d.CreatedAt, &d.UpdatedAt)
		return d, err
	})
	if err != nil {
		return nil, fmt.Errorf("document sink: scan rows: %w", err)
	}
	if docs == nil {
		docs = []minutes.Document{}
	}
	return docs, nil
}
