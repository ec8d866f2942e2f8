package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/OccupiedPorcupine/beat-your-meet-sub000/pkg/minutes"
)

// fileSink is a [minutes.DocumentSink] that writes each document as a
// Markdown file under root/<room_id>/<filename>. It exists so a run without
// Postgres still lands the meeting documents somewhere; writing the same
// (room, filename) twice replaces the file, which preserves the sink's
// idempotence contract.
type fileSink struct {
	root string
}

var _ minutes.DocumentSink = (*fileSink)(nil)

func newFileSink(root string) (*fileSink, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create documents directory: %w", err)
	}
	return &fileSink{root: root}, nil
}

func (s *fileSink) Upload(_ context.Context, doc minutes.Document) error {
	if doc.RoomID == "" || doc.Filename == "" {
		return fmt.Errorf("filesink: room id and filename are required")
	}
	dir := filepath.Join(s.root, sanitize(doc.RoomID))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("filesink: create room directory: %w", err)
	}
	body := doc.Markdown
	if doc.Title != "" && !strings.HasPrefix(body, "# ") {
		body = "# " + doc.Title + "\n\n" + body
	}
	path := filepath.Join(dir, sanitize(doc.Filename))
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		return fmt.Errorf("filesink: write %s: %w", path, err)
	}
	return nil
}

func (s *fileSink) Documents(_ context.Context, roomID string) ([]minutes.Document, error) {
	dir := filepath.Join(s.root, sanitize(roomID))
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return []minutes.Document{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("filesink: read room directory: %w", err)
	}
	docs := make([]minutes.Document, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, fmt.Errorf("filesink: read %s: %w", e.Name(), err)
		}
		doc := minutes.Document{
			RoomID:   roomID,
			Filename: e.Name(),
			Markdown: string(data),
		}
		if info, err := e.Info(); err == nil {
			doc.UpdatedAt = info.ModTime()
		}
		docs = append(docs, doc)
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].Filename < docs[j].Filename })
	return docs, nil
}

// sanitize keeps path components inside the sink root. Room IDs are numeric
// channel IDs and filenames are pre-slugged, so this only guards against a
// hostile brief.
func sanitize(name string) string {
	name = strings.ReplaceAll(name, string(os.PathSeparator), "-")
	return strings.TrimLeft(name, ".")
}
