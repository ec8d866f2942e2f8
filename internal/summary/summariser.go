// Package summary extracts structured notes from a finished agenda item.
//
// The [Summariser] runs off the control task after each item advance: the fast
// model is asked for key points, decisions, and action items through a forced
// tool call, and the result is attached to the completed item and folded into
// the facilitator's meeting memory. It never fails upward. A timeout, a
// transport error, or a malformed response is logged and yields empty notes,
// exactly once per item, with no retry.
package summary

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/OccupiedPorcupine/beat-your-meet-sub000/internal/agenda"
	"github.com/OccupiedPorcupine/beat-your-meet-sub000/pkg/minutes"
	"github.com/OccupiedPorcupine/beat-your-meet-sub000/pkg/provider/embeddings"
	"github.com/OccupiedPorcupine/beat-your-meet-sub000/pkg/provider/llm"
	"github.com/OccupiedPorcupine/beat-your-meet-sub000/pkg/types"
)

// toolName is the forced tool the fast model must answer with.
const toolName = "capture_item_notes"

// defaultTimeout bounds one notes extraction, model call included.
const defaultTimeout = 15 * time.Second

// notesPrompt instructs the fast model. The transcript follows as the user
// message.
const notesPrompt = `You extract structured notes from one agenda item of a meeting transcript.
Capture only what was actually said: the key points discussed, any decisions
reached, and any action items with their owner when one was named. Answer
with the capture_item_notes tool; do not reply with text. Leave a field
empty rather than inventing content.`

// Summariser turns a per-item transcript into [agenda.ItemNotes].
type Summariser struct {
	fast     llm.Provider
	index    minutes.SemanticIndex
	embedder embeddings.Provider
	timeout  time.Duration
}

// Option is a functional option for [New].
type Option func(*Summariser)

// WithTimeout overrides the per-extraction deadline.
func WithTimeout(d time.Duration) Option {
	return func(s *Summariser) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithSemanticIndex enables meeting-memory indexing: extracted notes are
// embedded and written to the index so later freeform questions can recall
// them. Both arguments must be non-nil for indexing to happen.
func WithSemanticIndex(index minutes.SemanticIndex, embedder embeddings.Provider) Option {
	return func(s *Summariser) {
		s.index = index
		s.embedder = embedder
	}
}

// New constructs a Summariser over the fast model.
func New(fast llm.Provider, opts ...Option) *Summariser {
	s := &Summariser{
		fast:    fast,
		timeout: defaultTimeout,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Summarise extracts notes from one completed item's transcript. It always
// returns usable notes: on any failure the notes are empty and the failure is
// logged. An empty transcript skips the model entirely.
//
// The caller runs this on a background goroutine and posts the result back to
// the control task; Summarise itself holds no meeting state.
func (s *Summariser) Summarise(ctx context.Context, roomID string, item agenda.Item, entries []types.TranscriptEntry) agenda.ItemNotes {
	if len(entries) == 0 {
		return agenda.ItemNotes{}
	}

	lmCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	resp, err := s.fast.Complete(lmCtx, llm.CompletionRequest{
		SystemPrompt: notesPrompt,
		Messages: []types.Message{
			{Role: "user", Content: formatItemTranscript(item.Topic, entries)},
		},
		Tools:       []types.ToolDefinition{notesTool()},
		ToolChoice:  toolName,
		Temperature: 0,
	})
	if err != nil {
		slog.Warn("summary: notes extraction failed",
			"room_id", roomID, "topic", item.Topic, "err", err)
		return agenda.ItemNotes{}
	}

	notes, err := parseNotes(resp)
	if err != nil {
		slog.Warn("summary: malformed notes response",
			"room_id", roomID, "topic", item.Topic, "err", err)
		return agenda.ItemNotes{}
	}

	if !notes.Empty() {
		s.indexNotes(ctx, roomID, item, notes)
	}
	return notes
}

// indexNotes embeds the rendered notes and writes them to the semantic index.
// Best effort: failures are logged and the notes are still returned to the
// caller.
func (s *Summariser) indexNotes(ctx context.Context, roomID string, item agenda.Item, notes agenda.ItemNotes) {
	if s.index == nil || s.embedder == nil {
		return
	}

	content := renderNotes(notes)

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	vec, err := s.embedder.Embed(ctx, content)
	if err != nil {
		slog.Warn("summary: embed notes", "room_id", roomID, "topic", item.Topic, "err", err)
		return
	}

	chunk := minutes.ItemChunk{
		ID:        fmt.Sprintf("%s/item-%d", roomID, item.ID),
		RoomID:    roomID,
		ItemID:    item.ID,
		Topic:     item.Topic,
		Content:   content,
		Embedding: vec,
		Timestamp: time.Now(),
	}
	if err := s.index.IndexChunk(ctx, chunk); err != nil {
		slog.Warn("summary: index notes", "room_id", roomID, "topic", item.Topic, "err", err)
	}
}

// notesArgs is the wire shape of the forced tool's arguments.
type notesArgs struct {
	KeyPoints   []string `json:"key_points"`
	Decisions   []string `json:"decisions"`
	ActionItems []string `json:"action_items"`
}

// parseNotes finds the forced tool call in the response and decodes it.
func parseNotes(resp *llm.CompletionResponse) (agenda.ItemNotes, error) {
	if resp == nil {
		return agenda.ItemNotes{}, errors.New("nil response")
	}
	for _, call := range resp.ToolCalls {
		if call.Name != toolName {
			continue
		}
		var args notesArgs
		if err := json.Unmarshal([]byte(call.Arguments), &args); err != nil {
			return agenda.ItemNotes{}, fmt.Errorf("decode %s arguments: %w", toolName, err)
		}
		return agenda.ItemNotes{
			KeyPoints:   cleanList(args.KeyPoints),
			Decisions:   cleanList(args.Decisions),
			ActionItems: cleanList(args.ActionItems),
		}, nil
	}
	return agenda.ItemNotes{}, fmt.Errorf("no %s call in response", toolName)
}

// cleanList trims entries and drops blank ones.
func cleanList(in []string) []string {
	var out []string
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

// formatItemTranscript renders the per-item transcript for the user message.
func formatItemTranscript(topic string, entries []types.TranscriptEntry) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Agenda item: %s\n\nTranscript:\n", topic)
	for _, e := range entries {
		speaker := e.SpeakerName
		if speaker == "" {
			speaker = e.SpeakerID
		}
		if speaker == "" {
			speaker = "Unknown"
		}
		fmt.Fprintf(&sb, "%s: %s\n", speaker, e.Text)
	}
	return sb.String()
}

// renderNotes flattens notes into the retrieval text stored in the semantic
// index. The same phrasing feeds the system-prompt memory sections, so a
// recalled chunk reads naturally inside a prompt.
func renderNotes(notes agenda.ItemNotes) string {
	var lines []string
	lines = append(lines, notes.KeyPoints...)
	for _, d := range notes.Decisions {
		lines = append(lines, "Decision: "+d)
	}
	for _, a := range notes.ActionItems {
		lines = append(lines, "Action: "+a)
	}
	return strings.Join(lines, "\n")
}

func notesTool() types.ToolDefinition {
	return types.ToolDefinition{
		Name:        toolName,
		Description: "Record the key points, decisions, and action items from the agenda item under discussion.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"key_points": map[string]any{
					"type":        "array",
					"items":       map[string]any{"type": "string"},
					"description": "Main points discussed, one short phrase each.",
				},
				"decisions": map[string]any{
					"type":        "array",
					"items":       map[string]any{"type": "string"},
					"description": "Decisions the group reached.",
				},
				"action_items": map[string]any{
					"type":        "array",
					"items":       map[string]any{"type": "string"},
					"description": "Agreed follow-ups, with the owner when one was named.",
				},
			},
			"required": []string{"key_points", "decisions", "action_items"},
		},
	}
}
