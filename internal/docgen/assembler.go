// Package docgen assembles the post-meeting documents and delivers them to
// the document sink.
//
// The assembler is stateless: the session captures the meeting state into an
// [Input] on the control task, guards the once-per-meeting flag, and runs
// [Assembler.Assemble] in the background. The transcript and summary are
// always built; attendance, action items, and custom documents depend on
// what was requested and observed. Every document uploads independently, so
// one failed build or upload never blocks the rest.
package docgen

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/OccupiedPorcupine/beat-your-meet-sub000/internal/agenda"
	"github.com/OccupiedPorcupine/beat-your-meet-sub000/internal/observe"
	"github.com/OccupiedPorcupine/beat-your-meet-sub000/pkg/minutes"
	"github.com/OccupiedPorcupine/beat-your-meet-sub000/pkg/provider/llm"
	"github.com/OccupiedPorcupine/beat-your-meet-sub000/pkg/types"
)

// defaultDraftTimeout bounds one custom-document draft.
const defaultDraftTimeout = 30 * time.Second

const draftPrompt = `You draft a written meeting document. Using the full transcript provided, produce the document the requester described. Output only the document body in Markdown, with no preamble and no commentary.`

// Input is the meeting state the assembler works from, captured once so
// assembly can run off the control task.
type Input struct {
	// RoomID identifies the room the documents belong to.
	RoomID string

	// Title is the meeting title.
	Title string

	// StartedAt anchors the transcript's clock offsets.
	StartedAt time.Time

	// Items is the final agenda, with notes where the summariser produced
	// them.
	Items []agenda.Item

	// Transcripts maps item ID to that item's transcript.
	Transcripts map[int][]types.TranscriptEntry

	// Participants is everyone observed in the room.
	Participants []agenda.Participation

	// Requests are the queued document requests.
	Requests []agenda.DocumentRequest
}

// Capture builds an [Input] from the machine. Like every other machine
// access it must run on the session control task.
func Capture(m *agenda.Machine, roomID string) Input {
	items := m.Items()
	tr := make(map[int][]types.TranscriptEntry, len(items))
	for _, it := range items {
		tr[it.ID] = m.ItemTranscript(it.ID)
	}
	return Input{
		RoomID:       roomID,
		Title:        m.Title(),
		StartedAt:    m.StartedAt(),
		Items:        items,
		Transcripts:  tr,
		Participants: m.Participants(),
		Requests:     m.DocumentRequests(),
	}
}

// Assembler builds and delivers the post-meeting documents.
type Assembler struct {
	sink    minutes.DocumentSink
	large   llm.Provider
	timeout time.Duration
	metrics *observe.Metrics
}

// Option is a functional option for [New].
type Option func(*Assembler)

// WithDraftTimeout overrides the per-draft deadline for custom documents.
func WithDraftTimeout(d time.Duration) Option {
	return func(a *Assembler) {
		if d > 0 {
			a.timeout = d
		}
	}
}

// WithMetrics enables the per-document counter. Without it, nothing is
// recorded.
func WithMetrics(m *observe.Metrics) Option {
	return func(a *Assembler) { a.metrics = m }
}

// New constructs an Assembler over the document sink. The conversational
// model drafts custom documents; with a nil provider, custom requests are
// skipped with a warning.
func New(sink minutes.DocumentSink, large llm.Provider, opts ...Option) *Assembler {
	a := &Assembler{sink: sink, large: large, timeout: defaultDraftTimeout}
	for _, o := range opts {
		o(a)
	}
	return a
}

// Assemble builds every applicable document and uploads each as soon as it
// is ready. Builds run in parallel; a failure is logged per document and the
// first one is returned after all of them finish, so partial delivery is
// never rolled back.
func (a *Assembler) Assemble(ctx context.Context, in Input) error {
	var g errgroup.Group

	g.Go(func() error { return a.deliver(ctx, agenda.DocTranscript, renderTranscript(in)) })
	g.Go(func() error { return a.deliver(ctx, agenda.DocSummary, renderSummary(in)) })

	if requested(in.Requests, agenda.DocAttendance) || len(in.Participants) > 0 {
		g.Go(func() error { return a.deliver(ctx, agenda.DocAttendance, renderAttendance(in)) })
	}
	if requested(in.Requests, agenda.DocActionItems) {
		g.Go(func() error { return a.deliver(ctx, agenda.DocActionItems, renderActionItems(in)) })
	}

	for _, req := range in.Requests {
		if req.Type != agenda.DocCustom {
			continue
		}
		g.Go(func() error {
			doc, err := a.draftCustom(ctx, in, req)
			if err != nil {
				slog.Warn("docgen: custom document dropped", "slug", req.Slug, "err", err)
				if a.metrics != nil {
					a.metrics.RecordDocument(ctx, string(agenda.DocCustom), "error")
				}
				return err
			}
			return a.deliver(ctx, agenda.DocCustom, doc)
		})
	}

	if err := g.Wait(); err != nil {
		return fmt.Errorf("docgen: assemble for %s: %w", in.RoomID, err)
	}
	return nil
}

// deliver uploads one finished document.
func (a *Assembler) deliver(ctx context.Context, kind agenda.DocumentType, doc minutes.Document) error {
	if err := a.sink.Upload(ctx, doc); err != nil {
		slog.Warn("docgen: upload failed", "room_id", doc.RoomID, "filename", doc.Filename, "err", err)
		if a.metrics != nil {
			a.metrics.RecordDocument(ctx, string(kind), "error")
		}
		return fmt.Errorf("upload %s: %w", doc.Filename, err)
	}
	slog.Info("docgen: document delivered", "room_id", doc.RoomID, "filename", doc.Filename)
	if a.metrics != nil {
		a.metrics.RecordDocument(ctx, string(kind), "ok")
	}
	return nil
}

// draftCustom asks the conversational model for the body of one freeform
// document. The response is the document, verbatim.
func (a *Assembler) draftCustom(ctx context.Context, in Input, req agenda.DocumentRequest) (minutes.Document, error) {
	if a.large == nil {
		return minutes.Document{}, errors.New("no conversational model configured")
	}

	lmCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	resp, err := a.large.Complete(lmCtx, llm.CompletionRequest{
		SystemPrompt: draftPrompt,
		Messages: []types.Message{
			{Role: "user", Content: draftRequest(in, req)},
		},
		Temperature: 0.3,
	})
	if err != nil {
		return minutes.Document{}, fmt.Errorf("draft %s: %w", req.Slug, err)
	}
	var body string
	if resp != nil {
		body = strings.TrimSpace(resp.Content)
	}
	if body == "" {
		return minutes.Document{}, fmt.Errorf("draft %s: empty response", req.Slug)
	}

	title := strings.TrimSpace(req.Description)
	if title == "" {
		title = "Custom Document"
	}
	return minutes.Document{
		RoomID:   in.RoomID,
		Filename: req.Slug + ".md",
		Title:    title,
		Markdown: body,
	}, nil
}

// draftRequest renders the request and the full meeting transcript for the
// model.
func draftRequest(in Input, req agenda.DocumentRequest) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Request: %s\n\n", req.Description)
	fmt.Fprintf(&sb, "Meeting: %s\n\nFull transcript:\n", in.Title)
	for _, it := range in.Items {
		for _, e := range in.Transcripts[it.ID] {
			fmt.Fprintf(&sb, "%s: %s\n", speakerLabel(e), e.Text)
		}
	}
	return sb.String()
}

// requested reports whether a request of the given type was queued.
func requested(reqs []agenda.DocumentRequest, t agenda.DocumentType) bool {
	for _, r := range reqs {
		if r.Type == t {
			return true
		}
	}
	return false
}
