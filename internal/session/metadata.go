package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/OccupiedPorcupine/beat-your-meet-sub000/internal/agenda"
)

// Metadata is the parsed meeting brief: the agenda the room was created
// with, plus the optional style and pre-ordered documents.
type Metadata struct {
	Title      string
	Style      agenda.Style
	Definition agenda.Definition
	Requests   []agenda.DocumentRequest
}

// Wire shape of the room metadata blob. The agenda is mandatory; everything
// else is optional.
type metadataPayload struct {
	Title     string         `json:"title"`
	Style     string         `json:"style"`
	Agenda    []metadataItem `json:"agenda"`
	Documents []metadataDoc  `json:"documents"`
}

type metadataItem struct {
	Topic           string  `json:"topic"`
	DurationMinutes float64 `json:"duration_minutes"`
}

type metadataDoc struct {
	Type        string `json:"type"`
	Description string `json:"description"`
}

// ParseMetadata decodes the raw metadata blob attached to the room. A
// missing or invalid agenda is fatal; an unknown style or document entry is
// logged and replaced or skipped, because a meeting can run without them.
func ParseMetadata(raw string, fallback agenda.Style) (Metadata, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Metadata{}, errors.New("no metadata attached to the room")
	}

	var p metadataPayload
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return Metadata{}, fmt.Errorf("decode metadata: %w", err)
	}

	def := agenda.Definition{Title: strings.TrimSpace(p.Title)}
	if def.Title == "" {
		def.Title = "Meeting"
	}
	for _, it := range p.Agenda {
		def.Items = append(def.Items, agenda.ItemDef{
			Topic:     strings.TrimSpace(it.Topic),
			Allocated: time.Duration(it.DurationMinutes * float64(time.Minute)),
		})
	}
	if err := def.Validate(); err != nil {
		return Metadata{}, fmt.Errorf("invalid agenda: %w", err)
	}

	style := fallback
	if !style.IsValid() {
		style = agenda.DefaultStyle
	}
	if p.Style != "" {
		if st := agenda.Style(strings.ToLower(strings.TrimSpace(p.Style))); st.IsValid() {
			style = st
		} else {
			slog.Warn("session: unknown style in metadata", "style", p.Style, "using", string(style))
		}
	}

	var reqs []agenda.DocumentRequest
	for _, d := range p.Documents {
		req, ok := documentRequest(d)
		if !ok {
			continue
		}
		reqs = append(reqs, req)
	}

	return Metadata{
		Title:      def.Title,
		Style:      style,
		Definition: def,
		Requests:   reqs,
	}, nil
}

// documentRequest maps one metadata document entry onto a queue request.
// Standard types take their type name as the slug so repeat orders collapse;
// custom documents slug their description.
func documentRequest(d metadataDoc) (agenda.DocumentRequest, bool) {
	typ := agenda.DocumentType(strings.ToLower(strings.TrimSpace(d.Type)))
	desc := strings.TrimSpace(d.Description)

	switch typ {
	case agenda.DocTranscript, agenda.DocSummary, agenda.DocAttendance, agenda.DocActionItems:
		return agenda.DocumentRequest{Type: typ, Description: desc, Slug: string(typ)}, true
	case agenda.DocCustom:
		if desc == "" {
			slog.Warn("session: custom document in metadata has no description, skipping")
			return agenda.DocumentRequest{}, false
		}
		return agenda.DocumentRequest{Type: typ, Description: desc, Slug: agenda.Slugify(desc)}, true
	default:
		slog.Warn("session: unknown document type in metadata, skipping", "type", d.Type)
		return agenda.DocumentRequest{}, false
	}
}
