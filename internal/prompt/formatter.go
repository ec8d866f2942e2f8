package prompt

import (
	"fmt"
	"strings"
	"time"

	"github.com/OccupiedPorcupine/beat-your-meet-sub000/internal/agenda"
	"github.com/OccupiedPorcupine/beat-your-meet-sub000/pkg/minutes"
	"github.com/OccupiedPorcupine/beat-your-meet-sub000/pkg/types"
)

// FormatSystemPrompt renders the system prompt for a freeform large-model
// reply from the meeting view and the retrieved [Memory].
//
// botName is the facilitator's spoken name; an empty name falls back to a
// neutral opening. mem may be nil, in which case only the meeting view is
// rendered — that is the documented fallback when [Builder.Assemble] fails.
//
// The formatter performs no I/O beyond reading the wall clock for relative
// timestamps and is safe for concurrent use.
//
// Empty sections (no agenda items, no notes, no memory) are omitted entirely
// rather than rendering as empty headers.
func FormatSystemPrompt(botName string, snap agenda.Snapshot, mem *Memory) string {
	var sb strings.Builder

	// ── Opening lines ─────────────────────────────────────────────────────────
	name := strings.TrimSpace(botName)
	switch {
	case name != "" && snap.Title != "":
		fmt.Fprintf(&sb, "You are %s, the facilitator of the meeting %q.", name, snap.Title)
	case name != "":
		fmt.Fprintf(&sb, "You are %s, the facilitator of this meeting.", name)
	case snap.Title != "":
		fmt.Fprintf(&sb, "You are the facilitator of the meeting %q.", snap.Title)
	default:
		sb.WriteString("You are the facilitator of this meeting.")
	}
	sb.WriteString(" ")
	sb.WriteString(snap.Style.ToneFragment())
	sb.WriteString(" You are speaking aloud in a live call, so keep replies to one or two short sentences and never use markdown or emoji.")

	// ── Meeting status section ────────────────────────────────────────────────
	if status := formatStatusSection(snap); status != "" {
		sb.WriteString("\n\n## Meeting\n")
		sb.WriteString(status)
	}

	// ── Agenda section ────────────────────────────────────────────────────────
	if agendaSection := formatAgendaSection(snap.Items); agendaSection != "" {
		sb.WriteString("\n\n## Agenda\n")
		sb.WriteString(agendaSection)
	}

	// ── Notes from completed items ────────────────────────────────────────────
	if notes := strings.TrimSpace(snap.MeetingNotes); notes != "" {
		sb.WriteString("\n\n## Meeting Notes\n")
		sb.WriteString(notes)
	}

	if mem != nil {
		// ── Semantically related earlier discussion ───────────────────────────
		if related := formatRelatedSection(mem.Related); related != "" {
			sb.WriteString("\n\n## Relevant Earlier Discussion\n")
			sb.WriteString(related)
		}

		// ── Recent conversation section ───────────────────────────────────────
		if convo := formatTranscriptSection(mem.Recent); convo != "" {
			sb.WriteString("\n\n## Recent Conversation\n")
			sb.WriteString(convo)
		}
	}

	return sb.String()
}

// ─────────────────────────────────────────────────────────────────────────────
// Internal helpers
// ─────────────────────────────────────────────────────────────────────────────

// formatStatusSection renders where the meeting stands: the current topic and
// its time usage, how many items remain, and any meeting-level overtime.
func formatStatusSection(snap agenda.Snapshot) string {
	var lines []string

	if snap.CurrentItemIndex >= 0 && snap.CurrentItemIndex < len(snap.Items) {
		it := snap.Items[snap.CurrentItemIndex]
		elapsed := time.Duration(it.ElapsedSeconds * float64(time.Second))
		allocated := time.Duration(it.DurationMinutes * float64(time.Minute))
		lines = append(lines, fmt.Sprintf("Current topic: %s (%s of %s used)",
			it.Topic, compactDuration(elapsed), compactDuration(allocated)))
	} else if len(snap.Items) > 0 {
		lines = append(lines, "All agenda items are complete.")
	}

	if remaining := itemsRemaining(snap.Items); remaining > 0 {
		lines = append(lines, fmt.Sprintf("Agenda items remaining: %d", remaining))
	}

	if snap.OvertimeMinutes >= 1 {
		overtime := time.Duration(snap.OvertimeMinutes * float64(time.Minute))
		lines = append(lines, fmt.Sprintf("The meeting is running about %s over schedule.",
			compactDuration(overtime.Truncate(time.Minute))))
	}

	return strings.Join(lines, "\n")
}

// itemsRemaining counts the items that have not completed yet, including the
// current one.
func itemsRemaining(items []agenda.ItemSnapshot) int {
	n := 0
	for _, it := range items {
		if it.State != agenda.ItemCompleted.String() {
			n++
		}
	}
	return n
}

// formatAgendaSection renders the full agenda as a numbered list with each
// item's allocation and lifecycle state.
func formatAgendaSection(items []agenda.ItemSnapshot) string {
	if len(items) == 0 {
		return ""
	}

	var lines []string
	for i, it := range items {
		allocated := time.Duration(it.DurationMinutes * float64(time.Minute))
		lines = append(lines, fmt.Sprintf("%d. %s (%s, %s)", i+1, it.Topic, compactDuration(allocated), it.State))
	}
	return strings.Join(lines, "\n")
}

// formatRelatedSection renders the semantic-search results as topic-prefixed
// lines, most similar first.
func formatRelatedSection(results []minutes.ChunkResult) string {
	if len(results) == 0 {
		return ""
	}

	var lines []string
	for _, r := range results {
		content := strings.TrimSpace(r.Chunk.Content)
		if content == "" {
			continue
		}
		if r.Chunk.Topic != "" {
			lines = append(lines, fmt.Sprintf("On %s: %s", r.Chunk.Topic, content))
		} else {
			lines = append(lines, content)
		}
	}
	return strings.Join(lines, "\n")
}

// formatTranscriptSection renders the recent conversation with relative
// timestamps (e.g., "2m ago") and speaker labels.
func formatTranscriptSection(entries []types.TranscriptEntry) string {
	if len(entries) == 0 {
		return ""
	}

	now := time.Now()
	var lines []string
	for _, e := range entries {
		speaker := e.SpeakerName
		if speaker == "" {
			speaker = e.SpeakerID
		}
		if speaker == "" {
			speaker = "Unknown"
		}

		relTime := formatRelativeTime(now.Sub(e.Timestamp))
		lines = append(lines, fmt.Sprintf("[%s] %s: %s", relTime, speaker, e.Text))
	}

	return strings.Join(lines, "\n")
}

// formatRelativeTime converts a duration to a compact human-readable label
// such as "just now", "30s ago", "2m ago", "1h ago".
func formatRelativeTime(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	switch {
	case d < 5*time.Second:
		return "just now"
	case d < time.Minute:
		return fmt.Sprintf("%ds ago", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	default:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	}
}

// compactDuration renders a duration as "45s", "2m", or "7m 30s". Meetings
// are minute-scale, so durations an hour or longer stay in minutes.
func compactDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	mins := int(d / time.Minute)
	secs := int(d % time.Minute / time.Second)
	switch {
	case mins == 0:
		return fmt.Sprintf("%ds", secs)
	case secs == 0:
		return fmt.Sprintf("%dm", mins)
	default:
		return fmt.Sprintf("%dm %ds", mins, secs)
	}
}
