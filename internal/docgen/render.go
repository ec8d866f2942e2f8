package docgen

import (
	"fmt"
	"strings"
	"time"

	"github.com/OccupiedPorcupine/beat-your-meet-sub000/internal/agenda"
	"github.com/OccupiedPorcupine/beat-your-meet-sub000/pkg/minutes"
	"github.com/OccupiedPorcupine/beat-your-meet-sub000/pkg/types"
)

// renderTranscript builds the full transcript, sectioned by agenda item with
// clock offsets from the meeting start.
func renderTranscript(in Input) minutes.Document {
	var sb strings.Builder
	header(&sb, "Meeting Transcript", in)

	for i, it := range in.Items {
		fmt.Fprintf(&sb, "## %d. %s (%d min)\n\n", i+1, it.Topic, int(it.Allocated.Minutes()))
		entries := in.Transcripts[it.ID]
		if len(entries) == 0 {
			sb.WriteString("_No discussion recorded._\n\n")
			continue
		}
		for _, e := range entries {
			fmt.Fprintf(&sb, "[%s] %s: %s\n", clockOffset(in.StartedAt, e.Timestamp), speakerLabel(e), e.Text)
		}
		sb.WriteString("\n")
	}

	return minutes.Document{
		RoomID:   in.RoomID,
		Filename: "transcript.md",
		Title:    "Meeting Transcript",
		Markdown: strings.TrimRight(sb.String(), "\n") + "\n",
	}
}

// renderSummary builds the per-item summary from the notes the summariser
// attached as items completed.
func renderSummary(in Input) minutes.Document {
	var sb strings.Builder
	header(&sb, "Meeting Summary", in)

	for i, it := range in.Items {
		fmt.Fprintf(&sb, "## %d. %s\n\n", i+1, it.Topic)
		switch {
		case it.State == agenda.ItemUpcoming:
			sb.WriteString("_Not reached._\n\n")
		case it.State != agenda.ItemCompleted:
			sb.WriteString("_In progress when the meeting ended._\n\n")
		case it.Notes == nil || it.Notes.Empty():
			sb.WriteString("_No notes were captured._\n\n")
		default:
			noteSection(&sb, "Key points", it.Notes.KeyPoints)
			noteSection(&sb, "Decisions", it.Notes.Decisions)
			noteSection(&sb, "Action items", it.Notes.ActionItems)
		}
	}

	return minutes.Document{
		RoomID:   in.RoomID,
		Filename: "summary.md",
		Title:    "Meeting Summary",
		Markdown: strings.TrimRight(sb.String(), "\n") + "\n",
	}
}

// renderAttendance builds the attendance table from the observed
// participants.
func renderAttendance(in Input) minutes.Document {
	var sb strings.Builder
	header(&sb, "Attendance", in)

	if len(in.Participants) == 0 {
		sb.WriteString("No participants were seen.\n")
	} else {
		sb.WriteString("| Participant | First seen | Last seen |\n")
		sb.WriteString("| --- | --- | --- |\n")
		for _, p := range in.Participants {
			name := p.Name
			if name == "" {
				name = p.ID
			}
			fmt.Fprintf(&sb, "| %s | %s | %s |\n", name, p.FirstSeen.Format("15:04:05"), p.LastSeen.Format("15:04:05"))
		}
		noun := "participants"
		if len(in.Participants) == 1 {
			noun = "participant"
		}
		fmt.Fprintf(&sb, "\n%d %s attended.\n", len(in.Participants), noun)
	}

	return minutes.Document{
		RoomID:   in.RoomID,
		Filename: "attendance.md",
		Title:    "Attendance",
		Markdown: sb.String(),
	}
}

// renderActionItems builds the action item checklist, grouped by the agenda
// topic each item came out of.
func renderActionItems(in Input) minutes.Document {
	var sb strings.Builder
	header(&sb, "Action Items", in)

	any := false
	for _, it := range in.Items {
		if it.Notes == nil || len(it.Notes.ActionItems) == 0 {
			continue
		}
		any = true
		fmt.Fprintf(&sb, "## %s\n\n", it.Topic)
		for _, a := range it.Notes.ActionItems {
			fmt.Fprintf(&sb, "- [ ] %s\n", a)
		}
		sb.WriteString("\n")
	}
	if !any {
		sb.WriteString("No action items were recorded.\n")
	}

	return minutes.Document{
		RoomID:   in.RoomID,
		Filename: "action-items.md",
		Title:    "Action Items",
		Markdown: strings.TrimRight(sb.String(), "\n") + "\n",
	}
}

func header(sb *strings.Builder, heading string, in Input) {
	fmt.Fprintf(sb, "# %s\n\n", heading)
	if in.StartedAt.IsZero() {
		fmt.Fprintf(sb, "%s\n\n", in.Title)
		return
	}
	fmt.Fprintf(sb, "%s, %s\n\n", in.Title, in.StartedAt.Format("2 January 2006"))
}

func noteSection(sb *strings.Builder, heading string, lines []string) {
	if len(lines) == 0 {
		return
	}
	fmt.Fprintf(sb, "**%s**\n\n", heading)
	for _, l := range lines {
		fmt.Fprintf(sb, "- %s\n", l)
	}
	sb.WriteString("\n")
}

// clockOffset renders a wall-clock timestamp as minutes and seconds since
// the meeting started. Entries stamped before the start clamp to zero.
func clockOffset(start, ts time.Time) string {
	if start.IsZero() || ts.IsZero() || ts.Before(start) {
		return "00:00"
	}
	d := ts.Sub(start)
	return fmt.Sprintf("%02d:%02d", int(d.Minutes()), int(d.Seconds())%60)
}

func speakerLabel(e types.TranscriptEntry) string {
	if e.SpeakerName != "" {
		return e.SpeakerName
	}
	if e.SpeakerID != "" {
		return e.SpeakerID
	}
	return "Unknown"
}
