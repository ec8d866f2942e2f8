package prompt

import (
	"fmt"
	"strings"
	"time"

	"github.com/OccupiedPorcupine/beat-your-meet-sub000/internal/agenda"
)

// Deterministic spoken lines. Every fixed speech point renders from meeting
// state alone; the model is never involved, so these replies are instant and
// identical for identical state.

// Intro is spoken once when the meeting starts: the facilitator names
// itself, the item count, and the first topic.
func Intro(botName, title string, items []agenda.Item) string {
	var sb strings.Builder

	name := strings.TrimSpace(botName)
	if name == "" {
		name = "your facilitator"
	}
	if title != "" {
		fmt.Fprintf(&sb, "Hi, I'm %s, and I'll keep us on track for %s.", name, title)
	} else {
		fmt.Fprintf(&sb, "Hi, I'm %s, and I'll keep us on track today.", name)
	}

	if len(items) > 0 {
		fmt.Fprintf(&sb, " We have %d %s on the agenda.", len(items), pluralise(len(items), "item"))
		fmt.Fprintf(&sb, " First up: %s, %s.", items[0].Topic, spokenDuration(items[0].Allocated))
		sb.WriteString(" Let's get started.")
	}

	return sb.String()
}

// TimeWarning is spoken when the current item crosses its warning threshold.
// The remaining time is rounded up to whole minutes so the warning never
// understates what is left.
func TimeWarning(st agenda.TimeStatus) string {
	mins := ceilMinutes(st.Remaining)
	if mins < 1 {
		mins = 1
	}
	return fmt.Sprintf("About %d %s left on %s.", mins, pluralise(mins, "minute"), st.Topic)
}

// TimeStatusReply answers a time query ("how much time is left?") from the
// timing snapshot alone.
func TimeStatusReply(st agenda.TimeStatus) string {
	if st.Topic == "" {
		return "We're through the agenda, so nothing is on the clock right now."
	}
	if st.Remaining <= 0 {
		reply := fmt.Sprintf("We're out of time on %s.", st.Topic)
		if st.Overtime >= time.Minute {
			reply += fmt.Sprintf(" The meeting is running about %s over.",
				spokenDuration(st.Overtime.Truncate(time.Minute)))
		}
		return reply
	}
	return fmt.Sprintf("There's about %s left on %s.", spokenDuration(st.Remaining), st.Topic)
}

// Transition is spoken when the agenda advances: it closes the finished
// topic and announces the next one with its allocation.
func Transition(finished string, next agenda.Item) string {
	return fmt.Sprintf("That's time on %s. Next up: %s, %s.",
		finished, next.Topic, spokenDuration(next.Allocated))
}

// WrapUp is spoken when the agenda is exhausted or the meeting is ended
// explicitly. Overtime below a minute is not worth mentioning.
func WrapUp(overtime time.Duration) string {
	var sb strings.Builder
	sb.WriteString("That's everything on the agenda.")
	if overtime >= time.Minute {
		fmt.Fprintf(&sb, " We ran about %s over.", spokenDuration(overtime.Truncate(time.Minute)))
	}
	sb.WriteString(" I'll put the meeting documents together now. Thanks, everyone.")
	return sb.String()
}

// OverrideAck briefly acknowledges a participant-granted extension.
func OverrideAck(topic string, grace time.Duration) string {
	if topic == "" {
		return fmt.Sprintf("Sure, taking about %s more.", spokenDuration(grace))
	}
	return fmt.Sprintf("Sure, taking about %s more on %s.", spokenDuration(grace), topic)
}

// DocumentAck briefly acknowledges a queued document request.
func DocumentAck(req agenda.DocumentRequest) string {
	switch req.Type {
	case agenda.DocAttendance:
		return "Got it. The attendance list will be in the meeting documents."
	case agenda.DocActionItems:
		return "Got it. I'll collect the action items in the meeting documents."
	case agenda.DocSummary:
		return "Got it. The summary will be in the meeting documents."
	default:
		return "Got it. I'll keep a record of that in the meeting documents."
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Internal helpers
// ─────────────────────────────────────────────────────────────────────────────

// spokenDuration renders a duration the way a person would say it:
// "2 minutes", "90 seconds", "2 minutes 55 seconds".
func spokenDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	mins := int(d / time.Minute)
	secs := int(d % time.Minute / time.Second)
	switch {
	case mins == 0:
		return fmt.Sprintf("%d %s", secs, pluralise(secs, "second"))
	case secs == 0:
		return fmt.Sprintf("%d %s", mins, pluralise(mins, "minute"))
	default:
		return fmt.Sprintf("%d %s %d %s",
			mins, pluralise(mins, "minute"), secs, pluralise(secs, "second"))
	}
}

// ceilMinutes rounds a duration up to whole minutes.
func ceilMinutes(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int((d + time.Minute - time.Nanosecond) / time.Minute)
}

// pluralise appends "s" to unit unless n is exactly 1.
func pluralise(n int, unit string) string {
	if n == 1 {
		return unit
	}
	return unit + "s"
}
