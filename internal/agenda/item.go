package agenda

import (
	"regexp"
	"strings"
	"time"
)

// ItemState is the lifecycle state of a single agenda item.
//
// Transitions are monotonic through the ordered states except for the two
// documented loops: Overtime → Extended (a participant granted an override)
// and Extended → Completed (the item finally advances). A Completed item is
// never re-entered.
type ItemState int

const (
	// ItemUpcoming is the initial state: the item has not started yet.
	ItemUpcoming ItemState = iota

	// ItemActive means the item is the current topic and within its allocation.
	ItemActive

	// ItemWarning means the item crossed the warning ratio of its allocation.
	ItemWarning

	// ItemOvertime means elapsed time reached the full allocation.
	ItemOvertime

	// ItemExtended means the item is past its allocation under an active
	// participant-granted override.
	ItemExtended

	// ItemCompleted is terminal: the item was closed and its elapsed time
	// accumulated into the meeting overtime.
	ItemCompleted
)

// String returns the human-readable name of the item state.
func (s ItemState) String() string {
	switch s {
	case ItemUpcoming:
		return "upcoming"
	case ItemActive:
		return "active"
	case ItemWarning:
		return "warning"
	case ItemOvertime:
		return "overtime"
	case ItemExtended:
		return "extended"
	case ItemCompleted:
		return "completed"
	default:
		return "unknown"
	}
}

// Current reports whether the state is one of the non-terminal active states.
// At most one item may be current at any instant.
func (s ItemState) Current() bool {
	switch s {
	case ItemActive, ItemWarning, ItemOvertime, ItemExtended:
		return true
	}
	return false
}

// ItemNotes holds the summariser's output for a completed item.
type ItemNotes struct {
	KeyPoints   []string `json:"key_points"`
	Decisions   []string `json:"decisions"`
	ActionItems []string `json:"action_items"`
}

// Empty reports whether the notes carry no content.
func (n ItemNotes) Empty() bool {
	return len(n.KeyPoints) == 0 && len(n.Decisions) == 0 && len(n.ActionItems) == 0
}

// Item is one time-boxed topic in the meeting plan.
type Item struct {
	// ID is the stable ordinal of the item within the agenda (0-based).
	ID int

	// Topic is the non-empty topic title.
	Topic string

	// Allocated is the planned duration for this item.
	Allocated time.Duration

	// State is the lifecycle state.
	State ItemState

	// StartedAt is set when the item enters Active. Zero until then.
	StartedAt time.Time

	// Elapsed is the actual time accumulated while the item was current.
	// Finalised when the item completes.
	Elapsed time.Duration

	// Notes is attached exactly once by the summariser after completion.
	// Nil until then; non-nil (possibly empty) afterwards.
	Notes *ItemNotes
}

// Overrun returns how far the item ran past its allocation, clamped to zero.
func (it *Item) Overrun() time.Duration {
	if it.Elapsed <= it.Allocated {
		return 0
	}
	return it.Elapsed - it.Allocated
}

// DocumentType enumerates the post-meeting documents the assembler can build.
type DocumentType string

const (
	// DocTranscript is the full meeting transcript, sectioned by agenda item.
	// Always built; never queued as a request.
	DocTranscript DocumentType = "transcript"

	// DocSummary is the per-item summary (key points, decisions, action items).
	// Always built; requesting it explicitly is a no-op dedup.
	DocSummary DocumentType = "summary"

	// DocAttendance is the participant attendance table.
	DocAttendance DocumentType = "attendance"

	// DocActionItems is the union of all items' action items grouped by topic.
	DocActionItems DocumentType = "action_items"

	// DocCustom is a freeform document produced by the large LM from the full
	// transcript and the requester's description.
	DocCustom DocumentType = "custom"
)

// DocumentRequest is a queued participant request for a post-meeting document.
type DocumentRequest struct {
	// Type selects the document kind.
	Type DocumentType

	// Description is the free-form request text. For DocCustom it becomes the
	// LM prompt hint; for the fixed kinds it is informational only.
	Description string

	// Slug is the lowercase, hyphenated filename stem. Requests are
	// deduplicated by slug.
	Slug string
}

var slugStrip = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify converts free text into a lowercase, hyphenated filename stem.
// Consecutive non-alphanumeric runs collapse into a single hyphen; leading
// and trailing hyphens are trimmed. Empty input yields "document".
func Slugify(s string) string {
	slug := slugStrip.ReplaceAllString(strings.ToLower(s), "-")
	slug = strings.Trim(slug, "-")
	if slug == "" {
		return "document"
	}
	return slug
}

// Participation records when a participant was first and last seen in the room.
type Participation struct {
	// ID is the transport-specific participant identity.
	ID string

	// Name is the human-readable display name. May lag behind ID when the
	// transport delivers audio before identity.
	Name string

	// FirstSeen is when the participant was first observed.
	FirstSeen time.Time

	// LastSeen is when the participant was most recently observed.
	LastSeen time.Time
}
