// Package agenda owns the meeting state: the ordered agenda items, their
// lifecycle, the timing signals derived from them, the rolling transcript
// buffer, and the absolute deadlines (silence window, override grace,
// intervention cooldown) that the speech gate decides over.
//
// The [Machine] is deliberately not safe for concurrent use: the session
// lifecycle confines all mutation to a single control task and every other
// component interacts with the machine from that task only. Keeping the
// machine lock-free keeps the gate a pure function over [Context] snapshots.
package agenda

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/OccupiedPorcupine/beat-your-meet-sub000/pkg/types"
)

// Sentinel errors for invariant violations. Callers log these and continue;
// none of them is fatal to the session.
var (
	// ErrAlreadyStarted is returned by Start when the meeting already started.
	ErrAlreadyStarted = errors.New("agenda: meeting already started")

	// ErrNotStarted is returned by operations that require a started meeting.
	ErrNotStarted = errors.New("agenda: meeting not started")

	// ErrNoCurrentItem is returned by Advance when the agenda is already
	// exhausted.
	ErrNoCurrentItem = errors.New("agenda: no current item")
)

// TimeSignal is the result of a [Machine.CheckTime] examination.
type TimeSignal int

const (
	// SignalNoChange means the current item stays as it is.
	SignalNoChange TimeSignal = iota

	// SignalWarningEntered means the item just crossed the warning ratio.
	SignalWarningEntered

	// SignalOvertime means the item is past its allocation with no active
	// override; the caller is expected to advance.
	SignalOvertime

	// SignalExtended means the item crossed its allocation under an active
	// override and moved to Extended; no advance should happen yet.
	SignalExtended
)

// String returns the signal name for logs.
func (s TimeSignal) String() string {
	switch s {
	case SignalNoChange:
		return "no_change"
	case SignalWarningEntered:
		return "warning_entered"
	case SignalOvertime:
		return "overtime"
	case SignalExtended:
		return "extended"
	default:
		return "unknown"
	}
}

// ItemDef describes one agenda item as parsed from room metadata.
type ItemDef struct {
	Topic     string
	Allocated time.Duration
}

// Definition is the parsed meeting plan used to construct a [Machine].
type Definition struct {
	Title string
	Items []ItemDef
}

// Validate checks the definition for structural problems and returns all of
// them joined.
func (d Definition) Validate() error {
	var errs []error
	if len(d.Items) == 0 {
		errs = append(errs, errors.New("agenda: no items"))
	}
	for i, it := range d.Items {
		if strings.TrimSpace(it.Topic) == "" {
			errs = append(errs, fmt.Errorf("agenda: item %d: empty topic", i))
		}
		if it.Allocated <= 0 {
			errs = append(errs, fmt.Errorf("agenda: item %d (%q): non-positive duration", i, it.Topic))
		}
	}
	return errors.Join(errs...)
}

// Option is a functional option for [NewMachine].
type Option func(*Machine)

// WithClock injects the time source. Defaults to [SystemClock].
func WithClock(c Clock) Option {
	return func(m *Machine) { m.clock = c }
}

// WithStyle sets the initial facilitation style. Defaults to [DefaultStyle].
// Invalid styles are ignored.
func WithStyle(s Style) Option {
	return func(m *Machine) {
		if s.IsValid() {
			m.style = s
		}
	}
}

// WithTuning overrides the facilitation parameters. Zero fields in t fall
// back to [DefaultTuning] values.
func WithTuning(t Tuning) Option {
	return func(m *Machine) { m.tuning = mergeTuning(t) }
}

func mergeTuning(t Tuning) Tuning {
	def := DefaultTuning()
	if t.WarningRatio <= 0 || t.WarningRatio > 1 {
		t.WarningRatio = def.WarningRatio
	}
	if t.OverrideGrace <= 0 {
		t.OverrideGrace = def.OverrideGrace
	}
	if t.SilenceWindow <= 0 {
		t.SilenceWindow = def.SilenceWindow
	}
	if t.InterventionCooldown <= 0 {
		t.InterventionCooldown = def.InterventionCooldown
	}
	if t.TranscriptWindow <= 0 {
		t.TranscriptWindow = def.TranscriptWindow
	}
	if t.RecentWindow <= 0 {
		t.RecentWindow = def.RecentWindow
	}
	return t
}

// Machine owns the agenda item progression, the meeting timing state, and
// the derived quantities every other engine component consumes. One Machine
// exists per room; it is created on agent join from parsed room metadata and
// discarded after the documents are assembled.
//
// Machine is not safe for concurrent use; see the package comment.
type Machine struct {
	clock  Clock
	tuning Tuning

	title string
	style Style
	items []*Item

	startedAt time.Time
	current   int

	finalisedOvertime time.Duration
	lastIntervention  time.Time
	silenceUntil      time.Time
	overrideUntil     time.Time

	participants     map[string]*Participation
	participantOrder []string

	requests     []DocumentRequest
	endTriggered bool

	buffer *TranscriptBuffer
}

// NewMachine constructs a Machine from a validated definition.
func NewMachine(def Definition, opts ...Option) (*Machine, error) {
	if err := def.Validate(); err != nil {
		return nil, err
	}

	title := strings.TrimSpace(def.Title)
	if title == "" {
		title = "Meeting"
	}

	m := &Machine{
		clock:        SystemClock{},
		tuning:       DefaultTuning(),
		title:        title,
		style:        DefaultStyle,
		current:      -1,
		participants: make(map[string]*Participation),
	}
	for _, o := range opts {
		o(m)
	}

	m.items = make([]*Item, len(def.Items))
	for i, it := range def.Items {
		m.items[i] = &Item{
			ID:        i,
			Topic:     strings.TrimSpace(it.Topic),
			Allocated: it.Allocated,
			State:     ItemUpcoming,
		}
	}

	m.buffer = NewTranscriptBuffer(m.tuning.TranscriptWindow, m.clock)
	return m, nil
}

// Title returns the agenda title.
func (m *Machine) Title() string { return m.title }

// Style returns the effective facilitation style.
func (m *Machine) Style() Style { return m.style }

// SetStyle switches the facilitation style at runtime. The last set style
// wins; invalid styles are rejected.
func (m *Machine) SetStyle(s Style) error {
	if !s.IsValid() {
		return fmt.Errorf("agenda: unknown style %q", s)
	}
	m.style = s
	return nil
}

// Tuning returns the effective facilitation parameters.
func (m *Machine) Tuning() Tuning { return m.tuning }

// Started reports whether Start has been called.
func (m *Machine) Started() bool { return !m.startedAt.IsZero() }

// StartedAt returns the meeting start time, zero before Start.
func (m *Machine) StartedAt() time.Time { return m.startedAt }

// Start begins the meeting: the start timestamp is set and item 0 becomes
// Active. Calling Start on a started meeting is a no-op error.
func (m *Machine) Start() error {
	if m.Started() {
		return ErrAlreadyStarted
	}
	now := m.clock.Now()
	m.startedAt = now
	m.current = 0
	m.items[0].State = ItemActive
	m.items[0].StartedAt = now
	return nil
}

// CurrentItem returns the item currently being discussed, or nil when the
// meeting has not started or the agenda is exhausted. The returned pointer
// is owned by the machine; callers on the control task may read it but must
// not mutate it.
func (m *Machine) CurrentItem() *Item {
	if m.current < 0 || m.current >= len(m.items) {
		return nil
	}
	return m.items[m.current]
}

// ItemCount returns the number of agenda items.
func (m *Machine) ItemCount() int { return len(m.items) }

// Items returns copies of all agenda items in order. The current item's
// elapsed time is filled in live; notes pointers are shared but treated as
// immutable once attached.
func (m *Machine) Items() []Item {
	now := m.clock.Now()
	out := make([]Item, len(m.items))
	for i, it := range m.items {
		out[i] = *it
		if it.State.Current() {
			out[i].Elapsed = m.currentElapsed(now)
		}
	}
	return out
}

// ItemsRemaining counts items not yet completed, including the current one.
func (m *Machine) ItemsRemaining() int {
	n := 0
	for _, it := range m.items {
		if it.State != ItemCompleted {
			n++
		}
	}
	return n
}

// currentElapsed returns the live elapsed time of the current item.
func (m *Machine) currentElapsed(now time.Time) time.Duration {
	cur := m.CurrentItem()
	if cur == nil || cur.StartedAt.IsZero() {
		return 0
	}
	return now.Sub(cur.StartedAt)
}

// Advance closes the current item and activates the next Upcoming one.
//
// Closing means: mark Completed, finalise the actual elapsed time, and add
// the overrun to the accumulated meeting overtime. Any override window dies
// with the item it was granted for.
//
// The new current item is returned, or nil when the agenda is exhausted.
// Advancing an exhausted agenda returns [ErrNoCurrentItem].
func (m *Machine) Advance() (*Item, error) {
	if !m.Started() {
		return nil, ErrNotStarted
	}
	cur := m.CurrentItem()
	if cur == nil {
		return nil, ErrNoCurrentItem
	}

	now := m.clock.Now()
	cur.Elapsed = now.Sub(cur.StartedAt)
	cur.State = ItemCompleted
	m.finalisedOvertime += cur.Overrun()
	m.overrideUntil = time.Time{}

	for i := m.current + 1; i < len(m.items); i++ {
		if m.items[i].State == ItemUpcoming {
			m.current = i
			m.items[i].State = ItemActive
			m.items[i].StartedAt = now
			return m.items[i], nil
		}
	}

	m.current = -1
	return nil, nil
}

// CheckTime examines the current item's elapsed time against its allocation
// and applies at most one state transition:
//
//   - at or past the warning ratio from Active: the item enters Warning.
//   - at or past the full allocation with no active override: the item enters
//     Overtime and [SignalOvertime] tells the caller to advance.
//   - at or past the full allocation under an active override: the item
//     enters Extended and stays until the override expires.
//   - Extended with an expired override: [SignalOvertime] again.
func (m *Machine) CheckTime() TimeSignal {
	cur := m.CurrentItem()
	if cur == nil || !m.Started() {
		return SignalNoChange
	}

	now := m.clock.Now()
	elapsed := m.currentElapsed(now)
	overrideActive := m.overrideUntil.After(now)

	if cur.State == ItemExtended {
		if !overrideActive {
			return SignalOvertime
		}
		return SignalNoChange
	}

	if elapsed >= cur.Allocated {
		if overrideActive {
			cur.State = ItemExtended
			return SignalExtended
		}
		cur.State = ItemOvertime
		return SignalOvertime
	}

	warnAt := time.Duration(float64(cur.Allocated) * m.tuning.WarningRatio)
	if cur.State == ItemActive && elapsed >= warnAt {
		cur.State = ItemWarning
		return SignalWarningEntered
	}

	return SignalNoChange
}

// RecordOverride grants an override window of the given grace starting now.
// A non-positive grace uses the tuned default. If the current item is
// already Overtime it moves to Extended immediately.
func (m *Machine) RecordOverride(grace time.Duration) {
	if grace <= 0 {
		grace = m.tuning.OverrideGrace
	}
	now := m.clock.Now()
	m.overrideUntil = now.Add(grace)

	if cur := m.CurrentItem(); cur != nil && cur.State == ItemOvertime {
		cur.State = ItemExtended
	}
}

// OverrideActive reports whether an override window covers the current time.
func (m *Machine) OverrideActive() bool {
	return m.overrideUntil.After(m.clock.Now())
}

// RecordIntervention stamps the last-intervention time. Recording before the
// meeting started is an invariant violation and a no-op.
func (m *Machine) RecordIntervention() {
	if !m.Started() {
		return
	}
	m.lastIntervention = m.clock.Now()
}

// CanIntervene reports whether the intervention cooldown has elapsed since
// the last intervention. Cooldown-exempt triggers bypass this check at the
// call site.
func (m *Machine) CanIntervene() bool {
	if m.lastIntervention.IsZero() {
		return true
	}
	return m.clock.Now().Sub(m.lastIntervention) >= m.tuning.InterventionCooldown
}

// CanInterveneForTangent reports whether a tangent check may fire: never in
// chatting mode, and only after the style-specific tolerance has elapsed
// since the last intervention.
func (m *Machine) CanInterveneForTangent() bool {
	if m.style == StyleChatting {
		return false
	}
	if m.lastIntervention.IsZero() {
		return true
	}
	return m.clock.Now().Sub(m.lastIntervention) >= m.style.TangentTolerance()
}

// RecordSilence starts (or refreshes) the participant-requested silence
// window.
func (m *Machine) RecordSilence() {
	m.silenceUntil = m.clock.Now().Add(m.tuning.SilenceWindow)
}

// SilenceUntil returns the absolute deadline of the silence window, zero
// when none was requested.
func (m *Machine) SilenceUntil() time.Time { return m.silenceUntil }

// MeetingOvertime returns the cumulative overtime: finalised overruns of
// completed items plus the current item's overrun so far.
func (m *Machine) MeetingOvertime() time.Duration {
	now := m.clock.Now()
	total := m.finalisedOvertime
	if cur := m.CurrentItem(); cur != nil {
		elapsed := m.currentElapsed(now)
		if elapsed > cur.Allocated {
			total += elapsed - cur.Allocated
		}
	}
	return total
}

// TimeStatus returns the deterministic timing snapshot used for time-query
// replies and intervention text. Remaining is clamped to zero.
func (m *Machine) TimeStatus() TimeStatus {
	now := m.clock.Now()

	var total time.Duration
	for _, it := range m.items {
		total += it.Allocated
	}

	st := TimeStatus{
		TotalMeeting: total,
		Overtime:     m.MeetingOvertime(),
	}

	cur := m.CurrentItem()
	if cur == nil {
		return st
	}

	st.Topic = cur.Topic
	st.Allocated = cur.Allocated
	st.Elapsed = m.currentElapsed(now)
	if st.Elapsed < cur.Allocated {
		st.Remaining = cur.Allocated - st.Elapsed
	}
	return st
}

// Context builds the snapshot the speech gate decides over. The tangent
// confidence is 0.0 for every trigger except Tangent.
func (m *Machine) Context(tangentConfidence float64) Context {
	now := m.clock.Now()

	mc := Context{
		Now:               now,
		Style:             m.style,
		MeetingOvertime:   m.MeetingOvertime(),
		Recent:            m.buffer.Recent(m.tuning.RecentWindow),
		OverrideActive:    m.overrideUntil.After(now),
		SilenceUntil:      m.silenceUntil,
		TangentConfidence: tangentConfidence,
		TangentThreshold:  m.tuning.tangentThreshold(m.style),
		ItemsRemaining:    m.ItemsRemaining(),
		ItemState:         ItemCompleted,
	}

	if cur := m.CurrentItem(); cur != nil {
		mc.Topic = cur.Topic
		mc.ItemState = cur.State
		mc.Elapsed = m.currentElapsed(now)
		mc.Allocated = cur.Allocated
	}
	return mc
}

// AppendTranscript records an utterance in the rolling buffer and in the
// current item's transcript store. A zero timestamp is stamped with the
// current time.
func (m *Machine) AppendTranscript(e types.TranscriptEntry) {
	if e.Timestamp.IsZero() {
		e.Timestamp = m.clock.Now()
	}
	itemID := -1
	if cur := m.CurrentItem(); cur != nil {
		itemID = cur.ID
	}
	m.buffer.Add(itemID, e)
}

// RecentTranscript returns the rolling entries within the given window.
func (m *Machine) RecentTranscript(window time.Duration) []types.TranscriptEntry {
	return m.buffer.Recent(window)
}

// ItemTranscript returns the full transcript recorded for one agenda item.
func (m *Machine) ItemTranscript(itemID int) []types.TranscriptEntry {
	return m.buffer.Item(itemID)
}

// Observe records that a participant was seen now. The display name is
// updated when a non-empty one is supplied.
func (m *Machine) Observe(id, name string) {
	if id == "" {
		return
	}
	now := m.clock.Now()
	p, ok := m.participants[id]
	if !ok {
		p = &Participation{ID: id, FirstSeen: now}
		m.participants[id] = p
		m.participantOrder = append(m.participantOrder, id)
	}
	if name != "" {
		p.Name = name
	}
	p.LastSeen = now
}

// Participants returns the participants seen so far, in first-seen order.
func (m *Machine) Participants() []Participation {
	out := make([]Participation, 0, len(m.participantOrder))
	for _, id := range m.participantOrder {
		out = append(out, *m.participants[id])
	}
	return out
}

// QueueDocumentRequest enqueues a document request, deduplicating by slug.
// An empty slug is derived from the description (or the type when the
// description is empty). Returns false for duplicates.
func (m *Machine) QueueDocumentRequest(req DocumentRequest) bool {
	if req.Slug == "" {
		if req.Description != "" {
			req.Slug = Slugify(req.Description)
		} else {
			req.Slug = Slugify(string(req.Type))
		}
	}
	for _, q := range m.requests {
		if q.Slug == req.Slug {
			return false
		}
	}
	m.requests = append(m.requests, req)
	return true
}

// DocumentRequests returns the queued requests in arrival order.
func (m *Machine) DocumentRequests() []DocumentRequest {
	out := make([]DocumentRequest, len(m.requests))
	copy(out, m.requests)
	return out
}

// TriggerEnd flips the meeting-end flag. The first call returns true; every
// later call returns false, which is what makes the document assembly
// pipeline idempotent under duplicate end signals.
func (m *Machine) TriggerEnd() bool {
	if m.endTriggered {
		return false
	}
	m.endTriggered = true
	return true
}

// EndTriggered reports whether the end pipeline has been triggered.
func (m *Machine) EndTriggered() bool { return m.endTriggered }

// ItemSnapshot is the UI-facing view of one agenda item.
type ItemSnapshot struct {
	ID              int
	Topic           string
	DurationMinutes float64
	State           string
	ElapsedSeconds  float64
	Notes           *ItemNotes
}

// Snapshot is the UI-facing view of the whole meeting, published on the
// agenda data-channel topic after transitions and as a heartbeat.
type Snapshot struct {
	Title               string
	Style               Style
	CurrentItemIndex    int
	Items               []ItemSnapshot
	ElapsedMinutes      float64
	OvertimeMinutes     float64
	TotalMeetingMinutes float64
	MeetingNotes        string
}

// Snapshot builds the derived UI state. Minutes appear only here, at the
// display boundary; everything internal stays in durations.
func (m *Machine) Snapshot() Snapshot {
	now := m.clock.Now()

	snap := Snapshot{
		Title:            m.title,
		Style:            m.style,
		CurrentItemIndex: m.current,
		OvertimeMinutes:  m.MeetingOvertime().Minutes(),
		MeetingNotes:     m.NotesDigest(),
	}

	var total time.Duration
	for _, it := range m.items {
		total += it.Allocated
		elapsed := it.Elapsed
		if it.State.Current() {
			elapsed = m.currentElapsed(now)
		}
		snap.Items = append(snap.Items, ItemSnapshot{
			ID:              it.ID,
			Topic:           it.Topic,
			DurationMinutes: it.Allocated.Minutes(),
			State:           it.State.String(),
			ElapsedSeconds:  elapsed.Seconds(),
			Notes:           it.Notes,
		})
	}
	snap.TotalMeetingMinutes = total.Minutes()

	if m.Started() {
		snap.ElapsedMinutes = now.Sub(m.startedAt).Minutes()
	}
	return snap
}

// NotesDigest renders the completed items' notes as a compact text block for
// the UI payload and the facilitator's meeting memory. Items without notes
// are omitted.
func (m *Machine) NotesDigest() string {
	var sb strings.Builder
	for _, it := range m.items {
		if it.Notes == nil || it.Notes.Empty() {
			continue
		}
		if sb.Len() > 0 {
			sb.WriteString("\n")
		}
		fmt.Fprintf(&sb, "%s:", it.Topic)
		for _, kp := range it.Notes.KeyPoints {
			fmt.Fprintf(&sb, "\n- %s", kp)
		}
		for _, d := range it.Notes.Decisions {
			fmt.Fprintf(&sb, "\n- Decision: %s", d)
		}
		for _, a := range it.Notes.ActionItems {
			fmt.Fprintf(&sb, "\n- Action: %s", a)
		}
	}
	return sb.String()
}

// AttachNotes attaches summariser output to a completed item. Notes are
// written exactly once; a second attempt is an invariant violation no-op.
func (m *Machine) AttachNotes(itemID int, notes ItemNotes) error {
	if itemID < 0 || itemID >= len(m.items) {
		return fmt.Errorf("agenda: attach notes: unknown item %d", itemID)
	}
	it := m.items[itemID]
	if it.State != ItemCompleted {
		return fmt.Errorf("agenda: attach notes: item %d (%q) not completed", itemID, it.Topic)
	}
	if it.Notes != nil {
		return fmt.Errorf("agenda: attach notes: item %d (%q) already has notes", itemID, it.Topic)
	}
	it.Notes = &notes
	return nil
}
