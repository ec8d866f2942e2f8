package monitor

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/OccupiedPorcupine/beat-your-meet-sub000/internal/agenda"
	"github.com/OccupiedPorcupine/beat-your-meet-sub000/internal/intervention"
	"github.com/OccupiedPorcupine/beat-your-meet-sub000/pkg/types"
)

type fakeClock struct{ now time.Time }

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time          { return c.now }
func (c *fakeClock) advance(d time.Duration) { c.now = c.now.Add(d) }

type recordingSink struct {
	spoken []string
}

func (r *recordingSink) Speak(_ context.Context, text string) error {
	r.spoken = append(r.spoken, text)
	return nil
}

func (r *recordingSink) SpeakStream(_ context.Context, deltas <-chan string) error {
	var b strings.Builder
	for d := range deltas {
		b.WriteString(d)
	}
	r.spoken = append(r.spoken, b.String())
	return nil
}

type fakeAssessor struct {
	result     Assessment
	calls      int
	lastStatus agenda.TimeStatus
	lastStyle  agenda.Style
	lastRecent []types.TranscriptEntry
}

func (f *fakeAssessor) Assess(_ context.Context, st agenda.TimeStatus, style agenda.Style, recent []types.TranscriptEntry) Assessment {
	f.calls++
	f.lastStatus = st
	f.lastStyle = style
	f.lastRecent = recent
	return f.result
}

// mailbox stands in for the session control task: posted functions queue up
// and the test runs them on its own goroutine.
type mailbox struct {
	ch chan func()
}

func newMailbox() *mailbox { return &mailbox{ch: make(chan func(), 16)} }

func (m *mailbox) post(f func()) { m.ch <- f }

// runOne blocks until one posted task arrives and runs it. Used to execute
// the assessment continuation deterministically.
func (m *mailbox) runOne(t *testing.T) {
	t.Helper()
	select {
	case f := <-m.ch:
		f()
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a posted task")
	}
}

type schedFixture struct {
	clock      *fakeClock
	machine    *agenda.Machine
	sink       *recordingSink
	assess     *fakeAssessor
	mb         *mailbox
	s          *Scheduler
	summarised []agenda.Item
	snapshots  []agenda.Snapshot
	wrappedUp  bool
}

func newFixture(t *testing.T, items []agenda.ItemDef, opts ...agenda.Option) *schedFixture {
	t.Helper()
	fx := &schedFixture{
		clock:  newFakeClock(),
		sink:   &recordingSink{},
		assess: &fakeAssessor{},
		mb:     newMailbox(),
	}

	m, err := agenda.NewMachine(agenda.Definition{Title: "Weekly Sync", Items: items},
		append([]agenda.Option{agenda.WithClock(fx.clock)}, opts...)...)
	if err != nil {
		t.Fatalf("NewMachine: %v", err)
	}
	if err := m.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	fx.machine = m

	fx.s = NewScheduler(SchedulerConfig{
		Machine:     m,
		Coordinator: intervention.New(m, fx.sink),
		Assessor:    fx.assess,
		Post:        fx.mb.post,
		Summarise:   func(it agenda.Item) { fx.summarised = append(fx.summarised, it) },
		PublishSnapshot: func(sn agenda.Snapshot) {
			fx.snapshots = append(fx.snapshots, sn)
		},
		OnWrapUp: func() { fx.wrappedUp = true },
		Clock:    fx.clock,
	})
	return fx
}

func twoItems() []agenda.ItemDef {
	return []agenda.ItemDef{
		{Topic: "Standup", Allocated: 5 * time.Minute},
		{Topic: "Budget", Allocated: 10 * time.Minute},
	}
}

func TestCheckNowTimeWarning(t *testing.T) {
	fx := newFixture(t, twoItems())
	fx.clock.advance(4 * time.Minute)

	fx.s.CheckNow(context.Background())

	if len(fx.sink.spoken) != 1 || fx.sink.spoken[0] != "About 1 minute left on Standup." {
		t.Fatalf("spoken = %v, want the time warning", fx.sink.spoken)
	}

	// The warning signal fires once; later passes see no change.
	fx.clock.advance(10 * time.Second)
	fx.s.CheckNow(context.Background())
	if len(fx.sink.spoken) != 1 {
		t.Errorf("spoken = %v, want no repeat warning", fx.sink.spoken)
	}
}

func TestCheckNowWarningSuppressedByCooldown(t *testing.T) {
	fx := newFixture(t, twoItems())
	fx.clock.advance(3*time.Minute + 50*time.Second)
	fx.machine.RecordIntervention()
	fx.clock.advance(10 * time.Second)

	fx.s.CheckNow(context.Background())

	if len(fx.sink.spoken) != 0 {
		t.Errorf("spoken = %v, want the warning swallowed by the cooldown", fx.sink.spoken)
	}

	// The signal was consumed; clearing the cooldown does not revive it.
	fx.clock.advance(40 * time.Second)
	fx.s.CheckNow(context.Background())
	if len(fx.sink.spoken) != 0 {
		t.Errorf("spoken = %v, want no late warning", fx.sink.spoken)
	}
}

func TestCheckNowTransition(t *testing.T) {
	fx := newFixture(t, twoItems())
	fx.clock.advance(5*time.Minute + time.Second)

	fx.s.CheckNow(context.Background())

	want := "That's time on Standup. Next up: Budget, 10 minutes."
	if len(fx.sink.spoken) != 1 || fx.sink.spoken[0] != want {
		t.Fatalf("spoken = %v, want %q", fx.sink.spoken, want)
	}

	if len(fx.summarised) != 1 {
		t.Fatalf("summarised %d items, want 1", len(fx.summarised))
	}
	fin := fx.summarised[0]
	if fin.Topic != "Standup" || fin.State != agenda.ItemCompleted {
		t.Errorf("summarised item = %q in state %v, want completed Standup", fin.Topic, fin.State)
	}
	if fin.Elapsed != 5*time.Minute+time.Second {
		t.Errorf("finalised elapsed = %v, want 5m1s", fin.Elapsed)
	}

	if len(fx.snapshots) != 1 {
		t.Fatalf("got %d snapshots, want 1 after the transition", len(fx.snapshots))
	}
	snap := fx.snapshots[0]
	if snap.CurrentItemIndex != 1 {
		t.Errorf("snapshot current index = %d, want 1", snap.CurrentItemIndex)
	}
	if snap.Items[0].State != "completed" || snap.Items[1].State != "active" {
		t.Errorf("snapshot states = %q/%q, want completed/active",
			snap.Items[0].State, snap.Items[1].State)
	}

	// No tangent assessment on a transition pass.
	if fx.assess.calls != 0 {
		t.Errorf("assessor called %d times on a transition pass, want 0", fx.assess.calls)
	}
}

func TestCheckNowWrapUpOnLastItem(t *testing.T) {
	fx := newFixture(t, []agenda.ItemDef{{Topic: "Standup", Allocated: 2 * time.Minute}})
	fx.clock.advance(2*time.Minute + time.Second)

	fx.s.CheckNow(context.Background())

	want := "That's everything on the agenda. I'll put the meeting documents together now. Thanks, everyone."
	if len(fx.sink.spoken) != 1 || fx.sink.spoken[0] != want {
		t.Fatalf("spoken = %v, want only the wrap-up", fx.sink.spoken)
	}
	if len(fx.summarised) != 1 || fx.summarised[0].Topic != "Standup" {
		t.Errorf("summarised = %v, want the final item", fx.summarised)
	}
	if !fx.wrappedUp {
		t.Error("OnWrapUp not invoked")
	}
	if len(fx.snapshots) != 1 {
		t.Errorf("got %d snapshots, want the final one", len(fx.snapshots))
	}

	// The scheduler is done: further passes are no-ops.
	fx.clock.advance(time.Minute)
	fx.s.CheckNow(context.Background())
	if len(fx.sink.spoken) != 1 {
		t.Errorf("spoken = %v, want nothing after wrap-up", fx.sink.spoken)
	}
}

func TestCheckNowWrapUpMentionsOvertime(t *testing.T) {
	fx := newFixture(t, []agenda.ItemDef{{Topic: "Standup", Allocated: 2 * time.Minute}})
	fx.clock.advance(5 * time.Minute)

	fx.s.CheckNow(context.Background())

	if len(fx.sink.spoken) != 1 {
		t.Fatalf("spoken = %v, want the wrap-up", fx.sink.spoken)
	}
	if !strings.Contains(fx.sink.spoken[0], "We ran about 3 minutes over.") {
		t.Errorf("wrap-up = %q, want the overtime mentioned", fx.sink.spoken[0])
	}
}

func TestCheckNowOverrideExtends(t *testing.T) {
	fx := newFixture(t, twoItems())
	fx.clock.advance(4*time.Minute + 50*time.Second)
	fx.machine.RecordOverride(2 * time.Minute)

	// Past the allocation, but the override holds the item.
	fx.clock.advance(11 * time.Second)
	fx.s.CheckNow(context.Background())

	if len(fx.sink.spoken) != 0 {
		t.Fatalf("spoken = %v, want silence while the override is active", fx.sink.spoken)
	}
	if len(fx.summarised) != 0 {
		t.Fatalf("summarised = %v, want no advance yet", fx.summarised)
	}
	cur := fx.machine.CurrentItem()
	if cur == nil || cur.Topic != "Standup" || cur.State != agenda.ItemExtended {
		t.Fatalf("current item = %+v, want Standup extended", cur)
	}

	// Override expired: the next pass advances.
	fx.clock.advance(time.Minute + 50*time.Second)
	fx.s.CheckNow(context.Background())

	if len(fx.sink.spoken) != 1 || !strings.Contains(fx.sink.spoken[0], "Next up: Budget") {
		t.Fatalf("spoken = %v, want the transition after expiry", fx.sink.spoken)
	}
	if len(fx.summarised) != 1 || fx.summarised[0].Topic != "Standup" {
		t.Errorf("summarised = %v, want Standup", fx.summarised)
	}
}

func TestCheckNowTangent(t *testing.T) {
	fx := newFixture(t, twoItems())
	fx.assess.result = Assessment{
		Classification: ClassOffTopic,
		Confidence:     0.9,
		Redirect:       "Fun as that is, back to Standup.",
	}
	fx.clock.advance(2 * time.Minute)
	fx.machine.AppendTranscript(types.TranscriptEntry{
		SpeakerID: "u1", SpeakerName: "Alice",
		Text: "Did anyone catch the game last night?",
	})

	fx.s.CheckNow(context.Background())
	fx.mb.runOne(t)

	if fx.assess.calls != 1 {
		t.Fatalf("assessor called %d times, want 1", fx.assess.calls)
	}
	if fx.assess.lastStatus.Topic != "Standup" {
		t.Errorf("assessed topic = %q, want Standup", fx.assess.lastStatus.Topic)
	}
	if fx.assess.lastStyle != agenda.StyleModerate {
		t.Errorf("assessed style = %q, want moderate", fx.assess.lastStyle)
	}
	if len(fx.assess.lastRecent) != 1 {
		t.Errorf("assessor got %d transcript entries, want 1", len(fx.assess.lastRecent))
	}
	if len(fx.sink.spoken) != 1 || fx.sink.spoken[0] != "Fun as that is, back to Standup." {
		t.Fatalf("spoken = %v, want the redirect", fx.sink.spoken)
	}

	// The redirect armed the cooldown: the next pass skips the assessor.
	fx.s.CheckNow(context.Background())
	if fx.assess.calls != 1 {
		t.Errorf("assessor called %d times, want no new assessment inside the cooldown", fx.assess.calls)
	}
}

func TestCheckNowTangentWindowExcludesStaleChatter(t *testing.T) {
	fx := newFixture(t, twoItems())
	fx.assess.result = Assessment{Classification: ClassOffTopic, Confidence: 0.9, Redirect: "Back to Standup."}
	fx.machine.AppendTranscript(types.TranscriptEntry{SpeakerID: "u1", Text: "Remember that festival last summer?"})
	fx.clock.advance(90 * time.Second)

	// The chatter went quiet a minute and a half ago. Still inside the rolling
	// retention, but outside the assessor's window.
	fx.s.CheckNow(context.Background())

	if fx.assess.calls != 0 {
		t.Fatalf("assessor called %d times on 90s-old chatter, want 0", fx.assess.calls)
	}

	// Fresh chatter within the last minute is assessed, and the stale entry
	// stays out of what the assessor sees.
	fx.machine.AppendTranscript(types.TranscriptEntry{SpeakerID: "u1", Text: "Anyway, about the offsite."})
	fx.clock.advance(30 * time.Second)
	fx.s.CheckNow(context.Background())
	fx.mb.runOne(t)

	if fx.assess.calls != 1 {
		t.Fatalf("assessor called %d times, want 1 for fresh chatter", fx.assess.calls)
	}
	if len(fx.assess.lastRecent) != 1 || fx.assess.lastRecent[0].Text != "Anyway, about the offsite." {
		t.Errorf("assessor window = %v, want only the fresh entry", fx.assess.lastRecent)
	}
}

func TestCheckNowTangentLowConfidence(t *testing.T) {
	fx := newFixture(t, twoItems())
	fx.assess.result = Assessment{
		Classification: ClassDrifting,
		Confidence:     0.5,
		Redirect:       "Shall we get back to Standup?",
	}
	fx.clock.advance(2 * time.Minute)
	fx.machine.AppendTranscript(types.TranscriptEntry{SpeakerID: "u1", Text: "So about the weekend."})

	fx.s.CheckNow(context.Background())
	fx.mb.runOne(t)

	if len(fx.sink.spoken) != 0 {
		t.Errorf("spoken = %v, want the low-confidence redirect suppressed", fx.sink.spoken)
	}
	if !fx.machine.CanIntervene() {
		t.Error("cooldown armed by a suppressed redirect")
	}
}

func TestCheckNowTangentEmptyRedirect(t *testing.T) {
	fx := newFixture(t, twoItems())
	fx.assess.result = Assessment{Classification: ClassProductive, Confidence: 0.95}
	fx.clock.advance(2 * time.Minute)
	fx.machine.AppendTranscript(types.TranscriptEntry{SpeakerID: "u1", Text: "This ties into the budget actually."})

	fx.s.CheckNow(context.Background())
	fx.mb.runOne(t)

	if fx.assess.calls != 1 {
		t.Fatalf("assessor called %d times, want 1", fx.assess.calls)
	}
	if len(fx.sink.spoken) != 0 {
		t.Errorf("spoken = %v, want nothing without a proposed redirect", fx.sink.spoken)
	}
}

func TestCheckNowTangentRecheckAfterAssessment(t *testing.T) {
	fx := newFixture(t, twoItems())
	fx.assess.result = Assessment{Classification: ClassOffTopic, Confidence: 0.9, Redirect: "Back to it."}
	fx.clock.advance(2 * time.Minute)
	fx.machine.AppendTranscript(types.TranscriptEntry{SpeakerID: "u1", Text: "Completely unrelated story."})

	fx.s.CheckNow(context.Background())
	// Another speech point fires while the model is thinking.
	fx.machine.RecordIntervention()
	fx.mb.runOne(t)

	if len(fx.sink.spoken) != 0 {
		t.Errorf("spoken = %v, want the stale redirect dropped", fx.sink.spoken)
	}
}

func TestCheckNowAssessorSingleFlight(t *testing.T) {
	fx := newFixture(t, twoItems())
	fx.assess.result = Assessment{Classification: ClassOnTrack, Confidence: 0.9}
	fx.clock.advance(2 * time.Minute)
	fx.machine.AppendTranscript(types.TranscriptEntry{SpeakerID: "u1", Text: "Walking through the standup list."})

	fx.s.CheckNow(context.Background())
	fx.s.CheckNow(context.Background())
	fx.mb.runOne(t)

	if fx.assess.calls != 1 {
		t.Fatalf("assessor called %d times for two passes, want 1 in flight", fx.assess.calls)
	}

	fx.s.CheckNow(context.Background())
	fx.mb.runOne(t)
	if fx.assess.calls != 2 {
		t.Errorf("assessor called %d times, want 2 after the first completed", fx.assess.calls)
	}
}

func TestCheckNowSilenceSuppressesTangentNotTransition(t *testing.T) {
	fx := newFixture(t, twoItems())
	fx.assess.result = Assessment{Classification: ClassOffTopic, Confidence: 0.95, Redirect: "Back to the standup, please."}
	fx.clock.advance(2 * time.Minute)
	fx.machine.RecordSilence()
	fx.machine.AppendTranscript(types.TranscriptEntry{SpeakerID: "u1", Text: "Anyway, about the offsite."})

	fx.s.CheckNow(context.Background())
	fx.mb.runOne(t)

	if fx.assess.calls != 1 {
		t.Fatalf("assessor called %d times, want 1; the gate suppresses, not the scheduler", fx.assess.calls)
	}
	if len(fx.sink.spoken) != 0 {
		t.Fatalf("spoken = %v, want the redirect silenced", fx.sink.spoken)
	}

	// The agenda still moves: the transition is exempt from the silence window.
	fx.clock.advance(3*time.Minute + time.Second)
	fx.s.CheckNow(context.Background())

	if len(fx.sink.spoken) != 1 || !strings.Contains(fx.sink.spoken[0], "Next up: Budget") {
		t.Errorf("spoken = %v, want the transition through the silence window", fx.sink.spoken)
	}
}

func TestCheckNowChattingMode(t *testing.T) {
	fx := newFixture(t, twoItems(), agenda.WithStyle(agenda.StyleChatting))
	fx.clock.advance(5*time.Minute + time.Second)
	fx.machine.AppendTranscript(types.TranscriptEntry{SpeakerID: "u1", Text: "And then the funniest thing happened."})

	fx.s.CheckNow(context.Background())

	if len(fx.sink.spoken) != 0 {
		t.Errorf("spoken = %v, want nothing in chatting mode", fx.sink.spoken)
	}
	if fx.assess.calls != 0 {
		t.Errorf("assessor called %d times in chatting mode, want 0", fx.assess.calls)
	}
	if len(fx.summarised) != 0 {
		t.Errorf("summarised = %v, want no advance in chatting mode", fx.summarised)
	}
	if cur := fx.machine.CurrentItem(); cur == nil || cur.Topic != "Standup" {
		t.Errorf("current item = %+v, want Standup untouched", cur)
	}
	if len(fx.snapshots) != 1 || fx.snapshots[0].Style != agenda.StyleChatting {
		t.Errorf("snapshots = %d, want one heartbeat carrying the chatting style", len(fx.snapshots))
	}
}

func TestCheckNowHeartbeat(t *testing.T) {
	fx := newFixture(t, twoItems())

	fx.clock.advance(30 * time.Second)
	fx.s.CheckNow(context.Background())
	if len(fx.snapshots) != 0 {
		t.Fatalf("got %d snapshots, want none before the heartbeat interval", len(fx.snapshots))
	}

	fx.clock.advance(31 * time.Second)
	fx.s.CheckNow(context.Background())
	if len(fx.snapshots) != 1 {
		t.Fatalf("got %d snapshots, want the heartbeat", len(fx.snapshots))
	}

	fx.clock.advance(10 * time.Second)
	fx.s.CheckNow(context.Background())
	if len(fx.snapshots) != 1 {
		t.Errorf("got %d snapshots, want no extra publish inside the interval", len(fx.snapshots))
	}
}

func TestCheckNowNotStarted(t *testing.T) {
	clock := newFakeClock()
	m, err := agenda.NewMachine(agenda.Definition{Title: "Weekly Sync", Items: twoItems()},
		agenda.WithClock(clock))
	if err != nil {
		t.Fatalf("NewMachine: %v", err)
	}
	sink := &recordingSink{}
	s := NewScheduler(SchedulerConfig{
		Machine:     m,
		Coordinator: intervention.New(m, sink),
		Post:        func(f func()) { f() },
		Clock:       clock,
	})

	s.CheckNow(context.Background())

	if len(sink.spoken) != 0 {
		t.Errorf("spoken = %v, want nothing before the meeting starts", sink.spoken)
	}
}

// A tick already queued on the control task when the meeting ends (explicit
// end or a skip off the last item) must not produce a second wrap-up.
func TestCheckNowAfterEndTriggered(t *testing.T) {
	fx := newFixture(t, twoItems())

	fx.machine.TriggerEnd()
	fx.clock.advance(20 * time.Minute)
	fx.s.CheckNow(context.Background())

	if len(fx.sink.spoken) != 0 {
		t.Errorf("spoken = %v, want nothing after the meeting ended", fx.sink.spoken)
	}
	if fx.wrappedUp {
		t.Error("wrap-up hook fired after the meeting ended")
	}
}

func TestSchedulerDefaults(t *testing.T) {
	clock := newFakeClock()
	m, err := agenda.NewMachine(agenda.Definition{Title: "Weekly Sync", Items: twoItems()},
		agenda.WithClock(clock))
	if err != nil {
		t.Fatalf("NewMachine: %v", err)
	}
	s := NewScheduler(SchedulerConfig{
		Machine:     m,
		Coordinator: intervention.New(m, &recordingSink{}),
		Post:        func(f func()) { f() },
	})

	if s.interval != 15*time.Second {
		t.Errorf("interval = %v, want the 15s default", s.interval)
	}
	if s.heartbeat != 60*time.Second {
		t.Errorf("heartbeat = %v, want the 60s default", s.heartbeat)
	}
}

func TestSchedulerStartStop(t *testing.T) {
	clock := newFakeClock()
	m, err := agenda.NewMachine(agenda.Definition{Title: "Weekly Sync", Items: twoItems()},
		agenda.WithClock(clock))
	if err != nil {
		t.Fatalf("NewMachine: %v", err)
	}

	var mu sync.Mutex
	posts := 0
	s := NewScheduler(SchedulerConfig{
		Machine:     m,
		Coordinator: intervention.New(m, &recordingSink{}),
		Post: func(f func()) {
			mu.Lock()
			posts++
			mu.Unlock()
		},
		Interval: 10 * time.Millisecond, // very short for testing
		Clock:    clock,
	})

	s.Start(t.Context())

	// Wait long enough for at least one tick.
	time.Sleep(50 * time.Millisecond)

	s.Stop()
	mu.Lock()
	after := posts
	mu.Unlock()
	if after == 0 {
		t.Fatal("expected at least one monitoring pass to be posted")
	}

	time.Sleep(30 * time.Millisecond)
	mu.Lock()
	final := posts
	mu.Unlock()
	if final > after+1 {
		t.Errorf("loop kept posting after Stop: %d then %d", after, final)
	}

	// Calling Stop again should not panic.
	s.Stop()
}
