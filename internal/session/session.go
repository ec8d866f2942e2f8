// Package session wires one meeting end to end: it joins the room, parses
// the meeting brief, builds the agenda state machine, and runs the control
// task every other component posts back to.
//
// Concurrency model. All meeting state lives on a single control task: a
// mailbox of closures drained by [Session.Run]. External inputs (final
// transcripts, data-channel payloads, participant events, scheduler ticks)
// are posted onto the mailbox by the goroutines that produce them; anything
// slow a handler needs (model calls, archive writes, document assembly) runs
// on a goroutine of its own and posts its continuation back. Handlers
// therefore never lock and never block.
//
// A session terminates when the agenda wraps up, a participant or the UI
// ends the meeting, or the caller cancels the run context. All three paths
// converge on the same wind-down: pending item summaries finish, the meeting
// documents are assembled and delivered once, docs_ready and meeting_ended
// are published in that order, and Run returns.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/OccupiedPorcupine/beat-your-meet-sub000/internal/agenda"
	"github.com/OccupiedPorcupine/beat-your-meet-sub000/internal/docgen"
	"github.com/OccupiedPorcupine/beat-your-meet-sub000/internal/gate"
	"github.com/OccupiedPorcupine/beat-your-meet-sub000/internal/intervention"
	"github.com/OccupiedPorcupine/beat-your-meet-sub000/internal/monitor"
	"github.com/OccupiedPorcupine/beat-your-meet-sub000/internal/observe"
	"github.com/OccupiedPorcupine/beat-your-meet-sub000/internal/prompt"
	"github.com/OccupiedPorcupine/beat-your-meet-sub000/internal/router"
	"github.com/OccupiedPorcupine/beat-your-meet-sub000/internal/summary"
	"github.com/OccupiedPorcupine/beat-your-meet-sub000/internal/transcript"
	"github.com/OccupiedPorcupine/beat-your-meet-sub000/internal/transcript/phonetic"
	"github.com/OccupiedPorcupine/beat-your-meet-sub000/internal/voice"
	"github.com/OccupiedPorcupine/beat-your-meet-sub000/pkg/minutes"
	"github.com/OccupiedPorcupine/beat-your-meet-sub000/pkg/provider/embeddings"
	"github.com/OccupiedPorcupine/beat-your-meet-sub000/pkg/provider/llm"
	"github.com/OccupiedPorcupine/beat-your-meet-sub000/pkg/provider/stt"
	"github.com/OccupiedPorcupine/beat-your-meet-sub000/pkg/provider/tts"
	"github.com/OccupiedPorcupine/beat-your-meet-sub000/pkg/provider/vad"
	"github.com/OccupiedPorcupine/beat-your-meet-sub000/pkg/room"
	"github.com/OccupiedPorcupine/beat-your-meet-sub000/pkg/types"
)

const (
	// mailboxSize bounds the control task's event queue. A full mailbox drops
	// the event rather than blocking the producer.
	mailboxSize = 1024

	// outboundSize bounds the publish queue feeding the room data channel.
	outboundSize = 32

	// publishTimeout bounds one data-channel publish.
	publishTimeout = 5 * time.Second

	// assembleTimeout bounds post-meeting document assembly, custom drafts
	// included.
	assembleTimeout = 2 * time.Minute
)

// Config carries everything a session needs. Room, RoomID, BotName, STT, TTS,
// Fast, Large and Sink are required; the rest degrade gracefully when absent.
type Config struct {
	// RoomID is the room to join.
	RoomID string

	// Metadata is the raw meeting brief attached to the room; see
	// [ParseMetadata] for the shape.
	Metadata string

	// BotName is the facilitator's spoken name, used for address detection
	// and the intro.
	BotName string

	// Aliases are additional names the address detector accepts, typically
	// common recogniser spellings of BotName.
	Aliases []string

	// Voice is the synthesis voice.
	Voice types.VoiceProfile

	// Language is the recognition language hint, empty for provider default.
	Language string

	// Room is the transport used to join RoomID.
	Room room.Room

	// STT transcribes participant audio, one stream per participant.
	STT stt.Provider

	// TTS synthesises the facilitator's speech.
	TTS tts.Provider

	// VAD gates audio frames before recognition and drives barge-in. Nil
	// forwards every frame.
	VAD vad.Engine

	// Fast is the low-latency model used for tangent assessment and item
	// notes.
	Fast llm.Provider

	// Large is the conversational model used for freeform replies and custom
	// document drafts.
	Large llm.Provider

	// Sink receives the assembled meeting documents.
	Sink minutes.DocumentSink

	// Archive persists the transcript for cross-meeting recall. Nil disables
	// memory assembly on the reply path.
	Archive minutes.Archive

	// Index and Embedder enable semantic recall over past meetings. Both must
	// be set together.
	Index    minutes.SemanticIndex
	Embedder embeddings.Provider

	// Style is the facilitation style used when the metadata does not name
	// one. Invalid or empty falls back to the default.
	Style agenda.Style

	// Tuning overrides the agenda timing knobs; zero fields keep defaults.
	Tuning agenda.Tuning

	// Interval is the monitoring period. Zero keeps the scheduler default.
	Interval time.Duration

	// Heartbeat is the maximum age of the published agenda snapshot. Zero
	// keeps the scheduler default.
	Heartbeat time.Duration

	// DeterministicTimeQueries answers time queries from the state machine
	// alone, with no model call.
	DeterministicTimeQueries bool

	// Clock overrides the time source, for tests. Nil uses the system clock.
	Clock agenda.Clock

	// Metrics, when non-nil, is threaded through the session's components:
	// gate decisions, intents, interventions, documents, synthesis latency,
	// and the live-session gauge.
	Metrics *observe.Metrics
}

// outbound is one queued data-channel publish.
type outbound struct {
	topic   string
	payload room.Payload
}

// Session runs one meeting.
type Session struct {
	cfg   Config
	clock agenda.Clock

	// Machine-independent components, built in New.
	router     *router.Router
	detector   *router.AddressDetector
	corrector  *transcript.Corrector
	summariser *summary.Summariser
	assessor   *monitor.Assessor
	assembler  *docgen.Assembler
	builder    *prompt.Builder

	tasks chan func()
	done  chan struct{}

	pubCh   chan outbound
	pubQuit chan struct{}
	pubDone chan struct{}

	// Meeting runtime, built during Run before the control loop starts and
	// torn down after it exits.
	conn       room.Conn
	machine    *agenda.Machine
	speaker    *voice.Speaker
	coord      *intervention.Coordinator
	sched      *monitor.Scheduler
	lifeCtx    context.Context
	lifeCancel context.CancelFunc

	// Control-task state. Only handlers running on the control task touch
	// these, so they need no lock.
	pumps       map[string]*speechPump
	keywords    []types.KeywordBoost
	summaryJobs int
	ending      bool
	assembling  bool
}

var _ intervention.ChatSink = (*Session)(nil)

// New validates cfg and builds a Session ready to Run.
func New(cfg Config) (*Session, error) {
	var errs []error
	if cfg.Room == nil {
		errs = append(errs, errors.New("session: room transport is required"))
	}
	if cfg.RoomID == "" {
		errs = append(errs, errors.New("session: room id is required"))
	}
	if cfg.BotName == "" {
		errs = append(errs, errors.New("session: bot name is required"))
	}
	if cfg.STT == nil {
		errs = append(errs, errors.New("session: speech recognition provider is required"))
	}
	if cfg.TTS == nil {
		errs = append(errs, errors.New("session: speech synthesis provider is required"))
	}
	if cfg.Fast == nil {
		errs = append(errs, errors.New("session: fast model provider is required"))
	}
	if cfg.Large == nil {
		errs = append(errs, errors.New("session: conversational model provider is required"))
	}
	if cfg.Sink == nil {
		errs = append(errs, errors.New("session: document sink is required"))
	}
	if (cfg.Index == nil) != (cfg.Embedder == nil) {
		errs = append(errs, errors.New("session: semantic index and embedder must be configured together"))
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	clock := cfg.Clock
	if clock == nil {
		clock = agenda.SystemClock{}
	}

	sumOpts := []summary.Option{}
	if cfg.Index != nil && cfg.Embedder != nil {
		sumOpts = append(sumOpts, summary.WithSemanticIndex(cfg.Index, cfg.Embedder))
	}

	docOpts := []docgen.Option{}
	if cfg.Metrics != nil {
		docOpts = append(docOpts, docgen.WithMetrics(cfg.Metrics))
	}

	var builder *prompt.Builder
	if cfg.Archive != nil {
		builder = prompt.NewBuilder(cfg.Archive, cfg.Index, cfg.Embedder)
	}

	return &Session{
		cfg:        cfg,
		clock:      clock,
		router:     router.New(cfg.BotName, cfg.Aliases...),
		detector:   router.NewAddressDetector(cfg.BotName, cfg.Aliases...),
		corrector:  transcript.New(phonetic.New()),
		summariser: summary.New(cfg.Fast, sumOpts...),
		assessor:   monitor.NewAssessor(cfg.Fast),
		assembler:  docgen.New(cfg.Sink, cfg.Large, docOpts...),
		builder:    builder,
		tasks:      make(chan func(), mailboxSize),
		done:       make(chan struct{}),
		pubCh:      make(chan outbound, outboundSize),
		pubQuit:    make(chan struct{}),
		pubDone:    make(chan struct{}),
		pumps:      make(map[string]*speechPump),
	}, nil
}

// Post schedules f onto the session control task. It never blocks; when the
// mailbox is full the event is dropped and logged.
func (s *Session) Post(f func()) { s.post(f) }

func (s *Session) post(f func()) bool {
	select {
	case s.tasks <- f:
		return true
	default:
		slog.Warn("session: control mailbox full, event dropped", "room_id", s.cfg.RoomID)
		return false
	}
}

// Run joins the room and drives the meeting to completion. It blocks until
// the meeting ends, a startup stage fails, or ctx is cancelled; cancellation
// still winds the meeting down cleanly, documents included.
func (s *Session) Run(ctx context.Context) error {
	s.lifeCtx, s.lifeCancel = context.WithCancel(context.Background())
	defer s.lifeCancel()

	conn, err := s.cfg.Room.Join(ctx, s.cfg.RoomID)
	if err != nil {
		return fmt.Errorf("session: join room %s: %w", s.cfg.RoomID, err)
	}
	s.conn = conn
	defer func() {
		if err := conn.Leave(); err != nil {
			slog.Warn("session: leave room", "room_id", s.cfg.RoomID, "err", err)
		}
	}()

	if s.cfg.Metrics != nil {
		s.cfg.Metrics.ActiveSessions.Add(ctx, 1)
		defer s.cfg.Metrics.ActiveSessions.Add(context.Background(), -1)
	}

	if err := s.awaitFirstHuman(ctx); err != nil {
		s.announceAbort()
		return fmt.Errorf("session: waiting for participants in %s: %w", s.cfg.RoomID, err)
	}

	meta, err := ParseMetadata(s.cfg.Metadata, s.cfg.Style)
	if err != nil {
		s.announceAbort()
		return fmt.Errorf("session: parse metadata for %s: %w", s.cfg.RoomID, err)
	}

	machine, err := agenda.NewMachine(meta.Definition,
		agenda.WithClock(s.clock),
		agenda.WithStyle(meta.Style),
		agenda.WithTuning(s.cfg.Tuning),
	)
	if err != nil {
		s.announceAbort()
		return fmt.Errorf("session: build agenda for %s: %w", s.cfg.RoomID, err)
	}
	if err := machine.Start(); err != nil {
		s.announceAbort()
		return fmt.Errorf("session: start agenda for %s: %w", s.cfg.RoomID, err)
	}
	s.machine = machine

	for _, req := range meta.Requests {
		machine.QueueDocumentRequest(req)
	}

	speakerOpts := []voice.Option{}
	coordOpts := []intervention.Option{intervention.WithChatSink(s)}
	if s.cfg.Metrics != nil {
		speakerOpts = append(speakerOpts, voice.WithMetrics(s.cfg.Metrics))
		coordOpts = append(coordOpts, intervention.WithMetrics(s.cfg.Metrics))
	}
	s.speaker = voice.New(s.cfg.TTS, s.cfg.Voice, conn.OutputStream(), speakerOpts...)
	s.coord = intervention.New(machine, s.speaker, coordOpts...)
	s.sched = monitor.NewScheduler(monitor.SchedulerConfig{
		Machine:         machine,
		Coordinator:     s.coord,
		Assessor:        s.assessor,
		Post:            s.Post,
		Summarise:       s.summariseItem,
		PublishSnapshot: s.publishAgendaState,
		OnWrapUp:        func() { s.finishMeeting(false) },
		Interval:        s.cfg.Interval,
		Heartbeat:       s.cfg.Heartbeat,
		Clock:           s.clock,
		Metrics:         s.cfg.Metrics,
	})

	go s.publisher()

	for _, p := range conn.Participants() {
		if p.IsAgent {
			continue
		}
		machine.Observe(p.ID, p.Name)
	}
	s.refreshEntities()
	for _, p := range conn.Participants() {
		if !p.IsAgent {
			s.startPump(p)
		}
	}

	conn.OnData(func(msg room.DataMessage) {
		s.Post(func() { s.handleData(msg) })
	})

	s.publishAgendaState(machine.Snapshot())
	s.coord.Submit(s.lifeCtx, intervention.Candidate{
		Trigger:    gate.TriggerIntro,
		Text:       prompt.Intro(s.cfg.BotName, machine.Title(), machine.Items()),
		Confidence: 1,
	})
	s.sched.Start(s.lifeCtx)

	slog.Info("session started",
		"room_id", s.cfg.RoomID,
		"title", machine.Title(),
		"items", machine.ItemCount(),
		"style", string(machine.Style()),
	)

	s.loop(ctx)

	// Wind down in reverse start order. The final utterance is allowed to
	// play out before its context is cancelled.
	s.speaker.Wait()
	s.lifeCancel()
	s.sched.Stop()
	s.stopAllPumps()
	if err := s.speaker.Close(); err != nil {
		slog.Warn("session: close speaker", "room_id", s.cfg.RoomID, "err", err)
	}
	close(s.pubQuit)
	<-s.pubDone

	slog.Info("session stopped", "room_id", s.cfg.RoomID)
	return nil
}

// loop drains the control mailbox until the wind-down closes done. A
// cancelled run context ends the meeting the same way a disconnect does; the
// nil-channel trick makes that arm fire once.
func (s *Session) loop(ctx context.Context) {
	cancelCh := ctx.Done()
	for {
		select {
		case <-cancelCh:
			cancelCh = nil
			s.finishMeeting(false)
		case <-s.done:
			return
		case f := <-s.tasks:
			f()
		}
	}
}

// awaitFirstHuman installs the participant callback, then blocks until a
// non-agent participant is present. The callback stays installed for the
// whole session; join and leave events ride the control mailbox.
func (s *Session) awaitFirstHuman(ctx context.Context) error {
	first := make(chan struct{})
	var once sync.Once

	s.conn.OnParticipantChange(func(ev room.Event) {
		if ev.Type == room.EventJoin && !ev.Participant.IsAgent {
			once.Do(func() { close(first) })
		}
		s.Post(func() { s.onParticipantEvent(ev) })
	})

	// The callback only sees changes; someone may be in the room already.
	for _, p := range s.conn.Participants() {
		if !p.IsAgent {
			once.Do(func() { close(first) })
			break
		}
	}

	select {
	case <-first:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// announceAbort best-effort publishes meeting_ended when a startup stage
// fails, so a waiting UI is not left polling a dead room. The publisher
// goroutine is not running yet on these paths.
func (s *Session) announceAbort() {
	data, err := room.Encode(room.MeetingEnded{})
	if err != nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	if err := s.conn.Publish(ctx, room.TopicAgenda, data); err != nil {
		slog.Warn("session: announce abnormal end", "room_id", s.cfg.RoomID, "err", err)
	}
}

// ─── Outbound publishing ──────────────────────────────────────────────────────

// publisher serialises data-channel publishes on one goroutine, preserving
// enqueue order. On quit it drains what is already queued, which is what
// guarantees docs_ready goes out before meeting_ended during wind-down.
func (s *Session) publisher() {
	defer close(s.pubDone)
	for {
		select {
		case out := <-s.pubCh:
			s.sendPayload(out)
		case <-s.pubQuit:
			for {
				select {
				case out := <-s.pubCh:
					s.sendPayload(out)
				default:
					return
				}
			}
		}
	}
}

// publishPayload queues one payload for the publisher. It never blocks; a
// full queue drops the payload and logs.
func (s *Session) publishPayload(topic string, p room.Payload) {
	select {
	case s.pubCh <- outbound{topic: topic, payload: p}:
	default:
		slog.Warn("session: outbound queue full, payload dropped",
			"room_id", s.cfg.RoomID,
			"topic", topic,
		)
	}
}

func (s *Session) sendPayload(out outbound) {
	data, err := room.Encode(out.payload)
	if err != nil {
		slog.Warn("session: encode payload", "room_id", s.cfg.RoomID, "topic", out.topic, "err", err)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	if err := s.conn.Publish(ctx, out.topic, data); err != nil {
		slog.Warn("session: publish", "room_id", s.cfg.RoomID, "topic", out.topic, "err", err)
	}
}

// publishAgendaState maps the machine snapshot onto the wire shape and queues
// it on the agenda topic.
func (s *Session) publishAgendaState(snap agenda.Snapshot) {
	st := room.AgendaState{
		CurrentItemIndex:    snap.CurrentItemIndex,
		Items:               make([]room.AgendaStateItem, len(snap.Items)),
		ElapsedMinutes:      snap.ElapsedMinutes,
		MeetingOvertime:     snap.OvertimeMinutes,
		TotalMeetingMinutes: snap.TotalMeetingMinutes,
		Style:               string(snap.Style),
		MeetingNotes:        snap.MeetingNotes,
	}
	for i, it := range snap.Items {
		st.Items[i] = room.AgendaStateItem{
			ID:              it.ID,
			Topic:           it.Topic,
			DurationMinutes: it.DurationMinutes,
			State:           it.State,
			ActualElapsed:   it.ElapsedSeconds,
		}
	}
	s.publishPayload(room.TopicAgenda, st)
}

// ReplyChat implements [intervention.ChatSink]: approved chat candidates are
// published on the chat topic as the facilitator.
func (s *Session) ReplyChat(_ context.Context, text string) error {
	s.publishPayload(room.TopicChat, room.ChatMessage{
		Sender:  s.cfg.BotName,
		Text:    text,
		IsAgent: true,
	})
	return nil
}
