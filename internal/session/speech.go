package session

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/OccupiedPorcupine/beat-your-meet-sub000/internal/agenda"
	"github.com/OccupiedPorcupine/beat-your-meet-sub000/internal/gate"
	"github.com/OccupiedPorcupine/beat-your-meet-sub000/internal/intervention"
	"github.com/OccupiedPorcupine/beat-your-meet-sub000/internal/prompt"
	"github.com/OccupiedPorcupine/beat-your-meet-sub000/internal/router"
	"github.com/OccupiedPorcupine/beat-your-meet-sub000/pkg/audio"
	"github.com/OccupiedPorcupine/beat-your-meet-sub000/pkg/provider/stt"
	"github.com/OccupiedPorcupine/beat-your-meet-sub000/pkg/provider/vad"
	"github.com/OccupiedPorcupine/beat-your-meet-sub000/pkg/room"
	"github.com/OccupiedPorcupine/beat-your-meet-sub000/pkg/types"
)

const (
	// sttSampleRate is the recognition input format; room audio is converted
	// down to it per frame.
	sttSampleRate = 16000

	// vadFrameMs matches the 20 ms framing room transports deliver.
	vadFrameMs = 20

	// Keyword boosts for recognition bias. The bot's name matters most; topic
	// and participant names get a lighter push.
	nameBoost  = 5
	topicBoost = 3

	// archiveTimeout bounds one transcript archive write.
	archiveTimeout = 10 * time.Second
)

// speechPump is the per-participant recognition pipeline: room audio frames
// in, final transcripts posted to the control task.
type speechPump struct {
	participant room.Participant
	stt         stt.SessionHandle
	vad         vad.SessionHandle
	cancel      context.CancelFunc
}

// onParticipantEvent runs on the control task for every join and leave.
func (s *Session) onParticipantEvent(ev room.Event) {
	if ev.Participant.IsAgent {
		return
	}
	switch ev.Type {
	case room.EventJoin:
		if s.ending || s.machine == nil {
			return
		}
		s.machine.Observe(ev.Participant.ID, ev.Participant.Name)
		s.startPump(ev.Participant)
		s.refreshEntities()
	case room.EventLeave:
		s.stopPump(ev.Participant.ID)
	}
}

// startPump opens a recognition stream for one participant and spawns its
// feed and read goroutines. Idempotent per participant.
func (s *Session) startPump(p room.Participant) {
	if _, ok := s.pumps[p.ID]; ok {
		return
	}
	in, ok := s.conn.InputStreams()[p.ID]
	if !ok {
		slog.Warn("session: no input stream for participant", "room_id", s.cfg.RoomID, "participant", p.ID)
		return
	}

	ctx, cancel := context.WithCancel(s.lifeCtx)
	handle, err := s.cfg.STT.StartStream(ctx, stt.StreamConfig{
		SampleRate: sttSampleRate,
		Channels:   1,
		Language:   s.cfg.Language,
		Keywords:   s.keywords,
	})
	if err != nil {
		cancel()
		slog.Warn("session: start recognition stream", "room_id", s.cfg.RoomID, "participant", p.ID, "err", err)
		return
	}

	var vadSess vad.SessionHandle
	if s.cfg.VAD != nil {
		vadSess, err = s.cfg.VAD.NewSession(vad.Config{
			SampleRate:       sttSampleRate,
			FrameSizeMs:      vadFrameMs,
			SpeechThreshold:  0.5,
			SilenceThreshold: 0.35,
		})
		if err != nil {
			slog.Warn("session: voice activity detection unavailable", "room_id", s.cfg.RoomID, "participant", p.ID, "err", err)
			vadSess = nil
		}
	}

	pump := &speechPump{participant: p, stt: handle, vad: vadSess, cancel: cancel}
	s.pumps[p.ID] = pump

	go s.feedAudio(ctx, pump, in)
	go s.readFinals(pump)
	go audio.Drain(handle.Partials())

	slog.Debug("session: speech pump started", "room_id", s.cfg.RoomID, "participant", p.ID)
}

func (s *Session) stopPump(id string) {
	pump, ok := s.pumps[id]
	if !ok {
		return
	}
	delete(s.pumps, id)
	pump.cancel()
	if err := pump.stt.Close(); err != nil && !errors.Is(err, stt.ErrSessionClosed) {
		slog.Warn("session: close recognition stream", "room_id", s.cfg.RoomID, "participant", id, "err", err)
	}
	if pump.vad != nil {
		_ = pump.vad.Close()
	}
	slog.Debug("session: speech pump stopped", "room_id", s.cfg.RoomID, "participant", id)
}

func (s *Session) stopAllPumps() {
	for id := range s.pumps {
		s.stopPump(id)
	}
}

// feedAudio converts each room frame to the recognition format, runs the
// voice-activity gate, and forwards speech to the recogniser. A participant
// starting to speak over the facilitator cuts synthesis off.
func (s *Session) feedAudio(ctx context.Context, pump *speechPump, in <-chan types.AudioFrame) {
	conv := &audio.FormatConverter{Target: audio.Format{SampleRate: sttSampleRate, Channels: 1}}
	for {
		select {
		case <-ctx.Done():
			return
		case frame, ok := <-in:
			if !ok {
				return
			}
			f := conv.Convert(frame)
			if len(f.Data) == 0 {
				continue
			}
			if pump.vad != nil {
				ev, verr := pump.vad.ProcessFrame(f.Data)
				if verr == nil {
					if ev.Type == types.VADSpeechStart && s.speaker.Speaking() {
						s.speaker.Interrupt()
					}
					if ev.Type == types.VADSilence {
						continue
					}
				}
			}
			if err := pump.stt.SendAudio(f.Data); err != nil {
				if !errors.Is(err, stt.ErrSessionClosed) {
					slog.Warn("session: forward audio", "room_id", s.cfg.RoomID, "participant", pump.participant.ID, "err", err)
				}
				return
			}
		}
	}
}

// readFinals posts each final transcript onto the control task. It exits
// when the provider closes its finals channel.
func (s *Session) readFinals(pump *speechPump) {
	p := pump.participant
	for tr := range pump.stt.Finals() {
		t := tr
		s.Post(func() { s.handleSpeech(p, t) })
	}
}

// refreshEntities pushes the current name list into the transcript corrector
// and the recognition keyword bias: the bot's names, everyone seen in the
// room, and the agenda topics.
func (s *Session) refreshEntities() {
	names := make([]string, 0, 8)
	boosts := make([]types.KeywordBoost, 0, 8)

	add := func(name string, boost float64) {
		name = strings.TrimSpace(name)
		if name == "" {
			return
		}
		names = append(names, name)
		boosts = append(boosts, types.KeywordBoost{Keyword: name, Boost: boost})
	}

	add(s.cfg.BotName, nameBoost)
	for _, a := range s.cfg.Aliases {
		add(a, nameBoost)
	}
	if s.machine != nil {
		for _, p := range s.machine.Participants() {
			add(p.Name, topicBoost)
		}
		for _, it := range s.machine.Items() {
			add(it.Topic, topicBoost)
		}
	}

	s.corrector.SetEntities(names)
	s.keywords = boosts
	for _, pump := range s.pumps {
		if err := pump.stt.SetKeywords(boosts); err != nil && !errors.Is(err, stt.ErrNotSupported) {
			slog.Warn("session: update recognition keywords", "room_id", s.cfg.RoomID, "participant", pump.participant.ID, "err", err)
		}
	}
}

// handleSpeech runs on the control task for every final transcript: correct
// it, record it, classify it, act on it.
func (s *Session) handleSpeech(p room.Participant, tr types.Transcript) {
	if s.ending || s.machine == nil {
		return
	}

	ct := s.corrector.Correct(tr)
	text := strings.TrimSpace(ct.Corrected)
	if text == "" {
		return
	}

	s.machine.Observe(p.ID, p.Name)

	entry := types.TranscriptEntry{
		SpeakerID:   p.ID,
		SpeakerName: p.Name,
		Text:        text,
		Timestamp:   s.clock.Now(),
	}
	if len(ct.Corrections) > 0 {
		entry.RawText = tr.Text
	}
	s.machine.AppendTranscript(entry)
	s.archiveEntry(entry)

	cmd := s.router.Classify(text, s.machine.Style())
	s.apply(cmd, p, false)
}

// archiveEntry writes one transcript entry to the cross-meeting archive on
// its own goroutine. Failures are logged and forgotten; the in-meeting
// transcript is unaffected.
func (s *Session) archiveEntry(entry types.TranscriptEntry) {
	if s.cfg.Archive == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(s.lifeCtx, archiveTimeout)
		defer cancel()
		if err := s.cfg.Archive.Append(ctx, s.cfg.RoomID, entry); err != nil {
			slog.Warn("session: archive transcript entry", "room_id", s.cfg.RoomID, "err", err)
		}
	}()
}

// apply acts on one classified command. viaChat routes the replies and
// acknowledgements it produces to the chat topic; agenda announcements are
// always spoken.
func (s *Session) apply(cmd router.Command, p room.Participant, viaChat bool) {
	if s.cfg.Metrics != nil {
		s.cfg.Metrics.RecordIntent(s.lifeCtx, cmd.Intent.String())
	}
	switch cmd.Intent {
	case router.IntentNone:

	case router.IntentSilence:
		s.machine.RecordSilence()
		slog.Info("session: silence requested",
			"room_id", s.cfg.RoomID,
			"participant", p.ID,
			"until", s.machine.SilenceUntil(),
		)

	case router.IntentTimeQuery:
		if s.cfg.DeterministicTimeQueries {
			s.coord.Submit(s.lifeCtx, intervention.Candidate{
				Trigger:    gate.TriggerNamedAddress,
				Text:       prompt.TimeStatusReply(s.machine.TimeStatus()),
				Confidence: 1,
				ViaChat:    viaChat,
			})
			return
		}
		s.freeformReply(cmd.Remainder, p, viaChat)

	case router.IntentSkip:
		s.skipItem()

	case router.IntentEnd:
		s.finishMeeting(true)

	case router.IntentOverride:
		grace := s.machine.Tuning().OverrideGrace
		s.machine.RecordOverride(grace)
		var topic string
		if cur := s.machine.CurrentItem(); cur != nil {
			topic = cur.Topic
		}
		s.coord.Submit(s.lifeCtx, intervention.Candidate{
			Trigger:    gate.TriggerNamedAddress,
			Text:       prompt.OverrideAck(topic, grace),
			Confidence: 1,
			ViaChat:    viaChat,
		})

	case router.IntentDocumentRequest:
		if cmd.Doc == nil {
			return
		}
		req := *cmd.Doc
		if req.Slug == "" {
			if req.Type == agenda.DocCustom {
				req.Slug = agenda.Slugify(req.Description)
			} else {
				req.Slug = string(req.Type)
			}
		}
		s.machine.QueueDocumentRequest(req)
		// Acknowledged even when it collapsed into an earlier request; the
		// asker still gets their document.
		s.coord.Submit(s.lifeCtx, intervention.Candidate{
			Trigger:    gate.TriggerNamedAddress,
			Text:       prompt.DocumentAck(req),
			Confidence: 1,
			ViaChat:    viaChat,
		})

	case router.IntentNamedAddress:
		q := cmd.Remainder
		if strings.TrimSpace(q) == "" {
			q = cmd.Text
		}
		s.freeformReply(q, p, viaChat)

	case router.IntentGeneral:
		// Chatting mode: everything lands in the transcript, but the bot
		// answers only when engaged by name.
		if s.detector.Addressed(cmd.Text) {
			s.freeformReply(s.detector.Strip(cmd.Text), p, viaChat)
		}
	}
}

// skipItem advances the agenda on request, mirroring the monitoring pass:
// announce the move, summarise the finished item, and wrap up when nothing
// is left.
func (s *Session) skipItem() {
	cur := s.machine.CurrentItem()
	if cur == nil {
		return
	}
	next, err := s.machine.Advance()
	if err != nil {
		slog.Warn("session: advance agenda", "room_id", s.cfg.RoomID, "err", err)
		return
	}
	finished := *cur

	if next != nil {
		s.coord.Submit(s.lifeCtx, intervention.Candidate{
			Trigger:    gate.TriggerTransition,
			Text:       prompt.Transition(finished.Topic, *next),
			Confidence: 1,
		})
		s.summariseItem(finished)
		s.publishAgendaState(s.machine.Snapshot())
		return
	}

	s.summariseItem(finished)
	s.publishAgendaState(s.machine.Snapshot())
	s.finishMeeting(true)
}

// summariseItem runs note extraction for one finished item on its own
// goroutine and attaches the result back on the control task. Document
// assembly waits for every job started here.
func (s *Session) summariseItem(it agenda.Item) {
	s.summaryJobs++
	entries := s.machine.ItemTranscript(it.ID)
	go func() {
		notes := s.summariser.Summarise(s.lifeCtx, s.cfg.RoomID, it, entries)
		// Blocking send, not Post: assembly waits on the decrement, and the
		// loop keeps draining until assembly closes done, so this cannot be
		// allowed to drop on a full mailbox.
		s.tasks <- func() {
			s.summaryJobs--
			if err := s.machine.AttachNotes(it.ID, notes); err != nil {
				slog.Warn("session: attach item notes", "room_id", s.cfg.RoomID, "topic", it.Topic, "err", err)
			}
			s.maybeAssemble()
		}
	}()
}
