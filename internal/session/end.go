package session

import (
	"context"
	"log/slog"

	"github.com/OccupiedPorcupine/beat-your-meet-sub000/internal/docgen"
	"github.com/OccupiedPorcupine/beat-your-meet-sub000/internal/gate"
	"github.com/OccupiedPorcupine/beat-your-meet-sub000/internal/intervention"
	"github.com/OccupiedPorcupine/beat-your-meet-sub000/internal/prompt"
	"github.com/OccupiedPorcupine/beat-your-meet-sub000/pkg/room"
)

// finishMeeting starts the wind-down. Every termination path lands here: the
// scheduler's wrap-up (which already spoke), an explicit end signal or voice
// command (sayWrapUp true), and run-context cancellation. The machine's end
// trigger latches, so only the first caller proceeds.
func (s *Session) finishMeeting(sayWrapUp bool) {
	if s.machine == nil || !s.machine.TriggerEnd() {
		return
	}
	s.sched.Stop()

	if sayWrapUp {
		s.coord.Submit(s.lifeCtx, intervention.Candidate{
			Trigger:    gate.TriggerWrapUp,
			Text:       prompt.WrapUp(s.machine.MeetingOvertime()),
			Confidence: 1,
		})
	}

	s.ending = true
	s.maybeAssemble()
}

// maybeAssemble starts document assembly once the meeting is ending and
// every item summary has landed. It runs again after each summary job, so
// whichever condition resolves last starts the build.
func (s *Session) maybeAssemble() {
	if !s.ending || s.assembling || s.summaryJobs > 0 {
		return
	}
	s.assembling = true

	in := docgen.Capture(s.machine, s.cfg.RoomID)
	slog.Info("session: assembling meeting documents",
		"room_id", s.cfg.RoomID,
		"items", len(in.Items),
		"requests", len(in.Requests),
	)

	// Assembly gets its own context: the run context may already be
	// cancelled, and the documents must still go out.
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), assembleTimeout)
		defer cancel()
		if err := s.assembler.Assemble(ctx, in); err != nil {
			slog.Error("session: document assembly incomplete", "room_id", s.cfg.RoomID, "err", err)
		}
		// docs_ready is published even after a partial failure; whatever was
		// delivered is ready. The queue is FIFO, so meeting_ended follows it.
		s.publishPayload(room.TopicAgenda, room.DocsReady{RoomID: s.cfg.RoomID})
		s.publishPayload(room.TopicAgenda, room.MeetingEnded{})
		close(s.done)
	}()
}
