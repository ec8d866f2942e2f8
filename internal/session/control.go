package session

import (
	"log/slog"
	"strings"

	"github.com/OccupiedPorcupine/beat-your-meet-sub000/internal/agenda"
	"github.com/OccupiedPorcupine/beat-your-meet-sub000/pkg/room"
)

// handleData runs on the control task for every data-channel message. The
// payloads a meeting UI sends are handled; everything else, including the
// session's own published state echoed back by the transport, is ignored.
func (s *Session) handleData(msg room.DataMessage) {
	if s.ending || s.machine == nil {
		return
	}

	p, err := room.Decode(msg.Payload)
	if err != nil {
		// Malformed external input: log and carry on.
		slog.Debug("session: undecodable data message",
			"room_id", s.cfg.RoomID,
			"topic", msg.Topic,
			"sender", msg.Sender,
			"err", err,
		)
		return
	}

	switch v := p.(type) {
	case room.SetStyle:
		s.setStyle(v.Style)
	case room.EndMeeting:
		s.finishMeeting(true)
	case room.ChatMessage:
		s.handleChat(msg.Sender, v)
	}
}

// setStyle applies a UI style switch and pushes the refreshed state so the
// room sees the change immediately.
func (s *Session) setStyle(style string) {
	st := agenda.Style(strings.ToLower(strings.TrimSpace(style)))
	if err := s.machine.SetStyle(st); err != nil {
		slog.Warn("session: set style", "room_id", s.cfg.RoomID, "style", style, "err", err)
		return
	}
	slog.Info("session: style changed", "room_id", s.cfg.RoomID, "style", string(st))
	s.publishAgendaState(s.machine.Snapshot())
}

// handleChat routes a chat message that names the bot through the command
// router. The reply goes back on the chat topic rather than being spoken;
// agenda moves a chat command causes (skip, end) are still announced by
// voice.
func (s *Session) handleChat(senderID string, msg room.ChatMessage) {
	if msg.IsAgent {
		return
	}
	text := strings.TrimSpace(msg.Text)
	if text == "" || !s.detector.Addressed(text) {
		return
	}

	p := s.resolveParticipant(senderID, msg.Sender)
	s.machine.Observe(p.ID, p.Name)

	cmd := s.router.Classify(text, s.machine.Style())
	s.apply(cmd, p, true)
}

// resolveParticipant finds the room participant behind a chat message,
// falling back to the identities carried on the message itself.
func (s *Session) resolveParticipant(senderID, senderName string) room.Participant {
	id := senderID
	if id == "" {
		id = senderName
	}
	for _, rp := range s.conn.Participants() {
		if rp.ID == id {
			return rp
		}
	}
	name := senderName
	if name == "" {
		name = id
	}
	return room.Participant{ID: id, Name: name}
}
