package session

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/OccupiedPorcupine/beat-your-meet-sub000/internal/agenda"
	"github.com/OccupiedPorcupine/beat-your-meet-sub000/internal/gate"
	"github.com/OccupiedPorcupine/beat-your-meet-sub000/internal/intervention"
	"github.com/OccupiedPorcupine/beat-your-meet-sub000/internal/prompt"
	"github.com/OccupiedPorcupine/beat-your-meet-sub000/pkg/audio"
	"github.com/OccupiedPorcupine/beat-your-meet-sub000/pkg/provider/llm"
	"github.com/OccupiedPorcupine/beat-your-meet-sub000/pkg/room"
	"github.com/OccupiedPorcupine/beat-your-meet-sub000/pkg/types"
)

const (
	// replyTimeout bounds one freeform reply end to end: memory assembly plus
	// the model call.
	replyTimeout = 30 * time.Second

	// replyStreamBuf buffers model deltas between the forwarder and
	// synthesis so a slow TTS start does not stall the stream.
	replyStreamBuf = 256

	// replyTemperature is the sampling temperature for conversational
	// replies. Deterministic speech points never reach the model.
	replyTemperature = 0.7
)

// freeformReply answers an utterance the router had no fixed handling for.
// It snapshots meeting state on the control task, then drafts off-task:
// voice replies stream into synthesis gated on their first sentence, chat
// replies are collected whole and published.
func (s *Session) freeformReply(query string, p room.Participant, viaChat bool) {
	query = strings.TrimSpace(query)
	if query == "" {
		return
	}
	snap := s.machine.Snapshot()
	go s.buildReply(snap, query, p, viaChat)
}

func (s *Session) buildReply(snap agenda.Snapshot, query string, p room.Participant, viaChat bool) {
	ctx, cancel := context.WithTimeout(s.lifeCtx, replyTimeout)

	var mem *prompt.Memory
	if s.builder != nil {
		m, err := s.builder.Assemble(ctx, s.cfg.RoomID, query)
		if err != nil {
			slog.Warn("session: assemble reply memory", "room_id", s.cfg.RoomID, "err", err)
		} else {
			mem = m
		}
	}

	req := llm.CompletionRequest{
		SystemPrompt: prompt.FormatSystemPrompt(s.cfg.BotName, snap, mem),
		Messages: []types.Message{
			{Role: "user", Content: query, Name: p.Name},
		},
		Temperature: replyTemperature,
	}

	if viaChat {
		defer cancel()
		resp, err := s.cfg.Large.Complete(ctx, req)
		if err != nil {
			slog.Warn("session: draft chat reply", "room_id", s.cfg.RoomID, "err", err)
			return
		}
		var text string
		if resp != nil {
			text = strings.TrimSpace(resp.Content)
		}
		if text == "" {
			return
		}
		s.Post(func() {
			s.coord.Submit(s.lifeCtx, intervention.Candidate{
				Trigger:    gate.TriggerDirectQuestion,
				Text:       text,
				Confidence: 1,
				ViaChat:    true,
			})
		})
		return
	}

	chunks, err := s.cfg.Large.StreamCompletion(ctx, req)
	if err != nil {
		cancel()
		slog.Warn("session: draft voice reply", "room_id", s.cfg.RoomID, "err", err)
		return
	}

	// The forwarder splits the stream two ways: the first sentence goes to
	// the gate, the full reply replays into synthesis. Nothing reads replay
	// until the gate has its text, so before the first sentence is delivered
	// the replay sends must never block. Once it is, the coordinator consumes
	// or drains replay on every verdict, so the blocking sends resolve.
	firstCh := make(chan string, 1)
	replay := make(chan string, replyStreamBuf)
	go func() {
		defer cancel()
		defer close(replay)
		var sb strings.Builder
		sentFirst := false
		for chunk := range chunks {
			if chunk.FinishReason == llm.FinishReasonError {
				slog.Warn("session: voice reply stream failed", "room_id", s.cfg.RoomID)
			}
			if chunk.Text == "" {
				continue
			}
			if sentFirst {
				replay <- chunk.Text
				continue
			}
			sb.WriteString(chunk.Text)
			if cut := sentenceEnd(sb.String()); cut > 0 {
				firstCh <- strings.TrimSpace(sb.String()[:cut])
				sentFirst = true
				replay <- chunk.Text
				continue
			}
			select {
			case replay <- chunk.Text:
			default:
				// The buffer filled without a sentence boundary. Gate on the
				// text accumulated so far rather than wedging the stream.
				firstCh <- strings.TrimSpace(sb.String())
				sentFirst = true
				replay <- chunk.Text
			}
		}
		if !sentFirst {
			firstCh <- strings.TrimSpace(sb.String())
		}
	}()

	first := <-firstCh
	if first == "" {
		audio.Drain(replay)
		return
	}

	posted := s.post(func() {
		s.coord.Submit(s.lifeCtx, intervention.Candidate{
			Trigger:    gate.TriggerNamedAddress,
			Text:       first,
			Confidence: 1,
			Stream:     replay,
		})
	})
	if !posted {
		audio.Drain(replay)
	}
}

// sentenceEnd returns the index just past the first sentence boundary in s,
// or 0 when s has none yet. A terminator only counts at the end of the text
// or before whitespace, so "3.5" does not split.
func sentenceEnd(s string) int {
	for i, r := range s {
		switch r {
		case '.', '!', '?':
			if i+1 >= len(s) || s[i+1] == ' ' || s[i+1] == '\n' {
				return i + 1
			}
		}
	}
	return 0
}
