package discord

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/OccupiedPorcupine/beat-your-meet-sub000/pkg/room"
)

// Publish sends a JSON payload on the given data-channel topic. The rendering
// depends on the payload: agenda snapshots maintain a single dashboard
// message that is edited in place, agent chat replies are posted as plain
// text, and everything else is posted as a fenced JSON block for UI bots to
// consume.
func (c *Conn) Publish(ctx context.Context, topic string, payload []byte) error {
	channelID, ok := c.topics[topic]
	if !ok {
		return fmt.Errorf("discord: no channel mapped for topic %q", topic)
	}

	decoded, err := room.Decode(payload)
	if err != nil {
		// Not one of the known shapes; deliver verbatim.
		return c.postJSON(ctx, channelID, payload)
	}

	switch p := decoded.(type) {
	case room.AgendaState:
		return c.upsertDashboard(ctx, channelID, payload)
	case room.ChatMessage:
		if p.IsAgent && p.Text != "" {
			// The facilitator talking in chat reads as a normal message.
			if _, err := c.sendMessage(ctx, channelID, p.Text); err != nil {
				return fmt.Errorf("discord: publish chat reply: %w", err)
			}
			return nil
		}
		return c.postJSON(ctx, channelID, payload)
	default:
		return c.postJSON(ctx, channelID, payload)
	}
}

// postJSON posts a payload as a fenced JSON block.
func (c *Conn) postJSON(ctx context.Context, channelID string, payload []byte) error {
	if _, err := c.sendMessage(ctx, channelID, fenceJSON(payload)); err != nil {
		return fmt.Errorf("discord: publish payload: %w", err)
	}
	return nil
}

// upsertDashboard keeps one agenda snapshot message per meeting, edited in
// place on every publish. If the message was deleted out from under us, a
// fresh one is posted and adopted.
func (c *Conn) upsertDashboard(ctx context.Context, channelID string, payload []byte) error {
	content := fenceJSON(payload)

	c.dashMu.Lock()
	defer c.dashMu.Unlock()

	if c.dashboardID != "" {
		err := c.editMessage(ctx, channelID, c.dashboardID, content)
		if err == nil {
			return nil
		}
		slog.Debug("discord: dashboard edit failed, reposting", "error", err)
	}

	id, err := c.sendMessage(ctx, channelID, content)
	if err != nil {
		return fmt.Errorf("discord: publish agenda snapshot: %w", err)
	}
	c.dashboardID = id
	return nil
}

func fenceJSON(payload []byte) string {
	return "```json\n" + string(payload) + "\n```"
}

// handleMessageCreate bridges text-channel messages into data-channel
// payloads. JSON messages carrying a known payload type pass through
// verbatim (UI bots post set_style and end_meeting this way); plain text in
// the chat channel is wrapped as a chat_message; everything else is ignored.
func (c *Conn) handleMessageCreate(_ *discordgo.Session, m *discordgo.MessageCreate) {
	if m == nil || m.Message == nil || m.Author == nil {
		return
	}
	topic, ok := c.topicForCh[m.ChannelID]
	if !ok {
		return
	}
	if c.botID != "" && m.Author.ID == c.botID {
		// Own messages (dashboard edits, chat replies) must not echo back.
		return
	}

	content := strings.TrimSpace(m.Content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	content = strings.TrimSpace(content)
	if content == "" {
		return
	}

	if strings.HasPrefix(content, "{") {
		if _, err := room.Decode([]byte(content)); err == nil {
			c.emitData(room.DataMessage{
				Topic:   topic,
				Sender:  m.Author.ID,
				Payload: []byte(content),
			})
			return
		}
		// JSON-looking but unknown; fall through for the chat topic so a
		// message that merely starts with a brace still reaches the engine.
	}

	if topic != room.TopicChat {
		return
	}

	payload, err := room.Encode(room.ChatMessage{
		Sender:  m.Author.Username,
		Text:    content,
		IsAgent: false,
	})
	if err != nil {
		slog.Warn("discord: encode chat message", "error", err)
		return
	}
	c.emitData(room.DataMessage{
		Topic:   topic,
		Sender:  m.Author.ID,
		Payload: payload,
	})
}
