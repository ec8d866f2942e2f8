package discord

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/OccupiedPorcupine/beat-your-meet-sub000/pkg/room"
)

// sentMessage records one sendMessage or editMessage invocation.
type sentMessage struct {
	ChannelID string
	MessageID string // empty for sends
	Content   string
}

// newDataConn builds a Conn with recording transport touchpoints and no
// audio loops; Publish and handleMessageCreate don't need them.
func newDataConn() (*Conn, *[]sentMessage, *[]sentMessage) {
	var mu sync.Mutex
	sends := &[]sentMessage{}
	edits := &[]sentMessage{}
	c := &Conn{
		guildID:    "guild-test",
		botID:      "bot-1",
		topics:     map[string]string{room.TopicAgenda: "ch-agenda", room.TopicChat: "ch-chat"},
		topicForCh: map[string]string{"ch-agenda": room.TopicAgenda, "ch-chat": room.TopicChat},
	}
	c.sendMessage = func(_ context.Context, channelID, content string) (string, error) {
		mu.Lock()
		defer mu.Unlock()
		*sends = append(*sends, sentMessage{ChannelID: channelID, Content: content})
		return "msg-" + channelID, nil
	}
	c.editMessage = func(_ context.Context, channelID, messageID, content string) error {
		mu.Lock()
		defer mu.Unlock()
		*edits = append(*edits, sentMessage{ChannelID: channelID, MessageID: messageID, Content: content})
		return nil
	}
	return c, sends, edits
}

func mustEncode(t *testing.T, p room.Payload) []byte {
	t.Helper()
	data, err := room.Encode(p)
	if err != nil {
		t.Fatalf("Encode(%T): %v", p, err)
	}
	return data
}

// TestPublish_UnmappedTopic verifies that publishing on a topic without a
// channel mapping fails with a named error.
func TestPublish_UnmappedTopic(t *testing.T) {
	t.Parallel()

	c, _, _ := newDataConn()
	err := c.Publish(context.Background(), "polls", []byte(`{}`))
	if err == nil {
		t.Fatal("expected error for unmapped topic, got nil")
	}
	if !strings.Contains(err.Error(), "polls") {
		t.Errorf("error should name the topic, got: %v", err)
	}
}

// TestPublish_ChatReplyPlainText verifies that an agent chat reply is posted
// as plain message text, not as a JSON blob.
func TestPublish_ChatReplyPlainText(t *testing.T) {
	t.Parallel()

	c, sends, _ := newDataConn()
	payload := mustEncode(t, room.ChatMessage{
		Sender:  "Beat",
		Text:    "About 4 minutes left on Roadmap.",
		IsAgent: true,
	})
	if err := c.Publish(context.Background(), room.TopicChat, payload); err != nil {
		t.Fatalf("Publish: unexpected error: %v", err)
	}
	if len(*sends) != 1 {
		t.Fatalf("want 1 send, got %d", len(*sends))
	}
	got := (*sends)[0]
	if got.ChannelID != "ch-chat" {
		t.Errorf("ChannelID = %q, want ch-chat", got.ChannelID)
	}
	if got.Content != "About 4 minutes left on Roadmap." {
		t.Errorf("Content = %q, want the plain reply text", got.Content)
	}
}

// TestPublish_DocsReadyFenced verifies that control payloads are posted as
// fenced JSON for UI bots.
func TestPublish_DocsReadyFenced(t *testing.T) {
	t.Parallel()

	c, sends, _ := newDataConn()
	payload := mustEncode(t, room.DocsReady{RoomID: "voice-1"})
	if err := c.Publish(context.Background(), room.TopicAgenda, payload); err != nil {
		t.Fatalf("Publish: unexpected error: %v", err)
	}
	if len(*sends) != 1 {
		t.Fatalf("want 1 send, got %d", len(*sends))
	}
	content := (*sends)[0].Content
	if !strings.HasPrefix(content, "```json") {
		t.Errorf("content should be fenced JSON, got %q", content)
	}
	if !strings.Contains(content, "docs_ready") {
		t.Errorf("content should carry the payload, got %q", content)
	}
}

// TestPublish_AgendaDashboardUpsert verifies that agenda snapshots maintain a
// single message: first publish posts, subsequent publishes edit, and a
// failed edit falls back to reposting.
func TestPublish_AgendaDashboardUpsert(t *testing.T) {
	t.Parallel()

	c, sends, edits := newDataConn()
	snap := mustEncode(t, room.AgendaState{
		Style: "moderate",
		Items: []room.AgendaStateItem{{ID: 0, Topic: "Standup", DurationMinutes: 5, State: "Active"}},
	})

	// First publish posts a new dashboard message.
	if err := c.Publish(context.Background(), room.TopicAgenda, snap); err != nil {
		t.Fatalf("first Publish: %v", err)
	}
	if len(*sends) != 1 || len(*edits) != 0 {
		t.Fatalf("after first publish: sends=%d edits=%d, want 1/0", len(*sends), len(*edits))
	}
	if c.dashboardID != "msg-ch-agenda" {
		t.Errorf("dashboardID = %q, want msg-ch-agenda", c.dashboardID)
	}

	// Second publish edits in place.
	if err := c.Publish(context.Background(), room.TopicAgenda, snap); err != nil {
		t.Fatalf("second Publish: %v", err)
	}
	if len(*sends) != 1 || len(*edits) != 1 {
		t.Fatalf("after second publish: sends=%d edits=%d, want 1/1", len(*sends), len(*edits))
	}
	if (*edits)[0].MessageID != "msg-ch-agenda" {
		t.Errorf("edit targeted %q, want msg-ch-agenda", (*edits)[0].MessageID)
	}

	// A deleted dashboard message (edit failure) is reposted and re-adopted.
	c.editMessage = func(_ context.Context, _, _, _ string) error {
		return errors.New("unknown message")
	}
	if err := c.Publish(context.Background(), room.TopicAgenda, snap); err != nil {
		t.Fatalf("third Publish: %v", err)
	}
	if len(*sends) != 2 {
		t.Fatalf("after failed edit: sends=%d, want 2", len(*sends))
	}
}

// collectData registers a data callback and returns the delivery channel.
func collectData(c *Conn) chan room.DataMessage {
	got := make(chan room.DataMessage, 4)
	c.OnData(func(msg room.DataMessage) { got <- msg })
	return got
}

func newMessage(channelID, authorID, username, content string) *discordgo.MessageCreate {
	return &discordgo.MessageCreate{
		Message: &discordgo.Message{
			ChannelID: channelID,
			Content:   content,
			Author:    &discordgo.User{ID: authorID, Username: username},
		},
	}
}

// TestHandleMessageCreate_WrapsChatText verifies that a plain text message in
// the chat channel arrives as a chat_message payload with the author identity.
func TestHandleMessageCreate_WrapsChatText(t *testing.T) {
	t.Parallel()

	c, _, _ := newDataConn()
	got := collectData(c)

	c.handleMessageCreate(nil, newMessage("ch-chat", "u1", "alice", "beat, move on to the next topic"))

	select {
	case msg := <-got:
		if msg.Topic != room.TopicChat {
			t.Errorf("Topic = %q, want chat", msg.Topic)
		}
		if msg.Sender != "u1" {
			t.Errorf("Sender = %q, want u1", msg.Sender)
		}
		p, err := room.Decode(msg.Payload)
		if err != nil {
			t.Fatalf("Decode payload: %v", err)
		}
		chat, ok := p.(room.ChatMessage)
		if !ok {
			t.Fatalf("payload is %T, want room.ChatMessage", p)
		}
		if chat.Sender != "alice" {
			t.Errorf("chat.Sender = %q, want alice", chat.Sender)
		}
		if chat.Text != "beat, move on to the next topic" {
			t.Errorf("chat.Text = %q", chat.Text)
		}
		if chat.IsAgent {
			t.Error("chat.IsAgent = true, want false")
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for data message")
	}
}

// TestHandleMessageCreate_PassthroughControl verifies that a known JSON
// payload posted in a mapped channel passes through verbatim.
func TestHandleMessageCreate_PassthroughControl(t *testing.T) {
	t.Parallel()

	c, _, _ := newDataConn()
	got := collectData(c)

	c.handleMessageCreate(nil, newMessage("ch-agenda", "ui-bot", "dashboard", `{"type":"end_meeting"}`))

	select {
	case msg := <-got:
		if msg.Topic != room.TopicAgenda {
			t.Errorf("Topic = %q, want agenda", msg.Topic)
		}
		p, err := room.Decode(msg.Payload)
		if err != nil {
			t.Fatalf("Decode payload: %v", err)
		}
		if _, ok := p.(room.EndMeeting); !ok {
			t.Fatalf("payload is %T, want room.EndMeeting", p)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for data message")
	}
}

// TestHandleMessageCreate_FencedControl verifies that a fenced JSON block
// (the format the adapter itself posts) is unwrapped before decoding.
func TestHandleMessageCreate_FencedControl(t *testing.T) {
	t.Parallel()

	c, _, _ := newDataConn()
	got := collectData(c)

	c.handleMessageCreate(nil, newMessage("ch-agenda", "ui-bot", "dashboard",
		"```json\n{\"type\":\"set_style\",\"style\":\"gentle\"}\n```"))

	select {
	case msg := <-got:
		p, err := room.Decode(msg.Payload)
		if err != nil {
			t.Fatalf("Decode payload: %v", err)
		}
		ss, ok := p.(room.SetStyle)
		if !ok {
			t.Fatalf("payload is %T, want room.SetStyle", p)
		}
		if ss.Style != "gentle" {
			t.Errorf("Style = %q, want gentle", ss.Style)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for data message")
	}
}

// TestHandleMessageCreate_Ignores verifies the three silence cases: the
// bot's own messages, unmapped channels, and plain text outside the chat
// topic.
func TestHandleMessageCreate_Ignores(t *testing.T) {
	t.Parallel()

	c, _, _ := newDataConn()
	got := collectData(c)

	c.handleMessageCreate(nil, newMessage("ch-chat", "bot-1", "Beat", "About 2 minutes left."))
	c.handleMessageCreate(nil, newMessage("ch-random", "u1", "alice", "hello"))
	c.handleMessageCreate(nil, newMessage("ch-agenda", "u1", "alice", "nice agenda"))

	select {
	case msg := <-got:
		t.Errorf("expected no data message, got %+v", msg)
	case <-time.After(100 * time.Millisecond):
		// expected
	}
}
