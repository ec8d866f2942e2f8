package room_test

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/OccupiedPorcupine/beat-your-meet-sub000/pkg/room"
)

// TestDecode_ChatMessage verifies that a chat payload decodes into the
// concrete ChatMessage type with all fields populated.
func TestDecode_ChatMessage(t *testing.T) {
	t.Parallel()

	data := []byte(`{"type":"chat_message","sender":"alice","text":"beat, how much time is left?","is_agent":false}`)
	p, err := room.Decode(data)
	if err != nil {
		t.Fatalf("Decode: unexpected error: %v", err)
	}
	msg, ok := p.(room.ChatMessage)
	if !ok {
		t.Fatalf("Decode: got %T, want room.ChatMessage", p)
	}
	if msg.Sender != "alice" {
		t.Errorf("Sender = %q, want %q", msg.Sender, "alice")
	}
	if !strings.Contains(msg.Text, "how much time") {
		t.Errorf("Text = %q, want the original message", msg.Text)
	}
	if msg.IsAgent {
		t.Error("IsAgent = true, want false for an inbound message")
	}
}

// TestDecode_ControlSignals verifies the two meeting control payloads.
func TestDecode_ControlSignals(t *testing.T) {
	t.Parallel()

	p, err := room.Decode([]byte(`{"type":"set_style","style":"gentle"}`))
	if err != nil {
		t.Fatalf("Decode set_style: unexpected error: %v", err)
	}
	ss, ok := p.(room.SetStyle)
	if !ok {
		t.Fatalf("Decode set_style: got %T, want room.SetStyle", p)
	}
	if ss.Style != "gentle" {
		t.Errorf("Style = %q, want %q", ss.Style, "gentle")
	}

	p, err = room.Decode([]byte(`{"type":"end_meeting"}`))
	if err != nil {
		t.Fatalf("Decode end_meeting: unexpected error: %v", err)
	}
	if _, ok := p.(room.EndMeeting); !ok {
		t.Fatalf("Decode end_meeting: got %T, want room.EndMeeting", p)
	}
}

// TestDecode_AgendaState verifies the snapshot payload round-trips with its
// nested items intact.
func TestDecode_AgendaState(t *testing.T) {
	t.Parallel()

	data := []byte(`{
		"type": "agenda_state",
		"current_item_index": 1,
		"items": [
			{"id": 0, "topic": "Standup", "duration_minutes": 5, "state": "Completed", "actual_elapsed": 290},
			{"id": 1, "topic": "Roadmap", "duration_minutes": 20, "state": "Active", "actual_elapsed": 61.5}
		],
		"elapsed_minutes": 5.8,
		"meeting_overtime": 0,
		"total_meeting_minutes": 25,
		"style": "moderate",
		"meeting_notes": "Standup: no blockers."
	}`)
	p, err := room.Decode(data)
	if err != nil {
		t.Fatalf("Decode: unexpected error: %v", err)
	}
	state, ok := p.(room.AgendaState)
	if !ok {
		t.Fatalf("Decode: got %T, want room.AgendaState", p)
	}
	if state.CurrentItemIndex != 1 {
		t.Errorf("CurrentItemIndex = %d, want 1", state.CurrentItemIndex)
	}
	if len(state.Items) != 2 {
		t.Fatalf("len(Items) = %d, want 2", len(state.Items))
	}
	if state.Items[1].Topic != "Roadmap" || state.Items[1].State != "Active" {
		t.Errorf("Items[1] = %+v, want topic Roadmap in state Active", state.Items[1])
	}
	if state.Items[1].ActualElapsed != 61.5 {
		t.Errorf("Items[1].ActualElapsed = %v, want 61.5", state.Items[1].ActualElapsed)
	}
	if state.Style != "moderate" {
		t.Errorf("Style = %q, want %q", state.Style, "moderate")
	}
}

// TestDecode_UnknownType verifies that an unrecognised type tag is rejected.
func TestDecode_UnknownType(t *testing.T) {
	t.Parallel()

	_, err := room.Decode([]byte(`{"type":"poll_started","question":"lunch?"}`))
	if err == nil {
		t.Fatal("expected error for unknown payload type, got nil")
	}
	if !strings.Contains(err.Error(), "poll_started") {
		t.Errorf("error should name the unknown type, got: %v", err)
	}
}

// TestDecode_MalformedJSON verifies that non-JSON input is rejected rather
// than panicking; room adapters feed arbitrary external bytes through here.
func TestDecode_MalformedJSON(t *testing.T) {
	t.Parallel()

	for _, data := range [][]byte{
		[]byte("not json at all"),
		[]byte("{"),
		[]byte(""),
		nil,
	} {
		if _, err := room.Decode(data); err == nil {
			t.Errorf("Decode(%q): expected error, got nil", data)
		}
	}
}

// TestEncode_FillsTypeTag verifies that Encode stamps the correct type tag
// even when the struct's Type field was left zero.
func TestEncode_FillsTypeTag(t *testing.T) {
	t.Parallel()

	tests := []struct {
		payload  room.Payload
		wantType string
	}{
		{room.MeetingEnded{}, room.TypeMeetingEnded},
		{room.DocsReady{RoomID: "room-7"}, room.TypeDocsReady},
		{room.SetStyle{Style: "chatting"}, room.TypeSetStyle},
		{room.EndMeeting{}, room.TypeEndMeeting},
		{room.ChatMessage{Sender: "Beat", Text: "About 4 minutes left.", IsAgent: true}, room.TypeChatMessage},
		{room.AgendaState{Style: "gentle"}, room.TypeAgendaState},
	}

	for _, tc := range tests {
		data, err := room.Encode(tc.payload)
		if err != nil {
			t.Fatalf("Encode(%T): unexpected error: %v", tc.payload, err)
		}
		var probe struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal(data, &probe); err != nil {
			t.Fatalf("Encode(%T): produced invalid JSON: %v", tc.payload, err)
		}
		if probe.Type != tc.wantType {
			t.Errorf("Encode(%T): type = %q, want %q", tc.payload, probe.Type, tc.wantType)
		}
	}
}

// TestEncodeDecode_ChatReply verifies an agent reply survives the round trip
// with the is_agent marker set.
func TestEncodeDecode_ChatReply(t *testing.T) {
	t.Parallel()

	data, err := room.Encode(room.ChatMessage{
		Sender:  "Beat",
		Text:    "about 3 minutes 20 seconds left on Roadmap",
		IsAgent: true,
	})
	if err != nil {
		t.Fatalf("Encode: unexpected error: %v", err)
	}
	p, err := room.Decode(data)
	if err != nil {
		t.Fatalf("Decode: unexpected error: %v", err)
	}
	msg, ok := p.(room.ChatMessage)
	if !ok {
		t.Fatalf("got %T, want room.ChatMessage", p)
	}
	if !msg.IsAgent {
		t.Error("IsAgent = false, want true for an agent reply")
	}
	if msg.Sender != "Beat" {
		t.Errorf("Sender = %q, want %q", msg.Sender, "Beat")
	}
}
