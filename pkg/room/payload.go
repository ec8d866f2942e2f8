package room

import (
	"encoding/json"
	"fmt"
)

// Payload type tags carried in the "type" field of every data-channel payload.
const (
	TypeAgendaState  = "agenda_state"
	TypeMeetingEnded = "meeting_ended"
	TypeDocsReady    = "docs_ready"
	TypeSetStyle     = "set_style"
	TypeEndMeeting   = "end_meeting"
	TypeChatMessage  = "chat_message"
)

// Payload is the sealed union of data-channel payload shapes. Concrete types
// are [AgendaState], [MeetingEnded], [DocsReady], [SetStyle], [EndMeeting]
// and [ChatMessage]; use a type switch on the value returned by [Decode].
type Payload interface {
	payloadType() string
}

// AgendaState is the derived meeting snapshot published on [TopicAgenda]
// after every item transition and as a periodic heartbeat. It is the only
// state a meeting UI needs to render the agenda view.
type AgendaState struct {
	Type                string            `json:"type"`
	CurrentItemIndex    int               `json:"current_item_index"`
	Items               []AgendaStateItem `json:"items"`
	ElapsedMinutes      float64           `json:"elapsed_minutes"`
	MeetingOvertime     float64           `json:"meeting_overtime"`
	TotalMeetingMinutes float64           `json:"total_meeting_minutes"`
	Style               string            `json:"style"`
	MeetingNotes        string            `json:"meeting_notes,omitempty"`
}

// AgendaStateItem is one agenda item inside an [AgendaState] snapshot.
// ActualElapsed is in seconds; the minute fields are minutes.
type AgendaStateItem struct {
	ID              int     `json:"id"`
	Topic           string  `json:"topic"`
	DurationMinutes float64 `json:"duration_minutes"`
	State           string  `json:"state"`
	ActualElapsed   float64 `json:"actual_elapsed"`
}

// MeetingEnded is published on [TopicAgenda] exactly once when the meeting
// terminates, whether by wrap-up, explicit end signal or fatal error.
type MeetingEnded struct {
	Type string `json:"type"`
}

// DocsReady is published on [TopicAgenda] after the meeting documents have
// been uploaded.
type DocsReady struct {
	Type   string `json:"type"`
	RoomID string `json:"room_id"`
}

// SetStyle switches the facilitation style mid-meeting. Accepted on any topic.
type SetStyle struct {
	Type  string `json:"type"`
	Style string `json:"style"`
}

// EndMeeting requests meeting termination. Accepted on any topic.
type EndMeeting struct {
	Type string `json:"type"`
}

// ChatMessage is a text-channel message. Inbound messages carry IsAgent false;
// replies the engine publishes back on [TopicChat] carry IsAgent true, which
// is how the engine avoids routing its own replies.
type ChatMessage struct {
	Type    string `json:"type"`
	Sender  string `json:"sender"`
	Text    string `json:"text"`
	IsAgent bool   `json:"is_agent"`
}

func (AgendaState) payloadType() string  { return TypeAgendaState }
func (MeetingEnded) payloadType() string { return TypeMeetingEnded }
func (DocsReady) payloadType() string    { return TypeDocsReady }
func (SetStyle) payloadType() string     { return TypeSetStyle }
func (EndMeeting) payloadType() string   { return TypeEndMeeting }
func (ChatMessage) payloadType() string  { return TypeChatMessage }

// Decode parses a data-channel payload into its concrete [Payload] type,
// dispatching on the "type" field. Unknown types and malformed JSON return
// an error; callers treat both as ignorable external input.
func Decode(data []byte) (Payload, error) {
	var probe struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("room: decode payload: %w", err)
	}

	switch probe.Type {
	case TypeAgendaState:
		var p AgendaState
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, fmt.Errorf("room: decode %s: %w", probe.Type, err)
		}
		return p, nil
	case TypeMeetingEnded:
		var p MeetingEnded
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, fmt.Errorf("room: decode %s: %w", probe.Type, err)
		}
		return p, nil
	case TypeDocsReady:
		var p DocsReady
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, fmt.Errorf("room: decode %s: %w", probe.Type, err)
		}
		return p, nil
	case TypeSetStyle:
		var p SetStyle
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, fmt.Errorf("room: decode %s: %w", probe.Type, err)
		}
		return p, nil
	case TypeEndMeeting:
		var p EndMeeting
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, fmt.Errorf("room: decode %s: %w", probe.Type, err)
		}
		return p, nil
	case TypeChatMessage:
		var p ChatMessage
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, fmt.Errorf("room: decode %s: %w", probe.Type, err)
		}
		return p, nil
	default:
		return nil, fmt.Errorf("room: unknown payload type %q", probe.Type)
	}
}

// Encode marshals a payload, filling in its type tag. Using Encode instead of
// json.Marshal directly guarantees the "type" field matches the Go type even
// when the caller left it zero.
func Encode(p Payload) ([]byte, error) {
	switch v := p.(type) {
	case AgendaState:
		v.Type = TypeAgendaState
		return marshalPayload(v)
	case MeetingEnded:
		v.Type = TypeMeetingEnded
		return marshalPayload(v)
	case DocsReady:
		v.Type = TypeDocsReady
		return marshalPayload(v)
	case SetStyle:
		v.Type = TypeSetStyle
		return marshalPayload(v)
	case EndMeeting:
		v.Type = TypeEndMeeting
		return marshalPayload(v)
	case ChatMessage:
		v.Type = TypeChatMessage
		return marshalPayload(v)
	default:
		return nil, fmt.Errorf("room: unknown payload %T", p)
	}
}

func marshalPayload(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("room: encode payload: %w", err)
	}
	return data, nil
}
