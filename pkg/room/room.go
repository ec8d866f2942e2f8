// Package room defines the interfaces and types for meeting-room connectivity.
//
// The two primary abstractions are:
//
//   - [Room] — joins a meeting room and returns a [Conn].
//   - [Conn] — represents an active presence in that room, giving callers
//     per-participant audio input streams, a single output stream for the
//     facilitator's voice, participant lifecycle events, a registry of who is
//     currently present, and a topic-keyed data channel for the JSON payloads
//     the engine exchanges with meeting UIs.
//
// Implementations are provided by transport-specific adapter packages
// (e.g. room/discord). The interfaces are intentionally narrow so the
// facilitation engine stays decoupled from transport details.
//
// This package lives under pkg/ because external code (third-party room
// adapters) is expected to implement [Room] and [Conn].
package room

import (
	"context"

	"github.com/OccupiedPorcupine/beat-your-meet-sub000/pkg/types"
)

// Data-channel topics used by the facilitation engine. Agenda snapshots and
// end-of-meeting signals go out on [TopicAgenda]; chat mentions arrive and
// chat replies go back on [TopicChat].
const (
	TopicAgenda = "agenda"
	TopicChat   = "chat"
)

// EventType classifies participant lifecycle events emitted by a [Conn].
type EventType int

const (
	// EventJoin is emitted when a participant enters the room.
	EventJoin EventType = iota

	// EventLeave is emitted when a participant leaves the room.
	EventLeave
)

// String returns the human-readable name of the event type.
func (e EventType) String() string {
	switch e {
	case EventJoin:
		return "JOIN"
	case EventLeave:
		return "LEAVE"
	default:
		return "UNKNOWN"
	}
}

// Participant identifies someone present in the room.
type Participant struct {
	// ID is the transport-specific unique identifier.
	ID string

	// Name is the human-readable display name. May be empty when the
	// transport has not resolved the identity yet.
	Name string

	// IsAgent is true for the facilitator's own presence in the room.
	IsAgent bool
}

// Event describes a participant lifecycle change in the room.
// Callbacks registered via [Conn.OnParticipantChange] receive values of this type.
type Event struct {
	// Type indicates whether the participant joined or left.
	Type EventType

	// Participant is the identity the event concerns.
	Participant Participant
}

// DataMessage is a payload received on the room data channel.
type DataMessage struct {
	// Topic the payload arrived on (e.g. [TopicChat]).
	Topic string

	// Sender is the participant ID of the publisher. Empty when the
	// transport cannot attribute the message (e.g. a server-originated
	// control signal).
	Sender string

	// Payload is the raw JSON payload. See [Decode] for the known shapes.
	Payload []byte
}

// Conn represents an active presence in a meeting room.
//
// A Conn is obtained by calling [Room.Join] and remains valid until
// [Conn.Leave] is called. All channels returned by Conn methods are closed
// automatically when the connection terminates.
//
// Implementations must be safe for concurrent use.
type Conn interface {
	// InputStreams returns a snapshot of the current per-participant audio channels.
	// The map key is the transport-specific participant ID; the value is a read-only
	// channel that delivers [types.AudioFrame] values as they arrive from that
	// participant. A new entry appears for each joining participant and is removed
	// (channel closed) when that participant leaves.
	//
	// Callers should call InputStreams again after receiving an [EventJoin] event
	// to pick up newly added channels.
	InputStreams() map[string]<-chan types.AudioFrame

	// OutputStream returns the single write-only channel for the facilitator's
	// voice. Frames written here are heard by all room participants.
	// The channel is buffered; writes must not block indefinitely.
	//
	// Ownership: The returned channel is owned by the caller (writer). The
	// transport does NOT close this channel on Leave — the caller is responsible
	// for stopping writes. Writing to the channel after Leave results in dropped
	// frames (not a panic).
	OutputStream() chan<- types.AudioFrame

	// OnParticipantChange registers cb as the callback to invoke whenever a
	// participant joins or leaves the room. Only one callback may be registered
	// at a time; subsequent calls replace the previous registration.
	// The callback is invoked on an internal goroutine — callers must not block.
	OnParticipantChange(cb func(Event))

	// Participants returns a snapshot of everyone currently in the room,
	// including the facilitator itself (IsAgent true). Order is unspecified.
	Participants() []Participant

	// RemoveParticipant removes the identified participant from the room.
	// The engine uses this to remove its own presence when a meeting ends on
	// a transport that keeps the underlying connection alive. Returns an error
	// if the transport lacks the permission or the identity is unknown.
	RemoveParticipant(ctx context.Context, id string) error

	// Publish sends a JSON payload on the given data-channel topic. Delivery
	// is reliable within the transport's semantics; an error means the payload
	// was not accepted for delivery.
	Publish(ctx context.Context, topic string, payload []byte) error

	// OnData registers cb as the callback for payloads arriving on any
	// data-channel topic. Only one callback may be registered at a time;
	// subsequent calls replace the previous registration. The callback is
	// invoked on an internal goroutine — callers must not block.
	OnData(cb func(DataMessage))

	// Leave cleanly tears down the room presence, drains pending frames, and
	// closes all input channels. It is safe to call Leave more than once;
	// subsequent calls are no-ops and return nil.
	Leave() error
}

// Room is the entry point for a meeting-room transport.
// Implementations wrap transport-specific SDKs (Discord, WebRTC bridges, …)
// and expose a uniform [Conn] abstraction.
//
// Implementations must be safe for concurrent use.
type Room interface {
	// Join enters the room identified by roomID and returns an active [Conn].
	// The supplied ctx governs the lifetime of the join attempt only; once
	// joined, the Conn remains alive until [Conn.Leave] is called.
	//
	// Returns an error if the room cannot be joined (auth failure, unknown
	// room, network error, etc.).
	Join(ctx context.Context, roomID string) (Conn, error)
}
