// Package mock provides in-memory mock implementations of the [room.Room]
// and [room.Conn] interfaces for use in unit tests.
//
// All mocks are safe for concurrent use. They record every method call so
// that tests can assert on call counts and arguments, and they expose
// exported fields that the test can set to control return values.
//
// Typical usage:
//
//	out := make(chan types.AudioFrame, 16)
//	conn := &mock.Conn{
//	    InputStreamsResult: map[string]<-chan types.AudioFrame{
//	        "user-1": make(chan types.AudioFrame),
//	    },
//	    OutputStreamResult: out,
//	}
//	rm := &mock.Room{JoinResult: conn}
//	got, err := rm.Join(ctx, "room-42")
package mock

import (
	"context"
	"sync"

	"github.com/OccupiedPorcupine/beat-your-meet-sub000/pkg/room"
	"github.com/OccupiedPorcupine/beat-your-meet-sub000/pkg/types"
)

// Compile-time interface assertions.
var _ room.Room = (*Room)(nil)
var _ room.Conn = (*Conn)(nil)

// ─── Conn ─────────────────────────────────────────────────────────────────────

// PublishCall records the arguments of a single [Conn.Publish] invocation.
type PublishCall struct {
	// Topic is the topic argument passed to Publish.
	Topic string

	// Payload is a copy of the payload argument.
	Payload []byte
}

// RemoveParticipantCall records the arguments of a single
// [Conn.RemoveParticipant] invocation.
type RemoveParticipantCall struct {
	// ID is the participant identity passed to RemoveParticipant.
	ID string
}

// Conn is a mock implementation of [room.Conn].
// Set the exported Result fields before use; inspect the Call* fields after.
type Conn struct {
	mu sync.Mutex

	// InputStreamsResult is returned by [Conn.InputStreams].
	// Defaults to an empty (non-nil) map if left nil.
	InputStreamsResult map[string]<-chan types.AudioFrame

	// OutputStreamResult is returned by [Conn.OutputStream].
	OutputStreamResult chan<- types.AudioFrame

	// ParticipantsResult is returned by [Conn.Participants].
	ParticipantsResult []room.Participant

	// RemoveParticipantErr is returned by [Conn.RemoveParticipant].
	RemoveParticipantErr error

	// PublishErr is returned by [Conn.Publish].
	PublishErr error

	// LeaveErr is returned by [Conn.Leave].
	LeaveErr error

	// CallCountInputStreams records how many times InputStreams was called.
	CallCountInputStreams int

	// CallCountOutputStream records how many times OutputStream was called.
	CallCountOutputStream int

	// CallCountLeave records how many times Leave was called.
	CallCountLeave int

	// CallCountParticipants records how many times Participants was called.
	CallCountParticipants int

	// PublishCalls records all Publish invocations in order.
	PublishCalls []PublishCall

	// RemoveParticipantCalls records all RemoveParticipant invocations.
	RemoveParticipantCalls []RemoveParticipantCall

	// RecordedCallbacks holds the callbacks registered via
	// OnParticipantChange, in order of registration.
	RecordedCallbacks []func(room.Event)

	// RecordedDataCallbacks holds the callbacks registered via OnData,
	// in order of registration.
	RecordedDataCallbacks []func(room.DataMessage)
}

// InputStreams implements [room.Conn]. Returns InputStreamsResult.
// If InputStreamsResult is nil, an empty non-nil map is returned.
func (c *Conn) InputStreams() map[string]<-chan types.AudioFrame {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.CallCountInputStreams++
	if c.InputStreamsResult == nil {
		return map[string]<-chan types.AudioFrame{}
	}
	return c.InputStreamsResult
}

// OutputStream implements [room.Conn]. Returns OutputStreamResult.
func (c *Conn) OutputStream() chan<- types.AudioFrame {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.CallCountOutputStream++
	return c.OutputStreamResult
}

// OnParticipantChange implements [room.Conn].
// The callback is appended to RecordedCallbacks. To simulate events in tests,
// call [Conn.EmitEvent].
func (c *Conn) OnParticipantChange(cb func(room.Event)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.RecordedCallbacks = append(c.RecordedCallbacks, cb)
}

// Participants implements [room.Conn]. Returns ParticipantsResult.
func (c *Conn) Participants() []room.Participant {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.CallCountParticipants++
	return c.ParticipantsResult
}

// RemoveParticipant implements [room.Conn]. Records the call and returns
// RemoveParticipantErr.
func (c *Conn) RemoveParticipant(_ context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.RemoveParticipantCalls = append(c.RemoveParticipantCalls, RemoveParticipantCall{ID: id})
	return c.RemoveParticipantErr
}

// Publish implements [room.Conn]. Records a copy of the payload and returns
// PublishErr.
func (c *Conn) Publish(_ context.Context, topic string, payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	cp := make([]byte, len(payload))
	copy(cp, payload)
	c.PublishCalls = append(c.PublishCalls, PublishCall{Topic: topic, Payload: cp})
	return c.PublishErr
}

// OnData implements [room.Conn]. The callback is appended to
// RecordedDataCallbacks. To simulate payloads in tests, call [Conn.EmitData].
func (c *Conn) OnData(cb func(room.DataMessage)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.RecordedDataCallbacks = append(c.RecordedDataCallbacks, cb)
}

// Leave implements [room.Conn]. Returns LeaveErr.
func (c *Conn) Leave() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.CallCountLeave++
	return c.LeaveErr
}

// EmitEvent calls all registered participant-change callbacks with the given
// event. Use this in tests to simulate participants joining or leaving.
func (c *Conn) EmitEvent(ev room.Event) {
	c.mu.Lock()
	cbs := make([]func(room.Event), len(c.RecordedCallbacks))
	copy(cbs, c.RecordedCallbacks)
	c.mu.Unlock()
	for _, cb := range cbs {
		cb(ev)
	}
}

// EmitData calls all registered data callbacks with the given message.
// Use this in tests to simulate payloads arriving on the data channel.
func (c *Conn) EmitData(msg room.DataMessage) {
	c.mu.Lock()
	cbs := make([]func(room.DataMessage), len(c.RecordedDataCallbacks))
	copy(cbs, c.RecordedDataCallbacks)
	c.mu.Unlock()
	for _, cb := range cbs {
		cb(msg)
	}
}

// PublishedOn returns the payloads published on the given topic, in order.
func (c *Conn) PublishedOn(topic string) [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out [][]byte
	for _, call := range c.PublishCalls {
		if call.Topic == topic {
			out = append(out, call.Payload)
		}
	}
	return out
}

// Reset clears all recorded calls and callbacks.
func (c *Conn) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.CallCountInputStreams = 0
	c.CallCountOutputStream = 0
	c.CallCountLeave = 0
	c.CallCountParticipants = 0
	c.PublishCalls = nil
	c.RemoveParticipantCalls = nil
	c.RecordedCallbacks = nil
	c.RecordedDataCallbacks = nil
}

// ─── Room ─────────────────────────────────────────────────────────────────────

// JoinCall records the arguments of a single [Room.Join] invocation.
type JoinCall struct {
	// RoomID is the roomID argument passed to Join.
	RoomID string
}

// Room is a mock implementation of [room.Room].
type Room struct {
	mu sync.Mutex

	// JoinResult is the [room.Conn] returned by Join.
	JoinResult room.Conn

	// JoinErr is the error returned by Join.
	JoinErr error

	// JoinCalls records all Join invocations.
	JoinCalls []JoinCall
}

// Join implements [room.Room]. Records the call and returns JoinResult / JoinErr.
func (r *Room) Join(_ context.Context, roomID string) (room.Conn, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.JoinCalls = append(r.JoinCalls, JoinCall{RoomID: roomID})
	return r.JoinResult, r.JoinErr
}
