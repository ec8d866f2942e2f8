// Package intervention implements the chokepoint between candidate utterances
// and the facilitator's outputs.
//
// Every speech point in the engine funnels through [Coordinator.Submit]: the
// monitoring scheduler's intro, time-warning, tangent, transition, and wrap-up
// candidates, and the router's time-query, override, and document
// acknowledgements. Submit builds the gate's context snapshot from the state
// machine, evaluates the speech gate, and either dispatches the utterance or
// logs why it was dropped. The intervention timestamp is recorded only after a
// successful dispatch, which is what arms the cooldown for the next candidate.
//
// Submit runs on the session control task; the sinks it dispatches to must
// return once the output is queued rather than waiting for delivery.
package intervention

import (
	"context"
	"errors"
	"log/slog"

	"github.com/OccupiedPorcupine/beat-your-meet-sub000/internal/agenda"
	"github.com/OccupiedPorcupine/beat-your-meet-sub000/internal/gate"
	"github.com/OccupiedPorcupine/beat-your-meet-sub000/internal/observe"
	"github.com/OccupiedPorcupine/beat-your-meet-sub000/pkg/audio"
)

// Sink is the voice output. Implemented by the voice speaker.
type Sink interface {
	// Speak synthesises one complete utterance. It returns once synthesis has
	// been queued.
	Speak(ctx context.Context, text string) error

	// SpeakStream synthesises an utterance from a delta stream, starting on
	// the first complete sentence. It returns once synthesis has started.
	SpeakStream(ctx context.Context, deltas <-chan string) error
}

// ChatSink publishes a reply on the chat data topic. Chat-originated mentions
// are answered in kind rather than spoken.
type ChatSink interface {
	ReplyChat(ctx context.Context, text string) error
}

// Candidate is one proposed utterance on its way to the gate.
type Candidate struct {
	// Trigger names the speech point this candidate came from.
	Trigger gate.Trigger

	// Text is the candidate the gate decides over. For streamed replies it is
	// the reply's first sentence; for everything else it is the whole
	// utterance.
	Text string

	// Confidence carries the tangent assessor's confidence. Zero for every
	// other trigger.
	Confidence float64

	// Stream, when non-nil, carries the full reply incrementally (first
	// sentence included). An approved candidate is dispatched with SpeakStream
	// so synthesis starts before the model finishes drafting. The coordinator
	// guarantees the stream is consumed or drained on every path.
	Stream <-chan string

	// ViaChat routes an approved candidate to the chat topic instead of the
	// voice sink. ViaChat candidates carry the whole reply in Text.
	ViaChat bool
}

// Coordinator owns gate evaluation and dispatch for one session.
type Coordinator struct {
	machine *agenda.Machine
	sink    Sink
	chat    ChatSink
	metrics *observe.Metrics
}

// Option is a functional option for [New].
type Option func(*Coordinator)

// WithChatSink installs the chat reply path. Without it, ViaChat candidates
// fail dispatch and are logged.
func WithChatSink(cs ChatSink) Option {
	return func(c *Coordinator) { c.chat = cs }
}

// WithMetrics enables gate and intervention counters. Without it, nothing is
// recorded.
func WithMetrics(m *observe.Metrics) Option {
	return func(c *Coordinator) { c.metrics = m }
}

// New constructs a Coordinator over the session's state machine and voice
// sink.
func New(machine *agenda.Machine, sink Sink, opts ...Option) *Coordinator {
	c := &Coordinator{machine: machine, sink: sink}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Submit gates and dispatches one candidate, returning the gate's verdict so
// callers can react to it (the scheduler stops ticking after a wrap-up
// regardless of the verdict, the router falls back to chat text on a silent
// voice reply, and so on).
//
// A dispatch failure is logged and swallowed: the candidate is lost but the
// session continues, and the intervention timestamp stays unset so the next
// candidate is not cooled down by a failure.
func (c *Coordinator) Submit(ctx context.Context, cand Candidate) gate.Result {
	if cand.ViaChat && cand.Stream != nil {
		// Chat replies are published whole; a stray stream must not leak its
		// producer goroutine.
		go audio.Drain(cand.Stream)
		cand.Stream = nil
	}

	mc := c.machine.Context(cand.Confidence)
	res := gate.Evaluate(cand.Text, cand.Trigger, mc)
	if c.metrics != nil {
		c.metrics.RecordGateDecision(ctx, string(cand.Trigger), res.Action.String())
	}

	if res.Action != gate.ActionSpeak {
		if cand.Stream != nil {
			go audio.Drain(cand.Stream)
		}
		slog.Info("gate decision",
			"trigger", cand.Trigger,
			"action", res.Action.String(),
			"reason", res.Reason,
			"confidence", res.Confidence,
		)
		return res
	}

	if err := c.dispatch(ctx, cand); err != nil {
		if cand.Stream != nil {
			go audio.Drain(cand.Stream)
		}
		slog.Warn("intervention dispatch failed",
			"trigger", cand.Trigger,
			"via_chat", cand.ViaChat,
			"err", err,
		)
		return res
	}

	c.machine.RecordIntervention()
	if c.metrics != nil {
		c.metrics.RecordIntervention(ctx, string(cand.Trigger))
	}
	slog.Info("gate decision",
		"trigger", cand.Trigger,
		"action", res.Action.String(),
		"reason", res.Reason,
		"confidence", res.Confidence,
		"via_chat", cand.ViaChat,
	)
	return res
}

// dispatch sends an approved candidate to its output.
func (c *Coordinator) dispatch(ctx context.Context, cand Candidate) error {
	switch {
	case cand.ViaChat:
		if c.chat == nil {
			return errors.New("intervention: no chat sink configured")
		}
		return c.chat.ReplyChat(ctx, cand.Text)
	case cand.Stream != nil:
		return c.sink.SpeakStream(ctx, cand.Stream)
	default:
		return c.sink.Speak(ctx, cand.Text)
	}
}
