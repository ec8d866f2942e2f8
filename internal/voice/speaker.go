// Package voice owns the facilitator's spoken output.
//
// A [Speaker] holds the single synthesis slot for a session: at most one
// utterance is in flight, a newly submitted utterance replaces the current
// one, and [Speaker.Interrupt] cuts synthesis off when a participant talks
// over the facilitator. Fixed intervention lines go through [Speaker.Speak];
// streaming model replies go through [Speaker.SpeakStream], which splits the
// token stream at sentence boundaries so synthesis starts on the first
// sentence instead of waiting for the full reply.
package voice

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/OccupiedPorcupine/beat-your-meet-sub000/internal/observe"
	"github.com/OccupiedPorcupine/beat-your-meet-sub000/pkg/audio"
	"github.com/OccupiedPorcupine/beat-your-meet-sub000/pkg/provider/tts"
	"github.com/OccupiedPorcupine/beat-your-meet-sub000/pkg/types"
)

// defaultSentenceBuf is the buffer depth of the text channel feeding TTS in
// the streaming path. Sized to absorb several sentences without blocking the
// splitter goroutine.
const defaultSentenceBuf = 16

// Speaker serialises the facilitator's voice onto a room output stream.
type Speaker struct {
	ttsP    tts.Provider
	voice   types.VoiceProfile
	out     chan<- types.AudioFrame
	format  audio.Format
	metrics *observe.Metrics

	mu      sync.Mutex
	current *utterance

	// wg tracks background goroutines spawned per utterance so callers (and
	// tests) can synchronise with the end of synthesis.
	wg sync.WaitGroup
}

// utterance is one occupied synthesis slot.
type utterance struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// Option is a functional option for [New].
type Option func(*Speaker)

// WithFormat sets the PCM format the TTS provider emits, used to tag outgoing
// frames. Defaults to 16 kHz mono, the ElevenLabs pcm_16000 output; the room
// transport converts to its own playback format downstream.
func WithFormat(f audio.Format) Option {
	return func(s *Speaker) { s.format = f }
}

// WithMetrics enables the synthesis latency histogram. Without it, nothing is
// recorded.
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Speaker) { s.metrics = m }
}

// New constructs a Speaker that synthesises with ttsP in the given voice and
// writes audio frames to out. The out channel is owned by the caller and is
// never closed by the Speaker.
func New(ttsP tts.Provider, voice types.VoiceProfile, out chan<- types.AudioFrame, opts ...Option) *Speaker {
	s := &Speaker{
		ttsP:   ttsP,
		voice:  voice,
		out:    out,
		format: audio.Format{SampleRate: 16000, Channels: 1},
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Speak synthesises one fixed line. It returns as soon as synthesis has
// started; audio continues streaming to the room after Speak returns, for as
// long as ctx stays alive. A non-nil error means nothing will be spoken.
//
// Any utterance already in flight is cut off first: interventions are
// submitted one at a time upstream, so a collision means the earlier line is
// stale.
func (s *Speaker) Speak(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return fmt.Errorf("voice: empty utterance")
	}

	textCh := make(chan string, 1)
	textCh <- text
	close(textCh)

	return s.start(ctx, textCh, nil)
}

// SpeakStream synthesises a streaming model reply. deltas carries the text
// fragments as the model emits them; the Speaker accumulates them and feeds
// complete sentences to synthesis so playback begins on the first sentence.
// The stream ends when deltas is closed.
//
// Like [Speaker.Speak], it returns once synthesis has started and replaces
// any utterance already in flight.
func (s *Speaker) SpeakStream(ctx context.Context, deltas <-chan string) error {
	textCh := make(chan string, defaultSentenceBuf)
	return s.start(ctx, textCh, deltas)
}

// Interrupt cuts off the in-flight utterance, if any, and blocks until its
// audio has stopped flowing. Used for barge-in: a participant speaking over
// the facilitator wins the floor.
func (s *Speaker) Interrupt() {
	s.mu.Lock()
	u := s.current
	s.current = nil
	s.mu.Unlock()
	if u == nil {
		return
	}
	u.cancel()
	<-u.done
	slog.Debug("voice: utterance interrupted")
}

// Speaking reports whether a synthesis is in flight. The room transport may
// still be playing buffered frames briefly after this returns false.
func (s *Speaker) Speaking() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current != nil
}

// Wait blocks until all background goroutines spawned by Speak and
// SpeakStream have finished. Primarily useful in tests.
func (s *Speaker) Wait() {
	s.wg.Wait()
}

// Close interrupts any in-flight utterance and waits for background
// goroutines to finish. The output channel stays open; it belongs to the
// caller.
func (s *Speaker) Close() error {
	s.Interrupt()
	s.wg.Wait()
	return nil
}

// ─── Internal ─────────────────────────────────────────────────────────────────

// start claims the synthesis slot and launches the per-utterance goroutines.
// textCh feeds the TTS stream; when deltas is non-nil a splitter goroutine
// fills textCh with sentences, otherwise textCh is already populated and
// closed by the caller.
func (s *Speaker) start(ctx context.Context, textCh chan string, deltas <-chan string) error {
	s.Interrupt()

	uctx, cancel := context.WithCancel(ctx)
	audioCh, err := s.ttsP.SynthesizeStream(uctx, textCh, s.voice)
	if err != nil {
		cancel()
		return fmt.Errorf("voice: start synthesis: %w", err)
	}

	u := &utterance{cancel: cancel, done: make(chan struct{})}
	s.mu.Lock()
	s.current = u
	s.mu.Unlock()

	if deltas != nil {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			splitSentences(uctx, deltas, textCh)
		}()
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.pump(uctx, u, audioCh)
	}()

	return nil
}

// pump forwards synthesised PCM chunks to the room output stream as tagged
// frames until the audio channel closes or the utterance is cancelled. On
// cancellation the remaining audio is drained in the background so the
// provider's goroutine does not leak.
func (s *Speaker) pump(ctx context.Context, u *utterance, audioCh <-chan []byte) {
	defer func() {
		s.mu.Lock()
		if s.current == u {
			s.current = nil
		}
		s.mu.Unlock()
		close(u.done)
	}()

	start := time.Now()
	var played time.Duration
	bytesPerSecond := s.format.SampleRate * s.format.Channels * 2

	for {
		select {
		case <-ctx.Done():
			go audio.Drain(audioCh)
			return
		case chunk, ok := <-audioCh:
			if !ok {
				// Only completed utterances are measured; an interrupted one
				// says nothing about provider latency.
				if s.metrics != nil {
					s.metrics.TTSDuration.Record(ctx, time.Since(start).Seconds())
				}
				return
			}
			if len(chunk) == 0 {
				continue
			}
			frame := types.AudioFrame{
				Data:       chunk,
				SampleRate: s.format.SampleRate,
				Channels:   s.format.Channels,
				Timestamp:  played,
			}
			played += time.Duration(len(chunk)) * time.Second / time.Duration(bytesPerSecond)
			select {
			case s.out <- frame:
			case <-ctx.Done():
				go audio.Drain(audioCh)
				return
			}
		}
	}
}
