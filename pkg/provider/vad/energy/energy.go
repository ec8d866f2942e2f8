// Package energy provides an RMS-based vad.Engine that requires no model
// runtime. It classifies each frame by its root-mean-square amplitude, making
// it a dependency-free default for deployments without a neural VAD.
//
// The speech probability of a frame is derived from its RMS energy as
//
//	p = rms / (rms + floor)
//
// where floor is the configured reference level in 16-bit PCM amplitude units.
// A frame at exactly the floor maps to p = 0.5, so the conventional 0.5 speech
// threshold classifies frames above the floor as speech. Loud speech saturates
// towards 1.0 and digital silence maps to 0.0.
//
// Sessions apply hysteresis between Config.SpeechThreshold and
// Config.SilenceThreshold, plus an optional hangover that bridges short pauses
// before reporting the end of a speech segment.
package energy

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/OccupiedPorcupine/beat-your-meet-sub000/pkg/provider/vad"
	"github.com/OccupiedPorcupine/beat-your-meet-sub000/pkg/types"
)

// Compile-time interface assertion.
var _ vad.Engine = (*Engine)(nil)

// defaultRMSFloor is the reference RMS level (in 16-bit PCM amplitude units,
// 0 to 32767) below which audio is treated as background noise. 300 works well
// for voice chat audio normalised to typical speaking volume.
const defaultRMSFloor = 300.0

// Option is a functional option for configuring an Engine.
type Option func(*Engine)

// WithRMSFloor sets the reference RMS level that maps to probability 0.5.
// Raise it in noisy rooms, lower it for quiet or heavily normalised audio.
// Values <= 0 are ignored and the default is kept.
func WithRMSFloor(floor float64) Option {
	return func(e *Engine) {
		if floor > 0 {
			e.floor = floor
		}
	}
}

// WithHangover sets the number of consecutive sub-threshold frames tolerated
// inside a speech segment before the session reports VADSpeechEnd. The default
// of 0 ends a segment on the first silent frame; a few frames of hangover
// (e.g., 5 frames = 100 ms at 20 ms framing) bridge short pauses between
// words. Negative values are treated as 0.
func WithHangover(frames int) Option {
	return func(e *Engine) {
		if frames > 0 {
			e.hangover = frames
		}
	}
}

// Engine creates energy-based VAD sessions. It is stateless after construction
// and safe for concurrent use.
type Engine struct {
	floor    float64
	hangover int
}

// New creates an Engine with the given options.
func New(opts ...Option) *Engine {
	e := &Engine{floor: defaultRMSFloor}
	for _, o := range opts {
		o(e)
	}
	return e
}

// NewSession validates cfg and returns a session ready to accept frames.
// Frames must be raw little-endian 16-bit mono PCM of exactly
// cfg.FrameSizeMs duration at cfg.SampleRate.
func (e *Engine) NewSession(cfg vad.Config) (vad.SessionHandle, error) {
	if cfg.SampleRate <= 0 {
		return nil, fmt.Errorf("energy: sample rate must be positive, got %d", cfg.SampleRate)
	}
	if cfg.FrameSizeMs <= 0 {
		return nil, fmt.Errorf("energy: frame size must be positive, got %d ms", cfg.FrameSizeMs)
	}
	if cfg.SpeechThreshold < 0 || cfg.SpeechThreshold > 1 {
		return nil, fmt.Errorf("energy: speech threshold %g out of range [0, 1]", cfg.SpeechThreshold)
	}
	if cfg.SilenceThreshold < 0 || cfg.SilenceThreshold > cfg.SpeechThreshold {
		return nil, fmt.Errorf("energy: silence threshold %g must be in [0, %g]", cfg.SilenceThreshold, cfg.SpeechThreshold)
	}
	return &session{
		frameBytes: cfg.SampleRate * cfg.FrameSizeMs / 1000 * 2,
		frameMs:    cfg.FrameSizeMs,
		sampleRate: cfg.SampleRate,
		speechThr:  cfg.SpeechThreshold,
		silenceThr: cfg.SilenceThreshold,
		floor:      e.floor,
		hangover:   e.hangover,
	}, nil
}

// session holds per-stream detection state. It is owned by a single pipeline
// goroutine and is not safe for concurrent use.
type session struct {
	frameBytes int
	frameMs    int
	sampleRate int
	speechThr  float64
	silenceThr float64
	floor      float64
	hangover   int

	inSpeech  bool
	silentRun int
	closed    bool
}

// ProcessFrame classifies one PCM frame. The returned event always carries the
// frame's speech probability, including for VADSpeechEnd and VADSilence.
func (s *session) ProcessFrame(frame []byte) (types.VADEvent, error) {
	if s.closed {
		return types.VADEvent{}, fmt.Errorf("energy: process frame: %w", vad.ErrSessionClosed)
	}
	if len(frame) != s.frameBytes {
		return types.VADEvent{}, fmt.Errorf("energy: frame size %d bytes, want %d (%d ms at %d Hz mono)",
			len(frame), s.frameBytes, s.frameMs, s.sampleRate)
	}

	rms := computeRMS(frame)
	p := rms / (rms + s.floor)

	switch {
	case p >= s.speechThr:
		s.silentRun = 0
		if !s.inSpeech {
			s.inSpeech = true
			return types.VADEvent{Type: types.VADSpeechStart, Probability: p}, nil
		}
		return types.VADEvent{Type: types.VADSpeechContinue, Probability: p}, nil

	case p <= s.silenceThr:
		if !s.inSpeech {
			return types.VADEvent{Type: types.VADSilence, Probability: p}, nil
		}
		s.silentRun++
		if s.silentRun > s.hangover {
			s.inSpeech = false
			s.silentRun = 0
			return types.VADEvent{Type: types.VADSpeechEnd, Probability: p}, nil
		}
		return types.VADEvent{Type: types.VADSpeechContinue, Probability: p}, nil

	default:
		// Hysteresis band between the two thresholds: keep the current state.
		if s.inSpeech {
			return types.VADEvent{Type: types.VADSpeechContinue, Probability: p}, nil
		}
		return types.VADEvent{Type: types.VADSilence, Probability: p}, nil
	}
}

// Reset clears the detection state without closing the session.
func (s *session) Reset() {
	if s.closed {
		return
	}
	s.inSpeech = false
	s.silentRun = 0
}

// Close marks the session closed. Subsequent ProcessFrame calls return
// ErrSessionClosed. Calling Close more than once is safe.
func (s *session) Close() error {
	s.closed = true
	return nil
}

// computeRMS returns the root-mean-square energy of a 16-bit signed
// little-endian PCM buffer. Returns 0 for buffers shorter than one sample.
// The result is expressed in the same units as PCM sample values (0 to 32767).
func computeRMS(pcm []byte) float64 {
	n := len(pcm) / 2 // number of 16-bit samples
	if n == 0 {
		return 0
	}
	var sum float64
	for i := 0; i < n; i++ {
		sample := int16(binary.LittleEndian.Uint16(pcm[i*2 : i*2+2]))
		v := float64(sample)
		sum += v * v
	}
	return math.Sqrt(sum / float64(n))
}
