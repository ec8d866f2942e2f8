package energy

import (
	"encoding/binary"
	"errors"
	"math"
	"testing"

	"github.com/OccupiedPorcupine/beat-your-meet-sub000/pkg/provider/vad"
	"github.com/OccupiedPorcupine/beat-your-meet-sub000/pkg/types"
)

// Test framing: 16 kHz mono, 20 ms frames = 320 samples = 640 bytes.
const (
	testRate    = 16000
	testFrameMs = 20
	testSamples = testRate * testFrameMs / 1000
)

func testConfig() vad.Config {
	return vad.Config{
		SampleRate:       testRate,
		FrameSizeMs:      testFrameMs,
		SpeechThreshold:  0.5,
		SilenceThreshold: 0.35,
	}
}

// sineFrame generates one frame of a 440 Hz sine wave at the given peak
// amplitude. RMS is amplitude/sqrt(2), so amplitude 10000 lands far above the
// default floor while amplitude 200 lands below it.
func sineFrame(amplitude float64) []byte {
	buf := make([]byte, testSamples*2)
	for i := 0; i < testSamples; i++ {
		v := int16(amplitude * math.Sin(2*math.Pi*440*float64(i)/testRate))
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(v))
	}
	return buf
}

// silenceFrame generates one frame of digital silence.
func silenceFrame() []byte {
	return make([]byte, testSamples*2)
}

func newTestSession(t *testing.T, opts ...Option) vad.SessionHandle {
	t.Helper()
	sess, err := New(opts...).NewSession(testConfig())
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	return sess
}

func processFrame(t *testing.T, sess vad.SessionHandle, frame []byte) types.VADEvent {
	t.Helper()
	ev, err := sess.ProcessFrame(frame)
	if err != nil {
		t.Fatalf("ProcessFrame: %v", err)
	}
	return ev
}

// ---- configuration validation ----

func TestNewSession_InvalidConfig(t *testing.T) {
	tests := []struct {
		name string
		cfg  vad.Config
	}{
		{"zero sample rate", vad.Config{FrameSizeMs: 20, SpeechThreshold: 0.5, SilenceThreshold: 0.35}},
		{"zero frame size", vad.Config{SampleRate: 16000, SpeechThreshold: 0.5, SilenceThreshold: 0.35}},
		{"speech threshold above one", vad.Config{SampleRate: 16000, FrameSizeMs: 20, SpeechThreshold: 1.5, SilenceThreshold: 0.35}},
		{"negative silence threshold", vad.Config{SampleRate: 16000, FrameSizeMs: 20, SpeechThreshold: 0.5, SilenceThreshold: -0.1}},
		{"silence above speech", vad.Config{SampleRate: 16000, FrameSizeMs: 20, SpeechThreshold: 0.4, SilenceThreshold: 0.6}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New().NewSession(tt.cfg); err == nil {
				t.Error("expected configuration error, got nil")
			}
		})
	}
}

func TestProcessFrame_WrongSize(t *testing.T) {
	sess := newTestSession(t)
	_, err := sess.ProcessFrame(make([]byte, 100))
	if err == nil {
		t.Fatal("expected error for wrong frame size, got nil")
	}
}

// ---- classification ----

// TestProcessFrame_Silence verifies that digital silence is reported as
// VADSilence with probability zero.
func TestProcessFrame_Silence(t *testing.T) {
	sess := newTestSession(t)
	ev := processFrame(t, sess, silenceFrame())
	if ev.Type != types.VADSilence {
		t.Errorf("expected VADSilence, got %v", ev.Type)
	}
	if ev.Probability != 0 {
		t.Errorf("expected probability 0 for digital silence, got %f", ev.Probability)
	}
}

// TestProcessFrame_SpeechSegment walks a full segment: the first loud frame
// reports VADSpeechStart, further loud frames report VADSpeechContinue, and
// the first quiet frame (no hangover configured) reports VADSpeechEnd.
func TestProcessFrame_SpeechSegment(t *testing.T) {
	sess := newTestSession(t)
	loud := sineFrame(10000)

	ev := processFrame(t, sess, loud)
	if ev.Type != types.VADSpeechStart {
		t.Fatalf("frame 1: expected VADSpeechStart, got %v", ev.Type)
	}
	if ev.Probability < 0.9 {
		t.Errorf("frame 1: expected probability near 1 for loud speech, got %f", ev.Probability)
	}

	ev = processFrame(t, sess, loud)
	if ev.Type != types.VADSpeechContinue {
		t.Fatalf("frame 2: expected VADSpeechContinue, got %v", ev.Type)
	}

	ev = processFrame(t, sess, silenceFrame())
	if ev.Type != types.VADSpeechEnd {
		t.Fatalf("frame 3: expected VADSpeechEnd, got %v", ev.Type)
	}

	ev = processFrame(t, sess, silenceFrame())
	if ev.Type != types.VADSilence {
		t.Fatalf("frame 4: expected VADSilence after segment end, got %v", ev.Type)
	}
}

// TestProcessFrame_Hangover verifies that a configured hangover bridges short
// quiet gaps: the segment only ends after more consecutive quiet frames than
// the hangover allows.
func TestProcessFrame_Hangover(t *testing.T) {
	sess := newTestSession(t, WithHangover(2))
	loud := sineFrame(10000)
	quiet := silenceFrame()

	processFrame(t, sess, loud) // start

	for i := 1; i <= 2; i++ {
		ev := processFrame(t, sess, quiet)
		if ev.Type != types.VADSpeechContinue {
			t.Fatalf("quiet frame %d: expected VADSpeechContinue during hangover, got %v", i, ev.Type)
		}
	}

	ev := processFrame(t, sess, quiet)
	if ev.Type != types.VADSpeechEnd {
		t.Fatalf("quiet frame 3: expected VADSpeechEnd after hangover, got %v", ev.Type)
	}
}

// TestProcessFrame_HangoverResets verifies that a loud frame inside the
// hangover window resets the quiet-frame counter.
func TestProcessFrame_HangoverResets(t *testing.T) {
	sess := newTestSession(t, WithHangover(1))
	loud := sineFrame(10000)
	quiet := silenceFrame()

	processFrame(t, sess, loud)  // start
	processFrame(t, sess, quiet) // hangover frame 1
	processFrame(t, sess, loud)  // speech again, counter resets

	ev := processFrame(t, sess, quiet)
	if ev.Type != types.VADSpeechContinue {
		t.Fatalf("expected VADSpeechContinue for first quiet frame after reset, got %v", ev.Type)
	}
	ev = processFrame(t, sess, quiet)
	if ev.Type != types.VADSpeechEnd {
		t.Fatalf("expected VADSpeechEnd on second quiet frame, got %v", ev.Type)
	}
}

// TestProcessFrame_HysteresisBand verifies that probabilities between the two
// thresholds keep the current state: ambient noise neither starts a segment
// nor ends one. Amplitude 250 lands at roughly p = 0.37 with the default
// floor, inside the 0.35 to 0.5 band.
func TestProcessFrame_HysteresisBand(t *testing.T) {
	sess := newTestSession(t)
	band := sineFrame(250)

	ev := processFrame(t, sess, band)
	if ev.Type != types.VADSilence {
		t.Fatalf("band frame before speech: expected VADSilence, got %v", ev.Type)
	}
	if ev.Probability <= 0.35 || ev.Probability >= 0.5 {
		t.Fatalf("band frame probability %f outside expected (0.35, 0.5) band", ev.Probability)
	}

	processFrame(t, sess, sineFrame(10000)) // start a segment

	ev = processFrame(t, sess, band)
	if ev.Type != types.VADSpeechContinue {
		t.Fatalf("band frame during speech: expected VADSpeechContinue, got %v", ev.Type)
	}
}

// TestProcessFrame_CustomFloor verifies that raising the RMS floor reclassifies
// moderate audio as background noise.
func TestProcessFrame_CustomFloor(t *testing.T) {
	moderate := sineFrame(1000) // RMS around 707

	// Default floor 300: p around 0.70, classified as speech.
	sess := newTestSession(t)
	ev := processFrame(t, sess, moderate)
	if ev.Type != types.VADSpeechStart {
		t.Fatalf("default floor: expected VADSpeechStart, got %v", ev.Type)
	}

	// Floor 2000: p around 0.26, classified as silence.
	sess = newTestSession(t, WithRMSFloor(2000))
	ev = processFrame(t, sess, moderate)
	if ev.Type != types.VADSilence {
		t.Fatalf("raised floor: expected VADSilence, got %v", ev.Type)
	}
}

// ---- session lifecycle ----

func TestReset_ClearsSegmentState(t *testing.T) {
	sess := newTestSession(t)
	loud := sineFrame(10000)

	processFrame(t, sess, loud) // start
	sess.Reset()

	ev := processFrame(t, sess, loud)
	if ev.Type != types.VADSpeechStart {
		t.Fatalf("expected VADSpeechStart after Reset, got %v", ev.Type)
	}
}

func TestClose(t *testing.T) {
	sess := newTestSession(t)
	if err := sess.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := sess.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}

	_, err := sess.ProcessFrame(silenceFrame())
	if !errors.Is(err, vad.ErrSessionClosed) {
		t.Fatalf("expected ErrSessionClosed after Close, got %v", err)
	}
}

// ---- computeRMS ----

func TestComputeRMS(t *testing.T) {
	t.Run("empty buffer", func(t *testing.T) {
		if got := computeRMS(nil); got != 0 {
			t.Errorf("computeRMS(nil) = %f, want 0", got)
		}
	})

	t.Run("digital silence", func(t *testing.T) {
		if got := computeRMS(silenceFrame()); got != 0 {
			t.Errorf("computeRMS(silence) = %f, want 0", got)
		}
	})

	t.Run("constant signal", func(t *testing.T) {
		buf := make([]byte, 64)
		for i := 0; i < 32; i++ {
			binary.LittleEndian.PutUint16(buf[i*2:], uint16(int16(1000)))
		}
		if got := computeRMS(buf); got != 1000 {
			t.Errorf("computeRMS(constant 1000) = %f, want 1000", got)
		}
	})

	t.Run("sine wave", func(t *testing.T) {
		// RMS of a sine is amplitude/sqrt(2); allow 2% for partial cycles.
		got := computeRMS(sineFrame(10000))
		want := 10000 / math.Sqrt2
		if math.Abs(got-want) > want*0.02 {
			t.Errorf("computeRMS(sine 10000) = %f, want within 2%% of %f", got, want)
		}
	})
}
