package agenda

import "time"

// Style selects how assertively the facilitator intervenes. It affects the
// tone of spoken interventions, the tangent confidence threshold, and the
// minimum gap between tangent redirects. Chatting mode additionally bypasses
// proactive facilitation entirely; the bot behaves as a regular participant.
type Style string

const (
	// StyleGentle intervenes rarely and phrases redirects softly.
	StyleGentle Style = "gentle"

	// StyleModerate is the default: firm but not pushy.
	StyleModerate Style = "moderate"

	// StyleChatting disables proactive interventions; the bot only responds
	// when engaged directly.
	StyleChatting Style = "chatting"
)

// DefaultStyle is used when room metadata does not specify a style.
const DefaultStyle = StyleModerate

// IsValid reports whether s is one of the recognised styles.
func (s Style) IsValid() bool {
	switch s {
	case StyleGentle, StyleModerate, StyleChatting:
		return true
	}
	return false
}

// styleNumbers is the per-style table of facilitation parameters.
// Chatting mode has no tangent threshold or tolerance: tangent interventions
// never fire in chatting mode, so the values are sentinels that keep the
// arithmetic harmless.
var styleNumbers = map[Style]struct {
	tangentThreshold float64
	tangentTolerance time.Duration
}{
	StyleGentle:   {tangentThreshold: 0.80, tangentTolerance: 120 * time.Second},
	StyleModerate: {tangentThreshold: 0.70, tangentTolerance: 60 * time.Second},
	StyleChatting: {tangentThreshold: 1.01, tangentTolerance: 0},
}

// TangentThreshold returns the minimum tangent confidence required before a
// redirect may be spoken in this style. For chatting mode the returned value
// is above 1.0 so that no confidence can satisfy it.
func (s Style) TangentThreshold() float64 {
	if n, ok := styleNumbers[s]; ok {
		return n.tangentThreshold
	}
	return styleNumbers[DefaultStyle].tangentThreshold
}

// TangentTolerance returns the minimum time since the last intervention
// before a tangent check may fire in this style.
func (s Style) TangentTolerance() time.Duration {
	if n, ok := styleNumbers[s]; ok {
		return n.tangentTolerance
	}
	return styleNumbers[DefaultStyle].tangentTolerance
}

// ToneFragment returns the prompt fragment describing how the facilitator
// should phrase itself in this style. Injected into the system prompt and
// into the tangent assessor instructions.
func (s Style) ToneFragment() string {
	switch s {
	case StyleGentle:
		return "Be warm and tentative. Suggest rather than direct. Apologise briefly when interrupting."
	case StyleChatting:
		return "Be casual and conversational. You are a participant, not a timekeeper."
	default:
		return "Be concise and direct but friendly. Keep interventions to one or two sentences."
	}
}
