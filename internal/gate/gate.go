// Package gate implements the speech gate: the single decision point that
// determines whether a candidate utterance is spoken or dropped.
//
// Evaluate is a pure function over the candidate text, its trigger, and an
// [agenda.Context] snapshot. It never touches mutable state, never reads the
// wall clock, and has no side effects; the intervention coordinator owns
// logging the decision and stamping the cooldown when a Speak result is
// actually dispatched.
package gate

import (
	"strings"
	"time"
	"unicode"

	"github.com/OccupiedPorcupine/beat-your-meet-sub000/internal/agenda"
	"github.com/OccupiedPorcupine/beat-your-meet-sub000/pkg/types"
)

// Action is the gate's verdict.
type Action int

const (
	// ActionSilent drops the candidate.
	ActionSilent Action = iota

	// ActionSpeak dispatches the candidate to synthesis.
	ActionSpeak
)

// String returns the action name for logs.
func (a Action) String() string {
	if a == ActionSpeak {
		return "speak"
	}
	return "silent"
}

// Trigger identifies why a candidate utterance exists. The gate's rules are
// keyed on it.
type Trigger string

const (
	// TriggerIntro is the meeting-start introduction.
	TriggerIntro Trigger = "intro"

	// TriggerTimeWarning is the 80%-of-allocation warning.
	TriggerTimeWarning Trigger = "time_warning"

	// TriggerTangent is a redirect after the assessor flagged a drift.
	TriggerTangent Trigger = "tangent"

	// TriggerTransition announces the move to the next agenda item.
	TriggerTransition Trigger = "transition"

	// TriggerWrapUp closes the meeting after the last item.
	TriggerWrapUp Trigger = "wrap_up"

	// TriggerDirectQuestion answers a participant engaging the bot without
	// naming it (chat messages, or unaddressed speech in chatting mode).
	TriggerDirectQuestion Trigger = "direct_question"

	// TriggerNamedAddress answers a participant who addressed the bot by
	// name, including the acknowledgements for routed voice commands.
	TriggerNamedAddress Trigger = "named_address"
)

// RedundancyThreshold is the candidate-overlap ratio at and above which a
// candidate is considered already said.
const RedundancyThreshold = 0.85

// overtimeForceThreshold is the cumulative meeting overtime at which
// transitions are forced through an active override, so a granted extension
// can never freeze the agenda outright.
const overtimeForceThreshold = 5 * time.Minute

// Result is the gate's verdict with the confidence and reason that go into
// the decision log.
type Result struct {
	Action     Action
	Confidence float64
	Reason     string
}

func silent(confidence float64, reason string) Result {
	return Result{Action: ActionSilent, Confidence: confidence, Reason: reason}
}

func speak(confidence float64, reason string) Result {
	return Result{Action: ActionSpeak, Confidence: confidence, Reason: reason}
}

// Evaluate runs the decision rules in order and returns the first verdict.
//
// Rule order: empty candidate; chatting-mode allowlist; silence window;
// redundancy against the recent transcript; trigger-specific policy;
// default silent.
func Evaluate(text string, trigger Trigger, mc agenda.Context) Result {
	if strings.TrimSpace(text) == "" {
		return silent(1.0, "empty")
	}

	// Chatting mode is terminal in both directions: the bot speaks only when
	// engaged, and engagement always passes.
	if mc.Style == agenda.StyleChatting {
		switch trigger {
		case TriggerIntro, TriggerDirectQuestion, TriggerNamedAddress:
			return speak(1.0, "chatting_engaged")
		default:
			return silent(1.0, "chatting_mode")
		}
	}

	if mc.SilenceUntil.After(mc.Now) {
		switch trigger {
		case TriggerTransition, TriggerWrapUp, TriggerNamedAddress:
			// Exempt: the agenda keeps moving and direct address still works.
		default:
			return silent(1.0, "silence")
		}
	}

	if ratio := redundancy(text, mc.Recent); ratio >= RedundancyThreshold {
		return silent(ratio, "redundancy")
	}

	switch trigger {
	case TriggerIntro, TriggerWrapUp:
		return speak(1.0, "scripted")

	case TriggerNamedAddress, TriggerDirectQuestion:
		return speak(1.0, "direct_engagement")

	case TriggerTimeWarning:
		if mc.OverrideActive {
			return silent(1.0, "override_active")
		}
		return speak(elapsedRatio(mc), "time_warning")

	case TriggerTransition:
		if mc.OverrideActive && mc.MeetingOvertime < overtimeForceThreshold {
			return silent(1.0, "override_active")
		}
		if mc.OverrideActive {
			return speak(1.0, "overtime_forced")
		}
		return speak(1.0, "transition")

	case TriggerTangent:
		if mc.OverrideActive {
			return silent(1.0, "override_active")
		}
		if mc.TangentConfidence >= mc.TangentThreshold {
			return speak(mc.TangentConfidence, "tangent_confident")
		}
		return silent(mc.TangentConfidence, "tangent_low_confidence")
	}

	return silent(1.0, "unknown_trigger")
}

// elapsedRatio is the TimeWarning confidence: how far into the allocation
// the current item is, clamped to [0, 1].
func elapsedRatio(mc agenda.Context) float64 {
	if mc.Allocated <= 0 {
		return 0
	}
	r := float64(mc.Elapsed) / float64(mc.Allocated)
	if r < 0 {
		return 0
	}
	if r > 1 {
		return 1
	}
	return r
}

// redundancy returns the fraction of the candidate's distinct words that
// already appear in the recent transcript. Words are lowercased and split on
// non-alphanumeric runs, so contractions contribute their pieces and
// punctuation never matters.
func redundancy(candidate string, recent []types.TranscriptEntry) float64 {
	cand := wordSet(candidate)
	if len(cand) == 0 {
		return 0
	}

	heard := make(map[string]struct{})
	for _, e := range recent {
		for _, w := range splitWords(e.Text) {
			heard[w] = struct{}{}
		}
	}

	overlap := 0
	for w := range cand {
		if _, ok := heard[w]; ok {
			overlap++
		}
	}
	return float64(overlap) / float64(len(cand))
}

func splitWords(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func wordSet(s string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, w := range splitWords(s) {
		set[w] = struct{}{}
	}
	return set
}
