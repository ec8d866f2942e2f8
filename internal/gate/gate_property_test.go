package gate

import (
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/OccupiedPorcupine/beat-your-meet-sub000/internal/agenda"
)

// The gate is a pure function, so its contract can be pinned with properties
// instead of mocks: no input may ever observe a different verdict on a second
// evaluation, and the suppression rules must hold for every trigger and
// confidence the generators can produce.

func anyTrigger() gopter.Gen {
	return gen.OneConstOf(
		TriggerIntro,
		TriggerTimeWarning,
		TriggerTangent,
		TriggerTransition,
		TriggerWrapUp,
		TriggerDirectQuestion,
		TriggerNamedAddress,
	)
}

func propContext(style agenda.Style, confidence float64) agenda.Context {
	return agenda.Context{
		Now:               testNow,
		Style:             style,
		Topic:             "Roadmap",
		ItemState:         agenda.ItemActive,
		Elapsed:           time.Minute,
		Allocated:         5 * time.Minute,
		TangentConfidence: confidence,
		TangentThreshold:  style.TangentThreshold(),
		ItemsRemaining:    1,
	}
}

func TestEvaluateIsDeterministic(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("same input always yields the same verdict", prop.ForAll(
		func(text string, trigger Trigger, confidence float64) bool {
			mc := propContext(agenda.StyleModerate, confidence)
			first := Evaluate(text, trigger, mc)
			second := Evaluate(text, trigger, mc)
			return first == second
		},
		gen.AlphaString(),
		anyTrigger(),
		gen.Float64Range(0, 1),
	))

	properties.TestingRun(t)
}

func TestSilenceSuppressesNonExemptTriggers(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("silence window silences everything but transitions, wrap-up and address", prop.ForAll(
		func(trigger Trigger, confidence float64) bool {
			mc := propContext(agenda.StyleModerate, confidence)
			mc.SilenceUntil = testNow.Add(100 * time.Second)

			got := Evaluate("candidate utterance", trigger, mc)
			switch trigger {
			case TriggerTransition, TriggerWrapUp, TriggerNamedAddress:
				return got.Action == ActionSpeak
			default:
				return got.Action == ActionSilent && got.Reason == "silence"
			}
		},
		anyTrigger(),
		gen.Float64Range(0, 1),
	))

	properties.TestingRun(t)
}

func TestChattingSpeaksOnlyWhenEngaged(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("chatting mode only ever speaks for engagement triggers", prop.ForAll(
		func(trigger Trigger, confidence float64) bool {
			mc := propContext(agenda.StyleChatting, confidence)
			got := Evaluate("candidate utterance", trigger, mc)

			engaged := trigger == TriggerIntro || trigger == TriggerDirectQuestion || trigger == TriggerNamedAddress
			if engaged {
				return got.Action == ActionSpeak
			}
			return got.Action == ActionSilent
		},
		anyTrigger(),
		gen.Float64Range(0, 1),
	))

	properties.TestingRun(t)
}

func TestTangentThresholdIsStrict(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("below-threshold confidence never speaks", prop.ForAll(
		func(confidence float64) bool {
			mc := propContext(agenda.StyleModerate, confidence)
			got := Evaluate("let us get back to the roadmap", TriggerTangent, mc)
			return got.Action == ActionSilent && got.Reason == "tangent_low_confidence"
		},
		gen.Float64Range(0, 0.69),
	))

	properties.Property("at-or-above-threshold confidence speaks when nothing suppresses", prop.ForAll(
		func(confidence float64) bool {
			mc := propContext(agenda.StyleModerate, confidence)
			got := Evaluate("let us get back to the roadmap", TriggerTangent, mc)
			return got.Action == ActionSpeak && got.Confidence == confidence
		},
		gen.Float64Range(0.70, 1),
	))

	properties.Property("an active override silences any tangent", prop.ForAll(
		func(confidence float64) bool {
			mc := propContext(agenda.StyleModerate, confidence)
			mc.OverrideActive = true
			got := Evaluate("let us get back to the roadmap", TriggerTangent, mc)
			return got.Action == ActionSilent
		},
		gen.Float64Range(0, 1),
	))

	properties.TestingRun(t)
}
