// Package transcript corrects recogniser errors in meeting vocabulary before
// utterances reach routing or storage.
//
// Raw speech-to-text output is rarely perfect for proper nouns: the
// facilitator's own name, participant names, and agenda topic titles are
// frequently misheard ("beet" for "Beat", "markus" for "Marcus"). Named
// address detection and agenda references both depend on those words being
// right, so the [Corrector] aligns them against the meeting's known-name list
// using phonetic matching before anything downstream sees the text.
//
// Correction is a single in-process stage with no network calls, fast enough
// to run on every final transcript. The known-name list only changes when the
// roster or the agenda changes, so the Corrector precomputes phonetic codes
// in [Corrector.SetEntities] and reuses them for every utterance.
//
// Each [Correction] records the substitution and its confidence, so callers
// can audit, display, or selectively roll back changes.
package transcript

import (
	"github.com/OccupiedPorcupine/beat-your-meet-sub000/pkg/types"
)

// Correction captures a single substitution made by the corrector.
type Correction struct {
	// Original is the word or phrase as produced by the recogniser, with
	// punctuation stripped from the window edges.
	Original string

	// Corrected is the known name that replaced it, in canonical casing.
	Corrected string

	// Confidence is the match confidence for this substitution, in
	// [0.0, 1.0]. Values above 0.9 are considered near-exact.
	Confidence float64
}

// CorrectedTranscript is the output of a [Corrector.Correct] call.
// It pairs the original [types.Transcript] with the corrected text and an
// itemised record of every substitution that was applied.
type CorrectedTranscript struct {
	// Original is the raw [types.Transcript] as received from the STT
	// provider.
	Original types.Transcript

	// Corrected is the full transcript text with all substitutions applied.
	// Suitable for routing, archival, and prompt assembly.
	Corrected string

	// Corrections is the ordered list of substitutions applied to produce
	// Corrected. An empty (non-nil) slice means nothing needed fixing.
	Corrections []Correction
}
