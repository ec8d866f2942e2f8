package transcript

import (
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"

	"github.com/OccupiedPorcupine/beat-your-meet-sub000/internal/transcript/phonetic"
	"github.com/OccupiedPorcupine/beat-your-meet-sub000/pkg/types"
)

// Corrector aligns misheard proper nouns in recogniser output with the
// meeting's known names. It holds a prepared copy of the name list, so the
// per-utterance cost is the window walk plus string comparisons; no phonetic
// codes are computed on the hot path.
//
// Corrector is safe for concurrent use. [Corrector.SetEntities] may be called
// while another goroutine is inside [Corrector.Correct]; the in-flight call
// finishes against the set it started with.
type Corrector struct {
	matcher *phonetic.Matcher

	mu       sync.RWMutex
	entities *phonetic.EntitySet
}

// New returns a [Corrector] using the given matcher and an empty name list.
// Call [Corrector.SetEntities] before the first utterance arrives; with no
// known names, every transcript passes through unchanged.
func New(matcher *phonetic.Matcher) *Corrector {
	return &Corrector{
		matcher:  matcher,
		entities: phonetic.PrepareEntities(nil),
	}
}

// SetEntities replaces the known-name list. Callers pass the facilitator's
// own name, the current participant names, and the agenda topic titles, and
// call again whenever any of those change. Phonetic codes are computed here,
// once per change, not per utterance.
func (c *Corrector) SetEntities(names []string) {
	prepared := phonetic.PrepareEntities(names)
	c.mu.Lock()
	c.entities = prepared
	c.mu.Unlock()
}

// Correct applies phonetic alignment to t and returns the corrected text
// together with an itemised record of every substitution.
//
// The algorithm:
//  1. Tokenise the text into whitespace-separated tokens.
//  2. At each position, score every n-gram window up to the widest,
//     comparing the window's word cores (punctuation stripped from token
//     edges) against the known names. The best-scoring window wins, with
//     ties going to the narrowest, so a multi-word topic beats a partial
//     match but an exact name next to a short word does not absorb it.
//  3. On a match, emit the entity in its canonical casing with the window's
//     edge punctuation reattached; otherwise emit the token unchanged and
//     advance by one.
//
// A window that already equals its entity exactly is consumed without being
// recorded, so a correctly rendered name does not produce a noise correction.
func (c *Corrector) Correct(t types.Transcript) CorrectedTranscript {
	c.mu.RLock()
	entities := c.entities
	c.mu.RUnlock()

	result := CorrectedTranscript{
		Original:    t,
		Corrected:   t.Text,
		Corrections: []Correction{},
	}

	if entities.MaxWords() == 0 {
		return result
	}
	tokens := strings.Fields(t.Text)
	if len(tokens) == 0 {
		return result
	}

	// Windows may exceed the longest entity by one token so a name the
	// recogniser split in two ("maria h") can still merge into its
	// single-word entity. The matcher holds cross-word-count matches to a
	// stricter bar, which keeps the wider window from absorbing neighbours.
	windowCap := entities.MaxWords() + 1

	output := make([]string, 0, len(tokens))

	i := 0
	for i < len(tokens) {
		// Clamp window size to remaining tokens.
		maxN := windowCap
		if i+maxN > len(tokens) {
			maxN = len(tokens) - i
		}

		var (
			bestN      int
			bestWindow string
			bestEntity string
			bestConf   float64
		)
		for n := 1; n <= maxN; n++ {
			window := coreWindow(tokens[i : i+n])
			if window == "" {
				continue
			}
			entity, conf, ok := c.matcher.MatchPrepared(window, entities)
			if !ok {
				continue
			}
			if conf > bestConf {
				bestN, bestWindow, bestEntity, bestConf = n, window, entity, conf
			}
		}

		if bestN == 0 {
			output = append(output, tokens[i])
			i++
			continue
		}

		if bestEntity == bestWindow {
			// Already canonical; consume the window so a narrower n-gram
			// cannot rematch inside it.
			output = append(output, tokens[i:i+bestN]...)
		} else {
			lead, _, _ := splitToken(tokens[i])
			_, _, trail := splitToken(tokens[i+bestN-1])
			entityTokens := strings.Fields(bestEntity)
			entityTokens[0] = lead + entityTokens[0]
			entityTokens[len(entityTokens)-1] += trail
			output = append(output, entityTokens...)
			result.Corrections = append(result.Corrections, Correction{
				Original:   bestWindow,
				Corrected:  bestEntity,
				Confidence: bestConf,
			})
		}
		i += bestN
	}

	result.Corrected = strings.Join(output, " ")
	return result
}

// splitToken splits tok into leading punctuation, word core, and trailing
// punctuation. The core spans from the first to the last letter or digit; a
// token with neither is all trail.
func splitToken(tok string) (lead, core, trail string) {
	start := strings.IndexFunc(tok, isWordRune)
	if start < 0 {
		return "", "", tok
	}
	end := strings.LastIndexFunc(tok, isWordRune)
	_, size := utf8.DecodeRuneInString(tok[end:])
	return tok[:start], tok[start : end+size], tok[end+size:]
}

// coreWindow joins the word cores of tokens with single spaces, skipping
// tokens that are pure punctuation. Returns "" when no token has a core.
func coreWindow(tokens []string) string {
	parts := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		if _, core, _ := splitToken(tok); core != "" {
			parts = append(parts, core)
		}
	}
	return strings.Join(parts, " ")
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsNumber(r)
}
