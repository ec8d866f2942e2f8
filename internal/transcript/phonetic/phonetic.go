// Package phonetic matches misheard words against a list of known meeting
// names using Double Metaphone phonetic encoding combined with Jaro-Winkler
// string similarity for ranked candidate selection.
//
// The algorithm proceeds in two stages:
//
//  1. Phonetic candidate filtering: Double Metaphone codes are computed for
//     each word in the input and for each known entity. An entity with the
//     same word count becomes a phonetic candidate when every input word
//     shares a code with, or closely resembles, its positional counterpart.
//
//  2. Jaro-Winkler ranking: among phonetic candidates, the entity with the
//     highest Jaro-Winkler similarity (computed on the original strings,
//     case-insensitive) is selected, provided its score exceeds the
//     configurable phonetic threshold. Entities that never became phonetic
//     candidates are still accepted on pure Jaro-Winkler similarity at a
//     higher fuzzy threshold (default 0.85).
//
// Multi-word entities ("Quarterly budget review") are supported, as are
// recogniser splits and merges of a single name ("maria h" for "Mariah"):
// the window is additionally compared with spaces stripped. The relaxed
// phonetic threshold only applies when the window and the entity have the
// same number of words; a split or merged rendering must clear the fuzzy
// bar on the whole window and have nearly the same character count as the
// entity, which keeps a name from swallowing the word next to it
// ("beet can" must not match "Beat").
package phonetic

import (
	"strings"

	"github.com/antzucaro/matchr"
)

const (
	defaultPhoneticThreshold = 0.70
	defaultFuzzyThreshold    = 0.85

	// maxConcatGap is the largest length difference, in bytes, allowed
	// between the space-stripped window and the space-stripped entity when
	// their word counts differ. A split rendering contains almost exactly
	// the characters of the name it came from; a window that absorbed a
	// neighbour word is longer by that whole word and fails this check
	// before any scoring happens.
	maxConcatGap = 2
)

// Option is a functional option for configuring a [Matcher].
type Option func(*Matcher)

// WithPhoneticThreshold sets the minimum Jaro-Winkler score required for a
// phonetically-matched entity of the same word count to be accepted.
// Default: 0.70.
func WithPhoneticThreshold(threshold float64) Option {
	return func(m *Matcher) {
		m.phoneticThreshold = threshold
	}
}

// WithFuzzyThreshold sets the minimum Jaro-Winkler score required when no
// phonetic match is found, or when the window and entity word counts differ.
// Default: 0.85.
func WithFuzzyThreshold(threshold float64) Option {
	return func(m *Matcher) {
		m.fuzzyThreshold = threshold
	}
}

// Matcher is a phonetic entity matcher.
// All methods are safe for concurrent use; the Matcher is read-only after
// construction.
type Matcher struct {
	phoneticThreshold float64
	fuzzyThreshold    float64
}

// New returns a new [Matcher] configured with the supplied options.
// Default thresholds are 0.70 for phonetic matches and 0.85 for fuzzy
// fallback and cross-word-count matches.
func New(opts ...Option) *Matcher {
	m := &Matcher{
		phoneticThreshold: defaultPhoneticThreshold,
		fuzzyThreshold:    defaultFuzzyThreshold,
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// preparedEntity holds the precomputed comparison data for one entity name.
type preparedEntity struct {
	original   string
	lower      string
	tokens     []string
	concat     string
	codes      map[string]struct{}
	tokenCodes []map[string]struct{}
}

// EntitySet is a list of entity names with their phonetic codes and
// normalised forms precomputed. Preparing once and reusing the set across
// many [Matcher.MatchPrepared] calls avoids re-encoding the entity list for
// every window of every utterance.
//
// An EntitySet is read-only after construction and safe for concurrent use.
type EntitySet struct {
	entities []preparedEntity
	maxWords int
}

// PrepareEntities precomputes phonetic codes and normalised forms for the
// given entity names. Blank names are skipped. A nil or empty slice yields
// an empty set that never matches.
func PrepareEntities(entities []string) *EntitySet {
	es := &EntitySet{}
	for _, e := range entities {
		trimmed := strings.TrimSpace(e)
		lower := strings.ToLower(trimmed)
		if lower == "" {
			continue
		}
		tokens := strings.Fields(lower)
		perToken := make([]map[string]struct{}, len(tokens))
		union := make(map[string]struct{}, len(tokens)*2)
		for i, tok := range tokens {
			perToken[i] = tokenCodes(tok)
			for code := range perToken[i] {
				union[code] = struct{}{}
			}
		}
		es.entities = append(es.entities, preparedEntity{
			original:   trimmed,
			lower:      lower,
			tokens:     tokens,
			concat:     strings.Join(tokens, ""),
			codes:      union,
			tokenCodes: perToken,
		})
		if len(tokens) > es.maxWords {
			es.maxWords = len(tokens)
		}
	}
	return es
}

// MaxWords returns the largest number of whitespace-separated words in any
// prepared entity. Returns 0 for an empty set.
func (es *EntitySet) MaxWords() int { return es.maxWords }

// Len returns the number of prepared entities in the set.
func (es *EntitySet) Len() int { return len(es.entities) }

// Match is the one-shot form of [Matcher.MatchPrepared]: it prepares
// entities on the fly and matches word against them. Callers matching many
// windows against the same list should prepare once with [PrepareEntities]
// and use MatchPrepared instead.
func (m *Matcher) Match(word string, entities []string) (corrected string, confidence float64, matched bool) {
	return m.MatchPrepared(word, PrepareEntities(entities))
}

// MatchPrepared attempts to find the entity from es that is most phonetically
// similar to word.
//
// word may be a single word or a space-separated phrase (n-gram). The phrase
// is compared against each entity both as-is and with spaces stripped, so a
// name the recogniser split into two tokens still aligns with its single-word
// entity.
//
// Return values:
//
//	corrected  — the best-matching entity name from es, in its original casing.
//	confidence — similarity score in [0.0, 1.0] where 1.0 is a perfect match.
//	matched    — true when a sufficiently similar entity was found.
//
// When matched is false, corrected equals word unchanged and confidence is 0.
func (m *Matcher) MatchPrepared(word string, es *EntitySet) (corrected string, confidence float64, matched bool) {
	if es == nil || len(es.entities) == 0 || strings.TrimSpace(word) == "" {
		return word, 0, false
	}

	wordLower := strings.ToLower(strings.TrimSpace(word))
	wordTokens := strings.Fields(wordLower)
	wordConcat := strings.Join(wordTokens, "")

	inputTokenCodes := make([]map[string]struct{}, len(wordTokens))
	inputCodes := make(map[string]struct{}, len(wordTokens)*2)
	for i, tok := range wordTokens {
		inputTokenCodes[i] = tokenCodes(tok)
		for code := range inputTokenCodes[i] {
			inputCodes[code] = struct{}{}
		}
	}

	type candidate struct {
		entity   string
		score    float64
		phonetic bool
	}

	var best candidate

	for i := range es.entities {
		pe := &es.entities[i]

		sameArity := len(wordTokens) == len(pe.tokens)

		var phoneticMatch bool
		if sameArity {
			// Alignment is per position: sharing one exact token with a
			// multi-word entity ("the budget" against "Budget review") must
			// not unlock the relaxed threshold for the whole window.
			phoneticMatch = m.tokensAlign(inputTokenCodes, wordTokens, pe.tokenCodes, pe.tokens)
		} else {
			// A split or merged rendering ("maria h" for "Mariah") contains
			// almost exactly the characters of the name it came from; a
			// window that absorbed a neighbour word is longer by that whole
			// word and is rejected before scoring.
			if lengthGap(wordConcat, pe.concat) > maxConcatGap {
				continue
			}
			phoneticMatch = codesOverlap(inputCodes, pe.codes)
		}

		// Cross-word-count matches always face the stricter fuzzy bar.
		threshold := m.fuzzyThreshold
		if sameArity && phoneticMatch {
			threshold = m.phoneticThreshold
		}

		score := windowScore(wordLower, pe.lower, wordConcat, pe.concat)
		if score < threshold {
			continue
		}

		if phoneticMatch {
			if !best.phonetic || score > best.score {
				best = candidate{entity: pe.original, score: score, phonetic: true}
			}
		} else if !best.phonetic && score > best.score {
			best = candidate{entity: pe.original, score: score, phonetic: false}
		}
	}

	if best.entity != "" {
		return best.entity, best.score, true
	}
	return word, 0, false
}

// tokenCodes returns the Double Metaphone codes for a single token. Empty
// codes (produced when the word is too short or contains no consonants) are
// excluded.
func tokenCodes(tok string) map[string]struct{} {
	codes := make(map[string]struct{}, 2)
	p, s := matchr.DoubleMetaphone(tok)
	if p != "" {
		codes[p] = struct{}{}
	}
	if s != "" {
		codes[s] = struct{}{}
	}
	return codes
}

// tokensAlign reports whether every window token resembles its positional
// counterpart in the entity, either by sharing a Double Metaphone code or by
// clearing the fuzzy bar on its own.
func (m *Matcher) tokensAlign(wordCodes []map[string]struct{}, wordTokens []string, entityCodes []map[string]struct{}, entityTokens []string) bool {
	for k := range wordTokens {
		if codesOverlap(wordCodes[k], entityCodes[k]) {
			continue
		}
		if matchr.JaroWinkler(wordTokens[k], entityTokens[k], false) >= m.fuzzyThreshold {
			continue
		}
		return false
	}
	return true
}

// codesOverlap returns true if the two code sets share at least one code.
func codesOverlap(a, b map[string]struct{}) bool {
	// Iterate over the smaller set for efficiency.
	if len(a) > len(b) {
		a, b = b, a
	}
	for code := range a {
		if _, ok := b[code]; ok {
			return true
		}
	}
	return false
}

// lengthGap returns the absolute difference between the two string lengths.
func lengthGap(a, b string) int {
	if len(a) > len(b) {
		return len(a) - len(b)
	}
	return len(b) - len(a)
}

// windowScore returns the higher of the full-string and space-stripped
// Jaro-Winkler similarities between the window and the entity. The stripped
// comparison catches names the recogniser split or merged ("maria h" vs
// "mariah"). longTolerance is passed as false for standard scoring.
func windowScore(windowLower, entityLower, windowConcat, entityConcat string) float64 {
	score := matchr.JaroWinkler(windowLower, entityLower, false)
	if windowConcat != windowLower || entityConcat != entityLower {
		if s := matchr.JaroWinkler(windowConcat, entityConcat, false); s > score {
			score = s
		}
	}
	return score
}
