package router

import (
	"regexp"
	"strings"
)

// AddressDetector recognises the bot being addressed by name: the name as a
// standalone token anywhere in the utterance, as a leading prefix, or in
// "@name" form. Matching is case-insensitive and never fires inside longer
// words, so "beaten" does not address a bot called "beat".
type AddressDetector struct {
	match *regexp.Regexp
	strip *regexp.Regexp
}

// NewAddressDetector builds a detector for the given name and optional
// aliases. Empty and duplicate names are ignored; at least one non-empty
// name is required for the detector to match anything.
func NewAddressDetector(name string, aliases ...string) *AddressDetector {
	seen := make(map[string]struct{})
	var quoted []string
	for _, n := range append([]string{name}, aliases...) {
		n = strings.ToLower(strings.TrimSpace(n))
		if n == "" {
			continue
		}
		if _, dup := seen[n]; dup {
			continue
		}
		seen[n] = struct{}{}
		quoted = append(quoted, regexp.QuoteMeta(n))
	}
	if len(quoted) == 0 {
		return &AddressDetector{}
	}

	alt := strings.Join(quoted, "|")
	return &AddressDetector{
		match: regexp.MustCompile(`(?i)(^|[^a-z0-9@])@?(` + alt + `)([^a-z0-9]|$)`),
		strip: regexp.MustCompile(`(?i)^(?:hey|hi|ok|okay)?[\s,]*@?(?:` + alt + `)\b[\s,.:;!?-]*`),
	}
}

// Addressed reports whether the text addresses the bot.
func (d *AddressDetector) Addressed(text string) bool {
	if d.match == nil {
		return false
	}
	return d.match.MatchString(text)
}

// Strip removes a leading address ("Beat, ..." or "hey @beat ...") and
// returns the remainder. Text that does not start with an address is
// returned trimmed but otherwise unchanged, so a mid-sentence mention keeps
// its full wording for classification.
func (d *AddressDetector) Strip(text string) string {
	trimmed := strings.TrimSpace(text)
	if d.strip == nil {
		return trimmed
	}
	return strings.TrimSpace(d.strip.ReplaceAllString(trimmed, ""))
}
