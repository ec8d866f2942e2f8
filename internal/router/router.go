// Package router classifies participant utterances into facilitation intents
// before any language model is consulted. It checks final transcripts against
// an ordered set of regex patterns; the first match wins and the caller acts
// on the returned command.
//
// In non-chatting styles every intent except the silence request requires the
// bot to be addressed by name. In chatting mode classification is bypassed
// entirely: silence still works, everything else goes to the language model.
package router

import (
	"log/slog"
	"regexp"
	"strings"

	"github.com/OccupiedPorcupine/beat-your-meet-sub000/internal/agenda"
)

// Intent is the classified meaning of a participant utterance.
type Intent int

const (
	// IntentNone means the utterance does not engage the bot at all.
	IntentNone Intent = iota

	// IntentSilence is a request to stop interrupting for a while.
	IntentSilence

	// IntentNamedAddress is an address with no recognised command: the
	// utterance goes to the language model for a freeform reply.
	IntentNamedAddress

	// IntentTimeQuery asks how much time is left; answered deterministically.
	IntentTimeQuery

	// IntentSkip asks to move to the next agenda item.
	IntentSkip

	// IntentEnd asks to end the meeting.
	IntentEnd

	// IntentOverride asks for more time on the current item.
	IntentOverride

	// IntentDocumentRequest asks for a document to be produced at the end.
	IntentDocumentRequest

	// IntentGeneral is a chatting-mode utterance passed through to the
	// language model.
	IntentGeneral
)

// String returns the intent name for logs.
func (i Intent) String() string {
	switch i {
	case IntentNone:
		return "none"
	case IntentSilence:
		return "silence"
	case IntentNamedAddress:
		return "named_address"
	case IntentTimeQuery:
		return "time_query"
	case IntentSkip:
		return "skip"
	case IntentEnd:
		return "end"
	case IntentOverride:
		return "override"
	case IntentDocumentRequest:
		return "document_request"
	case IntentGeneral:
		return "general"
	default:
		return "unknown"
	}
}

// Command is the classification result handed to the session loop.
type Command struct {
	// Intent is the classified meaning.
	Intent Intent

	// Text is the original utterance.
	Text string

	// Remainder is the utterance with a leading address stripped; what the
	// language model should see for freeform replies.
	Remainder string

	// Doc carries the parsed request for IntentDocumentRequest, nil otherwise.
	Doc *agenda.DocumentRequest
}

// pattern pairs a compiled regex with the command it produces when matched.
// matches is the full submatch slice from FindStringSubmatch.
type pattern struct {
	name string
	re   *regexp.Regexp
	make func(matches []string) Command
}

// Router classifies utterances. It is stateless apart from its compiled
// patterns and safe for concurrent use.
type Router struct {
	detector *AddressDetector
	silence  *regexp.Regexp
	patterns []pattern
}

// New builds a Router that recognises the given bot name (plus aliases) for
// named-address detection.
func New(botName string, aliases ...string) *Router {
	return &Router{
		detector: NewAddressDetector(botName, aliases...),
		silence: regexp.MustCompile(
			`(?i)\b(please be quiet|stop interrupting|we've got this|we have got this|quiet please|be quiet|stop talking|no more interruptions)\b`),
		patterns: commandPatterns(),
	}
}

// Classify runs the ordered checks over one utterance and returns the first
// matching command.
//
// Order: silence request (always); then, outside chatting mode, a named
// address is required before the remaining intents are tried against the
// address-stripped remainder; an addressed utterance with no recognised
// command becomes IntentNamedAddress. In chatting mode every non-silence
// utterance is IntentGeneral.
func (r *Router) Classify(text string, style agenda.Style) Command {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return Command{Intent: IntentNone, Text: text}
	}

	if r.silence.MatchString(trimmed) {
		r.log("silence-request", trimmed, IntentSilence)
		return Command{Intent: IntentSilence, Text: text}
	}

	if style == agenda.StyleChatting {
		return Command{Intent: IntentGeneral, Text: text, Remainder: trimmed}
	}

	if !r.detector.Addressed(trimmed) {
		return Command{Intent: IntentNone, Text: text}
	}

	remainder := r.detector.Strip(trimmed)
	for _, p := range r.patterns {
		matches := p.re.FindStringSubmatch(remainder)
		if matches == nil {
			continue
		}
		cmd := p.make(matches)
		cmd.Text = text
		cmd.Remainder = remainder
		r.log(p.name, trimmed, cmd.Intent)
		return cmd
	}

	r.log("freeform-address", trimmed, IntentNamedAddress)
	return Command{Intent: IntentNamedAddress, Text: text, Remainder: remainder}
}

func (r *Router) log(pattern, text string, intent Intent) {
	slog.Debug("router: utterance classified",
		"pattern", pattern,
		"intent", intent.String(),
		"text", text,
	)
}

// commandPatterns returns the built-in intent patterns, in spec order. They
// run against the address-stripped remainder, which keeps the phrases short.
func commandPatterns() []pattern {
	return []pattern{
		{
			name: "time-query",
			re: regexp.MustCompile(
				`(?i)\b(how much time|time left|what time is it|time check|how long (do we have|is left)|how (are we|am i) doing on time)\b`),
			make: func(_ []string) Command {
				return Command{Intent: IntentTimeQuery}
			},
		},
		{
			name: "skip-item",
			re: regexp.MustCompile(
				`(?i)\b(skip (this|it|ahead)|move on|moving on|next (topic|item)|go to the next)\b`),
			make: func(_ []string) Command {
				return Command{Intent: IntentSkip}
			},
		},
		{
			name: "end-meeting",
			re: regexp.MustCompile(
				`(?i)\b(end (the |this )?meeting|wrap (it |this |things )?up now|adjourn|finish the meeting|call it a day)\b`),
			make: func(_ []string) Command {
				return Command{Intent: IntentEnd}
			},
		},
		{
			name: "override",
			re: regexp.MustCompile(
				`(?i)\b(keep going|give us (a bit |some )?more time|a few more minutes|more time on this|stay on this( topic| item)?|don't move on)\b`),
			make: func(_ []string) Command {
				return Command{Intent: IntentOverride}
			},
		},
		{
			name: "document-attendance",
			re: regexp.MustCompile(
				`(?i)\b(attendance( list| sheet)?|who (was|is) (here|in the meeting)|list of attendees)\b`),
			make: func(_ []string) Command {
				return Command{
					Intent: IntentDocumentRequest,
					Doc:    &agenda.DocumentRequest{Type: agenda.DocAttendance},
				}
			},
		},
		{
			name: "document-action-items",
			re: regexp.MustCompile(
				`(?i)\b(action items?( list)?|to-?do list|list of (tasks|action items))\b`),
			make: func(_ []string) Command {
				return Command{
					Intent: IntentDocumentRequest,
					Doc:    &agenda.DocumentRequest{Type: agenda.DocActionItems},
				}
			},
		},
		{
			name: "document-summary",
			re: regexp.MustCompile(
				`(?i)\b(meeting summary|full summary|summari[sz]e (this|the) meeting|a summary)\b`),
			make: func(_ []string) Command {
				return Command{
					Intent: IntentDocumentRequest,
					Doc:    &agenda.DocumentRequest{Type: agenda.DocSummary},
				}
			},
		},
		{
			name: "document-custom",
			re: regexp.MustCompile(
				`(?i)\b(?:keep a record of|note down|make a note of|write down|keep track of)\s+(.+)$`),
			make: func(matches []string) Command {
				desc := strings.TrimSpace(matches[1])
				return Command{
					Intent: IntentDocumentRequest,
					Doc:    &agenda.DocumentRequest{Type: agenda.DocCustom, Description: desc},
				}
			},
		},
	}
}
