// Package monitor drives the periodic facilitation loop: a scheduler polls
// the agenda state machine on a fixed interval, raises intervention
// candidates for time warnings, transitions, and wrap-up, and consults the
// tangent assessor when the conversation might have drifted.
package monitor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/OccupiedPorcupine/beat-your-meet-sub000/internal/agenda"
	"github.com/OccupiedPorcupine/beat-your-meet-sub000/pkg/provider/llm"
	"github.com/OccupiedPorcupine/beat-your-meet-sub000/pkg/types"
)

const (
	assessToolName = "assess_tangent"

	// defaultAssessTimeout bounds one assessment; the scheduler ticks every
	// fifteen seconds and an answer that misses the window is worthless.
	defaultAssessTimeout = 5 * time.Second
)

// Classifications the assessor may return. ClassProductive covers
// conversation that has left the agenda item but is clearly worth having, so
// the facilitator stays quiet even at high confidence.
const (
	ClassOnTrack      = "on_track"
	ClassDrifting     = "drifting"
	ClassOffTopic     = "off_topic"
	ClassTimeExceeded = "time_exceeded"
	ClassProductive   = "productive_discussion"
)

const assessPrompt = `You observe a live meeting and judge whether the recent conversation still serves the agenda item under discussion.

Classify the transcript as exactly one of: on_track, drifting, off_topic, time_exceeded, productive_discussion. Use productive_discussion when the conversation has left the item but is clearly valuable to the meeting, so no interruption is warranted.

When the group should be brought back, write a short spoken redirect in the facilitator's voice. Leave the redirect empty for on_track and productive_discussion. %s

Call %s exactly once.`

// Assessment is the assessor's verdict on the recent conversation. A zero
// Redirect means no intervention is proposed.
type Assessment struct {
	Classification string
	Confidence     float64
	Redirect       string
}

// Assessor classifies conversational drift with a single forced tool call to
// the fast model. It never fails upward: every error, timeout, or malformed
// response degrades to an on-track no-op so the meeting is never disturbed by
// a flaky model.
type Assessor struct {
	fast    llm.Provider
	timeout time.Duration
}

// AssessorOption is a functional option for [NewAssessor].
type AssessorOption func(*Assessor)

// WithAssessTimeout overrides the per-assessment deadline.
func WithAssessTimeout(d time.Duration) AssessorOption {
	return func(a *Assessor) {
		if d > 0 {
			a.timeout = d
		}
	}
}

// NewAssessor constructs an Assessor over the fast model.
func NewAssessor(fast llm.Provider, opts ...AssessorOption) *Assessor {
	a := &Assessor{fast: fast, timeout: defaultAssessTimeout}
	for _, o := range opts {
		o(a)
	}
	return a
}

// Assess classifies the recent transcript against the current agenda item.
// The style shapes the tone of the proposed redirect, not the verdict.
func (a *Assessor) Assess(ctx context.Context, st agenda.TimeStatus, style agenda.Style, recent []types.TranscriptEntry) Assessment {
	if len(recent) == 0 {
		return Assessment{Classification: ClassOnTrack}
	}

	lmCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	resp, err := a.fast.Complete(lmCtx, llm.CompletionRequest{
		SystemPrompt: fmt.Sprintf(assessPrompt, style.ToneFragment(), assessToolName),
		Messages: []types.Message{
			{Role: "user", Content: formatWindow(st, recent)},
		},
		Tools:       []types.ToolDefinition{assessTool()},
		ToolChoice:  assessToolName,
		Temperature: 0,
	})
	if err != nil {
		slog.Warn("monitor: tangent assessment failed", "topic", st.Topic, "err", err)
		return Assessment{Classification: ClassOnTrack}
	}

	out, err := parseAssessment(resp)
	if err != nil {
		slog.Warn("monitor: malformed tangent assessment", "topic", st.Topic, "err", err)
		return Assessment{Classification: ClassOnTrack}
	}
	return out
}

type assessArgs struct {
	Classification string  `json:"classification"`
	Confidence     float64 `json:"confidence"`
	Redirect       string  `json:"redirect"`
}

// parseAssessment extracts and validates the forced tool call. Anything the
// gate could not safely consume, an unknown classification or a confidence
// outside [0, 1], is rejected here.
func parseAssessment(resp *llm.CompletionResponse) (Assessment, error) {
	if resp == nil {
		return Assessment{}, errors.New("nil completion response")
	}
	for _, tc := range resp.ToolCalls {
		if tc.Name != assessToolName {
			continue
		}
		var args assessArgs
		if err := json.Unmarshal([]byte(tc.Arguments), &args); err != nil {
			return Assessment{}, fmt.Errorf("decode %s arguments: %w", assessToolName, err)
		}
		switch args.Classification {
		case ClassOnTrack, ClassDrifting, ClassOffTopic, ClassTimeExceeded, ClassProductive:
		default:
			return Assessment{}, fmt.Errorf("unknown classification %q", args.Classification)
		}
		if args.Confidence < 0 || args.Confidence > 1 {
			return Assessment{}, fmt.Errorf("confidence %v out of range", args.Confidence)
		}
		return Assessment{
			Classification: args.Classification,
			Confidence:     args.Confidence,
			Redirect:       strings.TrimSpace(args.Redirect),
		}, nil
	}
	return Assessment{}, fmt.Errorf("no %s call in response", assessToolName)
}

// formatWindow renders the agenda context and transcript window for the
// model.
func formatWindow(st agenda.TimeStatus, recent []types.TranscriptEntry) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Agenda item: %s\n", st.Topic)
	fmt.Fprintf(&sb, "Allocated: %s, elapsed so far: %s\n\n",
		st.Allocated.Round(time.Second), st.Elapsed.Round(time.Second))
	sb.WriteString("Recent transcript:\n")
	for _, e := range recent {
		speaker := e.SpeakerName
		if speaker == "" {
			speaker = e.SpeakerID
		}
		if speaker == "" {
			speaker = "Unknown"
		}
		fmt.Fprintf(&sb, "%s: %s\n", speaker, e.Text)
	}
	return sb.String()
}

func assessTool() types.ToolDefinition {
	return types.ToolDefinition{
		Name:        assessToolName,
		Description: "Report whether the conversation still serves the current agenda item and, if not, propose a short spoken redirect.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"classification": map[string]any{
					"type": "string",
					"enum": []string{ClassOnTrack, ClassDrifting, ClassOffTopic, ClassTimeExceeded, ClassProductive},
				},
				"confidence": map[string]any{
					"type":        "number",
					"description": "Confidence in the classification, between 0 and 1.",
				},
				"redirect": map[string]any{
					"type":        "string",
					"description": "A short spoken redirect in the facilitator's voice. Empty when no intervention is warranted.",
				},
			},
			"required": []string{"classification", "confidence", "redirect"},
		},
	}
}
