package monitor

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/OccupiedPorcupine/beat-your-meet-sub000/internal/agenda"
	"github.com/OccupiedPorcupine/beat-your-meet-sub000/pkg/provider/llm"
	llmmock "github.com/OccupiedPorcupine/beat-your-meet-sub000/pkg/provider/llm/mock"
	"github.com/OccupiedPorcupine/beat-your-meet-sub000/pkg/types"
)

func assessResponse(args string) *llm.CompletionResponse {
	return &llm.CompletionResponse{
		ToolCalls: []types.ToolCall{{ID: "call-1", Name: "assess_tangent", Arguments: args}},
	}
}

func budgetStatus() agenda.TimeStatus {
	return agenda.TimeStatus{
		Topic:     "Budget review",
		Allocated: 10 * time.Minute,
		Elapsed:   6 * time.Minute,
		Remaining: 4 * time.Minute,
	}
}

func gameChatter() []types.TranscriptEntry {
	return []types.TranscriptEntry{
		{SpeakerID: "u1", SpeakerName: "Alice", Text: "Did anyone catch the game last night?"},
		{SpeakerID: "u2", SpeakerName: "Bob", Text: "What a finish, honestly."},
	}
}

func TestAssess(t *testing.T) {
	fast := &llmmock.Provider{
		CompleteResponse: assessResponse(
			`{"classification":"off_topic","confidence":0.92,"redirect":"Fun as that was, let's get back to the budget."}`),
	}
	a := NewAssessor(fast)

	got := a.Assess(context.Background(), budgetStatus(), agenda.StyleModerate, gameChatter())

	if got.Classification != ClassOffTopic {
		t.Errorf("classification = %q, want %q", got.Classification, ClassOffTopic)
	}
	if got.Confidence != 0.92 {
		t.Errorf("confidence = %v, want 0.92", got.Confidence)
	}
	if got.Redirect != "Fun as that was, let's get back to the budget." {
		t.Errorf("redirect = %q", got.Redirect)
	}

	if len(fast.CompleteCalls) != 1 {
		t.Fatalf("got %d Complete calls, want 1", len(fast.CompleteCalls))
	}
	req := fast.CompleteCalls[0].Req
	if req.ToolChoice != "assess_tangent" {
		t.Errorf("ToolChoice = %q, want the forced tool", req.ToolChoice)
	}
	if len(req.Tools) != 1 || req.Tools[0].Name != "assess_tangent" {
		t.Errorf("Tools = %+v, want exactly the assessment tool", req.Tools)
	}
	if req.Temperature != 0 {
		t.Errorf("Temperature = %v, want 0", req.Temperature)
	}
	if !strings.Contains(req.SystemPrompt, "concise and direct") {
		t.Errorf("system prompt missing the moderate tone fragment:\n%s", req.SystemPrompt)
	}
	content := req.Messages[len(req.Messages)-1].Content
	if !strings.Contains(content, "Budget review") {
		t.Errorf("user content missing the topic:\n%s", content)
	}
	if !strings.Contains(content, "Alice: Did anyone catch the game last night?") {
		t.Errorf("user content missing the transcript lines:\n%s", content)
	}

	deadline, ok := fast.CompleteCalls[0].Ctx.Deadline()
	if !ok {
		t.Fatal("assessment context has no deadline")
	}
	if remaining := time.Until(deadline); remaining > 5*time.Second {
		t.Errorf("deadline %v away, want at most 5s", remaining)
	}
}

func TestAssessEmptyTranscript(t *testing.T) {
	fast := &llmmock.Provider{}
	a := NewAssessor(fast)

	got := a.Assess(context.Background(), budgetStatus(), agenda.StyleModerate, nil)

	if got.Classification != ClassOnTrack || got.Redirect != "" {
		t.Errorf("got %+v, want an on-track no-op", got)
	}
	if len(fast.CompleteCalls) != 0 {
		t.Errorf("got %d Complete calls, want none for an empty window", len(fast.CompleteCalls))
	}
}

func TestAssessModelError(t *testing.T) {
	fast := &llmmock.Provider{CompleteErr: errors.New("backend unavailable")}
	a := NewAssessor(fast)

	got := a.Assess(context.Background(), budgetStatus(), agenda.StyleModerate, gameChatter())

	if got.Classification != ClassOnTrack || got.Confidence != 0 || got.Redirect != "" {
		t.Errorf("got %+v, want an on-track no-op on model error", got)
	}
}

func TestAssessTimeout(t *testing.T) {
	fast := &llmmock.Provider{
		CompleteDelay: func(ctx context.Context) error {
			<-ctx.Done()
			return ctx.Err()
		},
	}
	a := NewAssessor(fast, WithAssessTimeout(20*time.Millisecond))

	start := time.Now()
	got := a.Assess(context.Background(), budgetStatus(), agenda.StyleModerate, gameChatter())

	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Fatalf("assessment took %v, deadline did not bind", elapsed)
	}
	if got.Classification != ClassOnTrack || got.Redirect != "" {
		t.Errorf("got %+v, want an on-track no-op on timeout", got)
	}
}

func TestAssessUnknownClassification(t *testing.T) {
	fast := &llmmock.Provider{
		CompleteResponse: assessResponse(`{"classification":"rambling","confidence":0.8,"redirect":"Back to it."}`),
	}
	a := NewAssessor(fast)

	got := a.Assess(context.Background(), budgetStatus(), agenda.StyleModerate, gameChatter())

	if got.Classification != ClassOnTrack || got.Redirect != "" {
		t.Errorf("got %+v, want an on-track no-op for an unknown classification", got)
	}
}

func TestAssessConfidenceOutOfRange(t *testing.T) {
	fast := &llmmock.Provider{
		CompleteResponse: assessResponse(`{"classification":"off_topic","confidence":1.4,"redirect":"Back to it."}`),
	}
	a := NewAssessor(fast)

	got := a.Assess(context.Background(), budgetStatus(), agenda.StyleModerate, gameChatter())

	if got.Classification != ClassOnTrack || got.Redirect != "" {
		t.Errorf("got %+v, want an on-track no-op for an out-of-range confidence", got)
	}
}

func TestAssessMalformedArguments(t *testing.T) {
	fast := &llmmock.Provider{
		CompleteResponse: assessResponse(`{"classification": 7}`),
	}
	a := NewAssessor(fast)

	got := a.Assess(context.Background(), budgetStatus(), agenda.StyleModerate, gameChatter())

	if got.Classification != ClassOnTrack || got.Redirect != "" {
		t.Errorf("got %+v, want an on-track no-op for malformed arguments", got)
	}
}

func TestAssessTextOnlyResponse(t *testing.T) {
	fast := &llmmock.Provider{
		CompleteResponse: &llm.CompletionResponse{Content: "Looks fine to me."},
	}
	a := NewAssessor(fast)

	got := a.Assess(context.Background(), budgetStatus(), agenda.StyleModerate, gameChatter())

	if got.Classification != ClassOnTrack || got.Redirect != "" {
		t.Errorf("got %+v, want an on-track no-op when the forced tool call is missing", got)
	}
}

func TestAssessTrimsRedirect(t *testing.T) {
	fast := &llmmock.Provider{
		CompleteResponse: assessResponse(`{"classification":"drifting","confidence":0.75,"redirect":"  Let's refocus on the budget.  "}`),
	}
	a := NewAssessor(fast)

	got := a.Assess(context.Background(), budgetStatus(), agenda.StyleGentle, gameChatter())

	if got.Redirect != "Let's refocus on the budget." {
		t.Errorf("redirect = %q, want it trimmed", got.Redirect)
	}
	if got.Classification != ClassDrifting || got.Confidence != 0.75 {
		t.Errorf("got %+v, want the drifting verdict preserved", got)
	}
}

func TestAssessGentleTone(t *testing.T) {
	fast := &llmmock.Provider{
		CompleteResponse: assessResponse(`{"classification":"on_track","confidence":0.9,"redirect":""}`),
	}
	a := NewAssessor(fast)

	got := a.Assess(context.Background(), budgetStatus(), agenda.StyleGentle, gameChatter())

	if got.Classification != ClassOnTrack || got.Confidence != 0.9 {
		t.Errorf("got %+v, want the on-track verdict passed through", got)
	}
	req := fast.CompleteCalls[0].Req
	if !strings.Contains(req.SystemPrompt, "warm and tentative") {
		t.Errorf("system prompt missing the gentle tone fragment:\n%s", req.SystemPrompt)
	}
}
