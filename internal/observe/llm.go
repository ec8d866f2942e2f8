package observe

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/OccupiedPorcupine/beat-your-meet-sub000/pkg/provider/llm"
	"github.com/OccupiedPorcupine/beat-your-meet-sub000/pkg/types"
)

// InstrumentLLM wraps p so every completion runs inside a span and records
// its latency to [Metrics.LMDuration] under the given stage ("fast" or
// "conversational"). Wrapping the provider once covers every call site: the
// tangent assessor, the summariser, the reply builder, and custom document
// drafts. CountTokens and Capabilities pass through untouched.
//
// A nil m returns p unwrapped.
func InstrumentLLM(p llm.Provider, stage string, m *Metrics) llm.Provider {
	if m == nil {
		return p
	}
	return &instrumentedLLM{inner: p, stage: stage, metrics: m}
}

type instrumentedLLM struct {
	inner   llm.Provider
	stage   string
	metrics *Metrics
}

var _ llm.Provider = (*instrumentedLLM)(nil)

func (l *instrumentedLLM) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	ctx, span := StartSpan(ctx, "lm.complete",
		trace.WithAttributes(attribute.String("stage", l.stage)))
	defer span.End()

	start := time.Now()
	resp, err := l.inner.Complete(ctx, req)
	l.record(ctx, start, err == nil)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
	}
	return resp, err
}

func (l *instrumentedLLM) StreamCompletion(ctx context.Context, req llm.CompletionRequest) (<-chan llm.Chunk, error) {
	ctx, span := StartSpan(ctx, "lm.stream",
		trace.WithAttributes(attribute.String("stage", l.stage)))

	start := time.Now()
	chunks, err := l.inner.StreamCompletion(ctx, req)
	if err != nil {
		l.record(ctx, start, false)
		span.SetStatus(codes.Error, err.Error())
		span.End()
		return nil, err
	}

	// The stream is timed to its end, so the span and the sample cover
	// drafting the whole reply rather than just opening the stream. Callers
	// drain their streams, which is what lets the relay finish.
	out := make(chan llm.Chunk, cap(chunks))
	go func() {
		defer close(out)
		ok := true
		for c := range chunks {
			if c.FinishReason == llm.FinishReasonError {
				ok = false
			}
			out <- c
		}
		l.record(ctx, start, ok)
		if !ok {
			span.SetStatus(codes.Error, "stream reported an error")
		}
		span.End()
	}()
	return out, nil
}

func (l *instrumentedLLM) CountTokens(messages []types.Message) (int, error) {
	return l.inner.CountTokens(messages)
}

func (l *instrumentedLLM) Capabilities() types.ModelCapabilities {
	return l.inner.Capabilities()
}

func (l *instrumentedLLM) record(ctx context.Context, start time.Time, ok bool) {
	status := "ok"
	if !ok {
		status = "error"
	}
	l.metrics.LMDuration.Record(ctx, time.Since(start).Seconds(),
		metric.WithAttributes(
			attribute.String("stage", l.stage),
			attribute.String("status", status),
		),
	)
}
