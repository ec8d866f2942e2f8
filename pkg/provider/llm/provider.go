// Package llm defines the Provider interface for Large Language Model backends.
//
// Beat talks to two models through this interface: a fast assessor model that
// classifies tangents and extracts item notes via forced tool calls under tight
// deadlines, and a conversational model that drafts spoken replies and meeting
// summaries. Both are ordinary chat-completion backends (OpenAI, Anthropic, a
// local Ollama instance); the interface hides the SDK differences so the engine
// can swap models per role from configuration.
//
// Implementors must be safe for concurrent use. Channels returned by
// StreamCompletion must be closed by the implementation when the stream ends or
// when the supplied context is cancelled.
package llm

import (
	"context"

	"github.com/OccupiedPorcupine/beat-your-meet-sub000/pkg/types"
)

// Tool choice directives for CompletionRequest.ToolChoice. Any other non-empty
// value names a tool from the Tools list that the model is required to call.
const (
	// ToolChoiceAuto lets the model decide whether to call a tool.
	ToolChoiceAuto = "auto"

	// ToolChoiceNone forbids tool calls for this request.
	ToolChoiceNone = "none"
)

// Finish reasons reported on the final Chunk of a stream and understood by all
// provider implementations.
const (
	// FinishReasonStop means generation ended naturally.
	FinishReasonStop = "stop"

	// FinishReasonLength means the MaxTokens budget was exhausted.
	FinishReasonLength = "length"

	// FinishReasonToolCalls means the model stopped to invoke tools.
	FinishReasonToolCalls = "tool_calls"

	// FinishReasonError means the backend failed mid-stream; the chunk's Text
	// carries the error message.
	FinishReasonError = "error"
)

// Usage holds token accounting information returned by the LLM backend.
// All counts are in the model's native token unit and may differ between
// providers for the same textual content.
type Usage struct {
	// PromptTokens is the number of tokens consumed by the input messages and
	// system prompt.
	PromptTokens int

	// CompletionTokens is the number of tokens generated in the response.
	CompletionTokens int

	// TotalTokens is PromptTokens + CompletionTokens. Provided as a convenience;
	// some providers return it directly rather than computing it from the parts.
	TotalTokens int
}

// CompletionRequest carries everything the LLM needs to produce a response.
// Callers should treat a zero-value request as invalid; at minimum Messages
// must be non-empty.
type CompletionRequest struct {
	// Messages is the ordered conversation history. The last message is
	// typically from the "user" role and drives the response.
	Messages []types.Message

	// Tools is the set of function/tool definitions offered to the model.
	// The assessor paths offer exactly one tool and force it via ToolChoice.
	Tools []types.ToolDefinition

	// ToolChoice controls tool selection. Empty means provider default
	// (effectively ToolChoiceAuto when Tools is non-empty). ToolChoiceAuto and
	// ToolChoiceNone have their documented meanings; any other value must match
	// the Name of an entry in Tools and forces the model to call that tool.
	//
	// Backends without a native forcing parameter approximate it by narrowing
	// the offered tool list; callers that force a tool must treat a text-only
	// reply as a malformed response and fall back accordingly.
	ToolChoice string

	// Temperature controls output randomness in the range [0.0, 2.0]. Lower
	// values produce more deterministic outputs. A value of 0.0 typically
	// requests greedy decoding; the tangent assessor runs at 0.0 so repeated
	// assessments of the same window agree.
	Temperature float64

	// MaxTokens caps the number of completion tokens the model may generate.
	// Zero means use the provider default (usually the model's MaxOutputTokens).
	MaxTokens int

	// SystemPrompt is an optional high-priority instruction injected before the
	// conversation history. If the provider does not natively support a
	// dedicated system prompt, implementors should prepend it as a
	// "system"-role message.
	SystemPrompt string
}

// Chunk is a single fragment emitted by a streaming completion. A single chunk
// may carry text, a finish signal, tool calls, or any combination thereof.
type Chunk struct {
	// Text is the incremental text content of this chunk. May be empty if the
	// chunk carries only ToolCalls or a FinishReason.
	Text string

	// FinishReason is set on the final chunk and indicates why generation
	// stopped; see the FinishReason constants. Empty on non-final chunks.
	FinishReason string

	// ToolCalls contains any tool invocations the model is requesting.
	// Implementations accumulate streamed fragments and emit whole calls on
	// the final chunk.
	ToolCalls []types.ToolCall
}

// CompletionResponse is returned by the non-streaming Complete method.
type CompletionResponse struct {
	// Content is the full text of the assistant's reply. Empty when the model
	// responds exclusively with tool calls.
	Content string

	// ToolCalls lists all tool invocations requested by the model. The caller
	// is responsible for decoding their arguments.
	ToolCalls []types.ToolCall

	// Usage contains token accounting for this request/response pair.
	Usage Usage
}

// Provider is the abstraction over any LLM backend.
//
// Implementations must be safe for concurrent use from multiple goroutines.
// Each method should propagate context cancellation promptly: when ctx is
// cancelled the method must return (or close its channel) as quickly as
// possible. The monitoring scheduler relies on this to hold the tangent
// assessor to its deadline.
type Provider interface {
	// StreamCompletion sends req to the model and returns a read-only channel
	// that emits Chunk values as they arrive. The channel is closed by the
	// implementation when generation finishes or when ctx is cancelled.
	//
	// Callers must drain the channel to avoid goroutine leaks. Errors that
	// occur after the channel is opened are surfaced as a Chunk with
	// FinishReasonError; the initial error return is non-nil only for failures
	// that prevent the stream from starting (e.g., invalid credentials,
	// malformed request).
	//
	// The returned channel must never be nil when error is nil.
	StreamCompletion(ctx context.Context, req CompletionRequest) (<-chan Chunk, error)

	// Complete sends req to the model and waits for the full response. The
	// assessor and summariser paths use this; they need the whole answer
	// before acting and have no use for incremental output.
	//
	// Returns an error if the request fails or if ctx is cancelled before the
	// completion arrives.
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)

	// CountTokens estimates the number of tokens the given message list would
	// consume in the model's context window. The reply builder uses this to
	// trim transcript history before sending a request.
	//
	// Implementations may call the provider's tokenisation API or perform a
	// local approximation. The result need not be exact but should not
	// undercount.
	CountTokens(messages []types.Message) (int, error)

	// Capabilities returns static metadata describing what this provider's
	// underlying model supports. The result is assumed to be constant for the
	// lifetime of the Provider instance.
	Capabilities() types.ModelCapabilities
}
