package fieldwise

import (
	"context"
	"time"
)

// Model is the synchronous model-provider call. One resolution or one agent
// turn makes one or more Generate calls and blocks until each returns; there
// is no streaming and no background scheduling in this core.
//
// Implementations translate Request into their provider's wire protocol.
// A timeout or connection failure must be returned as *TransportError.
type Model interface {
	Generate(ctx context.Context, req *Request) (*Response, error)
}

// Request is a single model invocation.
type Request struct {
	// Model is the provider-side model name.
	Model string

	// System carries the system prompts, in order.
	System []string

	// Messages is the conversation so far: the user prompt, then any
	// assistant tool-call requests and their tool results accumulated
	// during the agent turn.
	Messages []Message

	// Files are binary payloads attached to the request.
	Files []File

	// ResponseSchema constrains the model's final answer. When set, the
	// first text payload of the response is the JSON envelope described by
	// this schema.
	ResponseSchema map[string]any

	// Tools is the catalog the model may invoke.
	Tools []ToolSpec

	// WebGrounding asks the provider to let the model ground its answer via
	// external search when appropriate.
	WebGrounding bool
}

// Role identifies the author of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Message is one entry of the request conversation.
type Message struct {
	Role Role

	// Text is the message content for user and assistant messages, and the
	// serialized tool result for tool messages.
	Text string

	// ToolCalls is set on assistant messages that request tool invocations.
	ToolCalls []ToolCallRequest

	// ToolCallID ties a tool message back to the assistant request it
	// answers.
	ToolCallID string

	// Name is the tool name on tool messages.
	Name string
}

// ToolSpec is the wire description of one registered tool.
type ToolSpec struct {
	Name        string
	Description string

	// Parameters is a JSON Schema object with properties/required.
	Parameters map[string]any
}

// ToolCallRequest is one tool invocation the model asks for.
type ToolCallRequest struct {
	ID   string
	Name string
	Args map[string]any
}

// Response is the provider's answer to one Generate call.
type Response struct {
	// Texts contains the raw text payloads. The first element is the JSON
	// envelope when a ResponseSchema was set.
	Texts []string

	// ToolCalls is non-empty when the model asks to invoke tools before
	// producing a final answer.
	ToolCalls []ToolCallRequest

	// StopReason is the provider's stop reason, passed through verbatim.
	StopReason string

	// Info contains generation metadata with normalized token counts.
	Info *GenerationInfo
}

// Text returns the first text payload, or "" when the response carries none.
func (r *Response) Text() string {
	if r == nil || len(r.Texts) == 0 {
		return ""
	}
	return r.Texts[0]
}

// GenerationInfo contains metadata about one generation. Token counts are
// normalized so callers do not need to know which provider produced them.
type GenerationInfo struct {
	// InputTokens is the number of input/prompt tokens used.
	InputTokens int

	// OutputTokens is the number of output/completion tokens generated.
	OutputTokens int

	// TotalTokens is InputTokens + OutputTokens unless the provider reports
	// it directly.
	TotalTokens int

	// RawGenerationInfo contains the original provider-specific metadata
	// map for fields not covered by the normalized ones.
	RawGenerationInfo map[string]any

	// Duration is how long the generation took.
	Duration time.Duration
}
