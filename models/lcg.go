// Package models adapts LangChainGo-backed providers to the fieldwise.Model
// interface.
package models

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"time"

	"github.com/tmc/langchaingo/llms"

	"github.com/fieldwise/fieldwise"
)

// LCGModel wraps an llms.Model and implements fieldwise.Model. It translates
// the request shape into LangChainGo messages and call options, normalizes
// token usage across providers, and maps timeouts and connection failures to
// *fieldwise.TransportError.
//
//	llm, _ := openai.New(openai.WithToken(apiKey))
//	model := models.NewLCGModel(llm)
type LCGModel struct {
	model llms.Model
}

// NewLCGModel creates a new LCGModel wrapping the given llms.Model.
func NewLCGModel(model llms.Model) *LCGModel {
	return &LCGModel{model: model}
}

// Unwrap returns the underlying llms.Model.
func (m *LCGModel) Unwrap() llms.Model {
	return m.model
}

// Generate implements fieldwise.Model.
func (m *LCGModel) Generate(ctx context.Context, req *fieldwise.Request) (*fieldwise.Response, error) {
	messages := buildMessages(req)
	options := buildOptions(req)

	start := time.Now()
	lcgResponse, err := m.model.GenerateContent(ctx, messages, options...)
	duration := time.Since(start)

	if err != nil {
		if isTransport(err) {
			return nil, &fieldwise.TransportError{Err: err}
		}
		return nil, err
	}

	return convertResponse(lcgResponse, duration), nil
}

// buildMessages flattens the request into LangChainGo message contents:
// system prompts first, then the conversation, with files attached to the
// last user message.
func buildMessages(req *fieldwise.Request) []llms.MessageContent {
	var messages []llms.MessageContent

	for _, system := range req.System {
		messages = append(messages, llms.TextParts(llms.ChatMessageTypeSystem, system))
	}

	// The response schema travels as an explicit instruction; providers
	// without native schema support still see the contract.
	if req.ResponseSchema != nil {
		if schemaJSON, err := json.MarshalIndent(req.ResponseSchema, "", "  "); err == nil {
			messages = append(messages, llms.TextParts(llms.ChatMessageTypeSystem,
				"Respond with a single JSON object matching this schema, and nothing else:\n"+string(schemaJSON)))
		}
	}

	for i, msg := range req.Messages {
		switch msg.Role {
		case fieldwise.RoleUser:
			parts := []llms.ContentPart{llms.TextContent{Text: msg.Text}}
			if i == len(req.Messages)-1 {
				for _, f := range req.Files {
					parts = append(parts, llms.BinaryContent{MIMEType: f.MIME, Data: f.Data})
				}
			}
			messages = append(messages, llms.MessageContent{
				Role:  llms.ChatMessageTypeHuman,
				Parts: parts,
			})

		case fieldwise.RoleAssistant:
			parts := []llms.ContentPart{}
			if msg.Text != "" {
				parts = append(parts, llms.TextContent{Text: msg.Text})
			}
			for _, call := range msg.ToolCalls {
				args, _ := json.Marshal(call.Args)
				parts = append(parts, llms.ToolCall{
					ID:   call.ID,
					Type: "function",
					FunctionCall: &llms.FunctionCall{
						Name:      call.Name,
						Arguments: string(args),
					},
				})
			}
			messages = append(messages, llms.MessageContent{
				Role:  llms.ChatMessageTypeAI,
				Parts: parts,
			})

		case fieldwise.RoleTool:
			messages = append(messages, llms.MessageContent{
				Role: llms.ChatMessageTypeTool,
				Parts: []llms.ContentPart{llms.ToolCallResponse{
					ToolCallID: msg.ToolCallID,
					Name:       msg.Name,
					Content:    msg.Text,
				}},
			})
		}
	}

	return messages
}

func buildOptions(req *fieldwise.Request) []llms.CallOption {
	var options []llms.CallOption

	if req.Model != "" {
		options = append(options, llms.WithModel(req.Model))
	}
	if req.ResponseSchema != nil {
		options = append(options, llms.WithJSONMode())
	}

	if len(req.Tools) > 0 {
		tools := make([]llms.Tool, 0, len(req.Tools))
		for _, spec := range req.Tools {
			tools = append(tools, llms.Tool{
				Type: "function",
				Function: &llms.FunctionDefinition{
					Name:        spec.Name,
					Description: spec.Description,
					Parameters:  spec.Parameters,
				},
			})
		}
		options = append(options, llms.WithTools(tools))
	}

	return options
}

func convertResponse(lcgResponse *llms.ContentResponse, duration time.Duration) *fieldwise.Response {
	response := &fieldwise.Response{
		Info: &fieldwise.GenerationInfo{Duration: duration},
	}
	if lcgResponse == nil || len(lcgResponse.Choices) == 0 {
		return response
	}

	for _, choice := range lcgResponse.Choices {
		if choice.Content != "" {
			response.Texts = append(response.Texts, choice.Content)
		}
		for _, call := range choice.ToolCalls {
			if call.FunctionCall == nil {
				continue
			}
			args := map[string]any{}
			// Providers occasionally emit malformed argument JSON; pass an
			// empty map through and let schema validation report it.
			_ = json.Unmarshal([]byte(call.FunctionCall.Arguments), &args)
			response.ToolCalls = append(response.ToolCalls, fieldwise.ToolCallRequest{
				ID:   call.ID,
				Name: call.FunctionCall.Name,
				Args: args,
			})
		}
	}

	first := lcgResponse.Choices[0]
	response.StopReason = first.StopReason
	if first.GenerationInfo != nil {
		response.Info.RawGenerationInfo = first.GenerationInfo
		response.Info.InputTokens = extractInputTokens(first.GenerationInfo)
		response.Info.OutputTokens = extractOutputTokens(first.GenerationInfo)
		response.Info.TotalTokens = extractTotalTokens(
			first.GenerationInfo,
			response.Info.InputTokens,
			response.Info.OutputTokens,
		)
	}

	return response
}

// isTransport reports whether the error is a timeout or connection failure
// rather than a provider-side rejection.
func isTransport(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

// extractInputTokens extracts input/prompt token count from GenerationInfo.
// Different providers use different key names.
func extractInputTokens(info map[string]any) int {
	// OpenAI / Ollama / Google (compat)
	if v := getIntFromMap(info, "PromptTokens"); v > 0 {
		return v
	}
	// Anthropic
	if v := getIntFromMap(info, "InputTokens"); v > 0 {
		return v
	}
	// Google / Bedrock
	if v := getIntFromMap(info, "input_tokens"); v > 0 {
		return v
	}
	return 0
}

// extractOutputTokens extracts output/completion token count from
// GenerationInfo.
func extractOutputTokens(info map[string]any) int {
	if v := getIntFromMap(info, "CompletionTokens"); v > 0 {
		return v
	}
	if v := getIntFromMap(info, "OutputTokens"); v > 0 {
		return v
	}
	if v := getIntFromMap(info, "output_tokens"); v > 0 {
		return v
	}
	return 0
}

// extractTotalTokens extracts the total token count or computes it.
func extractTotalTokens(info map[string]any, input, output int) int {
	if v := getIntFromMap(info, "TotalTokens"); v > 0 {
		return v
	}
	if v := getIntFromMap(info, "total_tokens"); v > 0 {
		return v
	}
	return input + output
}

// getIntFromMap extracts an int value from a map, handling the numeric
// types providers put there.
func getIntFromMap(m map[string]any, key string) int {
	v, ok := m[key]
	if !ok {
		return 0
	}
	switch n := v.(type) {
	case int:
		return n
	case int32:
		return int(n)
	case int64:
		return int(n)
	case float64:
		return int(n)
	case float32:
		return int(n)
	default:
		return 0
	}
}

// Compile-time check that LCGModel implements fieldwise.Model.
var _ fieldwise.Model = (*LCGModel)(nil)
