package tool

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/fieldwise/fieldwise"
)

// ErrMaxIterationsExceeded is returned when the agent turn exceeds the
// configured maximum number of model round-trips.
var ErrMaxIterationsExceeded = errors.New("fieldwise: maximum agent iterations exceeded")

// DispatcherConfig holds configuration options for the Dispatcher.
type DispatcherConfig struct {
	// ModelName is the provider-side model name.
	ModelName string

	// MaxIterations bounds the number of model round-trips in one turn.
	// Zero means the default.
	MaxIterations int
}

// DefaultDispatcherConfig returns a config with sensible defaults.
func DefaultDispatcherConfig() DispatcherConfig {
	return DispatcherConfig{MaxIterations: 16}
}

// Dispatcher runs one agent turn: it sends the instructions, prompt and tool
// catalog to the model, executes each requested tool call in order through
// the registry's bound callables, feeds results back, and stops when the
// model emits a final answer or invokes a terminal tool.
//
// Tool execution is strictly sequential; calls are dispatched in the order
// the model requests them and the session preserves that order.
type Dispatcher struct {
	model  fieldwise.Model
	config DispatcherConfig
	log    zerolog.Logger
}

// NewDispatcher creates a Dispatcher over the given model.
func NewDispatcher(model fieldwise.Model, config DispatcherConfig) *Dispatcher {
	if config.MaxIterations <= 0 {
		config.MaxIterations = DefaultDispatcherConfig().MaxIterations
	}
	return &Dispatcher{model: model, config: config, log: zerolog.Nop()}
}

// WithLogger sets the logger. Returns the dispatcher for chaining.
func (d *Dispatcher) WithLogger(log zerolog.Logger) *Dispatcher {
	d.log = log
	return d
}

// RunResult is the outcome of one agent turn.
type RunResult struct {
	// Responses are the model's final text payloads.
	Responses []string

	// Records is the ordered call history of the turn.
	Records []CallRecord

	// TerminalTool names the terminal tool that ended the turn, or "" when
	// the model produced a final answer itself.
	TerminalTool string
}

// Run executes one agent turn. The session accumulates the call history and
// is also returned through RunResult.Records.
//
// A reserved retry signal raised by a tool propagates out of Run untouched.
// Any other tool failure has already been absorbed into model-visible text
// by the registry's bound callable and does not abort the turn.
func (d *Dispatcher) Run(
	ctx context.Context,
	instructions []string,
	prompt string,
	registry map[string]*Descriptor,
	files []fieldwise.File,
	session *Session,
) (*RunResult, error) {
	messages := []fieldwise.Message{{Role: fieldwise.RoleUser, Text: prompt}}
	specs := Specs(registry)

	for iteration := 1; ; iteration++ {
		if iteration > d.config.MaxIterations {
			return nil, fmt.Errorf("%w: exceeded %d iterations", ErrMaxIterationsExceeded, d.config.MaxIterations)
		}

		resp, err := d.model.Generate(ctx, &fieldwise.Request{
			Model:    d.config.ModelName,
			System:   instructions,
			Messages: messages,
			Files:    files,
			Tools:    specs,
		})
		if err != nil {
			return nil, err
		}

		if len(resp.ToolCalls) == 0 {
			d.log.Debug().Str("batch", session.BatchID).Int("iterations", iteration).
				Msg("agent turn finished with model answer")
			return &RunResult{Responses: resp.Texts, Records: session.Records()}, nil
		}

		messages = append(messages, fieldwise.Message{
			Role:      fieldwise.RoleAssistant,
			Text:      resp.Text(),
			ToolCalls: resp.ToolCalls,
		})

		for _, call := range resp.ToolCalls {
			result, terminal, err := d.dispatch(ctx, registry, session, call)
			if err != nil {
				return nil, err
			}

			messages = append(messages, fieldwise.Message{
				Role:       fieldwise.RoleTool,
				Text:       result,
				ToolCallID: call.ID,
				Name:       call.Name,
			})

			if terminal {
				d.log.Debug().Str("batch", session.BatchID).Str("tool", call.Name).
					Msg("agent turn ended by terminal tool")
				return &RunResult{
					Responses:    resp.Texts,
					Records:      session.Records(),
					TerminalTool: call.Name,
				}, nil
			}
		}
	}
}

// dispatch executes one requested call. An unknown tool name becomes a
// model-visible error text and an errored call record, not a turn failure.
func (d *Dispatcher) dispatch(
	ctx context.Context,
	registry map[string]*Descriptor,
	session *Session,
	call fieldwise.ToolCallRequest,
) (result string, terminal bool, err error) {
	desc, ok := registry[call.Name]
	if !ok {
		callErr := fmt.Errorf("%w: %s", fieldwise.ErrUnknownTool, call.Name)
		result = fmt.Sprintf("No tool named %q is available.", call.Name)
		session.Record(CallRecord{Tool: call.Name, Args: call.Args, Result: result, Err: callErr})
		return result, false, nil
	}

	result, err = desc.Call(ctx, call.Args)
	if err != nil {
		// Only the reserved retry signal crosses this boundary.
		return "", false, err
	}
	return result, desc.Terminal, nil
}
