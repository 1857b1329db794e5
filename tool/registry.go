package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/fieldwise/fieldwise"
	"github.com/fieldwise/fieldwise/schema"
)

// Action describes one executable business action selected for an agent
// turn. The action's internals (tax computation, payroll, ...) live behind
// Execute; this package only wraps them in the tool contract.
type Action struct {
	// ID is the action's unique numeric id.
	ID int64

	// ExternalID is the stable external identifier, when one exists.
	ExternalID string

	// Label is the action's human label.
	Label string

	// Description overrides Label as the tool description when set.
	Description string

	// Terminal marks a tool whose invocation may end the agent turn.
	Terminal bool

	// Parameters is the tool's JSON parameter schema. Nil means the action
	// declares none; the registry substitutes an explicit no-parameters
	// schema.
	Parameters map[string]any

	// Execute runs the action against the entity with model-supplied
	// arguments. A nil result on success is a void action.
	Execute func(ctx context.Context, entity fieldwise.Record, args map[string]any) (any, error)
}

// Name derives the registry key: the external identifier when present, else
// a synthetic action_<id>. Ids are unique, so derived names are too.
func (a *Action) Name() string {
	if a.ExternalID != "" {
		return a.ExternalID
	}
	return fmt.Sprintf("action_%d", a.ID)
}

// Descriptor is one registry entry: the wire-visible metadata plus the bound
// callable the dispatcher invokes.
type Descriptor struct {
	Name        string
	Description string
	Terminal    bool
	Parameters  map[string]any

	// Call executes the bound action. Action failures are absorbed into the
	// returned text so the model can react to them in-context; only the
	// reserved retry signal comes back as an error, and it must propagate
	// untouched to the caller's transaction-retry machinery.
	Call func(ctx context.Context, args map[string]any) (string, error)
}

// Spec returns the wire description sent to the model.
func (d *Descriptor) Spec() fieldwise.ToolSpec {
	return fieldwise.ToolSpec{
		Name:        d.Name,
		Description: d.Description,
		Parameters:  d.Parameters,
	}
}

// RegistryOptions configures BuildRegistry.
type RegistryOptions struct {
	// Terminal marks every tool terminal regardless of its action's own
	// flag. The effective flag is the OR of both.
	Terminal bool

	// Logger defaults to a no-op logger.
	Logger zerolog.Logger
}

// BuildRegistry converts the actions selected for this agent turn into a
// name-keyed registry of descriptors bound to entity and session. Each bound
// callable times the call, appends a CallRecord to the session whether it
// succeeds or fails, and converts failures into model-visible text.
func BuildRegistry(
	actions []Action,
	entity fieldwise.Record,
	session *Session,
	opts RegistryOptions,
) map[string]*Descriptor {
	registry := make(map[string]*Descriptor, len(actions))

	for _, action := range actions {
		action := action

		description := action.Description
		if description == "" {
			description = action.Label
		}

		parameters := action.Parameters
		if parameters == nil {
			parameters = schema.NoParameters()
		}

		registry[action.Name()] = &Descriptor{
			Name:        action.Name(),
			Description: description,
			Terminal:    opts.Terminal || action.Terminal,
			Parameters:  parameters,
			Call:        bind(&action, description, entity, session, opts.Logger),
		}
	}

	return registry
}

// bind builds the callable for one action. The internal execution step
// returns (value, error); the boundary converts the error branch into the
// textual fallback instead of letting it escape.
func bind(
	action *Action,
	description string,
	entity fieldwise.Record,
	session *Session,
	log zerolog.Logger,
) func(ctx context.Context, args map[string]any) (string, error) {
	return func(ctx context.Context, args map[string]any) (string, error) {
		start := time.Now()
		value, err := action.Execute(ctx, entity, args)
		duration := time.Since(start)

		if fieldwise.IsRetrySignal(err) {
			// The one exception that must cross every tool-execution layer
			// uncaught.
			return "", err
		}

		rec := CallRecord{
			ActionID: action.ID,
			Tool:     action.Name(),
			Args:     args,
			Duration: duration,
		}

		switch {
		case err != nil:
			rec.Err = err
			rec.Result = fmt.Sprintf("The action %q failed: %v", action.Label, err)
			log.Warn().Err(err).Str("tool", rec.Tool).Str("batch", session.BatchID).
				Msg("tool execution failed")
		case value == nil:
			// Void success still needs something the model can reason about.
			rec.Result = fmt.Sprintf("The action %q was executed. Expected effect: %s", action.Label, description)
		default:
			rec.Result = renderResult(value)
		}

		session.Record(rec)

		log.Debug().Str("tool", rec.Tool).Str("batch", session.BatchID).
			Dur("duration", duration).Msg("tool executed")

		return rec.Result, nil
	}
}

// renderResult serializes a tool result for model consumption. Strings pass
// through; everything else is rendered as JSON.
func renderResult(value any) string {
	if s, ok := value.(string); ok {
		return s
	}
	b, err := json.Marshal(value)
	if err != nil {
		return fmt.Sprintf("%v", value)
	}
	return string(b)
}

// Specs returns the wire catalog for the registry, sorted by name so the
// prompt stays deterministic.
func Specs(registry map[string]*Descriptor) []fieldwise.ToolSpec {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)

	specs := make([]fieldwise.ToolSpec, 0, len(names))
	for _, name := range names {
		specs = append(specs, registry[name].Spec())
	}
	return specs
}
