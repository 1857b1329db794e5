// Package resolver turns one compiled prompt into one typed field value: it
// builds the response schema for the target field type, snapshots the
// referenced context fields, invokes the model, and validates and casts the
// answer.
package resolver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/kaptinlin/jsonrepair"
	"github.com/rs/zerolog"

	"github.com/fieldwise/fieldwise"
	"github.com/fieldwise/fieldwise/schema"
	"github.com/fieldwise/fieldwise/snapshot"
)

const systemPrompt = `You fill in a single field of a business record.
Answer strictly in the requested JSON format. Use the provided context data
first; fall back to your own knowledge only when the context does not cover
the question. If the question cannot be answered, set could_not_resolve to
true and explain what is missing in unresolved_cause.`

// typeRules carries extra per-type instruction lines appended to the system
// prompt. Types without an entry get none.
var typeRules = map[fieldwise.FieldType]string{
	fieldwise.FieldChar:     "Keep the value short: a name, a title, a single line.",
	fieldwise.FieldHTML:     "Write the value in markdown. Do not emit raw HTML tags.",
	fieldwise.FieldDate:     "Return the date in ISO 8601 format (YYYY-MM-DD).",
	fieldwise.FieldDatetime: "Return the datetime in ISO 8601 format, including a timezone offset.",
	fieldwise.FieldInteger:  "Return the number in full digits, never spelled out.",
}

// Spec describes one resolution request.
type Spec struct {
	// Entity is the record whose field is being resolved.
	Entity fieldwise.Record

	// FieldType selects the response schema and the caster.
	FieldType fieldwise.FieldType

	// Prompt is the canonical user prompt produced by the prompt compiler.
	Prompt string

	// ContextFields are the field paths to snapshot as grounding data.
	ContextFields []string

	// AllowedValues is the closed value set for choice-like types. Required
	// for selection and relational types, ignored for the rest.
	AllowedValues []fieldwise.AllowedValue
}

// Resolver orchestrates schema building, context snapshotting, the model
// call and response casting. It is stateless between Resolve calls and safe
// to share across requests.
type Resolver struct {
	store     fieldwise.Store
	model     fieldwise.Model
	modelName string
	clock     fieldwise.TimeProvider
	grounding bool
	log       zerolog.Logger
}

// New creates a Resolver over the given persistence collaborator and model.
func New(store fieldwise.Store, model fieldwise.Model) *Resolver {
	return &Resolver{
		store:     store,
		model:     model,
		clock:     fieldwise.RealTime{},
		grounding: true,
		log:       zerolog.Nop(),
	}
}

// WithModelName sets the provider-side model name. Returns the resolver for
// chaining.
func (r *Resolver) WithModelName(name string) *Resolver {
	r.modelName = name
	return r
}

// WithTimeProvider overrides the clock used for the current-date line in the
// instructions.
func (r *Resolver) WithTimeProvider(tp fieldwise.TimeProvider) *Resolver {
	r.clock = tp
	return r
}

// WithWebGrounding controls whether the model may ground its answer via
// external search. Enabled by default.
func (r *Resolver) WithWebGrounding(enabled bool) *Resolver {
	r.grounding = enabled
	return r
}

// WithLogger sets the logger. The default discards everything.
func (r *Resolver) WithLogger(log zerolog.Logger) *Resolver {
	r.log = log
	return r
}

// envelope is the parsed response body.
type envelope struct {
	Value           any     `json:"value"`
	CouldNotResolve bool    `json:"could_not_resolve"`
	UnresolvedCause *string `json:"unresolved_cause"`
}

// Resolve runs the linear resolution state machine and returns the typed
// value, or nil when the model's answer casts to no value.
//
// Error outcomes: fieldwise.ErrMissingAllowedValues before any model call
// when a choice-like type has no allowed set, *fieldwise.TransportError on
// timeout or connection failure, fieldwise.ErrMalformedResponse on an empty
// or unparseable body, and *fieldwise.UnresolvedError when the model reports
// could_not_resolve — the latter is an expected outcome, not a system error.
func (r *Resolver) Resolve(ctx context.Context, spec Spec) (any, error) {
	responseSchema, err := schema.ForFieldType(spec.FieldType, spec.AllowedValues)
	if err != nil {
		return nil, err
	}

	snap, files, err := snapshot.Build(ctx, r.store, spec.Entity, spec.ContextFields)
	if err != nil {
		return nil, err
	}

	req := &fieldwise.Request{
		Model:          r.modelName,
		System:         r.instructions(spec),
		Messages:       []fieldwise.Message{{Role: fieldwise.RoleUser, Text: r.userPrompt(spec, snap)}},
		Files:          files,
		ResponseSchema: responseSchema,
		WebGrounding:   r.grounding,
	}

	resp, err := r.model.Generate(ctx, req)
	if err != nil {
		var te *fieldwise.TransportError
		if errors.As(err, &te) {
			r.log.Warn().Err(err).Str("model", r.modelName).Msg("model call failed")
			return nil, err
		}
		return nil, err
	}

	body := strings.TrimSpace(resp.Text())
	if body == "" {
		return nil, fmt.Errorf("%w: empty response body", fieldwise.ErrMalformedResponse)
	}

	env, err := parseEnvelope(body)
	if err != nil {
		r.log.Warn().Err(err).Msg("unparseable model response")
		return nil, err
	}

	if env.CouldNotResolve {
		cause := ""
		if env.UnresolvedCause != nil {
			cause = *env.UnresolvedCause
		}
		return nil, &fieldwise.UnresolvedError{Cause: cause}
	}

	return Cast(spec.FieldType, env.Value, spec.AllowedValues), nil
}

// instructions composes the system prompts: the fixed prompt, the per-type
// rules, the allowed-value listing when any, and the current date.
func (r *Resolver) instructions(spec Spec) []string {
	system := []string{systemPrompt}

	if rule, ok := typeRules[spec.FieldType]; ok {
		system = append(system, rule)
	}

	if len(spec.AllowedValues) > 0 {
		var sb strings.Builder
		sb.WriteString("The value must be one of the following (answer with the raw value, not the label):\n")
		for _, av := range spec.AllowedValues {
			fmt.Fprintf(&sb, "- %v: %s\n", av.Raw, av.Label)
		}
		system = append(system, sb.String())
	}

	system = append(system, "Current date: "+r.clock.Today())
	return system
}

// userPrompt appends the rendered context snapshot and the current-record
// token to the compiled prompt.
func (r *Resolver) userPrompt(spec Spec, snap snapshot.Snapshot) string {
	var sb strings.Builder
	sb.WriteString(spec.Prompt)

	sb.WriteString("\n\nContext data:\n")
	sb.WriteString(snap.Render())

	current, err := json.Marshal(spec.Entity)
	if err == nil {
		sb.WriteString("\n\nCurrent record: ")
		sb.Write(current)
	}
	return sb.String()
}

// parseEnvelope parses the response body leniently: stray control characters
// are stripped, and when strict parsing still fails the body goes through a
// JSON repair pass before giving up.
func parseEnvelope(body string) (*envelope, error) {
	cleaned := stripControlChars(body)

	var env envelope
	if err := json.Unmarshal([]byte(cleaned), &env); err == nil {
		return &env, nil
	}

	repaired, repairErr := jsonrepair.JSONRepair(cleaned)
	if repairErr != nil {
		return nil, fmt.Errorf("%w: %v", fieldwise.ErrMalformedResponse, repairErr)
	}
	if err := json.Unmarshal([]byte(repaired), &env); err != nil {
		return nil, fmt.Errorf("%w: %v", fieldwise.ErrMalformedResponse, err)
	}
	return &env, nil
}

// stripControlChars removes control characters that providers occasionally
// leak into the body, keeping the whitespace JSON permits.
func stripControlChars(s string) string {
	return strings.Map(func(r rune) rune {
		if r < 0x20 && r != '\n' && r != '\r' && r != '\t' {
			return -1
		}
		return r
	}, s)
}
