// Package action evaluates recursively composable action nodes: leaves that
// run a business operation, inline code expressions, and "multi" composites
// whose result is the first non-nil child result. Action trees are defined
// by configuration, validated once at load time, and evaluated fresh on each
// dispatch.
package action

import (
	"context"
	"errors"
	"fmt"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"github.com/rs/zerolog"

	"github.com/fieldwise/fieldwise"
	"github.com/fieldwise/fieldwise/schema"
)

// Kind discriminates the node variants.
type Kind string

const (
	// KindLeaf executes a single underlying business operation.
	KindLeaf Kind = "leaf"

	// KindCode evaluates an inline expression with the call arguments
	// merged into its environment.
	KindCode Kind = "code"

	// KindComposite runs its children in declared order and returns the
	// first non-nil child result.
	KindComposite Kind = "multi"
)

// ErrNotAllowed is returned when the caller is not authorized to execute the
// root action of a dispatch.
var ErrNotAllowed = errors.New("action: caller is not allowed to execute this action")

// Operation is the underlying business operation behind a leaf node. The
// operation's internals are outside this core; a nil result on success is a
// void operation.
type Operation func(ctx context.Context, entity fieldwise.Record, args map[string]any) (any, error)

// InteractiveOutcome is the result shape a code node yields when it wants a
// user interface to continue. In an automated context this is a contract
// violation, not a silent no-op.
type InteractiveOutcome struct {
	Message string
}

// Node is one unit of a configured action tree.
type Node struct {
	// ID is the action's unique numeric id, used for authorization.
	ID int64

	// Kind selects the evaluation behavior.
	Kind Kind

	// Name is the action's human label, used in diagnostics.
	Name string

	// Parameters is the declared parameter schema of a leaf node. Nil means
	// the leaf takes no declared parameters and arguments pass unvalidated.
	Parameters map[string]any

	// Op is the bound operation of a leaf node.
	Op Operation

	// Code is the expression source of a code node.
	Code string

	// Children are the ordered sub-actions of a composite node.
	Children []*Node

	// Cached by Validate so dispatch does not recompile per call.
	compiledParams *schema.Schema
	compiledCode   *vm.Program
}

// Resolver evaluates action nodes. Authorization is checked once at the top
// of each Execute call; children of a composite are intentionally not
// re-checked, on the assumption that top-level authorization gated the whole
// tree.
type Resolver struct {
	access  fieldwise.AccessChecker
	globals map[string]any
	log     zerolog.Logger
}

// NewResolver creates a Resolver gated by the given access checker. A nil
// checker skips authorization entirely.
func NewResolver(access fieldwise.AccessChecker) *Resolver {
	return &Resolver{access: access, log: zerolog.Nop()}
}

// WithGlobals merges extra names into the evaluation environment of code
// nodes. Call arguments shadow globals on collision. Returns the resolver
// for chaining.
func (r *Resolver) WithGlobals(globals map[string]any) *Resolver {
	r.globals = globals
	return r
}

// WithLogger sets the logger. Returns the resolver for chaining.
func (r *Resolver) WithLogger(log zerolog.Logger) *Resolver {
	r.log = log
	return r
}

// Execute evaluates the node against the entity with the given arguments
// and returns its result, or nil for void outcomes.
func (r *Resolver) Execute(
	ctx context.Context,
	node *Node,
	entity fieldwise.Record,
	args map[string]any,
) (any, error) {
	if r.access != nil && !r.access.CanExecute(ctx, node.ID) {
		return nil, fmt.Errorf("%w: action %d", ErrNotAllowed, node.ID)
	}
	return r.execute(ctx, node, entity, args)
}

func (r *Resolver) execute(
	ctx context.Context,
	node *Node,
	entity fieldwise.Record,
	args map[string]any,
) (any, error) {
	switch node.Kind {
	case KindLeaf:
		return r.executeLeaf(ctx, node, entity, args)
	case KindCode:
		return r.executeCode(node, entity, args)
	case KindComposite:
		return r.executeComposite(ctx, node, entity, args)
	}
	return nil, fmt.Errorf("action: unknown kind %q on action %d", node.Kind, node.ID)
}

// executeLeaf validates the arguments against the declared parameter schema,
// then runs the underlying operation.
func (r *Resolver) executeLeaf(
	ctx context.Context,
	node *Node,
	entity fieldwise.Record,
	args map[string]any,
) (any, error) {
	compiled := node.compiledParams
	if compiled == nil && node.Parameters != nil {
		var err error
		compiled, err = schema.Compile(node.Parameters)
		if err != nil {
			return nil, fmt.Errorf("action %d: %w", node.ID, err)
		}
	}
	if compiled != nil {
		if err := compiled.Validate(args); err != nil {
			return nil, fmt.Errorf("action %d: %w", node.ID, err)
		}
	}
	if node.Op == nil {
		return nil, fmt.Errorf("action %d: leaf has no bound operation", node.ID)
	}
	return node.Op(ctx, entity, args)
}

// executeCode evaluates the node's expression with args merged into the
// environment alongside the resolver globals and the current record.
func (r *Resolver) executeCode(node *Node, entity fieldwise.Record, args map[string]any) (any, error) {
	program := node.compiledCode
	if program == nil {
		var err error
		program, err = expr.Compile(node.Code, expr.AllowUndefinedVariables())
		if err != nil {
			return nil, fmt.Errorf("action %d: %w", node.ID, err)
		}
	}

	env := map[string]any{
		"record": map[string]any{"model": entity.Model, "id": entity.ID},
		"interactive": func(message string) InteractiveOutcome {
			return InteractiveOutcome{Message: message}
		},
	}
	for name, value := range r.globals {
		env[name] = value
	}
	for name, value := range args {
		env[name] = value
	}

	out, err := expr.Run(program, env)
	if err != nil {
		return nil, fmt.Errorf("action %d: %w", node.ID, err)
	}

	if _, ok := out.(InteractiveOutcome); ok {
		return nil, fmt.Errorf("%w: action %d", fieldwise.ErrInteractiveAction, node.ID)
	}
	return out, nil
}

// executeComposite runs every child in declared order. The composite's
// result is the first non-nil child result; later children still execute
// for their side effects after a result has been captured.
func (r *Resolver) executeComposite(
	ctx context.Context,
	node *Node,
	entity fieldwise.Record,
	args map[string]any,
) (any, error) {
	var result any
	for _, child := range node.Children {
		childResult, err := r.execute(ctx, child, entity, args)
		if err != nil {
			return nil, err
		}
		if result == nil && childResult != nil {
			result = childResult
		}
	}
	return result, nil
}
