package action

import (
	"fmt"
	"io"

	"github.com/expr-lang/expr"
	"gopkg.in/yaml.v3"

	"github.com/fieldwise/fieldwise/schema"
)

// MaxDepth caps the nesting of composite actions. The cap is enforced at
// configuration time; a tree deeper than this is rejected by Validate
// rather than discovered as unbounded recursion at dispatch.
const MaxDepth = 16

// Definition is the YAML shape of one action node.
//
//	id: 7
//	kind: multi
//	name: "Close and notify"
//	children:
//	  - id: 8
//	    kind: leaf
//	    name: "Close ticket"
//	    operation: close_ticket
//	  - id: 9
//	    kind: code
//	    name: "Log closure"
//	    code: 'log("closed " + string(record.id))'
type Definition struct {
	ID         int64          `yaml:"id"`
	Kind       Kind           `yaml:"kind"`
	Name       string         `yaml:"name"`
	Operation  string         `yaml:"operation,omitempty"`
	Code       string         `yaml:"code,omitempty"`
	Parameters map[string]any `yaml:"parameters,omitempty"`
	Children   []*Definition  `yaml:"children,omitempty"`
}

// Load decodes an action tree definition from YAML, binds leaf operations by
// name, and validates the result. Operations missing from ops fail the load.
func Load(r io.Reader, ops map[string]Operation) (*Node, error) {
	var def Definition
	if err := yaml.NewDecoder(r).Decode(&def); err != nil {
		return nil, fmt.Errorf("action: decoding definition: %w", err)
	}

	root, err := build(&def, ops)
	if err != nil {
		return nil, err
	}
	if err := Validate(root); err != nil {
		return nil, err
	}
	return root, nil
}

func build(def *Definition, ops map[string]Operation) (*Node, error) {
	node := &Node{
		ID:         def.ID,
		Kind:       def.Kind,
		Name:       def.Name,
		Parameters: def.Parameters,
		Code:       def.Code,
	}

	if def.Kind == KindLeaf {
		op, ok := ops[def.Operation]
		if !ok {
			return nil, fmt.Errorf("action %d: no operation named %q", def.ID, def.Operation)
		}
		node.Op = op
	}

	for _, childDef := range def.Children {
		child, err := build(childDef, ops)
		if err != nil {
			return nil, err
		}
		node.Children = append(node.Children, child)
	}
	return node, nil
}

// Validate checks a tree once at configuration time: kinds are members of
// the closed set, composites have children, leaves have operations, code
// and parameter schemas compile, depth stays under MaxDepth, and no node
// appears twice. Revisiting a node means the graph has a cycle or shares a
// subtree between branches; both are rejected here instead of recursing
// unboundedly at dispatch.
//
// Validate also caches the compiled parameter schemas and code programs on
// the nodes, so dispatch never recompiles.
func Validate(root *Node) error {
	return validate(root, 1, map[*Node]bool{})
}

func validate(node *Node, depth int, seen map[*Node]bool) error {
	if depth > MaxDepth {
		return fmt.Errorf("action %d: tree exceeds maximum depth %d", node.ID, MaxDepth)
	}
	if seen[node] {
		return fmt.Errorf("action %d: cycle in action tree", node.ID)
	}
	seen[node] = true

	switch node.Kind {
	case KindLeaf:
		if node.Op == nil {
			return fmt.Errorf("action %d: leaf has no bound operation", node.ID)
		}
		if node.Parameters != nil {
			compiled, err := schema.Compile(node.Parameters)
			if err != nil {
				return fmt.Errorf("action %d: %w", node.ID, err)
			}
			node.compiledParams = compiled
		}

	case KindCode:
		if node.Code == "" {
			return fmt.Errorf("action %d: code action has empty source", node.ID)
		}
		program, err := expr.Compile(node.Code, expr.AllowUndefinedVariables())
		if err != nil {
			return fmt.Errorf("action %d: %w", node.ID, err)
		}
		node.compiledCode = program

	case KindComposite:
		if len(node.Children) == 0 {
			return fmt.Errorf("action %d: composite has no children", node.ID)
		}
		for _, child := range node.Children {
			if err := validate(child, depth+1, seen); err != nil {
				return err
			}
		}

	default:
		return fmt.Errorf("action %d: unknown kind %q", node.ID, node.Kind)
	}

	return nil
}
