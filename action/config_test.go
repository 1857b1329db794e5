package action

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldwise/fieldwise"
)

const treeYAML = `
id: 7
kind: multi
name: "Close and notify"
children:
  - id: 8
    kind: leaf
    name: "Close ticket"
    operation: close_ticket
    parameters:
      type: object
      properties:
        reason:
          type: string
          description: "Closure reason"
      required: [reason]
  - id: 9
    kind: code
    name: "Log closure"
    code: '"closed " + string(record.id)'
`

func closeTicket(context.Context, fieldwise.Record, map[string]any) (any, error) {
	return "closed", nil
}

func TestLoad(t *testing.T) {
	ops := map[string]Operation{"close_ticket": closeTicket}

	root, err := Load(strings.NewReader(treeYAML), ops)
	require.NoError(t, err)

	assert.Equal(t, int64(7), root.ID)
	assert.Equal(t, KindComposite, root.Kind)
	require.Len(t, root.Children, 2)
	assert.NotNil(t, root.Children[0].Op)
	assert.Equal(t, KindCode, root.Children[1].Kind)
}

func TestLoad_ValidatesLeafArguments(t *testing.T) {
	ops := map[string]Operation{"close_ticket": closeTicket}
	root, err := Load(strings.NewReader(treeYAML), ops)
	require.NoError(t, err)

	resolver := NewResolver(nil)
	leaf := root.Children[0]

	_, err = resolver.Execute(context.Background(), leaf, entity(), map[string]any{})
	assert.Error(t, err, "missing required parameter must be rejected")

	result, err := resolver.Execute(context.Background(), leaf, entity(), map[string]any{"reason": "done"})
	require.NoError(t, err)
	assert.Equal(t, "closed", result)
}

func TestLoad_UnknownOperation(t *testing.T) {
	_, err := Load(strings.NewReader(treeYAML), nil)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "close_ticket")
}

func TestLoad_UnknownKind(t *testing.T) {
	_, err := Load(strings.NewReader("id: 1\nkind: wizard\nname: bogus\n"), nil)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown kind")
}

func TestValidate_RejectsCycle(t *testing.T) {
	a := &Node{ID: 1, Kind: KindComposite}
	b := &Node{ID: 2, Kind: KindComposite, Children: []*Node{a}}
	a.Children = []*Node{b}

	err := Validate(a)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "cycle")
}

func TestValidate_RejectsSharedSubtree(t *testing.T) {
	shared := &Node{ID: 3, Kind: KindCode, Code: "1"}
	root := &Node{ID: 1, Kind: KindComposite, Children: []*Node{
		{ID: 2, Kind: KindComposite, Children: []*Node{shared}},
		shared,
	}}

	assert.Error(t, Validate(root))
}

func TestValidate_RejectsExcessiveDepth(t *testing.T) {
	node := &Node{ID: 100, Kind: KindCode, Code: "1"}
	for i := MaxDepth; i >= 1; i-- {
		node = &Node{ID: int64(i), Kind: KindComposite, Children: []*Node{node}}
	}

	err := Validate(node)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "depth")
}

func TestValidate_DepthCapAllowsFullDepth(t *testing.T) {
	node := &Node{ID: 100, Kind: KindCode, Code: "1"}
	for i := MaxDepth - 1; i >= 1; i-- {
		node = &Node{ID: int64(i), Kind: KindComposite, Children: []*Node{node}}
	}

	assert.NoError(t, Validate(node))
}

func TestValidate_CompositeNeedsChildren(t *testing.T) {
	err := Validate(&Node{ID: 1, Kind: KindComposite})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "no children")
}

func TestValidate_CodeMustCompile(t *testing.T) {
	assert.Error(t, Validate(&Node{ID: 1, Kind: KindCode, Code: "1 +"}))
	assert.Error(t, Validate(&Node{ID: 1, Kind: KindCode}))
}
