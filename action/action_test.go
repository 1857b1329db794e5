package action

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldwise/fieldwise"
	"github.com/fieldwise/fieldwise/schema"
)

type accessFunc func(actionID int64) bool

func (f accessFunc) CanRead(context.Context, fieldwise.Record) bool { return true }
func (f accessFunc) CanExecute(_ context.Context, id int64) bool    { return f(id) }

func allowAll() accessFunc { return func(int64) bool { return true } }

func entity() fieldwise.Record {
	return fieldwise.Record{Model: "project.task", ID: 3}
}

func leaf(id int64, result any, executed *[]int64) *Node {
	return &Node{
		ID:   id,
		Kind: KindLeaf,
		Op: func(context.Context, fieldwise.Record, map[string]any) (any, error) {
			if executed != nil {
				*executed = append(*executed, id)
			}
			return result, nil
		},
	}
}

func TestExecute_Leaf(t *testing.T) {
	node := &Node{
		ID:         1,
		Kind:       KindLeaf,
		Parameters: schema.Object(map[string]*schema.Property{"days": schema.Integer("Days to postpone")}, "days"),
		Op: func(_ context.Context, rec fieldwise.Record, args map[string]any) (any, error) {
			assert.Equal(t, entity(), rec)
			return map[string]any{"postponed_by": args["days"]}, nil
		},
	}
	resolver := NewResolver(allowAll())

	result, err := resolver.Execute(context.Background(), node, entity(), map[string]any{"days": 5})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"postponed_by": 5}, result)
}

func TestExecute_LeafRejectsInvalidArgs(t *testing.T) {
	node := &Node{
		ID:         1,
		Kind:       KindLeaf,
		Parameters: schema.Object(map[string]*schema.Property{"days": schema.Integer("Days")}, "days"),
		Op: func(context.Context, fieldwise.Record, map[string]any) (any, error) {
			t.Fatal("operation must not run on invalid args")
			return nil, nil
		},
	}
	resolver := NewResolver(allowAll())

	_, err := resolver.Execute(context.Background(), node, entity(), map[string]any{"days": "five"})
	var vErr *schema.ValidationError
	assert.ErrorAs(t, err, &vErr)
}

func TestExecute_CompositeReturnsFirstNonNilResult(t *testing.T) {
	var executed []int64
	node := &Node{
		ID:   10,
		Kind: KindComposite,
		Children: []*Node{
			leaf(11, nil, &executed),
			leaf(12, "x", &executed),
			leaf(13, "y", &executed),
		},
	}
	resolver := NewResolver(allowAll())

	result, err := resolver.Execute(context.Background(), node, entity(), nil)
	require.NoError(t, err)

	// First non-nil result wins, but later children still execute.
	assert.Equal(t, "x", result)
	assert.Equal(t, []int64{11, 12, 13}, executed)
}

func TestExecute_AuthorizationCheckedOnceAtRoot(t *testing.T) {
	var calls []int64
	access := accessFunc(func(id int64) bool {
		calls = append(calls, id)
		return true
	})

	node := &Node{
		ID:       10,
		Kind:     KindComposite,
		Children: []*Node{leaf(11, "a", nil), leaf(12, "b", nil)},
	}

	_, err := NewResolver(access).Execute(context.Background(), node, entity(), nil)
	require.NoError(t, err)

	// Children are trusted once the root is authorized.
	assert.Equal(t, []int64{10}, calls)
}

func TestExecute_Unauthorized(t *testing.T) {
	access := accessFunc(func(int64) bool { return false })
	node := leaf(1, "x", nil)

	_, err := NewResolver(access).Execute(context.Background(), node, entity(), nil)
	assert.ErrorIs(t, err, ErrNotAllowed)
}

func TestExecute_Code(t *testing.T) {
	node := &Node{
		ID:   2,
		Kind: KindCode,
		Code: `amount * rate / 100`,
	}
	resolver := NewResolver(allowAll())

	result, err := resolver.Execute(context.Background(), node, entity(),
		map[string]any{"amount": 200, "rate": 21})
	require.NoError(t, err)
	assert.EqualValues(t, 42, result)
}

func TestExecute_CodeSeesRecordAndGlobals(t *testing.T) {
	node := &Node{
		ID:   2,
		Kind: KindCode,
		Code: `prefix + string(record.id)`,
	}
	resolver := NewResolver(allowAll()).WithGlobals(map[string]any{"prefix": "task-"})

	result, err := resolver.Execute(context.Background(), node, entity(), nil)
	require.NoError(t, err)
	assert.Equal(t, "task-3", result)
}

func TestExecute_CodeInteractiveOutcomeFails(t *testing.T) {
	node := &Node{
		ID:   2,
		Kind: KindCode,
		Code: `interactive("open the wizard")`,
	}
	resolver := NewResolver(allowAll())

	_, err := resolver.Execute(context.Background(), node, entity(), nil)
	assert.ErrorIs(t, err, fieldwise.ErrInteractiveAction)
}

func TestExecute_UnknownKind(t *testing.T) {
	node := &Node{ID: 1, Kind: Kind("bogus")}

	_, err := NewResolver(allowAll()).Execute(context.Background(), node, entity(), nil)
	assert.Error(t, err)
}
