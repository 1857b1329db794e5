package tool

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldwise/fieldwise"
	"github.com/fieldwise/fieldwise/schema"
)

func entity() fieldwise.Record {
	return fieldwise.Record{Model: "account.move", ID: 12}
}

func noop(context.Context, fieldwise.Record, map[string]any) (any, error) {
	return nil, nil
}

func TestBuildRegistry_NameDerivation(t *testing.T) {
	// Same label, different ids, no external identifier: two distinct keys.
	actions := []Action{
		{ID: 3, Label: "Compute taxes", Execute: noop},
		{ID: 8, Label: "Compute taxes", Execute: noop},
		{ID: 5, ExternalID: "account.action_post", Label: "Post entry", Execute: noop},
	}

	registry := BuildRegistry(actions, entity(), NewSession(), RegistryOptions{})

	require.Len(t, registry, 3)
	assert.Contains(t, registry, "action_3")
	assert.Contains(t, registry, "action_8")
	assert.Contains(t, registry, "account.action_post")
}

func TestBuildRegistry_Defaults(t *testing.T) {
	actions := []Action{
		{ID: 1, Label: "Compute taxes", Execute: noop},
		{ID: 2, Label: "Send reminder", Description: "Send a payment reminder email", Terminal: true, Execute: noop},
	}

	registry := BuildRegistry(actions, entity(), NewSession(), RegistryOptions{})

	// Description falls back to the action's own label.
	assert.Equal(t, "Compute taxes", registry["action_1"].Description)
	assert.Equal(t, "Send a payment reminder email", registry["action_2"].Description)

	// Declared no parameters: explicit empty object schema.
	assert.Equal(t, schema.NoParameters(), registry["action_1"].Parameters)

	assert.False(t, registry["action_1"].Terminal)
	assert.True(t, registry["action_2"].Terminal)
}

func TestBuildRegistry_GlobalTerminalOverride(t *testing.T) {
	actions := []Action{{ID: 1, Label: "Compute taxes", Execute: noop}}

	registry := BuildRegistry(actions, entity(), NewSession(), RegistryOptions{Terminal: true})

	assert.True(t, registry["action_1"].Terminal)
}

func TestBoundCallable_Success(t *testing.T) {
	session := NewSession()
	actions := []Action{{
		ID:    1,
		Label: "Compute taxes",
		Execute: func(_ context.Context, rec fieldwise.Record, args map[string]any) (any, error) {
			assert.Equal(t, entity(), rec)
			return map[string]any{"total": 121.0}, nil
		},
	}}
	registry := BuildRegistry(actions, entity(), session, RegistryOptions{})

	result, err := registry["action_1"].Call(context.Background(), map[string]any{"rate": 21})
	require.NoError(t, err)
	assert.JSONEq(t, `{"total": 121}`, result)

	records := session.Records()
	require.Len(t, records, 1)
	assert.Equal(t, int64(1), records[0].ActionID)
	assert.Equal(t, map[string]any{"rate": 21}, records[0].Args)
	assert.NoError(t, records[0].Err)
}

func TestBoundCallable_VoidSuccessGetsDescription(t *testing.T) {
	session := NewSession()
	actions := []Action{{ID: 1, Label: "Send reminder", Description: "Send a payment reminder email", Execute: noop}}
	registry := BuildRegistry(actions, entity(), session, RegistryOptions{})

	result, err := registry["action_1"].Call(context.Background(), nil)
	require.NoError(t, err)

	// The model still gets something to reason about on a void success.
	assert.Contains(t, result, "Send reminder")
	assert.Contains(t, result, "Send a payment reminder email")
}

func TestBoundCallable_AbsorbsActionErrors(t *testing.T) {
	session := NewSession()
	boom := errors.New("tax table not configured")
	actions := []Action{{
		ID:    1,
		Label: "Compute taxes",
		Execute: func(context.Context, fieldwise.Record, map[string]any) (any, error) {
			return nil, boom
		},
	}}
	registry := BuildRegistry(actions, entity(), session, RegistryOptions{})

	result, err := registry["action_1"].Call(context.Background(), nil)

	// The failure becomes model-visible text, not an error.
	require.NoError(t, err)
	assert.Contains(t, result, "tax table not configured")

	records := session.Records()
	require.Len(t, records, 1)
	assert.ErrorIs(t, records[0].Err, boom)
}

func TestBoundCallable_RetrySignalPropagates(t *testing.T) {
	session := NewSession()
	signal := &fieldwise.RetrySignal{Err: errors.New("serialization failure")}
	actions := []Action{{
		ID:    1,
		Label: "Compute taxes",
		Execute: func(context.Context, fieldwise.Record, map[string]any) (any, error) {
			return nil, signal
		},
	}}
	registry := BuildRegistry(actions, entity(), session, RegistryOptions{})

	_, err := registry["action_1"].Call(context.Background(), nil)

	// The reserved signal crosses the boundary untouched and unrecorded.
	assert.True(t, fieldwise.IsRetrySignal(err))
	assert.Empty(t, session.Records())
}

func TestSession_AccumulatesInOrder(t *testing.T) {
	session := NewSession()
	assert.NotEmpty(t, session.BatchID)

	session.Record(CallRecord{Tool: "first", Duration: 10})
	session.Record(CallRecord{Tool: "second", Duration: 5})

	records := session.Records()
	require.Len(t, records, 2)
	assert.Equal(t, "first", records[0].Tool)
	assert.Equal(t, "second", records[1].Tool)
	assert.EqualValues(t, 15, session.ToolTime())
}

func TestSpecs_SortedByName(t *testing.T) {
	actions := []Action{
		{ID: 9, Label: "Zeta", Execute: noop},
		{ID: 1, Label: "Alpha", Execute: noop},
		{ID: 5, ExternalID: "account.action_post", Label: "Post", Execute: noop},
	}
	registry := BuildRegistry(actions, entity(), NewSession(), RegistryOptions{})

	specs := Specs(registry)
	require.Len(t, specs, 3)
	assert.Equal(t, "account.action_post", specs[0].Name)
	assert.Equal(t, "action_1", specs[1].Name)
	assert.Equal(t, "action_9", specs[2].Name)
}
