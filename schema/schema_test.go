package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompile(t *testing.T) {
	type input struct {
		raw map[string]any
	}

	type expected struct {
		isNil  bool
		hasErr bool
	}

	tests := []struct {
		name     string
		input    input
		expected expected
	}{
		{
			name:     "nil schema returns nil",
			input:    input{raw: nil},
			expected: expected{isNil: true},
		},
		{
			name: "valid schema compiles",
			input: input{
				raw: Object(map[string]*Property{
					"name": String("Name"),
				}, "name"),
			},
			expected: expected{},
		},
		{
			name: "invalid type keyword fails",
			input: input{
				raw: map[string]any{"type": 42},
			},
			expected: expected{hasErr: true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := Compile(tt.input.raw)

			if tt.expected.hasErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			if tt.expected.isNil {
				assert.Nil(t, s)
			} else {
				require.NotNil(t, s)
				assert.NotNil(t, s.Raw())
			}
		})
	}
}

func TestSchema_Validate(t *testing.T) {
	compiled := MustCompile(Object(map[string]*Property{
		"partner_id": Integer("Partner id"),
		"note":       String("Free-form note"),
	}, "partner_id"))

	type expected struct {
		hasErr bool
	}

	tests := []struct {
		name     string
		data     map[string]any
		expected expected
	}{
		{
			name: "valid args pass",
			data: map[string]any{"partner_id": 7, "note": "hello"},
		},
		{
			name:     "missing required arg fails",
			data:     map[string]any{"note": "hello"},
			expected: expected{hasErr: true},
		},
		{
			name:     "wrong type fails",
			data:     map[string]any{"partner_id": "seven"},
			expected: expected{hasErr: true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := compiled.Validate(tt.data)
			if tt.expected.hasErr {
				var vErr *ValidationError
				assert.ErrorAs(t, err, &vErr)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestNoParameters(t *testing.T) {
	s := NoParameters()
	assert.Equal(t, "object", s["type"])
	assert.Empty(t, s["properties"])
	assert.Empty(t, s["required"])

	// The explicit no-parameters schema must itself be valid.
	compiled, err := Compile(s)
	require.NoError(t, err)
	assert.NoError(t, compiled.Validate(map[string]any{}))
}
