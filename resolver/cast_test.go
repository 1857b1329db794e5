package resolver

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/fieldwise/fieldwise"
)

func TestCast(t *testing.T) {
	selection := []fieldwise.AllowedValue{
		{Raw: "a", Label: "Label A"},
		{Raw: "b", Label: "Label B"},
	}
	relation := []fieldwise.AllowedValue{
		{Raw: int64(4), Label: "Alpha"},
		{Raw: int64(9), Label: "Beta"},
	}

	type input struct {
		ft      fieldwise.FieldType
		raw     any
		allowed []fieldwise.AllowedValue
	}

	tests := []struct {
		name     string
		input    input
		expected any
	}{
		{
			name:     "boolean passes through",
			input:    input{ft: fieldwise.FieldBoolean, raw: true},
			expected: true,
		},
		{
			name:     "char passes through",
			input:    input{ft: fieldwise.FieldChar, raw: "hello"},
			expected: "hello",
		},
		{
			name:     "nil raw casts to nothing",
			input:    input{ft: fieldwise.FieldChar, raw: nil},
			expected: nil,
		},
		{
			name:     "integer from json number",
			input:    input{ft: fieldwise.FieldInteger, raw: float64(6670000000)},
			expected: int64(6670000000),
		},
		{
			name:     "fractional number is not an integer",
			input:    input{ft: fieldwise.FieldInteger, raw: 3.5},
			expected: nil,
		},
		{
			name:     "float passes through",
			input:    input{ft: fieldwise.FieldFloat, raw: 19.99},
			expected: 19.99,
		},
		{
			name:     "datetime normalized to UTC",
			input:    input{ft: fieldwise.FieldDatetime, raw: "2024-03-01T10:00:00+02:00"},
			expected: time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC),
		},
		{
			name:     "unparseable datetime yields no value",
			input:    input{ft: fieldwise.FieldDatetime, raw: "not-a-date"},
			expected: nil,
		},
		{
			name:     "date keeps the calendar date",
			input:    input{ft: fieldwise.FieldDate, raw: "2024-03-01"},
			expected: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		},
		{
			name:     "datetime answer to date question keeps calendar date",
			input:    input{ft: fieldwise.FieldDate, raw: "2024-03-01T23:30:00+02:00"},
			expected: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		},
		{
			name:     "selection inside allowed set",
			input:    input{ft: fieldwise.FieldSelection, raw: "a", allowed: selection},
			expected: "a",
		},
		{
			name:     "selection outside allowed set filtered",
			input:    input{ft: fieldwise.FieldSelection, raw: "z", allowed: selection},
			expected: nil,
		},
		{
			name:     "many2one inside allowed set",
			input:    input{ft: fieldwise.FieldMany2One, raw: float64(9), allowed: relation},
			expected: int64(9),
		},
		{
			name:     "many2one outside allowed set filtered",
			input:    input{ft: fieldwise.FieldMany2One, raw: float64(7), allowed: relation},
			expected: nil,
		},
		{
			name:     "tags partial match never errors",
			input:    input{ft: fieldwise.FieldTags, raw: []any{"a", "z", "b"}, allowed: selection},
			expected: []string{"a", "b"},
		},
		{
			name:     "many2many partial match never errors",
			input:    input{ft: fieldwise.FieldMany2Many, raw: []any{float64(4), float64(7), float64(9)}, allowed: relation},
			expected: []int64{4, 9},
		},
		{
			name:     "binary has no caster",
			input:    input{ft: fieldwise.FieldBinary, raw: "x"},
			expected: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Cast(tt.input.ft, tt.input.raw, tt.input.allowed)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestCast_HTMLSanitized(t *testing.T) {
	got := Cast(fieldwise.FieldHTML, "# Title\n\nSome **bold** text.", nil)
	html, ok := got.(string)

	assert.True(t, ok)
	assert.Contains(t, html, "<strong>bold</strong>")
	assert.NotContains(t, html, "#")
}

func TestCast_HTMLStripsScript(t *testing.T) {
	got := Cast(fieldwise.FieldHTML, `hello <script>alert("x")</script>`, nil)
	html, ok := got.(string)

	assert.True(t, ok)
	assert.NotContains(t, html, "<script>")
}
