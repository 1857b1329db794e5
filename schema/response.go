package schema

import (
	"fmt"

	"github.com/fieldwise/fieldwise"
)

// fragmentFunc builds the "value" sub-schema for one field type. allowed is
// nil for types that take no allowed-value set.
type fragmentFunc func(allowed []fieldwise.AllowedValue) map[string]any

// fragments maps each resolvable field type to its value sub-schema. Adding
// a type is one table entry plus a caster in the resolver.
var fragments = map[fieldwise.FieldType]fragmentFunc{
	fieldwise.FieldBoolean: func([]fieldwise.AllowedValue) map[string]any {
		return map[string]any{"type": "boolean"}
	},
	fieldwise.FieldChar: func([]fieldwise.AllowedValue) map[string]any {
		return map[string]any{
			"type":        "string",
			"description": "A short single-line text. Plain text only, no markdown.",
		}
	},
	fieldwise.FieldText: func([]fieldwise.AllowedValue) map[string]any {
		return map[string]any{
			"type":        "string",
			"description": "Plain text. Do not use markdown formatting.",
		}
	},
	fieldwise.FieldDate: func([]fieldwise.AllowedValue) map[string]any {
		return map[string]any{
			"type":        []string{"string", "null"},
			"format":      "date",
			"description": "An ISO 8601 date (YYYY-MM-DD), or null when no date applies.",
		}
	},
	fieldwise.FieldDatetime: func([]fieldwise.AllowedValue) map[string]any {
		return map[string]any{
			"type":        []string{"string", "null"},
			"format":      "date-time",
			"description": "An ISO 8601 datetime including a timezone offset, or null when no datetime applies.",
		}
	},
	fieldwise.FieldInteger: func([]fieldwise.AllowedValue) map[string]any {
		return map[string]any{
			"type": "integer",
			"description": "A whole number in full digits. Expand spelled-out magnitudes " +
				"completely: \"6.67 billion\" must be returned as 6670000000.",
		}
	},
	fieldwise.FieldFloat: func([]fieldwise.AllowedValue) map[string]any {
		return map[string]any{
			"type":        "number",
			"description": "A bare number without unit or thousands separators.",
		}
	},
	fieldwise.FieldMonetary: func([]fieldwise.AllowedValue) map[string]any {
		return map[string]any{
			"type":        "number",
			"description": "A bare amount without currency symbol.",
		}
	},
	fieldwise.FieldHTML: func([]fieldwise.AllowedValue) map[string]any {
		return map[string]any{
			"type":        "string",
			"description": "Rich text written in markdown. It will be converted to HTML.",
		}
	},
	fieldwise.FieldSelection: func(allowed []fieldwise.AllowedValue) map[string]any {
		return map[string]any{
			"type": []string{"string", "null"},
			"enum": append(rawValues(allowed), nil),
		}
	},
	fieldwise.FieldTags: func(allowed []fieldwise.AllowedValue) map[string]any {
		return map[string]any{
			"type": "array",
			"items": map[string]any{
				"type": "string",
				"enum": rawValues(allowed),
			},
		}
	},
	fieldwise.FieldMany2One: func(allowed []fieldwise.AllowedValue) map[string]any {
		return map[string]any{
			"type": []string{"integer", "null"},
			"enum": append(rawValues(allowed), nil),
		}
	},
	fieldwise.FieldOne2Many:  relationListFragment,
	fieldwise.FieldMany2Many: relationListFragment,
}

func relationListFragment(allowed []fieldwise.AllowedValue) map[string]any {
	return map[string]any{
		"type": "array",
		"items": map[string]any{
			"type": "integer",
			"enum": rawValues(allowed),
		},
	}
}

func rawValues(allowed []fieldwise.AllowedValue) []any {
	raws := make([]any, 0, len(allowed))
	for _, av := range allowed {
		raws = append(raws, av.Raw)
	}
	return raws
}

// ForFieldType builds the full response envelope for one field type:
//
//	{value: <per-type schema>, could_not_resolve: bool, unresolved_cause: string|null}
//
// with all three properties required and no additional properties permitted.
// Only the value sub-schema varies across field types.
//
// Choice-like types (selection and relations) require a non-empty allowed
// set; fieldwise.ErrMissingAllowedValues is returned otherwise, before any
// model call can take place.
func ForFieldType(ft fieldwise.FieldType, allowed []fieldwise.AllowedValue) (map[string]any, error) {
	fragment, ok := fragments[ft]
	if !ok {
		return nil, fmt.Errorf("schema: field type %q cannot be resolved by a model", ft)
	}

	if ft.NeedsAllowedValues() && len(allowed) == 0 {
		return nil, fmt.Errorf("%w for field type %q", fieldwise.ErrMissingAllowedValues, ft)
	}

	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"value": fragment(allowed),
			"could_not_resolve": map[string]any{
				"type":        "boolean",
				"description": "True when the question cannot be answered from the provided context and your own knowledge.",
			},
			"unresolved_cause": map[string]any{
				"type":        []string{"string", "null"},
				"description": "When could_not_resolve is true, a short human-readable explanation of what is missing.",
			},
		},
		"required":             []string{"value", "could_not_resolve", "unresolved_cause"},
		"additionalProperties": false,
	}, nil
}
