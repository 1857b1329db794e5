package resolver

import (
	"bytes"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"

	"github.com/fieldwise/fieldwise"
)

// castFunc converts one raw model value into its typed form, or nil when the
// value casts to nothing. Casters never return errors: a date that does not
// parse or an enum value outside the allowed set simply yields no value.
type castFunc func(raw any, allowed []fieldwise.AllowedValue) any

// casters maps each field type to its caster, the inverse of the schema
// fragment table.
var casters = map[fieldwise.FieldType]castFunc{
	fieldwise.FieldBoolean:   castBool,
	fieldwise.FieldChar:      castString,
	fieldwise.FieldText:      castString,
	fieldwise.FieldDate:      castDate,
	fieldwise.FieldDatetime:  castDatetime,
	fieldwise.FieldInteger:   castInteger,
	fieldwise.FieldFloat:     castFloat,
	fieldwise.FieldMonetary:  castFloat,
	fieldwise.FieldHTML:      castHTML,
	fieldwise.FieldSelection: castSelection,
	fieldwise.FieldTags:      castTagList,
	fieldwise.FieldMany2One:  castMany2One,
	fieldwise.FieldOne2Many:  castRelationList,
	fieldwise.FieldMany2Many: castRelationList,
}

// Cast converts a raw model value into the typed value for the field type.
// It returns nil when the value does not cast; it never returns an error for
// well-formed-but-unmatched values.
func Cast(ft fieldwise.FieldType, raw any, allowed []fieldwise.AllowedValue) any {
	caster, ok := casters[ft]
	if !ok || raw == nil {
		return nil
	}
	return caster(raw, allowed)
}

func castBool(raw any, _ []fieldwise.AllowedValue) any {
	if b, ok := raw.(bool); ok {
		return b
	}
	return nil
}

func castString(raw any, _ []fieldwise.AllowedValue) any {
	if s, ok := raw.(string); ok {
		return s
	}
	return nil
}

// castDate normalizes to the local calendar date at midnight UTC. A value
// that does not parse yields no value, not an error.
func castDate(raw any, _ []fieldwise.AllowedValue) any {
	s, ok := raw.(string)
	if !ok {
		return nil
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t
	}
	// Datetime answers to a date question keep their calendar date.
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		y, m, d := t.Date()
		return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	}
	return nil
}

// castDatetime parses an ISO datetime with offset and normalizes it to UTC.
func castDatetime(raw any, _ []fieldwise.AllowedValue) any {
	s, ok := raw.(string)
	if !ok {
		return nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil
	}
	return t.UTC()
}

// castInteger accepts the numeric shapes JSON decoding produces. Magnitude
// expansion ("6.67 billion" -> 6670000000) is a contract on the model side,
// enforced through the schema description, not re-validated here.
func castInteger(raw any, _ []fieldwise.AllowedValue) any {
	if n, ok := asInt64(raw); ok {
		return n
	}
	return nil
}

func castFloat(raw any, _ []fieldwise.AllowedValue) any {
	switch v := raw.(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	case int64:
		return float64(v)
	}
	return nil
}

// castHTML converts the model's markdown output to sanitized HTML.
func castHTML(raw any, _ []fieldwise.AllowedValue) any {
	s, ok := raw.(string)
	if !ok {
		return nil
	}
	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(s), &buf); err != nil {
		return nil
	}
	return strings.TrimSpace(bluemonday.UGCPolicy().Sanitize(buf.String()))
}

func castSelection(raw any, allowed []fieldwise.AllowedValue) any {
	s, ok := raw.(string)
	if !ok {
		return nil
	}
	for _, av := range allowed {
		if key, ok := av.Raw.(string); ok && key == s {
			return s
		}
	}
	return nil
}

// castTagList filters the answered tags against the allowed set. Partial
// matches are kept, never errored on.
func castTagList(raw any, allowed []fieldwise.AllowedValue) any {
	list, ok := raw.([]any)
	if !ok {
		return nil
	}
	tags := make([]string, 0, len(list))
	for _, item := range list {
		s, ok := item.(string)
		if !ok || castSelection(s, allowed) == nil {
			continue
		}
		tags = append(tags, s)
	}
	return tags
}

func castMany2One(raw any, allowed []fieldwise.AllowedValue) any {
	id, ok := asInt64(raw)
	if !ok {
		return nil
	}
	if !allowedID(id, allowed) {
		return nil
	}
	return id
}

// castRelationList filters the answered ids against the allowed set,
// dropping anything not present. Partial matches are kept, never errored on.
func castRelationList(raw any, allowed []fieldwise.AllowedValue) any {
	list, ok := raw.([]any)
	if !ok {
		return nil
	}
	ids := make([]int64, 0, len(list))
	for _, item := range list {
		id, ok := asInt64(item)
		if !ok || !allowedID(id, allowed) {
			continue
		}
		ids = append(ids, id)
	}
	return ids
}

func allowedID(id int64, allowed []fieldwise.AllowedValue) bool {
	for _, av := range allowed {
		if n, ok := asInt64(av.Raw); ok && n == id {
			return true
		}
	}
	return false
}

// asInt64 converts the integer shapes that reach casters: JSON decoding
// yields float64, callers hand in native ints.
func asInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case float64:
		if n != float64(int64(n)) {
			return 0, false
		}
		return int64(n), true
	case int:
		return int64(n), true
	case int64:
		return n, true
	}
	return 0, false
}
