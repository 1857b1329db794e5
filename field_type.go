package fieldwise

// FieldType is the closed set of semantic field types a resolution can
// target. The schema fragment sent to the model and the caster applied to
// its answer are both selected by this tag.
type FieldType string

const (
	FieldBoolean   FieldType = "boolean"
	FieldChar      FieldType = "char"
	FieldText      FieldType = "text"
	FieldDate      FieldType = "date"
	FieldDatetime  FieldType = "datetime"
	FieldInteger   FieldType = "integer"
	FieldFloat     FieldType = "float"
	FieldMonetary  FieldType = "monetary"
	FieldHTML      FieldType = "html"
	FieldSelection FieldType = "selection"
	FieldTags      FieldType = "tags"
	FieldMany2One  FieldType = "many2one"
	FieldOne2Many  FieldType = "one2many"
	FieldMany2Many FieldType = "many2many"
	FieldBinary    FieldType = "binary"
)

// NeedsAllowedValues reports whether resolution of this type requires a
// non-empty allowed-value set. Resolving such a type without one fails
// before any model call is made.
func (t FieldType) NeedsAllowedValues() bool {
	switch t {
	case FieldSelection, FieldTags, FieldMany2One, FieldOne2Many, FieldMany2Many:
		return true
	}
	return false
}

// IsRelational reports whether values of this type reference records of
// another model.
func (t FieldType) IsRelational() bool {
	switch t {
	case FieldMany2One, FieldOne2Many, FieldMany2Many:
		return true
	}
	return false
}

// IsMulti reports whether the resolved value is a list rather than a single
// scalar.
func (t FieldType) IsMulti() bool {
	return t == FieldTags || t == FieldOne2Many || t == FieldMany2Many
}

// Valid reports whether t is a member of the closed set.
func (t FieldType) Valid() bool {
	switch t {
	case FieldBoolean, FieldChar, FieldText, FieldDate, FieldDatetime,
		FieldInteger, FieldFloat, FieldMonetary, FieldHTML, FieldSelection,
		FieldTags, FieldMany2One, FieldOne2Many, FieldMany2Many, FieldBinary:
		return true
	}
	return false
}
