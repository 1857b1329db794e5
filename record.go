package fieldwise

import "context"

// Record identifies one persisted record of a model.
type Record struct {
	Model string `json:"model"`
	ID    int64  `json:"id"`
}

// RelationRef is the serialized form of a relational value. Relational
// fields are never inlined as full records; only the target model and ids
// cross the boundary to the language model.
type RelationRef struct {
	Model string  `json:"model"`
	IDs   []int64 `json:"ids"`
}

// File is a binary payload extracted from a record field and attached to a
// model request alongside the textual context.
type File struct {
	Name string
	MIME string
	Data []byte
}

// FieldDescriptor describes one field of a model as the snapshot builder and
// prompt compiler see it. AIEnabled is set at configuration time; the core
// never probes records for capabilities at use time.
type FieldDescriptor struct {
	Name      string
	Type      FieldType
	Comodel   string // target model for relational fields
	AIEnabled bool
}

// Store is the persistence collaborator. It owns record reads, existence
// checks and display names; the core never touches storage directly.
type Store interface {
	// Exists reports whether the record is present in storage.
	Exists(ctx context.Context, rec Record) (bool, error)

	// DisplayName returns the record's display label. nameField selects a
	// per-model naming-field override; pass "" for the model default.
	DisplayName(ctx context.Context, rec Record, nameField string) (string, error)

	// Field resolves a dotted path on a model to its field descriptor.
	Field(model, path string) (*FieldDescriptor, error)

	// Read reads the value at a dotted path off a record. Relational values
	// are returned as RelationRef, binary values as File, scalars as-is.
	Read(ctx context.Context, rec Record, path string) (any, error)
}

// AccessChecker is the pass/fail gate consulted before records are
// substituted into prompts and before actions are dispatched.
type AccessChecker interface {
	// CanRead reports whether the current caller may read the record.
	CanRead(ctx context.Context, rec Record) bool

	// CanExecute reports whether the current caller may execute the action.
	CanExecute(ctx context.Context, actionID int64) bool
}

// AllowedValue is one member of the closed set a choice or relational field
// may resolve to. Raw is what the model returns (a selection key or a record
// id); Label is what the model is shown.
type AllowedValue struct {
	Raw   any
	Label string
}
