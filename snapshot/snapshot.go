// Package snapshot serializes the referenced field values of one entity into
// the bounded context tree sent to the model as grounding data.
package snapshot

import (
	"context"
	"encoding/json"

	"github.com/fieldwise/fieldwise"
)

// Snapshot is the context tree: model name -> list of per-record field maps.
// Each record map carries the record's own id alongside the requested
// fields. Relational values appear as fieldwise.RelationRef tokens, never as
// inlined records. The snapshot is rebuilt fresh per resolution and
// discarded after use.
type Snapshot map[string][]map[string]any

// Render returns the snapshot as the JSON block that is textually embedded
// into the user prompt.
func (s Snapshot) Render() string {
	if len(s) == 0 {
		return "{}"
	}
	b, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return "{}"
	}
	return string(b)
}

// Build reads the values at paths off the record and serializes them:
// scalars pass through, relational values become {model, ids} tokens, and
// binary fields are extracted into the returned file list instead of being
// inlined. An empty path set yields an empty snapshot, not an error.
func Build(
	ctx context.Context,
	store fieldwise.Store,
	rec fieldwise.Record,
	paths []string,
) (Snapshot, []fieldwise.File, error) {
	if len(paths) == 0 {
		return Snapshot{}, nil, nil
	}

	fields := map[string]any{"id": rec.ID}
	var files []fieldwise.File

	for _, path := range paths {
		desc, err := store.Field(rec.Model, path)
		if err != nil {
			return nil, nil, err
		}

		value, err := store.Read(ctx, rec, path)
		if err != nil {
			return nil, nil, err
		}

		if desc != nil && desc.Type == fieldwise.FieldBinary {
			switch v := value.(type) {
			case fieldwise.File:
				files = append(files, v)
			case *fieldwise.File:
				if v != nil {
					files = append(files, *v)
				}
			}
			continue
		}

		fields[path] = value
	}

	return Snapshot{rec.Model: []map[string]any{fields}}, files, nil
}

// Overlay is a what-if view over a Store: reads of the target record consult
// the unsaved edits first, everything else passes through. It lets a
// resolution run against a record as it would look after pending changes.
type Overlay struct {
	fieldwise.Store

	Target fieldwise.Record
	Edits  map[string]any
}

// Read returns the pending edit for path when one exists on the target
// record, and delegates to the wrapped store otherwise.
func (o *Overlay) Read(ctx context.Context, rec fieldwise.Record, path string) (any, error) {
	if rec == o.Target {
		if v, ok := o.Edits[path]; ok {
			return v, nil
		}
	}
	return o.Store.Read(ctx, rec, path)
}

// Exists reports true for the target record even when it has not been
// persisted yet.
func (o *Overlay) Exists(ctx context.Context, rec fieldwise.Record) (bool, error) {
	if rec == o.Target {
		return true, nil
	}
	return o.Store.Exists(ctx, rec)
}
