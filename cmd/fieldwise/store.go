package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/fieldwise/fieldwise"
)

// recordFile is the JSON document the CLI resolves against: one record with
// its typed fields and current values.
//
//	{
//	  "model": "res.partner",
//	  "id": 7,
//	  "fields": {
//	    "name":    {"type": "char", "value": "Acme Corp"},
//	    "country": {"type": "many2one", "comodel": "res.country"}
//	  }
//	}
type recordFile struct {
	Model  string              `json:"model"`
	ID     int64               `json:"id"`
	Fields map[string]fieldDef `json:"fields"`
}

type fieldDef struct {
	Type    fieldwise.FieldType `json:"type"`
	Comodel string              `json:"comodel,omitempty"`
	Value   any                 `json:"value,omitempty"`
}

// fileStore serves a single record loaded from disk. Everything it holds is
// readable; only the loaded record exists.
type fileStore struct {
	record fieldwise.Record
	fields map[string]fieldDef
}

func loadRecordFile(path string) (*fileStore, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading record file: %w", err)
	}

	var doc recordFile
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing record file: %w", err)
	}
	if doc.Model == "" {
		return nil, fmt.Errorf("record file %s has no model", path)
	}

	for name, def := range doc.Fields {
		if !def.Type.Valid() {
			return nil, fmt.Errorf("field %q has unknown type %q", name, def.Type)
		}
	}

	return &fileStore{
		record: fieldwise.Record{Model: doc.Model, ID: doc.ID},
		fields: doc.Fields,
	}, nil
}

func (s *fileStore) Exists(_ context.Context, rec fieldwise.Record) (bool, error) {
	return rec == s.record, nil
}

func (s *fileStore) DisplayName(_ context.Context, rec fieldwise.Record, nameField string) (string, error) {
	if nameField == "" {
		nameField = "name"
	}
	if def, ok := s.fields[nameField]; ok {
		if name, ok := def.Value.(string); ok {
			return name, nil
		}
	}
	return fmt.Sprintf("%s(%d)", rec.Model, rec.ID), nil
}

func (s *fileStore) Field(model string, path string) (*fieldwise.FieldDescriptor, error) {
	def, ok := s.fields[path]
	if !ok {
		return nil, fmt.Errorf("model %s has no field %q", model, path)
	}
	return &fieldwise.FieldDescriptor{
		Name:      path,
		Type:      def.Type,
		Comodel:   def.Comodel,
		AIEnabled: true,
	}, nil
}

func (s *fileStore) Read(_ context.Context, _ fieldwise.Record, path string) (any, error) {
	def, ok := s.fields[path]
	if !ok {
		return nil, fmt.Errorf("no field %q", path)
	}
	return def.Value, nil
}

func (s *fileStore) contextPaths() []string {
	paths := make([]string, 0, len(s.fields))
	for name, def := range s.fields {
		if def.Type == fieldwise.FieldBinary {
			continue
		}
		paths = append(paths, name)
	}
	return paths
}

var _ fieldwise.Store = (*fileStore)(nil)
