// Package schema declares, per document kind, which fields exist, which are
// required and which hold references, and validates decoded documents
// against those declarations.
//
// Documents are validated in their JSON field-map form (map[string]any as
// produced by encoding/json). That one representation serves create,
// patch-merge and full replace alike.
package schema

import (
	"fmt"
	"math"
	"strings"

	"github.com/sakif/videotube/internal/apperror"
	"github.com/sakif/videotube/internal/objectid"
)

type FieldType int

const (
	String FieldType = iota
	Number
	Bool
	Ref     // a single identifier
	RefList // an ordered list of identifiers
)

func (t FieldType) String() string {
	switch t {
	case String:
		return "string"
	case Number:
		return "number"
	case Bool:
		return "boolean"
	case Ref:
		return "identifier"
	case RefList:
		return "list of identifiers"
	}
	return "unknown"
}

// Field declares one top-level document field.
type Field struct {
	Name     string
	Type     FieldType
	Required bool
	// Ref is the collection a Ref or RefList field points into.
	Ref string
	// Label names the referenced thing in cast errors ("invalid owner ID").
	// Defaults to Name.
	Label string
	// Hidden fields are stored but never returned by populate or the API.
	Hidden bool
}

func (f Field) label() string {
	if f.Label != "" {
		return f.Label
	}
	return f.Name
}

// IsRef reports whether the field can be populated.
func (f Field) IsRef() bool {
	return f.Type == Ref || f.Type == RefList
}

// Schema is the full declaration for one collection.
type Schema struct {
	Collection string
	Fields     []Field
	// AnyOf lists groups of fields of which at least one must be set.
	AnyOf [][]string
	// Unique lists field tuples no two documents may share.
	Unique [][]string
}

// Reserved keys are owned by the store and never client-settable.
const (
	KeyID        = "_id"
	KeyCreatedAt = "createdAt"
	KeyUpdatedAt = "updatedAt"
)

// IsReserved reports whether key is one of the store-owned keys.
func IsReserved(key string) bool {
	return key == KeyID || key == KeyCreatedAt || key == KeyUpdatedAt
}

// Field looks up a declared field by name.
func (s *Schema) Field(name string) (Field, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// Validate checks doc against the schema. Fields are walked in declaration
// order and the first violation is returned: presence first, then type,
// then identifier format. AnyOf groups are checked after all fields.
//
// The returned error is always an *apperror.AppError classified as either
// ErrValidation or ErrCast.
func (s *Schema) Validate(doc map[string]any) error {
	for _, f := range s.Fields {
		v, present := doc[f.Name]
		if !present || v == nil {
			if f.Required {
				return required(f)
			}
			continue
		}
		if err := checkValue(f, v); err != nil {
			return err
		}
	}

	for _, group := range s.AnyOf {
		set := false
		for _, name := range group {
			if v, ok := doc[name]; ok && !isBlank(v) {
				set = true
				break
			}
		}
		if !set {
			return apperror.ValidationFailed(group[0],
				fmt.Sprintf("at least one of %s is required", strings.Join(group, ", ")))
		}
	}
	return nil
}

// CheckUnknown rejects keys that are neither declared fields nor reserved.
func (s *Schema) CheckUnknown(doc map[string]any) error {
	for key := range doc {
		if IsReserved(key) {
			continue
		}
		if _, ok := s.Field(key); !ok {
			return apperror.ValidationFailed(key,
				fmt.Sprintf("%s is not a field of %s", key, s.Collection))
		}
	}
	return nil
}

// ApplyDefaults fills absent optional list fields with an empty list, so
// stored documents always carry them.
func (s *Schema) ApplyDefaults(doc map[string]any) {
	for _, f := range s.Fields {
		if f.Type != RefList {
			continue
		}
		if v, ok := doc[f.Name]; !ok || v == nil {
			doc[f.Name] = []any{}
		}
	}
}

// Redact removes hidden fields from doc in place.
func (s *Schema) Redact(doc map[string]any) {
	for _, f := range s.Fields {
		if f.Hidden {
			delete(doc, f.Name)
		}
	}
}

// CheckFilterValue validates a single equality-filter value for field name.
// Reference fields must hold well-formed identifiers, so a malformed lookup
// key fails here instead of silently matching nothing.
func (s *Schema) CheckFilterValue(name string, v any) error {
	if name == KeyID {
		id, ok := v.(string)
		if !ok || !objectid.IsValid(id) {
			return apperror.Cast(KeyID, "document", fmt.Sprint(v))
		}
		return nil
	}

	f, ok := s.Field(name)
	if !ok {
		return apperror.ValidationFailed(name,
			fmt.Sprintf("%s is not a field of %s", name, s.Collection))
	}
	if f.Hidden {
		return apperror.ValidationFailed(name, fmt.Sprintf("cannot filter on %s", name))
	}
	if f.Type == RefList {
		// Equality against a list is not supported; filter by a single
		// element's id is not a feature of this store.
		return apperror.ValidationFailed(name, fmt.Sprintf("cannot filter on list field %s", name))
	}
	return checkValue(f, v)
}

func required(f Field) error {
	return apperror.ValidationFailed(f.Name, fmt.Sprintf("%s is required", f.Name))
}

func wrongType(f Field) error {
	return apperror.ValidationFailed(f.Name, fmt.Sprintf("%s must be a %s", f.Name, f.Type))
}

func checkValue(f Field, v any) error {
	switch f.Type {
	case String:
		s, ok := v.(string)
		if !ok {
			return wrongType(f)
		}
		if f.Required && strings.TrimSpace(s) == "" {
			return required(f)
		}

	case Number:
		n, ok := toFloat(v)
		if !ok || math.IsNaN(n) || math.IsInf(n, 0) {
			return wrongType(f)
		}

	case Bool:
		if _, ok := v.(bool); !ok {
			return wrongType(f)
		}

	case Ref:
		s, ok := v.(string)
		if !ok {
			return wrongType(f)
		}
		if s == "" {
			if f.Required {
				return required(f)
			}
			return nil
		}
		if !objectid.IsValid(s) {
			return apperror.Cast(f.Name, f.label(), s)
		}

	case RefList:
		list, ok := v.([]any)
		if !ok {
			if ss, isStrings := v.([]string); isStrings {
				list = make([]any, len(ss))
				for i, s := range ss {
					list[i] = s
				}
			} else {
				return wrongType(f)
			}
		}
		if f.Required && len(list) == 0 {
			return required(f)
		}
		for _, item := range list {
			s, ok := item.(string)
			if !ok {
				return wrongType(f)
			}
			if !objectid.IsValid(s) {
				return apperror.Cast(f.Name, f.label(), s)
			}
		}
	}
	return nil
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	}
	return 0, false
}

func isBlank(v any) bool {
	if v == nil {
		return true
	}
	s, ok := v.(string)
	return ok && s == ""
}
