// Package schema declares the closed set of field types a collection can be
// built from, and validates/coerces caller records against a CollectionMeta.
package schema

import (
	"fmt"

	"github.com/openviking/vikingdb/pkg/vdberrors"
)

// FieldType is the closed set of scalar, collection, and vector field kinds.
type FieldType string

const (
	TypeInt64        FieldType = "int64"
	TypeFloat32      FieldType = "float32"
	TypeBool         FieldType = "bool"
	TypeString       FieldType = "string"
	TypeDateTime     FieldType = "date_time"
	TypeGeoPoint     FieldType = "geo_point"
	TypePath         FieldType = "path"
	TypeListString   FieldType = "list<string>"
	TypeListInt64    FieldType = "list<int64>"
	TypeVector       FieldType = "vector"
	TypeSparseVector FieldType = "sparse_vector"
)

// AutoIDField is the reserved field name that echoes a generated label back
// to the caller when the schema has no user-declared primary key.
const AutoIDField = "__auto_id__"

// Field describes one column of a collection's schema.
type Field struct {
	Name         string
	Type         FieldType
	IsPrimaryKey bool
	Required     bool
	Dim          int // only meaningful for TypeVector
}

// Vectorization declares whether the collection auto-embeds via an external
// embedder when the caller omits a vector.
type Vectorization struct {
	Enabled       bool
	SourceField   string // scalar field whose text is sent to the embedder
	SparseEnabled bool
}

// CollectionMeta is the immutable (bar description/additive fields) schema
// declared at collection creation time.
type CollectionMeta struct {
	Name          string
	Description   string
	Fields        []Field
	Vectorization Vectorization
	DefaultTTLSec int64 // 0 = no default TTL
}

// Validate enforces the structural invariants from the data model: at most
// one primary key, at most one dense and one sparse vector field, field
// names unique, vector fields carry a positive Dim.
func (m *CollectionMeta) Validate() error {
	if m.Name == "" {
		return vdberrors.New("schema.validate", vdberrors.SchemaInvalid, fmt.Errorf("collection name is required"))
	}

	seen := make(map[string]bool, len(m.Fields))
	pkCount, denseCount, sparseCount := 0, 0, 0
	for _, f := range m.Fields {
		if f.Name == "" {
			return vdberrors.New("schema.validate", vdberrors.SchemaInvalid, fmt.Errorf("field name cannot be empty"))
		}
		if seen[f.Name] {
			return vdberrors.New("schema.validate", vdberrors.SchemaInvalid, fmt.Errorf("duplicate field %q", f.Name))
		}
		seen[f.Name] = true

		if !validType(f.Type) {
			return vdberrors.New("schema.validate", vdberrors.SchemaInvalid, fmt.Errorf("field %q: unknown type %q", f.Name, f.Type))
		}
		if f.IsPrimaryKey {
			pkCount++
		}
		if f.Type == TypeVector {
			denseCount++
			if f.Dim <= 0 {
				return vdberrors.New("schema.validate", vdberrors.SchemaInvalid, fmt.Errorf("vector field %q requires a positive Dim", f.Name))
			}
		}
		if f.Type == TypeSparseVector {
			sparseCount++
		}
	}

	if pkCount > 1 {
		return vdberrors.New("schema.validate", vdberrors.SchemaInvalid, fmt.Errorf("at most one primary key field allowed, got %d", pkCount))
	}
	if denseCount > 1 {
		return vdberrors.New("schema.validate", vdberrors.SchemaInvalid, fmt.Errorf("at most one dense vector field allowed, got %d", denseCount))
	}
	if sparseCount > 1 {
		return vdberrors.New("schema.validate", vdberrors.SchemaInvalid, fmt.Errorf("at most one sparse vector field allowed, got %d", sparseCount))
	}
	return nil
}

func validType(t FieldType) bool {
	switch t {
	case TypeInt64, TypeFloat32, TypeBool, TypeString, TypeDateTime, TypeGeoPoint, TypePath,
		TypeListString, TypeListInt64, TypeVector, TypeSparseVector:
		return true
	}
	return false
}

// PrimaryKey returns the declared PK field, if any.
func (m *CollectionMeta) PrimaryKey() (Field, bool) {
	for _, f := range m.Fields {
		if f.IsPrimaryKey {
			return f, true
		}
	}
	return Field{}, false
}

// DenseVectorField returns the declared dense vector field, if any.
func (m *CollectionMeta) DenseVectorField() (Field, bool) {
	for _, f := range m.Fields {
		if f.Type == TypeVector {
			return f, true
		}
	}
	return Field{}, false
}

// SparseVectorField returns the declared sparse vector field, if any.
func (m *CollectionMeta) SparseVectorField() (Field, bool) {
	for _, f := range m.Fields {
		if f.Type == TypeSparseVector {
			return f, true
		}
	}
	return Field{}, false
}

// FieldByName looks up a declared field.
func (m *CollectionMeta) FieldByName(name string) (Field, bool) {
	for _, f := range m.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// ScalarFieldNames returns every declared field that is not a vector field,
// in declaration order — the default output_fields set for search results.
func (m *CollectionMeta) ScalarFieldNames() []string {
	names := make([]string, 0, len(m.Fields))
	for _, f := range m.Fields {
		if f.Type != TypeVector && f.Type != TypeSparseVector {
			names = append(names, f.Name)
		}
	}
	return names
}
