package db

import (
	"errors"
	"fmt"
	"strconv"
)

// Metric is the vector distance metric of an index.
type Metric string

// Supported distance metrics.
const (
	MetricCosine Metric = "COSINE"
	MetricIP     Metric = "IP"
	MetricL2     Metric = "L2"
)

// FieldKind is the index type of a hash field.
type FieldKind int

// Field kinds.
const (
	FieldTag FieldKind = iota + 1
	FieldNumeric
	FieldVector
)

// VectorSpec configures an HNSW vector field. Zero M / EFConstruction leave
// the server defaults.
type VectorSpec struct {
	Dim            int
	Metric         Metric
	M              int
	EFConstruction int
}

// Field is one indexed hash field.
type Field struct {
	Name   string
	Kind   FieldKind
	Vector VectorSpec
}

// Schema is an FT index over the hashes under one key prefix.
type Schema struct {
	Index  string
	Prefix string
	Fields []Field
}

// SchemaBuilder assembles a Schema field by field.
type SchemaBuilder struct {
	s Schema
}

// NewSchema starts a schema for index over hashes whose keys start with prefix.
func NewSchema(index, prefix string) *SchemaBuilder {
	return &SchemaBuilder{s: Schema{Index: index, Prefix: prefix}}
}

// Tag adds a TAG field.
func (b *SchemaBuilder) Tag(name string) *SchemaBuilder {
	b.s.Fields = append(b.s.Fields, Field{Name: name, Kind: FieldTag})
	return b
}

// Numeric adds a NUMERIC field.
func (b *SchemaBuilder) Numeric(name string) *SchemaBuilder {
	b.s.Fields = append(b.s.Fields, Field{Name: name, Kind: FieldNumeric})
	return b
}

// HNSW adds a FLOAT32 vector field indexed with HNSW.
func (b *SchemaBuilder) HNSW(name string, spec VectorSpec) *SchemaBuilder {
	if spec.Metric == "" {
		spec.Metric = MetricCosine
	}
	b.s.Fields = append(b.s.Fields, Field{Name: name, Kind: FieldVector, Vector: spec})
	return b
}

// Build validates and returns the schema.
func (b *SchemaBuilder) Build() (*Schema, error) {
	s := b.s
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Validate checks that the schema can be sent to FT.CREATE.
func (s *Schema) Validate() error {
	if !IsValidIdentifier(s.Index) {
		return fmt.Errorf("invalid index name %q", s.Index)
	}
	if s.Prefix == "" {
		return errors.New("key prefix is required")
	}
	if len(s.Fields) == 0 {
		return errors.New("at least one field is required")
	}

	seen := make(map[string]bool, len(s.Fields))
	for i, f := range s.Fields {
		if f.Name == "" {
			return fmt.Errorf("field %d has no name", i)
		}
		if seen[f.Name] {
			return fmt.Errorf("duplicate field %q", f.Name)
		}
		seen[f.Name] = true

		switch f.Kind {
		case FieldTag, FieldNumeric:
		case FieldVector:
			if f.Vector.Dim <= 0 {
				return fmt.Errorf("vector field %q needs a positive dimension", f.Name)
			}
		default:
			return fmt.Errorf("field %q has unknown kind %d", f.Name, f.Kind)
		}
	}
	return nil
}

// CreateArgs renders the FT.CREATE arguments (without the command name).
func (s *Schema) CreateArgs() []string {
	args := []string{s.Index, "ON", "HASH", "PREFIX", "1", s.Prefix, "SCHEMA"}
	for _, f := range s.Fields {
		args = append(args, f.Name)
		switch f.Kind {
		case FieldTag:
			args = append(args, "TAG")
		case FieldNumeric:
			args = append(args, "NUMERIC")
		case FieldVector:
			args = append(args, vectorArgs(f.Vector)...)
		}
	}
	return args
}

func vectorArgs(v VectorSpec) []string {
	attrs := []string{
		"TYPE", "FLOAT32",
		"DIM", strconv.Itoa(v.Dim),
		"DISTANCE_METRIC", string(v.Metric),
	}
	if v.M > 0 {
		attrs = append(attrs, "M", strconv.Itoa(v.M))
	}
	if v.EFConstruction > 0 {
		attrs = append(attrs, "EF_CONSTRUCTION", strconv.Itoa(v.EFConstruction))
	}
	return append([]string{"VECTOR", "HNSW", strconv.Itoa(len(attrs))}, attrs...)
}

// IsValidIdentifier reports whether s matches [a-zA-Z0-9_:-]+.
func IsValidIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '_', r == ':', r == '-':
		default:
			return false
		}
	}
	return true
}
