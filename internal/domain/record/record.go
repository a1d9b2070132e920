package record

import (
	"errors"
	"fmt"
	"maps"
)

// Record is a stored (id, vector, text, metadata) tuple.
type Record struct {
	id       string
	vector   []float32
	text     string
	metadata map[string]string
}

// New validates and creates a Record. The vector is copied.
func New(id string, vector []float32, text string, metadata map[string]string) (Record, error) {
	if id == "" {
		return Record{}, errors.New("record ID is required")
	}
	if len(vector) == 0 {
		return Record{}, fmt.Errorf("record %q: vector is required", id)
	}
	return Record{
		id:       id,
		vector:   append([]float32(nil), vector...),
		text:     text,
		metadata: maps.Clone(metadata),
	}, nil
}

// ID returns the record id.
func (r Record) ID() string { return r.id }

// Vector returns the embedding.
func (r Record) Vector() []float32 { return r.vector }

// Text returns the stored text.
func (r Record) Text() string { return r.text }

// Metadata returns the stored metadata.
func (r Record) Metadata() map[string]string { return r.metadata }

// Dim returns the vector length.
func (r Record) Dim() int { return len(r.vector) }

// Hit is one nearest-neighbor result. Score is a similarity, higher is closer.
type Hit struct {
	ID    string
	Text  string
	Score float64
}

// Texts maps hits to their text, keeping rank order.
func Texts(hits []Hit) []string {
	out := make([]string, len(hits))
	for i, h := range hits {
		out[i] = h.Text
	}
	return out
}
