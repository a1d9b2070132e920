package db

import (
	"errors"
	"slices"
	"strings"
	"testing"
)

func TestSchema_RecordIndex(t *testing.T) {
	s, err := NewSchema("ragdex:idx:documents", "ragdex:rec:documents:").
		Tag("source").
		Numeric("__seq").
		HNSW("vector", VectorSpec{Dim: 1024, M: 16, EFConstruction: 200}).
		Build()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got := strings.Join(s.CreateArgs(), " ")
	want := "ragdex:idx:documents ON HASH PREFIX 1 ragdex:rec:documents: SCHEMA " +
		"source TAG __seq NUMERIC " +
		"vector VECTOR HNSW 10 TYPE FLOAT32 DIM 1024 DISTANCE_METRIC COSINE M 16 EF_CONSTRUCTION 200"
	if got != want {
		t.Errorf("CreateArgs:\n got %s\nwant %s", got, want)
	}
}

func TestSchema_ServerDefaults(t *testing.T) {
	s, err := NewSchema("idx", "rec:").HNSW("v", VectorSpec{Dim: 4, Metric: MetricIP}).Build()
	if err != nil {
		t.Fatal(err)
	}
	args := s.CreateArgs()
	if slices.Contains(args, "M") || slices.Contains(args, "EF_CONSTRUCTION") {
		t.Errorf("unset HNSW params must be omitted: %v", args)
	}
	if !slices.Contains(args, "IP") || !slices.Contains(args, "6") {
		t.Errorf("unexpected vector args: %v", args)
	}
}

func TestSchema_Validate(t *testing.T) {
	tests := []struct {
		name string
		b    *SchemaBuilder
	}{
		{"bad index name", NewSchema("idx with space", "rec:").Tag("t")},
		{"no prefix", NewSchema("idx", "").Tag("t")},
		{"no fields", NewSchema("idx", "rec:")},
		{"duplicate", NewSchema("idx", "rec:").Tag("t").Numeric("t")},
		{"zero dim", NewSchema("idx", "rec:").HNSW("v", VectorSpec{})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := tt.b.Build(); err == nil {
				t.Error("expected validation error")
			}
		})
	}

	bad := &Schema{Index: "idx", Prefix: "rec:", Fields: []Field{{Name: "x", Kind: FieldKind(99)}}}
	if err := bad.Validate(); err == nil {
		t.Error("expected error for unknown kind")
	}
}

func TestKNNQuery_SearchArgs(t *testing.T) {
	q := &KNNQuery{Index: "idx", Field: "vector", Vector: []float32{1, 0}, K: 3, Return: []string{"id", "text"}}
	if err := q.Validate(); err != nil {
		t.Fatal(err)
	}
	args := q.SearchArgs()

	if args[0] != "idx" || args[1] != "*=>[KNN 3 @vector $BLOB]" {
		t.Errorf("unexpected query head %v", args[:2])
	}
	joined := strings.Join(args, " ")
	for _, want := range []string{
		"RETURN 3 __vector_score id text",
		"LIMIT 0 3",
		"DIALECT 2",
	} {
		if !strings.Contains(joined, want) {
			t.Errorf("expected %q in %q", want, joined)
		}
	}
	if strings.Contains(joined, "SORTBY") {
		t.Errorf("valkey-search rejects SORTBY on KNN queries: %q", joined)
	}
}

func TestKNNQuery_Validate(t *testing.T) {
	for _, q := range []KNNQuery{
		{Field: "v", Vector: []float32{1}, K: 1},
		{Index: "i", Vector: []float32{1}, K: 1},
		{Index: "i", Field: "v", K: 1},
		{Index: "i", Field: "v", Vector: []float32{1}},
	} {
		if err := q.Validate(); err == nil {
			t.Errorf("expected error for %+v", q)
		}
	}
}

func TestNeighbor_CosineSimilarity(t *testing.T) {
	for _, tc := range []struct{ d, want float64 }{{0, 1}, {0.25, 0.75}, {1, 0}, {1.6, 0}, {-0.0001, 1}} {
		if got := (Neighbor{Distance: tc.d}).CosineSimilarity(); got != tc.want {
			t.Errorf("distance %v: similarity %v, want %v", tc.d, got, tc.want)
		}
	}
}

func TestVector_RoundTrip(t *testing.T) {
	v := []float32{1.5, -2, 0, 3.25}
	blob := EncodeVector(v)
	if len(blob) != 16 {
		t.Fatalf("expected 16 bytes, got %d", len(blob))
	}
	back, err := DecodeVector(blob)
	if err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(back, v) {
		t.Errorf("round trip = %v, want %v", back, v)
	}
	if _, err := DecodeVector("abc"); err == nil {
		t.Error("expected error for misaligned blob")
	}
}

func TestError_Format(t *testing.T) {
	cause := errors.New("READONLY")
	err := &Error{Op: OpHSet, Key: "rec:id_0", Err: cause}
	if err.Error() != "HSET rec:id_0: READONLY" {
		t.Errorf("unexpected message %q", err.Error())
	}
	if !errors.Is(err, cause) {
		t.Error("Error must unwrap to its cause")
	}
	if (&Error{Op: OpScan, Err: cause}).Error() != "SCAN: READONLY" {
		t.Error("keyless error format")
	}
}
