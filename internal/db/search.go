package db

import (
	"errors"
	"fmt"
	"strconv"
)

// KNNQuery asks for the K hashes whose Field vector is closest to Vector.
type KNNQuery struct {
	Index  string
	Field  string
	Vector []float32
	K      int
	Return []string // hash fields to return besides the distance
}

// Validate checks the query before it is sent.
func (q *KNNQuery) Validate() error {
	switch {
	case q.Index == "":
		return errors.New("index name is required")
	case q.Field == "":
		return errors.New("vector field is required")
	case len(q.Vector) == 0:
		return errors.New("query vector is required")
	case q.K <= 0:
		return fmt.Errorf("k must be positive, got %d", q.K)
	}
	return nil
}

// DistanceField is the alias the server gives the KNN distance of each hit.
func (q *KNNQuery) DistanceField() string {
	return "__" + q.Field + "_score"
}

// SearchArgs renders the FT.SEARCH arguments (without the command name).
// Hits come back unordered; callers rank them by distance.
func (q *KNNQuery) SearchArgs() []string {
	dist := q.DistanceField()
	args := []string{q.Index, fmt.Sprintf("*=>[KNN %d @%s $BLOB]", q.K, q.Field)}
	if len(q.Return) > 0 {
		args = append(args, "RETURN", strconv.Itoa(len(q.Return)+1), dist)
		args = append(args, q.Return...)
	}
	return append(args,
		"LIMIT", "0", strconv.Itoa(q.K),
		"PARAMS", "2", "BLOB", EncodeVector(q.Vector),
		"DIALECT", "2",
	)
}

// Neighbor is one KNN hit. Distance is the metric's distance as reported by
// the server (for COSINE: 1 - cosine similarity).
type Neighbor struct {
	Key      string
	Distance float64
	Fields   map[string]string
}

// CosineSimilarity converts a COSINE distance to a similarity in [0, 1].
func (n Neighbor) CosineSimilarity() float64 {
	return min(1, max(0, 1-n.Distance))
}
