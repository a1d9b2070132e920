package vectorstore

import (
	"cmp"
	"slices"

	"github.com/kailas-cloud/ragdex/internal/domain/record"
)

// candidate is a hit plus its insertion sequence, used to break score ties.
type candidate struct {
	hit record.Hit
	seq int64
}

// rank orders candidates by score descending, then by insertion order
// (first-inserted wins), and keeps at most k.
func rank(cands []candidate, k int) []record.Hit {
	slices.SortStableFunc(cands, func(a, b candidate) int {
		if c := cmp.Compare(b.hit.Score, a.hit.Score); c != 0 {
			return c
		}
		return cmp.Compare(a.seq, b.seq)
	})
	if k < len(cands) {
		cands = cands[:k]
	}
	hits := make([]record.Hit, len(cands))
	for i, c := range cands {
		hits[i] = c.hit
	}
	return hits
}
