package vectorstore

import (
	"context"
	"fmt"
	"math"
	"sync"

	"github.com/kailas-cloud/ragdex/internal/domain"
	"github.com/kailas-cloud/ragdex/internal/domain/record"
)

// Memory is an in-process vector store with exact cosine search.
// Records live for the process lifetime only.
type Memory struct {
	mu      sync.RWMutex
	dim     int
	nextSeq int64
	entries []memEntry
	byID    map[string]int
}

type memEntry struct {
	rec record.Record
	seq int64
}

// NewMemory creates an empty store. dim <= 0 fixes the dimension from the first record.
func NewMemory(dim int) *Memory {
	return &Memory{dim: max(dim, 0), byID: make(map[string]int)}
}

// Add upserts records one at a time. Each record becomes visible atomically;
// an upsert keeps the record's original insertion position.
func (m *Memory) Add(_ context.Context, recs []record.Record) error {
	for i, r := range recs {
		if err := m.put(r); err != nil {
			return &domain.PartialWriteError{Written: i, FailedID: r.ID(), Err: err}
		}
	}
	return nil
}

func (m *Memory) put(r record.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.dim == 0 {
		m.dim = r.Dim()
	}
	if r.Dim() != m.dim {
		return fmt.Errorf("%w: record %q has %d, store has %d", domain.ErrVectorDimMismatch, r.ID(), r.Dim(), m.dim)
	}

	if pos, ok := m.byID[r.ID()]; ok {
		m.entries[pos].rec = r
		return nil
	}
	m.nextSeq++
	m.byID[r.ID()] = len(m.entries)
	m.entries = append(m.entries, memEntry{rec: r, seq: m.nextSeq})
	return nil
}

// Query returns the k records most similar to vec.
func (m *Memory) Query(_ context.Context, vec []float32, k int) ([]record.Hit, error) {
	if k <= 0 {
		return nil, fmt.Errorf("k must be positive, got %d", k)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if len(m.entries) == 0 {
		return []record.Hit{}, nil
	}
	if len(vec) != m.dim {
		return nil, fmt.Errorf("%w: query has %d, store has %d", domain.ErrVectorDimMismatch, len(vec), m.dim)
	}

	cands := make([]candidate, len(m.entries))
	for i, e := range m.entries {
		cands[i] = candidate{
			hit: record.Hit{ID: e.rec.ID(), Text: e.rec.Text(), Score: cosine(vec, e.rec.Vector())},
			seq: e.seq,
		}
	}
	return rank(cands, k), nil
}

// Count returns the number of stored records.
func (m *Memory) Count(_ context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries), nil
}

// Delete removes records by id. Unknown ids are ignored; the survivors keep
// their insertion order.
func (m *Memory) Delete(_ context.Context, ids []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	drop := make(map[string]bool, len(ids))
	for _, id := range ids {
		drop[id] = true
	}
	kept := m.entries[:0]
	for _, e := range m.entries {
		if drop[e.rec.ID()] {
			delete(m.byID, e.rec.ID())
			continue
		}
		m.byID[e.rec.ID()] = len(kept)
		kept = append(kept, e)
	}
	clear(m.entries[len(kept):])
	m.entries = kept
	return nil
}

// Ping always succeeds.
func (m *Memory) Ping(_ context.Context) error { return nil }

// Close is a no-op.
func (m *Memory) Close() {}

func cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
