package vectorstore

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"testing"

	"github.com/kailas-cloud/ragdex/internal/db"
	"github.com/kailas-cloud/ragdex/internal/domain/record"
)

// fakeRedis is an in-memory redisStore. SearchKNN does brute-force cosine
// and returns distance ties in reverse key order so callers must re-rank.
type fakeRedis struct {
	hashes    map[string]map[string]string
	counters  map[string]int64
	indexes   map[string]*db.Schema
	hsetErrAt map[string]error
	searchErr error
	searchK   int
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{
		hashes:    map[string]map[string]string{},
		counters:  map[string]int64{},
		indexes:   map[string]*db.Schema{},
		hsetErrAt: map[string]error{},
	}
}

func (f *fakeRedis) HSet(_ context.Context, key string, fields map[string]string) error {
	if err := f.hsetErrAt[key]; err != nil {
		return err
	}
	h := f.hashes[key]
	if h == nil {
		h = map[string]string{}
		f.hashes[key] = h
	}
	for k, v := range fields {
		h[k] = v
	}
	return nil
}

func (f *fakeRedis) HGetAll(_ context.Context, key string) (map[string]string, error) {
	out := map[string]string{}
	for k, v := range f.hashes[key] {
		out[k] = v
	}
	return out, nil
}

func (f *fakeRedis) Scan(_ context.Context, pattern string) ([]string, error) {
	prefix := strings.TrimSuffix(pattern, "*")
	var keys []string
	for k := range f.hashes {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

func (f *fakeRedis) Del(_ context.Context, keys ...string) (int, error) {
	n := 0
	for _, k := range keys {
		if _, ok := f.hashes[k]; ok {
			delete(f.hashes, k)
			n++
		}
	}
	return n, nil
}

func (f *fakeRedis) IncrBy(_ context.Context, key string, delta int64) (int64, error) {
	f.counters[key] += delta
	return f.counters[key], nil
}

func (f *fakeRedis) CreateIndex(_ context.Context, s *db.Schema) error {
	if _, ok := f.indexes[s.Index]; ok {
		return db.ErrIndexExists
	}
	f.indexes[s.Index] = s
	return nil
}

func (f *fakeRedis) SearchKNN(_ context.Context, q *db.KNNQuery) ([]db.Neighbor, error) {
	f.searchK = q.K
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	schema, ok := f.indexes[q.Index]
	if !ok {
		return nil, db.ErrIndexNotFound
	}

	out := []db.Neighbor{}
	for key, h := range f.hashes {
		if !strings.HasPrefix(key, schema.Prefix) {
			continue
		}
		vec, err := db.DecodeVector(h[q.Field])
		if err != nil {
			return nil, err
		}
		out = append(out, db.Neighbor{
			Key:      key,
			Distance: 1 - cosine(q.Vector, vec),
			Fields: map[string]string{
				fieldID:   h[fieldID],
				fieldText: h[fieldText],
				fieldSeq:  h[fieldSeq],
			},
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Distance != out[j].Distance {
			return out[i].Distance < out[j].Distance
		}
		return out[i].Key > out[j].Key
	})
	if len(out) > q.K {
		out = out[:q.K]
	}
	return out, nil
}

func (f *fakeRedis) Ping(_ context.Context) error { return nil }

func newTestRedis(t *testing.T, dim int) (*Redis, *fakeRedis) {
	t.Helper()
	f := newFakeRedis()
	return NewRedis(f, "test:", "docs", dim, HNSW{M: 16, EFConstruct: 200}), f
}

func mustRecord(t *testing.T, id string, vec []float32, text string) record.Record {
	t.Helper()
	r, err := record.New(id, vec, text, map[string]string{"source": "doc_" + strings.TrimPrefix(id, "id_")})
	if err != nil {
		t.Fatalf("record.New: %v", err)
	}
	return r
}

func seqOf(t *testing.T, f *fakeRedis, key string) int64 {
	t.Helper()
	n, err := strconv.ParseInt(f.hashes[key][fieldSeq], 10, 64)
	if err != nil {
		t.Fatalf("parse seq of %s: %v", key, err)
	}
	return n
}
