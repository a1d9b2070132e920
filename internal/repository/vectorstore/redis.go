package vectorstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"github.com/kailas-cloud/ragdex/internal/db"
	"github.com/kailas-cloud/ragdex/internal/domain"
	"github.com/kailas-cloud/ragdex/internal/domain/record"
)

// Hash field names of a stored record.
const (
	fieldID       = "id"
	fieldText     = "text"
	fieldSource   = "source"
	fieldMetadata = "metadata"
	fieldVector   = "vector"
	fieldSeq      = "__seq"
	fieldDim      = "dim"
)

// tieWindow is how many extra neighbors Query fetches so that records tied
// at the k-th score can still be ordered by insertion.
const tieWindow = 8

// redisStore is the consumer interface for the Redis/Valkey backend (ISP).
type redisStore interface {
	db.Pinger
	db.Hashes
	db.Indexes
	IncrBy(ctx context.Context, key string, delta int64) (int64, error)
}

// HNSW holds the vector index build parameters.
type HNSW struct {
	M           int
	EFConstruct int
}

// Redis stores records as hashes under one FT index with an HNSW cosine field.
// The first write fixes the collection's dimension in a meta hash.
type Redis struct {
	store      redisStore
	prefix     string
	collection string
	hnsw       HNSW

	mu    sync.Mutex
	dim   int // configured or discovered; 0 until known
	ready bool
}

// NewRedis creates the Redis/Valkey vector store. dim > 0 pins the expected dimension.
func NewRedis(s redisStore, keyPrefix, collection string, dim int, hnsw HNSW) *Redis {
	return &Redis{
		store:      s,
		prefix:     keyPrefix,
		collection: collection,
		hnsw:       hnsw,
		dim:        max(dim, 0),
	}
}

// Add upserts records one HSET at a time; a failure stops the batch and
// reports how many records were stored before it.
func (r *Redis) Add(ctx context.Context, recs []record.Record) error {
	if len(recs) == 0 {
		return nil
	}

	dim, err := r.ensureIndex(ctx, recs[0].Dim())
	if err != nil {
		return &domain.PartialWriteError{FailedID: recs[0].ID(), Err: err}
	}

	for i, rec := range recs {
		if err := r.put(ctx, rec, dim); err != nil {
			return &domain.PartialWriteError{Written: i, FailedID: rec.ID(), Err: err}
		}
	}
	return nil
}

func (r *Redis) put(ctx context.Context, rec record.Record, dim int) error {
	if rec.Dim() != dim {
		return fmt.Errorf("%w: record %q has %d, store has %d", domain.ErrVectorDimMismatch, rec.ID(), rec.Dim(), dim)
	}

	key := r.recordKey(rec.ID())

	// An upsert keeps the original sequence so tie order stays first-inserted.
	existing, err := r.store.HGetAll(ctx, key)
	if err != nil {
		return fmt.Errorf("hgetall %s: %w", key, err)
	}
	seq := existing[fieldSeq]
	if seq == "" {
		n, err := r.store.IncrBy(ctx, r.seqKey(), 1)
		if err != nil {
			return fmt.Errorf("next seq: %w", err)
		}
		seq = strconv.FormatInt(n, 10)
	}

	meta, err := json.Marshal(rec.Metadata())
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}

	fields := map[string]string{
		fieldID:       rec.ID(),
		fieldText:     rec.Text(),
		fieldSource:   rec.Metadata()["source"],
		fieldMetadata: string(meta),
		fieldVector:   db.EncodeVector(rec.Vector()),
		fieldSeq:      seq,
	}
	if err := r.store.HSet(ctx, key, fields); err != nil {
		return fmt.Errorf("hset %s: %w", key, err)
	}
	return nil
}

// Query returns the k nearest records. A collection that was never written
// to yields an empty result.
func (r *Redis) Query(ctx context.Context, vec []float32, k int) ([]record.Hit, error) {
	if k <= 0 {
		return nil, fmt.Errorf("k must be positive, got %d", k)
	}

	dim, err := r.storedDim(ctx)
	if err != nil {
		return nil, err
	}
	if dim == 0 {
		return []record.Hit{}, nil
	}
	if len(vec) != dim {
		return nil, fmt.Errorf("%w: query has %d, store has %d", domain.ErrVectorDimMismatch, len(vec), dim)
	}

	neighbors, err := r.store.SearchKNN(ctx, &db.KNNQuery{
		Index:  r.indexName(),
		Field:  fieldVector,
		Vector: vec,
		K:      k + tieWindow,
		Return: []string{fieldID, fieldText, fieldSeq},
	})
	if err != nil {
		if errors.Is(err, db.ErrIndexNotFound) {
			return []record.Hit{}, nil
		}
		return nil, fmt.Errorf("knn %s: %w", r.collection, err)
	}

	cands := make([]candidate, 0, len(neighbors))
	for _, n := range neighbors {
		seq, _ := strconv.ParseInt(n.Fields[fieldSeq], 10, 64)
		cands = append(cands, candidate{
			hit: record.Hit{ID: n.Fields[fieldID], Text: n.Fields[fieldText], Score: n.CosineSimilarity()},
			seq: seq,
		})
	}
	return rank(cands, k), nil
}

// Count returns the number of stored records.
func (r *Redis) Count(ctx context.Context) (int, error) {
	keys, err := r.store.Scan(ctx, r.recordKey("*"))
	if err != nil {
		return 0, fmt.Errorf("scan %s: %w", r.collection, err)
	}
	return len(keys), nil
}

// Delete removes records by id. Unknown ids are ignored.
func (r *Redis) Delete(ctx context.Context, ids []string) error {
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = r.recordKey(id)
	}
	if _, err := r.store.Del(ctx, keys...); err != nil {
		return fmt.Errorf("delete from %s: %w", r.collection, err)
	}
	return nil
}

// Ping checks the backing store.
func (r *Redis) Ping(ctx context.Context) error {
	return r.store.Ping(ctx)
}

// ensureIndex fixes the collection dimension on first write and creates the FT index.
func (r *Redis) ensureIndex(ctx context.Context, firstDim int) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.ready {
		return r.dim, nil
	}

	stored, err := r.storedDim(ctx)
	if err != nil {
		return 0, err
	}

	dim := stored
	switch {
	case stored != 0 && r.dim != 0 && stored != r.dim:
		return 0, fmt.Errorf("%w: collection %q was built with %d, configured %d",
			domain.ErrVectorDimMismatch, r.collection, stored, r.dim)
	case stored == 0 && r.dim != 0:
		dim = r.dim
	case stored == 0:
		dim = firstDim
	}

	if stored == 0 {
		if err := r.store.HSet(ctx, r.metaKey(), map[string]string{fieldDim: strconv.Itoa(dim)}); err != nil {
			return 0, fmt.Errorf("hset %s: %w", r.metaKey(), err)
		}
	}

	// No TEXT field: valkey-search does not index it and KNN never needs it.
	schema, err := db.NewSchema(r.indexName(), r.recordKey("")).
		Tag(fieldSource).
		Numeric(fieldSeq).
		HNSW(fieldVector, db.VectorSpec{
			Dim:            dim,
			Metric:         db.MetricCosine,
			M:              r.hnsw.M,
			EFConstruction: r.hnsw.EFConstruct,
		}).
		Build()
	if err != nil {
		return 0, fmt.Errorf("build index: %w", err)
	}
	if err := r.store.CreateIndex(ctx, schema); err != nil && !errors.Is(err, db.ErrIndexExists) {
		return 0, fmt.Errorf("create index %s: %w", schema.Index, err)
	}

	r.dim = dim
	r.ready = true
	return dim, nil
}

// storedDim reads the collection dimension from the meta hash. 0 means nothing was written yet.
func (r *Redis) storedDim(ctx context.Context) (int, error) {
	meta, err := r.store.HGetAll(ctx, r.metaKey())
	if err != nil {
		return 0, fmt.Errorf("hgetall %s: %w", r.metaKey(), err)
	}
	dim, _ := strconv.Atoi(meta[fieldDim])
	return dim, nil
}

func (r *Redis) recordKey(id string) string {
	return fmt.Sprintf("%srec:%s:%s", r.prefix, r.collection, id)
}

func (r *Redis) indexName() string {
	return fmt.Sprintf("%sidx:%s", r.prefix, r.collection)
}

func (r *Redis) metaKey() string {
	return fmt.Sprintf("%smeta:%s", r.prefix, r.collection)
}

func (r *Redis) seqKey() string {
	return fmt.Sprintf("%sseq:%s", r.prefix, r.collection)
}
