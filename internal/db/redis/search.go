package redis

import (
	"context"
	"fmt"
	"strconv"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/ragdex/internal/db"
)

// CreateIndex runs FT.CREATE. An existing index is db.ErrIndexExists.
func (s *Store) CreateIndex(ctx context.Context, schema *db.Schema) error {
	if err := schema.Validate(); err != nil {
		return fmt.Errorf("create index: %w", err)
	}
	cmd := s.client.B().Arbitrary("FT.CREATE").Args(schema.CreateArgs()...).Build()
	if err := s.do(ctx, cmd).Error(); err != nil {
		if indexExists(err) {
			return db.ErrIndexExists
		}
		return &db.Error{Op: db.OpCreateIndex, Key: schema.Index, Err: err}
	}
	return nil
}

// SearchKNN runs a KNN query, nearest first. A missing index is db.ErrIndexNotFound.
func (s *Store) SearchKNN(ctx context.Context, q *db.KNNQuery) ([]db.Neighbor, error) {
	if err := q.Validate(); err != nil {
		return nil, fmt.Errorf("knn query: %w", err)
	}
	cmd := s.client.B().Arbitrary("FT.SEARCH").Args(q.SearchArgs()...).Build()
	reply, err := s.do(ctx, cmd).ToArray()
	if err != nil {
		if indexMissing(err) {
			return nil, db.ErrIndexNotFound
		}
		return nil, &db.Error{Op: db.OpSearch, Key: q.Index, Err: err}
	}
	return parseNeighbors(reply, q.DistanceField())
}

// parseNeighbors reads the RESP2 reply [total, key1, [f, v, ...], key2, ...].
func parseNeighbors(reply []rueidis.RedisMessage, distField string) ([]db.Neighbor, error) {
	if len(reply) == 0 {
		return []db.Neighbor{}, nil
	}
	if _, err := reply[0].AsInt64(); err != nil {
		return nil, fmt.Errorf("parse total: %w", err)
	}

	out := make([]db.Neighbor, 0, (len(reply)-1)/2)
	for i := 1; i+1 < len(reply); i += 2 {
		key, err := reply[i].ToString()
		if err != nil {
			return nil, fmt.Errorf("parse key %d: %w", i/2, err)
		}
		pairs, err := reply[i+1].ToArray()
		if err != nil {
			return nil, fmt.Errorf("parse fields of %s: %w", key, err)
		}

		n := db.Neighbor{Key: key, Fields: make(map[string]string, len(pairs)/2)}
		for j := 0; j+1 < len(pairs); j += 2 {
			name, _ := pairs[j].ToString()
			val, _ := pairs[j+1].ToString()
			n.Fields[name] = val
		}
		d, ok := n.Fields[distField]
		if !ok {
			return nil, fmt.Errorf("hit %s has no %s", key, distField)
		}
		if n.Distance, err = strconv.ParseFloat(d, 64); err != nil {
			return nil, fmt.Errorf("parse distance of %s: %w", key, err)
		}
		delete(n.Fields, distField)
		out = append(out, n)
	}
	return out, nil
}
