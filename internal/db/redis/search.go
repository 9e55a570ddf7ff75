package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/pagegen/internal/db"
)

// distanceAlias is the attribute FT.SEARCH assigns to the KNN distance.
const distanceAlias = "__dist"

// SearchKNN returns up to q.K hits ordered by ascending cosine distance.
func (s *Store) SearchKNN(ctx context.Context, q db.KNNQuery) ([]db.Hit, error) {
	switch {
	case q.Index == "":
		return nil, errors.New("index name is required")
	case len(q.Vector) == 0:
		return nil, errors.New("vector is required")
	case q.K <= 0:
		return nil, errors.New("k must be positive")
	}

	field := q.Field
	if field == "" {
		field = db.DefaultVectorField
	}

	args := []string{q.Index, fmt.Sprintf("*=>[KNN %d @%s $BLOB AS %s]", q.K, field, distanceAlias)}
	if len(q.Return) > 0 {
		args = append(args, "RETURN", strconv.Itoa(len(q.Return)+1))
		args = append(args, q.Return...)
		args = append(args, distanceAlias)
	}
	args = append(args,
		"SORTBY", distanceAlias,
		"LIMIT", "0", strconv.Itoa(q.K),
		"PARAMS", "2", "BLOB", rueidis.BinaryString(db.EncodeVector(q.Vector)),
		"DIALECT", "2",
	)

	raw, err := s.client.Do(ctx, s.client.B().Arbitrary("FT.SEARCH").Args(args...).Build()).ToArray()
	if err != nil {
		return nil, &db.CommandError{Command: "FT.SEARCH", Key: q.Index, Err: err}
	}
	return parseHits(raw)
}

// parseHits reads a RESP2 reply: [total, key1, [f, v, ...], key2, ...].
func parseHits(raw []rueidis.RedisMessage) ([]db.Hit, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	if _, err := raw[0].AsInt64(); err != nil {
		return nil, fmt.Errorf("parse total: %w", err)
	}

	hits := make([]db.Hit, 0, (len(raw)-1)/2)
	for i := 1; i+1 < len(raw); i += 2 {
		key, err := raw[i].ToString()
		if err != nil {
			continue
		}
		pairs, err := raw[i+1].ToArray()
		if err != nil {
			continue
		}

		h := db.Hit{Key: key, Fields: make(map[string]string, len(pairs)/2)}
		for j := 0; j+1 < len(pairs); j += 2 {
			name, nerr := pairs[j].ToString()
			value, verr := pairs[j+1].ToString()
			if nerr != nil || verr != nil {
				continue
			}
			if name == distanceAlias {
				if d, err := strconv.ParseFloat(value, 64); err == nil {
					h.Similarity = max(0, 1-d)
				}
				continue
			}
			h.Fields[name] = value
		}
		hits = append(hits, h)
	}
	return hits, nil
}
