package redis

import (
	"context"
	"strconv"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/pagegen/internal/db"
)

// CreateIndex runs FT.CREATE for def. An existing index yields db.ErrIndexExists.
func (s *Store) CreateIndex(ctx context.Context, def *db.IndexDefinition) error {
	if err := def.Validate(); err != nil {
		return err
	}

	cmd := s.client.B().Arbitrary("FT.CREATE").Args(createArgs(def)...).Build()
	if err := s.client.Do(ctx, cmd).Error(); err != nil {
		if serverErrorContains(err, "index already exists") {
			return db.ErrIndexExists
		}
		return &db.CommandError{Command: "FT.CREATE", Key: def.Name, Err: err}
	}
	return nil
}

// DropIndex runs FT.DROPINDEX name DD. Valkey reports a missing index as "not found".
func (s *Store) DropIndex(ctx context.Context, name string) error {
	cmd := s.client.B().Arbitrary("FT.DROPINDEX").Args(name, "DD").Build()
	if err := s.client.Do(ctx, cmd).Error(); err != nil {
		if serverErrorContains(err, "unknown index name", "not found") {
			return db.ErrIndexNotFound
		}
		return &db.CommandError{Command: "FT.DROPINDEX", Key: name, Err: err}
	}
	return nil
}

// PutHashes pipelines one HSET per hash. The first failing key is reported.
func (s *Store) PutHashes(ctx context.Context, hashes []db.Hash) error {
	if len(hashes) == 0 {
		return nil
	}

	cmds := make(rueidis.Commands, 0, len(hashes))
	for _, h := range hashes {
		fv := s.client.B().Hset().Key(h.Key).FieldValue()
		for f, v := range h.Fields {
			fv = fv.FieldValue(f, v)
		}
		cmds = append(cmds, fv.Build())
	}

	for i, res := range s.client.DoMulti(ctx, cmds...) {
		if err := res.Error(); err != nil {
			return &db.CommandError{Command: "HSET", Key: hashes[i].Key, Err: err}
		}
	}
	return nil
}

// createArgs renders FT.CREATE arguments: numeric attributes first, then the vector.
func createArgs(def *db.IndexDefinition) []string {
	args := []string{def.Name, "ON", "HASH", "PREFIX", "1", def.Prefix, "SCHEMA"}
	for _, f := range def.Numeric {
		args = append(args, f, "NUMERIC")
	}

	v := def.Vector
	algo := v.Algorithm
	if algo == "" {
		algo = db.VectorFlat
	}
	distance := v.Distance
	if distance == "" {
		distance = db.DistanceCosine
	}

	attrs := []string{
		"TYPE", "FLOAT32",
		"DIM", strconv.Itoa(v.Dim),
		"DISTANCE_METRIC", string(distance),
	}
	if algo == db.VectorHNSW {
		if v.M > 0 {
			attrs = append(attrs, "M", strconv.Itoa(v.M))
		}
		if v.EFConstruct > 0 {
			attrs = append(attrs, "EF_CONSTRUCTION", strconv.Itoa(v.EFConstruct))
		}
	}

	args = append(args, def.VectorName(), "VECTOR", string(algo), strconv.Itoa(len(attrs)))
	return append(args, attrs...)
}
