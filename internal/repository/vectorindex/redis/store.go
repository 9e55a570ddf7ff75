// Package redis keeps a run's chunk vectors in a Redis or Valkey search index created for that run.
package redis

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kailas-cloud/pagegen/internal/db"
	"github.com/kailas-cloud/pagegen/internal/domain/chunk"
	"github.com/kailas-cloud/pagegen/internal/usecase/retrieval"
)

// DefaultKeyPrefix namespaces every key and index this package creates.
const DefaultKeyPrefix = "pagegen:"

// Hash fields of one stored chunk.
const (
	fieldText    = "text"
	fieldSource  = "source"
	fieldOrdinal = "ordinal"
	fieldOverlap = "overlap"
	fieldVector  = "vector"
)

// tieSlack extra candidates are fetched so equal scores at the k-th position resolve by ordinal.
const tieSlack = 8

var returnFields = []string{fieldText, fieldSource, fieldOrdinal, fieldOverlap}

// store is the consumer interface for the vector index (ISP).
type store interface {
	CreateIndex(ctx context.Context, def *db.IndexDefinition) error
	DropIndex(ctx context.Context, name string) error
	PutHashes(ctx context.Context, hashes []db.Hash) error
	SearchKNN(ctx context.Context, q db.KNNQuery) ([]db.Hit, error)
}

// HNSWConfig HNSW index parameters; zero values keep the server defaults.
type HNSWConfig struct {
	M           int
	EFConstruct int
}

// Opener creates one FT index per run.
type Opener struct {
	store     store
	keyPrefix string
	algo      db.VectorAlgorithm
	hnsw      HNSWConfig
	newID     func() string
	logger    *zap.Logger
}

// NewOpener creates an Opener over s using FLAT cosine indexes.
func NewOpener(s store, logger *zap.Logger) *Opener {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Opener{
		store:     s,
		keyPrefix: DefaultKeyPrefix,
		algo:      db.VectorFlat,
		newID:     uuid.NewString,
		logger:    logger,
	}
}

// WithKeyPrefix overrides DefaultKeyPrefix.
func (o *Opener) WithKeyPrefix(prefix string) *Opener {
	if prefix != "" {
		o.keyPrefix = prefix
	}
	return o
}

// WithAlgorithm selects the vector algorithm of new indexes. hnsw applies only to HNSW.
func (o *Opener) WithAlgorithm(algo db.VectorAlgorithm, hnsw HNSWConfig) *Opener {
	if algo != "" {
		o.algo = algo
	}
	o.hnsw = hnsw
	return o
}

// Open implements retrieval.StoreOpener: FT.CREATE over a fresh key prefix.
func (o *Opener) Open(ctx context.Context, dimensions int) (retrieval.VectorStore, error) {
	if dimensions <= 0 {
		return nil, fmt.Errorf("invalid vector dimensions %d", dimensions)
	}

	id := o.newID()
	name := o.keyPrefix + "idx:" + id
	keyPrefix := o.keyPrefix + "chunk:" + id + ":"

	def := &db.IndexDefinition{
		Name:    name,
		Prefix:  keyPrefix,
		Numeric: []string{fieldOrdinal},
		Vector: db.VectorField{
			Name:      fieldVector,
			Dim:       dimensions,
			Algorithm: o.algo,
			Distance:  db.DistanceCosine,
		},
	}
	if o.algo == db.VectorHNSW {
		def.Vector.M = o.hnsw.M
		def.Vector.EFConstruct = o.hnsw.EFConstruct
	}
	if err := def.Validate(); err != nil {
		return nil, fmt.Errorf("index definition: %w", err)
	}

	if err := o.store.CreateIndex(ctx, def); err != nil {
		return nil, fmt.Errorf("create index %s: %w", name, err)
	}

	o.logger.Debug("Vector index created",
		zap.String("index", name),
		zap.Int("dimensions", dimensions),
		zap.String("algorithm", string(o.algo)),
	)

	return &Store{
		store:     o.store,
		name:      name,
		keyPrefix: keyPrefix,
		dims:      dimensions,
		logger:    o.logger,
	}, nil
}

// Store is one run's FT index. Drop removes the index together with its hashes.
type Store struct {
	store     store
	name      string
	keyPrefix string
	dims      int
	logger    *zap.Logger

	mu      sync.Mutex
	count   int
	dropped bool
}

// Name returns the FT index name.
func (s *Store) Name() string { return s.name }

// Insert writes one hash per chunk in a single pipelined round-trip.
func (s *Store) Insert(ctx context.Context, chunks []chunk.Chunk, vectors [][]float32) error {
	if len(chunks) != len(vectors) {
		return fmt.Errorf("got %d vectors for %d chunks", len(vectors), len(chunks))
	}

	hashes := make([]db.Hash, len(chunks))
	for i, c := range chunks {
		if len(vectors[i]) != s.dims {
			return fmt.Errorf("vector %d has %d dimensions, want %d", i, len(vectors[i]), s.dims)
		}
		hashes[i] = db.Hash{
			Key: s.keyPrefix + strconv.Itoa(c.Ordinal()),
			Fields: map[string]string{
				fieldText:    c.Text(),
				fieldSource:  c.SourceID(),
				fieldOrdinal: strconv.Itoa(c.Ordinal()),
				fieldOverlap: strconv.Itoa(c.Overlap()),
				fieldVector:  string(db.EncodeVector(vectors[i])),
			},
		}
	}

	if err := s.store.PutHashes(ctx, hashes); err != nil {
		return fmt.Errorf("store chunks: %w", err)
	}

	s.mu.Lock()
	s.count += len(hashes)
	s.mu.Unlock()
	return nil
}

// Nearest runs a KNN query and orders hits by similarity, then ordinal.
func (s *Store) Nearest(ctx context.Context, vector []float32, k int) ([]chunk.Chunk, error) {
	if len(vector) != s.dims {
		return nil, fmt.Errorf("query has %d dimensions, want %d", len(vector), s.dims)
	}
	if k <= 0 {
		return nil, nil
	}

	res, err := s.store.SearchKNN(ctx, db.KNNQuery{
		Index:  s.name,
		Field:  fieldVector,
		Vector: vector,
		K:      k + tieSlack,
		Return: returnFields,
	})
	if err != nil {
		return nil, fmt.Errorf("knn search: %w", err)
	}

	type hit struct {
		chunk chunk.Chunk
		score float64
	}
	hits := make([]hit, 0, len(res))
	for _, e := range res {
		c, err := chunkFromFields(e.Fields)
		if err != nil {
			s.logger.Warn("Skipping malformed chunk hash", zap.String("key", e.Key), zap.Error(err))
			continue
		}
		hits = append(hits, hit{chunk: c, score: e.Similarity})
	}

	sort.SliceStable(hits, func(a, b int) bool {
		if hits[a].score != hits[b].score {
			return hits[a].score > hits[b].score
		}
		return hits[a].chunk.Ordinal() < hits[b].chunk.Ordinal()
	})

	out := make([]chunk.Chunk, 0, min(k, len(hits)))
	for _, h := range hits[:min(k, len(hits))] {
		out = append(out, h.chunk)
	}
	return out, nil
}

// Drop removes the index and its documents. Dropping twice is a no-op.
func (s *Store) Drop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dropped {
		return nil
	}

	if err := s.store.DropIndex(ctx, s.name); err != nil && !errors.Is(err, db.ErrIndexNotFound) {
		return fmt.Errorf("drop index %s: %w", s.name, err)
	}
	s.dropped = true
	s.logger.Debug("Vector index dropped", zap.String("index", s.name), zap.Int("chunks", s.count))
	return nil
}

// Len returns the number of chunks inserted through this Store.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count
}

func chunkFromFields(fields map[string]string) (chunk.Chunk, error) {
	ordinal, err := strconv.Atoi(fields[fieldOrdinal])
	if err != nil {
		return chunk.Chunk{}, fmt.Errorf("ordinal: %w", err)
	}
	overlap, err := strconv.Atoi(fields[fieldOverlap])
	if err != nil {
		overlap = 0
	}
	return chunk.New(fields[fieldText], fields[fieldSource], ordinal, overlap), nil
}
