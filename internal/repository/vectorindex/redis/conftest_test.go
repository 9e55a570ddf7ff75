package redis

import (
	"context"
	"strconv"

	"github.com/kailas-cloud/pagegen/internal/db"
)

// mockStore implements the consumer interface for tests.
type mockStore struct {
	created   []*db.IndexDefinition
	hashes    []db.Hash
	dropped   []string
	lastQuery *db.KNNQuery

	createErr error
	putErr    error
	dropErr   error
	searchFn  func(ctx context.Context, q db.KNNQuery) ([]db.Hit, error)
}

func (m *mockStore) CreateIndex(_ context.Context, def *db.IndexDefinition) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.created = append(m.created, def)
	return nil
}

func (m *mockStore) PutHashes(_ context.Context, hashes []db.Hash) error {
	if m.putErr != nil {
		return m.putErr
	}
	m.hashes = append(m.hashes, hashes...)
	return nil
}

func (m *mockStore) DropIndex(_ context.Context, name string) error {
	if m.dropErr != nil {
		return m.dropErr
	}
	m.dropped = append(m.dropped, name)
	return nil
}

func (m *mockStore) SearchKNN(ctx context.Context, q db.KNNQuery) ([]db.Hit, error) {
	m.lastQuery = &q
	if m.searchFn != nil {
		return m.searchFn(ctx, q)
	}
	return nil, nil
}

func newTestOpener(m *mockStore) *Opener {
	o := NewOpener(m, nil)
	o.newID = func() string { return "run-1" }
	return o
}

func hitFields(text, source string, ordinal int) map[string]string {
	return map[string]string{
		fieldText:    text,
		fieldSource:  source,
		fieldOrdinal: strconv.Itoa(ordinal),
		fieldOverlap: "0",
	}
}
