package memory

import (
	"context"
	"testing"

	"github.com/kailas-cloud/pagegen/internal/domain/chunk"
)

func chunks(texts ...string) []chunk.Chunk {
	out := make([]chunk.Chunk, len(texts))
	for i, t := range texts {
		out[i] = chunk.New(t, "doc.pdf", i, 0)
	}
	return out
}

func TestStore_Nearest(t *testing.T) {
	s := NewStore(2)
	err := s.Insert(context.Background(),
		chunks("east", "north", "northeast"),
		[][]float32{{1, 0}, {0, 1}, {1, 1}},
	)
	if err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	got, err := s.Nearest(context.Background(), []float32{0, 2}, 2)
	if err != nil {
		t.Fatalf("Nearest failed: %v", err)
	}
	if len(got) != 2 || got[0].Text() != "north" || got[1].Text() != "northeast" {
		t.Errorf("got %v", texts(got))
	}
}

func TestStore_TiesByOrdinal(t *testing.T) {
	s := NewStore(2)
	cs := []chunk.Chunk{
		chunk.New("late", "a.pdf", 5, 0),
		chunk.New("early", "a.pdf", 1, 0),
		chunk.New("middle", "a.pdf", 3, 0),
	}
	if err := s.Insert(context.Background(), cs, [][]float32{{1, 0}, {2, 0}, {3, 0}}); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	got, err := s.Nearest(context.Background(), []float32{1, 0}, 3)
	if err != nil {
		t.Fatalf("Nearest failed: %v", err)
	}
	want := []string{"early", "middle", "late"}
	for i, w := range want {
		if got[i].Text() != w {
			t.Errorf("got %v, want %v", texts(got), want)
			break
		}
	}
}

func TestStore_KLargerThanLen(t *testing.T) {
	s := NewStore(1)
	_ = s.Insert(context.Background(), chunks("a"), [][]float32{{1}})

	got, err := s.Nearest(context.Background(), []float32{1}, 10)
	if err != nil || len(got) != 1 {
		t.Fatalf("got %d, %v", len(got), err)
	}
}

func TestStore_DimensionMismatch(t *testing.T) {
	s := NewStore(3)
	if err := s.Insert(context.Background(), chunks("a"), [][]float32{{1, 2}}); err == nil {
		t.Error("expected insert error")
	}
	if _, err := s.Nearest(context.Background(), []float32{1}, 1); err == nil {
		t.Error("expected query error")
	}
	if err := s.Insert(context.Background(), chunks("a", "b"), [][]float32{{1, 2, 3}}); err == nil {
		t.Error("expected count mismatch error")
	}
}

func TestStore_Drop(t *testing.T) {
	s := NewStore(1)
	_ = s.Insert(context.Background(), chunks("a", "b"), [][]float32{{1}, {2}})
	if err := s.Drop(context.Background()); err != nil {
		t.Fatalf("Drop failed: %v", err)
	}
	if s.Len() != 0 {
		t.Errorf("Len() = %d after Drop", s.Len())
	}
}

func TestOpener(t *testing.T) {
	if _, err := NewOpener().Open(context.Background(), 0); err == nil {
		t.Error("expected error for zero dimensions")
	}
	st, err := NewOpener().Open(context.Background(), 4)
	if err != nil || st == nil {
		t.Fatalf("Open failed: %v", err)
	}
}

func texts(cs []chunk.Chunk) []string {
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = c.Text()
	}
	return out
}
