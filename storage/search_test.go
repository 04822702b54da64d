package storage

import (
	"context"
	"math"
	"testing"

	"mediaIndex/core"
)

// fixedEmbedder returns the same query vector no matter the text, which
// makes similarity scores fully controlled by the stored vectors.
type fixedEmbedder struct {
	vec []float32
}

func (e *fixedEmbedder) Embed(context.Context, string) ([]float32, error) { return e.vec, nil }
func (e *fixedEmbedder) Dim() int                                         { return len(e.vec) }

func seedVectors(t *testing.T, store *MemoryStore, jobID string, vecs map[string][]float32, order []string) {
	t.Helper()
	ctx := context.Background()
	job := &core.Job{ID: jobID, Kind: core.MediaAudio, MediaName: jobID, Status: core.StatusComplete}
	if err := store.CreateJob(ctx, job); err != nil {
		t.Fatal(err)
	}
	for _, id := range order {
		err := store.InsertVector(ctx, &core.EmbeddingVector{
			ID:       id,
			JobID:    jobID,
			SourceID: id,
			Vector:   vecs[id],
			Text:     "text for " + id,
		})
		if err != nil {
			t.Fatal(err)
		}
	}
}

func TestLinearSearchRanksBySimilarity(t *testing.T) {
	store := NewMemoryStore()
	seedVectors(t, store, "job", map[string][]float32{
		"far":   {0, 1, 0},
		"near":  {1, 0.1, 0},
		"exact": {1, 0, 0},
	}, []string{"far", "near", "exact"})

	index := NewLinearIndex(store, &fixedEmbedder{vec: []float32{1, 0, 0}})
	hits, err := index.Search(context.Background(), "job", "anything", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 3 {
		t.Fatalf("hits = %d, want 3", len(hits))
	}
	if hits[0].SourceID != "exact" || hits[1].SourceID != "near" || hits[2].SourceID != "far" {
		t.Errorf("order = %s, %s, %s", hits[0].SourceID, hits[1].SourceID, hits[2].SourceID)
	}
	if math.Abs(hits[0].Score-1) > 1e-6 {
		t.Errorf("exact match score = %v, want 1", hits[0].Score)
	}
}

func TestLinearSearchStableTies(t *testing.T) {
	store := NewMemoryStore()
	// Identical vectors tie exactly; order must follow insertion order.
	same := []float32{0.5, 0.5, 0}
	seedVectors(t, store, "job", map[string][]float32{
		"first": same, "second": same, "third": same,
	}, []string{"first", "second", "third"})

	index := NewLinearIndex(store, &fixedEmbedder{vec: []float32{1, 0, 0}})
	for i := 0; i < 5; i++ {
		hits, err := index.Search(context.Background(), "job", "q", 3)
		if err != nil {
			t.Fatal(err)
		}
		if hits[0].SourceID != "first" || hits[1].SourceID != "second" || hits[2].SourceID != "third" {
			t.Fatalf("run %d: tie order = %s, %s, %s", i, hits[0].SourceID, hits[1].SourceID, hits[2].SourceID)
		}
	}
}

func TestLinearSearchTopKClamp(t *testing.T) {
	store := NewMemoryStore()
	seedVectors(t, store, "job", map[string][]float32{
		"a": {1, 0, 0}, "b": {0, 1, 0},
	}, []string{"a", "b"})
	index := NewLinearIndex(store, &fixedEmbedder{vec: []float32{1, 0, 0}})

	hits, err := index.Search(context.Background(), "job", "q", 100)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 2 {
		t.Errorf("topK beyond corpus: hits = %d, want 2", len(hits))
	}

	hits, err = index.Search(context.Background(), "job", "q", 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 1 {
		t.Errorf("topK = 1: hits = %d", len(hits))
	}
}

func TestLinearSearchEmptyJob(t *testing.T) {
	store := NewMemoryStore()
	job := &core.Job{ID: "empty", Kind: core.MediaAudio, MediaName: "empty", Status: core.StatusComplete}
	if err := store.CreateJob(context.Background(), job); err != nil {
		t.Fatal(err)
	}
	index := NewLinearIndex(store, &fixedEmbedder{vec: []float32{1, 0, 0}})

	hits, err := index.Search(context.Background(), "empty", "q", 5)
	if err != nil {
		t.Fatalf("no vectors is a valid state, not an error: %v", err)
	}
	if hits == nil || len(hits) != 0 {
		t.Errorf("hits = %v, want empty non-nil slice", hits)
	}
}

func TestCosine(t *testing.T) {
	cases := []struct {
		name string
		a, b []float32
		want float64
	}{
		{"identical", []float32{1, 2, 3}, []float32{1, 2, 3}, 1},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0},
		{"opposite", []float32{1, 0}, []float32{-1, 0}, -1},
		{"zero vector", []float32{0, 0}, []float32{1, 1}, 0},
		{"length mismatch", []float32{1}, []float32{1, 0}, 0},
	}
	for _, tc := range cases {
		if got := Cosine(tc.a, tc.b); math.Abs(got-tc.want) > 1e-6 {
			t.Errorf("%s: Cosine = %v, want %v", tc.name, got, tc.want)
		}
	}
}
