package storage

import (
	"context"
	"math"
	"sort"

	"mediaIndex/core"
	"mediaIndex/inference"
)

// SearchIndex answers nearest-neighbor queries over a job's embeddings.
// Add is called once per persisted vector so backends that keep their own
// index (Milvus) stay in sync; the linear index reads straight from the
// store and ignores it.
type SearchIndex interface {
	Add(ctx context.Context, jobID string, vec *core.EmbeddingVector, start, end float64) error
	Search(ctx context.Context, jobID, query string, topK int) ([]core.Hit, error)
}

// LinearIndex is the reference implementation: embed the query, load every
// vector for the job, score by cosine similarity. Linear in the number of
// stored vectors, which is acceptable at per-job scale.
type LinearIndex struct {
	store    Store
	embedder inference.Embedder
}

func NewLinearIndex(store Store, embedder inference.Embedder) *LinearIndex {
	return &LinearIndex{store: store, embedder: embedder}
}

// Add is a no-op: the store already holds the vector.
func (x *LinearIndex) Add(context.Context, string, *core.EmbeddingVector, float64, float64) error {
	return nil
}

func (x *LinearIndex) Search(ctx context.Context, jobID, query string, topK int) ([]core.Hit, error) {
	vectors, err := x.store.VectorsForJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return []core.Hit{}, nil
	}

	queryVec, err := x.embedder.Embed(ctx, query)
	if err != nil {
		return nil, err
	}

	hits := make([]core.Hit, 0, len(vectors))
	for _, v := range vectors {
		start, end := x.sourceRange(ctx, &v)
		hits = append(hits, core.Hit{
			SourceID:  v.SourceID,
			Score:     Cosine(queryVec, v.Vector),
			StartTime: start,
			EndTime:   end,
			Text:      v.Text,
		})
	}
	// Stable: equal scores keep insertion order.
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })

	if topK <= 0 {
		topK = 5
	}
	if topK > len(hits) {
		topK = len(hits)
	}
	return hits[:topK], nil
}

// sourceRange resolves the originating time range: a transcript chunk spans
// its window, a frame is a point in time.
func (x *LinearIndex) sourceRange(ctx context.Context, v *core.EmbeddingVector) (float64, float64) {
	if chunk, err := x.store.ChunkByID(ctx, v.SourceID); err == nil {
		return chunk.StartTime, chunk.EndTime
	}
	if frame, err := x.store.FrameByID(ctx, v.SourceID); err == nil {
		return frame.Timestamp, frame.Timestamp
	}
	return 0, 0
}

// Cosine returns the cosine similarity of two vectors; 0 when either is
// zero-length or all zeros.
func Cosine(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
