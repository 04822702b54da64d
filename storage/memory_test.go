package storage

import (
	"context"
	"errors"
	"testing"

	"mediaIndex/core"
)

func seedJob(t *testing.T, store *MemoryStore, id string) {
	t.Helper()
	job := &core.Job{ID: id, Kind: core.MediaVideo, MediaName: id, Status: core.StatusProcessing}
	if err := store.CreateJob(context.Background(), job); err != nil {
		t.Fatal(err)
	}
}

func TestChunkAtTimeHalfOpen(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	seedJob(t, store, "job")
	chunks := []core.TranscriptChunk{
		{ID: "c0", JobID: "job", ChunkIndex: 0, StartTime: 0, EndTime: 5},
		{ID: "c1", JobID: "job", ChunkIndex: 1, StartTime: 5, EndTime: 10},
	}
	for i := range chunks {
		if err := store.InsertChunk(ctx, &chunks[i]); err != nil {
			t.Fatal(err)
		}
	}

	cases := []struct {
		ts   float64
		want string
	}{
		{0, "c0"},
		{4.999, "c0"},
		{5, "c1"}, // boundary belongs to the later chunk
		{9.999, "c1"},
	}
	for _, tc := range cases {
		got, err := store.ChunkAtTime(ctx, "job", tc.ts)
		if err != nil {
			t.Fatalf("ts %v: %v", tc.ts, err)
		}
		if got.ID != tc.want {
			t.Errorf("ts %v: chunk %s, want %s", tc.ts, got.ID, tc.want)
		}
	}

	if _, err := store.ChunkAtTime(ctx, "job", 10); !errors.Is(err, ErrNotFound) {
		t.Errorf("ts at final end_time: err = %v, want ErrNotFound", err)
	}
	if _, err := store.ChunkAtTime(ctx, "job", -1); !errors.Is(err, ErrNotFound) {
		t.Errorf("negative ts: err = %v, want ErrNotFound", err)
	}
}

func TestFramesInRangeHalfOpen(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	seedJob(t, store, "job")
	for i, ts := range []float64{0, 2.5, 5, 7.5} {
		frame := &core.FrameRecord{ID: core.NewID(), JobID: "job", FrameIndex: i, Timestamp: ts}
		if err := store.InsertFrame(ctx, frame); err != nil {
			t.Fatal(err)
		}
	}
	frames, err := store.FramesInRange(ctx, "job", 0, 5)
	if err != nil {
		t.Fatal(err)
	}
	// The frame at exactly 5 belongs to the next range.
	if len(frames) != 2 {
		t.Fatalf("frames in [0,5) = %d, want 2", len(frames))
	}
}

func TestAssociationLookups(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	seedJob(t, store, "job")

	chunk := &core.TranscriptChunk{ID: "chunk1", JobID: "job", StartTime: 0, EndTime: 5}
	if err := store.InsertChunk(ctx, chunk); err != nil {
		t.Fatal(err)
	}
	frameIDs := []string{"f0", "f1", "f2"}
	var assocs []core.Association
	for i, id := range frameIDs {
		frame := &core.FrameRecord{ID: id, JobID: "job", FrameIndex: i, Timestamp: float64(i)}
		if err := store.InsertFrame(ctx, frame); err != nil {
			t.Fatal(err)
		}
		assocs = append(assocs, core.Association{ID: core.NewID(), FrameID: id, ChunkID: "chunk1"})
	}
	if err := store.InsertAssociations(ctx, assocs); err != nil {
		t.Fatal(err)
	}

	got, err := store.ChunkForFrame(ctx, "f1")
	if err != nil {
		t.Fatal(err)
	}
	if got.ID != "chunk1" {
		t.Errorf("ChunkForFrame = %s, want chunk1", got.ID)
	}

	frames, err := store.FramesForChunk(ctx, "chunk1")
	if err != nil {
		t.Fatal(err)
	}
	if len(frames) != 3 {
		t.Fatalf("FramesForChunk = %d frames, want 3", len(frames))
	}
	for i, f := range frames {
		if f.ID != frameIDs[i] {
			t.Errorf("frame %d = %s, want %s (frame order)", i, f.ID, frameIDs[i])
		}
	}

	if _, err := store.ChunkForFrame(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("unknown frame: err = %v, want ErrNotFound", err)
	}
	if _, err := store.FramesForChunk(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("unknown chunk: err = %v, want ErrNotFound", err)
	}
}

func TestVectorsInsertionOrder(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	seedJob(t, store, "job")
	ids := []string{"v3", "v1", "v2"}
	for _, id := range ids {
		err := store.InsertVector(ctx, &core.EmbeddingVector{ID: id, JobID: "job", SourceID: id, Vector: []float32{1}})
		if err != nil {
			t.Fatal(err)
		}
	}
	vectors, err := store.VectorsForJob(ctx, "job")
	if err != nil {
		t.Fatal(err)
	}
	for i, v := range vectors {
		if v.ID != ids[i] {
			t.Errorf("vector %d = %s, want %s", i, v.ID, ids[i])
		}
	}
}

func TestGetJobUnknown(t *testing.T) {
	store := NewMemoryStore()
	if _, err := store.GetJob(context.Background(), "nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}
