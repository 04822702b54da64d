package storage

import (
	"context"
	"errors"

	"mediaIndex/core"
)

// ErrNotFound is returned for lookups of records that do not exist.
var ErrNotFound = errors.New("record not found")

// Store is the durable record store behind the pipeline. Jobs are mutable
// (status transitions only); every other record is append-only. Single-row
// commits are the only atomicity the pipeline relies on.
type Store interface {
	CreateJob(ctx context.Context, job *core.Job) error
	GetJob(ctx context.Context, id string) (*core.Job, error)
	UpdateJob(ctx context.Context, job *core.Job) error

	InsertFrame(ctx context.Context, frame *core.FrameRecord) error
	InsertChunk(ctx context.Context, chunk *core.TranscriptChunk) error
	InsertVector(ctx context.Context, vec *core.EmbeddingVector) error
	InsertAssociations(ctx context.Context, assocs []core.Association) error

	FramesForJob(ctx context.Context, jobID string) ([]core.FrameRecord, error)
	// FramesInRange returns frames with start <= timestamp < end.
	FramesInRange(ctx context.Context, jobID string, start, end float64) ([]core.FrameRecord, error)
	FrameByID(ctx context.Context, id string) (*core.FrameRecord, error)

	ChunksForJob(ctx context.Context, jobID string) ([]core.TranscriptChunk, error)
	// ChunkAtTime returns the chunk whose [start_time, end_time) contains ts.
	ChunkAtTime(ctx context.Context, jobID string, ts float64) (*core.TranscriptChunk, error)
	ChunkByID(ctx context.Context, id string) (*core.TranscriptChunk, error)

	// VectorsForJob returns vectors in insertion order.
	VectorsForJob(ctx context.Context, jobID string) ([]core.EmbeddingVector, error)
	AssociationsForJob(ctx context.Context, jobID string) ([]core.Association, error)

	// ChunkForFrame resolves the chunk a frame was associated with.
	ChunkForFrame(ctx context.Context, frameID string) (*core.TranscriptChunk, error)
	// FramesForChunk returns all frames associated with a chunk, in frame order.
	FramesForChunk(ctx context.Context, chunkID string) ([]core.FrameRecord, error)
}
