package storage

import (
	"context"
	"sync"
	"time"

	"mediaIndex/core"
)

// MemoryStore keeps all records in process memory. It is the fallback when
// no Postgres URL is configured and the fixture store for tests. Readers may
// observe a partially populated job while its pipeline runs; that is
// expected.
type MemoryStore struct {
	mu     sync.RWMutex
	jobs   map[string]core.Job
	frames map[string][]core.FrameRecord     // jobID -> frames
	chunks map[string][]core.TranscriptChunk // jobID -> chunks
	vecs   map[string][]core.EmbeddingVector // jobID -> vectors, insertion order
	assocs map[string][]core.Association     // jobID -> associations

	frameJob map[string]string // frameID -> jobID
	chunkJob map[string]string // chunkID -> jobID
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		jobs:     map[string]core.Job{},
		frames:   map[string][]core.FrameRecord{},
		chunks:   map[string][]core.TranscriptChunk{},
		vecs:     map[string][]core.EmbeddingVector{},
		assocs:   map[string][]core.Association{},
		frameJob: map[string]string{},
		chunkJob: map[string]string{},
	}
}

func (s *MemoryStore) CreateJob(_ context.Context, job *core.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now().UTC()
	}
	s.jobs[job.ID] = *job
	return nil
}

func (s *MemoryStore) GetJob(_ context.Context, id string) (*core.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &job, nil
}

func (s *MemoryStore) UpdateJob(_ context.Context, job *core.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[job.ID]; !ok {
		return ErrNotFound
	}
	now := time.Now().UTC()
	job.UpdatedAt = &now
	s.jobs[job.ID] = *job
	return nil
}

func (s *MemoryStore) InsertFrame(_ context.Context, frame *core.FrameRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frames[frame.JobID] = append(s.frames[frame.JobID], *frame)
	s.frameJob[frame.ID] = frame.JobID
	return nil
}

func (s *MemoryStore) InsertChunk(_ context.Context, chunk *core.TranscriptChunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chunks[chunk.JobID] = append(s.chunks[chunk.JobID], *chunk)
	s.chunkJob[chunk.ID] = chunk.JobID
	return nil
}

func (s *MemoryStore) InsertVector(_ context.Context, vec *core.EmbeddingVector) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.vecs[vec.JobID] = append(s.vecs[vec.JobID], *vec)
	return nil
}

func (s *MemoryStore) InsertAssociations(_ context.Context, assocs []core.Association) error {
	if len(assocs) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	jobID := s.frameJob[assocs[0].FrameID]
	s.assocs[jobID] = append(s.assocs[jobID], assocs...)
	return nil
}

func (s *MemoryStore) FramesForJob(_ context.Context, jobID string) ([]core.FrameRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]core.FrameRecord(nil), s.frames[jobID]...), nil
}

func (s *MemoryStore) FramesInRange(_ context.Context, jobID string, start, end float64) ([]core.FrameRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []core.FrameRecord
	for _, f := range s.frames[jobID] {
		if f.Timestamp >= start && f.Timestamp < end {
			out = append(out, f)
		}
	}
	return out, nil
}

func (s *MemoryStore) FrameByID(_ context.Context, id string) (*core.FrameRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	jobID, ok := s.frameJob[id]
	if !ok {
		return nil, ErrNotFound
	}
	for _, f := range s.frames[jobID] {
		if f.ID == id {
			return &f, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) ChunksForJob(_ context.Context, jobID string) ([]core.TranscriptChunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]core.TranscriptChunk(nil), s.chunks[jobID]...), nil
}

func (s *MemoryStore) ChunkAtTime(_ context.Context, jobID string, ts float64) (*core.TranscriptChunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range s.chunks[jobID] {
		if c.StartTime <= ts && ts < c.EndTime {
			return &c, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) ChunkByID(_ context.Context, id string) (*core.TranscriptChunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	jobID, ok := s.chunkJob[id]
	if !ok {
		return nil, ErrNotFound
	}
	for _, c := range s.chunks[jobID] {
		if c.ID == id {
			return &c, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) VectorsForJob(_ context.Context, jobID string) ([]core.EmbeddingVector, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]core.EmbeddingVector(nil), s.vecs[jobID]...), nil
}

func (s *MemoryStore) AssociationsForJob(_ context.Context, jobID string) ([]core.Association, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]core.Association(nil), s.assocs[jobID]...), nil
}

func (s *MemoryStore) ChunkForFrame(_ context.Context, frameID string) (*core.TranscriptChunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	jobID, ok := s.frameJob[frameID]
	if !ok {
		return nil, ErrNotFound
	}
	for _, a := range s.assocs[jobID] {
		if a.FrameID != frameID {
			continue
		}
		for _, c := range s.chunks[jobID] {
			if c.ID == a.ChunkID {
				return &c, nil
			}
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) FramesForChunk(_ context.Context, chunkID string) ([]core.FrameRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	jobID, ok := s.chunkJob[chunkID]
	if !ok {
		return nil, ErrNotFound
	}
	wanted := map[string]bool{}
	for _, a := range s.assocs[jobID] {
		if a.ChunkID == chunkID {
			wanted[a.FrameID] = true
		}
	}
	var out []core.FrameRecord
	for _, f := range s.frames[jobID] {
		if wanted[f.ID] {
			out = append(out, f)
		}
	}
	return out, nil
}
