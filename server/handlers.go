package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"mediaIndex/core"
	"mediaIndex/media"
	"mediaIndex/pipeline"
	"mediaIndex/storage"
)

// ========== Job submission ==========

type submitAudioRequest struct {
	FilePath    string  `json:"file_path"`
	MediaName   string  `json:"media_name"`
	MaxDuration float64 `json:"max_duration"`
}

type submitVideoRequest struct {
	URL         string  `json:"url"`
	LocalPath   string  `json:"local_path"`
	MediaName   string  `json:"media_name"`
	MaxDuration float64 `json:"max_duration"`
}

func (s *Server) submitAudioJob(w http.ResponseWriter, r *http.Request) {
	var req submitAudioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errorJSON(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.FilePath == "" {
		errorJSON(w, http.StatusBadRequest, "file_path is required")
		return
	}
	// Validate before anything is persisted: a bad source must not leave a
	// job record behind.
	if _, err := os.Stat(req.FilePath); err != nil {
		errorJSON(w, http.StatusBadRequest, "file not found: "+req.FilePath)
		return
	}
	if !core.HasAudioStream(req.FilePath) {
		errorJSON(w, http.StatusBadRequest, "file has no audio stream: "+req.FilePath)
		return
	}

	job := &core.Job{
		ID:          core.NewID(),
		Kind:        core.MediaAudio,
		MediaName:   req.MediaName,
		SourcePath:  req.FilePath,
		MaxDuration: req.MaxDuration,
		Status:      core.StatusPending,
		CreatedAt:   time.Now().UTC(),
	}
	s.createAndSubmit(w, r, job)
}

func (s *Server) submitVideoJob(w http.ResponseWriter, r *http.Request) {
	var req submitVideoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errorJSON(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if (req.URL == "") == (req.LocalPath == "") {
		errorJSON(w, http.StatusBadRequest, "exactly one of url or local_path is required")
		return
	}
	if req.LocalPath != "" {
		if _, err := os.Stat(req.LocalPath); err != nil {
			errorJSON(w, http.StatusBadRequest, "file not found: "+req.LocalPath)
			return
		}
		if !media.SupportedVideoExt(req.LocalPath) {
			errorJSON(w, http.StatusBadRequest, "unsupported video format: "+req.LocalPath)
			return
		}
	}

	job := &core.Job{
		ID:          core.NewID(),
		Kind:        core.MediaVideo,
		MediaName:   req.MediaName,
		SourceURL:   req.URL,
		SourcePath:  req.LocalPath,
		MaxDuration: req.MaxDuration,
		Status:      core.StatusPending,
		CreatedAt:   time.Now().UTC(),
	}
	s.createAndSubmit(w, r, job)
}

func (s *Server) createAndSubmit(w http.ResponseWriter, r *http.Request, job *core.Job) {
	if job.MediaName == "" {
		job.MediaName = job.ID
	}
	if err := s.Store.CreateJob(r.Context(), job); err != nil {
		errorJSON(w, http.StatusInternalServerError, "create job: "+err.Error())
		return
	}
	if err := s.Pool.Submit(r.Context(), job); err != nil {
		if errors.Is(err, pipeline.ErrQueueFull) {
			errorJSON(w, http.StatusServiceUnavailable, err.Error())
			return
		}
		errorJSON(w, http.StatusInternalServerError, err.Error())
		return
	}
	core.WriteJSON(w, http.StatusAccepted, job)
}

// ========== Job reads ==========

func (s *Server) getJob(w http.ResponseWriter, r *http.Request) {
	job, ok := s.loadJob(w, r)
	if !ok {
		return
	}
	core.WriteJSON(w, http.StatusOK, job)
}

func (s *Server) getFrames(w http.ResponseWriter, r *http.Request) {
	job, ok := s.loadJob(w, r)
	if !ok {
		return
	}
	frames, err := s.Store.FramesForJob(r.Context(), job.ID)
	if err != nil {
		errorJSON(w, http.StatusInternalServerError, err.Error())
		return
	}
	if frames == nil {
		frames = []core.FrameRecord{}
	}
	core.WriteJSON(w, http.StatusOK, frames)
}

func (s *Server) getChunks(w http.ResponseWriter, r *http.Request) {
	job, ok := s.loadJob(w, r)
	if !ok {
		return
	}
	chunks, err := s.Store.ChunksForJob(r.Context(), job.ID)
	if err != nil {
		errorJSON(w, http.StatusInternalServerError, err.Error())
		return
	}
	if chunks == nil {
		chunks = []core.TranscriptChunk{}
	}
	core.WriteJSON(w, http.StatusOK, chunks)
}

func (s *Server) getChunkAtTime(w http.ResponseWriter, r *http.Request) {
	job, ok := s.loadJob(w, r)
	if !ok {
		return
	}
	ts, err := strconv.ParseFloat(chi.URLParam(r, "timestamp"), 64)
	if err != nil {
		errorJSON(w, http.StatusBadRequest, "invalid timestamp: "+chi.URLParam(r, "timestamp"))
		return
	}
	chunk, err := s.Store.ChunkAtTime(r.Context(), job.ID, ts)
	if errors.Is(err, storage.ErrNotFound) {
		errorJSON(w, http.StatusNotFound, fmt.Sprintf("no chunk covers %.3fs", ts))
		return
	}
	if err != nil {
		errorJSON(w, http.StatusInternalServerError, err.Error())
		return
	}
	core.WriteJSON(w, http.StatusOK, chunk)
}

func (s *Server) getVectors(w http.ResponseWriter, r *http.Request) {
	job, ok := s.loadJob(w, r)
	if !ok {
		return
	}
	vectors, err := s.Store.VectorsForJob(r.Context(), job.ID)
	if err != nil {
		errorJSON(w, http.StatusInternalServerError, err.Error())
		return
	}
	if vectors == nil {
		vectors = []core.EmbeddingVector{}
	}
	core.WriteJSON(w, http.StatusOK, vectors)
}

func (s *Server) getAssociations(w http.ResponseWriter, r *http.Request) {
	job, ok := s.loadJob(w, r)
	if !ok {
		return
	}
	assocs, err := s.Store.AssociationsForJob(r.Context(), job.ID)
	if err != nil {
		errorJSON(w, http.StatusInternalServerError, err.Error())
		return
	}
	if assocs == nil {
		assocs = []core.Association{}
	}
	core.WriteJSON(w, http.StatusOK, assocs)
}

// ========== Cross-modal lookups ==========

func (s *Server) getChunkForFrame(w http.ResponseWriter, r *http.Request) {
	frameID := chi.URLParam(r, "frameID")
	chunk, err := s.Store.ChunkForFrame(r.Context(), frameID)
	if errors.Is(err, storage.ErrNotFound) {
		errorJSON(w, http.StatusNotFound, "no chunk associated with frame "+frameID)
		return
	}
	if err != nil {
		errorJSON(w, http.StatusInternalServerError, err.Error())
		return
	}
	core.WriteJSON(w, http.StatusOK, chunk)
}

func (s *Server) getFramesForChunk(w http.ResponseWriter, r *http.Request) {
	chunkID := chi.URLParam(r, "chunkID")
	frames, err := s.Store.FramesForChunk(r.Context(), chunkID)
	if errors.Is(err, storage.ErrNotFound) {
		errorJSON(w, http.StatusNotFound, "chunk not found: "+chunkID)
		return
	}
	if err != nil {
		errorJSON(w, http.StatusInternalServerError, err.Error())
		return
	}
	if frames == nil {
		frames = []core.FrameRecord{}
	}
	core.WriteJSON(w, http.StatusOK, frames)
}

// ========== Search ==========

type searchRequest struct {
	Query string `json:"query"`
	TopK  int    `json:"top_k"`
}

func (s *Server) search(w http.ResponseWriter, r *http.Request) {
	job, ok := s.loadJob(w, r)
	if !ok {
		return
	}
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errorJSON(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.Query == "" {
		errorJSON(w, http.StatusBadRequest, "query is required")
		return
	}
	hits, err := s.Index.Search(r.Context(), job.ID, req.Query, req.TopK)
	if err != nil {
		errorJSON(w, http.StatusInternalServerError, err.Error())
		return
	}
	core.WriteJSON(w, http.StatusOK, map[string]any{
		"job_id":  job.ID,
		"query":   req.Query,
		"results": hits,
	})
}

// ========== Service endpoints ==========

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	core.WriteJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) stats(w http.ResponseWriter, _ *http.Request) {
	core.WriteJSON(w, http.StatusOK, s.Pool.Stats())
}

// ========== Helpers ==========

func (s *Server) loadJob(w http.ResponseWriter, r *http.Request) (*core.Job, bool) {
	id := chi.URLParam(r, "jobID")
	job, err := s.Store.GetJob(r.Context(), id)
	if errors.Is(err, storage.ErrNotFound) {
		errorJSON(w, http.StatusNotFound, "job not found: "+id)
		return nil, false
	}
	if err != nil {
		errorJSON(w, http.StatusInternalServerError, err.Error())
		return nil, false
	}
	return job, true
}

func errorJSON(w http.ResponseWriter, status int, msg string) {
	core.WriteJSON(w, status, map[string]any{"error": msg})
}
