package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"mediaIndex/pipeline"
	"mediaIndex/storage"
)

// Server carries the handler dependencies and builds the HTTP router.
type Server struct {
	Store storage.Store
	Index storage.SearchIndex
	Pool  *pipeline.Pool
	Hub   *pipeline.Hub
}

func New(store storage.Store, index storage.SearchIndex, pool *pipeline.Pool, hub *pipeline.Hub) *Server {
	return &Server{Store: store, Index: index, Pool: pool, Hub: hub}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Post("/jobs/audio", s.submitAudioJob)
	r.Post("/jobs/video", s.submitVideoJob)

	r.Route("/jobs/{jobID}", func(r chi.Router) {
		r.Get("/", s.getJob)
		r.Get("/frames", s.getFrames)
		r.Get("/chunks", s.getChunks)
		r.Get("/chunks/at/{timestamp}", s.getChunkAtTime)
		r.Get("/vectors", s.getVectors)
		r.Get("/associations", s.getAssociations)
		r.Post("/search", s.search)
	})

	r.Get("/frames/{frameID}/chunk", s.getChunkForFrame)
	r.Get("/chunks/{chunkID}/frames", s.getFramesForChunk)

	r.Get("/ws/jobs/{jobID}", s.watchJob)

	r.Get("/healthz", s.healthz)
	r.Get("/stats", s.stats)
	return r
}
