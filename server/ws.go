package server

import (
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"mediaIndex/core"
	"mediaIndex/storage"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

const wsWriteTimeout = 10 * time.Second

// watchJob streams progress events for one job over a websocket. The
// connection closes after the job reaches a terminal status, or when the
// client goes away.
func (s *Server) watchJob(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	job, err := s.Store.GetJob(r.Context(), jobID)
	if errors.Is(err, storage.ErrNotFound) {
		errorJSON(w, http.StatusNotFound, "job not found: "+jobID)
		return
	}
	if err != nil {
		errorJSON(w, http.StatusInternalServerError, err.Error())
		return
	}

	// Subscribe before the status snapshot so events between snapshot and
	// subscription cannot be lost.
	events, cancel := s.Hub.Subscribe(jobID)
	defer cancel()

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade for job %s: %v", jobID, err)
		return
	}
	defer conn.Close()

	snapshot := core.ProgressEvent{
		JobID:  job.ID,
		Status: job.Status,
		Stage:  "snapshot",
		Error:  job.ErrorMsg,
	}
	if !writeEvent(conn, snapshot) {
		return
	}
	if job.Status == core.StatusComplete || job.Status == core.StatusError {
		return
	}

	// Drain client frames so close messages are noticed.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-done:
			return
		case evt := <-events:
			if !writeEvent(conn, evt) {
				return
			}
			if evt.Status == core.StatusComplete || evt.Status == core.StatusError {
				return
			}
		}
	}
}

func writeEvent(conn *websocket.Conn, evt core.ProgressEvent) bool {
	conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	if err := conn.WriteJSON(evt); err != nil {
		return false
	}
	return true
}
