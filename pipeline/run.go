package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"

	"mediaIndex/core"
	"mediaIndex/inference"
	"mediaIndex/media"
	"mediaIndex/storage"
)

// Runner owns the lifecycle of one job from processing to its terminal
// state. All collaborators are injected; the runner holds no global state.
type Runner struct {
	Store     storage.Store
	Index     storage.SearchIndex
	Providers inference.Providers
	Hub       *Hub

	// MediumFor picks the concrete variant per job kind. Replaceable in
	// tests to feed synthetic unit streams.
	MediumFor func(kind core.MediaKind) Medium
}

func NewRunner(store storage.Store, index storage.SearchIndex, providers inference.Providers, hub *Hub) *Runner {
	r := &Runner{Store: store, Index: index, Providers: providers, Hub: hub}
	r.MediumFor = func(kind core.MediaKind) Medium {
		if kind == core.MediaVideo {
			return &videoMedium{detector: providers.Detector, captioner: providers.Captioner}
		}
		return &audioMedium{transcriber: providers.Transcriber}
	}
	return r
}

// RunJob executes the whole pipeline for one job. Any failure past this
// point is recorded on the job, never returned to a caller polling status.
// Running the same job twice concurrently is not supported.
func (r *Runner) RunJob(ctx context.Context, jobID string) error {
	job, err := r.Store.GetJob(ctx, jobID)
	if err != nil {
		log.Printf("run job %s: %v", jobID, err)
		return err
	}
	if job.Status == core.StatusPending {
		// Submission normally commits this transition; cover direct calls.
		job.Status = core.StatusProcessing
		if err := r.Store.UpdateJob(ctx, job); err != nil {
			log.Printf("run job %s: mark processing: %v", jobID, err)
			return err
		}
	}
	r.publish(core.ProgressEvent{JobID: job.ID, Status: core.StatusProcessing, Stage: "resolve"})

	if err := r.process(ctx, job); err != nil {
		job.Status = core.StatusError
		job.ErrorMsg = err.Error()
		if uerr := r.Store.UpdateJob(ctx, job); uerr != nil {
			log.Printf("job %s: record failure: %v", job.ID, uerr)
		}
		r.publish(core.ProgressEvent{JobID: job.ID, Status: core.StatusError, Stage: "failed", Error: err.Error()})
		log.Printf("job %s failed: %v", job.ID, err)
		return err
	}

	r.publish(core.ProgressEvent{JobID: job.ID, Status: core.StatusComplete, Stage: "done", Percent: 100})
	log.Printf("job %s complete", job.ID)
	return nil
}

// process runs the pipeline steps. Records persisted before a failure stay
// in place: partial results remain queryable, there is no rollback.
func (r *Runner) process(ctx context.Context, job *core.Job) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("pipeline panic: %v", p)
		}
	}()

	jobDir := filepath.Join(core.DataRoot(), job.ID)
	if err := os.MkdirAll(jobDir, 0755); err != nil {
		return fmt.Errorf("create job dir: %w", err)
	}

	localPath, err := media.Resolve(jobDir, job.SourcePath, job.SourceURL)
	if err != nil {
		return err
	}

	medium := r.MediumFor(job.Kind)
	stream, err := medium.Open(ctx, jobDir, localPath, job.MaxDuration)
	if err != nil {
		return err
	}
	defer stream.Close()

	total := job.MaxDuration
	if total == 0 {
		total, _ = core.ProbeDuration(localPath)
	}

	doc := core.ResultDocument{
		MediaName: job.MediaName,
		MediaFile: filepath.Base(localPath),
		Chunks:    []core.TranscriptChunk{},
	}
	chunker := NewChunker(stream.ChunkSize())

	for {
		unit, err := stream.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}

		// A failed annotation degrades to an empty one; one bad unit must
		// not fail the batch.
		if aerr := medium.Annotate(ctx, unit); aerr != nil {
			log.Printf("job %s: annotate unit %d failed, keeping empty annotation: %v", job.ID, unit.Index, aerr)
			unit.Text = ""
			unit.Objects = nil
		}

		frame, err := medium.PersistUnit(ctx, r.Store, job, unit)
		if err != nil {
			return fmt.Errorf("persist unit %d: %w", unit.Index, err)
		}
		if frame != nil {
			doc.Frames = append(doc.Frames, *frame)
		}
		if medium.EmbedPerUnit() && frame != nil {
			r.embed(ctx, job, frame.ID, unit.Text, unit.Start, unit.End)
		}

		if chunk := chunker.Add(unit); chunk != nil {
			if err := r.persistChunk(ctx, job, medium, chunk, &doc); err != nil {
				return err
			}
		}
		r.publish(core.ProgressEvent{
			JobID:   job.ID,
			Status:  core.StatusProcessing,
			Stage:   "annotate",
			Percent: percent(unit.End, total),
			Message: fmt.Sprintf("unit %d at %s", unit.Index, core.FormatTime(unit.Start)),
		})
	}
	if chunk := chunker.Flush(); chunk != nil {
		if err := r.persistChunk(ctx, job, medium, chunk, &doc); err != nil {
			return err
		}
	}

	resultPath := filepath.Join(jobDir, "result.json")
	if err := core.SaveJSON(resultPath, doc); err != nil {
		return fmt.Errorf("write result artifact: %w", err)
	}

	job.Status = core.StatusComplete
	job.ResultPath = resultPath
	return r.Store.UpdateJob(ctx, job)
}

func (r *Runner) persistChunk(ctx context.Context, job *core.Job, medium Medium, chunk *core.TranscriptChunk, doc *core.ResultDocument) error {
	chunk.ID = core.NewID()
	chunk.JobID = job.ID
	if err := r.Store.InsertChunk(ctx, chunk); err != nil {
		return fmt.Errorf("persist chunk %d: %w", chunk.ChunkIndex, err)
	}
	doc.Chunks = append(doc.Chunks, *chunk)

	if !medium.EmbedPerUnit() {
		r.embed(ctx, job, chunk.ID, chunk.Transcript, chunk.StartTime, chunk.EndTime)
	}

	if medium.BuildAssociations() {
		// Per-chunk, right after the chunk lands: a job that dies later
		// keeps correct associations for the chunks it finished.
		frames, err := r.Store.FramesInRange(ctx, job.ID, chunk.StartTime, chunk.EndTime)
		if err != nil {
			return fmt.Errorf("frames for chunk %d: %w", chunk.ChunkIndex, err)
		}
		assocs := make([]core.Association, 0, len(frames))
		for _, f := range frames {
			assocs = append(assocs, core.Association{ID: core.NewID(), FrameID: f.ID, ChunkID: chunk.ID})
		}
		if err := r.Store.InsertAssociations(ctx, assocs); err != nil {
			return fmt.Errorf("persist associations for chunk %d: %w", chunk.ChunkIndex, err)
		}
		doc.Associations = append(doc.Associations, assocs...)
	}
	return nil
}

// embed stores one vector for non-empty text. Empty annotations produce no
// vector at all, and an embedding failure costs only this one vector.
func (r *Runner) embed(ctx context.Context, job *core.Job, sourceID, text string, start, end float64) {
	if strings.TrimSpace(text) == "" {
		return
	}
	vec, err := r.Providers.Embedder.Embed(ctx, text)
	if err != nil {
		log.Printf("job %s: embed for %s failed: %v", job.ID, sourceID, err)
		return
	}
	record := &core.EmbeddingVector{
		ID:       core.NewID(),
		JobID:    job.ID,
		SourceID: sourceID,
		Vector:   vec,
		Text:     text,
	}
	if err := r.Store.InsertVector(ctx, record); err != nil {
		log.Printf("job %s: persist vector for %s failed: %v", job.ID, sourceID, err)
		return
	}
	if err := r.Index.Add(ctx, job.ID, record, start, end); err != nil {
		log.Printf("job %s: index vector for %s failed: %v", job.ID, sourceID, err)
	}
}

func (r *Runner) publish(evt core.ProgressEvent) {
	if r.Hub != nil {
		r.Hub.Publish(evt)
	}
}

func percent(pos, total float64) int {
	if total <= 0 {
		return 0
	}
	p := int(pos / total * 100)
	if p > 100 {
		p = 100
	}
	return p
}
