package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"

	"mediaIndex/core"
	"mediaIndex/inference"
	"mediaIndex/storage"
)

// fakeStream feeds pre-built units, like a decoded media file would.
type fakeStream struct {
	units     []core.Unit
	pos       int
	chunkSize int
}

func (s *fakeStream) Next() (*core.Unit, error) {
	if s.pos >= len(s.units) {
		return nil, io.EOF
	}
	u := s.units[s.pos]
	s.pos++
	return &u, nil
}

func (s *fakeStream) ChunkSize() int { return s.chunkSize }
func (s *fakeStream) Close() error   { return nil }

// fakeMedium acts like the video variant: per-unit records, per-unit
// vectors, frame/chunk associations.
type fakeMedium struct {
	stream      *fakeStream
	openErr     error
	annotateErr map[int]error // unit index -> failure
	persistErr  map[int]error
	annotation  func(u *core.Unit) string
	frames      bool
}

func (m *fakeMedium) Open(context.Context, string, string, float64) (UnitStream, error) {
	if m.openErr != nil {
		return nil, m.openErr
	}
	return m.stream, nil
}

func (m *fakeMedium) Annotate(_ context.Context, u *core.Unit) error {
	if err := m.annotateErr[u.Index]; err != nil {
		return err
	}
	if m.annotation != nil {
		u.Text = m.annotation(u)
	}
	return nil
}

func (m *fakeMedium) PersistUnit(ctx context.Context, store storage.Store, job *core.Job, u *core.Unit) (*core.FrameRecord, error) {
	if err := m.persistErr[u.Index]; err != nil {
		return nil, err
	}
	if !m.frames {
		return nil, nil
	}
	frame := &core.FrameRecord{
		ID:         core.NewID(),
		JobID:      job.ID,
		FrameIndex: u.Index,
		Timestamp:  u.Start,
		Caption:    u.Text,
	}
	if err := store.InsertFrame(ctx, frame); err != nil {
		return nil, err
	}
	return frame, nil
}

func (m *fakeMedium) EmbedPerUnit() bool      { return m.frames }
func (m *fakeMedium) BuildAssociations() bool { return m.frames }

func frameUnits(n int, fps float64) []core.Unit {
	units := make([]core.Unit, n)
	for i := range units {
		units[i] = core.Unit{
			Index: i,
			Start: float64(i) / fps,
			End:   float64(i+1) / fps,
		}
	}
	return units
}

func newTestRunner(t *testing.T, medium Medium) (*Runner, *storage.MemoryStore, *core.Job) {
	t.Helper()
	t.Setenv("DATA_ROOT", t.TempDir())

	source := filepath.Join(t.TempDir(), "clip.mp4")
	if err := os.WriteFile(source, []byte("not a real container"), 0644); err != nil {
		t.Fatal(err)
	}

	store := storage.NewMemoryStore()
	embedder := inference.NewLocalEmbedder()
	runner := NewRunner(store, storage.NewLinearIndex(store, embedder), inference.Providers{Embedder: embedder}, nil)
	runner.MediumFor = func(core.MediaKind) Medium { return medium }

	job := &core.Job{
		ID:          core.NewID(),
		Kind:        core.MediaVideo,
		MediaName:   "clip",
		SourcePath:  source,
		MaxDuration: 12,
		Status:      core.StatusPending,
	}
	if err := store.CreateJob(context.Background(), job); err != nil {
		t.Fatal(err)
	}
	return runner, store, job
}

func TestRunJobCompletes(t *testing.T) {
	medium := &fakeMedium{
		stream:     &fakeStream{units: frameUnits(60, 5), chunkSize: 25},
		annotation: func(u *core.Unit) string { return fmt.Sprintf("frame %d", u.Index) },
		frames:     true,
	}
	runner, store, job := newTestRunner(t, medium)
	ctx := context.Background()

	if err := runner.RunJob(ctx, job.ID); err != nil {
		t.Fatalf("RunJob: %v", err)
	}

	got, err := store.GetJob(ctx, job.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != core.StatusComplete {
		t.Fatalf("status = %s, want complete (error: %s)", got.Status, got.ErrorMsg)
	}
	if got.ResultPath == "" {
		t.Fatal("result path not recorded")
	}
	if _, err := os.Stat(got.ResultPath); err != nil {
		t.Fatalf("result artifact missing: %v", err)
	}

	frames, _ := store.FramesForJob(ctx, job.ID)
	if len(frames) != 60 {
		t.Errorf("frames = %d, want 60", len(frames))
	}
	chunks, _ := store.ChunksForJob(ctx, job.ID)
	if len(chunks) != 3 {
		t.Fatalf("chunks = %d, want 3 (25+25+10)", len(chunks))
	}
	// Every frame falls inside exactly one chunk span, so the association
	// count matches the frame count.
	assocs, _ := store.AssociationsForJob(ctx, job.ID)
	if len(assocs) != 60 {
		t.Errorf("associations = %d, want 60", len(assocs))
	}
	vectors, _ := store.VectorsForJob(ctx, job.ID)
	if len(vectors) != 60 {
		t.Errorf("vectors = %d, want 60 (one per annotated frame)", len(vectors))
	}
}

func TestRunJobDegradesFailedAnnotation(t *testing.T) {
	medium := &fakeMedium{
		stream:      &fakeStream{units: frameUnits(10, 5), chunkSize: 25},
		annotation:  func(u *core.Unit) string { return fmt.Sprintf("frame %d", u.Index) },
		annotateErr: map[int]error{7: errors.New("model timeout")},
		frames:      true,
	}
	runner, store, job := newTestRunner(t, medium)
	ctx := context.Background()

	if err := runner.RunJob(ctx, job.ID); err != nil {
		t.Fatalf("one bad unit must not fail the job: %v", err)
	}

	got, _ := store.GetJob(ctx, job.ID)
	if got.Status != core.StatusComplete {
		t.Fatalf("status = %s, want complete", got.Status)
	}
	frames, _ := store.FramesForJob(ctx, job.ID)
	if len(frames) != 10 {
		t.Fatalf("frames = %d, want 10", len(frames))
	}
	for _, f := range frames {
		if f.FrameIndex == 7 && f.Caption != "" {
			t.Errorf("failed unit kept caption %q, want empty", f.Caption)
		}
		if f.FrameIndex != 7 && f.Caption == "" {
			t.Errorf("frame %d lost its caption", f.FrameIndex)
		}
	}
	// Unit 7 has no text, so it gets no vector.
	vectors, _ := store.VectorsForJob(ctx, job.ID)
	if len(vectors) != 9 {
		t.Errorf("vectors = %d, want 9", len(vectors))
	}
}

func TestRunJobFatalErrorKeepsPartialRecords(t *testing.T) {
	medium := &fakeMedium{
		stream:     &fakeStream{units: frameUnits(30, 5), chunkSize: 25},
		annotation: func(u *core.Unit) string { return "x" },
		persistErr: map[int]error{28: errors.New("disk full")},
		frames:     true,
	}
	runner, store, job := newTestRunner(t, medium)
	ctx := context.Background()

	if err := runner.RunJob(ctx, job.ID); err == nil {
		t.Fatal("expected a fatal persistence error")
	}

	got, _ := store.GetJob(ctx, job.ID)
	if got.Status != core.StatusError {
		t.Fatalf("status = %s, want error", got.Status)
	}
	if got.ErrorMsg == "" {
		t.Fatal("error message not recorded")
	}
	// Records committed before the failure stay queryable.
	frames, _ := store.FramesForJob(ctx, job.ID)
	if len(frames) != 28 {
		t.Errorf("frames = %d, want 28 committed before the failure", len(frames))
	}
	chunks, _ := store.ChunksForJob(ctx, job.ID)
	if len(chunks) != 1 {
		t.Errorf("chunks = %d, want 1 completed group", len(chunks))
	}
}

func TestRunJobOpenFailure(t *testing.T) {
	medium := &fakeMedium{openErr: errors.New("no such stream")}
	runner, store, job := newTestRunner(t, medium)
	ctx := context.Background()

	if err := runner.RunJob(ctx, job.ID); err == nil {
		t.Fatal("expected open failure")
	}
	got, _ := store.GetJob(ctx, job.ID)
	if got.Status != core.StatusError {
		t.Fatalf("status = %s, want error", got.Status)
	}
}
