package pipeline

import (
	"context"
	"path/filepath"

	"mediaIndex/core"
	"mediaIndex/inference"
	"mediaIndex/media"
	"mediaIndex/storage"
)

// UnitStream is a lazy, forward-only sequence of media units. Next returns
// io.EOF when the source or the duration cap is exhausted.
type UnitStream interface {
	Next() (*core.Unit, error)
	ChunkSize() int
	Close() error
}

// Medium is one concrete unit kind. Audio and video share the chunker and
// the job state machine; everything kind-specific lives behind this
// interface.
type Medium interface {
	// Open prepares the resolved local file and returns the unit stream.
	Open(ctx context.Context, jobDir, localPath string, maxSeconds float64) (UnitStream, error)
	// Annotate fills the unit's text (and detections for frames). An error
	// here degrades that one unit, never the job.
	Annotate(ctx context.Context, u *core.Unit) error
	// PersistUnit writes the per-unit record, if the kind has one. Video
	// returns the frame record; audio returns nil.
	PersistUnit(ctx context.Context, store storage.Store, job *core.Job, u *core.Unit) (*core.FrameRecord, error)
	// EmbedPerUnit: video embeds each frame's caption; audio embeds per
	// chunk instead.
	EmbedPerUnit() bool
	// BuildAssociations: video links frames to the chunk covering them.
	BuildAssociations() bool
}

// ========== Audio ==========

type audioMedium struct {
	transcriber inference.Transcriber
}

func (m *audioMedium) Open(_ context.Context, _ string, localPath string, maxSeconds float64) (UnitStream, error) {
	return media.OpenAudio(localPath, maxSeconds)
}

func (m *audioMedium) Annotate(ctx context.Context, u *core.Unit) error {
	text, err := m.transcriber.Transcribe(ctx, u.Samples, u.SampleRate)
	if err != nil {
		return err
	}
	u.Text = text
	// Samples are not needed past annotation; let them go.
	u.Samples = nil
	return nil
}

func (m *audioMedium) PersistUnit(context.Context, storage.Store, *core.Job, *core.Unit) (*core.FrameRecord, error) {
	return nil, nil
}

func (m *audioMedium) EmbedPerUnit() bool       { return false }
func (m *audioMedium) BuildAssociations() bool  { return false }

// ========== Video ==========

type videoMedium struct {
	detector  inference.Detector
	captioner inference.Captioner
}

func (m *videoMedium) Open(_ context.Context, jobDir, localPath string, maxSeconds float64) (UnitStream, error) {
	return media.OpenVideo(localPath, filepath.Join(jobDir, "frames"), maxSeconds)
}

func (m *videoMedium) Annotate(ctx context.Context, u *core.Unit) error {
	objects, err := m.detector.Detect(ctx, u.ImageFile)
	if err != nil {
		return err
	}
	caption, err := m.captioner.Caption(ctx, u.ImageFile)
	if err != nil {
		return err
	}
	u.Objects = objects
	u.Text = caption
	return nil
}

func (m *videoMedium) PersistUnit(ctx context.Context, store storage.Store, job *core.Job, u *core.Unit) (*core.FrameRecord, error) {
	frame := &core.FrameRecord{
		ID:         core.NewID(),
		JobID:      job.ID,
		FrameIndex: u.Index,
		Timestamp:  u.Start,
		ImageFile:  u.ImageFile,
		Objects:    u.Objects,
		Caption:    u.Text,
	}
	if err := store.InsertFrame(ctx, frame); err != nil {
		return nil, err
	}
	return frame, nil
}

func (m *videoMedium) EmbedPerUnit() bool      { return true }
func (m *videoMedium) BuildAssociations() bool { return true }
