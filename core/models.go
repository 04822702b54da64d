package core

import (
	"time"
)

// ========== Jobs ==========

type MediaKind string

const (
	MediaAudio MediaKind = "audio"
	MediaVideo MediaKind = "video"
)

type JobStatus string

const (
	StatusPending    JobStatus = "pending"
	StatusProcessing JobStatus = "processing"
	StatusComplete   JobStatus = "complete"
	StatusError      JobStatus = "error"
)

// Job is one end-to-end processing request for a media source.
// Only the pipeline mutates a job after creation.
type Job struct {
	ID          string     `json:"id"`
	Kind        MediaKind  `json:"kind"`
	MediaName   string     `json:"media_name"`
	SourceURL   string     `json:"source_url,omitempty"`
	SourcePath  string     `json:"source_path,omitempty"`
	MaxDuration float64    `json:"max_duration,omitempty"` // seconds, 0 = natural duration
	Status      JobStatus  `json:"status"`
	ResultPath  string     `json:"result_path,omitempty"`
	ErrorMsg    string     `json:"error_msg,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   *time.Time `json:"updated_at,omitempty"`
}

// ========== Per-unit records ==========

type Detection struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
}

// FrameRecord is one decoded video frame with its model annotations.
// Immutable once written.
type FrameRecord struct {
	ID         string      `json:"id"`
	JobID      string      `json:"job_id"`
	FrameIndex int         `json:"frame_index"`
	Timestamp  float64     `json:"timestamp"`
	ImageFile  string      `json:"image_file"`
	Objects    []Detection `json:"objects"`
	Caption    string      `json:"caption"`
}

// TranscriptChunk aggregates consecutive unit texts over [StartTime, EndTime).
type TranscriptChunk struct {
	ID         string  `json:"id"`
	JobID      string  `json:"job_id"`
	ChunkIndex int     `json:"chunk_index"`
	StartTime  float64 `json:"start_time"`
	EndTime    float64 `json:"end_time"`
	Transcript string  `json:"transcript"`
}

// EmbeddingVector keeps the vector together with a denormalized copy of the
// text it was derived from. SourceID points at the frame record (video) or
// transcript chunk (audio) the text came from.
type EmbeddingVector struct {
	ID       string    `json:"id"`
	JobID    string    `json:"job_id"`
	SourceID string    `json:"source_id"`
	Vector   []float32 `json:"vector"`
	Text     string    `json:"text"`
}

// Association links a frame to the transcript chunk whose time window
// contains its timestamp.
type Association struct {
	ID      string `json:"id"`
	FrameID string `json:"frame_id"`
	ChunkID string `json:"chunk_id"`
}

// ========== Processing units ==========

// Unit is the finest-grained piece of media processed independently:
// one 5-second audio window or one video frame. Annotation fills Text
// (and Objects for frames) after extraction.
type Unit struct {
	Index     int
	Start     float64
	End       float64
	Text      string
	ImageFile string      // frames only
	Objects   []Detection // frames only

	// audio windows only
	Samples    []float32
	SampleRate int
}

// ========== Search ==========

type Hit struct {
	SourceID  string  `json:"source_id"`
	Score     float64 `json:"score"`
	StartTime float64 `json:"start_time"`
	EndTime   float64 `json:"end_time"`
	Text      string  `json:"text"`
}

// ========== Result artifact ==========

// ResultDocument is the consolidated JSON written to the job directory
// once processing finishes.
type ResultDocument struct {
	MediaName    string            `json:"media_name"`
	MediaFile    string            `json:"media_file"`
	Frames       []FrameRecord     `json:"frames,omitempty"`
	Chunks       []TranscriptChunk `json:"transcript_chunks"`
	Associations []Association     `json:"frame_transcript_associations,omitempty"`
}

// ========== Progress ==========

// ProgressEvent is published while a job runs and relayed to websocket
// subscribers.
type ProgressEvent struct {
	JobID   string    `json:"job_id"`
	Status  JobStatus `json:"status"`
	Stage   string    `json:"stage"`
	Percent int       `json:"percent"`
	Message string    `json:"message,omitempty"`
	Error   string    `json:"error,omitempty"`
}
