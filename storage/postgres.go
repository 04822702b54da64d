package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pgvector/pgvector-go"
	pgxvector "github.com/pgvector/pgvector-go/pgx"

	"mediaIndex/core"
)

// PgStore persists all pipeline records in PostgreSQL, with embeddings in a
// pgvector column sized to the active embedder.
type PgStore struct {
	conn *pgx.Conn
	dim  int
}

func NewPgStore(ctx context.Context, url string, dim int) (*PgStore, error) {
	conn, err := pgx.Connect(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := conn.Ping(ctx); err != nil {
		conn.Close(ctx)
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	s := &PgStore{conn: conn, dim: dim}
	if err := s.ensureSchema(ctx); err != nil {
		conn.Close(ctx)
		return nil, err
	}
	if err := pgxvector.RegisterTypes(ctx, conn); err != nil {
		conn.Close(ctx)
		return nil, fmt.Errorf("register vector types: %w", err)
	}
	return s, nil
}

func (s *PgStore) Close(ctx context.Context) error { return s.conn.Close(ctx) }

func (s *PgStore) ensureSchema(ctx context.Context) error {
	if _, err := s.conn.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector;"); err != nil {
		return fmt.Errorf("failed to create vector extension: %w", err)
	}

	statements := []string{
		`CREATE TABLE IF NOT EXISTS jobs (
			id TEXT PRIMARY KEY,
			kind TEXT NOT NULL,
			media_name TEXT NOT NULL,
			source_url TEXT,
			source_path TEXT,
			max_duration DOUBLE PRECISION,
			status TEXT NOT NULL,
			result_path TEXT,
			error_msg TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ
		);`,
		`CREATE TABLE IF NOT EXISTS frames (
			seq BIGSERIAL,
			id TEXT PRIMARY KEY,
			job_id TEXT NOT NULL,
			frame_index INT NOT NULL,
			timestamp DOUBLE PRECISION NOT NULL,
			image_file TEXT,
			objects JSONB,
			caption TEXT
		);`,
		`CREATE TABLE IF NOT EXISTS transcript_chunks (
			seq BIGSERIAL,
			id TEXT PRIMARY KEY,
			job_id TEXT NOT NULL,
			chunk_index INT NOT NULL,
			start_time DOUBLE PRECISION NOT NULL,
			end_time DOUBLE PRECISION NOT NULL,
			transcript TEXT NOT NULL
		);`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS embedding_vectors (
			seq BIGSERIAL,
			id TEXT PRIMARY KEY,
			job_id TEXT NOT NULL,
			source_id TEXT NOT NULL,
			embedding vector(%d),
			text TEXT NOT NULL
		);`, s.dim),
		`CREATE TABLE IF NOT EXISTS associations (
			seq BIGSERIAL,
			id TEXT PRIMARY KEY,
			frame_id TEXT NOT NULL,
			chunk_id TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_frames_job ON frames(job_id);`,
		`CREATE INDEX IF NOT EXISTS idx_frames_job_ts ON frames(job_id, timestamp);`,
		`CREATE INDEX IF NOT EXISTS idx_chunks_job ON transcript_chunks(job_id);`,
		`CREATE INDEX IF NOT EXISTS idx_vectors_job ON embedding_vectors(job_id);`,
		`CREATE INDEX IF NOT EXISTS idx_assoc_frame ON associations(frame_id);`,
	}
	for _, stmt := range statements {
		if _, err := s.conn.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

func (s *PgStore) CreateJob(ctx context.Context, job *core.Job) error {
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now().UTC()
	}
	_, err := s.conn.Exec(ctx, `
		INSERT INTO jobs (id, kind, media_name, source_url, source_path, max_duration, status, result_path, error_msg, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		job.ID, job.Kind, job.MediaName, job.SourceURL, job.SourcePath,
		job.MaxDuration, job.Status, job.ResultPath, job.ErrorMsg, job.CreatedAt)
	return err
}

func (s *PgStore) GetJob(ctx context.Context, id string) (*core.Job, error) {
	var job core.Job
	err := s.conn.QueryRow(ctx, `
		SELECT id, kind, media_name, COALESCE(source_url, ''), COALESCE(source_path, ''),
		       COALESCE(max_duration, 0), status, COALESCE(result_path, ''), COALESCE(error_msg, ''),
		       created_at, updated_at
		FROM jobs WHERE id = $1`, id).Scan(
		&job.ID, &job.Kind, &job.MediaName, &job.SourceURL, &job.SourcePath,
		&job.MaxDuration, &job.Status, &job.ResultPath, &job.ErrorMsg,
		&job.CreatedAt, &job.UpdatedAt)
	if err == pgx.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &job, nil
}

func (s *PgStore) UpdateJob(ctx context.Context, job *core.Job) error {
	now := time.Now().UTC()
	job.UpdatedAt = &now
	tag, err := s.conn.Exec(ctx, `
		UPDATE jobs SET status = $2, result_path = $3, error_msg = $4, updated_at = $5
		WHERE id = $1`,
		job.ID, job.Status, job.ResultPath, job.ErrorMsg, now)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PgStore) InsertFrame(ctx context.Context, frame *core.FrameRecord) error {
	objects, err := json.Marshal(frame.Objects)
	if err != nil {
		return err
	}
	_, err = s.conn.Exec(ctx, `
		INSERT INTO frames (id, job_id, frame_index, timestamp, image_file, objects, caption)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		frame.ID, frame.JobID, frame.FrameIndex, frame.Timestamp, frame.ImageFile, objects, frame.Caption)
	return err
}

func (s *PgStore) InsertChunk(ctx context.Context, chunk *core.TranscriptChunk) error {
	_, err := s.conn.Exec(ctx, `
		INSERT INTO transcript_chunks (id, job_id, chunk_index, start_time, end_time, transcript)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		chunk.ID, chunk.JobID, chunk.ChunkIndex, chunk.StartTime, chunk.EndTime, chunk.Transcript)
	return err
}

func (s *PgStore) InsertVector(ctx context.Context, vec *core.EmbeddingVector) error {
	_, err := s.conn.Exec(ctx, `
		INSERT INTO embedding_vectors (id, job_id, source_id, embedding, text)
		VALUES ($1, $2, $3, $4, $5)`,
		vec.ID, vec.JobID, vec.SourceID, pgvector.NewVector(vec.Vector), vec.Text)
	return err
}

func (s *PgStore) InsertAssociations(ctx context.Context, assocs []core.Association) error {
	for _, a := range assocs {
		if _, err := s.conn.Exec(ctx, `
			INSERT INTO associations (id, frame_id, chunk_id) VALUES ($1, $2, $3)`,
			a.ID, a.FrameID, a.ChunkID); err != nil {
			return err
		}
	}
	return nil
}

func (s *PgStore) scanFrames(rows pgx.Rows) ([]core.FrameRecord, error) {
	defer rows.Close()
	var out []core.FrameRecord
	for rows.Next() {
		var f core.FrameRecord
		var objects []byte
		if err := rows.Scan(&f.ID, &f.JobID, &f.FrameIndex, &f.Timestamp, &f.ImageFile, &objects, &f.Caption); err != nil {
			return nil, err
		}
		if len(objects) > 0 {
			if err := json.Unmarshal(objects, &f.Objects); err != nil {
				return nil, err
			}
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

const frameColumns = `id, job_id, frame_index, timestamp, COALESCE(image_file, ''), objects, COALESCE(caption, '')`

func (s *PgStore) FramesForJob(ctx context.Context, jobID string) ([]core.FrameRecord, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT `+frameColumns+` FROM frames WHERE job_id = $1 ORDER BY frame_index`, jobID)
	if err != nil {
		return nil, err
	}
	return s.scanFrames(rows)
}

func (s *PgStore) FramesInRange(ctx context.Context, jobID string, start, end float64) ([]core.FrameRecord, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT `+frameColumns+` FROM frames
		WHERE job_id = $1 AND timestamp >= $2 AND timestamp < $3
		ORDER BY frame_index`, jobID, start, end)
	if err != nil {
		return nil, err
	}
	return s.scanFrames(rows)
}

func (s *PgStore) FrameByID(ctx context.Context, id string) (*core.FrameRecord, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT `+frameColumns+` FROM frames WHERE id = $1`, id)
	if err != nil {
		return nil, err
	}
	frames, err := s.scanFrames(rows)
	if err != nil {
		return nil, err
	}
	if len(frames) == 0 {
		return nil, ErrNotFound
	}
	return &frames[0], nil
}

func (s *PgStore) ChunksForJob(ctx context.Context, jobID string) ([]core.TranscriptChunk, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT id, job_id, chunk_index, start_time, end_time, transcript
		FROM transcript_chunks WHERE job_id = $1 ORDER BY chunk_index`, jobID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []core.TranscriptChunk
	for rows.Next() {
		var c core.TranscriptChunk
		if err := rows.Scan(&c.ID, &c.JobID, &c.ChunkIndex, &c.StartTime, &c.EndTime, &c.Transcript); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *PgStore) ChunkAtTime(ctx context.Context, jobID string, ts float64) (*core.TranscriptChunk, error) {
	var c core.TranscriptChunk
	err := s.conn.QueryRow(ctx, `
		SELECT id, job_id, chunk_index, start_time, end_time, transcript
		FROM transcript_chunks
		WHERE job_id = $1 AND start_time <= $2 AND end_time > $2
		ORDER BY chunk_index LIMIT 1`, jobID, ts).Scan(
		&c.ID, &c.JobID, &c.ChunkIndex, &c.StartTime, &c.EndTime, &c.Transcript)
	if err == pgx.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *PgStore) ChunkByID(ctx context.Context, id string) (*core.TranscriptChunk, error) {
	var c core.TranscriptChunk
	err := s.conn.QueryRow(ctx, `
		SELECT id, job_id, chunk_index, start_time, end_time, transcript
		FROM transcript_chunks WHERE id = $1`, id).Scan(
		&c.ID, &c.JobID, &c.ChunkIndex, &c.StartTime, &c.EndTime, &c.Transcript)
	if err == pgx.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *PgStore) VectorsForJob(ctx context.Context, jobID string) ([]core.EmbeddingVector, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT id, job_id, source_id, embedding, text
		FROM embedding_vectors WHERE job_id = $1 ORDER BY seq`, jobID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []core.EmbeddingVector
	for rows.Next() {
		var v core.EmbeddingVector
		var emb pgvector.Vector
		if err := rows.Scan(&v.ID, &v.JobID, &v.SourceID, &emb, &v.Text); err != nil {
			return nil, err
		}
		v.Vector = emb.Slice()
		out = append(out, v)
	}
	return out, rows.Err()
}

func (s *PgStore) AssociationsForJob(ctx context.Context, jobID string) ([]core.Association, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT a.id, a.frame_id, a.chunk_id
		FROM associations a JOIN frames f ON f.id = a.frame_id
		WHERE f.job_id = $1 ORDER BY a.seq`, jobID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []core.Association
	for rows.Next() {
		var a core.Association
		if err := rows.Scan(&a.ID, &a.FrameID, &a.ChunkID); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *PgStore) ChunkForFrame(ctx context.Context, frameID string) (*core.TranscriptChunk, error) {
	var c core.TranscriptChunk
	err := s.conn.QueryRow(ctx, `
		SELECT c.id, c.job_id, c.chunk_index, c.start_time, c.end_time, c.transcript
		FROM associations a JOIN transcript_chunks c ON c.id = a.chunk_id
		WHERE a.frame_id = $1 LIMIT 1`, frameID).Scan(
		&c.ID, &c.JobID, &c.ChunkIndex, &c.StartTime, &c.EndTime, &c.Transcript)
	if err == pgx.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *PgStore) FramesForChunk(ctx context.Context, chunkID string) ([]core.FrameRecord, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT f.id, f.job_id, f.frame_index, f.timestamp, COALESCE(f.image_file, ''), f.objects, COALESCE(f.caption, '')
		FROM associations a JOIN frames f ON f.id = a.frame_id
		WHERE a.chunk_id = $1 ORDER BY f.frame_index`, chunkID)
	if err != nil {
		return nil, err
	}
	return s.scanFrames(rows)
}
