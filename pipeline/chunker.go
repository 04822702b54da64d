package pipeline

import (
	"strings"

	"mediaIndex/core"
)

// Chunker groups consecutive units into transcript chunks of a fixed unit
// count. Chunk boundaries come from the units' own timestamps, so re-running
// it over the same sequence reproduces identical chunks.
type Chunker struct {
	size  int
	index int

	texts []string
	start float64
	end   float64
}

func NewChunker(size int) *Chunker {
	if size < 1 {
		size = 1
	}
	return &Chunker{size: size}
}

// Add feeds the next unit in order. When the unit completes a group, the
// finished chunk is returned; otherwise nil.
func (c *Chunker) Add(u *core.Unit) *core.TranscriptChunk {
	if len(c.texts) == 0 {
		c.start = u.Start
	}
	c.texts = append(c.texts, u.Text)
	c.end = u.End
	if len(c.texts) < c.size {
		return nil
	}
	return c.emit()
}

// Flush emits the final partial group, if any. A shorter last chunk keeps
// its own time span.
func (c *Chunker) Flush() *core.TranscriptChunk {
	if len(c.texts) == 0 {
		return nil
	}
	return c.emit()
}

func (c *Chunker) emit() *core.TranscriptChunk {
	chunk := &core.TranscriptChunk{
		ChunkIndex: c.index,
		StartTime:  c.start,
		EndTime:    c.end,
		Transcript: joinTexts(c.texts),
	}
	c.index++
	c.texts = c.texts[:0]
	return chunk
}

// joinTexts concatenates unit texts with single spaces. Empty texts
// contribute nothing, so an all-empty group yields an empty transcript
// rather than a run of separators.
func joinTexts(texts []string) string {
	parts := make([]string, 0, len(texts))
	for _, t := range texts {
		if t == "" {
			continue
		}
		parts = append(parts, t)
	}
	return strings.Join(parts, " ")
}
