package pipeline

import (
	"testing"

	"mediaIndex/core"
)

func unit(index int, start, end float64, text string) *core.Unit {
	return &core.Unit{Index: index, Start: start, End: end, Text: text}
}

func TestChunkerAudioWindows(t *testing.T) {
	// 12 seconds of audio in 5s windows: [0,5) [5,10) [10,12).
	c := NewChunker(1)
	var chunks []*core.TranscriptChunk
	for i, span := range [][2]float64{{0, 5}, {5, 10}, {10, 12}} {
		chunk := c.Add(unit(i, span[0], span[1], "w"))
		if chunk == nil {
			t.Fatalf("window %d: expected a chunk per window", i)
		}
		chunks = append(chunks, chunk)
	}
	if c.Flush() != nil {
		t.Fatal("flush after complete groups should emit nothing")
	}
	for i, chunk := range chunks {
		if chunk.ChunkIndex != i {
			t.Errorf("chunk %d: index = %d", i, chunk.ChunkIndex)
		}
	}
	if chunks[2].StartTime != 10 || chunks[2].EndTime != 12 {
		t.Errorf("final chunk span = [%v, %v), want [10, 12)", chunks[2].StartTime, chunks[2].EndTime)
	}
	for i := 1; i < len(chunks); i++ {
		if chunks[i].StartTime != chunks[i-1].EndTime {
			t.Errorf("chunk %d does not start where chunk %d ends", i, i-1)
		}
	}
}

func TestChunkerGroupsFrames(t *testing.T) {
	// 60 frames at group size 25: two full groups and a 10-frame leftover.
	c := NewChunker(25)
	fps := 5.0
	var chunks []*core.TranscriptChunk
	for i := 0; i < 60; i++ {
		start := float64(i) / fps
		end := float64(i+1) / fps
		if chunk := c.Add(unit(i, start, end, "frame")); chunk != nil {
			chunks = append(chunks, chunk)
		}
	}
	if len(chunks) != 2 {
		t.Fatalf("got %d chunks before flush, want 2", len(chunks))
	}
	last := c.Flush()
	if last == nil {
		t.Fatal("expected leftover frames to flush into a final chunk")
	}
	chunks = append(chunks, last)

	if chunks[0].StartTime != 0 || chunks[0].EndTime != 5 {
		t.Errorf("chunk 0 span = [%v, %v), want [0, 5)", chunks[0].StartTime, chunks[0].EndTime)
	}
	if last.ChunkIndex != 2 {
		t.Errorf("leftover chunk index = %d, want 2", last.ChunkIndex)
	}
	if last.StartTime != 10 || last.EndTime != 12 {
		t.Errorf("leftover span = [%v, %v), want [10, 12)", last.StartTime, last.EndTime)
	}
}

func TestChunkerSkipsEmptyTexts(t *testing.T) {
	c := NewChunker(3)
	c.Add(unit(0, 0, 1, "a dog"))
	c.Add(unit(1, 1, 2, ""))
	chunk := c.Add(unit(2, 2, 3, "a park"))
	if chunk == nil {
		t.Fatal("expected chunk after three units")
	}
	if chunk.Transcript != "a dog a park" {
		t.Errorf("transcript = %q, want %q", chunk.Transcript, "a dog a park")
	}
}

func TestChunkerAllEmptyGroup(t *testing.T) {
	c := NewChunker(2)
	c.Add(unit(0, 0, 1, ""))
	chunk := c.Add(unit(1, 1, 2, ""))
	if chunk == nil {
		t.Fatal("expected chunk")
	}
	if chunk.Transcript != "" {
		t.Errorf("all-empty group transcript = %q, want empty", chunk.Transcript)
	}
}

func TestChunkerFlushEmpty(t *testing.T) {
	if NewChunker(4).Flush() != nil {
		t.Fatal("flush with no pending units should return nil")
	}
}
