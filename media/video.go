package media

import (
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"mediaIndex/core"
)

// fallbackFPS is assumed when the native rate cannot be probed.
const fallbackFPS = 25.0

// VideoStream walks rendered frame images in order, one unit per frame.
// Frames are rendered up-front by ffmpeg at the native rate; iteration over
// them stays lazy and forward-only.
type VideoStream struct {
	framesDir string
	files     []string
	fps       float64
	index     int
	maxSec    float64
}

// OpenVideo renders the frames of path into framesDir and returns a stream
// over them. maxSeconds caps extraction; 0 means the natural end.
func OpenVideo(path, framesDir string, maxSeconds float64) (*VideoStream, error) {
	if _, err := core.ProbeDuration(path); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrSourceUnreadable, path)
	}
	fps, err := core.ProbeFrameRate(path)
	if err != nil {
		return nil, fmt.Errorf("%w: probe frame rate: %v", ErrSourceUnreadable, err)
	}

	if err := os.MkdirAll(framesDir, 0755); err != nil {
		return nil, err
	}
	args := []string{"-y", "-v", "error", "-i", path}
	if maxSeconds > 0 {
		// Rendering past the cap is wasted work; iteration enforces the
		// exact boundary below.
		args = append(args, "-t", fmt.Sprintf("%.3f", maxSeconds+1))
	}
	args = append(args, filepath.Join(framesDir, "%06d.jpg"))
	if err := core.RunFFmpeg(args); err != nil {
		return nil, fmt.Errorf("%w: render frames: %v", ErrSourceUnreadable, err)
	}

	files, err := listFrames(framesDir)
	if err != nil {
		return nil, err
	}
	return &VideoStream{
		framesDir: framesDir,
		files:     files,
		fps:       fps,
		maxSec:    maxSeconds,
	}, nil
}

// FrameRate returns the probed native rate, 0 when unknown.
func (s *VideoStream) FrameRate() float64 { return s.fps }

// ChunkSize groups round(fps*5) frames per transcript chunk, minimum 25
// when the rate is unknown.
func (s *VideoStream) ChunkSize() int {
	if s.fps <= 0 {
		return 25
	}
	n := int(math.Round(s.fps * WindowSeconds))
	if n < 1 {
		n = 1
	}
	return n
}

func (s *VideoStream) Next() (*core.Unit, error) {
	if s.index >= len(s.files) {
		return nil, io.EOF
	}
	fps := s.fps
	if fps <= 0 {
		fps = fallbackFPS
	}
	ts := float64(s.index) / fps
	if s.maxSec > 0 && ts > s.maxSec {
		return nil, io.EOF
	}
	unit := &core.Unit{
		Index:     s.index,
		Start:     ts,
		End:       float64(s.index+1) / fps,
		ImageFile: s.files[s.index],
	}
	s.index++
	return unit, nil
}

func (s *VideoStream) Close() error { return nil }

func listFrames(framesDir string) ([]string, error) {
	entries, err := os.ReadDir(framesDir)
	if err != nil {
		return nil, err
	}
	type numbered struct {
		n    int
		path string
	}
	frames := make([]numbered, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		base := strings.TrimSuffix(name, filepath.Ext(name))
		n, err := strconv.Atoi(base)
		if err != nil {
			continue
		}
		frames = append(frames, numbered{n: n, path: filepath.Join(framesDir, name)})
	}
	sort.Slice(frames, func(i, j int) bool { return frames[i].n < frames[j].n })
	out := make([]string, len(frames))
	for i, f := range frames {
		out[i] = f.path
	}
	return out, nil
}
