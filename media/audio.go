package media

import (
	"bufio"
	"fmt"
	"io"
	"os/exec"

	"mediaIndex/core"
)

const (
	// WindowSeconds is the fixed audio unit duration.
	WindowSeconds = 5
	// DecodeSampleRate is the rate ffmpeg resamples to before windowing.
	DecodeSampleRate = 16000
)

// AudioStream yields fixed 5-second windows of mono samples, decoded lazily
// from an ffmpeg pipe. Multi-channel sources are downmixed by averaging the
// channels per sample.
type AudioStream struct {
	cmd      *exec.Cmd
	r        *bufio.Reader
	channels int
	index    int
	maxSec   float64 // 0 = natural duration
	done     bool
}

// OpenAudio validates that path has an audio stream and starts the decoder.
// maxSeconds caps extraction; 0 means the media's natural end.
func OpenAudio(path string, maxSeconds float64) (*AudioStream, error) {
	if !core.HasAudioStream(path) {
		return nil, fmt.Errorf("%w: %s", ErrNoAudioStream, path)
	}
	channels, err := core.ProbeChannels(path)
	if err != nil || channels <= 0 {
		channels = 1
	}

	// Raw interleaved 16-bit PCM; channel layout is preserved so the
	// downmix below is observable and testable.
	cmd := exec.Command("ffmpeg", "-v", "error", "-i", path, "-vn",
		"-ar", fmt.Sprint(DecodeSampleRate),
		"-ac", fmt.Sprint(channels),
		"-f", "s16le", "-acodec", "pcm_s16le", "pipe:1")
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSourceUnreadable, err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("%w: start ffmpeg: %v", ErrSourceUnreadable, err)
	}

	return &AudioStream{
		cmd:      cmd,
		r:        bufio.NewReaderSize(stdout, 1<<16),
		channels: channels,
		maxSec:   maxSeconds,
	}, nil
}

// ChunkSize is 1 for audio: each 5-second window maps to one transcript
// chunk directly.
func (s *AudioStream) ChunkSize() int { return 1 }

// Next returns the next window, or io.EOF when the stream is exhausted or
// the duration cap has been reached.
func (s *AudioStream) Next() (*core.Unit, error) {
	if s.done {
		return nil, io.EOF
	}
	start := float64(s.index * WindowSeconds)
	if s.maxSec > 0 && start >= s.maxSec {
		s.done = true
		return nil, io.EOF
	}

	frames := WindowSeconds * DecodeSampleRate
	buf := make([]byte, frames*s.channels*2)
	n, err := io.ReadFull(s.r, buf)
	if n == 0 {
		s.done = true
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("%w: read pcm: %v", ErrSourceUnreadable, err)
	}
	// Truncate to whole interleaved frames; a partial final window is kept.
	n -= n % (s.channels * 2)
	samples := downmix(buf[:n], s.channels)
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		s.done = true
	}

	unit := &core.Unit{
		Index:      s.index,
		Start:      start,
		End:        start + float64(len(samples))/DecodeSampleRate,
		Samples:    samples,
		SampleRate: DecodeSampleRate,
	}
	s.index++
	return unit, nil
}

func (s *AudioStream) Close() error {
	if s.cmd.Process != nil {
		_ = s.cmd.Process.Kill()
	}
	return s.cmd.Wait()
}

// downmix converts interleaved 16-bit PCM to mono float32 in [-1, 1] by
// averaging the channels of each frame.
func downmix(raw []byte, channels int) []float32 {
	frameBytes := channels * 2
	frames := len(raw) / frameBytes
	out := make([]float32, frames)
	for i := 0; i < frames; i++ {
		var sum float64
		for c := 0; c < channels; c++ {
			off := i*frameBytes + c*2
			v := int16(uint16(raw[off]) | uint16(raw[off+1])<<8)
			sum += float64(v)
		}
		out[i] = float32(sum / float64(channels) / 32768.0)
	}
	return out
}
