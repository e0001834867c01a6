package audio

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/go-audio/wav"
)

// FileSource is a [Source] over a WAV file preloaded into memory. The file is
// decoded, downmixed to mono, and resampled to the pipeline rate once at open
// time, so Read never blocks beyond a memory copy.
type FileSource struct {
	samples []float32
	pos     int
	rate    int
}

var _ Source = (*FileSource)(nil)

// NewFileSource decodes the WAV file at path and prepares it for streaming at
// sampleRate. Multi-channel audio is averaged to mono; any source rate is
// accepted and linearly resampled.
func NewFileSource(path string, sampleRate int) (*FileSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("audio: open wav %q: %w", path, err)
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return nil, fmt.Errorf("audio: %q is not a valid wav file", path)
	}

	pcm, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("audio: decode wav %q: %w", path, err)
	}
	if len(pcm.Data) == 0 {
		return nil, fmt.Errorf("audio: wav %q contains no samples", path)
	}

	bitDepth := pcm.SourceBitDepth
	if bitDepth == 0 {
		bitDepth = 16
	}
	scale := float32(int64(1) << (bitDepth - 1))

	mono := make([]float32, 0, len(pcm.Data)/pcm.Format.NumChannels)
	channels := pcm.Format.NumChannels
	for i := 0; i+channels <= len(pcm.Data); i += channels {
		var sum float32
		for ch := 0; ch < channels; ch++ {
			sum += float32(pcm.Data[i+ch]) / scale
		}
		mono = append(mono, sum/float32(channels))
	}

	samples := ResampleFloat(mono, pcm.Format.SampleRate, sampleRate)
	if len(samples) == 0 {
		return nil, fmt.Errorf("audio: wav %q too short to resample", path)
	}

	slog.Info("wav file loaded",
		"path", path,
		"source_rate", pcm.Format.SampleRate,
		"channels", channels,
		"samples", len(samples),
		"rate", sampleRate,
	)

	return &FileSource{samples: samples, rate: sampleRate}, nil
}

// Read copies the next sequential slice of the preloaded buffer into buf.
// It returns io.EOF (possibly with a short count) once the file is exhausted.
func (s *FileSource) Read(ctx context.Context, buf []float32) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if s.pos >= len(s.samples) {
		return 0, io.EOF
	}
	n := copy(buf, s.samples[s.pos:])
	s.pos += n
	if n < len(buf) {
		return n, io.EOF
	}
	return n, nil
}

// SampleRate returns the pipeline rate the file was resampled to.
func (s *FileSource) SampleRate() int { return s.rate }

// Len returns the total number of samples after resampling.
func (s *FileSource) Len() int { return len(s.samples) }

// Close releases the preloaded buffer.
func (s *FileSource) Close() error {
	s.samples = nil
	s.pos = 0
	return nil
}
