// Package mock provides in-memory mock implementations of the [audio.Source]
// and [audio.Sink] interfaces for use in unit tests.
//
// All mocks are safe for concurrent use. They record every method call so
// that tests can assert on call counts and captured samples, and they expose
// exported fields that the test can set to control return values.
//
// Typical usage:
//
//	src := &mock.Source{Samples: ramp(4000), Rate: 8000}
//	sink := &mock.Sink{}
//	// run the pipeline, then inspect sink.Written()
package mock

import (
	"context"
	"io"
	"sync"

	"github.com/kv9n/radaemon/pkg/audio"
)

// ─── Source ───────────────────────────────────────────────────────────────────

// Source is a mock implementation of [audio.Source] that streams from an
// in-memory sample slice, mimicking the file-mode source. After the slice is
// exhausted, Read returns ReadErr (or io.EOF when ReadErr is nil).
type Source struct {
	mu sync.Mutex

	// Samples is the full stream content handed out by successive Reads.
	Samples []float32

	// Rate is returned by SampleRate. Defaults to 8000 if zero.
	Rate int

	// ReadErr overrides the error returned at exhaustion.
	ReadErr error

	// CloseErr is returned by Close.
	CloseErr error

	pos int

	// CallCountRead records how many times Read was called.
	CallCountRead int

	// CallCountClose records how many times Close was called.
	CallCountClose int
}

var _ audio.Source = (*Source)(nil)

// Read copies the next samples into buf, honouring context cancellation.
func (s *Source) Read(ctx context.Context, buf []float32) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.CallCountRead++

	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if s.pos >= len(s.Samples) {
		return 0, s.exhaustedErr()
	}
	n := copy(buf, s.Samples[s.pos:])
	s.pos += n
	if n < len(buf) {
		return n, s.exhaustedErr()
	}
	return n, nil
}

func (s *Source) exhaustedErr() error {
	if s.ReadErr != nil {
		return s.ReadErr
	}
	return io.EOF
}

// SampleRate returns Rate, defaulting to 8000.
func (s *Source) SampleRate() int {
	if s.Rate == 0 {
		return 8000
	}
	return s.Rate
}

// Close records the call and returns CloseErr.
func (s *Source) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.CallCountClose++
	return s.CloseErr
}

// ─── Sink ─────────────────────────────────────────────────────────────────────

// Sink is a mock implementation of [audio.Sink] that captures every sample
// written to it.
type Sink struct {
	mu sync.Mutex

	// WriteErr is returned by every Write call when non-nil.
	WriteErr error

	// FlushErr is returned by Flush.
	FlushErr error

	// CloseErr is returned by Close.
	CloseErr error

	written []float32

	// CallCountWrite records how many times Write was called.
	CallCountWrite int

	// CallCountFlush records how many times Flush was called.
	CallCountFlush int

	// CallCountClose records how many times Close was called.
	CallCountClose int
}

var _ audio.Sink = (*Sink)(nil)

// Write appends samples to the captured stream.
func (s *Sink) Write(ctx context.Context, samples []float32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.CallCountWrite++
	if s.WriteErr != nil {
		return s.WriteErr
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.written = append(s.written, samples...)
	return nil
}

// Flush records the call and returns FlushErr.
func (s *Sink) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.CallCountFlush++
	return s.FlushErr
}

// Close records the call and returns CloseErr.
func (s *Sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.CallCountClose++
	return s.CloseErr
}

// Written returns a copy of all samples written so far.
func (s *Sink) Written() []float32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]float32, len(s.written))
	copy(out, s.written)
	return out
}
