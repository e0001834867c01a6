// Package audio defines the source and sink collaborators of the radaemon
// receive pipeline and their real backends.
//
// The two primary abstractions are:
//
//   - [Source] — a blocking supplier of mono float32 samples at a fixed rate
//     (a live capture device, or a preloaded file buffer).
//   - [Sink] — a blocking consumer of mono float32 samples (a playback device).
//
// Implementations ship in this package (PortAudio capture/playback, WAV file
// source) and in audio/mock for tests. The interfaces are intentionally
// narrow to keep the receiver decoupled from backend details.
package audio

import "context"

// Source supplies mono float32 samples at a fixed sample rate.
//
// Read blocks until len(buf) samples are available (or the context is done)
// and reports how many samples were written into buf. A Source whose stream
// is finite returns io.EOF once exhausted; a short read is only valid
// together with a non-nil error. Implementations must honour a bounded wait
// so that cancellation latency stays small.
type Source interface {
	Read(ctx context.Context, buf []float32) (int, error)
	SampleRate() int
	Close() error
}

// Sink consumes mono float32 samples. Write blocks until the backend has
// accepted all of samples or the context is done. Flush hands any partially
// buffered block to the backend; audio already queued there may still be
// playing until Close, which blocks while the backend drains.
type Sink interface {
	Write(ctx context.Context, samples []float32) error
	Flush() error
	Close() error
}
