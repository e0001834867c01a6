package receiver

import (
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"

	"github.com/kv9n/radaemon/pkg/audio"
)

// recordingSink tees pre-gain capture samples to a raw PCM file: headerless
// signed 16-bit little-endian, mono, at the pipeline input rate.
//
// The sink has its own lock, independent of the spectrum lock and the
// receiver lifecycle, so a slow disk write can never stall telemetry readers
// and start/stop work whether or not the pipeline is running. The active
// flag is an atomic so the worker's per-iteration check stays lock-free.
type recordingSink struct {
	active atomic.Bool

	mu sync.Mutex
	f  *os.File
}

// Start opens path for writing and activates the tee. Starting while already
// recording is a no-op.
func (r *recordingSink) Start(path string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.f != nil {
		return nil
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("receiver: start recording: %w", err)
	}
	r.f = f
	r.active.Store(true)
	slog.Info("recording started", "path", path, "format", "s16le mono 8000 Hz")
	return nil
}

// Stop deactivates the tee and closes the file.
func (r *recordingSink) Stop() {
	r.active.Store(false)
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.f != nil {
		if err := r.f.Close(); err != nil {
			slog.Warn("recording close error", "err", err)
		}
		r.f = nil
		slog.Info("recording stopped")
	}
}

// Active reports whether the tee is currently enabled.
func (r *recordingSink) Active() bool { return r.active.Load() }

// Write converts samples to 16-bit PCM and appends them to the recording
// file. Returns the number of bytes written. Racing a concurrent Stop is
// benign: the write is skipped once the file is gone.
func (r *recordingSink) Write(samples []float32) (int, error) {
	data := audio.PCM16Bytes(audio.FloatToPCM16(samples))
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.f == nil {
		return 0, nil
	}
	n, err := r.f.Write(data)
	if err != nil {
		return n, fmt.Errorf("receiver: recording write: %w", err)
	}
	return n, nil
}
