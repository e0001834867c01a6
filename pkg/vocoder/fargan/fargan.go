// Package fargan implements the [vocoder.Vocoder] interface on top of the
// native FARGAN synthesizer via CGO. The Opus development tree that ships
// fargan.h and lpcnet.h must be available at build time via C_INCLUDE_PATH,
// with the matching static library on LIBRARY_PATH.
package fargan

/*
#cgo LDFLAGS: -lopus-dnn -lm
#include <fargan.h>
#include <lpcnet.h>
*/
import "C"

import (
	"errors"
	"fmt"
	"unsafe"

	"github.com/kv9n/radaemon/pkg/vocoder"
)

// Compile-time assertion that Fargan satisfies vocoder.Vocoder.
var _ vocoder.Vocoder = (*Fargan)(nil)

const (
	// featureDim is the conditioning feature count FARGAN consumes per
	// frame (NB_FEATURES in the C headers).
	featureDim = C.NB_FEATURES

	// warmupFrames is the continuity block length fargan_cont expects.
	warmupFrames = 5

	// frameSize is the PCM samples per 10 ms synthesis frame at 16 kHz.
	frameSize = C.LPCNET_FRAME_SIZE

	sampleRate = 16000
)

// Fargan is a native FARGAN vocoder session.
type Fargan struct {
	st     *C.FARGANState
	primed bool
}

// New creates an unprimed FARGAN session.
func New() *Fargan {
	f := &Fargan{st: (*C.FARGANState)(C.malloc(C.sizeof_FARGANState))}
	C.fargan_init(f.st)
	return f
}

// FeatureDim returns the conditioning feature count per frame.
func (f *Fargan) FeatureDim() int { return featureDim }

// WarmupFrames returns the continuity block length.
func (f *Fargan) WarmupFrames() int { return warmupFrames }

// FrameSize returns the PCM samples per synthesized frame.
func (f *Fargan) FrameSize() int { return frameSize }

// SampleRate returns the native output rate.
func (f *Fargan) SampleRate() int { return sampleRate }

// Prime seeds the recurrent state from the packed warm-up block with a
// zeroed excitation history.
func (f *Fargan) Prime(packed []float32) error {
	if len(packed) != warmupFrames*featureDim {
		return fmt.Errorf("fargan: packed warm-up block has %d values, want %d",
			len(packed), warmupFrames*featureDim)
	}
	var zeros [C.FARGAN_CONT_SAMPLES]C.float
	C.fargan_cont(f.st,
		&zeros[0],
		(*C.float)(unsafe.Pointer(&packed[0])),
	)
	f.primed = true
	return nil
}

// Synthesize produces one PCM frame. The session must be primed.
func (f *Fargan) Synthesize(features []float32) ([]float32, error) {
	if !f.primed {
		return nil, errors.New("fargan: synthesize before prime")
	}
	if len(features) < featureDim {
		return nil, fmt.Errorf("fargan: feature frame has %d values, want at least %d",
			len(features), featureDim)
	}
	pcm := make([]float32, frameSize)
	C.fargan_synthesize(f.st,
		(*C.float)(unsafe.Pointer(&pcm[0])),
		(*C.float)(unsafe.Pointer(&features[0])),
	)
	return pcm, nil
}

// Reset reinitialises the recurrent state; Prime is required again.
func (f *Fargan) Reset() {
	C.fargan_init(f.st)
	f.primed = false
}

// Close frees the native state.
func (f *Fargan) Close() error {
	if f.st != nil {
		C.free(unsafe.Pointer(f.st))
		f.st = nil
	}
	return nil
}
