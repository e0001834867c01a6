// Package mock provides an in-memory mock implementation of the
// [vocoder.Vocoder] interface for receiver tests.
//
// The mock records priming blocks and synthesized feature frames, and emits a
// deterministic PCM ramp so tests can assert output ordering and energy.
package mock

import (
	"errors"
	"sync"

	"github.com/kv9n/radaemon/pkg/vocoder"
)

// Vocoder is a mock implementation of [vocoder.Vocoder].
// Safe for concurrent use.
type Vocoder struct {
	mu sync.Mutex

	// FeatureDimResult is returned by FeatureDim. Defaults to 20 if zero.
	FeatureDimResult int

	// WarmupFramesResult is returned by WarmupFrames. Defaults to 5 if zero.
	WarmupFramesResult int

	// FrameSizeResult is returned by FrameSize. Defaults to 160 if zero.
	FrameSizeResult int

	// RateResult is returned by SampleRate. Defaults to 16000 if zero.
	RateResult int

	// FrameValue is the constant sample value of every synthesized frame.
	// Defaults to 0.5 if zero, so output frames carry measurable energy.
	FrameValue float32

	// PrimeErr is returned by Prime when non-nil.
	PrimeErr error

	// SynthesizeErr is returned by Synthesize when non-nil.
	SynthesizeErr error

	primed bool

	// PrimedBlocks records every packed block passed to Prime.
	PrimedBlocks [][]float32

	// SynthesizedFrames records every feature frame passed to Synthesize.
	SynthesizedFrames [][]float32

	// CallCountPrime records how many times Prime was called.
	CallCountPrime int

	// CallCountSynthesize records how many times Synthesize was called.
	CallCountSynthesize int

	// CallCountReset records how many times Reset was called.
	CallCountReset int

	// CallCountClose records how many times Close was called.
	CallCountClose int
}

var _ vocoder.Vocoder = (*Vocoder)(nil)

// FeatureDim returns FeatureDimResult.
func (v *Vocoder) FeatureDim() int {
	if v.FeatureDimResult > 0 {
		return v.FeatureDimResult
	}
	return 20
}

// WarmupFrames returns WarmupFramesResult.
func (v *Vocoder) WarmupFrames() int {
	if v.WarmupFramesResult > 0 {
		return v.WarmupFramesResult
	}
	return 5
}

// FrameSize returns FrameSizeResult.
func (v *Vocoder) FrameSize() int {
	if v.FrameSizeResult > 0 {
		return v.FrameSizeResult
	}
	return 160
}

// SampleRate returns RateResult.
func (v *Vocoder) SampleRate() int {
	if v.RateResult > 0 {
		return v.RateResult
	}
	return 16000
}

// Prime records the packed block and marks the session primed.
func (v *Vocoder) Prime(packed []float32) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.CallCountPrime++
	if v.PrimeErr != nil {
		return v.PrimeErr
	}
	block := make([]float32, len(packed))
	copy(block, packed)
	v.PrimedBlocks = append(v.PrimedBlocks, block)
	v.primed = true
	return nil
}

// Synthesize records the frame and returns a constant-valued PCM frame.
func (v *Vocoder) Synthesize(features []float32) ([]float32, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.CallCountSynthesize++
	if v.SynthesizeErr != nil {
		return nil, v.SynthesizeErr
	}
	if !v.primed {
		return nil, errors.New("mock vocoder: synthesize before prime")
	}
	frame := make([]float32, len(features))
	copy(frame, features)
	v.SynthesizedFrames = append(v.SynthesizedFrames, frame)

	value := v.FrameValue
	if value == 0 {
		value = 0.5
	}
	pcm := make([]float32, v.frameSizeLocked())
	for i := range pcm {
		pcm[i] = value
	}
	return pcm, nil
}

func (v *Vocoder) frameSizeLocked() int {
	if v.FrameSizeResult > 0 {
		return v.FrameSizeResult
	}
	return 160
}

// Reset clears the primed state.
func (v *Vocoder) Reset() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.CallCountReset++
	v.primed = false
}

// Primed reports whether the session is currently primed.
func (v *Vocoder) Primed() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.primed
}

// Close records the call.
func (v *Vocoder) Close() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.CallCountClose++
	return nil
}
