// Package dsp provides the streaming signal-processing primitives used by the
// radaemon receive pipeline: a streaming Hilbert transformer that converts
// real modem-rate samples to an analytic (complex baseband) signal, and a
// windowed FFT spectrum analyzer for the input monitor display.
//
// Both types are single-goroutine streaming transforms: they carry internal
// state between calls and must not be shared across goroutines without
// external synchronisation. The receive worker owns them exclusively.
package dsp

import "math"

// HilbertTaps is the FIR length of the streaming Hilbert transformer.
const HilbertTaps = 127

// HilbertDelay is the group delay of the transformer in samples. The real
// component of every output sample is the input delayed by exactly this many
// samples so that it stays time-aligned with the filtered imaginary component.
const HilbertDelay = (HilbertTaps - 1) / 2 // 63

// Analytic converts a real-valued sample stream into its analytic signal:
// out[i] = (in[i-63], hilbert(in)[i]). The first HilbertDelay outputs are the
// zero-fill of the group delay.
type Analytic struct {
	coeffs [HilbertTaps]float32

	hist    [HilbertTaps]float32 // FIR history ring
	histPos int

	delay    [HilbertTaps]float32 // real-part delay ring
	delayPos int
}

// NewAnalytic creates a streaming Hilbert transformer with a Hamming-windowed
// ideal Hilbert response. Even taps (including the center) are exactly zero.
func NewAnalytic() *Analytic {
	a := &Analytic{}
	for i := 0; i < HilbertTaps; i++ {
		k := i - HilbertDelay
		if k == 0 || k%2 == 0 {
			continue
		}
		h := 2.0 / (math.Pi * float64(k))
		w := 0.54 - 0.46*math.Cos(2.0*math.Pi*float64(i)/float64(HilbertTaps-1))
		a.coeffs[i] = float32(h * w)
	}
	return a
}

// Reset clears both rings, returning the transformer to its initial state.
func (a *Analytic) Reset() {
	a.hist = [HilbertTaps]float32{}
	a.delay = [HilbertTaps]float32{}
	a.histPos = 0
	a.delayPos = 0
}

// Process converts len(in) real samples into analytic samples appended to
// out[:0]. out must have capacity for len(in) samples; the filled slice is
// returned. Output sample i carries the input delayed by HilbertDelay in its
// real part and the Hilbert-filtered input in its imaginary part.
func (a *Analytic) Process(in []float32, out []complex64) []complex64 {
	out = out[:0]
	for _, sample := range in {
		a.hist[a.histPos] = sample

		// Taps with an even offset from the center are zero, so only every
		// second tap contributes to the convolution.
		var imag float32
		for k := 0; k < HilbertTaps; k += 2 {
			idx := a.histPos - k
			if idx < 0 {
				idx += HilbertTaps
			}
			imag += a.coeffs[k] * a.hist[idx]
		}

		a.delay[a.delayPos] = sample
		readPos := a.delayPos - HilbertDelay
		if readPos < 0 {
			readPos += HilbertTaps
		}
		out = append(out, complex(a.delay[readPos], imag))

		a.histPos = (a.histPos + 1) % HilbertTaps
		a.delayPos = (a.delayPos + 1) % HilbertTaps
	}
	return out
}
