package dsp

import "math"

// SpectrumFloorDB is the value emitted for bins whose magnitude is below the
// numeric floor, so the display never takes log10 of zero.
const SpectrumFloorDB = -200.0

// Spectrum is a windowed FFT log-magnitude estimator. It analyses the most
// recent block of real input samples and produces size/2 bins in dB.
type Spectrum struct {
	size   int
	window []float32
	buf    []complex64
}

// NewSpectrum creates an analyzer for the given FFT size, which must be a
// power of two. The analysis window is a Hann window.
func NewSpectrum(size int) *Spectrum {
	if size <= 0 || size&(size-1) != 0 {
		panic("dsp: spectrum size must be a power of two")
	}
	s := &Spectrum{
		size:   size,
		window: make([]float32, size),
		buf:    make([]complex64, size),
	}
	for i := range s.window {
		s.window[i] = float32(0.5 * (1.0 - math.Cos(2.0*math.Pi*float64(i)/float64(size-1))))
	}
	return s
}

// Size returns the FFT size.
func (s *Spectrum) Size() int { return s.size }

// Bins returns the number of output bins (half the FFT size).
func (s *Spectrum) Bins() int { return s.size / 2 }

// Analyze windows the last Size() samples of in, runs the FFT, and writes
// Bins() log-magnitude values in dB into out. len(in) must be at least Size()
// and len(out) at least Bins(); callers gate on those before each iteration.
func (s *Spectrum) Analyze(in []float32, out []float32) {
	offset := len(in) - s.size
	for i := 0; i < s.size; i++ {
		s.buf[i] = complex(in[offset+i]*s.window[i], 0)
	}

	FFT(s.buf)

	scale := float64(s.size) * 0.5
	for i := 0; i < s.size/2; i++ {
		re := float64(real(s.buf[i]))
		im := float64(imag(s.buf[i]))
		mag := math.Sqrt(re*re+im*im) / scale
		if mag > 1e-10 {
			out[i] = float32(20.0 * math.Log10(mag))
		} else {
			out[i] = SpectrumFloorDB
		}
	}
}
