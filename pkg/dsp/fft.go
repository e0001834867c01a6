package dsp

import "math"

// FFT computes an in-place radix-2 Cooley–Tukey FFT of x. len(x) must be a
// power of two; the function panics otherwise. The transform is forward
// (negative twiddle exponent) and unnormalised.
func FFT(x []complex64) {
	n := len(x)
	if n == 0 || n&(n-1) != 0 {
		panic("dsp: FFT size must be a power of two")
	}

	// Bit-reversal permutation.
	for i, j := 1, 0; i < n; i++ {
		bit := n >> 1
		for ; j&bit != 0; bit >>= 1 {
			j ^= bit
		}
		j ^= bit
		if i < j {
			x[i], x[j] = x[j], x[i]
		}
	}

	// Butterfly passes with a twiddle recurrence per block length.
	for length := 2; length <= n; length <<= 1 {
		ang := -2.0 * math.Pi / float64(length)
		wlen := complex(float32(math.Cos(ang)), float32(math.Sin(ang)))
		for i := 0; i < n; i += length {
			w := complex64(complex(1, 0))
			half := length / 2
			for j := 0; j < half; j++ {
				u := x[i+j]
				v := x[i+j+half] * w
				x[i+j] = u + v
				x[i+j+half] = u - v
				w *= wlen
			}
		}
	}
}
