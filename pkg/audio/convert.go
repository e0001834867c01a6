package audio

// FloatToPCM16 converts normalised float32 samples to signed 16-bit PCM,
// clamping to the int16 range. The result slice has the same length as in.
func FloatToPCM16(in []float32) []int16 {
	out := make([]int16, len(in))
	for i, s := range in {
		v := s * 32768.0
		if v > 32767.0 {
			v = 32767.0
		} else if v < -32768.0 {
			v = -32768.0
		}
		out[i] = int16(v)
	}
	return out
}

// PCM16Bytes serialises int16 samples as little-endian bytes, the layout of
// the raw recording format.
func PCM16Bytes(in []int16) []byte {
	out := make([]byte, len(in)*2)
	for i, s := range in {
		out[i*2] = byte(s)
		out[i*2+1] = byte(uint16(s) >> 8)
	}
	return out
}

// ResampleFloat resamples mono float32 samples from srcRate to dstRate using
// linear interpolation. If srcRate == dstRate the input is returned unchanged.
// Inputs shorter than two samples cannot be interpolated and yield nil.
func ResampleFloat(in []float32, srcRate, dstRate int) []float32 {
	if srcRate <= 0 || dstRate <= 0 {
		return in
	}
	if srcRate == dstRate {
		return in
	}
	if len(in) < 2 {
		return nil
	}

	dstLen := int(int64(len(in)) * int64(dstRate) / int64(srcRate))
	if dstLen == 0 {
		return nil
	}

	out := make([]float32, dstLen)
	step := float64(srcRate) / float64(dstRate)
	for i := range out {
		pos := float64(i) * step
		idx := int(pos)
		frac := float32(pos - float64(idx))
		if idx+1 >= len(in) {
			idx = len(in) - 2
			frac = 1
		}
		out[i] = in[idx] + frac*(in[idx+1]-in[idx])
	}
	return out
}

// DownmixFloat averages interleaved multi-channel float32 samples to mono.
// A mono input is returned unchanged.
func DownmixFloat(in []float32, channels int) []float32 {
	if channels <= 1 {
		return in
	}
	frames := len(in) / channels
	out := make([]float32, frames)
	for i := 0; i < frames; i++ {
		var sum float32
		for ch := 0; ch < channels; ch++ {
			sum += in[i*channels+ch]
		}
		out[i] = sum / float32(channels)
	}
	return out
}
