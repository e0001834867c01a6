package modem

// SplitFrames slices a flat decoded feature buffer into frames of dim values
// each. Engines report decode output as one flat float array covering a
// whole burst; each frame within it is exactly dim wide. A trailing
// remainder shorter than dim is dropped, since a partial frame carries no
// synthesizable features.
func SplitFrames(flat []float32, dim int) [][]float32 {
	if dim <= 0 {
		return nil
	}
	n := len(flat) / dim
	if n == 0 {
		return nil
	}
	frames := make([][]float32, 0, n)
	for i := 0; i < n; i++ {
		frame := make([]float32, dim)
		copy(frame, flat[i*dim:(i+1)*dim])
		frames = append(frames, frame)
	}
	return frames
}
