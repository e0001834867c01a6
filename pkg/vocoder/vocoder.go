// Package vocoder defines the contract between the radaemon receive pipeline
// and the streaming neural vocoder that turns decoded acoustic feature frames
// into speech.
//
// The vocoder is stateful: it must be primed with a fixed number of warm-up
// frames before it can validly synthesize, and it must be reset and re-primed
// whenever the feature stream is interrupted (the receiver does this on every
// loss of demodulator sync). Concrete engines live in sub-packages
// (vocoder/fargan for the native C engine, vocoder/mock for tests).
package vocoder

// Vocoder is a streaming speech synthesizer session.
//
// The warm-up protocol: collect WarmupFrames feature frames, narrow each to
// FeatureDim values, and pass the packed block to Prime. Only after Prime may
// Synthesize be called, once per subsequent frame. Reset discards all
// recurrent state, after which Prime is required again.
//
// Implementations are not safe for concurrent use; the receive worker owns
// the session exclusively.
type Vocoder interface {
	// FeatureDim returns the number of leading feature values the vocoder
	// consumes per frame. Decoded frames may be wider; the extra values are
	// modem-side bookkeeping the vocoder never sees.
	FeatureDim() int

	// WarmupFrames returns the number of frames Prime requires.
	WarmupFrames() int

	// FrameSize returns the number of PCM samples produced per frame.
	FrameSize() int

	// SampleRate returns the native output rate in Hz.
	SampleRate() int

	// Prime seeds the recurrent state from a packed block of
	// WarmupFrames()*FeatureDim() feature values and a zeroed excitation
	// history. The warm-up frames themselves are never synthesized.
	Prime(packed []float32) error

	// Synthesize produces one FrameSize() PCM frame from a feature frame.
	// Only the first FeatureDim() values of features are consumed.
	Synthesize(features []float32) ([]float32, error)

	// Reset discards all recurrent state. Prime is required before the next
	// Synthesize.
	Reset()

	// Close destroys the session.
	Close() error
}
