// Package modem defines the contract between the radaemon receive pipeline
// and the synchronizing OFDM demodulator engine.
//
// The engine is a black box behind the [Modem] interface: the pipeline feeds
// it analytic (complex baseband) samples and receives decoded acoustic
// feature frames plus synchronization telemetry. Concrete engines live in
// sub-packages (modem/rade for the native C engine, modem/mock for tests) and
// are injected at pipeline open.
package modem

// Result is the outcome of one Demodulate call.
type Result struct {
	// Frames holds zero or more decoded feature frames, each FeatureDim()
	// floats long, in decode order. Zero frames is valid and expected while
	// the demodulator is acquiring lock.
	Frames [][]float32

	// EndOfOver reports that the sender signalled end of transmission.
	EndOfOver bool

	// EOOBits carries the soft end-of-over bits when EndOfOver is set.
	EOOBits []float32
}

// Modem is a synchronizing demodulator session.
//
// The input demand protocol is strict: callers must query Nin before
// accumulating input for the next Demodulate call — the value is
// state-dependent and may shrink or grow between calls as the demodulator
// moves between acquisition and tracking — and must then pass exactly that
// many samples, never more, never fewer. NinMax bounds Nin over the session
// lifetime and is meant to size buffers once.
//
// Implementations are not safe for concurrent use; the receive worker owns
// the session exclusively.
type Modem interface {
	// Nin returns the number of analytic samples the next Demodulate call
	// requires.
	Nin() int

	// NinMax returns the fixed upper bound of Nin.
	NinMax() int

	// FeatureDim returns the length of each decoded feature frame.
	FeatureDim() int

	// NumEOOBits returns the length of the end-of-over bit vector.
	NumEOOBits() int

	// Demodulate consumes exactly the previously demanded Nin samples.
	Demodulate(in []complex64) (Result, error)

	// Synced reports whether the demodulator currently has sync.
	Synced() bool

	// SNRdB returns the signal-to-noise estimate. Only meaningful while
	// synced; implementations return the last/default value otherwise.
	SNRdB() float32

	// FreqOffsetHz returns the estimated carrier frequency offset. Only
	// meaningful while synced.
	FreqOffsetHz() float32

	// Close destroys the session.
	Close() error
}
