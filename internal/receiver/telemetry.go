package receiver

import (
	"math"
	"sync"
	"sync/atomic"
)

// atomicFloat32 is a float32 with atomic load/store semantics, backed by its
// IEEE-754 bit pattern.
type atomicFloat32 struct {
	bits atomic.Uint32
}

func (f *atomicFloat32) Load() float32   { return math.Float32frombits(f.bits.Load()) }
func (f *atomicFloat32) Store(v float32) { f.bits.Store(math.Float32bits(v)) }

// Telemetry is the thread-safe status surface shared between the receive
// worker (single writer) and any number of readers (status API, UI layer).
//
// The scalar fields are independent atomics: each is individually coherent
// but no cross-field consistency is guaranteed — none is required, since a
// meter display tolerates one field lagging another by an iteration. The
// spectrum array is the only compound value and is guarded by its own mutex,
// held only for the copy in or out.
type Telemetry struct {
	running   atomic.Bool
	synced    atomic.Bool
	recording atomic.Bool

	snrDB       atomicFloat32
	freqOffset  atomicFloat32
	inputLevel  atomicFloat32
	outputLevel atomicFloat32
	gain        atomicFloat32

	spectrumMu sync.Mutex
	spectrum   []float32
}

// NewTelemetry creates a telemetry surface with the given spectrum bin count
// and unity gain.
func NewTelemetry(spectrumBins int) *Telemetry {
	t := &Telemetry{spectrum: make([]float32, spectrumBins)}
	t.gain.Store(1)
	return t
}

// Running reports whether the receive worker is active.
func (t *Telemetry) Running() bool { return t.running.Load() }

// Synced reports demodulator lock.
func (t *Telemetry) Synced() bool { return t.synced.Load() }

// Recording reports whether the raw recording sink is active.
func (t *Telemetry) Recording() bool { return t.recording.Load() }

// SNRdB returns the last published SNR estimate.
func (t *Telemetry) SNRdB() float32 { return t.snrDB.Load() }

// FreqOffsetHz returns the last published carrier frequency offset.
func (t *Telemetry) FreqOffsetHz() float32 { return t.freqOffset.Load() }

// InputLevel returns the RMS level of the last input block.
func (t *Telemetry) InputLevel() float32 { return t.inputLevel.Load() }

// OutputLevel returns the RMS level of the last synthesized audio.
func (t *Telemetry) OutputLevel() float32 { return t.outputLevel.Load() }

// Gain returns the current linear input gain multiplier.
func (t *Telemetry) Gain() float32 { return t.gain.Load() }

// SetGain stores a new linear input gain multiplier. Callers present gain to
// users in dB and convert before storing.
func (t *Telemetry) SetGain(g float32) { t.gain.Store(g) }

// SpectrumBins returns the fixed length of the spectrum snapshot.
func (t *Telemetry) SpectrumBins() int { return len(t.spectrum) }

// Spectrum copies the current spectrum snapshot (dB per bin) into a fresh
// slice. Readers always observe a complete, consistent array.
func (t *Telemetry) Spectrum() []float32 {
	t.spectrumMu.Lock()
	defer t.spectrumMu.Unlock()
	out := make([]float32, len(t.spectrum))
	copy(out, t.spectrum)
	return out
}

// publishSpectrum replaces the spectrum snapshot. Called by the worker only.
func (t *Telemetry) publishSpectrum(bins []float32) {
	t.spectrumMu.Lock()
	copy(t.spectrum, bins)
	t.spectrumMu.Unlock()
}

// reset restores all scalar fields to their defaults. The spectrum snapshot
// is zeroed as well. Called on close.
func (t *Telemetry) reset() {
	t.running.Store(false)
	t.synced.Store(false)
	t.snrDB.Store(0)
	t.freqOffset.Store(0)
	t.inputLevel.Store(0)
	t.outputLevel.Store(0)

	t.spectrumMu.Lock()
	for i := range t.spectrum {
		t.spectrum[i] = 0
	}
	t.spectrumMu.Unlock()
}

// Snapshot is a point-in-time JSON view of the scalar telemetry, served by
// the status API.
type Snapshot struct {
	Running      bool    `json:"running"`
	Synced       bool    `json:"synced"`
	SNRdB        float32 `json:"snr_db"`
	FreqOffsetHz float32 `json:"freq_offset_hz"`
	InputLevel   float32 `json:"input_level"`
	OutputLevel  float32 `json:"output_level"`
	GainDB       float64 `json:"gain_db"`
	Recording    bool    `json:"recording"`
}

// Snapshot assembles the current scalar telemetry. Fields are read
// individually; the result is not a cross-field-consistent transaction.
func (t *Telemetry) Snapshot() Snapshot {
	return Snapshot{
		Running:      t.Running(),
		Synced:       t.Synced(),
		SNRdB:        t.SNRdB(),
		FreqOffsetHz: t.FreqOffsetHz(),
		InputLevel:   t.InputLevel(),
		OutputLevel:  t.OutputLevel(),
		GainDB:       20 * math.Log10(math.Max(float64(t.Gain()), 1e-6)),
		Recording:    t.Recording(),
	}
}
