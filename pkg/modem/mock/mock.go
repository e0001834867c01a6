// Package mock provides a scripted mock implementation of the [modem.Modem]
// interface for receiver tests.
//
// The mock plays back a fixed sequence of [Step] values, one per Demodulate
// call, so tests can drive the receiver through acquisition, tracking, sync
// loss, and end-of-over scenarios deterministically. After the script is
// exhausted the mock keeps returning the zero outcome (no frames, unsynced)
// with DefaultNin demand.
package mock

import (
	"fmt"
	"sync"

	"github.com/kv9n/radaemon/pkg/modem"
)

// Step describes the modem's behaviour for one Demodulate call: the input
// demand it advertises beforehand and the outcome it reports afterwards.
type Step struct {
	// Nin is the input demand advertised before this call.
	Nin int

	// Frames are the feature frames returned by this call.
	Frames [][]float32

	// Synced is the sync state reported after this call.
	Synced bool

	// SNRdB and FreqOffsetHz are the telemetry reported after this call.
	SNRdB        float32
	FreqOffsetHz float32

	// EndOfOver and EOOBits are the end-of-transmission outcome.
	EndOfOver bool
	EOOBits   []float32

	// Err, when non-nil, is returned by Demodulate instead of the outcome.
	Err error
}

// Modem is a scripted mock implementation of [modem.Modem].
// Safe for concurrent use.
type Modem struct {
	mu sync.Mutex

	// Steps is the playback script, consumed one entry per Demodulate call.
	Steps []Step

	// DefaultNin is the demand advertised once Steps is exhausted (and for
	// an empty script). Defaults to 160 if zero.
	DefaultNin int

	// NinMaxResult is returned by NinMax. Defaults to 960 if zero.
	NinMaxResult int

	// FeatureDimResult is returned by FeatureDim. Defaults to 36 if zero.
	FeatureDimResult int

	// NumEOOBitsResult is returned by NumEOOBits.
	NumEOOBitsResult int

	// CloseErr is returned by Close.
	CloseErr error

	call   int
	synced bool
	snr    float32
	offset float32

	// CallCountDemodulate records how many times Demodulate was called.
	CallCountDemodulate int

	// CallCountClose records how many times Close was called.
	CallCountClose int

	// InputLens records the length of every Demodulate input, so tests can
	// assert the exactly-Nin feeding policy.
	InputLens []int
}

var _ modem.Modem = (*Modem)(nil)

// Nin returns the demand scripted for the next Demodulate call.
func (m *Modem) Nin() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.call < len(m.Steps) && m.Steps[m.call].Nin > 0 {
		return m.Steps[m.call].Nin
	}
	if m.DefaultNin > 0 {
		return m.DefaultNin
	}
	return 160
}

// NinMax returns NinMaxResult.
func (m *Modem) NinMax() int {
	if m.NinMaxResult > 0 {
		return m.NinMaxResult
	}
	return 960
}

// FeatureDim returns FeatureDimResult.
func (m *Modem) FeatureDim() int {
	if m.FeatureDimResult > 0 {
		return m.FeatureDimResult
	}
	return 36
}

// NumEOOBits returns NumEOOBitsResult.
func (m *Modem) NumEOOBits() int { return m.NumEOOBitsResult }

// Demodulate consumes the next scripted step. It fails the exactly-Nin
// policy loudly: an input whose length differs from the advertised demand
// returns an error.
func (m *Modem) Demodulate(in []complex64) (modem.Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CallCountDemodulate++
	m.InputLens = append(m.InputLens, len(in))

	want := m.currentNinLocked()
	if len(in) != want {
		return modem.Result{}, fmt.Errorf("mock modem: got %d samples, demand was %d", len(in), want)
	}

	if m.call >= len(m.Steps) {
		m.synced = false
		return modem.Result{}, nil
	}

	step := m.Steps[m.call]
	m.call++
	if step.Err != nil {
		return modem.Result{}, step.Err
	}

	m.synced = step.Synced
	if step.Synced {
		m.snr = step.SNRdB
		m.offset = step.FreqOffsetHz
	}
	return modem.Result{
		Frames:    step.Frames,
		EndOfOver: step.EndOfOver,
		EOOBits:   step.EOOBits,
	}, nil
}

func (m *Modem) currentNinLocked() int {
	if m.call < len(m.Steps) && m.Steps[m.call].Nin > 0 {
		return m.Steps[m.call].Nin
	}
	if m.DefaultNin > 0 {
		return m.DefaultNin
	}
	return 160
}

// Synced reports the sync state of the last consumed step.
func (m *Modem) Synced() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.synced
}

// SNRdB returns the last reported SNR.
func (m *Modem) SNRdB() float32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snr
}

// FreqOffsetHz returns the last reported frequency offset.
func (m *Modem) FreqOffsetHz() float32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.offset
}

// Close records the call and returns CloseErr.
func (m *Modem) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CallCountClose++
	return m.CloseErr
}
