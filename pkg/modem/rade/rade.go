// Package rade implements the [modem.Modem] interface on top of the native
// RADE receiver via CGO. The RADE static library (librade.a) and headers
// (rade_api.h) must be available at link time via LIBRARY_PATH and
// C_INCLUDE_PATH environment variables.
package rade

/*
#cgo LDFLAGS: -lrade -lm
#include <stdlib.h>
#include <rade_api.h>
*/
import "C"

import (
	"errors"
	"fmt"
	"sync"
	"unsafe"

	"github.com/kv9n/radaemon/pkg/modem"
)

// Compile-time assertion that Rade satisfies modem.Modem.
var _ modem.Modem = (*Rade)(nil)

// initOnce guards the process-wide rade_initialize call. The native library
// loads its model weights once per process.
var initOnce sync.Once

// Rade is a native RADE receiver session.
type Rade struct {
	r *C.struct_rade

	ninMax     int
	featureDim int
	eooBits    int

	featBuf []C.float
	eooBuf  []C.float

	lastSNR    float32
	lastOffset float32
}

// Open creates a RADE receiver session.
func Open() (*Rade, error) {
	initOnce.Do(func() {
		C.rade_initialize()
	})

	r := C.rade_open(nil, 0)
	if r == nil {
		return nil, errors.New("rade: open session failed")
	}

	m := &Rade{
		r:          r,
		ninMax:     int(C.rade_nin_max(r)),
		featureDim: int(C.RADE_NB_TOTAL_FEATURES),
		eooBits:    int(C.rade_n_eoo_bits(r)),
	}
	// rade_n_features_in_out is the per-call output capacity, covering a full
	// burst of frames; the per-frame width is the fixed feature constant.
	m.featBuf = make([]C.float, int(C.rade_n_features_in_out(r)))
	m.eooBuf = make([]C.float, m.eooBits)
	return m, nil
}

// Nin returns the demodulator's current input demand.
func (m *Rade) Nin() int { return int(C.rade_nin(m.r)) }

// NinMax returns the fixed upper bound of Nin.
func (m *Rade) NinMax() int { return m.ninMax }

// FeatureDim returns the feature count per decoded frame.
func (m *Rade) FeatureDim() int { return m.featureDim }

// NumEOOBits returns the end-of-over bit vector length.
func (m *Rade) NumEOOBits() int { return m.eooBits }

// Demodulate runs one receiver iteration over exactly Nin analytic samples.
func (m *Rade) Demodulate(in []complex64) (modem.Result, error) {
	if len(in) == 0 {
		return modem.Result{}, errors.New("rade: empty input")
	}

	var hasEOO C.int
	// RADE_COMP is a pair of floats, layout-compatible with complex64.
	nOut := int(C.rade_rx(m.r,
		&m.featBuf[0],
		&hasEOO,
		&m.eooBuf[0],
		(*C.RADE_COMP)(unsafe.Pointer(&in[0])),
	))
	if nOut < 0 {
		return modem.Result{}, fmt.Errorf("rade: rx failed: %d", nOut)
	}

	res := modem.Result{EndOfOver: hasEOO != 0}
	if nOut > 0 {
		flat := make([]float32, nOut)
		for i := range flat {
			flat[i] = float32(m.featBuf[i])
		}
		res.Frames = modem.SplitFrames(flat, m.featureDim)
	}
	if res.EndOfOver {
		res.EOOBits = make([]float32, m.eooBits)
		for i := range res.EOOBits {
			res.EOOBits[i] = float32(m.eooBuf[i])
		}
	}
	return res, nil
}

// Synced reports demodulator lock.
func (m *Rade) Synced() bool { return C.rade_sync(m.r) != 0 }

// SNRdB returns the 3 kHz-bandwidth SNR estimate, holding the last value
// while unsynced.
func (m *Rade) SNRdB() float32 {
	if m.Synced() {
		m.lastSNR = float32(C.rade_snrdB_3k_est(m.r))
	}
	return m.lastSNR
}

// FreqOffsetHz returns the carrier frequency offset estimate, holding the
// last value while unsynced.
func (m *Rade) FreqOffsetHz() float32 {
	if m.Synced() {
		m.lastOffset = float32(C.rade_freq_offset(m.r))
	}
	return m.lastOffset
}

// Close destroys the receiver session.
func (m *Rade) Close() error {
	if m.r != nil {
		C.rade_close(m.r)
		m.r = nil
	}
	return nil
}
