package receiver

import (
	"fmt"

	"github.com/kv9n/radaemon/pkg/vocoder"
)

// continuity manages the warm-up protocol of the streaming vocoder.
//
// The vocoder needs a fixed number of feature frames to seed its recurrent
// state before it can synthesize valid audio. continuity buffers those
// frames, narrows them from the modem's total-feature stride to the
// vocoder's conditioning stride, primes, and from then on maps one frame to
// one PCM block. Reset returns to the collecting state; the receiver calls
// it on every loss of demodulator sync so the vocoder never synthesizes from
// a feature stream straddling two unrelated transmissions.
type continuity struct {
	voc      vocoder.Vocoder
	modemDim int

	warmup []float32 // warmed-up frames at modem stride
	count  int
	primed bool
}

func newContinuity(voc vocoder.Vocoder, modemFeatureDim int) *continuity {
	return &continuity{
		voc:      voc,
		modemDim: modemFeatureDim,
		warmup:   make([]float32, voc.WarmupFrames()*modemFeatureDim),
	}
}

// Push feeds one decoded feature frame of modem stride.
//
// While collecting, it returns no audio; the frame that completes the warm-up
// block triggers exactly one priming call and reports primedNow — those
// frames are consumed, never synthesized. Once primed, every frame yields one
// fixed-length PCM block.
func (c *continuity) Push(frame []float32) (pcm []float32, primedNow bool, err error) {
	if len(frame) != c.modemDim {
		return nil, false, fmt.Errorf("receiver: feature frame has %d values, want %d", len(frame), c.modemDim)
	}

	if !c.primed {
		copy(c.warmup[c.count*c.modemDim:], frame)
		c.count++
		if c.count < c.voc.WarmupFrames() {
			return nil, false, nil
		}

		// Repack from modem stride to the vocoder's narrower conditioning
		// stride. The ratio is dictated by the vocoder collaborator.
		dim := c.voc.FeatureDim()
		packed := make([]float32, c.voc.WarmupFrames()*dim)
		for i := 0; i < c.voc.WarmupFrames(); i++ {
			copy(packed[i*dim:(i+1)*dim], c.warmup[i*c.modemDim:i*c.modemDim+dim])
		}
		if err := c.voc.Prime(packed); err != nil {
			return nil, false, fmt.Errorf("receiver: prime vocoder: %w", err)
		}
		c.primed = true
		return nil, true, nil
	}

	pcm, err = c.voc.Synthesize(frame)
	if err != nil {
		return nil, false, fmt.Errorf("receiver: synthesize: %w", err)
	}
	return pcm, false, nil
}

// Primed reports whether the vocoder is ready to synthesize.
func (c *continuity) Primed() bool { return c.primed }

// Reset discards the vocoder's recurrent state and the warm-up buffer,
// returning to the collecting state.
func (c *continuity) Reset() {
	c.voc.Reset()
	c.count = 0
	c.primed = false
}
