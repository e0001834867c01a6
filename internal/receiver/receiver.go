// Package receiver implements the radaemon receive pipeline: it pulls radio
// audio from a source, demodulates it into acoustic feature frames, drives
// the streaming vocoder through its warm-up protocol, and pushes synthesized
// speech to a sink, publishing telemetry along the way.
//
// The pipeline is assembled from collaborators injected as factory functions,
// so tests can run the full loop against mock engines and in-memory audio.
package receiver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/kv9n/radaemon/internal/observe"
	"github.com/kv9n/radaemon/pkg/audio"
	"github.com/kv9n/radaemon/pkg/dsp"
	"github.com/kv9n/radaemon/pkg/modem"
	"github.com/kv9n/radaemon/pkg/vocoder"
)

const (
	// readFrames is the capture block size. One blocking source read covers
	// at most this many samples, bounding cancellation latency.
	readFrames = 512

	// spectrumSize is the FFT length of the published input spectrum.
	spectrumSize = 512

	// prefillBlocks and framesPerBlock size the silence pushed to the sink
	// when the vocoder becomes primed, giving playback a cushion before the
	// first synthesized frame arrives.
	prefillBlocks  = 2
	framesPerBlock = 12

	// levelDecay shrinks the published output level on iterations that
	// produce no audio, so the meter falls back instead of freezing.
	levelDecay = 0.9
)

// Collaborators bundles the factory functions that acquire the pipeline's
// four external resources. Open calls them in order and releases every
// already-acquired resource if a later factory fails.
type Collaborators struct {
	OpenSource  func() (audio.Source, error)
	OpenSink    func() (audio.Sink, error)
	OpenModem   func() (modem.Modem, error)
	OpenVocoder func() (vocoder.Vocoder, error)
}

// Option customises a [Receiver].
type Option func(*Receiver)

// WithMetrics overrides the metrics instance, used by tests to isolate
// instrument state.
func WithMetrics(m *observe.Metrics) Option {
	return func(r *Receiver) { r.met = m }
}

// Receiver owns the receive pipeline lifecycle: Open acquires collaborators,
// Start spawns the worker, Stop joins it, Close releases everything.
//
// Lifecycle methods are not safe for concurrent use with each other; the
// telemetry, gain and recording surfaces are safe from any goroutine.
type Receiver struct {
	collab Collaborators
	met    *observe.Metrics
	tel    *Telemetry
	rec    recordingSink

	src audio.Source
	snk audio.Sink
	mdm modem.Modem
	voc vocoder.Vocoder

	analytic *dsp.Analytic
	spec     *dsp.Spectrum
	cont     *continuity

	mu      sync.Mutex
	open    bool
	cancel  context.CancelFunc
	done    chan struct{}
	workErr error
}

// New creates an unopened receiver around the given collaborator factories.
func New(c Collaborators, opts ...Option) *Receiver {
	r := &Receiver{
		collab: c,
		tel:    NewTelemetry(spectrumSize / 2),
	}
	for _, o := range opts {
		o(r)
	}
	if r.met == nil {
		r.met = observe.DefaultMetrics()
	}
	return r
}

// Telemetry returns the shared status surface.
func (r *Receiver) Telemetry() *Telemetry { return r.tel }

// SetGainDB sets the input gain from a dB value.
func (r *Receiver) SetGainDB(db float64) {
	r.tel.SetGain(float32(math.Pow(10, db/20)))
}

// StartRecording begins teeing pre-gain input samples to path as raw
// s16le mono PCM at the source sample rate.
func (r *Receiver) StartRecording(path string) error {
	if err := r.rec.Start(path); err != nil {
		return err
	}
	r.tel.recording.Store(true)
	return nil
}

// StopRecording closes the recording file if one is open.
func (r *Receiver) StopRecording() {
	r.rec.Stop()
	r.tel.recording.Store(false)
}

// Open acquires the source, sink, modem and vocoder in order. If any factory
// fails, every resource acquired so far is released and the factory's error
// is returned: Open either fully succeeds or leaves nothing held.
func (r *Receiver) Open() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.open {
		return errors.New("receiver: already open")
	}

	var err error
	if r.src, err = r.collab.OpenSource(); err != nil {
		return fmt.Errorf("receiver: open source: %w", err)
	}
	if r.snk, err = r.collab.OpenSink(); err != nil {
		r.release()
		return fmt.Errorf("receiver: open sink: %w", err)
	}
	if r.mdm, err = r.collab.OpenModem(); err != nil {
		r.release()
		return fmt.Errorf("receiver: open modem: %w", err)
	}
	if r.voc, err = r.collab.OpenVocoder(); err != nil {
		r.release()
		return fmt.Errorf("receiver: open vocoder: %w", err)
	}

	r.analytic = dsp.NewAnalytic()
	r.spec = dsp.NewSpectrum(spectrumSize)
	r.cont = newContinuity(r.voc, r.mdm.FeatureDim())
	r.open = true

	slog.Info("receiver open",
		"source_rate", r.src.SampleRate(),
		"feature_dim", r.mdm.FeatureDim(),
		"nin_max", r.mdm.NinMax(),
		"vocoder_rate", r.voc.SampleRate())
	return nil
}

// release closes whatever collaborators have been acquired so far. Caller
// holds r.mu.
func (r *Receiver) release() {
	closeRes := func(name string, c io.Closer) {
		if c == nil {
			return
		}
		if err := c.Close(); err != nil {
			slog.Warn("close "+name, "err", err)
		}
	}
	closeRes("vocoder", r.voc)
	closeRes("modem", r.mdm)
	closeRes("sink", r.snk)
	closeRes("source", r.src)
	r.voc, r.mdm, r.snk, r.src = nil, nil, nil, nil
}

// Start spawns the receive worker. The worker runs until Stop is called, the
// parent context is cancelled, a finite source is exhausted, or a
// collaborator fails.
func (r *Receiver) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.open {
		return errors.New("receiver: not open")
	}
	if r.done != nil {
		return errors.New("receiver: already running")
	}

	ctx, r.cancel = context.WithCancel(ctx)
	r.done = make(chan struct{})
	r.workErr = nil
	r.tel.running.Store(true)
	r.met.ReceiverRunning.Add(ctx, 1)

	go func() {
		defer close(r.done)
		err := r.run(ctx)
		if err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("receive worker stopped", "err", err)
		}
		r.mu.Lock()
		r.workErr = err
		r.mu.Unlock()
		r.tel.running.Store(false)
		r.met.ReceiverRunning.Add(context.Background(), -1)
	}()

	slog.Info("receiver started")
	return nil
}

// Stop cancels the worker, waits for it to exit, and flushes the sink. It
// returns the worker's terminal error, if any. Stopping a receiver that is
// not running is a no-op.
func (r *Receiver) Stop() error {
	r.mu.Lock()
	if r.done == nil {
		r.mu.Unlock()
		return nil
	}
	cancel, done := r.cancel, r.done
	r.mu.Unlock()

	cancel()
	<-done

	r.mu.Lock()
	err := r.workErr
	r.cancel, r.done, r.workErr = nil, nil, nil
	snk := r.snk
	r.mu.Unlock()

	if snk != nil {
		if ferr := snk.Flush(); ferr != nil {
			err = errors.Join(err, fmt.Errorf("receiver: flush sink: %w", ferr))
		}
	}
	if errors.Is(err, context.Canceled) {
		err = nil
	}
	slog.Info("receiver stopped")
	return err
}

// Close stops the worker if needed, ends any recording, releases all
// collaborators and resets telemetry.
func (r *Receiver) Close() error {
	err := r.Stop()
	r.StopRecording()

	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.open {
		return err
	}
	r.release()
	r.open = false
	r.tel.reset()
	return err
}

// run is the receive worker loop.
//
// Each outer iteration pulls one capture block, tees it to the recording
// sink before gain, applies gain, refreshes the spectrum and input meter,
// and appends to the demand FIFO. The inner loop then satisfies the modem's
// demand protocol: query Nin, convert exactly that many samples to analytic
// form, demodulate, and route decoded frames through the continuity manager
// to the sink.
func (r *Receiver) run(ctx context.Context) error {
	var (
		readBuf  = make([]float32, readFrames)
		fifo     = make([]float32, 0, readFrames+r.mdm.NinMax())
		analytic = make([]complex64, 0, r.mdm.NinMax())
		specOut  = make([]float32, r.spec.Bins())
		silence  = make([]float32, prefillBlocks*framesPerBlock*r.voc.FrameSize())
		synced   bool
	)

	for {
		n, rerr := r.src.Read(ctx, readBuf)
		if rerr != nil && !errors.Is(rerr, io.EOF) {
			return fmt.Errorf("receiver: read source: %w", rerr)
		}
		block := readBuf[:n]

		if r.rec.Active() {
			nb, err := r.rec.Write(block)
			if err != nil {
				slog.Warn("recording write failed, stopping recording", "err", err)
				r.StopRecording()
			}
			r.met.RecordedBytes.Add(ctx, int64(nb))
		}

		gain := r.tel.Gain()
		for i := range block {
			block[i] *= gain
		}
		fifo = append(fifo, block...)

		if len(fifo) >= r.spec.Size() {
			r.spec.Analyze(fifo, specOut)
			r.tel.publishSpectrum(specOut)
		}
		if len(block) > 0 {
			r.tel.inputLevel.Store(rms(block))
		}

		for nin := r.mdm.Nin(); len(fifo) >= nin; nin = r.mdm.Nin() {
			start := time.Now()
			analytic = r.analytic.Process(fifo[:nin], analytic[:0])
			fifo = fifo[:copy(fifo, fifo[nin:])]

			res, err := r.mdm.Demodulate(analytic)
			if err != nil {
				return fmt.Errorf("receiver: demodulate: %w", err)
			}

			syncedNow := r.mdm.Synced()
			if syncedNow {
				r.tel.snrDB.Store(r.mdm.SNRdB())
				r.tel.freqOffset.Store(r.mdm.FreqOffsetHz())
			}
			if syncedNow != synced {
				r.met.RecordSyncTransition(ctx, syncedNow)
				if syncedNow {
					slog.Info("modem sync acquired",
						"snr_db", r.mdm.SNRdB(), "freq_offset_hz", r.mdm.FreqOffsetHz())
				} else {
					slog.Info("modem sync lost")
					r.cont.Reset()
				}
				synced = syncedNow
			}
			r.tel.synced.Store(syncedNow)

			if res.EndOfOver {
				r.met.EndOfOverMarks.Add(ctx, 1)
				slog.Info("end of over", "eoo_bits", len(res.EOOBits))
			}

			if len(res.Frames) == 0 {
				r.tel.outputLevel.Store(r.tel.OutputLevel() * levelDecay)
			}
			for _, frame := range res.Frames {
				pcm, primedNow, err := r.cont.Push(frame)
				if err != nil {
					return err
				}
				if primedNow {
					r.met.PrimingCalls.Add(ctx, 1)
					slog.Debug("vocoder primed")
					if err := r.snk.Write(ctx, silence); err != nil {
						return fmt.Errorf("receiver: write prefill: %w", err)
					}
				}
				if pcm != nil {
					r.tel.outputLevel.Store(rms(pcm))
					if err := r.snk.Write(ctx, pcm); err != nil {
						return fmt.Errorf("receiver: write sink: %w", err)
					}
					r.met.FramesSynthesized.Add(ctx, 1)
				}
			}

			r.met.DecodeDuration.Record(ctx, time.Since(start).Seconds())
		}

		if errors.Is(rerr, io.EOF) {
			slog.Info("input exhausted")
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
	}
}

// rms computes the root-mean-square level of a block. Empty blocks are 0.
func rms(block []float32) float32 {
	if len(block) == 0 {
		return 0
	}
	var sum float64
	for _, v := range block {
		sum += float64(v) * float64(v)
	}
	return float32(math.Sqrt(sum / float64(len(block))))
}
