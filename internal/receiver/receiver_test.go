package receiver

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/kv9n/radaemon/internal/observe"
	"github.com/kv9n/radaemon/pkg/audio"
	audiomock "github.com/kv9n/radaemon/pkg/audio/mock"
	"github.com/kv9n/radaemon/pkg/dsp"
	"github.com/kv9n/radaemon/pkg/modem"
	modmock "github.com/kv9n/radaemon/pkg/modem/mock"
	"github.com/kv9n/radaemon/pkg/vocoder"
	vocmock "github.com/kv9n/radaemon/pkg/vocoder/mock"
)

// constantSamples builds an input stream of a fixed sample value.
func constantSamples(n int, v float32) []float32 {
	s := make([]float32, n)
	for i := range s {
		s[i] = v
	}
	return s
}

// warmupFrames builds enough frames to complete the mock vocoder's warm-up.
func warmupFrames() [][]float32 {
	frames := make([][]float32, 5)
	for i := range frames {
		frames[i] = makeFrame(i + 1)
	}
	return frames
}

// testRig bundles a receiver and the mocks behind its collaborators.
type testRig struct {
	r      *Receiver
	src    *audiomock.Source
	snk    *audiomock.Sink
	mdm    *modmock.Modem
	voc    *vocmock.Vocoder
	reader *sdkmetric.ManualReader
}

// newRig wires a receiver around fresh mocks with isolated metrics.
func newRig(t *testing.T, samples []float32, steps []modmock.Step) *testRig {
	t.Helper()
	rig := &testRig{
		src: &audiomock.Source{Samples: samples},
		snk: &audiomock.Sink{},
		mdm: &modmock.Modem{Steps: steps},
		voc: &vocmock.Vocoder{},
	}

	rig.reader = sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(rig.reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	met, err := observe.NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}

	rig.r = New(Collaborators{
		OpenSource:  func() (audio.Source, error) { return rig.src, nil },
		OpenSink:    func() (audio.Sink, error) { return rig.snk, nil },
		OpenModem:   func() (modem.Modem, error) { return rig.mdm, nil },
		OpenVocoder: func() (vocoder.Vocoder, error) { return rig.voc, nil },
	}, WithMetrics(met))
	t.Cleanup(func() { _ = rig.r.Close() })
	return rig
}

// runToExhaustion opens and starts the receiver, waits for the worker to
// drain the finite source, and returns the worker's terminal error via Stop.
func (rig *testRig) runToExhaustion(t *testing.T) error {
	t.Helper()
	if err := rig.r.Open(); err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := rig.r.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	deadline := time.Now().Add(2 * time.Second)
	for rig.r.Telemetry().Running() {
		if time.Now().After(deadline) {
			t.Fatal("worker did not exit")
		}
		time.Sleep(time.Millisecond)
	}
	return rig.r.Stop()
}

// counterValue reads an int64 sum metric, returning 0 when no data exists.
func counterValue(t *testing.T, reader *sdkmetric.ManualReader, name string) int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				t.Fatalf("metric %q is not an int64 sum", name)
			}
			var total int64
			for _, dp := range sum.DataPoints {
				total += dp.Value
			}
			return total
		}
	}
	return 0
}

func TestReceiver_EndToEnd(t *testing.T) {
	steps := []modmock.Step{
		{Nin: 160}, // acquiring, no frames
		{Nin: 160, Synced: true, SNRdB: 7.5, FreqOffsetHz: -12, Frames: warmupFrames()},
		{Nin: 160, Synced: true, SNRdB: 7.5, FreqOffsetHz: -12, Frames: [][]float32{makeFrame(6), makeFrame(7)}},
	}
	rig := newRig(t, constantSamples(512, 0.25), steps)

	if err := rig.runToExhaustion(t); err != nil {
		t.Fatalf("run: %v", err)
	}

	if rig.voc.CallCountPrime != 1 {
		t.Errorf("prime calls: got %d, want 1", rig.voc.CallCountPrime)
	}

	// Prefill silence then two synthesized frames.
	prefill := prefillBlocks * framesPerBlock * rig.voc.FrameSize()
	written := rig.snk.Written()
	if want := prefill + 2*rig.voc.FrameSize(); len(written) != want {
		t.Fatalf("sink samples: got %d, want %d", len(written), want)
	}
	for i := 0; i < prefill; i++ {
		if written[i] != 0 {
			t.Fatalf("prefill sample %d not silent: %v", i, written[i])
		}
	}
	for i := prefill; i < len(written); i++ {
		if written[i] != 0.5 {
			t.Fatalf("synthesized sample %d: got %v, want 0.5", i, written[i])
		}
	}

	tel := rig.r.Telemetry()
	if !tel.Synced() {
		t.Error("telemetry not synced after locked steps")
	}
	if tel.SNRdB() != 7.5 {
		t.Errorf("snr: got %v, want 7.5", tel.SNRdB())
	}
	if tel.FreqOffsetHz() != -12 {
		t.Errorf("freq offset: got %v, want -12", tel.FreqOffsetHz())
	}
	if tel.InputLevel() <= 0 {
		t.Error("input level not published")
	}
	if tel.Spectrum()[0] <= dsp.SpectrumFloorDB {
		t.Error("spectrum not published for DC input")
	}

	if got := counterValue(t, rig.reader, "radaemon.vocoder.frames"); got != 2 {
		t.Errorf("frames metric: got %d, want 2", got)
	}
	if got := counterValue(t, rig.reader, "radaemon.vocoder.primes"); got != 1 {
		t.Errorf("primes metric: got %d, want 1", got)
	}
	if got := counterValue(t, rig.reader, "radaemon.modem.sync_transitions"); got != 1 {
		t.Errorf("sync transition metric: got %d, want 1", got)
	}
}

func TestReceiver_FeedsExactlyTheDemandedSamples(t *testing.T) {
	steps := []modmock.Step{
		{Nin: 120},
		{Nin: 40},
		{Nin: 300},
	}
	rig := newRig(t, constantSamples(512, 0.1), steps)

	if err := rig.runToExhaustion(t); err != nil {
		t.Fatalf("run: %v", err)
	}

	want := []int{120, 40, 300}
	if len(rig.mdm.InputLens) != len(want) {
		t.Fatalf("demodulate calls: got %v, want %v", rig.mdm.InputLens, want)
	}
	for i, w := range want {
		if rig.mdm.InputLens[i] != w {
			t.Errorf("call %d input: got %d, want %d", i, rig.mdm.InputLens[i], w)
		}
	}
}

func TestReceiver_SyncLossReprimesVocoder(t *testing.T) {
	synth := [][]float32{makeFrame(6)}
	steps := []modmock.Step{
		{Nin: 160, Synced: true, Frames: warmupFrames()},
		{Nin: 160, Synced: true, Frames: synth},
		{Nin: 160}, // sync lost
		{Nin: 160, Synced: true, Frames: warmupFrames()},
		{Nin: 160, Synced: true, Frames: synth},
	}
	rig := newRig(t, constantSamples(1024, 0.1), steps)

	if err := rig.runToExhaustion(t); err != nil {
		t.Fatalf("run: %v", err)
	}

	if rig.voc.CallCountPrime != 2 {
		t.Errorf("prime calls: got %d, want 2", rig.voc.CallCountPrime)
	}
	if rig.voc.CallCountReset == 0 {
		t.Error("vocoder never reset on sync loss")
	}

	// Two prefills, one synthesized frame per locked stretch.
	prefill := prefillBlocks * framesPerBlock * rig.voc.FrameSize()
	if got, want := len(rig.snk.Written()), 2*(prefill+rig.voc.FrameSize()); got != want {
		t.Errorf("sink samples: got %d, want %d", got, want)
	}
	if got := counterValue(t, rig.reader, "radaemon.modem.sync_transitions"); got < 3 {
		t.Errorf("sync transitions: got %d, want at least 3", got)
	}
}

func TestReceiver_EndOfOverIsCounted(t *testing.T) {
	steps := []modmock.Step{
		{Nin: 160, Synced: true},
		{Nin: 160, Synced: true, EndOfOver: true, EOOBits: []float32{1, -1, 1, -1}},
		{Nin: 160},
	}
	rig := newRig(t, constantSamples(512, 0.1), steps)

	if err := rig.runToExhaustion(t); err != nil {
		t.Fatalf("run: %v", err)
	}

	if got := counterValue(t, rig.reader, "radaemon.modem.eoo"); got != 1 {
		t.Errorf("eoo metric: got %d, want 1", got)
	}
}

func TestReceiver_OutputLevelDecaysWithoutFrames(t *testing.T) {
	steps := []modmock.Step{
		{Nin: 160, Synced: true, Frames: warmupFrames()},
		{Nin: 160, Synced: true, Frames: [][]float32{makeFrame(6)}},
		{Nin: 160, Synced: true}, // no frames this iteration
	}
	rig := newRig(t, constantSamples(512, 0.1), steps)

	if err := rig.runToExhaustion(t); err != nil {
		t.Fatalf("run: %v", err)
	}

	// Frame of constant 0.5 gives RMS 0.5; one frame-less iteration decays it.
	got := rig.r.Telemetry().OutputLevel()
	want := float32(0.5 * levelDecay)
	if diff := got - want; diff < -1e-4 || diff > 1e-4 {
		t.Errorf("output level: got %v, want %v", got, want)
	}
}

func TestReceiver_RecordingTeeIsPreGain(t *testing.T) {
	path := filepath.Join(t.TempDir(), "capture.raw")
	rig := newRig(t, constantSamples(512, 0.25), nil)

	if err := rig.r.Open(); err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := rig.r.StartRecording(path); err != nil {
		t.Fatalf("StartRecording: %v", err)
	}
	rig.r.SetGainDB(20) // would clip post-gain samples to full scale
	if !rig.r.Telemetry().Recording() {
		t.Error("telemetry does not report recording")
	}

	if err := rig.r.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	deadline := time.Now().Add(2 * time.Second)
	for rig.r.Telemetry().Running() {
		if time.Now().After(deadline) {
			t.Fatal("worker did not exit")
		}
		time.Sleep(time.Millisecond)
	}
	if err := rig.r.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	rig.r.StopRecording()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if len(data) != 2*512 {
		t.Fatalf("recorded bytes: got %d, want %d", len(data), 2*512)
	}
	// 0.25 pre-gain is 8192; a post-gain tee would have clipped to 32767.
	if data[0] != 0x00 || data[1] != 0x20 {
		t.Errorf("first sample: got %#02x %#02x, want 0x00 0x20", data[0], data[1])
	}
	if got := counterValue(t, rig.reader, "radaemon.recording.bytes"); got != 2*512 {
		t.Errorf("recorded bytes metric: got %d, want %d", got, 2*512)
	}
}

func TestReceiver_OpenReleasesAcquiredOnFailure(t *testing.T) {
	src := &audiomock.Source{}
	snk := &audiomock.Sink{}
	vocOpened := false

	r := New(Collaborators{
		OpenSource:  func() (audio.Source, error) { return src, nil },
		OpenSink:    func() (audio.Sink, error) { return snk, nil },
		OpenModem:   func() (modem.Modem, error) { return nil, errors.New("no such device") },
		OpenVocoder: func() (vocoder.Vocoder, error) { vocOpened = true; return &vocmock.Vocoder{}, nil },
	}, WithMetrics(noopMetrics(t)))

	if err := r.Open(); err == nil {
		t.Fatal("Open succeeded despite modem failure")
	}
	if src.CallCountClose != 1 {
		t.Errorf("source close calls: got %d, want 1", src.CallCountClose)
	}
	if snk.CallCountClose != 1 {
		t.Errorf("sink close calls: got %d, want 1", snk.CallCountClose)
	}
	if vocOpened {
		t.Error("vocoder factory called after earlier failure")
	}
	if err := r.Start(context.Background()); err == nil {
		t.Error("Start succeeded on unopened receiver")
	}
}

func TestReceiver_StopReportsWorkerError(t *testing.T) {
	steps := []modmock.Step{
		{Nin: 160, Err: errors.New("decoder blew up")},
	}
	rig := newRig(t, constantSamples(512, 0.1), steps)

	err := rig.runToExhaustion(t)
	if err == nil || !strings.Contains(err.Error(), "decoder blew up") {
		t.Fatalf("Stop did not surface worker error: %v", err)
	}
}

func TestReceiver_CloseReleasesEverything(t *testing.T) {
	rig := newRig(t, constantSamples(512, 0.1), nil)
	if err := rig.runToExhaustion(t); err != nil {
		t.Fatalf("run: %v", err)
	}
	if err := rig.r.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	if rig.src.CallCountClose != 1 || rig.snk.CallCountClose != 1 ||
		rig.mdm.CallCountClose != 1 || rig.voc.CallCountClose != 1 {
		t.Errorf("close counts: src=%d snk=%d mdm=%d voc=%d, want 1 each",
			rig.src.CallCountClose, rig.snk.CallCountClose,
			rig.mdm.CallCountClose, rig.voc.CallCountClose)
	}
	if rig.r.Telemetry().Running() {
		t.Error("telemetry still running after Close")
	}
	if err := rig.r.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
}

func TestReceiver_StopWithoutStartIsNoop(t *testing.T) {
	rig := newRig(t, nil, nil)
	if err := rig.r.Stop(); err != nil {
		t.Errorf("Stop on idle receiver: %v", err)
	}
}

// noopMetrics builds an isolated Metrics instance for tests that never
// inspect instrument state.
func noopMetrics(t *testing.T) *observe.Metrics {
	t.Helper()
	mp := sdkmetric.NewMeterProvider()
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	m, err := observe.NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return m
}
