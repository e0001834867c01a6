package audio

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/gordonklaus/portaudio"
)

// readFrames is the capture block size per backend read. At 8 kHz this bounds
// the cancellation latency of a blocking Read to 64 ms.
const readFrames = 512

// Initialize prepares the PortAudio host API. It must be called once before
// any capture or playback stream is opened, paired with [Terminate].
func Initialize() error {
	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("audio: initialize portaudio: %w", err)
	}
	return nil
}

// Terminate releases the PortAudio host API.
func Terminate() error {
	if err := portaudio.Terminate(); err != nil {
		return fmt.Errorf("audio: terminate portaudio: %w", err)
	}
	return nil
}

// CaptureSource is a live [Source] backed by a PortAudio input stream.
// The host API resamples from the hardware rate to the requested rate.
type CaptureSource struct {
	stream *portaudio.Stream
	buf    []float32
	rate   int

	// pending holds samples read from the backend but not yet consumed,
	// since the backend delivers fixed blocks while callers ask for the
	// modem's variable demand.
	pending []float32
}

var _ Source = (*CaptureSource)(nil)

// OpenCapture opens a mono float32 capture stream at sampleRate. An empty
// deviceName selects the default input device; otherwise the first input
// device whose name contains deviceName is used.
func OpenCapture(deviceName string, sampleRate int) (*CaptureSource, error) {
	c := &CaptureSource{
		buf:  make([]float32, readFrames),
		rate: sampleRate,
	}

	var err error
	if deviceName == "" {
		c.stream, err = portaudio.OpenDefaultStream(1, 0, float64(sampleRate), readFrames, c.buf)
	} else {
		var dev *portaudio.DeviceInfo
		dev, err = findInputDevice(deviceName)
		if err != nil {
			return nil, err
		}
		params := portaudio.LowLatencyParameters(dev, nil)
		params.Input.Channels = 1
		params.SampleRate = float64(sampleRate)
		params.FramesPerBuffer = readFrames
		c.stream, err = portaudio.OpenStream(params, c.buf)
	}
	if err != nil {
		return nil, fmt.Errorf("audio: open capture: %w", err)
	}

	if err := c.stream.Start(); err != nil {
		c.stream.Close()
		return nil, fmt.Errorf("audio: start capture: %w", err)
	}

	slog.Info("capture stream open",
		"device", deviceOrDefault(deviceName),
		"rate", sampleRate,
		"format", "float32 mono",
	)
	return c, nil
}

// Read blocks until len(buf) samples are available. It checks ctx between
// backend reads, each of which waits at most one capture block.
func (c *CaptureSource) Read(ctx context.Context, buf []float32) (int, error) {
	filled := 0
	for filled < len(buf) {
		if n := copy(buf[filled:], c.pending); n > 0 {
			c.pending = c.pending[n:]
			filled += n
			continue
		}

		if err := ctx.Err(); err != nil {
			return filled, err
		}
		if err := c.stream.Read(); err != nil {
			return filled, fmt.Errorf("audio: capture read: %w", err)
		}
		c.pending = c.buf
	}
	return filled, nil
}

// SampleRate returns the capture rate in Hz.
func (c *CaptureSource) SampleRate() int { return c.rate }

// Close stops and closes the capture stream.
func (c *CaptureSource) Close() error {
	if err := c.stream.Stop(); err != nil {
		c.stream.Close()
		return fmt.Errorf("audio: stop capture: %w", err)
	}
	if err := c.stream.Close(); err != nil {
		return fmt.Errorf("audio: close capture: %w", err)
	}
	return nil
}

// PlaybackSink is a [Sink] backed by a PortAudio output stream.
type PlaybackSink struct {
	stream *portaudio.Stream
	buf    []float32
	rate   int

	// pending accumulates samples until a full backend block is available,
	// since the stream writes fixed-size blocks.
	pending []float32
}

var _ Sink = (*PlaybackSink)(nil)

// OpenPlayback opens a mono float32 playback stream on the default output
// device at sampleRate.
func OpenPlayback(sampleRate int) (*PlaybackSink, error) {
	p := &PlaybackSink{
		buf:  make([]float32, readFrames),
		rate: sampleRate,
	}

	var err error
	p.stream, err = portaudio.OpenDefaultStream(0, 1, float64(sampleRate), readFrames, p.buf)
	if err != nil {
		return nil, fmt.Errorf("audio: open playback: %w", err)
	}
	if err := p.stream.Start(); err != nil {
		p.stream.Close()
		return nil, fmt.Errorf("audio: start playback: %w", err)
	}

	slog.Info("playback stream open", "rate", sampleRate, "format", "float32 mono")
	return p, nil
}

// Write queues samples for playback, emitting full backend blocks as they
// become available. It checks ctx between block writes.
func (p *PlaybackSink) Write(ctx context.Context, samples []float32) error {
	p.pending = append(p.pending, samples...)
	for len(p.pending) >= readFrames {
		if err := ctx.Err(); err != nil {
			return err
		}
		copy(p.buf, p.pending[:readFrames])
		p.pending = p.pending[readFrames:]
		if err := p.stream.Write(); err != nil {
			return fmt.Errorf("audio: playback write: %w", err)
		}
	}
	return nil
}

// Flush pads the final partial block with silence and hands it to the
// backend. The stream keeps playing queued audio; Close waits for it.
func (p *PlaybackSink) Flush() error {
	if len(p.pending) == 0 {
		return nil
	}
	n := copy(p.buf, p.pending)
	for i := n; i < readFrames; i++ {
		p.buf[i] = 0
	}
	p.pending = p.pending[:0]
	if err := p.stream.Write(); err != nil {
		return fmt.Errorf("audio: playback flush: %w", err)
	}
	return nil
}

// Close stops and closes the playback stream. Stop blocks until pending
// backend buffers have finished playing.
func (p *PlaybackSink) Close() error {
	if err := p.stream.Stop(); err != nil {
		p.stream.Close()
		return fmt.Errorf("audio: stop playback: %w", err)
	}
	if err := p.stream.Close(); err != nil {
		return fmt.Errorf("audio: close playback: %w", err)
	}
	return nil
}

func findInputDevice(name string) (*portaudio.DeviceInfo, error) {
	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("audio: enumerate devices: %w", err)
	}
	for _, dev := range devices {
		if dev.MaxInputChannels > 0 && strings.Contains(dev.Name, name) {
			return dev, nil
		}
	}
	return nil, fmt.Errorf("audio: no input device matching %q", name)
}

func deviceOrDefault(name string) string {
	if name == "" {
		return "(default)"
	}
	return name
}
