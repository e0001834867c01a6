package audio_test

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/kv9n/radaemon/pkg/audio"
)

// writeTestWAV writes a 16-bit PCM WAV file and returns its path.
func writeTestWAV(t *testing.T, rate, channels int, samples []int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.wav")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	enc := wav.NewEncoder(f, rate, 16, channels, 1)
	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: channels, SampleRate: rate},
		Data:           samples,
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		t.Fatal(err)
	}
	if err := enc.Close(); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestFileSource_ReadsAllSamples(t *testing.T) {
	samples := make([]int, 1000)
	for i := range samples {
		samples[i] = 1024
	}
	path := writeTestWAV(t, 8000, 1, samples)

	src, err := audio.NewFileSource(path, 8000)
	if err != nil {
		t.Fatal(err)
	}
	defer src.Close()

	if src.SampleRate() != 8000 {
		t.Errorf("rate: got %d, want 8000", src.SampleRate())
	}
	if src.Len() != len(samples) {
		t.Fatalf("length: got %d, want %d", src.Len(), len(samples))
	}

	buf := make([]float32, 256)
	total := 0
	for {
		n, err := src.Read(context.Background(), buf)
		total += n
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatal(err)
		}
	}
	if total != len(samples) {
		t.Errorf("total samples read: got %d, want %d", total, len(samples))
	}
}

func TestFileSource_NormalisesAmplitude(t *testing.T) {
	path := writeTestWAV(t, 8000, 1, []int{16384, -16384, 0, 0})

	src, err := audio.NewFileSource(path, 8000)
	if err != nil {
		t.Fatal(err)
	}
	defer src.Close()

	buf := make([]float32, 2)
	if _, err := src.Read(context.Background(), buf); err != nil {
		t.Fatal(err)
	}
	if buf[0] != 0.5 || buf[1] != -0.5 {
		t.Errorf("normalisation: got %v, want [0.5 -0.5]", buf)
	}
}

func TestFileSource_DownmixesStereo(t *testing.T) {
	// Interleaved L/R pairs averaging to a known mono value.
	path := writeTestWAV(t, 8000, 2, []int{16384, 0, 0, 16384, 8192, 8192, 0, 0})

	src, err := audio.NewFileSource(path, 8000)
	if err != nil {
		t.Fatal(err)
	}
	defer src.Close()

	if src.Len() != 4 {
		t.Fatalf("length: got %d, want 4", src.Len())
	}
	buf := make([]float32, 3)
	if _, err := src.Read(context.Background(), buf); err != nil {
		t.Fatal(err)
	}
	want := []float32{0.25, 0.25, 0.25}
	for i := range want {
		if buf[i] != want[i] {
			t.Errorf("sample %d: got %v, want %v", i, buf[i], want[i])
		}
	}
}

func TestFileSource_ResamplesToPipelineRate(t *testing.T) {
	samples := make([]int, 48000) // one second at 48 kHz
	path := writeTestWAV(t, 48000, 1, samples)

	src, err := audio.NewFileSource(path, 8000)
	if err != nil {
		t.Fatal(err)
	}
	defer src.Close()

	if src.Len() != 8000 {
		t.Errorf("resampled length: got %d, want 8000", src.Len())
	}
}

func TestFileSource_ShortReadAtEOF(t *testing.T) {
	path := writeTestWAV(t, 8000, 1, make([]int, 100))

	src, err := audio.NewFileSource(path, 8000)
	if err != nil {
		t.Fatal(err)
	}
	defer src.Close()

	buf := make([]float32, 160)
	n, err := src.Read(context.Background(), buf)
	if n != 100 {
		t.Errorf("count: got %d, want 100", n)
	}
	if !errors.Is(err, io.EOF) {
		t.Errorf("error: got %v, want io.EOF", err)
	}
}

func TestFileSource_RejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bogus.wav")
	if err := os.WriteFile(path, []byte("not a wav"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := audio.NewFileSource(path, 8000); err == nil {
		t.Fatal("expected error for invalid wav file")
	}
}
