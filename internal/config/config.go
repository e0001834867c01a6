// Package config provides the configuration schema and loader for the
// radaemon receive monitor.
package config

// LogLevel controls log verbosity for the radaemon server.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Config is the root configuration structure for radaemon.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Audio     AudioConfig     `yaml:"audio"`
	Recording RecordingConfig `yaml:"recording"`
}

// ServerConfig holds network and logging settings for the status server.
type ServerConfig struct {
	// ListenAddr is the TCP address the status/metrics server listens on
	// (e.g., ":8080"). Empty disables the HTTP surface entirely.
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`
}

// AudioConfig selects the input source and initial gain.
type AudioConfig struct {
	// InputDevice names the capture device. The first input device whose
	// name contains this string is used; empty selects the default device.
	InputDevice string `yaml:"input_device"`

	// WavFile switches the receiver to file mode: the WAV file is preloaded,
	// resampled to the modem rate, and streamed instead of live capture.
	WavFile string `yaml:"wav_file"`

	// InputGainDB is the initial input gain in dB, applied as a linear
	// multiplier before demodulation. Adjustable at runtime via the API.
	InputGainDB float64 `yaml:"input_gain_db"`
}

// RecordingConfig controls the raw capture recording sink.
type RecordingConfig struct {
	// Dir is the directory recording files are created in.
	// Defaults to the working directory when empty.
	Dir string `yaml:"dir"`
}
