// SPDX-License-Identifier: MIT
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"beatsense/internal/analysis"
	"beatsense/internal/haptic"
	"beatsense/internal/haptic/driver"
	"beatsense/internal/log"
	"beatsense/internal/pipeline"
	"beatsense/internal/transport/mqtt"
	"beatsense/pkg/bitint"
)

// Config represents the main application configuration structure, loaded from YAML.
type Config struct {
	LogLevel  string              `yaml:"log_level"` // Logging level (e.g., "debug", "info", "warn", "error").
	Audio     AudioConfig         `yaml:"audio"`     // Capture and spectral analysis.
	Beat      analysis.BeatConfig `yaml:"beat"`      // Beat and tempo detection.
	Haptic    HapticConfig        `yaml:"haptic"`    // Pattern engine and actuation.
	Transport TransportConfig     `yaml:"transport"` // Outbound feeds.
	Recording RecordingConfig     `yaml:"recording"` // WAV capture of the live input.
}

// AudioConfig holds settings related to audio input and spectral analysis.
type AudioConfig struct {
	InputDevice     int     `yaml:"input_device"`      // PortAudio device index for audio input (-1 for default).
	SampleRate      float64 `yaml:"sample_rate"`       // Sample rate in Hz (e.g., 44100, 48000).
	FramesPerBuffer int     `yaml:"frames_per_buffer"` // Frames per capture callback; one analysis tick each.
	LowLatency      bool    `yaml:"low_latency"`       // Request low latency settings from PortAudio device.
	InputChannels   int     `yaml:"input_channels"`    // Channels to capture; mixed down to mono.
	NoiseGate       float64 `yaml:"noise_gate"`        // Peak level below which a buffer is treated as silence, [0,1). 0 disables.
	FFTSize         int     `yaml:"fft_size"`          // Analysis window; yields fft_size/2 magnitude bins. 0 derives it from frames_per_buffer.
	FFTWindow       string  `yaml:"fft_window"`        // Window function name (e.g., "Blackman", "Hann").
	Smoothing       float64 `yaml:"smoothing"`         // Temporal smoothing time constant, [0,1].
	MinDecibels     float64 `yaml:"min_decibels"`
	MaxDecibels     float64 `yaml:"max_decibels"`
}

// HapticConfig holds the pattern engine and actuation settings.
type HapticConfig struct {
	Enabled     bool       `yaml:"enabled"`
	Intensity   float64    `yaml:"intensity"`    // Global amplitude scale, [0,1].
	Driver      string     `yaml:"driver"`       // "log", "gpio", "browser" or "none".
	DeviceClass string     `yaml:"device_class"` // Overrides the driver probe when set.
	Mode        string     `yaml:"mode"`         // "visual", "haptic" or "combined".
	Strategy    string     `yaml:"strategy"`     // "mood" or "adaptive".
	GPIO        GPIOConfig `yaml:"gpio"`
}

// GPIOConfig selects the motor output line for the gpio driver.
type GPIOConfig struct {
	Chip      string `yaml:"chip"`
	Line      int    `yaml:"line"`
	ActiveLow bool   `yaml:"active_low"`
}

// TransportConfig holds settings related to sending pipeline messages.
type TransportConfig struct {
	LogEnabled       bool          `yaml:"log_enabled"`        // Log every message.
	WebSocketEnabled bool          `yaml:"websocket_enabled"`  // Serve messages to visual clients.
	WebSocketAddr    string        `yaml:"websocket_addr"`     // Listen address, e.g. ":8080".
	UDPEnabled       bool          `yaml:"udp_enabled"`        // Send binary frames over UDP.
	UDPTargetAddress string        `yaml:"udp_target_address"` // Target address and port for UDP packets (e.g., "127.0.0.1:9090").
	UDPSendInterval  time.Duration `yaml:"udp_send_interval"`  // Interval between sending UDP packets.
	MQTTEnabled      bool          `yaml:"mqtt_enabled"`       // Publish beats to a broker.
	MQTTBroker       string        `yaml:"mqtt_broker"`        // e.g. "tcp://localhost:1883".
	MQTTTopic        string        `yaml:"mqtt_topic"`
	MQTTClientID     string        `yaml:"mqtt_client_id"`
}

// RecordingConfig holds settings related to audio recording functionality.
type RecordingConfig struct {
	Enabled   bool   `yaml:"enabled"`    // Record the live input to a WAV file.
	OutputDir string `yaml:"output_dir"` // Directory to save recorded audio files.
}

// Default returns the built-in configuration.
func Default() Config {
	fft := analysis.DefaultFFTConfig(DefaultSampleRate)
	return Config{
		LogLevel: DefaultLogLevel,
		Audio: AudioConfig{
			InputDevice:     MinDeviceID,
			SampleRate:      DefaultSampleRate,
			FramesPerBuffer: DefaultFramesPerBuffer,
			InputChannels:   DefaultChannels,
			NoiseGate:       DefaultNoiseGate,
			FFTSize:         fft.Size,
			FFTWindow:       fft.Window.String(),
			Smoothing:       fft.Smoothing,
			MinDecibels:     fft.MinDecibels,
			MaxDecibels:     fft.MaxDecibels,
		},
		Beat: analysis.DefaultBeatConfig(),
		Haptic: HapticConfig{
			Enabled:   true,
			Intensity: haptic.DefaultIntensity,
			Driver:    string(driver.KindLog),
			Mode:      string(pipeline.ModeCombined),
			Strategy:  string(pipeline.StrategyMood),
			GPIO:      GPIOConfig{Chip: "gpiochip0", Line: 18},
		},
		Transport: TransportConfig{
			LogEnabled:       false,
			WebSocketEnabled: true,
			WebSocketAddr:    DefaultWebSocketAddr,
			UDPEnabled:       false,
			UDPTargetAddress: DefaultUDPTarget,
			UDPSendInterval:  33 * time.Millisecond, // ~30Hz.
			MQTTTopic:        mqtt.DefaultTopic,
			MQTTClientID:     mqtt.DefaultClientID,
		},
		Recording: RecordingConfig{
			OutputDir: DefaultRecordingDir,
		},
	}
}

// searchPaths lists where LoadConfig looks when no path is given.
func searchPaths() []string {
	candidates := []string{DefaultFileName}
	if dir, err := os.UserConfigDir(); err == nil {
		candidates = append(candidates, filepath.Join(dir, "beatsense", DefaultFileName))
	}
	return candidates
}

// LoadConfig loads configuration from a YAML file specified by path. If path is empty,
// it searches default locations. If no file is found, it uses built-in
// defaults. After loading defaults or from file, it applies environment variable
// overrides and validates the final configuration.
func LoadConfig(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		for _, candidate := range searchPaths() {
			if _, err := os.Stat(candidate); err == nil {
				path = candidate
				break
			}
		}
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
		log.Debugf("Config: Loaded %s", path)
	}

	// Environment wins over the file.
	cfg.applyEnvOverrides()

	if cfg.Audio.FFTSize == 0 {
		cfg.Audio.FFTSize = bitint.NextPowerOfTwo(2 * cfg.Audio.FramesPerBuffer)
		log.Debugf("Config: Derived fft_size %d from frames_per_buffer", cfg.Audio.FFTSize)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// Validate checks every section and joins the problems found.
func (c *Config) Validate() error {
	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	if _, ok := log.ParseLevel(c.LogLevel); !ok {
		add("log_level %q is not recognised", c.LogLevel)
	}

	a := c.Audio
	if a.InputDevice < MinDeviceID {
		add("audio.input_device must be >= %d", MinDeviceID)
	}
	if a.SampleRate < MinSampleRate || a.SampleRate > MaxSampleRate {
		add("audio.sample_rate %.0f out of range [%d, %d]", a.SampleRate, MinSampleRate, MaxSampleRate)
	}
	if a.FramesPerBuffer <= 0 || a.FramesPerBuffer > MaxBufferFrames {
		add("audio.frames_per_buffer %d out of range (0, %d]", a.FramesPerBuffer, MaxBufferFrames)
	}
	if a.InputChannels < 1 || a.InputChannels > MaxChannels {
		add("audio.input_channels %d out of range [1, %d]", a.InputChannels, MaxChannels)
	}
	if a.NoiseGate < 0 || a.NoiseGate >= 1 {
		add("audio.noise_gate %.3f out of range [0, 1)", a.NoiseGate)
	}
	if _, err := analysis.ParseWindowFunc(a.FFTWindow); err != nil {
		add("audio.fft_window: %w", err)
	}
	if err := c.FFTConfig().Validate(); err != nil {
		add("audio: %w", err)
	}

	if err := c.Beat.Validate(); err != nil {
		add("beat: %w", err)
	}

	h := c.Haptic
	if err := haptic.ValidateIntensity(h.Intensity); err != nil {
		add("haptic.intensity: %w", err)
	}
	kind, err := driver.ParseKind(h.Driver)
	if err != nil {
		add("haptic.driver: %w", err)
	}
	if _, err := haptic.ParseDeviceClass(h.DeviceClass); err != nil {
		add("haptic.device_class: %w", err)
	}
	if _, err := pipeline.ParseMode(h.Mode); err != nil {
		add("haptic.mode: %w", err)
	}
	if _, err := pipeline.ParseStrategy(h.Strategy); err != nil {
		add("haptic.strategy: %w", err)
	}
	if kind == driver.KindGPIO && (h.GPIO.Chip == "" || h.GPIO.Line < 0) {
		add("haptic.gpio needs a chip and a non-negative line")
	}

	t := c.Transport
	if t.UDPEnabled {
		if t.UDPTargetAddress == "" {
			add("transport.udp_target_address must be set when UDP is enabled")
		}
		if t.UDPSendInterval <= 0 {
			add("transport.udp_send_interval must be positive when UDP is enabled")
		}
	}
	if t.WebSocketEnabled && t.WebSocketAddr == "" {
		add("transport.websocket_addr must be set when the websocket feed is enabled")
	}
	if t.MQTTEnabled && t.MQTTBroker == "" {
		add("transport.mqtt_broker must be set when MQTT is enabled")
	}

	if c.Recording.Enabled && c.Recording.OutputDir == "" {
		add("recording.output_dir must be set when recording is enabled")
	}

	return errors.Join(errs...)
}

// FFTConfig returns the analyser settings for the FFT processor.
func (c *Config) FFTConfig() analysis.FFTConfig {
	w, _ := analysis.ParseWindowFunc(c.Audio.FFTWindow)
	return analysis.FFTConfig{
		Size:        c.Audio.FFTSize,
		SampleRate:  c.Audio.SampleRate,
		Window:      w,
		Smoothing:   c.Audio.Smoothing,
		MinDecibels: c.Audio.MinDecibels,
		MaxDecibels: c.Audio.MaxDecibels,
	}
}

// GatewayOptions returns the actuation gateway settings.
func (c *Config) GatewayOptions() haptic.GatewayOptions {
	opts := haptic.DefaultGatewayOptions()
	opts.Enabled = c.Haptic.Enabled
	opts.Intensity = c.Haptic.Intensity
	opts.DeviceClass, _ = haptic.ParseDeviceClass(c.Haptic.DeviceClass)
	return opts
}

// applyEnvOverrides applies ENV_* variables on top of the loaded values.
// Unparseable values are logged and ignored.
func (c *Config) applyEnvOverrides() {
	str := func(key string, dst *string) {
		if val, ok := os.LookupEnv(key); ok {
			*dst = val
			log.Infof("Config: Overriding %s from env: %s", key, val)
		}
	}
	boolean := func(key string, dst *bool) {
		if val, ok := os.LookupEnv(key); ok {
			b, err := strconv.ParseBool(val)
			if err != nil {
				log.Warnf("Config: Ignoring %s=%q: %v", key, val, err)
				return
			}
			*dst = b
			log.Infof("Config: Overriding %s from env: %v", key, b)
		}
	}
	float := func(key string, dst *float64) {
		if val, ok := os.LookupEnv(key); ok {
			f, err := strconv.ParseFloat(val, 64)
			if err != nil {
				log.Warnf("Config: Ignoring %s=%q: %v", key, val, err)
				return
			}
			*dst = f
			log.Infof("Config: Overriding %s from env: %v", key, f)
		}
	}
	duration := func(key string, dst *time.Duration) {
		if val, ok := os.LookupEnv(key); ok {
			d, err := time.ParseDuration(val)
			if err != nil {
				log.Warnf("Config: Ignoring %s=%q: %v", key, val, err)
				return
			}
			*dst = d
			log.Infof("Config: Overriding %s from env: %s", key, d)
		}
	}

	// ENV_{...}
	// General overrides.
	str("ENV_LOG_LEVEL", &c.LogLevel)

	// ENV_HAPTIC_{...}
	boolean("ENV_HAPTIC_ENABLED", &c.Haptic.Enabled)
	float("ENV_HAPTIC_INTENSITY", &c.Haptic.Intensity)
	str("ENV_HAPTIC_DRIVER", &c.Haptic.Driver)
	str("ENV_HAPTIC_MODE", &c.Haptic.Mode)
	str("ENV_HAPTIC_STRATEGY", &c.Haptic.Strategy)

	// ENV_WS_{...}, ENV_UDP_{...}, ENV_MQTT_{...}
	// Transport layer.
	boolean("ENV_WS_ENABLED", &c.Transport.WebSocketEnabled)
	str("ENV_WS_ADDR", &c.Transport.WebSocketAddr)
	boolean("ENV_UDP_ENABLED", &c.Transport.UDPEnabled)
	str("ENV_UDP_TARGET_ADDRESS", &c.Transport.UDPTargetAddress)
	duration("ENV_UDP_SEND_INTERVAL", &c.Transport.UDPSendInterval)
	boolean("ENV_MQTT_ENABLED", &c.Transport.MQTTEnabled)
	str("ENV_MQTT_BROKER", &c.Transport.MQTTBroker)
	str("ENV_MQTT_TOPIC", &c.Transport.MQTTTopic)
}
