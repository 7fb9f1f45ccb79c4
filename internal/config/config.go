package config

// Hardware and processing limits.
const (
	MinDeviceID     = -1     // -1 represents the system default device.
	MinSampleRate   = 8000   // Minimum usable sample rate (Hz).
	MaxSampleRate   = 192000 // Maximum supported sample rate (Hz).
	MaxBufferFrames = 8192   // Maximum frames per buffer.
	MaxChannels     = 32
)

// Defaults used when neither file nor environment set a value.
const (
	DefaultFileName        = "beatsense.yaml"
	DefaultLogLevel        = "info"
	DefaultSampleRate      = 44100
	DefaultFramesPerBuffer = 1024
	DefaultChannels        = 1
	DefaultNoiseGate       = 0.001 // Fraction of full scale.
	DefaultWebSocketAddr   = ":8080"
	DefaultUDPTarget       = "127.0.0.1:9090"
	DefaultRecordingDir    = "./recordings"
)
