package transport

import (
	"beatsense/internal/log"
)

// LoggingTransport implements the Transport interface by logging data. Beats
// are logged at info level, everything else at debug.
type LoggingTransport struct{}

// NewLoggingTransport creates a new LoggingTransport instance.
func NewLoggingTransport() *LoggingTransport {
	log.Info("Transport: Using LoggingTransport")
	return &LoggingTransport{}
}

// Send logs the received data.
func (lt *LoggingTransport) Send(data any) error {
	msg, ok := asMessage(data)
	if !ok {
		log.Debugf("Transport: %T %+v", data, data)
		return nil
	}
	if msg.Beat.IsBeat {
		log.Infof("Transport: beat seq=%d bpm=%d energy=%.3f confidence=%.3f haptic=%s played=%t",
			msg.Sequence, msg.Beat.BPM, msg.Beat.Energy, msg.Beat.Confidence, msg.Haptic.Pattern, msg.Haptic.Played)
		return nil
	}
	if !log.Enabled(log.LevelDebug) {
		return nil
	}
	log.Debugf("Transport: tick seq=%d vol=%.2f bass=%.2f mid=%.2f treble=%.2f",
		msg.Sequence, msg.Frame.Volume, msg.Frame.Bass, msg.Frame.Mid, msg.Frame.Treble)
	return nil // Logging transport never fails to "send"
}

// Close is a no-op for LoggingTransport.
func (lt *LoggingTransport) Close() error {
	log.Debug("Transport: LoggingTransport closed")
	return nil
}

// Ensure LoggingTransport satisfies the interface at compile time.
var _ Transport = (*LoggingTransport)(nil)
