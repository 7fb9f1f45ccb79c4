// Package pipeline runs one analysis tick at a time through the spectral
// frontend, the beat detector, the pattern engine and the actuation gateway,
// then hands the result to the transports.
//
// A Pipeline owns its detector and gateway; run one Pipeline per stream.
package pipeline

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"beatsense/internal/analysis"
	"beatsense/internal/haptic"
	"beatsense/internal/log"
	"beatsense/internal/transport"
)

// AdaptivePatternName labels synthesised patterns in messages.
const AdaptivePatternName = "adaptive"

// Analyser turns PCM into the byte spectrum consumed by Tick.
type Analyser interface {
	analysis.SampleProcessor
	analysis.SpectrumProvider
	Reset()
}

// Options configures a Pipeline.
type Options struct {
	Mode      Mode
	Strategy  Strategy
	Beat      analysis.BeatConfig
	Transport transport.Transport // Optional.

	// OnMessage, if set, is called synchronously with every message in every
	// mode. It must not block.
	OnMessage func(transport.Message)

	// NewSessionID generates the id returned by Attach. Defaults to a random UUID.
	NewSessionID func() string
}

// DefaultOptions returns combined mode, mood strategy and default detector
// settings.
func DefaultOptions() Options {
	return Options{
		Mode:     ModeCombined,
		Strategy: StrategyMood,
		Beat:     analysis.DefaultBeatConfig(),
	}
}

// Stats counts what the pipeline has done since construction.
type Stats struct {
	Ticks       uint64
	Beats       uint64
	HapticPlays uint64
	SendErrors  uint64
}

// Pipeline is safe for concurrent use; ticks are serialised internally and
// must still arrive in chronological order.
type Pipeline struct {
	mu       sync.Mutex
	gateway  *haptic.Gateway // Nil disables haptics.
	analyser Analyser        // Nil means only Tick can be used.
	detector *analysis.BeatDetector
	opts     Options

	attached bool
	session  string
	source   string
	seq      uint64
	last     transport.Message
	stats    Stats
}

// New builds a pipeline. gw and analyser may be nil.
func New(gw *haptic.Gateway, analyser Analyser, opts Options) (*Pipeline, error) {
	mode, err := ParseMode(string(opts.Mode))
	if err != nil {
		return nil, err
	}
	strategy, err := ParseStrategy(string(opts.Strategy))
	if err != nil {
		return nil, err
	}
	opts.Mode, opts.Strategy = mode, strategy

	detector, err := analysis.NewBeatDetector(opts.Beat)
	if err != nil {
		return nil, err
	}
	if opts.NewSessionID == nil {
		opts.NewSessionID = uuid.NewString
	}

	log.Infof("Pipeline: Created (mode=%s strategy=%s haptics=%t)", mode, strategy, gw != nil)
	return &Pipeline{
		gateway:  gw,
		analyser: analyser,
		detector: detector,
		opts:     opts,
	}, nil
}

// Attach starts a new session for the named source. All detector history is
// cleared so tempo from a previous source does not leak into the new one.
func (p *Pipeline) Attach(source string) string {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.detector.Reset()
	if p.analyser != nil {
		p.analyser.Reset()
	}
	p.session = p.opts.NewSessionID()
	p.source = source
	p.seq = 0
	p.last = transport.Message{}
	p.attached = true

	log.Infof("Pipeline: Attached %q (session %s)", source, p.session)
	return p.session
}

// Detach ends the session and stops any running vibration.
func (p *Pipeline) Detach() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.attached {
		return
	}
	p.attached = false
	if p.gateway != nil {
		p.gateway.Stop()
	}
	log.Infof("Pipeline: Detached %q after %d ticks", p.source, p.seq)
}

// Attached reports whether a source is attached.
func (p *Pipeline) Attached() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.attached
}

// Session returns the current session id, or "" before the first Attach.
func (p *Pipeline) Session() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.session
}

// ProcessSamples feeds PCM through the analyser and runs one tick on the
// resulting spectrum.
func (p *Pipeline) ProcessSamples(samples []float64, ts time.Time) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.attached || p.analyser == nil {
		return analysis.ErrNotInitialized
	}
	if err := p.analyser.ProcessSamples(samples, ts); err != nil {
		return err
	}
	mags, td := p.analyser.Spectrum()
	_, err := p.tick(mags, td, ts)
	return err
}

// Tick runs one analysis step over a byte spectrum captured at ts.
func (p *Pipeline) Tick(magnitudes, timeDomain []uint8, ts time.Time) (transport.Message, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.attached {
		return transport.Message{}, analysis.ErrNotInitialized
	}
	return p.tick(magnitudes, timeDomain, ts)
}

func (p *Pipeline) tick(magnitudes, timeDomain []uint8, ts time.Time) (transport.Message, error) {
	frame, err := analysis.ComputeFrame(magnitudes, timeDomain, ts)
	if err != nil {
		return transport.Message{}, err
	}
	beat := p.detector.Process(frame)

	p.seq++
	p.stats.Ticks++
	msg := transport.Message{
		Type:     transport.MessageTypeTick,
		Session:  p.session,
		Source:   p.source,
		Sequence: p.seq,
		Frame:    frame,
		Beat:     beat,
	}

	if beat.IsBeat {
		p.stats.Beats++
		if p.opts.Mode.Haptics() {
			msg.Haptic.Pattern, msg.Haptic.Played = p.actuate(frame, beat)
			if msg.Haptic.Played {
				p.stats.HapticPlays++
			}
		}
	}
	if p.gateway != nil {
		msg.Haptic.HapticConfig = p.gateway.Config()
	}

	if p.opts.Mode.Visuals() && p.opts.Transport != nil {
		if err := p.opts.Transport.Send(msg); err != nil {
			p.stats.SendErrors++
			log.Debugf("Pipeline: Send failed on tick %d: %v", p.seq, err)
		}
	}
	if p.opts.OnMessage != nil {
		p.opts.OnMessage(msg)
	}

	p.last = msg
	return msg, nil
}

// actuate picks a pattern for the beat and plays it. A gateway that refuses
// is not an error; haptics are an enhancement.
func (p *Pipeline) actuate(frame analysis.SpectralFrame, beat analysis.BeatEvent) (string, bool) {
	if p.gateway == nil {
		return "", false
	}
	switch p.opts.Strategy {
	case StrategyAdaptive:
		pattern := haptic.SynthesizePattern(frame.Bass, frame.Mid, frame.Treble, beat.BPM)
		return AdaptivePatternName, p.gateway.Play(pattern)
	default:
		vp := haptic.PatternForMood(beat.Energy)
		return strings.ToLower(string(vp.ID)), p.gateway.PlayPattern(vp)
	}
}

// Last returns the most recent message.
func (p *Pipeline) Last() transport.Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.last
}

// Stats returns a snapshot of the counters.
func (p *Pipeline) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stats
}

// Mode returns the current mode.
func (p *Pipeline) Mode() Mode {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.opts.Mode
}

// SetMode switches outputs. Entering visual mode stops the motor.
func (p *Pipeline) SetMode(m Mode) error {
	mode, err := ParseMode(string(m))
	if err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.opts.Mode = mode
	if !mode.Haptics() && p.gateway != nil {
		p.gateway.Stop()
	}
	log.Infof("Pipeline: Mode set to %s", mode)
	return nil
}

// Strategy returns the current pattern strategy.
func (p *Pipeline) Strategy() Strategy {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.opts.Strategy
}

// SetStrategy changes how beats become patterns.
func (p *Pipeline) SetStrategy(s Strategy) error {
	strategy, err := ParseStrategy(string(s))
	if err != nil {
		return err
	}
	p.mu.Lock()
	p.opts.Strategy = strategy
	p.mu.Unlock()
	return nil
}

// SetHapticEnabled toggles the gateway. It is a no-op without one.
func (p *Pipeline) SetHapticEnabled(enabled bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.gateway != nil {
		p.gateway.SetEnabled(enabled)
	}
}

// SetHapticIntensity forwards to the gateway.
func (p *Pipeline) SetHapticIntensity(v float64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.gateway == nil {
		return analysis.ErrNotInitialized
	}
	return p.gateway.SetIntensity(v)
}

// HapticConfig returns the gateway snapshot, or the zero value without one.
func (p *Pipeline) HapticConfig() haptic.HapticConfig {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.gateway == nil {
		return haptic.HapticConfig{}
	}
	return p.gateway.Config()
}

// PlayPattern plays p immediately, outside the beat flow. It honours the
// mode: nothing plays in visual mode.
func (p *Pipeline) PlayPattern(vp haptic.VibrationPattern) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.gateway == nil || !p.opts.Mode.Haptics() {
		return false
	}
	return p.gateway.PlayPattern(vp)
}

// Pulse plays a single short vibration, as PlayPattern.
func (p *Pipeline) Pulse(d time.Duration) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.gateway == nil || !p.opts.Mode.Haptics() {
		return false
	}
	return p.gateway.Pulse(d)
}

// Close detaches and closes the transport.
func (p *Pipeline) Close() error {
	p.Detach()
	if p.opts.Transport != nil {
		return p.opts.Transport.Close()
	}
	return nil
}

var _ analysis.SampleProcessor = (*Pipeline)(nil)
