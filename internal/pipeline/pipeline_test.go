package pipeline_test

import (
	"errors"
	"slices"
	"testing"
	"time"

	"beatsense/internal/analysis"
	"beatsense/internal/haptic"
	"beatsense/internal/haptic/driver"
	"beatsense/internal/pipeline"
	"beatsense/internal/transport"
	"beatsense/pkg/utils"
)

const (
	bins      = 20
	tickEvery = 23 * time.Millisecond
	quiet     = 50
	loud      = 250
)

var epoch = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

// flat returns a spectrum with every bin at v, so all bands equal v/255.
func flat(v uint8) []uint8 {
	b := make([]uint8, bins)
	for i := range b {
		b[i] = v
	}
	return b
}

type fixture struct {
	p     *pipeline.Pipeline
	fake  *driver.FakeDriver
	tr    *utils.MockTransport
	seen  []transport.Message
	clock time.Time
}

func newFixture(t *testing.T, mode pipeline.Mode, strategy pipeline.Strategy) *fixture {
	t.Helper()
	f := &fixture{fake: driver.NewFakeDriver(), tr: &utils.MockTransport{}, clock: epoch}

	gwOpts := haptic.DefaultGatewayOptions()
	gwOpts.Now = func() time.Time { return f.clock }
	gw, err := haptic.NewGateway(f.fake, gwOpts)
	if err != nil {
		t.Fatalf("NewGateway() error = %v", err)
	}

	opts := pipeline.DefaultOptions()
	opts.Mode = mode
	opts.Strategy = strategy
	opts.Transport = f.tr
	opts.OnMessage = func(m transport.Message) { f.seen = append(f.seen, m) }
	opts.NewSessionID = func() string { return "session-1" }

	f.p, err = pipeline.New(gw, nil, opts)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return f
}

// run ticks n quiet frames followed by one loud frame and returns the loud
// frame's message.
func (f *fixture) run(t *testing.T, n int) transport.Message {
	t.Helper()
	for range n {
		f.tick(t, quiet)
	}
	return f.tick(t, loud)
}

func (f *fixture) tick(t *testing.T, v uint8) transport.Message {
	t.Helper()
	f.clock = f.clock.Add(tickEvery)
	msg, err := f.p.Tick(flat(v), nil, f.clock)
	if err != nil {
		t.Fatalf("Tick() error = %v", err)
	}
	return msg
}

func TestTickBeforeAttach(t *testing.T) {
	f := newFixture(t, pipeline.ModeCombined, pipeline.StrategyMood)

	if _, err := f.p.Tick(flat(quiet), nil, epoch); !errors.Is(err, analysis.ErrNotInitialized) {
		t.Errorf("Tick() error = %v, want ErrNotInitialized", err)
	}
	if err := f.p.ProcessSamples(make([]float64, 16), epoch); !errors.Is(err, analysis.ErrNotInitialized) {
		t.Errorf("ProcessSamples() error = %v, want ErrNotInitialized", err)
	}
	if len(f.tr.Sent()) != 0 || len(f.seen) != 0 {
		t.Error("nothing should be published before Attach")
	}
}

func TestCombinedMoodBeat(t *testing.T) {
	f := newFixture(t, pipeline.ModeCombined, pipeline.StrategyMood)
	if id := f.p.Attach("live"); id != "session-1" {
		t.Fatalf("Attach() = %q", id)
	}

	msg := f.run(t, analysis.DefaultHistorySize)

	if !msg.Beat.IsBeat {
		t.Fatalf("loud frame after quiet history should be a beat: %+v", msg.Beat)
	}
	if msg.Sequence != analysis.DefaultHistorySize+1 || msg.Session != "session-1" || msg.Source != "live" {
		t.Errorf("message header = (%d, %q, %q)", msg.Sequence, msg.Session, msg.Source)
	}
	// Energy ~0.98 sits on the top step of the mood ladder.
	if msg.Haptic.Pattern != "intense" || !msg.Haptic.Played {
		t.Errorf("Haptic = %+v, want intense played", msg.Haptic)
	}
	want := haptic.Scale(haptic.MustLookup(haptic.Intense).Pattern, haptic.DefaultIntensity)
	if !slices.Equal(f.fake.Last(), want) {
		t.Errorf("driver got %v, want %v", f.fake.Last(), want)
	}
	if !msg.Haptic.IsActuating {
		t.Error("message should report the gateway as actuating")
	}
	if len(f.fake.Patterns) != 1 {
		t.Errorf("driver called %d times, want 1", len(f.fake.Patterns))
	}

	if got := len(f.tr.Sent()); got != analysis.DefaultHistorySize+1 {
		t.Errorf("transport got %d messages, want %d", got, analysis.DefaultHistorySize+1)
	}
	stats := f.p.Stats()
	if stats.Beats != 1 || stats.HapticPlays != 1 || stats.Ticks != analysis.DefaultHistorySize+1 {
		t.Errorf("Stats() = %+v", stats)
	}
	if f.p.Last().Sequence != msg.Sequence {
		t.Error("Last() should return the latest message")
	}
}

func TestModes(t *testing.T) {
	tests := []struct {
		mode          pipeline.Mode
		wantHaptic    bool
		wantTransport bool
	}{
		{pipeline.ModeVisual, false, true},
		{pipeline.ModeHaptic, true, false},
		{pipeline.ModeCombined, true, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.mode), func(t *testing.T) {
			f := newFixture(t, tt.mode, pipeline.StrategyMood)
			f.p.Attach("live")
			msg := f.run(t, 10)

			if !msg.Beat.IsBeat {
				t.Fatal("expected a beat")
			}
			if got := len(f.fake.Patterns) > 0; got != tt.wantHaptic {
				t.Errorf("driver called = %t, want %t", got, tt.wantHaptic)
			}
			if msg.Haptic.Played != tt.wantHaptic {
				t.Errorf("Played = %t, want %t", msg.Haptic.Played, tt.wantHaptic)
			}
			if got := len(f.tr.Sent()) > 0; got != tt.wantTransport {
				t.Errorf("transport used = %t, want %t", got, tt.wantTransport)
			}
			// The observer hook sees every tick regardless of mode.
			if len(f.seen) != 11 {
				t.Errorf("OnMessage called %d times, want 11", len(f.seen))
			}
		})
	}
}

func TestAdaptiveStrategy(t *testing.T) {
	f := newFixture(t, pipeline.ModeCombined, pipeline.StrategyAdaptive)
	f.p.Attach("file.wav")
	msg := f.run(t, 10)

	if msg.Haptic.Pattern != pipeline.AdaptivePatternName || !msg.Haptic.Played {
		t.Fatalf("Haptic = %+v", msg.Haptic)
	}
	raw := haptic.SynthesizePattern(msg.Frame.Bass, msg.Frame.Mid, msg.Frame.Treble, msg.Beat.BPM)
	want := haptic.Scale(raw, haptic.DefaultIntensity)
	if !slices.Equal(f.fake.Last(), want) {
		t.Errorf("driver got %v, want %v", f.fake.Last(), want)
	}
}

func TestAttachResetsState(t *testing.T) {
	f := newFixture(t, pipeline.ModeCombined, pipeline.StrategyMood)
	f.p.Attach("first")
	f.run(t, 10)
	// Second beat 500ms later gives a tempo.
	for range 20 {
		f.tick(t, quiet)
	}
	msg := f.tick(t, loud)
	if !msg.Beat.IsBeat || msg.Beat.BPM == 0 {
		t.Fatalf("expected a tempo after two beats: %+v", msg.Beat)
	}

	f.p.Attach("second")
	msg = f.tick(t, loud)
	if msg.Sequence != 1 || msg.Source != "second" {
		t.Errorf("after Attach: seq=%d source=%q", msg.Sequence, msg.Source)
	}
	if msg.Beat.IsBeat || msg.Beat.BPM != 0 {
		t.Errorf("first tick after Attach should start from empty history: %+v", msg.Beat)
	}
}

func TestDetachStopsAndRejects(t *testing.T) {
	f := newFixture(t, pipeline.ModeCombined, pipeline.StrategyMood)
	f.p.Attach("live")
	f.run(t, 10)

	f.p.Detach()
	if f.p.Attached() {
		t.Error("Attached() = true after Detach")
	}
	if f.fake.Cancels == 0 {
		t.Error("Detach should stop the motor")
	}
	if _, err := f.p.Tick(flat(quiet), nil, f.clock); !errors.Is(err, analysis.ErrNotInitialized) {
		t.Errorf("Tick after Detach = %v", err)
	}
	f.p.Detach() // no-op
}

func TestInvalidFrameHasNoEffect(t *testing.T) {
	f := newFixture(t, pipeline.ModeCombined, pipeline.StrategyMood)
	f.p.Attach("live")

	if _, err := f.p.Tick(nil, nil, epoch); !errors.Is(err, analysis.ErrInvalidInput) {
		t.Fatalf("Tick(nil) error = %v", err)
	}
	if _, err := f.p.Tick(flat(1), make([]uint8, 3), epoch); !errors.Is(err, analysis.ErrInvalidInput) {
		t.Fatalf("Tick(mismatch) error = %v", err)
	}
	if f.p.Stats().Ticks != 0 || len(f.tr.Sent()) != 0 {
		t.Error("rejected ticks should leave no trace")
	}
}

func TestTransportErrorsAreCounted(t *testing.T) {
	f := newFixture(t, pipeline.ModeVisual, pipeline.StrategyMood)
	f.tr.Err = errors.New("down")
	f.p.Attach("live")

	if _, err := f.p.Tick(flat(quiet), nil, epoch); err != nil {
		t.Fatalf("Tick() error = %v, transport failures must not surface", err)
	}
	if f.p.Stats().SendErrors != 1 {
		t.Errorf("SendErrors = %d, want 1", f.p.Stats().SendErrors)
	}
}

func TestSetters(t *testing.T) {
	f := newFixture(t, pipeline.ModeCombined, pipeline.StrategyMood)

	if err := f.p.SetMode("loud"); !errors.Is(err, analysis.ErrInvalidInput) {
		t.Errorf("SetMode(bad) = %v", err)
	}
	if err := f.p.SetMode(pipeline.ModeVisual); err != nil {
		t.Fatal(err)
	}
	if f.p.Mode() != pipeline.ModeVisual || f.fake.Cancels != 1 {
		t.Errorf("visual mode: mode=%s cancels=%d", f.p.Mode(), f.fake.Cancels)
	}

	if err := f.p.SetStrategy(pipeline.StrategyAdaptive); err != nil || f.p.Strategy() != pipeline.StrategyAdaptive {
		t.Errorf("SetStrategy: %v, %s", err, f.p.Strategy())
	}
	if err := f.p.SetStrategy("random"); err == nil {
		t.Error("SetStrategy(bad) should fail")
	}

	if err := f.p.SetHapticIntensity(2); err != nil || f.p.HapticConfig().Intensity != 1 {
		t.Errorf("SetHapticIntensity(2): %v, %v", err, f.p.HapticConfig().Intensity)
	}
	f.p.SetHapticEnabled(false)
	if f.p.HapticConfig().Enabled {
		t.Error("SetHapticEnabled(false) not applied")
	}
}

func TestNoGateway(t *testing.T) {
	tr := &utils.MockTransport{}
	opts := pipeline.DefaultOptions()
	opts.Transport = tr
	p, err := pipeline.New(nil, nil, opts)
	if err != nil {
		t.Fatal(err)
	}
	p.Attach("live")
	for range 10 {
		if _, err := p.Tick(flat(quiet), nil, epoch); err != nil {
			t.Fatal(err)
		}
	}
	if err := p.SetHapticIntensity(0.5); !errors.Is(err, analysis.ErrNotInitialized) {
		t.Errorf("SetHapticIntensity without gateway = %v", err)
	}
	if p.HapticConfig() != (haptic.HapticConfig{}) {
		t.Error("HapticConfig without gateway should be zero")
	}
	if err := p.Close(); err != nil || !tr.Closed() {
		t.Errorf("Close: %v, closed=%t", err, tr.Closed())
	}
}

func TestNewValidation(t *testing.T) {
	opts := pipeline.DefaultOptions()
	opts.Mode = "loud"
	if _, err := pipeline.New(nil, nil, opts); err == nil {
		t.Error("bad mode should fail")
	}

	opts = pipeline.DefaultOptions()
	opts.Beat.Threshold = 0
	if _, err := pipeline.New(nil, nil, opts); !errors.Is(err, analysis.ErrInvalidInput) {
		t.Errorf("bad beat config error = %v", err)
	}

	opts = pipeline.Options{Beat: analysis.DefaultBeatConfig()}
	p, err := pipeline.New(nil, nil, opts)
	if err != nil {
		t.Fatal(err)
	}
	if p.Mode() != pipeline.ModeCombined || p.Strategy() != pipeline.StrategyMood {
		t.Errorf("empty mode/strategy should default: %s %s", p.Mode(), p.Strategy())
	}
	if id := p.Attach("x"); len(id) != 36 {
		t.Errorf("default session id %q is not a UUID", id)
	}
}

func TestProcessSamples(t *testing.T) {
	fft, err := analysis.NewFFTProcessor(analysis.DefaultFFTConfig(44100))
	if err != nil {
		t.Fatal(err)
	}
	var last transport.Message
	opts := pipeline.DefaultOptions()
	opts.OnMessage = func(m transport.Message) { last = m }
	p, err := pipeline.New(nil, fft, opts)
	if err != nil {
		t.Fatal(err)
	}
	p.Attach("sine")

	wave := utils.GenerateSineWave(4*1024, 44100, 60)
	ts := epoch
	for i := range 4 {
		ts = ts.Add(tickEvery)
		if err := p.ProcessSamples(wave[i*1024:(i+1)*1024], ts); err != nil {
			t.Fatalf("ProcessSamples() error = %v", err)
		}
	}
	if last.Sequence != 4 {
		t.Errorf("Sequence = %d, want 4", last.Sequence)
	}
	if !(last.Frame.Bass > last.Frame.Treble) {
		t.Errorf("60Hz tone should land in bass: bass=%.3f treble=%.3f", last.Frame.Bass, last.Frame.Treble)
	}
	if len(last.Frame.Magnitudes) != fft.BinCount() {
		t.Errorf("frame has %d bins, want %d", len(last.Frame.Magnitudes), fft.BinCount())
	}
}

func TestParse(t *testing.T) {
	if m, err := pipeline.ParseMode("HAPTIC"); err != nil || m != pipeline.ModeHaptic {
		t.Errorf("ParseMode(HAPTIC) = %s, %v", m, err)
	}
	if s, err := pipeline.ParseStrategy(""); err != nil || s != pipeline.StrategyMood {
		t.Errorf("ParseStrategy(\"\") = %s, %v", s, err)
	}
	if !pipeline.ModeHaptic.Haptics() || pipeline.ModeHaptic.Visuals() {
		t.Error("haptic mode flags wrong")
	}
	if pipeline.ModeVisual.Haptics() || !pipeline.ModeVisual.Visuals() {
		t.Error("visual mode flags wrong")
	}
}

func TestManualPlayback(t *testing.T) {
	f := newFixture(t, pipeline.ModeCombined, pipeline.StrategyMood)

	if !f.p.PlayPattern(haptic.MustLookup(haptic.Wave)) {
		t.Fatal("PlayPattern() = false")
	}
	if !f.p.Pulse(0) {
		t.Fatal("Pulse() = false")
	}
	if want := []int{0, 40}; !slices.Equal(f.fake.Last(), want) {
		t.Errorf("pulse = %v, want %v", f.fake.Last(), want)
	}

	_ = f.p.SetMode(pipeline.ModeVisual)
	if f.p.Pulse(0) || f.p.PlayPattern(haptic.MustLookup(haptic.Wave)) {
		t.Error("visual mode must not vibrate")
	}
	if len(f.fake.Patterns) != 2 {
		t.Errorf("driver called %d times, want 2", len(f.fake.Patterns))
	}
}
