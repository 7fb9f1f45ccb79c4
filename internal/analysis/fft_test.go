// SPDX-License-Identifier: MIT
package analysis

import (
	"errors"
	"testing"

	"beatsense/pkg/utils"
)

const (
	testFFTSize    = 1024
	testSampleRate = 44100
)

func newTestFFT(t *testing.T, smoothing float64) *FFTProcessor {
	t.Helper()
	cfg := DefaultFFTConfig(testSampleRate)
	cfg.Size = testFFTSize
	cfg.Smoothing = smoothing
	p, err := NewFFTProcessor(cfg)
	if err != nil {
		t.Fatalf("NewFFTProcessor() error = %v", err)
	}
	return p
}

func TestFFTConfigValidate(t *testing.T) {
	mutate := func(f func(*FFTConfig)) FFTConfig {
		c := DefaultFFTConfig(testSampleRate)
		f(&c)
		return c
	}

	tests := []struct {
		name    string
		cfg     FFTConfig
		wantErr bool
	}{
		{"Defaults", DefaultFFTConfig(testSampleRate), false},
		{"Not Power Of Two", mutate(func(c *FFTConfig) { c.Size = 1000 }), true},
		{"Too Small", mutate(func(c *FFTConfig) { c.Size = 2 }), true},
		{"Zero Sample Rate", mutate(func(c *FFTConfig) { c.SampleRate = 0 }), true},
		{"Smoothing Above One", mutate(func(c *FFTConfig) { c.Smoothing = 1.5 }), true},
		{"Inverted Decibels", mutate(func(c *FFTConfig) { c.MinDecibels, c.MaxDecibels = -10, -90 }), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr != (err != nil) {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidInput) {
				t.Errorf("Validate() error = %v, want ErrInvalidInput", err)
			}
		})
	}
}

func TestFFTProcessorPeakBin(t *testing.T) {
	p := newTestFFT(t, 0)

	const bin = 32
	freq := p.FrequencyForBin(bin)
	if err := p.ProcessSamples(utils.GenerateSineWave(testFFTSize, testSampleRate, freq), testEpoch); err != nil {
		t.Fatalf("ProcessSamples() error = %v", err)
	}

	mags, td := p.Spectrum()
	if len(mags) != testFFTSize/2 || len(td) != testFFTSize/2 {
		t.Fatalf("Spectrum() lengths = %d, %d, want %d", len(mags), len(td), testFFTSize/2)
	}
	if peak := utils.FindPeakBin(mags, 0, len(mags)-1); peak != bin {
		t.Errorf("peak bin = %d, want %d", peak, bin)
	}
	if mags[bin] < 200 {
		t.Errorf("peak magnitude = %d, want a near full-scale byte", mags[bin])
	}
}

func TestFFTProcessorSilence(t *testing.T) {
	p := newTestFFT(t, 0.8)
	if err := p.ProcessSamples(make([]float64, 256), testEpoch); err != nil {
		t.Fatalf("ProcessSamples() error = %v", err)
	}

	mags, td := p.Spectrum()
	for i, m := range mags {
		if m != 0 {
			t.Fatalf("bin %d = %d, want 0 for silence", i, m)
		}
	}
	for i, v := range td {
		if v != 128 {
			t.Fatalf("time-domain %d = %d, want 128 for silence", i, v)
		}
	}
}

func TestFFTProcessorSmoothingRisesTowardSteadyState(t *testing.T) {
	p := newTestFFT(t, 0.8)
	const bin = 48
	wave := utils.GenerateSineWave(testFFTSize, testSampleRate, p.FrequencyForBin(bin))

	var prev uint8
	for i := range 5 {
		if err := p.ProcessSamples(wave, testEpoch); err != nil {
			t.Fatalf("ProcessSamples() error = %v", err)
		}
		mags, _ := p.Spectrum()
		if i > 0 && mags[bin] < prev {
			t.Fatalf("iteration %d: magnitude fell from %d to %d", i, prev, mags[bin])
		}
		prev = mags[bin]
	}

	p.Reset()
	if mags, _ := p.Spectrum(); mags[bin] != 0 {
		t.Errorf("magnitude after Reset() = %d, want 0", mags[bin])
	}
}

func TestFFTProcessorFeedsSpectralFrame(t *testing.T) {
	p := newTestFFT(t, 0)
	// A 60 Hz tone lands in the bass band.
	if err := p.ProcessSamples(utils.GenerateSineWave(testFFTSize, testSampleRate, 60), testEpoch); err != nil {
		t.Fatalf("ProcessSamples() error = %v", err)
	}

	mags, td := p.Spectrum()
	frame, err := ComputeFrame(mags, td, testEpoch)
	if err != nil {
		t.Fatalf("ComputeFrame() error = %v", err)
	}
	if frame.Bass <= frame.Treble {
		t.Errorf("bass %.3f should dominate treble %.3f for a 60 Hz tone", frame.Bass, frame.Treble)
	}
}

func TestFFTProcessorErrors(t *testing.T) {
	p := newTestFFT(t, 0.8)
	if err := p.ProcessSamples(nil, testEpoch); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("ProcessSamples(nil) error = %v, want ErrInvalidInput", err)
	}
	if err := p.MagnitudesInto(make([]uint8, 3)); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("MagnitudesInto(short) error = %v, want ErrInvalidInput", err)
	}
	if err := p.MagnitudesInto(make([]uint8, p.BinCount())); err != nil {
		t.Errorf("MagnitudesInto() error = %v", err)
	}
}

func TestFrequencyForBin(t *testing.T) {
	p := newTestFFT(t, 0.8)
	tests := []struct {
		bin  int
		want float64
	}{
		{-1, 0},
		{0, 0},
		{1, testSampleRate / float64(testFFTSize)},
		{testFFTSize / 2, 0}, // Nyquist is not exposed
	}
	for _, tt := range tests {
		if got := p.FrequencyForBin(tt.bin); got != tt.want {
			t.Errorf("FrequencyForBin(%d) = %f, want %f", tt.bin, got, tt.want)
		}
	}
}

func TestParseWindowFunc(t *testing.T) {
	tests := []struct {
		name    string
		want    WindowFunc
		wantErr bool
	}{
		{"blackman", Blackman, false},
		{"HANN", Hann, false},
		{"hanning", Hann, false},
		{"Nuttall", Nuttall, false},
		{"", Blackman, false},
		{"triangle", Blackman, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseWindowFunc(tt.name)
			if got != tt.want || tt.wantErr != (err != nil) {
				t.Errorf("ParseWindowFunc(%q) = %v, %v", tt.name, got, err)
			}
		})
	}
}

func TestFFTHotPath(t *testing.T) {
	p := newTestFFT(t, 0.8)
	input := utils.GenerateComplexWave(testFFTSize/2, testSampleRate)

	// Warm-up call so first-use work does not count.
	_ = p.ProcessSamples(input, testEpoch)
	allocs := testing.AllocsPerRun(100, func() {
		_ = p.ProcessSamples(input, testEpoch)
	})

	if allocs > 0 {
		t.Errorf("Expected zero allocations in FFT ProcessSamples hot path, got %.1f", allocs)
	}
}

func BenchmarkProcessSamples(b *testing.B) {
	cfg := DefaultFFTConfig(testSampleRate)
	p, _ := NewFFTProcessor(cfg)
	input := utils.GenerateComplexWave(1024, testSampleRate)

	b.ReportAllocs()
	for b.Loop() {
		_ = p.ProcessSamples(input, testEpoch)
	}
}
