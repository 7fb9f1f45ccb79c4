// SPDX-License-Identifier: MIT
package analysis

import (
	"fmt"
	"math"
	"time"

	"beatsense/internal/log"
)

// Beat detector defaults. A 43 entry history is roughly one second of frames
// at a 43 Hz tick rate.
const (
	DefaultHistorySize = 43
	DefaultThreshold   = 1.3
	DefaultMinInterval = 200 * time.Millisecond
	DefaultTempoWindow = 5 * time.Second
)

// Weights of the combined-energy scalar.
const (
	bassWeight   = 0.7
	volumeWeight = 0.3
)

// BeatConfig tunes a BeatDetector.
type BeatConfig struct {
	HistorySize int           `yaml:"history_size"` // Capacity of the rolling energy window.
	Threshold   float64       `yaml:"threshold"`    // Energy must exceed mean*Threshold to fire.
	MinInterval time.Duration `yaml:"min_interval"` // Debounce between fired beats.
	TempoWindow time.Duration `yaml:"tempo_window"` // Beats older than this are pruned.
}

// DefaultBeatConfig returns the stock detector tuning.
func DefaultBeatConfig() BeatConfig {
	return BeatConfig{
		HistorySize: DefaultHistorySize,
		Threshold:   DefaultThreshold,
		MinInterval: DefaultMinInterval,
		TempoWindow: DefaultTempoWindow,
	}
}

// Validate reports ErrInvalidInput for any non-positive setting.
func (c BeatConfig) Validate() error {
	switch {
	case c.HistorySize <= 0:
		return fmt.Errorf("beat config: history size must be positive, got %d: %w", c.HistorySize, ErrInvalidInput)
	case !(c.Threshold > 0) || math.IsInf(c.Threshold, 0):
		return fmt.Errorf("beat config: threshold must be positive and finite, got %v: %w", c.Threshold, ErrInvalidInput)
	case c.MinInterval <= 0:
		return fmt.Errorf("beat config: min interval must be positive, got %v: %w", c.MinInterval, ErrInvalidInput)
	case c.TempoWindow <= 0:
		return fmt.Errorf("beat config: tempo window must be positive, got %v: %w", c.TempoWindow, ErrInvalidInput)
	}
	return nil
}

// BeatEvent is the detector's verdict for one frame.
type BeatEvent struct {
	IsBeat     bool      `json:"isBeat"`
	Confidence float64   `json:"confidence"` // min(variance*10, 1)
	BPM        int       `json:"bpm"`        // 0 while fewer than two beats are known.
	Energy     float64   `json:"energy"`     // Combined energy of this frame.
	Timestamp  time.Time `json:"timestamp"`
}

// BeatDetector turns a chronological stream of SpectralFrames into BeatEvents.
// Each instance owns its histories; run one detector per audio stream. It is
// not safe for concurrent use.
type BeatDetector struct {
	cfg      BeatConfig
	energy   *energyHistory
	beats    []time.Time // Fired beat timestamps within the tempo window, oldest first.
	lastBeat time.Time   // Zero until the first beat fires.
}

// NewBeatDetector validates cfg and returns an empty detector.
func NewBeatDetector(cfg BeatConfig) (*BeatDetector, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	log.Debugf("Analysis: Initializing BeatDetector (History: %d, Threshold: %.2f, MinInterval: %v, TempoWindow: %v)",
		cfg.HistorySize, cfg.Threshold, cfg.MinInterval, cfg.TempoWindow)

	// At most one beat per MinInterval survives pruning.
	beatCap := int(cfg.TempoWindow/cfg.MinInterval) + 1
	return &BeatDetector{
		cfg:    cfg,
		energy: newEnergyHistory(cfg.HistorySize),
		beats:  make([]time.Time, 0, beatCap),
	}, nil
}

// Process folds one frame into the rolling statistics and reports whether it
// is a beat. Frames must arrive in chronological order.
func (d *BeatDetector) Process(frame SpectralFrame) BeatEvent {
	ts := frame.Timestamp
	energy := bassWeight*frame.Bass + volumeWeight*frame.Volume

	d.energy.push(energy)
	avg, variance := d.energy.meanVariance()
	confidence := math.Min(variance*10, 1)

	isBeat := energy > avg*d.cfg.Threshold && d.debounced(ts)
	if isBeat {
		d.beats = append(d.beats, ts)
		d.pruneBeats(ts)
		d.lastBeat = ts
	}

	return BeatEvent{
		IsBeat:     isBeat,
		Confidence: confidence,
		BPM:        d.bpm(),
		Energy:     energy,
		Timestamp:  ts,
	}
}

// debounced reports whether enough time has passed since the last beat.
func (d *BeatDetector) debounced(ts time.Time) bool {
	return d.lastBeat.IsZero() || ts.Sub(d.lastBeat) > d.cfg.MinInterval
}

// pruneBeats drops beats at least TempoWindow older than now, in place.
func (d *BeatDetector) pruneBeats(now time.Time) {
	kept := d.beats[:0]
	for _, t := range d.beats {
		if now.Sub(t) < d.cfg.TempoWindow {
			kept = append(kept, t)
		}
	}
	d.beats = kept
}

// bpm averages consecutive inter-beat intervals.
func (d *BeatDetector) bpm() int {
	if len(d.beats) < 2 {
		return 0
	}
	span := d.beats[len(d.beats)-1].Sub(d.beats[0])
	avgMs := float64(span) / float64(time.Millisecond) / float64(len(d.beats)-1)
	if avgMs <= 0 {
		return 0
	}
	return int(math.Round(60000 / avgMs))
}

// Reset clears the energy history, the beat history and the last beat time.
// Call it whenever a new audio source is attached.
func (d *BeatDetector) Reset() {
	d.energy.reset()
	d.beats = d.beats[:0]
	d.lastBeat = time.Time{}
	log.Debugf("Analysis: BeatDetector reset")
}

// Config returns the detector's tuning.
func (d *BeatDetector) Config() BeatConfig { return d.cfg }

// HistoryLen returns the number of energy samples currently held.
func (d *BeatDetector) HistoryLen() int { return d.energy.len() }

// BeatCount returns the number of beats inside the tempo window.
func (d *BeatDetector) BeatCount() int { return len(d.beats) }
