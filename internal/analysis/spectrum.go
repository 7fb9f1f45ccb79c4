// SPDX-License-Identifier: MIT
package analysis

import (
	"fmt"
	"time"
)

// maxMagnitude is the largest value a byte magnitude can take. Every band and
// the overall volume are divided by it so they land in [0, 1].
const maxMagnitude = 255.0

// Band boundaries expressed as fractions of the spectrum length.
const (
	bassFraction = 0.1 // bass covers [0, 10%)
	midFraction  = 0.5 // mid covers [10%, 50%), treble the rest
)

// SpectralFrame summarizes one analysis tick. It is produced once per tick and
// owned by the caller of the tick.
type SpectralFrame struct {
	Magnitudes []uint8   `json:"-"`         // Frequency-ascending byte magnitudes, length N.
	TimeDomain []uint8   `json:"-"`         // Optional time-domain bytes, length N or nil.
	Volume     float64   `json:"volume"`    // Mean magnitude over the whole spectrum, [0,1].
	Bass       float64   `json:"bass"`      // Mean over [0, bassEnd), [0,1].
	Mid        float64   `json:"mid"`       // Mean over [bassEnd, midEnd), [0,1].
	Treble     float64   `json:"treble"`    // Mean over [midEnd, N), [0,1].
	Timestamp  time.Time `json:"timestamp"` // Monotonic capture time.
}

// BandBounds returns the exclusive end indices of the bass and mid bands for a
// spectrum of n bins. The three ranges [0,bassEnd), [bassEnd,midEnd) and
// [midEnd,n) are contiguous, disjoint and cover every bin.
func BandBounds(n int) (bassEnd, midEnd int) {
	if n <= 0 {
		return 0, 0
	}
	// Integer arithmetic gives floor(0.1*n) and floor(0.5*n) without float rounding surprises.
	return n / 10, n / 2
}

// ComputeFrame builds a SpectralFrame from one tick of byte magnitudes and an
// optional time-domain buffer of the same length. Both inputs are copied.
//
// A zero-length spectrum, or a time-domain buffer whose length differs from
// the spectrum, is rejected with ErrInvalidInput. A band that is empty because
// the spectrum is very short reports 0.
func ComputeFrame(magnitudes, timeDomain []uint8, ts time.Time) (SpectralFrame, error) {
	n := len(magnitudes)
	if n == 0 {
		return SpectralFrame{}, fmt.Errorf("spectral frame: empty magnitude buffer: %w", ErrInvalidInput)
	}
	if timeDomain != nil && len(timeDomain) != n {
		return SpectralFrame{}, fmt.Errorf("spectral frame: time-domain length %d does not match spectrum length %d: %w",
			len(timeDomain), n, ErrInvalidInput)
	}

	bassEnd, midEnd := BandBounds(n)

	frame := SpectralFrame{
		Magnitudes: append([]uint8(nil), magnitudes...),
		Volume:     bandMean(magnitudes),
		Bass:       bandMean(magnitudes[:bassEnd]),
		Mid:        bandMean(magnitudes[bassEnd:midEnd]),
		Treble:     bandMean(magnitudes[midEnd:]),
		Timestamp:  ts,
	}
	if timeDomain != nil {
		frame.TimeDomain = append([]uint8(nil), timeDomain...)
	}
	return frame, nil
}

// bandMean returns the normalized mean of a slice of byte magnitudes, or 0 for
// an empty slice.
func bandMean(bins []uint8) float64 {
	if len(bins) == 0 {
		return 0
	}
	var sum int
	for _, v := range bins {
		sum += int(v)
	}
	return float64(sum) / float64(len(bins)) / maxMagnitude
}

// CombinedEnergy is the beat-detection input scalar: a weighted blend of bass
// and overall volume.
func (f SpectralFrame) CombinedEnergy() float64 {
	return 0.7*f.Bass + 0.3*f.Volume
}
