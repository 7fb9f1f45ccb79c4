// SPDX-License-Identifier: MIT
package analysis

import "gonum.org/v1/gonum/stat"

// energyHistory is a fixed-capacity FIFO window of combined-energy values.
// Once full, each push overwrites the oldest entry. The live entries always
// occupy buf[:count], so statistics can run on the slice directly.
type energyHistory struct {
	buf   []float64
	next  int // Slot the next push writes to.
	count int // Number of live entries, never above len(buf).
}

func newEnergyHistory(capacity int) *energyHistory {
	return &energyHistory{buf: make([]float64, capacity)}
}

// push records v, evicting the oldest value when the window is full.
func (h *energyHistory) push(v float64) {
	h.buf[h.next] = v
	h.next = (h.next + 1) % len(h.buf)
	if h.count < len(h.buf) {
		h.count++
	}
}

// meanVariance returns the arithmetic mean and the population variance (mean
// squared deviation) of the window. An empty window yields zeros.
func (h *energyHistory) meanVariance() (mean, variance float64) {
	if h.count == 0 {
		return 0, 0
	}
	mean, variance = stat.PopMeanVariance(h.buf[:h.count], nil)
	if variance < 0 {
		// Compensated summation can leave a tiny negative residue.
		variance = 0
	}
	return mean, variance
}

func (h *energyHistory) len() int { return h.count }

func (h *energyHistory) capacity() int { return len(h.buf) }

func (h *energyHistory) reset() {
	clear(h.buf)
	h.next = 0
	h.count = 0
}
