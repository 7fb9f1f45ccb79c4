// SPDX-License-Identifier: MIT
package analysis

import (
	"math"
	"testing"
)

func TestEnergyHistoryEvictsOldest(t *testing.T) {
	h := newEnergyHistory(3)
	for _, v := range []float64{1, 2, 3, 4, 5} {
		h.push(v)
		if h.len() > h.capacity() {
			t.Fatalf("len %d exceeds capacity %d", h.len(), h.capacity())
		}
	}

	mean, variance := h.meanVariance()
	if mean != 4 {
		t.Errorf("mean = %f, want 4 (window holds 3, 4, 5)", mean)
	}
	if want := 2.0 / 3.0; math.Abs(variance-want) > 1e-12 {
		t.Errorf("variance = %f, want %f", variance, want)
	}
}

func TestEnergyHistoryDegenerateWindows(t *testing.T) {
	h := newEnergyHistory(43)
	if mean, variance := h.meanVariance(); mean != 0 || variance != 0 {
		t.Errorf("empty window = (%f, %f), want (0, 0)", mean, variance)
	}

	h.push(0.7)
	if mean, variance := h.meanVariance(); mean != 0.7 || variance != 0 {
		t.Errorf("single sample = (%f, %f), want (0.7, 0)", mean, variance)
	}

	h.reset()
	if h.len() != 0 {
		t.Errorf("len after reset = %d, want 0", h.len())
	}
}
