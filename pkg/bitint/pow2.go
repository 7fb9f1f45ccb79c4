// SPDX-License-Identifier: MIT
//
// Package bitint holds the power-of-two helpers used to size FFT windows.
// Every function is constant time and allocation free.
package bitint

import "math/bits"

// NextPowerOfTwo returns the smallest power of two >= n, and 1 for n <= 0.
// Subtracting one first keeps exact powers of two unchanged: 8-1 = 0b0111
// has bit length 3, and 1<<3 = 8.
func NextPowerOfTwo(n int) int {
	if n <= 1 {
		return 1
	}
	return 1 << bits.Len(uint(n-1))
}

// IsPowerOfTwo reports whether n is a positive power of two. A power of two
// has a single bit set, so clearing its lowest set bit leaves zero.
func IsPowerOfTwo(n int) bool {
	return n > 0 && n&(n-1) == 0
}
