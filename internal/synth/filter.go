// Package synth renders plucked-string tones with a Karplus-Strong loop whose
// body filter coefficients are the quantities being tuned.
package synth

import (
	"fmt"
	"math"
)

// Filter is a direct-form FIR filter over a circular history buffer.
type Filter struct {
	coeffs []float64
	buf    []float64
	idx    int
}

// NewFilter creates a FIR filter. coeffs[k] weights the input k samples ago.
func NewFilter(coeffs []float64) *Filter {
	c := make([]float64, len(coeffs))
	copy(c, coeffs)
	return &Filter{
		coeffs: c,
		buf:    make([]float64, len(coeffs)),
	}
}

// Len returns the number of taps.
func (f *Filter) Len() int {
	return len(f.coeffs)
}

// Next pushes x into the filter and returns the next output sample.
func (f *Filter) Next(x float64) float64 {
	n := len(f.buf)
	if n == 0 {
		return 0
	}

	if f.idx == 0 {
		f.idx = n - 1
	} else {
		f.idx--
	}
	f.buf[f.idx] = x

	// buf[idx] is the newest sample, buf[idx+k mod n] is k samples old.
	var sum float64
	k := 0
	for i := f.idx; i < n; i++ {
		sum += f.coeffs[k] * f.buf[i]
		k++
	}
	for i := 0; i < f.idx; i++ {
		sum += f.coeffs[k] * f.buf[i]
		k++
	}
	return sum
}

// Reset clears the filter history.
func (f *Filter) Reset() {
	clear(f.buf)
	f.idx = 0
}

// LagrangeDelay builds a fractional delay of delay samples: floor(delay)-mid
// zero taps followed by order+1 Lagrange interpolation taps. mid is chosen so
// the interpolated part of the delay lies within half a sample of the
// interpolator's centre.
func LagrangeDelay(order int, delay float64) (*Filter, error) {
	if order < 1 {
		return nil, fmt.Errorf("lagrange order must be at least 1, got %d", order)
	}
	if math.IsNaN(delay) || math.IsInf(delay, 0) || delay < 0 {
		return nil, fmt.Errorf("invalid delay %v", delay)
	}

	whole := int(math.Floor(delay))
	frac := delay - float64(whole)

	mid := order / 2
	if order%2 == 0 && frac >= 0.5 {
		mid--
	}
	if whole < mid {
		return nil, fmt.Errorf("delay %.3f is shorter than half the interpolator order %d", delay, order)
	}

	zeros := whole - mid
	d := delay - float64(zeros)

	taps := make([]float64, zeros, zeros+order+1)
	for i := 0; i <= order; i++ {
		h := 1.0
		for k := 0; k <= order; k++ {
			if k != i {
				h *= (d - float64(k)) / float64(i-k)
			}
		}
		taps = append(taps, h)
	}

	return NewFilter(taps), nil
}
