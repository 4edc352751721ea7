package synth

import (
	"errors"
	"fmt"
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"
)

const (
	// DefaultSampleRate is the rate used when none is given.
	DefaultSampleRate = 44100.0

	// DefaultFrequency is the open G string the reference was recorded from.
	DefaultFrequency = 196.0

	bodyGain   = 0.999
	bodyEps    = 1e-8
	outputEps  = 1e-9
	delayOrder = 1
)

// ErrEmptyBody is returned when no body coefficients are given.
var ErrEmptyBody = errors.New("synth: body filter has no coefficients")

// Normalize scales body coefficients so the peak magnitude of their
// frequency response is just below one, which keeps the string loop stable.
func Normalize(body []float64) []float64 {
	if len(body) == 0 {
		return nil
	}

	fft := fourier.NewFFT(len(body))
	spectrum := fft.Coefficients(nil, body)

	var peak float64
	for _, c := range spectrum {
		peak = math.Max(peak, cmplx.Abs(c))
	}

	out := make([]float64, len(body))
	scale := bodyGain / (peak + bodyEps)
	for i, v := range body {
		out[i] = v * scale
	}
	return out
}

// Pluck renders n samples of a string tuned to freq Hz whose loop filter is
// the normalized body. The loop delay is shortened by half the body length
// to compensate for the body filter's group delay. The result is
// peak-normalized to 1.
func Pluck(body []float64, freq float64, n int, sampleRate float64) ([]float64, error) {
	if len(body) == 0 {
		return nil, ErrEmptyBody
	}
	if freq <= 0 || sampleRate <= 0 {
		return nil, fmt.Errorf("synth: frequency and sample rate must be positive (freq=%v, rate=%v)", freq, sampleRate)
	}
	if n < 0 {
		return nil, fmt.Errorf("synth: negative length %d", n)
	}

	correction := float64(len(body) / 2)
	delay, err := LagrangeDelay(delayOrder, sampleRate/freq-correction)
	if err != nil {
		return nil, fmt.Errorf("synth: loop delay: %w", err)
	}
	h := NewFilter(Normalize(body))

	y := make([]float64, n)
	x := 1.0
	var peak float64
	for i := range y {
		y[i] = h.Next(x)
		x = delay.Next(y[i])
		peak = math.Max(peak, math.Abs(y[i]))
	}

	scale := 1 / (peak + outputEps)
	for i := range y {
		y[i] *= scale
	}
	return y, nil
}
