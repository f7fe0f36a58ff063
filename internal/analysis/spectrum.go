package analysis

import (
	"errors"
	"fmt"
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

var ErrNonFinite = errors.New("analysis: series contains non finite samples")

type Spectrum struct {
	Freqs []float64
	Power []float64
}

// PowerSpectrum returns the amplitude of each frequency bin of values
// sampled every dt seconds. The mean is removed first so the DC bin only
// reflects numerical noise.
func PowerSpectrum(values []float64, dt float64) (*Spectrum, error) {
	if len(values) < 2 {
		return nil, fmt.Errorf("analysis: need at least 2 samples, got %d", len(values))
	}
	if dt <= 0 {
		return nil, fmt.Errorf("analysis: sample period must be positive, got %g", dt)
	}
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, ErrNonFinite
		}
	}

	centered := make([]float64, len(values))
	copy(centered, values)
	floats.AddConst(-stat.Mean(values, nil), centered)

	fft := fourier.NewFFT(len(centered))
	coeffs := fft.Coefficients(nil, centered)

	n := float64(len(centered))
	s := &Spectrum{
		Freqs: make([]float64, len(coeffs)),
		Power: make([]float64, len(coeffs)),
	}
	for i, c := range coeffs {
		s.Freqs[i] = fft.Freq(i) / dt
		s.Power[i] = cmplx.Abs(c) / n
	}
	return s, nil
}

// Dominant returns the frequency and amplitude of the strongest bin,
// ignoring DC.
func (s *Spectrum) Dominant() (freq, power float64) {
	if len(s.Power) < 2 {
		return 0, 0
	}
	i := floats.MaxIdx(s.Power[1:]) + 1
	return s.Freqs[i], s.Power[i]
}
