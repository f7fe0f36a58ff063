// Package discretize turns a Laplace-domain transfer function into a linear
// recurrence over sampled history using backward finite differences.
//
// Each power p^i of the Laplace variable becomes the i-th backward
// difference of the sampled signal: the sample j steps back is weighted by
// (-1)^j * C(i, j) / dt^i.
package discretize

import (
	"fmt"
	"math"

	"github.com/san-kum/blocksim/internal/dynamo"
)

// TransferFunction is H(p) = sum(Num[i] p^i) / sum(Den[j] p^j).
type TransferFunction struct {
	Num []float64
	Den []float64

	cache map[float64]Recurrence
}

// Recurrence holds the coefficients solving sum(A u) = sum(B y) for the
// current output. In multiplies the input window (current sample last), Out
// multiplies strictly past outputs. Both are oldest first.
type Recurrence struct {
	In  []float64
	Out []float64
}

func New(num, den []float64) (*TransferFunction, error) {
	if len(num) == 0 || len(den) == 0 {
		return nil, fmt.Errorf("%w: empty coefficient vector (num=%v, den=%v)", dynamo.ErrNonCausal, num, den)
	}
	zero := true
	for _, b := range den {
		if b != 0 {
			zero = false
			break
		}
	}
	if zero {
		return nil, fmt.Errorf("%w: zero denominator %v", dynamo.ErrNonCausal, den)
	}
	return &TransferFunction{
		Num:   append([]float64(nil), num...),
		Den:   append([]float64(nil), den...),
		cache: make(map[float64]Recurrence),
	}, nil
}

// InputOrder is the number of input samples the recurrence reads.
func (tf *TransferFunction) InputOrder() int { return len(tf.Num) }

// OutputOrder is the number of past output samples the recurrence reads.
func (tf *TransferFunction) OutputOrder() int { return len(tf.Den) - 1 }

// Coefficients returns the recurrence for step dt, computing it on first use.
func (tf *TransferFunction) Coefficients(dt float64) (Recurrence, error) {
	if r, ok := tf.cache[dt]; ok {
		return r, nil
	}
	if dt <= 0 || math.IsNaN(dt) || math.IsInf(dt, 0) {
		return Recurrence{}, fmt.Errorf("%w: step size %g", dynamo.ErrInvalidConfig, dt)
	}

	a := Differences(tf.Num, dt)
	b := Differences(tf.Den, dt)
	if b[0] == 0 {
		return Recurrence{}, fmt.Errorf("%w: current output coefficient vanishes for dt=%g (den=%v)",
			dynamo.ErrNonCausal, dt, tf.Den)
	}

	r := Recurrence{
		In:  make([]float64, len(a)),
		Out: make([]float64, len(b)-1),
	}
	for j, x := range a {
		r.In[len(a)-1-j] = x / b[0]
	}
	for j, x := range b[1:] {
		r.Out[len(b)-2-j] = -x / b[0]
	}
	tf.cache[dt] = r
	return r, nil
}

// Step evaluates the recurrence given the input window (len InputOrder) and
// the past outputs (len OutputOrder), both oldest first.
func (r Recurrence) Step(in, past []float64) float64 {
	y := 0.0
	for i, c := range r.In {
		y += c * in[i]
	}
	for i, c := range r.Out {
		y += c * past[i]
	}
	return y
}

// Differences sums the backward-difference expansion of every term of the
// polynomial coeffs. Entry j weights the sample j steps back.
func Differences(coeffs []float64, dt float64) []float64 {
	out := make([]float64, len(coeffs))
	for i, c := range coeffs {
		if c == 0 {
			continue
		}
		scale := c / math.Pow(dt, float64(i))
		for j := 0; j <= i; j++ {
			w := binomial(i, j) * scale
			if j%2 == 1 {
				w = -w
			}
			out[j] += w
		}
	}
	return out
}

func binomial(n, k int) float64 {
	if k > n-k {
		k = n - k
	}
	r := 1.0
	for i := 1; i <= k; i++ {
		r = r * float64(n-k+i) / float64(i)
	}
	return r
}
