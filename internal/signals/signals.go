// Package signals provides closed-form input signals.
package signals

import (
	"math"

	"github.com/san-kum/blocksim/internal/dynamo"
)

// Step is initial before delay and amplitude+initial from delay on.
func Step(name, short string, amplitude, delay, initial float64) *dynamo.Variable {
	return dynamo.NewSignal(name, short, func(t float64) float64 {
		if t < delay {
			return initial
		}
		return amplitude + initial
	})
}

// Ramp is initial before delay and grows with slope afterwards.
func Ramp(name, short string, slope, delay, initial float64) *dynamo.Variable {
	return dynamo.NewSignal(name, short, func(t float64) float64 {
		if t < delay {
			return initial
		}
		return (t-delay)*slope + initial
	})
}

// Sinus is amplitude*sin(w*t+phase)+offset.
func Sinus(name, short string, amplitude, w, phase, offset float64) *dynamo.Variable {
	return dynamo.NewSignal(name, short, func(t float64) float64 {
		return amplitude*math.Sin(w*t+phase) + offset
	})
}

// Func wraps a user supplied function of time.
func Func(name, short string, f func(t float64) float64) *dynamo.Variable {
	return dynamo.NewSignal(name, short, f)
}
