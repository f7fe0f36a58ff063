package dynamo

import "fmt"

// Variable is a named time-series written by at most one equation.
type Variable struct {
	Name      string
	ShortName string
	Initial   float64

	hidden bool
	fn     func(t float64) float64
	buf    []float64
	margin int
}

// Option configures a Variable at construction.
type Option func(*Variable)

// Hidden marks an inner variable that plots and default targets skip.
func Hidden() Option {
	return func(v *Variable) { v.hidden = true }
}

// NewVariable creates a variable whose history margin and first sample hold
// the initial value. An empty short name defaults to the full name.
func NewVariable(name, short string, initial float64, opts ...Option) *Variable {
	if short == "" {
		short = name
	}
	v := &Variable{Name: name, ShortName: short, Initial: initial}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// NewSignal creates a variable whose every sample is f evaluated at the
// sample time. Signals have no writer block.
func NewSignal(name, short string, f func(t float64) float64) *Variable {
	v := NewVariable(name, short, 0)
	v.fn = f
	return v
}

func (v *Variable) IsSignal() bool { return v.fn != nil }
func (v *Variable) IsHidden() bool { return v.hidden }

// Function returns the generating function of a signal, nil otherwise.
func (v *Variable) Function() func(t float64) float64 { return v.fn }

func (v *Variable) String() string {
	if v.ShortName == v.Name {
		return v.Name
	}
	return fmt.Sprintf("%s (%s)", v.Name, v.ShortName)
}

// Init (re)allocates the buffer for steps+1 samples after a margin of past
// samples and fills it from the signal function or the initial value.
func (v *Variable) Init(steps int, dt float64, margin int) {
	v.margin = margin
	v.buf = make([]float64, steps+1+margin)
	if v.fn != nil {
		for i := range v.buf {
			v.buf[i] = v.fn(float64(i-margin) * dt)
		}
		v.Initial = v.buf[margin]
		return
	}
	for i := range v.buf {
		v.buf[i] = v.Initial
	}
}

// Values returns one sample per time point, the history margin excluded.
func (v *Variable) Values() []float64 {
	if v.buf == nil {
		return nil
	}
	return v.buf[v.margin:]
}

// Margin is the number of history samples stored before time zero.
func (v *Variable) Margin() int { return v.margin }

// At reads the raw buffer index it.
func (v *Variable) At(it int) float64 { return v.buf[it] }

// Set writes the raw buffer index it.
func (v *Variable) Set(it int, x float64) { v.buf[it] = x }

// Window returns the n samples ending at raw index it, oldest first.
func (v *Variable) Window(it, n int) []float64 { return v.buf[it-n+1 : it+1] }

// Past returns the n samples strictly before raw index it, oldest first.
func (v *Variable) Past(it, n int) []float64 { return v.buf[it-n : it] }
