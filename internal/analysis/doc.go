// Package analysis post-processes simulated trajectories.
//
//   - [PowerSpectrum]: one sided amplitude spectrum of a uniformly sampled
//     series, computed with gonum's real FFT
//   - [Spectrum.Dominant]: strongest non DC component
//   - [Settle]: final value and settling time of a step response
package analysis
