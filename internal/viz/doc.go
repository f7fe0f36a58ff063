// Package viz renders plans, reports and trajectories in the terminal.
//
// Static output is produced by [RenderPlan], [RenderReport] and [Chart].
// [Browser] is a Bubble Tea model for stepping through the variables of a
// run:
//
//	up/down, k/j - select a variable
//	+/-          - taller or shorter chart
//	t            - cycle color themes
//	q            - quit
package viz
