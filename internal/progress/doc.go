// Package progress turns raw job status payloads into a display percentage
// and step label.
//
// Resolve is pure: the same status and step list always produce the same
// Snapshot. Precedence, highest first: a COMPLETED status pins 100%, a
// numeric backend progress in [0,1] is scaled and rounded, a known step is
// placed by its position in the ordered step list, and anything else reports
// a 5% placeholder meaning "started but unmeasured".
//
// Clamp applies the no-regression policy used while one job is live.
package progress
