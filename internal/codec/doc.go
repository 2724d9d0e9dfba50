// Package codec implements the command wire protocol shared by the
// controller and the rovers.
//
// A command string is a sequence of single-letter tokens:
//
//	a####  move forward by #### centimetres (exactly four decimal digits)
//	d      turn right
//	e      turn left
//	i<id>  correlation marker carrying the trajectory id (always last)
//
// The controller appends the correlation marker when dispatching, and the
// rover echoes the executed prefix plus the recovered id in its result
// report. Both halves use this package, so the encoding and the reference
// decoding behaviour cannot drift apart.
package codec
