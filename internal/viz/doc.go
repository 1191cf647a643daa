// Package viz draws a running simulation in the terminal.
//
// The watch view is a Bubble Tea program fed by an mpm.Observer: every save
// point sends the particle positions and the current metrics, which are
// drawn as a Braille scatter of one projection plane next to a kinetic
// energy chart and the run statistics.
//
// # Key Bindings
//
//	P - Cycle projection plane (x-z, y-z, x-y)
//	? - Show help overlay
//	Q - Stop the run and quit
package viz
