// Package backend defines the shared surface every frontend (headless,
// terminal, sdl2) implements to drive a dmg/machine.Machine.
package backend

import "github.com/embercore/gbdmg/dmg/machine"

// Backend owns presentation and input for a running machine. Run blocks
// until the backend decides to stop (frame budget reached, window closed,
// signal received).
type Backend interface {
	Run(m *machine.Machine) error
}
