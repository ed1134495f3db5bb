package sdl2

import (
	"github.com/veandco/go-sdl2/sdl"

	"github.com/embercore/gbdmg/dmg/machine"
	"github.com/embercore/gbdmg/dmg/memory"
	"github.com/embercore/gbdmg/dmg/timing"
)

func keyMapping(sym sdl.Keycode) (memory.JoypadKey, bool) {
	switch sym {
	case sdl.K_RIGHT:
		return memory.JoypadRight, true
	case sdl.K_LEFT:
		return memory.JoypadLeft, true
	case sdl.K_UP:
		return memory.JoypadUp, true
	case sdl.K_DOWN:
		return memory.JoypadDown, true
	case sdl.K_z:
		return memory.JoypadA, true
	case sdl.K_x:
		return memory.JoypadB, true
	case sdl.K_RSHIFT, sdl.K_LSHIFT:
		return memory.JoypadSelect, true
	case sdl.K_RETURN:
		return memory.JoypadStart, true
	}
	return 0, false
}

// Backend drives the machine in real time, presenting each frame in a
// native SDL2 window and forwarding keyboard events to the joypad.
type Backend struct {
	screen *Screen
}

// New opens the SDL2 window backing this backend.
func New() (*Backend, error) {
	screen, err := NewScreen()
	if err != nil {
		return nil, err
	}
	return &Backend{screen: screen}, nil
}

// Run steps the machine a frame at a time, presenting each frame and
// applying keyboard input to the joypad, until the window is closed or
// Escape is pressed.
func (b *Backend) Run(m *machine.Machine) error {
	defer b.screen.Destroy()

	limiter := timing.NewAdaptiveLimiter()

	for {
		m.RunUntilFrame()

		if err := b.screen.Draw(m.GetCurrentFrame().ToSlice()); err != nil {
			return err
		}

		limiter.WaitForNextFrame()

		for event := sdl.PollEvent(); event != nil; event = sdl.PollEvent() {
			switch ev := event.(type) {
			case *sdl.QuitEvent:
				return nil
			case *sdl.KeyboardEvent:
				key, ok := keyMapping(ev.Keysym.Sym)
				if !ok {
					if ev.Keysym.Sym == sdl.K_ESCAPE && ev.State == sdl.PRESSED {
						return nil
					}
					continue
				}
				if ev.State == sdl.PRESSED {
					m.HandleKeyPress(key)
				} else {
					m.HandleKeyRelease(key)
				}
			}
		}
	}
}
