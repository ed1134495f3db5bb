// Package terminal renders the emulator's frame buffer to a text terminal
// using block characters, driven by tcell.
package terminal

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gdamore/tcell/v2"

	"github.com/embercore/gbdmg/dmg/machine"
	"github.com/embercore/gbdmg/dmg/memory"
	ppu "github.com/embercore/gbdmg/dmg/ppu"
	"github.com/embercore/gbdmg/dmg/timing"
)

var shadeChars = []rune{'█', '▓', '▒', '░'}

// Backend drives the machine in real time, presenting each frame as a grid
// of block characters and translating keyboard input to joypad presses.
type Backend struct {
	screen  tcell.Screen
	running bool
}

// New creates and initializes the terminal screen.
func New() (*Backend, error) {
	screen, err := tcell.NewScreen()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize terminal: %w", err)
	}
	if err := screen.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize terminal: %w", err)
	}

	return &Backend{screen: screen, running: true}, nil
}

// Run steps the machine once per display frame at the Game Boy's native
// ~59.7Hz refresh rate until a quit signal or Escape arrives.
func (b *Backend) Run(m *machine.Machine) error {
	defer b.screen.Fini()

	b.screen.SetStyle(tcell.StyleDefault.Background(tcell.ColorBlack).Foreground(tcell.ColorWhite))
	b.screen.Clear()

	go b.handleInput(m)

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-signals
		b.running = false
	}()

	limiter := timing.NewAdaptiveLimiter()

	for b.running {
		m.RunUntilFrame()
		b.render(m.GetCurrentFrame())
		b.screen.Show()
		limiter.WaitForNextFrame()
	}

	return nil
}

func (b *Backend) handleInput(m *machine.Machine) {
	for b.running {
		switch ev := b.screen.PollEvent().(type) {
		case *tcell.EventKey:
			if key, ok := keyMapping(ev); ok {
				m.HandleKeyPress(key)
			} else if ev.Key() == tcell.KeyEscape || ev.Key() == tcell.KeyCtrlC {
				b.running = false
			}
		case *tcell.EventResize:
			b.screen.Sync()
		}
	}
}

func keyMapping(ev *tcell.EventKey) (memory.JoypadKey, bool) {
	switch ev.Key() {
	case tcell.KeyEnter:
		return memory.JoypadStart, true
	case tcell.KeyRight:
		return memory.JoypadRight, true
	case tcell.KeyLeft:
		return memory.JoypadLeft, true
	case tcell.KeyUp:
		return memory.JoypadUp, true
	case tcell.KeyDown:
		return memory.JoypadDown, true
	case tcell.KeyRune:
		switch ev.Rune() {
		case 'a':
			return memory.JoypadA, true
		case 's':
			return memory.JoypadB, true
		case 'q':
			return memory.JoypadSelect, true
		}
	}
	return 0, false
}

func (b *Backend) render(fb *ppu.FrameBuffer) {
	b.screen.Clear()

	for y := uint(0); y < ppu.FramebufferHeight; y++ {
		for x := uint(0); x < ppu.FramebufferWidth; x++ {
			pixel := ppu.GBColor(fb.GetPixel(x, y))
			style := tcell.StyleDefault.Foreground(tcell.ColorWhite)
			b.screen.SetContent(int(x)*2, int(y), shadeFor(pixel), nil, style)
			b.screen.SetContent(int(x)*2+1, int(y), shadeFor(pixel), nil, style)
		}
	}
}

func shadeFor(c ppu.GBColor) rune {
	switch c {
	case ppu.BlackColor:
		return shadeChars[0]
	case ppu.DarkGreyColor:
		return shadeChars[1]
	case ppu.LightGreyColor:
		return shadeChars[2]
	default:
		return shadeChars[3]
	}
}
