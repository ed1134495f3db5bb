// Package sdl2 renders the emulator's frame buffer to a native window using
// SDL2, for use outside headless/CI contexts.
package sdl2

import (
	"unsafe"

	"github.com/veandco/go-sdl2/sdl"
	ppu "github.com/embercore/gbdmg/dmg/ppu"
)

const renderScale = 3

// Screen owns the SDL window and renderer used to present frames.
type Screen struct {
	window   *sdl.Window
	renderer *sdl.Renderer
}

// NewScreen creates and shows an SDL window sized for the DMG's 160x144
// screen, scaled up by renderScale.
func NewScreen() (*Screen, error) {
	if err := sdl.Init(sdl.INIT_VIDEO); err != nil {
		return nil, err
	}

	s := &Screen{}

	window, err := sdl.CreateWindow("gbdmg",
		sdl.WINDOWPOS_UNDEFINED, sdl.WINDOWPOS_UNDEFINED,
		ppu.FramebufferWidth*renderScale,
		ppu.FramebufferHeight*renderScale,
		sdl.WINDOW_SHOWN|sdl.WINDOW_RESIZABLE)
	if err != nil {
		return nil, err
	}
	s.window = window

	renderer, err := sdl.CreateRenderer(window, -1, sdl.RENDERER_ACCELERATED)
	if err != nil {
		window.Destroy()
		return nil, err
	}
	s.renderer = renderer

	return s, nil
}

// Draw blits a full ARGB frame (FramebufferWidth*FramebufferHeight pixels)
// to the window.
func (s *Screen) Draw(buffer []uint32) error {
	surface, err := sdl.CreateRGBSurfaceFrom(
		unsafe.Pointer(&buffer[0]),
		ppu.FramebufferWidth,
		ppu.FramebufferHeight,
		32,
		4*ppu.FramebufferWidth,
		0x000000FF,
		0x0000FF00,
		0x00FF0000,
		0xFF000000)
	if err != nil {
		return err
	}
	defer surface.Free()

	surface.Lock()
	s.renderer.Clear()
	tex, err := s.renderer.CreateTextureFromSurface(surface)
	surface.Unlock()
	if err != nil {
		return err
	}
	defer tex.Destroy()

	s.renderer.Copy(tex, nil, nil)
	s.renderer.Present()
	return nil
}

// Destroy releases the window and renderer.
func (s *Screen) Destroy() {
	s.renderer.Destroy()
	s.window.Destroy()
	sdl.Quit()
}
