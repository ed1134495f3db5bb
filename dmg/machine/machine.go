// Package machine wires the CPU, memory bus and PPU into a single runnable
// unit. It owns no presentation concern: backends pull frames and push
// input through it.
package machine

import (
	"github.com/embercore/gbdmg/dmg/cpu"
	"github.com/embercore/gbdmg/dmg/memory"
	ppu "github.com/embercore/gbdmg/dmg/ppu"
)

// Machine is the single owner of a running DMG's core components and drives
// them one CPU instruction at a time.
type Machine struct {
	CPU *cpu.CPU
	MMU *memory.MMU
	PPU *ppu.GPU

	frameCount       uint64
	instructionCount uint64
}

// New creates a machine around the given cartridge and resets all components
// to their post-boot-ROM state.
func New(cart *memory.Cartridge) *Machine {
	mmu := memory.NewWithCartridge(cart)
	m := &Machine{
		MMU: mmu,
		PPU: ppu.NewGpu(mmu),
	}
	m.CPU = cpu.New(mmu)
	return m
}

// NewWithFile loads a ROM file from disk and returns a machine ready to run.
func NewWithFile(path string) (*Machine, error) {
	cart, err := memory.LoadCartridgeFile(path)
	if err != nil {
		return nil, err
	}
	return New(cart), nil
}

// Step executes a single CPU instruction and ticks the memory bus and PPU by
// the number of cycles it took. Returns the cycle count consumed.
func (m *Machine) Step() int {
	cycles := m.CPU.Step()
	m.MMU.Tick(cycles)
	m.PPU.Tick(cycles)
	m.instructionCount++
	return cycles
}

// RunUntilFrame steps the machine until the PPU completes a full frame
// (scanline wraps back to 0 at the end of VBlank).
func (m *Machine) RunUntilFrame() {
	startLine := m.PPU.Line()
	inVBlank := startLine >= ppu.VisibleLines

	for {
		m.Step()

		line := m.PPU.Line()
		if inVBlank {
			if line < ppu.VisibleLines {
				break
			}
		} else if line >= ppu.VisibleLines {
			inVBlank = true
		}
	}

	m.frameCount++
}

// GetCurrentFrame returns the frame buffer the PPU last rendered into.
func (m *Machine) GetCurrentFrame() *ppu.FrameBuffer {
	return m.PPU.GetFrameBuffer()
}

// FrameCount reports how many complete frames RunUntilFrame has produced.
func (m *Machine) FrameCount() uint64 {
	return m.frameCount
}

// InstructionCount reports how many CPU instructions Step has executed.
func (m *Machine) InstructionCount() uint64 {
	return m.instructionCount
}

// HandleKeyPress forwards a joypad key press to the memory bus.
func (m *Machine) HandleKeyPress(key memory.JoypadKey) {
	m.MMU.HandleKeyPress(key)
}

// HandleKeyRelease forwards a joypad key release to the memory bus.
func (m *Machine) HandleKeyRelease(key memory.JoypadKey) {
	m.MMU.HandleKeyRelease(key)
}
