// Package headless drives a machine for a fixed number of frames with no
// presentation output, for batch processing and CI runs.
package headless

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/embercore/gbdmg/dmg/machine"
	ppu "github.com/embercore/gbdmg/dmg/ppu"
	"github.com/embercore/gbdmg/dmg/timing"
)

// shade characters for ASCII frame snapshots, darkest to lightest.
var shadeChars = []rune{'█', '▓', '▒', '░'}

// Backend runs the machine for a fixed frame count, optionally dumping a
// text snapshot of every Nth frame to disk.
type Backend struct {
	Frames           int
	SaveDir          string
	SnapshotInterval int // 0 disables snapshotting
	ROMName          string
}

// Run steps the machine one frame at a time until Frames frames have been
// produced, as fast as the host allows.
func (b *Backend) Run(m *machine.Machine) error {
	if b.Frames <= 0 {
		return fmt.Errorf("headless backend requires a positive frame count")
	}

	if b.SnapshotInterval > 0 && b.SaveDir != "" {
		if err := os.MkdirAll(b.SaveDir, 0755); err != nil {
			return fmt.Errorf("failed to create snapshot directory: %w", err)
		}
	}

	limiter := timing.NewNoOpLimiter()

	for i := 1; i <= b.Frames; i++ {
		m.RunUntilFrame()
		limiter.WaitForNextFrame()

		if b.SnapshotInterval > 0 && i%b.SnapshotInterval == 0 {
			path := filepath.Join(b.SaveDir, fmt.Sprintf("%s_frame_%d.txt", b.ROMName, i))
			if err := saveSnapshot(m.GetCurrentFrame(), path); err != nil {
				slog.Error("failed to save snapshot", "frame", i, "path", path, "error", err)
			} else {
				slog.Info("saved frame snapshot", "frame", i, "path", path)
			}
		}

		if i%10 == 0 {
			slog.Info("frame progress", "completed", i, "total", b.Frames)
		}
	}

	slog.Info("headless execution completed",
		"frames", m.FrameCount(), "instructions", m.InstructionCount())
	return nil
}

// saveSnapshot writes an ASCII-art rendering of a frame buffer to path.
func saveSnapshot(fb *ppu.FrameBuffer, path string) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	fmt.Fprintf(file, "# Game Boy frame snapshot (%dx%d)\n", ppu.FramebufferWidth, ppu.FramebufferHeight)
	fmt.Fprintf(file, "# Legend: %c=black %c=dark %c=light %c=white\n#\n",
		shadeChars[0], shadeChars[1], shadeChars[2], shadeChars[3])

	for y := uint(0); y < ppu.FramebufferHeight; y++ {
		for x := uint(0); x < ppu.FramebufferWidth; x++ {
			fmt.Fprintf(file, "%c", shadeFor(fb.GetPixel(x, y)))
		}
		fmt.Fprintln(file)
	}

	return nil
}

func shadeFor(pixel uint32) rune {
	switch ppu.GBColor(pixel) {
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
