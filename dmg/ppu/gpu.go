package video

import (
	"github.com/embercore/gbdmg/dmg/addr"
	"github.com/embercore/gbdmg/dmg/bit"
	"github.com/embercore/gbdmg/dmg/memory"
)

// GpuMode is one of the four PPU states a scanline cycles through.
type GpuMode int

const (
	oamReadMode  GpuMode = iota // Mode 2
	vramReadMode                // Mode 3
	hblankMode                  // Mode 0
	vblankMode                  // Mode 1
)

const (
	oamScanCycles  = 80  // fixed: OAM scan always takes 80 dots
	scanlineCycles = 456 // total dots per scanline, regardless of mode split
	visibleLines   = 144
	totalLines     = 154
)

// VisibleLines is the number of scanlines the LCD actually draws (0-143);
// lines 144-153 are VBlank.
const VisibleLines = visibleLines

// Bus is the memory surface the GPU needs: VRAM/OAM/register reads and
// writes plus interrupt requests and PPU-mode notification for the
// VRAM/OAM access gating MMU enforces during Modes 2/3.
type Bus interface {
	Read(address uint16) byte
	Write(address uint16, value byte)
	RequestInterrupt(interrupt addr.Interrupt)
	SetPPUMode(mode memory.PPUMode)
	SetLY(line byte)
}

// pixelFIFO is a small ring buffer feeding resolved background/window color
// indices to the scanline compositor, one tile's worth (8 pixels) at a time.
type pixelFIFO struct {
	buf   [16]byte
	head  int
	count int
}

func (f *pixelFIFO) clear() {
	f.head = 0
	f.count = 0
}

func (f *pixelFIFO) push(colorIndex byte) {
	f.buf[(f.head+f.count)%len(f.buf)] = colorIndex
	f.count++
}

func (f *pixelFIFO) pop() byte {
	v := f.buf[f.head]
	f.head = (f.head + 1) % len(f.buf)
	f.count--
	return v
}

func (f *pixelFIFO) len() int {
	return f.count
}

type GPU struct {
	bus         Bus
	framebuffer *FrameBuffer
	oam         *OAM

	line         int
	pixelCounter int
	mode         GpuMode
	cycles       int
	mode3Cycles  int // dots Mode 3 takes this line, set when entering it

	bgFIFO      pixelFIFO
	bgTileCol   int // next background tile column to fetch, in tile space
	bgDiscard   int // SCX%8 pixels to drop from the first tile of the line

	statLine bool // combined STAT interrupt line from the previous Tick, for edge detection
	lcdOn    bool // LCDC bit 7 as of the previous Tick, for edge detection
}

func NewGpu(bus Bus) *GPU {
	return &GPU{
		bus:         bus,
		framebuffer: NewFrameBuffer(),
		oam:         NewOAM(bus),
		mode:        oamReadMode,
		lcdOn:       true, // boot LCDC (0x91) has bit 7 set
	}
}

// Line returns the current scanline (0-153).
func (g *GPU) Line() int {
	return g.line
}

// GetFrameBuffer returns the frame buffer the GPU renders into.
func (g *GPU) GetFrameBuffer() *FrameBuffer {
	return g.framebuffer
}

// Tick advances the PPU by the given number of T-cycles.
func (g *GPU) Tick(cycles int) {
	on := g.readLCDCVariable(lcdDisplayEnable) != 0
	if on != g.lcdOn {
		g.lcdOn = on
		g.line = 0
		g.cycles = 0
		g.bus.SetLY(0)
		if on {
			// Re-enabling LCD restarts rendering at line 0, mode 2.
			g.enterMode(oamReadMode)
		} else {
			// Disabling LCD forces HBlank of line 0, LY=0.
			g.enterMode(hblankMode)
		}
		g.updateStatInterrupt()
	}

	if !on {
		return
	}

	g.cycles += cycles

	switch g.mode {
	case oamReadMode:
		if g.cycles >= oamScanCycles {
			g.cycles -= oamScanCycles
			g.enterMode(vramReadMode)
		}
	case vramReadMode:
		if g.cycles >= g.mode3Cycles {
			g.cycles -= g.mode3Cycles
			g.drawScanline()
			g.enterMode(hblankMode)
		}
	case hblankMode:
		hblankDuration := scanlineCycles - oamScanCycles - g.mode3Cycles
		if g.cycles >= hblankDuration {
			g.cycles -= hblankDuration
			g.advanceLine()
			if g.line == visibleLines {
				g.enterMode(vblankMode)
				g.bus.RequestInterrupt(addr.VBlankInterrupt)
			} else {
				g.enterMode(oamReadMode)
			}
		}
	case vblankMode:
		if g.cycles >= scanlineCycles {
			g.cycles -= scanlineCycles
			g.advanceLine()
			if g.line == totalLines {
				g.line = 0
				g.bus.SetLY(0)
				g.enterMode(oamReadMode)
			}
		}
	}

	g.updateStatInterrupt()
}

func (g *GPU) advanceLine() {
	g.line++
	g.bus.SetLY(byte(g.line))
}

func (g *GPU) enterMode(mode GpuMode) {
	g.mode = mode
	g.bus.SetPPUMode(toPPUMode(mode))

	if mode == vramReadMode {
		g.mode3Cycles = g.computeMode3Duration()
	}
}

func toPPUMode(mode GpuMode) memory.PPUMode {
	switch mode {
	case vramReadMode:
		return memory.PPUModeDrawing
	case oamReadMode:
		return memory.PPUModeOAMScan
	case vblankMode:
		return memory.PPUModeVBlank
	default:
		return memory.PPUModeHBlank
	}
}

// computeMode3Duration estimates Mode 3's dot count: a 172-dot baseline,
// plus the SCX%8 sub-tile discard, plus 6 dots for every sprite overlapping
// the scanline (a penalty for the mid-line OAM fetch each sprite causes).
func (g *GPU) computeMode3Duration() int {
	duration := 172
	scx := g.bus.Read(addr.SCX)
	duration += int(scx % 8)

	if g.readLCDCVariable(spriteDisplayEnable) == 1 {
		sprites := g.oam.GetSpritesForScanline(g.line)
		duration += len(sprites) * 6
	}

	return duration
}

// updateStatInterrupt requests the LCD STAT interrupt on the rising edge of
// the combined STAT line: LYC=LY (if enabled) OR'd with the current mode's
// enable bit in STAT, per Pan Docs' "STAT blocking" behavior.
func (g *GPU) updateStatInterrupt() {
	stat := g.bus.Read(addr.STAT)
	ly := byte(g.line)
	lyc := g.bus.Read(addr.LYC)
	coincidence := ly == lyc

	stat = setStatBit(stat, 2, coincidence)
	stat = (stat &^ 0x03) | byte(toPPUMode(g.mode))
	g.bus.Write(addr.STAT, stat)

	line := (coincidence && bit.IsSet(6, stat)) ||
		(g.mode == hblankMode && bit.IsSet(3, stat)) ||
		(g.mode == vblankMode && bit.IsSet(4, stat)) ||
		(g.mode == oamReadMode && bit.IsSet(5, stat))

	if line && !g.statLine {
		g.bus.RequestInterrupt(addr.LCDSTATInterrupt)
	}
	g.statLine = line
}

func setStatBit(stat byte, index uint8, set bool) byte {
	if set {
		return bit.Set(index, stat)
	}
	return bit.Clear(index, stat)
}

// drawScanline composites the background, window and sprite layers for the
// current line into the frame buffer. Called once per scanline at the
// Mode 3 -> Mode 0 transition, or directly by tests exercising a single line.
func (g *GPU) drawScanline() {
	if g.readLCDCVariable(lcdDisplayEnable) == 0 {
		return
	}

	g.pixelCounter = 0

	for g.pixelCounter < FramebufferWidth {
		g.drawBackground()
		g.drawWindow()
		g.pixelCounter += 4
	}

	g.drawSprites()
}

// tileAddress resolves a tile number to its base VRAM address, honoring the
// LCDC BG/window tile data select bit's signed/unsigned addressing modes.
func (g *GPU) tileAddress(tileNumber byte, useSignedTiles bool) uint16 {
	if useSignedTiles {
		return uint16(int32(addr.TileData2) + int32(int8(tileNumber))*16)
	}
	return addr.TileData0 + uint16(tileNumber)*16
}

func (g *GPU) tileRow(tileAddr uint16, row int) TileRow {
	rowAddr := tileAddr + uint16(row*2)
	return TileRow{
		Low:  g.bus.Read(rowAddr),
		High: g.bus.Read(rowAddr + 1),
	}
}

// fetchBackgroundTile reads the next background tile into bgFIFO, dropping
// the SCX%8 leading pixels of the very first tile on the line to emulate the
// hardware's sub-tile scroll discard.
func (g *GPU) fetchBackgroundTile() {
	scx := g.bus.Read(addr.SCX)
	scy := g.bus.Read(addr.SCY)
	useSignedTiles := g.readLCDCVariable(bgWindowTileDataSelect) == 0

	tileMapAddr := addr.TileMap0
	if g.readLCDCVariable(bgTileMapDisplaySelect) == 1 {
		tileMapAddr = addr.TileMap1
	}

	bgY := byte(g.line) + scy
	tileRowInMap := int(bgY) / 8
	pixelY := int(bgY) % 8

	tileCol := (g.bgTileCol + int(scx)/8) % 32
	tileMapOffset := tileMapAddr + uint16(tileRowInMap*32+tileCol)
	tileNumber := g.bus.Read(tileMapOffset)
	tileAddr := g.tileAddress(tileNumber, useSignedTiles)
	row := g.tileRow(tileAddr, pixelY)

	for px := 0; px < 8; px++ {
		g.bgFIFO.push(byte(row.GetPixel(px)))
	}

	if g.bgTileCol == 0 && g.bgDiscard > 0 {
		for i := 0; i < g.bgDiscard; i++ {
			g.bgFIFO.pop()
		}
		g.bgDiscard = 0
	}

	g.bgTileCol++
}

// drawBackground pops up to 4 pixels from the background FIFO into the
// frame buffer, fetching a fresh tile whenever the FIFO runs dry.
func (g *GPU) drawBackground() {
	if g.readLCDCVariable(bgDisplay) == 0 {
		return // frame buffer stays at its white reset value
	}

	if g.pixelCounter == 0 {
		g.bgFIFO.clear()
		g.bgTileCol = 0
		g.bgDiscard = int(g.bus.Read(addr.SCX) % 8)
	}

	bgp := g.bus.Read(addr.BGP)
	produced := 0

	for produced < 4 {
		screenX := g.pixelCounter + produced
		if screenX >= FramebufferWidth {
			return
		}

		if g.bgFIFO.len() == 0 {
			g.fetchBackgroundTile()
		}

		colorIndex := g.bgFIFO.pop()
		color := ByteToColor(paletteShade(bgp, colorIndex))
		g.framebuffer.SetPixel(uint(screenX), uint(g.line), color)
		produced++
	}
}

// drawWindow overlays the window layer on top of whatever the background
// pass just drew, for pixels at or past WX that are on or below WY.
func (g *GPU) drawWindow() {
	if g.readLCDCVariable(windowDisplayEnable) == 0 {
		return
	}

	wy := int(g.bus.Read(addr.WY))
	if g.line < wy {
		return
	}

	wx := int(g.bus.Read(addr.WX)) - 7
	bgp := g.bus.Read(addr.BGP)
	useSignedTiles := g.readLCDCVariable(bgWindowTileDataSelect) == 0

	tileMapAddr := addr.TileMap0
	if g.readLCDCVariable(windowTileMapSelect) == 1 {
		tileMapAddr = addr.TileMap1
	}

	windowY := g.line - wy

	for i := 0; i < 4; i++ {
		screenX := g.pixelCounter + i
		if screenX >= FramebufferWidth {
			return
		}
		if screenX < wx {
			continue
		}

		windowX := screenX - wx
		tileX := windowX / 8
		tileY := windowY / 8
		pixelX := windowX % 8
		pixelY := windowY % 8

		tileMapOffset := tileMapAddr + uint16(tileY*32+tileX)
		tileNumber := g.bus.Read(tileMapOffset)
		tileAddr := g.tileAddress(tileNumber, useSignedTiles)
		row := g.tileRow(tileAddr, pixelY)

		colorIndex := byte(row.GetPixel(pixelX))
		color := ByteToColor(paletteShade(bgp, colorIndex))
		g.framebuffer.SetPixel(uint(screenX), uint(g.line), color)
	}
}

// drawSprites overlays sprite pixels for the current line, using the OAM
// scan's pre-resolved per-pixel ownership so sprite-to-sprite priority
// never needs a sort here.
func (g *GPU) drawSprites() {
	if g.readLCDCVariable(spriteDisplayEnable) == 0 {
		return
	}

	sprites := g.oam.GetSpritesForScanline(g.line)
	obp0 := g.bus.Read(addr.OBP0)
	obp1 := g.bus.Read(addr.OBP1)

	for i := range sprites {
		sprite := &sprites[i]
		if !sprite.HasPriorityForAnyPixel() {
			continue
		}

		spriteLine := g.line - int(sprite.Y)
		if sprite.FlipY {
			spriteLine = sprite.Height - 1 - spriteLine
		}

		tileIndex := sprite.TileIndex
		if sprite.Height == 16 {
			tileIndex &^= 0x01
			if spriteLine >= 8 {
				tileIndex |= 0x01
				spriteLine -= 8
			}
		}

		tileAddr := addr.TileData0 + uint16(tileIndex)*16
		row := g.tileRow(tileAddr, spriteLine)

		palette := obp0
		if sprite.PaletteOBP1 {
			palette = obp1
		}

		for px := 0; px < 8; px++ {
			if !sprite.HasPriorityForPixel(px) {
				continue
			}

			screenX := int(sprite.X) + px
			if screenX < 0 || screenX >= FramebufferWidth {
				continue
			}

			var colorIndex int
			if sprite.FlipX {
				colorIndex = row.GetPixelFlipped(px)
			} else {
				colorIndex = row.GetPixel(px)
			}

			if colorIndex == 0 {
				continue // transparent
			}

			if sprite.BehindBG {
				bgPixel := g.framebuffer.GetPixel(uint(screenX), uint(g.line))
				if bgPixel != uint32(ByteToColor(paletteShade(g.bus.Read(addr.BGP), 0))) {
					continue
				}
			}

			color := ByteToColor(paletteShade(palette, byte(colorIndex)))
			g.framebuffer.SetPixel(uint(screenX), uint(g.line), color)
		}
	}
}

func paletteShade(palette byte, colorIndex byte) byte {
	return (palette >> (colorIndex * 2)) & 0x03
}

// LCDC (LCD Control) Register bit values
// Bit 7 - LCD Display Enable (0=Off, 1=On)
// Bit 6 - Window Tile Map Display Select (0=9800-9BFF, 1=9C00-9FFF)
// Bit 5 - Window Display Enable (0=Off, 1=On)
// Bit 4 - BG & Window Tile Data Select (0=8800-97FF, 1=8000-8FFF)
// Bit 3 - BG Tile Map Display Select (0=9800-9BFF, 1=9C00-9FFF)
// Bit 2 - OBJ (Sprite) Size (0=8x8, 1=8x16)
// Bit 1 - OBJ (Sprite) Display Enable (0=Off, 1=On)
// Bit 0 - BG Display (0=Off, 1=On)

type lcdcFlag uint8

const (
	lcdDisplayEnable       lcdcFlag = 7
	windowTileMapSelect             = 6
	windowDisplayEnable             = 5
	bgWindowTileDataSelect          = 4
	bgTileMapDisplaySelect          = 3
	spriteSize                      = 2
	spriteDisplayEnable             = 1
	bgDisplay                       = 0
)

func (g *GPU) readLCDCVariable(flag lcdcFlag) byte {
	if bit.IsSet(uint8(flag), g.bus.Read(addr.LCDC)) {
		return 1
	}

	return 0
}
