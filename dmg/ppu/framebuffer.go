package video

// GBColor is one of the four shades the DMG LCD can display.
type GBColor uint32

const (
	WhiteColor     GBColor = 0xFFFFFFFF
	LightGreyColor         = 0xFF989898
	DarkGreyColor          = 0xFF4C4C4C
	BlackColor             = 0xFF000000
)

// DMG screen resolution, fixed by hardware.
const (
	FramebufferWidth  = 160
	FramebufferHeight = 144
)

// ByteToColor maps a 2-bit palette-resolved color index (0-3) to its
// on-screen ARGB shade.
func ByteToColor(index byte) GBColor {
	switch index & 0x03 {
	case 0:
		return WhiteColor
	case 1:
		return LightGreyColor
	case 2:
		return DarkGreyColor
	default:
		return BlackColor
	}
}

// FrameBuffer holds one rendered frame as a flat ARGB pixel slice.
type FrameBuffer struct {
	width  uint
	height uint
	buffer []uint32
}

// NewFrameBuffer creates a frame buffer sized to the DMG's 160x144 screen,
// initialized to white to match the LCD's power-on appearance.
func NewFrameBuffer() *FrameBuffer {
	buffer := make([]uint32, FramebufferWidth*FramebufferHeight)
	for i := range buffer {
		buffer[i] = uint32(WhiteColor)
	}

	return &FrameBuffer{
		width:  FramebufferWidth,
		height: FramebufferHeight,
		buffer: buffer,
	}
}

func (fb FrameBuffer) GetPixel(x, y uint) uint32 {
	return fb.buffer[y*fb.width+x]
}

func (fb *FrameBuffer) SetPixel(x, y uint, color GBColor) {
	fb.buffer[y*fb.width+x] = uint32(color)
}

func (fb *FrameBuffer) ToSlice() []uint32 {
	return fb.buffer
}
