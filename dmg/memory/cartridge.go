package memory

import (
	"fmt"
	"os"
)

// MBCType identifies which memory bank controller variant a cartridge uses.
type MBCType uint8

const (
	NoMBCType MBCType = iota
	MBC1Type
	MBC1MultiType
	MBC2Type
	MBC3Type
	MBC5Type
	MBCUnknownType
)

// LoadError reports a failure to load a ROM image: too small to contain a
// header, or an I/O failure. An unknown cartridge type is not reported:
// ParseCartridge maps it to ROM-only and returns no error.
type LoadError struct {
	Path   string
	Reason string
}

func (e *LoadError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("load cartridge: %s", e.Reason)
	}
	return fmt.Sprintf("load cartridge %q: %s", e.Path, e.Reason)
}

const headerStart = 0x0100
const headerEnd = 0x014F

// romSizeBytes maps the ROM size code at 0x0148 to a byte count: 32 KiB * 2^n.
func romSizeBytes(code byte) int {
	if code > 8 {
		return 32 * 1024
	}
	return 32 * 1024 << code
}

// ramSizeBytes maps the RAM size code at 0x0149 to a byte count.
func ramSizeBytes(code byte) int {
	switch code {
	case 0:
		return 0
	case 1:
		return 2 * 1024
	case 2:
		return 8 * 1024
	case 3:
		return 32 * 1024
	case 4:
		return 128 * 1024
	case 5:
		return 64 * 1024
	default:
		return 0
	}
}

// Cartridge holds a parsed ROM header alongside the raw ROM bytes needed to
// construct the appropriate MBC.
type Cartridge struct {
	data []byte

	title        string
	mbcType      MBCType
	hasBattery   bool
	hasRTC       bool
	hasRumble    bool
	romBankCount uint16
	ramBankCount uint8
	ramSize      int
	headerValid  bool
}

// NewCartridge returns an empty, ROM-only cartridge equivalent to a Game Boy
// with no cartridge inserted.
func NewCartridge() *Cartridge {
	return &Cartridge{
		data:    make([]byte, 0x8000),
		mbcType: NoMBCType,
	}
}

// LoadCartridgeFile reads a raw ROM image from disk and parses its header.
func LoadCartridgeFile(path string) (*Cartridge, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &LoadError{Path: path, Reason: err.Error()}
	}
	return ParseCartridge(data, path)
}

// ParseCartridge parses a raw ROM image already read into memory. path is
// used only for error messages and may be empty.
func ParseCartridge(data []byte, path string) (*Cartridge, error) {
	if len(data) < headerEnd+1 {
		return nil, &LoadError{Path: path, Reason: "ROM smaller than header region"}
	}

	cart := &Cartridge{data: data}
	cart.title = cleanGameboyTitle(data[0x0134:0x0144])
	cart.headerValid = verifyHeaderChecksum(data)

	cartType := data[0x0147]
	cart.mbcType, cart.hasBattery, cart.hasRTC, cart.hasRumble = classifyCartridgeType(cartType)

	cart.romBankCount = uint16(romSizeBytes(data[0x0148]) / 0x4000)
	cart.ramSize = ramSizeBytes(data[0x0149])
	cart.ramBankCount = uint8(cart.ramSize / 0x2000)
	if cart.mbcType == MBC2Type {
		// MBC2's RAM is on-chip; the header RAM-size field is 0 for these
		// carts even though 512x4 bits of RAM exist.
		cart.ramBankCount = 1
	}

	if cart.mbcType == MBCUnknownType {
		cart.mbcType = NoMBCType
	}

	return cart, nil
}

// verifyHeaderChecksum recomputes the header checksum over 0x0134-0x014C and
// compares it against the stored value at 0x014D. A mismatch is reported to
// the caller but never treated as fatal — commercial ROMs are trusted as-is.
func verifyHeaderChecksum(data []byte) bool {
	var x uint8
	for i := 0x0134; i <= 0x014C; i++ {
		x = x - data[i] - 1
	}
	return x == data[0x014D]
}

// classifyCartridgeType maps the cartridge-type byte at 0x0147 to an MBC
// variant plus its battery/RTC/rumble accessories.
func classifyCartridgeType(cartType byte) (mbc MBCType, battery, rtc, rumble bool) {
	switch cartType {
	case 0x00:
		return NoMBCType, false, false, false
	case 0x01, 0x02:
		return MBC1Type, false, false, false
	case 0x03:
		return MBC1Type, true, false, false
	case 0x05:
		return MBC2Type, false, false, false
	case 0x06:
		return MBC2Type, true, false, false
	case 0x0F, 0x10:
		return MBC3Type, true, true, false
	case 0x11, 0x12:
		return MBC3Type, false, false, false
	case 0x13:
		return MBC3Type, true, false, false
	case 0x19, 0x1A:
		return MBC5Type, false, false, false
	case 0x1B:
		return MBC5Type, true, false, false
	case 0x1C, 0x1D:
		return MBC5Type, false, false, true
	case 0x1E:
		return MBC5Type, true, false, true
	default:
		return MBCUnknownType, false, false, false
	}
}

func (c *Cartridge) Title() string   { return c.title }
func (c *Cartridge) MBCType() MBCType { return c.mbcType }
func (c *Cartridge) HeaderValid() bool { return c.headerValid }
