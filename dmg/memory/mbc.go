package memory

import (
	"encoding/binary"
	"time"
)

// MBC represents a Memory Bank Controller interface that all MBC types must implement
type MBC interface {
	// Read reads a byte from the specified address
	Read(addr uint16) uint8
	// Write writes a byte to the specified address, returns the written value
	Write(addr uint16, value uint8) uint8
}

// BatteryBacked is implemented by MBC variants whose external RAM survives
// power-off. SaveRAM/LoadRAM operate on the raw byte dump described in
// the cartridge's save-file contract.
type BatteryBacked interface {
	SaveRAM() []byte
	LoadRAM(data []byte)
}

// RTCPersistable is implemented by MBC variants with a battery-backed
// real-time clock (MBC3). The encoded form is the five RTC registers
// followed by a 64-bit little-endian wall-clock timestamp, matching the
// sidecar ".sav.rtc" file format.
type RTCPersistable interface {
	SaveRTC() []byte
	LoadRTC(data []byte)
}

// NoMBC represents cartridges with no memory banking capabilities.
// These are typically smaller games (32KB or less) that fit entirely in the
// base memory region. The cartridge ROM is directly mapped to 0x0000-0x7FFF
// and cannot be banked/switched. These cartridges cannot have external RAM.
type NoMBC struct {
	rom []uint8 // ROM data
}

// NewNoMBC creates a new NoMBC controller
func NewNoMBC(romData []uint8) *NoMBC {
	return &NoMBC{
		rom: romData,
	}
}

func (m *NoMBC) Read(addr uint16) uint8 {
	if int(addr) >= len(m.rom) {
		return 0xFF
	}
	return m.rom[addr]
}

func (m *NoMBC) Write(addr uint16, value uint8) uint8 {
	// NoMBC doesn't support writing to ROM
	return 0
}

// MBC1 is the first and most common MBC chip. Features include:
// - Supports up to 2MB ROM (125 16KB banks)
// - Up to 32KB RAM (4 8KB banks)
// - Bank 0 always mapped to 0x0000-0x3FFF in simple mode; the upper bank
//   register participates in that region too in advanced mode
// - Switchable ROM bank at 0x4000-0x7FFF
// - Optional RAM banking at 0xA000-0xBFFF
// - Two banking modes:
//   - Mode 0 (simple): 0x0000-0x3FFF is always bank 0, RAM is always bank 0
//   - Mode 1 (advanced): the upper register also selects the low-region ROM
//     bank and the RAM bank
// - Optional battery backup for RAM persistence
// - Multicart variant: only 4 bits of the low ROM-bank register are used and
//   the upper register shifts the bank number by 4 bits instead of 5
type MBC1 struct {
	rom          []uint8
	ram          []uint8
	romBank      uint8
	upperBits    uint8 // 2-bit register: RAM bank, or ROM bank bits 5-6 (or 4-5 for multicart)
	ramEnabled   bool
	bankingMode  uint8
	hasBattery   bool
	ramBankCount uint8
	multicart    bool
}

// NewMBC1 creates a new MBC1 controller
func NewMBC1(romData []uint8, hasBattery bool, ramBankCount uint8) *MBC1 {
	ramSize := uint32(ramBankCount) * 0x2000 // 8KB per RAM bank
	return &MBC1{
		rom:          romData,
		ram:          make([]uint8, ramSize),
		romBank:      1,
		ramEnabled:   false,
		bankingMode:  0,
		hasBattery:   hasBattery,
		ramBankCount: ramBankCount,
	}
}

// NewMBC1Multicart creates an MBC1 controller for the multicart variant used
// by a handful of official multi-game compilations: the low ROM-bank
// register is 4 bits wide and the upper register shifts by 4 instead of 5.
func NewMBC1Multicart(romData []uint8, hasBattery bool, ramBankCount uint8) *MBC1 {
	m := NewMBC1(romData, hasBattery, ramBankCount)
	m.multicart = true
	return m
}

func (m *MBC1) lowBankMask() uint8 {
	if m.multicart {
		return 0x0F
	}
	return 0x1F
}

func (m *MBC1) upperShift() uint8 {
	if m.multicart {
		return 4
	}
	return 5
}

// effectiveLowBank returns the bank mapped at 0x0000-0x3FFF: always 0 in
// simple mode, or the upper register shifted into the low ROM-bank position
// in advanced mode.
func (m *MBC1) effectiveLowBank() uint32 {
	if m.bankingMode == 0 {
		return 0
	}
	return uint32(m.upperBits) << m.upperShift()
}

// effectiveHighBank returns the bank mapped at 0x4000-0x7FFF. The upper
// register always contributes the high bits of the ROM bank number here,
// in both banking modes — only the 0x0000-0x3FFF region and RAM banking
// are mode-gated.
func (m *MBC1) effectiveHighBank() uint32 {
	return uint32(m.romBank) | uint32(m.upperBits)<<m.upperShift()
}

func (m *MBC1) romOffset(bank uint32, addr uint16, base uint16) uint8 {
	offset := bank*0x4000 + uint32(addr-base)
	if len(m.rom) == 0 {
		return 0xFF
	}
	return m.rom[offset%uint32(len(m.rom))]
}

func (m *MBC1) ramOffset() uint32 {
	if m.bankingMode == 0 {
		return 0
	}
	return uint32(m.upperBits)
}

func (m *MBC1) Read(addr uint16) uint8 {
	switch {
	case addr <= 0x3FFF:
		return m.romOffset(m.effectiveLowBank(), addr, 0x0000)
	case addr >= 0x4000 && addr <= 0x7FFF:
		return m.romOffset(m.effectiveHighBank(), addr, 0x4000)
	case addr >= 0xA000 && addr <= 0xBFFF:
		if !m.ramEnabled || len(m.ram) == 0 {
			return 0xFF
		}
		offset := m.ramOffset() * 0x2000
		return m.ram[(offset+uint32(addr-0xA000))%uint32(len(m.ram))]
	default:
		return 0xFF
	}
}

func (m *MBC1) Write(addr uint16, value uint8) uint8 {
	switch {
	case addr <= 0x1FFF:
		// RAM Enable
		m.ramEnabled = (value & 0x0F) == 0x0A
	case addr >= 0x2000 && addr <= 0x3FFF:
		// ROM Bank Number (low bits)
		bank := value & m.lowBankMask()
		if bank == 0 {
			bank = 1
		}
		m.romBank = bank
	case addr >= 0x4000 && addr <= 0x5FFF:
		// RAM Bank Number or Upper ROM Bank Number
		m.upperBits = value & 0x03
	case addr >= 0x6000 && addr <= 0x7FFF:
		// Banking Mode Select
		m.bankingMode = value & 0x01
	case addr >= 0xA000 && addr <= 0xBFFF:
		if !m.ramEnabled || len(m.ram) == 0 {
			return 0xFF
		}
		offset := m.ramOffset() * 0x2000
		m.ram[(offset+uint32(addr-0xA000))%uint32(len(m.ram))] = value
	}
	return value
}

func (m *MBC1) SaveRAM() []byte {
	if !m.hasBattery {
		return nil
	}
	out := make([]byte, len(m.ram))
	copy(out, m.ram)
	return out
}

func (m *MBC1) LoadRAM(data []byte) {
	copy(m.ram, data)
}

// MBC2 is a simpler MBC chip with built-in RAM. Features include:
// - Supports up to 256KB ROM (16 16KB banks)
// - Built-in 512x4 bits RAM (not external)
// - RAM starts disabled; reads return 0xFF and writes are dropped until it
//   is enabled
// - ROM banking similar to MBC1 but simpler
// - The least significant bit of the upper address byte selects between
//   the RAM-enable register and the ROM-bank register
// - RAM is limited to 4-bit values; upper nibble always reads back as 1s
// - Optional battery backup for the built-in RAM
type MBC2 struct {
	rom        []uint8
	ram        []uint8 // 512x4 bits RAM
	romBank    uint8
	ramEnabled bool
	hasBattery bool
}

// NewMBC2 creates a new MBC2 controller
func NewMBC2(romData []uint8, hasBattery bool) *MBC2 {
	return &MBC2{
		rom:        romData,
		ram:        make([]uint8, 512),
		romBank:    1,
		ramEnabled: false,
		hasBattery: hasBattery,
	}
}

func (m *MBC2) Read(addr uint16) uint8 {
	switch {
	case addr <= 0x3FFF:
		if int(addr) >= len(m.rom) {
			return 0xFF
		}
		return m.rom[addr]
	case addr >= 0x4000 && addr <= 0x7FFF:
		offset := uint32(m.romBank) * 0x4000
		if len(m.rom) == 0 {
			return 0xFF
		}
		offset = offset % uint32(len(m.rom))
		return m.rom[offset+uint32(addr-0x4000)]
	case addr >= 0xA000 && addr <= 0xBFFF:
		if !m.ramEnabled {
			return 0xFF
		}
		offset := uint32(addr-0xA000) % 0x200
		// Only the low nibble is stored; the upper nibble always reads as 1
		// on real hardware.
		return m.ram[offset] | 0xF0
	default:
		return 0xFF
	}
}

func (m *MBC2) Write(addr uint16, value uint8) uint8 {
	switch {
	case addr <= 0x3FFF:
		// Bit 8 of the address selects RAM-enable vs ROM-bank behavior.
		if bit8(addr) == 0 {
			m.ramEnabled = (value & 0x0F) == 0x0A
		} else {
			bank := value & 0x0F
			if bank == 0 {
				bank = 1
			}
			m.romBank = bank
		}
	case addr >= 0xA000 && addr <= 0xBFFF:
		if !m.ramEnabled {
			return 0xFF
		}
		offset := uint32(addr-0xA000) % 0x200
		m.ram[offset] = value & 0x0F
	}
	return value
}

func bit8(addr uint16) uint16 {
	return addr & 0x0100
}

func (m *MBC2) SaveRAM() []byte {
	if !m.hasBattery {
		return nil
	}
	out := make([]byte, len(m.ram))
	copy(out, m.ram)
	return out
}

func (m *MBC2) LoadRAM(data []byte) {
	copy(m.ram, data)
}

// Clock abstracts wall-clock time so MBC3's RTC can be driven by a fake
// clock in tests.
type Clock interface {
	Now() time.Time
}

type systemClockFunc func() time.Time

func (s systemClockFunc) Now() time.Time {
	return s()
}

// MBC3 is an advanced MBC chip with RTC support. Features include:
// - Supports up to 2MB ROM (128 16KB banks)
// - Up to 32KB RAM (4 8KB banks)
// - Real-Time Clock (RTC) functionality
// - RTC has 5 registers: Seconds, Minutes, Hours, Days (lower), Days (upper)/Flags
// - Similar banking to MBC1 but with different register layout
// - RAM and RTC can be battery backed
// - Used in games that needed to track real time (e.g. Pokémon Gold/Silver)
type MBC3 struct {
	rom        []uint8
	ram        []uint8
	romBank    uint8
	ramBank    uint8 // 0x00-0x07 selects RAM, 0x08-0x0C selects an RTC register
	ramEnabled bool
	hasRTC     bool
	hasBattery bool

	rtcS, rtcM, rtcH, rtcDL, rtcDH uint8
	shadowS, shadowM, shadowH      uint8
	shadowDL, shadowDH             uint8
	latched                        bool
	lastLatchWrite                 uint8 // tracks the byte written to 0x6000 to edge-detect 0->1

	clock   Clock
	lastTick time.Time
}

// NewMBC3 creates a new MBC3 controller
func NewMBC3(romData []uint8, ramBankCount uint8, hasRTC, hasBattery bool, clock Clock) *MBC3 {
	if clock == nil {
		clock = systemClockFunc(time.Now)
	}

	ramSize := uint32(ramBankCount) * 0x2000
	return &MBC3{
		rom:        romData,
		ram:        make([]uint8, ramSize),
		romBank:    1,
		hasRTC:     hasRTC,
		hasBattery: hasBattery,
		clock:      clock,
		lastTick:   clock.Now(),
	}
}

func (m *MBC3) Read(addr uint16) uint8 {
	switch {
	case addr <= 0x3FFF:
		if int(addr) >= len(m.rom) {
			return 0xFF
		}
		return m.rom[addr]
	case addr >= 0x4000 && addr <= 0x7FFF:
		offset := uint32(m.romBank) * 0x4000
		if len(m.rom) == 0 {
			return 0xFF
		}
		offset = offset % uint32(len(m.rom))
		return m.rom[offset+uint32(addr-0x4000)]
	case addr >= 0xA000 && addr <= 0xBFFF:
		if !m.ramEnabled {
			return 0xFF
		}
		if m.ramBank <= 0x07 {
			if len(m.ram) == 0 {
				return 0xFF
			}
			offset := uint32(m.ramBank) * 0x2000
			offset = offset % uint32(len(m.ram))
			return m.ram[offset+uint32(addr-0xA000)]
		}
		if m.hasRTC && m.ramBank >= 0x08 && m.ramBank <= 0x0C {
			m.advanceRTC()
			switch m.ramBank {
			case 0x08:
				return m.shadowS
			case 0x09:
				return m.shadowM
			case 0x0A:
				return m.shadowH
			case 0x0B:
				return m.shadowDL
			case 0x0C:
				return m.shadowDH
			}
		}
		return 0xFF
	default:
		return 0xFF
	}
}

func (m *MBC3) Write(addr uint16, value uint8) uint8 {
	switch {
	case addr <= 0x1FFF:
		m.ramEnabled = (value & 0x0F) == 0x0A
	case addr >= 0x2000 && addr <= 0x3FFF:
		bank := value & 0x7F
		if bank == 0 {
			bank = 1
		}
		m.romBank = bank
	case addr >= 0x4000 && addr <= 0x5FFF:
		m.ramBank = value
	case addr >= 0x6000 && addr <= 0x7FFF:
		if m.lastLatchWrite == 0x00 && value == 0x01 {
			m.advanceRTC()
			m.shadowS, m.shadowM, m.shadowH = m.rtcS, m.rtcM, m.rtcH
			m.shadowDL, m.shadowDH = m.rtcDL, m.rtcDH
		}
		m.lastLatchWrite = value
	case addr >= 0xA000 && addr <= 0xBFFF:
		if !m.ramEnabled {
			return 0xFF
		}
		if m.ramBank <= 0x07 {
			if len(m.ram) == 0 {
				return 0xFF
			}
			offset := uint32(m.ramBank) * 0x2000
			offset = offset % uint32(len(m.ram))
			m.ram[offset+uint32(addr-0xA000)] = value
		} else if m.hasRTC && m.ramBank >= 0x08 && m.ramBank <= 0x0C {
			m.advanceRTC()
			switch m.ramBank {
			case 0x08:
				m.rtcS = value & 0x3F
			case 0x09:
				m.rtcM = value & 0x3F
			case 0x0A:
				m.rtcH = value & 0x1F
			case 0x0B:
				m.rtcDL = value
			case 0x0C:
				m.rtcDH = value & 0xC1
			}
			m.lastTick = m.clock.Now()
		}
	}
	return value
}

// advanceRTC replays elapsed wall-clock time into the RTC registers. While
// the halt bit (DH bit 6) is set the clock does not advance and lastTick is
// simply resynchronized so resuming later does not replay the paused span.
func (m *MBC3) advanceRTC() {
	now := m.clock.Now()
	if m.rtcDH&0x40 != 0 {
		m.lastTick = now
		return
	}
	elapsed := int64(now.Sub(m.lastTick).Seconds())
	m.lastTick = now
	if elapsed <= 0 {
		return
	}

	total := int64(m.rtcS) + int64(m.rtcM)*60 + int64(m.rtcH)*3600 +
		dayCounter(m.rtcDL, m.rtcDH)*86400 + elapsed

	days := total / 86400
	total %= 86400
	hours := total / 3600
	total %= 3600
	minutes := total / 60
	seconds := total % 60

	m.rtcS = uint8(seconds)
	m.rtcM = uint8(minutes)
	m.rtcH = uint8(hours)

	carry := m.rtcDH & 0x80
	if days > 511 {
		days %= 512
		carry = 0x80
	}
	m.rtcDL = uint8(days & 0xFF)
	m.rtcDH = (m.rtcDH & 0x40) | uint8((days>>8)&0x01) | carry
}

func dayCounter(dl, dh uint8) int64 {
	return int64(dl) | (int64(dh&0x01) << 8)
}

func (m *MBC3) SaveRAM() []byte {
	if !m.hasBattery {
		return nil
	}
	out := make([]byte, len(m.ram))
	copy(out, m.ram)
	return out
}

func (m *MBC3) LoadRAM(data []byte) {
	copy(m.ram, data)
}

// SaveRTC encodes the five RTC registers followed by the wall-clock
// timestamp of the save, matching the ".sav.rtc" sidecar format.
func (m *MBC3) SaveRTC() []byte {
	m.advanceRTC()
	out := make([]byte, 5+8)
	out[0], out[1], out[2], out[3], out[4] = m.rtcS, m.rtcM, m.rtcH, m.rtcDL, m.rtcDH
	binary.LittleEndian.PutUint64(out[5:], uint64(m.lastTick.Unix()))
	return out
}

// LoadRTC restores the five RTC registers and then replays wall-clock time
// elapsed since the persisted timestamp, so time keeps advancing across
// sessions rather than resetting.
func (m *MBC3) LoadRTC(data []byte) {
	if len(data) < 13 {
		return
	}
	m.rtcS, m.rtcM, m.rtcH, m.rtcDL, m.rtcDH = data[0], data[1], data[2], data[3], data[4]
	savedAt := time.Unix(int64(binary.LittleEndian.Uint64(data[5:13])), 0)
	m.lastTick = savedAt
	m.advanceRTC()
}

// MBC5 is the most advanced MBC chip. Features include:
// - Supports up to 8MB ROM (512 16KB banks)
// - Up to 128KB RAM (16 8KB banks)
// - Simple ROM/RAM banking with no quirks (unlike MBC1)
// - 9-bit ROM bank number (allows all 512 banks to be directly accessed)
// - Optional rumble motor support (bit 3 of the RAM-bank register)
// - Used in Game Boy Color games that needed more ROM/RAM
// - Backwards compatible with Game Boy
// - Unlike MBC1, bank 0 is directly reachable at 0x4000-0x7FFF: writing 0 to
//   the low ROM-bank register is not remapped to 1.
type MBC5 struct {
	rom        []uint8
	ram        []uint8
	romBank    uint16 // MBC5 supports up to 512 ROM banks
	ramBank    uint8
	ramEnabled bool
	hasRumble  bool
	hasBattery bool
}

// NewMBC5 creates a new MBC5 controller
func NewMBC5(romData []uint8, hasRumble, hasBattery bool, ramBankCount uint8) *MBC5 {
	ramSize := uint32(ramBankCount) * 0x2000
	return &MBC5{
		rom:        romData,
		ram:        make([]uint8, ramSize),
		romBank:    1,
		ramEnabled: false,
		hasRumble:  hasRumble,
		hasBattery: hasBattery,
	}
}

func (m *MBC5) Read(addr uint16) uint8 {
	switch {
	case addr <= 0x3FFF:
		if int(addr) >= len(m.rom) {
			return 0xFF
		}
		return m.rom[addr]
	case addr >= 0x4000 && addr <= 0x7FFF:
		if len(m.rom) == 0 {
			return 0xFF
		}
		offset := uint32(m.romBank) * 0x4000
		offset = offset % uint32(len(m.rom))
		return m.rom[offset+uint32(addr-0x4000)]
	case addr >= 0xA000 && addr <= 0xBFFF:
		if !m.ramEnabled || len(m.ram) == 0 {
			return 0xFF
		}
		offset := uint32(m.ramBank) * 0x2000
		offset = offset % uint32(len(m.ram))
		return m.ram[offset+uint32(addr-0xA000)]
	default:
		return 0xFF
	}
}

func (m *MBC5) Write(addr uint16, value uint8) uint8 {
	switch {
	case addr <= 0x1FFF:
		m.ramEnabled = (value & 0x0F) == 0x0A
	case addr >= 0x2000 && addr <= 0x2FFF:
		m.romBank = (m.romBank & 0x100) | uint16(value)
	case addr >= 0x3000 && addr <= 0x3FFF:
		m.romBank = (m.romBank & 0xFF) | (uint16(value&0x01) << 8)
	case addr >= 0x4000 && addr <= 0x5FFF:
		if m.hasRumble {
			m.ramBank = value & 0x07
		} else {
			m.ramBank = value & 0x0F
		}
	case addr >= 0xA000 && addr <= 0xBFFF:
		if !m.ramEnabled || len(m.ram) == 0 {
			return 0xFF
		}
		offset := uint32(m.ramBank) * 0x2000
		offset = offset % uint32(len(m.ram))
		m.ram[offset+uint32(addr-0xA000)] = value
	}
	return value
}

func (m *MBC5) SaveRAM() []byte {
	if !m.hasBattery {
		return nil
	}
	out := make([]byte, len(m.ram))
	copy(out, m.ram)
	return out
}

func (m *MBC5) LoadRAM(data []byte) {
	copy(m.ram, data)
}
