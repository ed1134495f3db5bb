package memory

import (
	"testing"

	"github.com/embercore/gbdmg/dmg/addr"
)

// newEnabledTimer returns a Timer with TAC selecting the bit-3 divider input
// (262144 Hz) and the timer running, loaded with the given TIMA/TMA.
func newEnabledTimer(tima, tma byte) *Timer {
	timer := &Timer{}
	timer.Write(addr.TAC, 0x05) // enabled, input clock select 01 -> bit 3
	timer.Write(addr.TMA, tma)
	timer.Write(addr.TIMA, tima)
	return timer
}

// With TAC select 01 the timer increments on every falling edge of bit 3 of
// the internal divider, i.e. every 16 T-cycles: bit 3 goes high at counter=8
// and low again at counter=16, so the first increment lands at T=16 and the
// second at T=32.
func TestTimerOverflowAndReload(t *testing.T) {
	timer := newEnabledTimer(0xFE, 0xF0)
	interruptCount := 0
	timer.TimerInterruptHandler = func() { interruptCount++ }

	timer.Tick(15)
	if got := timer.Read(addr.TIMA); got != 0xFE {
		t.Fatalf("TIMA after 15 cycles = %#x, want 0xFE (no edge yet)", got)
	}

	timer.Tick(1) // T=16: first falling edge
	if got := timer.Read(addr.TIMA); got != 0xFF {
		t.Fatalf("TIMA at T=16 = %#x, want 0xFF", got)
	}

	timer.Tick(15) // T=31: still short of the second edge
	if got := timer.Read(addr.TIMA); got != 0xFF {
		t.Fatalf("TIMA at T=31 = %#x, want 0xFF (no second edge yet)", got)
	}

	timer.Tick(1) // T=32: second falling edge overflows 0xFF -> 0x00, reload pending
	if got := timer.Read(addr.TIMA); got != 0x00 {
		t.Fatalf("TIMA at T=32 = %#x, want 0x00 (overflowed, reload not yet applied)", got)
	}
	if interruptCount != 0 {
		t.Fatalf("interrupt fired at T=32, want no interrupt until the reload completes")
	}

	timer.Tick(3) // T=33..35: reload delay counting down, TIMA stays at 0
	if got := timer.Read(addr.TIMA); got != 0x00 {
		t.Fatalf("TIMA at T=35 = %#x, want 0x00 (still in reload delay)", got)
	}

	timer.Tick(1) // T=36: reload delay elapses, TIMA <- TMA
	if got := timer.Read(addr.TIMA); got != 0xF0 {
		t.Fatalf("TIMA at T=36 = %#x, want 0xF0 (reloaded from TMA)", got)
	}
	if interruptCount != 0 {
		t.Fatalf("interrupt fired at T=36, want it deferred one more cycle")
	}

	timer.Tick(1) // T=37: the deferred interrupt fires
	if interruptCount != 1 {
		t.Fatalf("interruptCount at T=37 = %d, want exactly 1", interruptCount)
	}

	timer.Tick(100)
	if interruptCount != 1 {
		t.Fatalf("interruptCount after further ticking = %d, want still 1 (no spurious refires)", interruptCount)
	}
}

// A TIMA write that lands during the 4-cycle reload delay cancels the
// pending TMA reload and interrupt outright.
func TestTimerWriteDuringOverflowCancelsReload(t *testing.T) {
	timer := newEnabledTimer(0xFF, 0xF0)
	interruptCount := 0
	timer.TimerInterruptHandler = func() { interruptCount++ }

	timer.Tick(16) // single falling edge: 0xFF -> 0x00, overflow delay begins
	if got := timer.Read(addr.TIMA); got != 0x00 {
		t.Fatalf("TIMA after overflow = %#x, want 0x00", got)
	}

	timer.Write(addr.TIMA, 0x12)
	if got := timer.Read(addr.TIMA); got != 0x12 {
		t.Fatalf("TIMA after write during reload delay = %#x, want 0x12", got)
	}

	timer.Tick(10) // well past where the cancelled reload would have landed
	if got := timer.Read(addr.TIMA); got != 0x12 {
		t.Fatalf("TIMA after cancelled reload = %#x, want 0x12 (write should stick)", got)
	}
	if interruptCount != 0 {
		t.Fatalf("interruptCount = %d, want 0 (reload and its interrupt were cancelled)", interruptCount)
	}
}

// Writing DIV resets the 16-bit divider to 0. If the TAC-selected
// multiplexer bit was high at the moment of the write, that reset is a
// falling edge and increments TIMA exactly once.
func TestTimerDIVWriteEdgeIncrementsTIMA(t *testing.T) {
	timer := newEnabledTimer(0x00, 0x00)

	timer.Tick(8) // systemCounter=8: bit 3 goes high, no edge yet (rising)
	if got := timer.Read(addr.TIMA); got != 0x00 {
		t.Fatalf("TIMA before DIV write = %#x, want 0x00", got)
	}

	timer.Write(addr.DIV, 0xFF) // value is ignored; any write resets the counter
	if got := timer.Read(addr.DIV); got != 0x00 {
		t.Fatalf("DIV after write = %#x, want 0x00", got)
	}

	timer.Tick(1) // counter goes 0 -> 1: bit 3 falls from the pre-reset high state
	if got := timer.Read(addr.TIMA); got != 0x01 {
		t.Fatalf("TIMA after DIV-write edge = %#x, want 0x01", got)
	}

	timer.Tick(14) // counter reaches 15, still short of the next real edge at 16
	if got := timer.Read(addr.TIMA); got != 0x01 {
		t.Fatalf("TIMA after further ticking = %#x, want 0x01 (no spurious second edge)", got)
	}
}

// A disabled timer (TAC bit 2 clear) never increments TIMA regardless of how
// the divider moves.
func TestTimerDisabledDoesNotIncrement(t *testing.T) {
	timer := &Timer{}
	timer.Write(addr.TAC, 0x01) // input select set, but enable bit (2) clear
	timer.Write(addr.TIMA, 0x00)

	timer.Tick(1000)

	if got := timer.Read(addr.TIMA); got != 0x00 {
		t.Fatalf("TIMA with timer disabled = %#x, want 0x00", got)
	}
}
