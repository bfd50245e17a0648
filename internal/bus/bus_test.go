package bus

import (
	"testing"

	"gones/internal/cartridge"
)

// fakeCartridge is a minimal Cartridge for bus-level tests: flat 32KB
// PRG, no CHR, fixed horizontal mirroring, never asserts IRQ.
type fakeCartridge struct {
	prg [0x8000]uint8
}

func newFakeCartridge() *fakeCartridge {
	c := &fakeCartridge{}
	// Reset vector -> $8000
	c.prg[0x7FFC] = 0x00
	c.prg[0x7FFD] = 0x80
	return c
}

func (c *fakeCartridge) ReadPRG(address uint16) uint8       { return c.prg[address-0x8000] }
func (c *fakeCartridge) WritePRG(address uint16, value uint8) {}
func (c *fakeCartridge) ReadCHR(address uint16) uint8       { return 0 }
func (c *fakeCartridge) WriteCHR(address uint16, value uint8) {}
func (c *fakeCartridge) MirrorMode() cartridge.MirrorMode   { return cartridge.MirrorHorizontal }
func (c *fakeCartridge) IRQ() bool                          { return false }
func (c *fakeCartridge) AckIRQ()                            {}
func (c *fakeCartridge) Tick()                              {}

func TestRAMMirroringAcrossFourBanks(t *testing.T) {
	b := New()
	b.LoadCartridge(newFakeCartridge())

	b.Write(0x0000, 0x42)
	for _, mirror := range []uint16{0x0800, 0x1000, 0x1800} {
		if got := b.Read(mirror); got != 0x42 {
			t.Fatalf("mirror $%04X: got 0x%02X, want 0x42", mirror, got)
		}
	}
}

func TestStepFetchesFromResetVector(t *testing.T) {
	b := New()
	cart := newFakeCartridge()
	cart.prg[0] = 0xEA // NOP at $8000
	b.LoadCartridge(cart)

	if b.CPU.PC != 0x8000 {
		t.Fatalf("expected PC at reset vector 0x8000, got 0x%04X", b.CPU.PC)
	}
	cycles := b.Step()
	if cycles != 2 {
		t.Fatalf("expected NOP to take 2 cycles, got %d", cycles)
	}
	if b.CPU.PC != 0x8001 {
		t.Fatalf("expected PC to advance to 0x8001, got 0x%04X", b.CPU.PC)
	}
}

func TestOAMDMAStallsCPUFor513Cycles(t *testing.T) {
	b := New()
	cart := newFakeCartridge()
	cart.prg[0] = 0xEA
	b.LoadCartridge(cart)

	b.Write(0x4014, 0x02) // DMA from page 2

	total := uint64(0)
	for b.IsDMAInProgress() {
		total += b.Step()
	}
	if total != 513 {
		t.Fatalf("expected 513 stall cycles on an even-aligned DMA start, got %d", total)
	}
}

func TestPaletteBackgroundColorMirroring(t *testing.T) {
	b := New()
	b.LoadCartridge(newFakeCartridge())

	b.PPU.WriteRegister(0x2006, 0x3F)
	b.PPU.WriteRegister(0x2006, 0x00)
	b.PPU.WriteRegister(0x2007, 0x20)

	b.PPU.WriteRegister(0x2006, 0x3F)
	b.PPU.WriteRegister(0x2006, 0x10)
	if got := b.ppuMem.readPalette(0x3F10); got != 0x20 {
		t.Fatalf("expected $3F10 to mirror $3F00's write of 0x20, got 0x%02X", got)
	}
}

func TestNametableHorizontalMirroring(t *testing.T) {
	b := New()
	b.LoadCartridge(newFakeCartridge())

	b.ppuMem.Write(0x2000, 0x11)
	if got := b.ppuMem.Read(0x2400); got != 0x11 {
		t.Fatalf("horizontal mirroring: $2400 should mirror $2000, got 0x%02X", got)
	}
	if got := b.ppuMem.Read(0x2800); got == 0x11 {
		t.Fatalf("horizontal mirroring: $2800 should be a distinct bank, got 0x%02X", got)
	}
}
