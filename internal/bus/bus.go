// Package bus implements the NES system bus: the single component that
// owns CPU RAM, PPU nametable/palette VRAM, the cartridge, and every
// memory-mapped peripheral, and ticks them all in lockstep with the CPU.
package bus

import (
	"gones/internal/apu"
	"gones/internal/cartridge"
	"gones/internal/cpu"
	"gones/internal/input"
	"gones/internal/ppu"
)

// Cartridge is the subset of *cartridge.Cartridge the bus depends on.
// Kept as an interface so tests can substitute a fake cartridge without
// building iNES headers.
type Cartridge interface {
	ReadPRG(address uint16) uint8
	WritePRG(address uint16, value uint8)
	ReadCHR(address uint16) uint8
	WriteCHR(address uint16, value uint8)
	MirrorMode() cartridge.MirrorMode
	IRQ() bool
	AckIRQ()
	Tick()
}

// ppuMemory implements ppu.Bus: the PPU's private 14-bit address space
// (pattern tables via the cartridge, nametable VRAM mirrored per the
// mapper's current MirrorMode, and palette RAM). Kept as a distinct type
// from SystemBus because the CPU and PPU address spaces both want
// Read/Write methods with the same signature but different semantics.
type ppuMemory struct {
	vram       [0x800]uint8
	paletteRAM [32]uint8
	cart       Cartridge
}

func newPPUMemory() *ppuMemory {
	pm := &ppuMemory{}
	for i := 0; i < 32; i += 4 {
		pm.paletteRAM[i] = 0x0F
	}
	return pm
}

func (pm *ppuMemory) Read(address uint16) uint8 {
	address &= 0x3FFF
	switch {
	case address < 0x2000:
		if pm.cart == nil {
			return 0
		}
		return pm.cart.ReadCHR(address)
	case address < 0x3F00:
		return pm.vram[pm.nametableIndex(address)]
	default:
		return pm.readPalette(address)
	}
}

func (pm *ppuMemory) Write(address uint16, value uint8) {
	address &= 0x3FFF
	switch {
	case address < 0x2000:
		if pm.cart != nil {
			pm.cart.WriteCHR(address, value)
		}
	case address < 0x3F00:
		pm.vram[pm.nametableIndex(address)] = value
	default:
		pm.writePalette(address, value)
	}
}

// nametableIndex maps a $2000-$3EFF address down to one of the two 1KB
// physical nametable banks per the cartridge's current mirroring mode.
func (pm *ppuMemory) nametableIndex(address uint16) uint16 {
	address &= 0x0FFF
	nametable := (address >> 10) & 3
	offset := address & 0x3FF

	mode := cartridge.MirrorHorizontal
	if pm.cart != nil {
		mode = pm.cart.MirrorMode()
	}

	switch mode {
	case cartridge.MirrorHorizontal:
		if nametable >= 2 {
			return 0x400 + offset
		}
		return offset
	case cartridge.MirrorVertical:
		if nametable == 1 || nametable == 3 {
			return 0x400 + offset
		}
		return offset
	case cartridge.MirrorSingleScreen0:
		return offset
	case cartridge.MirrorSingleScreen1:
		return 0x400 + offset
	default:
		return offset
	}
}

func (pm *ppuMemory) paletteIndex(address uint16) uint16 {
	index := (address - 0x3F00) & 0x1F
	if index == 0x10 || index == 0x14 || index == 0x18 || index == 0x1C {
		index &= 0x0F
	}
	return index
}

func (pm *ppuMemory) readPalette(address uint16) uint8 {
	return pm.paletteRAM[pm.paletteIndex(address)]
}

func (pm *ppuMemory) writePalette(address uint16, value uint8) {
	pm.paletteRAM[pm.paletteIndex(address)] = value
}

// SystemBus owns CPU RAM, wires the CPU/PPU/APU/input components
// together, and drives them tick-for-tick: one CPU Step advances the PPU
// three dots and the APU one cycle per CPU cycle consumed, with OAM DMA
// modeled as CPU-stall cycles rather than an instantaneous copy.
type SystemBus struct {
	CPU   *cpu.CPU
	PPU   *ppu.PPU
	APU   *apu.APU
	Input *input.InputState

	ram     [0x800]uint8
	ppuMem  *ppuMemory
	cart    Cartridge

	dmaSuspendCycles uint64
	dmaInProgress    bool
	nmiPending       bool

	cpuCycles  uint64
	frameCount uint64
}

// New creates a system bus with no cartridge loaded. LoadCartridge must
// be called before Step produces meaningful execution.
func New() *SystemBus {
	b := &SystemBus{
		PPU:    ppu.New(),
		APU:    apu.New(),
		Input:  input.NewInputState(),
		ppuMem: newPPUMemory(),
	}

	b.CPU = cpu.New(b)
	b.PPU.SetMemory(b.ppuMem)
	b.PPU.SetNMICallback(b.triggerNMI)
	b.PPU.SetFrameCompleteCallback(b.handleFrameComplete)

	b.Reset()
	return b
}

// LoadCartridge installs a cartridge and resets every component so
// execution starts cleanly from the reset vector.
func (b *SystemBus) LoadCartridge(cart Cartridge) {
	b.cart = cart
	b.ppuMem.cart = cart
	b.Reset()
}

// Reset resets all components and bus-owned timing state. RAM and VRAM
// contents are left untouched, matching real hardware: reset does not
// clear memory.
func (b *SystemBus) Reset() {
	b.CPU.Reset()
	b.PPU.Reset()
	b.APU.Reset()
	b.Input.Reset()

	b.cpuCycles = 0
	b.frameCount = 0
	b.dmaSuspendCycles = 0
	b.dmaInProgress = false
	b.nmiPending = false
}

func (b *SystemBus) triggerNMI() {
	b.nmiPending = true
}

func (b *SystemBus) handleFrameComplete() {
	b.frameCount = b.PPU.FrameCount()
}

// Read implements cpu.MemoryInterface: the CPU's view of the full
// $0000-$FFFF address space.
func (b *SystemBus) Read(address uint16) uint8 {
	switch {
	case address < 0x2000:
		return b.ram[address&0x07FF]
	case address < 0x4000:
		return b.PPU.ReadRegister(0x2000 + (address & 0x0007))
	case address < 0x4020:
		switch address {
		case 0x4015:
			return b.APU.ReadStatus()
		case 0x4016, 0x4017:
			return b.Input.Read(address)
		default:
			return 0
		}
	case address >= 0x6000 && address < 0x8000:
		if b.cart != nil {
			return b.cart.ReadPRG(address)
		}
		return 0
	case address < 0x8000:
		return 0
	default:
		if b.cart != nil {
			return b.cart.ReadPRG(address)
		}
		return 0
	}
}

// Write implements cpu.MemoryInterface: the CPU's view of the full
// $0000-$FFFF address space.
func (b *SystemBus) Write(address uint16, value uint8) {
	switch {
	case address < 0x2000:
		b.ram[address&0x07FF] = value
	case address < 0x4000:
		b.PPU.WriteRegister(0x2000+(address&0x0007), value)
	case address < 0x4020:
		switch address {
		case 0x4014:
			b.triggerOAMDMA(value)
		case 0x4016:
			b.Input.Write(address, value)
		case 0x4015, 0x4017:
			b.APU.WriteRegister(address, value)
		default:
			if address >= 0x4000 && address <= 0x4013 {
				b.APU.WriteRegister(address, value)
			}
		}
	case address >= 0x6000 && address < 0x8000:
		if b.cart != nil {
			b.cart.WritePRG(address, value)
		}
	case address < 0x8000:
		// $4020-$5FFF: cartridge expansion area, unmapped on NROM/MMC1.
	default:
		if b.cart != nil {
			b.cart.WritePRG(address, value)
		}
	}
}

// triggerOAMDMA stalls the CPU for 513 (or 514, on an odd CPU cycle)
// cycles and copies one page of CPU memory into OAM.
func (b *SystemBus) triggerOAMDMA(page uint8) {
	if b.dmaInProgress {
		return
	}

	cycles := uint64(513)
	if b.cpuCycles%2 == 1 {
		cycles = 514
	}
	b.dmaInProgress = true
	b.dmaSuspendCycles = cycles

	base := uint16(page) << 8
	for i := 0; i < 256; i++ {
		b.PPU.WriteOAM(uint8(i), b.Read(base+uint16(i)))
	}
}

// Step executes one CPU instruction (or consumes one DMA-stall cycle)
// and advances the PPU and APU by the matching number of cycles. Returns
// the number of CPU cycles consumed.
func (b *SystemBus) Step() uint64 {
	var cpuCycles uint64

	if b.dmaSuspendCycles > 0 {
		cpuCycles = 1
		b.dmaSuspendCycles--
		if b.dmaSuspendCycles == 0 {
			b.dmaInProgress = false
		}
	} else {
		if b.nmiPending {
			b.CPU.TriggerNMI()
			b.nmiPending = false
		}
		cpuCycles = b.CPU.Step()
		if b.cart != nil {
			b.cart.Tick()
		}
	}

	for i := uint64(0); i < cpuCycles*3; i++ {
		b.PPU.Step()
	}
	for i := uint64(0); i < cpuCycles; i++ {
		b.APU.Step()
	}

	b.cpuCycles += cpuCycles
	return cpuCycles
}

// CycleCount returns the total number of CPU cycles executed since reset.
func (b *SystemBus) CycleCount() uint64 {
	return b.cpuCycles
}

// FrameCount returns the number of frames the PPU has completed.
func (b *SystemBus) FrameCount() uint64 {
	return b.frameCount
}

// FrameBuffer returns the current frame as raw NES palette indices.
func (b *SystemBus) FrameBuffer() [256 * 240]uint8 {
	return b.PPU.FrameBuffer()
}

// IsDMAInProgress reports whether an OAM DMA transfer is in flight.
func (b *SystemBus) IsDMAInProgress() bool {
	return b.dmaInProgress
}

// SetControllerButtons sets all eight button states for controller 1 or 2.
func (b *SystemBus) SetControllerButtons(controller int, buttons [8]bool) {
	switch controller {
	case 1:
		b.Input.SetButtons1(buttons)
	case 2:
		b.Input.SetButtons2(buttons)
	}
}

// Run executes Step in a loop until at least the given number of frames
// have completed.
func (b *SystemBus) Run(frames int) {
	target := b.frameCount + uint64(frames)
	for b.frameCount < target {
		b.Step()
	}
}

// RunCycles executes Step in a loop until at least the given number of
// CPU cycles have been consumed.
func (b *SystemBus) RunCycles(cycles uint64) {
	target := b.cpuCycles + cycles
	for b.cpuCycles < target {
		b.Step()
	}
}
