// Package cpu implements the 6502 CPU emulation for the NES.
package cpu

// Addressing modes
type AddressingMode int

const (
	Implied AddressingMode = iota
	Accumulator
	Immediate
	ZeroPage
	ZeroPageX
	ZeroPageY
	Relative
	Absolute
	AbsoluteX
	AbsoluteY
	Indirect
	IndexedIndirect // (zp,X)
	IndirectIndexed // (zp),Y
)

const (
	stackBase = 0x0100

	nFlagMask  = 0x80
	vFlagMask  = 0x40
	unusedMask = 0x20
	bFlagMask  = 0x10
	dFlagMask  = 0x08
	iFlagMask  = 0x04
	zFlagMask  = 0x02
	cFlagMask  = 0x01

	zeroPageMask = 0xFF
	pageMask     = 0xFF00

	nmiVector   = 0xFFFA
	irqVector   = 0xFFFE
	resetVector = 0xFFFC
)

// handlerFunc is the shape every opcode handler shares: resolve its effect
// against an already-decoded effective address, returning any cycles beyond
// the instruction's base cost (extra page-cross or taken-branch cycles).
// Handlers that don't care about pageCrossed (everything but the eight
// branches) simply ignore the argument.
type handlerFunc func(cpu *CPU, address uint16, pageCrossed bool) uint8

// Instruction is one opcode's static metadata plus its dispatch target.
// The Handler field is a Go method expression ((*CPU).lda and friends),
// so the opcode table doubles as the dispatch table — Step never needs a
// second opcode-keyed switch to find out what to call.
type Instruction struct {
	Name   string
	Opcode uint8
	Bytes  uint8
	Cycles uint8
	Mode   AddressingMode
	Handler handlerFunc

	// ExtraOnPageCross marks read-type instructions that cost one more
	// cycle when their indexed/indirect addressing mode crosses a page.
	// Write-type instructions on the same addressing modes (STA abs,X/Y,
	// STA (zp),Y, and the unofficial RMW opcodes) always pay that cycle
	// whether or not the page actually crosses, so their fixed total is
	// baked directly into Cycles instead of being conditional here.
	ExtraOnPageCross bool
}

// CPU represents the 6502 processor used in the NES
type CPU struct {
	A  uint8
	X  uint8
	Y  uint8
	SP uint8
	PC uint16

	C bool
	Z bool
	I bool
	D bool
	B bool
	V bool
	N bool

	memory MemoryInterface

	cycles uint64

	instructions [256]*Instruction

	nmiPending  bool
	irqPending  bool
	nmiPrevious bool

	TraceEnabled bool
	lastSnapshot Snapshot
}

// Snapshot is the CPU-side state captured at the start of a Step call, for
// consumption by internal/trace's nestest-format formatter. PPU scanline/dot
// are not part of it: the CPU has no PPU reference, so the caller
// (internal/app) stitches them in when rendering a trace line.
type Snapshot struct {
	PC         uint16
	Opcode     uint8
	Operand1   uint8
	Operand2   uint8
	OperandLen uint8
	A, X, Y    uint8
	SP         uint8
	P          uint8
	CPUCycles  uint64
}

// LastSnapshot returns the Snapshot captured by the most recent Step call.
// Only meaningful when TraceEnabled is true.
func (cpu *CPU) LastSnapshot() Snapshot {
	return cpu.lastSnapshot
}

// Lookup returns the decoded instruction metadata for an opcode byte, for
// callers (internal/trace) that need the mnemonic and addressing mode a
// Snapshot's raw Opcode byte corresponds to.
func (cpu *CPU) Lookup(opcode uint8) (Instruction, bool) {
	inst := cpu.instructions[opcode]
	if inst == nil {
		return Instruction{}, false
	}
	return *inst, true
}

func (cpu *CPU) captureSnapshot(pc uint16, opcode uint8, instruction *Instruction, cyclesBefore uint64) {
	snap := Snapshot{
		PC:         pc,
		Opcode:     opcode,
		OperandLen: instruction.Bytes - 1,
		A:          cpu.A,
		X:          cpu.X,
		Y:          cpu.Y,
		SP:         cpu.SP,
		P:          cpu.GetStatusByte(),
		CPUCycles:  cyclesBefore,
	}
	if instruction.Bytes >= 2 {
		snap.Operand1 = cpu.memory.Read(pc + 1)
	}
	if instruction.Bytes >= 3 {
		snap.Operand2 = cpu.memory.Read(pc + 2)
	}
	cpu.lastSnapshot = snap
}

// MemoryInterface defines the interface for CPU memory access
type MemoryInterface interface {
	Read(address uint16) uint8
	Write(address uint16, value uint8)
}

// New creates a new CPU instance
func New(memory MemoryInterface) *CPU {
	cpu := &CPU{
		memory: memory,
		SP:     0xFD,
	}
	cpu.loadOpcodeTable()
	return cpu
}

// Reset performs a CPU reset following the 6502's 7-cycle reset sequence:
// 5 dummy bus reads followed by the two vector reads from 0xFFFC-0xFFFD.
func (cpu *CPU) Reset() {
	cpu.A = 0x00
	cpu.X = 0x00
	cpu.Y = 0x00
	cpu.SP = 0xFD

	cpu.C = false
	cpu.Z = false
	cpu.I = true
	cpu.D = false
	cpu.B = true
	cpu.V = false
	cpu.N = false

	for i := 0; i < 5; i++ {
		cpu.memory.Read(cpu.PC)
		cpu.cycles++
	}

	low := uint16(cpu.memory.Read(resetVector))
	high := uint16(cpu.memory.Read(resetVector + 1))
	cpu.PC = (high << 8) | low
	cpu.cycles += 2
}

// Step executes a single CPU instruction and returns cycles taken.
func (cpu *CPU) Step() uint64 {
	cyclesBefore := cpu.cycles
	currentPC := cpu.PC

	opcode := cpu.memory.Read(cpu.PC)
	instruction := cpu.instructions[opcode]

	if instruction == nil {
		// Opcodes with no table entry (the unofficial opcodes not modeled
		// here, e.g. the $x2 jam group) run as a 1-byte, 2-cycle no-op
		// instead of panicking.
		cpu.PC++
		cpu.cycles += 2
		cpu.ProcessPendingInterrupts()
		return cpu.cycles - cyclesBefore
	}

	if cpu.TraceEnabled {
		cpu.captureSnapshot(currentPC, opcode, instruction, cyclesBefore)
	}

	address, pageCrossed := cpu.getOperandAddress(instruction.Mode)
	extraCycles := instruction.Handler(cpu, address, pageCrossed)

	if pageCrossed && instruction.ExtraOnPageCross {
		extraCycles++
	}

	totalCycles := uint64(instruction.Cycles) + uint64(extraCycles)
	cpu.cycles += totalCycles

	// Interrupts are polled once per instruction boundary; any NMI/IRQ
	// service consumes 7 more cycles, folded into this Step's return value
	// since the bus drives PPU ticks from it.
	cpu.ProcessPendingInterrupts()

	return cpu.cycles - cyclesBefore
}

// getOperandAddress returns the effective address for the given addressing
// mode and whether resolving it crossed a page boundary.
func (cpu *CPU) getOperandAddress(mode AddressingMode) (uint16, bool) {
	switch mode {
	case Implied, Accumulator:
		cpu.PC++
		return 0, false

	case Immediate:
		address := cpu.PC + 1
		cpu.PC += 2
		return address, false

	case ZeroPage:
		address := uint16(cpu.memory.Read(cpu.PC + 1))
		cpu.PC += 2
		return address, false

	case ZeroPageX:
		base := cpu.memory.Read(cpu.PC + 1)
		address := uint16((base + cpu.X) & zeroPageMask)
		cpu.PC += 2
		return address, false

	case ZeroPageY:
		base := cpu.memory.Read(cpu.PC + 1)
		address := uint16((base + cpu.Y) & zeroPageMask)
		cpu.PC += 2
		return address, false

	case Relative:
		offset := int8(cpu.memory.Read(cpu.PC + 1))
		oldPC := cpu.PC + 2
		newPC := uint16(int32(oldPC) + int32(offset))
		cpu.PC = oldPC
		return newPC, (oldPC & pageMask) != (newPC & pageMask)

	case Absolute:
		low := uint16(cpu.memory.Read(cpu.PC + 1))
		high := uint16(cpu.memory.Read(cpu.PC + 2))
		cpu.PC += 3
		return (high << 8) | low, false

	case AbsoluteX:
		low := uint16(cpu.memory.Read(cpu.PC + 1))
		high := uint16(cpu.memory.Read(cpu.PC + 2))
		base := (high << 8) | low
		address := base + uint16(cpu.X)
		cpu.PC += 3
		return address, (base & pageMask) != (address & pageMask)

	case AbsoluteY:
		low := uint16(cpu.memory.Read(cpu.PC + 1))
		high := uint16(cpu.memory.Read(cpu.PC + 2))
		base := (high << 8) | low
		address := base + uint16(cpu.Y)
		cpu.PC += 3
		return address, (base & pageMask) != (address & pageMask)

	case Indirect: // JMP only
		lowPtr := uint16(cpu.memory.Read(cpu.PC + 1))
		highPtr := uint16(cpu.memory.Read(cpu.PC + 2))
		ptr := (highPtr << 8) | lowPtr

		var address uint16
		if (ptr & zeroPageMask) == zeroPageMask {
			// Page-wrap bug: the high byte comes from the start of the
			// same page instead of the next page.
			low := uint16(cpu.memory.Read(ptr))
			high := uint16(cpu.memory.Read(ptr & pageMask))
			address = (high << 8) | low
		} else {
			low := uint16(cpu.memory.Read(ptr))
			high := uint16(cpu.memory.Read(ptr + 1))
			address = (high << 8) | low
		}
		cpu.PC += 3
		return address, false

	case IndexedIndirect: // (zp,X)
		base := cpu.memory.Read(cpu.PC + 1)
		ptr := (base + cpu.X) & zeroPageMask
		low := uint16(cpu.memory.Read(uint16(ptr)))
		high := uint16(cpu.memory.Read(uint16((ptr + 1) & zeroPageMask)))
		cpu.PC += 2
		return (high << 8) | low, false

	case IndirectIndexed: // (zp),Y
		ptr := uint16(cpu.memory.Read(cpu.PC + 1))
		low := uint16(cpu.memory.Read(ptr))
		high := uint16(cpu.memory.Read((ptr + 1) & zeroPageMask))
		base := (high << 8) | low
		address := base + uint16(cpu.Y)
		cpu.PC += 2
		return address, (base & pageMask) != (address & pageMask)

	default:
		return 0, false
	}
}

func (cpu *CPU) push(value uint8) {
	cpu.memory.Write(stackBase+uint16(cpu.SP), value)
	cpu.SP--
}

func (cpu *CPU) pop() uint8 {
	cpu.SP++
	return cpu.memory.Read(stackBase + uint16(cpu.SP))
}

func (cpu *CPU) pushWord(value uint16) {
	cpu.push(uint8(value >> 8))
	cpu.push(uint8(value & 0xFF))
}

func (cpu *CPU) popWord() uint16 {
	low := uint16(cpu.pop())
	high := uint16(cpu.pop())
	return (high << 8) | low
}

func (cpu *CPU) setZN(value uint8) {
	cpu.Z = value == 0
	cpu.N = (value & nFlagMask) != 0
}

func (cpu *CPU) handleNMI() {
	cpu.pushWord(cpu.PC)
	status := cpu.GetStatusByte() &^ bFlagMask
	status |= unusedMask
	cpu.push(status)
	cpu.I = true
	low := uint16(cpu.memory.Read(nmiVector))
	high := uint16(cpu.memory.Read(nmiVector + 1))
	cpu.PC = (high << 8) | low
	cpu.cycles += 7
}

func (cpu *CPU) handleIRQ() {
	cpu.pushWord(cpu.PC)
	status := cpu.GetStatusByte() &^ bFlagMask
	status |= unusedMask
	cpu.push(status)
	cpu.I = true
	low := uint16(cpu.memory.Read(irqVector))
	high := uint16(cpu.memory.Read(irqVector + 1))
	cpu.PC = (high << 8) | low
	cpu.cycles += 7
}

// SetNMI sets the NMI line state for edge detection. NMI triggers on a
// falling edge (true -> false transition).
func (cpu *CPU) SetNMI(state bool) {
	if cpu.nmiPrevious && !state {
		cpu.nmiPending = true
	}
	cpu.nmiPrevious = state
}

// SetIRQ sets the IRQ line state.
func (cpu *CPU) SetIRQ(state bool) {
	cpu.irqPending = state
}

// ProcessPendingInterrupts services any pending interrupt. Called after
// each instruction completes.
func (cpu *CPU) ProcessPendingInterrupts() {
	if cpu.nmiPending {
		cpu.nmiPending = false
		cpu.handleNMI()
		return
	}
	if cpu.irqPending && !cpu.I {
		cpu.handleIRQ()
	}
}

// TriggerNMI sets the NMI pending flag directly, bypassing edge detection.
// Used by callers that already know an edge occurred (e.g. PPU vblank start).
func (cpu *CPU) TriggerNMI() {
	cpu.nmiPending = true
}

// TriggerIRQ sets the IRQ pending flag directly. Used by mapper/APU IRQ
// sources that assert a level rather than going through SetIRQ's line state.
func (cpu *CPU) TriggerIRQ() {
	cpu.irqPending = true
}

// GetStatusByte packs the individual flag booleans into a status byte.
func (cpu *CPU) GetStatusByte() uint8 {
	var status uint8
	if cpu.N {
		status |= nFlagMask
	}
	if cpu.V {
		status |= vFlagMask
	}
	status |= unusedMask
	if cpu.B {
		status |= bFlagMask
	}
	if cpu.D {
		status |= dFlagMask
	}
	if cpu.I {
		status |= iFlagMask
	}
	if cpu.Z {
		status |= zFlagMask
	}
	if cpu.C {
		status |= cFlagMask
	}
	return status
}

// SetStatusByte unpacks a status byte into the individual flag booleans.
func (cpu *CPU) SetStatusByte(status uint8) {
	cpu.N = (status & nFlagMask) != 0
	cpu.V = (status & vFlagMask) != 0
	cpu.B = (status & bFlagMask) != 0
	cpu.D = (status & dFlagMask) != 0
	cpu.I = (status & iFlagMask) != 0
	cpu.Z = (status & zFlagMask) != 0
	cpu.C = (status & cFlagMask) != 0
}

// addWithCarry implements the shared core of ADC and SBC: both add the
// carry-in to the accumulator and one other operand, differing only in
// that SBC's operand is the ones-complement of the fetched byte. spec's
// mandated carry convention (C_in = current C, operand = ~M for
// subtraction) falls out of passing value^0xFF in from sbc.
func (cpu *CPU) addWithCarry(operand uint8) {
	carryIn := uint16(0)
	if cpu.C {
		carryIn = 1
	}
	sum := uint16(cpu.A) + uint16(operand) + carryIn
	cpu.V = ((cpu.A^uint8(sum))&nFlagMask) != 0 && ((cpu.A^operand)&nFlagMask) == 0
	cpu.C = sum > 0xFF
	cpu.A = uint8(sum)
	cpu.setZN(cpu.A)
}

func (cpu *CPU) lda(address uint16, _ bool) uint8 {
	cpu.A = cpu.memory.Read(address)
	cpu.setZN(cpu.A)
	return 0
}

func (cpu *CPU) ldx(address uint16, _ bool) uint8 {
	cpu.X = cpu.memory.Read(address)
	cpu.setZN(cpu.X)
	return 0
}

func (cpu *CPU) ldy(address uint16, _ bool) uint8 {
	cpu.Y = cpu.memory.Read(address)
	cpu.setZN(cpu.Y)
	return 0
}

func (cpu *CPU) sta(address uint16, _ bool) uint8 {
	cpu.memory.Write(address, cpu.A)
	return 0
}

func (cpu *CPU) stx(address uint16, _ bool) uint8 {
	cpu.memory.Write(address, cpu.X)
	return 0
}

func (cpu *CPU) sty(address uint16, _ bool) uint8 {
	cpu.memory.Write(address, cpu.Y)
	return 0
}

func (cpu *CPU) adc(address uint16, _ bool) uint8 {
	cpu.addWithCarry(cpu.memory.Read(address))
	return 0
}

func (cpu *CPU) sbc(address uint16, _ bool) uint8 {
	cpu.addWithCarry(cpu.memory.Read(address) ^ 0xFF)
	return 0
}

func (cpu *CPU) and(address uint16, _ bool) uint8 {
	cpu.A &= cpu.memory.Read(address)
	cpu.setZN(cpu.A)
	return 0
}

func (cpu *CPU) ora(address uint16, _ bool) uint8 {
	cpu.A |= cpu.memory.Read(address)
	cpu.setZN(cpu.A)
	return 0
}

func (cpu *CPU) eor(address uint16, _ bool) uint8 {
	cpu.A ^= cpu.memory.Read(address)
	cpu.setZN(cpu.A)
	return 0
}

func (cpu *CPU) asl(address uint16, _ bool) uint8 {
	value := cpu.memory.Read(address)
	cpu.C = (value & 0x80) != 0
	value <<= 1
	cpu.memory.Write(address, value)
	cpu.setZN(value)
	return 0
}

func (cpu *CPU) aslAcc(_ uint16, _ bool) uint8 {
	cpu.C = (cpu.A & 0x80) != 0
	cpu.A <<= 1
	cpu.setZN(cpu.A)
	return 0
}

func (cpu *CPU) lsr(address uint16, _ bool) uint8 {
	value := cpu.memory.Read(address)
	cpu.C = (value & 0x01) != 0
	value >>= 1
	cpu.memory.Write(address, value)
	cpu.setZN(value)
	return 0
}

func (cpu *CPU) lsrAcc(_ uint16, _ bool) uint8 {
	cpu.C = (cpu.A & 0x01) != 0
	cpu.A >>= 1
	cpu.setZN(cpu.A)
	return 0
}

func (cpu *CPU) rol(address uint16, _ bool) uint8 {
	value := cpu.memory.Read(address)
	oldCarry := cpu.C
	cpu.C = (value & 0x80) != 0
	value <<= 1
	if oldCarry {
		value |= 0x01
	}
	cpu.memory.Write(address, value)
	cpu.setZN(value)
	return 0
}

func (cpu *CPU) rolAcc(_ uint16, _ bool) uint8 {
	oldCarry := cpu.C
	cpu.C = (cpu.A & 0x80) != 0
	cpu.A <<= 1
	if oldCarry {
		cpu.A |= 0x01
	}
	cpu.setZN(cpu.A)
	return 0
}

func (cpu *CPU) ror(address uint16, _ bool) uint8 {
	value := cpu.memory.Read(address)
	oldCarry := cpu.C
	cpu.C = (value & 0x01) != 0
	value >>= 1
	if oldCarry {
		value |= 0x80
	}
	cpu.memory.Write(address, value)
	cpu.setZN(value)
	return 0
}

func (cpu *CPU) rorAcc(_ uint16, _ bool) uint8 {
	oldCarry := cpu.C
	cpu.C = (cpu.A & 0x01) != 0
	cpu.A >>= 1
	if oldCarry {
		cpu.A |= 0x80
	}
	cpu.setZN(cpu.A)
	return 0
}

func (cpu *CPU) compare(register, value uint8) {
	cpu.C = register >= value
	cpu.setZN(register - value)
}

func (cpu *CPU) cmp(address uint16, _ bool) uint8 {
	cpu.compare(cpu.A, cpu.memory.Read(address))
	return 0
}

func (cpu *CPU) cpx(address uint16, _ bool) uint8 {
	cpu.compare(cpu.X, cpu.memory.Read(address))
	return 0
}

func (cpu *CPU) cpy(address uint16, _ bool) uint8 {
	cpu.compare(cpu.Y, cpu.memory.Read(address))
	return 0
}

func (cpu *CPU) inc(address uint16, _ bool) uint8 {
	value := cpu.memory.Read(address) + 1
	cpu.memory.Write(address, value)
	cpu.setZN(value)
	return 0
}

func (cpu *CPU) dec(address uint16, _ bool) uint8 {
	value := cpu.memory.Read(address) - 1
	cpu.memory.Write(address, value)
	cpu.setZN(value)
	return 0
}

func (cpu *CPU) inx(_ uint16, _ bool) uint8 {
	cpu.X++
	cpu.setZN(cpu.X)
	return 0
}

func (cpu *CPU) dex(_ uint16, _ bool) uint8 {
	cpu.X--
	cpu.setZN(cpu.X)
	return 0
}

func (cpu *CPU) iny(_ uint16, _ bool) uint8 {
	cpu.Y++
	cpu.setZN(cpu.Y)
	return 0
}

func (cpu *CPU) dey(_ uint16, _ bool) uint8 {
	cpu.Y--
	cpu.setZN(cpu.Y)
	return 0
}

func (cpu *CPU) tax(_ uint16, _ bool) uint8 {
	cpu.X = cpu.A
	cpu.setZN(cpu.X)
	return 0
}

func (cpu *CPU) txa(_ uint16, _ bool) uint8 {
	cpu.A = cpu.X
	cpu.setZN(cpu.A)
	return 0
}

func (cpu *CPU) tay(_ uint16, _ bool) uint8 {
	cpu.Y = cpu.A
	cpu.setZN(cpu.Y)
	return 0
}

func (cpu *CPU) tya(_ uint16, _ bool) uint8 {
	cpu.A = cpu.Y
	cpu.setZN(cpu.A)
	return 0
}

func (cpu *CPU) tsx(_ uint16, _ bool) uint8 {
	cpu.X = cpu.SP
	cpu.setZN(cpu.X)
	return 0
}

func (cpu *CPU) txs(_ uint16, _ bool) uint8 {
	cpu.SP = cpu.X
	return 0
}

func (cpu *CPU) pha(_ uint16, _ bool) uint8 {
	cpu.push(cpu.A)
	return 0
}

func (cpu *CPU) pla(_ uint16, _ bool) uint8 {
	cpu.A = cpu.pop()
	cpu.setZN(cpu.A)
	return 0
}

func (cpu *CPU) php(_ uint16, _ bool) uint8 {
	cpu.push(cpu.GetStatusByte() | bFlagMask)
	return 0
}

func (cpu *CPU) plp(_ uint16, _ bool) uint8 {
	cpu.SetStatusByte(cpu.pop())
	return 0
}

func (cpu *CPU) clc(_ uint16, _ bool) uint8 { cpu.C = false; return 0 }
func (cpu *CPU) sec(_ uint16, _ bool) uint8 { cpu.C = true; return 0 }
func (cpu *CPU) cli(_ uint16, _ bool) uint8 { cpu.I = false; return 0 }
func (cpu *CPU) sei(_ uint16, _ bool) uint8 { cpu.I = true; return 0 }
func (cpu *CPU) clv(_ uint16, _ bool) uint8 { cpu.V = false; return 0 }
func (cpu *CPU) cld(_ uint16, _ bool) uint8 { cpu.D = false; return 0 }
func (cpu *CPU) sed(_ uint16, _ bool) uint8 { cpu.D = true; return 0 }

func (cpu *CPU) jmp(address uint16, _ bool) uint8 {
	cpu.PC = address
	return 0
}

func (cpu *CPU) jsr(address uint16, _ bool) uint8 {
	cpu.pushWord(cpu.PC - 1)
	cpu.PC = address
	return 0
}

func (cpu *CPU) rts(_ uint16, _ bool) uint8 {
	cpu.PC = cpu.popWord() + 1
	return 0
}

func (cpu *CPU) rti(_ uint16, _ bool) uint8 {
	cpu.SetStatusByte(cpu.pop())
	cpu.PC = cpu.popWord()
	return 0
}

// branch centralizes the eight conditional branches: take the branch if
// taken is true, reporting the extra cycle(s) the taken/page-cross timing
// rule requires.
func (cpu *CPU) branch(taken bool, address uint16, pageCrossed bool) uint8 {
	if !taken {
		return 0
	}
	cpu.PC = address
	if pageCrossed {
		return 2
	}
	return 1
}

func (cpu *CPU) bcc(address uint16, pageCrossed bool) uint8 { return cpu.branch(!cpu.C, address, pageCrossed) }
func (cpu *CPU) bcs(address uint16, pageCrossed bool) uint8 { return cpu.branch(cpu.C, address, pageCrossed) }
func (cpu *CPU) bne(address uint16, pageCrossed bool) uint8 { return cpu.branch(!cpu.Z, address, pageCrossed) }
func (cpu *CPU) beq(address uint16, pageCrossed bool) uint8 { return cpu.branch(cpu.Z, address, pageCrossed) }
func (cpu *CPU) bpl(address uint16, pageCrossed bool) uint8 { return cpu.branch(!cpu.N, address, pageCrossed) }
func (cpu *CPU) bmi(address uint16, pageCrossed bool) uint8 { return cpu.branch(cpu.N, address, pageCrossed) }
func (cpu *CPU) bvc(address uint16, pageCrossed bool) uint8 { return cpu.branch(!cpu.V, address, pageCrossed) }
func (cpu *CPU) bvs(address uint16, pageCrossed bool) uint8 { return cpu.branch(cpu.V, address, pageCrossed) }

func (cpu *CPU) bit(address uint16, _ bool) uint8 {
	value := cpu.memory.Read(address)
	cpu.N = (value & nFlagMask) != 0
	cpu.V = (value & vFlagMask) != 0
	cpu.Z = (cpu.A & value) == 0
	return 0
}

func (cpu *CPU) nop(_ uint16, _ bool) uint8 {
	return 0
}

// brk pushes PC+2 and status (B=1), then vectors through IRQ — unless an
// NMI is pending at the moment the vector would be fetched, in which case
// the NMI hijacks it: BRK's push already happened, but the CPU jumps to
// the NMI vector instead and the pending NMI is considered serviced, so
// ProcessPendingInterrupts won't also fire it right after this Step.
func (cpu *CPU) brk(_ uint16, _ bool) uint8 {
	cpu.PC++ // the padding byte after the BRK opcode
	cpu.pushWord(cpu.PC)
	cpu.push(cpu.GetStatusByte() | bFlagMask)
	cpu.I = true

	vector := uint16(irqVector)
	if cpu.nmiPending {
		vector = nmiVector
		cpu.nmiPending = false
	}
	low := uint16(cpu.memory.Read(vector))
	high := uint16(cpu.memory.Read(vector + 1))
	cpu.PC = (high << 8) | low
	return 0
}

// --- Unofficial opcodes: real read-modify-write combinations, not NOP
// stand-ins (the unofficial *NOP* opcodes are genuinely nop below).

func (cpu *CPU) lax(address uint16, _ bool) uint8 {
	cpu.A = cpu.memory.Read(address)
	cpu.X = cpu.A
	cpu.setZN(cpu.A)
	return 0
}

func (cpu *CPU) sax(address uint16, _ bool) uint8 {
	cpu.memory.Write(address, cpu.A&cpu.X)
	return 0
}

func (cpu *CPU) dcp(address uint16, _ bool) uint8 {
	value := cpu.memory.Read(address) - 1
	cpu.memory.Write(address, value)
	cpu.compare(cpu.A, value)
	return 0
}

func (cpu *CPU) isb(address uint16, pageCrossed bool) uint8 {
	value := cpu.memory.Read(address) + 1
	cpu.memory.Write(address, value)
	return cpu.sbc(address, pageCrossed)
}

func (cpu *CPU) slo(address uint16, _ bool) uint8 {
	value := cpu.memory.Read(address)
	cpu.C = (value & 0x80) != 0
	value <<= 1
	cpu.memory.Write(address, value)
	cpu.A |= value
	cpu.setZN(cpu.A)
	return 0
}

func (cpu *CPU) rla(address uint16, _ bool) uint8 {
	value := cpu.memory.Read(address)
	oldCarry := cpu.C
	cpu.C = (value & 0x80) != 0
	value <<= 1
	if oldCarry {
		value |= 0x01
	}
	cpu.memory.Write(address, value)
	cpu.A &= value
	cpu.setZN(cpu.A)
	return 0
}

func (cpu *CPU) sre(address uint16, _ bool) uint8 {
	value := cpu.memory.Read(address)
	cpu.C = (value & 0x01) != 0
	value >>= 1
	cpu.memory.Write(address, value)
	cpu.A ^= value
	cpu.setZN(cpu.A)
	return 0
}

func (cpu *CPU) rra(address uint16, pageCrossed bool) uint8 {
	value := cpu.memory.Read(address)
	oldCarry := cpu.C
	cpu.C = (value & 0x01) != 0
	value >>= 1
	if oldCarry {
		value |= 0x80
	}
	cpu.memory.Write(address, value)
	return cpu.adc(address, pageCrossed)
}

// opcodeTable is the full 256-entry (minus true gaps) dispatch table,
// shared read-only across every CPU instance: each entry pairs an
// opcode's addressing-mode/cycle metadata with the method expression that
// implements it, so loadOpcodeTable only needs to copy pointers in.
var opcodeTable = buildOpcodeTable()

func buildOpcodeTable() [256]*Instruction {
	var table [256]*Instruction
	add := func(opcode uint8, name string, bytes, cycles uint8, mode AddressingMode, handler handlerFunc, extraOnPageCross ...bool) {
		inst := &Instruction{Name: name, Opcode: opcode, Bytes: bytes, Cycles: cycles, Mode: mode, Handler: handler}
		if len(extraOnPageCross) >= 1 {
			inst.ExtraOnPageCross = extraOnPageCross[0]
		}
		table[opcode] = inst
	}

	// Load/Store
	add(0xA9, "LDA", 2, 2, Immediate, (*CPU).lda)
	add(0xA5, "LDA", 2, 3, ZeroPage, (*CPU).lda)
	add(0xB5, "LDA", 2, 4, ZeroPageX, (*CPU).lda)
	add(0xAD, "LDA", 3, 4, Absolute, (*CPU).lda)
	add(0xBD, "LDA", 3, 4, AbsoluteX, (*CPU).lda, true)
	add(0xB9, "LDA", 3, 4, AbsoluteY, (*CPU).lda, true)
	add(0xA1, "LDA", 2, 6, IndexedIndirect, (*CPU).lda)
	add(0xB1, "LDA", 2, 5, IndirectIndexed, (*CPU).lda, true)

	add(0xA2, "LDX", 2, 2, Immediate, (*CPU).ldx)
	add(0xA6, "LDX", 2, 3, ZeroPage, (*CPU).ldx)
	add(0xB6, "LDX", 2, 4, ZeroPageY, (*CPU).ldx)
	add(0xAE, "LDX", 3, 4, Absolute, (*CPU).ldx)
	add(0xBE, "LDX", 3, 4, AbsoluteY, (*CPU).ldx, true)

	add(0xA0, "LDY", 2, 2, Immediate, (*CPU).ldy)
	add(0xA4, "LDY", 2, 3, ZeroPage, (*CPU).ldy)
	add(0xB4, "LDY", 2, 4, ZeroPageX, (*CPU).ldy)
	add(0xAC, "LDY", 3, 4, Absolute, (*CPU).ldy)
	add(0xBC, "LDY", 3, 4, AbsoluteX, (*CPU).ldy, true)

	add(0x85, "STA", 2, 3, ZeroPage, (*CPU).sta)
	add(0x95, "STA", 2, 4, ZeroPageX, (*CPU).sta)
	add(0x8D, "STA", 3, 4, Absolute, (*CPU).sta)
	add(0x9D, "STA", 3, 5, AbsoluteX, (*CPU).sta)
	add(0x99, "STA", 3, 5, AbsoluteY, (*CPU).sta)
	add(0x81, "STA", 2, 6, IndexedIndirect, (*CPU).sta)
	add(0x91, "STA", 2, 6, IndirectIndexed, (*CPU).sta)

	add(0x86, "STX", 2, 3, ZeroPage, (*CPU).stx)
	add(0x96, "STX", 2, 4, ZeroPageY, (*CPU).stx)
	add(0x8E, "STX", 3, 4, Absolute, (*CPU).stx)

	add(0x84, "STY", 2, 3, ZeroPage, (*CPU).sty)
	add(0x94, "STY", 2, 4, ZeroPageX, (*CPU).sty)
	add(0x8C, "STY", 3, 4, Absolute, (*CPU).sty)

	// Arithmetic
	add(0x69, "ADC", 2, 2, Immediate, (*CPU).adc)
	add(0x65, "ADC", 2, 3, ZeroPage, (*CPU).adc)
	add(0x75, "ADC", 2, 4, ZeroPageX, (*CPU).adc)
	add(0x6D, "ADC", 3, 4, Absolute, (*CPU).adc)
	add(0x7D, "ADC", 3, 4, AbsoluteX, (*CPU).adc, true)
	add(0x79, "ADC", 3, 4, AbsoluteY, (*CPU).adc, true)
	add(0x61, "ADC", 2, 6, IndexedIndirect, (*CPU).adc)
	add(0x71, "ADC", 2, 5, IndirectIndexed, (*CPU).adc, true)

	add(0xE9, "SBC", 2, 2, Immediate, (*CPU).sbc)
	add(0xE5, "SBC", 2, 3, ZeroPage, (*CPU).sbc)
	add(0xF5, "SBC", 2, 4, ZeroPageX, (*CPU).sbc)
	add(0xED, "SBC", 3, 4, Absolute, (*CPU).sbc)
	add(0xFD, "SBC", 3, 4, AbsoluteX, (*CPU).sbc, true)
	add(0xF9, "SBC", 3, 4, AbsoluteY, (*CPU).sbc, true)
	add(0xE1, "SBC", 2, 6, IndexedIndirect, (*CPU).sbc)
	add(0xF1, "SBC", 2, 5, IndirectIndexed, (*CPU).sbc, true)
	add(0xEB, "SBC", 2, 2, Immediate, (*CPU).sbc) // unofficial duplicate

	// Logical
	add(0x29, "AND", 2, 2, Immediate, (*CPU).and)
	add(0x25, "AND", 2, 3, ZeroPage, (*CPU).and)
	add(0x35, "AND", 2, 4, ZeroPageX, (*CPU).and)
	add(0x2D, "AND", 3, 4, Absolute, (*CPU).and)
	add(0x3D, "AND", 3, 4, AbsoluteX, (*CPU).and, true)
	add(0x39, "AND", 3, 4, AbsoluteY, (*CPU).and, true)
	add(0x21, "AND", 2, 6, IndexedIndirect, (*CPU).and)
	add(0x31, "AND", 2, 5, IndirectIndexed, (*CPU).and, true)

	add(0x09, "ORA", 2, 2, Immediate, (*CPU).ora)
	add(0x05, "ORA", 2, 3, ZeroPage, (*CPU).ora)
	add(0x15, "ORA", 2, 4, ZeroPageX, (*CPU).ora)
	add(0x0D, "ORA", 3, 4, Absolute, (*CPU).ora)
	add(0x1D, "ORA", 3, 4, AbsoluteX, (*CPU).ora, true)
	add(0x19, "ORA", 3, 4, AbsoluteY, (*CPU).ora, true)
	add(0x01, "ORA", 2, 6, IndexedIndirect, (*CPU).ora)
	add(0x11, "ORA", 2, 5, IndirectIndexed, (*CPU).ora, true)

	add(0x49, "EOR", 2, 2, Immediate, (*CPU).eor)
	add(0x45, "EOR", 2, 3, ZeroPage, (*CPU).eor)
	add(0x55, "EOR", 2, 4, ZeroPageX, (*CPU).eor)
	add(0x4D, "EOR", 3, 4, Absolute, (*CPU).eor)
	add(0x5D, "EOR", 3, 4, AbsoluteX, (*CPU).eor, true)
	add(0x59, "EOR", 3, 4, AbsoluteY, (*CPU).eor, true)
	add(0x41, "EOR", 2, 6, IndexedIndirect, (*CPU).eor)
	add(0x51, "EOR", 2, 5, IndirectIndexed, (*CPU).eor, true)

	// Shift/rotate
	add(0x0A, "ASL", 1, 2, Accumulator, (*CPU).aslAcc)
	add(0x06, "ASL", 2, 5, ZeroPage, (*CPU).asl)
	add(0x16, "ASL", 2, 6, ZeroPageX, (*CPU).asl)
	add(0x0E, "ASL", 3, 6, Absolute, (*CPU).asl)
	add(0x1E, "ASL", 3, 7, AbsoluteX, (*CPU).asl)

	add(0x4A, "LSR", 1, 2, Accumulator, (*CPU).lsrAcc)
	add(0x46, "LSR", 2, 5, ZeroPage, (*CPU).lsr)
	add(0x56, "LSR", 2, 6, ZeroPageX, (*CPU).lsr)
	add(0x4E, "LSR", 3, 6, Absolute, (*CPU).lsr)
	add(0x5E, "LSR", 3, 7, AbsoluteX, (*CPU).lsr)

	add(0x2A, "ROL", 1, 2, Accumulator, (*CPU).rolAcc)
	add(0x26, "ROL", 2, 5, ZeroPage, (*CPU).rol)
	add(0x36, "ROL", 2, 6, ZeroPageX, (*CPU).rol)
	add(0x2E, "ROL", 3, 6, Absolute, (*CPU).rol)
	add(0x3E, "ROL", 3, 7, AbsoluteX, (*CPU).rol)

	add(0x6A, "ROR", 1, 2, Accumulator, (*CPU).rorAcc)
	add(0x66, "ROR", 2, 5, ZeroPage, (*CPU).ror)
	add(0x76, "ROR", 2, 6, ZeroPageX, (*CPU).ror)
	add(0x6E, "ROR", 3, 6, Absolute, (*CPU).ror)
	add(0x7E, "ROR", 3, 7, AbsoluteX, (*CPU).ror)

	// Comparisons
	add(0xC9, "CMP", 2, 2, Immediate, (*CPU).cmp)
	add(0xC5, "CMP", 2, 3, ZeroPage, (*CPU).cmp)
	add(0xD5, "CMP", 2, 4, ZeroPageX, (*CPU).cmp)
	add(0xCD, "CMP", 3, 4, Absolute, (*CPU).cmp)
	add(0xDD, "CMP", 3, 4, AbsoluteX, (*CPU).cmp, true)
	add(0xD9, "CMP", 3, 4, AbsoluteY, (*CPU).cmp, true)
	add(0xC1, "CMP", 2, 6, IndexedIndirect, (*CPU).cmp)
	add(0xD1, "CMP", 2, 5, IndirectIndexed, (*CPU).cmp, true)

	add(0xE0, "CPX", 2, 2, Immediate, (*CPU).cpx)
	add(0xE4, "CPX", 2, 3, ZeroPage, (*CPU).cpx)
	add(0xEC, "CPX", 3, 4, Absolute, (*CPU).cpx)

	add(0xC0, "CPY", 2, 2, Immediate, (*CPU).cpy)
	add(0xC4, "CPY", 2, 3, ZeroPage, (*CPU).cpy)
	add(0xCC, "CPY", 3, 4, Absolute, (*CPU).cpy)

	// Increment/decrement
	add(0xE6, "INC", 2, 5, ZeroPage, (*CPU).inc)
	add(0xF6, "INC", 2, 6, ZeroPageX, (*CPU).inc)
	add(0xEE, "INC", 3, 6, Absolute, (*CPU).inc)
	add(0xFE, "INC", 3, 7, AbsoluteX, (*CPU).inc)

	add(0xC6, "DEC", 2, 5, ZeroPage, (*CPU).dec)
	add(0xD6, "DEC", 2, 6, ZeroPageX, (*CPU).dec)
	add(0xCE, "DEC", 3, 6, Absolute, (*CPU).dec)
	add(0xDE, "DEC", 3, 7, AbsoluteX, (*CPU).dec)

	add(0xE8, "INX", 1, 2, Implied, (*CPU).inx)
	add(0xCA, "DEX", 1, 2, Implied, (*CPU).dex)
	add(0xC8, "INY", 1, 2, Implied, (*CPU).iny)
	add(0x88, "DEY", 1, 2, Implied, (*CPU).dey)

	// Transfers
	add(0xAA, "TAX", 1, 2, Implied, (*CPU).tax)
	add(0x8A, "TXA", 1, 2, Implied, (*CPU).txa)
	add(0xA8, "TAY", 1, 2, Implied, (*CPU).tay)
	add(0x98, "TYA", 1, 2, Implied, (*CPU).tya)
	add(0xBA, "TSX", 1, 2, Implied, (*CPU).tsx)
	add(0x9A, "TXS", 1, 2, Implied, (*CPU).txs)

	// Stack
	add(0x48, "PHA", 1, 3, Implied, (*CPU).pha)
	add(0x68, "PLA", 1, 4, Implied, (*CPU).pla)
	add(0x08, "PHP", 1, 3, Implied, (*CPU).php)
	add(0x28, "PLP", 1, 4, Implied, (*CPU).plp)

	// Flags
	add(0x18, "CLC", 1, 2, Implied, (*CPU).clc)
	add(0x38, "SEC", 1, 2, Implied, (*CPU).sec)
	add(0x58, "CLI", 1, 2, Implied, (*CPU).cli)
	add(0x78, "SEI", 1, 2, Implied, (*CPU).sei)
	add(0xB8, "CLV", 1, 2, Implied, (*CPU).clv)
	add(0xD8, "CLD", 1, 2, Implied, (*CPU).cld)
	add(0xF8, "SED", 1, 2, Implied, (*CPU).sed)

	// Control flow
	add(0x4C, "JMP", 3, 3, Absolute, (*CPU).jmp)
	add(0x6C, "JMP", 3, 5, Indirect, (*CPU).jmp)
	add(0x20, "JSR", 3, 6, Absolute, (*CPU).jsr)
	add(0x60, "RTS", 1, 6, Implied, (*CPU).rts)
	add(0x40, "RTI", 1, 6, Implied, (*CPU).rti)

	// Branches
	add(0x90, "BCC", 2, 2, Relative, (*CPU).bcc)
	add(0xB0, "BCS", 2, 2, Relative, (*CPU).bcs)
	add(0xD0, "BNE", 2, 2, Relative, (*CPU).bne)
	add(0xF0, "BEQ", 2, 2, Relative, (*CPU).beq)
	add(0x10, "BPL", 2, 2, Relative, (*CPU).bpl)
	add(0x30, "BMI", 2, 2, Relative, (*CPU).bmi)
	add(0x50, "BVC", 2, 2, Relative, (*CPU).bvc)
	add(0x70, "BVS", 2, 2, Relative, (*CPU).bvs)

	// Misc
	add(0x24, "BIT", 2, 3, ZeroPage, (*CPU).bit)
	add(0x2C, "BIT", 3, 4, Absolute, (*CPU).bit)
	add(0xEA, "NOP", 1, 2, Implied, (*CPU).nop)
	add(0x00, "BRK", 1, 7, Implied, (*CPU).brk)

	// Unofficial NOPs
	for _, opcode := range []uint8{0x1A, 0x3A, 0x5A, 0x7A, 0xDA, 0xFA} {
		add(opcode, "NOP", 1, 2, Implied, (*CPU).nop)
	}
	for _, opcode := range []uint8{0x80, 0x82, 0x89, 0xC2, 0xE2} {
		add(opcode, "NOP", 2, 2, Immediate, (*CPU).nop)
	}
	for _, opcode := range []uint8{0x04, 0x44, 0x64} {
		add(opcode, "NOP", 2, 3, ZeroPage, (*CPU).nop)
	}
	for _, opcode := range []uint8{0x14, 0x34, 0x54, 0x74, 0xD4, 0xF4} {
		add(opcode, "NOP", 2, 4, ZeroPageX, (*CPU).nop)
	}
	add(0x0C, "NOP", 3, 4, Absolute, (*CPU).nop)
	for _, opcode := range []uint8{0x1C, 0x3C, 0x5C, 0x7C, 0xDC, 0xFC} {
		add(opcode, "NOP", 3, 4, AbsoluteX, (*CPU).nop, true)
	}

	// Unofficial read-modify-write opcodes
	add(0xA7, "LAX", 2, 3, ZeroPage, (*CPU).lax)
	add(0xB7, "LAX", 2, 4, ZeroPageY, (*CPU).lax)
	add(0xAF, "LAX", 3, 4, Absolute, (*CPU).lax)
	add(0xBF, "LAX", 3, 4, AbsoluteY, (*CPU).lax, true)
	add(0xA3, "LAX", 2, 6, IndexedIndirect, (*CPU).lax)
	add(0xB3, "LAX", 2, 5, IndirectIndexed, (*CPU).lax, true)

	add(0x87, "SAX", 2, 3, ZeroPage, (*CPU).sax)
	add(0x97, "SAX", 2, 4, ZeroPageY, (*CPU).sax)
	add(0x8F, "SAX", 3, 4, Absolute, (*CPU).sax)
	add(0x83, "SAX", 2, 6, IndexedIndirect, (*CPU).sax)

	add(0xC7, "DCP", 2, 5, ZeroPage, (*CPU).dcp)
	add(0xD7, "DCP", 2, 6, ZeroPageX, (*CPU).dcp)
	add(0xCF, "DCP", 3, 6, Absolute, (*CPU).dcp)
	add(0xDF, "DCP", 3, 7, AbsoluteX, (*CPU).dcp)
	add(0xDB, "DCP", 3, 7, AbsoluteY, (*CPU).dcp)
	add(0xC3, "DCP", 2, 8, IndexedIndirect, (*CPU).dcp)
	add(0xD3, "DCP", 2, 8, IndirectIndexed, (*CPU).dcp)

	add(0xE7, "ISB", 2, 5, ZeroPage, (*CPU).isb)
	add(0xF7, "ISB", 2, 6, ZeroPageX, (*CPU).isb)
	add(0xEF, "ISB", 3, 6, Absolute, (*CPU).isb)
	add(0xFF, "ISB", 3, 7, AbsoluteX, (*CPU).isb)
	add(0xFB, "ISB", 3, 7, AbsoluteY, (*CPU).isb)
	add(0xE3, "ISB", 2, 8, IndexedIndirect, (*CPU).isb)
	add(0xF3, "ISB", 2, 8, IndirectIndexed, (*CPU).isb)

	add(0x07, "SLO", 2, 5, ZeroPage, (*CPU).slo)
	add(0x17, "SLO", 2, 6, ZeroPageX, (*CPU).slo)
	add(0x0F, "SLO", 3, 6, Absolute, (*CPU).slo)
	add(0x1F, "SLO", 3, 7, AbsoluteX, (*CPU).slo)
	add(0x1B, "SLO", 3, 7, AbsoluteY, (*CPU).slo)
	add(0x03, "SLO", 2, 8, IndexedIndirect, (*CPU).slo)
	add(0x13, "SLO", 2, 8, IndirectIndexed, (*CPU).slo)

	add(0x27, "RLA", 2, 5, ZeroPage, (*CPU).rla)
	add(0x37, "RLA", 2, 6, ZeroPageX, (*CPU).rla)
	add(0x2F, "RLA", 3, 6, Absolute, (*CPU).rla)
	add(0x3F, "RLA", 3, 7, AbsoluteX, (*CPU).rla)
	add(0x3B, "RLA", 3, 7, AbsoluteY, (*CPU).rla)
	add(0x23, "RLA", 2, 8, IndexedIndirect, (*CPU).rla)
	add(0x33, "RLA", 2, 8, IndirectIndexed, (*CPU).rla)

	add(0x47, "SRE", 2, 5, ZeroPage, (*CPU).sre)
	add(0x57, "SRE", 2, 6, ZeroPageX, (*CPU).sre)
	add(0x4F, "SRE", 3, 6, Absolute, (*CPU).sre)
	add(0x5F, "SRE", 3, 7, AbsoluteX, (*CPU).sre)
	add(0x5B, "SRE", 3, 7, AbsoluteY, (*CPU).sre)
	add(0x43, "SRE", 2, 8, IndexedIndirect, (*CPU).sre)
	add(0x53, "SRE", 2, 8, IndirectIndexed, (*CPU).sre)

	add(0x67, "RRA", 2, 5, ZeroPage, (*CPU).rra)
	add(0x77, "RRA", 2, 6, ZeroPageX, (*CPU).rra)
	add(0x6F, "RRA", 3, 6, Absolute, (*CPU).rra)
	add(0x7F, "RRA", 3, 7, AbsoluteX, (*CPU).rra)
	add(0x7B, "RRA", 3, 7, AbsoluteY, (*CPU).rra)
	add(0x63, "RRA", 2, 8, IndexedIndirect, (*CPU).rra)
	add(0x73, "RRA", 2, 8, IndirectIndexed, (*CPU).rra)

	return table
}

// loadOpcodeTable points this CPU's dispatch table at the shared,
// package-level opcodeTable built once at init time.
func (cpu *CPU) loadOpcodeTable() {
	cpu.instructions = opcodeTable
}
