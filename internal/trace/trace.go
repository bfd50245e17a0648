// Package trace renders CPU instruction snapshots in the nestest log
// format, for diffing emulator execution against known-good reference
// traces.
package trace

import (
	"fmt"
	"strings"

	"gones/internal/cpu"
)

// addressingFormats renders an instruction's operand given its resolved
// argument value; Implied/Accumulator modes print no argument at all.
var addressingFormats = map[cpu.AddressingMode]string{
	cpu.Immediate:        "#$%02X",
	cpu.ZeroPage:         "$%02X",
	cpu.ZeroPageX:        "$%02X,X",
	cpu.ZeroPageY:        "$%02X,Y",
	cpu.Absolute:         "$%04X",
	cpu.AbsoluteX:        "$%04X,X",
	cpu.AbsoluteY:        "$%04X,Y",
	cpu.Indirect:         "($%04X)",
	cpu.IndexedIndirect:  "($%02X,X)",
	cpu.IndirectIndexed:  "($%02X),Y",
	cpu.Relative:         "$%04X",
}

// PPUPosition is the PPU scanline/dot pair to stitch into a trace line.
// The CPU's Snapshot carries no PPU reference, so the caller (internal/app)
// supplies this alongside the Snapshot it wants rendered.
type PPUPosition struct {
	Scanline int
	Dot      int
}

// Formatter renders cpu.Snapshot values as nestest-format trace lines.
type Formatter struct {
	cpu *cpu.CPU
}

// NewFormatter creates a Formatter that resolves opcode mnemonics and
// addressing modes via the given CPU's instruction table.
func NewFormatter(c *cpu.CPU) *Formatter {
	return &Formatter{cpu: c}
}

// Format renders one trace line:
//
//	PC  OP OPERAND OPERAND  MNEMONIC OPERAND_DISASM  A:xx X:xx Y:xx P:xx SP:xx PPU:sss,ddd CYC:nnn
func (f *Formatter) Format(snap cpu.Snapshot, ppu PPUPosition) string {
	var b strings.Builder

	fmt.Fprintf(&b, "%04X  ", snap.PC)

	switch snap.OperandLen {
	case 0:
		fmt.Fprintf(&b, "%02X      ", snap.Opcode)
	case 1:
		fmt.Fprintf(&b, "%02X %02X   ", snap.Opcode, snap.Operand1)
	case 2:
		fmt.Fprintf(&b, "%02X %02X %02X", snap.Opcode, snap.Operand1, snap.Operand2)
	}

	inst, known := f.cpu.Lookup(snap.Opcode)
	name := "???"
	if known {
		name = inst.Name
	}

	b.WriteString("  ")
	b.WriteString(name)
	b.WriteString(" ")

	if known {
		switch inst.Mode {
		case cpu.Accumulator:
			b.WriteString("A")
		case cpu.Implied:
		default:
			arg := f.operandValue(inst.Mode, snap)
			if format, ok := addressingFormats[inst.Mode]; ok {
				fmt.Fprintf(&b, format, arg)
			}
		}
	}

	if pad := 48 - b.Len(); pad > 0 {
		b.WriteString(strings.Repeat(" ", pad))
	}

	fmt.Fprintf(&b, "A:%02X X:%02X Y:%02X P:%02X SP:%02X PPU:%3d,%3d CYC:%d",
		snap.A, snap.X, snap.Y, snap.P, snap.SP, ppu.Scanline, ppu.Dot, snap.CPUCycles)

	return b.String()
}

func (f *Formatter) operandValue(mode cpu.AddressingMode, snap cpu.Snapshot) uint16 {
	switch mode {
	case cpu.Immediate, cpu.ZeroPage, cpu.ZeroPageX, cpu.ZeroPageY,
		cpu.IndexedIndirect, cpu.IndirectIndexed:
		return uint16(snap.Operand1)
	case cpu.Absolute, cpu.AbsoluteX, cpu.AbsoluteY, cpu.Indirect:
		return uint16(snap.Operand1) | uint16(snap.Operand2)<<8
	case cpu.Relative:
		offset := int8(snap.Operand1)
		return uint16(int32(snap.PC) + 2 + int32(offset))
	default:
		return 0
	}
}
