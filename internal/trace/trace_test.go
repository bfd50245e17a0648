package trace

import (
	"strings"
	"testing"

	"gones/internal/cpu"
)

type mockMemory struct {
	data [0x10000]uint8
}

func (m *mockMemory) Read(address uint16) uint8        { return m.data[address] }
func (m *mockMemory) Write(address uint16, value uint8) { m.data[address] = value }

func TestFormatRendersImmediateLDA(t *testing.T) {
	mem := &mockMemory{}
	mem.data[0x8000] = 0xA9 // LDA #$42
	mem.data[0x8001] = 0x42
	c := cpu.New(mem)
	c.TraceEnabled = true
	c.PC = 0x8000
	c.Step()

	f := NewFormatter(c)
	line := f.Format(c.LastSnapshot(), PPUPosition{Scanline: 12, Dot: 34})

	if !strings.HasPrefix(line, "8000  A9 42   ") {
		t.Fatalf("unexpected column layout: %q", line)
	}
	if !strings.Contains(line, "LDA #$42") {
		t.Fatalf("expected LDA mnemonic and immediate operand, got %q", line)
	}
	if !strings.Contains(line, "PPU: 12, 34") {
		t.Fatalf("expected PPU position stitched in, got %q", line)
	}
}

func TestFormatRendersImpliedInstruction(t *testing.T) {
	mem := &mockMemory{}
	mem.data[0x8000] = 0xEA // NOP
	c := cpu.New(mem)
	c.TraceEnabled = true
	c.PC = 0x8000
	c.Step()

	f := NewFormatter(c)
	line := f.Format(c.LastSnapshot(), PPUPosition{})

	if !strings.Contains(line, "NOP") {
		t.Fatalf("expected NOP mnemonic, got %q", line)
	}
	if strings.Contains(line, "NOP  #") {
		t.Fatalf("implied instruction should carry no operand, got %q", line)
	}
}
