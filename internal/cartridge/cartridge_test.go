package cartridge

import (
	"bytes"
	"testing"

	"gones/internal/goneserr"
)

func buildINES(prgBanks, chrBanks uint8, flags6, flags7 uint8) []byte {
	buf := &bytes.Buffer{}
	buf.WriteString("NES\x1A")
	buf.WriteByte(prgBanks)
	buf.WriteByte(chrBanks)
	buf.WriteByte(flags6)
	buf.WriteByte(flags7)
	buf.Write(make([]byte, 8)) // PRGRAMSize, TVSystem1/2, padding
	buf.Write(make([]byte, int(prgBanks)*16384))
	buf.Write(make([]byte, int(chrBanks)*8192))
	return buf.Bytes()
}

func TestLoadFromReaderRejectsBadMagic(t *testing.T) {
	data := buildINES(1, 1, 0, 0)
	data[0] = 'X'
	_, err := LoadFromReader(bytes.NewReader(data))
	if !goneserr.Is(err, goneserr.HeaderInvalid) {
		t.Fatalf("expected HeaderInvalid, got %v", err)
	}
}

func TestLoadFromReaderUnsupportedMapper(t *testing.T) {
	data := buildINES(1, 1, 0x20, 0) // mapper id 2
	_, err := LoadFromReader(bytes.NewReader(data))
	if !goneserr.Is(err, goneserr.UnsupportedMapper) {
		t.Fatalf("expected UnsupportedMapper, got %v", err)
	}
}

func TestLoadFromReaderCHRRAMFromHeaderField(t *testing.T) {
	data := buildINES(1, 0, 0, 0)
	cart, err := LoadFromReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !cart.hasCHRRAM {
		t.Fatalf("expected CHR-RAM when header CHR size is 0")
	}
	if len(cart.chrROM) != 8192 {
		t.Fatalf("expected 8KB CHR-RAM, got %d", len(cart.chrROM))
	}
}

func TestLoadFromReaderFourScreenUnsupported(t *testing.T) {
	data := buildINES(1, 1, 0x08, 0)
	_, err := LoadFromReader(bytes.NewReader(data))
	if !goneserr.Is(err, goneserr.UnsupportedFeature) {
		t.Fatalf("expected UnsupportedFeature for four-screen, got %v", err)
	}
}

func TestNROMMirroringFromHeader(t *testing.T) {
	data := buildINES(1, 1, 0x01, 0) // vertical
	cart, err := LoadFromReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cart.MirrorMode() != MirrorVertical {
		t.Fatalf("expected vertical mirroring, got %v", cart.MirrorMode())
	}
}

func TestNROM16KMirrorsAcross32KWindow(t *testing.T) {
	data := buildINES(1, 1, 0, 0)
	// mark the last byte of PRG with a sentinel
	data[len(data)-8192-1] = 0x42
	cart, err := LoadFromReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := cart.ReadPRG(0xBFFF); got != 0x42 {
		t.Fatalf("expected 0x42 at 0xBFFF, got 0x%02X", got)
	}
	if got := cart.ReadPRG(0xFFFF); got != 0x42 {
		t.Fatalf("expected mirrored 0x42 at 0xFFFF, got 0x%02X", got)
	}
}

// MMC1 reset: a write with bit 7 set resets the shift register and write
// count and forces control bits 2-3 (OR 0x0C). Scenario 6 of spec.md section 8.
func TestMMC1ResetViaHighBit(t *testing.T) {
	data := buildINES(2, 1, 0x10, 0) // mapper 1, 2 PRG banks
	cart, err := LoadFromReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	m := cart.mapper.(*Mapper001)

	cart.WritePRG(0x8000, 0x80) // reset
	for i := 0; i < 5; i++ {
		cart.mapper.Tick()
		cart.WritePRG(0x8000, 0x01)
	}

	if m.control&0x1F != 0x01 {
		t.Fatalf("expected control low 5 bits = 0x01, got 0x%02X", m.control&0x1F)
	}
	if m.shift != 0 || m.shiftCount != 0 {
		t.Fatalf("expected shift register and count reset, got shift=%d count=%d", m.shift, m.shiftCount)
	}
}

func TestMMC1SamePlaceWritesCollapse(t *testing.T) {
	data := buildINES(2, 1, 0x10, 0)
	cart, _ := LoadFromReader(bytes.NewReader(data))
	m := cart.mapper.(*Mapper001)

	cart.WritePRG(0x8000, 0x80) // reset within the same step
	cart.WritePRG(0x8000, 0x01) // should be dropped: same step as the reset
	if m.shiftCount != 0 {
		t.Fatalf("expected second same-step write to be dropped, got shiftCount=%d", m.shiftCount)
	}
}

func TestMMC1PRGBankingMode3FixesLastBank(t *testing.T) {
	data := buildINES(4, 1, 0x10, 0) // 4 PRG banks (64KB), mapper 1
	raw := data
	// stamp a sentinel at the start of the last 16KB bank
	lastBankOffset := 16 + 3*16384
	raw[lastBankOffset] = 0x99
	cart, err := LoadFromReader(bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// default control is 0x0C -> PRG mode 3: 0xC000 fixed to last bank
	if got := cart.ReadPRG(0xC000); got != 0x99 {
		t.Fatalf("expected fixed last bank at 0xC000 = 0x99, got 0x%02X", got)
	}
}
