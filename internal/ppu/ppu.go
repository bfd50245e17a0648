// Package ppu implements the 2C02 Picture Processing Unit: its
// memory-mapped register contract, the scanline/dot state machine, and the
// background/sprite rendering pipelines that produce one NES-palette-indexed
// pixel per dot.
package ppu

// Bus is the PPU's view of its own address space (pattern tables via the
// mapper, nametables, palette RAM). Implemented by the system bus; kept as
// an interface here so this package never imports the bus package.
type Bus interface {
	Read(address uint16) uint8
	Write(address uint16, value uint8)
}

// PPU represents the NES Picture Processing Unit (2C02).
type PPU struct {
	// CPU-visible registers
	ppuCtrl   uint8
	ppuMask   uint8
	ppuStatus uint8
	oamAddr   uint8

	// Internal scroll/address state
	v uint16 // current VRAM address (15 bits)
	t uint16 // temporary VRAM address (15 bits)
	x uint8  // fine X scroll (3 bits)
	w bool   // write toggle

	readBuffer uint8 // $2007 read buffer

	bus Bus

	scanline int // 0-239 visible, 240 post-render, 241-260 vblank, 261 pre-render
	cycle    int // 0-340
	frame    uint64
	oddFrame bool

	nmiCallback   func()
	frameCallback func()

	backgroundEnabled bool
	spritesEnabled    bool
	renderingEnabled  bool
	showBgLeft        bool
	showSpritesLeft   bool

	// Background pipeline: latches fetched every 2 dots, shifted into the
	// pattern/attribute shift registers every 8 dots.
	ntLatch   uint8
	atLatch   uint8
	ptLoLatch uint8
	ptHiLatch uint8

	bgPatternLo uint16
	bgPatternHi uint16
	bgAttrLo    uint16
	bgAttrHi    uint16

	// Sprites active on the scanline currently being drawn.
	spriteCount      uint8
	spritePatternLo  [8]uint8
	spritePatternHi  [8]uint8
	spriteAttr       [8]uint8
	spriteX          [8]uint8
	spriteIsZero     [8]bool
	sprite0OnScanline bool

	// Secondary OAM and the "next scanline" sprite buffer being built during
	// the evaluation/fetch window of the current scanline.
	oam          [256]uint8
	secondaryOAM [32]uint8

	sprite0Hit     bool
	spriteOverflow bool

	frameBuffer [256 * 240]uint8
}

// New creates a PPU in its power-up state.
func New() *PPU {
	p := &PPU{}
	p.Reset()
	return p
}

// SetMemory attaches the bus the PPU resolves pattern/nametable/palette
// reads and writes through.
func (p *PPU) SetMemory(bus Bus) {
	p.bus = bus
}

// SetNMICallback sets the function invoked when the PPU asserts NMI.
func (p *PPU) SetNMICallback(callback func()) {
	p.nmiCallback = callback
}

// SetFrameCompleteCallback sets the function invoked once per completed frame.
func (p *PPU) SetFrameCompleteCallback(callback func()) {
	p.frameCallback = callback
}

// Reset restores power-up state: registers, scroll latches, and the
// scanline/dot counter, but leaves OAM and the frame buffer untouched (real
// hardware does not clear OAM on reset).
func (p *PPU) Reset() {
	p.ppuCtrl = 0
	p.ppuMask = 0
	p.ppuStatus = 0
	p.oamAddr = 0

	p.v = 0
	p.t = 0
	p.x = 0
	p.w = false
	p.readBuffer = 0

	p.scanline = 261
	p.cycle = 0
	p.oddFrame = false

	p.spriteCount = 0
	p.sprite0Hit = false
	p.spriteOverflow = false

	p.updateRenderingFlags()
}

// ReadRegister services a CPU read of $2000-$2007 (mirrored every 8 bytes
// by the caller).
func (p *PPU) ReadRegister(address uint16) uint8 {
	switch address {
	case 0x2002:
		status := p.ppuStatus
		p.ppuStatus &^= 0x80
		p.w = false
		return status
	case 0x2004:
		return p.readOAMData()
	case 0x2007:
		return p.readPPUData()
	default:
		return 0
	}
}

// WriteRegister services a CPU write of $2000-$2007.
func (p *PPU) WriteRegister(address uint16, value uint8) {
	switch address {
	case 0x2000:
		wasNMIDisabled := p.ppuCtrl&0x80 == 0
		p.ppuCtrl = value
		p.t = (p.t & 0xF3FF) | ((uint16(value) & 0x03) << 10)
		if wasNMIDisabled && p.ppuCtrl&0x80 != 0 {
			p.checkImmediateNMI()
		}
	case 0x2001:
		p.ppuMask = value
		p.updateRenderingFlags()
	case 0x2003:
		p.oamAddr = value
	case 0x2004:
		p.oam[p.oamAddr] = value
		if p.renderingActive() {
			p.oamAddr += 4 // glitchy high-nibble bump during rendering
		} else {
			p.oamAddr++
		}
	case 0x2005:
		p.writeScroll(value)
	case 0x2006:
		p.writeAddr(value)
	case 0x2007:
		p.writePPUData(value)
	}
}

// WriteOAM writes directly to primary OAM; used by OAM DMA.
func (p *PPU) WriteOAM(address uint8, value uint8) {
	p.oam[address] = value
}

func (p *PPU) readOAMData() uint8 {
	// During the secondary-OAM clear (dots 1-64 of a visible rendering
	// scanline) OAM reads observe 0xFF instead of primary OAM.
	if p.renderingActive() && p.scanline < 240 && p.cycle >= 1 && p.cycle <= 64 {
		return 0xFF
	}
	return p.oam[p.oamAddr]
}

func (p *PPU) writeScroll(value uint8) {
	if !p.w {
		p.t = (p.t & 0xFFE0) | (uint16(value) >> 3)
		p.x = value & 0x07
	} else {
		p.t = (p.t & 0x8FFF) | ((uint16(value) & 0x07) << 12)
		p.t = (p.t & 0xFC1F) | ((uint16(value) & 0xF8) << 2)
	}
	p.w = !p.w
}

func (p *PPU) writeAddr(value uint8) {
	if !p.w {
		p.t = (p.t & 0x80FF) | ((uint16(value) & 0x3F) << 8)
	} else {
		p.t = (p.t & 0xFF00) | uint16(value)
		p.v = p.t & 0x7FFF
	}
	p.w = !p.w
}

func (p *PPU) readPPUData() uint8 {
	var data uint8
	addr := p.v & 0x3FFF
	if addr >= 0x3F00 {
		data = p.bus.Read(addr)
		p.readBuffer = p.bus.Read(addr - 0x1000)
	} else {
		data = p.readBuffer
		p.readBuffer = p.bus.Read(addr)
	}
	p.advanceVRAMAddress()
	return data
}

func (p *PPU) writePPUData(value uint8) {
	p.bus.Write(p.v&0x3FFF, value)
	p.advanceVRAMAddress()
}

// advanceVRAMAddress applies PPUDATA's address increment: the PPUCTRL
// bit-2 step outside rendering, or the glitchy coarse-X/fine-Y bump when
// $2007 is accessed while rendering is active.
func (p *PPU) advanceVRAMAddress() {
	if p.renderingActive() {
		p.incrementCoarseX()
		p.incrementY()
		return
	}
	if p.ppuCtrl&0x04 != 0 {
		p.v = (p.v + 32) & 0x7FFF
	} else {
		p.v = (p.v + 1) & 0x7FFF
	}
}

func (p *PPU) updateRenderingFlags() {
	p.backgroundEnabled = p.ppuMask&0x08 != 0
	p.spritesEnabled = p.ppuMask&0x10 != 0
	p.renderingEnabled = p.backgroundEnabled || p.spritesEnabled
	p.showBgLeft = p.ppuMask&0x02 != 0
	p.showSpritesLeft = p.ppuMask&0x04 != 0
}

func (p *PPU) renderingActive() bool {
	return p.renderingEnabled && (p.scanline < 240 || p.scanline == 261)
}

func (p *PPU) checkImmediateNMI() {
	if p.ppuStatus&0x80 != 0 && p.nmiCallback != nil {
		p.nmiCallback()
	}
}

// Step advances the PPU by one dot.
func (p *PPU) Step() {
	if p.scanline < 240 || p.scanline == 261 {
		p.renderDot()
	}

	if p.scanline == 241 && p.cycle == 1 {
		p.ppuStatus |= 0x80
		if p.ppuCtrl&0x80 != 0 && p.nmiCallback != nil {
			p.nmiCallback()
		}
	}

	if p.scanline == 261 && p.cycle == 1 {
		p.ppuStatus &^= 0xE0 // clear vblank, sprite-0-hit, sprite-overflow
		p.sprite0Hit = false
		p.spriteOverflow = false
	}

	p.advanceDot()
}

// advanceDot moves the scanline/dot counter forward by one, applying the
// odd-frame dot-skip on the pre-render scanline.
func (p *PPU) advanceDot() {
	p.cycle++
	if p.scanline == 261 && p.cycle == 340 && p.oddFrame && p.renderingEnabled {
		p.cycle = 341 // fold straight through to the wrap below
	}
	if p.cycle > 340 {
		p.cycle = 0
		p.scanline++
		if p.scanline > 261 {
			p.scanline = 0
			p.frame++
			p.oddFrame = !p.oddFrame
			if p.frameCallback != nil {
				p.frameCallback()
			}
		}
	}
}

// renderDot runs the background fetch pipeline, sprite evaluation, and
// pixel output for one dot of a visible or pre-render scanline.
func (p *PPU) renderDot() {
	visible := p.scanline < 240
	preRender := p.scanline == 261

	if (p.cycle >= 1 && p.cycle <= 256) || (p.cycle >= 321 && p.cycle <= 336) {
		p.stepBackgroundFetch()
	}

	if p.cycle == 256 {
		p.incrementY()
	}
	if p.cycle == 257 {
		p.loadBackgroundShifters()
		p.copyHorizontalBits()
	}
	if preRender && p.cycle >= 280 && p.cycle <= 304 {
		p.copyVerticalBits()
	}

	// Sprite evaluation/fetch targets scanline+1, so it also runs on the
	// pre-render scanline (261) to prepare sprites for scanline 0.
	if visible || preRender {
		if p.cycle == 1 {
			p.clearSecondaryOAM()
		}
		if p.cycle == 256 {
			p.evaluateSprites()
		}
		if p.cycle == 257 {
			p.fetchSpritePatterns()
		}
	}

	if visible && p.cycle >= 1 && p.cycle <= 256 {
		p.outputPixel(p.cycle - 1)
	}

	if p.cycle >= 1 && p.cycle <= 256 {
		p.shiftBackgroundRegisters()
	}
}

func (p *PPU) stepBackgroundFetch() {
	switch (p.cycle - 1) % 8 {
	case 0:
		p.loadBackgroundShifters()
		ntAddr := 0x2000 | (p.v & 0x0FFF)
		p.ntLatch = p.bus.Read(ntAddr)
	case 2:
		atAddr := 0x23C0 | (p.v & 0x0C00) | ((p.v >> 4) & 0x38) | ((p.v >> 2) & 0x07)
		shift := ((p.v >> 4) & 4) | (p.v & 2)
		p.atLatch = (p.bus.Read(atAddr) >> shift) & 0x03
	case 4:
		base := uint16(0)
		if p.ppuCtrl&0x10 != 0 {
			base = 0x1000
		}
		fineY := (p.v >> 12) & 0x07
		p.ptLoLatch = p.bus.Read(base + uint16(p.ntLatch)*16 + fineY)
	case 6:
		base := uint16(0)
		if p.ppuCtrl&0x10 != 0 {
			base = 0x1000
		}
		fineY := (p.v >> 12) & 0x07
		p.ptHiLatch = p.bus.Read(base + uint16(p.ntLatch)*16 + 8 + fineY)
	case 7:
		p.incrementCoarseX()
	}
}

func (p *PPU) loadBackgroundShifters() {
	p.bgPatternLo = (p.bgPatternLo & 0xFF00) | uint16(p.ptLoLatch)
	p.bgPatternHi = (p.bgPatternHi & 0xFF00) | uint16(p.ptHiLatch)
	attrLo := uint16(0)
	attrHi := uint16(0)
	if p.atLatch&0x01 != 0 {
		attrLo = 0xFF
	}
	if p.atLatch&0x02 != 0 {
		attrHi = 0xFF
	}
	p.bgAttrLo = (p.bgAttrLo & 0xFF00) | attrLo
	p.bgAttrHi = (p.bgAttrHi & 0xFF00) | attrHi
}

func (p *PPU) shiftBackgroundRegisters() {
	if !p.renderingEnabled {
		return
	}
	p.bgPatternLo <<= 1
	p.bgPatternHi <<= 1
	p.bgAttrLo <<= 1
	p.bgAttrHi <<= 1
}

// incrementCoarseX implements the standard loopy coarse-X wraparound.
func (p *PPU) incrementCoarseX() {
	if !p.renderingEnabled {
		return
	}
	if p.v&0x001F == 31 {
		p.v &^= 0x001F
		p.v ^= 0x0400
	} else {
		p.v++
	}
}

func (p *PPU) incrementY() {
	if !p.renderingEnabled {
		return
	}
	if p.v&0x7000 != 0x7000 {
		p.v += 0x1000
		return
	}
	p.v &^= 0x7000
	y := (p.v & 0x03E0) >> 5
	switch y {
	case 29:
		y = 0
		p.v ^= 0x0800
	case 31:
		y = 0
	default:
		y++
	}
	p.v = (p.v &^ 0x03E0) | (y << 5)
}

func (p *PPU) copyHorizontalBits() {
	if !p.renderingEnabled {
		return
	}
	p.v = (p.v & 0xFBE0) | (p.t & 0x041F)
}

func (p *PPU) copyVerticalBits() {
	if !p.renderingEnabled {
		return
	}
	p.v = (p.v & 0x841F) | (p.t & 0x7BE0)
}

func (p *PPU) clearSecondaryOAM() {
	for i := range p.secondaryOAM {
		p.secondaryOAM[i] = 0xFF
	}
}

// evaluateSprites finds up to 8 sprites in range for the NEXT scanline,
// reproducing the documented hardware bug: once 8 sprites are found, the
// scan continues but the byte pointer used to test subsequent sprites'
// in-range-ness increments both per-sprite (n) and per-byte (m), so it
// drifts out of alignment with the Y byte and can report overflow on
// sprites that are not actually in range (or miss ones that are).
func (p *PPU) evaluateSprites() {
	height := 8
	if p.ppuCtrl&0x20 != 0 {
		height = 16
	}
	target := (p.scanline + 1) % 262

	count := 0
	p.sprite0OnScanline = false
	n := 0
	for n < 64 && count < 8 {
		y := int(p.oam[n*4])
		if target >= y+1 && target < y+1+height {
			base := n * 4
			dst := count * 4
			copy(p.secondaryOAM[dst:dst+4], p.oam[base:base+4])
			if n == 0 {
				p.sprite0OnScanline = true
			}
			count++
		}
		n++
	}

	overflow := false
	m := 0
	for n < 64 {
		// The bug: m is never reset to 0 here, so this reads whichever byte
		// of sprite n the drifting pointer currently sits on (not
		// necessarily its Y byte) and range-tests it as if it were Y.
		y := int(p.oam[(n*4+m)%256])
		if target >= y+1 && target < y+1+height {
			overflow = true
			m++
			if m == 4 {
				m = 0
				n++
			}
		} else {
			n++
			m++
			if m == 4 {
				m = 0
			}
		}
	}

	p.spriteCount = uint8(count)
	p.spriteOverflow = overflow
	if overflow {
		p.ppuStatus |= 0x20
	}
}

// fetchSpritePatterns loads the pattern shift registers for sprites found
// by evaluateSprites, ready to render on the next scanline.
func (p *PPU) fetchSpritePatterns() {
	height := 8
	if p.ppuCtrl&0x20 != 0 {
		height = 16
	}
	target := (p.scanline + 1) % 262

	for i := 0; i < int(p.spriteCount); i++ {
		base := i * 4
		sy := int(p.secondaryOAM[base])
		tile := p.secondaryOAM[base+1]
		attr := p.secondaryOAM[base+2]
		sx := p.secondaryOAM[base+3]

		row := target - (sy + 1)
		if attr&0x80 != 0 {
			row = height - 1 - row
		}

		var patternAddr uint16
		if height == 16 {
			table := uint16(0)
			if tile&0x01 != 0 {
				table = 0x1000
			}
			tileIndex := tile &^ 0x01
			if row >= 8 {
				tileIndex++
				row -= 8
			}
			patternAddr = table + uint16(tileIndex)*16 + uint16(row)
		} else {
			table := uint16(0)
			if p.ppuCtrl&0x08 != 0 {
				table = 0x1000
			}
			patternAddr = table + uint16(tile)*16 + uint16(row)
		}

		lo := p.bus.Read(patternAddr)
		hi := p.bus.Read(patternAddr + 8)
		if attr&0x40 != 0 {
			lo = reverseBits(lo)
			hi = reverseBits(hi)
		}

		p.spritePatternLo[i] = lo
		p.spritePatternHi[i] = hi
		p.spriteAttr[i] = attr
		p.spriteX[i] = sx
		p.spriteIsZero[i] = p.sprite0OnScanline && i == 0
	}
	for i := int(p.spriteCount); i < 8; i++ {
		p.spritePatternLo[i] = 0
		p.spritePatternHi[i] = 0
		p.spriteIsZero[i] = false
	}
}

func reverseBits(b uint8) uint8 {
	var r uint8
	for i := 0; i < 8; i++ {
		r <<= 1
		r |= b & 1
		b >>= 1
	}
	return r
}

func (p *PPU) outputPixel(x int) {
	bgColor, bgOpaque := p.backgroundPixel(x)
	spriteColor, spriteOpaque, spritePriorityBehind, spriteIsZero := p.spritePixel(x)

	if spriteOpaque && bgOpaque && spriteIsZero && x < 255 {
		leftMasked := x < 8 && (!p.showBgLeft || !p.showSpritesLeft)
		if !leftMasked {
			p.sprite0Hit = true
			p.ppuStatus |= 0x40
		}
	}

	var paletteAddr uint16
	switch {
	case !bgOpaque && !spriteOpaque:
		paletteAddr = 0x3F00
	case !bgOpaque:
		paletteAddr = 0x3F10 + uint16(spriteColor)
	case !spriteOpaque:
		paletteAddr = 0x3F00 + uint16(bgColor)
	case spritePriorityBehind:
		paletteAddr = 0x3F00 + uint16(bgColor)
	default:
		paletteAddr = 0x3F10 + uint16(spriteColor)
	}

	index := p.bus.Read(paletteAddr) & 0x3F
	y := p.scanline
	if y >= 0 && y < 240 && x >= 0 && x < 256 {
		p.frameBuffer[y*256+x] = index
	}
}

// backgroundPixel returns (palette-entry 0-15, opaque) for screen column x.
func (p *PPU) backgroundPixel(x int) (uint8, bool) {
	if !p.backgroundEnabled || (x < 8 && !p.showBgLeft) {
		return 0, false
	}
	bit := uint(15 - p.x)
	lo := uint8((p.bgPatternLo >> bit) & 1)
	hi := uint8((p.bgPatternHi >> bit) & 1)
	colorIndex := (hi << 1) | lo
	palLo := uint8((p.bgAttrLo >> bit) & 1)
	palHi := uint8((p.bgAttrHi >> bit) & 1)
	palette := (palHi << 1) | palLo
	if colorIndex == 0 {
		return 0, false
	}
	return palette*4 + colorIndex, true
}

// spritePixel returns (palette-entry 0-15, opaque, behindBackground, isSprite0).
func (p *PPU) spritePixel(x int) (uint8, bool, bool, bool) {
	if !p.spritesEnabled || (x < 8 && !p.showSpritesLeft) {
		return 0, false, false, false
	}
	for i := 0; i < int(p.spriteCount); i++ {
		offset := x - int(p.spriteX[i])
		if offset < 0 || offset > 7 {
			continue
		}
		bit := uint(7 - offset)
		lo := (p.spritePatternLo[i] >> bit) & 1
		hi := (p.spritePatternHi[i] >> bit) & 1
		colorIndex := (hi << 1) | lo
		if colorIndex == 0 {
			continue
		}
		palette := p.spriteAttr[i] & 0x03
		behind := p.spriteAttr[i]&0x20 != 0
		return palette*4 + colorIndex, true, behind, p.spriteIsZero[i]
	}
	return 0, false, false, false
}

// FrameBuffer returns the 256x240 buffer of NES-palette indices (0-63) for
// the most recently completed frame. The host maps indices to RGB.
func (p *PPU) FrameBuffer() [256 * 240]uint8 {
	return p.frameBuffer
}

func (p *PPU) FrameCount() uint64 { return p.frame }
func (p *PPU) Scanline() int      { return p.scanline }
func (p *PPU) Dot() int           { return p.cycle }
func (p *PPU) IsVBlank() bool     { return p.ppuStatus&0x80 != 0 }
