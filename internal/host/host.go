// Package host provides the ebiten-backed display and keyboard-input
// surface: a 256x240 indexed NES frame buffer in, an RGBA texture out,
// and keyboard state reduced to an 8-bit controller button mask.
package host

import (
	"image/color"

	"gones/internal/input"
)

// nesPalette is the 2C02's fixed 64-entry RGB palette. It lives here,
// outside the PPU core, so the PPU can stay a pure index producer.
var nesPalette = [64]color.RGBA{
	{0x62, 0x62, 0x62, 0xFF}, {0x00, 0x2E, 0x98, 0xFF}, {0x0C, 0x11, 0xA7, 0xFF}, {0x3B, 0x00, 0xA4, 0xFF},
	{0x5C, 0x00, 0x79, 0xFF}, {0x6E, 0x00, 0x40, 0xFF}, {0x6C, 0x06, 0x00, 0xFF}, {0x56, 0x1D, 0x00, 0xFF},
	{0x33, 0x35, 0x00, 0xFF}, {0x0B, 0x48, 0x00, 0xFF}, {0x00, 0x52, 0x00, 0xFF}, {0x00, 0x4F, 0x08, 0xFF},
	{0x00, 0x40, 0x4D, 0xFF}, {0x00, 0x00, 0x00, 0xFF}, {0x00, 0x00, 0x00, 0xFF}, {0x00, 0x00, 0x00, 0xFF},
	{0xAB, 0xAB, 0xAB, 0xFF}, {0x0D, 0x57, 0xE6, 0xFF}, {0x3C, 0x37, 0xFA, 0xFF}, {0x76, 0x19, 0xF8, 0xFF},
	{0xA3, 0x0B, 0xC1, 0xFF}, {0xBA, 0x0D, 0x76, 0xFF}, {0xB6, 0x27, 0x20, 0xFF}, {0x96, 0x45, 0x00, 0xFF},
	{0x66, 0x66, 0x00, 0xFF}, {0x2F, 0x7F, 0x00, 0xFF}, {0x07, 0x8F, 0x00, 0xFF}, {0x00, 0x8B, 0x34, 0xFF},
	{0x00, 0x77, 0x8D, 0xFF}, {0x00, 0x00, 0x00, 0xFF}, {0x00, 0x00, 0x00, 0xFF}, {0x00, 0x00, 0x00, 0xFF},
	{0xFF, 0xFF, 0xFF, 0xFF}, {0x53, 0xA6, 0xFF, 0xFF}, {0x80, 0x84, 0xFF, 0xFF}, {0xC2, 0x67, 0xFF, 0xFF},
	{0xF6, 0x57, 0xFF, 0xFF}, {0xFF, 0x5A, 0xCD, 0xFF}, {0xFF, 0x70, 0x6F, 0xFF}, {0xF0, 0x8F, 0x25, 0xFF},
	{0xBD, 0xB0, 0x00, 0xFF}, {0x83, 0xC7, 0x00, 0xFF}, {0x5A, 0xD6, 0x1C, 0xFF}, {0x43, 0xD3, 0x64, 0xFF},
	{0x45, 0xC0, 0xBE, 0xFF}, {0x4E, 0x4E, 0x4E, 0xFF}, {0x00, 0x00, 0x00, 0xFF}, {0x00, 0x00, 0x00, 0xFF},
	{0xFF, 0xFF, 0xFF, 0xFF}, {0xB6, 0xDA, 0xFF, 0xFF}, {0xC9, 0xD1, 0xFF, 0xFF}, {0xE4, 0xC5, 0xFF, 0xFF},
	{0xF9, 0xC0, 0xFF, 0xFF}, {0xFF, 0xC2, 0xEE, 0xFF}, {0xFF, 0xC9, 0xC6, 0xFF}, {0xF7, 0xD5, 0xA9, 0xFF},
	{0xE2, 0xE2, 0x94, 0xFF}, {0xCC, 0xEB, 0x96, 0xFF}, {0xB9, 0xF1, 0xA9, 0xFF}, {0xAE, 0xF1, 0xC6, 0xFF},
	{0xAF, 0xEB, 0xEA, 0xFF}, {0xB8, 0xB8, 0xB8, 0xFF}, {0x00, 0x00, 0x00, 0xFF}, {0x00, 0x00, 0x00, 0xFF},
}

// PaletteRGBA returns the RGB color for a 6-bit NES palette index.
func PaletteRGBA(index uint8) color.RGBA {
	return nesPalette[index&0x3F]
}

// ButtonMask packs the 8 standard NES buttons into the bit order
// input.Controller.SetButtons expects: A,B,Select,Start,Up,Down,Left,Right.
type ButtonMask [8]bool

// KeyMap associates a host key identifier with the controller button it
// drives. Hosts translate their own key-event types into this map's keys.
type KeyMap map[string]input.Button

// DefaultKeyMap is the standard single-player keyboard layout.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		"ArrowUp":    input.ButtonUp,
		"ArrowDown":  input.ButtonDown,
		"ArrowLeft":  input.ButtonLeft,
		"ArrowRight": input.ButtonRight,
		"KeyZ":       input.ButtonA,
		"KeyX":       input.ButtonB,
		"Enter":      input.ButtonStart,
		"Space":      input.ButtonSelect,
	}
}

// ButtonsFromPressed reduces a set of currently-pressed host key names to
// an 8-bool ButtonMask ordered for input.Controller.SetButtons.
func ButtonsFromPressed(pressed map[string]bool, keys KeyMap) ButtonMask {
	var held uint8
	for name, isDown := range pressed {
		if !isDown {
			continue
		}
		if button, ok := keys[name]; ok {
			held |= uint8(button)
		}
	}
	return ButtonMask{
		held&uint8(input.ButtonA) != 0,
		held&uint8(input.ButtonB) != 0,
		held&uint8(input.ButtonSelect) != 0,
		held&uint8(input.ButtonStart) != 0,
		held&uint8(input.ButtonUp) != 0,
		held&uint8(input.ButtonDown) != 0,
		held&uint8(input.ButtonLeft) != 0,
		held&uint8(input.ButtonRight) != 0,
	}
}
