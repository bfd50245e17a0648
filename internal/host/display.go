package host

import (
	"image"

	"github.com/hajimehoshi/ebiten/v2"
)

// Display is an ebiten.Game that draws a 256x240 indexed NES frame
// buffer, scaled and letterboxed into whatever window size ebiten gives
// it, and reports which keys are currently held so the caller can derive
// a controller bitmask with ButtonsFromPressed.
type Display struct {
	Scale int

	texture *ebiten.Image
	pixels  *image.RGBA

	// OnUpdate is invoked once per ebiten tick with the set of currently
	// held keys; callers drive emulation and SetFrame from here.
	OnUpdate func(pressed map[string]bool) error
}

// NewDisplay creates a Display at the given integer scale factor.
func NewDisplay(scale int) *Display {
	if scale < 1 {
		scale = 1
	}
	return &Display{
		Scale:   scale,
		texture: ebiten.NewImage(256, 240),
		pixels:  image.NewRGBA(image.Rect(0, 0, 256, 240)),
	}
}

// SetFrame converts a raw NES-palette-index frame buffer to RGBA and
// uploads it to the display texture.
func (d *Display) SetFrame(frame [256 * 240]uint8) {
	for i, index := range frame {
		c := PaletteRGBA(index)
		o := i * 4
		d.pixels.Pix[o+0] = c.R
		d.pixels.Pix[o+1] = c.G
		d.pixels.Pix[o+2] = c.B
		d.pixels.Pix[o+3] = 0xFF
	}
	d.texture.WritePixels(d.pixels.Pix)
}

// Layout implements ebiten.Game.
func (d *Display) Layout(outsideWidth, outsideHeight int) (int, int) {
	return 256 * d.Scale, 240 * d.Scale
}

// Draw implements ebiten.Game.
func (d *Display) Draw(screen *ebiten.Image) {
	op := &ebiten.DrawImageOptions{}
	op.GeoM.Scale(float64(d.Scale), float64(d.Scale))
	screen.DrawImage(d.texture, op)
}

// heldKeys returns the name of every key ebiten currently reports as
// pressed, matching the string keys DefaultKeyMap expects.
func heldKeys() map[string]bool {
	pressed := map[string]bool{}
	keys := map[ebiten.Key]string{
		ebiten.KeyArrowUp:    "ArrowUp",
		ebiten.KeyArrowDown:  "ArrowDown",
		ebiten.KeyArrowLeft:  "ArrowLeft",
		ebiten.KeyArrowRight: "ArrowRight",
		ebiten.KeyZ:          "KeyZ",
		ebiten.KeyX:          "KeyX",
		ebiten.KeyEnter:      "Enter",
		ebiten.KeySpace:      "Space",
	}
	for key, name := range keys {
		if ebiten.IsKeyPressed(key) {
			pressed[name] = true
		}
	}
	return pressed
}

// Update implements ebiten.Game by sampling the keyboard and delegating
// to the caller-supplied OnUpdate hook.
func (d *Display) Update() error {
	if d.OnUpdate == nil {
		return nil
	}
	return d.OnUpdate(heldKeys())
}
