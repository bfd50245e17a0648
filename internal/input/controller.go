// Package input implements controller handling for the NES.
package input

// Button represents a single NES controller button.
type Button uint8

const (
	ButtonA Button = 1 << iota
	ButtonB
	ButtonSelect
	ButtonStart
	ButtonUp
	ButtonDown
	ButtonLeft
	ButtonRight
)

// Controller models the standard NES controller's strobe/shift-register
// reporting protocol.
type Controller struct {
	buttons uint8

	shiftRegister uint8
	strobe        bool
}

// New creates a new Controller instance.
func New() *Controller {
	return &Controller{}
}

// SetButton sets the state of a single button.
func (c *Controller) SetButton(button Button, pressed bool) {
	if pressed {
		c.buttons |= uint8(button)
	} else {
		c.buttons &^= uint8(button)
	}
	if c.strobe {
		c.shiftRegister = c.buttons
	}
}

// SetButtons sets all eight button states at once, in A,B,Select,Start,
// Up,Down,Left,Right order.
func (c *Controller) SetButtons(buttons [8]bool) {
	var b uint8
	if buttons[0] {
		b |= uint8(ButtonA)
	}
	if buttons[1] {
		b |= uint8(ButtonB)
	}
	if buttons[2] {
		b |= uint8(ButtonSelect)
	}
	if buttons[3] {
		b |= uint8(ButtonStart)
	}
	if buttons[4] {
		b |= uint8(ButtonUp)
	}
	if buttons[5] {
		b |= uint8(ButtonDown)
	}
	if buttons[6] {
		b |= uint8(ButtonLeft)
	}
	if buttons[7] {
		b |= uint8(ButtonRight)
	}
	c.buttons = b
	if c.strobe {
		c.shiftRegister = c.buttons
	}
}

// IsPressed reports whether the given button is currently held.
func (c *Controller) IsPressed(button Button) bool {
	return (c.buttons & uint8(button)) != 0
}

// Write handles a write to the controller's strobe register ($4016).
// While strobe is high the shift register continuously reloads from the
// live button state; the falling edge latches it for serial reads.
func (c *Controller) Write(value uint8) {
	c.strobe = (value & 1) != 0
	if c.strobe {
		c.shiftRegister = c.buttons
	}
}

// Read serially shifts out one button bit per call. Once all eight bits
// are exhausted, hardware reports a held-high data line: further reads
// return 1.
func (c *Controller) Read() uint8 {
	if c.strobe {
		return c.buttons & 1
	}
	bit := c.shiftRegister & 1
	c.shiftRegister = (c.shiftRegister >> 1) | 0x80
	return bit
}

// Reset clears all controller state.
func (c *Controller) Reset() {
	c.buttons = 0
	c.shiftRegister = 0
	c.strobe = false
}

// InputState owns both standard controller ports.
type InputState struct {
	Controller1 *Controller
	Controller2 *Controller
}

// NewInputState creates a new input state with two controllers.
func NewInputState() *InputState {
	return &InputState{
		Controller1: New(),
		Controller2: New(),
	}
}

// Reset resets all input devices.
func (is *InputState) Reset() {
	is.Controller1.Reset()
	is.Controller2.Reset()
}

// SetButtons1 sets all button states for controller 1.
func (is *InputState) SetButtons1(buttons [8]bool) {
	is.Controller1.SetButtons(buttons)
}

// SetButtons2 sets all button states for controller 2.
func (is *InputState) SetButtons2(buttons [8]bool) {
	is.Controller2.SetButtons(buttons)
}

// Read reads from a controller port ($4016/$4017).
func (is *InputState) Read(address uint16) uint8 {
	switch address {
	case 0x4016:
		return is.Controller1.Read()
	case 0x4017:
		// Bit 6 reads back set: open-bus behavior on real hardware.
		return is.Controller2.Read() | 0x40
	default:
		return 0
	}
}

// Write writes to a controller port. $4016 strobes both controllers.
func (is *InputState) Write(address uint16, value uint8) {
	if address == 0x4016 {
		is.Controller1.Write(value)
		is.Controller2.Write(value)
	}
}
