// Package app wires the system bus, cartridge loading, and the optional
// trace/display hosts into the single object cmd/gones drives.
package app

import (
	"fmt"
	"io"

	"gones/internal/bus"
	"gones/internal/cartridge"
	"gones/internal/trace"
)

// Config holds the CLI-supplied run parameters.
type Config struct {
	ROMPath   string
	Trace     bool
	MaxCycles uint64 // 0 means unbounded
	Scale     int
	Headless  bool
}

// Application owns the emulator core and the optional trace writer.
type Application struct {
	Config Config
	Bus    *bus.SystemBus

	tracer   *trace.Formatter
	traceOut io.Writer
}

// New creates an Application with no cartridge loaded yet.
func New(cfg Config) *Application {
	if cfg.Scale < 1 {
		cfg.Scale = 1
	}
	return &Application{
		Config: cfg,
		Bus:    bus.New(),
	}
}

// LoadROM loads an iNES ROM file and resets the bus against it.
func (a *Application) LoadROM(path string) error {
	cart, err := cartridge.LoadFromFile(path)
	if err != nil {
		return err
	}
	a.Bus.LoadCartridge(cart)
	return nil
}

// EnableTrace turns on CPU snapshot capture and routes formatted trace
// lines to w.
func (a *Application) EnableTrace(w io.Writer) {
	a.Bus.CPU.TraceEnabled = true
	a.tracer = trace.NewFormatter(a.Bus.CPU)
	a.traceOut = w
}

// Step advances the bus by one CPU instruction, then writes that
// instruction's trace line if tracing is enabled.
func (a *Application) Step() uint64 {
	cycles := a.Bus.Step()
	if a.tracer != nil {
		line := a.tracer.Format(a.Bus.CPU.LastSnapshot(), trace.PPUPosition{
			Scanline: a.Bus.PPU.Scanline(),
			Dot:      a.Bus.PPU.Dot(),
		})
		fmt.Fprintln(a.traceOut, line)
	}
	return cycles
}

// Run drives the bus until MaxCycles is reached (0 means run forever,
// which callers should pair with their own stop condition such as a
// window close event).
func (a *Application) Run() error {
	if a.Config.MaxCycles == 0 {
		for {
			a.Step()
		}
	}
	for a.Bus.CycleCount() < a.Config.MaxCycles {
		a.Step()
	}
	return nil
}

// ExitCode maps an error returned from ROM loading or execution to the
// process exit code: 0 for no error, 1 otherwise. Every error this
// package returns originates from cartridge.LoadFromFile as a
// *goneserr.Error, but any other error reaching this point is still a
// failure and exits 1.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	return 1
}
