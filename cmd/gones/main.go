// Package main implements the gones NES emulator executable.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"gones/internal/app"
	"gones/internal/host"
	"gones/internal/version"

	"github.com/hajimehoshi/ebiten/v2"
)

func main() {
	var (
		trace     = flag.Bool("trace", false, "write a nestest-format instruction trace to stdout")
		maxCycles = flag.Uint64("max-cycles", 0, "stop after this many CPU cycles (0 = unbounded)")
		scale     = flag.Int("scale", 2, "integer window scale factor")
		nogui     = flag.Bool("nogui", false, "alias for -headless")
		headless  = flag.Bool("headless", false, "run without opening a display window")
		showVer   = flag.Bool("version", false, "print version information and exit")
	)
	flag.Parse()

	if *showVer {
		version.PrintBuildInfo()
		return
	}

	romPath := flag.Arg(0)
	if romPath == "" {
		fmt.Fprintln(os.Stderr, "usage: gones [flags] <rom-path>")
		flag.PrintDefaults()
		os.Exit(1)
	}

	cfg := app.Config{
		ROMPath:   romPath,
		Trace:     *trace,
		MaxCycles: *maxCycles,
		Scale:     *scale,
		Headless:  *nogui || *headless,
	}

	application := app.New(cfg)
	if err := application.LoadROM(romPath); err != nil {
		log.Printf("failed to load %s: %v", romPath, err)
		os.Exit(app.ExitCode(err))
	}

	if cfg.Trace {
		application.EnableTrace(os.Stdout)
	}

	if cfg.Headless {
		if err := application.Run(); err != nil {
			log.Printf("emulation error: %v", err)
			os.Exit(app.ExitCode(err))
		}
		return
	}

	runWithDisplay(application)
}

func runWithDisplay(application *app.Application) {
	display := host.NewDisplay(application.Config.Scale)
	display.OnUpdate = func(pressed map[string]bool) error {
		buttons := host.ButtonsFromPressed(pressed, host.DefaultKeyMap())
		application.Bus.SetControllerButtons(1, [8]bool(buttons))

		target := application.Bus.FrameCount() + 1
		for application.Bus.FrameCount() < target {
			if application.Config.MaxCycles != 0 && application.Bus.CycleCount() >= application.Config.MaxCycles {
				break
			}
			application.Step()
		}
		display.SetFrame(application.Bus.FrameBuffer())
		return nil
	}

	ebiten.SetWindowSize(256*application.Config.Scale, 240*application.Config.Scale)
	ebiten.SetWindowTitle("gones")
	if err := ebiten.RunGame(display); err != nil {
		log.Printf("display error: %v", err)
		os.Exit(1)
	}
}
