package main

import (
	"flag"
	"os"
	"runtime"

	"github.com/go-gl/glfw/v3.3/glfw"

	"github.com/surfel3d/surfel/app"
	"github.com/surfel3d/surfel/config"
	"github.com/surfel3d/surfel/sim"
)

func init() {
	runtime.LockOSThread()
}

func main() {
	cfgPath := flag.String("config", "", "Path to a YAML config overriding the built-in defaults")
	headless := flag.Bool("headless", false, "Run the CPU kernel without a window and report convergence")
	steps := flag.Int("steps", 500, "Step count for headless runs")
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	log := app.NewDefaultLogger("surfel", *debug)

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Errorf("config: %v", err)
		os.Exit(1)
	}

	if *headless {
		if err := runHeadless(cfg, log, *steps); err != nil {
			log.Errorf("headless run: %v", err)
			os.Exit(1)
		}
		return
	}

	if err := glfw.Init(); err != nil {
		panic(err)
	}
	defer glfw.Terminate()

	glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI)
	glfw.WindowHint(glfw.Resizable, glfw.True)
	window, err := glfw.CreateWindow(cfg.Window.Width, cfg.Window.Height, cfg.Window.Title, nil, nil)
	if err != nil {
		panic(err)
	}
	defer window.Destroy()

	application := app.NewApp(window, cfg, log)
	if err := application.Init(); err != nil {
		panic(err)
	}
	defer application.Release()

	window.SetFramebufferSizeCallback(func(w *glfw.Window, width, height int) {
		application.Resize(width, height)
	})

	window.SetKeyCallback(func(w *glfw.Window, key glfw.Key, scancode int, action glfw.Action, mods glfw.ModifierKey) {
		if action != glfw.Press && action != glfw.Repeat {
			return
		}
		switch key {
		case glfw.KeyEscape:
			w.SetShouldClose(true)
		case glfw.KeyUp:
			if err := application.SetParticleCount(application.ParticleCount() * 2); err != nil {
				log.Errorf("particle count change: %v", err)
			}
		case glfw.KeyDown:
			if n := application.ParticleCount() / 2; n >= 64 {
				if err := application.SetParticleCount(n); err != nil {
					log.Errorf("particle count change: %v", err)
				}
			}
		case glfw.KeyR:
			application.SetRepulsionStrength(max(application.RepulsionStrength()-0.1, 0))
		case glfw.KeyT:
			application.SetRepulsionStrength(application.RepulsionStrength() + 0.1)
		case glfw.KeyF:
			application.SetAttractionStrength(max(application.AttractionStrength()-0.1, 0))
		case glfw.KeyG:
			application.SetAttractionStrength(application.AttractionStrength() + 0.1)
		}
	})

	application.Scheduler.Start()
	for !window.ShouldClose() {
		glfw.PollEvents()
		if application.Scheduler.Running() {
			// A failed tick flips the scheduler to Idle; the last frame
			// stays on screen and the event loop keeps serving input.
			_ = application.Scheduler.Step(glfw.GetTime())
		}
	}
}

// runHeadless drives the scheduler with a fixed synthetic clock against the
// CPU reference kernel and reports surface convergence.
func runHeadless(cfg *config.Config, log app.Logger, steps int) error {
	prims := cfg.Cylinders()
	backend, err := app.NewCPUBackend(cfg.Simulation.ParticleCount, prims, cfg.Simulation.Seed, sim.Options{
		NeighborStride:    cfg.Simulation.NeighborStride,
		NormalSimilarityK: cfg.Simulation.NormalSimilarity,
	})
	if err != nil {
		return err
	}

	params := sim.Params{
		Aspect:             1,
		NumPrimitives:      uint32(len(prims)),
		RepulsionStrength:  cfg.Simulation.RepulsionStrength,
		AttractionStrength: cfg.Simulation.AttractionStrength,
	}
	sched := app.NewFrameScheduler(backend, &params, app.Orbit{
		Radius:       cfg.Orbit.Radius,
		Height:       cfg.Orbit.Height,
		AngularSpeed: cfg.Orbit.AngularSpeed,
	}, log)

	before := backend.MeanAbsDistance()
	sched.Start()
	const dt = 1.0 / 60.0
	for i := 0; i <= steps; i++ {
		if err := sched.Step(float64(i) * dt); err != nil {
			return err
		}
	}
	after := backend.MeanAbsDistance()

	log.Infof("headless: %d particles, %d steps, mean |d| %.4f -> %.4f",
		cfg.Simulation.ParticleCount, steps, before, after)
	return nil
}
