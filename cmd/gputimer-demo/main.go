// Command gputimer-demo runs a simulated render loop on the software device
// and prints the CPU and GPU timings it measured.
package main

import (
	"context"
	"flag"
	"fmt"
	"image/png"
	"log"
	"log/slog"
	"math/rand/v2"
	"os"
	"strings"
	"sync"
	"time"

	"golang.org/x/text/language"

	"github.com/gogpu/gputimer"
	"github.com/gogpu/gputimer/backend/software"
	"github.com/gogpu/gputimer/overlay"
	"github.com/gogpu/gputimer/report"
)

// pass is a simulated render pass with a mean GPU cost.
type pass struct {
	name string
	cost time.Duration
}

var defaultPasses = "shadow:2ms,geometry:5ms,lighting:3ms,post:1ms"

func main() {
	var (
		frames       = flag.Int("frames", 300, "number of frames to render")
		window       = flag.Int("window", gputimer.DefaultSampleWindow, "samples per published average")
		passList     = flag.String("passes", defaultPasses, "comma separated name:cost list of passes")
		noTimestamps = flag.Bool("no-timestamps", false, "simulate a device without timestamp queries")
		mapLatency   = flag.Int("map-latency", 2, "polls before a readback map completes")
		pollEvery    = flag.Duration("poll-interval", 0, "poll the device from a goroutine at this interval (0 polls once per frame)")
		cpuWork      = flag.Duration("cpu-work", 200*time.Microsecond, "simulated CPU encoding time per pass")
		jitter       = flag.Float64("jitter", 0.1, "relative GPU cost jitter")
		pngOut       = flag.String("png", "", "write the HUD overlay to this PNG file")
		lang         = flag.String("lang", "en", "language for number formatting")
		verbose      = flag.Bool("v", false, "enable debug logging")
	)
	flag.Parse()

	if *verbose {
		gputimer.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})))
	}

	passes, err := parsePasses(*passList)
	if err != nil {
		log.Fatalf("Invalid -passes: %v", err)
	}
	tag, err := language.Parse(*lang)
	if err != nil {
		log.Fatalf("Invalid -lang: %v", err)
	}

	dev := software.New(
		software.WithTimestampQuery(!*noTimestamps),
		software.WithMapLatency(*mapLatency),
	)

	names := make([]string, len(passes))
	for i, p := range passes {
		names[i] = p.name
	}
	timer, err := gputimer.NewTimer(dev,
		gputimer.WithSampleWindow(*window),
		gputimer.WithPasses(names...),
		gputimer.WithMapErrorHandler(func(name string, err error) {
			log.Printf("readback %s: %v", name, err)
		}),
	)
	if err != nil {
		log.Fatalf("Failed to create timer: %v", err)
	}
	defer timer.Close()

	ft, err := gputimer.NewFrameTimer(dev, gputimer.WithSampleWindow(*window), gputimer.WithLabelPrefix("frame"))
	if err != nil {
		log.Fatalf("Failed to create frame timer: %v", err)
	}
	defer ft.Close()

	var wg sync.WaitGroup
	ctx, cancel := context.WithCancel(context.Background())
	if *pollEvery > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			dev.PollLoop(ctx, *pollEvery)
		}()
	}

	rng := rand.New(rand.NewPCG(1, 2))
	for i := 0; i < *frames; i++ {
		if err := renderFrame(dev, timer, ft, passes, rng, *cpuWork, *jitter); err != nil {
			log.Fatalf("Frame %d: %v", i, err)
		}
		if *pollEvery <= 0 {
			dev.Poll()
		}
	}

	cancel()
	wg.Wait()
	// Drain readbacks still in flight.
	for i := 0; i < *mapLatency; i++ {
		dev.Poll()
	}

	readings := timer.Snapshot()
	readings = append(readings, gputimer.Reading{
		Name:   "total",
		CPU:    ft.CPUAverage(),
		GPU:    ft.GPUAverage(),
		HasCPU: true,
		HasGPU: ft.HasGPUTimer(),
	})

	title := fmt.Sprintf("%d frames, window %d, timestamp queries %v", *frames, timer.SampleWindow(), timer.HasGPUTimer())
	if err := report.Write(os.Stdout, readings, report.WithLanguage(tag), report.WithDiagnostics(), report.WithTitle(title)); err != nil {
		log.Fatalf("Failed to write report: %v", err)
	}

	if *pngOut != "" {
		if err := writeOverlay(*pngOut, readings); err != nil {
			log.Fatalf("Failed to save: %v", err)
		}
		log.Printf("Overlay saved to %s\n", *pngOut)
	}
}

func renderFrame(dev *software.Device, timer *gputimer.Timer, ft *gputimer.FrameTimer, passes []pass, rng *rand.Rand, cpuWork time.Duration, jitter float64) error {
	ft.FrameStart()

	enc := dev.CreateCommandEncoder("frame")
	if err := enc.RenderPass("begin-frame", ft.PassDescriptor(gputimer.WriteStart), 0); err != nil {
		return err
	}

	for _, p := range passes {
		timer.StartCPU(p.name)
		writes, err := timer.GPUPassDescriptor(p.name, gputimer.WriteBoth)
		if err != nil {
			return err
		}
		cost := time.Duration(float64(p.cost) * (1 + jitter*(2*rng.Float64()-1)))
		if err := enc.RenderPass(p.name, writes, cost); err != nil {
			return err
		}
		time.Sleep(cpuWork)
		if err := timer.StopCPU(p.name); err != nil {
			return err
		}
	}

	if err := enc.RenderPass("end-frame", ft.PassDescriptor(gputimer.WriteEnd), 0); err != nil {
		return err
	}

	if err := timer.BeforeSubmit(enc); err != nil {
		return err
	}
	if err := ft.BeforeSubmit(enc); err != nil {
		return err
	}
	cb, err := enc.Finish()
	if err != nil {
		return err
	}
	if err := dev.Submit(cb); err != nil {
		return err
	}
	if err := timer.AfterSubmit(); err != nil {
		return err
	}
	if err := ft.AfterSubmit(); err != nil {
		return err
	}

	return ft.FrameEnd()
}

func parsePasses(list string) ([]pass, error) {
	var passes []pass
	for _, item := range strings.Split(list, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		name, cost, ok := strings.Cut(item, ":")
		if !ok || name == "" {
			return nil, fmt.Errorf("%q: want name:duration", item)
		}
		d, err := time.ParseDuration(cost)
		if err != nil {
			return nil, fmt.Errorf("%q: %w", item, err)
		}
		passes = append(passes, pass{name: name, cost: d})
	}
	if len(passes) == 0 {
		return nil, fmt.Errorf("no passes")
	}
	return passes, nil
}

func writeOverlay(path string, readings []gputimer.Reading) error {
	hud, err := overlay.New()
	if err != nil {
		return err
	}
	defer hud.Close()

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(f, hud.RenderScaled(readings, 2)); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
