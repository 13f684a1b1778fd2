package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"

	"globe/app"
	"globe/hal"
	"globe/internal/metrics"
)

func main() {
	var (
		headless hal.HeadlessConfig
		host     hal.HostConfig
		cfg      app.Config
		addr     string
	)
	flag.BoolVar(&headless.Enabled, "headless", false, "Run without a window.")
	flag.IntVar(&headless.Hz, "hz", 60, "Frame rate in headless mode.")
	flag.Uint64Var(&headless.Frames, "frames", 0, "Stop after N frames in headless mode (0 = run forever).")
	flag.IntVar(&host.Width, "width", 480, "Framebuffer width in pixels.")
	flag.IntVar(&host.Height, "height", 320, "Framebuffer height in pixels.")
	flag.StringVar(&cfg.Source, "source", "", "Initial WMTS source name (default \"PDOK Luchtfoto\").")
	flag.StringVar(&cfg.SourcesFile, "sources", "", "JSON file extending or replacing the built-in sources.")
	flag.StringVar(&cfg.ViewpointFile, "viewpoint", "", "JSON file the camera viewpoint is loaded from and saved to.")
	flag.StringVar(&cfg.LogSpec, "log", "", "Logging specification, e.g. \"<root>=INFO;globe.tiles=DEBUG\".")
	flag.StringVar(&addr, "metrics", "", "Serve prometheus metrics on this address (e.g. :9100).")
	flag.Parse()

	if addr != "" {
		cfg.Metrics = metrics.NewCollector()
		bound, err := metrics.Serve(addr, cfg.Metrics)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		fmt.Fprintf(os.Stderr, "metrics on http://%s/metrics\n", bound)
	}

	var viewer *app.Viewer
	newApp := func(h hal.HAL) (func() error, error) {
		v, err := app.New(h, cfg)
		if err != nil {
			return nil, err
		}
		viewer = v
		return v.Step, nil
	}

	var err error
	if headless.Enabled {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()
		headless.Host = host
		err = hal.RunHeadless(ctx, newApp, headless)
		if err == context.Canceled {
			err = nil
		}
	} else {
		err = hal.RunWindow(newApp, host)
	}

	if viewer != nil {
		if cerr := viewer.Close(); cerr != nil {
			fmt.Fprintln(os.Stderr, cerr)
		}
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
