package hal

import (
	"context"
	"os"

	"github.com/juju/clock"
	"github.com/juju/errors"
)

// HeadlessConfig controls the no-window host runner.
type HeadlessConfig struct {
	Enabled bool
	Hz      int
	Frames  uint64
	Host    HostConfig

	// Clock paces frames; nil means the wall clock.
	Clock clock.Clock
}

// RunHeadless runs the viewer without opening a window, stepping one frame per tick.
func RunHeadless(ctx context.Context, newApp func(HAL) (func() error, error), cfg HeadlessConfig) error {
	h := newHost(cfg.Host, os.Stdout)
	step, err := newApp(h)
	if err != nil {
		return errors.Trace(err)
	}
	return runHeadless(ctx, h, step, cfg)
}

func runHeadless(ctx context.Context, h *hostHAL, step func() error, cfg HeadlessConfig) error {
	if cfg.Hz <= 0 {
		cfg.Hz = 60
	}
	clk := cfg.Clock
	if clk == nil {
		clk = clock.WallClock
	}
	d := frameDuration(cfg.Hz)
	if d <= 0 {
		return errors.Errorf("invalid headless hz: %d", cfg.Hz)
	}

	var frame uint64
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-clk.After(d):
			if step != nil {
				if err := step(); err != nil {
					return err
				}
			}
			frame++
			if cfg.Frames > 0 && frame >= cfg.Frames {
				return nil
			}
		}
	}
}
