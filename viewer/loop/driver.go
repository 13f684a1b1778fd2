// Package loop runs one frame of the viewer: controls, tile streaming, draw.
package loop

import (
	"globe/hal"
	"globe/internal/metrics"
	"globe/viewer/pipeline"
	"globe/viewer/quarkgl"

	"github.com/juju/clock"
	"github.com/juju/errors"
)

// Live yields the pipeline and controls to drive this frame. Either may be nil.
type Live interface {
	Pipeline() pipeline.Pipeline
	Controls() pipeline.Controls
}

// Overlay draws on top of the rendered scene.
type Overlay interface {
	Draw(fb hal.Framebuffer)
}

// Config holds the collaborators of a Driver.
type Config struct {
	Framebuffer hal.Framebuffer
	Scene       *quarkgl.Scene
	Camera      *quarkgl.Camera
	Live        Live
	Renderer    *quarkgl.Renderer
	Overlay     Overlay
	Clock       clock.Clock
	Metrics     *metrics.Collector
}

// Validate checks that the required collaborators are set.
func (c Config) Validate() error {
	switch {
	case c.Framebuffer == nil:
		return errors.NotValidf("nil Framebuffer")
	case c.Framebuffer.Format() != hal.PixelFormatRGB565:
		return errors.NotSupportedf("pixel format %d", c.Framebuffer.Format())
	case c.Scene == nil:
		return errors.NotValidf("nil Scene")
	case c.Camera == nil:
		return errors.NotValidf("nil Camera")
	case c.Live == nil:
		return errors.NotValidf("nil Live")
	}
	return nil
}

// Driver draws frames for whichever pipeline is live.
type Driver struct {
	cfg    Config
	target *quarkgl.RGB565Target
	frames int
}

// New returns a driver. A nil Renderer or Clock gets a default.
func New(cfg Config) (*Driver, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	if cfg.Renderer == nil {
		cfg.Renderer = quarkgl.NewRenderer()
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.WallClock
	}
	fb := cfg.Framebuffer
	return &Driver{
		cfg: cfg,
		target: &quarkgl.RGB565Target{
			Buf:    fb.Buffer(),
			Stride: fb.StrideBytes(),
			W:      fb.Width(),
			H:      fb.Height(),
		},
	}, nil
}

// Frames returns the number of frames drawn.
func (d *Driver) Frames() int { return d.frames }

// Frame advances the controls and the live pipeline, then draws and presents.
// Without a pipeline it draws the empty scene.
func (d *Driver) Frame() error {
	start := d.cfg.Clock.Now()
	cam := d.cfg.Camera

	if c := d.cfg.Live.Controls(); c != nil {
		c.Update()
	}
	cam.UpdateMatrixWorld()

	if p := d.cfg.Live.Pipeline(); p != nil {
		p.SetCamera(cam)
		p.SetResolution(d.target.W, d.target.H)
		p.Update()
	}

	d.target.Buf = d.cfg.Framebuffer.Buffer()
	d.cfg.Renderer.Render(d.target, d.cfg.Scene, cam)
	if d.cfg.Overlay != nil {
		d.cfg.Overlay.Draw(d.cfg.Framebuffer)
	}
	err := d.cfg.Framebuffer.Present()

	d.frames++
	d.cfg.Metrics.ObserveFrame(d.cfg.Clock.Now().Sub(start))
	return errors.Annotate(err, "presenting frame")
}
