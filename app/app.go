// Package app wires the viewer together and steps it once per frame.
package app

import (
	"io/fs"

	"globe/hal"
	"globe/internal/config"
	"globe/internal/httputil"
	"globe/internal/logging"
	"globe/internal/metrics"
	"globe/viewer/controls"
	"globe/viewer/loop"
	"globe/viewer/panel"
	"globe/viewer/pipeline"
	"globe/viewer/quarkgl"
	"globe/viewer/session"
	"globe/viewer/source"
	"globe/viewer/tiles"
	"globe/viewer/viewpoint"
	"globe/viewer/wmts"

	"github.com/juju/clock"
	"github.com/juju/errors"
	"github.com/juju/loggo"
)

var logger = loggo.GetLogger("globe.app")

const (
	fieldOfView = 60
	nearPlane   = 1
	farPlane    = 160000000
)

// Config is the startup configuration of the viewer.
type Config struct {
	// Source is the service selected at startup; empty means source.DefaultSource.
	Source string
	// SourcesFile optionally extends or replaces the built-in sources.
	SourcesFile string
	// ViewpointFile, if set, is read at startup and written by Close.
	ViewpointFile string
	// LogSpec is a loggo specification such as "<root>=INFO;globe.tiles=DEBUG".
	LogSpec string

	Metrics *metrics.Collector
	Client  httputil.HTTPClient
	Clock   clock.Clock
}

// Viewer is the running application. Step and Close must be called from the
// frame goroutine.
type Viewer struct {
	cfg Config
	hal hal.HAL
	fb  hal.Framebuffer
	kbd hal.Keyboard

	scene   *quarkgl.Scene
	camera  *quarkgl.Camera
	panel   *panel.Panel
	manager *pipeline.Manager
	machine *session.Machine
	driver  *loop.Driver

	crashed bool
}

// New builds the viewer on h and starts fetching the initial source.
func New(h hal.HAL, cfg Config) (*Viewer, error) {
	if err := logging.Setup(h.Logger(), cfg.LogSpec); err != nil {
		return nil, errors.Trace(err)
	}
	if cfg.Client == nil {
		cfg.Client = httputil.NewStandardClient(nil)
	}
	if cfg.Source == "" {
		cfg.Source = source.DefaultSource
	}

	var fb hal.Framebuffer
	if d := h.Display(); d != nil {
		fb = d.Framebuffer()
	}
	if fb == nil {
		return nil, errors.NotSupportedf("host without framebuffer")
	}

	sources, err := config.LoadSources(cfg.SourcesFile)
	if err != nil {
		return nil, errors.Trace(err)
	}

	v := &Viewer{
		cfg:    cfg,
		hal:    h,
		fb:     fb,
		scene:  quarkgl.NewScene(),
		camera: quarkgl.NewCamera(fieldOfView, float64(fb.Width())/float64(fb.Height()), nearPlane, farPlane),
		panel:  panel.New(),
	}
	if in := h.Input(); in != nil {
		v.kbd = in.Keyboard()
	}
	v.initialViewpoint().Apply(v.camera)

	v.manager, err = pipeline.NewManager(pipeline.Config{
		Scene:       v.scene,
		Camera:      v.camera,
		Surface:     framebufferSurface{fb: fb},
		NewPipeline: v.newPipeline,
		NewControls: newControls,
		Metrics:     cfg.Metrics,
	})
	if err != nil {
		return nil, errors.Trace(err)
	}

	v.machine, err = session.New(session.Config{
		Sources:   sources,
		Fetcher:   wmts.NewHTTPFetcher(cfg.Client),
		Pipelines: v.manager,
		Toolkit:   v.panel,
		Metrics:   cfg.Metrics,
		OnError: func(err error) {
			logger.Warningf("reconfiguration failed: %v", err)
		},
	})
	if err != nil {
		return nil, errors.Trace(err)
	}

	v.driver, err = loop.New(loop.Config{
		Framebuffer: fb,
		Scene:       v.scene,
		Camera:      v.camera,
		Live:        v.manager,
		Overlay:     v.panel,
		Clock:       cfg.Clock,
		Metrics:     cfg.Metrics,
	})
	if err != nil {
		return nil, errors.Trace(err)
	}

	if err := v.machine.SelectSource(cfg.Source); err != nil {
		v.machine.Close()
		return nil, errors.Annotatef(err, "initial source")
	}
	logger.Infof("viewer started: %dx%d, %d sources, initial %q",
		fb.Width(), fb.Height(), len(sources.Names()), cfg.Source)
	return v, nil
}

func (v *Viewer) initialViewpoint() viewpoint.State {
	if v.cfg.ViewpointFile == "" {
		return viewpoint.Initial
	}
	s, err := viewpoint.Load(v.cfg.ViewpointFile)
	switch {
	case err == nil:
		logger.Infof("restored viewpoint from %s", v.cfg.ViewpointFile)
		return s
	case errors.Is(err, fs.ErrNotExist):
		logger.Debugf("no saved viewpoint at %s", v.cfg.ViewpointFile)
	default:
		logger.Warningf("ignoring saved viewpoint: %v", err)
	}
	return viewpoint.Initial
}

func (v *Viewer) newPipeline(opts pipeline.Options) (pipeline.Pipeline, error) {
	r, err := tiles.New(tiles.Options{
		Shape:         opts.Shape,
		Center:        opts.Center,
		Capabilities:  opts.Capabilities,
		Layer:         opts.Layer,
		Style:         opts.Style,
		TileMatrixSet: opts.TileMatrixSet,
		Dimensions:    opts.Dimensions,
		ErrorTarget:   opts.ErrorTarget,
		Ellipsoid:     tiles.WGS84,
		Client:        v.cfg.Client,
		Metrics:       v.cfg.Metrics,
	})
	if err != nil {
		return nil, errors.Trace(err)
	}
	return r, nil
}

func newControls(scene *quarkgl.Scene, cam *quarkgl.Camera, surface pipeline.Surface) pipeline.Controls {
	c := controls.New(scene, cam, surface)
	c.EnableDamping = true
	c.MinDistance = controls.MinDistance
	return c
}

// framebufferSurface is the surface the controls listen on.
type framebufferSurface struct {
	fb hal.Framebuffer
}

func (s framebufferSurface) Size() (int, int) { return s.fb.Width(), s.fb.Height() }

// Step runs one frame: input, completed fetches, then draw. A panic inside a
// frame is logged and replaces the view with a panic screen.
func (v *Viewer) Step() (err error) {
	if v.crashed {
		return nil
	}
	defer func() {
		if r := recover(); r != nil {
			v.crashed = true
			v.showPanic(r)
			err = nil
		}
	}()

	v.handleInput()
	v.machine.Poll()
	return v.driver.Frame()
}

func (v *Viewer) handleInput() {
	if v.kbd == nil {
		return
	}
	for {
		select {
		case ev := <-v.kbd.Events():
			v.dispatchKey(ev)
		default:
			return
		}
	}
}

func (v *Viewer) dispatchKey(ev hal.KeyEvent) {
	if v.panel.HandleKey(ev) {
		return
	}
	if ev.Press && ev.Code == hal.KeyHome {
		viewpoint.Initial.Apply(v.camera)
		return
	}
	if c := v.manager.Controls(); c != nil {
		c.HandleKey(ev)
	}
}

// Close stops fetches, disposes the pipeline and saves the viewpoint.
func (v *Viewer) Close() error {
	v.machine.Close()
	vp := viewpoint.Capture(v.camera)
	v.manager.Dispose()
	if v.cfg.ViewpointFile == "" {
		return nil
	}
	if err := viewpoint.Save(v.cfg.ViewpointFile, vp); err != nil {
		return errors.Annotate(err, "saving viewpoint")
	}
	logger.Infof("saved viewpoint to %s", v.cfg.ViewpointFile)
	return nil
}
