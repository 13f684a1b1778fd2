package pipeline

import (
	"math"

	"globe/internal/metrics"
	"globe/viewer/params"
	"globe/viewer/quarkgl"
	"globe/viewer/viewpoint"
	"globe/viewer/wmts"

	"github.com/google/uuid"
	"github.com/juju/errors"
	"github.com/juju/loggo"
)

var logger = loggo.GetLogger("globe.pipeline")

// Config holds the collaborators of a Manager.
type Config struct {
	Scene       *quarkgl.Scene
	Camera      *quarkgl.Camera
	Surface     Surface
	NewPipeline Factory
	NewControls ControlsFactory
	Metrics     *metrics.Collector
}

// Validate checks that the required collaborators are set.
func (c Config) Validate() error {
	switch {
	case c.Scene == nil:
		return errors.NotValidf("nil Scene")
	case c.Camera == nil:
		return errors.NotValidf("nil Camera")
	case c.NewPipeline == nil:
		return errors.NotValidf("nil NewPipeline")
	case c.NewControls == nil:
		return errors.NotValidf("nil NewControls")
	}
	return nil
}

// Manager holds at most one live pipeline and the controls bound to it.
// It is not safe for concurrent use; it lives on the frame goroutine.
type Manager struct {
	cfg Config

	pipeline Pipeline
	controls Controls
	handle   uuid.UUID
	options  Options
}

// NewManager returns a pipeline-less manager.
func NewManager(cfg Config) (*Manager, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	return &Manager{cfg: cfg}, nil
}

// Pipeline returns the live pipeline, or nil.
func (m *Manager) Pipeline() Pipeline { return m.pipeline }

// Controls returns the live controls, or nil.
func (m *Manager) Controls() Controls { return m.controls }

// Handle identifies the live pipeline; uuid.Nil when there is none.
func (m *Manager) Handle() uuid.UUID { return m.handle }

// Options returns the configuration of the live pipeline.
func (m *Manager) Options() (Options, bool) {
	return m.options, m.pipeline != nil
}

// Camera returns the managed camera.
func (m *Manager) Camera() *quarkgl.Camera { return m.cfg.Camera }

// Rebuild replaces the live pipeline and controls with ones built for set.
// The old pipeline is disposed before the new one is constructed, and the
// camera pose is the same before and after the call.
func (m *Manager) Rebuild(doc *wmts.Capabilities, set params.Set) error {
	vp := viewpoint.Capture(m.cfg.Camera)
	m.teardown()

	opts := Options{
		Shape:         ShapeEllipsoid,
		Center:        true,
		Capabilities:  doc,
		Layer:         set.Layer,
		Style:         set.Style,
		TileMatrixSet: set.TileMatrixSet,
		Dimensions:    set.Clone().Dimensions,
		ErrorTarget:   ErrorTarget,
	}
	p, err := m.cfg.NewPipeline(opts)
	if err != nil {
		m.cfg.Metrics.ConstructionFailed()
		vp.Apply(m.cfg.Camera)
		logger.Errorf("building pipeline for %s/%s/%s: %v", set.Layer, set.Style, set.TileMatrixSet, err)
		return errors.Annotatef(ErrPipelineConstruction, "layer %q: %v", set.Layer, err)
	}

	group := p.Group()
	group.Rotation.X = -math.Pi / 2
	m.cfg.Scene.Add(group)

	c := m.cfg.NewControls(m.cfg.Scene, m.cfg.Camera, m.cfg.Surface)
	c.SetEllipsoid(p.Ellipsoid(), group)

	m.pipeline, m.controls, m.options = p, c, opts
	m.handle = uuid.New()
	vp.Apply(m.cfg.Camera)

	m.cfg.Metrics.SetLivePipelines(1)
	logger.Infof("pipeline %s live: source %q layer %q style %q matrix set %q (%d scene groups)",
		m.handle, set.Source, set.Layer, set.Style, set.TileMatrixSet, m.cfg.Scene.Groups())
	return nil
}

// Dispose tears down the live pipeline and controls, if any.
func (m *Manager) Dispose() {
	m.teardown()
}

func (m *Manager) teardown() {
	if m.pipeline != nil {
		logger.Debugf("disposing pipeline %s", m.handle)
		m.cfg.Scene.Remove(m.pipeline.Group())
		m.pipeline.Dispose()
	}
	if m.controls != nil {
		m.controls.Dispose()
	}
	m.pipeline, m.controls = nil, nil
	m.handle = uuid.Nil
	m.options = Options{}
	m.cfg.Metrics.SetLivePipelines(0)
}
