// Package pipeline owns the live tile pipeline and its camera controls, and
// swaps them when the parameter set changes.
package pipeline

import (
	"globe/hal"
	"globe/viewer/quarkgl"
	"globe/viewer/tiles"
	"globe/viewer/wmts"

	"github.com/juju/errors"
)

// ErrPipelineConstruction is returned by Rebuild when the new pipeline could
// not be built. The manager is then pipeline-less.
const ErrPipelineConstruction = errors.ConstError("pipeline construction failed")

// ErrorTarget is the screen-space error, in pixels, every pipeline is built with.
const ErrorTarget = 1.5

// ShapeEllipsoid is the tile shape every pipeline is built with.
const ShapeEllipsoid = tiles.ShapeEllipsoid

// Options describes one pipeline configuration.
type Options struct {
	Shape         string
	Center        bool
	Capabilities  *wmts.Capabilities
	Layer         string
	Style         string
	TileMatrixSet string
	Dimensions    map[string]string
	ErrorTarget   float64
}

// Pipeline is a streaming tile pipeline bound to one configuration.
type Pipeline interface {
	SetCamera(cam *quarkgl.Camera)
	SetResolution(w, h int)
	Update()
	Dispose()
	Group() *quarkgl.Group
	Ellipsoid() tiles.Ellipsoid
}

// Surface is the area the controls listen on.
type Surface interface {
	Size() (w, h int)
}

// Controls move the camera around the pipeline's ellipsoid.
type Controls interface {
	SetEllipsoid(e tiles.Ellipsoid, root *quarkgl.Group)
	HandleKey(ev hal.KeyEvent) bool
	Update()
	Dispose()
	Camera() *quarkgl.Camera
}

// Factory builds a pipeline.
type Factory func(opts Options) (Pipeline, error)

// ControlsFactory builds controls for a camera.
type ControlsFactory func(scene *quarkgl.Scene, cam *quarkgl.Camera, surface Surface) Controls
