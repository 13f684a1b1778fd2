// Package controls moves the camera around an ellipsoid from keyboard input.
package controls

import (
	"math"

	"globe/hal"
	"globe/viewer/quarkgl"
	"globe/viewer/tiles"
)

// MinDistance is the lowest allowed camera height above the surface, in metres.
const MinDistance = 100

const (
	panAccel     = 0.01
	zoomAccel    = 0.03
	headingAccel = 0.02
	stopEpsilon  = 1e-5
)

// Surface is what the controls draw over; only its size is used.
type Surface interface {
	Size() (w, h int)
}

// Controls is a keyboard globe controller. Arrow keys pan across the surface,
// PageUp/PageDown (or +/-) zoom and a/d turn the heading.
type Controls struct {
	camera  *quarkgl.Camera
	surface Surface

	ellipsoid tiles.Ellipsoid
	root      *quarkgl.Group

	EnableDamping bool
	DampingFactor float64
	MinDistance   float64

	held map[hal.KeyCode]bool

	// velocities: pan east/north, log zoom, heading.
	east, north, zoom, heading float64

	disposed bool
}

// New returns controls for cam. They do nothing until SetEllipsoid is called.
func New(_ *quarkgl.Scene, cam *quarkgl.Camera, surface Surface) *Controls {
	return &Controls{
		camera:        cam,
		surface:       surface,
		DampingFactor: 0.15,
		MinDistance:   MinDistance,
		held:          make(map[hal.KeyCode]bool),
	}
}

// Camera returns the controlled camera.
func (c *Controls) Camera() *quarkgl.Camera { return c.camera }

// SetEllipsoid binds the surface to orbit; root carries the ellipsoid's frame.
func (c *Controls) SetEllipsoid(e tiles.Ellipsoid, root *quarkgl.Group) {
	c.ellipsoid = e
	c.root = root
}

// Dispose detaches the controls. Later calls are no-ops.
func (c *Controls) Dispose() {
	c.disposed = true
	c.root = nil
	c.held = nil
	c.east, c.north, c.zoom, c.heading = 0, 0, 0, 0
}

// HandleKey consumes a key event and reports whether it was used.
func (c *Controls) HandleKey(ev hal.KeyEvent) bool {
	if c.disposed {
		return false
	}
	switch ev.Code {
	case hal.KeyUp, hal.KeyDown, hal.KeyLeft, hal.KeyRight, hal.KeyPageUp, hal.KeyPageDown:
		c.held[ev.Code] = ev.Press
		return true
	}
	if !ev.Press {
		return false
	}
	switch ev.Rune {
	case '+', '=':
		c.zoom -= zoomAccel * 4
	case '-', '_':
		c.zoom += zoomAccel * 4
	case 'a', 'A':
		c.heading += headingAccel * 4
	case 'd', 'D':
		c.heading -= headingAccel * 4
	default:
		return false
	}
	return true
}

// Update advances the camera by one frame. The camera pose is only written
// when there is input or remaining inertia.
func (c *Controls) Update() {
	if c.disposed || c.camera == nil {
		return
	}
	if w, h := c.surfaceSize(); h > 0 {
		c.camera.Aspect = float64(w) / float64(h)
	}
	if c.root == nil {
		return
	}
	c.accumulate()
	if c.moving() {
		c.move()
		c.decay()
	}
	c.clampHeight()
	c.adjustClipping()
}

func (c *Controls) surfaceSize() (int, int) {
	if c.surface == nil {
		return 0, 0
	}
	return c.surface.Size()
}

func (c *Controls) accumulate() {
	if c.held[hal.KeyUp] {
		c.north += panAccel
	}
	if c.held[hal.KeyDown] {
		c.north -= panAccel
	}
	if c.held[hal.KeyRight] {
		c.east += panAccel
	}
	if c.held[hal.KeyLeft] {
		c.east -= panAccel
	}
	if c.held[hal.KeyPageUp] {
		c.zoom -= zoomAccel
	}
	if c.held[hal.KeyPageDown] {
		c.zoom += zoomAccel
	}
}

func (c *Controls) moving() bool {
	return c.east != 0 || c.north != 0 || c.zoom != 0 || c.heading != 0
}

func (c *Controls) decay() {
	keep := 0.0
	if c.EnableDamping {
		keep = 1 - c.DampingFactor
	}
	for _, v := range []*float64{&c.east, &c.north, &c.zoom, &c.heading} {
		*v *= keep
		if math.Abs(*v) < stopEpsilon {
			*v = 0
		}
	}
}

// frame returns the ellipsoid centre and polar axis in world space, and the
// camera height above the surface.
func (c *Controls) frame() (centre, polar quarkgl.Vec3, height float64) {
	m := c.root.Matrix()
	centre = m.Translation()
	polar = quarkgl.Normalize(m.MulDir(quarkgl.V3(0, 0, 1)))
	local := quarkgl.Mat4InverseRigid(m).MulPoint(c.camera.Position)
	_, _, height = c.ellipsoid.CartesianToCartographic(local)
	return centre, polar, height
}

func (c *Controls) move() {
	centre, polar, h := c.frame()
	radius := c.ellipsoid.Radius.X
	scale := max(h, c.MinDistance) / radius

	if c.east != 0 {
		c.rotateAround(centre, polar, c.east*scale)
	}
	if c.north != 0 {
		rel := c.camera.Position.Sub(centre)
		if west := quarkgl.Normalize(quarkgl.Cross(rel, polar)); west != (quarkgl.Vec3{}) {
			c.rotateAround(centre, west, c.north*scale)
		}
	}
	if c.heading != 0 {
		up := quarkgl.Normalize(c.camera.Position.Sub(centre))
		c.camera.Rotation = rotateEuler(c.camera.Rotation, up, c.heading)
	}
	if c.zoom != 0 {
		_, _, h = c.frame()
		target := max(h*math.Exp(c.zoom), c.MinDistance)
		up := quarkgl.Normalize(c.camera.Position.Sub(centre))
		c.camera.Position = c.camera.Position.Add(up.Mul(target - h))
	}
}

// rotateAround turns the camera position and orientation about an axis
// through centre.
func (c *Controls) rotateAround(centre, axis quarkgl.Vec3, rad float64) {
	rel := c.camera.Position.Sub(centre)
	c.camera.Position = centre.Add(quarkgl.RotateAbout(rel, axis, rad))
	c.camera.Rotation = rotateEuler(c.camera.Rotation, axis, rad)
}

func rotateEuler(e quarkgl.Euler, axis quarkgl.Vec3, rad float64) quarkgl.Euler {
	m := e.Matrix()
	x := quarkgl.RotateAbout(m.MulDir(quarkgl.V3(1, 0, 0)), axis, rad)
	y := quarkgl.RotateAbout(m.MulDir(quarkgl.V3(0, 1, 0)), axis, rad)
	z := quarkgl.RotateAbout(m.MulDir(quarkgl.V3(0, 0, 1)), axis, rad)
	return quarkgl.EulerFromMatrix(quarkgl.Mat4Basis(x, y, z))
}

func (c *Controls) clampHeight() {
	centre, _, h := c.frame()
	if h >= c.MinDistance {
		return
	}
	up := quarkgl.Normalize(c.camera.Position.Sub(centre))
	c.camera.Position = c.camera.Position.Add(up.Mul(c.MinDistance - h))
}

// adjustClipping keeps the depth range proportional to the height.
func (c *Controls) adjustClipping() {
	_, _, h := c.frame()
	h = max(h, 1)
	radius := c.ellipsoid.Radius.X
	c.camera.Near = min(max(h*0.05, 0.5), 1e5)
	c.camera.Far = math.Sqrt(h*(2*radius+h)) + radius*0.1
}
