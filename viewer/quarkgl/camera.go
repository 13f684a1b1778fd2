package quarkgl

import "math"

// Camera is a perspective camera placed by Position and Rotation.
//
// The camera looks down its local -Z axis with +Y up. MatrixWorld is only
// refreshed by UpdateMatrixWorld; View and the renderer read the cached value.
type Camera struct {
	Position Vec3
	Rotation Euler

	FOVYRad float64
	Aspect  float64
	Near    float64
	Far     float64

	matrixWorld Mat4
}

// NewCamera returns a perspective camera with a vertical field of view in degrees.
func NewCamera(fovDeg, aspect, near, far float64) *Camera {
	c := &Camera{
		FOVYRad: fovDeg * math.Pi / 180,
		Aspect:  aspect,
		Near:    near,
		Far:     far,
	}
	c.UpdateMatrixWorld()
	return c
}

// UpdateMatrixWorld recomputes the world matrix from Position and Rotation.
func (c *Camera) UpdateMatrixWorld() {
	c.matrixWorld = Mat4Compose(c.Position, c.Rotation)
}

// MatrixWorld returns the last computed world matrix.
func (c *Camera) MatrixWorld() Mat4 { return c.matrixWorld }

// View returns the inverse of the world matrix.
func (c *Camera) View() Mat4 { return Mat4InverseRigid(c.matrixWorld) }

// Projection returns the projection matrix.
func (c *Camera) Projection() Mat4 {
	fov := c.FOVYRad
	if fov == 0 {
		fov = 1
	}
	near, far := c.Near, c.Far
	if near <= 0 {
		near = 0.1
	}
	if far <= near {
		far = near * 1000
	}
	return Mat4Perspective(fov, c.Aspect, near, far)
}

// Forward returns the world-space viewing direction.
func (c *Camera) Forward() Vec3 {
	return Normalize(c.Rotation.Matrix().MulDir(V3(0, 0, -1)))
}

// LookAt orients the camera towards target keeping up as close to vertical as possible.
func (c *Camera) LookAt(target, up Vec3) {
	z := Normalize(c.Position.Sub(target))
	if z == (Vec3{}) {
		return
	}
	x := Normalize(Cross(up, z))
	if x == (Vec3{}) {
		x = Normalize(Cross(V3(1, 0, 0), z))
	}
	y := Cross(z, x)
	c.Rotation = EulerFromMatrix(Mat4Basis(x, y, z))
}
