package quarkgl

import "math"

// Euler is a rotation in radians applied in XYZ order (R = Rx·Ry·Rz).
type Euler struct {
	X, Y, Z float64
}

// Matrix returns the rotation matrix for e.
func (e Euler) Matrix() Mat4 {
	return Mat4Mul(Mat4RotateX(e.X), Mat4Mul(Mat4RotateY(e.Y), Mat4RotateZ(e.Z)))
}

// EulerFromMatrix extracts XYZ angles from the rotation part of m.
func EulerFromMatrix(m Mat4) Euler {
	m11, m12, m13 := m[0], m[4], m[8]
	m22, m23 := m[5], m[9]
	m32, m33 := m[6], m[10]

	var e Euler
	e.Y = math.Asin(clamp(m13, -1, 1))
	if math.Abs(m13) < 0.9999999 {
		e.X = math.Atan2(-m23, m33)
		e.Z = math.Atan2(-m12, m11)
	} else {
		// Gimbal lock: fold Z into X.
		e.X = math.Atan2(m32, m22)
	}
	return e
}
