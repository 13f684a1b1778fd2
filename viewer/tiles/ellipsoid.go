package tiles

import (
	"math"

	"globe/viewer/quarkgl"
)

// Ellipsoid is an axis-aligned ellipsoid centred on the origin of its local
// frame, with the polar axis along +Z.
type Ellipsoid struct {
	Radius quarkgl.Vec3
}

// WGS84 is the reference ellipsoid used by every supported tile matrix set.
var WGS84 = Ellipsoid{Radius: quarkgl.V3(6378137, 6378137, 6356752.314245179)}

func (e Ellipsoid) eccentricitySq() float64 {
	a, b := e.Radius.X, e.Radius.Z
	return 1 - (b*b)/(a*a)
}

// CartographicToCartesian converts geodetic latitude and longitude (radians)
// and height above the surface (metres) to a point in the local frame.
func (e Ellipsoid) CartographicToCartesian(lat, lon, h float64) quarkgl.Vec3 {
	a := e.Radius.X
	e2 := e.eccentricitySq()
	sinLat, cosLat := math.Sin(lat), math.Cos(lat)
	n := a / math.Sqrt(1-e2*sinLat*sinLat)
	return quarkgl.V3(
		(n+h)*cosLat*math.Cos(lon),
		(n+h)*cosLat*math.Sin(lon),
		(n*(1-e2)+h)*sinLat,
	)
}

// CartesianToCartographic is the inverse of CartographicToCartesian.
func (e Ellipsoid) CartesianToCartographic(p quarkgl.Vec3) (lat, lon, h float64) {
	a, b := e.Radius.X, e.Radius.Z
	e2 := e.eccentricitySq()
	lon = math.Atan2(p.Y, p.X)
	r := math.Hypot(p.X, p.Y)
	if r < 1e-9 {
		lat = math.Copysign(math.Pi/2, p.Z)
		return lat, 0, math.Abs(p.Z) - b
	}
	lat = math.Atan2(p.Z, r*(1-e2))
	for i := 0; i < 6; i++ {
		sinLat := math.Sin(lat)
		n := a / math.Sqrt(1-e2*sinLat*sinLat)
		h = r/math.Cos(lat) - n
		lat = math.Atan2(p.Z, r*(1-e2*n/(n+h)))
	}
	sinLat := math.Sin(lat)
	n := a / math.Sqrt(1-e2*sinLat*sinLat)
	h = r/math.Cos(lat) - n
	return lat, lon, h
}

// IntersectRay returns the nearest point where the ray hits the surface.
func (e Ellipsoid) IntersectRay(origin, dir quarkgl.Vec3) (quarkgl.Vec3, bool) {
	inv := quarkgl.V3(1/e.Radius.X, 1/e.Radius.Y, 1/e.Radius.Z)
	o := quarkgl.V3(origin.X*inv.X, origin.Y*inv.Y, origin.Z*inv.Z)
	d := quarkgl.V3(dir.X*inv.X, dir.Y*inv.Y, dir.Z*inv.Z)

	qa := quarkgl.Dot(d, d)
	qb := 2 * quarkgl.Dot(o, d)
	qc := quarkgl.Dot(o, o) - 1
	disc := qb*qb - 4*qa*qc
	if qa == 0 || disc < 0 {
		return quarkgl.Vec3{}, false
	}
	sq := math.Sqrt(disc)
	t := (-qb - sq) / (2 * qa)
	if t < 0 {
		t = (-qb + sq) / (2 * qa)
	}
	if t < 0 {
		return quarkgl.Vec3{}, false
	}
	return origin.Add(dir.Mul(t)), true
}

// HorizonAngle is the geocentric angle from the nadir to the horizon seen from
// height h.
func (e Ellipsoid) HorizonAngle(h float64) float64 {
	r := e.Radius.X
	if h <= 0 {
		return 0
	}
	return math.Acos(r / (r + h))
}
