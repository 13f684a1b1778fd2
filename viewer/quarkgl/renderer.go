package quarkgl

import "math"

// Renderer is a fixed-pipeline software renderer.
//
// Create it once and reuse it to avoid allocations.
type Renderer struct {
	Mode       RenderMode
	Depth      bool
	ClearColor Color

	depthBuf  []float64
	triangles int
}

// NewRenderer creates a renderer with solid flat shading and a depth buffer.
func NewRenderer() *Renderer {
	return &Renderer{
		Mode:       RenderSolidFlat,
		Depth:      true,
		ClearColor: RGB(0, 0, 0),
	}
}

// Triangles returns how many triangles reached rasterization in the last Render.
func (r *Renderer) Triangles() int { return r.triangles }

func (r *Renderer) prepareDepth(w, h int) {
	if !r.Depth {
		r.depthBuf = nil
		return
	}
	if cap(r.depthBuf) < w*h {
		r.depthBuf = make([]float64, w*h)
	}
	r.depthBuf = r.depthBuf[:w*h]
	for i := range r.depthBuf {
		r.depthBuf[i] = math.Inf(1)
	}
}

// Render clears the target and draws the scene as seen by cam.
func (r *Renderer) Render(t Target, s *Scene, cam *Camera) {
	if r == nil || t == nil {
		return
	}
	w, h := t.Size()
	if w <= 0 || h <= 0 {
		return
	}
	t.Clear(r.ClearColor)
	r.triangles = 0
	if s == nil || cam == nil {
		return
	}
	r.prepareDepth(w, h)

	view := cam.View()
	proj := cam.Projection()
	near := cam.Near
	s.eachMesh(func(world Mat4, m *Mesh) {
		r.renderMesh(t, w, h, proj, view, world, near, m, s.Light)
	})
}

func (r *Renderer) renderMesh(t Target, w, h int, proj, view, world Mat4, near float64, m *Mesh, light Light) {
	if len(m.Vertices) == 0 || len(m.Indices) < 3 {
		return
	}
	mvp := Mat4Mul(proj, Mat4Mul(view, world))

	for i := 0; i+2 < len(m.Indices); i += 3 {
		i0, i1, i2 := int(m.Indices[i]), int(m.Indices[i+1]), int(m.Indices[i+2])
		if i0 >= len(m.Vertices) || i1 >= len(m.Vertices) || i2 >= len(m.Vertices) {
			continue
		}
		v0, v1, v2 := m.Vertices[i0], m.Vertices[i1], m.Vertices[i2]

		p0 := Mat4MulV4(mvp, Vec4{X: v0.Pos.X, Y: v0.Pos.Y, Z: v0.Pos.Z, W: 1})
		p1 := Mat4MulV4(mvp, Vec4{X: v1.Pos.X, Y: v1.Pos.Y, Z: v1.Pos.Z, W: 1})
		p2 := Mat4MulV4(mvp, Vec4{X: v2.Pos.X, Y: v2.Pos.Y, Z: v2.Pos.Z, W: 1})

		// Trivial clip: drop triangles touching the near plane or lying fully
		// outside one side of the frustum.
		if p0.W < near || p1.W < near || p2.W < near {
			continue
		}
		ndc0, ndc1, ndc2 := clipToNDC(p0), clipToNDC(p1), clipToNDC(p2)
		if outside(ndc0, ndc1, ndc2) {
			continue
		}

		x0, y0 := ndcToScreen(ndc0, w, h)
		x1, y1 := ndcToScreen(ndc1, w, h)
		x2, y2 := ndcToScreen(ndc2, w, h)

		base := m.Material.BaseColor
		if light.Mode == LightAmbientDirectional {
			n := Normalize(world.MulDir(triangleNormal(v0.Pos, v1.Pos, v2.Pos)))
			base = base.MulScalar(lightIntensity(light, n))
		}
		r.triangles++

		switch r.Mode {
		case RenderWireframe:
			r.drawLine(t, x0, y0, x1, y1, base)
			r.drawLine(t, x1, y1, x2, y2, base)
			r.drawLine(t, x2, y2, x0, y0, base)
		case RenderSolidVertexColor:
			r.fillTriangle(t, w, h, [3]int{x0, x1, x2}, [3]int{y0, y1, y2}, [3]float64{ndc0.Z, ndc1.Z, ndc2.Z}, &[3]Color{v0.Color, v1.Color, v2.Color}, base)
		default:
			r.fillTriangle(t, w, h, [3]int{x0, x1, x2}, [3]int{y0, y1, y2}, [3]float64{ndc0.Z, ndc1.Z, ndc2.Z}, nil, base)
		}
	}
}

type ndcPoint struct {
	X, Y, Z float64
}

// ndcLimit keeps screen coordinates of very close triangles inside int range.
const ndcLimit = 1e4

func clipToNDC(p Vec4) ndcPoint {
	inv := 1 / p.W
	return ndcPoint{
		X: clamp(p.X*inv, -ndcLimit, ndcLimit),
		Y: clamp(p.Y*inv, -ndcLimit, ndcLimit),
		Z: p.Z * inv,
	}
}

func outside(a, b, c ndcPoint) bool {
	switch {
	case a.X < -1 && b.X < -1 && c.X < -1:
	case a.X > 1 && b.X > 1 && c.X > 1:
	case a.Y < -1 && b.Y < -1 && c.Y < -1:
	case a.Y > 1 && b.Y > 1 && c.Y > 1:
	case a.Z > 1 && b.Z > 1 && c.Z > 1:
	default:
		return false
	}
	return true
}

func ndcToScreen(p ndcPoint, w, h int) (x, y int) {
	sx := (p.X*0.5 + 0.5) * float64(w-1)
	sy := (1 - (p.Y*0.5 + 0.5)) * float64(h-1)
	return int(math.Round(sx)), int(math.Round(sy))
}

func triangleNormal(a, b, c Vec3) Vec3 {
	return Normalize(Cross(b.Sub(a), c.Sub(a)))
}

func lightIntensity(l Light, n Vec3) float64 {
	amb := Clamp01(l.Ambient)
	ld := Normalize(l.Dir)
	if ld == (Vec3{}) {
		return amb
	}
	d := math.Abs(Dot(n, ld))
	return Clamp01(amb + d*Clamp01(l.DirAmount))
}

func (r *Renderer) depthTest(w, x, y int, z float64) bool {
	if r.depthBuf == nil {
		return true
	}
	idx := y*w + x
	if idx < 0 || idx >= len(r.depthBuf) {
		return false
	}
	if z >= r.depthBuf[idx] {
		return false
	}
	r.depthBuf[idx] = z
	return true
}

func (r *Renderer) drawLine(t Target, x0, y0, x1, y1 int, c Color) {
	dx := absInt(x1 - x0)
	sx := -1
	if x0 < x1 {
		sx = 1
	}
	dy := -absInt(y1 - y0)
	sy := -1
	if y0 < y1 {
		sy = 1
	}
	err := dx + dy
	for {
		t.SetPixel(x0, y0, c)
		if x0 == x1 && y0 == y1 {
			return
		}
		e2 := 2 * err
		if e2 >= dy {
			err += dy
			x0 += sx
		}
		if e2 <= dx {
			err += dx
			y0 += sy
		}
	}
}

// fillTriangle rasterizes either winding. With colors == nil the triangle is flat.
func (r *Renderer) fillTriangle(t Target, w, h int, xs, ys [3]int, zs [3]float64, colors *[3]Color, flat Color) {
	minX, maxX := max(min(xs[0], xs[1], xs[2]), 0), min(max(xs[0], xs[1], xs[2]), w-1)
	minY, maxY := max(min(ys[0], ys[1], ys[2]), 0), min(max(ys[0], ys[1], ys[2]), h-1)
	if minX > maxX || minY > maxY {
		return
	}

	area := edgeFn(xs[0], ys[0], xs[1], ys[1], xs[2], ys[2])
	if area == 0 {
		return
	}
	sign := 1
	if area < 0 {
		sign = -1
	}
	invArea := 1 / float64(area)

	for y := minY; y <= maxY; y++ {
		for x := minX; x <= maxX; x++ {
			w0 := edgeFn(xs[1], ys[1], xs[2], ys[2], x, y)
			w1 := edgeFn(xs[2], ys[2], xs[0], ys[0], x, y)
			w2 := edgeFn(xs[0], ys[0], xs[1], ys[1], x, y)
			if w0*sign < 0 || w1*sign < 0 || w2*sign < 0 {
				continue
			}
			a0 := float64(w0) * invArea
			a1 := float64(w1) * invArea
			a2 := float64(w2) * invArea
			if !r.depthTest(w, x, y, a0*zs[0]+a1*zs[1]+a2*zs[2]) {
				continue
			}
			if colors == nil {
				t.SetPixel(x, y, flat)
				continue
			}
			c0, c1, c2 := colors[0], colors[1], colors[2]
			t.SetPixel(x, y, Color{
				R: uint8(clamp(a0*float64(c0.R)+a1*float64(c1.R)+a2*float64(c2.R), 0, 255)),
				G: uint8(clamp(a0*float64(c0.G)+a1*float64(c1.G)+a2*float64(c2.G), 0, 255)),
				B: uint8(clamp(a0*float64(c0.B)+a1*float64(c1.B)+a2*float64(c2.B), 0, 255)),
				A: 0xFF,
			})
		}
	}
}

func edgeFn(x0, y0, x1, y1, x, y int) int {
	return (x-x0)*(y1-y0) - (y-y0)*(x1-x0)
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
