package tiles

import (
	"image"
	"math"

	"globe/viewer/quarkgl"

	"github.com/paulmach/orb"
)

// baseDepth keeps the placeholder globe under the streamed tiles.
const baseDepth = -2000

var baseColor = quarkgl.RGB(0x2a, 0x3a, 0x4a)

// patchMesh tessellates the part of the ellipsoid inside b (degrees) at height h.
func patchMesh(e Ellipsoid, b orb.Bound, lonSegs, latSegs int, h float64, c quarkgl.Color) *quarkgl.Mesh {
	lonSegs, latSegs = max(lonSegs, 1), max(latSegs, 1)
	m := &quarkgl.Mesh{
		Vertices: make([]quarkgl.Vertex, 0, (lonSegs+1)*(latSegs+1)),
		Indices:  make([]uint32, 0, lonSegs*latSegs*6),
		Material: quarkgl.Material{BaseColor: c},
	}
	for j := 0; j <= latSegs; j++ {
		lat := b.Min[1] + (b.Max[1]-b.Min[1])*float64(j)/float64(latSegs)
		for i := 0; i <= lonSegs; i++ {
			lon := b.Min[0] + (b.Max[0]-b.Min[0])*float64(i)/float64(lonSegs)
			p := e.CartographicToCartesian(lat*math.Pi/180, lon*math.Pi/180, h)
			m.Vertices = append(m.Vertices, quarkgl.Vertex{Pos: p, Normal: quarkgl.Normalize(p), Color: c})
		}
	}
	stride := uint32(lonSegs + 1)
	for j := uint32(0); j < uint32(latSegs); j++ {
		for i := uint32(0); i < uint32(lonSegs); i++ {
			a := j*stride + i
			m.Indices = append(m.Indices, a, a+1, a+stride+1, a, a+stride+1, a+stride)
		}
	}
	return m
}

// baseMesh is the untextured globe drawn under the tiles.
func baseMesh(e Ellipsoid) *quarkgl.Mesh {
	return patchMesh(e, world, 48, 24, baseDepth, baseColor)
}

// tileMesh picks a tessellation that follows the curvature of large tiles.
func tileMesh(e Ellipsoid, b orb.Bound, c quarkgl.Color) *quarkgl.Mesh {
	segs := func(deg float64) int { return min(max(int(math.Ceil(deg/4)), 2), 16) }
	return patchMesh(e, b, segs(b.Max[0]-b.Min[0]), segs(b.Max[1]-b.Min[1]), 0, c)
}

// meanColor averages the opaque pixels of img on a sparse lattice. ok is false
// when the image is fully transparent.
func meanColor(img image.Image) (c quarkgl.Color, ok bool) {
	bounds := img.Bounds()
	step := max(min(bounds.Dx(), bounds.Dy())/32, 1)
	var r, g, b, n uint64
	for y := bounds.Min.Y; y < bounds.Max.Y; y += step {
		for x := bounds.Min.X; x < bounds.Max.X; x += step {
			cr, cg, cb, ca := img.At(x, y).RGBA()
			if ca < 0x8000 {
				continue
			}
			// Undo premultiplication so half-transparent edges keep their hue.
			r += uint64(cr) * 0xffff / uint64(ca)
			g += uint64(cg) * 0xffff / uint64(ca)
			b += uint64(cb) * 0xffff / uint64(ca)
			n++
		}
	}
	if n == 0 {
		return quarkgl.Color{}, false
	}
	return quarkgl.RGB(uint8(r/n>>8), uint8(g/n>>8), uint8(b/n>>8)), true
}
