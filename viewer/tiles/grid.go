package tiles

import (
	"math"
	"sort"

	"globe/viewer/wmts"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/maptile"
	"github.com/paulmach/orb/project"
)

// standardPixel is the WMTS "standardized rendering pixel size" in metres.
const standardPixel = 0.28e-3

// mercatorHalfExtent is half the width of the web-mercator plane in metres.
const mercatorHalfExtent = 20037508.342789244

var world = orb.Bound{Min: orb.Point{-180, -90}, Max: orb.Point{180, 90}}

// grid maps between tile indices of one tile matrix and lon/lat degrees.
type grid interface {
	bound(col, row int) orb.Bound
	fraction(p orb.Point) (col, row float64)
	// groundResolution is metres per tile pixel at the given latitude.
	groundResolution(lat float64) float64
}

type level struct {
	matrix wmts.TileMatrix
	grid   grid
}

// levelsFor orders the matrices of set from coarse to fine and attaches the
// grid used to place their tiles on the ellipsoid.
func levelsFor(set *wmts.TileMatrixSet, bbox *wmts.BoundingBox) []level {
	levels := make([]level, 0, len(set.TileMatrices))
	for _, m := range set.TileMatrices {
		if m.MatrixWidth <= 0 || m.MatrixHeight <= 0 || m.TileWidth <= 0 {
			continue
		}
		var g grid
		if set.SupportedCRS == wmts.WebMercator {
			g = newMercatorGrid(m)
		} else {
			g = newLinearGrid(m, bbox)
		}
		levels = append(levels, level{matrix: m, grid: g})
	}
	sort.SliceStable(levels, func(i, j int) bool {
		return levels[i].grid.groundResolution(0) > levels[j].grid.groundResolution(0)
	})
	return levels
}

type mercatorGrid struct {
	m    wmts.TileMatrix
	span float64 // tile width in metres

	// standard is set for the Google-compatible quadtree at zoom z.
	standard bool
	z        maptile.Zoom
}

func newMercatorGrid(m wmts.TileMatrix) *mercatorGrid {
	g := &mercatorGrid{m: m, span: m.ScaleDenominator * standardPixel * float64(m.TileWidth)}
	if g.span <= 0 {
		g.span = 2 * mercatorHalfExtent / float64(m.MatrixWidth)
	}
	z := math.Log2(float64(m.MatrixWidth))
	if m.MatrixWidth == m.MatrixHeight && z == math.Trunc(z) &&
		math.Abs(m.TopLeftX+mercatorHalfExtent) < 1 && math.Abs(m.TopLeftY-mercatorHalfExtent) < 1 {
		g.standard = true
		g.z = maptile.Zoom(z)
	}
	return g
}

func (g *mercatorGrid) bound(col, row int) orb.Bound {
	if g.standard {
		return maptile.New(uint32(col), uint32(row), g.z).Bound()
	}
	x0 := g.m.TopLeftX + float64(col)*g.span
	y0 := g.m.TopLeftY - float64(row)*g.span
	nw := project.Mercator.ToWGS84(orb.Point{x0, y0})
	se := project.Mercator.ToWGS84(orb.Point{x0 + g.span, y0 - g.span})
	return orb.Bound{Min: orb.Point{nw[0], se[1]}, Max: orb.Point{se[0], nw[1]}}
}

func (g *mercatorGrid) fraction(p orb.Point) (float64, float64) {
	if g.standard {
		f := maptile.Fraction(p, g.z)
		return f[0], f[1]
	}
	m := project.WGS84.ToMercator(p)
	return (m[0] - g.m.TopLeftX) / g.span, (g.m.TopLeftY - m[1]) / g.span
}

func (g *mercatorGrid) groundResolution(lat float64) float64 {
	return g.span / float64(g.m.TileWidth) * math.Cos(lat*math.Pi/180)
}

// linearGrid spreads a matrix of a CRS the viewer cannot project evenly over
// the layer's WGS84 bounding box.
type linearGrid struct {
	m          wmts.TileMatrix
	box        orb.Bound
	dLon, dLat float64
}

func newLinearGrid(m wmts.TileMatrix, bbox *wmts.BoundingBox) *linearGrid {
	box := world
	if bbox != nil && bbox.MaxLon > bbox.MinLon && bbox.MaxLat > bbox.MinLat {
		box = orb.Bound{Min: orb.Point{bbox.MinLon, bbox.MinLat}, Max: orb.Point{bbox.MaxLon, bbox.MaxLat}}
	}
	return &linearGrid{
		m:    m,
		box:  box,
		dLon: (box.Max[0] - box.Min[0]) / float64(m.MatrixWidth),
		dLat: (box.Max[1] - box.Min[1]) / float64(m.MatrixHeight),
	}
}

func (g *linearGrid) bound(col, row int) orb.Bound {
	minLon := g.box.Min[0] + float64(col)*g.dLon
	maxLat := g.box.Max[1] - float64(row)*g.dLat
	return orb.Bound{Min: orb.Point{minLon, maxLat - g.dLat}, Max: orb.Point{minLon + g.dLon, maxLat}}
}

func (g *linearGrid) fraction(p orb.Point) (float64, float64) {
	return (p[0] - g.box.Min[0]) / g.dLon, (g.box.Max[1] - p[1]) / g.dLat
}

func (g *linearGrid) groundResolution(lat float64) float64 {
	metresPerDegree := 2 * math.Pi * WGS84.Radius.X / 360
	return g.dLon * metresPerDegree * math.Cos(lat*math.Pi/180) / float64(g.m.TileWidth)
}

// tileRange returns the inclusive index range of tiles of lvl overlapping b,
// or ok=false when b misses the matrix entirely.
func tileRange(lvl level, b orb.Bound) (col0, row0, col1, row1 int, ok bool) {
	c0, r0 := lvl.grid.fraction(orb.Point{b.Min[0], b.Max[1]})
	c1, r1 := lvl.grid.fraction(orb.Point{b.Max[0], b.Min[1]})
	if c0 > c1 {
		c0, c1 = c1, c0
	}
	if r0 > r1 {
		r0, r1 = r1, r0
	}
	w, h := float64(lvl.matrix.MatrixWidth), float64(lvl.matrix.MatrixHeight)
	if c1 < 0 || r1 < 0 || c0 >= w || r0 >= h {
		return 0, 0, 0, 0, false
	}
	col0 = max(int(math.Floor(c0)), 0)
	row0 = max(int(math.Floor(r0)), 0)
	col1 = min(int(math.Floor(c1)), lvl.matrix.MatrixWidth-1)
	row1 = min(int(math.Floor(r1)), lvl.matrix.MatrixHeight-1)
	return col0, row0, col1, row1, true
}
