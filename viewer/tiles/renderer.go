// Package tiles streams WMTS imagery onto an ellipsoid for the globe view.
package tiles

import (
	"context"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"math"
	"net/http"
	"sort"
	"sync"

	"globe/internal/httputil"
	"globe/internal/metrics"
	"globe/viewer/quarkgl"
	"globe/viewer/wmts"

	"github.com/juju/errors"
	"github.com/juju/loggo"
	"github.com/paulmach/orb"
	"golang.org/x/sync/semaphore"
)

var logger = loggo.GetLogger("globe.tiles")

// ShapeEllipsoid is the only supported tile shape.
const ShapeEllipsoid = "ellipsoid"

const (
	defaultMaxConcurrent = 6
	defaultMaxTiles      = 48
	maxCachedTiles       = 256
	maxTileBytes         = 4 << 20
)

// Options configures a Renderer.
type Options struct {
	Shape         string
	Center        bool
	Capabilities  *wmts.Capabilities
	Layer         string
	Style         string
	TileMatrixSet string
	Dimensions    map[string]string

	// ErrorTarget is the tolerated screen-space error in pixels.
	ErrorTarget float64

	Ellipsoid     Ellipsoid
	Client        httputil.HTTPClient
	MaxConcurrent int64
	MaxTiles      int
	Metrics       *metrics.Collector
}

type tileKey struct {
	matrix   string
	col, row int
}

type tileState uint8

const (
	tilePending tileState = iota
	tileLoaded
	tileFailed
)

type tile struct {
	state  tileState
	cancel context.CancelFunc
	bound  orb.Bound
	mesh   *quarkgl.Mesh // nil until loaded, and for transparent tiles
}

type tileResult struct {
	key   tileKey
	color quarkgl.Color
	empty bool
	err   error
}

// Stats summarises the streaming state.
type Stats struct {
	Level      string
	Selected   int
	Loaded     int
	Pending    int
	Failed     int
	Selections int
}

// Renderer streams the tiles of one layer/style/matrix-set selection. All
// methods except the download workers run on the frame goroutine.
type Renderer struct {
	doc       *wmts.Capabilities
	layer     *wmts.Layer
	opts      Options
	levels    []level
	ellipsoid Ellipsoid
	client    httputil.HTTPClient
	metrics   *metrics.Collector

	group *quarkgl.Group
	base  *quarkgl.Mesh

	camera        *quarkgl.Camera
	width, height int

	ctx     context.Context
	cancel  context.CancelFunc
	sem     *semaphore.Weighted
	wg      sync.WaitGroup
	results chan tileResult

	tiles      map[tileKey]*tile
	selected   []tileKey
	levelID    string
	lastView   quarkgl.Mat4
	lastW      int
	lastH      int
	dirty      bool
	selections int
	disposed   bool
}

// New validates opts against the capability document and prepares the
// renderer. No network traffic happens until the first Update with a camera.
func New(opts Options) (*Renderer, error) {
	if opts.Shape == "" {
		opts.Shape = ShapeEllipsoid
	}
	if opts.Shape != ShapeEllipsoid {
		return nil, errors.NotSupportedf("tile shape %q", opts.Shape)
	}
	if opts.Capabilities == nil {
		return nil, errors.NotValidf("nil capabilities")
	}
	if opts.ErrorTarget <= 0 {
		return nil, errors.NotValidf("error target %v", opts.ErrorTarget)
	}
	layer, ok := opts.Capabilities.Layer(opts.Layer)
	if !ok {
		return nil, errors.NotFoundf("layer %q", opts.Layer)
	}
	if !layer.HasStyle(opts.Style) {
		return nil, errors.NotFoundf("style %q of layer %q", opts.Style, opts.Layer)
	}
	set, ok := layer.TileMatrixSet(opts.TileMatrixSet)
	if !ok {
		return nil, errors.NotFoundf("tile matrix set %q of layer %q", opts.TileMatrixSet, opts.Layer)
	}
	levels := levelsFor(set, layer.WGS84BoundingBox)
	if len(levels) == 0 {
		return nil, errors.NotValidf("tile matrix set %q without usable matrices", set.Identifier)
	}

	if opts.Ellipsoid == (Ellipsoid{}) {
		opts.Ellipsoid = WGS84
	}
	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = defaultMaxConcurrent
	}
	if opts.MaxTiles <= 0 {
		opts.MaxTiles = defaultMaxTiles
	}
	if opts.Client == nil {
		opts.Client = httputil.NewStandardClient(nil)
	}

	ctx, cancel := context.WithCancel(context.Background())
	r := &Renderer{
		doc:       opts.Capabilities,
		layer:     layer,
		opts:      opts,
		levels:    levels,
		ellipsoid: opts.Ellipsoid,
		client:    opts.Client,
		metrics:   opts.Metrics,
		group:     quarkgl.NewGroup(),
		ctx:       ctx,
		cancel:    cancel,
		sem:       semaphore.NewWeighted(opts.MaxConcurrent),
		results:   make(chan tileResult, 64),
		tiles:     make(map[tileKey]*tile),
	}
	r.base = baseMesh(r.ellipsoid)
	r.group.Add(r.base)
	logger.Debugf("tiles for %s/%s/%s: %d levels", opts.Layer, opts.Style, set.Identifier, len(levels))
	return r, nil
}

// Group is the root node holding the globe meshes.
func (r *Renderer) Group() *quarkgl.Group { return r.group }

// Ellipsoid is the surface the tiles are draped on, in the group's frame.
func (r *Renderer) Ellipsoid() Ellipsoid { return r.ellipsoid }

// SetCamera binds the camera used for tile selection.
func (r *Renderer) SetCamera(cam *quarkgl.Camera) { r.camera = cam }

// SetResolution records the output size in pixels.
func (r *Renderer) SetResolution(w, h int) {
	r.width, r.height = w, h
}

// Stats reports the current streaming state.
func (r *Renderer) Stats() Stats {
	s := Stats{Level: r.levelID, Selected: len(r.selected), Selections: r.selections}
	for _, t := range r.tiles {
		switch t.state {
		case tilePending:
			s.Pending++
		case tileLoaded:
			s.Loaded++
		case tileFailed:
			s.Failed++
		}
	}
	return s
}

// Update applies finished downloads and, when the view, the resolution or the
// loaded set changed, reselects the tiles to show and requests missing ones.
func (r *Renderer) Update() {
	if r.disposed {
		return
	}
	r.drain()
	if r.camera == nil || r.width <= 0 || r.height <= 0 {
		return
	}
	view := r.camera.MatrixWorld()
	if !r.dirty && view == r.lastView && r.width == r.lastW && r.height == r.lastH {
		return
	}
	r.lastView, r.lastW, r.lastH = view, r.width, r.height
	r.dirty = false
	r.selectTiles()
}

// Dispose cancels every download, waits for the workers and releases the
// meshes. The renderer is unusable afterwards.
func (r *Renderer) Dispose() {
	if r.disposed {
		return
	}
	r.disposed = true
	r.cancel()
	r.wg.Wait()
	r.group.Clear()
	r.tiles = nil
	r.selected = nil
	logger.Debugf("tiles for %s disposed", r.opts.Layer)
}

func (r *Renderer) drain() {
	for {
		select {
		case res := <-r.results:
			r.apply(res)
		default:
			return
		}
	}
}

func (r *Renderer) apply(res tileResult) {
	t, ok := r.tiles[res.key]
	if !ok || t.state != tilePending {
		return
	}
	t.cancel()
	r.dirty = true
	switch {
	case res.err != nil:
		t.state = tileFailed
		r.metrics.TileFetched(metrics.TileFailure)
		logger.Debugf("tile %v: %v", res.key, res.err)
	case res.empty:
		t.state = tileLoaded
		r.metrics.TileFetched(metrics.TileEmpty)
	default:
		t.state = tileLoaded
		t.mesh = tileMesh(r.ellipsoid, t.bound, res.color)
		r.group.Add(t.mesh)
		t.mesh.Enabled = false
		r.metrics.TileFetched(metrics.TileOK)
		logger.Tracef("tile %v loaded, %d meshes", res.key, r.group.Len())
	}
}

func (r *Renderer) selectTiles() {
	r.selections++
	groupInv := quarkgl.Mat4InverseRigid(r.group.Matrix())
	camWorld := r.camera.MatrixWorld()
	origin := groupInv.MulPoint(camWorld.Translation())
	lat, lon, h := r.ellipsoid.CartesianToCartographic(origin)
	latDeg, lonDeg := lat*180/math.Pi, lon*180/math.Pi
	h = max(h, 1)

	fp := r.footprint(origin, groupInv.MulDir, camWorld, latDeg, lonDeg, h)
	idx := r.chooseLevel(latDeg, h)

	var keys []tileKey
	var lvl level
	for ; idx >= 0; idx-- {
		lvl = r.levels[idx]
		c0, r0, c1, r1, ok := tileRange(lvl, fp)
		if !ok {
			keys = nil
			break
		}
		if (c1-c0+1)*(r1-r0+1) > r.opts.MaxTiles && idx > 0 {
			continue
		}
		keys = keys[:0]
		for row := r0; row <= r1; row++ {
			for col := c0; col <= c1; col++ {
				keys = append(keys, tileKey{matrix: lvl.matrix.Identifier, col: col, row: row})
			}
		}
		break
	}
	if len(keys) > r.opts.MaxTiles {
		keys = keys[:r.opts.MaxTiles]
	}

	// Nearest tiles first.
	cc, cr := lvl.grid.fraction(orb.Point{lonDeg, latDeg})
	sort.SliceStable(keys, func(i, j int) bool {
		di := math.Hypot(float64(keys[i].col)+0.5-cc, float64(keys[i].row)+0.5-cr)
		dj := math.Hypot(float64(keys[j].col)+0.5-cc, float64(keys[j].row)+0.5-cr)
		return di < dj
	})

	want := make(map[tileKey]bool, len(keys))
	for _, k := range keys {
		want[k] = true
	}
	for k, t := range r.tiles {
		if want[k] {
			continue
		}
		if t.state == tilePending {
			t.cancel()
			delete(r.tiles, k)
			continue
		}
		if t.mesh != nil {
			t.mesh.Enabled = false
		}
	}
	for _, k := range keys {
		t, ok := r.tiles[k]
		if !ok {
			r.request(k, lvl)
			continue
		}
		if t.mesh != nil {
			t.mesh.Enabled = true
		}
	}
	r.selected = keys
	r.levelID = lvl.matrix.Identifier
	r.evict(want)
}

// footprint bounds the ground visible through the screen corners, edges and
// centre. Rays that miss the ellipsoid widen it to the horizon.
func (r *Renderer) footprint(origin quarkgl.Vec3, toLocal func(quarkgl.Vec3) quarkgl.Vec3, camWorld quarkgl.Mat4, latDeg, lonDeg, h float64) orb.Bound {
	tanY := math.Tan(r.camera.FOVYRad / 2)
	tanX := tanY * float64(r.width) / float64(r.height)
	b := orb.Bound{Min: orb.Point{lonDeg, latDeg}, Max: orb.Point{lonDeg, latDeg}}
	missed := false
	for _, s := range [][2]float64{{0, 0}, {-1, -1}, {1, -1}, {1, 1}, {-1, 1}, {0, -1}, {0, 1}, {-1, 0}, {1, 0}} {
		dir := toLocal(camWorld.MulDir(quarkgl.V3(s[0]*tanX, s[1]*tanY, -1)))
		hit, ok := r.ellipsoid.IntersectRay(origin, dir)
		if !ok {
			missed = true
			continue
		}
		lat, lon, _ := r.ellipsoid.CartesianToCartographic(hit)
		b = b.Extend(orb.Point{lon * 180 / math.Pi, lat * 180 / math.Pi})
	}
	if missed {
		theta := r.ellipsoid.HorizonAngle(h) * 180 / math.Pi
		dLon := min(theta/max(math.Cos(latDeg*math.Pi/180), 0.01), 180)
		b = b.Union(orb.Bound{
			Min: orb.Point{lonDeg - dLon, latDeg - theta},
			Max: orb.Point{lonDeg + dLon, latDeg + theta},
		})
	}
	b.Min[0], b.Max[0] = max(b.Min[0], -180), min(b.Max[0], 180)
	b.Min[1], b.Max[1] = max(b.Min[1], -90), min(b.Max[1], 90)
	return b
}

// chooseLevel returns the coarsest level whose pixels are no larger on the
// ground than ErrorTarget screen pixels at the nadir, or the finest level.
func (r *Renderer) chooseLevel(latDeg, h float64) int {
	metresPerPixel := 2 * h * math.Tan(r.camera.FOVYRad/2) / float64(r.height)
	target := r.opts.ErrorTarget * metresPerPixel
	for i, lvl := range r.levels {
		if lvl.grid.groundResolution(latDeg) <= target {
			return i
		}
	}
	return len(r.levels) - 1
}

func (r *Renderer) request(k tileKey, lvl level) {
	url, err := r.doc.TileURL(wmts.TileRequest{
		Layer:         r.opts.Layer,
		Style:         r.opts.Style,
		TileMatrixSet: r.opts.TileMatrixSet,
		TileMatrix:    k.matrix,
		Row:           k.row,
		Col:           k.col,
		Dimensions:    r.opts.Dimensions,
	})
	if err != nil {
		r.tiles[k] = &tile{state: tileFailed}
		logger.Warningf("tile %v: %v", k, err)
		return
	}
	ctx, cancel := context.WithCancel(r.ctx)
	r.tiles[k] = &tile{state: tilePending, cancel: cancel, bound: lvl.grid.bound(k.col, k.row)}
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		res := r.download(ctx, k, url)
		select {
		case r.results <- res:
		case <-r.ctx.Done():
		}
	}()
}

func (r *Renderer) download(ctx context.Context, k tileKey, url string) tileResult {
	res := tileResult{key: k}
	if err := r.sem.Acquire(ctx, 1); err != nil {
		res.err = err
		return res
	}
	defer r.sem.Release(1)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		res.err = errors.Trace(err)
		return res
	}
	resp, err := r.client.Do(req)
	if err != nil {
		res.err = errors.Annotatef(err, "GET %s", url)
		return res
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		res.err = errors.Errorf("GET %s: status %d", url, resp.StatusCode)
		return res
	}
	img, _, err := image.Decode(io.LimitReader(resp.Body, maxTileBytes))
	if err != nil {
		res.err = errors.Annotatef(err, "decoding %s", url)
		return res
	}
	c, ok := meanColor(img)
	res.color, res.empty = c, !ok
	return res
}

// evict drops unselected finished tiles once the cache is over its limit.
func (r *Renderer) evict(keep map[tileKey]bool) {
	if len(r.tiles) <= maxCachedTiles {
		return
	}
	for k, t := range r.tiles {
		if len(r.tiles) <= maxCachedTiles {
			return
		}
		if keep[k] || t.state == tilePending {
			continue
		}
		if t.mesh != nil {
			r.group.Remove(t.mesh)
		}
		delete(r.tiles, k)
	}
}
